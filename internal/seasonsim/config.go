// Package seasonsim plays a synthetic season against a running server and
// checks the standings it reports.
package seasonsim

import (
	"errors"
	"fmt"
	"time"
)

// Config holds configuration for a simulated season.
type Config struct {
	BaseURL     string        // Base URL of the service
	GuildID     uint64        // Guild the season is played in
	Category    string        // Season category; every week is <category>_week-N
	Weeks       int           // Number of weekly tournaments
	MinPlayers  int           // Smallest weekly field
	MaxPlayers  int           // Largest weekly field
	RosterSize  int           // Distinct players drawn from across the season
	Corrections float64       // Share of results reported again with the other winner
	Seed        int64         // Seed for names and outcomes; zero picks one from the clock
	Workers     int           // Concurrent result reporters per week
	Timeout     time.Duration // HTTP request timeout
	UserID      string        // X-User-ID sent with every request
}

// Sentinel errors.
var (
	ErrInvalidConfig = errors.New("invalid simulation config")
	ErrUnhealthy     = errors.New("service is not healthy")
	ErrVerify        = errors.New("standings verification failed")
)

// Validate checks the config for impossible combinations.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return errors.Join(ErrInvalidConfig, errors.New("base url is required"))
	case c.GuildID == 0:
		return errors.Join(ErrInvalidConfig, errors.New("guild id must be positive"))
	case c.Category == "":
		return errors.Join(ErrInvalidConfig, errors.New("category is required"))
	case c.Weeks < 1:
		return errors.Join(ErrInvalidConfig, errors.New("at least one week is required"))
	case c.MinPlayers < 3 || c.MaxPlayers > 8 || c.MinPlayers > c.MaxPlayers:
		return errors.Join(ErrInvalidConfig, errors.New("players per week must be within 3-8"))
	case c.RosterSize < c.MaxPlayers:
		return errors.Join(ErrInvalidConfig, errors.New("roster must be at least max players"))
	case c.Corrections < 0 || c.Corrections > 1:
		return errors.Join(ErrInvalidConfig, errors.New("corrections must be within 0-1"))
	case c.Workers < 1:
		return errors.Join(ErrInvalidConfig, errors.New("at least one worker is required"))
	}
	return nil
}

// Stats holds simulation statistics.
type Stats struct {
	Tournaments int
	Matches     int
	Reports     int
	Corrections int
	Retries     int
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
}

// DefaultCategory names a fresh season for seed so reruns do not mix with
// earlier standings.
func DefaultCategory(seed int64) string {
	return fmt.Sprintf("Sim %d", seed)
}
