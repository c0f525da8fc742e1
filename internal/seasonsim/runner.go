package seasonsim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/duelkit/pkg/logger"
)

// tally counts the wins each player is expected to have across the season.
type tally struct {
	mu   sync.Mutex
	wins map[string]int
}

func (t *tally) move(from, to string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if from != "" {
		t.wins[strings.ToLower(from)]--
	}
	t.wins[strings.ToLower(to)]++
}

// Run plays the configured season and verifies the standings.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	log := logger.Get().Named("seasonsim")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting season simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("category", cfg.Category),
		logger.Int("weeks", cfg.Weeks),
		logger.Int("workers", cfg.Workers),
		logger.Int64("seed", cfg.Seed),
		logger.String("timeout", cfg.Timeout.String()))

	c := newClient(cfg)
	if err := c.health(ctx); err != nil {
		return stats, fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}

	gen := newGenerator(cfg.Seed)
	roster := gen.roster(cfg.RosterSize)
	expected := &tally{wins: make(map[string]int, len(roster))}

	for w := 1; w <= cfg.Weeks; w++ {
		if err := playWeek(ctx, cfg, c, gen, roster, w, expected, stats); err != nil {
			return stats, fmt.Errorf("week %d: %w", w, err)
		}
	}

	season, err := c.standings(ctx, cfg.Category)
	if err != nil {
		return stats, fmt.Errorf("fetch standings: %w", err)
	}
	if err := verify(season, cfg.Weeks, expected.wins); err != nil {
		return stats, err
	}

	stats.Retries = int(c.retries.Load())
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	log.Info(ctx, "season simulation completed",
		logger.Int("tournaments", stats.Tournaments),
		logger.Int("matches", stats.Matches),
		logger.Int("reports", stats.Reports),
		logger.Int("corrections", stats.Corrections),
		logger.Int("retries", stats.Retries),
		logger.String("duration", stats.Duration.String()))
	return stats, nil
}

// playWeek builds one tournament and reports every match concurrently.
func playWeek(ctx context.Context, cfg *Config, c *client, gen *generator, roster []string, week int, expected *tally, stats *Stats) error {
	players := gen.field(roster, cfg.MinPlayers, cfg.MaxPlayers)
	t, err := c.create(ctx, cfg.Category, fmt.Sprintf("week-%d", week), strings.Join(players, " "))
	if err != nil {
		return fmt.Errorf("create tournament: %w", err)
	}
	stats.Tournaments++

	// Outcomes are drawn up front so a seed always plays the same season.
	type play struct {
		label   string
		first   bool
		correct bool
	}
	var plays []play
	for _, r := range t.Rounds {
		for _, m := range r.Matches {
			plays = append(plays, play{label: m.Label, first: gen.firstWins(), correct: gen.chance(cfg.Corrections)})
		}
	}

	var mu sync.Mutex
	completions := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, p := range plays {
		g.Go(func() error {
			rep, err := c.report(gctx, t.Name, p.label)
			if err != nil {
				return fmt.Errorf("report %q: %w", p.label, err)
			}
			// A label can be a substring of a longer one; the first hit wins
			// the lookup, so fall back to the label itself.
			candidates := rep.Candidates
			if !strings.EqualFold(rep.Match.Label, p.label) {
				a, b, _ := strings.Cut(p.label, " vs ")
				candidates = [2]string{a, b}
			}
			winner, loser := candidates[0], candidates[1]
			if !p.first {
				winner, loser = loser, winner
			}
			res, err := c.resolve(gctx, t.Name, p.label, winner)
			if err != nil {
				return fmt.Errorf("resolve %q: %w", p.label, err)
			}
			expected.move("", winner)
			reports, corrections := 1, 0
			done := res.Complete && res.Completion != ""

			if p.correct {
				res, err := c.resolve(gctx, t.Name, p.label, loser)
				var apiErr *apiError
				switch {
				case errors.As(err, &apiErr) && apiErr.Code == "already_resolved":
				case err != nil:
					return fmt.Errorf("correct %q: %w", p.label, err)
				case res.Changed:
					expected.move(winner, loser)
					corrections++
				}
				reports++
			}

			mu.Lock()
			defer mu.Unlock()
			stats.Matches++
			stats.Reports += reports
			stats.Corrections += corrections
			if done {
				completions++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if completions != 1 {
		return fmt.Errorf("%w: %s completed %d times", ErrVerify, t.Name, completions)
	}
	return nil
}
