package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/okian/duelkit/internal/seasonsim"
	"github.com/okian/duelkit/pkg/logger"
)

// Default configuration constants.
const (
	defaultWeeks       = 8
	defaultMinPlayers  = 4
	defaultMaxPlayers  = 8
	defaultRosterSize  = 12
	defaultWorkers     = 4
	defaultTimeout     = 10 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "season-sim",
		Usage: "play a synthetic season of round robin tournaments against a running duelkit server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:9080", Usage: "base URL of the service"},
			&cli.Uint64Flag{Name: "guild", Value: 1, Usage: "guild the season is played in"},
			&cli.StringFlag{Name: "category", Usage: "season category (default: Sim <seed>)"},
			&cli.IntFlag{Name: "weeks", Value: defaultWeeks, Usage: "number of weekly tournaments"},
			&cli.IntFlag{Name: "min-players", Value: defaultMinPlayers, Usage: "smallest weekly field"},
			&cli.IntFlag{Name: "max-players", Value: defaultMaxPlayers, Usage: "largest weekly field"},
			&cli.IntFlag{Name: "roster", Value: defaultRosterSize, Usage: "distinct players across the season"},
			&cli.Float64Flag{Name: "corrections", Value: 0.1, Usage: "share of results reported again with the other winner"},
			&cli.Int64Flag{Name: "seed", Usage: "seed for names and outcomes (default: clock)"},
			&cli.IntFlag{Name: "workers", Value: defaultWorkers, Usage: "concurrent reporters per week"},
			&cli.DurationFlag{Name: "timeout", Value: defaultTimeout, Usage: "HTTP request timeout"},
			&cli.StringFlag{Name: "user", Value: "season-sim", Usage: "X-User-ID sent with every request"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "log level"},
		},
		Action: func(c *cli.Context) error {
			if err := logger.Init(); err != nil {
				return err
			}
			if err := logger.SetLevelString(c.String("log-level")); err != nil {
				return err
			}

			cfg := &seasonsim.Config{
				BaseURL:     c.String("url"),
				GuildID:     c.Uint64("guild"),
				Category:    c.String("category"),
				Weeks:       c.Int("weeks"),
				MinPlayers:  c.Int("min-players"),
				MaxPlayers:  c.Int("max-players"),
				RosterSize:  c.Int("roster"),
				Corrections: c.Float64("corrections"),
				Seed:        c.Int64("seed"),
				Workers:     c.Int("workers"),
				Timeout:     c.Duration("timeout"),
				UserID:      c.String("user"),
			}
			if cfg.Seed == 0 {
				cfg.Seed = time.Now().UnixNano()
			}
			if cfg.Category == "" {
				cfg.Category = seasonsim.DefaultCategory(cfg.Seed)
			}

			runCtx, cancel := context.WithTimeout(c.Context, defaultTestTimeout)
			defer cancel()
			_, err := seasonsim.Run(runCtx, cfg)
			return err
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		os.Stderr.WriteString("season simulation failed: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
