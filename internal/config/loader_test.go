package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/duelkit/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		// Keep a stray .env in the package directory out of the test.
		_ = os.Setenv("DUELKIT_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("DUELKIT_ADDR", ":8080")
			_ = os.Setenv("DUELKIT_EXPORT_WORKERS", "4")
			_ = os.Setenv("DUELKIT_CONFLICT_RETRIES", "7")
			_ = os.Setenv("DUELKIT_ALLOW_RESULT_OVERWRITE", "false")
			_ = os.Setenv("DUELKIT_COOLDOWN_SECONDS", "2.5")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.ExportWorkers, convey.ShouldEqual, 4)
				convey.So(cfg.ConflictRetries, convey.ShouldEqual, 7)
				convey.So(cfg.AllowResultOverwrite, convey.ShouldBeFalse)
				convey.So(cfg.CooldownSeconds, convey.ShouldEqual, 2.5)
			})
		})

		convey.Convey("When loading config with a YAML file and env overrides", func() {
			tmpFile := createTempConfigFile(t, `
addr: ":9090"
data_dir: /srv/duelkit
export_queue_size: 32
log_format: json
`)
			_ = os.Setenv("DUELKIT_CONFIG", tmpFile)
			_ = os.Setenv("DUELKIT_ADDR", ":8081")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env beats file and file beats defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8081")
				convey.So(cfg.DataDir, convey.ShouldEqual, "/srv/duelkit")
				convey.So(cfg.ExportQueueSize, convey.ShouldEqual, 32)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.ConflictRetries, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When a .env file is present", func() {
			dir := t.TempDir()
			dotenv := filepath.Join(dir, ".env")
			convey.So(os.WriteFile(dotenv, []byte("DUELKIT_DATA_DIR=/from/dotenv\nDUELKIT_ADDR=:7000\n"), 0o600), convey.ShouldBeNil)
			_ = os.Setenv("DUELKIT_ENV_FILE", dotenv)
			_ = os.Setenv("DUELKIT_ADDR", ":6000")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it fills unset variables only", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.DataDir, convey.ShouldEqual, "/from/dotenv")
				convey.So(cfg.Addr, convey.ShouldEqual, ":6000")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			_ = os.Setenv("DUELKIT_CONFIG", createTempConfigFile(t, `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("DUELKIT_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("DUELKIT_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("DUELKIT_EXPORT_WORKERS", "not_a_number")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions

func clearConfigEnvVars() {
	for _, name := range []string{
		"DUELKIT_CONFIG", "DUELKIT_ENV_FILE", "DUELKIT_ADDR", "DUELKIT_DATA_DIR",
		"DUELKIT_EXPORT_WORKERS", "DUELKIT_EXPORT_QUEUE_SIZE", "DUELKIT_CONFLICT_RETRIES",
		"DUELKIT_ALLOW_RESULT_OVERWRITE", "DUELKIT_COOLDOWN_SECONDS", "DUELKIT_LOG_FORMAT",
	} {
		_ = os.Unsetenv(name)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
