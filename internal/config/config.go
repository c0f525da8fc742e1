// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and the environment over the defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Storage selects where tournaments live: file or memory.
	Storage string `koanf:"storage"`

	// DataDir is the root of the guilds/<id>/json|xlsx tree.
	DataDir string `koanf:"data_dir"`

	// ExportWorkers sets the number of spreadsheet export workers.
	ExportWorkers int `koanf:"export_workers"`

	// ExportQueueSize bounds the export job queue. A full queue drops jobs.
	ExportQueueSize int `koanf:"export_queue_size"`

	// ConflictRetries bounds how often a result report is retried after a
	// concurrent write to the same tournament.
	ConflictRetries int `koanf:"conflict_retries"`

	// AllowResultOverwrite lets a later report correct an existing result.
	AllowResultOverwrite bool `koanf:"allow_result_overwrite"`

	// CooldownSeconds is the per-user interval between commands. Zero disables it.
	CooldownSeconds float64 `koanf:"cooldown_seconds"`

	// CooldownBurst is how many commands a user may issue back to back.
	CooldownBurst int `koanf:"cooldown_burst"`

	// CORSOrigins is a comma separated allow list; "*" allows any origin.
	CORSOrigins string `koanf:"cors_origins"`

	// S3 compatible (Cloudflare R2) upload of finished spreadsheets. Disabled
	// unless the account, keys and bucket are all set.
	S3AccountID       string `koanf:"s3_account_id"`
	S3AccessKeyID     string `koanf:"s3_access_key_id"`
	S3SecretAccessKey string `koanf:"s3_secret_access_key"`
	S3Bucket          string `koanf:"s3_bucket"`
	S3PublicBaseURL   string `koanf:"s3_public_base_url"`
}

// Storage backends.
const (
	StorageFile   = "file"
	StorageMemory = "memory"
)

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		Storage:              StorageFile,
		DataDir:              "data",
		ExportWorkers:        max(2, runtime.NumCPU()/2),
		ExportQueueSize:      256,
		ConflictRetries:      3,
		AllowResultOverwrite: true,
		CooldownSeconds:      5,
		CooldownBurst:        1,
		CORSOrigins:          "*",
	}
}

// Origins splits CORSOrigins into a list.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// UploadEnabled reports whether finished spreadsheets should be uploaded.
func (c *Config) UploadEnabled() bool {
	return c.S3AccountID != "" && c.S3AccessKeyID != "" && c.S3SecretAccessKey != "" && c.S3Bucket != ""
}

// Validate checks the invariants the service relies on.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.DataDir) == "":
		return fmt.Errorf("%w: data_dir must not be empty", ErrInvalidConfig)
	case c.ExportWorkers <= 0:
		return fmt.Errorf("%w: export_workers must be positive, got %d", ErrInvalidConfig, c.ExportWorkers)
	case c.ExportQueueSize <= 0:
		return fmt.Errorf("%w: export_queue_size must be positive, got %d", ErrInvalidConfig, c.ExportQueueSize)
	case c.ConflictRetries < 0:
		return fmt.Errorf("%w: conflict_retries must not be negative", ErrInvalidConfig)
	case c.CooldownSeconds < 0:
		return fmt.Errorf("%w: cooldown_seconds must not be negative", ErrInvalidConfig)
	case c.CooldownBurst <= 0:
		return fmt.Errorf("%w: cooldown_burst must be positive", ErrInvalidConfig)
	}
	switch c.Storage {
	case StorageFile, StorageMemory:
	default:
		return fmt.Errorf("%w: storage must be file or memory, got %q", ErrInvalidConfig, c.Storage)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.S3Bucket != "" && !c.UploadEnabled() {
		return fmt.Errorf("%w: s3_bucket needs s3_account_id, s3_access_key_id and s3_secret_access_key", ErrInvalidConfig)
	}
	return nil
}
