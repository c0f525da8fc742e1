package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/duelkit/internal/adapters/http/api"
	"github.com/okian/duelkit/internal/adapters/http/live"
	"github.com/okian/duelkit/internal/adapters/repository"
	"github.com/okian/duelkit/internal/adapters/storage"
	app "github.com/okian/duelkit/internal/app"
	"github.com/okian/duelkit/internal/config"
	"github.com/okian/duelkit/internal/domain/cooldown"
	"github.com/okian/duelkit/pkg/logger"
	"github.com/okian/duelkit/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// Use stderr since the logger may not be available
		os.Stderr.WriteString(err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (.env -> defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	hub := live.NewHub(live.WithAllowedOrigins(cfg.Origins()))
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	svc, err := newService(ctx, cfg, hub, log)
	if err != nil {
		return err
	}
	// Workers outlive the signal context so queued exports can drain on shutdown.
	if err := svc.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc, hub)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(cfg, svc, hub),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("data_dir", cfg.DataDir))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal or a listener failure
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	stopHub()
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "service shutdown failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "server stopped")
	return nil
}

// newService builds the tournament service from configuration, including the
// optional bucket upload of exports.
func newService(ctx context.Context, cfg *config.Config, hub *live.Hub, log logger.Logger) (*app.Service, error) {
	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithDataDir(cfg.DataDir),
		app.WithExportWorkers(cfg.ExportWorkers),
		app.WithExportQueueSize(cfg.ExportQueueSize),
		app.WithConflictRetries(cfg.ConflictRetries),
		app.WithResultOverwrite(cfg.AllowResultOverwrite),
		app.WithPublisher(hub),
	}
	if cfg.Storage == config.StorageMemory {
		opts = append(opts, app.WithStore(repository.NewMemoryStore()))
		log.Warn(ctx, "tournaments are kept in memory and lost on restart")
	}

	if cfg.UploadEnabled() {
		uploader, err := storage.NewR2Uploader(ctx, storage.R2Config{
			AccountID:       cfg.S3AccountID,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			BucketName:      cfg.S3Bucket,
			PublicBaseURL:   cfg.S3PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure export upload: %w", err)
		}
		opts = append(opts, app.WithUploader(uploader))
		log.Info(ctx, "export upload enabled", logger.String("bucket", cfg.S3Bucket))
	}

	return app.New(opts...), nil
}

// newHandler wires the API routes with cooldowns and live updates.
func newHandler(cfg *config.Config, svc *app.Service, hub *live.Hub) http.Handler {
	opts := []api.Option{
		api.WithLive(hub),
		api.WithAllowedOrigins(cfg.Origins()),
	}
	if cfg.CooldownSeconds > 0 {
		interval := time.Duration(cfg.CooldownSeconds * float64(time.Second))
		opts = append(opts, api.WithLimiter(cooldown.NewTracker(
			cooldown.WithInterval(interval),
			cooldown.WithBurst(cfg.CooldownBurst),
		)))
	}
	return api.NewServer(svc, svc, opts...).Handler()
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service, hub *live.Hub) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats refreshes the queue, worker and store gauges.
			_ = svc.GetStats(ctx)
			metrics.UpdateLiveSubscribers(hub.Subscribers())
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		// Calculate average GC pause time
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
