package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/agon/internal/adapters/http/api"
	"github.com/okian/agon/internal/adapters/http/site"
	"github.com/okian/agon/internal/adapters/http/swagger"
	service "github.com/okian/agon/internal/app"
	"github.com/okian/agon/internal/config"
	"github.com/okian/agon/pkg/logger"
	"github.com/okian/agon/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Background updater intervals.
const (
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize logging
	if err := logger.Init(); err != nil {
		// Logger isn't available yet, write straight to stderr
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			os.Stderr.WriteString("failed to sync logger: " + err.Error() + "\n")
		}
	}()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	opts := []service.Option{
		service.WithLogger(loggerInstance),
		service.WithInitialRating(cfg.InitialRating),
		service.WithInitialDeviation(cfg.InitialDeviation),
		service.WithInitialVolatility(cfg.InitialVolatility),
		service.WithTau(cfg.Tau),
		service.WithRounds(cfg.Rounds),
		service.WithConcurrency(cfg.Concurrency),
		service.WithMaxAttempts(cfg.MaxAttempts),
		service.WithAttemptTimeout(time.Duration(cfg.JudgeTimeoutMS) * time.Millisecond),
		service.WithCommitMode(cfg.CommitMode),
		service.WithHistory(cfg.RecordHistory),
		service.WithPairingSeed(cfg.PairingSeed),
		service.WithJudgeProvider(cfg.JudgeProvider),
		service.WithJudgeModel(cfg.JudgeModel),
		service.WithJudgeBaseURL(cfg.JudgeBaseURL),
		service.WithJudgeAPIKey(cfg.JudgeAPIKey),
		service.WithJudgeRate(cfg.JudgeRatePerSec, cfg.JudgeBurst),
		service.WithArchivePath(cfg.ArchivePath),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithSnapshotInterval(time.Duration(cfg.SnapshotIntervalMS) * time.Millisecond),
	}
	if cfg.GoalFile != "" {
		goal, err := os.ReadFile(cfg.GoalFile)
		if err != nil {
			loggerInstance.Warn(ctx, "goal file unreadable; judging with the default goal",
				logger.String("goal_file", cfg.GoalFile), logger.Error(err))
		} else {
			opts = append(opts, service.WithGoal(string(goal)))
		}
	}

	// Create and start the service with configuration options
	svc := service.New(opts...)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	// Start service metrics updater
	go startServiceMetricsUpdater(ctx, svc)

	// HTTP mux and routes.
	mux := http.NewServeMux()

	// Register ReDoc and the OpenAPI spec
	swagger.Register(ctx, mux)

	// Register the landing page at /
	site.Register(ctx, mux)

	// Register business API routes with the service dependency.
	apiServer := api.NewServer(svc, svc, cfg.MaxLeaderboardLimit)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       time.Duration(cfg.HTTPReadTimeoutMS) * time.Millisecond,
		WriteTimeout:      time.Duration(cfg.HTTPWriteTimeoutMS) * time.Millisecond,
		IdleTimeout:       time.Duration(cfg.HTTPIdleTimeoutMS) * time.Millisecond,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutMS)*time.Millisecond)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
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
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	// Update memory usage
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	// Update goroutine count
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	// Update GC pause time
	if m.NumGC > 0 {
		// Average pause over the process lifetime
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *service.Service) {
	// GetStats refreshes the population and rating gauges as a side effect
	stats := svc.GetStats()

	if active, ok := stats["runActive"].(bool); ok {
		metrics.UpdateRunActive(active)
	}
}
