package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sentrygo "github.com/getsentry/sentry-go"
	"github.com/songify/reporter/internal/config"
	"github.com/songify/reporter/internal/database"
	"github.com/songify/reporter/internal/db"
	"github.com/songify/reporter/internal/logging"
	"github.com/songify/reporter/internal/metrics"
	"github.com/songify/reporter/internal/router"
	"github.com/songify/reporter/internal/sentry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

// run starts the server and returns the process exit code. Deferred cleanup,
// including the Sentry flush, runs before main exits.
func run() int {
	// Load configuration
	cfg := config.Load()

	// The scrubber also redacts sensitive log attributes, so it is built first
	scrubber := cfg.NewScrubber()

	// Initialize structured logging (reads LOGGING_LEVEL env var)
	logging.Initialize(scrubber)

	// Initialize Sentry with scrubbing hooks; no-op without SENTRY_DSN
	if err := sentry.Init(cfg, sentry.NewEventScrubber(scrubber)); err != nil {
		slog.Error("failed to initialize sentry", slog.String("error", err.Error()))
		return 1
	}
	defer sentrygo.Flush(2 * time.Second)

	// Initialize database
	sqlDB, err := database.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		return 1
	}
	defer sqlDB.Close()

	// Run migrations
	if err := database.RunMigrations(sqlDB); err != nil {
		slog.Error("failed to run migrations", slog.String("error", err.Error()))
		return 1
	}

	// Initialize queries
	queries := db.New(sqlDB)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	// Create router
	r := router.New(ctx, cfg, queries, scrubber, sentry.NewReporter(sentrygo.CurrentHub()), m)

	// Start server
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		slog.Error("failed to listen", slog.String("addr", addr), slog.String("error", err.Error()))
		return 1
	}

	slog.Info("starting server",
		slog.String("addr", addr),
		slog.Int("scrub_fields", len(cfg.ScrubFields)),
		slog.Bool("sentry", cfg.SentryDSN != ""),
	)

	if err := serve(ctx, srv, ln, shutdownTimeout); err != nil {
		slog.Error("server failed", slog.String("error", err.Error()))
		return 1
	}
	slog.Info("server stopped")
	return 0
}

// serve runs srv on ln until ctx is done, then shuts it down and waits for
// in-flight requests to drain before returning.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, timeout time.Duration) error {
	drained := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		drained <- srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-drained; err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
