// filedrop catalog service
//
// Stores file records in PostgreSQL and serves them over a small JSON API:
// health and database checks, save-link, newest-first listing, and delete.
// Prometheus metrics are served on a separate listener.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fruitsalade/filedrop/internal/api"
	"github.com/fruitsalade/filedrop/internal/config"
	"github.com/fruitsalade/filedrop/internal/logging"
	"github.com/fruitsalade/filedrop/internal/metadata/postgres"
	"github.com/fruitsalade/filedrop/internal/metrics"
	"github.com/fruitsalade/filedrop/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("filedrop server starting",
		logging.String("listen", cfg.ListenAddr),
		logging.String("metrics", cfg.MetricsAddr))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info("connecting to PostgreSQL")
	rc := retry.Config{
		MaxAttempts: cfg.DBConnectAttempts,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     10 * time.Second,
		Multiplier:  2,
		Jitter:      0.2,
	}
	store, err := postgres.New(ctx, cfg.DatabaseURL, rc)
	if err != nil {
		logging.Fatal("database connection failed", logging.Err(err))
	}
	defer store.Close()

	if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
		logging.Fatal("migration failed", logging.Err(err))
	}

	srv := api.NewServer(store, api.Config{
		MaxBodyBytes: cfg.MaxBodyBytes,
		ListCacheTTL: cfg.ListCacheTTL,
	})

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logging.Info("metrics server listening", logging.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logging.Error("metrics server error", logging.Err(err))
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				store.UpdateConnectionMetrics()
			}
		}
	}()

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		logging.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("shutdown error", logging.Err(err))
		}
		metricsServer.Close()
	}()

	logging.Info("server listening", logging.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logging.Error("server error", logging.Err(err))
		os.Exit(1)
	}
	<-shutdownDone
}
