// Command analytics runs a standalone analytics aggregator for Kafka
// deployments. It consumes the search and article-view events published by
// kb replicas through the shared consumer group, keeps the running
// statistics, snapshots them to PostgreSQL when configured, and serves
// GET /api/v1/analytics for dashboards.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if !cfg.Kafka.Enabled {
		slog.Error("the analytics service needs kafka.enabled; without Kafka each kb replica aggregates in-process")
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		slog.Error("analytics service stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	slog.Info("starting analytics service", "port", cfg.Server.Port, "topic", cfg.Kafka.Topics.AnalyticsEvents)

	m := metrics.New()
	checker := health.NewChecker()
	agg := analytics.NewAggregator()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Database.Type == "postgres" {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		if cfg.Database.MigrateOnBoot {
			if err := store.Migrate(db.DB); err != nil {
				return err
			}
		}
		snapshots := analytics.NewSnapshotStore(db)
		latest, err := snapshots.Latest(ctx)
		switch {
		case err != nil:
			slog.Warn("no analytics snapshot restored", "error", err)
		case latest != nil:
			agg.Restore(*latest)
			slog.Info("analytics snapshot restored", "total_searches", latest.TotalSearches)
		}
		snapshots.StartPeriodicSave(gctx, agg, time.Minute)
		checker.Register("postgres", health.PingCheck(db.Ping, false))
	}

	// Shared group: replicas of this service split the partitions.
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, "analytics", analytics.HandleEvent(agg))
	g.Go(func() error { return consumer.Start(gctx) })
	checker.Register("kafka", health.PingCheck(func(ctx context.Context) error {
		return kafka.Ping(ctx, cfg.Kafka.Brokers)
	}, true))

	stats := analytics.NewHandler(agg)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", stats.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", m.Handler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		checker.MarkReady()
		slog.Info("analytics service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	return g.Wait()
}
