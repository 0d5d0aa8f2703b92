// Command kb runs the knowledge base API: article storage, the in-memory
// search index, retrieval, authoring and analytics in one process.
//
// Usage:
//
//	go run ./cmd/kb [-config configs/development.yaml]
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

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/api/handler"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/api/router"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/lifecycle"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/settings"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/redis"
)

const (
	snapshotInterval  = time.Minute
	rateLimitSweep    = time.Minute
	collectorBuffer   = 10000
	collectorBatch    = 100
	collectorInterval = 2 * time.Second
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

	if err := run(cfg); err != nil {
		slog.Error("knowledge base stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("knowledge base stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	instance := instanceID()
	slog.Info("starting knowledge base",
		"instance", instance,
		"port", cfg.Server.Port,
		"database", cfg.Database.Type,
		"kafka", cfg.Kafka.Enabled,
		"redis", cfg.Redis.Enabled,
	)

	m := metrics.New()
	checker := health.NewChecker()

	initial, err := settings.FromConfig(cfg.KB)
	if err != nil {
		return fmt.Errorf("invalid kb settings: %w", err)
	}
	kbSettings, err := settings.NewStore(initial)
	if err != nil {
		return err
	}

	// Document store.
	var (
		st store.Store
		db *postgres.Client
	)
	switch cfg.Database.Type {
	case "postgres":
		db, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		if cfg.Database.MigrateOnBoot {
			if err := store.Migrate(db.DB); err != nil {
				return err
			}
		}
		st = store.NewPostgres(db)
	default:
		st = store.NewMemory()
	}
	checker.Register("store", health.PingCheck(st.Ping, true))

	// Search index, rebuilt from the store before the first request.
	engine := indexer.NewEngine(ranker.Boosts{
		index.FieldTitle:    cfg.Search.TitleBoost,
		index.FieldKeywords: cfg.Search.KeywordsBoost,
		index.FieldBody:     cfg.Search.BodyBoost,
	}, func() bool { return kbSettings.Current().IndexArticleBody }, m)
	n, err := engine.Rebuild(ctx, st)
	if err != nil {
		return fmt.Errorf("building search index: %w", err)
	}
	slog.Info("search index built", "articles", n)

	// Query cache; Redis is optional.
	var backend cache.Backend
	if cfg.Redis.Enabled {
		rc, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rc.Close()
		backend = rc
		checker.Register("redis", health.PingCheck(rc.Ping, false))
	}
	queryCache := cache.New(engine, backend, cfg.Redis.CacheTTL, m)

	kbSettings.Subscribe(func(prev, next settings.Settings) {
		if prev.IndexArticleBody == next.IndexArticleBody {
			return
		}
		slog.Info("index_article_body changed, rebuilding search index", "index_article_body", next.IndexArticleBody)
		if _, err := engine.Rebuild(context.Background(), st); err != nil {
			slog.Error("search index rebuild failed", "error", err)
			return
		}
		if err := queryCache.Invalidate(context.Background()); err != nil {
			slog.Warn("search cache invalidation failed", "error", err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)

	// Analytics: events go through Kafka when enabled, otherwise straight
	// into the local aggregator.
	agg := analytics.NewAggregator()
	var sink analytics.Sink = agg
	var publisher *events.Publisher
	if cfg.Kafka.Enabled {
		analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer analyticsProducer.Close()
		sink = analyticsProducer

		analyticsConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, instance, analytics.HandleEvent(agg))
		g.Go(func() error { return analyticsConsumer.Start(gctx) })

		articleProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ArticleEvents)
		defer articleProducer.Close()
		publisher = events.NewPublisher(articleProducer, instance)

		syncer := events.NewSyncer(instance, st, engine, queryCache)
		articleConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ArticleEvents, instance, syncer.Handle)
		g.Go(func() error { return articleConsumer.Start(gctx) })

		checker.Register("kafka", health.PingCheck(kafkaCheck(cfg.Kafka), false))
	}
	if db != nil {
		snapshots := analytics.NewSnapshotStore(db)
		if latest, err := snapshots.Latest(ctx); err != nil {
			slog.Warn("no analytics snapshot restored", "error", err)
		} else if latest != nil {
			agg.Restore(*latest)
		}
		snapshots.StartPeriodicSave(gctx, agg, snapshotInterval)
	}
	collector := analytics.NewCollector(sink, collectorBuffer, collectorBatch, collectorInterval)
	collector.Start(gctx)
	defer collector.Close()

	// Authentication: configured keys first, then the key table.
	resolvers := apikey.Chain{apikey.NewStatic(cfg.Auth.StaticKeys)}
	var keys *apikey.Validator
	if db != nil {
		keys = apikey.NewValidator(db)
		resolvers = append(resolvers, keys)
	}
	limiter := ratelimit.New(cfg.Auth.AnonRateLimit, cfg.Auth.AnonRateWindow)
	g.Go(func() error {
		limiter.Run(gctx, rateLimitSweep)
		return nil
	})

	h := handler.New(handler.Deps{
		Retrieval: retrieval.NewService(st, queryCache, kbSettings, m,
			retrieval.WithMaxQueryLength(cfg.Search.MaxQueryLength),
			retrieval.WithSearchTimeout(cfg.Search.Timeout),
		),
		Lifecycle: lifecycle.NewManager(st, engine, kbSettings, queryCache, publisher, m),
		Settings:  kbSettings,
		Engine:    engine,
		Source:    st,
		Cache:     queryCache,
		Collector: collector,
		Stats:     analytics.NewHandler(agg),
		Keys:      keys,
	})
	routes := router.New(h, router.Options{
		Resolver:       resolvers,
		Limiter:        limiter,
		Health:         checker,
		Metrics:        m,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	if cfg.Metrics.Enabled {
		g.Go(func() error { return m.Serve(gctx, cfg.Metrics.Port) })
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      routes,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		checker.MarkReady()
		slog.Info("knowledge base listening", "addr", server.Addr, "articles_indexed", engine.DocCount())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	return g.Wait()
}

// instanceID names this replica in event origins and per-replica consumer
// groups.
func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "kb"
	}
	return host + "-" + uuid.NewString()[:8]
}

func kafkaCheck(cfg config.KafkaConfig) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return kafka.Ping(ctx, cfg.Brokers)
	}
}
