// Package cache memoises ranked search results in Redis. Concurrent misses
// for the same normalised query are collapsed with singleflight, and Redis
// calls go through a circuit breaker so an unhealthy cache degrades to
// direct index lookups instead of failing searches.
package cache

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "kb:search:"

// Backend is the subset of the Redis client the cache needs.
type Backend interface {
	GetJSON(ctx context.Context, key string, dst any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Engine is the uncached search path.
type Engine interface {
	SearchContext(ctx context.Context, query string) ([]ranker.ScoredDoc, error)
}

// QueryCache sits in front of the search engine. A nil backend disables
// caching; searches still run through singleflight and metrics.
type QueryCache struct {
	engine     Engine
	backend    Backend
	ttl        time.Duration
	breaker    *resilience.CircuitBreaker
	group      singleflight.Group
	generation atomic.Uint64
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func New(engine Engine, backend Backend, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		engine:  engine,
		backend: backend,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("search-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     15 * time.Second,
			OnStateChange: func(name string, to resilience.State) {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			},
		}),
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Search returns the ranked hits for query, best first.
func (c *QueryCache) Search(ctx context.Context, query string) ([]ranker.ScoredDoc, error) {
	start := time.Now()
	plan := parser.Parse(query)
	if plan.Empty() {
		c.observe(start, "bypass", 0, nil)
		return []ranker.ScoredDoc{}, nil
	}
	key := buildKey(plan)

	if hits, ok := c.get(ctx, key); ok {
		c.observe(start, "hit", len(hits), nil)
		return hits, nil
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		gen := c.generation.Load()
		hits, err := c.engine.SearchContext(ctx, query)
		if err != nil {
			return nil, err
		}
		// An invalidation that raced this search means hits may predate
		// the write, so they are returned but not stored. The second check
		// covers a flush that ran while the set was in flight.
		if c.generation.Load() == gen {
			c.set(ctx, key, hits)
			if c.generation.Load() != gen {
				c.del(ctx, key)
			}
		}
		return hits, nil
	})
	if err != nil {
		c.observe(start, "miss", 0, err)
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}
	hits := val.([]ranker.ScoredDoc)
	c.observe(start, "miss", len(hits), nil)
	return hits, nil
}

func (c *QueryCache) get(ctx context.Context, key string) ([]ranker.ScoredDoc, bool) {
	if c.backend == nil {
		return nil, false
	}
	var hits []ranker.ScoredDoc
	err := c.breaker.Execute(func() error {
		return c.backend.GetJSON(ctx, key, &hits)
	}, pkgredis.IsNilError)
	if err != nil {
		c.metrics.CacheMissesTotal.Inc()
		if !pkgredis.IsNilError(err) && !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	c.metrics.CacheHitsTotal.Inc()
	return hits, true
}

func (c *QueryCache) set(ctx context.Context, key string, hits []ranker.ScoredDoc) {
	if c.backend == nil {
		return
	}
	err := c.breaker.Execute(func() error {
		return c.backend.SetJSON(ctx, key, hits, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

func (c *QueryCache) del(ctx context.Context, key string) {
	if c.backend == nil {
		return
	}
	err := c.breaker.Execute(func() error {
		return c.backend.Delete(ctx, key)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Warn("cache delete failed", "key", key, "error", err)
	}
}

// Invalidate drops every cached result. It is called after each committed
// article mutation, locally and on peer replicas.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	c.generation.Add(1)
	if c.backend == nil {
		return nil
	}
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.backend.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return fmt.Errorf("invalidating search cache: %w", err)
	}
	c.logger.Debug("search cache invalidated", "keys_deleted", deleted)
	return nil
}

// Enabled reports whether results are stored in Redis.
func (c *QueryCache) Enabled() bool {
	return c.backend != nil
}

func (c *QueryCache) observe(start time.Time, status string, n int, err error) {
	c.metrics.SearchLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		c.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		return
	case n == 0:
		c.metrics.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
	default:
		c.metrics.SearchQueriesTotal.WithLabelValues("hit").Inc()
	}
	c.metrics.SearchResultsCount.Observe(float64(n))
}

func buildKey(plan *parser.QueryPlan) string {
	hash := sha256.Sum256([]byte(plan.Normalized()))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
