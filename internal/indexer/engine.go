package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/article"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/indexer/markdown"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/metrics"
)

// Source is the slice of the document store the engine reads when it
// rebuilds.
type Source interface {
	Query(ctx context.Context, f article.Filter, s article.Sort, limit int) ([]*article.Article, error)
}

// Engine owns the process-wide search index. It is built once from the
// store before requests are served and then maintained by the lifecycle
// manager on every mutation.
//
// Mutations hold mu shared; Rebuild holds it exclusively so no write can
// land in an index that is about to be replaced. Searches never block.
type Engine struct {
	current   atomic.Pointer[index.MemoryIndex]
	mu        sync.RWMutex
	boosts    ranker.Boosts
	indexBody func() bool
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewEngine creates an empty engine. indexBody is consulted on every
// document build so a settings change applies to the next write; call
// Rebuild to apply it to existing entries.
func NewEngine(boosts ranker.Boosts, indexBody func() bool, m *metrics.Metrics) *Engine {
	e := &Engine{
		boosts:    boosts,
		indexBody: indexBody,
		metrics:   m,
		logger:    slog.Default().With("component", "indexer"),
	}
	e.current.Store(index.NewMemoryIndex())
	return e
}

// Document projects an article onto its index entry.
func (e *Engine) Document(a *article.Article) index.Document {
	doc := index.Document{
		ID:       a.ID,
		Title:    a.Title,
		Keywords: a.Keywords,
	}
	if e.indexBody() {
		doc.Body = markdown.PlainText(a.Body)
	}
	return doc
}

// Add indexes a newly created article.
func (e *Engine) Add(a *article.Article) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx := e.current.Load()
	if err := idx.Add(e.Document(a)); err != nil {
		return fmt.Errorf("indexing article %s: %w", a.ID, err)
	}
	e.metrics.IndexOpsTotal.WithLabelValues("add").Inc()
	e.metrics.IndexDocuments.Set(float64(idx.DocCount()))
	e.logger.Debug("article indexed", "article_id", a.ID)
	return nil
}

// Update replaces the entry for a; see index.MemoryIndex.Update for the
// meaning of expunge.
func (e *Engine) Update(a *article.Article, expunge bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx := e.current.Load()
	idx.Update(e.Document(a), expunge)
	e.metrics.IndexOpsTotal.WithLabelValues("update").Inc()
	e.metrics.IndexDocuments.Set(float64(idx.DocCount()))
	e.logger.Debug("article reindexed", "article_id", a.ID, "expunge", expunge)
}

// Remove drops the entry for id; absent IDs are ignored.
func (e *Engine) Remove(id string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx := e.current.Load()
	if idx.Remove(id) {
		e.metrics.IndexOpsTotal.WithLabelValues("remove").Inc()
		e.metrics.IndexDocuments.Set(float64(idx.DocCount()))
		e.logger.Debug("article removed from index", "article_id", id)
	}
}

// Search returns matching article IDs with scores, best first. An empty or
// whitespace-only query returns an empty slice.
func (e *Engine) Search(query string) []ranker.ScoredDoc {
	return e.Execute(parser.Parse(query), 0).Results
}

// SearchContext is Search for callers that carry a context.
func (e *Engine) SearchContext(ctx context.Context, query string) ([]ranker.ScoredDoc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.Search(query), nil
}

// Execute runs a parsed plan and returns the full result with term stats.
func (e *Engine) Execute(plan *parser.QueryPlan, limit int) *executor.SearchResult {
	return executor.Execute(e.current.Load(), plan, e.boosts, limit)
}

func (e *Engine) Contains(id string) bool {
	return e.current.Load().Contains(id)
}

func (e *Engine) DocCount() int {
	return e.current.Load().DocCount()
}

func (e *Engine) TermCount() int {
	return e.current.Load().TermCount()
}

// Rebuild builds a fresh index from every non-snapshot article in src and
// swaps it in. Writes wait for the swap; searches keep using the old index
// until then.
func (e *Engine) Rebuild(ctx context.Context, src Source) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	articles, err := src.Query(ctx, article.Live(), article.Sort{}, 0)
	if err != nil {
		return 0, fmt.Errorf("loading articles for index rebuild: %w", err)
	}
	fresh := index.NewMemoryIndex()
	for _, a := range articles {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("index rebuild aborted: %w", err)
		}
		if err := fresh.Add(e.Document(a)); err != nil {
			e.logger.Warn("duplicate article during rebuild", "article_id", a.ID, "error", err)
		}
	}
	e.current.Store(fresh)

	elapsed := time.Since(start)
	e.metrics.IndexRebuildDuration.Observe(elapsed.Seconds())
	e.metrics.IndexDocuments.Set(float64(fresh.DocCount()))
	e.logger.Info("index rebuilt",
		"articles", fresh.DocCount(),
		"terms", fresh.TermCount(),
		"body_indexed", e.indexBody(),
		"duration_ms", elapsed.Milliseconds(),
	)
	return fresh.DocCount(), nil
}

// Drift lists the differences between the store and the index.
type Drift struct {
	MissingFromIndex []string `json:"missing_from_index"`
	Orphaned         []string `json:"orphaned"`
}

func (d Drift) Clean() bool {
	return len(d.MissingFromIndex) == 0 && len(d.Orphaned) == 0
}

// Verify compares the set of live article IDs in src with the indexed IDs.
func (e *Engine) Verify(ctx context.Context, src Source) (Drift, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	articles, err := src.Query(ctx, article.Live(), article.Sort{}, 0)
	if err != nil {
		return Drift{}, fmt.Errorf("loading articles for index verification: %w", err)
	}
	indexed := make(map[string]struct{})
	for _, id := range e.current.Load().IDs() {
		indexed[id] = struct{}{}
	}
	drift := Drift{MissingFromIndex: []string{}, Orphaned: []string{}}
	for _, a := range articles {
		if _, ok := indexed[a.ID]; ok {
			delete(indexed, a.ID)
			continue
		}
		drift.MissingFromIndex = append(drift.MissingFromIndex, a.ID)
	}
	for id := range indexed {
		drift.Orphaned = append(drift.Orphaned, id)
	}
	sort.Strings(drift.Orphaned)
	return drift, nil
}
