package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/kafka"
)

const (
	latencyWindow = 10000
	topLimit      = 10
)

type AggregatedStats struct {
	TotalSearches     int64          `json:"total_searches"`
	ZeroResultCount   int64          `json:"zero_result_count"`
	AnonymousSearches int64          `json:"anonymous_searches"`
	TotalViews        int64          `json:"total_views"`
	AvgLatencyMs      float64        `json:"avg_latency_ms"`
	P50LatencyMs      int64          `json:"p50_latency_ms"`
	P95LatencyMs      int64          `json:"p95_latency_ms"`
	P99LatencyMs      int64          `json:"p99_latency_ms"`
	TopQueries        []QueryCount   `json:"top_queries"`
	ZeroResultQueries []QueryCount   `json:"zero_result_queries"`
	TopArticles       []ArticleCount `json:"top_articles"`
	QueriesPerMinute  float64        `json:"queries_per_minute"`
	Since             time.Time      `json:"since"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

type ArticleCount struct {
	ArticleID string `json:"article_id"`
	Title     string `json:"title"`
	Views     int64  `json:"views"`
}

// Aggregator folds search and view events into running statistics. It is
// fed either by a Kafka consumer (HandleEvent) or directly as the
// collector's Sink when Kafka is disabled.
type Aggregator struct {
	mu                sync.Mutex
	totalSearches     int64
	zeroResults       int64
	anonymous         int64
	totalViews        int64
	latencies         []int64
	next              int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	articleViews      map[string]*ArticleCount
	startTime         time.Time
	logger            *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, latencyWindow),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		articleViews:      make(map[string]*ArticleCount),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent decodes analytics records consumed from Kafka.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		switch EventType(msg.Type) {
		case EventSearch:
			ev, err := kafka.DecodeJSON[SearchEvent](msg.Value)
			if err != nil {
				agg.logger.Error("failed to decode search event", "error", err)
				return nil
			}
			agg.Record(ev)
		case EventArticleView:
			ev, err := kafka.DecodeJSON[ArticleViewEvent](msg.Value)
			if err != nil {
				agg.logger.Error("failed to decode view event", "error", err)
				return nil
			}
			agg.Record(ev)
		default:
			agg.logger.Warn("unknown analytics event", "type", msg.Type)
		}
		return nil
	}
}

// PublishBatch records a batch in process.
func (a *Aggregator) PublishBatch(ctx context.Context, events []kafka.Event) error {
	for _, ev := range events {
		if e, ok := ev.Value.(Event); ok {
			a.Record(e)
		}
	}
	return nil
}

func (a *Aggregator) Record(ev Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch e := ev.(type) {
	case SearchEvent:
		a.recordSearchLocked(e)
	case ArticleViewEvent:
		a.recordViewLocked(e)
	}
}

func (a *Aggregator) recordSearchLocked(e SearchEvent) {
	a.totalSearches++
	if e.Anonymous {
		a.anonymous++
	}
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, e.LatencyMs)
	} else {
		a.latencies[a.next] = e.LatencyMs
		a.next = (a.next + 1) % latencyWindow
	}
	a.queryCounts[e.Query]++
	if e.Results == 0 {
		a.zeroResults++
		a.zeroResultQueries[e.Query]++
	}
}

func (a *Aggregator) recordViewLocked(e ArticleViewEvent) {
	a.totalViews++
	c, ok := a.articleViews[e.ArticleID]
	if !ok {
		c = &ArticleCount{ArticleID: e.ArticleID}
		a.articleViews[e.ArticleID] = c
	}
	c.Title = e.Title
	c.Views++
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalSearches:     a.totalSearches,
		ZeroResultCount:   a.zeroResults,
		AnonymousSearches: a.anonymous,
		TotalViews:        a.totalViews,
		Since:             a.startTime,
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, topLimit)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, topLimit)
	stats.TopArticles = topArticles(a.articleViews, topLimit)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

// Restore seeds the counters from a persisted snapshot so totals survive a
// restart. Latency percentiles start over.
func (a *Aggregator) Restore(s AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches += s.TotalSearches
	a.zeroResults += s.ZeroResultCount
	a.anonymous += s.AnonymousSearches
	a.totalViews += s.TotalViews
	for _, q := range s.TopQueries {
		a.queryCounts[q.Query] += q.Count
	}
	for _, q := range s.ZeroResultQueries {
		a.zeroResultQueries[q.Query] += q.Count
	}
	for _, v := range s.TopArticles {
		c, ok := a.articleViews[v.ArticleID]
		if !ok {
			c = &ArticleCount{ArticleID: v.ArticleID, Title: v.Title}
			a.articleViews[v.ArticleID] = c
		}
		c.Views += v.Views
	}
	if !s.Since.IsZero() && s.Since.Before(a.startTime) {
		a.startTime = s.Since
	}
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

func topArticles(views map[string]*ArticleCount, n int) []ArticleCount {
	result := make([]ArticleCount, 0, len(views))
	for _, c := range views {
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Views != result[j].Views {
			return result[i].Views > result[j].Views
		}
		return result[i].ArticleID < result[j].ArticleID
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
