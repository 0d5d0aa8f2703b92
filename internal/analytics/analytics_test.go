package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (r *recordingSink) PublishBatch(ctx context.Context, events []kafka.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]kafka.Event, len(events))
	copy(cp, events)
	r.batches = append(r.batches, cp)
	return r.err
}

func (r *recordingSink) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	for i, q := range []string{"vpn", "vpn", "printer", "vpn", "nothing here"} {
		results := 3
		if q == "nothing here" {
			results = 0
		}
		agg.Record(SearchEvent{Query: q, Results: results, LatencyMs: int64(i + 1), Anonymous: i%2 == 0})
	}
	agg.Record(ArticleViewEvent{ArticleID: "a1", Title: "VPN"})
	agg.Record(ArticleViewEvent{ArticleID: "a1", Title: "VPN setup"})
	agg.Record(ArticleViewEvent{ArticleID: "a2", Title: "Printer"})

	s := agg.Stats()
	assert.Equal(t, int64(5), s.TotalSearches)
	assert.Equal(t, int64(1), s.ZeroResultCount)
	assert.Equal(t, int64(3), s.AnonymousSearches)
	assert.Equal(t, int64(3), s.TotalViews)
	assert.Equal(t, 3.0, s.AvgLatencyMs)
	assert.Equal(t, int64(3), s.P50LatencyMs)
	assert.Equal(t, int64(5), s.P99LatencyMs)
	assert.Equal(t, QueryCount{Query: "vpn", Count: 3}, s.TopQueries[0])
	assert.Equal(t, []QueryCount{{Query: "nothing here", Count: 1}}, s.ZeroResultQueries)
	assert.Equal(t, ArticleCount{ArticleID: "a1", Title: "VPN setup", Views: 2}, s.TopArticles[0])
}

func TestAggregatorLatencyWindowIsBounded(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < latencyWindow+500; i++ {
		agg.Record(SearchEvent{Query: "q", Results: 1, LatencyMs: 1})
	}
	assert.Len(t, agg.latencies, latencyWindow)
	assert.Equal(t, int64(latencyWindow+500), agg.Stats().TotalSearches)
}

func TestAggregatorRestore(t *testing.T) {
	agg := NewAggregator()
	agg.Record(SearchEvent{Query: "vpn", Results: 1})
	agg.Restore(AggregatedStats{
		TotalSearches: 10,
		TotalViews:    4,
		TopQueries:    []QueryCount{{Query: "vpn", Count: 6}},
		TopArticles:   []ArticleCount{{ArticleID: "a1", Title: "VPN", Views: 4}},
		Since:         time.Now().Add(-time.Hour),
	})

	s := agg.Stats()
	assert.Equal(t, int64(11), s.TotalSearches)
	assert.Equal(t, int64(7), s.TopQueries[0].Count)
	assert.Equal(t, int64(4), s.TopArticles[0].Views)
}

func TestHandleEventDecodesByType(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)
	ctx := context.Background()

	raw, err := json.Marshal(SearchEvent{Query: "wifi", Results: 0})
	require.NoError(t, err)
	require.NoError(t, handle(ctx, kafka.Message{Type: string(EventSearch), Value: raw}))

	raw, err = json.Marshal(ArticleViewEvent{ArticleID: "a9"})
	require.NoError(t, err)
	require.NoError(t, handle(ctx, kafka.Message{Type: string(EventArticleView), Value: raw}))

	require.NoError(t, handle(ctx, kafka.Message{Type: string(EventSearch), Value: []byte("{broken")}))
	require.NoError(t, handle(ctx, kafka.Message{Type: "mystery", Value: raw}))

	s := agg.Stats()
	assert.Equal(t, int64(1), s.TotalSearches)
	assert.Equal(t, int64(1), s.ZeroResultCount)
	assert.Equal(t, int64(1), s.TotalViews)
}

func TestCollectorFlushesOnBatchSize(t *testing.T) {
	sink := &recordingSink{}
	c := NewCollector(sink, 100, 3, time.Hour)
	c.Start(context.Background())

	for i := 0; i < 7; i++ {
		c.Track(SearchEvent{Query: fmt.Sprintf("q%d", i)})
	}
	require.Eventually(t, func() bool { return sink.total() == 6 }, time.Second, 5*time.Millisecond)

	c.Close()
	assert.Equal(t, 7, sink.total(), "close flushes the remainder")
	first := sink.batches[0][0]
	assert.Equal(t, string(EventSearch), first.Type)
	assert.Equal(t, "q0", first.Key)
}

func TestCollectorFlushesOnInterval(t *testing.T) {
	sink := &recordingSink{}
	c := NewCollector(sink, 100, 50, 20*time.Millisecond)
	c.Start(context.Background())
	defer c.Close()

	c.Track(ArticleViewEvent{ArticleID: "a1"})
	assert.Eventually(t, func() bool { return sink.total() == 1 }, time.Second, 5*time.Millisecond)
}

func TestCollectorFeedsAggregatorInProcess(t *testing.T) {
	agg := NewAggregator()
	ctx, cancel := context.WithCancel(context.Background())
	c := NewCollector(agg, 100, 10, time.Hour)
	c.Start(ctx)

	c.Track(SearchEvent{Query: "vpn", Results: 2})
	c.Track(ArticleViewEvent{ArticleID: "a1"})
	cancel()
	c.Close()

	s := agg.Stats()
	assert.Equal(t, int64(1), s.TotalSearches)
	assert.Equal(t, int64(1), s.TotalViews)
}

func TestCollectorDropsWhenFull(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker down")}
	c := NewCollector(sink, 2, 100, time.Hour)
	for i := 0; i < 5; i++ {
		c.Track(SearchEvent{Query: "q"})
	}
	assert.Len(t, c.eventCh, 2)
	c.Start(context.Background())
	c.Close()
	assert.Equal(t, 2, sink.total())
}

func TestHandlerTrimsRankedLists(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < 5; i++ {
		agg.Record(SearchEvent{Query: fmt.Sprintf("q%d", i), Results: 0, Timestamp: time.Now()})
		agg.Record(ArticleViewEvent{ArticleID: fmt.Sprintf("a%d", i), Timestamp: time.Now()})
	}
	h := NewHandler(agg)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(5), stats.TotalSearches)
	assert.Len(t, stats.TopQueries, 2)
	assert.Len(t, stats.ZeroResultQueries, 2)
	assert.Len(t, stats.TopArticles, 2)

	for _, bad := range []string{"0", "101", "many"} {
		rec = httptest.NewRecorder()
		h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top="+bad, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
		assert.Contains(t, rec.Body.String(), `"code":"invalid_input"`)
	}
}
