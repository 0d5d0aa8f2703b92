package main

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile(t *testing.T) {
	lat := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(lat, 50))
	assert.Equal(t, time.Duration(10), percentile(lat, 99))
	assert.Equal(t, time.Duration(1), percentile(lat, 0))
	assert.Zero(t, percentile(nil, 50))
}

func TestPickMix(t *testing.T) {
	counts := map[op]int{}
	for n := 0; n < 300; n++ {
		counts[pick(n)]++
	}
	assert.Equal(t, 30, counts[opTop])
	assert.Greater(t, counts[opSearch], counts[opView])
}

func TestRunLoadTestFollowsSearchResults(t *testing.T) {
	var views atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"articles":[{"id":"a1"},{"id":"a2"}],"count":2}`))
	})
	mux.HandleFunc("GET /api/v1/articles/top", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"articles":[],"count":0}`))
	})
	mux.HandleFunc("GET /api/v1/articles/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("X-Session-ID"))
		views.Add(1)
		w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	stats := runLoadTest(Config{BaseURL: srv.URL, Concurrency: 2, Duration: 200 * time.Millisecond, Queries: []string{"vpn"}})

	require.Positive(t, stats.ops[opSearch].total.Load())
	assert.Positive(t, views.Load())
	assert.Zero(t, stats.ops[opSearch].errors.Load())
	assert.Zero(t, stats.ops[opView].errors.Load())
}
