// Command loadtest drives reader traffic against a running knowledge base:
// a mix of searches, top-results listings and article views that follow
// the IDs returned by search.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:4444] [-concurrency 10] [-duration 30s]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type op string

const (
	opSearch op = "search"
	opTop    op = "top"
	opView   op = "view"
)

// Every tenth request is a top listing, every third a view of an article
// seen in an earlier search.
func pick(n int) op {
	switch {
	case n%10 == 0:
		return opTop
	case n%3 == 0:
		return opView
	default:
		return opSearch
	}
}

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Queries     []string
}

type opStats struct {
	total     atomic.Int64
	errors    atomic.Int64
	mu        sync.Mutex
	latencies []time.Duration
}

type Stats struct {
	ops         map[op]*opStats
	statusCodes map[int]*atomic.Int64
	codesMu     sync.Mutex

	seenMu sync.Mutex
	seen   []string
}

func NewStats() *Stats {
	return &Stats{
		ops: map[op]*opStats{
			opSearch: {latencies: make([]time.Duration, 0, 100000)},
			opTop:    {latencies: make([]time.Duration, 0, 10000)},
			opView:   {latencies: make([]time.Duration, 0, 50000)},
		},
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *Stats) Record(o op, d time.Duration, status int, err error) {
	st := s.ops[o]
	st.total.Add(1)
	if err != nil || status < 200 || status >= 300 {
		st.errors.Add(1)
	}
	if err != nil {
		return
	}
	st.mu.Lock()
	st.latencies = append(st.latencies, d)
	st.mu.Unlock()

	s.codesMu.Lock()
	if _, ok := s.statusCodes[status]; !ok {
		s.statusCodes[status] = &atomic.Int64{}
	}
	s.statusCodes[status].Add(1)
	s.codesMu.Unlock()
}

func (s *Stats) remember(ids []string) {
	if len(ids) == 0 {
		return
	}
	s.seenMu.Lock()
	if len(s.seen) < 1000 {
		s.seen = append(s.seen, ids...)
	}
	s.seenMu.Unlock()
}

func (s *Stats) seenID(n int) (string, bool) {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	if len(s.seen) == 0 {
		return "", false
	}
	return s.seen[n%len(s.seen)], true
}

func main() {
	baseURL := flag.String("url", "http://localhost:4444", "base URL of the knowledge base")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	flag.Parse()

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		Queries: []string{
			"vpn", "reset password", "printer offline", "wireless network",
			"email signature", "laptop backup", "install driver", "two factor",
			"shared drive", "monitor setup", "new starter", "expense claim",
		},
	}

	fmt.Println("=== Knowledge Base Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Println()

	stats := runLoadTest(cfg)
	if !printReport(stats, cfg.Duration) {
		os.Exit(1)
	}
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			// Each worker is one reader session so views are counted the
			// way real traffic would count them.
			session := uuid.NewString()
			for n := worker; ctx.Err() == nil; n++ {
				o := pick(n)
				var path string
				switch o {
				case opTop:
					path = "/api/v1/articles/top"
				case opView:
					id, ok := stats.seenID(n)
					if !ok {
						o = opSearch
						break
					}
					path = "/api/v1/articles/" + url.PathEscape(id)
				}
				if o == opSearch {
					path = "/api/v1/search?q=" + url.QueryEscape(cfg.Queries[n%len(cfg.Queries)])
				}
				do(ctx, client, cfg.BaseURL+path, session, o, stats)
			}
		}(w)
	}
	wg.Wait()
	return stats
}

func do(ctx context.Context, client *http.Client, target, session string, o op, stats *Stats) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		stats.Record(o, 0, 0, err)
		return
	}
	req.Header.Set("X-Session-ID", session)

	start := time.Now()
	resp, err := client.Do(req)
	d := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			stats.Record(o, d, 0, err)
		}
		return
	}
	defer resp.Body.Close()

	if o == opSearch && resp.StatusCode == http.StatusOK {
		var body struct {
			Articles []struct {
				ID string `json:"id"`
			} `json:"articles"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil {
			ids := make([]string, len(body.Articles))
			for i, a := range body.Articles {
				ids[i] = a.ID
			}
			stats.remember(ids)
		}
	}
	io.Copy(io.Discard, resp.Body)
	stats.Record(o, d, resp.StatusCode, nil)
}

func printReport(stats *Stats, duration time.Duration) bool {
	var total int64
	fmt.Println("=== Results ===")
	for _, o := range []op{opSearch, opTop, opView} {
		st := stats.ops[o]
		n := st.total.Load()
		total += n
		if n == 0 {
			continue
		}
		st.mu.Lock()
		lat := append([]time.Duration(nil), st.latencies...)
		st.mu.Unlock()
		sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })

		fmt.Printf("\n[%s]\n", o)
		fmt.Printf("  Requests:   %d (%.2f/s)\n", n, float64(n)/duration.Seconds())
		fmt.Printf("  Errors:     %d (%.2f%%)\n", st.errors.Load(), float64(st.errors.Load())/float64(n)*100)
		if len(lat) > 0 {
			fmt.Printf("  Latency:    p50 %s  p95 %s  p99 %s  max %s  stddev %s\n",
				percentile(lat, 50), percentile(lat, 95), percentile(lat, 99), lat[len(lat)-1], stddev(lat))
		}
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	stats.codesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code].Load())
	}
	stats.codesMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		return false
	}
	return true
}

func stddev(lat []time.Duration) time.Duration {
	var sum float64
	for _, l := range lat {
		sum += float64(l)
	}
	mean := sum / float64(len(lat))
	var sq float64
	for _, l := range lat {
		d := float64(l) - mean
		sq += d * d
	}
	return time.Duration(math.Sqrt(sq / float64(len(lat))))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
