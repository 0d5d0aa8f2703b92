// Package health runs dependency checks for the liveness and readiness
// endpoints. Each registered Check runs concurrently under its own
// deadline; the report takes the worst status of any component.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

func (s Status) severity() int {
	switch s {
	case StatusUp:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

const (
	checkTimeout   = 2 * time.Second
	handlerTimeout = 5 * time.Second
)

// Check tests one dependency.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Checker reports not-ready until MarkReady is called, which the service
// does once the search index has been built.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]Check
	ready  atomic.Bool
	logger *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]Check),
		logger: slog.Default().With("component", "health"),
	}
}

func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	c.checks[name] = check
	c.mu.Unlock()
}

// PingCheck adapts a ping function into a Check. Failures of non-critical
// dependencies (cache, broker) degrade rather than fail the report.
func PingCheck(ping func(ctx context.Context) error, critical bool) Check {
	failed := StatusDegraded
	if critical {
		failed = StatusDown
	}
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: failed, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

func (c *Checker) MarkReady() {
	c.ready.Store(true)
}

// Run checks every registered dependency and aggregates the results.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	checks := make([]Check, 0, len(c.checks))
	for name, check := range c.checks {
		names = append(names, name)
		checks = append(checks, check)
	}
	c.mu.RUnlock()

	results := make([]ComponentHealth, len(checks))
	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			start := time.Now()
			results[i] = check(checkCtx)
			results[i].Latency = time.Since(start).Round(time.Millisecond).String()
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(results)+1),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if !c.ready.Load() {
		report.Components["startup"] = ComponentHealth{Status: StatusDown, Message: "index not built yet"}
	}
	for i, name := range names {
		report.Components[name] = results[i]
	}
	for name, comp := range report.Components {
		if comp.Status.severity() > report.Status.severity() {
			report.Status = comp.Status
		}
		if comp.Status == StatusDown {
			c.logger.Warn("component down", "name", name, "message", comp.Message)
		}
	}
	return report
}

// LiveHandler answers liveness requests. It never touches dependencies.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.write(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers readiness requests. A degraded report still answers
// 200 since reads keep working without cache or broker.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
		defer cancel()
		report := c.Run(ctx)
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		c.write(w, status, report)
	}
}

func (c *Checker) write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		c.logger.Error("writing health response", "error", err)
	}
}
