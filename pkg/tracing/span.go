// Package tracing provides a lightweight span-based tracing system that
// propagates trace context through Go contexts. Spans form parent-child trees
// and are logged as structured records via slog when the root span finishes.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey string

const spanKey contextKey = "trace_span"

// Span represents a timed operation within a trace.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	Duration  time.Duration
	Err       error
	Children  []*Span
	Attrs     map[string]any
	root      bool
	mu        sync.Mutex
}

// StartSpan creates a new root span and stores it in the returned context.
func StartSpan(ctx context.Context, name string, traceID string) (context.Context, *Span) {
	span := &Span{
		Name:      name,
		TraceID:   traceID,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
		root:      true,
	}
	return context.WithValue(ctx, spanKey, span), span
}

// StartChildSpan creates a child span linked to the parent in ctx. Without a
// parent the child is detached and never logged.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	child := &Span{
		Name:      name,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
	}

	if parent != nil {
		child.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.Children = append(parent.Children, child)
		parent.mu.Unlock()
	}

	return context.WithValue(ctx, spanKey, child), child
}

// Finish records the duration and outcome. Finishing a root span logs the
// whole tree: at error level if any span failed, debug otherwise.
func (s *Span) Finish(err error) {
	s.mu.Lock()
	s.Duration = time.Since(s.StartTime)
	s.Err = err
	root := s.root
	s.mu.Unlock()
	if root {
		level := slog.LevelDebug
		if s.failed() {
			level = slog.LevelError
		}
		s.logRecursive(level, 0)
	}
}

// SetAttr attaches a key-value attribute to the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

// SpanFromContext extracts the current Span from ctx, or nil if none.
func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanKey).(*Span); ok {
		return span
	}
	return nil
}

func (s *Span) failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return true
	}
	for _, child := range s.Children {
		if child.failed() {
			return true
		}
	}
	return false
}

func (s *Span) logRecursive(level slog.Level, depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", s.Duration.Milliseconds(),
		"depth", depth,
	}
	if s.Err != nil {
		attrs = append(attrs, "error", s.Err.Error())
	}
	for k, v := range s.Attrs {
		attrs = append(attrs, k, v)
	}
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()
	slog.Log(context.Background(), level, "span", attrs...)

	for _, child := range children {
		child.logRecursive(level, depth+1)
	}
}
