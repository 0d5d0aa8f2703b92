package analytics

import "time"

type EventType string

const (
	EventSearch      EventType = "search"
	EventArticleView EventType = "article_view"
)

// SearchEvent describes one reader search.
type SearchEvent struct {
	Query     string    `json:"query"`
	Results   int       `json:"results"`
	LatencyMs int64     `json:"latency_ms"`
	Anonymous bool      `json:"anonymous"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// ArticleViewEvent describes one counted article view.
type ArticleViewEvent struct {
	ArticleID string    `json:"article_id"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is anything Track accepts.
type Event interface {
	eventType() EventType
	key() string
}

func (SearchEvent) eventType() EventType      { return EventSearch }
func (e SearchEvent) key() string             { return e.Query }
func (ArticleViewEvent) eventType() EventType { return EventArticleView }
func (e ArticleViewEvent) key() string        { return e.ArticleID }
