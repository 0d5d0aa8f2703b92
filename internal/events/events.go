// Package events carries article lifecycle notifications between replicas.
// Every committed mutation is published to the article events topic; each
// replica consumes the topic in its own consumer group and applies foreign
// events to its local search index and cache.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/resilience"
)

type Type string

const (
	ArticleCreated Type = "article.created"
	ArticleUpdated Type = "article.updated"
	ArticleDeleted Type = "article.deleted"
	ArticleVoted   Type = "article.voted"
)

// ArticleEvent is the payload of one lifecycle notification. Origin is the
// instance ID of the replica that committed the write.
type ArticleEvent struct {
	Type       Type      `json:"type"`
	ArticleID  string    `json:"article_id"`
	Permalink  string    `json:"permalink,omitempty"`
	Origin     string    `json:"origin"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Sender is the producer side of the transport.
type Sender interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Publisher stamps and sends lifecycle events. A nil *Publisher, or one
// without a sender, drops events silently.
type Publisher struct {
	sender Sender
	origin string
	retry  resilience.RetryConfig
	now    func() time.Time
	logger *slog.Logger
}

func NewPublisher(sender Sender, origin string) *Publisher {
	return &Publisher{
		sender: sender,
		origin: origin,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     time.Second,
			Permanent: func(err error) bool {
				return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
			},
		},
		now:    time.Now,
		logger: slog.Default().With("component", "article-events"),
	}
}

// Publish sends one event, retrying transient broker failures. The write it
// describes has already committed, so callers log the error and move on.
func (p *Publisher) Publish(ctx context.Context, typ Type, articleID, permalink string) error {
	if p == nil || p.sender == nil {
		return nil
	}
	ev := ArticleEvent{
		Type:       typ,
		ArticleID:  articleID,
		Permalink:  permalink,
		Origin:     p.origin,
		OccurredAt: p.now().UTC(),
	}
	err := resilience.Retry(ctx, "publish-"+string(typ), p.retry, func() error {
		return p.sender.Publish(ctx, kafka.Event{Key: articleID, Type: string(typ), Value: ev})
	})
	if err != nil {
		return fmt.Errorf("publishing %s for %s: %w", typ, articleID, err)
	}
	return nil
}

// Origin is the instance ID stamped on published events.
func (p *Publisher) Origin() string {
	if p == nil {
		return ""
	}
	return p.origin
}
