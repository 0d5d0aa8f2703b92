package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/article"
	apperrors "github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/kafka"
)

// Loader reads the authoritative copy of an article.
type Loader interface {
	FindOne(ctx context.Context, f article.Filter) (*article.Article, error)
}

// Index is the local search index a replica keeps in step.
type Index interface {
	Update(a *article.Article, expunge bool)
	Remove(id string)
}

// Invalidator drops cached search results.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Syncer applies lifecycle events committed by other replicas. The event
// only names the article; its current state is reloaded from the store so
// out-of-order delivery converges on what the store holds.
type Syncer struct {
	self   string
	loader Loader
	index  Index
	cache  Invalidator
	logger *slog.Logger
}

func NewSyncer(self string, loader Loader, index Index, cache Invalidator) *Syncer {
	return &Syncer{
		self:   self,
		loader: loader,
		index:  index,
		cache:  cache,
		logger: slog.Default().With("component", "article-sync"),
	}
}

// Handle is the kafka.MessageHandler for the article events topic.
func (s *Syncer) Handle(ctx context.Context, msg kafka.Message) error {
	ev, err := kafka.DecodeJSON[ArticleEvent](msg.Value)
	if err != nil {
		s.logger.Error("dropping undecodable article event", "error", err)
		return nil
	}
	if ev.Origin == s.self {
		return nil
	}
	if err := s.Apply(ctx, ev); err != nil {
		return err
	}
	s.logger.Debug("applied article event", "type", ev.Type, "article_id", ev.ArticleID, "origin", ev.Origin)
	return nil
}

// Apply brings the local index in line with the store for ev.ArticleID.
func (s *Syncer) Apply(ctx context.Context, ev ArticleEvent) error {
	if ev.ArticleID == "" {
		return nil
	}
	if ev.Type == ArticleDeleted {
		s.index.Remove(ev.ArticleID)
		return s.invalidate(ctx)
	}

	a, err := s.loader.FindOne(ctx, article.Filter{ID: ev.ArticleID})
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		s.index.Remove(ev.ArticleID)
	case err != nil:
		return fmt.Errorf("reloading article %s: %w", ev.ArticleID, err)
	case a.Versioned:
		return nil
	default:
		s.index.Update(a, false)
	}
	return s.invalidate(ctx)
}

func (s *Syncer) invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("search cache invalidation failed", "error", err)
	}
	return nil
}
