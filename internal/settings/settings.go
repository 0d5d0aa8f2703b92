// Package settings holds the runtime-replaceable knowledge base settings.
// Readers take an immutable snapshot; writers swap the whole struct.
package settings

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/article"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/config"
)

const maxResultCount = 1000

// Settings is one immutable version of the knowledge base settings.
type Settings struct {
	Version                 uint64       `json:"version"`
	SortBy                  article.Sort `json:"sort_by"`
	FeaturedArticlesCount   int          `json:"featured_articles_count"`
	NumTopResults           int          `json:"num_top_results"`
	IndexArticleBody        bool         `json:"index_article_body"`
	AllowVoting             bool         `json:"allow_voting"`
	AllowSuggestions        bool         `json:"allow_suggestions"`
	ArticleVersioning       bool         `json:"article_versioning"`
	UpdateViewCountLoggedIn bool         `json:"update_view_count_logged_in"`
}

// Defaults mirrors the config defaults.
func Defaults() Settings {
	return Settings{
		SortBy:                article.Sort{Field: article.SortViewCount, Order: article.Desc},
		FeaturedArticlesCount: 4,
		NumTopResults:         10,
		IndexArticleBody:      true,
		AllowVoting:           true,
		AllowSuggestions:      true,
		ArticleVersioning:     true,
	}
}

// FromConfig converts the kb section of the YAML config.
func FromConfig(cfg config.KBConfig) (Settings, error) {
	sortBy, err := article.ParseSort(cfg.SortBy.Field, cfg.SortBy.Order)
	if err != nil {
		return Settings{}, fmt.Errorf("kb.sortBy: %w", err)
	}
	s := Settings{
		SortBy:                  sortBy,
		FeaturedArticlesCount:   cfg.FeaturedArticlesCount,
		NumTopResults:           cfg.NumTopResults,
		IndexArticleBody:        cfg.IndexArticleBody,
		AllowVoting:             cfg.AllowVoting,
		AllowSuggestions:        cfg.AllowSuggestions,
		ArticleVersioning:       cfg.ArticleVersioning,
		UpdateViewCountLoggedIn: cfg.UpdateViewCountLoggedIn,
	}
	return s, s.Validate()
}

func (s Settings) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.FeaturedArticlesCount, validation.Min(0), validation.Max(maxResultCount)),
		validation.Field(&s.NumTopResults, validation.Min(0), validation.Max(maxResultCount)),
		validation.Field(&s.SortBy, validation.By(func(any) error {
			_, err := article.ParseSort(string(s.SortBy.Field), string(s.SortBy.Order))
			return err
		})),
	)
}

// Listener is notified after a replacement with the previous and new
// snapshots.
type Listener func(prev, next Settings)

// Store publishes the current Settings snapshot. Current is lock-free;
// Replace calls are serialised so versions increase by one per swap.
type Store struct {
	current   atomic.Pointer[Settings]
	mu        sync.Mutex
	listeners []Listener
	logger    *slog.Logger
}

func NewStore(initial Settings) (*Store, error) {
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("invalid initial settings: %w", err)
	}
	initial.Version = 1
	s := &Store{logger: slog.Default().With("component", "settings")}
	s.current.Store(&initial)
	return s, nil
}

// Current returns the snapshot in effect. Callers should read it once per
// operation so every decision in that operation sees the same version.
func (s *Store) Current() Settings {
	return *s.current.Load()
}

// Replace validates next and swaps it in. The Version of next is ignored
// and set to one past the current version.
func (s *Store) Replace(next Settings) (Settings, error) {
	if err := next.Validate(); err != nil {
		return Settings{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := *s.current.Load()
	next.Version = prev.Version + 1
	s.current.Store(&next)
	s.logger.Info("settings replaced", "version", next.Version)

	for _, l := range s.listeners {
		l(prev, next)
	}
	return next, nil
}

// Subscribe registers l for future replacements. Listeners run while
// Replace holds its lock and must not call Replace.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}
