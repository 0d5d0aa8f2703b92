// Package retrieval produces the article listings a reader sees: metric
// ordered listings straight from the store, and relevance ordered search
// results hydrated from the store. Access control is applied here at read
// time, whatever path led to the article.
package retrieval

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/article"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/settings"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/tracing"
)

const (
	maxVersions     = 20
	maxSearchLength = 500
	unlockTTL       = 10 * time.Minute
)

// Option tunes a Service.
type Option func(*Service)

// WithMaxQueryLength caps the length of a search term in bytes.
func WithMaxQueryLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxQuery = n
		}
	}
}

// WithSearchTimeout bounds each index lookup. Zero means no bound.
func WithSearchTimeout(d time.Duration) Option {
	return func(s *Service) { s.searchTimeout = d }
}

// Searcher returns ranked article IDs for a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]ranker.ScoredDoc, error)
}

type Service struct {
	store    store.Store
	searcher Searcher
	settings *settings.Store
	unlocks  *Unlocks
	metrics  *metrics.Metrics
	logger   *slog.Logger

	maxQuery      int
	searchTimeout time.Duration
}

func NewService(st store.Store, searcher Searcher, cfg *settings.Store, m *metrics.Metrics, opts ...Option) *Service {
	s := &Service{
		store:    st,
		searcher: searcher,
		settings: cfg,
		unlocks:  NewUnlocks(unlockTTL),
		metrics:  m,
		logger:   slog.Default().With("component", "retrieval"),
		maxQuery: maxSearchLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TopResults lists published articles in the configured metric order.
func (s *Service) TopResults(ctx context.Context, viewer article.Identity) ([]article.Summary, error) {
	cur := s.settings.Current()
	f := article.Filter{Published: article.Bool(true), Versioned: article.Bool(false)}
	return s.listing(ctx, viewer, f, cur.SortBy, cur.NumTopResults)
}

// FeaturedResults is TopResults restricted to featured articles.
func (s *Service) FeaturedResults(ctx context.Context, viewer article.Identity) ([]article.Summary, error) {
	cur := s.settings.Current()
	f := article.Filter{Published: article.Bool(true), Versioned: article.Bool(false), Featured: article.Bool(true)}
	return s.listing(ctx, viewer, f, cur.SortBy, cur.FeaturedArticlesCount)
}

func (s *Service) listing(ctx context.Context, viewer article.Identity, f article.Filter, sortBy article.Sort, limit int) ([]article.Summary, error) {
	if limit == 0 {
		return []article.Summary{}, nil
	}
	articles, err := s.store.Query(ctx, f, sortBy, limit)
	if err != nil {
		return nil, err
	}
	return summaries(Filtered(viewer, articles), nil), nil
}

// SearchQuery runs term through the index and hydrates the hits from the
// store, keeping the index's relevance order. Unpublished articles and
// snapshots are dropped even if the index still holds them.
func (s *Service) SearchQuery(ctx context.Context, viewer article.Identity, term string) ([]article.Summary, error) {
	ctx, span := tracing.StartChildSpan(ctx, "retrieval.search")
	hits, articles, err := s.searchAndHydrate(ctx, term, article.Filter{Published: article.Bool(true), Versioned: article.Bool(false)}, article.Sort{})
	span.SetAttr("hits", len(hits))
	span.Finish(err)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*article.Article, len(articles))
	for _, a := range Filtered(viewer, articles) {
		byID[a.ID] = a
	}
	out := make([]article.Summary, 0, len(byID))
	for _, hit := range hits {
		if a, ok := byID[hit.DocID]; ok {
			out = append(out, article.Summarize(a, hit.Score))
		}
	}
	logger.FromContext(ctx).Debug("search served",
		"query", term,
		"index_hits", len(hits),
		"returned", len(out),
	)
	return out, nil
}

func (s *Service) searchAndHydrate(ctx context.Context, term string, f article.Filter, sortBy article.Sort) ([]ranker.ScoredDoc, []*article.Article, error) {
	if len(term) > s.maxQuery {
		return nil, nil, apperrors.Invalid("query exceeds %d characters", s.maxQuery)
	}
	var hits []ranker.ScoredDoc
	err := resilience.WithTimeout(ctx, s.searchTimeout, "index search", func(ctx context.Context) error {
		var err error
		hits, err = s.searcher.Search(ctx, term)
		return err
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, nil, apperrors.Newf(apperrors.ErrTimeout, http.StatusGatewayTimeout, "search did not finish within %v", s.searchTimeout)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("searching index: %w", err)
	}
	if len(hits) == 0 {
		return hits, nil, nil
	}
	f.IDs = make([]string, len(hits))
	for i, h := range hits {
		f.IDs[i] = h.DocID
	}
	articles, err := s.store.Query(ctx, f, sortBy, 0)
	if err != nil {
		return nil, nil, err
	}
	return hits, articles, nil
}

// Fetch loads a published article by ID or permalink for viewer and counts
// the view. Password protected articles need a prior Unlock from the same
// session; private articles need a signed-in viewer.
func (s *Service) Fetch(ctx context.Context, idOrPermalink string, viewer article.Identity) (*article.Article, error) {
	a, err := s.store.FindOne(ctx, article.Filter{IDOrPermalink: idOrPermalink, Versioned: article.Bool(false)})
	if err != nil {
		return nil, err
	}
	if !a.Published {
		return nil, apperrors.ErrNotFound
	}
	// Private first: a viewer who is turned away keeps any unlock.
	if a.IsPrivate() && !viewer.Authenticated() {
		return nil, apperrors.ErrAccessDenied
	}
	if a.Protected() && !s.unlocks.Consume(viewer.SessionID, a.ID) {
		return nil, apperrors.ErrPasswordRequired
	}

	if !viewer.Authenticated() || s.settings.Current().UpdateViewCountLoggedIn {
		if err := s.store.IncrementViewCount(ctx, a.ID); err != nil {
			logger.FromContext(ctx).Warn("view count not updated", "article_id", a.ID, "error", err)
		} else {
			a.ViewCount++
			s.metrics.ArticleViewsTotal.Inc()
		}
	}
	return a, nil
}

// Unlock checks password against a published article and, when it matches,
// lets viewer's session read the article once.
func (s *Service) Unlock(ctx context.Context, idOrPermalink, password string, viewer article.Identity) error {
	a, err := s.store.FindOne(ctx, article.Filter{
		IDOrPermalink: idOrPermalink,
		Published:     article.Bool(true),
		Versioned:     article.Bool(false),
	})
	if err != nil {
		return err
	}
	if !a.Protected() {
		return nil
	}
	if viewer.SessionID == "" {
		return apperrors.Invalid("a session is required to unlock an article")
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(a.Password)) != 1 {
		logger.FromContext(ctx).Info("article unlock rejected", "article_id", a.ID)
		return apperrors.New(apperrors.ErrAccessDenied, http.StatusForbidden, "password incorrect")
	}
	s.unlocks.Grant(viewer.SessionID, a.ID)
	return nil
}

// Filtered drops what an anonymous viewer may not see in a listing:
// private and password protected articles. Signed-in viewers get articles
// back unchanged.
func Filtered(viewer article.Identity, articles []*article.Article) []*article.Article {
	if viewer.Authenticated() {
		return articles
	}
	out := make([]*article.Article, 0, len(articles))
	for _, a := range articles {
		if a.IsPrivate() || a.Protected() {
			continue
		}
		out = append(out, a)
	}
	return out
}

// ListArticles is the author listing: every live article, newest first.
func (s *Service) ListArticles(ctx context.Context, viewer article.Identity, limit int) ([]article.Summary, error) {
	if !viewer.Authenticated() {
		return nil, apperrors.ErrUnauthorized
	}
	articles, err := s.store.Query(ctx, article.Live(), article.Sort{Field: article.SortPublishedDate, Order: article.Desc}, limit)
	if err != nil {
		return nil, err
	}
	return summaries(articles, nil), nil
}

// ArticlesByTerm is the author search: it includes drafts and orders the
// matches newest first rather than by relevance.
func (s *Service) ArticlesByTerm(ctx context.Context, viewer article.Identity, term string) ([]article.Summary, error) {
	if !viewer.Authenticated() {
		return nil, apperrors.ErrUnauthorized
	}
	hits, articles, err := s.searchAndHydrate(ctx, term, article.Live(), article.Sort{Field: article.SortPublishedDate, Order: article.Desc})
	if err != nil {
		return nil, err
	}
	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		scores[h.DocID] = h.Score
	}
	return summaries(articles, scores), nil
}

// ForEdit loads any live article, published or not, for a signed-in author.
func (s *Service) ForEdit(ctx context.Context, viewer article.Identity, id string) (*article.Article, error) {
	if !viewer.Authenticated() {
		return nil, apperrors.ErrUnauthorized
	}
	return s.store.FindOne(ctx, article.Filter{ID: id, Versioned: article.Bool(false)})
}

// Versions returns the snapshots of parentID, newest first.
func (s *Service) Versions(ctx context.Context, viewer article.Identity, parentID string) ([]*article.Article, error) {
	if !viewer.Authenticated() {
		return nil, apperrors.ErrUnauthorized
	}
	snaps, err := s.store.Query(ctx, article.Filter{ParentID: parentID, Versioned: article.Bool(true)}, article.Sort{}, 0)
	if err != nil {
		return nil, err
	}
	out := make([]*article.Article, 0, min(len(snaps), maxVersions))
	for i := len(snaps) - 1; i >= 0 && len(out) < maxVersions; i-- {
		out = append(out, snaps[i])
	}
	return out, nil
}

// SitemapEntry is one public address.
type SitemapEntry struct {
	Path         string    `json:"path"`
	LastModified time.Time `json:"last_modified"`
}

// SitemapEntries lists every article an anonymous visitor can open.
func (s *Service) SitemapEntries(ctx context.Context) ([]SitemapEntry, error) {
	articles, err := s.store.Query(ctx, article.Filter{
		Published:           article.Bool(true),
		Versioned:           article.Bool(false),
		ExcludeVisibleState: article.Private,
	}, article.Sort{}, 0)
	if err != nil {
		return nil, err
	}
	out := make([]SitemapEntry, 0, len(articles))
	for _, a := range articles {
		if a.Protected() {
			continue
		}
		out = append(out, SitemapEntry{Path: a.Path(), LastModified: a.LastUpdated})
	}
	return out, nil
}

func summaries(articles []*article.Article, scores map[string]float64) []article.Summary {
	out := make([]article.Summary, len(articles))
	for i, a := range articles {
		out[i] = article.Summarize(a, scores[a.ID])
	}
	return out
}
