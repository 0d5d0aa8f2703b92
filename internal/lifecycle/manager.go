// Package lifecycle owns every article mutation. Each write goes to the
// document store first and then to the search index, in that order, with no
// rollback: a failure after the store commit is reported as a
// PartialWriteError so callers can tell it apart from a rejected request.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/article"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/settings"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/tracing"
)

const suggestionSuffix = " (SUGGESTION)"

// Index is the search index side of a write.
type Index interface {
	Add(a *article.Article) error
	Update(a *article.Article, expunge bool)
	Remove(id string)
}

// Invalidator drops cached search results after a committed write.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Manager struct {
	store     store.Store
	index     Index
	settings  *settings.Store
	cache     Invalidator
	publisher *events.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    *slog.Logger
}

// NewManager wires the write path. cache and publisher may be nil.
func NewManager(st store.Store, idx Index, cfg *settings.Store, cache Invalidator, pub *events.Publisher, m *metrics.Metrics) *Manager {
	return &Manager{
		store:     st,
		index:     idx,
		settings:  cfg,
		cache:     cache,
		publisher: pub,
		metrics:   m,
		now:       time.Now,
		logger:    slog.Default().With("component", "lifecycle"),
	}
}

// Create inserts a new article authored by who and indexes it.
func (m *Manager) Create(ctx context.Context, who article.Identity, f article.Fields) (a *article.Article, err error) {
	ctx, span := tracing.StartChildSpan(ctx, "lifecycle.create")
	defer func() { m.finish(span, "create", err) }()

	if !who.Authenticated() {
		return nil, apperrors.ErrUnauthorized
	}
	if err := prepare(&f); err != nil {
		return nil, err
	}
	if err := m.checkPermalink(ctx, f.Permalink, ""); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	a = &article.Article{
		Title:          f.Title,
		Body:           f.Body,
		Permalink:      f.Permalink,
		Keywords:       f.Keywords,
		Published:      f.Published,
		VisibleState:   f.VisibleState,
		Password:       f.Password,
		Featured:       f.Featured,
		Author:         who.Name,
		AuthorEmail:    who.Email,
		PublishedDate:  now,
		LastUpdated:    now,
		LastUpdateUser: updateUser(who),
	}
	if err := m.insertAndIndex(ctx, "create", a); err != nil {
		return nil, err
	}
	m.committed(ctx, events.ArticleCreated, a)
	return a, nil
}

// Suggest stores an anonymous suggestion as an unpublished article for an
// author to review.
func (m *Manager) Suggest(ctx context.Context, who article.Identity, f article.Fields) (a *article.Article, err error) {
	ctx, span := tracing.StartChildSpan(ctx, "lifecycle.suggest")
	defer func() { m.finish(span, "suggest", err) }()

	if !m.settings.Current().AllowSuggestions {
		return nil, apperrors.ErrSuggestionsOff
	}
	if err := prepare(&f); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	a = &article.Article{
		Title:         f.Title + suggestionSuffix,
		Body:          f.Body,
		Keywords:      f.Keywords,
		VisibleState:  article.Public,
		PublishedDate: now,
		LastUpdated:   now,
	}
	if who.Authenticated() {
		a.Author = who.Name
		a.AuthorEmail = who.Email
	}
	if err := m.insertAndIndex(ctx, "suggest", a); err != nil {
		return nil, err
	}
	m.committed(ctx, events.ArticleCreated, a)
	return a, nil
}

func (m *Manager) insertAndIndex(ctx context.Context, op string, a *article.Article) error {
	id, err := m.store.Insert(ctx, a)
	if err != nil {
		return err
	}
	a.ID = id
	err = m.index.Add(a)
	if errors.Is(err, index.ErrDocumentExists) {
		// A rebuild between the insert and the add already read this row.
		m.index.Update(a, false)
		return nil
	}
	if err != nil {
		return m.partial(ctx, op, StepIndex, id, err)
	}
	return nil
}

// Save applies f to the live article id. Author, author email and published
// date keep their first values. With versioning on, a snapshot of the new
// content is stored after the live update.
func (m *Manager) Save(ctx context.Context, who article.Identity, id string, f article.Fields) (a *article.Article, err error) {
	ctx, span := tracing.StartChildSpan(ctx, "lifecycle.save")
	span.SetAttr("article_id", id)
	defer func() { m.finish(span, "save", err) }()

	if !who.Authenticated() {
		return nil, apperrors.ErrUnauthorized
	}
	if err := prepare(&f); err != nil {
		return nil, err
	}
	if err := m.checkPermalink(ctx, f.Permalink, id); err != nil {
		return nil, err
	}
	current, err := m.store.FindOne(ctx, article.Filter{ID: id, Versioned: article.Bool(false)})
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	author, email, published := current.Author, current.AuthorEmail, current.PublishedDate
	if author == "" {
		author = who.Name
	}
	if email == "" {
		email = who.Email
	}
	if published.IsZero() {
		published = now
	}
	lastUser := updateUser(who)
	patch := article.Patch{
		Title:          &f.Title,
		Body:           &f.Body,
		Permalink:      &f.Permalink,
		Keywords:       &f.Keywords,
		Published:      &f.Published,
		Featured:       &f.Featured,
		VisibleState:   &f.VisibleState,
		Password:       &f.Password,
		Author:         &author,
		AuthorEmail:    &email,
		PublishedDate:  &published,
		LastUpdated:    &now,
		LastUpdateUser: &lastUser,
	}
	n, err := m.store.Update(ctx, article.Filter{ID: id, Versioned: article.Bool(false)}, patch)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, apperrors.ErrNotFound
	}
	a = current.Clone()
	patch.Apply(a)

	m.index.Update(a, false)

	if m.settings.Current().ArticleVersioning {
		snap := a.Clone()
		snap.ID = ""
		snap.Published = false
		snap.Versioned = true
		snap.ParentID = id
		snap.EditReason = f.EditReason
		snap.ViewCount, snap.VoteCount = 0, 0
		if _, err := m.store.Insert(ctx, snap); err != nil {
			m.committed(ctx, events.ArticleUpdated, a)
			return a, m.partial(ctx, "save", StepSnapshot, id, err)
		}
	}
	m.committed(ctx, events.ArticleUpdated, a)
	return a, nil
}

// Delete removes the live article and its index entry. Snapshots of it are
// left in place.
func (m *Manager) Delete(ctx context.Context, who article.Identity, id string) (err error) {
	ctx, span := tracing.StartChildSpan(ctx, "lifecycle.delete")
	span.SetAttr("article_id", id)
	defer func() { m.finish(span, "delete", err) }()

	if !who.IsAdmin {
		return apperrors.ErrAccessDenied
	}
	n, err := m.store.Remove(ctx, article.Filter{ID: id, Versioned: article.Bool(false)})
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	m.index.Remove(id)
	m.committed(ctx, events.ArticleDeleted, &article.Article{ID: id})
	return nil
}

// SetPublished flips the published flag. The index entry is unaffected;
// readers filter on the flag at hydration.
func (m *Manager) SetPublished(ctx context.Context, who article.Identity, id string, published bool) error {
	return m.patchLive(ctx, who, "set_published", id, article.Patch{Published: &published})
}

func (m *Manager) ResetViewCount(ctx context.Context, who article.Identity, id string) error {
	var zero int64
	return m.patchLive(ctx, who, "reset_views", id, article.Patch{ViewCount: &zero})
}

func (m *Manager) ResetVoteCount(ctx context.Context, who article.Identity, id string) error {
	var zero int64
	return m.patchLive(ctx, who, "reset_votes", id, article.Patch{VoteCount: &zero})
}

func (m *Manager) patchLive(ctx context.Context, who article.Identity, op, id string, p article.Patch) (err error) {
	ctx, span := tracing.StartChildSpan(ctx, "lifecycle."+op)
	span.SetAttr("article_id", id)
	defer func() { m.finish(span, op, err) }()

	if !who.IsAdmin {
		return apperrors.ErrAccessDenied
	}
	n, err := m.store.Update(ctx, article.Filter{ID: id, Versioned: article.Bool(false)}, p)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	m.publish(ctx, events.ArticleUpdated, id, "")
	return nil
}

// Vote records one vote per (article, session). A repeat vote fails with
// ErrAlreadyVoted and leaves the count alone.
func (m *Manager) Vote(ctx context.Context, who article.Identity, id string, dir article.Direction) (err error) {
	ctx, span := tracing.StartChildSpan(ctx, "lifecycle.vote")
	span.SetAttr("article_id", id)
	defer func() {
		m.finish(span, "vote", err)
		m.metrics.VotesTotal.WithLabelValues(dir.String(), outcome(err)).Inc()
	}()

	if !m.settings.Current().AllowVoting {
		return apperrors.ErrVotingDisabled
	}
	if who.SessionID == "" {
		return apperrors.Invalid("a session is required to vote")
	}
	if dir != article.Upvote && dir != article.Downvote {
		return apperrors.Invalid("unknown vote direction %d", dir)
	}
	err = m.store.RecordVote(ctx, article.Vote{
		ArticleID: id,
		SessionID: who.SessionID,
		Direction: dir,
		CreatedAt: m.now().UTC(),
	})
	if err != nil {
		return err
	}
	m.publish(ctx, events.ArticleVoted, id, "")
	return nil
}

func (m *Manager) checkPermalink(ctx context.Context, permalink, self string) error {
	if permalink == "" {
		return nil
	}
	n, err := m.store.Count(ctx, article.Filter{
		Permalink: permalink,
		ExcludeID: self,
		Versioned: article.Bool(false),
	})
	if err != nil {
		return err
	}
	if n > 0 {
		return apperrors.ErrDuplicatePermalink
	}
	return nil
}

// committed runs the best-effort tail of a successful write.
func (m *Manager) committed(ctx context.Context, typ events.Type, a *article.Article) {
	if m.cache != nil {
		if err := m.cache.Invalidate(ctx); err != nil {
			logger.FromContext(ctx).Warn("search cache not invalidated", "article_id", a.ID, "error", err)
		}
	}
	m.publish(ctx, typ, a.ID, a.Permalink)
}

func (m *Manager) publish(ctx context.Context, typ events.Type, id, permalink string) {
	if err := m.publisher.Publish(ctx, typ, id, permalink); err != nil {
		logger.FromContext(ctx).Error("article event not published", "type", typ, "article_id", id, "error", err)
	}
}

func (m *Manager) partial(ctx context.Context, op, step, id string, err error) error {
	m.metrics.IndexDesyncTotal.WithLabelValues(op, step).Inc()
	logger.FromContext(ctx).Error("partial write: store committed, follow-up failed",
		"op", op,
		"step", step,
		"article_id", id,
		"error", err,
	)
	return &PartialWriteError{Op: op, Step: step, ArticleID: id, Err: err}
}

func (m *Manager) finish(span *tracing.Span, op string, err error) {
	span.Finish(err)
	m.metrics.LifecycleOpsTotal.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsPartial(err):
		return "partial"
	case errors.Is(err, apperrors.ErrStoreFailure):
		return "error"
	default:
		return "rejected"
	}
}

func prepare(f *article.Fields) error {
	f.Normalize()
	if err := f.Validate(); err != nil {
		return apperrors.Invalid("%v", err)
	}
	return nil
}

func updateUser(who article.Identity) string {
	return fmt.Sprintf("%s - %s", who.Name, who.Email)
}
