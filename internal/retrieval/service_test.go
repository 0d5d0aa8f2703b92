package retrieval

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/article"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/settings"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSearcher []ranker.ScoredDoc

func (f fixedSearcher) Search(ctx context.Context, query string) ([]ranker.ScoredDoc, error) {
	if strings.TrimSpace(query) == "" {
		return []ranker.ScoredDoc{}, nil
	}
	return f, nil
}

var (
	anon   = article.Anonymous("sess-1")
	author = article.Identity{Name: "Ada", Email: "ada@example.com", SessionID: "sess-2"}
)

type fixture struct {
	svc      *Service
	store    *store.Memory
	settings *settings.Store
}

func newFixture(t *testing.T, hits ...ranker.ScoredDoc) *fixture {
	t.Helper()
	cfg, err := settings.NewStore(settings.Defaults())
	require.NoError(t, err)
	st := store.NewMemory()
	return &fixture{
		svc:      NewService(st, fixedSearcher(hits), cfg, metrics.New()),
		store:    st,
		settings: cfg,
	}
}

func (f *fixture) seed(t *testing.T, a article.Article) string {
	t.Helper()
	if a.VisibleState == "" {
		a.VisibleState = article.Public
	}
	if a.PublishedDate.IsZero() {
		a.PublishedDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	id, err := f.store.Insert(context.Background(), &a)
	require.NoError(t, err)
	return id
}

func summaryIDs(s []article.Summary) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[i] = v.ID
	}
	return out
}

func TestTopResultsOrdersByConfiguredMetric(t *testing.T) {
	f := newFixture(t)
	f.seed(t, article.Article{ID: "X", Title: "X", Published: true, ViewCount: 10})
	f.seed(t, article.Article{ID: "Y", Title: "Y", Published: true, ViewCount: 50})
	f.seed(t, article.Article{ID: "Z", Title: "Z", Published: true, ViewCount: 5})
	f.seed(t, article.Article{ID: "draft", Title: "draft", ViewCount: 500})
	f.seed(t, article.Article{ID: "snap", Title: "snap", Published: true, Versioned: true, ParentID: "X", ViewCount: 900})

	got, err := f.svc.TopResults(context.Background(), anon)
	require.NoError(t, err)
	assert.Equal(t, []string{"Y", "X", "Z"}, summaryIDs(got))
}

func TestTopResultsHonoursLimitAndSort(t *testing.T) {
	f := newFixture(t)
	f.seed(t, article.Article{ID: "a", Title: "Alpha", Published: true, VoteCount: 3})
	f.seed(t, article.Article{ID: "b", Title: "Bravo", Published: true, VoteCount: 9})
	f.seed(t, article.Article{ID: "c", Title: "Charlie", Published: true, VoteCount: 1})

	next := f.settings.Current()
	next.NumTopResults = 2
	next.SortBy = article.Sort{Field: article.SortVoteCount, Order: article.Desc}
	_, err := f.settings.Replace(next)
	require.NoError(t, err)

	got, err := f.svc.TopResults(context.Background(), anon)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, summaryIDs(got))
}

func TestFeaturedResults(t *testing.T) {
	f := newFixture(t)
	for i, vc := range []int64{1, 2, 3, 4, 5, 6} {
		f.seed(t, article.Article{ID: string(rune('a' + i)), Title: "t", Published: true, Featured: true, ViewCount: vc})
	}
	f.seed(t, article.Article{ID: "plain", Title: "t", Published: true, ViewCount: 100})

	got, err := f.svc.FeaturedResults(context.Background(), anon)
	require.NoError(t, err)
	assert.Equal(t, []string{"f", "e", "d", "c"}, summaryIDs(got))
}

func TestSearchQueryKeepsIndexOrder(t *testing.T) {
	f := newFixture(t,
		ranker.ScoredDoc{DocID: "low-views", Score: 9},
		ranker.ScoredDoc{DocID: "unpublished", Score: 8},
		ranker.ScoredDoc{DocID: "gone", Score: 7},
		ranker.ScoredDoc{DocID: "high-views", Score: 6},
		ranker.ScoredDoc{DocID: "snap", Score: 5},
	)
	f.seed(t, article.Article{ID: "high-views", Title: "a", Published: true, ViewCount: 1000})
	f.seed(t, article.Article{ID: "low-views", Title: "b", Published: true, ViewCount: 1})
	f.seed(t, article.Article{ID: "unpublished", Title: "c"})
	f.seed(t, article.Article{ID: "snap", Title: "d", Published: true, Versioned: true, ParentID: "low-views"})

	got, err := f.svc.SearchQuery(context.Background(), anon, "anything")
	require.NoError(t, err)
	assert.Equal(t, []string{"low-views", "high-views"}, summaryIDs(got))
	assert.Equal(t, 9.0, got[0].Score)
}

func TestSearchQueryWithholdsRestrictedFromAnonymous(t *testing.T) {
	f := newFixture(t,
		ranker.ScoredDoc{DocID: "private", Score: 3},
		ranker.ScoredDoc{DocID: "protected", Score: 2},
		ranker.ScoredDoc{DocID: "open", Score: 1},
	)
	f.seed(t, article.Article{ID: "private", Title: "a", Published: true, VisibleState: article.Private})
	f.seed(t, article.Article{ID: "protected", Title: "b", Published: true, Password: "hunter2"})
	f.seed(t, article.Article{ID: "open", Title: "c", Published: true})

	got, err := f.svc.SearchQuery(context.Background(), anon, "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"open"}, summaryIDs(got))

	got, err = f.svc.SearchQuery(context.Background(), author, "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"private", "protected", "open"}, summaryIDs(got))
}

func TestSearchQueryRejectsOverlongQuery(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SearchQuery(context.Background(), anon, strings.Repeat("x", maxSearchLength+1))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestEmptySearchReturnsEmpty(t *testing.T) {
	f := newFixture(t, ranker.ScoredDoc{DocID: "a", Score: 1})
	f.seed(t, article.Article{ID: "a", Title: "a", Published: true})

	got, err := f.svc.SearchQuery(context.Background(), anon, "  ")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFetchAccessControl(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, article.Article{ID: "draft", Title: "d"})
	f.seed(t, article.Article{ID: "snap", Title: "s", Published: true, Versioned: true, ParentID: "open"})
	f.seed(t, article.Article{ID: "open", Title: "o", Published: true, Permalink: "open-link"})
	f.seed(t, article.Article{ID: "private", Title: "p", Published: true, VisibleState: article.Private})

	_, err := f.svc.Fetch(ctx, "draft", author)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = f.svc.Fetch(ctx, "snap", author)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = f.svc.Fetch(ctx, "missing", anon)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.Fetch(ctx, "private", anon)
	assert.ErrorIs(t, err, apperrors.ErrAccessDenied)
	got, err := f.svc.Fetch(ctx, "private", author)
	require.NoError(t, err)
	assert.Equal(t, "private", got.ID)

	got, err = f.svc.Fetch(ctx, "open-link", anon)
	require.NoError(t, err)
	assert.Equal(t, "open", got.ID)
}

func TestPasswordUnlockIsSingleUsePerSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, article.Article{ID: "locked", Title: "l", Published: true, Password: "hunter2"})

	_, err := f.svc.Fetch(ctx, "locked", anon)
	assert.ErrorIs(t, err, apperrors.ErrPasswordRequired)

	err = f.svc.Unlock(ctx, "locked", "wrong", anon)
	assert.ErrorIs(t, err, apperrors.ErrAccessDenied)

	require.NoError(t, f.svc.Unlock(ctx, "locked", "hunter2", anon))
	_, err = f.svc.Fetch(ctx, "locked", article.Anonymous("other-session"))
	assert.ErrorIs(t, err, apperrors.ErrPasswordRequired)

	_, err = f.svc.Fetch(ctx, "locked", anon)
	require.NoError(t, err)
	_, err = f.svc.Fetch(ctx, "locked", anon)
	assert.ErrorIs(t, err, apperrors.ErrPasswordRequired)
}

func TestPrivateRejectionKeepsUnlock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, article.Article{ID: "hr", Title: "h", Published: true, Password: "hunter2", VisibleState: article.Private})

	require.NoError(t, f.svc.Unlock(ctx, "hr", "hunter2", anon))
	_, err := f.svc.Fetch(ctx, "hr", anon)
	assert.ErrorIs(t, err, apperrors.ErrAccessDenied)

	signedIn := article.Identity{Name: "Ann", Email: "ann@example.com", SessionID: anon.SessionID}
	_, err = f.svc.Fetch(ctx, "hr", signedIn)
	require.NoError(t, err, "the unlock survives the private rejection")
	_, err = f.svc.Fetch(ctx, "hr", signedIn)
	assert.ErrorIs(t, err, apperrors.ErrPasswordRequired)
}

func TestViewCounting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, article.Article{ID: "a", Title: "a", Published: true})

	got, err := f.svc.Fetch(ctx, "a", anon)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ViewCount)

	_, err = f.svc.Fetch(ctx, "a", author)
	require.NoError(t, err)
	stored, err := f.store.FindOne(ctx, article.Filter{ID: "a"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ViewCount, "signed-in views are not counted by default")

	next := f.settings.Current()
	next.UpdateViewCountLoggedIn = true
	_, err = f.settings.Replace(next)
	require.NoError(t, err)

	_, err = f.svc.Fetch(ctx, "a", author)
	require.NoError(t, err)
	stored, err = f.store.FindOne(ctx, article.Filter{ID: "a"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.ViewCount)
}

func TestAuthorListings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ranker.ScoredDoc{DocID: "old", Score: 5}, ranker.ScoredDoc{DocID: "new", Score: 1})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.seed(t, article.Article{ID: "old", Title: "o", PublishedDate: base})
	f.seed(t, article.Article{ID: "new", Title: "n", Published: true, PublishedDate: base.Add(time.Hour)})
	f.seed(t, article.Article{ID: "snap", Title: "s", Versioned: true, ParentID: "old", PublishedDate: base.Add(2 * time.Hour)})

	_, err := f.svc.ListArticles(ctx, anon, 0)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	all, err := f.svc.ListArticles(ctx, author, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "old"}, summaryIDs(all))

	byTerm, err := f.svc.ArticlesByTerm(ctx, author, "anything")
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "old"}, summaryIDs(byTerm))
	assert.Equal(t, 5.0, byTerm[1].Score)

	draft, err := f.svc.ForEdit(ctx, author, "old")
	require.NoError(t, err)
	assert.False(t, draft.Published)
}

func TestVersionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, article.Article{ID: "live", Title: "v3", Published: true})
	for _, id := range []string{"s1", "s2", "s3"} {
		f.seed(t, article.Article{ID: id, Title: id, Versioned: true, ParentID: "live"})
	}
	f.seed(t, article.Article{ID: "other", Title: "x", Versioned: true, ParentID: "elsewhere"})

	got, err := f.svc.Versions(ctx, author, "live")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"s3", "s2", "s1"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestSitemapEntries(t *testing.T) {
	f := newFixture(t)
	f.seed(t, article.Article{ID: "a", Title: "a", Published: true, Permalink: "nice-link"})
	f.seed(t, article.Article{ID: "b", Title: "b", Published: true})
	f.seed(t, article.Article{ID: "c", Title: "c", Published: true, VisibleState: article.Private})
	f.seed(t, article.Article{ID: "d", Title: "d", Published: true, Password: "pw"})
	f.seed(t, article.Article{ID: "e", Title: "e"})

	got, err := f.svc.SitemapEntries(context.Background())
	require.NoError(t, err)
	paths := make([]string, len(got))
	for i, e := range got {
		paths[i] = e.Path
	}
	assert.Equal(t, []string{"nice-link", "b"}, paths)
}

func TestUnlockExpires(t *testing.T) {
	u := NewUnlocks(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	u.now = func() time.Time { return now }

	u.Grant("s", "a")
	now = now.Add(2 * time.Minute)
	assert.False(t, u.Consume("s", "a"))
}

type slowSearcher struct{}

func (slowSearcher) Search(ctx context.Context, query string) ([]ranker.ScoredDoc, error) {
	select {
	case <-time.After(time.Second):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestSearchOptions(t *testing.T) {
	cfg, err := settings.NewStore(settings.Defaults())
	require.NoError(t, err)

	svc := NewService(store.NewMemory(), fixedSearcher(nil), cfg, metrics.New(), WithMaxQueryLength(5))
	_, err = svc.SearchQuery(context.Background(), anon, "abcdef")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	svc = NewService(store.NewMemory(), slowSearcher{}, cfg, metrics.New(), WithSearchTimeout(20*time.Millisecond))
	_, err = svc.SearchQuery(context.Background(), anon, "vpn")
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
}
