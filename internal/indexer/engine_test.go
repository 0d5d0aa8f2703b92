package indexer

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/article"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(indexBody *atomic.Bool) *Engine {
	if indexBody == nil {
		indexBody = &atomic.Bool{}
		indexBody.Store(true)
	}
	return NewEngine(ranker.DefaultBoosts(), indexBody.Load, metrics.New())
}

func ids(docs []ranker.ScoredDoc) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.DocID
	}
	return out
}

func TestSearchFindsArticleByTitle(t *testing.T) {
	e := newEngine(nil)
	require.NoError(t, e.Add(&article.Article{ID: "a1", Title: "Reset your VPN password"}))

	assert.Equal(t, []string{"a1"}, ids(e.Search("vpn")))
	assert.Equal(t, 1, e.DocCount())
}

func TestExactTitleAlwaysFindsArticle(t *testing.T) {
	e := newEngine(nil)
	titles := map[string]string{
		"printer": "Printer NOT printing",
		"email":   "Email NOT syncing",
		"c":       "C",
		"r":       "R",
		"what":    "What is this",
		"vpn":     "Reset your VPN password",
	}
	for id, title := range titles {
		require.NoError(t, e.Add(&article.Article{ID: id, Title: title}))
	}

	for id, title := range titles {
		assert.Contains(t, ids(e.Search(title)), id, "searching %q", title)
	}
}

func TestRemovedArticleIsNotReturned(t *testing.T) {
	e := newEngine(nil)
	require.NoError(t, e.Add(&article.Article{ID: "a1", Title: "Reset your VPN password"}))
	e.Remove("a1")
	e.Remove("a1")

	assert.Empty(t, e.Search("vpn"))
	assert.False(t, e.Contains("a1"))
}

func TestTitleMatchOutranksBodyMatch(t *testing.T) {
	e := newEngine(nil)
	require.NoError(t, e.Add(&article.Article{ID: "body", Title: "Account help", Body: "To reset a password open the settings page."}))
	require.NoError(t, e.Add(&article.Article{ID: "title", Title: "Password reset"}))

	assert.Equal(t, []string{"title", "body"}, ids(e.Search("password")))
}

func TestEmptyQueryReturnsNothing(t *testing.T) {
	e := newEngine(nil)
	require.NoError(t, e.Add(&article.Article{ID: "a1", Title: "Anything"}))

	for _, q := range []string{"", "   ", "\t\n"} {
		res := e.Search(q)
		assert.NotNil(t, res)
		assert.Empty(t, res)
	}
}

func TestAddTwiceReportsExistingDocument(t *testing.T) {
	e := newEngine(nil)
	a := &article.Article{ID: "a1", Title: "Printer"}
	require.NoError(t, e.Add(a))
	assert.ErrorIs(t, e.Add(a), index.ErrDocumentExists)
}

func TestUpdateReplacesTerms(t *testing.T) {
	e := newEngine(nil)
	require.NoError(t, e.Add(&article.Article{ID: "a1", Title: "Printer jams"}))
	e.Update(&article.Article{ID: "a1", Title: "Label maker"}, false)

	assert.Empty(t, e.Search("jams"))
	assert.Equal(t, []string{"a1"}, ids(e.Search("label")))
}

func TestMarkdownSyntaxIsNotIndexed(t *testing.T) {
	e := newEngine(nil)
	require.NoError(t, e.Add(&article.Article{
		ID:    "a1",
		Title: "Links",
		Body:  "See [the handbook](https://intranet.example.com/vpnsetup) for **details**.",
	}))

	assert.Equal(t, []string{"a1"}, ids(e.Search("handbook")))
	assert.Empty(t, e.Search("intranet"))
}

func TestBodyIndexingToggleAppliesOnRebuild(t *testing.T) {
	ctx := context.Background()
	var indexBody atomic.Bool
	e := newEngine(&indexBody)
	s := store.NewMemory()

	a := &article.Article{ID: "a1", Title: "Printer", Body: "Replace the toner cartridge", VisibleState: article.Public}
	_, err := s.Insert(ctx, a)
	require.NoError(t, err)
	require.NoError(t, e.Add(a))
	assert.Empty(t, e.Search("toner"))

	indexBody.Store(true)
	n, err := e.Rebuild(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"a1"}, ids(e.Search("toner")))
}

func TestRebuildSkipsSnapshotsAndKeepsDrafts(t *testing.T) {
	ctx := context.Background()
	e := newEngine(nil)
	s := store.NewMemory()
	for _, a := range []*article.Article{
		{ID: "live", Title: "Router guide", Published: true},
		{ID: "draft", Title: "Router draft"},
		{ID: "snap", Title: "Router guide", Versioned: true, ParentID: "live"},
	} {
		_, err := s.Insert(ctx, a)
		require.NoError(t, err)
	}

	n, err := e.Rebuild(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"live", "draft"}, ids(e.Search("router")))
}

func TestRebuildHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := newEngine(nil)
	s := store.NewMemory()
	_, err := s.Insert(ctx, &article.Article{ID: "a1", Title: "Kept"})
	require.NoError(t, err)
	require.NoError(t, e.Add(&article.Article{ID: "a1", Title: "Kept"}))

	cancel()
	_, err = e.Rebuild(ctx, s)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, e.Contains("a1"), "failed rebuild keeps the old index")
}

func TestVerifyReportsDrift(t *testing.T) {
	ctx := context.Background()
	e := newEngine(nil)
	s := store.NewMemory()
	for _, id := range []string{"a", "b"} {
		_, err := s.Insert(ctx, &article.Article{ID: id, Title: "Doc " + id})
		require.NoError(t, err)
	}
	require.NoError(t, e.Add(&article.Article{ID: "a", Title: "Doc a"}))
	require.NoError(t, e.Add(&article.Article{ID: "z", Title: "Orphan"}))

	drift, err := e.Verify(ctx, s)
	require.NoError(t, err)
	assert.False(t, drift.Clean())
	assert.Equal(t, []string{"b"}, drift.MissingFromIndex)
	assert.Equal(t, []string{"z"}, drift.Orphaned)
}

func TestSearchContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newEngine(nil).SearchContext(ctx, "anything")
	assert.ErrorIs(t, err, context.Canceled)
}
