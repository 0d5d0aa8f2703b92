package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/article"
	apperrors "github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runContract exercises the behaviour every Store backend must share.
// newStore must return an empty store.
func runContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	seed := func(t *testing.T, s Store, a article.Article) string {
		t.Helper()
		if a.VisibleState == "" {
			a.VisibleState = article.Public
		}
		if a.PublishedDate.IsZero() {
			a.PublishedDate = base
			a.LastUpdated = base
		}
		id, err := s.Insert(ctx, &a)
		require.NoError(t, err)
		return id
	}

	t.Run("InsertAssignsIDAndFindOne", func(t *testing.T) {
		s := newStore(t)
		id := seed(t, s, article.Article{Title: "Install guide", Permalink: "install", Published: true})
		require.NotEmpty(t, id)

		got, err := s.FindOne(ctx, article.Filter{ID: id})
		require.NoError(t, err)
		assert.Equal(t, "Install guide", got.Title)

		byLink, err := s.FindOne(ctx, article.Filter{IDOrPermalink: "install"})
		require.NoError(t, err)
		assert.Equal(t, id, byLink.ID)

		_, err = s.FindOne(ctx, article.Filter{ID: "missing"})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("DuplicateLivePermalinkRejected", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, article.Article{Title: "a", Permalink: "same"})
		_, err := s.Insert(ctx, &article.Article{Title: "b", Permalink: "same", VisibleState: article.Public, PublishedDate: base, LastUpdated: base})
		assert.ErrorIs(t, err, apperrors.ErrDuplicatePermalink)

		// snapshots and empty permalinks are exempt
		seed(t, s, article.Article{Title: "snap", Permalink: "same", Versioned: true})
		seed(t, s, article.Article{Title: "c"})
		seed(t, s, article.Article{Title: "d"})
		n, err := s.Count(ctx, article.Filter{})
		require.NoError(t, err)
		assert.EqualValues(t, 4, n)
	})

	t.Run("QuerySortsAndLimits", func(t *testing.T) {
		s := newStore(t)
		x := seed(t, s, article.Article{Title: "X", Published: true, ViewCount: 10})
		y := seed(t, s, article.Article{Title: "Y", Published: true, ViewCount: 50})
		z := seed(t, s, article.Article{Title: "Z", Published: true, ViewCount: 5})
		seed(t, s, article.Article{Title: "hidden", Published: false, ViewCount: 99})

		got, err := s.Query(ctx, article.Filter{Published: article.Bool(true)},
			article.Sort{Field: article.SortViewCount, Order: article.Desc}, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{y, x, z}, ids(got))

		got, err = s.Query(ctx, article.Filter{Published: article.Bool(true)},
			article.Sort{Field: article.SortViewCount, Order: article.Desc}, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{y, x}, ids(got))
	})

	t.Run("QueryWithoutSortKeepsInsertionOrder", func(t *testing.T) {
		s := newStore(t)
		var want []string
		for i := 0; i < 5; i++ {
			want = append(want, seed(t, s, article.Article{Title: fmt.Sprintf("doc %d", i)}))
		}
		got, err := s.Query(ctx, article.Filter{}, article.Sort{}, 0)
		require.NoError(t, err)
		assert.Equal(t, want, ids(got))
	})

	t.Run("FilterPredicates", func(t *testing.T) {
		s := newStore(t)
		a := seed(t, s, article.Article{Title: "Reset Password", Published: true, Featured: true})
		b := seed(t, s, article.Article{Title: "Private notes", Published: true, VisibleState: article.Private})
		seed(t, s, article.Article{Title: "Reset Password v1", Versioned: true, ParentID: a})

		got, err := s.Query(ctx, article.Filter{IDs: []string{a, b}, ExcludeID: b}, article.Sort{}, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{a}, ids(got))

		got, err = s.Query(ctx, article.Filter{IDs: []string{}}, article.Sort{}, 0)
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = s.Query(ctx, article.Filter{TitleContains: "password", Versioned: article.Bool(false)}, article.Sort{}, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{a}, ids(got))

		got, err = s.Query(ctx, article.Filter{ExcludeVisibleState: article.Private, Published: article.Bool(true)}, article.Sort{}, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{a}, ids(got))

		got, err = s.Query(ctx, article.Filter{ParentID: a, Versioned: article.Bool(true)}, article.Sort{}, 0)
		require.NoError(t, err)
		assert.Len(t, got, 1)

		n, err := s.Count(ctx, article.Filter{Featured: article.Bool(true)})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})

	t.Run("UpdateAppliesPatch", func(t *testing.T) {
		s := newStore(t)
		id := seed(t, s, article.Article{Title: "old", Body: "keep", ViewCount: 7})
		other := seed(t, s, article.Article{Title: "other", Permalink: "taken"})

		title := "new"
		zero := int64(0)
		n, err := s.Update(ctx, article.Filter{ID: id}, article.Patch{Title: &title, ViewCount: &zero})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		got, err := s.FindOne(ctx, article.Filter{ID: id})
		require.NoError(t, err)
		assert.Equal(t, "new", got.Title)
		assert.Equal(t, "keep", got.Body)
		assert.Zero(t, got.ViewCount)

		taken := "taken"
		_, err = s.Update(ctx, article.Filter{ID: id}, article.Patch{Permalink: &taken})
		assert.ErrorIs(t, err, apperrors.ErrDuplicatePermalink)

		// an article may keep its own permalink
		_, err = s.Update(ctx, article.Filter{ID: other}, article.Patch{Permalink: &taken})
		assert.NoError(t, err)

		n, err = s.Update(ctx, article.Filter{ID: "missing"}, article.Patch{Title: &title})
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("RemoveLeavesSnapshots", func(t *testing.T) {
		s := newStore(t)
		id := seed(t, s, article.Article{Title: "parent"})
		seed(t, s, article.Article{Title: "parent v1", Versioned: true, ParentID: id})

		n, err := s.Remove(ctx, article.Filter{ID: id})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		snaps, err := s.Query(ctx, article.Filter{ParentID: id}, article.Sort{}, 0)
		require.NoError(t, err)
		assert.Len(t, snaps, 1)

		n, err = s.Remove(ctx, article.Filter{ID: id})
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("IncrementViewCount", func(t *testing.T) {
		s := newStore(t)
		id := seed(t, s, article.Article{Title: "viewed"})
		require.NoError(t, s.IncrementViewCount(ctx, id))
		require.NoError(t, s.IncrementViewCount(ctx, id))
		got, err := s.FindOne(ctx, article.Filter{ID: id})
		require.NoError(t, err)
		assert.EqualValues(t, 2, got.ViewCount)

		assert.ErrorIs(t, s.IncrementViewCount(ctx, "missing"), apperrors.ErrNotFound)
	})

	t.Run("VoteOncePerSession", func(t *testing.T) {
		s := newStore(t)
		id := seed(t, s, article.Article{Title: "votable"})

		require.NoError(t, s.RecordVote(ctx, article.Vote{ArticleID: id, SessionID: "A", Direction: article.Upvote}))
		err := s.RecordVote(ctx, article.Vote{ArticleID: id, SessionID: "A", Direction: article.Upvote})
		assert.ErrorIs(t, err, apperrors.ErrAlreadyVoted)
		require.NoError(t, s.RecordVote(ctx, article.Vote{ArticleID: id, SessionID: "B", Direction: article.Upvote}))
		require.NoError(t, s.RecordVote(ctx, article.Vote{ArticleID: id, SessionID: "C", Direction: article.Downvote}))

		got, err := s.FindOne(ctx, article.Filter{ID: id})
		require.NoError(t, err)
		assert.EqualValues(t, 1, got.VoteCount)

		err = s.RecordVote(ctx, article.Vote{ArticleID: "missing", SessionID: "A", Direction: article.Upvote})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("ConcurrentVotesFromOneSessionCountOnce", func(t *testing.T) {
		s := newStore(t)
		id := seed(t, s, article.Article{Title: "raced"})

		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded := 0
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.RecordVote(ctx, article.Vote{ArticleID: id, SessionID: "same", Direction: article.Upvote}); err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, succeeded)
		got, err := s.FindOne(ctx, article.Filter{ID: id})
		require.NoError(t, err)
		assert.EqualValues(t, 1, got.VoteCount)
	})
}

func ids(articles []*article.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.ID
	}
	return out
}
