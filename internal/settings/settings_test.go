package settings

import (
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/article"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromConfigDefaults(t *testing.T) {
	s, err := FromConfig(config.KBConfig{
		SortBy:                config.SortConfig{Field: "view_count", Order: "desc"},
		FeaturedArticlesCount: 4,
		NumTopResults:         10,
		IndexArticleBody:      true,
		AllowVoting:           true,
		AllowSuggestions:      true,
		ArticleVersioning:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)
}

func TestFromConfigRejectsUnknownSort(t *testing.T) {
	_, err := FromConfig(config.KBConfig{SortBy: config.SortConfig{Field: "kb_secret"}})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	s := Defaults()
	s.NumTopResults = -1
	assert.Error(t, s.Validate())

	s = Defaults()
	s.SortBy = article.Sort{Field: "password", Order: article.Asc}
	assert.Error(t, s.Validate())

	assert.NoError(t, Defaults().Validate())
}

func TestReplaceSwapsWholeStructAndBumpsVersion(t *testing.T) {
	store, err := NewStore(Defaults())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), store.Current().Version)

	next := store.Current()
	next.AllowVoting = false
	next.NumTopResults = 3
	next.Version = 99

	got, err := store.Replace(next)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Version)

	cur := store.Current()
	assert.False(t, cur.AllowVoting)
	assert.Equal(t, 3, cur.NumTopResults)
	assert.Equal(t, uint64(2), cur.Version)
}

func TestReplaceRejectsInvalidAndKeepsCurrent(t *testing.T) {
	store, err := NewStore(Defaults())
	require.NoError(t, err)

	bad := Defaults()
	bad.FeaturedArticlesCount = -5
	_, err = store.Replace(bad)
	require.Error(t, err)
	assert.Equal(t, uint64(1), store.Current().Version)
	assert.Equal(t, 4, store.Current().FeaturedArticlesCount)
}

func TestSubscribersSeePreviousAndNext(t *testing.T) {
	store, err := NewStore(Defaults())
	require.NoError(t, err)

	var prevBody, nextBody []bool
	store.Subscribe(func(prev, next Settings) {
		prevBody = append(prevBody, prev.IndexArticleBody)
		nextBody = append(nextBody, next.IndexArticleBody)
	})

	next := store.Current()
	next.IndexArticleBody = false
	_, err = store.Replace(next)
	require.NoError(t, err)

	assert.Equal(t, []bool{true}, prevBody)
	assert.Equal(t, []bool{false}, nextBody)
}

func TestConcurrentReplaceKeepsVersionsMonotonic(t *testing.T) {
	store, err := NewStore(Defaults())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Replace(Defaults())
			_ = store.Current()
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(21), store.Current().Version)
}
