package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/article"
	apperrors "github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/errors"
	"github.com/google/uuid"
)

type voteKey struct {
	articleID string
	sessionID string
}

// Memory is an in-process Store. Nothing is persisted; it backs the
// embedded database mode and the test suites.
type Memory struct {
	mu       sync.RWMutex
	articles map[string]*article.Article
	order    []string
	votes    map[voteKey]article.Vote
}

func NewMemory() *Memory {
	return &Memory{
		articles: make(map[string]*article.Article),
		votes:    make(map[voteKey]article.Vote),
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) FindOne(ctx context.Context, f article.Filter) (*article.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.order {
		if a := m.articles[id]; f.Match(a) {
			return a.Clone(), nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *Memory) Query(ctx context.Context, f article.Filter, s article.Sort, limit int) ([]*article.Article, error) {
	m.mu.RLock()
	out := make([]*article.Article, 0)
	for _, id := range m.order {
		if a := m.articles[id]; f.Match(a) {
			out = append(out, a.Clone())
		}
	}
	m.mu.RUnlock()

	if !s.IsZero() {
		sort.SliceStable(out, func(i, j int) bool {
			return s.Compare(out[i], out[j]) < 0
		})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Count(ctx context.Context, f article.Filter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, a := range m.articles {
		if f.Match(a) {
			n++
		}
	}
	return n, nil
}

// Insert stores a copy of a. A live article whose non-empty permalink is
// already taken is rejected with ErrDuplicatePermalink, matching the
// partial unique index of the Postgres schema.
func (m *Memory) Insert(ctx context.Context, a *article.Article) (string, error) {
	c := a.Clone()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.articles[c.ID]; exists {
		return "", failure("inserting article", fmt.Errorf("id %s already exists", c.ID))
	}
	if c.Permalink != "" && !c.Versioned {
		for _, other := range m.articles {
			if !other.Versioned && other.Permalink == c.Permalink {
				return "", apperrors.ErrDuplicatePermalink
			}
		}
	}
	m.articles[c.ID] = c
	m.order = append(m.order, c.ID)
	return c.ID, nil
}

func (m *Memory) Update(ctx context.Context, f article.Filter, p article.Patch) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := make([]*article.Article, 0, 1)
	for _, id := range m.order {
		if a := m.articles[id]; f.Match(a) {
			matched = append(matched, a)
		}
	}
	if p.Permalink != nil && *p.Permalink != "" {
		for _, a := range matched {
			if a.Versioned {
				continue
			}
			for _, other := range m.articles {
				if other.ID != a.ID && !other.Versioned && other.Permalink == *p.Permalink {
					return 0, apperrors.ErrDuplicatePermalink
				}
			}
		}
	}
	for _, a := range matched {
		p.Apply(a)
	}
	return int64(len(matched)), nil
}

func (m *Memory) Remove(ctx context.Context, f article.Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.order[:0]
	var n int64
	for _, id := range m.order {
		if f.Match(m.articles[id]) {
			delete(m.articles, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return n, nil
}

func (m *Memory) IncrementViewCount(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	a.ViewCount++
	return nil
}

func (m *Memory) RecordVote(ctx context.Context, v article.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[v.ArticleID]
	if !ok || a.Versioned {
		return apperrors.ErrNotFound
	}
	key := voteKey{articleID: v.ArticleID, sessionID: v.SessionID}
	if _, voted := m.votes[key]; voted {
		return apperrors.ErrAlreadyVoted
	}
	m.votes[key] = v
	a.VoteCount += int64(v.Direction)
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}
