// Package store is the authoritative document store for articles and votes.
// Two backends implement Store: Memory for the embedded mode and tests, and
// Postgres for deployments.
package store

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/article"
	apperrors "github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/errors"
)

// Store is the document store contract. FindOne returns ErrNotFound when
// nothing matches. Query treats limit <= 0 as unbounded and a zero Sort as
// insertion order. Backend failures wrap ErrStoreFailure.
type Store interface {
	FindOne(ctx context.Context, f article.Filter) (*article.Article, error)
	Query(ctx context.Context, f article.Filter, s article.Sort, limit int) ([]*article.Article, error)
	Count(ctx context.Context, f article.Filter) (int64, error)
	Insert(ctx context.Context, a *article.Article) (string, error)
	Update(ctx context.Context, f article.Filter, p article.Patch) (int64, error)
	Remove(ctx context.Context, f article.Filter) (int64, error)
	IncrementViewCount(ctx context.Context, id string) error
	// RecordVote inserts the vote and applies its delta to the article's
	// vote count as one unit. A second vote for the same (article, session)
	// fails with ErrAlreadyVoted and changes nothing.
	RecordVote(ctx context.Context, v article.Vote) error
	Ping(ctx context.Context) error
}

func failure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, apperrors.ErrStoreFailure, err)
}
