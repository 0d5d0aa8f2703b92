package apikey

import (
	"context"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/article"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resolverFunc func(ctx context.Context, raw string) (article.Identity, error)

func (f resolverFunc) Resolve(ctx context.Context, raw string) (article.Identity, error) {
	return f(ctx, raw)
}

func TestHashKeyIsStable(t *testing.T) {
	assert.Equal(t, HashKey("abc"), HashKey("abc"))
	assert.NotEqual(t, HashKey("abc"), HashKey("abd"))
	assert.Len(t, HashKey("abc"), 64)
}

func TestGenerateRawKey(t *testing.T) {
	a, b := generateRawKey(), generateRawKey()
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestStaticResolve(t *testing.T) {
	s := NewStatic(map[string]config.StaticKey{
		"editor-key": {Name: "Ed", Email: "ed@example.com"},
		"admin-key":  {Name: "Ada", Email: "ada@example.com", IsAdmin: true},
	})
	assert.Equal(t, 2, s.Len())

	id, err := s.Resolve(context.Background(), "admin-key")
	require.NoError(t, err)
	assert.Equal(t, article.Identity{Name: "Ada", Email: "ada@example.com", IsAdmin: true}, id)
	assert.True(t, id.Authenticated())

	_, err = s.Resolve(context.Background(), "guess")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestChain(t *testing.T) {
	static := NewStatic(map[string]config.StaticKey{"k1": {Name: "Ed", Email: "ed@example.com"}})
	broken := resolverFunc(func(ctx context.Context, raw string) (article.Identity, error) {
		return article.Identity{}, errors.New("connection refused")
	})

	id, err := Chain{static, broken}.Resolve(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, "Ed", id.Name)

	_, err = Chain{static, broken}.Resolve(context.Background(), "other")
	assert.EqualError(t, err, "connection refused")

	_, err = Chain{static}.Resolve(context.Background(), "other")
	assert.ErrorIs(t, err, ErrInvalidKey)
}
