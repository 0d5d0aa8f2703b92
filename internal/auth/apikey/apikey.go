// Package apikey resolves author API keys to identities. Keys are generated
// with crypto/rand and only their SHA-256 digest is stored; the Postgres
// validator reads the api_keys table and Static serves keys from the config
// file in embedded mode.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/article"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/postgres"
)

var (
	ErrInvalidKey = errors.New("invalid api key")
	ErrExpiredKey = errors.New("api key expired")
)

// Resolver maps a raw key to the author it belongs to.
type Resolver interface {
	Resolve(ctx context.Context, rawKey string) (article.Identity, error)
}

// KeyInfo holds metadata about a stored API key.
type KeyInfo struct {
	ID          int64      `json:"id"`
	AuthorName  string     `json:"author_name"`
	AuthorEmail string     `json:"author_email"`
	IsAdmin     bool       `json:"is_admin"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Identity converts the key owner into a caller identity.
func (k KeyInfo) Identity() article.Identity {
	return article.Identity{Name: k.AuthorName, Email: k.AuthorEmail, IsAdmin: k.IsAdmin}
}

// Validator validates API keys against the api_keys table in PostgreSQL.
type Validator struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewValidator(db *postgres.Client) *Validator {
	return &Validator{
		db:     db,
		logger: slog.Default().With("component", "apikey-validator"),
	}
}

// Validate checks a raw API key against the database.
// Returns KeyInfo on success, or ErrInvalidKey / ErrExpiredKey on failure.
func (v *Validator) Validate(ctx context.Context, rawKey string) (*KeyInfo, error) {
	var info KeyInfo
	var expiresAt sql.NullTime

	err := v.db.DB.QueryRowContext(ctx,
		`SELECT id, author_name, author_email, is_admin, is_active, created_at, expires_at
		 FROM api_keys
		 WHERE key_hash = $1 AND is_active = true`,
		HashKey(rawKey),
	).Scan(&info.ID, &info.AuthorName, &info.AuthorEmail, &info.IsAdmin, &info.IsActive, &info.CreatedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("querying api key: %w", err)
	}

	if expiresAt.Valid {
		if expiresAt.Time.Before(time.Now()) {
			return nil, ErrExpiredKey
		}
		info.ExpiresAt = &expiresAt.Time
	}
	return &info, nil
}

func (v *Validator) Resolve(ctx context.Context, rawKey string) (article.Identity, error) {
	info, err := v.Validate(ctx, rawKey)
	if err != nil {
		return article.Identity{}, err
	}
	return info.Identity(), nil
}

// CreateKey generates a new API key for an author, stores its hash, and
// returns the raw key. The raw key cannot be retrieved again.
func (v *Validator) CreateKey(ctx context.Context, name, email string, isAdmin bool, expiresAt *time.Time) (string, error) {
	rawKey := generateRawKey()

	var expiry sql.NullTime
	if expiresAt != nil {
		expiry = sql.NullTime{Time: *expiresAt, Valid: true}
	}

	_, err := v.db.DB.ExecContext(ctx,
		`INSERT INTO api_keys (key_hash, author_name, author_email, is_admin, expires_at) VALUES ($1, $2, $3, $4, $5)`,
		HashKey(rawKey), name, email, isAdmin, expiry,
	)
	if err != nil {
		return "", fmt.Errorf("creating api key: %w", err)
	}

	v.logger.Info("api key created", "author_email", email, "is_admin", isAdmin)
	return rawKey, nil
}

// RevokeKey deactivates an API key so it can no longer be used.
func (v *Validator) RevokeKey(ctx context.Context, rawKey string) error {
	result, err := v.db.DB.ExecContext(ctx,
		`UPDATE api_keys SET is_active = false WHERE key_hash = $1`,
		HashKey(rawKey),
	)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrInvalidKey
	}

	v.logger.Info("api key revoked")
	return nil
}

// ListKeys returns all active API keys (without the raw key / hash).
func (v *Validator) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	rows, err := v.db.DB.QueryContext(ctx,
		`SELECT id, author_name, author_email, is_admin, is_active, created_at, expires_at
		 FROM api_keys WHERE is_active = true ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	var keys []KeyInfo
	for rows.Next() {
		var k KeyInfo
		var expiresAt sql.NullTime
		if err := rows.Scan(&k.ID, &k.AuthorName, &k.AuthorEmail, &k.IsAdmin, &k.IsActive, &k.CreatedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		if expiresAt.Valid {
			k.ExpiresAt = &expiresAt.Time
		}
		keys = append(keys, k)
	}

	return keys, rows.Err()
}

// Static resolves keys listed in the auth.staticKeys config section. Raw
// keys are hashed on load and compared in constant time.
type Static struct {
	keys map[string]article.Identity
}

func NewStatic(keys map[string]config.StaticKey) *Static {
	s := &Static{keys: make(map[string]article.Identity, len(keys))}
	for raw, k := range keys {
		s.keys[HashKey(raw)] = article.Identity{Name: k.Name, Email: k.Email, IsAdmin: k.IsAdmin}
	}
	return s
}

func (s *Static) Resolve(ctx context.Context, rawKey string) (article.Identity, error) {
	hash := HashKey(rawKey)
	for stored, id := range s.keys {
		if subtle.ConstantTimeCompare([]byte(stored), []byte(hash)) == 1 {
			return id, nil
		}
	}
	return article.Identity{}, ErrInvalidKey
}

// Len reports how many static keys are configured.
func (s *Static) Len() int {
	return len(s.keys)
}

// Chain tries each resolver in turn. The first success wins; ErrInvalidKey
// falls through to the next resolver, any other error stops the chain.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, rawKey string) (article.Identity, error) {
	for _, r := range c {
		id, err := r.Resolve(ctx, rawKey)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrInvalidKey) {
			return article.Identity{}, err
		}
	}
	return article.Identity{}, ErrInvalidKey
}

// HashKey returns the SHA-256 hex digest of a raw API key.
func HashKey(raw string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(raw)))
}

// generateRawKey returns a cryptographically random 32-byte hex-encoded string
// suitable for use as an API key.
func generateRawKey() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
