// Package middleware provides the HTTP middleware specific to the knowledge
// base API: caller identity, CORS, and anonymous write throttling.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/article"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/logger"
)

const HeaderSessionID = "X-Session-ID"

type identityKey struct{}

// Identity resolves the caller. Requests without an API key proceed as
// anonymous visitors; a key that does not resolve is rejected. The session
// ID comes from X-Session-ID in both cases.
func Identity(resolver apikey.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}
			session := strings.TrimSpace(r.Header.Get(HeaderSessionID))
			if len(session) > 128 {
				writeError(w, http.StatusBadRequest, "invalid_input", "session id too long")
				return
			}
			id := article.Anonymous(session)

			if key := extractAPIKey(r); key != "" {
				resolved, err := resolver.Resolve(r.Context(), key)
				switch {
				case errors.Is(err, apikey.ErrInvalidKey):
					writeError(w, http.StatusUnauthorized, "unauthorized", "invalid api key")
					return
				case errors.Is(err, apikey.ErrExpiredKey):
					writeError(w, http.StatusUnauthorized, "unauthorized", "expired api key")
					return
				case err != nil:
					logger.FromContext(r.Context()).Error("api key lookup failed", "error", err)
					writeError(w, http.StatusInternalServerError, "internal", "authentication error")
					return
				}
				resolved.SessionID = session
				if resolved.SessionID == "" {
					resolved.SessionID = "author:" + resolved.Email
				}
				id = resolved
			}

			ctx := context.WithValue(r.Context(), identityKey{}, id)
			if id.Authenticated() {
				ctx = logger.With(ctx, "author", id.Email)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFrom returns the caller stored by Identity, or an anonymous
// identity without a session.
func IdentityFrom(ctx context.Context) article.Identity {
	id, _ := ctx.Value(identityKey{}).(article.Identity)
	return id
}

// WithIdentity stores id in ctx, for handlers invoked outside the chain.
func WithIdentity(ctx context.Context, id article.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// extractAPIKey reads the API key from the request in priority order:
// Authorization: Bearer header, then X-API-Key header.
func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.Header.Get("X-API-Key")
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `","code":"` + code + `"}`))
}
