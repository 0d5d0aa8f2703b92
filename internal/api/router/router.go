// Package router wires the knowledge base routes and applies the middleware
// chain.
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/api/handler"
	apimw "github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/api/middleware"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/middleware"
)

type Options struct {
	Resolver       apikey.Resolver
	Limiter        *ratelimit.Limiter
	Health         *health.Checker
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// New builds the HTTP handler.
//
// Middleware chain (outermost first):
//
//	RequestID → Trace → Metrics → CORS → Timeout → Identity → RateLimit → mux
func New(h *handler.Handler, opts Options) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health/live", opts.Health.LiveHandler())
	mux.HandleFunc("GET /health/ready", opts.Health.ReadyHandler())
	mux.Handle("GET /metrics", opts.Metrics.Handler())

	// Reader API
	mux.HandleFunc("GET /api/v1/articles/top", h.Top)
	mux.HandleFunc("GET /api/v1/articles/featured", h.Featured)
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/articles/{id}", h.GetArticle)
	mux.HandleFunc("POST /api/v1/articles/{id}/unlock", h.Unlock)
	mux.HandleFunc("POST /api/v1/articles/{id}/vote", h.Vote)
	mux.HandleFunc("POST /api/v1/suggestions", h.Suggest)
	mux.HandleFunc("GET /api/v1/sitemap", h.Sitemap)

	// Author API
	mux.HandleFunc("POST /api/v1/articles", h.Create)
	mux.HandleFunc("PUT /api/v1/articles/{id}", h.Save)
	mux.HandleFunc("GET /api/v1/articles/{id}/versions", h.Versions)
	mux.HandleFunc("GET /api/v1/admin/articles", h.AdminList)
	mux.HandleFunc("GET /api/v1/admin/articles/search", h.AdminSearch)
	mux.HandleFunc("GET /api/v1/admin/articles/{id}", h.AdminGet)
	mux.HandleFunc("GET /api/v1/analytics", h.Analytics)

	// Admin API
	mux.HandleFunc("DELETE /api/v1/articles/{id}", h.Delete)
	mux.HandleFunc("POST /api/v1/articles/{id}/published", h.SetPublished)
	mux.HandleFunc("POST /api/v1/articles/{id}/reset-views", h.ResetViews)
	mux.HandleFunc("POST /api/v1/articles/{id}/reset-votes", h.ResetVotes)
	mux.HandleFunc("GET /api/v1/settings", h.GetSettings)
	mux.HandleFunc("PUT /api/v1/settings", h.PutSettings)
	mux.HandleFunc("POST /api/v1/admin/reindex", h.Reindex)
	mux.HandleFunc("GET /api/v1/admin/index/verify", h.VerifyIndex)
	mux.HandleFunc("POST /api/v1/admin/keys", h.CreateAPIKey)
	mux.HandleFunc("GET /api/v1/admin/keys", h.ListAPIKeys)

	var chain http.Handler = mux
	chain = apimw.RateLimit(opts.Limiter)(chain)
	chain = apimw.Identity(opts.Resolver)(chain)
	chain = pkgmw.Timeout(opts.RequestTimeout)(chain)
	chain = apimw.CORS(apimw.DefaultCORSConfig(opts.AllowedOrigins))(chain)
	chain = pkgmw.Metrics(opts.Metrics)(chain)
	chain = pkgmw.Trace(chain)
	chain = pkgmw.RequestID(chain)
	return chain
}
