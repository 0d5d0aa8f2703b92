package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/article"
	apperrors "github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/errors"
	pkgmw "github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/middleware"
)

type listResponse struct {
	Articles []article.Summary `json:"articles"`
	Count    int               `json:"count"`
}

type searchResponse struct {
	Query    string            `json:"query"`
	Articles []article.Summary `json:"articles"`
	Count    int               `json:"count"`
	TookMs   int64             `json:"took_ms"`
}

// Top serves GET /api/v1/articles/top.
func (h *Handler) Top(w http.ResponseWriter, r *http.Request) {
	out, err := h.Retrieval.TopResults(r.Context(), identity(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, listResponse{Articles: out, Count: len(out)})
}

// Featured serves GET /api/v1/articles/featured.
func (h *Handler) Featured(w http.ResponseWriter, r *http.Request) {
	out, err := h.Retrieval.FeaturedResults(r.Context(), identity(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, listResponse{Articles: out, Count: len(out)})
}

// Search serves GET /api/v1/search?q=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	viewer := identity(r)

	out, err := h.Retrieval.SearchQuery(r.Context(), viewer, q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	took := time.Since(start)
	if q != "" {
		h.track(analytics.SearchEvent{
			Query:     strings.ToLower(q),
			Results:   len(out),
			LatencyMs: took.Milliseconds(),
			Anonymous: !viewer.Authenticated(),
			Timestamp: start.UTC(),
			RequestID: pkgmw.GetRequestID(r.Context()),
		})
	}
	h.writeJSON(w, http.StatusOK, searchResponse{Query: q, Articles: out, Count: len(out), TookMs: took.Milliseconds()})
}

// GetArticle serves GET /api/v1/articles/{id}; id may be a permalink.
func (h *Handler) GetArticle(w http.ResponseWriter, r *http.Request) {
	a, err := h.Retrieval.Fetch(r.Context(), r.PathValue("id"), identity(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.track(analytics.ArticleViewEvent{ArticleID: a.ID, Title: a.Title, Timestamp: time.Now().UTC()})
	h.writeJSON(w, http.StatusOK, a)
}

// Unlock serves POST /api/v1/articles/{id}/unlock.
func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Retrieval.Unlock(r.Context(), r.PathValue("id"), req.Password, identity(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Create serves POST /api/v1/articles.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var f article.Fields
	if err := decodeJSON(w, r, &f); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.Lifecycle.Create(r.Context(), identity(r), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/articles/"+a.ID)
	h.writeJSON(w, http.StatusCreated, a)
}

// Suggest serves POST /api/v1/suggestions.
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	var f article.Fields
	if err := decodeJSON(w, r, &f); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.Lifecycle.Suggest(r.Context(), identity(r), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"id": a.ID, "status": "received"})
}

// Save serves PUT /api/v1/articles/{id}.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	var f article.Fields
	if err := decodeJSON(w, r, &f); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.Lifecycle.Save(r.Context(), identity(r), r.PathValue("id"), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, a)
}

// Delete serves DELETE /api/v1/articles/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Lifecycle.Delete(r.Context(), identity(r), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetPublished serves POST /api/v1/articles/{id}/published.
func (h *Handler) SetPublished(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Published *bool `json:"published"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Published == nil {
		h.writeError(w, r, apperrors.Invalid("published is required"))
		return
	}
	if err := h.Lifecycle.SetPublished(r.Context(), identity(r), r.PathValue("id"), *req.Published); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetViews serves POST /api/v1/articles/{id}/reset-views.
func (h *Handler) ResetViews(w http.ResponseWriter, r *http.Request) {
	if err := h.Lifecycle.ResetViewCount(r.Context(), identity(r), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetVotes serves POST /api/v1/articles/{id}/reset-votes.
func (h *Handler) ResetVotes(w http.ResponseWriter, r *http.Request) {
	if err := h.Lifecycle.ResetVoteCount(r.Context(), identity(r), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Vote serves POST /api/v1/articles/{id}/vote.
func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	dir, err := article.ParseDirection(req.Direction)
	if err != nil {
		h.writeError(w, r, apperrors.Invalid("%v", err))
		return
	}
	if err := h.Lifecycle.Vote(r.Context(), identity(r), r.PathValue("id"), dir); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Versions serves GET /api/v1/articles/{id}/versions.
func (h *Handler) Versions(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.Retrieval.Versions(r.Context(), identity(r), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"versions": snaps, "count": len(snaps)})
}

// Sitemap serves GET /api/v1/sitemap.
func (h *Handler) Sitemap(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Retrieval.SitemapEntries(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}
