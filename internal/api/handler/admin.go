package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/settings"
	apperrors "github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/logger"
)

// AdminList serves GET /api/v1/admin/articles.
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 100, 1, 1000)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.Retrieval.ListArticles(r.Context(), identity(r), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, listResponse{Articles: out, Count: len(out)})
}

// AdminSearch serves GET /api/v1/admin/articles/search?q=.
func (h *Handler) AdminSearch(w http.ResponseWriter, r *http.Request) {
	out, err := h.Retrieval.ArticlesByTerm(r.Context(), identity(r), strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, listResponse{Articles: out, Count: len(out)})
}

// AdminGet serves GET /api/v1/admin/articles/{id}, returning unpublished
// articles too. The response includes the password so the edit form can
// send it back unchanged.
func (h *Handler) AdminGet(w http.ResponseWriter, r *http.Request) {
	a, err := h.Retrieval.ForEdit(r.Context(), identity(r), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, a.ForEditor())
}

// GetSettings serves GET /api/v1/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	if !identity(r).IsAdmin {
		h.writeError(w, r, apperrors.ErrAccessDenied)
		return
	}
	h.writeJSON(w, http.StatusOK, h.Settings.Current())
}

// PutSettings serves PUT /api/v1/settings. The body replaces the whole
// settings struct; omitted fields take their zero value.
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	if !identity(r).IsAdmin {
		h.writeError(w, r, apperrors.ErrAccessDenied)
		return
	}
	var next settings.Settings
	if err := decodeJSON(w, r, &next); err != nil {
		h.writeError(w, r, err)
		return
	}
	applied, err := h.Settings.Replace(next)
	if err != nil {
		h.writeError(w, r, apperrors.Invalid("%v", err))
		return
	}
	logger.FromContext(r.Context()).Info("settings updated", "version", applied.Version, "by", identity(r).Email)
	h.writeJSON(w, http.StatusOK, applied)
}

// Reindex serves POST /api/v1/admin/reindex: a full rebuild from the store.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	if !identity(r).IsAdmin {
		h.writeError(w, r, apperrors.ErrAccessDenied)
		return
	}
	start := time.Now()
	n, err := h.Engine.Rebuild(r.Context(), h.Source)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.Cache != nil {
		if err := h.Cache.Invalidate(r.Context()); err != nil {
			logger.FromContext(r.Context()).Warn("search cache not invalidated after reindex", "error", err)
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"indexed": n,
		"took_ms": time.Since(start).Milliseconds(),
	})
}

// VerifyIndex serves GET /api/v1/admin/index/verify.
func (h *Handler) VerifyIndex(w http.ResponseWriter, r *http.Request) {
	if !identity(r).IsAdmin {
		h.writeError(w, r, apperrors.ErrAccessDenied)
		return
	}
	drift, err := h.Engine.Verify(r.Context(), h.Source)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"clean":              drift.Clean(),
		"missing_from_index": drift.MissingFromIndex,
		"orphaned":           drift.Orphaned,
		"documents":          h.Engine.DocCount(),
	})
}

// Analytics serves GET /api/v1/analytics to signed-in authors.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	if !identity(r).Authenticated() {
		h.writeError(w, r, apperrors.ErrUnauthorized)
		return
	}
	h.Stats.Stats(w, r)
}

// CreateAPIKey serves POST /api/v1/admin/keys and returns the raw key once.
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	if !identity(r).IsAdmin {
		h.writeError(w, r, apperrors.ErrAccessDenied)
		return
	}
	if h.Keys == nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrNotFound, http.StatusNotFound, "api keys are managed in the config file"))
		return
	}
	var req struct {
		Name      string `json:"name"`
		Email     string `json:"email"`
		IsAdmin   bool   `json:"is_admin"`
		ExpiresIn string `json:"expires_in,omitempty"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Name == "" || req.Email == "" {
		h.writeError(w, r, apperrors.Invalid("name and email are required"))
		return
	}
	var expiresAt *time.Time
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			h.writeError(w, r, apperrors.Invalid("invalid expires_in duration"))
			return
		}
		t := time.Now().Add(d)
		expiresAt = &t
	}

	key, err := h.Keys.CreateKey(r.Context(), req.Name, req.Email, req.IsAdmin, expiresAt)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{
		"api_key": key,
		"email":   req.Email,
		"message": "store this key securely, it cannot be retrieved again",
	})
}

// ListAPIKeys serves GET /api/v1/admin/keys.
func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	if !identity(r).IsAdmin {
		h.writeError(w, r, apperrors.ErrAccessDenied)
		return
	}
	if h.Keys == nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrNotFound, http.StatusNotFound, "api keys are managed in the config file"))
		return
	}
	keys, err := h.Keys.ListKeys(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"keys": keys, "count": len(keys)})
}
