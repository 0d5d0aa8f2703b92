// Package handler implements the knowledge base JSON API. Handlers decode
// the request, call the retrieval service or lifecycle manager with the
// caller's identity, and map typed errors onto status codes.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/api/middleware"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/article"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/lifecycle"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/settings"
	apperrors "github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/logger"
)

const maxBodyBytes = 2 << 20

// Invalidator drops cached search results.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Deps lists what the handlers call. Collector, Cache and Keys may be nil.
type Deps struct {
	Retrieval *retrieval.Service
	Lifecycle *lifecycle.Manager
	Settings  *settings.Store
	Engine    *indexer.Engine
	Source    indexer.Source
	Cache     Invalidator
	Collector *analytics.Collector
	Stats     *analytics.Handler
	Keys      *apikey.Validator
}

type Handler struct {
	Deps
	logger *slog.Logger
}

func New(deps Deps) *Handler {
	return &Handler{
		Deps:   deps,
		logger: slog.Default().With("component", "api-handler"),
	}
}

func (h *Handler) track(ev analytics.Event) {
	if h.Collector != nil {
		h.Collector.Track(ev)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.Invalid("request body is empty")
		}
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return apperrors.New(apperrors.ErrInvalidInput, http.StatusRequestEntityTooLarge, "request body too large")
		}
		return apperrors.Invalid("invalid JSON body: %v", err)
	}
	return nil
}

func queryInt(r *http.Request, name string, def, lo, hi int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, apperrors.Invalid("%s must be an integer between %d and %d", name, lo, hi)
	}
	return n, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	ArticleID string `json:"article_id,omitempty"`
	Step      string `json:"step,omitempty"`
}

// writeError maps err onto a status and a stable code. Server-side errors
// are logged and their detail withheld, except that a partial write names
// the article and the step that failed.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	body := errorBody{Error: err.Error(), Code: apperrors.Code(err)}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body.Error = appErr.Message
	}
	var pw *lifecycle.PartialWriteError
	if errors.As(err, &pw) {
		status = http.StatusInternalServerError
		body.ArticleID = pw.ArticleID
		body.Step = pw.Step
		body.Error = fmt.Sprintf("%s committed to the store but the %s step failed", pw.Op, pw.Step)
	}

	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
		if pw == nil {
			body.Error = http.StatusText(status)
		}
	} else {
		log.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	h.writeJSON(w, status, body)
}

func identity(r *http.Request) article.Identity {
	return middleware.IdentityFrom(r.Context())
}
