package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/logger"
)

const maxTop = 100

// Handler serves the aggregated reader statistics as JSON.
type Handler struct {
	aggregator *Aggregator
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{aggregator: aggregator}
}

// Stats writes the current AggregatedStats. The optional top parameter
// (1..100) trims the ranked query and article lists.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	stats := h.aggregator.Stats()

	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxTop {
			appErr := apperrors.Invalid("top must be an integer between 1 and %d", maxTop)
			writeJSON(log, w, appErr.StatusCode, map[string]string{
				"error": appErr.Message,
				"code":  apperrors.Code(appErr),
			})
			return
		}
		stats.TopQueries = head(stats.TopQueries, n)
		stats.ZeroResultQueries = head(stats.ZeroResultQueries, n)
		stats.TopArticles = head(stats.TopArticles, n)
	}
	writeJSON(log, w, http.StatusOK, stats)
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func writeJSON(log *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("writing analytics response", "error", err)
	}
}
