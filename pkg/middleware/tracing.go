package middleware

import (
	"fmt"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/tracing"
)

// Trace opens a root span per request, keyed by the request ID, so spans
// started further down are logged as one tree. Must run inside RequestID.
func Trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracing.StartSpan(r.Context(), r.Method+" "+normalizePath(r.URL.Path), GetRequestID(r.Context()))
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))

		span.SetAttr("status", sw.status)
		var err error
		if sw.status >= http.StatusInternalServerError {
			err = fmt.Errorf("responded %d", sw.status)
		}
		span.Finish(err)
	})
}
