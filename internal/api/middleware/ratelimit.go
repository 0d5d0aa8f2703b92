package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/auth/ratelimit"
)

// RateLimit throttles anonymous POST requests (votes, suggestions, password
// attempts) per session, or per client address when no session is sent.
// Signed-in authors and reads are not limited.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}
			id := IdentityFrom(r.Context())
			if id.Authenticated() {
				next.ServeHTTP(w, r)
				return
			}

			key := "session:" + id.SessionID
			if id.SessionID == "" {
				key = "addr:" + clientAddr(r)
			}
			if !limiter.Allow(key) {
				secs := int(limiter.RetryAfter().Seconds())
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
