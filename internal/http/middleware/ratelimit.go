package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit rejects callers exceeding requestLimit per window with 429.
// Callers are keyed by X-Real-Ip (set by chi's RealIP) or the remote address.
func RateLimit(requestLimit int, window time.Duration) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(window.Seconds()))
	return httprate.Limit(
		requestLimit,
		window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if xri := r.Header.Get("X-Real-Ip"); xri != "" {
				return "ip:" + xri, nil
			}
			return "ip:" + r.RemoteAddr, nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", retryAfter)
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
		}),
	)
}
