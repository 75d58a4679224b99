package ratelimit

import (
	"net/http"
	"strconv"
)

// DefaultRetryAfterSeconds is sent in Retry-After when a bucket is empty.
const DefaultRetryAfterSeconds = 2

// Middleware throttles requests by the key keyFn extracts. Requests with an
// empty key pass through unthrottled. Only methods listed in methods are
// counted; an empty list counts every request.
func Middleware(limiter *RateLimiter, keyFn func(r *http.Request) string, methods ...string) func(http.Handler) http.Handler {
	counted := make(map[string]bool, len(methods))
	for _, m := range methods {
		counted[m] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if key == "" || (len(counted) > 0 && !counted[r.Method]) {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(key) {
				w.Header().Set("Retry-After", strconv.Itoa(DefaultRetryAfterSeconds))
				w.Header().Set("X-RateLimit-Remaining", "0")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))
			next.ServeHTTP(w, r)
		})
	}
}
