package ratelimit

import (
	"net/http"
	"strconv"
)

// Middleware enforces l per client IP. Denied requests get the rate limit
// headers and are passed to denied, which writes the 429 body.
// A nil limiter passes every request through.
func Middleware(l *Limiter, denied http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := l.Allow(l.ClientIP(r))
			retry := strconv.Itoa(int(d.RetryAfter.Seconds()))

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.Burst()))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", retry)

			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}
			h.Set("Retry-After", retry)
			denied.ServeHTTP(w, r)
		})
	}
}
