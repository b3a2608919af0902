package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/sakif/bookshelf/internal/auth"
)

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

const tooManyRequestsBody = `{"error":"rate_limited","message":"too many requests, try again later"}` + "\n"

// RateLimit rejects requests over quota with a JSON 429. Callers are keyed
// by authenticated user id when there is one and by client address
// otherwise. A nil limiter disables the check.
func RateLimit(limiter Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + clientIP(r)
			if userID, ok := auth.UserIDFromContext(r.Context()); ok {
				key = "user:" + userID
			}

			if !limiter.Allow(r.Context(), key) {
				logger.Warn("rate limit exceeded",
					slog.String("key", key),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(tooManyRequestsBody))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP drops the port from RemoteAddr. Forwarding headers are never
// read here; the server installs chi's RealIP, which rewrites RemoteAddr,
// only when it is configured to trust its proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
