package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"receipts-backend/internal/cache"
)

const (
	loginLimit        = 5
	loginWindow       = time.Minute
	acceptIPLimit     = 10
	acceptIPWindow    = time.Minute
	acceptTokenLimit  = 20
	acceptTokenWindow = time.Hour
	tokenPrefixLen    = 12
)

// RateLimitLogin bounds credential guessing per client IP.
func RateLimitLogin(cacheClient cache.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cacheClient == nil {
				next.ServeHTTP(w, r)
				return
			}
			key := "rl:login:" + clientIP(r)
			count, err := cacheClient.IncrWithTTL(r.Context(), key, loginWindow)
			if err == nil && count > loginLimit {
				tooManyRequests(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitInviteAccept bounds invite-token guessing, per client IP and
// per token prefix. Only a prefix is keyed so the raw token never lands
// in redis.
func RateLimitInviteAccept(cacheClient cache.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cacheClient == nil {
				next.ServeHTTP(w, r)
				return
			}

			ipKey := "rl:invite:ip:" + clientIP(r)
			count, err := cacheClient.IncrWithTTL(r.Context(), ipKey, acceptIPWindow)
			if err == nil && count > acceptIPLimit {
				tooManyRequests(w)
				return
			}

			if token := chi.URLParam(r, "token"); token != "" {
				prefix := token
				if len(prefix) > tokenPrefixLen {
					prefix = prefix[:tokenPrefixLen]
				}
				tokenKey := "rl:invite:token:" + prefix
				count, err := cacheClient.IncrWithTTL(r.Context(), tokenKey, acceptTokenWindow)
				if err == nil && count > acceptTokenLimit {
					tooManyRequests(w)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func tooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":{"code":"RATE_LIMITED","message":"rate limit exceeded"}}`))
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
