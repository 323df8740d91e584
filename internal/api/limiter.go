package api

import (
	"net"
	"net/http"
	"sync"

	"handyhub/internal/config"

	"golang.org/x/time/rate"
)

// rateLimiter caps request throughput per client. Authenticated callers are
// keyed by username, anonymous ones by remote host.
type rateLimiter struct {
	cfg      config.APIRateLimitConfig
	limiters sync.Map // map[string]*rate.Limiter
}

func newRateLimiter(cfg config.APIRateLimitConfig) *rateLimiter {
	return &rateLimiter{cfg: cfg}
}

func (l *rateLimiter) Wrap(next http.Handler) http.Handler {
	if l.cfg.RPS <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.getLimiter(l.clientKey(r)).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *rateLimiter) getLimiter(key string) *rate.Limiter {
	if lim, ok := l.limiters.Load(key); ok {
		return lim.(*rate.Limiter)
	}
	lim, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(rate.Limit(l.cfg.RPS), l.cfg.Burst))
	return lim.(*rate.Limiter)
}

func (l *rateLimiter) clientKey(r *http.Request) string {
	if identity, ok := IdentityFrom(r.Context()); ok {
		return identity.Username
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}
