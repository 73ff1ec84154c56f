package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	rateLimiterSweepInterval  = 5 * time.Minute
	rateLimiterStaleThreshold = 10 * time.Minute
)

// rateLimiter tracks a token bucket per client IP. Stale buckets are
// swept inline from allow, so no background goroutine is needed.
type rateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	lastSweep time.Time
}

// bucket pairs a limiter with the time its IP was last seen.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter creates a per-IP limiter refilling r tokens per second
// up to burst.
func newRateLimiter(r float64, burst int) *rateLimiter {
	return &rateLimiter{
		buckets:   make(map[string]*bucket),
		limit:     rate.Limit(r),
		burst:     burst,
		lastSweep: time.Now(),
	}
}

// allow reports whether a request from ip may proceed, consuming one
// token when it does.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSweep) > rateLimiterSweepInterval {
		rl.sweepLocked(now)
	}

	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[ip] = b
	}
	b.lastSeen = now
	return b.limiter.Allow()
}

// sweepLocked drops buckets idle past the stale threshold. Callers must
// hold mu.
func (rl *rateLimiter) sweepLocked(now time.Time) {
	for ip, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rateLimiterStaleThreshold {
			delete(rl.buckets, ip)
		}
	}
	rl.lastSweep = now
}

// rateLimitMiddleware rejects requests over the per-IP budget with 429
// and a Retry-After hint.
func rateLimitMiddleware(rl *rateLimiter, trustProxy bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			if !rl.allow(ip) {
				logger.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"method", r.Method,
				)
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the address to rate limit on.
//
// With trustProxy set the proxy headers win: X-Real-IP first, then the
// first entry of X-Forwarded-For. Values must parse as IPs so arbitrary
// header strings cannot become limiter keys. Without trustProxy only
// RemoteAddr is consulted, the safe default when the server is exposed
// directly.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
		xff := r.Header.Get("X-Forwarded-For")
		if first, _, ok := strings.Cut(xff, ","); ok {
			xff = first
		}
		if ip := parseForwardedIP(xff); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// parseForwardedIP validates a proxy-supplied address, returning its
// canonical form or "" when it is not an IP.
func parseForwardedIP(raw string) string {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil {
		return ""
	}
	return ip.String()
}
