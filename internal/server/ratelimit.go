package server

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	jsonwriter "github.com/dgellow/oauth-front/internal/json"
	"github.com/dgellow/oauth-front/internal/log"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long an idle client's bucket is kept.
const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per client IP.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

// NewRateLimiter allows perMinute requests per client IP per minute, with
// bursts of up to burst requests.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow reports whether a request from ip may proceed.
func (l *RateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	c, ok := l.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// sweep drops buckets that have been idle for limiterIdleTTL. It runs at
// most once per TTL. Callers hold l.mu.
func (l *RateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < limiterIdleTTL {
		return
	}
	l.lastSweep = now
	for ip, c := range l.clients {
		if now.Sub(c.lastSeen) >= limiterIdleTTL {
			delete(l.clients, ip)
		}
	}
}

// retryAfterSeconds is advertised on 429 responses.
func (l *RateLimiter) retryAfterSeconds() int {
	if l.limit <= 0 {
		return 60
	}
	return max(1, int(1/float64(l.limit)))
}

// NewRateLimitMiddleware answers 429 once a client IP exhausts its bucket.
func NewRateLimitMiddleware(limiter *RateLimiter) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !limiter.Allow(ip) {
				log.LogWarnWithFields("ratelimit", "Rate limit exceeded", map[string]any{
					"remote_ip": ip,
					"path":      r.URL.Path,
				})
				w.Header().Set("Retry-After", strconv.Itoa(limiter.retryAfterSeconds()))
				jsonwriter.WriteTooManyRequests(w, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP is the peer address without its port. Forwarding headers are
// ignored since they are client controlled.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
