package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Policy is a fixed-window rate limit. The two guarded surfaces get their
// own budgets: login codes are throttled per address, and PIN checks get a
// tighter budget since a 4-digit PIN has only ten thousand candidates.
type Policy struct {
	Limit  int
	Window time.Duration
}

var (
	LoginPolicy = Policy{Limit: 10, Window: time.Minute}
	PINPolicy   = Policy{Limit: 5, Window: time.Minute}
)

// RealIP resolves the client address: Cloudflare's header when fronted by
// it, then the first hop of X-Forwarded-For, then the socket address.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type bucket struct {
	hits    int
	resetAt time.Time
}

// RateLimiter counts requests per key in fixed windows, in memory. Single
// process is enough here; there is one Nerlo server per deployment.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{buckets: make(map[string]*bucket)}
}

// Allow records a hit for key and reports whether it fits the policy.
func (rl *RateLimiter) Allow(key string, p Policy) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[key]
	if !ok || now.After(b.resetAt) {
		rl.buckets[key] = &bucket{hits: 1, resetAt: now.Add(p.Window)}
		return true
	}
	b.hits++
	return b.hits <= p.Limit
}

// Cleanup drops buckets whose window has passed. Run periodically.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, b := range rl.buckets {
		if now.After(b.resetAt) {
			delete(rl.buckets, key)
		}
	}
}

// RateLimit enforces a policy per key in front of a handler.
func RateLimit(limiter *RateLimiter, keyFunc func(*http.Request) string, p Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(keyFunc(r), p) {
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
