package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ecocomply/compliance-engine/pkg/errors"
)

// RateLimitMiddleware applies a per-client token bucket.  The key is the
// tenant when present, otherwise the client IP.
type RateLimitMiddleware struct {
	rps   float64
	burst float64

	mu      sync.Mutex
	buckets map[string]*bucket

	skipPaths map[string]struct{}
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

func NewRateLimitMiddleware(rps int) *RateLimitMiddleware {
	if rps <= 0 {
		rps = 50
	}
	m := &RateLimitMiddleware{
		rps:     float64(rps),
		burst:   float64(rps * 2),
		buckets: make(map[string]*bucket),
		skipPaths: map[string]struct{}{
			"/healthz": {},
			"/readyz":  {},
			"/metrics": {},
		},
	}
	go m.cleanupLoop()
	return m
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, skip := m.skipPaths[r.URL.Path]; skip {
			next.ServeHTTP(w, r)
			return
		}
		if !m.allow(clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			writeMiddlewareError(w, http.StatusTooManyRequests,
				errors.ErrCodeTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) allow(key string) bool {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{tokens: m.burst, lastSeen: now}
		m.buckets[key] = b
	}

	b.tokens += now.Sub(b.lastSeen).Seconds() * m.rps
	if b.tokens > m.burst {
		b.tokens = m.burst
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// cleanupLoop drops buckets idle for more than a minute so the map does not
// grow with one entry per client forever.
func (m *RateLimitMiddleware) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-time.Minute)
		m.mu.Lock()
		for key, b := range m.buckets {
			if b.lastSeen.Before(cutoff) {
				delete(m.buckets, key)
			}
		}
		m.mu.Unlock()
	}
}

func clientKey(r *http.Request) string {
	if tenant := r.Header.Get(DefaultTenantHeader); tenant != "" {
		return "tenant:" + tenant
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.IndexByte(xff, ','); idx > 0 {
			return "ip:" + strings.TrimSpace(xff[:idx])
		}
		return "ip:" + xff
	}
	host := r.RemoteAddr
	if idx := strings.LastIndexByte(host, ':'); idx > 0 {
		host = host[:idx]
	}
	return "ip:" + host
}
