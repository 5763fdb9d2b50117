package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

type RateLimitConfig struct {
	IPPerMinute   int
	IPBurst       int
	RoomPerMinute int
	RoomBurst     int
}

// RateLimiter throttles by client IP and, for room action endpoints, by room.
// The per-room limit is the double-click guard at the HTTP edge; the store's
// claim query stays correct without it, this just keeps the feed from
// flapping.
type RateLimiter struct {
	ipLimiter   *tokenLimiter
	roomLimiter *tokenLimiter
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		ipLimiter:   newTokenLimiter(cfg.IPPerMinute, cfg.IPBurst),
		roomLimiter: newTokenLimiter(cfg.RoomPerMinute, cfg.RoomBurst),
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if ip != "" && !l.ipLimiter.allow(ip) {
			writeError(w, r, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}

		if room := roomActionKey(r); room != "" && !l.roomLimiter.allow(room) {
			writeError(w, r, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// roomActionKey extracts the room id from POSTs under /api/rooms/{id}/actions/.
func roomActionKey(r *http.Request) string {
	if r.Method != http.MethodPost {
		return ""
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/rooms/")
	if path == r.URL.Path {
		return ""
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[1] != "actions" {
		return ""
	}
	return parts[0]
}

type tokenLimiter struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	bucket map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newTokenLimiter(perMinute, burst int) *tokenLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 20
	}
	return &tokenLimiter{
		rate:   float64(perMinute) / 60.0,
		burst:  float64(burst),
		bucket: make(map[string]*bucket),
	}
}

func (l *tokenLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.bucket[key]
	if !ok {
		l.bucket[key] = &bucket{tokens: l.burst - 1, last: now}
		return true
	}
	elapsed := now.Sub(b.last).Seconds()
	b.tokens = minFloat(l.burst, b.tokens+elapsed*l.rate)
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens -= 1
	return true
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
