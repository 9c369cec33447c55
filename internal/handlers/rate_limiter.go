package handlers

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/beautydiscount/api/internal/platform/auth"
	"github.com/beautydiscount/api/internal/platform/httpx"
)

// RateLimiter bounds the number of requests a single caller may issue within
// a sliding window. Keys are user IDs when available, remote addresses
// otherwise.
type RateLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu    sync.Mutex
	store map[string]rateEntry
}

type rateEntry struct {
	count int
	reset time.Time
}

// NewRateLimiter returns a limiter allowing limit requests per window. A
// non-positive limit or window yields nil, which disables rate limiting.
func NewRateLimiter(limit int, window time.Duration, clock func() time.Time) *RateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		clock:  clock,
		store:  make(map[string]rateEntry),
	}
}

// Allow reports whether the caller identified by key may proceed.
func (l *RateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.store[key]
	if !ok || now.After(entry.reset) {
		l.store[key] = rateEntry{count: 1, reset: now.Add(l.window)}
		l.pruneExpiredLocked(now)
		return true
	}

	if entry.count >= l.limit {
		return false
	}
	entry.count++
	l.store[key] = entry
	return true
}

// Middleware rejects requests beyond the configured rate with a 429 response.
func (l *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil {
				next.ServeHTTP(w, r)
				return
			}
			key := r.RemoteAddr
			if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity != nil && strings.TrimSpace(identity.UID) != "" {
				key = identity.UID
			}
			if !l.Allow(key) {
				httpx.WriteError(r.Context(), w, httpx.NewError("too_many_requests", "too many checkout attempts; retry shortly", http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *RateLimiter) pruneExpiredLocked(now time.Time) {
	if len(l.store) == 0 {
		return
	}
	for key, entry := range l.store {
		if now.After(entry.reset) {
			delete(l.store, key)
		}
	}
}
