package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"orderdesk/internal/auth"
)

// RateLimiter is a fixed-window counter per key. Expired windows are pruned
// lazily, at most once per window.
type RateLimiter struct {
	mu        sync.Mutex
	windows   map[string]*window
	limit     int
	length    time.Duration
	now       func() time.Time
	lastPrune time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

func NewRateLimiter(limit int, length time.Duration) *RateLimiter {
	return NewRateLimiterWithNow(limit, length, time.Now)
}

func NewRateLimiterWithNow(limit int, length time.Duration, now func() time.Time) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		length:  length,
		now:     now,
	}
}

// Allow counts one request for key. When the request is rejected it also
// returns how long until the key's window resets.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.pruneLocked(now)

	w, ok := rl.windows[key]
	if !ok || !now.Before(w.resetAt) {
		rl.windows[key] = &window{count: 1, resetAt: now.Add(rl.length)}
		return true, 0
	}
	if w.count >= rl.limit {
		return false, w.resetAt.Sub(now)
	}
	w.count++
	return true, 0
}

func (rl *RateLimiter) pruneLocked(now time.Time) {
	if now.Sub(rl.lastPrune) < rl.length {
		return
	}
	rl.lastPrune = now
	for key, w := range rl.windows {
		if !now.Before(w.resetAt) {
			delete(rl.windows, key)
		}
	}
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(c *gin.Context) string

// RouteAndIP counts each route separately per client IP.
func RouteAndIP(c *gin.Context) string {
	return c.FullPath() + "|" + c.ClientIP()
}

// RateLimitMiddleware rejects requests over the limit with 429 and the
// provider code, so sign in clients can classify the failure.
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return RateLimitMiddlewareWithKey(rl, RouteAndIP)
}

func RateLimitMiddlewareWithKey(rl *RateLimiter, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retryAfter := rl.Allow(key(c))
		if !ok {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many attempts, try again later",
				"code":  auth.CodeTooManyRequests,
			})
			return
		}
		c.Next()
	}
}
