package middleware

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/faasbill/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client key
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter that refills perSecond tokens per second
// up to burst. Buckets unused for idleTTL are dropped by Cleanup.
func NewRateLimiter(perSecond float64, burst int, idleTTL time.Duration) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &RateLimiter{
		clients: make(map[string]*client),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = rl.now()
	return c.limiter
}

// Allow reports whether a request from key may proceed and how many
// tokens remain afterwards
func (rl *RateLimiter) Allow(key string) (bool, int) {
	limiter := rl.bucket(key)
	now := rl.now()
	ok := limiter.AllowN(now, 1)
	remaining := int(math.Max(0, math.Floor(limiter.TokensAt(now))))
	return ok, remaining
}

// RetryAfter returns the seconds until key has a token again
func (rl *RateLimiter) RetryAfter(key string) int {
	limiter := rl.bucket(key)
	if rl.limit <= 0 {
		return 1
	}
	missing := 1 - limiter.TokensAt(rl.now())
	if missing <= 0 {
		return 1
	}
	return int(math.Ceil(missing / float64(rl.limit)))
}

// Cleanup removes buckets idle longer than the idle TTL
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idleTTL)
	removed := 0
	for key, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// StartCleanup runs Cleanup on an interval until ctx is done
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = rl.idleTTL
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup()
			}
		}
	}()
}

// RateLimit returns a middleware that limits requests per client IP
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return RateLimitByKey(limiter, func(c *gin.Context) string {
		return c.ClientIP()
	})
}

// RateLimitByKey returns a rate limiting middleware with a custom key extractor
func RateLimitByKey(limiter *RateLimiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)
		ok, remaining := limiter.Allow(key)

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			c.Header("Retry-After", strconv.Itoa(limiter.RetryAfter(key)))
			AbortWithError(c, dto.ErrCodeRateLimited, "Too many requests. Please try again later.")
			return
		}

		c.Next()
	}
}
