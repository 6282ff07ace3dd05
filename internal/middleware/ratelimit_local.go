package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-marketplace/internal/config"
)

// localBucketCap bounds how many bucket keys one process tracks.  Evicted
// keys start again with a full bucket.
const localBucketCap = 10000

type localBucket struct {
	mu     sync.Mutex
	tokens int
	last   time.Time
}

// take applies the same whole-interval refill as the Redis script and
// reports whether a token was taken, what remains and how long until the
// next refill.
func (b *localBucket) take(cfg config.RateLimitConfig, now time.Time) (bool, int, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if elapsed := now.Sub(b.last); elapsed >= cfg.RefillInterval {
		intervals := int(elapsed / cfg.RefillInterval)
		b.tokens = min(cfg.Capacity, b.tokens+intervals*cfg.RefillTokens)
		b.last = b.last.Add(time.Duration(intervals) * cfg.RefillInterval)
	}
	if b.tokens > 0 {
		b.tokens--
		return true, b.tokens, 0
	}
	return false, 0, cfg.RefillInterval - now.Sub(b.last)
}

// NewLocalTokenBucket is the in-process counterpart of NewTokenBucket for
// deployments without Redis.  Buckets live in an LRU, so limits are per
// process rather than global.
func NewLocalTokenBucket(cfg config.RateLimitConfig, logger *slog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if logger == nil {
		logger = slog.Default()
	}
	buckets, err := lru.New[string, *localBucket](localBucketCap)
	if err != nil {
		logger.Error("local rate limiter disabled", "error", err)
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	var mu sync.Mutex
	now := time.Now

	bucketFor := func(key string, at time.Time) *localBucket {
		mu.Lock()
		defer mu.Unlock()
		if b, ok := buckets.Get(key); ok {
			return b
		}
		b := &localBucket{tokens: cfg.Capacity, last: at}
		buckets.Add(key, b)
		return b
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			at := now()
			key := buildRateKey(cfg, c)
			allowed, remaining, wait := bucketFor(key, at).take(cfg, at)

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if allowed {
				return next(c)
			}
			secs := int(math.Ceil(wait.Seconds()))
			h.Set("Retry-After", strconv.Itoa(secs))
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "too_many_requests",
				"message":     "rate limit exceeded",
				"retry_after": secs,
			})
		}
	}
}
