package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

// LoginRateLimitConfig returns stricter settings for credential endpoints.
// perMinute is the number of login attempts allowed per minute per client.
func LoginRateLimitConfig(perMinute int) RateLimitConfig {
	if perMinute <= 0 {
		perMinute = 10
	}
	return RateLimitConfig{
		RequestsPerSecond: float64(perMinute) / 60.0,
		BurstSize:         perMinute,
	}
}

// limiterStore holds per-key rate limiters. Idle limiters are swept
// periodically so ephemeral keys do not accumulate forever.
type limiterStore struct {
	limiters    sync.Map // map[string]*rate.Limiter
	rate        rate.Limit
	burst       int
	mu          sync.Mutex
	lastCleanup time.Time
}

func newLimiterStore(cfg RateLimitConfig) *limiterStore {
	return &limiterStore{
		rate:        rate.Limit(cfg.RequestsPerSecond),
		burst:       cfg.BurstSize,
		lastCleanup: time.Now(),
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	if l, ok := s.limiters.Load(key); ok {
		return l.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(s.rate, s.burst)
	actual, _ := s.limiters.LoadOrStore(key, limiter)

	s.maybeCleanup()

	return actual.(*rate.Limiter)
}

// maybeCleanup removes limiters whose buckets are full. A full bucket means
// the key has been idle long enough to refill, so dropping it loses nothing.
func (s *limiterStore) maybeCleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Since(s.lastCleanup) < 5*time.Minute {
		return
	}
	s.lastCleanup = time.Now()

	s.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(s.burst) {
			s.limiters.Delete(key)
		}
		return true
	})
}

// RateLimit returns a rate limiting middleware keyed by client IP. When the
// limit is exceeded it responds 429 with Retry-After and X-RateLimit headers.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return RateLimitWithKey(cfg, func(c echo.Context) string {
		return c.RealIP()
	})
}

// RateLimitWithKey returns a rate limiting middleware using a custom key
// function. Requests with an empty key are allowed through.
func RateLimitWithKey(cfg RateLimitConfig, keyFunc func(echo.Context) string) echo.MiddlewareFunc {
	store := newLimiterStore(cfg)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := keyFunc(c)
			if key == "" {
				return next(c)
			}

			limiter := store.get(key)
			if !limiter.Allow() {
				// Peek at when the next token arrives without consuming it
				res := limiter.Reserve()
				delay := res.Delay()
				res.Cancel()

				retryAfter := int(delay.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}

				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				c.Response().Header().Set("X-RateLimit-Limit", strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64))
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}

			c.Response().Header().Set("X-RateLimit-Limit", strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64))
			return next(c)
		}
	}
}
