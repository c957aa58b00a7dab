package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// Default per-IP limits
const (
	DefaultIntakeRequestsPerMinute    = 10
	DefaultDashboardRequestsPerMinute = 60
)

// RateLimitConfig defines the configuration for rate limiting
type RateLimitConfig struct {
	// Requests is the maximum number of requests allowed within the window
	Requests int
	// Window is the time window for rate limiting
	Window time.Duration
	// KeyFunc returns the key a request is counted under (defaults to IP)
	KeyFunc func(c echo.Context) string
	// Message is the error message returned when rate limit is exceeded
	Message string
}

// window is the request count of one key in a fixed window
type window struct {
	count     int
	expiresAt time.Time
}

// RateLimiter counts requests per key in fixed windows. Expired windows
// are swept during requests, at most once per window length.
type RateLimiter struct {
	config    RateLimitConfig
	mu        sync.Mutex
	windows   map[string]*window
	nextSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates a new rate limiter with the given configuration
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = func(c echo.Context) string {
			return c.RealIP()
		}
	}
	if config.Message == "" {
		config.Message = "Too many requests. Please try again later."
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	return &RateLimiter{
		config:  config,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// NewIntakeRateLimiter limits case submissions per IP. A non-positive
// limit uses the default.
func NewIntakeRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = DefaultIntakeRequestsPerMinute
	}
	return NewRateLimiter(RateLimitConfig{
		Requests: perMinute,
		Window:   time.Minute,
		Message:  "Too many case submissions. Please wait before trying again.",
	})
}

// NewDashboardRateLimiter limits dashboard requests per IP. A non-positive
// limit uses the default.
func NewDashboardRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = DefaultDashboardRequestsPerMinute
	}
	return NewRateLimiter(RateLimitConfig{
		Requests: perMinute,
		Window:   time.Minute,
		Message:  "Rate limit exceeded. Please slow down your requests.",
	})
}

// allow counts one request for key. It returns the remaining budget, or
// false and the time until the window resets.
func (rl *RateLimiter) allow(key string) (int, time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.After(rl.nextSweep) {
		for k, w := range rl.windows {
			if now.After(w.expiresAt) {
				delete(rl.windows, k)
			}
		}
		rl.nextSweep = now.Add(rl.config.Window)
	}

	w, ok := rl.windows[key]
	if !ok || now.After(w.expiresAt) {
		w = &window{expiresAt: now.Add(rl.config.Window)}
		rl.windows[key] = w
	}
	if w.count >= rl.config.Requests {
		return 0, w.expiresAt.Sub(now), false
	}
	w.count++
	return rl.config.Requests - w.count, 0, true
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			remaining, retryAfter, ok := rl.allow(rl.config.KeyFunc(c))

			header := c.Response().Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(rl.config.Requests))
			header.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				header.Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
				return echo.NewHTTPError(http.StatusTooManyRequests, rl.config.Message)
			}
			return next(c)
		}
	}
}
