package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/platform/auth"
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

// limiterIdleTTL is how long a key may go unseen before its limiter is dropped.
const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// limiterStore holds one limiter per client key. Keys idle for longer than
// limiterIdleTTL are swept at most once per TTL, from get.
type limiterStore struct {
	limiters  map[string]*limiterEntry
	mu        sync.RWMutex
	config    RateLimitConfig
	now       func() time.Time
	lastSweep time.Time
}

func newLimiterStore(cfg RateLimitConfig) *limiterStore {
	return &limiterStore{
		limiters:  make(map[string]*limiterEntry),
		config:    cfg,
		now:       time.Now,
		lastSweep: time.Now(),
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	now := s.now()

	s.mu.RLock()
	e, ok := s.limiters[key]
	due := now.Sub(s.lastSweep) >= limiterIdleTTL
	s.mu.RUnlock()
	if ok && !due {
		e.lastSeen.Store(now.UnixNano())
		return e.limiter
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastSweep) >= limiterIdleTTL {
		s.sweep(now)
	}
	if e, ok := s.limiters[key]; ok {
		e.lastSeen.Store(now.UnixNano())
		return e.limiter
	}
	e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(s.config.RequestsPerSecond), s.config.BurstSize)}
	e.lastSeen.Store(now.UnixNano())
	s.limiters[key] = e
	return e.limiter
}

// sweep removes limiters idle for at least limiterIdleTTL. Caller holds mu.
func (s *limiterStore) sweep(now time.Time) {
	cutoff := now.Add(-limiterIdleTTL).UnixNano()
	for key, e := range s.limiters {
		if e.lastSeen.Load() <= cutoff {
			delete(s.limiters, key)
		}
	}
	s.lastSweep = now
}

func (s *limiterStore) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.limiters)
}

// retryAfter returns whole seconds until l grants another token.
func retryAfter(l *rate.Limiter) int {
	r := l.Reserve()
	if !r.OK() {
		return 1
	}
	delay := r.Delay()
	r.Cancel()
	secs := int(math.Ceil(delay.Seconds()))
	if secs < 1 || delay == rate.InfDuration {
		return 1
	}
	return secs
}

// rateLimitKey identifies the caller: the authenticated user when a session
// is present, the client IP otherwise.
func rateLimitKey(c echo.Context) string {
	if s := auth.SessionFromContext(c.Request().Context()); s != nil {
		return "user:" + s.UserID.String()
	}
	return "ip:" + c.RealIP()
}

// RateLimit returns a rate limiting middleware.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	store := newLimiterStore(cfg)
	limitHeader := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			l := store.get(rateLimitKey(c))
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limitHeader)

			if !l.AllowN(time.Now(), 1) {
				h.Set("Retry-After", strconv.Itoa(retryAfter(l)))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
