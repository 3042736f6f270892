package bind

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the RateLimit guard. Rate is in requests per
// second. KeyFunc defaults to the client IP; idle keys are pruned every
// CleanupInterval (1m) once unused for MaxIdle (5m).
type RateLimitConfig struct {
	Rate            float64
	Burst           int
	KeyFunc         func(r *http.Request) string
	CleanupInterval time.Duration
	MaxIdle         time.Duration
}

// RateLimit returns a guard that limits requests per key with a token
// bucket. A limited request fails with 429 and a Retry-After header telling
// the client when a token will be available.
func RateLimit(cfg RateLimitConfig) Guard {
	rl := &rateLimiter{
		cfg:      cfg,
		limiters: make(map[string]*limiterEntry),
	}
	if rl.cfg.KeyFunc == nil {
		rl.cfg.KeyFunc = clientIP
	}
	if rl.cfg.CleanupInterval <= 0 {
		rl.cfg.CleanupInterval = time.Minute
	}
	if rl.cfg.MaxIdle <= 0 {
		rl.cfg.MaxIdle = 5 * time.Minute
	}
	return rl.guard
}

type rateLimiter struct {
	cfg RateLimitConfig

	mu          sync.Mutex
	limiters    map[string]*limiterEntry
	lastCleanup time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (rl *rateLimiter) guard(ec *ExecutionContext) error {
	now := time.Now()
	lim := rl.limiter(rl.cfg.KeyFunc(ec.Connection().Request()), now)

	res := lim.ReserveN(now, 1)
	delay := res.DelayFrom(now)
	if res.OK() && delay == 0 {
		return nil
	}
	res.CancelAt(now)

	ec.Response().Header().Set("Retry-After", retryAfter(delay))
	return Error(http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
}

// limiter returns the limiter for key, pruning idle keys first when the
// cleanup interval has passed.
func (rl *rateLimiter) limiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastCleanup) >= rl.cfg.CleanupInterval {
		for k, e := range rl.limiters {
			if now.Sub(e.lastSeen) > rl.cfg.MaxIdle {
				delete(rl.limiters, k)
			}
		}
		rl.lastCleanup = now
	}

	e, ok := rl.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(rl.cfg.Rate), rl.cfg.Burst)}
		rl.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// retryAfter renders delay in whole seconds, at least one. A reservation
// that can never succeed has an infinite delay and also reports one.
func retryAfter(delay time.Duration) string {
	secs := math.Ceil(delay.Seconds())
	if secs < 1 || delay == rate.InfDuration {
		secs = 1
	}
	return strconv.FormatFloat(secs, 'f', 0, 64)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
