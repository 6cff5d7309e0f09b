package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	GlobalLimitMessage = "Too many requests. Please try again later."
	AuthLimitMessage   = "Too many login/auth attempts. Please try again in an hour."
)

// Limiter decides whether the client identified by key may make another request.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type visitor struct {
	limiter *rate.Limiter
	bucket  int64
}

// MemoryLimiter is a per-process fixed-window limiter keyed by client address.
// Each client gets limit requests per window; the budget resets when the next
// window starts, the same way RedisLimiter buckets its counters.
type MemoryLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    int
	window   time.Duration
	now      func() time.Time
}

// NewMemoryLimiter allows limit requests per window for each client.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	rl := &MemoryLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
	go rl.cleanup()
	return rl
}

func (rl *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := rl.now()
	return rl.getLimiter(key, now).AllowN(now, 1), nil
}

// getLimiter returns the client's limiter for the window containing at. A
// zero rate never refills, so the burst is the whole budget of the window.
func (rl *MemoryLimiter) getLimiter(key string, at time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket := at.UnixNano() / int64(rl.window)
	v, exists := rl.visitors[key]
	if !exists || v.bucket != bucket {
		v = &visitor{limiter: rate.NewLimiter(0, rl.limit), bucket: bucket}
		rl.visitors[key] = v
	}
	return v.limiter
}

// Visitors from a past window would start fresh anyway, so dropping them loses nothing.
func (rl *MemoryLimiter) cleanup() {
	interval := rl.window
	if interval > 10*time.Minute {
		interval = 10 * time.Minute
	}
	for {
		time.Sleep(interval)
		rl.mu.Lock()
		current := rl.now().UnixNano() / int64(rl.window)
		for key, v := range rl.visitors {
			if v.bucket != current {
				delete(rl.visitors, key)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimit returns middleware that rejects clients over the limiter's budget
// with 429 and the given message. Limiter failures let the request through.
func RateLimit(limiter Limiter, message string, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)

			ok, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				log.Warn("rate limiter unavailable", zap.String("client", ip), zap.Error(err))
				ok = true
			}
			if !ok {
				writeMessage(w, http.StatusTooManyRequests, message)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host part of RemoteAddr. Behind a trusted proxy the
// router rewrites RemoteAddr from X-Forwarded-For first.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
