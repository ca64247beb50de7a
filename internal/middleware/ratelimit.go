// Package middleware provides HTTP middleware for chronicled.
package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/backbill/chronicle/internal/metrics"
)

// Bucket table limits. Entries idle past staleAfter are swept so the table
// cannot grow without bound; once maxBuckets is reached new client IPs are
// rejected outright rather than evicting active entries.
const (
	maxBuckets = 100_000
	staleAfter = 10 * time.Minute
	sweepEvery = 5 * time.Minute
)

// RateLimiter applies a token bucket per client IP. Tokens are fractional so
// low rates still refill smoothly between requests.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   float64
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// NewRateLimiter builds a limiter allowing ratePerSec sustained requests with
// the given burst, and starts a sweeper goroutine that exits when ctx is
// cancelled.
func NewRateLimiter(ctx context.Context, ratePerSec, burst int) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		rate:    float64(ratePerSec),
		burst:   float64(burst),
	}
	go rl.sweep(ctx)

	return rl
}

// take refills b from elapsed time and consumes one token if available.
// Caller holds rl.mu.
func (rl *RateLimiter) take(b *bucket, now time.Time) bool {
	b.tokens += now.Sub(b.seen).Seconds() * rl.rate
	if b.tokens > rl.burst {
		b.tokens = rl.burst
	}
	b.seen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--

	return true
}

func (rl *RateLimiter) sweep(ctx context.Context) {
	ticker := time.NewTicker(sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for ip, b := range rl.buckets {
				if now.Sub(b.seen) > staleAfter {
					delete(rl.buckets, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Handler returns Gin middleware enforcing the per-IP limit.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// ClientIP cannot be spoofed through X-Forwarded-For here because the
		// router disables trusted proxies.
		ip := c.ClientIP()
		now := time.Now()

		rl.mu.Lock()
		b, ok := rl.buckets[ip]
		if !ok {
			if len(rl.buckets) >= maxBuckets {
				rl.mu.Unlock()
				metrics.ErrorsTotal.WithLabelValues("rate_limited").Inc()
				respondError(c, http.StatusTooManyRequests, "rate_limited", "too many clients")

				return
			}

			b = &bucket{tokens: rl.burst, seen: now}
			rl.buckets[ip] = b
		}
		allowed := rl.take(b, now)
		rl.mu.Unlock()

		if !allowed {
			metrics.ErrorsTotal.WithLabelValues("rate_limited").Inc()
			respondError(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")

			return
		}

		c.Next()
	}
}
