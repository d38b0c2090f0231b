// Package server implements a token bucket rate limiter for per-connection
// throttling that protects the relay from abuse.
package server

import (
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter refills Burst tokens every RefillInterval and starts full.
type rateLimiter struct {
	limiter *rate.Limiter
	cfg     RateLimitConfig
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}

	perSecond := rate.Limit(float64(cfg.Burst) / cfg.RefillInterval.Seconds())
	return &rateLimiter{
		limiter: rate.NewLimiter(perSecond, cfg.Burst),
		cfg:     cfg,
	}
}

func (rl *rateLimiter) allow() bool {
	return rl.limiter.Allow()
}
