// Package server implements a token bucket rate limiter for per-connection
// throttling that protects the hub from abuse.
package server

import (
	"sync"
	"time"
)

type rateLimiter struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	perSec   float64
	refilled time.Time
}

func newRateLimiter(burst int, interval time.Duration) *rateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	return &rateLimiter{
		tokens:   float64(burst),
		capacity: float64(burst),
		perSec:   float64(burst) / interval.Seconds(),
		refilled: time.Now(),
	}
}

// allow consumes one token if available, refilling the bucket according to
// the time elapsed since the previous call.
func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(rl.refilled).Seconds(); elapsed > 0 {
		rl.tokens = min(rl.capacity, rl.tokens+elapsed*rl.perSec)
	}
	rl.refilled = now

	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}
