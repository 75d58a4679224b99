// Package ratelimit throttles note creation per browser session and per MCP
// caller so a single client cannot flood the NoteHub API.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kuitang/notehub-client/internal/clock"
)

// Config defines the rate limiting configuration.
type Config struct {
	RPS             float64       // Sustained requests per second per key
	Burst           int           // Burst size per key
	IdleTimeout     time.Duration // Limiters unused this long are dropped
	CleanupInterval time.Duration // How often idle limiters are swept
}

// DefaultConfig allows a short burst of creates, then one every two seconds.
var DefaultConfig = Config{
	RPS:             0.5,
	Burst:           5,
	IdleTimeout:     30 * time.Minute,
	CleanupInterval: 5 * time.Minute,
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// RateLimiter manages per-key token buckets.
type RateLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	config   Config
	clock    clock.Clock

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRateLimiter creates a rate limiter and starts its background sweep.
// A nil clk uses wall time.
func NewRateLimiter(config Config, clk clock.Clock) *RateLimiter {
	if clk == nil {
		clk = clock.Real()
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig.CleanupInterval
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultConfig.IdleTimeout
	}
	rl := &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		config:   config,
		clock:    clk,
		stopCh:   make(chan struct{}),
	}

	rl.wg.Add(1)
	go rl.cleanupLoop()

	return rl
}

// Allow reports whether one more request for key fits in its bucket.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiterFor(key).AllowN(rl.clock.Now(), 1)
}

// Remaining returns the whole tokens currently left for key.
func (rl *RateLimiter) Remaining(key string) int {
	n := int(rl.limiterFor(key).TokensAt(rl.clock.Now()))
	if n < 0 {
		return 0
	}
	return n
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	entry, ok := rl.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(rl.config.RPS), rl.config.Burst)}
		rl.limiters[key] = entry
	}
	entry.lastUsed = now
	return entry.limiter
}

// Cleanup removes limiters idle for longer than IdleTimeout.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.clock.Now().Add(-rl.config.IdleTimeout)
	for key, entry := range rl.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
}

func (rl *RateLimiter) cleanupLoop() {
	defer rl.wg.Done()

	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the sweep goroutine and waits for it to finish.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
	rl.wg.Wait()
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}
