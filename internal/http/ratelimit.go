package http

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	rateLimitPerWindow = 60
	rateLimitWindow    = time.Minute
	bucketSweepEvery   = 5 * time.Minute
	bucketStaleAfter   = 10 * time.Minute
)

// bucket is a fixed-window request counter for one client IP.
type bucket struct {
	windowStart time.Time
	count       int
}

// rateLimiter tracks per-IP fixed windows in memory. A background sweep
// drops buckets that have been idle long enough to be irrelevant.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	stopSweep chan struct{}
	stopOnce  sync.Once
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		buckets:   make(map[string]*bucket),
		stopSweep: make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// allow counts a request from clientIP against the current window and
// reports whether it is still under the limit.
func (rl *rateLimiter) allow(clientIP string, metrics *securityMetrics) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[clientIP]
	if !ok || now.Sub(b.windowStart) > rateLimitWindow {
		rl.buckets[clientIP] = &bucket{windowStart: now, count: 1}
		return true
	}

	b.count++
	if b.count > rateLimitPerWindow {
		if metrics != nil {
			atomic.AddInt64(&metrics.rateLimitHits, 1)
		}
		return false
	}
	return true
}

// ActiveClients reports how many IP buckets are currently tracked.
func (rl *rateLimiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopSweep)
	})
}

func (rl *rateLimiter) sweepLoop() {
	ticker := time.NewTicker(bucketSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.stopSweep:
			return
		}
	}
}

func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-bucketStaleAfter)
	for ip, b := range rl.buckets {
		if b.windowStart.Before(cutoff) {
			delete(rl.buckets, ip)
		}
	}
}
