package middleware

import (
	"sync"
	"time"
)

// RateLimiter is a fixed-window in-memory limiter keyed by account and by
// client IP.
type RateLimiter struct {
	accountLimits map[uint]*window
	ipLimits      map[string]*window
	mu            sync.Mutex

	accountMaxRequests int
	ipMaxRequests      int
	window             time.Duration
	now                func() time.Time
	stop               chan struct{}
}

type window struct {
	requests  int
	resetTime time.Time
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop.
func NewRateLimiter(accountMaxRequests, ipMaxRequests int, every time.Duration) *RateLimiter {
	rl := &RateLimiter{
		accountLimits:      make(map[uint]*window),
		ipLimits:           make(map[string]*window),
		accountMaxRequests: accountMaxRequests,
		ipMaxRequests:      ipMaxRequests,
		window:             every,
		now:                time.Now,
		stop:               make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// take counts one request in the key's window and reports whether it is
// within max.
func (rl *RateLimiter) take(w *window, max int, now time.Time) (*window, bool) {
	if w == nil || now.After(w.resetTime) {
		return &window{requests: 1, resetTime: now.Add(rl.window)}, true
	}
	if w.requests >= max {
		return w, false
	}
	w.requests++
	return w, true
}

// CheckAccountLimit checks if an account has exceeded its rate limit
func (rl *RateLimiter) CheckAccountLimit(accountID uint) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.take(rl.accountLimits[accountID], rl.accountMaxRequests, rl.now())
	rl.accountLimits[accountID] = w
	return ok
}

// CheckIPLimit checks if IP has exceeded rate limit
func (rl *RateLimiter) CheckIPLimit(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.take(rl.ipLimits[ip], rl.ipMaxRequests, rl.now())
	rl.ipLimits[ip] = w
	return ok
}

// AccountRemaining returns remaining requests for an account
func (rl *RateLimiter) AccountRemaining(accountID uint) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, exists := rl.accountLimits[accountID]
	if !exists || rl.now().After(w.resetTime) {
		return rl.accountMaxRequests
	}

	remaining := rl.accountMaxRequests - w.requests
	if remaining < 0 {
		return 0
	}
	return remaining
}

// cleanup removes expired entries
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
		}

		rl.mu.Lock()
		now := rl.now()
		for id, w := range rl.accountLimits {
			if now.After(w.resetTime) {
				delete(rl.accountLimits, id)
			}
		}
		for ip, w := range rl.ipLimits {
			if now.After(w.resetTime) {
				delete(rl.ipLimits, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// Stop ends the cleanup loop.
func (rl *RateLimiter) Stop() {
	close(rl.stop)
}

// Reset clears all rate limits
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.accountLimits = make(map[uint]*window)
	rl.ipLimits = make(map[string]*window)
}
