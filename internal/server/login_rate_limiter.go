package server

import (
	"math"
	"sync"
	"time"
)

// loginRateLimiter blocks a client/username pair after repeated failed
// logins. A nil limiter allows everything.
type loginRateLimiter struct {
	mu          sync.Mutex
	attempts    map[string]loginAttempts
	maxFailures int
	window      time.Duration
	blockFor    time.Duration
	staleAfter  time.Duration
	sweepEvery  int
	ops         int
}

type loginAttempts struct {
	failures     int
	windowStart  time.Time
	blockedUntil time.Time
	lastSeen     time.Time
}

func newLoginRateLimiter(maxFailures int, window, blockFor time.Duration) *loginRateLimiter {
	if maxFailures <= 0 || window <= 0 || blockFor <= 0 {
		return nil
	}
	staleAfter := 2 * max(window, blockFor)
	if staleAfter < 10*time.Minute {
		staleAfter = 10 * time.Minute
	}
	return &loginRateLimiter{
		attempts:    make(map[string]loginAttempts),
		maxFailures: maxFailures,
		window:      window,
		blockFor:    blockFor,
		staleAfter:  staleAfter,
		sweepEvery:  64,
	}
}

// Allow reports whether key may attempt a login now.
func (l *loginRateLimiter) Allow(key string, now time.Time) bool {
	return l.RetryAfter(key, now) == 0
}

// RetryAfter returns how long key stays blocked, or zero when it may try.
func (l *loginRateLimiter) RetryAfter(key string, now time.Time) time.Duration {
	if l == nil || key == "" {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.sweepLocked(now)

	entry := l.attempts[key]
	entry.lastSeen = now
	if now.Before(entry.blockedUntil) {
		l.attempts[key] = entry
		return entry.blockedUntil.Sub(now)
	}

	entry.blockedUntil = time.Time{}
	if !entry.windowStart.IsZero() && now.Sub(entry.windowStart) > l.window {
		entry.failures = 0
		entry.windowStart = time.Time{}
	}
	l.attempts[key] = entry
	return 0
}

func (l *loginRateLimiter) RegisterFailure(key string, now time.Time) {
	if l == nil || key == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.sweepLocked(now)

	entry := l.attempts[key]
	if entry.windowStart.IsZero() || now.Sub(entry.windowStart) > l.window {
		entry.failures = 0
		entry.windowStart = now
	}
	entry.failures++
	entry.lastSeen = now
	if entry.failures >= l.maxFailures {
		entry.blockedUntil = now.Add(l.blockFor)
		entry.failures = 0
		entry.windowStart = time.Time{}
	}
	l.attempts[key] = entry
}

func (l *loginRateLimiter) Reset(key string) {
	if l == nil || key == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
}

func (l *loginRateLimiter) sweepLocked(now time.Time) {
	l.ops++
	if l.ops%l.sweepEvery != 0 {
		return
	}
	for key, entry := range l.attempts {
		if entry.lastSeen.IsZero() || now.Sub(entry.lastSeen) > l.staleAfter {
			delete(l.attempts, key)
		}
	}
}

// retryAfterSeconds rounds up so clients never retry early.
func retryAfterSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
