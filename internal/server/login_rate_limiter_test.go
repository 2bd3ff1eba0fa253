package server

import (
	"testing"
	"time"
)

func TestLoginRateLimiterBlocksAndExpires(t *testing.T) {
	limiter := newLoginRateLimiter(3, time.Minute, 10*time.Minute)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	key := "127.0.0.1|alice"

	for i := 0; i < 3; i++ {
		if !limiter.Allow(key, now) {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
		limiter.RegisterFailure(key, now)
	}
	if limiter.Allow(key, now.Add(time.Minute)) {
		t.Fatal("expected key to be blocked after max failures")
	}
	if !limiter.Allow("127.0.0.1|bob", now) {
		t.Fatal("other keys should not be blocked")
	}
	if !limiter.Allow(key, now.Add(11*time.Minute)) {
		t.Fatal("expected block to expire")
	}
}

func TestLoginRateLimiterWindowResetsFailures(t *testing.T) {
	limiter := newLoginRateLimiter(2, time.Minute, 10*time.Minute)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	key := "127.0.0.1|alice"

	limiter.RegisterFailure(key, now)
	limiter.RegisterFailure(key, now.Add(2*time.Minute))
	if !limiter.Allow(key, now.Add(2*time.Minute)) {
		t.Fatal("failures outside the window should not accumulate")
	}
}

func TestLoginRateLimiterDisabled(t *testing.T) {
	limiter := newLoginRateLimiter(0, time.Minute, time.Minute)
	if limiter != nil {
		t.Fatal("expected zero max failures to disable the limiter")
	}
	now := time.Now()
	limiter.RegisterFailure("k", now)
	if !limiter.Allow("k", now) {
		t.Fatal("nil limiter should allow everything")
	}
	limiter.Reset("k")
}

func TestLoginRateLimiterRetryAfter(t *testing.T) {
	limiter := newLoginRateLimiter(1, time.Minute, 90*time.Second)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	limiter.RegisterFailure("k", now)
	wait := limiter.RetryAfter("k", now.Add(500*time.Millisecond))
	if wait != 90*time.Second-500*time.Millisecond {
		t.Fatalf("unexpected retry after %s", wait)
	}
	if got := retryAfterSeconds(wait); got != 90 {
		t.Fatalf("expected 90 seconds, got %d", got)
	}
	limiter.Reset("k")
	if wait := limiter.RetryAfter("k", now); wait != 0 {
		t.Fatalf("expected reset key to be allowed, got %s", wait)
	}
}
