package auth

import (
	"testing"
	"time"
)

func TestIPRateLimiter_AllowsUpToBurst(t *testing.T) {
	l := NewIPRateLimiter(60, 3, time.Hour)
	for i := 0; i < 3; i++ {
		if !l.Allow("1.1.1.1") {
			t.Fatalf("Allow() call %d should succeed within burst", i)
		}
	}
	if l.Allow("1.1.1.1") {
		t.Error("Allow() should reject once burst is exhausted")
	}
}

func TestIPRateLimiter_TracksIPsIndependently(t *testing.T) {
	l := NewIPRateLimiter(60, 1, time.Hour)
	if !l.Allow("1.1.1.1") {
		t.Fatal("first Allow() for IP A should succeed")
	}
	if !l.Allow("2.2.2.2") {
		t.Fatal("first Allow() for IP B should succeed independently")
	}
}

func TestIPRateLimiter_Prune(t *testing.T) {
	l := NewIPRateLimiter(60, 1, time.Millisecond)
	l.Allow("1.1.1.1")
	time.Sleep(5 * time.Millisecond)
	l.Prune(time.Now())

	l.mu.Lock()
	_, stillTracked := l.limiters["1.1.1.1"]
	l.mu.Unlock()
	if stillTracked {
		t.Error("Prune() should drop idle buckets past idleTTL")
	}
}

func TestIPRateLimiter_Reset(t *testing.T) {
	l := NewIPRateLimiter(60, 1, time.Hour)
	l.Allow("1.1.1.1")
	l.Reset()
	if !l.Allow("1.1.1.1") {
		t.Error("Allow() after Reset() should succeed again")
	}
}
