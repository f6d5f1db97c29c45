package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IPRateLimiter caps anonymous account creation per client IP. It is
// process-scoped global mutable state: entries are pruned periodically
// so a churn of distinct IPs doesn't leak memory forever.
type IPRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	rps      rate.Limit
	burst    int
	idleTTL  time.Duration
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter builds a limiter allowing perMinute requests per IP
// with the given burst, each bucket pruned after idleTTL of inactivity.
func NewIPRateLimiter(perMinute, burst int, idleTTL time.Duration) *IPRateLimiter {
	if perMinute <= 0 {
		perMinute = 5
	}
	if burst <= 0 {
		burst = 1
	}
	if idleTTL <= 0 {
		idleTTL = time.Hour
	}
	return &IPRateLimiter{
		limiters: make(map[string]*entry),
		rps:      rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
		idleTTL:  idleTTL,
	}
}

// Allow reports whether a new anonymous account may be minted for ip.
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.limiters[ip]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[ip] = e
	}
	e.lastSeen = time.Now()
	return e.limiter.Allow()
}

// Prune drops buckets idle longer than idleTTL. Intended to run on a
// periodic timer owned by the caller (init/teardown lifecycle).
func (l *IPRateLimiter) Prune(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, e := range l.limiters {
		if now.Sub(e.lastSeen) > l.idleTTL {
			delete(l.limiters, ip)
		}
	}
}

// Reset clears all tracked buckets, for test isolation.
func (l *IPRateLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiters = make(map[string]*entry)
}
