package app

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL   = 10 * time.Minute
	limiterSweepTick = time.Minute
)

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// writeLimiter throttles create and append per user. Limiters unused for
// limiterIdleTTL are dropped; the sweep runs inside get at most once per
// limiterSweepTick, so no goroutine outlives the service.
type writeLimiter struct {
	mu        sync.Mutex
	m         map[string]*limiterEntry
	rps       float64
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

func newWriteLimiter(rps float64, burst int) *writeLimiter {
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 10
	}
	return &writeLimiter{
		m:     make(map[string]*limiterEntry),
		rps:   rps,
		burst: burst,
		now:   time.Now,
	}
}

func (p *writeLimiter) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if now.Sub(p.lastSweep) >= limiterSweepTick {
		p.sweep(now)
	}
	if e, ok := p.m[key]; ok {
		e.lastSeen = now
		return e.l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = &limiterEntry{l: l, lastSeen: now}
	return l
}

// sweep removes limiters idle for longer than limiterIdleTTL. p.mu must be held.
func (p *writeLimiter) sweep(now time.Time) {
	cutoff := now.Add(-limiterIdleTTL)
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
		}
	}
	p.lastSweep = now
}

func (p *writeLimiter) Allow(key string) bool {
	return p.get(key).Allow()
}

func (p *writeLimiter) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}
