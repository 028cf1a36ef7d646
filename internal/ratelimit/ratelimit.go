// Package ratelimit throttles booking mutations with a token bucket per
// client. The bucket lives in Redis when available so that every replica
// shares it; otherwise each process keeps its own.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the client identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Settings describe a bucket: Burst tokens, one refilled every RefillEvery.
type Settings struct {
	Burst       int
	RefillEvery time.Duration
	TTL         time.Duration
	Prefix      string
}

func (s Settings) normalise() Settings {
	if s.Burst < 1 {
		s.Burst = 1
	}
	if s.RefillEvery <= 0 {
		s.RefillEvery = time.Second
	}
	if minTTL := 5 * s.RefillEvery; s.TTL < minTTL {
		s.TTL = minTTL
	}
	if s.Prefix == "" {
		s.Prefix = "rl"
	}
	return s
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalLimiter keeps one rate.Limiter per key in process memory. Idle keys
// are swept after TTL.
type LocalLimiter struct {
	settings  Settings
	now       func() time.Time
	mu        sync.Mutex
	visitors  map[string]*localEntry
	lastSweep time.Time
}

// NewLocal constructs a LocalLimiter.
func NewLocal(s Settings) *LocalLimiter {
	return &LocalLimiter{
		settings: s.normalise(),
		now:      time.Now,
		visitors: make(map[string]*localEntry),
	}
}

// Allow consumes one token for key. It never returns an error.
func (l *LocalLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	l.sweep(now)
	entry, ok := l.visitors[key]
	if !ok {
		entry = &localEntry{
			limiter: rate.NewLimiter(rate.Every(l.settings.RefillEvery), l.settings.Burst),
		}
		l.visitors[key] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()

	r := entry.limiter.ReserveN(now, 1)
	d := Decision{Limit: l.settings.Burst}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		d.RetryAfter = delay
		return d, nil
	}
	d.Allowed = true
	d.Remaining = max(int(entry.limiter.TokensAt(now)), 0)
	return d, nil
}

func (l *LocalLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.settings.TTL {
		return
	}
	l.lastSweep = now
	for k, e := range l.visitors {
		if now.Sub(e.lastSeen) >= l.settings.TTL {
			delete(l.visitors, k)
		}
	}
}
