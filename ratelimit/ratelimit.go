package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const idleTTL = 10 * time.Minute

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Keyed keeps one token bucket per key, such as a client IP or an e-mail address.
// Buckets idle for longer than ten minutes are dropped.
type Keyed struct {
	mu        sync.Mutex
	buckets   map[string]*entry
	limit     rate.Limit
	burst     int
	disabled  bool
	now       func() time.Time
	lastSweep time.Time
}

// NewKeyed allows perMinute events per key with the given burst.
// A non-positive rate or burst disables limiting.
func NewKeyed(perMinute float64, burst int) *Keyed {
	return &Keyed{
		buckets:  make(map[string]*entry),
		limit:    rate.Limit(perMinute / 60),
		burst:    burst,
		disabled: perMinute <= 0 || burst <= 0,
		now:      time.Now,
	}
}

// Allow reports whether an event for key may happen now and consumes a token if so.
func (k *Keyed) Allow(key string) bool {
	if k == nil || k.disabled {
		return true
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	k.sweep(now)

	e, ok := k.buckets[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.buckets[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// sweep must be called with the lock held.
func (k *Keyed) sweep(now time.Time) {
	if now.Sub(k.lastSweep) < time.Minute {
		return
	}
	k.lastSweep = now
	for key, e := range k.buckets {
		if now.Sub(e.lastSeen) > idleTTL {
			delete(k.buckets, key)
		}
	}
}

// Len is the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}
