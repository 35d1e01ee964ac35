package inkwell

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter rate-limits attempts per client IP with a token bucket per key.
// It allows burst attempts at once, refilled at one per every/burst.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewLimiter creates a Limiter that allows max attempts per window.
func NewLimiter(max int, window time.Duration) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Every(window / time.Duration(max)),
		burst:   max,
		idle:    window,
		now:     time.Now,
	}
}

func (l *Limiter) get(key string, now time.Time) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	return b
}

// Allow checks whether key still has budget and records the attempt.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get(key, now).lim.AllowN(now, 1)
}

// Check reports whether key has budget left without spending it. Pair it
// with Record to count only failed attempts.
func (l *Limiter) Check(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get(key, now).lim.TokensAt(now) >= 1
}

// Record spends one attempt for key.
func (l *Limiter) Record(key string) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.get(key, now).lim.AllowN(now, 1)
}

// Sweep drops buckets idle for longer than the window and returns how many
// remain. Buckets that were idle that long are full again, so dropping them
// changes no decision.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-l.idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
	return len(l.buckets)
}
