package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/campass/campass-gateway/pkg/env"
)

// Throttle limits passcode attempts per slug+client pair with a token
// bucket. The auth handler answers a throttled attempt exactly like a
// wrong passcode, so the throttle never becomes a slug-validity oracle.
type Throttle struct {
	mu       sync.Mutex
	limiters map[string]*throttleEntry
	limit    rate.Limit
	burst    int
}

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewThrottle builds a throttle from env config:
// AUTH_THROTTLE_INTERVAL (default 2s, refill of one attempt) and
// AUTH_THROTTLE_BURST (default 5).
func NewThrottle() *Throttle {
	interval := env.GetEnvDurationOrDefault("AUTH_THROTTLE_INTERVAL", 2*time.Second)
	burst := env.GetEnvIntOrDefault("AUTH_THROTTLE_BURST", 5)
	if burst < 1 {
		burst = 1
	}
	return &Throttle{
		limiters: make(map[string]*throttleEntry),
		limit:    rate.Every(interval),
		burst:    burst,
	}
}

// Allow reports whether another attempt for key may proceed now.
func (t *Throttle) Allow(key string) bool {
	t.mu.Lock()
	entry, ok := t.limiters[key]
	if !ok {
		entry = &throttleEntry{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	t.mu.Unlock()

	return entry.limiter.Allow()
}

// Prune drops limiters idle longer than maxIdle and returns how many were
// removed. Called from the cron routines.
func (t *Throttle) Prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, entry := range t.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(t.limiters, key)
			removed++
		}
	}
	return removed
}
