// ABOUTME: Fixed-window per-identity rate limiter with lazy cooldown state
// ABOUTME: A background sweep expires idle identities to bound the map

package ratelimit

import (
	"sync"
	"time"
)

// staleAfterIntervals is how many intervals an identity may sit idle before
// its cooldown state is swept.
const staleAfterIntervals = 10

// sweepPeriod is how often the background sweep runs.
const sweepPeriod = time.Minute

// cooldown is the per-identity counter state.
type cooldown struct {
	count       int
	windowStart time.Time
}

// Limiter is a fixed-window counter keyed by identity. Safe for concurrent
// use; read-modify-write on an identity's state is atomic under the mutex.
type Limiter struct {
	mu       sync.Mutex
	allowed  int
	interval time.Duration
	states   map[string]*cooldown
	now      func() time.Time
	done     chan struct{}
	closed   bool
}

// New creates a limiter allowing `allowed` requests per identity within
// `interval`. A background goroutine sweeps stale state; call Close to stop it.
func New(allowed int, interval time.Duration) *Limiter {
	l := &Limiter{
		allowed:  allowed,
		interval: interval,
		states:   make(map[string]*cooldown),
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go l.sweep()
	return l
}

// CheckAndRecord reports whether the identity is currently limited, recording
// the interaction when it is not. State is created lazily on first use.
func (l *Limiter) CheckAndRecord(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	st, ok := l.states[identity]
	if !ok {
		l.states[identity] = &cooldown{count: 1, windowStart: now}
		return false
	}

	if st.count > l.allowed {
		if now.Sub(st.windowStart) <= l.interval {
			// Still inside the window: limited, state untouched.
			return true
		}
		// Window elapsed: reset and let this one through.
		st.count = 1
		st.windowStart = now
		return false
	}

	st.count++
	return false
}

// Len returns the number of tracked identities.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.states)
}

// Close stops the background sweep.
func (l *Limiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.done)
	}
}

// sweep periodically drops identities whose window started long enough ago
// that the state no longer affects any decision.
func (l *Limiter) sweep() {
	ticker := time.NewTicker(sweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.removeStale()
		case <-l.done:
			return
		}
	}
}

func (l *Limiter) removeStale() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-time.Duration(staleAfterIntervals) * l.interval)
	for identity, st := range l.states {
		if st.windowStart.Before(cutoff) {
			delete(l.states, identity)
		}
	}
}
