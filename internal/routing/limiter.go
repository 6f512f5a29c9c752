package routing

import (
	"context"
	"sync"
	"time"
)

// Limiter is the process-wide admission gate for the routing provider. It is a
// sliding-window token bucket: at most capacity consumptions within any rolling
// window. Check-and-consume is a single critical section, so concurrent workers
// can never overrun the budget between a check and a consume.
//
// Exhaustion is backpressure, not an error: callers block for the reported wait
// and retry.
type Limiter struct {
	mu         sync.Mutex
	timestamps []time.Time
	capacity   int
	window     time.Duration
	now        func() time.Time
}

// NewLimiter creates a limiter allowing capacity consumptions per rolling window.
func NewLimiter(capacity int, window time.Duration) *Limiter {
	return &Limiter{
		capacity: capacity,
		window:   window,
		now:      time.Now,
	}
}

// TryConsume atomically checks remaining budget and consumes one token. When
// the bucket is exhausted it reports the time until the oldest consumption
// leaves the window, after which a retry will succeed.
func (l *Limiter) TryConsume() (allowed bool, wait time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evict(now)

	if len(l.timestamps) < l.capacity {
		l.timestamps = append(l.timestamps, now)
		return true, 0
	}

	wait = l.timestamps[0].Add(l.window).Sub(now)
	if wait < 0 {
		wait = 0
	}
	return false, wait
}

// Acquire blocks until a token is consumed or ctx is canceled.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		allowed, wait := l.TryConsume()
		if allowed {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Remaining reports the unused budget in the current window.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(l.now())
	return l.capacity - len(l.timestamps)
}

// evict drops timestamps that fell out of the rolling window. Callers hold l.mu.
func (l *Limiter) evict(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for ; i < len(l.timestamps); i++ {
		if l.timestamps[i].After(cutoff) {
			break
		}
	}
	l.timestamps = l.timestamps[i:]
}
