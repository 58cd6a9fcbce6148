package geocode

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Limiter gates outbound requests. Acquire blocks until the next request may
// be issued, or until ctx is cancelled. Limiters are provider-scoped and hold
// no cross-run state.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// intervalLimiter guarantees at least a minimum interval between consecutive
// acquisitions, independent of how long each request takes.
type intervalLimiter struct {
	l *rate.Limiter
}

// NewIntervalLimiter creates a Limiter that spaces acquisitions by at least min.
func NewIntervalLimiter(min time.Duration) Limiter {
	return &intervalLimiter{l: rate.NewLimiter(rate.Every(min), 1)}
}

func (il *intervalLimiter) Acquire(ctx context.Context) error {
	if err := il.l.Wait(ctx); err != nil {
		return eris.Wrap(err, "geocode: rate limit wait")
	}
	return nil
}

// windowLimiter permits at most n acquisitions within any rolling window.
// x/time/rate's token bucket refills continuously and cannot express a strict
// rolling-window ceiling, so this keeps the timestamps of the last n
// acquisitions and blocks until the oldest one leaves the window.
type windowLimiter struct {
	mu     sync.Mutex
	n      int
	window time.Duration
	stamps []time.Time
}

// NewWindowLimiter creates a Limiter allowing at most n acquisitions per
// rolling window.
func NewWindowLimiter(n int, window time.Duration) Limiter {
	return &windowLimiter{n: n, window: window}
}

func (wl *windowLimiter) Acquire(ctx context.Context) error {
	for {
		wl.mu.Lock()
		now := time.Now()

		// Drop acquisitions that have left the window.
		cut := 0
		for cut < len(wl.stamps) && now.Sub(wl.stamps[cut]) >= wl.window {
			cut++
		}
		wl.stamps = wl.stamps[cut:]

		if len(wl.stamps) < wl.n {
			wl.stamps = append(wl.stamps, now)
			wl.mu.Unlock()
			return nil
		}

		wait := wl.window - now.Sub(wl.stamps[0])
		wl.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return eris.Wrap(ctx.Err(), "geocode: rate limit wait")
		case <-timer.C:
		}
	}
}
