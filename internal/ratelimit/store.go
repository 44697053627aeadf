// Package ratelimit enforces a per-principal request quota over a fixed
// window: one shared counter table, reset wholesale by a store-owned
// background sweeper every window duration.
//
// Fixed-window counting has a known boundary gap: a principal can spend
// its full quota just before a sweep and again just after, landing 2×max
// requests in a short span straddling the reset. That is the accepted
// behavior of this store; moving to a sliding window or token bucket
// would change what clients observe and is a deliberate decision left to
// callers who need it.
package ratelimit

import (
	"errors"
	"sync"
	"time"

	"github.com/thejerf/abtime"
)

// sweepTickerID is the abtime ID of the window-reset ticker, so tests can
// fire sweeps from a manual clock.
const sweepTickerID = 0

// Decision is the outcome of one admission check.
type Decision struct {
	// Allowed reports whether the request fits the current window.
	Allowed bool

	// Count is the principal's counter after this check. Admission
	// includes the request being evaluated; a rejected request leaves
	// the counter where it was.
	Count int

	// Limit is the configured per-window maximum.
	Limit int

	// Remaining is how many more requests the window still admits.
	Remaining int

	// RetryAfter is the time until the next wholesale reset.
	RetryAfter time.Duration
}

// Store tracks request counters per principal within the current window.
// The counter table is the only state shared across in-flight requests;
// every read-modify-write in Admit and the sweeper's wholesale clear run
// under one mutex, so increments are never lost and a half-cleared table
// is never observed.
type Store struct {
	max    int
	window time.Duration
	clock  abtime.AbstractTime

	mu          sync.Mutex
	counts      map[string]int
	windowStart time.Time

	done    chan struct{}
	stopped chan struct{}
	// swept carries one token per completed sweeper pass so tests can
	// wait for a reset; the buffer keeps an unwatched sweeper from
	// blocking on it.
	swept chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithClock substitutes the time source driving the sweeper and the
// retry-after arithmetic. Tests pass a manual clock.
func WithClock(clock abtime.AbstractTime) Option {
	return func(s *Store) { s.clock = clock }
}

// NewStore builds a Store admitting up to max requests per principal per
// window. The sweeper does not run until Start is called; a store without
// a running sweeper counts forever against the same window.
func NewStore(max int, window time.Duration, opts ...Option) (*Store, error) {
	if max <= 0 {
		return nil, errors.New("ratelimit: max requests must be positive")
	}
	if window <= 0 {
		return nil, errors.New("ratelimit: window must be positive")
	}

	s := &Store{
		max:    max,
		window: window,
		clock:  abtime.NewRealTime(),
		counts: make(map[string]int),
		swept:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.windowStart = s.clock.Now()
	return s, nil
}

// Admit records one request for the principal and decides whether it fits
// the current window: a first request creates the counter at 1 and is
// admitted, requests below the maximum increment and are admitted, and
// requests at the maximum are rejected without moving the counter.
func (s *Store) Admit(id string) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, ok := s.counts[id]
	switch {
	case !ok:
		s.counts[id] = 1
		return s.decisionLocked(1, true)
	case count < s.max:
		s.counts[id] = count + 1
		return s.decisionLocked(count+1, true)
	default:
		return s.decisionLocked(count, false)
	}
}

// Sweep discards the whole counter table and starts a fresh window. The
// running sweeper calls it every window duration; tests call it directly.
func (s *Store) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts = make(map[string]int)
	s.windowStart = s.clock.Now()
}

// Start launches the background sweeper. Calling Start on a running
// store is a no-op.
func (s *Store) Start() {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return
	}
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})
	done, stopped := s.done, s.stopped
	s.mu.Unlock()

	ticker := s.clock.NewTicker(s.window, sweepTickerID)
	go func() {
		defer close(stopped)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Channel():
				s.Sweep()
				select {
				case s.swept <- struct{}{}:
				default:
				}
			case <-done:
				return
			}
		}
	}()
}

// Stop halts the sweeper and blocks until its goroutine has exited.
// Counters survive Stop; they just stop resetting.
func (s *Store) Stop() {
	s.mu.Lock()
	done, stopped := s.done, s.stopped
	s.done, s.stopped = nil, nil
	s.mu.Unlock()

	if done == nil {
		return
	}
	close(done)
	<-stopped
}

func (s *Store) decisionLocked(count int, allowed bool) Decision {
	remaining := s.max - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:    allowed,
		Count:      count,
		Limit:      s.max,
		Remaining:  remaining,
		RetryAfter: s.retryAfterLocked(),
	}
}

// retryAfterLocked is the time left until the sweeper fires again. With
// no sweeper running the window end may already be in the past; report
// zero rather than a negative hint.
func (s *Store) retryAfterLocked() time.Duration {
	d := s.windowStart.Add(s.window).Sub(s.clock.Now())
	if d < 0 {
		return 0
	}
	return d
}
