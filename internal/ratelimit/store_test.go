package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/thejerf/abtime"
)

func newTestStore(t *testing.T, max int, window time.Duration) (*Store, *abtime.ManualTime) {
	t.Helper()

	clock := abtime.NewManualAtTime(time.Unix(1700000000, 0))
	s, err := NewStore(max, window, WithClock(clock))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s, clock
}

func TestNewStore_Validation(t *testing.T) {
	if _, err := NewStore(0, time.Minute); err == nil {
		t.Error("NewStore(0, 1m) error = nil, want an error")
	}
	if _, err := NewStore(-1, time.Minute); err == nil {
		t.Error("NewStore(-1, 1m) error = nil, want an error")
	}
	if _, err := NewStore(5, 0); err == nil {
		t.Error("NewStore(5, 0) error = nil, want an error")
	}
}

func TestStore_WindowBoundary(t *testing.T) {
	const max = 3
	s, _ := newTestStore(t, max, time.Minute)

	// The first max requests are admitted with an advancing counter.
	for i := 1; i <= max; i++ {
		d := s.Admit("u1")
		if !d.Allowed {
			t.Fatalf("request %d: Allowed = false, want true", i)
		}
		if d.Count != i {
			t.Errorf("request %d: Count = %d, want %d", i, d.Count, i)
		}
		if want := max - i; d.Remaining != want {
			t.Errorf("request %d: Remaining = %d, want %d", i, d.Remaining, want)
		}
	}

	// The max+1-th request is rejected and the counter holds at max.
	for i := 0; i < 2; i++ {
		d := s.Admit("u1")
		if d.Allowed {
			t.Fatal("request beyond the limit was admitted")
		}
		if d.Count != max {
			t.Errorf("rejected request advanced the counter to %d", d.Count)
		}
		if d.Remaining != 0 {
			t.Errorf("Remaining = %d, want 0", d.Remaining)
		}
	}

	// After a sweep the principal starts over at 1.
	s.Sweep()
	d := s.Admit("u1")
	if !d.Allowed {
		t.Fatal("request after sweep was rejected")
	}
	if d.Count != 1 {
		t.Errorf("Count after sweep = %d, want 1", d.Count)
	}
}

// window=1s, max=1: first request admitted, second rejected, and after the
// window resets a third is admitted again.
func TestStore_SingleRequestWindowScenario(t *testing.T) {
	s, clock := newTestStore(t, 1, time.Second)

	if d := s.Admit("u1"); !d.Allowed {
		t.Fatal("first request rejected")
	}
	if d := s.Admit("u1"); d.Allowed {
		t.Fatal("second request within the window admitted")
	}

	clock.Advance(1100 * time.Millisecond)
	s.Sweep()

	d := s.Admit("u1")
	if !d.Allowed {
		t.Fatal("request after window reset rejected")
	}
	if d.Count != 1 {
		t.Errorf("Count = %d, want 1", d.Count)
	}
}

func TestStore_PrincipalsIndependent(t *testing.T) {
	s, _ := newTestStore(t, 1, time.Minute)

	if d := s.Admit("u1"); !d.Allowed {
		t.Fatal("u1 first request rejected")
	}
	if d := s.Admit("u1"); d.Allowed {
		t.Fatal("u1 second request admitted")
	}

	// u1 exhausting its quota must not cost u2 anything.
	d := s.Admit("u2")
	if !d.Allowed {
		t.Fatal("u2 was rejected on its first request")
	}
	if d.Count != 1 {
		t.Errorf("u2 Count = %d, want 1", d.Count)
	}
}

func TestStore_RetryAfter(t *testing.T) {
	s, clock := newTestStore(t, 1, time.Minute)

	clock.Advance(20 * time.Second)
	d := s.Admit("u1")
	if want := 40 * time.Second; d.RetryAfter != want {
		t.Errorf("RetryAfter = %v, want %v", d.RetryAfter, want)
	}

	// Past the window end with no sweeper running: no negative hints.
	clock.Advance(2 * time.Minute)
	if d := s.Admit("u2"); d.RetryAfter != 0 {
		t.Errorf("RetryAfter = %v, want 0", d.RetryAfter)
	}
}

// Concurrent admissions for one principal must never lose an increment:
// exactly max out of the burst may pass.
func TestStore_ConcurrentSamePrincipal(t *testing.T) {
	const max = 16
	const requests = 4 * max

	s, _ := newTestStore(t, max, time.Minute)

	var wg sync.WaitGroup
	allowed := make(chan bool, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- s.Admit("u1").Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	admitted := 0
	for ok := range allowed {
		if ok {
			admitted++
		}
	}
	if admitted != max {
		t.Errorf("admitted %d requests, want exactly %d", admitted, max)
	}
}

// Two principals at their limits concurrently are admitted and rejected
// by their own counts alone.
func TestStore_ConcurrentDistinctPrincipals(t *testing.T) {
	const max = 8
	s, _ := newTestStore(t, max, time.Minute)

	var wg sync.WaitGroup
	results := make(map[string]chan bool)
	for _, id := range []string{"u1", "u2"} {
		ch := make(chan bool, 2*max)
		results[id] = ch
		for i := 0; i < 2*max; i++ {
			wg.Add(1)
			go func(id string, ch chan bool) {
				defer wg.Done()
				ch <- s.Admit(id).Allowed
			}(id, ch)
		}
	}
	wg.Wait()

	for id, ch := range results {
		close(ch)
		admitted := 0
		for ok := range ch {
			if ok {
				admitted++
			}
		}
		if admitted != max {
			t.Errorf("principal %s: admitted %d, want exactly %d", id, admitted, max)
		}
	}
}

func TestStore_SweeperLifecycle(t *testing.T) {
	s, clock := newTestStore(t, 1, time.Minute)

	s.Start()
	defer s.Stop()

	if d := s.Admit("u1"); !d.Allowed {
		t.Fatal("first request rejected")
	}
	if d := s.Admit("u1"); d.Allowed {
		t.Fatal("second request admitted")
	}

	// Fire the sweeper's ticker and wait for the pass to finish.
	clock.Advance(time.Minute)
	clock.Trigger(sweepTickerID)
	<-s.swept

	d := s.Admit("u1")
	if !d.Allowed {
		t.Fatal("request after sweep rejected")
	}
	if d.Count != 1 {
		t.Errorf("Count after sweep = %d, want 1", d.Count)
	}
}

func TestStore_SweeperLifecycleIsReentrant(t *testing.T) {
	s, _ := newTestStore(t, 1, time.Minute)

	// Start on a running store and Stop on a stopped one are no-ops, and
	// a stopped store can be started again.
	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
	s.Start()
	s.Stop()

	// A stopped store still serves admissions.
	if d := s.Admit("u1"); !d.Allowed {
		t.Fatal("stopped store rejected the first request")
	}
}

func ExampleStore_Admit() {
	s, _ := NewStore(2, time.Minute)

	for i := 0; i < 3; i++ {
		d := s.Admit("u1")
		fmt.Printf("allowed=%v count=%d remaining=%d\n", d.Allowed, d.Count, d.Remaining)
	}
	// Output:
	// allowed=true count=1 remaining=1
	// allowed=true count=2 remaining=0
	// allowed=false count=2 remaining=0
}
