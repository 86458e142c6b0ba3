package sched

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/acidgo/acidbox/internal/pattern"
)

type fakeClock struct {
	mu sync.Mutex
	t  float64
}

func (c *fakeClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d float64) {
	c.mu.Lock()
	c.t += d
	c.mu.Unlock()
}

type spySink struct {
	mu     sync.Mutex
	events []StepEvent
}

func (s *spySink) Trigger(ev StepEvent) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *spySink) snapshot() []StepEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StepEvent(nil), s.events...)
}

func testOptions() Options {
	return Options{TickInterval: time.Millisecond}
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSchedulerEmitsStepsInOrderAndWraps(t *testing.T) {
	store := pattern.NewStore() // default tempo 120 => 0.125s steps
	clock := &fakeClock{}
	spy := &spySink{}
	s := New(store, clock, []Sink{spy}, testOptions())
	s.Start()
	defer s.Stop()

	clock.advance(2.5)
	waitFor(t, func() bool { return len(spy.snapshot()) >= 20 }, "20 events")

	events := spy.snapshot()
	if events[0].When != 0.05 {
		t.Fatalf("expected first event at start offset 0.05, got %f", events[0].When)
	}
	for i, ev := range events[:20] {
		if ev.Index != i%pattern.Length {
			t.Fatalf("event %d: expected index %d, got %d", i, i%pattern.Length, ev.Index)
		}
		// Times must accumulate without drift: 0.05 + i*0.125 exactly.
		want := 0.05 + float64(i)*0.125
		if math.Abs(ev.When-want) > 1e-9 {
			t.Fatalf("event %d: expected time %f, got %f", i, want, ev.When)
		}
		if ev.Duration != 0.125 {
			t.Fatalf("event %d: expected duration 0.125, got %f", i, ev.Duration)
		}
	}
}

func TestSchedulerStaysAheadOfClock(t *testing.T) {
	store := pattern.NewStore()
	clock := &fakeClock{}
	spy := &spySink{}
	s := New(store, clock, []Sink{spy}, testOptions())
	s.Start()
	defer s.Stop()

	waitFor(t, func() bool { return len(spy.snapshot()) >= 1 }, "first event")
	for _, ev := range spy.snapshot() {
		if ev.When < clock.Now() {
			t.Fatalf("event at %f scheduled in the past", ev.When)
		}
	}
}

func TestTempoChangeAffectsOnlyFutureSteps(t *testing.T) {
	store := pattern.NewStore()
	clock := &fakeClock{}
	spy := &spySink{}
	s := New(store, clock, []Sink{spy}, testOptions())
	s.Start()
	defer s.Stop()

	clock.advance(1.0)
	waitFor(t, func() bool { return len(spy.snapshot()) >= 8 }, "8 events at 120 BPM")

	params := store.Params()
	params.Tempo = 200
	store.SetParams(params)
	clock.advance(1.0)
	waitFor(t, func() bool { return len(spy.snapshot()) >= 16 }, "8 more events at 200 BPM")

	events := spy.snapshot()
	for i := 1; i < 8; i++ {
		if d := events[i].When - events[i-1].When; math.Abs(d-0.125) > 1e-9 {
			t.Fatalf("pre-change gap %d: expected 0.125, got %f", i, d)
		}
	}
	last := events[len(events)-1]
	prev := events[len(events)-2]
	if d := last.When - prev.When; math.Abs(d-0.075) > 1e-9 {
		t.Fatalf("post-change gap: expected 0.075, got %f", d)
	}
}

func TestStopCancelsPendingTicks(t *testing.T) {
	store := pattern.NewStore()
	clock := &fakeClock{}
	spy := &spySink{}
	var steps []int
	var mu sync.Mutex
	opts := testOptions()
	opts.OnStep = func(i int) {
		mu.Lock()
		steps = append(steps, i)
		mu.Unlock()
	}
	s := New(store, clock, []Sink{spy}, opts)
	s.Start()
	waitFor(t, func() bool { return len(spy.snapshot()) >= 1 }, "first event")
	s.Stop()

	n := len(spy.snapshot())
	clock.advance(5)
	time.Sleep(20 * time.Millisecond)
	if got := len(spy.snapshot()); got != n {
		t.Fatalf("events emitted after stop: %d -> %d", n, got)
	}
	mu.Lock()
	defer mu.Unlock()
	if steps[len(steps)-1] != -1 {
		t.Fatalf("expected -1 published on stop, got %d", steps[len(steps)-1])
	}
	if s.Running() {
		t.Fatalf("expected scheduler stopped")
	}
	s.Stop() // second stop is a no-op
}

func TestRestartResetsCursor(t *testing.T) {
	store := pattern.NewStore()
	clock := &fakeClock{}
	spy := &spySink{}
	s := New(store, clock, []Sink{spy}, testOptions())
	s.Start()
	clock.advance(1.0)
	waitFor(t, func() bool { return len(spy.snapshot()) >= 5 }, "some events")
	s.Stop()

	n := len(spy.snapshot())
	s.Start()
	waitFor(t, func() bool { return len(spy.snapshot()) > n }, "events after restart")
	events := spy.snapshot()
	first := events[n]
	if first.Index != 0 {
		t.Fatalf("expected restart at step 0, got %d", first.Index)
	}
	if first.When < clock.Now() {
		t.Fatalf("expected restart offset past now, got %f < %f", first.When, clock.Now())
	}
	s.Stop()
}

func TestDoubleStartRunsSingleLoop(t *testing.T) {
	store := pattern.NewStore()
	clock := &fakeClock{}
	spy := &spySink{}
	s := New(store, clock, []Sink{spy}, testOptions())
	s.Start()
	s.Start()
	defer s.Stop()

	// With a frozen clock the window holds exactly one event (0.05
	// within 0.1); a duplicated loop would emit it twice.
	time.Sleep(30 * time.Millisecond)
	if got := len(spy.snapshot()); got != 1 {
		t.Fatalf("expected exactly 1 event from a single loop, got %d", got)
	}
}

func TestOnStepDeliveredOutsideCursorLock(t *testing.T) {
	store := pattern.NewStore()
	clock := &fakeClock{}
	spy := &spySink{}
	var s *Scheduler
	var mu sync.Mutex
	sawRunning := true
	opts := testOptions()
	opts.OnStep = func(i int) {
		if i < 0 {
			return
		}
		// Running takes the cursor lock; this deadlocks if the
		// callback is ever invoked while that lock is held.
		running := s.Running()
		mu.Lock()
		sawRunning = sawRunning && running
		mu.Unlock()
	}
	s = New(store, clock, []Sink{spy}, opts)
	s.Start()
	defer s.Stop()

	clock.advance(0.5)
	waitFor(t, func() bool { return len(spy.snapshot()) >= 4 }, "events with reentrant callback")
	mu.Lock()
	defer mu.Unlock()
	if !sawRunning {
		t.Fatalf("callback observed a stopped scheduler mid-run")
	}
}

type panickySink struct{}

func (panickySink) Trigger(StepEvent) { panic("bad event") }

func TestSinkPanicDoesNotHaltLoop(t *testing.T) {
	store := pattern.NewStore()
	clock := &fakeClock{}
	spy := &spySink{}
	s := New(store, clock, []Sink{panickySink{}, spy}, testOptions())
	s.Start()
	defer s.Stop()

	clock.advance(1.0)
	waitFor(t, func() bool { return len(spy.snapshot()) >= 8 }, "events despite panicking sink")
	if !s.Running() {
		t.Fatalf("expected loop still running")
	}
}
