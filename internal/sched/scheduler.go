// Package sched implements the look-ahead scheduling loop. A coarse
// wall-clock ticker decides, ahead of real time, which steps must
// sound and stamps each with a rendering-clock time; the jitter of
// the ticker only affects when decisions are made, never when the
// scheduled audio executes.
package sched

import (
	"sync"
	"time"

	"github.com/acidgo/acidbox/internal/pattern"
)

const (
	// DefaultTickInterval is how often the loop wakes to top up the
	// schedule-ahead window.
	DefaultTickInterval = 25 * time.Millisecond
	// DefaultAheadWindow is how far ahead (rendering-clock seconds)
	// events are enqueued. It must exceed the tick interval by a wide
	// margin so host jitter never discovers a step late; 100ms against
	// a 25ms tick gives a 4x safety factor.
	DefaultAheadWindow = 0.100
	// DefaultStartOffset delays the first step slightly past "now" so
	// it is never scheduled in the past.
	DefaultStartOffset = 0.050
)

// Clock is the rendering clock the trigger timestamps are expressed
// against.
type Clock interface {
	Now() float64
}

// StepEvent is one trigger decision fanned out to the sinks.
type StepEvent struct {
	Index    int
	Step     pattern.Step
	Next     pattern.Step
	Params   pattern.SynthParams
	When     float64 // rendering-clock seconds
	Duration float64 // step length in seconds at decision time
}

// Sink receives trigger decisions. Both the voice engine and the MIDI
// emitter sit behind this interface; inactive steps are delivered too,
// since the voice must close its gate on a rest.
type Sink interface {
	Trigger(ev StepEvent)
}

type Options struct {
	TickInterval time.Duration
	AheadWindow  float64
	StartOffset  float64
	// OnStep is called with each step index as it is scheduled, and
	// with -1 when the loop stops. It runs on the scheduling goroutine
	// outside the cursor lock; it must be quick and must not call back
	// into the scheduler.
	OnStep func(int)
}

// Scheduler owns the scheduling cursor: the current step index and
// the next event time, which is monotonically non-decreasing for the
// lifetime of a run.
type Scheduler struct {
	store *pattern.Store
	clock Clock
	sinks []Sink
	opts  Options

	mu            sync.Mutex
	running       bool
	quit          chan struct{}
	stepIndex     int
	nextEventTime float64

	// emitMu serializes delivery against Stop, so the -1 publication
	// always lands after any in-flight batch.
	emitMu sync.Mutex
}

func New(store *pattern.Store, clock Clock, sinks []Sink, opts Options) *Scheduler {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.AheadWindow <= 0 {
		opts.AheadWindow = DefaultAheadWindow
	}
	if opts.StartOffset <= 0 {
		opts.StartOffset = DefaultStartOffset
	}
	return &Scheduler{store: store, clock: clock, sinks: sinks, opts: opts}
}

// Start resets the cursor and begins the loop. No-op when already
// running, so a double start can never produce two ticking loops.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.quit = make(chan struct{})
	s.stepIndex = 0
	s.nextEventTime = s.clock.Now() + s.opts.StartOffset
	quit := s.quit
	s.mu.Unlock()

	go s.run(quit)
}

// Stop cancels the pending tick; no further triggers are emitted.
// Safe to call repeatedly.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.quit)
	s.mu.Unlock()
	// A batch still delivering holds emitMu and drops its remaining
	// events on the closed quit channel; the -1 follows it.
	s.emitMu.Lock()
	if s.opts.OnStep != nil {
		s.opts.OnStep(-1)
	}
	s.emitMu.Unlock()
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(quit chan struct{}) {
	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()
	s.tick(quit) // fill the window immediately rather than a tick late
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			s.tick(quit)
		}
	}
}

// tick tops up the schedule-ahead window. The snapshot read and the
// cursor advance form one critical section, so editor mutations land
// on a step boundary; delivery happens after the cursor lock is
// released, so an OnStep callback may take locks of its own without
// deadlocking against Stop.
func (s *Scheduler) tick(quit chan struct{}) {
	s.mu.Lock()
	select {
	case <-quit:
		// This run was stopped (possibly with a new run already
		// started); its cursor state is stale.
		s.mu.Unlock()
		return
	default:
	}
	pat, _ := s.store.Snapshot()
	horizon := s.clock.Now() + s.opts.AheadWindow
	var batch []StepEvent
	for s.nextEventTime < horizon {
		// Tempo is re-read on every advance so a change alters only
		// future increments, not times already handed out.
		params := s.store.Params()
		dur := params.SecondsPerStep()
		batch = append(batch, StepEvent{
			Index:    s.stepIndex,
			Step:     pat[s.stepIndex],
			Next:     pat[(s.stepIndex+1)%pattern.Length],
			Params:   params,
			When:     s.nextEventTime,
			Duration: dur,
		})
		s.nextEventTime += dur
		s.stepIndex = (s.stepIndex + 1) % pattern.Length
	}
	s.mu.Unlock()

	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	for _, ev := range batch {
		select {
		case <-quit:
			return // stopped mid-batch; the remaining events are void
		default:
		}
		s.dispatch(ev)
		if s.opts.OnStep != nil {
			s.opts.OnStep(ev.Index)
		}
	}
}

// dispatch isolates each sink: one misbehaving event must not halt
// the loop or starve the remaining sinks.
func (s *Scheduler) dispatch(ev StepEvent) {
	for _, sink := range s.sinks {
		func() {
			defer func() { _ = recover() }()
			sink.Trigger(ev)
		}()
	}
}
