// Package acidbox is a step-pattern driven monophonic acid bass
// engine. A look-ahead scheduler walks a fixed 16-step pattern and
// drives two outputs from the same trigger decisions: sample-accurate
// synth automation on the rendering clock, and timer-delayed MIDI
// messages on a selected output.
package acidbox

import (
	"sync"

	"github.com/acidgo/acidbox/internal/midiout"
	"github.com/acidgo/acidbox/internal/pattern"
	"github.com/acidgo/acidbox/internal/render"
	"github.com/acidgo/acidbox/internal/sched"
	"github.com/acidgo/acidbox/internal/voice"
)

// Data model, re-exported for callers outside the module.
type (
	Step        = pattern.Step
	Pattern     = pattern.Pattern
	SynthParams = pattern.SynthParams
	Waveform    = pattern.Waveform
)

const (
	WaveSawtooth = pattern.WaveSawtooth
	WaveSquare   = pattern.WaveSquare

	// PatternLength is the fixed step count per bar.
	PatternLength = pattern.Length
)

// DefaultParams returns the default knob values.
func DefaultParams() SynthParams { return pattern.DefaultParams() }

// ParsePattern parses bassline notation (see internal/pattern) into a
// 16-step pattern.
func ParsePattern(text string) (Pattern, error) { return pattern.ParsePattern(text) }

// FormatPattern renders a pattern back into bassline notation.
func FormatPattern(p Pattern) string { return pattern.FormatPattern(p) }

// MIDIPorts lists the available MIDI output names.
func MIDIPorts() []string { return midiout.Ports() }

// State is the transport state. There is no pause: restarting always
// begins at step 0.
type State int

const (
	Stopped State = iota
	Playing
)

type Option func(*engineConfig)

type engineConfig struct {
	sampleRate  int
	midiPort    string
	midiChannel uint8
	onStep      func(int)
	audioOutput bool
}

func defaultEngineConfig() engineConfig {
	return engineConfig{sampleRate: 48000, audioOutput: true}
}

// WithSampleRate overrides the default 48000 Hz rendering rate.
func WithSampleRate(rate int) Option {
	return func(cfg *engineConfig) {
		if rate > 0 {
			cfg.sampleRate = rate
		}
	}
}

// WithMIDIPort selects the MIDI output by (partial, case-insensitive)
// port name. Without it the engine runs audio-only and MIDI sends are
// dropped.
func WithMIDIPort(name string) Option {
	return func(cfg *engineConfig) { cfg.midiPort = name }
}

// WithMIDIChannel sets the channel (0-15) for emitted notes.
func WithMIDIChannel(ch uint8) Option {
	return func(cfg *engineConfig) { cfg.midiChannel = ch }
}

// WithOnStep installs the step-index notification for external
// display: 0..15 as steps are scheduled, -1 when the transport stops.
// The callback runs on the scheduling goroutine; it may read engine
// state but must be quick and must not call Start or Stop.
func WithOnStep(fn func(int)) Option {
	return func(cfg *engineConfig) { cfg.onStep = fn }
}

// WithoutAudioOutput disables the audio device entirely. Used for
// offline rendering and tests; scheduling and MIDI are unaffected.
func WithoutAudioOutput() Option {
	return func(cfg *engineConfig) { cfg.audioOutput = false }
}

// Engine owns the whole signal path and the transport state machine.
// Construct one, hand it around explicitly, and Close it when done;
// there is no package-level shared instance.
type Engine struct {
	cfg     engineConfig
	store   *pattern.Store
	emitter *midiout.Emitter

	// lifecycle serializes Start/Stop. mu guards the session fields
	// and is never held across calls into the scheduler, so an OnStep
	// callback may read engine state freely.
	lifecycle sync.Mutex
	mu        sync.Mutex
	state     State
	voice     *voice.Voice
	sched     *sched.Scheduler
	audio     *render.Player
}

func New(opts ...Option) (*Engine, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	e := &Engine{
		cfg:     cfg,
		store:   pattern.NewStore(),
		emitter: midiout.New(nil),
	}
	e.emitter.SetChannel(cfg.midiChannel)
	if cfg.midiPort != "" {
		if err := e.emitter.Connect(cfg.midiPort); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Start transitions Stopped -> Playing: resumes the rendering backend,
// creates the session voice, resets the cursor and begins the
// look-ahead loop. No-op when already playing.
func (e *Engine) Start() error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	if e.State() == Playing {
		return nil
	}

	// The voice is created on the Playing transition and reused for
	// every trigger of the session; exactly one exists while playing.
	v := voice.New(e.cfg.sampleRate)
	var player *render.Player
	if e.cfg.audioOutput {
		p, err := render.NewPlayer(e.cfg.sampleRate, v)
		if err != nil {
			return err
		}
		player = p
		player.Play()
	}
	e.emitter.SetClock(v)
	sch := sched.New(e.store, v,
		[]sched.Sink{voiceSink{v}, midiSink{e.emitter}},
		sched.Options{OnStep: e.cfg.onStep})

	e.mu.Lock()
	e.voice, e.audio, e.sched = v, player, sch
	e.state = Playing
	e.mu.Unlock()

	sch.Start()
	return nil
}

// Stop transitions Playing -> Stopped: cancels the pending tick,
// silences the voice, panics the MIDI output and clears the published
// step. Panic and silence always run, so repeated stops are safe.
func (e *Engine) Stop() {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.Lock()
	sch, v, audio := e.sched, e.voice, e.audio
	wasStopped := e.state == Stopped
	e.sched, e.voice, e.audio = nil, nil, nil
	e.state = Stopped
	e.mu.Unlock()

	if sch != nil {
		sch.Stop()
	}
	if v != nil {
		v.Silence()
	}
	e.emitter.Panic()
	if audio != nil {
		_ = audio.Stop()
	}
	if wasStopped && e.cfg.onStep != nil {
		// The scheduler publishes -1 itself when it stops; a stop
		// while already stopped still clears the display.
		e.cfg.onStep(-1)
	}
}

// Close stops playback and releases the MIDI driver.
func (e *Engine) Close() {
	e.Stop()
	midiout.CloseDriver()
}

// State reports the current transport state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Pattern returns the current pattern snapshot.
func (e *Engine) Pattern() Pattern { return e.store.Pattern() }

// Params returns the current knob values.
func (e *Engine) Params() SynthParams { return e.store.Params() }

// SetPattern replaces the whole pattern. Takes effect from the next
// step boundary; already-enqueued events are never altered.
func (e *Engine) SetPattern(p Pattern) { e.store.SetPattern(p) }

// SetStep replaces one step.
func (e *Engine) SetStep(i int, s Step) { e.store.SetStep(i, s) }

// SetParams replaces the knob values, clamped to their legal ranges.
func (e *Engine) SetParams(p SynthParams) { e.store.SetParams(p) }

// voiceSink and midiSink fan the scheduler's trigger decisions out to
// the two outputs.
type voiceSink struct{ v *voice.Voice }

func (s voiceSink) Trigger(ev sched.StepEvent) {
	s.v.Trigger(ev.Step, ev.Next, ev.Params, ev.When, ev.Duration)
}

type midiSink struct{ e *midiout.Emitter }

func (s midiSink) Trigger(ev sched.StepEvent) {
	if !ev.Step.Active {
		return
	}
	s.e.Trigger(ev.Step.MIDINote(), ev.Step.Accent, slideTie(ev.Step, ev.Next), ev.When, ev.Duration)
}

// slideTie reports whether a step actually ties into the following
// one. A slide into a rest releases early, matching the audio gate's
// articulation of the same step.
func slideTie(cur, next Step) bool {
	return cur.Slide && next.Active
}
