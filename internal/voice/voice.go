// Package voice implements the monophonic acid bass voice: one
// persistent oscillator -> resonant low-pass -> amplitude gate chain.
// Triggers schedule automation points on the rendering clock; the
// audio callback renders them sample by sample, so parameter changes
// land with sample accuracy even though triggers arrive from a
// jittery wall-clock timer.
package voice

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/acidgo/acidbox/internal/automation"
	"github.com/acidgo/acidbox/internal/pattern"
)

const (
	filterAttackSec = 0.010 // cutoff ramp from base to peak
	gateReleaseSec  = 0.020 // gate close ramp, gives note separation
	gateHoldFrac    = 0.8   // fraction of the step the gate stays open
	silenceRampSec  = 0.010 // forced-silence ramp on stop
	maxCutoffHz     = 20000.0
	minQ            = 0.5
	maxQ            = 30.0
)

// State describes what the voice is doing right now.
type State int

const (
	StateIdle State = iota
	StateSounding
	StateReleasing
)

// Voice is the single persistent signal chain. It is created on the
// first Playing transition and reused for every trigger of the
// session; recreating it per step would produce discontinuities.
type Voice struct {
	mu         sync.Mutex
	sampleRate float64
	frames     atomic.Int64 // rendered frame count; the rendering clock

	freq   *automation.Lane
	cutoff *automation.Lane
	q      *automation.Lane
	gate   *automation.Lane

	waveform pattern.Waveform
	phase    float64
	low      float64 // state-variable filter integrators
	band     float64
	state    State
}

func New(sampleRate int) *Voice {
	return &Voice{
		sampleRate: float64(sampleRate),
		freq:       automation.NewLane(0),
		cutoff:     automation.NewLane(400),
		q:          automation.NewLane(1),
		gate:       automation.NewLane(0),
	}
}

// Now returns the current rendering-clock time in seconds. It only
// advances as the audio backend pulls samples.
func (v *Voice) Now() float64 {
	return float64(v.frames.Load()) / v.sampleRate
}

// State reports the voice lifecycle state (idle/sounding/releasing).
func (v *Voice) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Trigger schedules the automation for one step decision. cur is the
// step to sound, next the following step (needed for slide targets),
// when the rendering-clock trigger time and stepDur the step length
// in seconds. Out-of-range params are clamped here so boundary values
// can never produce divergent or NaN automation.
func (v *Voice) Trigger(cur, next pattern.Step, p pattern.SynthParams, when, stepDur float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p = p.Clamped()

	// Read the mid-ramp gate value before cancelling; cancelling first
	// would drop the ramp target this value depends on.
	gateNow := v.gate.ValueAt(when)
	v.freq.CancelFrom(when)
	v.cutoff.CancelFrom(when)
	v.q.CancelFrom(when)
	v.gate.CancelFrom(when)

	if !cur.Active {
		// Rest: ease the gate shut, leave pitch and filter alone.
		v.gate.SetValueAt(when, gateNow)
		v.gate.LinearRampTo(when+gateReleaseSec, 0)
		v.state = StateReleasing
		return
	}

	volume := float64(p.Volume) / 100
	envMod := float64(p.EnvMod) / 100
	decay := float64(p.Decay) / 100
	accent := float64(p.AccentLevel) / 100
	baseQ := 1 + float64(p.Resonance)/100*19

	effVolume := volume
	effEnvMod := envMod
	effDecay := decay
	effQ := baseQ
	if cur.Accent {
		effVolume = math.Min(1, volume+0.3*accent)
		effEnvMod = math.Min(1, envMod+0.5*accent)
		effDecay = math.Max(0.1, decay*0.5)
		effQ = baseQ + 10*accent
	}
	effQ = clamp(effQ, minQ, maxQ)

	// Pitch: set immediately; a slide ramps linearly to the next
	// step's pitch across the whole step without retriggering.
	v.freq.SetValueAt(when, cur.Frequency())
	if cur.Slide && next.Active {
		v.freq.LinearRampTo(when+stepDur, next.Frequency())
	}

	// Filter envelope: 10ms attack to the peak, exponential decay back
	// down to the base cutoff.
	baseCutoff := float64(p.Cutoff)/100*8000 + 50
	peak := math.Min(maxCutoffHz, baseCutoff+effEnvMod*10000)
	decayTime := 0.1 + effDecay*2.0
	v.cutoff.SetValueAt(when, baseCutoff)
	v.cutoff.LinearRampTo(when+filterAttackSec, peak)
	v.cutoff.ExpRampTo(when+filterAttackSec+decayTime, baseCutoff)
	v.q.SetValueAt(when, effQ)

	// Gate: open now. A sliding step leaves it open so this note and
	// the next are heard as one; otherwise close at 80% of the step.
	v.gate.SetValueAt(when, effVolume)
	if !cur.Slide || !next.Active {
		hold := when + gateHoldFrac*stepDur
		v.gate.SetValueAt(hold, effVolume)
		v.gate.LinearRampTo(hold+gateReleaseSec, 0)
	}
	v.waveform = p.Waveform
	v.state = StateSounding
}

// Silence drives the output to zero from the current rendering-clock
// time, cancelling anything still scheduled. Safe to call repeatedly.
func (v *Voice) Silence() {
	v.mu.Lock()
	defer v.mu.Unlock()
	now := v.Now()
	gateNow := v.gate.ValueAt(now)
	v.freq.CancelFrom(now)
	v.cutoff.CancelFrom(now)
	v.q.CancelFrom(now)
	v.gate.CancelFrom(now)
	v.gate.SetValueAt(now, gateNow)
	v.gate.LinearRampTo(now+silenceRampSec, 0)
	v.state = StateReleasing
}

// Process renders len(dst)/2 stereo frames and advances the rendering
// clock. Called from the audio backend.
func (v *Voice) Process(dst []float32) {
	v.mu.Lock()
	defer v.mu.Unlock()

	frames := len(dst) / 2
	n := v.frames.Load()
	t := float64(n) / v.sampleRate
	v.freq.TrimBefore(t)
	v.cutoff.TrimBefore(t)
	v.q.TrimBefore(t)
	v.gate.TrimBefore(t)

	var gateLevel float64
	for f := 0; f < frames; f++ {
		t = float64(n) / v.sampleRate
		freq := v.freq.ValueAt(t)
		gateLevel = v.gate.ValueAt(t)

		osc := oscSample(v.waveform, v.phase)
		v.phase += freq / v.sampleRate
		if v.phase >= 1 {
			v.phase -= math.Floor(v.phase)
		}

		s := v.filter(osc, v.cutoff.ValueAt(t), v.q.ValueAt(t)) * gateLevel
		out := float32(clamp(s, -1, 1))
		dst[f*2] = out
		dst[f*2+1] = out
		n++
	}
	v.frames.Store(n)

	if v.state == StateReleasing && gateLevel <= 1e-5 {
		v.state = StateIdle
	}
}

// filter is a Chamberlin state-variable low-pass. Unlike a one-pole
// output smoother it carries a resonance term, which is the whole
// point of the acid sound.
func (v *Voice) filter(in, cutoffHz, q float64) float64 {
	cutoffHz = clamp(cutoffHz, 20, v.sampleRate*0.22)
	q = clamp(q, minQ, maxQ)
	f := 2 * math.Sin(math.Pi*cutoffHz/v.sampleRate)
	v.low += f * v.band
	high := in - v.low - (1/q)*v.band
	v.band += f * high
	return v.low
}

func oscSample(w pattern.Waveform, phase float64) float64 {
	if w == pattern.WaveSquare {
		if phase < 0.5 {
			return 1
		}
		return -1
	}
	return 2*phase - 1
}

func clamp(val, lo, hi float64) float64 {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
