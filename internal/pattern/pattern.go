package pattern

import "math"

// Length is the fixed number of steps per bar. The core never resizes
// a pattern.
const Length = 16

// BaseMIDINote is the MIDI note sounded by note=0, octave=0 (C2).
const BaseMIDINote = 36

// Step is one of the 16 fixed slots per bar.
type Step struct {
	Active bool
	Note   int // semitone within the octave, 0..11 (0 = C)
	Octave int // -1, 0 or +1
	Slide  bool
	Accent bool
}

// MIDINote returns the step's note number clamped to the MIDI range.
func (s Step) MIDINote() int {
	return clampInt(BaseMIDINote+s.Note+s.Octave*12, 0, 127)
}

// Frequency returns the step's pitch in Hz (equal temperament, A4=440).
func (s Step) Frequency() float64 {
	n := BaseMIDINote + s.Note + s.Octave*12
	return 440.0 * math.Pow(2, float64(n-69)/12.0)
}

// Pattern is an ordered sequence of exactly 16 steps. It is a value
// type; copies taken by the scheduler are immutable snapshots.
type Pattern [Length]Step

// Waveform selects the oscillator shape.
type Waveform int

const (
	WaveSawtooth Waveform = iota
	WaveSquare
)

func (w Waveform) String() string {
	if w == WaveSquare {
		return "square"
	}
	return "sawtooth"
}

// SynthParams holds the global knob values. Percentage fields are
// 0-100; Tempo is BPM.
type SynthParams struct {
	Cutoff      int
	Resonance   int
	EnvMod      int
	Decay       int
	AccentLevel int
	Volume      int
	Tempo       float64
	Waveform    Waveform
}

// DefaultParams returns a usable starting point for an acid line.
func DefaultParams() SynthParams {
	return SynthParams{
		Cutoff:      40,
		Resonance:   60,
		EnvMod:      60,
		Decay:       50,
		AccentLevel: 70,
		Volume:      80,
		Tempo:       120,
		Waveform:    WaveSawtooth,
	}
}

// Clamped returns a copy with every field forced into its legal range.
// The voice engine clamps again at its own boundary; out-of-range
// editor input must never produce divergent automation.
func (p SynthParams) Clamped() SynthParams {
	p.Cutoff = clampInt(p.Cutoff, 0, 100)
	p.Resonance = clampInt(p.Resonance, 0, 100)
	p.EnvMod = clampInt(p.EnvMod, 0, 100)
	p.Decay = clampInt(p.Decay, 0, 100)
	p.AccentLevel = clampInt(p.AccentLevel, 0, 100)
	p.Volume = clampInt(p.Volume, 0, 100)
	if p.Tempo < 60 {
		p.Tempo = 60
	}
	if p.Tempo > 200 {
		p.Tempo = 200
	}
	if p.Waveform != WaveSquare {
		p.Waveform = WaveSawtooth
	}
	return p
}

// SecondsPerStep returns the duration of one 16th-note step at the
// current tempo: 60/tempo/4.
func (p SynthParams) SecondsPerStep() float64 {
	return 15.0 / p.Clamped().Tempo
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
