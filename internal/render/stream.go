// Package render connects a sample source to the audio device. The
// device pull is what advances the rendering clock: automation is
// executed with sample precision no matter when the scheduling
// callbacks fired.
package render

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// SampleSource produces interleaved stereo float32 frames.
type SampleSource interface {
	Process(dst []float32)
}

// streamReader adapts a SampleSource to the io.Reader of little-endian
// float32 frames the backend player consumes.
type streamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
}

func (r *streamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i, s := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return frames * 8, nil
}

func (r *streamReader) Close() error { return nil }

// The backend context can only exist once per process, and it may
// start suspended pending activation by the host. Resuming is
// idempotent: every transport start simply calls Play again.
var (
	contextOnce sync.Once
	context     *ebitaudio.Context
	contextRate int
)

func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	contextOnce.Do(func() {
		contextRate = sampleRate
		context = ebitaudio.NewContext(sampleRate)
	})
	if contextRate != sampleRate {
		return nil, fmt.Errorf("audio context already running at %d Hz (requested %d Hz)", contextRate, sampleRate)
	}
	return context, nil
}

// Player streams a SampleSource to the audio device.
type Player struct {
	player *ebitaudio.Player
	reader *streamReader
}

func NewPlayer(sampleRate int, source SampleSource) (*Player, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := &streamReader{source: source}
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	return &Player{player: pl, reader: reader}, nil
}

// Play starts (or resumes) pulling samples. Calling it on a playing
// player is a no-op.
func (p *Player) Play() { p.player.Play() }

// Pause stops pulling samples without releasing the device.
func (p *Player) Pause() { p.player.Pause() }

// Stop pauses and releases the device player.
func (p *Player) Stop() error {
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		return err
	}
	return p.reader.Close()
}
