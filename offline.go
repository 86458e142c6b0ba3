package acidbox

import (
	"encoding/binary"
	"math"

	"github.com/acidgo/acidbox/internal/pattern"
	"github.com/acidgo/acidbox/internal/voice"
)

// RenderPattern renders bars repetitions of the pattern offline and
// returns interleaved stereo float32 samples. No audio device or MIDI
// output is involved; trigger times are laid out deterministically on
// the rendering clock, which makes this the reference path for tests
// and for bouncing a line to a file.
func RenderPattern(pat Pattern, params SynthParams, bars int, sampleRate int) []float32 {
	if bars < 1 {
		bars = 1
	}
	params = params.Clamped()
	v := voice.New(sampleRate)
	dur := params.SecondsPerStep()
	when := 0.05
	for b := 0; b < bars; b++ {
		for i := 0; i < pattern.Length; i++ {
			v.Trigger(pat[i], pat[(i+1)%pattern.Length], params, when, dur)
			when += dur
		}
	}
	// Half a second of tail so the last filter decay rings out.
	frames := int(float64(sampleRate) * (when + 0.5))
	out := make([]float32, frames*2)
	v.Process(out)
	return out
}

// EncodeWAV wraps float32 samples in a WAVE_FORMAT_IEEE_FLOAT header.
func EncodeWAV(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	out := make([]byte, 44+dataSize)
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3) // IEEE float
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(sampleRate*channels*4))
	binary.LittleEndian.PutUint16(out[32:], uint16(channels*4))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
