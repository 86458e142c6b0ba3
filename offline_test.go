package acidbox

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestRenderPatternProducesAudio(t *testing.T) {
	pat, err := ParsePattern("c . c ~d# . c' g! . c . c ~a# . g! d# .")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	samples := RenderPattern(pat, DefaultParams(), 1, 48000)
	if len(samples) == 0 || len(samples)%2 != 0 {
		t.Fatalf("expected non-empty stereo buffer, got %d samples", len(samples))
	}
	var energy float64
	for _, s := range samples {
		energy += math.Abs(float64(s))
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			t.Fatalf("non-finite sample in render")
		}
	}
	if energy == 0 {
		t.Fatalf("expected non-zero audio energy")
	}
}

func TestRenderPatternOfRestsIsSilent(t *testing.T) {
	var pat Pattern
	samples := RenderPattern(pat, DefaultParams(), 1, 48000)
	for i, s := range samples {
		if s != 0 {
			t.Fatalf("expected silence, sample %d = %f", i, s)
		}
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	samples := make([]float32, 96)
	data := EncodeWAV(samples, 48000, 2)
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("bad RIFF header")
	}
	if binary.LittleEndian.Uint16(data[20:]) != 3 {
		t.Fatalf("expected IEEE float format tag")
	}
	if binary.LittleEndian.Uint16(data[22:]) != 2 {
		t.Fatalf("expected 2 channels")
	}
	if binary.LittleEndian.Uint32(data[24:]) != 48000 {
		t.Fatalf("expected 48000 Hz")
	}
	if binary.LittleEndian.Uint32(data[40:]) != uint32(len(samples)*4) {
		t.Fatalf("bad data chunk size")
	}
	if len(data) != 44+len(samples)*4 {
		t.Fatalf("bad total size %d", len(data))
	}
}
