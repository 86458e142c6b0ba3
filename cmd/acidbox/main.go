package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/acidgo/acidbox"
)

// Sixteen steps of a classic line: slides into the minor third,
// accented octave stabs.
const defaultPattern = "c . c ~d# . c' g! . c . c ~a# . g! d# ."

func main() {
	var (
		sampleRate  = flag.Int("sample-rate", 48000, "output sample rate")
		patternText = flag.String("pattern", defaultPattern, "bassline notation, 16 steps")
		tempo       = flag.Float64("tempo", 120, "tempo in BPM (60-200)")
		waveName    = flag.String("wave", "sawtooth", "oscillator: sawtooth|square")
		cutoff      = flag.Int("cutoff", 40, "filter cutoff 0-100")
		resonance   = flag.Int("resonance", 60, "filter resonance 0-100")
		envMod      = flag.Int("envmod", 60, "filter envelope amount 0-100")
		decay       = flag.Int("decay", 50, "filter envelope decay 0-100")
		accent      = flag.Int("accent", 70, "accent level 0-100")
		volume      = flag.Int("volume", 80, "volume 0-100")
		midiPort    = flag.String("midi", "", "MIDI output port (substring match)")
		midiChannel = flag.Uint("midi-channel", 0, "MIDI channel 0-15")
		listMIDI    = flag.Bool("list-midi", false, "list MIDI output ports and exit")
		wavPath     = flag.String("wav", "", "bounce to a WAV file instead of playing")
		bars        = flag.Int("bars", 4, "bars to render with -wav")
	)
	flag.Parse()

	if *listMIDI {
		for _, name := range acidbox.MIDIPorts() {
			fmt.Println(name)
		}
		return
	}

	pat, err := acidbox.ParsePattern(*patternText)
	if err != nil {
		log.Fatal(err)
	}
	wave, err := parseWaveform(*waveName)
	if err != nil {
		log.Fatal(err)
	}
	params := acidbox.SynthParams{
		Cutoff:      *cutoff,
		Resonance:   *resonance,
		EnvMod:      *envMod,
		Decay:       *decay,
		AccentLevel: *accent,
		Volume:      *volume,
		Tempo:       *tempo,
		Waveform:    wave,
	}

	if *wavPath != "" {
		samples := acidbox.RenderPattern(pat, params, *bars, *sampleRate)
		if err := os.WriteFile(*wavPath, acidbox.EncodeWAV(samples, *sampleRate, 2), 0o644); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("wrote %d bars to %s\n", *bars, *wavPath)
		return
	}

	opts := []acidbox.Option{acidbox.WithSampleRate(*sampleRate)}
	if *midiPort != "" {
		opts = append(opts,
			acidbox.WithMIDIPort(*midiPort),
			acidbox.WithMIDIChannel(uint8(*midiChannel)))
	}
	engine, err := acidbox.New(opts...)
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Close()

	engine.SetPattern(pat)
	engine.SetParams(params)
	if err := engine.Start(); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("playing %q at %.0f BPM (ctrl-c to stop)\n", *patternText, params.Clamped().Tempo)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	engine.Stop()
}

func parseWaveform(name string) (acidbox.Waveform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "saw", "sawtooth":
		return acidbox.WaveSawtooth, nil
	case "square":
		return acidbox.WaveSquare, nil
	default:
		return 0, fmt.Errorf("invalid -wave %q (expected sawtooth|square)", name)
	}
}
