// Package midiout mirrors step decisions as outbound MIDI messages.
// Dispatch rides on wall-clock timers, so MIDI timing is only as good
// as the host timer resolution; that gap versus the sample-accurate
// audio path is an accepted limitation of this design.
package midiout

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // register MIDI driver
)

// Clock is the rendering clock trigger times are expressed against.
type Clock interface {
	Now() float64
}

// SendFunc dispatches one raw MIDI message. Injectable for tests.
type SendFunc func(midi.Message) error

// Emitter turns active steps into delayed Note On/Off pairs on a
// selected output. With no output selected every send is silently
// dropped; the audio path is unaffected.
type Emitter struct {
	clock Clock

	mu      sync.Mutex
	send    SendFunc
	channel uint8
	timers  map[*time.Timer]struct{}
}

func New(clock Clock) *Emitter {
	return &Emitter{
		clock:  clock,
		timers: map[*time.Timer]struct{}{},
	}
}

// Ports lists the names of the available MIDI outputs.
func Ports() []string {
	outs := midi.GetOutPorts()
	names := make([]string, 0, len(outs))
	for _, p := range outs {
		names = append(names, p.String())
	}
	return names
}

// Connect selects the first output whose name contains name
// (case-insensitive) and routes sends to it.
func (e *Emitter) Connect(name string) error {
	port, err := findOutPort(name)
	if err != nil {
		return err
	}
	send, err := midi.SendTo(port)
	if err != nil {
		return fmt.Errorf("open %s: %w", port, err)
	}
	e.SetOutput(func(msg midi.Message) error { return send(msg) })
	return nil
}

func findOutPort(name string) (drivers.Out, error) {
	want := strings.ToLower(name)
	for _, p := range midi.GetOutPorts() {
		if strings.Contains(strings.ToLower(p.String()), want) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no MIDI output matching %q", name)
}

// SetOutput installs the send function; nil disconnects.
func (e *Emitter) SetOutput(send SendFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.send = send
}

// SetChannel sets the MIDI channel (0-15) for subsequent notes.
func (e *Emitter) SetChannel(ch uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ch > 15 {
		ch = 15
	}
	e.channel = ch
}

// SetClock points the emitter at the rendering clock of the current
// session. Called by the transport on each start.
func (e *Emitter) SetClock(clock Clock) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock = clock
}

// NoteLength returns how long the Note Off trails the Note On: slides
// overlap the next step slightly for legato, plain notes release early
// for separation.
func NoteLength(stepDur float64, slide bool) float64 {
	if slide {
		return stepDur * 1.05
	}
	return stepDur * 0.7
}

// Trigger arms delayed Note On/Off timers for one active step. note is
// already clamped to 0..127 by the caller-side step model.
func (e *Emitter) Trigger(note int, accent, slide bool, when, stepDur float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.send == nil {
		return
	}
	velocity := uint8(100)
	if accent {
		velocity = 127
	}
	key := uint8(note)
	ch := e.channel
	var delay float64
	if e.clock != nil {
		delay = when - e.clock.Now()
	}
	if delay < 0 {
		delay = 0
	}
	// On/off are armed as a pair so no Note On is ever left hanging.
	e.arm(seconds(delay), midi.NoteOn(ch, key, velocity))
	e.arm(seconds(delay+NoteLength(stepDur, slide)), midi.NoteOff(ch, key))
}

// arm registers a dispatch timer. The callback checks its own
// registration and sends while holding the lock: a timer that fired
// but lost the race against Panic finds itself deregistered and must
// not send, and a send in flight is ordered strictly before the sweep.
func (e *Emitter) arm(d time.Duration, msg midi.Message) {
	var tm *time.Timer
	tm = time.AfterFunc(d, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.timers[tm]; !ok {
			return // cancelled after firing; the sweep owns this note now
		}
		delete(e.timers, tm)
		if e.send != nil {
			_ = e.send(msg) // a failed send must not disturb the loop
		}
	})
	e.timers[tm] = struct{}{}
}

// Panic cancels all pending dispatch and sends Note Off for every
// note number on the current output. Cancel and sweep form one
// critical section, so no Note On can land after the sweep without
// its own Note Off still armed. Safe to call repeatedly and with no
// output selected.
func (e *Emitter) Panic() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for tm := range e.timers {
		tm.Stop()
		delete(e.timers, tm)
	}
	if e.send == nil {
		return
	}
	for n := 0; n < 128; n++ {
		_ = e.send(midi.NoteOff(e.channel, uint8(n)))
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// CloseDriver releases the process-wide MIDI driver.
func CloseDriver() {
	midi.CloseDriver()
}
