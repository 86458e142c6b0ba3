// Package automation implements per-parameter value timelines in the
// rendering-clock domain. The voice engine schedules points ahead of
// real time; the render loop evaluates lanes sample by sample, so the
// resulting automation is sample-accurate regardless of when the
// scheduling callback ran.
package automation

import "math"

// PointKind determines how a point's value is reached.
type PointKind int

const (
	// SetValue jumps to the value at the point's time.
	SetValue PointKind = iota
	// LinearRamp ramps linearly from the previous point's value.
	LinearRamp
	// ExpRamp ramps exponentially from the previous point's value.
	// Both endpoint values must be positive; non-positive endpoints
	// degrade to a linear ramp.
	ExpRamp
)

// Point is one scheduled automation event.
type Point struct {
	Kind  PointKind
	Time  float64 // rendering-clock seconds
	Value float64
}

// Lane is the automation timeline for a single parameter. Points are
// kept sorted by time; the scheduler appends with non-decreasing
// timestamps, so inserts only ever walk a short tail.
type Lane struct {
	initial float64
	points  []Point
}

func NewLane(initial float64) *Lane {
	return &Lane{initial: initial}
}

// SetValueAt schedules a jump to v at time t.
func (l *Lane) SetValueAt(t, v float64) { l.add(Point{SetValue, t, v}) }

// LinearRampTo schedules a linear ramp ending with value v at time t.
func (l *Lane) LinearRampTo(t, v float64) { l.add(Point{LinearRamp, t, v}) }

// ExpRampTo schedules an exponential ramp ending with value v at time t.
func (l *Lane) ExpRampTo(t, v float64) { l.add(Point{ExpRamp, t, v}) }

func (l *Lane) add(p Point) {
	l.points = append(l.points, p)
	// Tail insertion keeps the slice sorted; entries arrive nearly in
	// order (same trick as a nearly-sorted note-off queue).
	for i := len(l.points) - 1; i > 0 && l.points[i-1].Time > l.points[i].Time; i-- {
		l.points[i-1], l.points[i] = l.points[i], l.points[i-1]
	}
}

// CancelFrom removes every point scheduled at or after t, preventing
// stacked ramps when a parameter is re-automated from a new trigger.
func (l *Lane) CancelFrom(t float64) {
	n := len(l.points)
	for n > 0 && l.points[n-1].Time >= t {
		n--
	}
	l.points = l.points[:n]
}

// ValueAt evaluates the lane at rendering-clock time t.
func (l *Lane) ValueAt(t float64) float64 {
	// Index of the first point strictly after t.
	i := 0
	for i < len(l.points) && l.points[i].Time <= t {
		i++
	}
	var v0 float64
	var t0 float64
	if i == 0 {
		v0, t0 = l.initial, math.Inf(-1)
	} else {
		v0, t0 = l.points[i-1].Value, l.points[i-1].Time
	}
	if i >= len(l.points) {
		return v0
	}
	next := l.points[i]
	if next.Kind == SetValue || math.IsInf(t0, -1) {
		return v0
	}
	span := next.Time - t0
	if span <= 0 {
		return next.Value
	}
	k := (t - t0) / span
	if next.Kind == ExpRamp && v0 > 0 && next.Value > 0 {
		return v0 * math.Pow(next.Value/v0, k)
	}
	return v0 + (next.Value-v0)*k
}

// TrimBefore discards points that can no longer affect evaluation at
// or after time t. The latest point at or before t is kept as the
// anchor for any ramp that follows it.
func (l *Lane) TrimBefore(t float64) {
	k := -1
	for i := range l.points {
		if l.points[i].Time <= t {
			k = i
		} else {
			break
		}
	}
	if k <= 0 {
		return
	}
	l.points = append(l.points[:0], l.points[k:]...)
}

// Len reports the number of scheduled points.
func (l *Lane) Len() int { return len(l.points) }
