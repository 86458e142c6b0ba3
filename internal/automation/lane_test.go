package automation

import (
	"math"
	"testing"
)

func TestLaneInitialValue(t *testing.T) {
	l := NewLane(440)
	if got := l.ValueAt(0); got != 440 {
		t.Fatalf("expected initial 440, got %f", got)
	}
	l.SetValueAt(1.0, 880)
	if got := l.ValueAt(0.5); got != 440 {
		t.Fatalf("expected 440 before first point, got %f", got)
	}
	if got := l.ValueAt(1.0); got != 880 {
		t.Fatalf("expected 880 at point time, got %f", got)
	}
}

func TestLinearRampInterpolation(t *testing.T) {
	l := NewLane(0)
	l.SetValueAt(1.0, 100)
	l.LinearRampTo(2.0, 200)
	if got := l.ValueAt(1.5); math.Abs(got-150) > 1e-9 {
		t.Fatalf("expected 150 mid-ramp, got %f", got)
	}
	if got := l.ValueAt(3.0); got != 200 {
		t.Fatalf("expected 200 after ramp, got %f", got)
	}
}

func TestExpRampInterpolation(t *testing.T) {
	l := NewLane(0)
	l.SetValueAt(0, 100)
	l.ExpRampTo(1.0, 10000)
	// Exponential midpoint is the geometric mean.
	if got := l.ValueAt(0.5); math.Abs(got-1000) > 1e-6 {
		t.Fatalf("expected 1000 at midpoint, got %f", got)
	}
}

func TestExpRampDegradesToLinearOnNonPositive(t *testing.T) {
	l := NewLane(0)
	l.SetValueAt(0, 0)
	l.ExpRampTo(1.0, 10)
	got := l.ValueAt(0.5)
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Fatalf("expected finite value, got %f", got)
	}
	if math.Abs(got-5) > 1e-9 {
		t.Fatalf("expected linear fallback 5, got %f", got)
	}
}

func TestCancelFromDropsFuturePoints(t *testing.T) {
	l := NewLane(0)
	l.SetValueAt(1.0, 10)
	l.SetValueAt(2.0, 20)
	l.LinearRampTo(3.0, 30)
	l.CancelFrom(2.0)
	if l.Len() != 1 {
		t.Fatalf("expected 1 point left, got %d", l.Len())
	}
	if got := l.ValueAt(5.0); got != 10 {
		t.Fatalf("expected held value 10 after cancel, got %f", got)
	}
}

func TestOutOfOrderAddStaysSorted(t *testing.T) {
	l := NewLane(0)
	l.SetValueAt(2.0, 20)
	l.SetValueAt(1.0, 10)
	if got := l.ValueAt(1.5); got != 10 {
		t.Fatalf("expected 10 between points, got %f", got)
	}
	if got := l.ValueAt(2.5); got != 20 {
		t.Fatalf("expected 20 after both points, got %f", got)
	}
}

func TestTrimBeforeKeepsRampAnchor(t *testing.T) {
	l := NewLane(0)
	l.SetValueAt(1.0, 100)
	l.LinearRampTo(3.0, 300)
	l.TrimBefore(2.0)
	// The 1.0 anchor must survive or the ramp slope is lost.
	if got := l.ValueAt(2.0); math.Abs(got-200) > 1e-9 {
		t.Fatalf("expected 200 mid-ramp after trim, got %f", got)
	}
	l.SetValueAt(4.0, 400)
	l.TrimBefore(5.0)
	if l.Len() != 1 {
		t.Fatalf("expected only the last anchor to survive, got %d points", l.Len())
	}
	if got := l.ValueAt(6.0); got != 400 {
		t.Fatalf("expected 400 after trim, got %f", got)
	}
}
