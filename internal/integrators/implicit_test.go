package integrators

import (
	"math"
	"testing"
)

func TestBackwardEuler_Converges(t *testing.T) {
	s := NewBackwardEuler()
	in := &scalarIntegrator{x: 1.0}

	r := in.attempt(s, decay, 0, 0.1, 1e-12, 100)
	if !r.resolved {
		t.Fatalf("expected convergence, got %+v", r)
	}
	want := 1.0 / 1.1
	if math.Abs(in.next-want) > 1e-10 {
		t.Errorf("x(0.1) = %.12f, want %.12f", in.next, want)
	}
	if r.rounds < 2 {
		t.Errorf("rounds = %d, implicit steps need at least two", r.rounds)
	}
}

func TestBackwardEuler_Unresolved(t *testing.T) {
	s := NewBackwardEuler()
	in := &scalarIntegrator{x: 1.0}

	// Fixed-point iteration diverges when h*|df/dx| > 1.
	r := in.attempt(s, decay, 0, 3.0, 1e-9, 10)
	if r.resolved {
		t.Error("expected unresolved states")
	}
	if r.rounds != 10 {
		t.Errorf("rounds = %d, want the cap of 10", r.rounds)
	}
}

func TestTrapezoidal(t *testing.T) {
	s := NewTrapezoidal()
	if s.HistoryCapacity() != 1 {
		t.Fatalf("history capacity = %d, want 1", s.HistoryCapacity())
	}

	got := integrate(s, decay, 1.0, 1.0, 0.01)
	be := integrate(NewBackwardEuler(), decay, 1.0, 1.0, 0.01)
	want := math.Exp(-1)

	if math.Abs(got-want) >= math.Abs(be-want) {
		t.Errorf("trapezoidal error %.3e should beat backward euler %.3e", math.Abs(got-want), math.Abs(be-want))
	}
}
