package integrators

import (
	"math"
	"testing"
)

func TestRK45_Accuracy(t *testing.T) {
	got := integrate(NewRK45(), decay, 1.0, 1.0, 0.1)
	want := math.Exp(-1)

	if math.Abs(got-want) > 1e-6 {
		t.Errorf("x(1) = %.10f, want %.10f", got, want)
	}
}

func TestRK45_Rounds(t *testing.T) {
	s := NewRK45()
	if s.Rounds() != 7 || s.AuxVariableCount() != 7 {
		t.Fatalf("rounds=%d aux=%d, want 7 and 7", s.Rounds(), s.AuxVariableCount())
	}

	want := []float64{0, 1.0 / 5.0, 3.0 / 10.0, 4.0 / 5.0, 8.0 / 9.0, 1, 1}
	s.Reset()
	for i, w := range want {
		if s.IsStepFinished() {
			t.Fatalf("finished early at round %d", i)
		}
		if got := s.IncrementRound(); got != w {
			t.Errorf("round %d increment = %v, want %v", i+1, got, w)
		}
	}
	if !s.IsStepFinished() {
		t.Error("expected step to be finished after 7 rounds")
	}
}

func TestRK45_StepSizeControl(t *testing.T) {
	s := NewRK45()
	in := &scalarIntegrator{x: 1.0}

	large := in.attempt(s, decay, 0, 2.0, 1e-9, 100)
	if large.accurate {
		t.Error("a step of 2.0 should not meet a 1e-9 tolerance")
	}
	if large.predicted >= 2.0 || large.predicted < 2.0*0.2 {
		t.Errorf("predicted = %v, want within [0.4, 2.0)", large.predicted)
	}

	small := in.attempt(s, decay, 0, 1e-3, 1e-9, 100)
	if !small.accurate {
		t.Error("a step of 1e-3 should be accurate")
	}
	if small.predicted <= 1e-3 {
		t.Errorf("predicted = %v, expected growth above 1e-3", small.predicted)
	}
}

func TestRK45_VsRK23_Accuracy(t *testing.T) {
	want := math.Exp(-1)
	e23 := math.Abs(integrate(NewRK23(), decay, 1.0, 1.0, 0.1) - want)
	e45 := math.Abs(integrate(NewRK45(), decay, 1.0, 1.0, 0.1) - want)

	t.Logf("rk23 error %.3e, rk45 error %.3e", e23, e45)
	if e45 >= e23 {
		t.Errorf("rk45 error %.3e should be below rk23 error %.3e", e45, e23)
	}
}
