package integrators

import "math"

// Implicit iterates the corrector at the end of the step until every
// integrator's state moves by no more than the error tolerance between two
// rounds. The director caps the iteration at maxIterations rounds and
// treats a capped attempt as unresolved.
type Implicit struct {
	name        string
	trapezoidal bool

	round     int
	converged bool
}

// NewBackwardEuler returns the implicit Euler method.
func NewBackwardEuler() *Implicit {
	return &Implicit{name: "backward_euler"}
}

// NewTrapezoidal returns the trapezoidal rule. It needs the derivative at
// the beginning of the step from the integrator's history and falls back to
// backward Euler when there is none, e.g. after a reset.
func NewTrapezoidal() *Implicit {
	return &Implicit{name: "trapezoidal", trapezoidal: true}
}

func (s *Implicit) Name() string { return s.name }

func (s *Implicit) Reset() {
	s.round = 0
	s.converged = false
}

func (s *Implicit) IncrementRound() float64 {
	s.round++
	// The first round only produces an initial guess.
	s.converged = s.round > 1
	return 1
}

func (s *Implicit) IsStepFinished() bool { return s.round > 1 && s.converged }
func (s *Implicit) Round() int           { return s.round }
func (s *Implicit) Rounds() int          { return 0 }
func (s *Implicit) ResolvedStates() bool { return s.IsStepFinished() }

func (s *Implicit) HistoryCapacity() int {
	if s.trapezoidal {
		return 1
	}
	return 0
}

func (s *Implicit) AuxVariableCount() int { return 1 }

func (s *Implicit) IntegratorFire(in Integrator, step Step) {
	d := in.Derivative()
	in.AuxVariables()[0] = d

	next := in.CommittedState()
	if _, d0, ok := in.History(0); s.trapezoidal && ok {
		next += step.Size * 0.5 * (d0 + d)
	} else {
		next += step.Size * d
	}

	if math.Abs(next-in.RoundState()) > step.ErrorTolerance {
		s.converged = false
	}
	in.SetNextState(next)
}

func (s *Implicit) IntegratorIsAccurate(in Integrator, step Step) bool {
	return true
}

func (s *Implicit) IntegratorPredictedStepSize(in Integrator, step Step) float64 {
	return step.Size
}
