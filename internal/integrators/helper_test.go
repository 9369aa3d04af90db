package integrators

import "math"

// scalarIntegrator plays the part of an integrator actor for dx/dt = f(t, x).
type scalarIntegrator struct {
	x, out, next float64
	deriv        float64
	aux          []float64
	hist         [][2]float64
}

func (s *scalarIntegrator) CommittedState() float64 { return s.x }
func (s *scalarIntegrator) Derivative() float64     { return s.deriv }
func (s *scalarIntegrator) RoundState() float64     { return s.out }
func (s *scalarIntegrator) SetNextState(v float64)  { s.next = v }
func (s *scalarIntegrator) AuxVariables() []float64 { return s.aux }

func (s *scalarIntegrator) History(i int) (float64, float64, bool) {
	if i >= len(s.hist) {
		return 0, 0, false
	}
	h := s.hist[len(s.hist)-1-i]
	return h[0], h[1], true
}

type result struct {
	accurate  bool
	resolved  bool
	rounds    int
	predicted float64
}

// attempt runs one step attempt of size h from (t, x) without committing.
func (s *scalarIntegrator) attempt(solver Solver, f func(t, x float64) float64, t, h, tol float64, maxRounds int) result {
	if len(s.aux) != solver.AuxVariableCount() {
		s.aux = make([]float64, solver.AuxVariableCount())
	}
	step := Step{Size: h, ErrorTolerance: tol}

	solver.Reset()
	s.next = s.x
	rounds := 0
	for !solver.IsStepFinished() && rounds < maxRounds {
		inc := solver.IncrementRound()
		s.out = s.next
		s.deriv = f(t+h*inc, s.out)
		solver.IntegratorFire(s, step)
		rounds++
	}

	return result{
		accurate:  solver.IntegratorIsAccurate(s, step),
		resolved:  solver.ResolvedStates(),
		rounds:    rounds,
		predicted: solver.IntegratorPredictedStepSize(s, step),
	}
}

func (s *scalarIntegrator) commit() {
	s.x = s.out
	s.hist = append(s.hist, [2]float64{s.x, s.deriv})
}

func decay(t, x float64) float64 { return -x }

// integrate runs fixed steps of h to tEnd and returns the final state.
func integrate(solver Solver, f func(t, x float64) float64, x0, tEnd, h float64) float64 {
	in := &scalarIntegrator{x: x0}
	n := int(math.Round(tEnd / h))
	for i := 0; i < n; i++ {
		in.attempt(solver, f, float64(i)*h, h, 1e-12, 100)
		in.commit()
	}
	return in.x
}
