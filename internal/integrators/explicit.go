package integrators

import "math"

// tableau is an explicit Runge-Kutta scheme whose last stage is evaluated at
// the new state, so the final round's state is the step result.
type tableau struct {
	name  string
	c     []float64   // time increment of each round
	a     [][]float64 // a[r] weights k[0..r-1] for the state of round r
	e     []float64   // error weights over k, nil when not embedded
	order float64
}

func (tb *tableau) stages() int { return len(tb.c) }

// Explicit runs a fixed number of rounds defined by a tableau.
type Explicit struct {
	tab   *tableau
	round int

	safety   float64
	minScale float64
	maxScale float64
}

func newExplicit(tab *tableau) *Explicit {
	return &Explicit{
		tab:      tab,
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

func (s *Explicit) Name() string { return s.tab.name }

func (s *Explicit) Reset() { s.round = 0 }

func (s *Explicit) IncrementRound() float64 {
	inc := s.tab.c[s.round]
	s.round++
	return inc
}

func (s *Explicit) IsStepFinished() bool  { return s.round >= s.tab.stages() }
func (s *Explicit) Round() int            { return s.round }
func (s *Explicit) Rounds() int           { return s.tab.stages() }
func (s *Explicit) ResolvedStates() bool  { return true }
func (s *Explicit) HistoryCapacity() int  { return 0 }
func (s *Explicit) AuxVariableCount() int { return s.tab.stages() }

func (s *Explicit) IntegratorFire(in Integrator, step Step) {
	r := s.round
	if r < 1 || r > s.tab.stages() {
		return
	}
	k := in.AuxVariables()
	k[r-1] = in.Derivative()
	if r == s.tab.stages() {
		return
	}

	next := in.CommittedState()
	for j, w := range s.tab.a[r] {
		next += step.Size * w * k[j]
	}
	in.SetNextState(next)
}

func (s *Explicit) errorEstimate(in Integrator, step Step) float64 {
	k := in.AuxVariables()
	sum := 0.0
	for j, w := range s.tab.e {
		sum += w * k[j]
	}
	return math.Abs(step.Size * sum)
}

func (s *Explicit) IntegratorIsAccurate(in Integrator, step Step) bool {
	if s.tab.e == nil || step.Size == 0 || !s.IsStepFinished() {
		return true
	}
	return s.errorEstimate(in, step) <= step.ErrorTolerance
}

func (s *Explicit) IntegratorPredictedStepSize(in Integrator, step Step) float64 {
	if s.tab.e == nil || step.Size == 0 {
		return step.Size
	}

	est := s.errorEstimate(in, step)
	if est == 0 {
		return step.Size * s.maxScale
	}
	if step.ErrorTolerance == 0 || math.IsNaN(est) {
		return step.Size * s.minScale
	}
	errRatio := est / step.ErrorTolerance
	if errRatio == 0 {
		return step.Size * s.maxScale
	}

	scale := s.safety * math.Pow(errRatio, -1/s.tab.order)
	return step.Size * math.Min(s.maxScale, math.Max(s.minScale, scale))
}
