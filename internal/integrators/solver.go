// Package integrators provides the ODE solver strategies a continuous
// director drives through the rounds of one integration step.
//
// A solver never touches model state itself. Integrator actors hand it a
// view of their committed state and derivative input through [Integrator],
// and the solver writes back the state the integrator must emit in the next
// round.
package integrators

// Step describes the attempt a solver hook is evaluated in.
type Step struct {
	Size           float64
	ErrorTolerance float64
}

// Integrator is the view a solver has of one integrator actor.
type Integrator interface {
	// CommittedState is the state at the beginning of the step.
	CommittedState() float64
	// Derivative is the resolved derivative input of the current round.
	Derivative() float64
	// RoundState is the state the integrator emits in the current round.
	RoundState() float64
	// SetNextState sets the state the integrator emits in the next round and
	// commits if the step is accepted after the last round.
	SetNextState(v float64)
	// AuxVariables is scratch storage of AuxVariableCount entries, cleared
	// by the integrator at the start of each attempt.
	AuxVariables() []float64
	// History returns the i-th most recent committed (state, derivative).
	History(i int) (state, derivative float64, ok bool)
}

// Solver is an ODE solver strategy. Each step attempt runs
// Reset -> IncrementRound ... until IsStepFinished.
type Solver interface {
	Name() string

	// Reset begins a new step attempt.
	Reset()
	// IncrementRound advances to the next round and returns its time offset
	// as a fraction of the current step size.
	IncrementRound() float64
	IsStepFinished() bool
	// Round is the current round, 1-based; 0 right after Reset.
	Round() int
	// Rounds is the fixed number of rounds per step, or 0 for strategies
	// that iterate until convergence.
	Rounds() int
	// ResolvedStates reports false when an iterating strategy has not
	// converged.
	ResolvedStates() bool

	HistoryCapacity() int
	AuxVariableCount() int

	IntegratorFire(in Integrator, step Step)
	IntegratorIsAccurate(in Integrator, step Step) bool
	IntegratorPredictedStepSize(in Integrator, step Step) float64
}
