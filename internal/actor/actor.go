// Package actor defines what a continuous director expects from the blocks
// it schedules, and what those blocks may ask of the director.
package actor

import (
	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/integrators"
)

// Actor is a computational block. Prefire and Fire may run many times per
// time point while signals resolve; Postfire runs once per accepted step.
type Actor interface {
	Name() string
	Initialize(d Director) error
	// Prefire reports whether the actor is ready to fire at t.
	Prefire(t dynamo.Time) (bool, error)
	Fire(t dynamo.Time) error
	// Postfire commits the step ending at t. Returning false asks the
	// director to stop after this step.
	Postfire(t dynamo.Time) (bool, error)
}

// Director is the view of the scheduler an actor gets at initialization.
type Director interface {
	ModelTime() dynamo.Time
	ModelStopTime() dynamo.Time
	CurrentStepSize() float64
	ErrorTolerance() float64
	Solver() integrators.Solver
	// FireAt requests that a must land on t exactly. t before the current
	// model time is an error.
	FireAt(a Actor, t dynamo.Time) error
}

// StepSizeController is implemented by actors with an opinion on the step
// size. Actors without it are skipped when the director polls.
type StepSizeController interface {
	IsStepSizeAccurate() bool
	// RefinedStepSize proposes a step for retrying a rejected attempt.
	RefinedStepSize() float64
	// SuggestedStepSize proposes a step for the attempt after an accepted one.
	SuggestedStepSize() float64
}

// Stateful is implemented by actors that keep committed state separate from
// the state they compute while a step is in progress.
type Stateful interface {
	RollBackToCommittedState()
}
