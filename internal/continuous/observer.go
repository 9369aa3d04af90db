package continuous

import "github.com/san-kum/hybridsim/internal/dynamo"

// StepInfo describes one attempt of a step.
type StepInfo struct {
	Begin    dynamo.Time
	StepSize float64
	Rounds   int
	Attempt  int
	// Refined is the step size of the next attempt; zero for accepted steps.
	Refined float64
}

// Observer is notified of every attempt's outcome.
type Observer interface {
	StepAccepted(info StepInfo)
	StepRejected(info StepInfo)
}
