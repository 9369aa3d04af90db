package continuous

import "github.com/san-kum/hybridsim/internal/dynamo"

// StepState is the bookkeeping of the step in progress. Fire resets it at
// the start of each step; Postfire reads it to suggest the next step size.
type StepState struct {
	CurrentStepSize float64
	// IterationBegin is the model time at the start of the step and the
	// rollback target of a rejected attempt.
	IterationBegin dynamo.Time
	RoundCount     int
	// Attempts counts tries of the current step, including the accepted one.
	Attempts int
	// TriedMinimumStepSize is set when the previous attempt was already
	// refined up to the time resolution.
	TriedMinimumStepSize bool
}

func (s *StepState) begin(t dynamo.Time) {
	s.IterationBegin = t
	s.RoundCount = 0
	s.Attempts = 0
	s.TriedMinimumStepSize = false
}
