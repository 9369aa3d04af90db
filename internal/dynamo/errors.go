package dynamo

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for simulation operations.
var (
	// ErrConfig indicates an invalid director, solver or model parameter.
	ErrConfig = errors.New("dynamo: invalid configuration")

	// ErrUnknownSolver indicates an ODE solver name with no registered strategy.
	ErrUnknownSolver = errors.New("dynamo: unknown ODE solver")

	// ErrCausality indicates a refire request for a time already passed.
	ErrCausality = errors.New("dynamo: refire requested in the past")

	// ErrStepTooSmall indicates a step was refined below the time resolution
	// twice in a row and the director cannot make progress.
	ErrStepTooSmall = errors.New("dynamo: step size refined below time resolution")

	// ErrOvershoot indicates model time went past the stop time.
	ErrOvershoot = errors.New("dynamo: model time exceeds stop time")

	// ErrNotConverged indicates signal resolution did not reach a fixed point.
	ErrNotConverged = errors.New("dynamo: signals did not reach a fixed point")

	// ErrConflict indicates two writes of different values to one signal in
	// the same resolution.
	ErrConflict = errors.New("dynamo: conflicting signal values")

	// ErrInvalidState indicates a state value with NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")
)

// SimulationError wraps an error with the director context it happened in.
type SimulationError struct {
	Time     Time
	StepSize float64
	Actor    string
	Wrapped  error
}

func (e *SimulationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Wrapped.Error())
	fmt.Fprintf(&b, " (t=%s, step=%g", e.Time, e.StepSize)
	if e.Actor != "" {
		fmt.Fprintf(&b, ", actor=%s", e.Actor)
	}
	b.WriteString(")")
	return b.String()
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
