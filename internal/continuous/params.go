package continuous

import (
	"fmt"
	"math"

	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/integrators"
)

// Parameters configure a Director. They are read at construction and
// Initialize and must not change during a run.
type Parameters struct {
	// StartTime is ignored when the director is embedded in an outer one.
	StartTime float64
	// StopTime is registered as a breakpoint; +Inf runs until an actor
	// asks to stop.
	StopTime       float64
	InitStepSize   float64
	MaxStepSize    float64
	MaxIterations  int
	ErrorTolerance float64
	TimeResolution float64
	Solver         integrators.Kind

	SynchronizeToRealTime bool
}

func DefaultParameters() Parameters {
	return Parameters{
		StartTime:      0,
		StopTime:       math.Inf(1),
		InitStepSize:   0.1,
		MaxStepSize:    1.0,
		MaxIterations:  20,
		ErrorTolerance: 1e-4,
		TimeResolution: dynamo.DefaultResolution,
		Solver:         integrators.KindRK45,
	}
}

// Validate reports the first invalid parameter as a dynamo.ErrConfig.
func (p Parameters) Validate() error {
	switch {
	case math.IsNaN(p.ErrorTolerance) || p.ErrorTolerance < 0:
		return fmt.Errorf("%w: errorTolerance must be non-negative, got %g", dynamo.ErrConfig, p.ErrorTolerance)
	case math.IsNaN(p.InitStepSize) || math.IsInf(p.InitStepSize, 0) || p.InitStepSize < 0:
		return fmt.Errorf("%w: initStepSize must be finite and non-negative, got %g", dynamo.ErrConfig, p.InitStepSize)
	case math.IsNaN(p.MaxStepSize) || math.IsInf(p.MaxStepSize, 0) || p.MaxStepSize < 0:
		return fmt.Errorf("%w: maxStepSize must be finite and non-negative, got %g", dynamo.ErrConfig, p.MaxStepSize)
	case p.MaxIterations <= 0:
		return fmt.Errorf("%w: maxIterations must be positive, got %d", dynamo.ErrConfig, p.MaxIterations)
	case math.IsNaN(p.StartTime) || math.IsInf(p.StartTime, 0):
		return fmt.Errorf("%w: startTime must be finite, got %g", dynamo.ErrConfig, p.StartTime)
	case math.IsNaN(p.StopTime) || p.StopTime < p.StartTime:
		return fmt.Errorf("%w: stopTime %g is before startTime %g", dynamo.ErrConfig, p.StopTime, p.StartTime)
	}
	if _, err := dynamo.NewResolution(p.TimeResolution); err != nil {
		return err
	}
	return nil
}
