package actors

import (
	"fmt"

	"github.com/san-kum/hybridsim/internal/actor"
	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/fixedpoint"
)

// PeriodicSampler emits its input as an event every period, starting one
// period after the model start time. Each sample is taken in a zero-width
// step at the sample instant.
type PeriodicSampler struct {
	base
	in, out *fixedpoint.Signal
	period  float64

	next    dynamo.Time
	emitted bool
}

func NewPeriodicSampler(name string, in, out *fixedpoint.Signal, period float64) *PeriodicSampler {
	return &PeriodicSampler{base: base{name: name}, in: in, out: out, period: period}
}

func (s *PeriodicSampler) Initialize(d actor.Director) error {
	if err := requireSignals(s.name, s.in, s.out); err != nil {
		return err
	}
	if !(s.period > 0) {
		return fmt.Errorf("%w: %s: period must be positive, got %g", dynamo.ErrConfig, s.name, s.period)
	}
	s.director = d
	s.emitted = false
	s.next = d.ModelTime().Add(s.period)
	return d.FireAt(s, s.next)
}

// NextSample returns the time of the next sample.
func (s *PeriodicSampler) NextSample() dynamo.Time { return s.next }

func (s *PeriodicSampler) Fire(t dynamo.Time) error {
	if s.emitted || s.director.CurrentStepSize() != 0 || !t.Equal(s.next) {
		return nil
	}
	v, ok := s.in.Get()
	if !ok {
		return nil
	}
	if err := s.out.Set(v); err != nil {
		return err
	}
	s.emitted = true
	return nil
}

func (s *PeriodicSampler) Postfire(t dynamo.Time) (bool, error) {
	if !t.Equal(s.next) {
		return true, nil
	}
	if !s.emitted && s.director.CurrentStepSize() != 0 {
		// Sample in the zero-width step that follows.
		return true, s.director.FireAt(s, s.next)
	}
	// An absent input skips the sample.
	s.emitted = false
	s.next = s.next.Add(s.period)
	return true, s.director.FireAt(s, s.next)
}
