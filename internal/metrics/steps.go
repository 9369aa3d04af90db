package metrics

import (
	"math"

	"github.com/san-kum/hybridsim/internal/continuous"
)

// StepCount counts accepted steps, zero-width ones included.
type StepCount struct{ n int }

func NewStepCount() *StepCount { return &StepCount{} }

func (s *StepCount) Name() string                     { return "steps" }
func (s *StepCount) StepAccepted(continuous.StepInfo) { s.n++ }
func (s *StepCount) StepRejected(continuous.StepInfo) {}
func (s *StepCount) Value() float64                   { return float64(s.n) }
func (s *StepCount) Reset()                           { s.n = 0 }

// Rejections counts rejected attempts.
type Rejections struct{ n int }

func NewRejections() *Rejections { return &Rejections{} }

func (r *Rejections) Name() string                     { return "rejections" }
func (r *Rejections) StepAccepted(continuous.StepInfo) {}
func (r *Rejections) StepRejected(continuous.StepInfo) { r.n++ }
func (r *Rejections) Value() float64                   { return float64(r.n) }
func (r *Rejections) Reset()                           { r.n = 0 }

// RejectionRate is the fraction of attempts that were rejected.
type RejectionRate struct {
	accepted, rejected int
}

func NewRejectionRate() *RejectionRate { return &RejectionRate{} }

func (r *RejectionRate) Name() string                     { return "rejection_rate" }
func (r *RejectionRate) StepAccepted(continuous.StepInfo) { r.accepted++ }
func (r *RejectionRate) StepRejected(continuous.StepInfo) { r.rejected++ }

func (r *RejectionRate) Value() float64 {
	total := r.accepted + r.rejected
	if total == 0 {
		return 0
	}
	return float64(r.rejected) / float64(total)
}

func (r *RejectionRate) Reset() { r.accepted, r.rejected = 0, 0 }

// ZeroWidthSteps counts accepted steps that did not advance time.
type ZeroWidthSteps struct{ n int }

func NewZeroWidthSteps() *ZeroWidthSteps { return &ZeroWidthSteps{} }

func (z *ZeroWidthSteps) Name() string { return "zero_width_steps" }

func (z *ZeroWidthSteps) StepAccepted(info continuous.StepInfo) {
	if info.StepSize == 0 {
		z.n++
	}
}

func (z *ZeroWidthSteps) StepRejected(continuous.StepInfo) {}
func (z *ZeroWidthSteps) Value() float64                   { return float64(z.n) }
func (z *ZeroWidthSteps) Reset()                           { z.n = 0 }

// Aggregate selects how StepSize summarizes accepted step sizes.
type Aggregate int

const (
	Min Aggregate = iota
	Mean
	Max
)

func (a Aggregate) String() string {
	switch a {
	case Min:
		return "min"
	case Max:
		return "max"
	}
	return "mean"
}

// StepSize summarizes the size of accepted steps that advanced time.
type StepSize struct {
	agg Aggregate
	n   int
	sum float64
	min float64
	max float64
}

func NewStepSize(agg Aggregate) *StepSize {
	s := &StepSize{agg: agg}
	s.Reset()
	return s
}

func (s *StepSize) Name() string { return s.agg.String() + "_step_size" }

func (s *StepSize) StepAccepted(info continuous.StepInfo) {
	h := info.StepSize
	if h == 0 {
		return
	}
	s.n++
	s.sum += h
	s.min = math.Min(s.min, h)
	s.max = math.Max(s.max, h)
}

func (s *StepSize) StepRejected(continuous.StepInfo) {}

func (s *StepSize) Value() float64 {
	if s.n == 0 {
		return 0
	}
	switch s.agg {
	case Min:
		return s.min
	case Max:
		return s.max
	}
	return s.sum / float64(s.n)
}

func (s *StepSize) Reset() {
	s.n, s.sum = 0, 0
	s.min, s.max = math.Inf(1), 0
}
