// Package metrics summarizes a run. Step metrics observe the director's
// attempts as they happen; trace metrics are evaluated on the recorded
// result once the run is over.
package metrics

import (
	"github.com/san-kum/hybridsim/internal/continuous"
	"github.com/san-kum/hybridsim/internal/dynamo"
)

// Metric is a named scalar summary.
type Metric interface {
	Name() string
	Value() float64
	Reset()
}

// StepMetric is a Metric fed by the director's step notifications.
type StepMetric interface {
	Metric
	continuous.Observer
}

// TraceMetric is evaluated on a finished run. It reports false when the
// traces it needs were not recorded.
type TraceMetric interface {
	Name() string
	Evaluate(r *dynamo.Result) (float64, bool)
}

// Set fans step notifications out to a group of step metrics.
type Set struct {
	steps  []StepMetric
	traces []TraceMetric
}

func NewSet(metrics ...StepMetric) *Set {
	return &Set{steps: metrics}
}

// DefaultSet returns the step statistics every run reports.
func DefaultSet() *Set {
	return NewSet(
		NewStepCount(),
		NewRejections(),
		NewRejectionRate(),
		NewZeroWidthSteps(),
		NewStepSize(Min),
		NewStepSize(Mean),
		NewStepSize(Max),
	)
}

// AddTrace registers metrics evaluated by Collect.
func (s *Set) AddTrace(m ...TraceMetric) { s.traces = append(s.traces, m...) }

func (s *Set) StepAccepted(info continuous.StepInfo) {
	for _, m := range s.steps {
		m.StepAccepted(info)
	}
}

func (s *Set) StepRejected(info continuous.StepInfo) {
	for _, m := range s.steps {
		m.StepRejected(info)
	}
}

func (s *Set) Reset() {
	for _, m := range s.steps {
		m.Reset()
	}
}

// Collect returns every step metric, plus every trace metric that could be
// evaluated on r. r may be nil.
func (s *Set) Collect(r *dynamo.Result) map[string]float64 {
	out := make(map[string]float64, len(s.steps)+len(s.traces))
	for _, m := range s.steps {
		out[m.Name()] = m.Value()
	}
	if r == nil {
		return out
	}
	for _, m := range s.traces {
		if v, ok := m.Evaluate(r); ok {
			out[m.Name()] = v
		}
	}
	return out
}
