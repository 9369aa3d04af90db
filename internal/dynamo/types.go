package dynamo

import "math"

// Trace is the sequence of committed values a recorder observed.
type Trace struct {
	Name   string
	Times  []float64
	Values []float64
}

// Append records v at t.
func (tr *Trace) Append(t, v float64) {
	tr.Times = append(tr.Times, t)
	tr.Values = append(tr.Values, v)
}

// Len returns the number of samples.
func (tr *Trace) Len() int { return len(tr.Times) }

// Last returns the most recent sample.
func (tr *Trace) Last() (t, v float64, ok bool) {
	if len(tr.Times) == 0 {
		return 0, 0, false
	}
	n := len(tr.Times) - 1
	return tr.Times[n], tr.Values[n], true
}

// IsValid reports whether every recorded value is finite.
func (tr *Trace) IsValid() bool {
	for _, v := range tr.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Result is the outcome of one simulation run.
type Result struct {
	Traces      []*Trace
	Metrics     map[string]float64
	StepsTaken  int
	Rejections  int
	FinalTime   float64
	Interrupted bool
}

// Trace returns the trace recorded under name, or nil.
func (r *Result) Trace(name string) *Trace {
	for _, tr := range r.Traces {
		if tr.Name == name {
			return tr
		}
	}
	return nil
}
