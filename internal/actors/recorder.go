package actors

import (
	"github.com/san-kum/hybridsim/internal/actor"
	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/fixedpoint"
)

// Recorder captures the committed value of each of its inputs after every
// accepted step. Inputs that are absent at a step, such as events that did
// not occur, are skipped.
type Recorder struct {
	base
	ins    []*fixedpoint.Signal
	traces []*dynamo.Trace
}

func NewRecorder(name string, ins ...*fixedpoint.Signal) *Recorder {
	r := &Recorder{base: base{name: name}, ins: ins}
	for _, s := range ins {
		if s != nil {
			r.traces = append(r.traces, &dynamo.Trace{Name: s.Name()})
		}
	}
	return r
}

func (r *Recorder) Initialize(d actor.Director) error {
	if err := requireSignals(r.name, r.ins...); err != nil {
		return err
	}
	r.director = d
	for _, tr := range r.traces {
		tr.Times, tr.Values = tr.Times[:0], tr.Values[:0]
	}
	return nil
}

func (r *Recorder) Fire(dynamo.Time) error { return nil }

// Postfire runs after the last resolution of the step, so the board still
// holds the committed values.
func (r *Recorder) Postfire(t dynamo.Time) (bool, error) {
	for i, s := range r.ins {
		if v, ok := s.Get(); ok {
			r.traces[i].Append(t.Float64(), v)
		}
	}
	return true, nil
}

func (r *Recorder) Traces() []*dynamo.Trace { return r.traces }

// Trace returns the trace of the input named name, or nil.
func (r *Recorder) Trace(name string) *dynamo.Trace {
	for _, tr := range r.traces {
		if tr.Name == name {
			return tr
		}
	}
	return nil
}
