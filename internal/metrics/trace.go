package metrics

import (
	"math"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

// Stability is the fraction of recorded samples of a signal whose magnitude
// stays within threshold. An empty trace counts as stable.
type Stability struct {
	signal    string
	threshold float64
}

func NewStability(signal string, threshold float64) *Stability {
	return &Stability{signal: signal, threshold: threshold}
}

func (s *Stability) Name() string { return "stability_" + s.signal }

func (s *Stability) Evaluate(r *dynamo.Result) (float64, bool) {
	tr := r.Trace(s.signal)
	if tr == nil {
		return 0, false
	}
	if tr.Len() == 0 {
		return 1, true
	}
	violations := 0
	for _, v := range tr.Values {
		if math.Abs(v) > s.threshold {
			violations++
		}
	}
	return 1 - float64(violations)/float64(tr.Len()), true
}

// Effort is the time integral of a signal's magnitude, by the trapezoidal
// rule over the recorded samples.
type Effort struct {
	signal string
}

func NewEffort(signal string) *Effort { return &Effort{signal: signal} }

func (e *Effort) Name() string { return "effort_" + e.signal }

func (e *Effort) Evaluate(r *dynamo.Result) (float64, bool) {
	tr := r.Trace(e.signal)
	if tr == nil {
		return 0, false
	}
	total := 0.0
	for i := 1; i < tr.Len(); i++ {
		dt := tr.Times[i] - tr.Times[i-1]
		total += 0.5 * dt * (math.Abs(tr.Values[i]) + math.Abs(tr.Values[i-1]))
	}
	return total, true
}

// Energy is the final mechanical energy per unit mass of a body with height
// and velocity signals in a uniform gravity field.
type Energy struct {
	height, velocity string
	gravity          float64
}

func NewEnergy(height, velocity string, gravity float64) *Energy {
	return &Energy{height: height, velocity: velocity, gravity: gravity}
}

func (e *Energy) Name() string { return "energy" }

func (e *Energy) Evaluate(r *dynamo.Result) (float64, bool) {
	h, v := r.Trace(e.height), r.Trace(e.velocity)
	if h == nil || v == nil {
		return 0, false
	}
	_, hv, ok1 := h.Last()
	_, vv, ok2 := v.Last()
	if !ok1 || !ok2 {
		return 0, false
	}
	return e.gravity*hv + 0.5*vv*vv, true
}
