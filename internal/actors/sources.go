package actors

import (
	"math"

	"github.com/san-kum/hybridsim/internal/actor"
	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/fixedpoint"
)

// Const emits the same value at every time point.
type Const struct {
	base
	out   *fixedpoint.Signal
	value float64
}

func NewConst(name string, out *fixedpoint.Signal, value float64) *Const {
	return &Const{base: base{name: name}, out: out, value: value}
}

func (c *Const) Initialize(d actor.Director) error {
	c.director = d
	return requireSignals(c.name, c.out)
}

func (c *Const) Fire(dynamo.Time) error { return c.out.Set(c.value) }

// Ramp emits offset + slope*t.
type Ramp struct {
	base
	out           *fixedpoint.Signal
	offset, slope float64
}

func NewRamp(name string, out *fixedpoint.Signal, offset, slope float64) *Ramp {
	return &Ramp{base: base{name: name}, out: out, offset: offset, slope: slope}
}

func (r *Ramp) Initialize(d actor.Director) error {
	r.director = d
	return requireSignals(r.name, r.out)
}

func (r *Ramp) Fire(t dynamo.Time) error {
	return r.out.Set(r.offset + r.slope*t.Float64())
}

// Sine emits amplitude*sin(2*pi*frequency*t + phase) + offset.
type Sine struct {
	base
	out                                 *fixedpoint.Signal
	amplitude, frequency, phase, offset float64
}

func NewSine(name string, out *fixedpoint.Signal, amplitude, frequency, phase, offset float64) *Sine {
	return &Sine{base: base{name: name}, out: out, amplitude: amplitude, frequency: frequency, phase: phase, offset: offset}
}

func (s *Sine) Initialize(d actor.Director) error {
	s.director = d
	return requireSignals(s.name, s.out)
}

func (s *Sine) Fire(t dynamo.Time) error {
	return s.out.Set(s.amplitude*math.Sin(2*math.Pi*s.frequency*t.Float64()+s.phase) + s.offset)
}
