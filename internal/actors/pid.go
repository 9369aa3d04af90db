package actors

import (
	"github.com/san-kum/hybridsim/internal/actor"
	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/fixedpoint"
)

// PID is a sampled controller. It updates its control output when its input
// event is present, typically fed by a PeriodicSampler, and holds the output
// between samples. The held value is emitted in every resolution, so a new
// sample takes effect from the step after the zero-width step it arrived
// in.
type PID struct {
	base
	in, out        *fixedpoint.Signal
	kp, ki, kd     float64
	target         float64
	initialControl float64

	held     float64
	integral float64
	prevErr  float64
	prevT    float64
	first    bool
}

func NewPID(name string, in, out *fixedpoint.Signal, kp, ki, kd, target float64) *PID {
	return &PID{base: base{name: name}, in: in, out: out, kp: kp, ki: ki, kd: kd, target: target}
}

// WithInitialControl sets the output held before the first sample.
func (p *PID) WithInitialControl(u float64) *PID {
	p.initialControl = u
	return p
}

func (p *PID) Initialize(d actor.Director) error {
	if err := requireSignals(p.name, p.in, p.out); err != nil {
		return err
	}
	p.director = d
	p.held = p.initialControl
	p.integral, p.prevErr, p.prevT = 0, 0, 0
	p.first = true
	return nil
}

// Control returns the held control value.
func (p *PID) Control() float64 { return p.held }

func (p *PID) Fire(dynamo.Time) error {
	return p.out.Set(p.held)
}

func (p *PID) Postfire(t dynamo.Time) (bool, error) {
	v, ok := p.in.Get()
	if !ok {
		return true, nil
	}
	now := t.Float64()
	err := p.target - v

	if p.first {
		p.first = false
		p.prevErr, p.prevT = err, now
		p.held = p.kp * err
		return true, nil
	}

	dt := now - p.prevT
	if dt <= 0 {
		p.held = p.kp*err + p.ki*p.integral
		return true, nil
	}
	p.integral += err * dt
	derivative := (err - p.prevErr) / dt
	p.held = p.kp*err + p.ki*p.integral + p.kd*derivative
	p.prevErr, p.prevT = err, now
	return true, nil
}
