package continuous

import (
	"context"
	"math"

	"github.com/san-kum/hybridsim/internal/actor"
)

type controllerEntry struct {
	name string
	actor.StepSizeController
}

type statefulEntry struct {
	name string
	actor.Stateful
}

// SetSchedule replaces the actors the director fires and recomputes the
// step-size-controller and stateful registries.
func (d *Director) SetSchedule(schedule []actor.Actor) {
	d.schedule = schedule
	d.controllers = d.controllers[:0]
	d.statefuls = d.statefuls[:0]
	for _, a := range schedule {
		if c, ok := a.(actor.StepSizeController); ok {
			d.controllers = append(d.controllers, controllerEntry{a.Name(), c})
		}
		if s, ok := a.(actor.Stateful); ok {
			d.statefuls = append(d.statefuls, statefulEntry{a.Name(), s})
		}
	}
}

// pollAccuracy asks every controller whether the attempt was accurate. It
// polls all of them even after one says no, because detectors update their
// event bookkeeping while answering.
func (d *Director) pollAccuracy(ctx context.Context) (bool, error) {
	accurate := true
	for _, c := range d.controllers {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if !c.IsStepSizeAccurate() {
			accurate = false
		}
	}
	return accurate, nil
}

// refinedStepSize returns the smallest of the current step size and every
// controller's proposal, and the controller that proposed it.
func (d *Director) refinedStepSize() (float64, string) {
	refined, by := d.step.CurrentStepSize, ""
	for _, c := range d.controllers {
		if r := c.RefinedStepSize(); !math.IsNaN(r) && r < refined {
			refined, by = r, c.name
		}
	}
	return refined, by
}

func (d *Director) suggestedStepSize() float64 {
	h := d.step.CurrentStepSize
	if h == 0 {
		return d.params.InitStepSize
	}
	suggested := math.Min(10*h, d.params.MaxStepSize)
	for _, c := range d.controllers {
		if s := c.SuggestedStepSize(); !math.IsNaN(s) {
			suggested = math.Min(suggested, s)
		}
	}
	return math.Max(suggested, d.res.Value())
}

func (d *Director) rollBack(ctx context.Context) error {
	for _, s := range d.statefuls {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.RollBackToCommittedState()
	}
	return nil
}

// IsStepSizeAccurate reports whether every step-size controller accepts the
// current attempt.
func (d *Director) IsStepSizeAccurate() bool {
	accurate, _ := d.pollAccuracy(context.Background())
	return accurate
}

// RefinedStepSize is the step size the director would retry a rejected
// attempt with.
func (d *Director) RefinedStepSize() float64 {
	refined, _ := d.refinedStepSize()
	return refined
}

// SuggestedStepSize is the step size the director would try after the
// current attempt is accepted.
func (d *Director) SuggestedStepSize() float64 {
	return d.suggestedStepSize()
}
