package actors

import (
	"fmt"
	"math"

	"github.com/san-kum/hybridsim/internal/actor"
	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/fixedpoint"
	"github.com/san-kum/hybridsim/internal/integrators"
)

// Integrator integrates its derivative input with the director's solver.
//
// The output emitted in a round is latched when the round begins, so it
// never depends on the derivative of the same round and breaks algebraic
// loops. The solver is handed the derivative once per round, the first time
// it is known.
type Integrator struct {
	base
	deriv, out *fixedpoint.Signal

	// Reset, when known, replaces the state with ResetValue (or keeps it
	// when ResetValue is nil or absent) after the step commits. The new
	// state is emitted in a zero-width step at the same instant.
	reset, resetValue *fixedpoint.Signal

	initial float64
	solver  integrators.Solver

	state   float64 // committed
	next    float64
	emitted float64
	input   float64

	round     int
	fired     bool
	accurate  bool
	suggested float64
	resetTo   float64
	resetting bool

	aux     []float64
	history []historyEntry
}

type historyEntry struct{ state, derivative float64 }

var (
	_ actor.Actor              = (*Integrator)(nil)
	_ actor.Stateful           = (*Integrator)(nil)
	_ actor.StepSizeController = (*Integrator)(nil)
	_ integrators.Integrator   = (*Integrator)(nil)
)

func NewIntegrator(name string, deriv, out *fixedpoint.Signal, initial float64) *Integrator {
	return &Integrator{base: base{name: name}, deriv: deriv, out: out, initial: initial}
}

// WithReset connects the reset trigger and, optionally, the value the state
// jumps to.
func (i *Integrator) WithReset(trigger, value *fixedpoint.Signal) *Integrator {
	i.reset, i.resetValue = trigger, value
	return i
}

func (i *Integrator) Initialize(d actor.Director) error {
	if err := requireSignals(i.name, i.deriv, i.out); err != nil {
		return err
	}
	i.director = d
	i.solver = d.Solver()
	if i.solver == nil {
		return fmt.Errorf("%w: %s: director has no solver", dynamo.ErrConfig, i.name)
	}
	i.aux = make([]float64, i.solver.AuxVariableCount())
	i.history = i.history[:0]
	i.state = i.initial
	i.suggested = math.Inf(1)
	i.restart()
	return nil
}

// State returns the committed state.
func (i *Integrator) State() float64 { return i.state }

func (i *Integrator) Fire(t dynamo.Time) error {
	if r := i.solver.Round(); r != i.round {
		i.round = r
		i.emitted = i.next
		i.fired = false
		i.resetting = false
		if r == 1 {
			clear(i.aux)
		}
	}

	if err := i.out.Set(i.emitted); err != nil {
		return err
	}

	if !i.fired {
		if v, ok := i.deriv.Get(); ok {
			i.input = v
			i.fired = true
			i.solver.IntegratorFire(i, i.step())
		}
	}

	if i.reset != nil && i.reset.Known() && !i.resetting {
		to := i.state
		if i.resetValue != nil {
			v, ok := i.resetValue.Get()
			if !ok {
				return nil
			}
			to = v
		}
		i.resetTo, i.resetting = to, true
	}
	return nil
}

func (i *Integrator) Postfire(t dynamo.Time) (bool, error) {
	i.suggested = math.Inf(1)
	if st := i.step(); st.Size != 0 && i.fired {
		i.suggested = i.solver.IntegratorPredictedStepSize(i, st)
	}

	i.state = i.next
	if i.solver.HistoryCapacity() > 0 {
		i.pushHistory(historyEntry{i.state, i.input})
	}

	if i.resetting {
		i.state = i.resetTo
		i.history = i.history[:0]
		if err := i.director.FireAt(i, t); err != nil {
			return false, err
		}
	}
	i.restart()
	return true, nil
}

func (i *Integrator) RollBackToCommittedState() { i.restart() }

func (i *Integrator) restart() {
	i.next = i.state
	i.emitted = i.state
	i.round = 0
	i.fired = false
	i.resetting = false
	i.accurate = true
}

func (i *Integrator) pushHistory(e historyEntry) {
	n := i.solver.HistoryCapacity()
	if len(i.history) < n {
		i.history = append(i.history, historyEntry{})
	}
	copy(i.history[1:], i.history)
	i.history[0] = e
}

func (i *Integrator) step() integrators.Step {
	return integrators.Step{Size: i.director.CurrentStepSize(), ErrorTolerance: i.director.ErrorTolerance()}
}

func (i *Integrator) IsStepSizeAccurate() bool {
	i.accurate = !i.fired || i.solver.IntegratorIsAccurate(i, i.step())
	return i.accurate
}

func (i *Integrator) RefinedStepSize() float64 {
	st := i.step()
	if i.accurate {
		return st.Size
	}
	return i.solver.IntegratorPredictedStepSize(i, st)
}

// SuggestedStepSize is the solver's prediction for the step after the last
// committed one.
func (i *Integrator) SuggestedStepSize() float64 { return i.suggested }

func (i *Integrator) CommittedState() float64 { return i.state }
func (i *Integrator) Derivative() float64     { return i.input }
func (i *Integrator) RoundState() float64     { return i.emitted }
func (i *Integrator) SetNextState(v float64)  { i.next = v }
func (i *Integrator) AuxVariables() []float64 { return i.aux }

func (i *Integrator) History(n int) (float64, float64, bool) {
	if n < 0 || n >= len(i.history) {
		return 0, 0, false
	}
	e := i.history[n]
	return e.state, e.derivative, true
}
