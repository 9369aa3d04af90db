// Package continuous implements the director of a hybrid continuous and
// discrete-time model. It advances model time in steps chosen by an ODE
// solver strategy and the model's step-size controllers, resolves all
// signals in every round of a step, rolls stateful actors back when a step
// is rejected, and never steps over a breakpoint.
package continuous

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/san-kum/hybridsim/internal/actor"
	"github.com/san-kum/hybridsim/internal/breakpoint"
	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/integrators"
)

// Resolver resolves every signal of a schedule at one time point.
type Resolver interface {
	Resolve(ctx context.Context, t dynamo.Time, schedule []actor.Actor) error
}

// Outer is the director a Director is embedded in.
type Outer interface {
	ModelTime() dynamo.Time
	FireAt(t dynamo.Time) error
}

// Director is the continuous-time scheduler. It is not safe for concurrent
// use; Fire and Postfire run on the caller's goroutine.
type Director struct {
	params   Parameters
	res      dynamo.Resolution
	solver   integrators.Solver
	resolver Resolver

	schedule    []actor.Actor
	controllers []controllerEntry
	statefuls   []statefulEntry

	breakpoints *breakpoint.Table
	step        StepState
	now         dynamo.Time
	stop        dynamo.Time

	outer     Outer
	observers []Observer
	pacer     *pacer
	logger    log.Logger
}

type Option func(*Director)

// WithSolver injects a solver instead of the one named by Parameters.Solver.
func WithSolver(s integrators.Solver) Option {
	return func(d *Director) { d.solver = s }
}

func WithOuter(o Outer) Option {
	return func(d *Director) { d.outer = o }
}

func WithObserver(o Observer) Option {
	return func(d *Director) { d.observers = append(d.observers, o) }
}

func WithLogger(l log.Logger) Option {
	return func(d *Director) { d.logger = l }
}

// WithClock sets the wall clock used when SynchronizeToRealTime is on.
func WithClock(c Clock) Option {
	return func(d *Director) { d.pacer = &pacer{clock: c} }
}

// New validates p and returns a director for schedule.
func New(p Parameters, schedule []actor.Actor, resolver Resolver, opts ...Option) (*Director, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	res, err := dynamo.NewResolution(p.TimeResolution)
	if err != nil {
		return nil, err
	}

	d := &Director{
		params:      p,
		res:         res,
		resolver:    resolver,
		breakpoints: breakpoint.New(),
		logger:      log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = log.With(d.logger, "component", "continuous")

	if d.solver == nil {
		if d.solver, err = integrators.New(p.Solver); err != nil {
			return nil, fmt.Errorf("%w: %w", dynamo.ErrConfig, err)
		}
	}
	if n := d.solver.Rounds(); n > p.MaxIterations {
		return nil, fmt.Errorf("%w: solver %s needs %d rounds per step, maxIterations is %d",
			dynamo.ErrConfig, d.solver.Name(), n, p.MaxIterations)
	}
	if p.SynchronizeToRealTime && d.pacer == nil {
		d.pacer = &pacer{clock: systemClock{}}
	}

	d.SetSchedule(schedule)
	return d, nil
}

func (d *Director) ModelTime() dynamo.Time     { return d.now }
func (d *Director) ModelStopTime() dynamo.Time { return d.stop }
func (d *Director) CurrentStepSize() float64   { return d.step.CurrentStepSize }
func (d *Director) ErrorTolerance() float64    { return d.params.ErrorTolerance }
func (d *Director) Solver() integrators.Solver { return d.solver }
func (d *Director) Parameters() Parameters     { return d.params }
func (d *Director) Resolution() dynamo.Resolution {
	return d.res
}

// StepState returns a copy of the current step bookkeeping.
func (d *Director) StepState() StepState { return d.step }

// Breakpoints returns the number of pending breakpoints.
func (d *Director) Breakpoints() int { return d.breakpoints.Len() }

// Initialize sets model time to the start time, registers the stop time as a
// breakpoint and initializes every actor.
func (d *Director) Initialize(ctx context.Context) error {
	d.breakpoints.Clear()
	if d.outer != nil {
		d.now = d.outer.ModelTime()
	} else {
		d.now = d.res.Time(d.params.StartTime)
	}
	d.stop = d.res.Time(d.params.StopTime)
	if !d.stop.IsInfinite() {
		d.breakpoints.Insert(d.stop)
	}

	d.step = StepState{CurrentStepSize: d.params.InitStepSize}
	d.step.begin(d.now)

	for _, a := range d.schedule {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.Initialize(d); err != nil {
			return d.fatal(fmt.Errorf("initialize: %w", err), a.Name())
		}
	}

	if d.pacer != nil {
		d.pacer.start(d.now)
	}
	level.Debug(d.logger).Log("msg", "initialized", "time", d.now, "stop", d.stop,
		"solver", d.solver.Name(), "actors", len(d.schedule))
	return d.requestOuterRefire()
}

// FireAt registers t as a breakpoint on behalf of a.
func (d *Director) FireAt(a actor.Actor, t dynamo.Time) error {
	if t.Before(d.now) {
		name := ""
		if a != nil {
			name = a.Name()
		}
		return d.fatal(fmt.Errorf("%w: requested t=%s", dynamo.ErrCausality, t), name)
	}
	d.breakpoints.Insert(t)
	return nil
}

// Fire advances model time by one accepted step. A rejected attempt is
// rolled back and retried with a smaller step until one is accepted. Fatal
// conditions are returned as *dynamo.SimulationError; cancellation returns
// ctx.Err() and leaves the step unfinished.
func (d *Director) Fire(ctx context.Context) error {
	d.step.begin(d.now)

	if first, ok := d.breakpoints.First(); ok && first.Equal(d.now) {
		d.breakpoints.RemoveFirst()
		d.step.CurrentStepSize = 0
	} else {
		d.capToBreakpoint()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.step.Attempts++

		unresolved, err := d.runRounds(ctx)
		if err != nil {
			return err
		}
		if unresolved && d.step.CurrentStepSize == 0 {
			// A zero-width step cannot be refined.
			level.Error(d.logger).Log("msg", "zero-width step unresolved", "time", d.now)
			return d.fatal(fmt.Errorf("%w: zero-width step at t=%s", dynamo.ErrNotConverged, d.now), "")
		}
		accurate, err := d.pollAccuracy(ctx)
		if err != nil {
			return err
		}

		h := d.step.CurrentStepSize
		exhausted := h != 0 && (!d.solver.IsStepFinished() || d.overIterated())
		resolved := h == 0 || (d.solver.ResolvedStates() && !unresolved)
		if accurate && resolved && !exhausted {
			d.notify(func(o Observer) {
				o.StepAccepted(StepInfo{Begin: d.step.IterationBegin, StepSize: h, Rounds: d.step.RoundCount, Attempt: d.step.Attempts})
			})
			return nil
		}

		if err := d.reject(ctx, !resolved || exhausted); err != nil {
			return err
		}
	}
}

// runRounds runs the solver's rounds of one attempt. It reports true if
// signal resolution did not reach a fixed point in some round.
func (d *Director) runRounds(ctx context.Context) (bool, error) {
	d.solver.Reset()
	d.step.RoundCount = 0
	h := d.step.CurrentStepSize

	for !d.solver.IsStepFinished() && d.step.RoundCount < d.params.MaxIterations {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		inc := d.solver.IncrementRound()
		if h > 0 && inc > 0 {
			d.now = d.step.IterationBegin.Add(h * inc)
		}

		if err := d.resolver.Resolve(ctx, d.now, d.schedule); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return false, ctxErr
			}
			if errors.Is(err, dynamo.ErrNotConverged) {
				level.Debug(d.logger).Log("msg", "round unresolved", "time", d.now, "round", d.solver.Round(), "err", err)
				return true, nil
			}
			return false, d.fatal(err, "")
		}

		d.step.RoundCount++
		if h == 0 {
			break
		}
	}
	return false, nil
}

// overIterated reports whether a solver with no fixed round count used up
// every allowed iteration. Convergence has to happen strictly before the
// limit.
func (d *Director) overIterated() bool {
	return d.solver.Rounds() == 0 && d.step.RoundCount >= d.params.MaxIterations
}

// reject refines the step size, restores model time and rolls back every
// stateful actor.
func (d *Director) reject(ctx context.Context, unresolved bool) error {
	h := d.step.CurrentStepSize
	refined, by := d.refinedStepSize()
	if refined >= h {
		// Nobody proposed a smaller step, e.g. the solver did not converge.
		refined = h / 2
	}

	if minimum := d.res.Value(); refined < minimum {
		if d.step.TriedMinimumStepSize {
			level.Error(d.logger).Log("msg", "cannot refine step further", "time", d.step.IterationBegin,
				"step", h, "refined", refined, "actor", by)
			return &dynamo.SimulationError{Time: d.step.IterationBegin, StepSize: h, Actor: by, Wrapped: dynamo.ErrStepTooSmall}
		}
		refined = minimum
		d.step.TriedMinimumStepSize = true
	} else {
		d.step.TriedMinimumStepSize = false
	}

	level.Debug(d.logger).Log("msg", "step rejected", "begin", d.step.IterationBegin, "step", h,
		"refined", refined, "by", by, "unresolved", unresolved, "attempt", d.step.Attempts)
	d.notify(func(o Observer) {
		o.StepRejected(StepInfo{Begin: d.step.IterationBegin, StepSize: h, Rounds: d.step.RoundCount, Attempt: d.step.Attempts, Refined: refined})
	})

	d.step.CurrentStepSize = refined
	d.capToBreakpoint()
	d.now = d.step.IterationBegin
	return d.rollBack(ctx)
}

// capToBreakpoint shrinks the current step so it ends no later than the
// earliest breakpoint.
func (d *Director) capToBreakpoint() {
	first, ok := d.breakpoints.First()
	if !ok {
		return
	}
	begin := d.step.IterationBegin
	if !first.After(begin) {
		d.step.CurrentStepSize = 0
		return
	}
	if begin.Add(d.step.CurrentStepSize).After(first) {
		d.step.CurrentStepSize = first.Sub(begin)
	}
}

// Postfire commits the accepted step. It returns false once the stop time
// is reached with no breakpoint left there, or when an actor asks to stop.
func (d *Director) Postfire(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	// Consume the breakpoint this step landed on before actors postfire, so
	// their requests for this same instant start a zero-width step.
	if first, ok := d.breakpoints.First(); ok && first.Equal(d.now) {
		d.breakpoints.RemoveFirst()
	}

	if d.now.After(d.stop) {
		level.Error(d.logger).Log("msg", "stop time overshot", "time", d.now, "stop", d.stop)
		return false, d.fatal(fmt.Errorf("%w: stop=%s", dynamo.ErrOvershoot, d.stop), "")
	}

	cont := true
	for _, a := range d.schedule {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		ok, err := a.Postfire(d.now)
		if err != nil {
			return false, d.fatal(fmt.Errorf("postfire: %w", err), a.Name())
		}
		if !ok {
			level.Debug(d.logger).Log("msg", "actor requested stop", "actor", a.Name(), "time", d.now)
			cont = false
		}
	}

	if d.now.Equal(d.stop) {
		if first, ok := d.breakpoints.First(); !ok || !first.Equal(d.now) {
			cont = false
		}
	}

	d.step.CurrentStepSize = d.suggestedStepSize()

	if err := d.requestOuterRefire(); err != nil {
		return false, err
	}

	if d.pacer != nil && d.params.SynchronizeToRealTime {
		slept, err := d.pacer.sync(ctx, d.now)
		if err != nil {
			return false, err
		}
		if slept > 0 {
			level.Debug(d.logger).Log("msg", "paced to real time", "time", d.now, "slept", slept)
		}
	}
	return cont, nil
}

func (d *Director) requestOuterRefire() error {
	if d.outer == nil {
		return nil
	}
	first, ok := d.breakpoints.First()
	if !ok {
		return nil
	}
	if err := d.outer.FireAt(first); err != nil {
		return d.fatal(fmt.Errorf("outer refire: %w", err), "")
	}
	return nil
}

func (d *Director) notify(fn func(Observer)) {
	for _, o := range d.observers {
		fn(o)
	}
}

func (d *Director) fatal(err error, actorName string) error {
	var simErr *dynamo.SimulationError
	if errors.As(err, &simErr) {
		return err
	}
	return &dynamo.SimulationError{Time: d.now, StepSize: d.step.CurrentStepSize, Actor: actorName, Wrapped: err}
}
