// Package sim runs built models: a single run to completion, or a sweep of
// runs over one block parameter in parallel.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/san-kum/hybridsim/internal/continuous"
	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/experiment"
	"github.com/san-kum/hybridsim/internal/fixedpoint"
	"github.com/san-kum/hybridsim/internal/metrics"
)

// Observer is called after every accepted step with the recorded signals
// known at that step. values is reused after OnStep returns.
type Observer interface {
	OnStep(t float64, values map[string]float64)
}

type Simulator struct {
	model     *experiment.Model
	metrics   *metrics.Set
	observers []Observer
	logger    log.Logger
	dirOpts   []continuous.Option
	maxSteps  int
	validate  bool
	pool      *samplePool
	recorded  []*fixedpoint.Signal
}

type Option func(*Simulator)

func WithLogger(l log.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

func WithObserver(o Observer) Option {
	return func(s *Simulator) { s.observers = append(s.observers, o) }
}

// WithDirectorOptions passes options through to the continuous director.
func WithDirectorOptions(opts ...continuous.Option) Option {
	return func(s *Simulator) { s.dirOpts = append(s.dirOpts, opts...) }
}

// WithMaxSteps stops the run after n accepted steps and marks it
// interrupted. Zero means no limit.
func WithMaxSteps(n int) Option {
	return func(s *Simulator) { s.maxSteps = n }
}

// WithValidation makes a NaN or infinite recorded value fail the run.
func WithValidation(on bool) Option {
	return func(s *Simulator) { s.validate = on }
}

func New(m *experiment.Model, opts ...Option) *Simulator {
	s := &Simulator{
		model:    m,
		metrics:  metrics.DefaultSet(),
		logger:   log.NewNopLogger(),
		validate: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics.AddTrace(m.Metrics...)
	for _, tr := range m.Recorder.Traces() {
		if sig, ok := m.Board.Lookup(tr.Name); ok {
			s.recorded = append(s.recorded, sig)
		}
	}
	s.pool = newSamplePool(len(s.recorded))
	return s
}

// Run drives the model until the director stops. Cancellation is not an
// error: the partial result is returned marked Interrupted.
func (s *Simulator) Run(ctx context.Context) (*dynamo.Result, error) {
	return s.RunWithCallback(ctx, nil)
}

// RunWithCallback is Run with fn called after every accepted step. The run
// stops, marked interrupted, when fn returns false.
func (s *Simulator) RunWithCallback(ctx context.Context, fn func(t float64, values map[string]float64) bool) (*dynamo.Result, error) {
	s.metrics.Reset()
	logger := log.With(s.logger, "model", s.model.Name)

	opts := append([]continuous.Option{
		continuous.WithObserver(s.metrics),
		continuous.WithLogger(s.logger),
	}, s.dirOpts...)
	d, err := continuous.New(s.model.Parameters, s.model.Schedule, s.model.Resolver, opts...)
	if err != nil {
		return nil, err
	}

	result := &dynamo.Result{}
	defer func() { s.finish(result, d) }()

	if err := d.Initialize(ctx); err != nil {
		return s.stopped(ctx, result, logger, err)
	}
	level.Info(logger).Log("msg", "run started", "solver", d.Solver().Name(),
		"start", d.ModelTime(), "stop", d.ModelStopTime())

	for steps := 1; ; steps++ {
		if err := d.Fire(ctx); err != nil {
			return s.stopped(ctx, result, logger, err)
		}
		cont, err := d.Postfire(ctx)
		if err != nil {
			return s.stopped(ctx, result, logger, err)
		}

		keep, err := s.observe(d, fn)
		if err != nil {
			level.Error(logger).Log("msg", "run failed", "err", err)
			return result, err
		}
		if !keep {
			level.Info(logger).Log("msg", "stopped by callback", "time", d.ModelTime())
			result.Interrupted = true
			break
		}
		if !cont {
			break
		}
		if s.maxSteps > 0 && steps >= s.maxSteps {
			level.Warn(logger).Log("msg", "step limit reached", "steps", steps, "time", d.ModelTime())
			result.Interrupted = true
			break
		}
	}

	level.Info(logger).Log("msg", "run finished", "time", d.ModelTime())
	return result, nil
}

// observe validates the recorded signals and feeds observers. It returns
// false when the callback asks to stop.
func (s *Simulator) observe(d *continuous.Director, fn func(float64, map[string]float64) bool) (bool, error) {
	if !s.validate && fn == nil && len(s.observers) == 0 {
		return true, nil
	}

	values := s.pool.get()
	defer s.pool.put(values)
	for _, sig := range s.recorded {
		v, ok := sig.Get()
		if !ok {
			continue
		}
		if s.validate && (math.IsNaN(v) || math.IsInf(v, 0)) {
			return false, &dynamo.SimulationError{
				Time: d.ModelTime(), StepSize: d.CurrentStepSize(), Actor: sig.Name(),
				Wrapped: fmt.Errorf("%w: %s = %g", dynamo.ErrInvalidState, sig.Name(), v),
			}
		}
		values[sig.Name()] = v
	}

	t := d.ModelTime().Float64()
	for _, o := range s.observers {
		o.OnStep(t, values)
	}
	if fn != nil && !fn(t, values) {
		return false, nil
	}
	return true, nil
}

func (s *Simulator) stopped(ctx context.Context, result *dynamo.Result, logger log.Logger, err error) (*dynamo.Result, error) {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		level.Info(logger).Log("msg", "run interrupted")
		result.Interrupted = true
		return result, nil
	}
	level.Error(logger).Log("msg", "run failed", "err", err)
	return result, err
}

func (s *Simulator) finish(result *dynamo.Result, d *continuous.Director) {
	result.Traces = s.model.Recorder.Traces()
	result.FinalTime = d.ModelTime().Float64()
	result.Metrics = s.metrics.Collect(result)
	result.StepsTaken = int(result.Metrics["steps"])
	result.Rejections = int(result.Metrics["rejections"])
}
