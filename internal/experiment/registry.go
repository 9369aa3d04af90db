package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/hybridsim/internal/actor"
	"github.com/san-kum/hybridsim/internal/actors"
	"github.com/san-kum/hybridsim/internal/config"
	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/fixedpoint"
	"github.com/san-kum/hybridsim/internal/metrics"
)

// BlockFactory builds the actor for one block, connected to board.
type BlockFactory func(b config.BlockConfig, board *fixedpoint.Board) (actor.Actor, error)

// MetricFactory builds a trace metric.
type MetricFactory func(m config.MetricConfig) (metrics.TraceMetric, error)

type Registry struct {
	blocks  map[string]BlockFactory
	metrics map[string]MetricFactory
}

func NewRegistry() *Registry {
	r := &Registry{
		blocks:  make(map[string]BlockFactory),
		metrics: make(map[string]MetricFactory),
	}

	r.blocks["const"] = func(b config.BlockConfig, board *fixedpoint.Board) (actor.Actor, error) {
		if err := arity(b, 0, 0); err != nil {
			return nil, err
		}
		return actors.NewConst(b.Name, output(b, board), b.Param("value", 0)), nil
	}
	r.blocks["ramp"] = func(b config.BlockConfig, board *fixedpoint.Board) (actor.Actor, error) {
		if err := arity(b, 0, 0); err != nil {
			return nil, err
		}
		return actors.NewRamp(b.Name, output(b, board), b.Param("offset", 0), b.Param("slope", 1)), nil
	}
	r.blocks["sine"] = func(b config.BlockConfig, board *fixedpoint.Board) (actor.Actor, error) {
		if err := arity(b, 0, 0); err != nil {
			return nil, err
		}
		return actors.NewSine(b.Name, output(b, board),
			b.Param("amplitude", 1), b.Param("frequency", 1), b.Param("phase", 0), b.Param("offset", 0)), nil
	}
	r.blocks["gain"] = func(b config.BlockConfig, board *fixedpoint.Board) (actor.Actor, error) {
		if err := arity(b, 1, 1); err != nil {
			return nil, err
		}
		return actors.NewGain(b.Name, board.Signal(b.Inputs[0]), output(b, board), b.Param("k", 1)), nil
	}
	r.blocks["sum"] = func(b config.BlockConfig, board *fixedpoint.Board) (actor.Actor, error) {
		if err := arity(b, 1, -1); err != nil {
			return nil, err
		}
		return actors.NewSum(b.Name, output(b, board), inputs(b, board)...), nil
	}
	r.blocks["product"] = func(b config.BlockConfig, board *fixedpoint.Board) (actor.Actor, error) {
		if err := arity(b, 1, -1); err != nil {
			return nil, err
		}
		return actors.NewProduct(b.Name, output(b, board), inputs(b, board)...), nil
	}
	r.blocks["function"] = func(b config.BlockConfig, board *fixedpoint.Board) (actor.Actor, error) {
		return actors.NewFunction(b.Name, b.Op, output(b, board), inputs(b, board)...)
	}
	r.blocks["integrator"] = func(b config.BlockConfig, board *fixedpoint.Board) (actor.Actor, error) {
		if err := arity(b, 1, 3); err != nil {
			return nil, err
		}
		in := inputs(b, board)
		integ := actors.NewIntegrator(b.Name, in[0], output(b, board), b.Param("initial", 0))
		switch len(in) {
		case 2:
			integ.WithReset(in[1], nil)
		case 3:
			integ.WithReset(in[1], in[2])
		}
		return integ, nil
	}
	r.blocks["level_crossing"] = func(b config.BlockConfig, board *fixedpoint.Board) (actor.Actor, error) {
		if err := arity(b, 1, 1); err != nil {
			return nil, err
		}
		dir, err := actors.ParseDirection(b.Op)
		if err != nil {
			return nil, fmt.Errorf("block %s: %w", b.Name, err)
		}
		return actors.NewLevelCrossingDetector(b.Name, board.Signal(b.Inputs[0]), output(b, board), b.Param("level", 0), dir), nil
	}
	r.blocks["sampler"] = func(b config.BlockConfig, board *fixedpoint.Board) (actor.Actor, error) {
		if err := arity(b, 1, 1); err != nil {
			return nil, err
		}
		return actors.NewPeriodicSampler(b.Name, board.Signal(b.Inputs[0]), output(b, board), b.Param("period", 1)), nil
	}

	r.blocks["pid"] = func(b config.BlockConfig, board *fixedpoint.Board) (actor.Actor, error) {
		if err := arity(b, 1, 1); err != nil {
			return nil, err
		}
		pid := actors.NewPID(b.Name, board.Signal(b.Inputs[0]), output(b, board),
			b.Param("kp", 1), b.Param("ki", 0), b.Param("kd", 0), b.Param("target", 0))
		return pid.WithInitialControl(b.Param("initial", 0)), nil
	}

	r.metrics["stability"] = func(m config.MetricConfig) (metrics.TraceMetric, error) {
		if len(m.Signals) != 1 {
			return nil, fmt.Errorf("%w: stability takes one signal", dynamo.ErrConfig)
		}
		threshold, ok := m.Params["threshold"]
		if !ok {
			threshold = 1
		}
		return metrics.NewStability(m.Signals[0], threshold), nil
	}
	r.metrics["effort"] = func(m config.MetricConfig) (metrics.TraceMetric, error) {
		if len(m.Signals) != 1 {
			return nil, fmt.Errorf("%w: effort takes one signal", dynamo.ErrConfig)
		}
		return metrics.NewEffort(m.Signals[0]), nil
	}
	r.metrics["energy"] = func(m config.MetricConfig) (metrics.TraceMetric, error) {
		if len(m.Signals) != 2 {
			return nil, fmt.Errorf("%w: energy takes height and velocity signals", dynamo.ErrConfig)
		}
		g, ok := m.Params["gravity"]
		if !ok {
			g = 9.81
		}
		return metrics.NewEnergy(m.Signals[0], m.Signals[1], g), nil
	}
	r.metrics["frequency"] = func(m config.MetricConfig) (metrics.TraceMetric, error) {
		if len(m.Signals) != 1 {
			return nil, fmt.Errorf("%w: frequency takes one signal", dynamo.ErrConfig)
		}
		return metrics.NewDominantFrequency(m.Signals[0], int(m.Params["samples"])), nil
	}

	return r
}

// RegisterBlock adds or replaces a block type.
func (r *Registry) RegisterBlock(name string, f BlockFactory) { r.blocks[name] = f }

func (r *Registry) GetBlock(b config.BlockConfig, board *fixedpoint.Board) (actor.Actor, error) {
	fn, ok := r.blocks[b.Type]
	if !ok {
		return nil, fmt.Errorf("%w: block %s: unknown type %q", dynamo.ErrConfig, b.Name, b.Type)
	}
	return fn(b, board)
}

func (r *Registry) GetMetric(m config.MetricConfig) (metrics.TraceMetric, error) {
	fn, ok := r.metrics[m.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown metric %q", dynamo.ErrConfig, m.Type)
	}
	return fn(m)
}

func (r *Registry) ListBlocks() []string  { return sortedKeys(r.blocks) }
func (r *Registry) ListMetrics() []string { return sortedKeys(r.metrics) }

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// arity checks the number of inputs; max < 0 means unbounded.
func arity(b config.BlockConfig, min, max int) error {
	n := len(b.Inputs)
	if n < min || (max >= 0 && n > max) {
		return fmt.Errorf("%w: block %s (%s) has %d inputs", dynamo.ErrConfig, b.Name, b.Type, n)
	}
	if b.Output == "" {
		return fmt.Errorf("%w: block %s (%s) has no output", dynamo.ErrConfig, b.Name, b.Type)
	}
	return nil
}

func inputs(b config.BlockConfig, board *fixedpoint.Board) []*fixedpoint.Signal {
	out := make([]*fixedpoint.Signal, len(b.Inputs))
	for i, name := range b.Inputs {
		out[i] = board.Signal(name)
	}
	return out
}

func output(b config.BlockConfig, board *fixedpoint.Board) *fixedpoint.Signal {
	if b.Output == "" {
		return nil
	}
	return board.Signal(b.Output)
}
