// Package experiment turns a model file into the actors, signals and
// director parameters of a runnable model.
package experiment

import (
	"fmt"

	"github.com/san-kum/hybridsim/internal/actor"
	"github.com/san-kum/hybridsim/internal/actors"
	"github.com/san-kum/hybridsim/internal/config"
	"github.com/san-kum/hybridsim/internal/continuous"
	"github.com/san-kum/hybridsim/internal/fixedpoint"
	"github.com/san-kum/hybridsim/internal/metrics"
)

// Model is a built, not yet initialized model. Its actors hold run state, so
// a Model is used for one run.
type Model struct {
	Name       string
	Parameters continuous.Parameters
	Board      *fixedpoint.Board
	Resolver   *fixedpoint.Resolver
	Schedule   []actor.Actor
	Recorder   *actors.Recorder
	Metrics    []metrics.TraceMetric
}

// Build validates cfg and builds its model with the blocks of r. opts are
// applied to the model's resolver after the configured iteration cap.
func Build(r *Registry, cfg *config.Config, opts ...fixedpoint.Option) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	params, err := cfg.Director.Parameters()
	if err != nil {
		return nil, err
	}

	board := fixedpoint.NewBoard()
	if n := cfg.Director.FixedPointIterations; n > 0 {
		opts = append([]fixedpoint.Option{fixedpoint.WithMaxIterations(n)}, opts...)
	}

	m := &Model{
		Name:       cfg.Name,
		Parameters: params,
		Board:      board,
		Resolver:   fixedpoint.NewResolver(board, opts...),
	}
	for _, b := range cfg.Blocks {
		a, err := r.GetBlock(b, board)
		if err != nil {
			return nil, err
		}
		m.Schedule = append(m.Schedule, a)
	}

	recorded := make([]*fixedpoint.Signal, 0, len(cfg.Record))
	for _, name := range cfg.Record {
		sig, ok := board.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("recorded signal %s is not connected", name)
		}
		recorded = append(recorded, sig)
	}
	m.Recorder = actors.NewRecorder("recorder", recorded...)
	m.Schedule = append(m.Schedule, m.Recorder)

	for _, mc := range cfg.Metrics {
		tm, err := r.GetMetric(mc)
		if err != nil {
			return nil, err
		}
		m.Metrics = append(m.Metrics, tm)
	}
	return m, nil
}
