// Package fixedpoint resolves the signals of a model at a single time point
// by firing actors until no further signal becomes known.
package fixedpoint

import (
	"context"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/san-kum/hybridsim/internal/actor"
	"github.com/san-kum/hybridsim/internal/dynamo"
)

const DefaultMaxIterations = 100

// Resolver fires a schedule to a fixed point over a Board. Each resolution
// starts from all signals unknown, so a signal nobody sets is absent.
type Resolver struct {
	board         *Board
	maxIterations int
	logger        log.Logger

	iterations int
}

type Option func(*Resolver)

func WithMaxIterations(n int) Option {
	return func(r *Resolver) { r.maxIterations = n }
}

func WithLogger(l log.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

func NewResolver(board *Board, opts ...Option) *Resolver {
	r := &Resolver{
		board:         board,
		maxIterations: DefaultMaxIterations,
		logger:        log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Board() *Board { return r.board }

// Iterations is the number of sweeps the last resolution took.
func (r *Resolver) Iterations() int { return r.iterations }

// Resolve fires every ready actor of schedule at t, in order, until a sweep
// makes no new signal known. It returns dynamo.ErrNotConverged if the sweeps
// are still making progress after the iteration limit.
func (r *Resolver) Resolve(ctx context.Context, t dynamo.Time, schedule []actor.Actor) error {
	r.board.Clear()
	r.iterations = 0

	for r.iterations < r.maxIterations {
		r.iterations++
		before := r.board.KnownCount()

		for _, a := range schedule {
			if err := ctx.Err(); err != nil {
				return err
			}
			ready, err := a.Prefire(t)
			if err != nil {
				return fmt.Errorf("prefire %s: %w", a.Name(), err)
			}
			if !ready {
				continue
			}
			if err := a.Fire(t); err != nil {
				return fmt.Errorf("fire %s: %w", a.Name(), err)
			}
		}

		if r.board.KnownCount() == before {
			return nil
		}
	}

	level.Debug(r.logger).Log("msg", "no fixed point", "time", t, "iterations", r.iterations)
	return fmt.Errorf("%w after %d iterations at t=%s", dynamo.ErrNotConverged, r.iterations, t)
}
