package actors

import (
	"context"
	"testing"

	"github.com/san-kum/hybridsim/internal/actor"
	"github.com/san-kum/hybridsim/internal/continuous"
	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/fixedpoint"
	"github.com/san-kum/hybridsim/internal/integrators"
)

// run drives schedule to completion and returns the director.
func run(t *testing.T, p continuous.Parameters, board *fixedpoint.Board, schedule ...actor.Actor) *continuous.Director {
	t.Helper()
	ctx := context.Background()
	d, err := continuous.New(p, schedule, fixedpoint.NewResolver(board))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	for i := 0; i < 100000; i++ {
		if err := d.Fire(ctx); err != nil {
			t.Fatalf("Fire at t=%s: %v", d.ModelTime(), err)
		}
		cont, err := d.Postfire(ctx)
		if err != nil {
			t.Fatalf("Postfire at t=%s: %v", d.ModelTime(), err)
		}
		if !cont {
			return d
		}
	}
	t.Fatal("model did not stop")
	return nil
}

// fakeDirector lets tests drive a single actor by hand.
type fakeDirector struct {
	res     dynamo.Resolution
	now     dynamo.Time
	h       float64
	tol     float64
	solver  integrators.Solver
	fireAts []float64
}

func newFakeDirector(solver integrators.Solver) *fakeDirector {
	res := dynamo.MustResolution(dynamo.DefaultResolution)
	return &fakeDirector{res: res, now: res.Time(0), h: 0.1, tol: 1e-6, solver: solver}
}

func (f *fakeDirector) ModelTime() dynamo.Time     { return f.now }
func (f *fakeDirector) ModelStopTime() dynamo.Time { return f.res.PositiveInfinity() }
func (f *fakeDirector) CurrentStepSize() float64   { return f.h }
func (f *fakeDirector) ErrorTolerance() float64    { return f.tol }
func (f *fakeDirector) Solver() integrators.Solver { return f.solver }

func (f *fakeDirector) FireAt(_ actor.Actor, t dynamo.Time) error {
	f.fireAts = append(f.fireAts, t.Float64())
	return nil
}
