package sim

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/hybridsim/internal/config"
	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/experiment"
)

// Sweep runs copies of a model that differ in one block parameter.
type Sweep struct {
	Base   *config.Config
	Block  string
	Param  string
	Values []float64
	// Workers bounds the runs in flight; zero uses GOMAXPROCS.
	Workers int
}

// Run builds and runs one model per value, concurrently. Results are in
// value order. The first failing run cancels the others. Observers passed
// in opts are shared by every run and must be safe for concurrent use.
func (sw Sweep) Run(ctx context.Context, reg *experiment.Registry, opts ...Option) ([]*dynamo.Result, error) {
	idx := -1
	for i, b := range sw.Base.Blocks {
		if b.Name == sw.Block {
			idx = i
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: sweep: no block named %s", dynamo.ErrConfig, sw.Block)
	}

	models := make([]*experiment.Model, len(sw.Values))
	for i, v := range sw.Values {
		cfg := sw.Base.Clone()
		b := &cfg.Blocks[idx]
		if b.Params == nil {
			b.Params = make(map[string]float64)
		}
		b.Params[sw.Param] = v

		m, err := experiment.Build(reg, cfg)
		if err != nil {
			return nil, fmt.Errorf("sweep %s.%s=%g: %w", sw.Block, sw.Param, v, err)
		}
		models[i] = m
	}

	workers := sw.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]*dynamo.Result, len(models))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, m := range models {
		g.Go(func() error {
			r, err := New(m, opts...).Run(ctx)
			if err != nil {
				return fmt.Errorf("sweep %s.%s=%g: %w", sw.Block, sw.Param, sw.Values[i], err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
