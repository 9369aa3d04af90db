// Package actors is the block library models are assembled from. Blocks
// exchange values through fixedpoint signals and are driven by a
// continuous.Director.
package actors

import (
	"fmt"

	"github.com/san-kum/hybridsim/internal/actor"
	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/fixedpoint"
)

type base struct {
	name     string
	director actor.Director
}

func (b *base) Name() string { return b.name }

func (b *base) Initialize(d actor.Director) error {
	b.director = d
	return nil
}

func (b *base) Prefire(dynamo.Time) (bool, error)  { return true, nil }
func (b *base) Postfire(dynamo.Time) (bool, error) { return true, nil }

func requireSignals(name string, signals ...*fixedpoint.Signal) error {
	for i, s := range signals {
		if s == nil {
			return fmt.Errorf("%w: %s: port %d is not connected", dynamo.ErrConfig, name, i)
		}
	}
	return nil
}

// allKnown returns the values of signals if every one of them is known.
func allKnown(signals []*fixedpoint.Signal) ([]float64, bool) {
	vals := make([]float64, len(signals))
	for i, s := range signals {
		v, ok := s.Get()
		if !ok {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}
