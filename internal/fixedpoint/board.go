package fixedpoint

import (
	"fmt"
	"slices"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

// Signal is a named value that is either known or absent at a time point.
type Signal struct {
	name  string
	value float64
	known bool
	board *Board
}

func (s *Signal) Name() string { return s.name }

// Get returns the signal value and whether it is known.
func (s *Signal) Get() (float64, bool) {
	return s.value, s.known
}

// Known reports whether the signal has been set in this resolution.
func (s *Signal) Known() bool { return s.known }

// Set makes the signal known with value v. Setting a known signal to a
// different value is a conflict; setting it to the same value is a no-op.
func (s *Signal) Set(v float64) error {
	if s.known {
		if s.value != v {
			return fmt.Errorf("%w: %s is %g, cannot set %g", dynamo.ErrConflict, s.name, s.value, v)
		}
		return nil
	}
	s.value, s.known = v, true
	s.board.known++
	return nil
}

// Board owns every signal of a model.
type Board struct {
	signals map[string]*Signal
	order   []string
	known   int
}

func NewBoard() *Board {
	return &Board{signals: make(map[string]*Signal)}
}

// Signal returns the signal named name, creating it on first use.
func (b *Board) Signal(name string) *Signal {
	if s, ok := b.signals[name]; ok {
		return s
	}
	s := &Signal{name: name, board: b}
	b.signals[name] = s
	b.order = append(b.order, name)
	return s
}

// Lookup returns an existing signal.
func (b *Board) Lookup(name string) (*Signal, bool) {
	s, ok := b.signals[name]
	return s, ok
}

// Names lists signal names in creation order.
func (b *Board) Names() []string {
	return slices.Clone(b.order)
}

// KnownCount is the number of signals known in the current resolution.
func (b *Board) KnownCount() int { return b.known }

// Clear makes every signal unknown.
func (b *Board) Clear() {
	for _, s := range b.signals {
		s.known = false
	}
	b.known = 0
}
