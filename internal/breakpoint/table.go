// Package breakpoint keeps the future instants a continuous director must
// land on exactly.
package breakpoint

import (
	"slices"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

// Table is an ascending set of breakpoints. Equal times merge.
type Table struct {
	times []dynamo.Time
}

func New() *Table {
	return &Table{}
}

func (tb *Table) search(t dynamo.Time) (int, bool) {
	return slices.BinarySearchFunc(tb.times, t, dynamo.Time.Compare)
}

// Insert adds t unless an equal breakpoint is already present.
func (tb *Table) Insert(t dynamo.Time) {
	i, found := tb.search(t)
	if found {
		return
	}
	tb.times = slices.Insert(tb.times, i, t)
}

// First returns the earliest breakpoint.
func (tb *Table) First() (dynamo.Time, bool) {
	if len(tb.times) == 0 {
		return dynamo.Time{}, false
	}
	return tb.times[0], true
}

// RemoveFirst removes and returns the earliest breakpoint. It panics on an
// empty table; check IsEmpty or First first.
func (tb *Table) RemoveFirst() dynamo.Time {
	if len(tb.times) == 0 {
		panic("breakpoint: RemoveFirst on empty table")
	}
	t := tb.times[0]
	tb.times = slices.Delete(tb.times, 0, 1)
	return t
}

func (tb *Table) Contains(t dynamo.Time) bool {
	_, found := tb.search(t)
	return found
}

func (tb *Table) IsEmpty() bool { return len(tb.times) == 0 }
func (tb *Table) Len() int      { return len(tb.times) }

// Clear drops every breakpoint.
func (tb *Table) Clear() {
	tb.times = tb.times[:0]
}
