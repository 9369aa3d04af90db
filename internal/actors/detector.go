package actors

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/hybridsim/internal/actor"
	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/fixedpoint"
)

// Direction selects which crossings a LevelCrossingDetector reports.
type Direction int

const (
	Both Direction = iota
	Rising
	Falling
)

func (d Direction) String() string {
	switch d {
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	}
	return "both"
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "", "both":
		return Both, nil
	case "rising":
		return Rising, nil
	case "falling":
		return Falling, nil
	}
	return Both, fmt.Errorf("%w: unknown crossing direction %q", dynamo.ErrConfig, s)
}

// LevelCrossingDetector emits an event when its input crosses a level.
//
// A step whose input ends further than the error tolerance past the level is
// rejected, with a refined step found by linear interpolation. Once a step
// ends within tolerance the detector requests a zero-width step at that
// instant and emits Level on its output there.
type LevelCrossingDetector struct {
	base
	in, out   *fixedpoint.Signal
	level     float64
	direction Direction

	committed float64
	current   float64
	known     bool
	hasPrev   bool

	refined    float64
	atEnd      bool
	pending    bool
	eventTime  dynamo.Time
	emittedNow bool

	events []float64
}

var (
	_ actor.Stateful           = (*LevelCrossingDetector)(nil)
	_ actor.StepSizeController = (*LevelCrossingDetector)(nil)
)

func NewLevelCrossingDetector(name string, in, out *fixedpoint.Signal, level float64, dir Direction) *LevelCrossingDetector {
	return &LevelCrossingDetector{base: base{name: name}, in: in, out: out, level: level, direction: dir}
}

func (l *LevelCrossingDetector) Initialize(d actor.Director) error {
	if err := requireSignals(l.name, l.in, l.out); err != nil {
		return err
	}
	l.director = d
	l.hasPrev, l.pending, l.events = false, false, nil
	l.RollBackToCommittedState()
	return nil
}

// Events returns the times events were emitted at.
func (l *LevelCrossingDetector) Events() []float64 { return l.events }

func (l *LevelCrossingDetector) Fire(t dynamo.Time) error {
	if v, ok := l.in.Get(); ok {
		l.current, l.known = v, true
	}
	if l.pending && !l.emittedNow && l.director.CurrentStepSize() == 0 && t.Equal(l.eventTime) {
		if err := l.out.Set(l.level); err != nil {
			return err
		}
		l.emittedNow = true
	}
	return nil
}

func (l *LevelCrossingDetector) crossed(from, to float64) bool {
	up := from < l.level && to >= l.level
	down := from > l.level && to <= l.level
	switch l.direction {
	case Rising:
		return up
	case Falling:
		return down
	}
	return up || down
}

func (l *LevelCrossingDetector) IsStepSizeAccurate() bool {
	h := l.director.CurrentStepSize()
	l.refined, l.atEnd = h, false
	if h == 0 || !l.hasPrev || !l.known || !l.crossed(l.committed, l.current) {
		return true
	}
	if math.Abs(l.current-l.level) <= l.director.ErrorTolerance() {
		l.atEnd = true
		return true
	}
	l.refined = h * (l.committed - l.level) / (l.committed - l.current)
	return false
}

func (l *LevelCrossingDetector) RefinedStepSize() float64   { return l.refined }
func (l *LevelCrossingDetector) SuggestedStepSize() float64 { return math.Inf(1) }

func (l *LevelCrossingDetector) Postfire(t dynamo.Time) (bool, error) {
	if l.emittedNow {
		l.pending = false
		l.events = append(l.events, t.Float64())
	}
	if l.atEnd && l.director.CurrentStepSize() != 0 {
		l.pending, l.eventTime = true, t
		if err := l.director.FireAt(l, t); err != nil {
			return false, err
		}
	}
	if l.known {
		l.committed, l.hasPrev = l.current, true
	}
	l.RollBackToCommittedState()
	return true, nil
}

func (l *LevelCrossingDetector) RollBackToCommittedState() {
	l.current, l.known = l.committed, false
	l.atEnd, l.emittedNow = false, false
}
