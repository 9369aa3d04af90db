package dynamo

import (
	"fmt"
	"math"
	"strconv"
)

// DefaultResolution is the smallest distinguishable time increment used when
// a model does not configure one.
const DefaultResolution = 1e-10

// Resolution is the quantum model time is measured in.
type Resolution struct {
	value float64
	scale float64 // ticks per unit time
}

// NewResolution returns a resolution of r time units per tick.
func NewResolution(r float64) (Resolution, error) {
	if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return Resolution{}, fmt.Errorf("%w: time resolution must be positive and finite, got %g", ErrConfig, r)
	}
	scale := 1 / r
	if r < 1 {
		// 1/1e-10 is not exact in binary; rounding keeps tick conversions exact
		// for decimal resolutions.
		scale = math.Round(scale)
	}
	return Resolution{value: r, scale: scale}, nil
}

// MustResolution is like NewResolution but panics on invalid input.
func MustResolution(r float64) Resolution {
	res, err := NewResolution(r)
	if err != nil {
		panic(err)
	}
	return res
}

func (r Resolution) orDefault() Resolution {
	if r.scale == 0 {
		return MustResolution(DefaultResolution)
	}
	return r
}

// Value returns the resolution in time units.
func (r Resolution) Value() float64 {
	return r.orDefault().value
}

// Time quantizes v to this resolution. Infinite or out of range values
// saturate to PositiveInfinity or NegativeInfinity.
func (r Resolution) Time(v float64) Time {
	r = r.orDefault()
	return Time{ticks: r.ticks(v), res: r}
}

// PositiveInfinity returns the time later than every finite time.
func (r Resolution) PositiveInfinity() Time {
	return Time{ticks: math.MaxInt64, res: r.orDefault()}
}

func (r Resolution) ticks(v float64) int64 {
	if math.IsNaN(v) {
		panic("dynamo: NaN time value")
	}
	n := math.Round(v * r.scale)
	switch {
	case n >= math.MaxInt64:
		return math.MaxInt64
	case n <= math.MinInt64:
		return math.MinInt64
	}
	return int64(n)
}

// Time is a model time quantized to a Resolution. It is a value type; copies
// never alias.
type Time struct {
	ticks int64
	res   Resolution
}

// Resolution returns the quantum t was created with.
func (t Time) Resolution() Resolution {
	return t.res.orDefault()
}

// IsInfinite reports whether t is one of the saturating sentinels.
func (t Time) IsInfinite() bool {
	return t.ticks == math.MaxInt64 || t.ticks == math.MinInt64
}

// Add returns t advanced by d time units, quantized to t's resolution.
func (t Time) Add(d float64) Time {
	if t.IsInfinite() {
		return t
	}
	res := t.Resolution()
	dt := res.ticks(d)
	sum := t.ticks + dt
	// Overflow saturates in the direction of d.
	if dt > 0 && sum < t.ticks {
		sum = math.MaxInt64
	} else if dt < 0 && sum > t.ticks {
		sum = math.MinInt64
	}
	return Time{ticks: sum, res: res}
}

// Sub returns t - u in time units.
func (t Time) Sub(u Time) float64 {
	switch {
	case t.IsInfinite() || u.IsInfinite():
		return t.Float64() - u.Float64()
	}
	return float64(t.ticks-u.ticks) / t.Resolution().scale
}

// Compare returns -1, 0 or +1 depending on whether t is before, equal to or
// after u.
func (t Time) Compare(u Time) int {
	switch {
	case t.ticks < u.ticks:
		return -1
	case t.ticks > u.ticks:
		return 1
	}
	return 0
}

func (t Time) Before(u Time) bool { return t.ticks < u.ticks }
func (t Time) After(u Time) bool  { return t.ticks > u.ticks }
func (t Time) Equal(u Time) bool  { return t.ticks == u.ticks }

// Float64 returns t in time units.
func (t Time) Float64() float64 {
	switch t.ticks {
	case math.MaxInt64:
		return math.Inf(1)
	case math.MinInt64:
		return math.Inf(-1)
	}
	return float64(t.ticks) / t.Resolution().scale
}

func (t Time) String() string {
	return strconv.FormatFloat(t.Float64(), 'g', -1, 64)
}
