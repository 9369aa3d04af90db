package metrics

import (
	"math"
	"math/cmplx"
	"sort"

	"github.com/mjibson/go-dsp/fft"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

// DefaultSpectrumSamples is the resampling size of DominantFrequency.
const DefaultSpectrumSamples = 256

// DominantFrequency is the frequency, in cycles per unit of model time, of
// the strongest non-constant component of a signal. The trace is resampled
// onto a uniform grid by linear interpolation first, since adaptive steps
// record at irregular times.
type DominantFrequency struct {
	signal  string
	samples int
}

func NewDominantFrequency(signal string, samples int) *DominantFrequency {
	if samples < 4 {
		samples = DefaultSpectrumSamples
	}
	return &DominantFrequency{signal: signal, samples: samples}
}

func (f *DominantFrequency) Name() string { return "frequency_" + f.signal }

func (f *DominantFrequency) Evaluate(r *dynamo.Result) (float64, bool) {
	tr := r.Trace(f.signal)
	if tr == nil || tr.Len() < 2 {
		return 0, false
	}
	t0, t1 := tr.Times[0], tr.Times[tr.Len()-1]
	if !(t1 > t0) {
		return 0, false
	}

	n := f.samples
	dt := (t1 - t0) / float64(n-1)
	x := resample(tr, t0, dt, n)

	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(n)
	for i := range x {
		x[i] -= mean
	}

	spectrum := fft.FFTReal(x)
	best, bestMag := 0, 0.0
	for k := 1; k <= n/2; k++ {
		if m := cmplx.Abs(spectrum[k]); m > bestMag {
			best, bestMag = k, m
		}
	}
	if best == 0 {
		return 0, true
	}
	return float64(best) / (float64(n) * dt), true
}

// resample returns n values of tr at t0, t0+dt, ... by linear
// interpolation. Zero-width steps record repeated times; the last value at
// a repeated time wins.
func resample(tr *dynamo.Trace, t0, dt float64, n int) []float64 {
	out := make([]float64, n)
	last := tr.Len() - 1
	for i := range out {
		t := t0 + float64(i)*dt
		j := sort.Search(tr.Len(), func(k int) bool { return tr.Times[k] > t })
		switch {
		case j == 0:
			out[i] = tr.Values[0]
		case j > last:
			out[i] = tr.Values[last]
		default:
			ta, tb := tr.Times[j-1], tr.Times[j]
			va, vb := tr.Values[j-1], tr.Values[j]
			out[i] = va + (vb-va)*(t-ta)/(tb-ta)
		}
		if math.IsNaN(out[i]) {
			out[i] = 0
		}
	}
	return out
}
