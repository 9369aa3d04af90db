package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders values as a single row of block characters, sampled down
// to at most width cells.
func (t Theme) Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}
	st := t.styles()
	lo, hi := bounds(values)
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}
	step := max(len(values)/width, 1)

	var b strings.Builder
	for i := 0; i < width && i*step < len(values); i++ {
		v := values[i*step]
		if !finite(v) {
			b.WriteString(st.sparkLow.Render("?"))
			continue
		}
		norm := (v - lo) / rng
		idx := min(max(int(norm*float64(len(sparkChars)-1)), 0), len(sparkChars)-1)
		c := string(sparkChars[idx])
		switch {
		case norm > 0.7:
			b.WriteString(st.sparkHigh.Render(c))
		case norm > 0.3:
			b.WriteString(st.sparkMid.Render(c))
		default:
			b.WriteString(st.sparkLow.Render(c))
		}
	}
	return b.String()
}

// ProgressBar renders fraction (clamped to [0, 1]) as a bar of width cells.
func (t Theme) ProgressBar(fraction float64, width int) string {
	if math.IsNaN(fraction) {
		fraction = 0
	}
	filled := int(math.Max(0, math.Min(1, fraction)) * float64(width))
	st := t.styles()
	return st.running.Render(strings.Repeat("█", filled)) + st.muted.Render(strings.Repeat("░", width-filled))
}

// Summary renders a finished run: counters, metrics and a sparkline per
// trace.
func (t Theme) Summary(name string, r *dynamo.Result) string {
	st := t.styles()
	var b strings.Builder

	b.WriteString(st.header.Render(strings.ToUpper(name)) + "\n")
	status := st.done.Render("COMPLETED")
	if r.Interrupted {
		status = st.paused.Render("INTERRUPTED")
	}
	row := func(label, value string) {
		b.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("status", status)
	row("final time", fmt.Sprintf("%.6g", r.FinalTime))
	row("steps", fmt.Sprintf("%d", r.StepsTaken))
	row("rejections", fmt.Sprintf("%d", r.Rejections))

	if len(r.Metrics) > 0 {
		b.WriteString("\n" + st.active.Render("METRICS") + "\n")
		keys := make([]string, 0, len(r.Metrics))
		for k := range r.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			row(k, fmt.Sprintf("%.6g", r.Metrics[k]))
		}
	}

	if len(r.Traces) > 0 {
		b.WriteString("\n" + st.active.Render("TRACES") + "\n")
		for _, tr := range r.Traces {
			last := "-"
			if _, v, ok := tr.Last(); ok {
				last = fmt.Sprintf("%.4g", v)
			}
			b.WriteString(st.label.Render(tr.Name) + t.Sparkline(tr.Values, 40) + " " + st.value.Render(last) + "\n")
		}
	}
	return st.panel.Render(strings.TrimRight(b.String(), "\n"))
}
