// Package export renders recorded traces as PNG, SVG or PDF plots.
package export

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

var ErrNoTraces = errors.New("export: no traces to plot")

// Options controls plot layout. Signals selects traces by name; empty means
// all. Traces named in Events are drawn as markers instead of lines, which
// suits sparse event signals.
type Options struct {
	Title   string
	Width   vg.Length
	Height  vg.Length
	Signals []string
	Events  []string
}

func DefaultOptions() Options {
	return Options{Width: 8 * vg.Inch, Height: 4 * vg.Inch}
}

// Plot builds a time-series plot of the selected traces.
func Plot(traces []*dynamo.Trace, opts Options) (*plot.Plot, error) {
	selected := selectTraces(traces, opts.Signals)
	if len(selected) == 0 {
		return nil, ErrNoTraces
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "t"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	events := make(map[string]bool, len(opts.Events))
	for _, name := range opts.Events {
		events[name] = true
	}

	for i, tr := range selected {
		xys := make(plotter.XYs, tr.Len())
		for j := range xys {
			xys[j].X = tr.Times[j]
			xys[j].Y = tr.Values[j]
		}

		if events[tr.Name] {
			s, err := plotter.NewScatter(xys)
			if err != nil {
				return nil, fmt.Errorf("trace %s: %w", tr.Name, err)
			}
			s.Color = plotutil.Color(i)
			s.Shape = plotutil.Shape(i)
			p.Add(s)
			p.Legend.Add(tr.Name, s)
			continue
		}

		l, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("trace %s: %w", tr.Name, err)
		}
		l.Color = plotutil.Color(i)
		l.Dashes = plotutil.Dashes(i)
		p.Add(l)
		p.Legend.Add(tr.Name, l)
	}
	return p, nil
}

// Write renders the plot to w. format is one of png, svg, pdf, eps, jpg,
// tif.
func Write(w io.Writer, traces []*dynamo.Trace, format string, opts Options) error {
	p, err := Plot(traces, opts)
	if err != nil {
		return err
	}
	opts = withDefaults(opts)
	wt, err := p.WriterTo(opts.Width, opts.Height, format)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// Save renders the plot to path; the format follows the file extension.
func Save(path string, traces []*dynamo.Trace, opts Options) error {
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "" {
		return fmt.Errorf("export: %s: missing file extension", path)
	}
	p, err := Plot(traces, opts)
	if err != nil {
		return err
	}
	opts = withDefaults(opts)
	return p.Save(opts.Width, opts.Height, path)
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	return opts
}

func selectTraces(traces []*dynamo.Trace, names []string) []*dynamo.Trace {
	var out []*dynamo.Trace
	if len(names) == 0 {
		for _, tr := range traces {
			if tr.Len() > 0 {
				out = append(out, tr)
			}
		}
		return out
	}
	for _, name := range names {
		for _, tr := range traces {
			if tr.Name == name && tr.Len() > 0 {
				out = append(out, tr)
			}
		}
	}
	return out
}
