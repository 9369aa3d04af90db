package export

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

func sampleTraces() []*dynamo.Trace {
	x := &dynamo.Trace{Name: "x"}
	ev := &dynamo.Trace{Name: "event"}
	for i := 0; i <= 20; i++ {
		t := float64(i) * 0.1
		x.Append(t, math.Exp(-t))
	}
	ev.Append(0.7, 0)
	return []*dynamo.Trace{x, ev, {Name: "empty"}}
}

func TestPlotSelectsTraces(t *testing.T) {
	tests := []struct {
		name    string
		signals []string
		want    int
	}{
		{"all non-empty", nil, 2},
		{"by name", []string{"x"}, 1},
		{"unknown", []string{"missing"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := selectTraces(sampleTraces(), tt.signals)
			if len(got) != tt.want {
				t.Errorf("selected %d traces, want %d", len(got), tt.want)
			}
		})
	}
}

func TestPlotNoTraces(t *testing.T) {
	_, err := Plot(sampleTraces(), Options{Signals: []string{"empty"}})
	if !errors.Is(err, ErrNoTraces) {
		t.Errorf("err = %v, want ErrNoTraces", err)
	}
}

func TestWriteSVG(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Title = "decay"
	opts.Events = []string{"event"}
	if err := Write(&buf, sampleTraces(), "svg", opts); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(buf.String(), "<svg") {
		t.Error("output is not SVG")
	}
}

func TestSavePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plot.png")
	if err := Save(path, sampleTraces(), Options{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("output is not PNG")
	}
}

func TestSaveMissingExtension(t *testing.T) {
	if err := Save(filepath.Join(t.TempDir(), "plot"), sampleTraces(), Options{}); err == nil {
		t.Error("expected error for path without extension")
	}
}
