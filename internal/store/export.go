package store

import (
	"encoding/json"
	"io"
	"math"

	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/storage"
)

type ExportTrace struct {
	Name   string    `json:"name"`
	Times  []float64 `json:"times"`
	Values []float64 `json:"values"`
}

type ExportData struct {
	ID          string             `json:"id,omitempty"`
	Model       string             `json:"model"`
	Solver      string             `json:"solver"`
	FinalTime   float64            `json:"final_time"`
	Steps       int                `json:"steps"`
	Rejections  int                `json:"rejections"`
	Interrupted bool               `json:"interrupted"`
	Traces      []ExportTrace      `json:"traces"`
	Metrics     map[string]float64 `json:"metrics"`
}

// ExportJSON writes a run as indented JSON. meta may come from a stored
// run or be assembled for a run that was never saved.
func ExportJSON(w io.Writer, meta *storage.RunMetadata, result *dynamo.Result) error {
	data := ExportData{
		ID:          meta.ID,
		Model:       meta.Model,
		Solver:      meta.Solver,
		FinalTime:   result.FinalTime,
		Steps:       result.StepsTaken,
		Rejections:  result.Rejections,
		Interrupted: result.Interrupted,
		Traces:      make([]ExportTrace, 0, len(result.Traces)),
		Metrics:     finite(result.Metrics),
	}
	for _, tr := range result.Traces {
		data.Traces = append(data.Traces, ExportTrace{Name: tr.Name, Times: tr.Times, Values: tr.Values})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// finite drops metrics JSON cannot represent.
func finite(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[k] = v
		}
	}
	return out
}
