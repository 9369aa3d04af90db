// Package storage keeps finished runs on disk, one directory per run:
// metadata.json, traces.csv and the model.yaml the run was built from.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/hybridsim/internal/config"
	"github.com/san-kum/hybridsim/internal/dynamo"
)

// ErrNotFound is returned for a run id with no stored run.
var ErrNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID        string    `json:"id"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"timestamp"`
	Solver    string    `json:"solver"`
	StartTime float64   `json:"start_time"`
	StopTime  float64   `json:"stop_time"`
	// Unbounded marks a run without a stop time; JSON cannot hold +Inf.
	Unbounded      bool               `json:"unbounded,omitempty"`
	ErrorTolerance float64            `json:"error_tolerance"`
	MaxStepSize    float64            `json:"max_step_size"`
	FinalTime      float64            `json:"final_time"`
	Steps          int                `json:"steps"`
	Rejections     int                `json:"rejections"`
	Interrupted    bool               `json:"interrupted"`
	Signals        []string           `json:"signals"`
	Metrics        map[string]float64 `json:"metrics"`
}

// Save stores result under a new run id and returns its metadata.
func (s *Store) Save(cfg *config.Config, result *dynamo.Result) (*RunMetadata, error) {
	meta := &RunMetadata{
		ID:             uuid.NewString(),
		Model:          cfg.Name,
		Timestamp:      s.now().UTC(),
		Solver:         cfg.Director.Solver,
		StartTime:      cfg.Director.StartTime,
		StopTime:       cfg.Director.StopTime,
		ErrorTolerance: cfg.Director.ErrorTolerance,
		MaxStepSize:    cfg.Director.MaxStepSize,
		FinalTime:      result.FinalTime,
		Steps:          result.StepsTaken,
		Rejections:     result.Rejections,
		Interrupted:    result.Interrupted,
		Metrics:        result.Metrics,
	}
	if math.IsInf(meta.StopTime, 1) {
		meta.StopTime, meta.Unbounded = 0, true
	}
	for _, tr := range result.Traces {
		meta.Signals = append(meta.Signals, tr.Name)
	}

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, err
	}
	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return nil, err
	}
	if err := writeTraces(filepath.Join(runDir, "traces.csv"), result.Traces); err != nil {
		return nil, err
	}
	if err := config.Save(filepath.Join(runDir, "model.yaml"), cfg); err != nil {
		return nil, err
	}
	return meta, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeTraces writes one row per sample. Traces of one run are sampled at
// different times, so rows are keyed by signal.
func writeTraces(path string, traces []*dynamo.Trace) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"signal", "time", "value"}); err != nil {
		return err
	}
	for _, tr := range traces {
		for i := range tr.Times {
			row := []string{
				tr.Name,
				strconv.FormatFloat(tr.Times[i], 'g', -1, 64),
				strconv.FormatFloat(tr.Values[i], 'g', -1, 64),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

// List returns every stored run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) runDir(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: %q is not a run id", ErrNotFound, id)
	}
	return filepath.Join(s.baseDir, id), nil
}

func (s *Store) Load(id string) (*RunMetadata, error) {
	dir, err := s.runDir(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	if meta.Unbounded {
		meta.StopTime = math.Inf(1)
	}
	return &meta, nil
}

// LoadConfig returns the model a run was built from.
func (s *Store) LoadConfig(id string) (*config.Config, error) {
	dir, err := s.runDir(id)
	if err != nil {
		return nil, err
	}
	return config.Load(filepath.Join(dir, "model.yaml"))
}

// LoadTraces returns the traces of a run in the order they were saved.
func (s *Store) LoadTraces(id string) ([]*dynamo.Trace, error) {
	dir, err := s.runDir(id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(dir, "traces.csv"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}

	var traces []*dynamo.Trace
	byName := make(map[string]*dynamo.Trace)
	for i, rec := range records {
		if i == 0 || len(rec) != 3 {
			continue
		}
		t, err1 := strconv.ParseFloat(rec[1], 64)
		v, err2 := strconv.ParseFloat(rec[2], 64)
		if err := errors.Join(err1, err2); err != nil {
			return nil, fmt.Errorf("run %s: row %d: %w", id, i, err)
		}
		tr, ok := byName[rec[0]]
		if !ok {
			tr = &dynamo.Trace{Name: rec[0]}
			byName[rec[0]] = tr
			traces = append(traces, tr)
		}
		tr.Append(t, v)
	}
	return traces, nil
}

// Delete removes a stored run.
func (s *Store) Delete(id string) error {
	dir, err := s.runDir(id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return os.RemoveAll(dir)
}
