// Package config reads and writes model files: the director parameters, the
// blocks of a model and how they are wired, and what to record.
package config

import (
	"fmt"
	"math"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/hybridsim/internal/continuous"
	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/integrators"
)

const (
	DefaultStopTime       = 10.0
	DefaultInitStepSize   = 0.01
	DefaultMaxStepSize    = 0.1
	DefaultMaxIterations  = 20
	DefaultErrorTolerance = 1e-4
	DefaultSolver         = "rk45"
)

type Config struct {
	Name     string         `yaml:"name"`
	Director DirectorConfig `yaml:"director"`
	Blocks   []BlockConfig  `yaml:"blocks"`
	// Record lists the signals captured into the run result.
	Record  []string       `yaml:"record"`
	Metrics []MetricConfig `yaml:"metrics,omitempty"`
}

type DirectorConfig struct {
	StartTime             float64 `yaml:"start_time"`
	StopTime              float64 `yaml:"stop_time"`
	InitStepSize          float64 `yaml:"init_step_size"`
	MaxStepSize           float64 `yaml:"max_step_size"`
	MaxIterations         int     `yaml:"max_iterations"`
	ErrorTolerance        float64 `yaml:"error_tolerance"`
	TimeResolution        float64 `yaml:"time_resolution"`
	Solver                string  `yaml:"solver"`
	SynchronizeToRealTime bool    `yaml:"synchronize_to_real_time"`
	// FixedPointIterations caps the sweeps of one signal resolution; zero
	// uses the resolver default.
	FixedPointIterations int `yaml:"fixed_point_iterations,omitempty"`
}

// BlockConfig is one block of a model. Inputs and Output name signals;
// blocks sharing a signal name are connected.
type BlockConfig struct {
	Name   string             `yaml:"name"`
	Type   string             `yaml:"type"`
	Inputs []string           `yaml:"inputs,omitempty"`
	Output string             `yaml:"output,omitempty"`
	Op     string             `yaml:"op,omitempty"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

// Param returns the named parameter or def when it is not set.
func (b BlockConfig) Param(name string, def float64) float64 {
	if v, ok := b.Params[name]; ok {
		return v
	}
	return def
}

// MetricConfig names a trace metric evaluated after the run over the
// given recorded signals.
type MetricConfig struct {
	Type    string             `yaml:"type"`
	Signals []string           `yaml:"signals"`
	Params  map[string]float64 `yaml:"params,omitempty"`
}

func DefaultDirector() DirectorConfig {
	return DirectorConfig{
		StopTime:       DefaultStopTime,
		InitStepSize:   DefaultInitStepSize,
		MaxStepSize:    DefaultMaxStepSize,
		MaxIterations:  DefaultMaxIterations,
		ErrorTolerance: DefaultErrorTolerance,
		TimeResolution: dynamo.DefaultResolution,
		Solver:         DefaultSolver,
	}
}

// DefaultConfig returns the exponential decay model.
func DefaultConfig() *Config {
	return GetPreset("decay")
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{Director: DefaultDirector()}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", dynamo.ErrConfig, path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Parameters converts the director section.
func (d DirectorConfig) Parameters() (continuous.Parameters, error) {
	kind, err := integrators.ParseKind(d.Solver)
	if err != nil {
		return continuous.Parameters{}, fmt.Errorf("%w: %w", dynamo.ErrConfig, err)
	}
	p := continuous.Parameters{
		StartTime:             d.StartTime,
		StopTime:              d.StopTime,
		InitStepSize:          d.InitStepSize,
		MaxStepSize:           d.MaxStepSize,
		MaxIterations:         d.MaxIterations,
		ErrorTolerance:        d.ErrorTolerance,
		TimeResolution:        d.TimeResolution,
		Solver:                kind,
		SynchronizeToRealTime: d.SynchronizeToRealTime,
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	solver, err := integrators.New(kind)
	if err != nil {
		return p, fmt.Errorf("%w: %w", dynamo.ErrConfig, err)
	}
	if n := solver.Rounds(); n > p.MaxIterations {
		return p, fmt.Errorf("%w: solver %s needs %d rounds per step, max_iterations is %d",
			dynamo.ErrConfig, solver.Name(), n, p.MaxIterations)
	}
	return p, nil
}

// Validate checks the director parameters and the wiring. Block types are
// checked when the model is built.
func (c *Config) Validate() error {
	if _, err := c.Director.Parameters(); err != nil {
		return err
	}
	if c.Director.FixedPointIterations < 0 {
		return fmt.Errorf("%w: fixed_point_iterations must not be negative", dynamo.ErrConfig)
	}
	if len(c.Blocks) == 0 {
		return fmt.Errorf("%w: model has no blocks", dynamo.ErrConfig)
	}

	names := make(map[string]bool, len(c.Blocks))
	writers := make(map[string]string)
	for i, b := range c.Blocks {
		switch {
		case b.Name == "":
			return fmt.Errorf("%w: block %d has no name", dynamo.ErrConfig, i)
		case b.Type == "":
			return fmt.Errorf("%w: block %s has no type", dynamo.ErrConfig, b.Name)
		case names[b.Name]:
			return fmt.Errorf("%w: duplicate block name %s", dynamo.ErrConfig, b.Name)
		}
		names[b.Name] = true
		for k, v := range b.Params {
			if math.IsNaN(v) {
				return fmt.Errorf("%w: block %s: parameter %s is NaN", dynamo.ErrConfig, b.Name, k)
			}
		}
		if b.Output == "" {
			continue
		}
		if w, ok := writers[b.Output]; ok {
			return fmt.Errorf("%w: signal %s is written by both %s and %s", dynamo.ErrConfig, b.Output, w, b.Name)
		}
		writers[b.Output] = b.Name
	}

	for _, b := range c.Blocks {
		for _, in := range b.Inputs {
			if _, ok := writers[in]; !ok {
				return fmt.Errorf("%w: block %s reads %s, which no block writes", dynamo.ErrConfig, b.Name, in)
			}
		}
	}
	for _, s := range c.Record {
		if _, ok := writers[s]; !ok {
			return fmt.Errorf("%w: recorded signal %s is not written by any block", dynamo.ErrConfig, s)
		}
	}
	for _, m := range c.Metrics {
		for _, s := range m.Signals {
			if !slices.Contains(c.Record, s) {
				return fmt.Errorf("%w: metric %s needs signal %s to be recorded", dynamo.ErrConfig, m.Type, s)
			}
		}
	}
	return nil
}

// Signals lists every signal a block writes, in block order.
func (c *Config) Signals() []string {
	var out []string
	for _, b := range c.Blocks {
		if b.Output != "" && !slices.Contains(out, b.Output) {
			out = append(out, b.Output)
		}
	}
	return out
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Blocks = make([]BlockConfig, len(c.Blocks))
	for i, b := range c.Blocks {
		b.Inputs = slices.Clone(b.Inputs)
		if b.Params != nil {
			params := make(map[string]float64, len(b.Params))
			for k, v := range b.Params {
				params[k] = v
			}
			b.Params = params
		}
		cp.Blocks[i] = b
	}
	cp.Record = slices.Clone(c.Record)
	if c.Metrics != nil {
		cp.Metrics = make([]MetricConfig, len(c.Metrics))
		for i, m := range c.Metrics {
			m.Signals = slices.Clone(m.Signals)
			cp.Metrics[i] = m
		}
	}
	return &cp
}
