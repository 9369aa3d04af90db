package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/integrators"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, "decay", cfg.Name)
	assert.NoError(t, cfg.Validate())
}

func TestPresetsAreValid(t *testing.T) {
	for _, name := range ListPresets() {
		t.Run(name, func(t *testing.T) {
			cfg := GetPreset(name)
			require.NotNil(t, cfg)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestGetPreset_ReturnsCopy(t *testing.T) {
	a := GetPreset("bouncing_ball")
	a.Blocks[0].Params["value"] = 1
	a.Record[0] = "changed"

	b := GetPreset("bouncing_ball")
	assert.Equal(t, -9.81, b.Blocks[0].Params["value"])
	assert.Equal(t, "h", b.Record[0])
}

func TestGetPreset_NotFound(t *testing.T) {
	assert.Nil(t, GetPreset("nonexistent"))
}

func TestListPresets_Sorted(t *testing.T) {
	names := ListPresets()
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "bouncing_ball")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	data := `
name: open_ended
director:
  stop_time: .inf
  solver: dormand_prince
blocks:
  - name: src
    type: const
    output: c
    params: {value: 2}
record: [c]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	p, err := cfg.Director.Parameters()
	require.NoError(t, err)
	assert.True(t, math.IsInf(p.StopTime, 1))
	assert.Equal(t, integrators.KindRK45, p.Solver)
	assert.Equal(t, DefaultMaxIterations, p.MaxIterations, "unset fields keep their defaults")
	assert.Equal(t, 2.0, cfg.Blocks[0].Param("value", 0))
	assert.Equal(t, 7.0, cfg.Blocks[0].Param("missing", 7))
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ball.yaml")
	want := GetPreset("bouncing_ball")
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("blocks: {not: [a list"), 0644))

	_, err := Load(path)
	assert.ErrorIs(t, err, dynamo.ErrConfig)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown solver", func(c *Config) { c.Director.Solver = "leapfrog" }},
		{"negative tolerance", func(c *Config) { c.Director.ErrorTolerance = -1 }},
		{"zero max iterations", func(c *Config) { c.Director.MaxIterations = 0 }},
		{"rk45 needs more iterations", func(c *Config) { c.Director.MaxIterations = 3 }},
		{"stop before start", func(c *Config) { c.Director.StartTime = 10; c.Director.StopTime = 1 }},
		{"no blocks", func(c *Config) { c.Blocks = nil }},
		{"duplicate block", func(c *Config) { c.Blocks[1].Name = c.Blocks[0].Name }},
		{"two writers", func(c *Config) { c.Blocks[1].Output = "x" }},
		{"dangling input", func(c *Config) { c.Blocks[0].Inputs = []string{"nowhere"} }},
		{"unrecorded metric", func(c *Config) { c.Metrics = []MetricConfig{{Type: "effort", Signals: []string{"dx"}}} }},
		{"NaN parameter", func(c *Config) { c.Blocks[1].Params["k"] = math.NaN() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), dynamo.ErrConfig)
		})
	}
}
