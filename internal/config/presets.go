package config

import "sort"

var Presets = map[string]*Config{
	"decay": {
		Name:     "decay",
		Director: director(5, "rk45"),
		Blocks: []BlockConfig{
			{Name: "x", Type: "integrator", Inputs: []string{"dx"}, Output: "x", Params: map[string]float64{"initial": 1}},
			{Name: "rate", Type: "gain", Inputs: []string{"x"}, Output: "dx", Params: map[string]float64{"k": -1}},
		},
		Record: []string{"x"},
	},
	"bouncing_ball": {
		Name:     "bouncing_ball",
		Director: director(8, "rk45"),
		Blocks: []BlockConfig{
			{Name: "gravity", Type: "const", Output: "g", Params: map[string]float64{"value": -9.81}},
			{Name: "velocity", Type: "integrator", Inputs: []string{"g", "bounce", "rebound"}, Output: "v"},
			{Name: "position", Type: "integrator", Inputs: []string{"v"}, Output: "h", Params: map[string]float64{"initial": 10}},
			{Name: "restitution", Type: "gain", Inputs: []string{"v"}, Output: "rebound", Params: map[string]float64{"k": -0.8}},
			{Name: "ground", Type: "level_crossing", Inputs: []string{"h"}, Output: "bounce", Op: "falling"},
		},
		Record:  []string{"h", "v", "bounce"},
		Metrics: []MetricConfig{{Type: "energy", Signals: []string{"h", "v"}, Params: map[string]float64{"gravity": 9.81}}},
	},
	"sampled_sine": {
		Name:     "sampled_sine",
		Director: director(4, "rk23"),
		Blocks: []BlockConfig{
			{Name: "source", Type: "sine", Output: "y", Params: map[string]float64{"amplitude": 1, "frequency": 0.5}},
			{Name: "sampler", Type: "sampler", Inputs: []string{"y"}, Output: "sample", Params: map[string]float64{"period": 0.25}},
		},
		Record: []string{"y", "sample"},
		Metrics: []MetricConfig{
			{Type: "effort", Signals: []string{"y"}},
			{Type: "frequency", Signals: []string{"y"}},
		},
	},
	"van_der_pol": {
		Name:     "van_der_pol",
		Director: director(20, "rk45"),
		Blocks: []BlockConfig{
			{Name: "x", Type: "integrator", Inputs: []string{"y"}, Output: "x", Params: map[string]float64{"initial": 2}},
			{Name: "y", Type: "integrator", Inputs: []string{"dy"}, Output: "y"},
			{Name: "one", Type: "const", Output: "one", Params: map[string]float64{"value": 1}},
			{Name: "x2", Type: "function", Op: "square", Inputs: []string{"x"}, Output: "x2"},
			{Name: "damping", Type: "function", Op: "sub", Inputs: []string{"one", "x2"}, Output: "damping"},
			{Name: "coupling", Type: "product", Inputs: []string{"damping", "y"}, Output: "coupling"},
			{Name: "mu", Type: "gain", Inputs: []string{"coupling"}, Output: "mu_coupling", Params: map[string]float64{"k": 1}},
			{Name: "spring", Type: "gain", Inputs: []string{"x"}, Output: "restoring", Params: map[string]float64{"k": -1}},
			{Name: "dy", Type: "sum", Inputs: []string{"mu_coupling", "restoring"}, Output: "dy"},
		},
		Record:  []string{"x", "y"},
		Metrics: []MetricConfig{{Type: "stability", Signals: []string{"x"}, Params: map[string]float64{"threshold": 2.5}}},
	},
	"pid_control": {
		Name:     "pid_control",
		Director: director(10, "rk45"),
		Blocks: []BlockConfig{
			{Name: "plant", Type: "integrator", Inputs: []string{"u"}, Output: "x"},
			{Name: "sensor", Type: "sampler", Inputs: []string{"x"}, Output: "measured", Params: map[string]float64{"period": 0.1}},
			{Name: "controller", Type: "pid", Inputs: []string{"measured"}, Output: "u", Params: map[string]float64{"kp": 2, "ki": 0.1, "target": 1}},
		},
		Record: []string{"x", "u"},
		Metrics: []MetricConfig{
			{Type: "effort", Signals: []string{"u"}},
			{Type: "stability", Signals: []string{"x"}, Params: map[string]float64{"threshold": 1.2}},
		},
	},
	"stiff_decay": {
		Name:     "stiff_decay",
		Director: director(1, "trapezoidal"),
		Blocks: []BlockConfig{
			{Name: "x", Type: "integrator", Inputs: []string{"dx"}, Output: "x", Params: map[string]float64{"initial": 1}},
			{Name: "rate", Type: "gain", Inputs: []string{"x"}, Output: "dx", Params: map[string]float64{"k": -50}},
		},
		Record: []string{"x"},
	},
}

func director(stop float64, solver string) DirectorConfig {
	d := DefaultDirector()
	d.StopTime = stop
	d.Solver = solver
	return d
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
