package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/hybridsim/internal/config"
	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/experiment"
)

func build(t *testing.T, cfg *config.Config) *experiment.Model {
	t.Helper()
	m, err := experiment.Build(experiment.NewRegistry(), cfg)
	if err != nil {
		t.Fatalf("build %s: %v", cfg.Name, err)
	}
	return m
}

type countingObserver struct {
	steps int
	last  map[string]float64
}

func (c *countingObserver) OnStep(t float64, values map[string]float64) {
	c.steps++
	c.last = make(map[string]float64, len(values))
	for k, v := range values {
		c.last[k] = v
	}
}

func TestSimulatorRun(t *testing.T) {
	obs := &countingObserver{}
	result, err := New(build(t, config.GetPreset("decay")), WithObserver(obs)).Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.FinalTime != 5 {
		t.Errorf("final time = %v, want 5", result.FinalTime)
	}
	if result.Interrupted {
		t.Error("run should not be interrupted")
	}

	x := result.Trace("x")
	if x == nil || x.Len() == 0 {
		t.Fatal("expected a recorded trace for x")
	}
	_, final, _ := x.Last()
	if math.Abs(final-math.Exp(-5)) > 1e-3 {
		t.Errorf("x(5) = %.6f, want ~%.6f", final, math.Exp(-5))
	}

	if result.StepsTaken == 0 || result.StepsTaken != int(result.Metrics["steps"]) {
		t.Errorf("steps taken = %d, metrics say %v", result.StepsTaken, result.Metrics["steps"])
	}
	if obs.steps != result.StepsTaken {
		t.Errorf("observer saw %d steps, want %d", obs.steps, result.StepsTaken)
	}
	if obs.last["x"] != final {
		t.Errorf("observer last x = %v, want %v", obs.last["x"], final)
	}
}

func TestSimulatorRun_BouncingBall(t *testing.T) {
	result, err := New(build(t, config.GetPreset("bouncing_ball"))).Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if n := result.Trace("bounce").Len(); n < 2 {
		t.Errorf("recorded %d bounces, want at least 2 in 8s", n)
	}
	if result.Metrics["zero_width_steps"] < 4 {
		t.Errorf("zero_width_steps = %v, each bounce takes two", result.Metrics["zero_width_steps"])
	}
	if result.Rejections == 0 {
		t.Error("locating the impacts should reject some steps")
	}
	energy, ok := result.Metrics["energy"]
	if !ok {
		t.Fatal("energy metric missing")
	}
	if initial := 9.81 * 10; energy >= initial {
		t.Errorf("energy %v should have dropped below %v", energy, initial)
	}
}

func TestSimulatorRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := New(build(t, config.GetPreset("decay"))).Run(ctx)
	if err != nil {
		t.Fatalf("cancellation should not be an error, got %v", err)
	}
	if !result.Interrupted {
		t.Error("expected an interrupted result")
	}
}

func TestSimulatorRunWithCallback_Stop(t *testing.T) {
	calls := 0
	result, err := New(build(t, config.GetPreset("decay"))).RunWithCallback(context.Background(),
		func(t float64, values map[string]float64) bool {
			calls++
			return calls < 3
		})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Interrupted || result.StepsTaken != 3 {
		t.Errorf("interrupted=%v steps=%d, want true and 3", result.Interrupted, result.StepsTaken)
	}
}

func TestSimulatorRun_MaxSteps(t *testing.T) {
	cfg := config.GetPreset("sampled_sine")
	cfg.Director.StopTime = math.Inf(1)

	result, err := New(build(t, cfg), WithMaxSteps(50)).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !result.Interrupted || result.StepsTaken != 50 {
		t.Errorf("interrupted=%v steps=%d, want true and 50", result.Interrupted, result.StepsTaken)
	}
}

func TestSimulatorRun_InvalidState(t *testing.T) {
	cfg := &config.Config{
		Name:     "nan",
		Director: config.DefaultDirector(),
		Blocks: []config.BlockConfig{
			{Name: "c", Type: "const", Output: "c", Params: map[string]float64{"value": -1}},
			{Name: "root", Type: "function", Op: "sqrt", Inputs: []string{"c"}, Output: "root"},
		},
		Record: []string{"root"},
	}

	_, err := New(build(t, cfg)).Run(context.Background())
	if !errors.Is(err, dynamo.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
	var simErr *dynamo.SimulationError
	if !errors.As(err, &simErr) || simErr.Actor != "root" {
		t.Errorf("expected a SimulationError naming signal root, got %v", err)
	}

	if _, err := New(build(t, cfg), WithValidation(false)).Run(context.Background()); err != nil {
		t.Errorf("without validation the run should finish, got %v", err)
	}
}

func TestSimulatorRun_PIDControl(t *testing.T) {
	result, err := New(build(t, config.GetPreset("pid_control"))).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	_, x, ok := result.Trace("x").Last()
	if !ok || math.Abs(x-1) > 0.05 {
		t.Errorf("x(10) = %v, want close to the setpoint 1", x)
	}
	if result.Metrics["stability_x"] != 1 {
		t.Errorf("stability_x = %v, the loop should not overshoot past 1.2", result.Metrics["stability_x"])
	}
}

func TestSimulatorRun_SineFrequency(t *testing.T) {
	result, err := New(build(t, config.GetPreset("sampled_sine"))).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if f := result.Metrics["frequency_y"]; math.Abs(f-0.5) > 0.1 {
		t.Errorf("frequency_y = %v, want 0.5", f)
	}
}
