package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-kit/log/level"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/hybridsim/internal/config"
	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/experiment"
	"github.com/san-kum/hybridsim/internal/fixedpoint"
	"github.com/san-kum/hybridsim/internal/sim"
	"github.com/san-kum/hybridsim/internal/viz"
)

// modelFlags are shared by every command that builds a model.
type modelFlags struct {
	configFile string
	solver     string
	stop       float64
	initStep   float64
	maxStep    float64
	tolerance  float64
	realtime   bool
	maxSteps   int
}

func (f *modelFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.configFile, "config", "", "model file (yaml); overrides the preset argument")
	fl.StringVar(&f.solver, "solver", "", "ODE solver (see 'solvers')")
	fl.Float64Var(&f.stop, "stop", 0, "stop time")
	fl.Float64Var(&f.initStep, "init-step", 0, "initial step size")
	fl.Float64Var(&f.maxStep, "max-step", 0, "maximum step size")
	fl.Float64Var(&f.tolerance, "tolerance", 0, "error tolerance")
	fl.BoolVar(&f.realtime, "realtime", false, "pace model time against the wall clock")
	fl.IntVar(&f.maxSteps, "max-steps", 0, "stop after this many accepted steps (0: no limit)")
}

// load resolves the model: --config file, else the named preset, else the
// default. Flags the user set override file values.
func (f *modelFlags) load(cmd *cobra.Command, args []string) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case f.configFile != "":
		c, err := config.Load(f.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
	case len(args) > 0:
		cfg = config.GetPreset(args[0])
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
		}
	default:
		cfg = config.DefaultConfig()
	}

	fl := cmd.Flags()
	d := &cfg.Director
	if fl.Changed("solver") {
		d.Solver = f.solver
	}
	if fl.Changed("stop") {
		d.StopTime = f.stop
	}
	if fl.Changed("init-step") {
		d.InitStepSize = f.initStep
	}
	if fl.Changed("max-step") {
		d.MaxStepSize = f.maxStep
	}
	if fl.Changed("tolerance") {
		d.ErrorTolerance = f.tolerance
	}
	if fl.Changed("realtime") {
		d.SynchronizeToRealTime = f.realtime
	}
	return cfg, cfg.Validate()
}

func (f *modelFlags) build(cfg *config.Config) (*experiment.Model, error) {
	return experiment.Build(experiment.NewRegistry(), cfg, fixedpoint.WithLogger(logger))
}

func (f *modelFlags) simOptions() []sim.Option {
	return []sim.Option{sim.WithLogger(logger), sim.WithMaxSteps(f.maxSteps)}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func newRunCmd() *cobra.Command {
	var (
		mf     modelFlags
		noSave bool
		plot   bool
		theme  string
	)
	cmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a model and store the result",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := mf.load(cmd, args)
			if err != nil {
				return err
			}
			m, err := mf.build(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			fmt.Printf("running %s (%s)...\n", cfg.Name, cfg.Director.Solver)
			start := time.Now()
			result, err := sim.New(m, mf.simOptions()...).Run(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("completed in %v\n\n", time.Since(start).Round(time.Millisecond))
			fmt.Println(viz.GetTheme(theme).Summary(cfg.Name, result))

			if plot {
				printPlots(result.Traces, nil)
			}
			if noSave {
				return nil
			}
			return saveRun(cfg, result)
		},
	}
	mf.register(cmd)
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	cmd.Flags().BoolVar(&plot, "plot", false, "print terminal plots of the traces")
	cmd.Flags().StringVar(&theme, "theme", "cyberpunk", "color theme ("+strings.Join(viz.ThemeNames(), ", ")+")")
	return cmd
}

func newLiveCmd() *cobra.Command {
	var (
		mf     modelFlags
		noSave bool
		theme  string
	)
	cmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "run a model in the interactive terminal view",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := mf.load(cmd, args)
			if err != nil {
				return err
			}
			m, err := mf.build(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			result, err := viz.Run(ctx, m, viz.GetTheme(theme), mf.simOptions()...)
			if err != nil {
				return err
			}
			if noSave || result == nil {
				return nil
			}
			return saveRun(cfg, result)
		},
	}
	mf.register(cmd)
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	cmd.Flags().StringVar(&theme, "theme", "cyberpunk", "color theme ("+strings.Join(viz.ThemeNames(), ", ")+")")
	return cmd
}

func newSweepCmd() *cobra.Command {
	var (
		mf      modelFlags
		block   string
		param   string
		values  []float64
		workers int
		metric  string
	)
	cmd := &cobra.Command{
		Use:   "sweep [preset]",
		Short: "run a model once per value of a block parameter",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := mf.load(cmd, args)
			if err != nil {
				return err
			}
			if len(values) == 0 {
				return fmt.Errorf("%w: sweep needs --values", dynamo.ErrConfig)
			}

			ctx, cancel := signalContext()
			defer cancel()

			sw := sim.Sweep{Base: cfg, Block: block, Param: param, Values: values, Workers: workers}
			start := time.Now()
			results, err := sw.Run(ctx, experiment.NewRegistry(), mf.simOptions()...)
			if err != nil {
				return err
			}
			level.Info(logger).Log("msg", "sweep finished", "runs", len(results), "elapsed", time.Since(start))

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			header := fmt.Sprintf("%s.%s\tFINAL TIME\tSTEPS\tREJECTIONS", block, param)
			if metric != "" {
				header += "\t" + strings.ToUpper(metric)
			}
			fmt.Fprintln(w, header)
			for i, r := range results {
				line := fmt.Sprintf("%g\t%.6g\t%d\t%d", values[i], r.FinalTime, r.StepsTaken, r.Rejections)
				if metric != "" {
					v, ok := r.Metrics[metric]
					if !ok {
						v = math.NaN()
					}
					line += fmt.Sprintf("\t%.6g", v)
				}
				fmt.Fprintln(w, line)
			}
			return w.Flush()
		},
	}
	mf.register(cmd)
	cmd.Flags().StringVar(&block, "block", "", "block to vary")
	cmd.Flags().StringVar(&param, "param", "", "parameter of the block")
	cmd.Flags().Float64SliceVar(&values, "values", nil, "parameter values, comma separated")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (0: GOMAXPROCS)")
	cmd.Flags().StringVar(&metric, "metric", "", "metric column to print")
	cmd.MarkFlagRequired("block")
	cmd.MarkFlagRequired("param")
	return cmd
}

func saveRun(cfg *config.Config, result *dynamo.Result) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	meta, err := st.Save(cfg, result)
	if err != nil {
		return err
	}

	idx, err := openIndex()
	if err != nil {
		return err
	}
	defer idx.Close()
	if err := idx.Record(meta); err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", meta.ID)
	return nil
}

// printPlots draws one asciigraph chart per trace, limited to names when
// given.
func printPlots(traces []*dynamo.Trace, names []string) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	for _, tr := range traces {
		if len(names) > 0 && !want[tr.Name] {
			continue
		}
		if tr.Len() < 2 {
			fmt.Printf("%s: %d sample(s)\n\n", tr.Name, tr.Len())
			continue
		}
		chart := asciigraph.Plot(tr.Values,
			asciigraph.Height(10),
			asciigraph.Width(70),
			asciigraph.Caption(fmt.Sprintf("%s vs time", tr.Name)))
		fmt.Println(chart)
		fmt.Println()
	}
}
