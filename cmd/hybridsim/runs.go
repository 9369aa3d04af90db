package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/hybridsim/internal/actors"
	"github.com/san-kum/hybridsim/internal/config"
	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/experiment"
	"github.com/san-kum/hybridsim/internal/export"
	"github.com/san-kum/hybridsim/internal/integrators"
	"github.com/san-kum/hybridsim/internal/store"
	"github.com/san-kum/hybridsim/internal/viz"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			runs, err := st.List()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMODEL\tTIME\tSOLVER\tSTOP\tFINAL\tSTEPS\tREJ")
			for _, run := range runs {
				stop := strconv.FormatFloat(run.StopTime, 'g', 6, 64)
				if run.Unbounded {
					stop = "inf"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.6g\t%d\t%d\n",
					run.ID,
					run.Model,
					run.Timestamp.Local().Format("2006-01-02 15:04:05"),
					run.Solver,
					stop,
					run.FinalTime,
					run.Steps,
					run.Rejections,
				)
			}
			return w.Flush()
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var f store.Filter
	var since time.Duration
	cmd := &cobra.Command{
		Use:   "history",
		Short: "query the run index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			idx, err := openIndex()
			if err != nil {
				return err
			}
			defer idx.Close()

			if _, err := idx.Sync(st); err != nil {
				return err
			}
			if since > 0 {
				f.Since = time.Now().Add(-since)
			}
			runs, err := idx.List(f)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMODEL\tSOLVER\tCREATED\tSTEPS\tREJ\tREJ RATE\tSTATUS")
			for _, r := range runs {
				status := "done"
				if r.Interrupted {
					status = "interrupted"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%.3f\t%s\n",
					r.ID, r.Model, r.Solver,
					r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					r.Steps, r.Rejections, r.Metrics["rejection_rate"], status)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&f.Model, "model", "", "only runs of this model")
	cmd.Flags().StringVar(&f.Solver, "solver", "", "only runs with this solver")
	cmd.Flags().DurationVar(&since, "since", 0, "only runs newer than this (e.g. 24h)")
	cmd.Flags().IntVar(&f.Limit, "limit", 20, "maximum rows (0: all)")
	return cmd
}

// loadRun reads a stored run back into a result.
func loadRun(id string) (*dynamo.Result, string, error) {
	st, err := openStore()
	if err != nil {
		return nil, "", err
	}
	meta, err := st.Load(id)
	if err != nil {
		return nil, "", err
	}
	traces, err := st.LoadTraces(id)
	if err != nil {
		return nil, "", err
	}
	return &dynamo.Result{
		Traces:      traces,
		Metrics:     meta.Metrics,
		StepsTaken:  meta.Steps,
		Rejections:  meta.Rejections,
		FinalTime:   meta.FinalTime,
		Interrupted: meta.Interrupted,
	}, meta.Model, nil
}

func newShowCmd() *cobra.Command {
	var theme string
	cmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "summarize a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, model, err := loadRun(args[0])
			if err != nil {
				return err
			}
			fmt.Println(viz.GetTheme(theme).Summary(model, result))
			return nil
		},
	}
	cmd.Flags().StringVar(&theme, "theme", "cyberpunk", "color theme")
	return cmd
}

func newPlotCmd() *cobra.Command {
	var signals []string
	cmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, model, err := loadRun(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("run: %s\nmodel: %s\n\n", args[0], model)
			printPlots(result.Traces, signals)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&signals, "signal", nil, "signals to plot (default: all)")
	return cmd
}

func newExportCSVCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "write the traces of a stored run as CSV to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, _, err := loadRun(args[0])
			if err != nil {
				return err
			}
			w := csv.NewWriter(os.Stdout)
			if err := w.Write([]string{"signal", "time", "value"}); err != nil {
				return err
			}
			for _, tr := range result.Traces {
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
		},
	}
}

func newExportJSONCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "write a stored run as JSON to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			result, _, err := loadRun(args[0])
			if err != nil {
				return err
			}
			return store.ExportJSON(os.Stdout, meta, result)
		},
	}
}

func newExportPlotCmd() *cobra.Command {
	var (
		out    string
		title  string
		opts   = export.DefaultOptions()
		width  float64
		height float64
	)
	cmd := &cobra.Command{
		Use:   "export-plot [run_id]",
		Short: "render a stored run to an image (png, svg, pdf)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, model, err := loadRun(args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = args[0] + ".png"
			}
			opts.Title = title
			if opts.Title == "" {
				opts.Title = model
			}
			if width > 0 {
				opts.Width = vg.Length(width) * vg.Inch
			}
			if height > 0 {
				opts.Height = vg.Length(height) * vg.Inch
			}
			if err := export.Save(out, result.Traces, opts); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file; the extension selects the format")
	cmd.Flags().StringVar(&title, "title", "", "plot title (default: model name)")
	cmd.Flags().StringSliceVar(&opts.Signals, "signal", nil, "signals to plot (default: all)")
	cmd.Flags().StringSliceVar(&opts.Events, "events", nil, "signals drawn as event markers")
	cmd.Flags().Float64Var(&width, "width", 0, "width in inches")
	cmd.Flags().Float64Var(&height, "height", 0, "height in inches")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [run_id]",
		Short: "delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			if err := st.Delete(args[0]); err != nil {
				return err
			}
			idx, err := openIndex()
			if err != nil {
				return err
			}
			defer idx.Close()
			return idx.Delete(args[0])
		},
	}
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets [name]",
		Short: "list presets, or print one as a model file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				for _, name := range config.ListPresets() {
					cfg := config.GetPreset(name)
					fmt.Printf("  %-16s %-12s %d blocks, stop %g\n",
						name, cfg.Director.Solver, len(cfg.Blocks), cfg.Director.StopTime)
				}
				return nil
			}
			cfg := config.GetPreset(args[0])
			if cfg == nil {
				return fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
}

func newSolversCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "solvers",
		Short: "list ODE solvers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tROUNDS\tHISTORY")
			for _, name := range integrators.Names() {
				k, err := integrators.ParseKind(name)
				if err != nil {
					return err
				}
				s, err := integrators.New(k)
				if err != nil {
					return err
				}
				rounds := strconv.Itoa(s.Rounds())
				if s.Rounds() == 0 {
					rounds = "iterative"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\n", name, rounds, s.HistoryCapacity())
			}
			return w.Flush()
		},
	}
}

func newBlocksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "blocks",
		Short: "list block and metric types usable in model files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := experiment.NewRegistry()
			fmt.Println("blocks:  " + strings.Join(reg.ListBlocks(), ", "))
			fmt.Println("metrics: " + strings.Join(reg.ListMetrics(), ", "))
			ops := actors.FunctionOps()
			sort.Strings(ops)
			fmt.Println("function ops: " + strings.Join(ops, ", "))
			return nil
		},
	}
}
