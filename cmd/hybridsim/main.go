package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"github.com/san-kum/hybridsim/internal/storage"
	"github.com/san-kum/hybridsim/internal/store"
)

var (
	dataDir  string
	logLevel string
	logger   log.Logger = log.NewNopLogger()
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "hybridsim",
		Short:         "adaptive step-size hybrid system simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(logLevel)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".hybridsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error, none)")

	rootCmd.AddCommand(
		newRunCmd(),
		newLiveCmd(),
		newSweepCmd(),
		newListCmd(),
		newHistoryCmd(),
		newShowCmd(),
		newPlotCmd(),
		newExportCSVCmd(),
		newExportJSONCmd(),
		newExportPlotCmd(),
		newDeleteCmd(),
		newPresetsCmd(),
		newSolversCmd(),
		newBlocksCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		level.Error(logger).Log("err", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newLogger builds a logfmt logger on stderr filtered at lvl.
func newLogger(lvl string) (log.Logger, error) {
	var opt level.Option
	switch lvl {
	case "debug":
		opt = level.AllowDebug()
	case "info":
		opt = level.AllowInfo()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	case "none":
		opt = level.AllowNone()
	default:
		return nil, fmt.Errorf("unknown log level %q", lvl)
	}
	l := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	l = log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	return level.NewFilter(l, opt), nil
}

func openStore() (*storage.Store, error) {
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return nil, err
	}
	return st, nil
}

func openIndex() (*store.Index, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	return store.Open(filepath.Join(dataDir, "index.db"))
}
