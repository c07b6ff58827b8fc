// Package main provides the dfagent CLI.
//
// Usage:
//
//	dfagent clean sales.csv "fill missing prices with the median" -o clean.csv
//	dfagent transform sales.csv "one-hot encode category"
//	dfagent visualize sales.csv "bar chart of price by category" --out dash.html
//	dfagent run sales.csv pipeline.dfl       # execute DFL without a model
//	dfagent repl sales.csv
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/akhildatla/dfagent/internal/config"
	"github.com/akhildatla/dfagent/internal/logging"
	"github.com/akhildatla/dfagent/pkg/llm"
)

// Version info set by GoReleaser via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// app holds the state shared by all subcommands.
type app struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger

	// newClient builds the text-generation client; replaced in tests.
	newClient func(ctx context.Context, cfg llm.Config) (llm.Client, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{newClient: llm.NewClient}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "dfagent",
		Short: "dfagent - natural-language dataframe cleaning, transformation and charts",
		Long: `dfagent turns natural-language instructions into small DFL programs and runs
them against a dataframe inside a guarded executor. A failing program never
corrupts the data: the original frame is returned unchanged.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath(), "path to the YAML config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newTabularCmd(a, "clean"),
		newTabularCmd(a, "transform"),
		newVisualizeCmd(a),
		newRunCmd(a),
		newReplCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Verbose:     a.verbose,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dfagent version %s\n", version)
			if commit != "none" {
				fmt.Fprintf(out, "  commit: %s\n", commit)
			}
			if date != "unknown" {
				fmt.Fprintf(out, "  built:  %s\n", date)
			}
		},
	}
}
