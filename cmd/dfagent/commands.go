package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/akhildatla/dfagent/pkg/analyst"
	"github.com/akhildatla/dfagent/pkg/guard"
	"github.com/akhildatla/dfagent/pkg/interp"
	"github.com/akhildatla/dfagent/pkg/loader"
	"github.com/akhildatla/dfagent/pkg/repl"
)

// errRequestFailed is returned when --strict is set and the program failed.
var errRequestFailed = errors.New("request failed; output is the unchanged input")

func newTabularCmd(a *app, intent string) *cobra.Command {
	var (
		output string
		strict bool
	)
	short := "Clean a dataset from a natural-language instruction"
	if intent == "transform" {
		short = "Transform a dataset (encode, scale, bin, derive columns)"
	}

	cmd := &cobra.Command{
		Use:   intent + " <input> <instruction...>",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			df, err := loader.Load(ctx, args[0])
			if err != nil {
				return err
			}
			an, err := a.analyst(ctx)
			if err != nil {
				return err
			}

			instruction := strings.Join(args[1:], " ")
			var (
				result *dataframe.DataFrame
				report analyst.Report
			)
			if intent == "transform" {
				result, report = an.Transform(ctx, df, instruction)
			} else {
				result, report = an.Clean(ctx, df, instruction)
			}

			printReport(cmd.ErrOrStderr(), report)
			if err := writeFrame(ctx, cmd.OutOrStdout(), output, result); err != nil {
				return err
			}
			if strict && !report.OK() {
				return errRequestFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the result to a .csv or .json file instead of stdout")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when the generated program fails")
	return cmd
}

func newVisualizeCmd(a *app) *cobra.Command {
	var (
		output string
		labels []string
	)
	cmd := &cobra.Command{
		Use:     "visualize <input> <instruction> [instruction...]",
		Aliases: []string{"plot"},
		Short:   "Build charts and render them as one HTML dashboard",
		Long: `Each instruction after the input becomes one chart. Charts are built
concurrently and placed on the dashboard in argument order.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			df, err := loader.Load(ctx, args[0])
			if err != nil {
				return err
			}
			an, err := a.analyst(ctx)
			if err != nil {
				return err
			}

			reqs := make([]analyst.ChartRequest, len(args)-1)
			for i, instruction := range args[1:] {
				reqs[i].Instruction = instruction
				if i < len(labels) {
					reqs[i].Label = labels[i]
				}
			}
			results, err := an.VisualizeAll(ctx, df, reqs)
			if err != nil {
				return err
			}
			for _, r := range results {
				printReport(cmd.ErrOrStderr(), r.Report)
			}
			if an.Dashboard().Len() == 0 {
				return errors.New("no chart could be built")
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := an.Dashboard().Render(f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d of %d charts to %s\n", an.Dashboard().Len(), len(reqs), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "out", "o", "dashboard.html", "dashboard HTML file")
	cmd.Flags().StringSliceVarP(&labels, "label", "l", nil, "chart labels, in instruction order")
	return cmd
}

func newRunCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "run <input> <program.dfl>",
		Short: "Execute a DFL program without a model",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			df, err := loader.Load(ctx, args[0])
			if err != nil {
				return err
			}
			code, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("reading program: %w", err)
			}

			outcome := a.runner().Execute(ctx, df, string(code), guard.ModeTabular)
			if !outcome.OK() {
				return fmt.Errorf("program failed: %w", outcome.Err)
			}
			a.logger.Debug("program executed", zap.Stringer("outcome", outcome))
			return writeFrame(ctx, cmd.OutOrStdout(), output, outcome.Frame)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the result to a .csv or .json file instead of stdout")
	return cmd
}

func newReplCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repl [input]",
		Short: "Start the interactive shell",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			an, err := a.analyst(ctx)
			if err != nil {
				return err
			}

			opts := []repl.Option{repl.WithRunner(a.runner())}
			if len(args) == 1 {
				df, err := loader.Load(ctx, args[0])
				if err != nil {
					return err
				}
				opts = append(opts, repl.WithFrame(df))
			}
			return repl.New(an, opts...).Start(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func (a *app) analyst(ctx context.Context) (*analyst.Analyst, error) {
	client, err := a.newClient(ctx, a.cfg.LLMClientConfig())
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", a.cfg.LLM.Provider, err)
	}
	return analyst.New(client,
		analyst.WithLogger(a.logger),
		analyst.WithGuardOptions(a.cfg.GuardOptions()...),
		analyst.WithTranslateOptions(a.cfg.TranslateOptions()...),
		analyst.WithConcurrency(a.cfg.Execution.Concurrency),
	), nil
}

func (a *app) runner() *guard.Executor {
	opts := append(a.cfg.GuardOptions(),
		guard.WithCapabilities(interp.Base|interp.Extended),
		guard.WithLogger(a.logger))
	return guard.New(opts...)
}

func printReport(w io.Writer, r analyst.Report) {
	if r.OK() {
		fmt.Fprintf(w, "[%s] %s ok (%d steps)\n", r.RequestID[:8], r.Intent, r.Steps)
		return
	}
	fmt.Fprintf(w, "[%s] %s failed: %v\n", r.RequestID[:8], r.Intent, r.Err)
	if !r.Code.IsFailure() {
		fmt.Fprintf(w, "%s\n", r.Code)
	}
}

func writeFrame(ctx context.Context, stdout io.Writer, path string, df *dataframe.DataFrame) error {
	if path == "" {
		fmt.Fprint(stdout, df.Table())
		return nil
	}
	if err := loader.Save(ctx, path, df); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %d rows to %s\n", df.NRows(), path)
	return nil
}
