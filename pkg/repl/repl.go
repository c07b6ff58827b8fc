// Package repl provides an interactive shell over one working dataframe.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/akhildatla/dfagent/pkg/analyst"
	"github.com/akhildatla/dfagent/pkg/guard"
	"github.com/akhildatla/dfagent/pkg/interp"
	"github.com/akhildatla/dfagent/pkg/loader"
)

const (
	promptMain = "dfagent> "
	promptCont = "...> "

	defaultShowRows = 10
)

type styles struct {
	title lipgloss.Style
	ok    lipgloss.Style
	fail  lipgloss.Style
	code  lipgloss.Style
	muted lipgloss.Style
}

func newStyles() styles {
	return styles{
		title: lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true),
		ok:    lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")),
		fail:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")),
		code:  lipgloss.NewStyle().Foreground(lipgloss.Color("#7FB4CA")),
		muted: lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Italic(true),
	}
}

// Option configures a REPL.
type Option func(*REPL)

// WithFrame sets the initial working frame.
func WithFrame(df *dataframe.DataFrame) Option {
	return func(r *REPL) {
		r.frame = df
	}
}

// WithRunner sets the executor used by the run command.
func WithRunner(ex *guard.Executor) Option {
	return func(r *REPL) {
		if ex != nil {
			r.runner = ex
		}
	}
}

// REPL is an interactive Read-Eval-Print Loop over one working frame. Every
// successful operation pushes the previous frame onto the undo stack.
type REPL struct {
	analyst *analyst.Analyst
	runner  *guard.Executor
	styles  styles

	frame       *dataframe.DataFrame
	undo        []*dataframe.DataFrame
	history     []string
	multiline   strings.Builder
	inMultiline bool
}

// New creates a REPL serving requests through a.
func New(a *analyst.Analyst, opts ...Option) *REPL {
	r := &REPL{
		analyst: a,
		runner:  guard.New(guard.WithCapabilities(interp.Base | interp.Extended)),
		styles:  newStyles(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Frame returns the working frame, which may be nil.
func (r *REPL) Frame() *dataframe.DataFrame {
	return r.frame
}

// Start runs the loop until quit or the end of in.
func (r *REPL) Start(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	fmt.Fprintln(out, r.styles.title.Render("dfagent - natural-language dataframe shell"))
	fmt.Fprintln(out, "Type 'help' for available commands, 'quit' to exit")
	fmt.Fprintln(out)

	for {
		if r.inMultiline {
			fmt.Fprint(out, promptCont)
		} else {
			fmt.Fprint(out, promptMain)
		}

		if !scanner.Scan() {
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Text()

		if r.inMultiline {
			if strings.TrimSpace(line) == "" {
				r.inMultiline = false
				input := r.multiline.String()
				r.multiline.Reset()
				if !r.handleCommand(ctx, input, out) {
					return nil
				}
			} else {
				r.multiline.WriteString(strings.TrimSuffix(line, "\\"))
				r.multiline.WriteString("\n")
			}
			continue
		}

		if strings.HasSuffix(line, "\\") {
			r.inMultiline = true
			r.multiline.WriteString(strings.TrimSuffix(line, "\\"))
			r.multiline.WriteString("\n")
			continue
		}

		if !r.handleCommand(ctx, line, out) {
			return nil
		}
	}
}

// handleCommand dispatches one command. It returns false when the loop
// should stop.
func (r *REPL) handleCommand(ctx context.Context, input string, out io.Writer) bool {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return true
	}

	name, arg, _ := strings.Cut(trimmed, " ")
	arg = strings.TrimSpace(arg)
	if i := strings.IndexByte(name, '\n'); i >= 0 {
		name, arg = name[:i], strings.TrimSpace(trimmed[i+1:])
	}

	switch name {
	case "quit", "exit", "q":
		fmt.Fprintln(out, "Goodbye!")
		return false

	case "help", "h", "?":
		r.printHelp(out)
		return true

	case "history":
		for i, cmd := range r.history {
			fmt.Fprintf(out, "%3d: %s\n", i+1, cmd)
		}
		return true
	}

	r.history = append(r.history, trimmed)

	switch name {
	case "load":
		if arg == "" {
			fmt.Fprintln(out, "Usage: load <path>[#table]")
			return true
		}
		r.load(ctx, arg, out)

	case "clean", "transform":
		if !r.requireFrame(out) {
			return true
		}
		if arg == "" {
			fmt.Fprintf(out, "Usage: %s <instruction>\n", name)
			return true
		}
		r.tabular(ctx, name, arg, out)

	case "plot":
		if !r.requireFrame(out) {
			return true
		}
		label, instruction := splitLabel(arg)
		if instruction == "" {
			fmt.Fprintln(out, "Usage: plot [label:] <instruction>")
			return true
		}
		r.plot(ctx, label, instruction, out)

	case "run":
		if !r.requireFrame(out) {
			return true
		}
		if arg == "" {
			fmt.Fprintln(out, "Usage: run <program>  (end a line with \\ to continue)")
			return true
		}
		r.run(ctx, arg, out)

	case "show":
		if !r.requireFrame(out) {
			return true
		}
		n := defaultShowRows
		if arg != "" {
			v, err := strconv.Atoi(arg)
			if err != nil || v <= 0 {
				fmt.Fprintln(out, "Usage: show [rows]")
				return true
			}
			n = v
		}
		r.show(n, out)

	case "schema":
		if !r.requireFrame(out) {
			return true
		}
		r.schema(out)

	case "undo":
		if len(r.undo) == 0 {
			fmt.Fprintln(out, "Nothing to undo")
			return true
		}
		r.frame = r.undo[len(r.undo)-1]
		r.undo = r.undo[:len(r.undo)-1]
		fmt.Fprintf(out, "Restored previous frame (%s)\n", shape(r.frame))

	case "save":
		if !r.requireFrame(out) {
			return true
		}
		if arg == "" {
			fmt.Fprintln(out, "Usage: save <path.csv|path.json>")
			return true
		}
		if err := loader.Save(ctx, arg, r.frame); err != nil {
			r.printError(out, err)
			return true
		}
		fmt.Fprintf(out, "Saved %s to %s\n", shape(r.frame), arg)

	case "dashboard":
		if arg == "" {
			fmt.Fprintln(out, "Usage: dashboard <file.html>")
			return true
		}
		r.writeDashboard(arg, out)

	default:
		fmt.Fprintf(out, "Unknown command %q. Type 'help' for available commands\n", name)
	}
	return true
}

func (r *REPL) load(ctx context.Context, path string, out io.Writer) {
	df, err := loader.Load(ctx, path)
	if err != nil {
		r.printError(out, fmt.Errorf("loading %s: %w", path, err))
		return
	}
	r.commit(df)
	fmt.Fprintf(out, "Loaded %s (%s)\n", path, shape(df))
}

func (r *REPL) tabular(ctx context.Context, intent, instruction string, out io.Writer) {
	var (
		df     *dataframe.DataFrame
		report analyst.Report
	)
	if intent == "transform" {
		df, report = r.analyst.Transform(ctx, r.frame, instruction)
	} else {
		df, report = r.analyst.Clean(ctx, r.frame, instruction)
	}

	r.printReport(out, report)
	if !report.OK() {
		fmt.Fprintln(out, r.styles.muted.Render("frame unchanged"))
		return
	}
	r.commit(df)
	fmt.Fprintf(out, "Frame is now %s\n", shape(df))
}

func (r *REPL) plot(ctx context.Context, label, instruction string, out io.Writer) {
	c, report := r.analyst.Visualize(ctx, r.frame, instruction, label)
	r.printReport(out, report)
	if c == nil {
		fmt.Fprintln(out, r.styles.muted.Render("no chart produced"))
		return
	}
	fmt.Fprintf(out, "Added %s to the dashboard (%d charts)\n", c, r.analyst.Dashboard().Len())
}

func (r *REPL) run(ctx context.Context, code string, out io.Writer) {
	outcome := r.runner.Execute(ctx, r.frame, code, guard.ModeTabular)
	if !outcome.OK() {
		r.printError(out, outcome.Err)
		fmt.Fprintln(out, r.styles.muted.Render("frame unchanged"))
		return
	}
	r.commit(outcome.Frame)
	fmt.Fprintf(out, "%s Frame is now %s\n", r.styles.ok.Render("ok"), shape(outcome.Frame))
}

func (r *REPL) show(n int, out io.Writer) {
	rows := r.frame.NRows()
	if rows == 0 {
		fmt.Fprint(out, r.frame.Table())
		return
	}
	if n > rows {
		n = rows
	}
	rng := dataframe.RangeFinite(0, n-1)
	fmt.Fprint(out, r.frame.Table(dataframe.TableOptions{R: &rng}))
	if n < rows {
		fmt.Fprintln(out, r.styles.muted.Render(fmt.Sprintf("... %d more rows", rows-n)))
	}
}

func (r *REPL) schema(out io.Writer) {
	fmt.Fprintln(out, r.styles.title.Render(shape(r.frame)))
	for _, s := range r.frame.Series {
		fmt.Fprintf(out, "  %-20s %s\n", s.Name(), s.Type())
	}
}

func (r *REPL) writeDashboard(path string, out io.Writer) {
	f, err := os.Create(path)
	if err != nil {
		r.printError(out, err)
		return
	}
	defer f.Close()

	if err := r.analyst.Dashboard().Render(f); err != nil {
		r.printError(out, err)
		return
	}
	fmt.Fprintf(out, "Wrote %d charts to %s\n", r.analyst.Dashboard().Len(), path)
}

// commit replaces the working frame, keeping the old one for undo.
func (r *REPL) commit(df *dataframe.DataFrame) {
	if r.frame != nil {
		r.undo = append(r.undo, r.frame)
	}
	r.frame = df
}

func (r *REPL) requireFrame(out io.Writer) bool {
	if r.frame == nil {
		fmt.Fprintln(out, "No frame loaded. Use: load <path>")
		return false
	}
	return true
}

func (r *REPL) printReport(out io.Writer, report analyst.Report) {
	if !report.Code.IsFailure() {
		for _, line := range strings.Split(report.Code.String(), "\n") {
			fmt.Fprintln(out, r.styles.code.Render("  "+line))
		}
	}
	if report.OK() {
		fmt.Fprintf(out, "%s %d steps in %s\n", r.styles.ok.Render("ok"), report.Steps, report.Elapsed.Round(time.Microsecond))
		return
	}
	r.printError(out, report.Err)
}

func (r *REPL) printError(out io.Writer, err error) {
	fmt.Fprintln(out, r.styles.fail.Render(fmt.Sprintf("Error: %v", err)))
}

func (r *REPL) printHelp(out io.Writer) {
	fmt.Fprintln(out, r.styles.title.Render("dfagent REPL Commands:"))
	help := `  help, h, ?               Show this help message
  quit, exit, q            Exit the REPL
  load <path>[#table]      Load a CSV, JSON Lines, Parquet or SQLite file
  clean <instruction>      Clean the frame from a natural-language instruction
  transform <instruction>  Encode, scale, bin or derive columns
  plot [label:] <instr>    Build a chart and add it to the dashboard
  run <program>            Execute DFL directly
  show [n]                 Print the first n rows (default 10)
  schema                   List columns and types
  undo                     Restore the previous frame
  history                  Show command history
  save <path>              Write the frame as CSV or JSON Lines
  dashboard <file.html>    Render all charts to one HTML page

Examples:
  load sales.csv
  clean fill missing prices with the median and trim category names
  plot Revenue: bar chart of price by category
  run df = df |> filter(price > 10) \
      |> select(price, category)

Tips:
  - End a line with \ for multiline input
  - Press Enter on an empty line to execute multiline input
`
	fmt.Fprint(out, help)
}

// splitLabel separates "Label: instruction". Without a colon in the first
// word the whole argument is the instruction.
func splitLabel(arg string) (label, instruction string) {
	first, rest, _ := strings.Cut(arg, " ")
	if strings.HasSuffix(first, ":") {
		return strings.TrimSuffix(first, ":"), strings.TrimSpace(rest)
	}
	return "", arg
}

func shape(df *dataframe.DataFrame) string {
	return fmt.Sprintf("%d rows, %d columns", df.NRows(), len(df.Series))
}
