// Package guard runs untrusted DFL code against a dataframe.
//
// An Executor never lets a failure escape: parse errors, unknown names,
// runtime errors, panics, timeouts and step budgets all end in a FAILED
// Outcome carrying a fresh copy of the input frame (tabular mode) or no chart
// (chart mode).
//
// Basic usage:
//
//	ex := guard.New(guard.WithTimeout(5*time.Second), guard.WithLogger(logger))
//	out := ex.Execute(ctx, df, `df = df |> dropna()`, guard.ModeTabular)
//	if !out.OK() {
//	    log.Println("fell back:", out.Err)
//	}
//	result := out.Frame
package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"
	dataframe "github.com/rocketlaunchr/dataframe-go"
	"go.uber.org/zap"

	"github.com/akhildatla/dfagent/pkg/chart"
	"github.com/akhildatla/dfagent/pkg/dsl"
	"github.com/akhildatla/dfagent/pkg/interp"
	"github.com/akhildatla/dfagent/pkg/optimizer"
)

// Common errors
var (
	ErrTimeout = errors.New("execution timeout exceeded")
	ErrPanic   = errors.New("execution panicked")
	ErrNoFrame = errors.New("df is not bound to a frame")
	ErrNoChart = errors.New("fig is not bound to a chart")
)

// Default production bounds.
const (
	DefaultTimeout  = 5 * time.Second
	DefaultMaxSteps = 1_000_000
)

// Mode selects what an execution produces.
type Mode int

const (
	// ModeTabular reads the frame bound to df back as the result.
	ModeTabular Mode = iota
	// ModeChart reads the chart bound to fig back as the result.
	ModeChart
)

func (m Mode) String() string {
	if m == ModeChart {
		return "chart"
	}
	return "tabular"
}

// Status is the terminal state of one execution.
type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
)

func (s Status) String() string {
	if s == StatusSucceeded {
		return "succeeded"
	}
	return "failed"
}

// Outcome is the result of one execution.
type Outcome struct {
	Status Status
	Mode   Mode

	// Frame is the tabular result, or a copy of the input after a failure.
	// It is nil in chart mode.
	Frame *dataframe.DataFrame

	// Chart is the chart result; nil means no result.
	Chart *chart.Chart

	// Err is the cause of a failure.
	Err error

	Steps   int64
	Elapsed time.Duration
}

// OK reports whether the execution succeeded.
func (o Outcome) OK() bool {
	return o.Status == StatusSucceeded
}

func (o Outcome) String() string {
	if o.OK() {
		return fmt.Sprintf("%s (%s, %d steps, %s)", o.Status, o.Mode, o.Steps, o.Elapsed.Round(time.Microsecond))
	}
	return fmt.Sprintf("%s (%s): %v", o.Status, o.Mode, o.Err)
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout bounds the wall-clock time of one execution. Zero means no
// timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		e.timeout = d
	}
}

// WithMaxSteps bounds the number of evaluated nodes. Zero means unlimited.
func WithMaxSteps(n int64) Option {
	return func(e *Executor) {
		e.maxSteps = n
	}
}

// WithCapabilities sets the capabilities exposed in tabular mode. Chart mode
// always exposes the chart constructors only.
func WithCapabilities(set interp.CapabilitySet) Option {
	return func(e *Executor) {
		e.tabular = set
	}
}

// WithOptimizer rewrites every program with o before it runs.
func WithOptimizer(o *optimizer.Optimizer) Option {
	return func(e *Executor) {
		e.optimizer = o
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// Executor runs generated code. It holds configuration only, so one Executor
// may serve concurrent calls.
type Executor struct {
	timeout   time.Duration
	maxSteps  int64
	tabular   interp.CapabilitySet
	optimizer *optimizer.Optimizer
	logger    *zap.Logger
}

// New creates an Executor with production defaults.
func New(opts ...Option) *Executor {
	e := &Executor{
		timeout:  DefaultTimeout,
		maxSteps: DefaultMaxSteps,
		tabular:  interp.Base,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Capabilities returns the capability set exposed in mode.
func (e *Executor) Capabilities(mode Mode) interp.CapabilitySet {
	if mode == ModeChart {
		return interp.Charting
	}
	return e.tabular
}

// Execute runs code against a private copy of frame. It always returns an
// Outcome; it never panics and never returns the working copy after a failure.
func (e *Executor) Execute(ctx context.Context, frame *dataframe.DataFrame, code string, mode Mode) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	if frame == nil {
		frame = dataframe.NewDataFrame()
	}

	start := time.Now()
	result, steps, err := e.run(ctx, frame, code, mode)
	out := Outcome{
		Status:  StatusSucceeded,
		Mode:    mode,
		Steps:   steps,
		Elapsed: time.Since(start),
	}

	if err != nil {
		out.Status = StatusFailed
		out.Err = err
		if mode == ModeTabular {
			out.Frame = frame.Copy()
		}
		e.logger.Warn("generated code failed",
			zap.Stringer("mode", mode),
			zap.String("code", code),
			zap.Int64("steps", steps),
			zap.Error(err))
		return out
	}

	switch r := result.(type) {
	case *dataframe.DataFrame:
		out.Frame = r
	case *chart.Chart:
		out.Chart = r
	}
	e.logger.Debug("generated code succeeded",
		zap.Stringer("mode", mode),
		zap.Int64("steps", steps),
		zap.Duration("elapsed", out.Elapsed))
	return out
}

// run performs one attempt: parse, optimize, build a fresh namespace, interpret
// and read the result binding back.
func (e *Executor) run(ctx context.Context, frame *dataframe.DataFrame, code string, mode Mode) (result any, steps int64, err error) {
	var in *interp.Interpreter
	defer func() {
		if in != nil {
			steps = in.Steps()
		}
		if r := recover(); r != nil {
			result = nil
			err = pkgerrors.WithStack(fmt.Errorf("%w: %v", ErrPanic, r))
		}
	}()

	prog, err := dsl.Parse(code)
	if err != nil {
		return nil, 0, err
	}
	if e.optimizer != nil {
		prog = e.optimizer.Optimize(prog)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	ns := interp.NewNamespace(frame.Copy(), e.Capabilities(mode))
	in = interp.New(ns, interp.WithMaxSteps(e.maxSteps))
	if err := in.Run(ctx, prog); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, 0, err
	}

	if mode == ModeChart {
		v, _ := ns.Lookup(interp.ChartBinding)
		c, ok := v.(*chart.Chart)
		if !ok || c == nil {
			return nil, 0, fmt.Errorf("%w: got %T", ErrNoChart, v)
		}
		return c, 0, nil
	}

	v, _ := ns.Lookup(interp.FrameBinding)
	df, ok := v.(*dataframe.DataFrame)
	if !ok || df == nil {
		return nil, 0, fmt.Errorf("%w: got %T", ErrNoFrame, v)
	}
	return df, 0, nil
}
