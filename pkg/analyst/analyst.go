// Package analyst composes the translator and the guarded executor into the
// caller-facing operations: Clean, Transform and Visualize.
//
// No operation returns a collaborator or execution failure as an error.
// Tabular operations always return a frame and charts may be nil; the Report
// says whether the result is real or a fallback.
package analyst

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	dataframe "github.com/rocketlaunchr/dataframe-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/akhildatla/dfagent/pkg/chart"
	"github.com/akhildatla/dfagent/pkg/guard"
	"github.com/akhildatla/dfagent/pkg/interp"
	"github.com/akhildatla/dfagent/pkg/llm"
	"github.com/akhildatla/dfagent/pkg/translate"
)

// ErrTranslationFailed marks a report whose program could not be generated.
var ErrTranslationFailed = errors.New("code generation failed")

// DefaultConcurrency bounds VisualizeAll.
const DefaultConcurrency = 4

// Report describes one request.
type Report struct {
	RequestID   string
	Intent      translate.Intent
	Instruction string
	Code        translate.Code
	Status      guard.Status
	Err         error
	Steps       int64
	Elapsed     time.Duration
}

// OK reports whether the result came from successfully executed code.
func (r Report) OK() bool {
	return r.Status == guard.StatusSucceeded
}

// ChartRequest is one entry of a VisualizeAll batch.
type ChartRequest struct {
	Instruction string
	Label       string
}

// ChartResult pairs a chart with its report. Chart is nil on failure.
type ChartResult struct {
	Chart  *chart.Chart
	Report Report
}

// Option configures an Analyst.
type Option func(*Analyst)

// WithGuardOptions configures the executors. Capability options are
// overridden per intent.
func WithGuardOptions(opts ...guard.Option) Option {
	return func(a *Analyst) {
		a.guardOpts = append(a.guardOpts, opts...)
	}
}

// WithTranslateOptions configures the translator.
func WithTranslateOptions(opts ...translate.Option) Option {
	return func(a *Analyst) {
		a.translateOpts = append(a.translateOpts, opts...)
	}
}

// WithConcurrency bounds the number of concurrent requests in VisualizeAll.
func WithConcurrency(n int) Option {
	return func(a *Analyst) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithDashboardTitle sets the page title of the rendered dashboard.
func WithDashboardTitle(title string) Option {
	return func(a *Analyst) {
		a.dashboardTitle = title
	}
}

// WithLogger sets the logger shared by the analyst, translator and executors.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyst) {
		if l != nil {
			a.logger = l
		}
	}
}

// Analyst serves clean, transform and visualize requests and accumulates
// charts on a dashboard.
type Analyst struct {
	translator  *translate.Translator
	cleaner     *guard.Executor
	transformer *guard.Executor
	dashboard   *chart.Dashboard
	logger      *zap.Logger

	guardOpts      []guard.Option
	translateOpts  []translate.Option
	concurrency    int
	dashboardTitle string
}

// New creates an Analyst over client.
func New(client llm.Client, opts ...Option) *Analyst {
	a := &Analyst{
		logger:         zap.NewNop(),
		concurrency:    DefaultConcurrency,
		dashboardTitle: "Dashboard",
	}
	for _, opt := range opts {
		opt(a)
	}

	a.translator = translate.New(client, append([]translate.Option{translate.WithLogger(a.logger)}, a.translateOpts...)...)
	a.cleaner = a.executor(interp.Base)
	a.transformer = a.executor(interp.Base | interp.Extended)
	a.dashboard = chart.NewDashboard(a.dashboardTitle)
	return a
}

// Clean applies a cleaning instruction with the base capabilities.
func (a *Analyst) Clean(ctx context.Context, df *dataframe.DataFrame, instruction string) (*dataframe.DataFrame, Report) {
	return a.tabular(ctx, a.cleaner, df, instruction, translate.IntentClean)
}

// Transform applies a transformation instruction with the base and extended
// capabilities.
func (a *Analyst) Transform(ctx context.Context, df *dataframe.DataFrame, instruction string) (*dataframe.DataFrame, Report) {
	return a.tabular(ctx, a.transformer, df, instruction, translate.IntentTransform)
}

// Visualize builds a chart. A non-nil chart is added to the dashboard under
// label, or "Chart N" when label is empty.
func (a *Analyst) Visualize(ctx context.Context, df *dataframe.DataFrame, instruction, label string) (*chart.Chart, Report) {
	c, report := a.visualize(ctx, df, instruction)
	a.dashboard.Add(label, c)
	return c, report
}

// VisualizeAll serves a batch of chart requests concurrently. Charts are added
// to the dashboard in request order. The error is non-nil only when ctx ends
// before the batch completes.
func (a *Analyst) VisualizeAll(ctx context.Context, df *dataframe.DataFrame, reqs []ChartRequest) ([]ChartResult, error) {
	results := make([]ChartResult, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, report := a.visualize(gctx, df, req.Instruction)
			results[i] = ChartResult{Chart: c, Report: report}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, r := range results {
		a.dashboard.Add(reqs[i].Label, r.Chart)
	}
	return results, nil
}

// Dashboard returns the accumulated charts.
func (a *Analyst) Dashboard() *chart.Dashboard {
	return a.dashboard
}

// ResetDashboard removes every accumulated chart.
func (a *Analyst) ResetDashboard() {
	a.dashboard.Reset()
}

func (a *Analyst) executor(set interp.CapabilitySet) *guard.Executor {
	opts := make([]guard.Option, 0, len(a.guardOpts)+2)
	opts = append(opts, guard.WithLogger(a.logger))
	opts = append(opts, a.guardOpts...)
	opts = append(opts, guard.WithCapabilities(set))
	return guard.New(opts...)
}

func (a *Analyst) tabular(ctx context.Context, ex *guard.Executor, df *dataframe.DataFrame, instruction string, intent translate.Intent) (*dataframe.DataFrame, Report) {
	if df == nil {
		df = dataframe.NewDataFrame()
	}
	report := a.newReport(instruction, intent)
	start := time.Now()

	report.Code = a.translator.Translate(ctx, instruction, df.Names(), intent)
	out := ex.Execute(ctx, df, report.Code.String(), guard.ModeTabular)
	a.finish(&report, out, start)
	return out.Frame, report
}

func (a *Analyst) visualize(ctx context.Context, df *dataframe.DataFrame, instruction string) (*chart.Chart, Report) {
	if df == nil {
		df = dataframe.NewDataFrame()
	}
	report := a.newReport(instruction, translate.IntentVisualize)
	start := time.Now()

	report.Code = a.translator.Translate(ctx, instruction, df.Names(), translate.IntentVisualize)
	out := a.cleaner.Execute(ctx, df, report.Code.String(), guard.ModeChart)
	a.finish(&report, out, start)
	if !report.OK() {
		return nil, report
	}
	return out.Chart, report
}

func (a *Analyst) newReport(instruction string, intent translate.Intent) Report {
	return Report{
		RequestID:   uuid.NewString(),
		Intent:      intent,
		Instruction: instruction,
	}
}

func (a *Analyst) finish(report *Report, out guard.Outcome, start time.Time) {
	report.Status = out.Status
	report.Err = out.Err
	report.Steps = out.Steps
	report.Elapsed = time.Since(start)

	if report.Code.IsFailure() {
		report.Status = guard.StatusFailed
		report.Err = ErrTranslationFailed
	}

	a.logger.Info("request served",
		zap.String("request_id", report.RequestID),
		zap.Stringer("intent", report.Intent),
		zap.Stringer("status", report.Status),
		zap.Duration("elapsed", report.Elapsed),
		zap.Error(report.Err))
}
