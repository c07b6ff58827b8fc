// Package chart holds chart specifications produced by DFL chart
// capabilities and renders them as HTML with go-echarts.
package chart

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Kind identifies the chart type.
type Kind string

const (
	KindScatter   Kind = "scatter"
	KindLine      Kind = "line"
	KindBar       Kind = "bar"
	KindHistogram Kind = "histogram"
	KindPie       Kind = "pie"
)

// Error definitions
var (
	ErrEmptyChart   = errors.New("chart has no data")
	ErrInvalidChart = errors.New("invalid chart")
)

// Point is one (x, y) observation of a scatter chart.
type Point struct {
	X float64
	Y float64
}

// Chart is a renderable chart specification.
//
// Scatter charts use Points. Every other kind pairs Categories with Values:
// x labels for line and bar, bin labels for histogram, slice names for pie.
type Chart struct {
	Kind       Kind
	Title      string
	XName      string
	YName      string
	Categories []string
	Values     []float64
	Points     []Point
}

// Len returns the number of data items.
func (c *Chart) Len() int {
	if c.Kind == KindScatter {
		return len(c.Points)
	}
	return len(c.Values)
}

// Validate checks that the chart is internally consistent.
func (c *Chart) Validate() error {
	switch c.Kind {
	case KindScatter:
	case KindLine, KindBar, KindHistogram, KindPie:
		if len(c.Categories) != len(c.Values) {
			return fmt.Errorf("%w: %d categories for %d values", ErrInvalidChart, len(c.Categories), len(c.Values))
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidChart, c.Kind)
	}
	return nil
}

// String summarises the chart for logs and the shell.
func (c *Chart) String() string {
	title := c.Title
	if title == "" {
		title = "untitled"
	}
	return fmt.Sprintf("%s chart %q (%d items)", c.Kind, title, c.Len())
}

// Render writes the chart as a standalone HTML page.
func (c *Chart) Render(w io.Writer) error {
	charter, err := c.build(c.Title, "")
	if err != nil {
		return err
	}
	return charter.Render(w)
}

// renderable is a go-echarts chart that can also render itself standalone.
type renderable interface {
	components.Charter
	Render(w io.Writer) error
}

// build converts the specification into a go-echarts chart.
func (c *Chart) build(title, subtitle string) (renderable, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	titleOpts := charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle})
	yAxis := charts.WithYAxisOpts(opts.YAxis{Name: c.YName})

	switch c.Kind {
	case KindScatter:
		data := make([]opts.ScatterData, len(c.Points))
		for i, p := range c.Points {
			data[i] = opts.ScatterData{Value: []float64{p.X, p.Y}}
		}
		sc := charts.NewScatter()
		sc.SetGlobalOptions(titleOpts, yAxis,
			charts.WithXAxisOpts(opts.XAxis{Name: c.XName, Type: "value"}))
		sc.AddSeries(c.YName, data)
		return sc, nil

	case KindLine:
		data := make([]opts.LineData, len(c.Values))
		for i, v := range c.Values {
			data[i] = opts.LineData{Value: v}
		}
		line := charts.NewLine()
		line.SetGlobalOptions(titleOpts, yAxis, charts.WithXAxisOpts(opts.XAxis{Name: c.XName}))
		line.SetXAxis(c.Categories).AddSeries(c.YName, data)
		return line, nil

	case KindBar, KindHistogram:
		data := make([]opts.BarData, len(c.Values))
		for i, v := range c.Values {
			data[i] = opts.BarData{Value: v}
		}
		bar := charts.NewBar()
		bar.SetGlobalOptions(titleOpts, yAxis, charts.WithXAxisOpts(opts.XAxis{Name: c.XName}))
		bar.SetXAxis(c.Categories).AddSeries(c.YName, data)
		return bar, nil

	default: // KindPie
		data := make([]opts.PieData, len(c.Values))
		for i, v := range c.Values {
			data[i] = opts.PieData{Name: c.Categories[i], Value: v}
		}
		pie := charts.NewPie()
		pie.SetGlobalOptions(titleOpts)
		pie.AddSeries(c.YName, data)
		return pie, nil
	}
}
