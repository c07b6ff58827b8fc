package interp

import (
	"fmt"
	"math"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/akhildatla/dfagent/pkg/chart"
)

var chartCapabilities = []Capability{
	{Name: "scatter", Set: Charting, Usage: "scatter(df, x=col, y=col, title=str)", Fn: scatterChart},
	{Name: "line", Set: Charting, Usage: "line(df, x=col, y=col, title=str)", Fn: lineChart},
	{Name: "bar", Set: Charting, Usage: "bar(df, x=col, y=col, title=str); without y, counts x", Fn: barChart},
	{Name: "histogram", Set: Charting, Usage: "histogram(df, x=col, bins=10, title=str)", Fn: histogramChart},
	{Name: "pie", Set: Charting, Usage: "pie(df, names=col, values=col, title=str); without values, counts names", Fn: pieChart},
}

// chartColumns resolves the frame and the named axis columns of a chart call.
// Axis names may be given positionally after the frame.
func chartColumns(c *Call, axes ...string) (*dataframe.DataFrame, []dataframe.Series, error) {
	df, err := c.frame(0)
	if err != nil {
		return nil, nil, err
	}
	cols := make([]dataframe.Series, len(axes))
	for i, axis := range axes {
		name, err := c.str(i+1, axis, "")
		if err != nil {
			return nil, nil, err
		}
		if name == "" {
			continue
		}
		if cols[i], err = column(df, name); err != nil {
			return nil, nil, err
		}
	}
	return df, cols, nil
}

func chartTitle(c *Call) (string, error) {
	return c.str(-1, "title", "")
}

func finish(ch *chart.Chart) (any, error) {
	if err := ch.Validate(); err != nil {
		return nil, err
	}
	if ch.Len() == 0 {
		return nil, chart.ErrEmptyChart
	}
	return ch, nil
}

func scatterChart(c *Call) (any, error) {
	_, cols, err := chartColumns(c, "x", "y")
	if err != nil {
		return nil, err
	}
	x, y := cols[0], cols[1]
	if x == nil || y == nil {
		return nil, fmt.Errorf("%w: scatter needs x and y", ErrArity)
	}
	title, err := chartTitle(c)
	if err != nil {
		return nil, err
	}

	ch := &chart.Chart{Kind: chart.KindScatter, Title: title, XName: x.Name(), YName: y.Name()}
	for i := 0; i < x.NRows(); i++ {
		xv, xok := floatAt(x, i)
		yv, yok := floatAt(y, i)
		if xok && yok {
			ch.Points = append(ch.Points, chart.Point{X: xv, Y: yv})
		}
	}
	return finish(ch)
}

func lineChart(c *Call) (any, error) {
	_, cols, err := chartColumns(c, "x", "y")
	if err != nil {
		return nil, err
	}
	x, y := cols[0], cols[1]
	if x == nil || y == nil {
		return nil, fmt.Errorf("%w: line needs x and y", ErrArity)
	}
	title, err := chartTitle(c)
	if err != nil {
		return nil, err
	}

	ch := &chart.Chart{Kind: chart.KindLine, Title: title, XName: x.Name(), YName: y.Name()}
	for i := 0; i < x.NRows(); i++ {
		xv := x.Value(i)
		yv, ok := floatAt(y, i)
		if xv == nil || !ok {
			continue
		}
		ch.Categories = append(ch.Categories, formatValue(xv))
		ch.Values = append(ch.Values, yv)
	}
	return finish(ch)
}

// tally sums values per category in order of first appearance. A nil values
// column counts rows instead.
func tally(cats, values dataframe.Series) ([]string, []float64) {
	var names []string
	var totals []float64
	pos := make(map[string]int)
	for i := 0; i < cats.NRows(); i++ {
		cv := cats.Value(i)
		if cv == nil {
			continue
		}
		w := 1.0
		if values != nil {
			f, ok := floatAt(values, i)
			if !ok {
				continue
			}
			w = f
		}
		name := formatValue(cv)
		k, seen := pos[name]
		if !seen {
			k = len(names)
			pos[name] = k
			names = append(names, name)
			totals = append(totals, 0)
		}
		totals[k] += w
	}
	return names, totals
}

func barChart(c *Call) (any, error) {
	_, cols, err := chartColumns(c, "x", "y")
	if err != nil {
		return nil, err
	}
	x, y := cols[0], cols[1]
	if x == nil {
		return nil, fmt.Errorf("%w: bar needs x", ErrArity)
	}
	title, err := chartTitle(c)
	if err != nil {
		return nil, err
	}

	ch := &chart.Chart{Kind: chart.KindBar, Title: title, XName: x.Name(), YName: "count"}
	if y != nil {
		ch.YName = y.Name()
	}
	ch.Categories, ch.Values = tally(x, y)
	return finish(ch)
}

func pieChart(c *Call) (any, error) {
	_, cols, err := chartColumns(c, "names", "values")
	if err != nil {
		return nil, err
	}
	names, values := cols[0], cols[1]
	if names == nil {
		return nil, fmt.Errorf("%w: pie needs names", ErrArity)
	}
	title, err := chartTitle(c)
	if err != nil {
		return nil, err
	}

	ch := &chart.Chart{Kind: chart.KindPie, Title: title, XName: names.Name()}
	if values != nil {
		ch.YName = values.Name()
	}
	ch.Categories, ch.Values = tally(names, values)
	return finish(ch)
}

func histogramChart(c *Call) (any, error) {
	_, cols, err := chartColumns(c, "x")
	if err != nil {
		return nil, err
	}
	x := cols[0]
	if x == nil {
		return nil, fmt.Errorf("%w: histogram needs x", ErrArity)
	}
	bins, err := c.integer(-1, "bins", 10)
	if err != nil {
		return nil, err
	}
	if bins < 1 {
		return nil, fmt.Errorf("%w: bins must be at least 1, got %d", ErrInvalidArgument, bins)
	}
	title, err := chartTitle(c)
	if err != nil {
		return nil, err
	}
	if !isNumeric(seriesType(x)) {
		return nil, fmt.Errorf("%w: histogram needs a numeric column, got %s", ErrTypeMismatch, seriesType(x))
	}

	edges := equalWidthEdges(x, bins)
	ch := &chart.Chart{
		Kind:       chart.KindHistogram,
		Title:      title,
		XName:      x.Name(),
		YName:      "count",
		Categories: make([]string, bins),
		Values:     make([]float64, bins),
	}
	for i := 0; i < bins; i++ {
		ch.Categories[i] = fmt.Sprintf("%.4g-%.4g", edges[i], edges[i+1])
	}

	observedAny := false
	for i := 0; i < x.NRows(); i++ {
		f, ok := floatAt(x, i)
		if !ok || math.IsInf(f, 0) {
			continue
		}
		if b := binIndex(edges, f); b >= 0 {
			ch.Values[b]++
			observedAny = true
		}
	}
	if !observedAny {
		return nil, chart.ErrEmptyChart
	}
	return finish(ch)
}
