package interp

import (
	"fmt"
	"math"
	"regexp"
	"sort"

	dataframe "github.com/rocketlaunchr/dataframe-go"
)

var extendedCapabilities = []Capability{
	{Name: "label_encode", Set: Extended, Usage: "label_encode(col) -> int codes in sorted order", Fn: labelEncode},
	{Name: "one_hot", Set: Extended, Usage: "one_hot(df, col) or one_hot(col)", Fn: oneHot},
	{Name: "minmax_scale", Set: Extended, Usage: "minmax_scale(col) -> [0, 1]", Fn: scaler(minMax)},
	{Name: "standard_scale", Set: Extended, Usage: "standard_scale(col) -> zero mean, unit variance", Fn: scaler(standard)},
	{Name: "robust_scale", Set: Extended, Usage: "robust_scale(col) -> (x - median) / IQR", Fn: scaler(robust)},
	{Name: "bin", Set: Extended, Usage: "bin(col, bins=n | [edges], labels=[...])", Fn: binFn},
	{Name: "re_replace", Set: Extended, Usage: "re_replace(col, pattern, repl)", Fn: reReplace},
	{Name: "re_extract", Set: Extended, Usage: "re_extract(col, pattern) -> first group", Fn: reExtract},
	{Name: "re_match", Set: Extended, Usage: "re_match(col, pattern) -> bool", Fn: reMatch},
}

// ===== Encoding =====

// classes returns the distinct non-null values of s in ascending order.
func classes(s dataframe.Series) ([]any, error) {
	out := distinct(seriesValues(s))
	var sortErr error
	sort.SliceStable(out, func(i, j int) bool {
		cmp, ok := order(out[i], out[j])
		if !ok {
			sortErr = fmt.Errorf("%w: cannot order %s and %s", ErrTypeMismatch, typeName(out[i]), typeName(out[j]))
		}
		return cmp < 0
	})
	return out, sortErr
}

func labelEncode(c *Call) (any, error) {
	if err := c.arity(1, 1); err != nil {
		return nil, err
	}
	s, err := c.series(0)
	if err != nil {
		return nil, err
	}
	cls, err := classes(s)
	if err != nil {
		return nil, err
	}
	codes := make(map[any]int64, len(cls))
	for i, v := range cls {
		codes[normalizeKey(v)] = int64(i)
	}
	return mapSeries(s, TypeInt64, func(v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return codes[normalizeKey(v)], nil
	})
}

// dummies builds one 0/1 column per class of s, named prefix_class.
func dummies(s dataframe.Series, prefix string) ([]dataframe.Series, error) {
	cls, err := classes(s)
	if err != nil {
		return nil, err
	}
	cols := make([]dataframe.Series, len(cls))
	for k, cl := range cls {
		key := normalizeKey(cl)
		vals := make([]any, s.NRows())
		for i := range vals {
			if v := s.Value(i); v != nil && normalizeKey(v) == key {
				vals[i] = int64(1)
			} else {
				vals[i] = int64(0)
			}
		}
		cols[k] = newTypedSeries(prefix+"_"+formatValue(cl), TypeInt64, vals)
	}
	return cols, nil
}

// oneHot replaces a frame column by its indicator columns, or turns a single
// column into a frame of indicators.
func oneHot(c *Call) (any, error) {
	if err := c.arity(1, 2); err != nil {
		return nil, err
	}

	if s, ok := c.Args[0].(dataframe.Series); ok {
		cols, err := dummies(s, s.Name())
		if err != nil {
			return nil, err
		}
		if len(cols) == 0 {
			return dataframe.NewDataFrame(), nil
		}
		return newFrame(cols...)
	}

	df, err := c.frame(0)
	if err != nil {
		return nil, err
	}
	name, err := c.str(1, "column", "")
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("%w: one_hot needs a column name", ErrArity)
	}
	s, err := column(df, name)
	if err != nil {
		return nil, err
	}
	indicators, err := dummies(s, name)
	if err != nil {
		return nil, err
	}

	cols := make([]dataframe.Series, 0, len(df.Series)+len(indicators))
	for _, col := range df.Series {
		if col.Name() != name {
			cols = append(cols, col)
		}
	}
	cols = append(cols, indicators...)
	if len(cols) == 0 {
		return dataframe.NewDataFrame(), nil
	}
	return newFrame(cols...)
}

// ===== Scaling =====

type scaleFunc func(vals []float64) (center, scale float64)

func minMax(vals []float64) (float64, float64) {
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi - lo
}

func standard(vals []float64) (float64, float64) {
	return mean(vals), stddev(vals, 0)
}

func robust(vals []float64) (float64, float64) {
	return quantile(vals, 0.5), quantile(vals, 0.75) - quantile(vals, 0.25)
}

// scaler maps x to (x - center) / scale. A zero scale leaves x - center, so
// constant columns become zero.
func scaler(fn scaleFunc) Builtin {
	return func(c *Call) (any, error) {
		if err := c.arity(1, 1); err != nil {
			return nil, err
		}
		s, err := c.series(0)
		if err != nil {
			return nil, err
		}
		vals, _, err := numeric(c)
		if err != nil {
			return nil, err
		}
		if len(vals) == 0 {
			return mapSeries(s, TypeFloat64, func(any) (any, error) { return nil, nil })
		}

		center, scale := fn(vals)
		return mapSeries(s, TypeFloat64, func(v any) (any, error) {
			f, ok := toFloat(v)
			if !ok {
				return nil, nil
			}
			if scale == 0 {
				return f - center, nil
			}
			return (f - center) / scale, nil
		})
	}
}

// ===== Binning =====

// binFn assigns each value to a bin. With an int bin count the range is split
// into equal widths and values get their 0-based bin index. With a list of
// edges, intervals are closed on the right and the lowest edge is included.
// Values outside every bin are null. labels, when given, replace the indices.
func binFn(c *Call) (any, error) {
	if err := c.arity(1, 3); err != nil {
		return nil, err
	}
	s, err := c.series(0)
	if err != nil {
		return nil, err
	}
	spec, ok := c.arg(1, "bins")
	if !ok {
		return nil, fmt.Errorf("%w: bin needs bins", ErrArity)
	}

	var edges []float64
	switch b := spec.(type) {
	case int64:
		if b < 1 {
			return nil, fmt.Errorf("%w: bins must be at least 1, got %d", ErrInvalidArgument, b)
		}
		edges = equalWidthEdges(s, int(b))
	case []any:
		for _, e := range b {
			f, ok := toFloat(e)
			if !ok {
				return nil, fmt.Errorf("%w: bin edges must be numbers, got %s", ErrTypeMismatch, typeName(e))
			}
			edges = append(edges, f)
		}
		if len(edges) < 2 {
			return nil, fmt.Errorf("%w: bin needs at least two edges", ErrInvalidArgument)
		}
		if !sort.Float64sAreSorted(edges) {
			return nil, fmt.Errorf("%w: bin edges must increase", ErrInvalidArgument)
		}
	default:
		return nil, c.argError(1, "an int or a list of edges", spec)
	}

	var labels []any
	if lv, ok := c.arg(2, "labels"); ok && lv != nil {
		l, isList := lv.([]any)
		if !isList {
			return nil, c.argError(2, "a list", lv)
		}
		if len(l) != len(edges)-1 {
			return nil, fmt.Errorf("%w: %d labels for %d bins", ErrLengthMismatch, len(l), len(edges)-1)
		}
		labels = l
	}

	return mapSeries(s, TypeUnknown, func(v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: bin needs numbers, got %s", ErrTypeMismatch, typeName(v))
		}
		i := binIndex(edges, f)
		if i < 0 {
			return nil, nil
		}
		if labels != nil {
			return labels[i], nil
		}
		return int64(i), nil
	})
}

// equalWidthEdges splits the observed range of s into n bins. A constant
// column gets a unit-wide range around its value.
func equalWidthEdges(s dataframe.Series, n int) []float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < s.NRows(); i++ {
		if f, ok := toFloat(s.Value(i)); ok {
			lo = math.Min(lo, f)
			hi = math.Max(hi, f)
		}
	}
	if math.IsInf(lo, 1) {
		lo, hi = 0, 1
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	width := (hi - lo) / float64(n)
	edges := make([]float64, n+1)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	edges[n] = hi
	return edges
}

// binIndex returns the bin of f within edges, or -1.
func binIndex(edges []float64, f float64) int {
	if f < edges[0] || f > edges[len(edges)-1] {
		return -1
	}
	if f == edges[0] {
		return 0
	}
	// first edge >= f closes the bin on the right
	i := sort.SearchFloat64s(edges, f)
	return i - 1
}

// ===== Regular expressions =====

func compilePattern(c *Call, i int) (*regexp.Regexp, error) {
	pattern, err := c.str(i, "pattern", "")
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: bad pattern %q: %v", ErrInvalidArgument, pattern, err)
	}
	return re, nil
}

func reReplace(c *Call) (any, error) {
	if err := c.arity(3, 3); err != nil {
		return nil, err
	}
	re, err := compilePattern(c, 1)
	if err != nil {
		return nil, err
	}
	repl, err := c.str(2, "", "")
	if err != nil {
		return nil, err
	}
	return elementwise(c, c.Args[0], TypeString, func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, nil
		}
		return re.ReplaceAllString(s, repl), nil
	})
}

func reExtract(c *Call) (any, error) {
	if err := c.arity(2, 2); err != nil {
		return nil, err
	}
	re, err := compilePattern(c, 1)
	if err != nil {
		return nil, err
	}
	return elementwise(c, c.Args[0], TypeString, func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, nil
		}
		m := re.FindStringSubmatch(s)
		switch {
		case m == nil:
			return nil, nil
		case len(m) > 1:
			return m[1], nil
		}
		return m[0], nil
	})
}

func reMatch(c *Call) (any, error) {
	if err := c.arity(2, 2); err != nil {
		return nil, err
	}
	re, err := compilePattern(c, 1)
	if err != nil {
		return nil, err
	}
	return elementwise(c, c.Args[0], TypeBool, func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, nil
		}
		return re.MatchString(s), nil
	})
}
