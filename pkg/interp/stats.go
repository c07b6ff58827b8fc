package interp

import (
	"fmt"
	"math"
	"sort"

	dataframe "github.com/rocketlaunchr/dataframe-go"
)

// ===== Aggregation Operations =====
//
// Reductions skip nulls. They accept a column or a list.

// observed returns the non-null values of the first argument and their type.
func observed(c *Call) ([]any, DataType, error) {
	if err := c.arity(1, 1); err != nil {
		return nil, TypeUnknown, err
	}

	var all []any
	t := TypeUnknown
	switch v := c.Args[0].(type) {
	case dataframe.Series:
		all = seriesValues(v)
		t = seriesType(v)
	case []any:
		all = v
		t = inferType(v)
	default:
		return nil, TypeUnknown, c.argError(0, "a column", v)
	}

	out := make([]any, 0, len(all))
	for _, v := range all {
		if v != nil {
			out = append(out, v)
		}
	}
	if t == TypeUnknown {
		t = inferType(out)
	}
	return out, t, nil
}

func numeric(c *Call) ([]float64, DataType, error) {
	vals, t, err := observed(c)
	if err != nil {
		return nil, t, err
	}
	if !isNumeric(t) && !(t == TypeBool && c.Name == "sum") {
		return nil, t, fmt.Errorf("%w: %s needs numbers, got %s values", ErrTypeMismatch, c.Name, t)
	}
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if b, ok := v.(bool); ok {
			if b {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
			continue
		}
		if f, ok := toFloat(v); ok {
			out = append(out, f)
		}
	}
	return out, t, nil
}

func reduceSum(c *Call) (any, error) {
	vals, t, err := numeric(c)
	if err != nil {
		return nil, err
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	if t == TypeFloat64 {
		return sum, nil
	}
	return int64(sum), nil
}

func reduceMean(c *Call) (any, error) {
	vals, _, err := numeric(c)
	if err != nil || len(vals) == 0 {
		return nil, err
	}
	return mean(vals), nil
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func reduceMedian(c *Call) (any, error) {
	vals, _, err := numeric(c)
	if err != nil || len(vals) == 0 {
		return nil, err
	}
	return quantile(vals, 0.5), nil
}

// quantile uses linear interpolation between closest ranks.
func quantile(vals []float64, q float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// reduceStd is the sample standard deviation unless ddof says otherwise.
func reduceStd(c *Call) (any, error) {
	ddof, err := c.integer(-1, "ddof", 1)
	if err != nil {
		return nil, err
	}
	vals, _, err := numeric(c)
	if err != nil {
		return nil, err
	}
	if len(vals)-ddof <= 0 {
		return nil, nil
	}
	return stddev(vals, ddof), nil
}

func stddev(vals []float64, ddof int) float64 {
	m := mean(vals)
	var ss float64
	for _, v := range vals {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(vals)-ddof))
}

func reduceExtreme(wantMax bool) Builtin {
	return func(c *Call) (any, error) {
		vals, _, err := observed(c)
		if err != nil || len(vals) == 0 {
			return nil, err
		}
		best := vals[0]
		for _, v := range vals[1:] {
			cmp, ok := order(v, best)
			if !ok {
				return nil, fmt.Errorf("%w: cannot compare %s and %s", ErrTypeMismatch, typeName(v), typeName(best))
			}
			if (wantMax && cmp > 0) || (!wantMax && cmp < 0) {
				best = v
			}
		}
		return best, nil
	}
}

func reduceCount(c *Call) (any, error) {
	if err := c.arity(1, 1); err != nil {
		return nil, err
	}
	if df, ok := c.Args[0].(*dataframe.DataFrame); ok {
		return int64(df.NRows()), nil
	}
	vals, _, err := observed(c)
	if err != nil {
		return nil, err
	}
	return int64(len(vals)), nil
}

// reduceMode returns the most frequent value; ties go to the smallest.
func reduceMode(c *Call) (any, error) {
	vals, _, err := observed(c)
	if err != nil || len(vals) == 0 {
		return nil, err
	}

	counts := make(map[any]int)
	for _, v := range vals {
		counts[normalizeKey(v)]++
	}

	var best any
	bestCount := 0
	for _, v := range vals {
		n := counts[normalizeKey(v)]
		switch {
		case n > bestCount:
			best, bestCount = v, n
		case n == bestCount:
			if cmp, ok := order(v, best); ok && cmp < 0 {
				best = v
			}
		}
	}
	return best, nil
}

// distinct returns the non-null values of vals in order of first appearance.
func distinct(vals []any) []any {
	seen := make(map[any]bool)
	var out []any
	for _, v := range vals {
		if v == nil {
			continue
		}
		k := normalizeKey(v)
		if !seen[k] {
			seen[k] = true
			out = append(out, v)
		}
	}
	return out
}

func reduceNUnique(c *Call) (any, error) {
	vals, _, err := observed(c)
	if err != nil {
		return nil, err
	}
	return int64(len(distinct(vals))), nil
}

func uniqueValues(c *Call) (any, error) {
	vals, _, err := observed(c)
	if err != nil {
		return nil, err
	}
	out := distinct(vals)
	if out == nil {
		out = []any{}
	}
	return out, nil
}
