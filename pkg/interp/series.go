package interp

import (
	"fmt"
	"math"
	"strconv"

	dataframe "github.com/rocketlaunchr/dataframe-go"
)

// DataType represents the element type of a series or scalar.
type DataType uint8

const (
	TypeInt64 DataType = iota
	TypeFloat64
	TypeString
	TypeBool
	TypeUnknown
)

// String returns the string representation of the data type.
func (t DataType) String() string {
	switch t {
	case TypeInt64:
		return "int"
	case TypeFloat64:
		return "float"
	case TypeString:
		return "str"
	case TypeBool:
		return "bool"
	default:
		return "unknown"
	}
}

// seriesType returns the DataType for a dataframe-go Series.
func seriesType(s dataframe.Series) DataType {
	switch ss := s.(type) {
	case *dataframe.SeriesInt64:
		return TypeInt64
	case *dataframe.SeriesFloat64:
		return TypeFloat64
	case *dataframe.SeriesString:
		return TypeString
	case *dataframe.SeriesGeneric:
		switch ss.Type() {
		case "generic(bool)", "bool":
			return TypeBool
		}
	}
	return TypeUnknown
}

// valueType returns the DataType of a scalar value.
func valueType(v any) DataType {
	switch v.(type) {
	case int64:
		return TypeInt64
	case float64:
		return TypeFloat64
	case string:
		return TypeString
	case bool:
		return TypeBool
	}
	return TypeUnknown
}

func isNumeric(t DataType) bool {
	return t == TypeInt64 || t == TypeFloat64
}

// toFloat converts a numeric scalar to float64.
func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) {
			return 0, false
		}
		return val, true
	case int64:
		return float64(val), true
	case int:
		return float64(val), true
	}
	return 0, false
}

// floatAt extracts a float64 value from a Series at index i.
// Returns (value, ok) where ok is false if nil or not numeric.
func floatAt(s dataframe.Series, i int) (float64, bool) {
	if s == nil || i < 0 || i >= s.NRows() {
		return 0, false
	}
	return toFloat(s.Value(i))
}

// stringAt extracts a string value from a Series at index i.
func stringAt(s dataframe.Series, i int) (string, bool) {
	if s == nil || i < 0 || i >= s.NRows() {
		return "", false
	}
	str, ok := s.Value(i).(string)
	return str, ok
}

// seriesValues returns the values of s with nulls as nil.
func seriesValues(s dataframe.Series) []any {
	n := s.NRows()
	vals := make([]any, n)
	for i := 0; i < n; i++ {
		vals[i] = s.Value(i)
	}
	return vals
}

// inferType picks the narrowest series type able to hold every non-nil value.
// A column of only nulls is float, matching how missing data is usually read.
func inferType(vals []any) DataType {
	kind := TypeUnknown
	for _, v := range vals {
		if v == nil {
			continue
		}
		t := valueType(v)
		switch {
		case t == TypeUnknown:
			return TypeUnknown
		case kind == TypeUnknown:
			kind = t
		case kind != t:
			if isNumeric(kind) && isNumeric(t) {
				kind = TypeFloat64
			} else {
				return TypeUnknown
			}
		}
	}
	if kind == TypeUnknown {
		return TypeFloat64
	}
	return kind
}

// newSeries builds a series whose type is inferred from vals. Mixed values
// fall back to a string series.
func newSeries(name string, vals []any) dataframe.Series {
	t := inferType(vals)
	if t == TypeUnknown {
		strs := make([]any, len(vals))
		for i, v := range vals {
			if v != nil {
				strs[i] = formatValue(v)
			}
		}
		return dataframe.NewSeriesString(name, nil, strs...)
	}
	return newTypedSeries(name, t, vals)
}

// newTypedSeries builds a series of type t. Callers guarantee vals fit t.
func newTypedSeries(name string, t DataType, vals []any) dataframe.Series {
	switch t {
	case TypeInt64:
		return dataframe.NewSeriesInt64(name, nil, vals...)
	case TypeFloat64:
		floats := make([]any, len(vals))
		for i, v := range vals {
			if f, ok := toFloat(v); ok {
				floats[i] = f
			} else if v != nil {
				floats[i] = v
			}
		}
		return dataframe.NewSeriesFloat64(name, nil, floats...)
	case TypeString:
		return dataframe.NewSeriesString(name, nil, vals...)
	case TypeBool:
		return dataframe.NewSeriesGeneric(name, false, nil, vals...)
	}
	return newSeries(name, vals)
}

func newBoolSeries(name string, data []bool) dataframe.Series {
	vals := make([]any, len(data))
	for i, v := range data {
		vals[i] = v
	}
	return dataframe.NewSeriesGeneric(name, false, nil, vals...)
}

// broadcast builds a series of n copies of a scalar.
func broadcast(name string, v any, n int) dataframe.Series {
	vals := make([]any, n)
	for i := range vals {
		vals[i] = v
	}
	return newSeries(name, vals)
}

// gather creates a series with the rows of src at indices. A negative index
// yields a null.
func gather(src dataframe.Series, indices []int) dataframe.Series {
	vals := make([]any, len(indices))
	for k, idx := range indices {
		if idx >= 0 {
			vals[k] = src.Value(idx)
		}
	}

	if t := seriesType(src); t != TypeUnknown {
		return newTypedSeries(src.Name(), t, vals)
	}

	// Types this package does not construct itself (time, mixed) keep their
	// concrete series by appending into an emptied copy.
	out := src.Copy()
	out.Reset()
	for _, v := range vals {
		out.Append(v)
	}
	return out
}

// filterSeries applies a bitmap filter to a Series and returns a new filtered Series.
func filterSeries(s dataframe.Series, mask *Bitmap) dataframe.Series {
	return gather(s, mask.Indices())
}

// mapSeries applies fn to every value of s. The result type is t, or inferred
// from the results when t is TypeUnknown.
func mapSeries(s dataframe.Series, t DataType, fn func(v any) (any, error)) (dataframe.Series, error) {
	n := s.NRows()
	vals := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := fn(s.Value(i))
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	if t == TypeUnknown {
		return newSeries(s.Name(), vals), nil
	}
	return newTypedSeries(s.Name(), t, vals), nil
}

// renamed returns a copy of s called name.
func renamed(s dataframe.Series, name string) dataframe.Series {
	c := s.Copy()
	c.Rename(name)
	return c
}

// formatValue renders a scalar the way it is shown to users.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(val)
	}
}
