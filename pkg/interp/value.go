package interp

import (
	"errors"
	"fmt"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/akhildatla/dfagent/pkg/chart"
)

// Error definitions
var (
	ErrNameNotFound      = errors.New("name not found")
	ErrColumnNotFound    = errors.New("column not found")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrArity             = errors.New("wrong number of arguments")
	ErrLengthMismatch    = errors.New("length mismatch")
	ErrDivisionByZero    = errors.New("division by zero")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrStepLimitExceeded = errors.New("step limit exceeded")
)

// Grouped is a frame split by key columns, produced by group_by and consumed
// by summarize.
type Grouped struct {
	Frame *dataframe.DataFrame
	Keys  []string
}

// typeName names the DFL type of a runtime value for error messages.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case bool:
		return "bool"
	case []any:
		return "list"
	case dataframe.Series:
		return "column"
	case *dataframe.DataFrame:
		return "frame"
	case *Grouped:
		return "grouped frame"
	case *chart.Chart:
		return "chart"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, int64, float64, string, bool:
		return true
	}
	return false
}

// asBool interprets a scalar in a boolean context. Null is false.
func asBool(v any) (bool, error) {
	switch val := v.(type) {
	case nil:
		return false, nil
	case bool:
		return val, nil
	}
	return false, fmt.Errorf("%w: expected bool, got %s", ErrTypeMismatch, typeName(v))
}

// ===== Frame helpers =====

// column retrieves a Series from a DataFrame by name.
func column(df *dataframe.DataFrame, name string) (dataframe.Series, error) {
	idx, err := df.NameToColumn(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return df.Series[idx], nil
}

func hasColumn(df *dataframe.DataFrame, name string) bool {
	_, err := df.NameToColumn(name)
	return err == nil
}

// newFrame assembles a frame, reporting shape problems as errors instead of
// the panics dataframe.NewDataFrame raises.
func newFrame(cols ...dataframe.Series) (*dataframe.DataFrame, error) {
	seen := make(map[string]bool, len(cols))
	for i, s := range cols {
		if seen[s.Name()] {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrInvalidArgument, s.Name())
		}
		seen[s.Name()] = true
		if i > 0 && s.NRows() != cols[0].NRows() {
			return nil, fmt.Errorf("%w: column %q has %d rows, expected %d",
				ErrLengthMismatch, s.Name(), s.NRows(), cols[0].NRows())
		}
	}
	return dataframe.NewDataFrame(cols...), nil
}

// withColumn returns a new frame where column name is replaced by s, or s
// appended when no such column exists.
func withColumn(df *dataframe.DataFrame, name string, s dataframe.Series) (*dataframe.DataFrame, error) {
	if len(df.Series) > 0 && s.NRows() != df.NRows() {
		return nil, fmt.Errorf("%w: column %q has %d rows, frame has %d",
			ErrLengthMismatch, name, s.NRows(), df.NRows())
	}
	s = renamed(s, name)

	cols := make([]dataframe.Series, 0, len(df.Series)+1)
	replaced := false
	for _, c := range df.Series {
		if c.Name() == name {
			cols = append(cols, s)
			replaced = true
		} else {
			cols = append(cols, c)
		}
	}
	if !replaced {
		cols = append(cols, s)
	}
	return newFrame(cols...)
}

// assignColumn stores v as column name of df. Scalars are broadcast.
func assignColumn(df *dataframe.DataFrame, name string, v any) (*dataframe.DataFrame, error) {
	switch val := v.(type) {
	case dataframe.Series:
		return withColumn(df, name, val)
	case []any:
		return withColumn(df, name, newSeries(name, val))
	default:
		if !isScalar(v) {
			return nil, fmt.Errorf("%w: cannot store %s as a column", ErrTypeMismatch, typeName(v))
		}
		return withColumn(df, name, broadcast(name, v, df.NRows()))
	}
}

// takeRows builds a frame from the rows of df at indices.
func takeRows(df *dataframe.DataFrame, indices []int) *dataframe.DataFrame {
	cols := make([]dataframe.Series, len(df.Series))
	for i, s := range df.Series {
		cols[i] = gather(s, indices)
	}
	return dataframe.NewDataFrame(cols...)
}

// filterFrame keeps the rows of df whose bit is set.
func filterFrame(df *dataframe.DataFrame, mask *Bitmap) *dataframe.DataFrame {
	return takeRows(df, mask.Indices())
}

// selectColumns builds a frame with the named columns in the given order.
func selectColumns(df *dataframe.DataFrame, names []string) (*dataframe.DataFrame, error) {
	cols := make([]dataframe.Series, 0, len(names))
	for _, name := range names {
		s, err := column(df, name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, s.Copy())
	}
	return newFrame(cols...)
}

// rowKey renders the values of the given columns at row i as a map key.
func rowKey(cols []dataframe.Series, i int) string {
	key := make([]byte, 0, 32)
	for _, s := range cols {
		v := normalizeKey(s.Value(i))
		key = fmt.Appendf(key, "%T:%v\x1f", v, v)
	}
	return string(key)
}

// normalizeKey makes integral floats and ints compare equal as map keys.
func normalizeKey(v any) any {
	if i, ok := v.(int64); ok {
		return float64(i)
	}
	return v
}
