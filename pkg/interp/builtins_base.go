package interp

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	dataframe "github.com/rocketlaunchr/dataframe-go"
)

var baseCapabilities = []Capability{
	// reductions
	{Name: "sum", Set: Base, Usage: "sum(col)", Fn: reduceSum},
	{Name: "mean", Set: Base, Usage: "mean(col)", Fn: reduceMean},
	{Name: "median", Set: Base, Usage: "median(col)", Fn: reduceMedian},
	{Name: "std", Set: Base, Usage: "std(col, ddof=1)", Fn: reduceStd},
	{Name: "min", Set: Base, Usage: "min(col)", Fn: reduceExtreme(false)},
	{Name: "max", Set: Base, Usage: "max(col)", Fn: reduceExtreme(true)},
	{Name: "count", Set: Base, Usage: "count(col) non-null values; count(df) rows", Fn: reduceCount},
	{Name: "mode", Set: Base, Usage: "mode(col)", Fn: reduceMode},
	{Name: "nunique", Set: Base, Usage: "nunique(col)", Fn: reduceNUnique},
	{Name: "unique", Set: Base, Usage: "unique(col) -> list", Fn: uniqueValues},

	// element-wise math
	{Name: "abs", Set: Base, Usage: "abs(x)", Fn: mathFn(math.Abs, true)},
	{Name: "round", Set: Base, Usage: "round(x, digits=0)", Fn: roundFn},
	{Name: "log", Set: Base, Usage: "log(x)", Fn: mathFn(math.Log, false)},
	{Name: "log1p", Set: Base, Usage: "log1p(x)", Fn: mathFn(math.Log1p, false)},
	{Name: "sqrt", Set: Base, Usage: "sqrt(x)", Fn: mathFn(math.Sqrt, false)},
	{Name: "clip", Set: Base, Usage: "clip(x, lower=none, upper=none)", Fn: clipFn},
	{Name: "ifelse", Set: Base, Usage: "ifelse(cond, a, b)", Fn: ifElse},

	// missing values
	{Name: "isna", Set: Base, Usage: "isna(x)", Fn: nullTest(true)},
	{Name: "notna", Set: Base, Usage: "notna(x)", Fn: nullTest(false)},
	{Name: "fillna", Set: Base, Usage: `fillna(x, value) or fillna(x, method="ffill"|"bfill")`, Fn: fillNA},
	{Name: "dropna", Set: Base, Usage: `dropna(df, subset=[cols], how="any"|"all")`, Fn: dropNA},

	// frame housekeeping
	{Name: "drop", Set: Base, Usage: "drop(df, cols...)", Fn: dropColumns},
	{Name: "rename", Set: Base, Usage: "rename(df, old, new) or rename(df, [olds], [news])", Fn: renameColumns},
	{Name: "sort", Set: Base, Usage: "sort(df, by..., desc=false)", Fn: sortFn},
	{Name: "dedupe", Set: Base, Usage: "dedupe(df, subset=[cols])", Fn: dedupe},
	{Name: "drop_duplicates", Set: Base, Usage: "drop_duplicates(df, subset=[cols])", Fn: dedupe},
	{Name: "head", Set: Base, Usage: "head(x, n=5)", Fn: headTail(false)},
	{Name: "tail", Set: Base, Usage: "tail(x, n=5)", Fn: headTail(true)},
	{Name: "astype", Set: Base, Usage: `astype(x, "int"|"float"|"str"|"bool")`, Fn: asType},
	{Name: "len", Set: Base, Usage: "len(x)", Fn: lengthOf},
	{Name: "nrow", Set: Base, Usage: "nrow(df)", Fn: nrow},
	{Name: "concat", Set: Base, Usage: "concat(a, b, ...) strings, or frames stacked by rows", Fn: concat},

	// strings
	{Name: "upper", Set: Base, Usage: "upper(x)", Fn: stringFn(strings.ToUpper)},
	{Name: "lower", Set: Base, Usage: "lower(x)", Fn: stringFn(strings.ToLower)},
	{Name: "trim", Set: Base, Usage: "trim(x)", Fn: stringFn(strings.TrimSpace)},
	{Name: "strip", Set: Base, Usage: "strip(x)", Fn: stringFn(strings.TrimSpace)},
	{Name: "contains", Set: Base, Usage: "contains(x, substr)", Fn: stringTest(strings.Contains)},
	{Name: "starts_with", Set: Base, Usage: "starts_with(x, prefix)", Fn: stringTest(strings.HasPrefix)},
	{Name: "ends_with", Set: Base, Usage: "ends_with(x, suffix)", Fn: stringTest(strings.HasSuffix)},
	{Name: "replace", Set: Base, Usage: "replace(x, old, new)", Fn: replaceFn},
}

// elementwise applies fn to a scalar, every element of a column, or every
// element of a list.
func elementwise(c *Call, v any, t DataType, fn func(any) (any, error)) (any, error) {
	switch val := v.(type) {
	case dataframe.Series:
		row := 0
		return mapSeries(val, t, func(e any) (any, error) {
			if err := checkRow(c.Ctx, row); err != nil {
				return nil, err
			}
			row++
			return fn(e)
		})
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			if err := checkRow(c.Ctx, i); err != nil {
				return nil, err
			}
			r, err := fn(e)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	}
	if !isScalar(v) {
		return nil, c.argError(0, "a column or scalar", v)
	}
	return fn(v)
}

// ===== Math =====

func mathFn(fn func(float64) float64, keepInt bool) Builtin {
	return func(c *Call) (any, error) {
		if err := c.arity(1, 1); err != nil {
			return nil, err
		}
		return elementwise(c, c.Args[0], TypeUnknown, func(v any) (any, error) {
			if v == nil {
				return nil, nil
			}
			f, ok := toFloat(v)
			if !ok {
				return nil, fmt.Errorf("%w: %s needs numbers, got %s", ErrTypeMismatch, c.Name, typeName(v))
			}
			r := fn(f)
			if math.IsNaN(r) {
				return nil, nil
			}
			if _, isInt := v.(int64); isInt && keepInt {
				return int64(r), nil
			}
			return r, nil
		})
	}
}

func roundFn(c *Call) (any, error) {
	if err := c.arity(1, 2); err != nil {
		return nil, err
	}
	digits, err := c.integer(1, "digits", 0)
	if err != nil {
		return nil, err
	}
	if d, ok := c.Named["decimals"].(int64); ok {
		digits = int(d)
	}
	scale := math.Pow(10, float64(digits))

	return elementwise(c, c.Args[0], TypeUnknown, func(v any) (any, error) {
		switch val := v.(type) {
		case nil:
			return nil, nil
		case int64:
			return val, nil
		case float64:
			return math.RoundToEven(val*scale) / scale, nil
		}
		return nil, fmt.Errorf("%w: round needs numbers, got %s", ErrTypeMismatch, typeName(v))
	})
}

func clipFn(c *Call) (any, error) {
	if err := c.arity(1, 3); err != nil {
		return nil, err
	}
	lower, _ := c.arg(1, "lower")
	upper, _ := c.arg(2, "upper")
	lo, hasLo := toFloat(lower)
	hi, hasHi := toFloat(upper)
	if (lower != nil && !hasLo) || (upper != nil && !hasHi) {
		return nil, fmt.Errorf("%w: clip bounds must be numbers", ErrTypeMismatch)
	}
	_, loInt := lower.(int64)
	_, hiInt := upper.(int64)
	intBounds := (lower == nil || loInt) && (upper == nil || hiInt)

	return elementwise(c, c.Args[0], TypeUnknown, func(v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: clip needs numbers, got %s", ErrTypeMismatch, typeName(v))
		}
		if hasLo && f < lo {
			f = lo
		}
		if hasHi && f > hi {
			f = hi
		}
		if _, isInt := v.(int64); isInt && intBounds {
			return int64(f), nil
		}
		return f, nil
	})
}

// valueAt reads row i of a column argument, or returns a scalar as is.
func valueAt(v any, i int) any {
	if s, ok := v.(dataframe.Series); ok {
		return s.Value(i)
	}
	return v
}

// rowsOf returns the common length of the column arguments, or -1 when all
// arguments are scalars.
func rowsOf(args ...any) (int, error) {
	n := -1
	for _, a := range args {
		if s, ok := a.(dataframe.Series); ok {
			if n >= 0 && s.NRows() != n {
				return 0, fmt.Errorf("%w: %d and %d rows", ErrLengthMismatch, n, s.NRows())
			}
			n = s.NRows()
		}
	}
	return n, nil
}

// ifElse picks a where cond holds and b elsewhere. Null conditions pick b.
func ifElse(c *Call) (any, error) {
	if err := c.arity(3, 3); err != nil {
		return nil, err
	}
	cond, a, b := c.Args[0], c.Args[1], c.Args[2]
	for i, v := range c.Args {
		if _, ok := v.(dataframe.Series); !ok && !isScalar(v) {
			return nil, c.argError(i, "a column or scalar", v)
		}
	}

	n, err := rowsOf(cond, a, b)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		ok, err := asBool(cond)
		if err != nil {
			return nil, err
		}
		if ok {
			return a, nil
		}
		return b, nil
	}

	name := "ifelse"
	for _, v := range []any{a, b, cond} {
		if s, ok := v.(dataframe.Series); ok {
			name = s.Name()
			break
		}
	}

	vals := make([]any, n)
	for i := 0; i < n; i++ {
		ok, err := asBool(valueAt(cond, i))
		if err != nil {
			return nil, err
		}
		if ok {
			vals[i] = valueAt(a, i)
		} else {
			vals[i] = valueAt(b, i)
		}
	}
	return newSeries(name, vals), nil
}

// ===== Missing values =====

func nullTest(wantNull bool) Builtin {
	return func(c *Call) (any, error) {
		if err := c.arity(1, 1); err != nil {
			return nil, err
		}
		return elementwise(c, c.Args[0], TypeBool, func(v any) (any, error) {
			return (v == nil) == wantNull, nil
		})
	}
}

func fillNA(c *Call) (any, error) {
	if err := c.arity(1, 2); err != nil {
		return nil, err
	}
	method, err := c.str(-1, "method", "")
	if err != nil {
		return nil, err
	}
	value, hasValue := c.arg(1, "value")
	if method == "" && !hasValue {
		return nil, fmt.Errorf("%w: fillna needs a value or a method", ErrArity)
	}

	fill := func(s dataframe.Series) (dataframe.Series, error) {
		return fillSeries(s, value, method)
	}

	switch target := c.Args[0].(type) {
	case dataframe.Series:
		return fill(target)
	case *dataframe.DataFrame:
		cols := make([]dataframe.Series, len(target.Series))
		for i, s := range target.Series {
			filled, err := fill(s)
			if err != nil {
				return nil, err
			}
			cols[i] = filled
		}
		return newFrame(cols...)
	case nil:
		return value, nil
	}
	if isScalar(c.Args[0]) {
		return c.Args[0], nil
	}
	return nil, c.argError(0, "a column or frame", c.Args[0])
}

func fillSeries(s dataframe.Series, value any, method string) (dataframe.Series, error) {
	vals := seriesValues(s)

	switch method {
	case "ffill", "pad":
		var last any
		for i, v := range vals {
			if v == nil {
				vals[i] = last
			} else {
				last = v
			}
		}
	case "bfill", "backfill":
		var next any
		for i := len(vals) - 1; i >= 0; i-- {
			if vals[i] == nil {
				vals[i] = next
			} else {
				next = vals[i]
			}
		}
	case "":
		fs, isSeries := value.(dataframe.Series)
		if isSeries && fs.NRows() != len(vals) {
			return nil, fmt.Errorf("%w: fill column has %d rows, expected %d", ErrLengthMismatch, fs.NRows(), len(vals))
		}
		if !isSeries && !isScalar(value) {
			return nil, fmt.Errorf("%w: fill value must be a scalar or column, got %s", ErrTypeMismatch, typeName(value))
		}
		for i, v := range vals {
			if v == nil {
				vals[i] = valueAt(value, i)
			}
		}
	default:
		return nil, fmt.Errorf("%w: unknown fill method %q", ErrInvalidArgument, method)
	}

	if t := seriesType(s); t != TypeUnknown && inferType(vals) == t {
		return newTypedSeries(s.Name(), t, vals), nil
	}
	return newSeries(s.Name(), vals), nil
}

func dropNA(c *Call) (any, error) {
	if err := c.arity(1, 2); err != nil {
		return nil, err
	}

	if s, ok := c.Args[0].(dataframe.Series); ok {
		mask := NewBitmap(s.NRows())
		for i := 0; i < s.NRows(); i++ {
			if s.Value(i) != nil {
				mask.Set(i)
			}
		}
		return filterSeries(s, mask), nil
	}

	df, err := c.frame(0)
	if err != nil {
		return nil, err
	}
	subset, err := c.names(1, "subset")
	if err != nil {
		return nil, err
	}
	how, err := c.str(-1, "how", "any")
	if err != nil {
		return nil, err
	}
	if how != "any" && how != "all" {
		return nil, fmt.Errorf("%w: how must be \"any\" or \"all\", got %q", ErrInvalidArgument, how)
	}

	cols := df.Series
	if len(subset) > 0 {
		cols = make([]dataframe.Series, len(subset))
		for i, name := range subset {
			if cols[i], err = column(df, name); err != nil {
				return nil, err
			}
		}
	}

	mask := NewBitmap(df.NRows())
	for i := 0; i < df.NRows(); i++ {
		if err := checkRow(c.Ctx, i); err != nil {
			return nil, err
		}
		present := 0
		for _, s := range cols {
			if s.Value(i) != nil {
				present++
			}
		}
		if (how == "any" && present == len(cols)) || (how == "all" && present > 0) {
			mask.Set(i)
		}
	}
	return filterFrame(df, mask), nil
}

// ===== Frame housekeeping =====

func dropColumns(c *Call) (any, error) {
	df, err := c.frame(0)
	if err != nil {
		return nil, err
	}
	names, err := c.names(1, "columns")
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: drop needs at least one column", ErrArity)
	}

	remove := make(map[string]bool, len(names))
	for _, name := range names {
		if !hasColumn(df, name) {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
		}
		remove[name] = true
	}

	var keep []dataframe.Series
	for _, s := range df.Series {
		if !remove[s.Name()] {
			keep = append(keep, s)
		}
	}
	if len(keep) == 0 {
		return dataframe.NewDataFrame(), nil
	}
	return newFrame(keep...)
}

func toNames(v any) ([]string, error) {
	if name, ok := columnName(v); ok {
		return []string{name}, nil
	}
	switch val := v.(type) {
	case []any:
		out := make([]string, len(val))
		for i, e := range val {
			s, ok := columnName(e)
			if !ok {
				return nil, fmt.Errorf("%w: column names must be strings, got %s", ErrTypeMismatch, typeName(e))
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: column names must be strings, got %s", ErrTypeMismatch, typeName(v))
}

func renameColumns(c *Call) (any, error) {
	if err := c.arity(3, 3); err != nil {
		return nil, err
	}
	df, err := c.frame(0)
	if err != nil {
		return nil, err
	}
	olds, err := toNames(c.Args[1])
	if err != nil {
		return nil, err
	}
	news, err := toNames(c.Args[2])
	if err != nil {
		return nil, err
	}
	if len(olds) != len(news) {
		return nil, fmt.Errorf("%w: %d old names for %d new names", ErrLengthMismatch, len(olds), len(news))
	}

	mapping := make(map[string]string, len(olds))
	for i, old := range olds {
		if !hasColumn(df, old) {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, old)
		}
		mapping[old] = news[i]
	}

	cols := make([]dataframe.Series, len(df.Series))
	for i, s := range df.Series {
		if name, ok := mapping[s.Name()]; ok {
			cols[i] = renamed(s, name)
		} else {
			cols[i] = s
		}
	}
	return newFrame(cols...)
}

// sortedIndices returns a stable ordering of rows by keys. Nulls sort last in
// either direction.
func sortedIndices(keys []dataframe.Series, desc bool) ([]int, error) {
	n := 0
	if len(keys) > 0 {
		n = keys[0].NRows()
	}
	idx := headIndices(n, n)

	var sortErr error
	sort.SliceStable(idx, func(x, y int) bool {
		for _, k := range keys {
			a, b := k.Value(idx[x]), k.Value(idx[y])
			switch {
			case a == nil && b == nil:
				continue
			case a == nil:
				return false
			case b == nil:
				return true
			}
			cmp, ok := order(a, b)
			if !ok {
				sortErr = fmt.Errorf("%w: cannot order %s and %s", ErrTypeMismatch, typeName(a), typeName(b))
				return false
			}
			if cmp != 0 {
				return (cmp < 0) != desc
			}
		}
		return false
	})
	return idx, sortErr
}

func sortFn(c *Call) (any, error) {
	if err := c.arity(1, -1); err != nil {
		return nil, err
	}
	desc, err := c.boolean("desc", false)
	if err != nil {
		return nil, err
	}
	if asc, ok := c.Named["ascending"].(bool); ok {
		desc = !asc
	}

	if s, ok := c.Args[0].(dataframe.Series); ok {
		idx, err := sortedIndices([]dataframe.Series{s}, desc)
		if err != nil {
			return nil, err
		}
		return gather(s, idx), nil
	}

	df, err := c.frame(0)
	if err != nil {
		return nil, err
	}
	by, err := c.names(1, "by")
	if err != nil {
		return nil, err
	}
	if len(by) == 0 {
		return nil, fmt.Errorf("%w: sort needs at least one column", ErrArity)
	}
	keys := make([]dataframe.Series, len(by))
	for i, name := range by {
		if keys[i], err = column(df, name); err != nil {
			return nil, err
		}
	}
	idx, err := sortedIndices(keys, desc)
	if err != nil {
		return nil, err
	}
	return takeRows(df, idx), nil
}

// dedupe keeps the first occurrence of every distinct row.
func dedupe(c *Call) (any, error) {
	if err := c.arity(1, 2); err != nil {
		return nil, err
	}

	if s, ok := c.Args[0].(dataframe.Series); ok {
		return filterSeries(s, firstOccurrences([]dataframe.Series{s}, s.NRows())), nil
	}

	df, err := c.frame(0)
	if err != nil {
		return nil, err
	}
	subset, err := c.names(1, "subset")
	if err != nil {
		return nil, err
	}
	cols := df.Series
	if len(subset) > 0 {
		cols = make([]dataframe.Series, len(subset))
		for i, name := range subset {
			if cols[i], err = column(df, name); err != nil {
				return nil, err
			}
		}
	}
	return filterFrame(df, firstOccurrences(cols, df.NRows())), nil
}

func firstOccurrences(cols []dataframe.Series, n int) *Bitmap {
	mask := NewBitmap(n)
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		key := rowKey(cols, i)
		if !seen[key] {
			seen[key] = true
			mask.Set(i)
		}
	}
	return mask
}

func headTail(fromEnd bool) Builtin {
	return func(c *Call) (any, error) {
		if err := c.arity(1, 2); err != nil {
			return nil, err
		}
		n, err := c.integer(1, "n", 5)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: n must not be negative", ErrInvalidArgument)
		}
		pick := headIndices
		if fromEnd {
			pick = tailIndices
		}

		switch v := c.Args[0].(type) {
		case dataframe.Series:
			return gather(v, pick(v.NRows(), n)), nil
		case *dataframe.DataFrame:
			return takeRows(v, pick(v.NRows(), n)), nil
		}
		return nil, c.argError(0, "a column or frame", c.Args[0])
	}
}

// ===== Type conversion =====

func parseType(name string) (DataType, error) {
	switch strings.ToLower(name) {
	case "int", "int64", "integer":
		return TypeInt64, nil
	case "float", "float64", "double", "number":
		return TypeFloat64, nil
	case "str", "string", "object", "category":
		return TypeString, nil
	case "bool", "boolean":
		return TypeBool, nil
	}
	return TypeUnknown, fmt.Errorf("%w: unknown type %q", ErrInvalidArgument, name)
}

func convert(v any, t DataType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case TypeString:
		return formatValue(v), nil

	case TypeFloat64:
		switch val := v.(type) {
		case bool:
			if val {
				return 1.0, nil
			}
			return 0.0, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: cannot convert %q to float", ErrInvalidArgument, val)
			}
			return f, nil
		}
		if f, ok := toFloat(v); ok {
			return f, nil
		}

	case TypeInt64:
		switch val := v.(type) {
		case int64:
			return val, nil
		case bool:
			if val {
				return int64(1), nil
			}
			return int64(0), nil
		case string:
			s := strings.TrimSpace(val)
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return i, nil
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: cannot convert %q to int", ErrInvalidArgument, val)
			}
			return int64(math.Trunc(f)), nil
		}
		if f, ok := toFloat(v); ok {
			if math.IsInf(f, 0) {
				return nil, fmt.Errorf("%w: cannot convert infinity to int", ErrInvalidArgument)
			}
			return int64(math.Trunc(f)), nil
		}

	case TypeBool:
		switch val := v.(type) {
		case bool:
			return val, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(val)) {
			case "true", "yes", "y", "1":
				return true, nil
			case "false", "no", "n", "0", "":
				return false, nil
			}
			return true, nil
		}
		if f, ok := toFloat(v); ok {
			return f != 0, nil
		}
	}
	return nil, fmt.Errorf("%w: cannot convert %s to %s", ErrInvalidArgument, typeName(v), t)
}

func asType(c *Call) (any, error) {
	if err := c.arity(2, 2); err != nil {
		return nil, err
	}
	name, err := c.str(1, "", "")
	if err != nil {
		return nil, err
	}
	t, err := parseType(name)
	if err != nil {
		return nil, err
	}
	conv := func(v any) (any, error) { return convert(v, t) }

	if df, ok := c.Args[0].(*dataframe.DataFrame); ok {
		cols := make([]dataframe.Series, len(df.Series))
		for i, s := range df.Series {
			if cols[i], err = mapSeries(s, t, conv); err != nil {
				return nil, err
			}
		}
		return newFrame(cols...)
	}
	return elementwise(c, c.Args[0], t, conv)
}

func lengthOf(c *Call) (any, error) {
	if err := c.arity(1, 1); err != nil {
		return nil, err
	}
	switch v := c.Args[0].(type) {
	case dataframe.Series:
		return int64(v.NRows()), nil
	case *dataframe.DataFrame:
		return int64(v.NRows()), nil
	case []any:
		return int64(len(v)), nil
	case string:
		return int64(utf8.RuneCountInString(v)), nil
	}
	return nil, c.argError(0, "a column, frame, list or string", c.Args[0])
}

func nrow(c *Call) (any, error) {
	if err := c.arity(1, 1); err != nil {
		return nil, err
	}
	df, err := c.frame(0)
	if err != nil {
		return nil, err
	}
	return int64(df.NRows()), nil
}

func concat(c *Call) (any, error) {
	if err := c.arity(2, -1); err != nil {
		return nil, err
	}

	frames := make([]*dataframe.DataFrame, 0, len(c.Args))
	for _, a := range c.Args {
		if df, ok := a.(*dataframe.DataFrame); ok {
			frames = append(frames, df)
		}
	}
	if len(frames) == len(c.Args) {
		return stackFrames(frames)
	}
	if len(frames) > 0 {
		return nil, fmt.Errorf("%w: concat cannot mix frames with other values", ErrTypeMismatch)
	}

	for i, a := range c.Args {
		if _, ok := a.(dataframe.Series); !ok && !isScalar(a) {
			return nil, c.argError(i, "a column or scalar", a)
		}
	}
	n, err := rowsOf(c.Args...)
	if err != nil {
		return nil, err
	}

	join := func(i int) any {
		var sb strings.Builder
		for _, a := range c.Args {
			v := valueAt(a, i)
			if v == nil {
				return nil
			}
			sb.WriteString(formatValue(v))
		}
		return sb.String()
	}

	if n < 0 {
		return join(0), nil
	}
	vals := make([]any, n)
	for i := range vals {
		vals[i] = join(i)
	}
	name := "concat"
	for _, a := range c.Args {
		if s, ok := a.(dataframe.Series); ok {
			name = s.Name()
			break
		}
	}
	return newTypedSeries(name, TypeString, vals), nil
}

// stackFrames appends frames by rows. Columns missing from a frame are null.
func stackFrames(frames []*dataframe.DataFrame) (*dataframe.DataFrame, error) {
	var names []string
	seen := make(map[string]bool)
	for _, df := range frames {
		for _, name := range df.Names() {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}

	cols := make([]dataframe.Series, len(names))
	for i, name := range names {
		var vals []any
		for _, df := range frames {
			s, err := column(df, name)
			if err != nil {
				vals = append(vals, make([]any, df.NRows())...)
				continue
			}
			vals = append(vals, seriesValues(s)...)
		}
		cols[i] = newSeries(name, vals)
	}
	if len(cols) == 0 {
		return dataframe.NewDataFrame(), nil
	}
	return newFrame(cols...)
}

// ===== String Operations =====

func stringFn(fn func(string) string) Builtin {
	return func(c *Call) (any, error) {
		if err := c.arity(1, 1); err != nil {
			return nil, err
		}
		return elementwise(c, c.Args[0], TypeString, func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return nil, nil
			}
			return fn(s), nil
		})
	}
}

func stringTest(fn func(s, pattern string) bool) Builtin {
	return func(c *Call) (any, error) {
		if err := c.arity(2, 2); err != nil {
			return nil, err
		}
		pattern, err := c.str(1, "", "")
		if err != nil {
			return nil, err
		}
		return elementwise(c, c.Args[0], TypeBool, func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return nil, nil
			}
			return fn(s, pattern), nil
		})
	}
}

// replaceFn substitutes substrings of string values and whole values of any
// other type. A string value equal to old is replaced by new as is, so
// replace(x, "?", none) turns placeholders into nulls.
func replaceFn(c *Call) (any, error) {
	if err := c.arity(3, 3); err != nil {
		return nil, err
	}
	old, repl := c.Args[1], c.Args[2]
	if !isScalar(old) || !isScalar(repl) {
		return nil, fmt.Errorf("%w: replace values must be scalars", ErrTypeMismatch)
	}

	swap := func(v any) (any, error) {
		if v == nil {
			if old == nil {
				return repl, nil
			}
			return nil, nil
		}
		if cmp, ok := order(v, old); ok && cmp == 0 {
			return repl, nil
		}
		s, sok := v.(string)
		o, ook := old.(string)
		r, rok := repl.(string)
		if sok && ook && rok && o != "" {
			return strings.ReplaceAll(s, o, r), nil
		}
		return v, nil
	}

	if df, ok := c.Args[0].(*dataframe.DataFrame); ok {
		cols := make([]dataframe.Series, len(df.Series))
		for i, s := range df.Series {
			out, err := mapSeries(s, TypeUnknown, swap)
			if err != nil {
				return nil, err
			}
			cols[i] = out
		}
		return newFrame(cols...)
	}
	return elementwise(c, c.Args[0], TypeUnknown, swap)
}
