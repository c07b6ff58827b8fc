package interp

import (
	"context"
	"fmt"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/akhildatla/dfagent/pkg/dsl"
)

func asFrame(v any, verb string) (*dataframe.DataFrame, error) {
	switch f := v.(type) {
	case *dataframe.DataFrame:
		return f, nil
	case *Grouped:
		return nil, fmt.Errorf("%w: %s cannot follow group_by; use summarize", ErrTypeMismatch, verb)
	}
	return nil, fmt.Errorf("%w: %s needs a frame, got %s", ErrTypeMismatch, verb, typeName(v))
}

// ===== Select / Filter / Mutate / Take =====

func (in *Interpreter) selectVerb(left any, s *dsl.SelectExpr) (any, error) {
	df, err := asFrame(left, "select")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, c := range s.Columns {
		if id, ok := c.(*dsl.Ident); ok && hasColumn(df, id.Name) {
			names = append(names, id.Name)
			continue
		}
		v, err := in.eval(c, df)
		if err != nil {
			return nil, err
		}
		switch val := v.(type) {
		case string:
			names = append(names, val)
		case dataframe.Series:
			names = append(names, val.Name())
		case []any:
			for _, e := range val {
				name, ok := columnName(e)
				if !ok {
					return nil, fmt.Errorf("%w: select: column names must be strings, got %s", ErrTypeMismatch, typeName(e))
				}
				names = append(names, name)
			}
		default:
			return nil, fmt.Errorf("%w: select: column names must be strings, got %s", ErrTypeMismatch, typeName(v))
		}
	}
	return selectColumns(df, names)
}

func (in *Interpreter) filterVerb(left any, f *dsl.FilterExpr) (any, error) {
	df, err := asFrame(left, "filter")
	if err != nil {
		return nil, err
	}

	cond, err := in.eval(f.Condition, df)
	if err != nil {
		return nil, err
	}

	switch c := cond.(type) {
	case dataframe.Series:
		if c.NRows() != df.NRows() {
			return nil, fmt.Errorf("%w: filter mask has %d rows, frame has %d", ErrLengthMismatch, c.NRows(), df.NRows())
		}
		mask, err := maskBitmap(c)
		if err != nil {
			return nil, err
		}
		return filterFrame(df, mask), nil
	case bool, nil:
		keep, _ := asBool(c)
		if keep {
			return filterFrame(df, NewAllSetBitmap(df.NRows())), nil
		}
		return filterFrame(df, NewBitmap(df.NRows())), nil
	}
	return nil, fmt.Errorf("%w: filter condition must be boolean, got %s", ErrTypeMismatch, typeName(cond))
}

// mutateVerb evaluates assignments in order, so later ones see earlier results.
func (in *Interpreter) mutateVerb(left any, m *dsl.MutateExpr) (any, error) {
	df, err := asFrame(left, "mutate")
	if err != nil {
		return nil, err
	}

	for _, a := range m.Assignments {
		v, err := in.eval(a.Value, df)
		if err != nil {
			return nil, err
		}
		df, err = assignColumn(df, a.Name, v)
		if err != nil {
			return nil, err
		}
	}
	return df, nil
}

func (in *Interpreter) takeVerb(left any, t *dsl.TakeExpr) (any, error) {
	v, err := in.eval(t.Count, nil)
	if err != nil {
		return nil, err
	}
	n, ok := v.(int64)
	if !ok || n < 0 {
		return nil, fmt.Errorf("%w: take needs a non-negative int, got %v", ErrInvalidArgument, v)
	}

	switch l := left.(type) {
	case dataframe.Series:
		return gather(l, headIndices(l.NRows(), int(n))), nil
	}
	df, err := asFrame(left, "take")
	if err != nil {
		return nil, err
	}
	return takeRows(df, headIndices(df.NRows(), int(n))), nil
}

func headIndices(rows, n int) []int {
	n = min(n, rows)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func tailIndices(rows, n int) []int {
	n = min(n, rows)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rows - n + i
	}
	return idx
}

// ===== GroupBy / Summarize =====

func (in *Interpreter) groupByVerb(left any, g *dsl.GroupByExpr) (any, error) {
	df, err := asFrame(left, "group_by")
	if err != nil {
		return nil, err
	}
	for _, k := range g.Keys {
		if !hasColumn(df, k) {
			return nil, fmt.Errorf("%w: group_by key %q", ErrColumnNotFound, k)
		}
	}
	return &Grouped{Frame: df, Keys: g.Keys}, nil
}

// groupRows partitions the rows of df by the key columns. Groups are returned
// in order of first appearance; with no keys every row is one group.
func groupRows(ctx context.Context, df *dataframe.DataFrame, keys []string) ([][]int, error) {
	n := df.NRows()
	if len(keys) == 0 {
		return [][]int{headIndices(n, n)}, nil
	}

	cols := make([]dataframe.Series, len(keys))
	for i, k := range keys {
		s, err := column(df, k)
		if err != nil {
			return nil, err
		}
		cols[i] = s
	}

	var groups [][]int
	pos := make(map[string]int)
	for i := 0; i < n; i++ {
		if err := checkRow(ctx, i); err != nil {
			return nil, err
		}
		key := rowKey(cols, i)
		g, seen := pos[key]
		if !seen {
			g = len(groups)
			pos[key] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups, nil
}

func (in *Interpreter) summarizeVerb(left any, s *dsl.SummarizeExpr) (any, error) {
	var df *dataframe.DataFrame
	var keys []string
	switch l := left.(type) {
	case *Grouped:
		df, keys = l.Frame, l.Keys
	case *dataframe.DataFrame:
		df = l
	default:
		return nil, fmt.Errorf("%w: summarize needs a frame, got %s", ErrTypeMismatch, typeName(left))
	}

	groups, err := groupRows(in.ctx, df, keys)
	if err != nil {
		return nil, err
	}

	results := make([][]any, len(s.Aggregations))
	for i := range results {
		results[i] = make([]any, len(groups))
	}
	for g, rows := range groups {
		sub := df
		if len(keys) > 0 {
			sub = takeRows(df, rows)
		}
		for a, agg := range s.Aggregations {
			v, err := in.aggregate(agg, sub)
			if err != nil {
				return nil, err
			}
			results[a][g] = v
		}
	}

	cols := make([]dataframe.Series, 0, len(keys)+len(s.Aggregations))
	if len(keys) > 0 {
		firsts := make([]int, len(groups))
		for g, rows := range groups {
			firsts[g] = rows[0]
		}
		for _, k := range keys {
			kc, _ := column(df, k)
			cols = append(cols, gather(kc, firsts))
		}
	}
	for a, agg := range s.Aggregations {
		cols = append(cols, newSeries(agg.Name, results[a]))
	}
	return newFrame(cols...)
}

// aggregate evaluates one summarize entry against the rows of a group.
func (in *Interpreter) aggregate(agg dsl.AggregateAssign, sub *dataframe.DataFrame) (any, error) {
	if (agg.Func == "count" || agg.Func == "n") && len(agg.Args) == 0 {
		return int64(sub.NRows()), nil
	}

	v, err := in.call(&dsl.CallExpr{Func: agg.Func, Args: agg.Args}, nil, sub)
	if err != nil {
		return nil, err
	}
	if !isScalar(v) {
		return nil, fmt.Errorf("%w: summarize %s: %s must return a single value, got %s",
			ErrTypeMismatch, agg.Name, agg.Func, typeName(v))
	}
	return v, nil
}

// ===== Join Operations =====

func (in *Interpreter) joinVerb(left any, j *dsl.JoinExpr) (any, error) {
	df, err := asFrame(left, "join")
	if err != nil {
		return nil, err
	}
	rv, err := in.eval(j.Right, nil)
	if err != nil {
		return nil, err
	}
	right, err := asFrame(rv, "join")
	if err != nil {
		return nil, err
	}
	return joinFrames(in.ctx, df, right, j.On, j.JoinType)
}

func joinFrames(ctx context.Context, left, right *dataframe.DataFrame, keyName, how string) (*dataframe.DataFrame, error) {
	leftKey, err := column(left, keyName)
	if err != nil {
		return nil, err
	}
	rightKey, err := column(right, keyName)
	if err != nil {
		return nil, err
	}

	var leftIndices, rightIndices []int
	switch how {
	case "right":
		leftIndex := buildJoinIndex(leftKey)
		for j := 0; j < rightKey.NRows(); j++ {
			if err := checkRow(ctx, j); err != nil {
				return nil, err
			}
			if matches := leftIndex[joinKey(rightKey.Value(j))]; len(matches) > 0 {
				for _, i := range matches {
					leftIndices = append(leftIndices, i)
					rightIndices = append(rightIndices, j)
				}
			} else {
				leftIndices = append(leftIndices, -1) // null marker
				rightIndices = append(rightIndices, j)
			}
		}

	case "inner", "left", "outer":
		rightIndex := buildJoinIndex(rightKey)
		matchedRight := make([]bool, rightKey.NRows())
		for i := 0; i < leftKey.NRows(); i++ {
			if err := checkRow(ctx, i); err != nil {
				return nil, err
			}
			if matches := rightIndex[joinKey(leftKey.Value(i))]; len(matches) > 0 {
				for _, j := range matches {
					leftIndices = append(leftIndices, i)
					rightIndices = append(rightIndices, j)
					matchedRight[j] = true
				}
			} else if how != "inner" {
				leftIndices = append(leftIndices, i)
				rightIndices = append(rightIndices, -1)
			}
		}
		if how == "outer" {
			for j, matched := range matchedRight {
				if !matched {
					leftIndices = append(leftIndices, -1)
					rightIndices = append(rightIndices, j)
				}
			}
		}

	default:
		return nil, fmt.Errorf("%w: unknown join type %q", ErrInvalidArgument, how)
	}

	return buildJoinResult(left, right, keyName, leftIndices, rightIndices)
}

// joinKey maps a key value to its index key. Null keys never match.
func joinKey(v any) any {
	if v == nil {
		return struct{}{}
	}
	return normalizeKey(v)
}

func buildJoinIndex(col dataframe.Series) map[any][]int {
	index := make(map[any][]int)
	for i := 0; i < col.NRows(); i++ {
		v := col.Value(i)
		if v == nil {
			continue
		}
		key := normalizeKey(v)
		index[key] = append(index[key], i)
	}
	return index
}

func buildJoinResult(left, right *dataframe.DataFrame, keyName string, leftIndices, rightIndices []int) (*dataframe.DataFrame, error) {
	leftKey, _ := column(left, keyName)
	rightKey, _ := column(right, keyName)

	// The key takes the value from whichever side matched.
	keyVals := make([]any, len(leftIndices))
	for k := range leftIndices {
		if leftIndices[k] >= 0 {
			keyVals[k] = leftKey.Value(leftIndices[k])
		} else {
			keyVals[k] = rightKey.Value(rightIndices[k])
		}
	}

	var allSeries []dataframe.Series
	for _, s := range left.Series {
		if s.Name() == keyName {
			var keyCol dataframe.Series
			switch t := seriesType(s); {
			case len(keyVals) == 0:
				keyCol = gather(s, nil)
			case t != TypeUnknown && inferType(keyVals) == t:
				keyCol = newTypedSeries(keyName, t, keyVals)
			default:
				keyCol = newSeries(keyName, keyVals)
			}
			allSeries = append(allSeries, keyCol)
			continue
		}
		allSeries = append(allSeries, gather(s, leftIndices))
	}

	for _, s := range right.Series {
		colName := s.Name()
		if colName == keyName {
			continue
		}
		dst := gather(s, rightIndices)
		if hasColumn(left, colName) {
			// Prefix with right_ to avoid collision
			dst.Rename("right_" + colName)
		}
		allSeries = append(allSeries, dst)
	}

	return newFrame(allSeries...)
}
