package interp

import (
	"context"
	"fmt"

	dataframe "github.com/rocketlaunchr/dataframe-go"
)

// Call carries the evaluated arguments of one capability invocation.
type Call struct {
	Ctx   context.Context
	Name  string
	Args  []any
	Named map[string]any
}

// rowCheckInterval is how many rows a loop handles between context checks.
const rowCheckInterval = 1024

// checkRow returns the context error on every rowCheckInterval-th row.
func checkRow(ctx context.Context, i int) error {
	if ctx == nil || i%rowCheckInterval != 0 {
		return nil
	}
	return ctx.Err()
}

// NArgs returns the number of positional arguments.
func (c *Call) NArgs() int {
	return len(c.Args)
}

// arity checks the positional argument count. max < 0 means unbounded.
func (c *Call) arity(min, max int) error {
	n := len(c.Args)
	if n < min || (max >= 0 && n > max) {
		switch {
		case max < 0:
			return fmt.Errorf("%w: %s takes at least %d, got %d", ErrArity, c.Name, min, n)
		case min == max:
			return fmt.Errorf("%w: %s takes %d, got %d", ErrArity, c.Name, min, n)
		default:
			return fmt.Errorf("%w: %s takes %d to %d, got %d", ErrArity, c.Name, min, max, n)
		}
	}
	return nil
}

// arg returns positional argument i, or the keyword argument name when the
// positional one is absent.
func (c *Call) arg(i int, name string) (any, bool) {
	if i >= 0 && i < len(c.Args) {
		return c.Args[i], true
	}
	if name != "" {
		v, ok := c.Named[name]
		return v, ok
	}
	return nil, false
}

func (c *Call) argError(i int, want string, got any) error {
	return fmt.Errorf("%w: %s argument %d must be %s, got %s", ErrTypeMismatch, c.Name, i+1, want, typeName(got))
}

func (c *Call) frame(i int) (*dataframe.DataFrame, error) {
	v, _ := c.arg(i, "")
	df, ok := v.(*dataframe.DataFrame)
	if !ok {
		return nil, c.argError(i, "a frame", v)
	}
	return df, nil
}

func (c *Call) series(i int) (dataframe.Series, error) {
	v, _ := c.arg(i, "")
	switch val := v.(type) {
	case dataframe.Series:
		return val, nil
	case []any:
		return newSeries(c.Name, val), nil
	}
	return nil, c.argError(i, "a column", v)
}

// str returns a string argument, falling back to the keyword name and then def.
func (c *Call) str(i int, name, def string) (string, error) {
	v, ok := c.arg(i, name)
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", c.argError(i, "a string", v)
	}
	return s, nil
}

func (c *Call) number(i int, name string, def float64) (float64, error) {
	v, ok := c.arg(i, name)
	if !ok || v == nil {
		return def, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, c.argError(i, "a number", v)
	}
	return f, nil
}

func (c *Call) integer(i int, name string, def int) (int, error) {
	v, ok := c.arg(i, name)
	if !ok || v == nil {
		return def, nil
	}
	n, ok := v.(int64)
	if !ok {
		return 0, c.argError(i, "an int", v)
	}
	return int(n), nil
}

func (c *Call) boolean(name string, def bool) (bool, error) {
	v, ok := c.Named[name]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s: %s must be a bool, got %s", ErrTypeMismatch, c.Name, name, typeName(v))
	}
	return b, nil
}

// names collects column names from positional arguments starting at i and
// from the keyword name. A name is a string or a column, which stands for its
// own name; lists of either are flattened.
func (c *Call) names(i int, name string) ([]string, error) {
	var raw []any
	if i < len(c.Args) {
		raw = append(raw, c.Args[i:]...)
	}
	if v, ok := c.Named[name]; ok && name != "" {
		raw = append(raw, v)
	}

	var out []string
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			out = append(out, val)
		case dataframe.Series:
			out = append(out, val.Name())
		case []any:
			for _, e := range val {
				s, ok := columnName(e)
				if !ok {
					return nil, fmt.Errorf("%w: %s: column names must be strings, got %s", ErrTypeMismatch, c.Name, typeName(e))
				}
				out = append(out, s)
			}
		case nil:
		default:
			return nil, fmt.Errorf("%w: %s: column names must be strings, got %s", ErrTypeMismatch, c.Name, typeName(v))
		}
	}
	return out, nil
}

// columnName returns the column name v denotes: a string, or the name of a
// column value.
func columnName(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case dataframe.Series:
		return val.Name(), true
	}
	return "", false
}
