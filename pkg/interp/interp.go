// Package interp evaluates DFL programs against dataframes.
//
// The interpreter is a tree walker over the dsl AST. Every value it produces
// is immutable from the program's point of view: frame operations build new
// frames and rebind names, so a failing program never leaves a half-modified
// frame behind.
//
// Basic usage:
//
//	prog, err := dsl.Parse(code)
//	ns := interp.NewNamespace(df.Copy(), interp.Base)
//	in := interp.New(ns, interp.WithMaxSteps(100000))
//	err = in.Run(ctx, prog)
//	result, _ := ns.Lookup(interp.FrameBinding)
package interp

import (
	"context"
	"fmt"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/akhildatla/dfagent/pkg/dsl"
)

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithMaxSteps bounds the number of evaluated nodes. Zero means unlimited.
func WithMaxSteps(n int64) Option {
	return func(in *Interpreter) {
		in.maxSteps = n
	}
}

// Interpreter executes programs in a single namespace.
type Interpreter struct {
	ns       *Namespace
	ctx      context.Context
	maxSteps int64
	steps    int64
}

// New creates an interpreter bound to ns.
func New(ns *Namespace, opts ...Option) *Interpreter {
	in := &Interpreter{ns: ns, ctx: context.Background()}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Steps returns the number of nodes evaluated so far.
func (in *Interpreter) Steps() int64 {
	return in.steps
}

// Run executes prog statement by statement, stopping at the first error.
func (in *Interpreter) Run(ctx context.Context, prog *dsl.Program) error {
	if ctx != nil {
		in.ctx = ctx
	}
	for _, stmt := range prog.Statements {
		if err := in.exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// step is called once per node: it enforces cancellation and the step budget.
func (in *Interpreter) step() error {
	select {
	case <-in.ctx.Done():
		return in.ctx.Err()
	default:
	}

	in.steps++
	if in.maxSteps > 0 && in.steps > in.maxSteps {
		return ErrStepLimitExceeded
	}
	return nil
}

func (in *Interpreter) exec(stmt dsl.Stmt) error {
	if err := in.step(); err != nil {
		return err
	}

	switch s := stmt.(type) {
	case *dsl.AssignStmt:
		v, err := in.eval(s.Value, nil)
		if err != nil {
			return err
		}
		in.ns.Bind(s.Name, v)

	case *dsl.ColumnAssignStmt:
		target, ok := in.ns.Lookup(s.Target)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNameNotFound, s.Target)
		}
		df, ok := target.(*dataframe.DataFrame)
		if !ok {
			return fmt.Errorf("%w: cannot assign column %q on %s", ErrTypeMismatch, s.Column, typeName(target))
		}
		v, err := in.eval(s.Value, nil)
		if err != nil {
			return err
		}
		out, err := assignColumn(df, s.Column, v)
		if err != nil {
			return err
		}
		in.ns.Bind(s.Target, out)

	case *dsl.ExprStmt:
		if _, err := in.eval(s.Expr, nil); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: unknown statement %T", ErrInvalidArgument, stmt)
	}
	return nil
}

// eval evaluates e. When scope is non-nil, bare identifiers resolve to its
// columns before namespace bindings.
func (in *Interpreter) eval(e dsl.Expr, scope *dataframe.DataFrame) (any, error) {
	if err := in.step(); err != nil {
		return nil, err
	}

	switch n := e.(type) {
	case *dsl.IntLit:
		return n.Value, nil
	case *dsl.FloatLit:
		return n.Value, nil
	case *dsl.StringLit:
		return n.Value, nil
	case *dsl.BoolLit:
		return n.Value, nil
	case *dsl.NullLit:
		return nil, nil

	case *dsl.ListLit:
		out := make([]any, len(n.Elems))
		for i, el := range n.Elems {
			v, err := in.eval(el, scope)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case *dsl.Ident:
		return in.lookup(n.Name, scope)

	case *dsl.BinaryExpr:
		l, err := in.eval(n.Left, scope)
		if err != nil {
			return nil, err
		}
		r, err := in.eval(n.Right, scope)
		if err != nil {
			return nil, err
		}
		return binaryOp(in.ctx, n.Op, l, r)

	case *dsl.UnaryExpr:
		v, err := in.eval(n.Right, scope)
		if err != nil {
			return nil, err
		}
		return unaryOp(n.Op, v)

	case *dsl.MemberExpr:
		obj, err := in.eval(n.Object, scope)
		if err != nil {
			return nil, err
		}
		return member(obj, n.Member)

	case *dsl.IndexExpr:
		obj, err := in.eval(n.Object, scope)
		if err != nil {
			return nil, err
		}
		idx, err := in.eval(n.Index, scope)
		if err != nil {
			return nil, err
		}
		return index(obj, idx)

	case *dsl.CallExpr:
		return in.call(n, nil, scope)

	case *dsl.PipeExpr:
		left, err := in.eval(n.Left, scope)
		if err != nil {
			return nil, err
		}
		return in.pipe(left, n.Right, scope)

	case *dsl.SelectExpr, *dsl.FilterExpr, *dsl.MutateExpr, *dsl.GroupByExpr,
		*dsl.SummarizeExpr, *dsl.JoinExpr, *dsl.TakeExpr:
		return nil, fmt.Errorf("%w: %s needs a frame piped into it", ErrInvalidArgument, verbName(e))
	}

	return nil, fmt.Errorf("%w: unknown expression %T", ErrInvalidArgument, e)
}

func (in *Interpreter) lookup(name string, scope *dataframe.DataFrame) (any, error) {
	if scope != nil && hasColumn(scope, name) {
		return column(scope, name)
	}
	if v, ok := in.ns.Lookup(name); ok {
		return v, nil
	}
	if _, ok := in.ns.Capability(name); ok {
		return nil, fmt.Errorf("%w: %s is a function, call it with ()", ErrTypeMismatch, name)
	}
	return nil, fmt.Errorf("%w: %s", ErrNameNotFound, name)
}

// call invokes a capability. receiver, when non-nil, is prepended to the
// arguments (pipe form).
func (in *Interpreter) call(n *dsl.CallExpr, receiver []any, scope *dataframe.DataFrame) (any, error) {
	capability, ok := in.ns.Capability(n.Func)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNameNotFound, n.Func)
	}

	args := make([]any, 0, len(receiver)+len(n.Args))
	args = append(args, receiver...)
	for _, a := range n.Args {
		v, err := in.eval(a, scope)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	var named map[string]any
	if len(n.Named) > 0 {
		named = make(map[string]any, len(n.Named))
		for _, na := range n.Named {
			v, err := in.eval(na.Value, scope)
			if err != nil {
				return nil, err
			}
			named[na.Name] = v
		}
	}

	out, err := capability.Fn(&Call{Ctx: in.ctx, Name: n.Func, Args: args, Named: named})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", n.Func, err)
	}
	return out, nil
}

// member resolves obj.name: a column of a frame.
func member(obj any, name string) (any, error) {
	switch o := obj.(type) {
	case *dataframe.DataFrame:
		if hasColumn(o, name) {
			return column(o, name)
		}
		if name == "columns" {
			names := o.Names()
			out := make([]any, len(names))
			for i, nm := range names {
				out[i] = nm
			}
			return out, nil
		}
		return column(o, name)
	case *Grouped:
		return nil, fmt.Errorf("%w: summarize a grouped frame before reading column %q", ErrTypeMismatch, name)
	}
	return nil, fmt.Errorf("%w: %s has no attribute %q", ErrTypeMismatch, typeName(obj), name)
}

// index resolves obj[idx]: a column, a column subset, a row mask, or a
// positional element.
func index(obj, idx any) (any, error) {
	switch o := obj.(type) {
	case *dataframe.DataFrame:
		switch i := idx.(type) {
		case string:
			return column(o, i)
		case []any:
			names := make([]string, len(i))
			for k, v := range i {
				s, ok := columnName(v)
				if !ok {
					return nil, fmt.Errorf("%w: column names must be strings, got %s", ErrTypeMismatch, typeName(v))
				}
				names[k] = s
			}
			return selectColumns(o, names)
		case dataframe.Series:
			if i.NRows() != o.NRows() {
				return nil, fmt.Errorf("%w: mask has %d rows, frame has %d", ErrLengthMismatch, i.NRows(), o.NRows())
			}
			mask, err := maskBitmap(i)
			if err != nil {
				return nil, err
			}
			return filterFrame(o, mask), nil
		}

	case dataframe.Series:
		switch i := idx.(type) {
		case int64:
			pos, err := position(int(i), o.NRows())
			if err != nil {
				return nil, err
			}
			return o.Value(pos), nil
		case dataframe.Series:
			if i.NRows() != o.NRows() {
				return nil, fmt.Errorf("%w: mask has %d rows, column has %d", ErrLengthMismatch, i.NRows(), o.NRows())
			}
			mask, err := maskBitmap(i)
			if err != nil {
				return nil, err
			}
			return filterSeries(o, mask), nil
		}

	case []any:
		if i, ok := idx.(int64); ok {
			pos, err := position(int(i), len(o))
			if err != nil {
				return nil, err
			}
			return o[pos], nil
		}
	}
	return nil, fmt.Errorf("%w: cannot index %s with %s", ErrTypeMismatch, typeName(obj), typeName(idx))
}

// position resolves a possibly negative index against length n.
func position(i, n int) (int, error) {
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, fmt.Errorf("%w: index %d out of range for length %d", ErrInvalidArgument, i, n)
	}
	return i, nil
}

// pipe applies the right-hand side of |> to left. Arguments of a piped call
// see the columns of a piped frame.
func (in *Interpreter) pipe(left any, right dsl.Expr, scope *dataframe.DataFrame) (any, error) {
	switch r := right.(type) {
	case *dsl.CallExpr:
		if df, ok := left.(*dataframe.DataFrame); ok {
			scope = df
		}
		return in.call(r, []any{left}, scope)
	case *dsl.Ident:
		return in.call(&dsl.CallExpr{Func: r.Name}, []any{left}, scope)
	case *dsl.SelectExpr:
		return in.selectVerb(left, r)
	case *dsl.FilterExpr:
		return in.filterVerb(left, r)
	case *dsl.MutateExpr:
		return in.mutateVerb(left, r)
	case *dsl.GroupByExpr:
		return in.groupByVerb(left, r)
	case *dsl.SummarizeExpr:
		return in.summarizeVerb(left, r)
	case *dsl.JoinExpr:
		return in.joinVerb(left, r)
	case *dsl.TakeExpr:
		return in.takeVerb(left, r)
	}
	return nil, fmt.Errorf("%w: cannot pipe into %T", ErrInvalidArgument, right)
}

func verbName(e dsl.Expr) string {
	switch e.(type) {
	case *dsl.SelectExpr:
		return "select"
	case *dsl.FilterExpr:
		return "filter"
	case *dsl.MutateExpr:
		return "mutate"
	case *dsl.GroupByExpr:
		return "group_by"
	case *dsl.SummarizeExpr:
		return "summarize"
	case *dsl.JoinExpr:
		return "join"
	case *dsl.TakeExpr:
		return "take"
	}
	return "verb"
}
