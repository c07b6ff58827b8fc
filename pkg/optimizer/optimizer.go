// Package optimizer rewrites DFL programs before they are interpreted.
//
// Every pass is semantics preserving: a rewritten program binds the same
// values as the original, and a program that fails keeps failing.
package optimizer

import (
	"github.com/akhildatla/dfagent/pkg/dsl"
)

// Optimizer applies optimizations to a parsed program.
type Optimizer struct {
	enableConstantFolding bool
	enableFilterFusion    bool
	enableDeadCode        bool
}

// Option is a functional option for the Optimizer.
type Option func(*Optimizer)

// WithConstantFolding enables constant folding optimization.
func WithConstantFolding() Option {
	return func(o *Optimizer) {
		o.enableConstantFolding = true
	}
}

// WithFilterFusion enables merging of adjacent filters.
func WithFilterFusion() Option {
	return func(o *Optimizer) {
		o.enableFilterFusion = true
	}
}

// WithAllOptimizations enables all optimizations.
func WithAllOptimizations() Option {
	return func(o *Optimizer) {
		o.enableConstantFolding = true
		o.enableFilterFusion = true
		o.enableDeadCode = true
	}
}

// New creates a new Optimizer with the given options.
func New(opts ...Option) *Optimizer {
	opt := &Optimizer{}
	for _, o := range opts {
		o(opt)
	}
	return opt
}

// Optimize applies enabled optimizations to the program. The input program is
// not modified.
func (o *Optimizer) Optimize(program *dsl.Program) *dsl.Program {
	if program == nil {
		return nil
	}
	result := &dsl.Program{Statements: append([]dsl.Stmt(nil), program.Statements...)}

	if o.enableConstantFolding {
		result = mapStatements(result, foldConstants)
	}

	if o.enableFilterFusion {
		bound := boundNames(result)
		result = mapStatements(result, func(e dsl.Expr) dsl.Expr {
			return fuseFilters(e, bound)
		})
	}

	if o.enableDeadCode {
		result = o.deadCodeElimination(result)
	}

	return result
}

// mapStatements rewrites the expression of every statement bottom-up with fn.
func mapStatements(program *dsl.Program, fn func(dsl.Expr) dsl.Expr) *dsl.Program {
	out := &dsl.Program{Statements: make([]dsl.Stmt, len(program.Statements))}
	for i, stmt := range program.Statements {
		switch s := stmt.(type) {
		case *dsl.AssignStmt:
			out.Statements[i] = &dsl.AssignStmt{Name: s.Name, Value: rewrite(s.Value, fn)}
		case *dsl.ColumnAssignStmt:
			out.Statements[i] = &dsl.ColumnAssignStmt{Target: s.Target, Column: s.Column, Value: rewrite(s.Value, fn)}
		case *dsl.ExprStmt:
			out.Statements[i] = &dsl.ExprStmt{Expr: rewrite(s.Expr, fn)}
		default:
			out.Statements[i] = stmt
		}
	}
	return out
}

// rewrite rebuilds e with every child rewritten first, then applies fn to the
// rebuilt node.
func rewrite(e dsl.Expr, fn func(dsl.Expr) dsl.Expr) dsl.Expr {
	r := func(x dsl.Expr) dsl.Expr { return rewrite(x, fn) }
	all := func(xs []dsl.Expr) []dsl.Expr {
		out := make([]dsl.Expr, len(xs))
		for i, x := range xs {
			out[i] = r(x)
		}
		return out
	}

	switch n := e.(type) {
	case nil:
		return nil
	case *dsl.ListLit:
		e = &dsl.ListLit{Elems: all(n.Elems)}
	case *dsl.BinaryExpr:
		e = &dsl.BinaryExpr{Left: r(n.Left), Op: n.Op, Right: r(n.Right)}
	case *dsl.UnaryExpr:
		e = &dsl.UnaryExpr{Op: n.Op, Right: r(n.Right)}
	case *dsl.CallExpr:
		named := make([]dsl.NamedArg, len(n.Named))
		for i, na := range n.Named {
			named[i] = dsl.NamedArg{Name: na.Name, Value: r(na.Value)}
		}
		e = &dsl.CallExpr{Func: n.Func, Args: all(n.Args), Named: named}
	case *dsl.PipeExpr:
		e = &dsl.PipeExpr{Left: r(n.Left), Right: r(n.Right)}
	case *dsl.MemberExpr:
		e = &dsl.MemberExpr{Object: r(n.Object), Member: n.Member}
	case *dsl.IndexExpr:
		e = &dsl.IndexExpr{Object: r(n.Object), Index: r(n.Index)}
	case *dsl.SelectExpr:
		e = &dsl.SelectExpr{Columns: all(n.Columns)}
	case *dsl.FilterExpr:
		e = &dsl.FilterExpr{Condition: r(n.Condition)}
	case *dsl.MutateExpr:
		as := make([]dsl.MutateAssign, len(n.Assignments))
		for i, a := range n.Assignments {
			as[i] = dsl.MutateAssign{Name: a.Name, Value: r(a.Value)}
		}
		e = &dsl.MutateExpr{Assignments: as}
	case *dsl.SummarizeExpr:
		as := make([]dsl.AggregateAssign, len(n.Aggregations))
		for i, a := range n.Aggregations {
			as[i] = dsl.AggregateAssign{Name: a.Name, Func: a.Func, Args: all(a.Args)}
		}
		e = &dsl.SummarizeExpr{Aggregations: as}
	case *dsl.JoinExpr:
		e = &dsl.JoinExpr{JoinType: n.JoinType, Right: r(n.Right), On: n.On}
	case *dsl.TakeExpr:
		e = &dsl.TakeExpr{Count: r(n.Count)}
	}
	return fn(e)
}

// visit calls fn for e and every expression below it.
func visit(e dsl.Expr, fn func(dsl.Expr)) {
	rewrite(e, func(x dsl.Expr) dsl.Expr {
		fn(x)
		return x
	})
}

// boundNames returns every name a program may bind, including the names the
// host binds before execution.
func boundNames(program *dsl.Program) map[string]bool {
	bound := map[string]bool{"df": true, "fig": true}
	for _, stmt := range program.Statements {
		switch s := stmt.(type) {
		case *dsl.AssignStmt:
			bound[s.Name] = true
		case *dsl.ColumnAssignStmt:
			bound[s.Target] = true
		}
	}
	return bound
}
