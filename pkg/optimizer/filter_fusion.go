package optimizer

import (
	"github.com/akhildatla/dfagent/pkg/dsl"
)

// fuseFilters merges two adjacent filters into one.
// For example:
//
//	df |> filter(price > 10) |> filter(quantity < 5)
//
// Becomes:
//
//	df |> filter(price > 10 and quantity < 5)
//
// The second condition then sees every row instead of only the survivors of
// the first, so it is fused only when it is row-local: literals, operators
// and identifiers that cannot name a program binding. Calls are excluded
// since a reduction over the surviving rows differs from one over all rows.
func fuseFilters(e dsl.Expr, bound map[string]bool) dsl.Expr {
	outer, ok := e.(*dsl.PipeExpr)
	if !ok {
		return e
	}
	second, ok := outer.Right.(*dsl.FilterExpr)
	if !ok {
		return e
	}
	inner, ok := outer.Left.(*dsl.PipeExpr)
	if !ok {
		return e
	}
	first, ok := inner.Right.(*dsl.FilterExpr)
	if !ok || !rowLocal(second.Condition, bound) {
		return e
	}

	return &dsl.PipeExpr{
		Left: inner.Left,
		Right: &dsl.FilterExpr{Condition: &dsl.BinaryExpr{
			Left:  first.Condition,
			Op:    dsl.TokenAnd,
			Right: second.Condition,
		}},
	}
}

// rowLocal reports whether cond evaluates row by row over the piped frame.
func rowLocal(cond dsl.Expr, bound map[string]bool) bool {
	local := true
	visit(cond, func(x dsl.Expr) {
		switch n := x.(type) {
		case *dsl.Ident:
			if bound[n.Name] {
				local = false
			}
		case *dsl.IntLit, *dsl.FloatLit, *dsl.StringLit, *dsl.BoolLit, *dsl.NullLit,
			*dsl.BinaryExpr, *dsl.UnaryExpr:
		default:
			local = false
		}
	})
	return local
}
