package optimizer

import (
	"github.com/akhildatla/dfagent/pkg/dsl"
)

// WithDeadCodeElimination enables dead code elimination.
func WithDeadCodeElimination() Option {
	return func(o *Optimizer) {
		o.enableDeadCode = true
	}
}

// deadCodeElimination removes statements that cannot affect the result:
// literal expression statements, and literal assignments to names that are
// never read and are not read back by the host (df, fig).
func (o *Optimizer) deadCodeElimination(program *dsl.Program) *dsl.Program {
	if len(program.Statements) == 0 {
		return program
	}

	read := make(map[string]bool)
	for _, stmt := range program.Statements {
		for _, e := range stmtExprs(stmt) {
			visit(e, func(x dsl.Expr) {
				if id, ok := x.(*dsl.Ident); ok {
					read[id.Name] = true
				}
			})
		}
		if s, ok := stmt.(*dsl.ColumnAssignStmt); ok {
			read[s.Target] = true
		}
	}

	out := &dsl.Program{Statements: make([]dsl.Stmt, 0, len(program.Statements))}
	for _, stmt := range program.Statements {
		switch s := stmt.(type) {
		case *dsl.AssignStmt:
			if isLiteral(s.Value) && !read[s.Name] && s.Name != "df" && s.Name != "fig" {
				continue
			}
		case *dsl.ExprStmt:
			if isLiteral(s.Expr) {
				continue
			}
		}
		out.Statements = append(out.Statements, stmt)
	}
	return out
}

func stmtExprs(stmt dsl.Stmt) []dsl.Expr {
	switch s := stmt.(type) {
	case *dsl.AssignStmt:
		return []dsl.Expr{s.Value}
	case *dsl.ColumnAssignStmt:
		return []dsl.Expr{s.Value}
	case *dsl.ExprStmt:
		return []dsl.Expr{s.Expr}
	}
	return nil
}

// isLiteral reports whether e is a literal or a list of literals. Evaluating
// one can never fail.
func isLiteral(e dsl.Expr) bool {
	switch n := e.(type) {
	case *dsl.IntLit, *dsl.FloatLit, *dsl.StringLit, *dsl.BoolLit, *dsl.NullLit:
		return true
	case *dsl.ListLit:
		for _, el := range n.Elems {
			if !isLiteral(el) {
				return false
			}
		}
		return true
	}
	return false
}
