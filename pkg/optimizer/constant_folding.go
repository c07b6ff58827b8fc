package optimizer

import (
	"math"

	"github.com/akhildatla/dfagent/pkg/dsl"
)

// foldConstants evaluates operators whose operands are literals.
// For example:
//
//	df.total = df.price * (1 + 20 / 100)
//
// Becomes:
//
//	df.total = df.price * 1.2
//
// Anything that would fail at run time (division by zero, mixed types) is
// left in place so the failure still happens.
func foldConstants(e dsl.Expr) dsl.Expr {
	switch n := e.(type) {
	case *dsl.UnaryExpr:
		switch v := n.Right.(type) {
		case *dsl.IntLit:
			if n.Op == dsl.TokenMinus {
				return &dsl.IntLit{Value: -v.Value}
			}
		case *dsl.FloatLit:
			if n.Op == dsl.TokenMinus {
				return &dsl.FloatLit{Value: -v.Value}
			}
		case *dsl.BoolLit:
			if n.Op == dsl.TokenNot {
				return &dsl.BoolLit{Value: !v.Value}
			}
		}

	case *dsl.BinaryExpr:
		if folded := foldBinary(n); folded != nil {
			return folded
		}
	}
	return e
}

func foldBinary(n *dsl.BinaryExpr) dsl.Expr {
	switch l := n.Left.(type) {
	case *dsl.IntLit:
		if r, ok := n.Right.(*dsl.IntLit); ok {
			return foldInts(n.Op, l.Value, r.Value)
		}
	case *dsl.StringLit:
		if r, ok := n.Right.(*dsl.StringLit); ok && n.Op == dsl.TokenPlus {
			return &dsl.StringLit{Value: l.Value + r.Value}
		}
		return nil
	case *dsl.BoolLit:
		if r, ok := n.Right.(*dsl.BoolLit); ok {
			switch n.Op {
			case dsl.TokenAnd:
				return &dsl.BoolLit{Value: l.Value && r.Value}
			case dsl.TokenOr:
				return &dsl.BoolLit{Value: l.Value || r.Value}
			}
		}
		return nil
	}

	a, aok := floatLit(n.Left)
	b, bok := floatLit(n.Right)
	if !aok || !bok {
		return nil
	}
	return foldFloats(n.Op, a, b)
}

func floatLit(e dsl.Expr) (float64, bool) {
	switch v := e.(type) {
	case *dsl.IntLit:
		return float64(v.Value), true
	case *dsl.FloatLit:
		return v.Value, true
	}
	return 0, false
}

func foldInts(op dsl.TokenType, a, b int64) dsl.Expr {
	switch op {
	case dsl.TokenPlus:
		return &dsl.IntLit{Value: a + b}
	case dsl.TokenMinus:
		return &dsl.IntLit{Value: a - b}
	case dsl.TokenStar:
		return &dsl.IntLit{Value: a * b}
	case dsl.TokenSlash:
		if b == 0 {
			return nil
		}
		return &dsl.FloatLit{Value: float64(a) / float64(b)}
	case dsl.TokenPercent:
		if b == 0 {
			return nil
		}
		m := a % b
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return &dsl.IntLit{Value: m}
	}
	return foldComparison(op, float64(a), float64(b))
}

func foldFloats(op dsl.TokenType, a, b float64) dsl.Expr {
	switch op {
	case dsl.TokenPlus:
		return &dsl.FloatLit{Value: a + b}
	case dsl.TokenMinus:
		return &dsl.FloatLit{Value: a - b}
	case dsl.TokenStar:
		return &dsl.FloatLit{Value: a * b}
	case dsl.TokenSlash:
		if b == 0 {
			return nil
		}
		return &dsl.FloatLit{Value: a / b}
	case dsl.TokenPercent:
		if b == 0 {
			return nil
		}
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return &dsl.FloatLit{Value: m}
	}
	return foldComparison(op, a, b)
}

func foldComparison(op dsl.TokenType, a, b float64) dsl.Expr {
	switch op {
	case dsl.TokenEQ:
		return &dsl.BoolLit{Value: a == b}
	case dsl.TokenNE:
		return &dsl.BoolLit{Value: a != b}
	case dsl.TokenLT:
		return &dsl.BoolLit{Value: a < b}
	case dsl.TokenLE:
		return &dsl.BoolLit{Value: a <= b}
	case dsl.TokenGT:
		return &dsl.BoolLit{Value: a > b}
	case dsl.TokenGE:
		return &dsl.BoolLit{Value: a >= b}
	}
	return nil
}
