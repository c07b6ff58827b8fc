package interp

import (
	"context"
	"fmt"
	"math"
	"strings"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/akhildatla/dfagent/pkg/dsl"
)

// binaryOp applies op to two values. Column operands are combined row by
// row; a scalar operand is broadcast against a column.
func binaryOp(ctx context.Context, op dsl.TokenType, l, r any) (any, error) {
	ls, lcol := l.(dataframe.Series)
	rs, rcol := r.(dataframe.Series)

	if !lcol && !rcol {
		if !isScalar(l) || !isScalar(r) {
			return nil, fmt.Errorf("%w: unsupported operand types for %v: %s and %s",
				ErrTypeMismatch, op, typeName(l), typeName(r))
		}
		return scalarOp(op, l, r, false)
	}
	if (!lcol && !isScalar(l)) || (!rcol && !isScalar(r)) {
		return nil, fmt.Errorf("%w: unsupported operand types for %v: %s and %s",
			ErrTypeMismatch, op, typeName(l), typeName(r))
	}

	var n int
	var name string
	switch {
	case lcol && rcol:
		if ls.NRows() != rs.NRows() {
			return nil, fmt.Errorf("%w: %d and %d rows", ErrLengthMismatch, ls.NRows(), rs.NRows())
		}
		n, name = ls.NRows(), ls.Name()
	case lcol:
		n, name = ls.NRows(), ls.Name()
	default:
		n, name = rs.NRows(), rs.Name()
	}

	vals := make([]any, n)
	for i := 0; i < n; i++ {
		if err := checkRow(ctx, i); err != nil {
			return nil, err
		}
		a, b := l, r
		if lcol {
			a = ls.Value(i)
		}
		if rcol {
			b = rs.Value(i)
		}
		v, err := scalarOp(op, a, b, true)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}

	if isComparison(op) || op == dsl.TokenAnd || op == dsl.TokenOr {
		return newTypedSeries(name, TypeBool, vals), nil
	}
	return newSeries(name, vals), nil
}

func isComparison(op dsl.TokenType) bool {
	switch op {
	case dsl.TokenEQ, dsl.TokenNE, dsl.TokenLT, dsl.TokenLE, dsl.TokenGT, dsl.TokenGE:
		return true
	}
	return false
}

// scalarOp applies op to two scalars. In vector context division by zero
// yields an infinity or null instead of an error, as column arithmetic does.
func scalarOp(op dsl.TokenType, a, b any, vector bool) (any, error) {
	switch op {
	case dsl.TokenPlus, dsl.TokenMinus, dsl.TokenStar, dsl.TokenSlash, dsl.TokenPercent:
		return arith(op, a, b, vector)
	case dsl.TokenAnd, dsl.TokenOr:
		av, err := asBool(a)
		if err != nil {
			return nil, err
		}
		bv, err := asBool(b)
		if err != nil {
			return nil, err
		}
		if op == dsl.TokenAnd {
			return av && bv, nil
		}
		return av || bv, nil
	}
	if isComparison(op) {
		return compare(op, a, b)
	}
	return nil, fmt.Errorf("%w: unsupported operator %v", ErrTypeMismatch, op)
}

func arith(op dsl.TokenType, a, b any, vector bool) (any, error) {
	if a == nil || b == nil {
		return nil, nil
	}

	if op == dsl.TokenPlus {
		as, aok := a.(string)
		bs, bok := b.(string)
		if aok && bok {
			return as + bs, nil
		}
	}

	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	if aInt && bInt {
		switch op {
		case dsl.TokenPlus:
			return ai + bi, nil
		case dsl.TokenMinus:
			return ai - bi, nil
		case dsl.TokenStar:
			return ai * bi, nil
		case dsl.TokenSlash:
			if bi == 0 {
				return divByZero(float64(ai), vector)
			}
			return float64(ai) / float64(bi), nil
		case dsl.TokenPercent:
			if bi == 0 {
				return divByZero(0, vector)
			}
			// floored modulo: the result takes the sign of the divisor
			m := ai % bi
			if m != 0 && (m < 0) != (bi < 0) {
				m += bi
			}
			return m, nil
		}
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return nil, fmt.Errorf("%w: unsupported operand types for %v: %s and %s",
			ErrTypeMismatch, op, typeName(a), typeName(b))
	}

	switch op {
	case dsl.TokenPlus:
		return af + bf, nil
	case dsl.TokenMinus:
		return af - bf, nil
	case dsl.TokenStar:
		return af * bf, nil
	case dsl.TokenSlash:
		if bf == 0 {
			return divByZero(af, vector)
		}
		return af / bf, nil
	default:
		if bf == 0 {
			return divByZero(0, vector)
		}
		m := math.Mod(af, bf)
		if m != 0 && (m < 0) != (bf < 0) {
			m += bf
		}
		return m, nil
	}
}

func divByZero(numerator float64, vector bool) (any, error) {
	if !vector {
		return nil, ErrDivisionByZero
	}
	switch {
	case numerator > 0:
		return math.Inf(1), nil
	case numerator < 0:
		return math.Inf(-1), nil
	}
	return nil, nil
}

// compare evaluates a comparison. Null never compares equal to anything.
func compare(op dsl.TokenType, a, b any) (any, error) {
	if a == nil || b == nil {
		return op == dsl.TokenNE, nil
	}

	c, ok := order(a, b)
	if !ok {
		switch op {
		case dsl.TokenEQ:
			return false, nil
		case dsl.TokenNE:
			return true, nil
		}
		return nil, fmt.Errorf("%w: cannot order %s and %s", ErrTypeMismatch, typeName(a), typeName(b))
	}

	switch op {
	case dsl.TokenEQ:
		return c == 0, nil
	case dsl.TokenNE:
		return c != 0, nil
	case dsl.TokenLT:
		return c < 0, nil
	case dsl.TokenLE:
		return c <= 0, nil
	case dsl.TokenGT:
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

// order compares two non-null scalars of compatible types, returning -1, 0 or 1.
func order(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), true
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0, true
			case !av:
				return -1, true
			}
			return 1, true
		}
	}
	return 0, false
}

// unaryOp applies a prefix operator to a scalar or column.
func unaryOp(op dsl.TokenType, v any) (any, error) {
	apply := func(x any) (any, error) {
		switch op {
		case dsl.TokenMinus:
			switch val := x.(type) {
			case nil:
				return nil, nil
			case int64:
				return -val, nil
			case float64:
				return -val, nil
			}
			return nil, fmt.Errorf("%w: bad operand type for unary -: %s", ErrTypeMismatch, typeName(x))
		case dsl.TokenNot:
			b, err := asBool(x)
			if err != nil {
				return nil, err
			}
			return !b, nil
		}
		return nil, fmt.Errorf("%w: unsupported operator %v", ErrTypeMismatch, op)
	}

	if s, ok := v.(dataframe.Series); ok {
		t := TypeUnknown
		if op == dsl.TokenNot {
			t = TypeBool
		}
		return mapSeries(s, t, apply)
	}
	if !isScalar(v) {
		return nil, fmt.Errorf("%w: bad operand type for %v: %s", ErrTypeMismatch, op, typeName(v))
	}
	return apply(v)
}
