package optimizer

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/akhildatla/dfagent/internal/testutil"
	"github.com/akhildatla/dfagent/pkg/dsl"
	"github.com/akhildatla/dfagent/pkg/interp"
)

func mustParse(t *testing.T, code string) *dsl.Program {
	t.Helper()
	prog, err := dsl.Parse(code)
	if err != nil {
		t.Fatalf("parse %q: %v", code, err)
	}
	return prog
}

func assignValue(t *testing.T, prog *dsl.Program, i int) dsl.Expr {
	t.Helper()
	if i >= len(prog.Statements) {
		t.Fatalf("program has %d statements, want index %d", len(prog.Statements), i)
	}
	switch s := prog.Statements[i].(type) {
	case *dsl.AssignStmt:
		return s.Value
	case *dsl.ColumnAssignStmt:
		return s.Value
	}
	t.Fatalf("statement %d is %T", i, prog.Statements[i])
	return nil
}

// execute runs prog on a copy of df and returns every column of the result.
func execute(t *testing.T, prog *dsl.Program, df *dataframe.DataFrame) (map[string][]any, error) {
	t.Helper()
	ns := interp.NewNamespace(df.Copy(), interp.Base)
	if err := interp.New(ns).Run(context.Background(), prog); err != nil {
		return nil, err
	}
	v, _ := ns.Lookup(interp.FrameBinding)
	out := v.(*dataframe.DataFrame)
	cols := make(map[string][]any)
	for _, name := range out.Names() {
		cols[name] = testutil.Column(t, out, name)
	}
	return cols, nil
}

// ===== Constant folding =====

func TestConstantFolding(t *testing.T) {
	tests := []struct {
		code string
		want dsl.Expr
	}{
		{"x = 2 + 3 * 4", &dsl.IntLit{Value: 14}},
		{"x = 7 / 2", &dsl.FloatLit{Value: 3.5}},
		{"x = -7 % 3", &dsl.IntLit{Value: 2}},
		{"x = 1 + 20 / 100", &dsl.FloatLit{Value: 1.2}},
		{`x = "a" + "b"`, &dsl.StringLit{Value: "ab"}},
		{"x = not (1 < 2)", &dsl.BoolLit{Value: false}},
		{"x = true and false", &dsl.BoolLit{Value: false}},
		{"x = 2.5 >= 2", &dsl.BoolLit{Value: true}},
	}

	opt := New(WithConstantFolding())
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := assignValue(t, opt.Optimize(mustParse(t, tt.code)), 0)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("folded mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConstantFolding_KeepsFailures(t *testing.T) {
	for _, code := range []string{"x = 1 / 0", "x = 5 % 0", `x = 1 + "a"`, "x = 1.5 / 0.0"} {
		got := assignValue(t, New(WithConstantFolding()).Optimize(mustParse(t, code)), 0)
		if _, ok := got.(*dsl.BinaryExpr); !ok {
			t.Errorf("%s: expected the failing expression to stay, got %T", code, got)
		}
	}
}

func TestConstantFolding_InsideColumns(t *testing.T) {
	prog := New(WithConstantFolding()).Optimize(mustParse(t, "df.total = df.price * (1 + 1)"))
	bin, ok := assignValue(t, prog, 0).(*dsl.BinaryExpr)
	if !ok {
		t.Fatalf("expected a binary expression")
	}
	if diff := cmp.Diff(&dsl.IntLit{Value: 2}, bin.Right); diff != "" {
		t.Errorf("right operand (-want +got):\n%s", diff)
	}
}

func TestOptimize_DoesNotModifyInput(t *testing.T) {
	prog := mustParse(t, "x = 1 + 2")
	New(WithAllOptimizations()).Optimize(prog)
	if _, ok := assignValue(t, prog, 0).(*dsl.BinaryExpr); !ok {
		t.Error("input program was rewritten in place")
	}
}

// ===== Filter fusion =====

func TestFilterFusion(t *testing.T) {
	prog := New(WithFilterFusion()).Optimize(mustParse(t,
		"df = df |> filter(price > 10) |> filter(quantity < 20) |> filter(category != \"C\")"))

	pipe, ok := assignValue(t, prog, 0).(*dsl.PipeExpr)
	if !ok {
		t.Fatalf("expected a pipe")
	}
	if _, ok := pipe.Left.(*dsl.Ident); !ok {
		t.Errorf("expected all filters fused into one, left is %T", pipe.Left)
	}
	f, ok := pipe.Right.(*dsl.FilterExpr)
	if !ok {
		t.Fatalf("expected a filter, got %T", pipe.Right)
	}
	if and, ok := f.Condition.(*dsl.BinaryExpr); !ok || and.Op != dsl.TokenAnd {
		t.Errorf("expected an and condition, got %#v", f.Condition)
	}
}

func TestFilterFusion_SkipsNonLocalConditions(t *testing.T) {
	tests := []string{
		"df = df |> filter(price > 10) |> filter(price > mean(price))",
		"limit = 5\ndf = df |> filter(price > 10) |> filter(quantity > limit)",
		"df = df |> filter(price > 10) |> filter(df.quantity > 1)",
	}
	for _, code := range tests {
		prog := New(WithFilterFusion()).Optimize(mustParse(t, code))
		last := assignValue(t, prog, len(prog.Statements)-1).(*dsl.PipeExpr)
		if _, ok := last.Left.(*dsl.PipeExpr); !ok {
			t.Errorf("%q: filters should not be fused", code)
		}
	}
}

// ===== Dead code =====

func TestDeadCodeElimination(t *testing.T) {
	prog := New(WithDeadCodeElimination()).Optimize(mustParse(t, `
unused = 42
"just a note"
used = 3
df.x = used
df = df
fig = none
`))
	if len(prog.Statements) != 4 {
		t.Fatalf("expected 4 statements, got %d", len(prog.Statements))
	}
	if s, ok := prog.Statements[0].(*dsl.AssignStmt); !ok || s.Name != "used" {
		t.Errorf("expected the used binding first, got %#v", prog.Statements[0])
	}
}

func TestDeadCodeElimination_KeepsNonLiterals(t *testing.T) {
	prog := New(WithDeadCodeElimination()).Optimize(mustParse(t, "x = 1 / 0\ny = [1, missing]"))
	if len(prog.Statements) != 2 {
		t.Errorf("statements that can fail must stay, got %d", len(prog.Statements))
	}
}

// ===== Equivalence =====

func TestOptimize_PreservesResults(t *testing.T) {
	programs := []string{
		"df = df |> filter(price > 5 + 5) |> filter(quantity < 2 * 10)",
		"scale = 100\ndf.cents = df.price * scale\nnote = \"x\"",
		"df = df |> filter(category == \"B\") |> filter(not (price > 16))",
		"df = df |> mutate(total = price * quantity) |> filter(total > 50) |> filter(quantity > 5)",
	}

	for _, code := range programs {
		t.Run(code, func(t *testing.T) {
			prog := mustParse(t, code)
			want, err := execute(t, prog, testutil.MakeSalesFrame())
			if err != nil {
				t.Fatalf("original: %v", err)
			}
			got, err := execute(t, New(WithAllOptimizations()).Optimize(prog), testutil.MakeSalesFrame())
			if err != nil {
				t.Fatalf("optimized: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("results differ (-original +optimized):\n%s", diff)
			}
		})
	}
}

func TestOptimize_PreservesFailures(t *testing.T) {
	programs := []string{
		"x = 1 / 0",
		"df = df |> filter(price > 10) |> filter(nope > 1)",
		"y = 2\nx = missing",
	}

	for _, code := range programs {
		prog := mustParse(t, code)
		_, origErr := execute(t, prog, testutil.MakeSalesFrame())
		_, optErr := execute(t, New(WithAllOptimizations()).Optimize(prog), testutil.MakeSalesFrame())
		if origErr == nil || optErr == nil {
			t.Errorf("%q: expected both runs to fail, got %v and %v", code, origErr, optErr)
			continue
		}
		if errors.Is(origErr, interp.ErrNameNotFound) != errors.Is(optErr, interp.ErrNameNotFound) {
			t.Errorf("%q: failure changed from %v to %v", code, origErr, optErr)
		}
	}
}
