package interp

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/akhildatla/dfagent/internal/testutil"
	"github.com/akhildatla/dfagent/pkg/dsl"
)

func runIn(ns *Namespace, code string, opts ...Option) error {
	prog, err := dsl.Parse(code)
	if err != nil {
		return err
	}
	return New(ns, opts...).Run(context.Background(), prog)
}

func run(t *testing.T, df *dataframe.DataFrame, set CapabilitySet, code string) *Namespace {
	t.Helper()
	ns := NewNamespace(df, set)
	if err := runIn(ns, code); err != nil {
		t.Fatalf("run %q: %v", code, err)
	}
	return ns
}

func resultFrame(t *testing.T, ns *Namespace) *dataframe.DataFrame {
	t.Helper()
	v, ok := ns.Lookup(FrameBinding)
	if !ok {
		t.Fatal("df is not bound")
	}
	df, ok := v.(*dataframe.DataFrame)
	if !ok {
		t.Fatalf("df is %s, want frame", typeName(v))
	}
	return df
}

func binding(t *testing.T, ns *Namespace, name string) any {
	t.Helper()
	v, ok := ns.Lookup(name)
	if !ok {
		t.Fatalf("%s is not bound", name)
	}
	return v
}

func assertValues(t *testing.T, df *dataframe.DataFrame, col string, want []any) {
	t.Helper()
	got := testutil.Column(t, df, col)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("column %s = %v, want %v", col, got, want)
	}
}

// ===== Statements and pipes =====

func TestRun_FilterPipe(t *testing.T) {
	ns := run(t, testutil.MakeSalesFrame(), Base, `df = df |> filter(price > 10)`)
	df := resultFrame(t, ns)

	if df.NRows() != 4 {
		t.Fatalf("expected 4 rows, got %d", df.NRows())
	}
	assertValues(t, df, "category", []any{"A", "B", "C", "B"})
}

func TestRun_FilterMultipleConditions(t *testing.T) {
	ns := run(t, testutil.MakeSalesFrame(), Base, `df = df |> filter(price > 10, category == "B")`)
	assertValues(t, resultFrame(t, ns), "price", []any{20.0, 15.0})
}

func TestRun_ColumnAssignment(t *testing.T) {
	ns := run(t, testutil.MakeSalesFrame(), Base, `df.total = df.price * df.quantity`)
	assertValues(t, resultFrame(t, ns), "total", []any{52.5, 300.0, 15.0, 600.0, 120.0})
}

func TestRun_IndexAssignment(t *testing.T) {
	ns := run(t, testutil.MakeSimpleFrame(), Base, `df["c"] = df["a"] + df["b"]`)
	assertValues(t, resultFrame(t, ns), "c", []any{int64(3), int64(7), int64(11)})
}

func TestRun_MutateSeesEarlierAssignments(t *testing.T) {
	ns := run(t, testutil.MakeSalesFrame(), Base,
		`df = df |> mutate(total = price * quantity, big = total > 100)`)
	assertValues(t, resultFrame(t, ns), "big", []any{false, true, false, true, true})
}

func TestRun_ScalarBroadcast(t *testing.T) {
	ns := run(t, testutil.MakeSimpleFrame(), Base, `df.flag = "x"`)
	assertValues(t, resultFrame(t, ns), "flag", []any{"x", "x", "x"})
}

func TestRun_SelectAndTake(t *testing.T) {
	ns := run(t, testutil.MakeSalesFrame(), Base, `df = df |> select(category, "price") |> take(2)`)
	df := resultFrame(t, ns)

	if got := df.Names(); !reflect.DeepEqual(got, []string{"category", "price"}) {
		t.Errorf("columns = %v", got)
	}
	if df.NRows() != 2 {
		t.Errorf("expected 2 rows, got %d", df.NRows())
	}
}

func TestRun_GroupBySummarize(t *testing.T) {
	ns := run(t, testutil.MakeSalesFrame(), Base, `
df = df
  |> group_by(category)
  |> summarize(total = sum(quantity), n = count(), avg = mean(price))
`)
	df := resultFrame(t, ns)

	assertValues(t, df, "category", []any{"A", "B", "C"})
	assertValues(t, df, "total", []any{int64(8), int64(23), int64(20)})
	assertValues(t, df, "n", []any{int64(2), int64(2), int64(1)})
	assertValues(t, df, "avg", []any{7.75, 17.5, 30.0})
}

func TestRun_SummarizeWholeFrame(t *testing.T) {
	ns := run(t, testutil.MakeSalesFrame(), Base, `df = df |> summarize(total = sum(price), top = max(quantity))`)
	df := resultFrame(t, ns)

	if df.NRows() != 1 {
		t.Fatalf("expected 1 row, got %d", df.NRows())
	}
	assertValues(t, df, "total", []any{80.5})
	assertValues(t, df, "top", []any{int64(20)})
}

func TestRun_Joins(t *testing.T) {
	labels := dataframe.NewDataFrame(
		dataframe.NewSeriesString("category", nil, "A", "B"),
		dataframe.NewSeriesString("label", nil, "alpha", "beta"),
	)

	tests := []struct {
		code  string
		rows  int
		label []any
	}{
		{`df = df |> join(labels, on: category)`, 4, []any{"alpha", "beta", "alpha", "beta"}},
		{`df = df |> left_join(labels, on = category)`, 5, []any{"alpha", "beta", "alpha", nil, "beta"}},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			ns := NewNamespace(testutil.MakeSalesFrame(), Base)
			ns.Bind("labels", labels)
			if err := runIn(ns, tt.code); err != nil {
				t.Fatalf("run: %v", err)
			}
			df := resultFrame(t, ns)
			if df.NRows() != tt.rows {
				t.Fatalf("expected %d rows, got %d", tt.rows, df.NRows())
			}
			assertValues(t, df, "label", tt.label)
		})
	}
}

func TestRun_OuterJoinKeepsBothSides(t *testing.T) {
	left := dataframe.NewDataFrame(
		dataframe.NewSeriesInt64("id", nil, 1, 2),
		dataframe.NewSeriesString("v", nil, "a", "b"),
	)
	right := dataframe.NewDataFrame(
		dataframe.NewSeriesInt64("id", nil, 2, 3),
		dataframe.NewSeriesString("v", nil, "x", "y"),
	)

	out, err := joinFrames(context.Background(), left, right, "id", "outer")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	assertValues(t, out, "id", []any{int64(1), int64(2), int64(3)})
	assertValues(t, out, "v", []any{"a", "b", nil})
	assertValues(t, out, "right_v", []any{nil, "x", "y"})
}

func TestRun_MethodCallSyntax(t *testing.T) {
	ns := run(t, testutil.MakeSalesFrame(), Base, `m = df.price.mean()
u = df.category.nunique()`)

	if got := binding(t, ns, "m"); got != 16.1 {
		t.Errorf("m = %v, want 16.1", got)
	}
	if got := binding(t, ns, "u"); got != int64(3) {
		t.Errorf("u = %v, want 3", got)
	}
}

// ===== Value semantics =====

func TestRun_NullPropagation(t *testing.T) {
	ns := run(t, testutil.MakeDirtyFrame(), Base, `df.p2 = df.price * 2`)
	assertValues(t, resultFrame(t, ns), "p2", []any{21.0, nil, 21.0, 60.0, 30.0})
}

func TestRun_NullComparisons(t *testing.T) {
	ns := run(t, testutil.MakeDirtyFrame(), Base, `
eq = df |> filter(price == 10.5)
ne = df |> filter(price != 10.5)
`)
	eq := binding(t, ns, "eq").(*dataframe.DataFrame)
	ne := binding(t, ns, "ne").(*dataframe.DataFrame)

	if eq.NRows() != 2 {
		t.Errorf("== kept %d rows, want 2", eq.NRows())
	}
	if ne.NRows() != 3 {
		t.Errorf("!= kept %d rows, want 3", ne.NRows())
	}
}

func TestRun_ScalarArithmetic(t *testing.T) {
	ns := run(t, nil, Base, `
a = 7 / 2
b = -7 % 3
c = 7 % -3
d = 2 + 3 * 4
e = "ab" + "cd"
f = 1 == "1"
`)
	want := map[string]any{
		"a": 3.5,
		"b": int64(2),
		"c": int64(-2),
		"d": int64(14),
		"e": "abcd",
		"f": false,
	}
	for name, w := range want {
		if got := binding(t, ns, name); got != w {
			t.Errorf("%s = %v (%T), want %v (%T)", name, got, got, w, w)
		}
	}
}

func TestRun_VectorDivisionByZero(t *testing.T) {
	df := dataframe.NewDataFrame(
		dataframe.NewSeriesFloat64("x", nil, 1.0, -1.0, 0.0),
	)
	ns := run(t, df, Base, `df.y = df.x / 0`)
	got := testutil.Column(t, resultFrame(t, ns), "y")

	if !math.IsInf(got[0].(float64), 1) || !math.IsInf(got[1].(float64), -1) {
		t.Errorf("expected +Inf and -Inf, got %v", got[:2])
	}
	if got[2] != nil {
		t.Errorf("0/0 = %v, want null", got[2])
	}
}

func TestRun_CopyOnWrite(t *testing.T) {
	orig := testutil.MakeSalesFrame()
	run(t, orig, Base, `df.price = df.price * 100
df = df |> filter(price > 2000)`)

	if orig.NRows() != 5 {
		t.Errorf("original frame lost rows: %d", orig.NRows())
	}
	if got := orig.Series[0].Value(0); got != 10.5 {
		t.Errorf("original price changed to %v", got)
	}
}

// ===== Errors =====

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want error
	}{
		{"unknown function", `x = eval("1")`, ErrNameNotFound},
		{"unknown variable", `x = y + 1`, ErrNameNotFound},
		{"capability as value", `x = sum`, ErrTypeMismatch},
		{"scalar division by zero", `x = 1 / 0`, ErrDivisionByZero},
		{"scalar modulo by zero", `x = 1 % 0`, ErrDivisionByZero},
		{"missing column", `df = df |> select(nope)`, ErrNameNotFound},
		{"missing column by name", `df = df |> select("nope")`, ErrColumnNotFound},
		{"missing member", `x = df.nope`, ErrColumnNotFound},
		{"mixed ordering", `x = 1 < "a"`, ErrTypeMismatch},
		{"bad arity", `x = sum(df.price, df.quantity)`, ErrArity},
		{"standalone verb", `x = filter(price > 1)`, ErrInvalidArgument},
		{"group then filter", `x = df |> group_by(category) |> filter(price > 1)`, ErrTypeMismatch},
		{"assign column on scalar", "x = 1\nx.y = 2", ErrTypeMismatch},
		{"extended not loaded", `x = label_encode(df.category)`, ErrNameNotFound},
		{"chart not loaded", `fig = bar(df, x = "category")`, ErrNameNotFound},
		{"length mismatch", `df.z = [1, 2]`, ErrLengthMismatch},
		{"index out of range", `x = df.price[10]`, ErrInvalidArgument},
		{"unknown join key", `x = df |> join(df, on: nope)`, ErrColumnNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ns := NewNamespace(testutil.MakeSalesFrame(), Base)
			err := runIn(ns, tt.code)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRun_FailureLeavesEarlierBindings(t *testing.T) {
	ns := NewNamespace(testutil.MakeSalesFrame(), Base)
	err := runIn(ns, "df = df |> take(2)\nx = 1 / 0")
	if !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", err)
	}
	if got := resultFrame(t, ns).NRows(); got != 2 {
		t.Errorf("first statement should have run, got %d rows", got)
	}
}

func TestRun_StepLimit(t *testing.T) {
	ns := NewNamespace(testutil.MakeSalesFrame(), Base)
	err := runIn(ns, "a = 1 + 2 + 3 + 4 + 5 + 6", WithMaxSteps(5))
	if !errors.Is(err, ErrStepLimitExceeded) {
		t.Errorf("expected step limit error, got %v", err)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	prog, err := dsl.Parse("x = 1")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := New(NewNamespace(nil, Base))
	if err := in.Run(ctx, prog); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if in.Steps() != 0 {
		t.Errorf("no step should run after cancellation, ran %d", in.Steps())
	}
}

func TestRowLoops_StopOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sales := testutil.MakeSalesFrame()
	price := sales.Series[0]
	upper := func(v any) (any, error) { return v, nil }

	checks := map[string]func() error{
		"elementwise": func() error {
			_, err := elementwise(&Call{Ctx: ctx, Name: "upper"}, price, TypeUnknown, upper)
			return err
		},
		"binary": func() error {
			_, err := binaryOp(ctx, dsl.TokenGT, price, int64(10))
			return err
		},
		"group_by": func() error {
			_, err := groupRows(ctx, sales, []string{"category"})
			return err
		},
		"join": func() error {
			_, err := joinFrames(ctx, sales, sales, "category", "inner")
			return err
		},
	}
	for name, check := range checks {
		if err := check(); !errors.Is(err, context.Canceled) {
			t.Errorf("%s: expected context.Canceled, got %v", name, err)
		}
	}

	if _, err := elementwise(&Call{Name: "upper"}, price, TypeUnknown, upper); err != nil {
		t.Errorf("nil context: %v", err)
	}
}

// ===== Namespace =====

func TestNamespace_CapabilitySets(t *testing.T) {
	base := NewNamespace(nil, Base)
	if _, ok := base.Capability("fillna"); !ok {
		t.Error("base namespace should expose fillna")
	}
	if _, ok := base.Capability("one_hot"); ok {
		t.Error("base namespace should not expose one_hot")
	}
	if _, ok := base.Lookup(FrameBinding); ok {
		t.Error("nil frame should leave df unbound")
	}

	all := NewNamespace(nil, Base|Extended|Charting)
	for _, name := range []string{"fillna", "one_hot", "re_match", "scatter", "pie"} {
		if _, ok := all.Capability(name); !ok {
			t.Errorf("full namespace is missing %s", name)
		}
	}
}

func TestCapabilities_SortedAndDocumented(t *testing.T) {
	caps := Capabilities(Base | Extended | Charting)
	seen := make(map[string]bool)
	for i, c := range caps {
		if c.Usage == "" || c.Fn == nil {
			t.Errorf("%s is missing usage or implementation", c.Name)
		}
		if seen[c.Name] {
			t.Errorf("%s registered twice", c.Name)
		}
		seen[c.Name] = true
		if i > 0 && caps[i-1].Name > c.Name {
			t.Errorf("capabilities not sorted at %s", c.Name)
		}
		if dsl.LookupIdent(c.Name) != dsl.TokenIdent {
			t.Errorf("%s collides with a keyword", c.Name)
		}
	}
}

func TestNamespace_Names(t *testing.T) {
	names := NewNamespace(nil, Charting).Names()
	want := []string{"bar", "histogram", "line", "pie", "scatter"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Names() = %v, want %v", names, want)
	}
}
