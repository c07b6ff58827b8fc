package repl

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhildatla/dfagent/internal/testutil"
	"github.com/akhildatla/dfagent/pkg/analyst"
	"github.com/akhildatla/dfagent/pkg/llm/llmtest"
)

func newREPL(reply string, opts ...Option) *REPL {
	return New(analyst.New(&llmtest.Static{Reply: reply}), opts...)
}

func exec(t *testing.T, r *REPL, input string) string {
	t.Helper()
	var out bytes.Buffer
	require.True(t, r.handleCommand(context.Background(), input, &out))
	return out.String()
}

func TestREPL_Help(t *testing.T) {
	r := newREPL("")
	for _, cmd := range []string{"help", "h", "?"} {
		out := exec(t, r, cmd)
		for _, s := range []string{"dfagent REPL Commands", "load", "clean", "transform", "plot", "run", "show", "schema", "undo", "history", "save", "dashboard", "quit"} {
			assert.Contains(t, out, s, cmd)
		}
	}
}

func TestREPL_Quit(t *testing.T) {
	r := newREPL("")
	for _, cmd := range []string{"quit", "exit", "q"} {
		var out bytes.Buffer
		assert.False(t, r.handleCommand(context.Background(), cmd, &out))
		assert.Contains(t, out.String(), "Goodbye")
	}
}

func TestREPL_RequiresFrame(t *testing.T) {
	r := newREPL("df = df")
	for _, cmd := range []string{"clean x", "transform x", "plot x", "run df = df", "show", "schema", "save out.csv"} {
		assert.Contains(t, exec(t, r, cmd), "No frame loaded", cmd)
	}
}

func TestREPL_Usage(t *testing.T) {
	r := newREPL("", WithFrame(testutil.MakeSalesFrame()))
	tests := map[string]string{
		"load":      "Usage: load",
		"clean":     "Usage: clean",
		"transform": "Usage: transform",
		"plot":      "Usage: plot",
		"plot X:":   "Usage: plot",
		"run":       "Usage: run",
		"show zero": "Usage: show",
		"show -1":   "Usage: show",
		"save":      "Usage: save",
		"dashboard": "Usage: dashboard",
	}
	for cmd, want := range tests {
		assert.Contains(t, exec(t, r, cmd), want, cmd)
	}
}

func TestREPL_Unknown(t *testing.T) {
	assert.Contains(t, exec(t, newREPL(""), "summon df"), `Unknown command "summon"`)
}

func TestREPL_LoadShowSchema(t *testing.T) {
	path := testutil.TempCSV(t, testutil.SalesCSV())
	r := newREPL("")

	assert.Contains(t, exec(t, r, "load "+path), "5 rows, 3 columns")
	require.NotNil(t, r.Frame())

	out := exec(t, r, "show 2")
	assert.Contains(t, out, "10.5")
	assert.Contains(t, out, "3 more rows")

	out = exec(t, r, "schema")
	assert.Contains(t, out, "price")
	assert.Contains(t, out, "category")

	assert.Contains(t, exec(t, r, "load "+filepath.Join(t.TempDir(), "missing.csv")), "Error: loading")
}

func TestREPL_CleanThenUndo(t *testing.T) {
	r := newREPL("df = df |> dropna()", WithFrame(testutil.MakeDirtyFrame()))

	out := exec(t, r, "clean drop rows with gaps")
	assert.Contains(t, out, "df = df |> dropna()")
	assert.Contains(t, out, "ok")
	assert.Equal(t, 3, r.Frame().NRows())

	assert.Contains(t, exec(t, r, "undo"), "5 rows")
	assert.Equal(t, 5, r.Frame().NRows())
	assert.Contains(t, exec(t, r, "undo"), "Nothing to undo")
}

func TestREPL_FailedRequestKeepsFrame(t *testing.T) {
	in := testutil.MakeSalesFrame()
	r := newREPL("df = df |> select(missing)", WithFrame(in))

	out := exec(t, r, "transform pick a column")
	assert.Contains(t, out, "Error:")
	assert.Contains(t, out, "frame unchanged")
	assert.Same(t, in, r.Frame())
	assert.Contains(t, exec(t, r, "undo"), "Nothing to undo")
}

func TestREPL_Transform(t *testing.T) {
	r := newREPL("df.code = label_encode(df.category)", WithFrame(testutil.MakeSalesFrame()))

	assert.Contains(t, exec(t, r, "transform encode category"), "5 rows, 4 columns")
	assert.Contains(t, r.Frame().Names(), "code")
}

func TestREPL_PlotAndDashboard(t *testing.T) {
	r := newREPL(`fig = bar(df, x="category", y="price")`, WithFrame(testutil.MakeSalesFrame()))

	out := exec(t, r, "plot Revenue: price by category")
	assert.Contains(t, out, "Added bar chart")
	assert.Contains(t, out, "(1 charts)")
	assert.Equal(t, "Revenue", r.analyst.Dashboard().Entries()[0].Label)

	path := filepath.Join(t.TempDir(), "dash.html")
	assert.Contains(t, exec(t, r, "dashboard "+path), "Wrote 1 charts")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Revenue")
}

func TestREPL_RunAndSave(t *testing.T) {
	r := newREPL("", WithFrame(testutil.MakeSalesFrame()))

	assert.Contains(t, exec(t, r, "run df = df |> filter(price > 12)"), "3 rows")

	path := filepath.Join(t.TempDir(), "out.csv")
	assert.Contains(t, exec(t, r, "save "+path), "Saved 3 rows")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(strings.TrimSpace(string(data)), "\n")+1)

	assert.Contains(t, exec(t, r, "run df = nonsense("), "Error:")
	assert.Equal(t, 3, r.Frame().NRows())
}

func TestREPL_History(t *testing.T) {
	r := newREPL("", WithFrame(testutil.MakeSalesFrame()))
	exec(t, r, "schema")
	exec(t, r, "show 1")

	out := exec(t, r, "history")
	assert.Contains(t, out, "1: schema")
	assert.Contains(t, out, "2: show 1")
}

func TestREPL_Start_MultilineRun(t *testing.T) {
	r := newREPL("", WithFrame(testutil.MakeSalesFrame()))
	input := "run df = df |> filter(price > 12) \\\n  |> select(price, category)\n\nschema\nquit\nshow\n"

	var out bytes.Buffer
	require.NoError(t, r.Start(context.Background(), strings.NewReader(input), &out))

	output := out.String()
	assert.Contains(t, output, "dfagent")
	assert.Contains(t, output, "3 rows, 2 columns")
	assert.Contains(t, output, "Goodbye")
	assert.Equal(t, []string{"price", "category"}, r.Frame().Names())
	assert.Len(t, r.history, 2)
}

func TestREPL_Start_EOF(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, newREPL("").Start(context.Background(), strings.NewReader("help\n"), &out))
	assert.Contains(t, out.String(), "dfagent REPL Commands")
}

func TestSplitLabel(t *testing.T) {
	tests := []struct {
		in, label, instruction string
	}{
		{"Revenue: bar of price", "Revenue", "bar of price"},
		{"bar of price", "", "bar of price"},
		{"bar of price: by category", "", "bar of price: by category"},
	}
	for _, tt := range tests {
		label, instruction := splitLabel(tt.in)
		assert.Equal(t, tt.label, label, tt.in)
		assert.Equal(t, tt.instruction, instruction, tt.in)
	}
}
