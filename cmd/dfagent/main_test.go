package main

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
	"github.com/akhildatla/dfagent/pkg/llm"
	"github.com/akhildatla/dfagent/pkg/llm/llmtest"
)

// execute runs the CLI in-process with a fake client answering reply.
func execute(t *testing.T, client llm.Client, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("DFAGENT_LOG_LEVEL", "error")

	a := &app{newClient: func(context.Context, llm.Config) (llm.Client, error) {
		return client, nil
	}}
	cmd := newRootCmd(a)

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestCLI_Version(t *testing.T) {
	out, _, err := execute(t, nil, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "dfagent version dev")
}

func TestCLI_Clean(t *testing.T) {
	input := testutil.TempCSV(t, testutil.DirtyCSV())
	output := filepath.Join(t.TempDir(), "clean.csv")

	out, errOut, err := execute(t, &llmtest.Static{Reply: "df = df |> dropna()"},
		"", "clean", input, "drop", "incomplete", "rows", "-o", output)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 3 rows")
	assert.Contains(t, errOut, "clean ok")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "price,quantity,category"))
}

func TestCLI_TransformToStdout(t *testing.T) {
	input := testutil.TempCSV(t, testutil.SalesCSV())

	out, _, err := execute(t, &llmtest.Static{Reply: "df.code = label_encode(df.category)"},
		"", "transform", input, "encode category")
	require.NoError(t, err)
	out = strings.ToLower(out)
	assert.Contains(t, out, "code")
	assert.Contains(t, out, "5x4")
}

func TestCLI_FailedRequestReturnsInput(t *testing.T) {
	input := testutil.TempCSV(t, testutil.SalesCSV())
	client := &llmtest.Static{Reply: "df = df |> select(nope)"}

	out, errOut, err := execute(t, client, "", "clean", input, "pick nope")
	require.NoError(t, err)
	assert.Contains(t, errOut, "clean failed")
	assert.Contains(t, errOut, "select(nope)")
	assert.Contains(t, strings.ToLower(out), "5x3")

	_, _, err = execute(t, client, "", "clean", input, "pick nope", "--strict")
	assert.ErrorIs(t, err, errRequestFailed)
}

func TestCLI_Visualize(t *testing.T) {
	input := testutil.TempCSV(t, testutil.SalesCSV())
	dash := filepath.Join(t.TempDir(), "dash.html")
	client := llmtest.Script{Replies: map[string]string{
		"revenue": `fig = bar(df, x="category", y="price")`,
		"mix":     `fig = pie(df, names="category")`,
		"broken":  `fig = 1`,
	}}

	out, _, err := execute(t, client, "", "visualize", input, "revenue", "mix", "broken",
		"--label", "Revenue,Mix", "--out", dash)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 2 of 3 charts")

	data, err := os.ReadFile(dash)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Revenue")
	assert.Contains(t, string(data), "Mix")
}

func TestCLI_VisualizeNothingBuilt(t *testing.T) {
	input := testutil.TempCSV(t, testutil.SalesCSV())
	_, _, err := execute(t, &llmtest.Static{Err: llm.ErrRateLimited}, "", "visualize", input, "anything",
		"--out", filepath.Join(t.TempDir(), "dash.html"))
	assert.ErrorContains(t, err, "no chart")
}

func TestCLI_Run(t *testing.T) {
	input := testutil.TempCSV(t, testutil.SalesCSV())
	program := testutil.TempFile(t, "df = df |> filter(price > 12)\ndf.total = df.price * df.quantity\n", ".dfl")
	output := filepath.Join(t.TempDir(), "out.json")

	out, _, err := execute(t, nil, "", "run", input, program, "-o", output)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 3 rows")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(strings.TrimSpace(string(data)), "\n")+1)
	assert.Contains(t, string(data), "total")
}

func TestCLI_RunFailure(t *testing.T) {
	input := testutil.TempCSV(t, testutil.SalesCSV())
	program := testutil.TempFile(t, "df = df / 0", ".dfl")

	_, _, err := execute(t, nil, "", "run", input, program)
	assert.ErrorContains(t, err, "program failed")
}

func TestCLI_Repl(t *testing.T) {
	input := testutil.TempCSV(t, testutil.SalesCSV())

	out, _, err := execute(t, &llmtest.Static{Reply: "df = df |> take(2)"}, "clean keep two rows\nschema\nquit\n", "repl", input)
	require.NoError(t, err)
	assert.Contains(t, out, "2 rows, 3 columns")
	assert.Contains(t, out, "Goodbye")
}

func TestCLI_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing instruction", []string{"clean", "x.csv"}},
		{"missing input file", []string{"clean", "/nonexistent/x.csv", "do it"}},
		{"unknown command", []string{"summon"}},
		{"run needs program", []string{"run", "x.csv"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, &llmtest.Static{Reply: "x = 1"}, "", tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestCLI_ClientConstructionError(t *testing.T) {
	input := testutil.TempCSV(t, testutil.SalesCSV())
	t.Setenv("DFAGENT_LOG_LEVEL", "error")

	a := &app{newClient: func(context.Context, llm.Config) (llm.Client, error) {
		return nil, llm.ErrNoAPIKey
	}}
	cmd := newRootCmd(a)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "clean", input, "x"})

	err := cmd.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, llm.ErrNoAPIKey)
}
