package translate

import (
	"fmt"
	"strings"

	"github.com/akhildatla/dfagent/pkg/interp"
)

const languageRules = `The program is written in DFL, a small dataframe language. It is NOT Python.

DFL rules:
- One statement per line. Statements: name = expr, df.col = expr, df["col"] = expr.
- The working dataframe is always named df. Columns are df.col or df["col"].
- Literals: 1, 2.5, "text", true, false, none, [a, b].
- Operators: + - * / %, == != < <= > >=, and, or, not.
- Pipelines: df = df |> verb(...) |> verb(...)
- Verbs: select(cols...), filter(cond), where(cond), mutate(name = expr, ...),
  group_by(cols...), summarize(name = agg(col), ...), take(n),
  join(other, on: key), left_join, right_join, outer_join.
- Inside filter, mutate and summarize bare names refer to columns of the piped frame.
- x |> f(a) is f(x, a), and x.f(a) is f(x, a).
- Only the functions listed below exist. Nothing else can be called or imported.
`

const (
	cleanTask = `You are a professional data analyst. Write a compact DFL program that cleans
the dataframe df according to the instruction. The result must stay bound to df.`

	transformTask = `You are a professional data analyst. Write a compact DFL program that performs
the requested transformation on df: encoding, scaling, binning, regex text
cleaning or new columns derived from existing ones. The result must stay bound to df.`

	visualizeTask = `You are a professional data analyst. Write a compact DFL program that builds
the requested chart from df and binds it to fig. Do not modify df.`

	outputRules = `Return only the DFL program. No explanations, no markdown fences, no comments.`
)

// SystemPrompt builds the instructional preamble for intent over the given
// schema. It lists exactly the capabilities the executor exposes for intent.
func SystemPrompt(intent Intent, columns []string) string {
	var b strings.Builder

	switch intent {
	case IntentTransform:
		b.WriteString(transformTask)
	case IntentVisualize:
		b.WriteString(visualizeTask)
	default:
		b.WriteString(cleanTask)
	}
	b.WriteString("\n\n")
	b.WriteString(languageRules)

	b.WriteString("\nFunctions:\n")
	for _, c := range interp.Capabilities(intent.Capabilities()) {
		fmt.Fprintf(&b, "- %s\n", c.Usage)
	}

	b.WriteString("\nDataFrame columns: ")
	b.WriteString(formatColumns(columns))
	b.WriteString("\n\n")
	b.WriteString(outputRules)
	return b.String()
}

func formatColumns(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
