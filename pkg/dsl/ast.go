package dsl

// Node is the interface implemented by all AST nodes.
type Node interface {
	node()
}

// Expr is the interface implemented by all expression nodes.
type Expr interface {
	Node
	expr()
}

// Stmt is the interface implemented by all statement nodes.
type Stmt interface {
	Node
	stmt()
}

// Program represents a complete DFL program.
type Program struct {
	Statements []Stmt
}

func (*Program) node() {}

// ===== Statements =====

// AssignStmt binds the value of an expression to a name.
// Example: df = df |> dropna()
type AssignStmt struct {
	Name  string
	Value Expr
}

func (*AssignStmt) node() {}
func (*AssignStmt) stmt() {}

// ColumnAssignStmt replaces or appends a column of a bound frame.
// Example: df.age = fillna(df.age, mean(df.age))
type ColumnAssignStmt struct {
	Target string
	Column string
	Value  Expr
}

func (*ColumnAssignStmt) node() {}
func (*ColumnAssignStmt) stmt() {}

// ExprStmt represents an expression used as a statement.
type ExprStmt struct {
	Expr Expr
}

func (*ExprStmt) node() {}
func (*ExprStmt) stmt() {}

// ===== Expressions =====

// Ident represents an identifier.
type Ident struct {
	Name string
}

func (*Ident) node() {}
func (*Ident) expr() {}

// IntLit represents an integer literal.
type IntLit struct {
	Value int64
}

func (*IntLit) node() {}
func (*IntLit) expr() {}

// FloatLit represents a float literal.
type FloatLit struct {
	Value float64
}

func (*FloatLit) node() {}
func (*FloatLit) expr() {}

// StringLit represents a string literal.
type StringLit struct {
	Value string
}

func (*StringLit) node() {}
func (*StringLit) expr() {}

// BoolLit represents a boolean literal.
type BoolLit struct {
	Value bool
}

func (*BoolLit) node() {}
func (*BoolLit) expr() {}

// NullLit represents the missing value.
type NullLit struct{}

func (*NullLit) node() {}
func (*NullLit) expr() {}

// ListLit represents a list literal.
// Example: ["age", "income"]
type ListLit struct {
	Elems []Expr
}

func (*ListLit) node() {}
func (*ListLit) expr() {}

// BinaryExpr represents a binary expression.
// Example: price * quantity, x > 10
type BinaryExpr struct {
	Left  Expr
	Op    TokenType
	Right Expr
}

func (*BinaryExpr) node() {}
func (*BinaryExpr) expr() {}

// UnaryExpr represents a unary expression.
// Example: not x, -value
type UnaryExpr struct {
	Op    TokenType
	Right Expr
}

func (*UnaryExpr) node() {}
func (*UnaryExpr) expr() {}

// NamedArg is a keyword argument of a call.
// Example: desc = true, on: id
type NamedArg struct {
	Name  string
	Value Expr
}

// CallExpr represents a capability call.
// Example: mean(df.age), sort(df, "age", desc = true)
type CallExpr struct {
	Func  string
	Args  []Expr
	Named []NamedArg
}

func (*CallExpr) node() {}
func (*CallExpr) expr() {}

// PipeExpr represents a pipe expression.
// Example: df |> filter(age > 18) |> select(name, age)
type PipeExpr struct {
	Left  Expr
	Right Expr
}

func (*PipeExpr) node() {}
func (*PipeExpr) expr() {}

// MemberExpr represents a column access.
// Example: df.price
type MemberExpr struct {
	Object Expr
	Member string
}

func (*MemberExpr) node() {}
func (*MemberExpr) expr() {}

// IndexExpr represents an index access.
// Example: df["price"], df[["a", "b"]], df[df.age > 18]
type IndexExpr struct {
	Object Expr
	Index  Expr
}

func (*IndexExpr) node() {}
func (*IndexExpr) expr() {}

// ===== Frame Verbs =====

// SelectExpr represents column selection.
// Example: select(price, "unit cost")
type SelectExpr struct {
	Columns []Expr
}

func (*SelectExpr) node() {}
func (*SelectExpr) expr() {}

// FilterExpr represents row filtering.
// Example: filter(quantity > 10)
type FilterExpr struct {
	Condition Expr
}

func (*FilterExpr) node() {}
func (*FilterExpr) expr() {}

// MutateExpr represents computed column creation.
// Example: mutate(total = price * quantity)
type MutateExpr struct {
	Assignments []MutateAssign
}

type MutateAssign struct {
	Name  string
	Value Expr
}

func (*MutateExpr) node() {}
func (*MutateExpr) expr() {}

// GroupByExpr represents grouping by columns.
// Example: group_by(category)
type GroupByExpr struct {
	Keys []string
}

func (*GroupByExpr) node() {}
func (*GroupByExpr) expr() {}

// SummarizeExpr represents aggregation after grouping.
// Example: summarize(total = sum(price), n = count())
type SummarizeExpr struct {
	Aggregations []AggregateAssign
}

type AggregateAssign struct {
	Name string
	Func string
	Args []Expr
}

func (*SummarizeExpr) node() {}
func (*SummarizeExpr) expr() {}

// JoinExpr represents a join operation.
// Example: join(other, on: id) or left_join(other, on: "id")
type JoinExpr struct {
	JoinType string // "inner", "left", "right", "outer"
	Right    Expr
	On       string
}

func (*JoinExpr) node() {}
func (*JoinExpr) expr() {}

// TakeExpr keeps the first Count rows.
// Example: take(10)
type TakeExpr struct {
	Count Expr
}

func (*TakeExpr) node() {}
func (*TakeExpr) expr() {}

// Parse tokenizes and parses DFL source into a Program.
func Parse(source string) (*Program, error) {
	tokens := NewLexer(source).Tokenize()
	return NewParser(tokens).Parse()
}
