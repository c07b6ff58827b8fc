package dsl

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrSyntax is wrapped by every error returned from Parse.
var ErrSyntax = errors.New("syntax error")

// Parser parses DFL tokens into an AST.
type Parser struct {
	tokens []Token
	pos    int
	errors []error
}

// NewParser creates a new parser for the given tokens.
func NewParser(tokens []Token) *Parser {
	return &Parser{
		tokens: tokens,
		pos:    0,
		errors: []error{},
	}
}

// Parse parses the tokens into a Program AST. Parsing stops at the first error.
func (p *Parser) Parse() (*Program, error) {
	program := &Program{
		Statements: []Stmt{},
	}

	for !p.isAtEnd() && len(p.errors) == 0 {
		p.skipNewlines()
		if p.isAtEnd() {
			break
		}

		stmt := p.parseStatement()
		if len(p.errors) > 0 {
			break
		}
		if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}

		if !p.check(TokenNewline) && !p.isAtEnd() {
			p.error(fmt.Sprintf("unexpected %v after statement", p.peek()))
		}
	}

	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}

	return program, nil
}

func (p *Parser) parseStatement() Stmt {
	if p.check(TokenIdent) {
		switch next := p.peekAt(1); {
		case next.Type == TokenAssign:
			return p.parseAssignStmt()

		// df.col = expr
		case next.Type == TokenDot && isName(p.peekAt(2)) && p.peekAt(3).Type == TokenAssign:
			target := p.advance().Value
			p.advance() // consume '.'
			column := p.advance().Value
			p.advance() // consume '='
			return &ColumnAssignStmt{Target: target, Column: column, Value: p.parseExpression()}

		// df["col"] = expr
		case next.Type == TokenLBracket && p.peekAt(2).Type == TokenString &&
			p.peekAt(3).Type == TokenRBracket && p.peekAt(4).Type == TokenAssign:
			target := p.advance().Value
			p.advance() // consume '['
			column := p.advance().Value
			p.advance() // consume ']'
			p.advance() // consume '='
			return &ColumnAssignStmt{Target: target, Column: column, Value: p.parseExpression()}
		}
	}

	expr := p.parseExpression()
	if expr != nil {
		return &ExprStmt{Expr: expr}
	}

	return nil
}

func (p *Parser) parseAssignStmt() *AssignStmt {
	name := p.advance().Value
	p.advance() // consume '='
	expr := p.parseExpression()
	return &AssignStmt{Name: name, Value: expr}
}

func (p *Parser) parseExpression() Expr {
	return p.parsePipe()
}

func (p *Parser) parsePipe() Expr {
	left := p.parseOr()

	for p.check(TokenPipe) {
		p.advance() // consume '|>'
		right := p.parsePipeOperation()
		left = &PipeExpr{Left: left, Right: right}
	}

	return left
}

func (p *Parser) parsePipeOperation() Expr {
	if p.peek().Type.IsVerb() {
		return p.parseVerb()
	}
	return p.parsePostfix()
}

func (p *Parser) parseVerb() Expr {
	switch p.peek().Type {
	case TokenFilter:
		return p.parseFilter()
	case TokenSelect:
		return p.parseSelect()
	case TokenMutate:
		return p.parseMutate()
	case TokenGroupBy:
		return p.parseGroupBy()
	case TokenSummarize:
		return p.parseSummarize()
	case TokenJoin:
		return p.parseJoin("inner")
	case TokenLeftJoin:
		return p.parseJoin("left")
	case TokenRightJoin:
		return p.parseJoin("right")
	case TokenOuterJoin:
		return p.parseJoin("outer")
	case TokenTake:
		return p.parseTake()
	}
	p.error(fmt.Sprintf("expected verb, got %v", p.peek()))
	return nil
}

func (p *Parser) parseTake() Expr {
	p.advance() // consume 'take'
	p.expect(TokenLParen)
	count := p.parseExpression()
	p.expect(TokenRParen)
	return &TakeExpr{Count: count}
}

// parseFilter accepts one or more conditions; several are combined with AND.
func (p *Parser) parseFilter() Expr {
	p.advance() // consume 'filter'
	p.expect(TokenLParen)

	var condition Expr
	for !p.check(TokenRParen) && !p.isAtEnd() {
		c := p.parseExpression()
		if condition == nil {
			condition = c
		} else {
			condition = &BinaryExpr{Left: condition, Op: TokenAnd, Right: c}
		}

		if !p.check(TokenComma) {
			break
		}
		p.advance() // consume ','
	}

	p.expect(TokenRParen)
	if condition == nil {
		p.error("filter requires a condition")
	}
	return &FilterExpr{Condition: condition}
}

func (p *Parser) parseSelect() Expr {
	p.advance() // consume 'select'
	p.expect(TokenLParen)

	columns := []Expr{}
	for !p.check(TokenRParen) && !p.isAtEnd() {
		col := p.parseExpression()
		columns = append(columns, col)

		if !p.check(TokenComma) {
			break
		}
		p.advance() // consume ','
	}

	p.expect(TokenRParen)
	return &SelectExpr{Columns: columns}
}

func (p *Parser) parseMutate() Expr {
	p.advance() // consume 'mutate'
	p.expect(TokenLParen)

	assignments := []MutateAssign{}
	for !p.check(TokenRParen) && !p.isAtEnd() {
		name := p.expectName()
		p.expect(TokenAssign)
		value := p.parseExpression()
		assignments = append(assignments, MutateAssign{Name: name, Value: value})

		if !p.check(TokenComma) {
			break
		}
		p.advance() // consume ','
	}

	p.expect(TokenRParen)
	return &MutateExpr{Assignments: assignments}
}

func (p *Parser) parseGroupBy() Expr {
	p.advance() // consume 'group_by'
	p.expect(TokenLParen)

	keys := []string{}
	for !p.check(TokenRParen) && !p.isAtEnd() {
		keys = append(keys, p.expectColumnName())

		if !p.check(TokenComma) {
			break
		}
		p.advance() // consume ','
	}

	p.expect(TokenRParen)
	return &GroupByExpr{Keys: keys}
}

func (p *Parser) parseSummarize() Expr {
	p.advance() // consume 'summarize'
	p.expect(TokenLParen)

	aggregations := []AggregateAssign{}
	for !p.check(TokenRParen) && !p.isAtEnd() {
		name := p.expectName()
		p.expect(TokenAssign)
		funcName := p.expectName()
		args, _ := p.parseArgs()

		aggregations = append(aggregations, AggregateAssign{
			Name: name,
			Func: funcName,
			Args: args,
		})

		if !p.check(TokenComma) {
			break
		}
		p.advance() // consume ','
	}

	p.expect(TokenRParen)
	return &SummarizeExpr{Aggregations: aggregations}
}

func (p *Parser) parseJoin(joinType string) Expr {
	p.advance() // consume 'join', 'left_join', ...
	p.expect(TokenLParen)

	right := p.parseExpression()

	var onColumn string
	if p.check(TokenComma) {
		p.advance()
		if p.check(TokenIdent) && p.peek().Value == "on" {
			p.advance()
			if p.check(TokenColon) || p.check(TokenAssign) {
				p.advance()
			}
			onColumn = p.expectColumnName()
		}
	}

	p.expect(TokenRParen)
	if onColumn == "" {
		p.error("join requires an on: key")
	}
	return &JoinExpr{JoinType: joinType, Right: right, On: onColumn}
}

func (p *Parser) parseOr() Expr {
	left := p.parseAnd()

	for p.check(TokenOr) {
		p.advance()
		right := p.parseAnd()
		left = &BinaryExpr{Left: left, Op: TokenOr, Right: right}
	}

	return left
}

func (p *Parser) parseAnd() Expr {
	left := p.parseNot()

	for p.check(TokenAnd) {
		p.advance()
		right := p.parseNot()
		left = &BinaryExpr{Left: left, Op: TokenAnd, Right: right}
	}

	return left
}

func (p *Parser) parseNot() Expr {
	if p.check(TokenNot) {
		p.advance()
		return &UnaryExpr{Op: TokenNot, Right: p.parseNot()}
	}
	return p.parseEquality()
}

func (p *Parser) parseEquality() Expr {
	left := p.parseComparison()

	for p.check(TokenEQ) || p.check(TokenNE) {
		op := p.advance().Type
		right := p.parseComparison()
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}

	return left
}

func (p *Parser) parseComparison() Expr {
	left := p.parseAdditive()

	for p.check(TokenLT) || p.check(TokenLE) || p.check(TokenGT) || p.check(TokenGE) {
		op := p.advance().Type
		right := p.parseAdditive()
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}

	return left
}

func (p *Parser) parseAdditive() Expr {
	left := p.parseMultiplicative()

	for p.check(TokenPlus) || p.check(TokenMinus) {
		op := p.advance().Type
		right := p.parseMultiplicative()
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}

	return left
}

func (p *Parser) parseMultiplicative() Expr {
	left := p.parseUnary()

	for p.check(TokenStar) || p.check(TokenSlash) || p.check(TokenPercent) {
		op := p.advance().Type
		right := p.parseUnary()
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}

	return left
}

func (p *Parser) parseUnary() Expr {
	if p.check(TokenMinus) {
		p.advance()
		return &UnaryExpr{Op: TokenMinus, Right: p.parseUnary()}
	}
	if p.check(TokenNot) {
		p.advance()
		return &UnaryExpr{Op: TokenNot, Right: p.parseUnary()}
	}

	return p.parsePostfix()
}

func (p *Parser) parsePostfix() Expr {
	expr := p.parsePrimary()

	for expr != nil {
		if p.check(TokenDot) {
			p.advance()
			member := p.expectName()
			if p.check(TokenLParen) {
				// x.f(a) is f(x, a)
				args, named := p.parseArgs()
				expr = &CallExpr{Func: member, Args: append([]Expr{expr}, args...), Named: named}
			} else {
				expr = &MemberExpr{Object: expr, Member: member}
			}
		} else if p.check(TokenLBracket) {
			p.advance()
			index := p.parseExpression()
			p.expect(TokenRBracket)
			expr = &IndexExpr{Object: expr, Index: index}
		} else if p.check(TokenLParen) {
			ident, ok := expr.(*Ident)
			if !ok {
				break
			}
			args, named := p.parseArgs()
			expr = &CallExpr{Func: ident.Name, Args: args, Named: named}
		} else {
			break
		}
	}

	return expr
}

// parseArgs parses a parenthesised argument list. Arguments written as
// name = value or name: value are keyword arguments.
func (p *Parser) parseArgs() ([]Expr, []NamedArg) {
	p.expect(TokenLParen)

	args := []Expr{}
	var named []NamedArg
	for !p.check(TokenRParen) && !p.isAtEnd() {
		if isName(p.peek()) && (p.peekAt(1).Type == TokenAssign || p.peekAt(1).Type == TokenColon) {
			name := p.advance().Value
			p.advance() // consume '=' or ':'
			named = append(named, NamedArg{Name: name, Value: p.parseExpression()})
		} else {
			args = append(args, p.parseExpression())
		}

		if !p.check(TokenComma) {
			break
		}
		p.advance()
	}

	p.expect(TokenRParen)
	return args, named
}

func (p *Parser) parsePrimary() Expr {
	switch {
	case p.check(TokenInt):
		tok := p.advance()
		val, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			p.errorAt(tok, fmt.Sprintf("invalid integer %q", tok.Value))
			return nil
		}
		return &IntLit{Value: val}

	case p.check(TokenFloat):
		tok := p.advance()
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			p.errorAt(tok, fmt.Sprintf("invalid number %q", tok.Value))
			return nil
		}
		return &FloatLit{Value: val}

	case p.check(TokenString):
		return &StringLit{Value: p.advance().Value}

	case p.check(TokenTrue):
		p.advance()
		return &BoolLit{Value: true}

	case p.check(TokenFalse):
		p.advance()
		return &BoolLit{Value: false}

	case p.check(TokenNull):
		p.advance()
		return &NullLit{}

	case p.check(TokenIdent):
		return &Ident{Name: p.advance().Value}

	case p.check(TokenLParen):
		p.advance()
		expr := p.parseExpression()
		p.expect(TokenRParen)
		return expr

	case p.check(TokenLBracket):
		return p.parseList()

	case p.peek().Type.IsVerb():
		return p.parseVerb()

	case p.check(TokenIllegal):
		p.error(fmt.Sprintf("illegal token %q", p.peek().Value))
		return nil

	default:
		p.error(fmt.Sprintf("unexpected token: %v", p.peek()))
		return nil
	}
}

func (p *Parser) parseList() Expr {
	p.advance() // consume '['

	elems := []Expr{}
	for !p.check(TokenRBracket) && !p.isAtEnd() {
		elems = append(elems, p.parseExpression())

		if !p.check(TokenComma) {
			break
		}
		p.advance()
	}

	p.expect(TokenRBracket)
	return &ListLit{Elems: elems}
}

// Helper methods

// isName reports whether a token can be used as a column or argument name.
func isName(t Token) bool {
	return t.Type == TokenIdent || t.Type.IsKeyword()
}

func (p *Parser) expectName() string {
	if isName(p.peek()) {
		return p.advance().Value
	}
	p.error(fmt.Sprintf("expected name, got %v", p.peek().Type))
	return ""
}

// expectColumnName accepts a bare name or a quoted column name.
func (p *Parser) expectColumnName() string {
	if p.check(TokenString) {
		return p.advance().Value
	}
	return p.expectName()
}

func (p *Parser) peek() Token {
	return p.peekAt(0)
}

func (p *Parser) peekAt(n int) Token {
	if p.pos+n >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos+n]
}

func (p *Parser) advance() Token {
	if !p.isAtEnd() {
		p.pos++
	}
	return p.tokens[p.pos-1]
}

func (p *Parser) check(t TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) expect(t TokenType) Token {
	if p.check(t) {
		return p.advance()
	}
	p.error(fmt.Sprintf("expected %v, got %v", t, p.peek().Type))
	return Token{}
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == TokenEOF
}

func (p *Parser) skipNewlines() {
	for p.check(TokenNewline) {
		p.advance()
	}
}

func (p *Parser) error(msg string) {
	p.errorAt(p.peek(), msg)
	if !p.isAtEnd() {
		p.advance() // Skip problematic token
	}
}

func (p *Parser) errorAt(tok Token, msg string) {
	err := fmt.Errorf("%w: line %d, col %d: %s", ErrSyntax, tok.Line, tok.Col, msg)
	p.errors = append(p.errors, err)
}
