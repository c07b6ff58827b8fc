package dsl

import (
	"strings"
	"unicode"
)

// Lexer tokenizes DFL source code.
type Lexer struct {
	input  string
	pos    int
	line   int
	col    int
	depth  int // open ( and [ count; newlines inside brackets are not significant
	tokens []Token
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		pos:    0,
		line:   1,
		col:    1,
		tokens: []Token{},
	}
}

// Tokenize tokenizes the entire input and returns the tokens.
// Lexical problems are reported as TokenIllegal so the parser can fail on them.
func (l *Lexer) Tokenize() []Token {
	for l.pos < len(l.input) {
		l.skipWhitespace()
		if l.pos >= len(l.input) {
			break
		}

		ch := l.peek()

		switch {
		case ch == '\n' || ch == ';':
			if ch == ';' || l.significantNewline() {
				l.emit(TokenNewline, "\n")
			}
			l.advance()
			if ch == '\n' {
				l.line++
				l.col = 1
			}

		case ch == '#':
			l.scanComment()

		case ch == '"' || ch == '\'':
			l.scanString(ch)

		case ch == '|':
			switch l.peekNext() {
			case '>':
				l.emit(TokenPipe, "|>")
				l.advance()
				l.advance()
			case '|':
				l.emit(TokenOr, "||")
				l.advance()
				l.advance()
			default:
				l.emit(TokenOr, "|")
				l.advance()
			}

		case ch == '&':
			if l.peekNext() == '&' {
				l.emit(TokenAnd, "&&")
				l.advance()
			} else {
				l.emit(TokenAnd, "&")
			}
			l.advance()

		case ch == '=':
			if l.peekNext() == '=' {
				l.emit(TokenEQ, "==")
				l.advance()
			} else {
				l.emit(TokenAssign, "=")
			}
			l.advance()

		case ch == '!':
			if l.peekNext() == '=' {
				l.emit(TokenNE, "!=")
				l.advance()
			} else {
				l.emit(TokenNot, "!")
			}
			l.advance()

		case ch == '~':
			l.emit(TokenNot, "~")
			l.advance()

		case ch == '<':
			if l.peekNext() == '=' {
				l.emit(TokenLE, "<=")
				l.advance()
			} else {
				l.emit(TokenLT, "<")
			}
			l.advance()

		case ch == '>':
			if l.peekNext() == '=' {
				l.emit(TokenGE, ">=")
				l.advance()
			} else {
				l.emit(TokenGT, ">")
			}
			l.advance()

		case ch == '+':
			l.emit(TokenPlus, "+")
			l.advance()

		case ch == '-':
			l.emit(TokenMinus, "-")
			l.advance()

		case ch == '*':
			l.emit(TokenStar, "*")
			l.advance()

		case ch == '/':
			l.emit(TokenSlash, "/")
			l.advance()

		case ch == '%':
			l.emit(TokenPercent, "%")
			l.advance()

		case ch == '(':
			l.depth++
			l.emit(TokenLParen, "(")
			l.advance()

		case ch == ')':
			if l.depth > 0 {
				l.depth--
			}
			l.emit(TokenRParen, ")")
			l.advance()

		case ch == '[':
			l.depth++
			l.emit(TokenLBracket, "[")
			l.advance()

		case ch == ']':
			if l.depth > 0 {
				l.depth--
			}
			l.emit(TokenRBracket, "]")
			l.advance()

		case ch == ',':
			l.emit(TokenComma, ",")
			l.advance()

		case ch == ':':
			l.emit(TokenColon, ":")
			l.advance()

		case ch == '.':
			if unicode.IsDigit(rune(l.peekNext())) {
				l.scanNumber()
			} else {
				l.emit(TokenDot, ".")
				l.advance()
			}

		case unicode.IsDigit(rune(ch)):
			l.scanNumber()

		case unicode.IsLetter(rune(ch)) || ch == '_':
			l.scanIdentifier()

		default:
			l.emit(TokenIllegal, string(ch))
			l.advance()
		}
	}

	l.tokens = append(l.tokens, Token{Type: TokenEOF, Value: "", Line: l.line, Col: l.col})
	return l.tokens
}

func (l *Lexer) emit(t TokenType, value string) {
	l.tokens = append(l.tokens, Token{Type: t, Value: value, Line: l.line, Col: l.col})
}

// significantNewline reports whether a newline at the current position ends a
// statement. Newlines inside brackets, after a pipe, or before a line that
// starts with a pipe are continuations.
func (l *Lexer) significantNewline() bool {
	if l.depth > 0 {
		return false
	}
	if n := len(l.tokens); n > 0 && l.tokens[n-1].Type == TokenPipe {
		return false
	}
	rest := strings.TrimLeft(l.input[l.pos:], " \t\r\n")
	return !strings.HasPrefix(rest, "|>")
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) peekNext() byte {
	if l.pos+1 >= len(l.input) {
		return 0
	}
	return l.input[l.pos+1]
}

func (l *Lexer) advance() {
	if l.pos < len(l.input) {
		l.pos++
		l.col++
	}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == ' ' || ch == '\t' || ch == '\r' {
			l.col++
			l.pos++
		} else {
			break
		}
	}
}

func (l *Lexer) scanComment() {
	for l.pos < len(l.input) && l.input[l.pos] != '\n' {
		l.pos++
		l.col++
	}
}

// scanString reads a quoted string. A backslash escapes the quote character and
// itself; any other escape is kept verbatim so regex patterns like "\d+" survive.
func (l *Lexer) scanString(quote byte) {
	startLine, startCol := l.line, l.col
	l.advance() // opening quote

	var sb strings.Builder
	for l.pos < len(l.input) && l.input[l.pos] != quote {
		ch := l.input[l.pos]
		if ch == '\n' {
			l.emitAt(TokenIllegal, "unterminated string", startLine, startCol)
			return
		}
		if ch == '\\' && l.pos+1 < len(l.input) {
			next := l.input[l.pos+1]
			if next == quote || next == '\\' {
				sb.WriteByte(next)
				l.advance()
				l.advance()
				continue
			}
		}
		sb.WriteByte(ch)
		l.advance()
	}

	if l.pos >= len(l.input) {
		l.emitAt(TokenIllegal, "unterminated string", startLine, startCol)
		return
	}
	l.advance() // closing quote
	l.emitAt(TokenString, sb.String(), startLine, startCol)
}

func (l *Lexer) emitAt(t TokenType, value string, line, col int) {
	l.tokens = append(l.tokens, Token{Type: t, Value: value, Line: line, Col: col})
}

func (l *Lexer) scanNumber() {
	startCol := l.col
	start := l.pos
	isFloat := false

	for l.pos < len(l.input) && unicode.IsDigit(rune(l.input[l.pos])) {
		l.advance()
	}

	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		// 1.5 is a float; 1.foo is a member access on 1
		if l.pos+1 >= len(l.input) || !unicode.IsLetter(rune(l.input[l.pos+1])) {
			isFloat = true
			l.advance()
			for l.pos < len(l.input) && unicode.IsDigit(rune(l.input[l.pos])) {
				l.advance()
			}
		}
	}

	// Exponent: 1e6, 2.5E-3
	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		j := l.pos + 1
		if j < len(l.input) && (l.input[j] == '+' || l.input[j] == '-') {
			j++
		}
		if j < len(l.input) && unicode.IsDigit(rune(l.input[j])) {
			isFloat = true
			for l.pos < j {
				l.advance()
			}
			for l.pos < len(l.input) && unicode.IsDigit(rune(l.input[l.pos])) {
				l.advance()
			}
		}
	}

	value := l.input[start:l.pos]
	if isFloat {
		l.tokens = append(l.tokens, Token{Type: TokenFloat, Value: value, Line: l.line, Col: startCol})
	} else {
		l.tokens = append(l.tokens, Token{Type: TokenInt, Value: value, Line: l.line, Col: startCol})
	}
}

func (l *Lexer) scanIdentifier() {
	startCol := l.col
	start := l.pos

	l.advance()
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch)) || ch == '_' {
			l.advance()
		} else {
			break
		}
	}

	value := l.input[start:l.pos]
	tokenType := LookupIdent(strings.ToLower(value))
	l.tokens = append(l.tokens, Token{Type: tokenType, Value: value, Line: l.line, Col: startCol})
}
