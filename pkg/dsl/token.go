package dsl

import "fmt"

// TokenType represents the type of a DFL token.
type TokenType uint8

const (
	TokenEOF TokenType = iota
	TokenNewline
	TokenIllegal // unknown character or unterminated string
	TokenIdent   // variable names, function names, column names
	TokenInt     // integer literals
	TokenFloat   // float literals
	TokenString  // "quoted strings"

	// Operators
	TokenAssign  // =
	TokenPipe    // |>
	TokenPlus    // +
	TokenMinus   // -
	TokenStar    // *
	TokenSlash   // /
	TokenPercent // %
	TokenEQ      // ==
	TokenNE      // !=
	TokenLT      // <
	TokenLE      // <=
	TokenGT      // >
	TokenGE      // >=
	TokenAnd     // and, &&, &
	TokenOr      // or, ||, |
	TokenNot     // not, !, ~
	TokenDot     // .

	// Delimiters
	TokenLParen   // (
	TokenRParen   // )
	TokenLBracket // [
	TokenRBracket // ]
	TokenComma    // ,
	TokenColon    // :

	// Verbs
	TokenSelect    // select
	TokenFilter    // filter, where
	TokenMutate    // mutate
	TokenGroupBy   // group_by
	TokenSummarize // summarize
	TokenJoin      // join
	TokenLeftJoin  // left_join
	TokenRightJoin // right_join
	TokenOuterJoin // outer_join
	TokenTake      // take

	// Literals
	TokenTrue  // true
	TokenFalse // false
	TokenNull  // none, null
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "EOF",
	TokenNewline:   "NEWLINE",
	TokenIllegal:   "ILLEGAL",
	TokenIdent:     "IDENT",
	TokenInt:       "INT",
	TokenFloat:     "FLOAT",
	TokenString:    "STRING",
	TokenAssign:    "=",
	TokenPipe:      "|>",
	TokenPlus:      "+",
	TokenMinus:     "-",
	TokenStar:      "*",
	TokenSlash:     "/",
	TokenPercent:   "%",
	TokenEQ:        "==",
	TokenNE:        "!=",
	TokenLT:        "<",
	TokenLE:        "<=",
	TokenGT:        ">",
	TokenGE:        ">=",
	TokenAnd:       "AND",
	TokenOr:        "OR",
	TokenNot:       "NOT",
	TokenDot:       ".",
	TokenLParen:    "(",
	TokenRParen:    ")",
	TokenLBracket:  "[",
	TokenRBracket:  "]",
	TokenComma:     ",",
	TokenColon:     ":",
	TokenSelect:    "SELECT",
	TokenFilter:    "FILTER",
	TokenMutate:    "MUTATE",
	TokenGroupBy:   "GROUP_BY",
	TokenSummarize: "SUMMARIZE",
	TokenJoin:      "JOIN",
	TokenLeftJoin:  "LEFT_JOIN",
	TokenRightJoin: "RIGHT_JOIN",
	TokenOuterJoin: "OUTER_JOIN",
	TokenTake:      "TAKE",
	TokenTrue:      "TRUE",
	TokenFalse:     "FALSE",
	TokenNull:      "NULL",
}

// String returns the string representation of a token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsVerb reports whether the token starts a frame verb.
func (t TokenType) IsVerb() bool {
	return t >= TokenSelect && t <= TokenTake
}

// IsKeyword reports whether the token is spelled as a word.
func (t TokenType) IsKeyword() bool {
	switch t {
	case TokenAnd, TokenOr, TokenNot, TokenTrue, TokenFalse, TokenNull:
		return true
	}
	return t.IsVerb()
}

// Token represents a lexical token.
type Token struct {
	Type  TokenType
	Value string
	Line  int
	Col   int
}

// String returns a human-readable representation of the token for debugging.
func (t Token) String() string {
	if t.Value != "" {
		return fmt.Sprintf("%s(%s)@%d:%d", t.Type, t.Value, t.Line, t.Col)
	}
	return fmt.Sprintf("%s@%d:%d", t.Type, t.Line, t.Col)
}

// keywords maps keyword strings to token types.
var keywords = map[string]TokenType{
	"select":     TokenSelect,
	"filter":     TokenFilter,
	"where":      TokenFilter, // alias
	"mutate":     TokenMutate,
	"group_by":   TokenGroupBy,
	"groupby":    TokenGroupBy, // alias
	"summarize":  TokenSummarize,
	"summarise":  TokenSummarize, // British spelling
	"join":       TokenJoin,
	"inner_join": TokenJoin,
	"left_join":  TokenLeftJoin,
	"right_join": TokenRightJoin,
	"outer_join": TokenOuterJoin,
	"take":       TokenTake,
	"true":       TokenTrue,
	"false":      TokenFalse,
	"none":       TokenNull,
	"null":       TokenNull,
	"and":        TokenAnd,
	"or":         TokenOr,
	"not":        TokenNot,
}

// LookupIdent returns the token type for an identifier.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TokenIdent
}
