package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	TokenError TokenType = iota

	// Literals
	TokenNumber // 42, 1.5e3, 0xff, `c`
	TokenString // "text", 'text'
	TokenSymbol // foo, _bar1

	// Keywords
	TokenAnd
	TokenOr
	TokenFunc
	TokenReturn
	TokenVar
	TokenNil
	TokenIf
	TokenElsif
	TokenElse
	TokenFor
	TokenForeach
	TokenForindex
	TokenWhile
	TokenBreak
	TokenContinue

	// Operators
	TokenPlus     // +
	TokenMinus    // -
	TokenNeg      // unary -
	TokenMul      // *
	TokenDiv      // /
	TokenCat      // ~
	TokenNot      // !
	TokenEq       // ==
	TokenNeq      // !=
	TokenLt       // <
	TokenLte      // <=
	TokenGt       // >
	TokenGte      // >=
	TokenAssign   // =
	TokenPlusEq   // +=
	TokenMinusEq  // -=
	TokenMulEq    // *=
	TokenDivEq    // /=
	TokenCatEq    // ~=
	TokenDot      // .
	TokenComma    // ,
	TokenSemi     // ;
	TokenColon    // :
	TokenQuestion // ?
	TokenEllipsis // ...

	// Delimiters
	TokenLParen   // (
	TokenRParen   // )
	TokenLBracket // [
	TokenRBracket // ]
	TokenLBrace   // {
	TokenRBrace   // }
)

// lexemes is the keyword and operator table. The lexer takes the longest
// entry matching at the current position.
var lexemes = map[string]TokenType{
	"and":      TokenAnd,
	"or":       TokenOr,
	"func":     TokenFunc,
	"return":   TokenReturn,
	"var":      TokenVar,
	"nil":      TokenNil,
	"if":       TokenIf,
	"elsif":    TokenElsif,
	"else":     TokenElse,
	"for":      TokenFor,
	"foreach":  TokenForeach,
	"forindex": TokenForindex,
	"while":    TokenWhile,
	"break":    TokenBreak,
	"continue": TokenContinue,

	"+":   TokenPlus,
	"-":   TokenMinus,
	"*":   TokenMul,
	"/":   TokenDiv,
	"~":   TokenCat,
	"!":   TokenNot,
	"==":  TokenEq,
	"!=":  TokenNeq,
	"<":   TokenLt,
	"<=":  TokenLte,
	">":   TokenGt,
	">=":  TokenGte,
	"=":   TokenAssign,
	"+=":  TokenPlusEq,
	"-=":  TokenMinusEq,
	"*=":  TokenMulEq,
	"/=":  TokenDivEq,
	"~=":  TokenCatEq,
	".":   TokenDot,
	",":   TokenComma,
	";":   TokenSemi,
	":":   TokenColon,
	"?":   TokenQuestion,
	"...": TokenEllipsis,
	"(":   TokenLParen,
	")":   TokenRParen,
	"[":   TokenLBracket,
	"]":   TokenRBracket,
	"{":   TokenLBrace,
	"}":   TokenRBrace,
}

var tokenNames = map[TokenType]string{
	TokenError:  "ERROR",
	TokenNumber: "NUMBER",
	TokenString: "STRING",
	TokenSymbol: "SYMBOL",
	TokenNeg:    "unary -",
}

func init() {
	for text, t := range lexemes {
		tokenNames[t] = text
	}
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", int(t))
}

// precedesOperand reports whether a '-' following t is a unary minus.
func (t TokenType) precedesOperand() bool {
	return t >= TokenPlus && t <= TokenEllipsis && t != TokenDot ||
		t == TokenAnd || t == TokenOr || t == TokenReturn ||
		t == TokenLParen || t == TokenLBracket || t == TokenLBrace
}

// Token represents a lexical token.
type Token struct {
	Type TokenType
	Text string  // symbol name, string contents or lexeme
	Num  float64 // value of a number token
	Line int
}

func (t Token) String() string {
	switch t.Type {
	case TokenNumber:
		return fmt.Sprintf("NUMBER(%g)", t.Num)
	case TokenString:
		if len(t.Text) > 20 {
			return fmt.Sprintf("STRING(%q...)", t.Text[:20])
		}
		return fmt.Sprintf("STRING(%q)", t.Text)
	case TokenSymbol:
		return fmt.Sprintf("SYMBOL(%s)", t.Text)
	}
	return t.Type.String()
}
