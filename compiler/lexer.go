package compiler

import (
	"errors"
	"strconv"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: byte stream to token list
// ---------------------------------------------------------------------------

// Lexer tokenizes source code.
type Lexer struct {
	file string
	src  []byte
	pos  int
	line int
	toks []Token
}

// Tokenize splits src into tokens. Errors are *Error values carrying the
// offending line.
func Tokenize(src []byte, file string) (toks []Token, err error) {
	l := &Lexer{file: file, src: src, line: 1}
	defer recoverError(&err)
	l.run()
	return l.toks, nil
}

func (l *Lexer) errorf(format string, args ...any) {
	throw(l.file, l.line, format, args...)
}

func (l *Lexer) run() {
	for {
		l.skipWhitespaceAndComments()
		if l.pos >= len(l.src) {
			return
		}
		c := l.src[l.pos]
		switch {
		case c == '"' || c == '\'':
			l.lexString(c)
		case c == '`':
			l.lexChar()
		case isDigit(c) || (c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1]) && !l.afterOperand()):
			l.lexNumber()
		default:
			l.lexWord()
		}
	}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.src) {
		switch c := l.src[l.pos]; c {
		case '\n':
			l.line++
			l.pos++
		case ' ', '\t', '\r', '\f', '\v':
			l.pos++
		case '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *Lexer) emit(t Token) {
	t.Line = l.line
	l.toks = append(l.toks, t)
}

// afterOperand reports whether the last token ends an operand.
func (l *Lexer) afterOperand() bool {
	if len(l.toks) == 0 {
		return false
	}
	switch l.toks[len(l.toks)-1].Type {
	case TokenNumber, TokenString, TokenSymbol, TokenRParen, TokenRBracket:
		return true
	}
	return false
}

// lexWord matches the lexeme table against an identifier scan. A keyword
// or operator wins only if it is at least as long as the identifier, so
// "orchid" is one symbol.
func (l *Lexer) lexWord() {
	rest := l.src[l.pos:]
	best, bestLen := TokenError, 0
	for text, t := range lexemes {
		if len(text) > bestLen && len(text) <= len(rest) && string(rest[:len(text)]) == text {
			best, bestLen = t, len(text)
		}
	}
	idLen := 0
	for idLen < len(rest) && isIdentChar(rest[idLen]) {
		idLen++
	}

	switch {
	case bestLen > 0 && bestLen >= idLen:
		if best == TokenMinus && (len(l.toks) == 0 || l.toks[len(l.toks)-1].Type.precedesOperand()) {
			best = TokenNeg
		}
		l.emit(Token{Type: best, Text: string(rest[:bestLen])})
		l.pos += bestLen
	case idLen > 0:
		l.emit(Token{Type: TokenSymbol, Text: string(rest[:idLen])})
		l.pos += idLen
	default:
		l.errorf("illegal character %q", rest[0])
	}
}

func (l *Lexer) lexNumber() {
	start := l.pos
	s := l.src
	if s[l.pos] == '0' && l.pos+1 < len(s) && (s[l.pos+1] == 'x' || s[l.pos+1] == 'X') {
		l.pos += 2
		digits := l.pos
		for l.pos < len(s) && isHexDigit(s[l.pos]) {
			l.pos++
		}
		if l.pos == digits {
			l.errorf("bad hex literal")
		}
		n, err := strconv.ParseUint(string(s[digits:l.pos]), 16, 64)
		if err != nil {
			l.errorf("bad hex literal: %v", err)
		}
		l.emit(Token{Type: TokenNumber, Num: float64(n), Text: string(s[start:l.pos])})
		return
	}
	for l.pos < len(s) && isDigit(s[l.pos]) {
		l.pos++
	}
	if l.pos+1 < len(s) && s[l.pos] == '.' && isDigit(s[l.pos+1]) {
		l.pos++
		for l.pos < len(s) && isDigit(s[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(s) && (s[l.pos] == 'e' || s[l.pos] == 'E') {
		p := l.pos + 1
		if p < len(s) && (s[p] == '+' || s[p] == '-') {
			p++
		}
		if p < len(s) && isDigit(s[p]) {
			for p < len(s) && isDigit(s[p]) {
				p++
			}
			l.pos = p
		}
	}
	text := string(s[start:l.pos])
	// Out-of-range literals saturate to infinity or zero.
	n, err := strconv.ParseFloat(text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		l.errorf("bad number %q", text)
	}
	l.emit(Token{Type: TokenNumber, Num: n, Text: text})
}

// lexString reads a quoted literal. Double quotes process the full escape
// set; single quotes only \' and \\. Adjacent literals are joined.
func (l *Lexer) lexString(q byte) {
	startLine := l.line
	l.pos++
	var buf []byte
	for {
		if l.pos >= len(l.src) {
			l.line = startLine
			l.errorf("unterminated string")
		}
		c := l.src[l.pos]
		if c == q {
			l.pos++
			break
		}
		if c == '\n' {
			l.line++
		}
		if c == '\\' && l.pos+1 < len(l.src) {
			if q == '"' {
				b, n := l.escape()
				buf = append(buf, b...)
				l.pos += n
				continue
			}
			if nc := l.src[l.pos+1]; nc == '\'' || nc == '\\' {
				buf = append(buf, nc)
				l.pos += 2
				continue
			}
		}
		buf = append(buf, c)
		l.pos++
	}

	if n := len(l.toks); n > 0 && l.toks[n-1].Type == TokenString {
		l.toks[n-1].Text += string(buf)
		return
	}
	tok := Token{Type: TokenString, Text: string(buf), Line: startLine}
	l.toks = append(l.toks, tok)
}

// escape decodes the escape sequence at l.pos, returning the bytes and the
// length consumed.
func (l *Lexer) escape() ([]byte, int) {
	c := l.src[l.pos+1]
	switch c {
	case 'n':
		return []byte{'\n'}, 2
	case 'r':
		return []byte{'\r'}, 2
	case 't':
		return []byte{'\t'}, 2
	case '"', '\'', '\\':
		return []byte{c}, 2
	case 'x':
		if l.pos+3 < len(l.src) && isHexDigit(l.src[l.pos+2]) && isHexDigit(l.src[l.pos+3]) {
			n, _ := strconv.ParseUint(string(l.src[l.pos+2:l.pos+4]), 16, 8)
			return []byte{byte(n)}, 4
		}
		l.errorf("bad \\x escape")
	}
	l.errorf("unknown escape \\%c", c)
	return nil, 0
}

// lexChar reads a backtick character literal, which is a number: the byte
// or the UTF-8 code point between the backticks.
func (l *Lexer) lexChar() {
	l.pos++
	if l.pos >= len(l.src) {
		l.errorf("unterminated character literal")
	}
	var val rune
	if l.src[l.pos] == '\\' && l.pos+1 < len(l.src) {
		b, n := l.escape()
		val = rune(b[0])
		l.pos += n
	} else {
		r, n := utf8.DecodeRune(l.src[l.pos:])
		val = r
		l.pos += n
	}
	if l.pos >= len(l.src) || l.src[l.pos] != '`' {
		l.errorf("unterminated character literal")
	}
	l.pos++
	l.emit(Token{Type: TokenNumber, Num: float64(val), Text: string(val)})
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentChar(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
