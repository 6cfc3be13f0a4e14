// Package lex turns source bytes into a token stream. It is fail-fast: the
// first unknown character or unterminated token aborts lexing of the unit.
package lex

import (
	"context"

	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/antonromanov1/ctl/compiler/diag"
)

type Kind int

const (
	EOF Kind = iota
	Ident
	Int

	// keywords
	KwFn
	KwLet
	KwMut
	KwReturn
	KwIf
	KwElse
	KwWhile
	KwBreak
	KwContinue
	KwTrue
	KwFalse

	// punctuation
	LParen
	RParen
	LBrace
	RBrace
	Comma
	Semi
	Colon
	Arrow

	// operators
	Assign
	Plus
	Minus
	Star
	Slash
	Percent
	Shl
	Shr
	Lt
	Le
	Gt
	Ge
	Eq
	Ne
)

var kindNames = map[Kind]string{
	EOF: "EOF", Ident: "identifier", Int: "integer literal",
	KwFn: "'fn'", KwLet: "'let'", KwMut: "'mut'", KwReturn: "'return'",
	KwIf: "'if'", KwElse: "'else'", KwWhile: "'while'", KwBreak: "'break'",
	KwContinue: "'continue'", KwTrue: "'true'", KwFalse: "'false'",
	LParen: "'('", RParen: "')'", LBrace: "'{'", RBrace: "'}'",
	Comma: "','", Semi: "';'", Colon: "':'", Arrow: "'->'",
	Assign: "'='", Plus: "'+'", Minus: "'-'", Star: "'*'", Slash: "'/'",
	Percent: "'%'", Shl: "'<<'", Shr: "'>>'",
	Lt: "'<'", Le: "'<='", Gt: "'>'", Ge: "'>='", Eq: "'=='", Ne: "'!='",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}

	return "unknown"
}

var keywords = map[string]Kind{
	"fn": KwFn, "let": KwLet, "mut": KwMut, "return": KwReturn,
	"if": KwIf, "else": KwElse, "while": KwWhile, "break": KwBreak,
	"continue": KwContinue, "true": KwTrue, "false": KwFalse,
}

type Token struct {
	Kind Kind
	Text string // raw text; identifier name or integer literal digits
	Pos  int    // byte offset of the first character
	End  int
}

type Lexer struct {
	file string
	b    []byte
	pos  int
}

func New(file string, b []byte) *Lexer {
	return &Lexer{file: file, b: b}
}

// Next consumes and returns the next token. It returns an EOF token,
// forever, once the input is exhausted.
func (l *Lexer) Next(ctx context.Context) (Token, error) {
	l.skipSpaceAndComments()

	start := l.pos

	if tr := tlog.SpanFromContext(ctx); tr.If("lex_token") {
		defer func() {
			tr.Printw("lex token", "pos", start, "from", loc.Callers(1, 3))
		}()
	}

	if l.pos >= len(l.b) {
		return Token{Kind: EOF, Pos: start, End: start}, nil
	}

	c := l.b[l.pos]

	switch {
	case isIdentStart(c):
		return l.lexIdent(), nil
	case c >= '0' && c <= '9':
		return l.lexInt(), nil
	}

	if k, n, ok := lexOperator(l.b[l.pos:]); ok {
		l.pos += n
		return Token{Kind: k, Text: string(l.b[start:l.pos]), Pos: start, End: l.pos}, nil
	}

	return Token{}, diag.LexError{Pos: l.PosOf(start), Msg: "unknown character " + quoteByte(c)}
}

func (l *Lexer) lexIdent() Token {
	start := l.pos

	for l.pos < len(l.b) && isIdentPart(l.b[l.pos]) {
		l.pos++
	}

	text := string(l.b[start:l.pos])

	if k, ok := keywords[text]; ok {
		return Token{Kind: k, Text: text, Pos: start, End: l.pos}
	}

	return Token{Kind: Ident, Text: text, Pos: start, End: l.pos}
}

func (l *Lexer) lexInt() Token {
	start := l.pos

	for l.pos < len(l.b) && l.b[l.pos] >= '0' && l.b[l.pos] <= '9' {
		l.pos++
	}

	return Token{Kind: Int, Text: string(l.b[start:l.pos]), Pos: start, End: l.pos}
}

// lexOperator recognizes punctuation and operators, preferring the longest
// match so two-character operators ('==', '!=', '<=', '>=', '->', '<<',
// '>>') win over their one-character prefixes.
func lexOperator(b []byte) (Kind, int, bool) {
	if len(b) >= 2 {
		switch string(b[:2]) {
		case "==":
			return Eq, 2, true
		case "!=":
			return Ne, 2, true
		case "<=":
			return Le, 2, true
		case ">=":
			return Ge, 2, true
		case "->":
			return Arrow, 2, true
		case "<<":
			return Shl, 2, true
		case ">>":
			return Shr, 2, true
		}
	}

	switch b[0] {
	case '(':
		return LParen, 1, true
	case ')':
		return RParen, 1, true
	case '{':
		return LBrace, 1, true
	case '}':
		return RBrace, 1, true
	case ',':
		return Comma, 1, true
	case ';':
		return Semi, 1, true
	case ':':
		return Colon, 1, true
	case '=':
		return Assign, 1, true
	case '+':
		return Plus, 1, true
	case '-':
		return Minus, 1, true
	case '*':
		return Star, 1, true
	case '/':
		return Slash, 1, true
	case '%':
		return Percent, 1, true
	case '<':
		return Lt, 1, true
	case '>':
		return Gt, 1, true
	}

	return 0, 0, false
}

func (l *Lexer) skipSpaceAndComments() {
	for l.pos < len(l.b) {
		c := l.b[l.pos]

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.pos++
		case c == '/' && l.pos+1 < len(l.b) && l.b[l.pos+1] == '/':
			for l.pos < len(l.b) && l.b[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

// PosOf converts a byte offset into a diag.Pos with a 1-based line and
// column, scanning the source once per call; the lexer and parser only do
// this on the (rare) error path.
func (l *Lexer) PosOf(off int) diag.Pos {
	line, col := 1, 1

	for i := 0; i < off && i < len(l.b); i++ {
		if l.b[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}

	return diag.Pos{File: l.file, Line: line, Col: col}
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

func quoteByte(c byte) string {
	if c >= 0x20 && c < 0x7f {
		return "'" + string(c) + "'"
	}

	return "<0x" + hex(c) + ">"
}

func hex(c byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[c>>4], digits[c&0xf]})
}
