package eql

import (
	"strings"
	"unicode/utf8"
)

// TokenKind identifies the type of lexical token.
type TokenKind int

const (
	TokEOF      TokenKind = iota
	TokIdent              // bareword or `backquoted` name, dots included
	TokString             // quoted string (quotes stripped, escapes processed)
	TokNumber             // numeric literal, possibly with a unit suffix (5m)
	TokLParen             // (
	TokRParen             // )
	TokLBracket           // [
	TokRBracket           // ]
	TokComma              // ,
	TokPipe               // |
	TokAssign             // =
	TokEq                 // ==
	TokNeq                // !=
	TokLt                 // <
	TokLte                // <=
	TokGt                 // >
	TokGte                // >=
	TokColon              // :
)

func (k TokenKind) String() string {
	switch k {
	case TokEOF:
		return "EOF"
	case TokIdent:
		return "IDENT"
	case TokString:
		return "STRING"
	case TokNumber:
		return "NUMBER"
	case TokLParen:
		return "("
	case TokRParen:
		return ")"
	case TokLBracket:
		return "["
	case TokRBracket:
		return "]"
	case TokComma:
		return ","
	case TokPipe:
		return "|"
	case TokAssign:
		return "="
	case TokEq:
		return "=="
	case TokNeq:
		return "!="
	case TokLt:
		return "<"
	case TokLte:
		return "<="
	case TokGt:
		return ">"
	case TokGte:
		return ">="
	case TokColon:
		return ":"
	default:
		return "UNKNOWN"
	}
}

// Token represents a lexical token.
type Token struct {
	Kind   TokenKind
	Lit    string // for strings: unescaped content without quotes
	Pos    int    // byte offset in input for error reporting
	Quoted bool   // identifier written with backquotes, never a keyword
}

// Is reports whether the token is the unquoted keyword kw (case-insensitive).
func (t Token) Is(kw string) bool {
	return t.Kind == TokIdent && !t.Quoted && strings.EqualFold(t.Lit, kw)
}

var singleCharTokens = map[byte]TokenKind{
	'(': TokLParen, ')': TokRParen, '[': TokLBracket, ']': TokRBracket,
	',': TokComma, '|': TokPipe, ':': TokColon,
}

// Lexer tokenizes an EQL query string.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Next returns the next token.
func (l *Lexer) Next() (Token, error) {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Kind: TokEOF, Pos: l.pos}, nil
	}

	start := l.pos
	ch := l.input[l.pos]

	if kind, ok := singleCharTokens[ch]; ok {
		l.pos++
		return Token{Kind: kind, Lit: string(ch), Pos: start}, nil
	}

	switch ch {
	case '=':
		if l.peekByte(1) == '=' {
			l.pos += 2
			return Token{Kind: TokEq, Lit: "==", Pos: start}, nil
		}
		l.pos++
		return Token{Kind: TokAssign, Lit: "=", Pos: start}, nil
	case '!':
		if l.peekByte(1) == '=' {
			l.pos += 2
			return Token{Kind: TokNeq, Lit: "!=", Pos: start}, nil
		}
		return Token{}, newSyntaxError(start, ErrInvalidOperator, "invalid operator '!', did you mean '!='?")
	case '<', '>':
		kind, lit := TokLt, "<"
		if ch == '>' {
			kind, lit = TokGt, ">"
		}
		if l.peekByte(1) == '=' {
			l.pos += 2
			if ch == '<' {
				return Token{Kind: TokLte, Lit: "<=", Pos: start}, nil
			}
			return Token{Kind: TokGte, Lit: ">=", Pos: start}, nil
		}
		l.pos++
		return Token{Kind: kind, Lit: lit, Pos: start}, nil
	case '"', '\'':
		if ch == '"' && strings.HasPrefix(l.input[l.pos:], `"""`) {
			return l.scanTripleQuoted()
		}
		return l.scanQuotedString(ch)
	case '?':
		if q := l.peekByte(1); q == '"' || q == '\'' {
			return l.scanRawString()
		}
		return Token{}, newSyntaxError(start, ErrInvalidCharacter, "unexpected character '?'")
	case '`':
		return l.scanBackquoted()
	}

	if isDigit(ch) || (ch == '-' && isDigit(l.peekByte(1))) {
		return l.scanNumber()
	}
	if isIdentStart(ch) {
		return l.scanIdent()
	}

	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return Token{}, newSyntaxError(start, ErrInvalidCharacter, "unexpected character %q", r)
}

func (l *Lexer) peekByte(offset int) byte {
	if l.pos+offset < len(l.input) {
		return l.input[l.pos+offset]
	}
	return 0
}

// skipWhitespace advances past whitespace and comments (// line, /* block */).
func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			l.pos++
		case ch == '/' && l.peekByte(1) == '/':
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
		case ch == '/' && l.peekByte(1) == '*':
			end := strings.Index(l.input[l.pos+2:], "*/")
			if end < 0 {
				l.pos = len(l.input)
				return
			}
			l.pos += end + 4
		default:
			return
		}
	}
}

// scanQuotedString scans a quoted string, processing escape sequences.
func (l *Lexer) scanQuotedString(quote byte) (Token, error) {
	start := l.pos
	l.pos++ // skip opening quote

	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]

		if ch == quote {
			l.pos++
			return Token{Kind: TokString, Lit: sb.String(), Pos: start}, nil
		}
		if ch == '\n' {
			break
		}

		if ch == '\\' {
			if l.pos+1 >= len(l.input) {
				break
			}
			esc := l.input[l.pos+1]
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\', '\'', '"':
				sb.WriteByte(esc)
			default:
				return Token{}, newSyntaxError(l.pos, ErrInvalidEscape, "invalid escape sequence '\\%c'", esc)
			}
			l.pos += 2
			continue
		}

		sb.WriteByte(ch)
		l.pos++
	}

	return Token{}, newSyntaxError(start, ErrUnterminatedString, "unterminated string")
}

// scanRawString scans ?"..." where backslashes are literal.
func (l *Lexer) scanRawString() (Token, error) {
	start := l.pos
	quote := l.input[l.pos+1]
	l.pos += 2
	end := strings.IndexByte(l.input[l.pos:], quote)
	if end < 0 || strings.ContainsRune(l.input[l.pos:l.pos+end], '\n') {
		return Token{}, newSyntaxError(start, ErrUnterminatedString, "unterminated string")
	}
	lit := l.input[l.pos : l.pos+end]
	l.pos += end + 1
	return Token{Kind: TokString, Lit: lit, Pos: start}, nil
}

// scanTripleQuoted scans """...""" verbatim, newlines included.
func (l *Lexer) scanTripleQuoted() (Token, error) {
	start := l.pos
	l.pos += 3
	end := strings.Index(l.input[l.pos:], `"""`)
	if end < 0 {
		return Token{}, newSyntaxError(start, ErrUnterminatedString, "unterminated string")
	}
	lit := l.input[l.pos : l.pos+end]
	l.pos += end + 3
	return Token{Kind: TokString, Lit: lit, Pos: start}, nil
}

func (l *Lexer) scanBackquoted() (Token, error) {
	start := l.pos
	l.pos++
	end := strings.IndexByte(l.input[l.pos:], '`')
	if end <= 0 {
		if end == 0 {
			return Token{}, newSyntaxError(start, ErrInvalidCharacter, "empty quoted field name")
		}
		return Token{}, newSyntaxError(start, ErrUnterminatedString, "unterminated quoted field name")
	}
	lit := l.input[l.pos : l.pos+end]
	l.pos += end + 1
	return Token{Kind: TokIdent, Lit: lit, Pos: start, Quoted: true}, nil
}

// scanNumber scans digits with an optional fraction, exponent and unit
// suffix. Suffix validation is the parser's job.
func (l *Lexer) scanNumber() (Token, error) {
	start := l.pos
	if l.input[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.peekByte(0) == '.' && isDigit(l.peekByte(1)) {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	if e := l.peekByte(0); e == 'e' || e == 'E' {
		next := l.peekByte(1)
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(l.peekByte(2))) {
			l.pos += 2
			for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
				l.pos++
			}
		}
	}
	for l.pos < len(l.input) && isLetter(l.input[l.pos]) {
		l.pos++
	}
	return Token{Kind: TokNumber, Lit: l.input[start:l.pos], Pos: start}, nil
}

func (l *Lexer) scanIdent() (Token, error) {
	start := l.pos
	for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
		l.pos++
	}
	lit := l.input[start:l.pos]
	if strings.HasSuffix(lit, ".") || strings.Contains(lit, "..") {
		return Token{}, newSyntaxError(start, ErrInvalidCharacter, "invalid field name %q", lit)
	}
	return Token{Kind: TokIdent, Lit: lit, Pos: start}, nil
}

func isDigit(ch byte) bool  { return ch >= '0' && ch <= '9' }
func isLetter(ch byte) bool { return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') }

func isIdentStart(ch byte) bool { return isLetter(ch) || ch == '_' || ch == '@' }

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '.'
}
