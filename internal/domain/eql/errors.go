package eql

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/seqdex/internal/domain"
)

// Lexer errors.
var (
	ErrUnterminatedString = errors.New("unterminated string")
	ErrInvalidEscape      = errors.New("invalid escape sequence")
	ErrInvalidOperator    = errors.New("invalid operator")
	ErrInvalidCharacter   = errors.New("invalid character")
)

// Parser errors.
var (
	ErrEmptyQuery      = errors.New("empty query")
	ErrUnexpectedToken = errors.New("unexpected token")
	ErrUnexpectedEOF   = errors.New("unexpected end of query")
	ErrInvalidNumber   = errors.New("invalid number")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrUnknownPipe     = errors.New("unknown pipe")
)

// SyntaxError reports malformed query text at a byte offset.
type SyntaxError struct {
	Pos     int    // byte offset in input
	Message string // human-readable error message
	Err     error  // underlying sentinel error (for errors.Is)
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d: %s", e.Pos, e.Message)
}

// Unwrap exposes both the failure class and domain.ErrSyntax.
func (e *SyntaxError) Unwrap() []error {
	return []error{domain.ErrSyntax, e.Err}
}

func newSyntaxError(pos int, err error, msgFmt string, args ...any) *SyntaxError {
	return &SyntaxError{
		Pos:     pos,
		Message: fmt.Sprintf(msgFmt, args...),
		Err:     err,
	}
}
