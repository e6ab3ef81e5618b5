// Package perr defines the single error type that crosses the public
// parser boundary (spec.md §7). The lexer, parser and VM build *ParserError
// values directly, and the root exprjit package hands them back to the
// caller unchanged.
package perr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code classifies a ParserError into the taxonomy's four kinds.
type Code int

const (
	// Lexical errors: raised only by the lexer.
	UnassignableToken Code = iota
	UnterminatedString
	InvalidName

	// Syntactic errors: raised by the lexer or the parser.
	UnexpectedOperator
	UnexpectedEOF
	UnexpectedArgSep
	UnexpectedArg
	UnexpectedVal
	UnexpectedVar
	UnexpectedParen
	MissingParen
	UnexpectedFun
	TooManyParams
	TooFewParams
	MissingElseClause
	MisplacedColon
	UnexpectedConditional

	// Semantic errors.
	InvalidFunPtr
	InvalidVarPtr
	EmptyExpression
	NameConflict
	OptPri
	DomainError
	DivByZero
	LocaleConflict

	// Internal: catch-all for unreachable paths in the parser and VM. The
	// JIT compiler does not use this type: jit.Compile reports its failures
	// as plain errors built with github.com/pkg/errors, and exprjit.Compile
	// returns those unchanged.
	InternalError
)

var codeNames = map[Code]string{
	UnassignableToken:     "unassignable-token",
	UnterminatedString:    "unterminated-string",
	InvalidName:           "invalid-name",
	UnexpectedOperator:    "unexpected-operator",
	UnexpectedEOF:         "unexpected-eof",
	UnexpectedArgSep:      "unexpected-arg-sep",
	UnexpectedArg:         "unexpected-arg",
	UnexpectedVal:         "unexpected-val",
	UnexpectedVar:         "unexpected-var",
	UnexpectedParen:       "unexpected-paren",
	MissingParen:          "missing-paren",
	UnexpectedFun:         "unexpected-fun",
	TooManyParams:         "too-many-params",
	TooFewParams:          "too-few-params",
	MissingElseClause:     "missing-else-clause",
	MisplacedColon:        "misplaced-colon",
	UnexpectedConditional: "unexpected-conditional",
	InvalidFunPtr:         "invalid-fun-ptr",
	InvalidVarPtr:         "invalid-var-ptr",
	EmptyExpression:       "empty-expression",
	NameConflict:          "name-conflict",
	OptPri:                "opt-pri",
	DomainError:           "domain-error",
	DivByZero:             "div-by-zero",
	LocaleConflict:        "locale-conflict",
	InternalError:         "internal-error",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return "unknown-error"
}

// ParserError is the one error value that crosses the public API boundary
// (spec.md §7). It carries a code, the character position in the
// expression string where the problem was detected, the offending token
// text (if any), and a human-readable message. The cause, if any, is kept
// internally via github.com/pkg/errors so a stack trace survives for
// debug logging without leaking into the public Error() string.
type ParserError struct {
	Code     Code
	Pos      int
	Token    string
	Message  string
	cause    error
}

// New builds a ParserError with no underlying cause.
func New(code Code, pos int, tok, message string) *ParserError {
	return &ParserError{Code: code, Pos: pos, Token: tok, Message: message}
}

// Wrap builds a ParserError that records cause as its underlying stack
// trace source, always wrapping it with errors.WithStack.
func Wrap(cause error, code Code, pos int, tok, message string) *ParserError {
	return &ParserError{
		Code:    code,
		Pos:     pos,
		Token:   tok,
		Message: message,
		cause:   errors.WithStack(cause),
	}
}

// Error implements the error interface with the short, stable form
// external callers match on: `code: message (near "token" at position N)`.
func (e *ParserError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("%s: %s (at position %d)", e.Code, e.Message, e.Pos)
	}
	return fmt.Sprintf("%s: %s (near %q at position %d)", e.Code, e.Message, e.Token, e.Pos)
}

// Unwrap exposes the underlying stack-trace-carrying cause, if any, so
// callers using errors.Is/errors.As can still reach it.
func (e *ParserError) Unwrap() error {
	return e.cause
}

// Internal is a convenience constructor for the Internal kind, used by
// the VM and the parser to report states that should be unreachable
// given a well-formed RPN buffer.
func Internal(message string) *ParserError {
	return Wrap(errors.New(message), InternalError, -1, "", message)
}
