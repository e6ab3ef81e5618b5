// Package symtab holds the four symbol tables a Parser consults while
// lexing and parsing an expression: variables, constants, functions, and
// user-defined operators (binary, infix, postfix). All tables are owned
// exclusively by one parser instance (spec.md §3, "Symbol tables").
package symtab

import (
	"github.com/exprjit/exprjit/token"
)

// Assoc is operator associativity.
type Assoc int

const (
	Left Assoc = iota
	Right
)

// Oprt is a registered operator's callback entry: precedence plus
// associativity plus the underlying callback (shared shape with
// token.Func, since at evaluation time a user operator is just an n-ary
// function).
type Oprt struct {
	Fn          *token.Func
	Precedence  int
	Associativity Assoc
}

// Built-in operator precedence, low to high (spec.md §6). Level 0
// (PrecTernary) is reserved for the ternary's internal `?`/`:` handling inside the parser,
// which sits below everything, including `||`.
const (
	PrecTernary = 0
	PrecOr      = 1
	PrecAnd     = 2
	PrecCompare = 4
	PrecAddSub  = 5
	PrecMulDiv  = 6
	PrecPow     = 7
)

// builtinPrecedence maps a built-in operator's lexeme to its precedence.
// Comparisons all share level 4 per spec.md §6; `^` is the only
// right-associative built-in.
var builtinPrecedence = map[string]int{
	"||": PrecOr,
	"&&": PrecAnd,
	"<=": PrecCompare, ">=": PrecCompare, "!=": PrecCompare,
	"==": PrecCompare, "<": PrecCompare, ">": PrecCompare,
	"+": PrecAddSub, "-": PrecAddSub,
	"*": PrecMulDiv, "/": PrecMulDiv,
	"^": PrecPow,
}

var rightAssocBuiltins = map[string]bool{
	"^": true,
}

// BuiltinPrecedence reports the precedence of a built-in binary operator
// symbol, and whether it is recognized as one at all.
func BuiltinPrecedence(sym string) (int, bool) {
	p, ok := builtinPrecedence[sym]
	return p, ok
}

// BuiltinAssoc reports a built-in operator's associativity. Every
// built-in is left-associative except `^`.
func BuiltinAssoc(sym string) Assoc {
	if rightAssocBuiltins[sym] {
		return Right
	}
	return Left
}

// IsBuiltinSymbol reports whether sym names a built-in operator, paren, or
// separator — used to reject user identifiers/operators that would
// collide with one (spec.md §6, "must not collide with built-in operator
// symbols").
func IsBuiltinSymbol(sym string) bool {
	if _, ok := builtinPrecedence[sym]; ok {
		return true
	}
	switch sym {
	case "(", ")", "?", ":", ",":
		return true
	}
	return false
}

// Table owns the four symbol mappings plus the locale separators and
// value recognizers for one parser instance. It has no knowledge of
// lexing or parsing; lexer.Lexer consults it only through the lexer.Tables
// interface, which the Lookup* methods below implement, to keep package
// import direction acyclic.
type Table struct {
	Vars     map[string]*float64
	Consts   map[string]float64
	Funcs    map[string]*token.Func
	Binary   map[string]*Oprt
	Infix    map[string]*Oprt
	Postfix  map[string]*Oprt

	ArgSep        rune
	DecSep        rune
	ThousandsSep  rune

	Recognizers []ValueRecognizer
}

// ValueRecognizer attempts to scan a literal value starting at the
// beginning of s. It returns the parsed value, the number of bytes
// consumed, and whether it recognized anything at all (spec.md §4.1,
// "literal value ... delegating to value-recognizer callbacks").
type ValueRecognizer func(s string, decSep, thousandsSep rune) (value float64, consumed int, ok bool)

// New returns an empty Table with default locale separators
// (',' arg, '.' decimal, no thousands separator) and the built-in
// hex and decimal recognizers installed.
func New() *Table {
	t := &Table{
		Vars:    make(map[string]*float64),
		Consts:  make(map[string]float64),
		Funcs:   make(map[string]*token.Func),
		Binary:  make(map[string]*Oprt),
		Infix:   make(map[string]*Oprt),
		Postfix: make(map[string]*Oprt),
		ArgSep:  ',',
		DecSep:  '.',
	}
	t.Recognizers = []ValueRecognizer{RecognizeHex, RecognizeDecimal}
	return t
}

// ResetLocale restores the default separators (spec.md §6 reset_locale).
func (t *Table) ResetLocale() {
	t.ArgSep = ','
	t.DecSep = '.'
	t.ThousandsSep = 0
}

// LookupVar implements lexer.Tables.
func (t *Table) LookupVar(name string) (*float64, bool) {
	v, ok := t.Vars[name]
	return v, ok
}

// LookupConst implements lexer.Tables.
func (t *Table) LookupConst(name string) (float64, bool) {
	v, ok := t.Consts[name]
	return v, ok
}

// LookupFunc implements lexer.Tables.
func (t *Table) LookupFunc(name string) (*token.Func, bool) {
	v, ok := t.Funcs[name]
	return v, ok
}

// LookupBinary implements lexer.Tables.
func (t *Table) LookupBinary(name string) (*Oprt, bool) {
	v, ok := t.Binary[name]
	return v, ok
}

// LookupInfix implements lexer.Tables.
func (t *Table) LookupInfix(name string) (*Oprt, bool) {
	v, ok := t.Infix[name]
	return v, ok
}

// LookupPostfix implements lexer.Tables.
func (t *Table) LookupPostfix(name string) (*Oprt, bool) {
	v, ok := t.Postfix[name]
	return v, ok
}

// Separators implements lexer.Tables.
func (t *Table) Separators() (argSep, decSep, thousandsSep rune) {
	return t.ArgSep, t.DecSep, t.ThousandsSep
}

// ValueRecognizers implements lexer.Tables.
func (t *Table) ValueRecognizers() []ValueRecognizer {
	return t.Recognizers
}
