// Package lexer implements the one-token-per-call scanner spec.md §4.1
// describes: a reference to the source string plus a cursor, character
// classes configurable by the host, and a syntax-flag mask that narrows
// which token kinds may legally come next.
//
// Shaped after skx-math-compiler's lexer.Lexer ("read one token per call,
// dispatch off the current rune") rather than tinyrange-rtg's own
// Lexer, which tokenizes a whole source file up front — the spec's
// contract is explicitly single-token, and a configurable grammar (user
// operators registered at runtime) does not fit a whole-file scan.
package lexer

import (
	"strings"
	"unicode/utf8"

	"github.com/exprjit/exprjit/perr"
	"github.com/exprjit/exprjit/symtab"
	"github.com/exprjit/exprjit/token"
)

// Kind classifies one lexer-level token. Bracket and separator kinds are
// lexer-internal only and never appear in the finalized RPN (spec.md §3).
type Kind int

const (
	KindEOF Kind = iota
	KindVal
	KindVar
	KindFunc
	KindBinaryOp
	KindInfixOp
	KindPostfixOp
	KindLParen
	KindRParen
	KindArgSep
	KindQuestion
	KindColon
)

// Token is one classified lexeme.
type Token struct {
	Kind Kind
	Text string
	Pos  int

	Value   float64
	VarCell *float64
	Func    *token.Func
	Oprt    *symtab.Oprt
}

// CharClasses configures which runes may appear in names, and which may
// appear in user binary-/infix-operator symbols (spec.md §4.1, "three
// sets: name characters, binary-operator characters, infix-operator
// characters").
type CharClasses struct {
	NameChars    string
	BinOpChars   string
	InfixChars   string
}

// DefaultCharClasses matches the identifier/operator-symbol grammar
// spec.md §6 describes.
func DefaultCharClasses() CharClasses {
	return CharClasses{
		NameChars:  "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_",
		BinOpChars: "+-*/^<>=!&|%",
		InfixChars: "+-!~",
	}
}

func (c CharClasses) isNameChar(r rune) bool  { return strings.ContainsRune(c.NameChars, r) }
func (c CharClasses) isBinOpChar(r rune) bool { return strings.ContainsRune(c.BinOpChars, r) }
func (c CharClasses) isInfixChar(r rune) bool { return strings.ContainsRune(c.InfixChars, r) }

// Tables is the subset of symtab.Table the lexer needs. Declaring it
// here (instead of importing *symtab.Table directly into scan logic)
// keeps the dependency direction lexer -> symtab one-way and lets tests
// supply a fake.
type Tables interface {
	LookupVar(name string) (*float64, bool)
	LookupConst(name string) (float64, bool)
	LookupFunc(name string) (*token.Func, bool)
	LookupBinary(name string) (*symtab.Oprt, bool)
	LookupInfix(name string) (*symtab.Oprt, bool)
	LookupPostfix(name string) (*symtab.Oprt, bool)
	Separators() (argSep, decSep, thousandsSep rune)
	ValueRecognizers() []symtab.ValueRecognizer
}

// builtinSymbols is the longest-match table of built-in operator/paren
// symbols, ordered so a caller scanning for the longest prefix checks
// two-rune symbols before their one-rune prefixes.
var builtinSymbols = []string{
	"<=", ">=", "!=", "==", "&&", "||",
	"<", ">", "+", "-", "*", "/", "^",
	"(", ")", "?", ":",
}

// Lexer scans one source string, one token per NextToken call.
type Lexer struct {
	src     string
	pos     int
	classes CharClasses
	tables  Tables
	flags   SyntaxFlags
	parenDepth int

	// VarFactory, if set, is consulted for an identifier that is not a
	// known variable, constant, function, or operator — spec.md §4.1's
	// "undefined-variable identifier ... optionally routed to a variable
	// factory".
	VarFactory func(name string) (*float64, bool)
}

// New returns a Lexer positioned at the start of src.
func New(src string, classes CharClasses, tables Tables) *Lexer {
	return &Lexer{
		src:     src,
		classes: classes,
		tables:  tables,
		flags:   startFlags,
	}
}

func (l *Lexer) atEnd() bool { return l.pos >= len(l.src) }

func (l *Lexer) peekRune() (rune, int) {
	if l.atEnd() {
		return 0, 0
	}
	return utf8.DecodeRuneInString(l.src[l.pos:])
}

func (l *Lexer) skipSpace() {
	for !l.atEnd() {
		r, sz := l.peekRune()
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return
		}
		l.pos += sz
	}
}

// NextToken scans and returns the next token, honoring the current
// syntax-flag mask. It returns a *perr.ParserError of Lexical kind on
// unrecognized input, Syntactic kind on a token class that the mask
// currently disallows, and updates the mask after a successful emit.
func (l *Lexer) NextToken() (Token, error) {
	l.skipSpace()
	start := l.pos

	if l.atEnd() {
		if l.parenDepth != 0 {
			return Token{}, perr.New(perr.MissingParen, start, "", "unbalanced parentheses")
		}
		if !l.flags.allows(AllowEnd) {
			return Token{}, perr.New(perr.UnexpectedEOF, start, "", "expression ended unexpectedly")
		}
		return Token{Kind: KindEOF, Pos: start}, nil
	}

	argSep, decSep, thousandsSep := l.tables.Separators()

	if r, sz := l.peekRune(); r == argSep {
		if !l.flags.allows(AllowArgSep) {
			return Token{}, perr.New(perr.UnexpectedArgSep, start, string(r), "argument separator not expected here")
		}
		l.pos += sz
		l.flags = startFlags
		return Token{Kind: KindArgSep, Text: string(r), Pos: start}, nil
	}

	if sym, ok := l.matchBuiltinSymbol(); ok {
		return l.emitBuiltinSymbol(sym, start)
	}

	if name, ok := l.peekIdentifier(); ok {
		if tok, matched, err := l.tryIdentifier(name, start); matched || err != nil {
			return tok, err
		}
	}

	if v, n, ok := l.tryValueRecognizers(decSep, thousandsSep); ok {
		if !l.flags.allows(AllowVal) {
			return Token{}, perr.New(perr.UnexpectedVal, start, l.src[start:start+n], "value not expected here")
		}
		l.pos = start + n
		l.flags = afterOperandFlags
		return Token{Kind: KindVal, Text: l.src[start : start+n], Pos: start, Value: v}, nil
	}

	r, _ := l.peekRune()
	return Token{}, perr.New(perr.UnassignableToken, start, string(r), "unrecognized character")
}

func (l *Lexer) matchBuiltinSymbol() (string, bool) {
	best := ""
	for _, sym := range builtinSymbols {
		if strings.HasPrefix(l.src[l.pos:], sym) && len(sym) > len(best) {
			best = sym
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

func (l *Lexer) emitBuiltinSymbol(sym string, start int) (Token, error) {
	switch sym {
	case "(":
		if !l.flags.allows(AllowLParen) {
			return Token{}, perr.New(perr.UnexpectedParen, start, sym, "'(' not expected here")
		}
		l.pos += len(sym)
		l.parenDepth++
		l.flags = startFlags | l.flags&AllowRParen
		return Token{Kind: KindLParen, Text: sym, Pos: start}, nil
	case ")":
		if !l.flags.allows(AllowRParen) {
			return Token{}, perr.New(perr.UnexpectedParen, start, sym, "')' not expected here")
		}
		if l.parenDepth == 0 {
			return Token{}, perr.New(perr.MissingParen, start, sym, "unmatched ')'")
		}
		l.pos += len(sym)
		l.parenDepth--
		l.flags = afterOperandFlags
		return Token{Kind: KindRParen, Text: sym, Pos: start}, nil
	case "?":
		if !l.flags.allows(AllowQuestion) {
			return Token{}, perr.New(perr.UnexpectedConditional, start, sym, "'?' not expected here")
		}
		l.pos += len(sym)
		l.flags = startFlags
		return Token{Kind: KindQuestion, Text: sym, Pos: start}, nil
	case ":":
		if !l.flags.allows(AllowColon) {
			return Token{}, perr.New(perr.MisplacedColon, start, sym, "':' not expected here")
		}
		l.pos += len(sym)
		l.flags = startFlags
		return Token{Kind: KindColon, Text: sym, Pos: start}, nil
	default:
		if !l.flags.allows(AllowBinaryOp) {
			return Token{}, perr.New(perr.UnexpectedOperator, start, sym, "operator not expected here")
		}
		oprt, _ := l.tables.LookupBinary(sym)
		l.pos += len(sym)
		l.flags = startFlags
		return Token{Kind: KindBinaryOp, Text: sym, Pos: start, Oprt: oprt}, nil
	}
}

// peekIdentifier scans (without consuming) a maximal run of name
// characters starting at the cursor, provided the first rune cannot
// start a number.
func (l *Lexer) peekIdentifier() (string, bool) {
	i := l.pos
	first, sz := utf8.DecodeRuneInString(l.src[i:])
	if first >= '0' && first <= '9' {
		return "", false
	}
	if !l.classes.isNameChar(first) {
		return "", false
	}
	i += sz
	for i < len(l.src) {
		r, rsz := utf8.DecodeRuneInString(l.src[i:])
		if !l.classes.isNameChar(r) {
			break
		}
		i += rsz
	}
	return l.src[l.pos:i], true
}

// tryIdentifier classifies a scanned identifier in the priority order
// spec.md §4.1 gives: user infix operator followed by '(' (infix
// function), user function, user binary operator, known variable,
// constant, postfix operator, then (if nothing matched and a VarFactory is
// installed) an on-demand variable binding.
func (l *Lexer) tryIdentifier(name string, start int) (Token, bool, error) {
	rest := l.src[start+len(name):]

	if oprt, ok := l.tables.LookupInfix(name); ok && strings.HasPrefix(strings.TrimLeft(rest, " \t"), "(") {
		if !l.flags.allows(AllowInfix) {
			return Token{}, true, perr.New(perr.UnexpectedOperator, start, name, "infix operator not expected here")
		}
		l.pos = start + len(name)
		l.flags = startFlags
		return Token{Kind: KindInfixOp, Text: name, Pos: start, Oprt: oprt}, true, nil
	}

	if fn, ok := l.tables.LookupFunc(name); ok {
		if !l.flags.allows(AllowFun) {
			return Token{}, true, perr.New(perr.UnexpectedFun, start, name, "function not expected here")
		}
		l.pos = start + len(name)
		l.flags = startFlags | AllowRParen
		return Token{Kind: KindFunc, Text: name, Pos: start, Func: fn}, true, nil
	}

	if oprt, ok := l.tables.LookupBinary(name); ok {
		if !l.flags.allows(AllowBinaryOp) {
			return Token{}, true, perr.New(perr.UnexpectedOperator, start, name, "operator not expected here")
		}
		l.pos = start + len(name)
		l.flags = startFlags
		return Token{Kind: KindBinaryOp, Text: name, Pos: start, Oprt: oprt}, true, nil
	}

	if cell, ok := l.tables.LookupVar(name); ok {
		if !l.flags.allows(AllowVar) {
			return Token{}, true, perr.New(perr.UnexpectedVar, start, name, "variable not expected here")
		}
		l.pos = start + len(name)
		l.flags = afterOperandFlags
		return Token{Kind: KindVar, Text: name, Pos: start, VarCell: cell}, true, nil
	}

	if v, ok := l.tables.LookupConst(name); ok {
		if !l.flags.allows(AllowVal) {
			return Token{}, true, perr.New(perr.UnexpectedVal, start, name, "constant not expected here")
		}
		l.pos = start + len(name)
		l.flags = afterOperandFlags
		return Token{Kind: KindVal, Text: name, Pos: start, Value: v}, true, nil
	}

	if oprt, ok := l.tables.LookupPostfix(name); ok {
		if !l.flags.allows(AllowPostfix) {
			return Token{}, true, perr.New(perr.UnexpectedOperator, start, name, "postfix operator not expected here")
		}
		l.pos = start + len(name)
		l.flags = afterOperandFlags
		return Token{Kind: KindPostfixOp, Text: name, Pos: start, Oprt: oprt}, true, nil
	}

	if l.VarFactory != nil {
		if cell, ok := l.VarFactory(name); ok {
			if !l.flags.allows(AllowVar) {
				return Token{}, true, perr.New(perr.UnexpectedVar, start, name, "variable not expected here")
			}
			l.pos = start + len(name)
			l.flags = afterOperandFlags
			return Token{Kind: KindVar, Text: name, Pos: start, VarCell: cell}, true, nil
		}
	}

	return Token{}, false, perr.New(perr.InvalidName, start, name, "undefined identifier")
}

func (l *Lexer) tryValueRecognizers(decSep, thousandsSep rune) (float64, int, bool) {
	rest := l.src[l.pos:]
	for _, rec := range l.tables.ValueRecognizers() {
		if v, n, ok := rec(rest, decSep, thousandsSep); ok && n > 0 {
			return v, n, true
		}
	}
	return 0, 0, false
}

// ParenDepth reports the current nesting depth of unmatched '(' tokens.
func (l *Lexer) ParenDepth() int { return l.parenDepth }

// Pos reports the current cursor position.
func (l *Lexer) Pos() int { return l.pos }
