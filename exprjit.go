// Package exprjit is the stateful public front end spec.md §6 describes:
// a Parser bound to one set of symbol tables, one expression string, and
// (lazily) one parsed token.Buffer plus at most one published JIT function.
//
// package parser (the stateless shunting-yard engine) and package vm/jit
// (the two back ends) do the actual work; this file is the bookkeeping
// layer around them — tracking what is dirty, what is cached, and what
// needs releasing when the expression or symbol tables change. Shaped
// after tinyrange-rtg's own top-level Compiler/CodeGen types, which are
// likewise thin stateful wrappers built up via field assignment and small
// Set*/Define*-style methods rather than a constructor taking a big
// options struct.
package exprjit

import (
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/exprjit/exprjit/jit"
	"github.com/exprjit/exprjit/lexer"
	"github.com/exprjit/exprjit/memexec"
	"github.com/exprjit/exprjit/parser"
	"github.com/exprjit/exprjit/perr"
	"github.com/exprjit/exprjit/regstack"
	"github.com/exprjit/exprjit/symtab"
	"github.com/exprjit/exprjit/token"
	"github.com/exprjit/exprjit/vm"
)

// Version identifies this module for GetVersion (spec.md §6 get_version).
const Version = "1.0.0"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Parser is the public, stateful entry point: empty symbol tables at
// construction, an expression set with SetExpr, evaluated with Eval or
// lowered to native code with Compile.
type Parser struct {
	tbl     *symtab.Table
	classes lexer.CharClasses
	broker  *memexec.Broker
	logger  *logrus.Logger

	expr  string
	rpn   *token.Buffer
	dirty bool

	evalStack []float64
	compiled  *jit.CompiledFunc

	parseCount int
}

func defaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}

// New returns a Parser with empty symbol tables plus the built-in
// constants (pi, e) and intrinsics (sin, cos, tan, abs, sqrt, min, max)
// pre-installed, exactly as a freshly booted exprtk/muparser instance
// would have them (spec.md §6 new_parser).
func New() *Parser {
	tbl := symtab.New()
	tbl.InstallBuiltinConsts()
	tbl.InstallBuiltinFuncs()
	return &Parser{
		tbl:     tbl,
		classes: lexer.DefaultCharClasses(),
		broker:  memexec.Default(),
		logger:  defaultLogger(),
	}
}

// SetLogger overrides the logger used for parse/compile-time Debug/Trace
// narration. Nothing above Warn is ever emitted from Eval or a compiled
// call (§5's "no I/O inside eval").
func (p *Parser) SetLogger(l *logrus.Logger) {
	p.logger = l
}

func (p *Parser) checkName(name string) error {
	if !identRe.MatchString(name) {
		return perr.New(perr.InvalidName, 0, name, "identifier does not match [A-Za-z_][A-Za-z0-9_]*")
	}
	if symtab.IsBuiltinSymbol(name) {
		return perr.New(perr.NameConflict, 0, name, "collides with a built-in operator symbol")
	}
	if p.nameInUse(name) {
		return perr.New(perr.NameConflict, 0, name, "name already registered")
	}
	return nil
}

func (p *Parser) nameInUse(name string) bool {
	if _, ok := p.tbl.Vars[name]; ok {
		return true
	}
	if _, ok := p.tbl.Consts[name]; ok {
		return true
	}
	if _, ok := p.tbl.Funcs[name]; ok {
		return true
	}
	if _, ok := p.tbl.Binary[name]; ok {
		return true
	}
	if _, ok := p.tbl.Infix[name]; ok {
		return true
	}
	if _, ok := p.tbl.Postfix[name]; ok {
		return true
	}
	return false
}

// DefineVar binds name to an externally owned float cell (spec.md §6
// define_var). Fails on invalid name, name conflict, or a nil cell.
func (p *Parser) DefineVar(name string, cell *float64) error {
	if cell == nil {
		return perr.New(perr.InvalidVarPtr, 0, name, "variable cell pointer is nil")
	}
	if err := p.checkName(name); err != nil {
		return err
	}
	p.tbl.Vars[name] = cell
	p.dirty = true
	return nil
}

// DefineConst binds name to an immediate constant (spec.md §6 define_const).
func (p *Parser) DefineConst(name string, value float64) error {
	if err := p.checkName(name); err != nil {
		return err
	}
	p.tbl.Consts[name] = value
	p.dirty = true
	return nil
}

// DefineFun registers a scalar-argument user function (spec.md §6
// define_fun); arity must be in 0..=10.
func (p *Parser) DefineFun(name string, call func(args []float64) float64, arity int, optimizable bool) error {
	if err := p.checkName(name); err != nil {
		return err
	}
	if call == nil {
		return perr.New(perr.InvalidFunPtr, 0, name, "function callback is nil")
	}
	if arity < 0 || arity > 10 {
		return perr.New(perr.InvalidFunPtr, 0, name, "arity must be in 0..=10")
	}
	p.tbl.Funcs[name] = &token.Func{Name: name, Arity: arity, Call: call, Optimizable: optimizable}
	p.dirty = true
	return nil
}

// DefineOprt registers a user binary operator (spec.md §6 define_oprt);
// name must not collide with a built-in, precedence must be in 1..=7.
func (p *Parser) DefineOprt(name string, call func(args []float64) float64, precedence int, assoc symtab.Assoc) error {
	if err := p.checkName(name); err != nil {
		return err
	}
	if call == nil {
		return perr.New(perr.InvalidFunPtr, 0, name, "operator callback is nil")
	}
	if precedence < 1 || precedence > 7 {
		return perr.New(perr.OptPri, 0, name, "precedence must be in 1..=7")
	}
	p.tbl.Binary[name] = &symtab.Oprt{
		Fn:            &token.Func{Name: name, Arity: 2, Call: call, Optimizable: true},
		Precedence:    precedence,
		Associativity: assoc,
	}
	p.dirty = true
	return nil
}

// DefineInfixOprt registers a user unary prefix operator recognized by
// name immediately followed by '(' (spec.md §6 define_infix_oprt).
func (p *Parser) DefineInfixOprt(name string, call func(args []float64) float64, precedence int) error {
	if err := p.checkName(name); err != nil {
		return err
	}
	if call == nil {
		return perr.New(perr.InvalidFunPtr, 0, name, "operator callback is nil")
	}
	p.tbl.Infix[name] = &symtab.Oprt{
		Fn:         &token.Func{Name: name, Arity: 1, Call: call, Optimizable: true},
		Precedence: precedence,
	}
	p.dirty = true
	return nil
}

// DefinePostfixOprt registers a user unary postfix operator (spec.md §6
// define_postfix_oprt). Postfix operators apply immediately at lex time
// relative to the operand stack, so no precedence is needed.
func (p *Parser) DefinePostfixOprt(name string, call func(args []float64) float64) error {
	if err := p.checkName(name); err != nil {
		return err
	}
	if call == nil {
		return perr.New(perr.InvalidFunPtr, 0, name, "operator callback is nil")
	}
	p.tbl.Postfix[name] = &symtab.Oprt{Fn: &token.Func{Name: name, Arity: 1, Call: call, Optimizable: true}}
	p.dirty = true
	return nil
}

// AddValIdent adds a custom value recognizer, consulted after the
// built-in hex/decimal recognizers in registration order (spec.md §6
// add_val_ident).
func (p *Parser) AddValIdent(rec symtab.ValueRecognizer) {
	p.tbl.Recognizers = append(p.tbl.Recognizers, rec)
	p.dirty = true
}

// SetArgSep sets the argument/subexpression separator rune. It must
// differ from the decimal separator (spec.md §6).
func (p *Parser) SetArgSep(r rune) error {
	if r == p.tbl.DecSep {
		return perr.New(perr.LocaleConflict, 0, string(r), "argument separator must differ from decimal separator")
	}
	p.tbl.ArgSep = r
	p.dirty = true
	return nil
}

// SetDecSep sets the decimal-point separator rune. It must differ from
// the argument separator (spec.md §6).
func (p *Parser) SetDecSep(r rune) error {
	if r == p.tbl.ArgSep {
		return perr.New(perr.LocaleConflict, 0, string(r), "decimal separator must differ from argument separator")
	}
	p.tbl.DecSep = r
	p.dirty = true
	return nil
}

// SetThousandsSep sets the optional thousands-grouping separator rune.
// Zero disables grouping.
func (p *Parser) SetThousandsSep(r rune) error {
	p.tbl.ThousandsSep = r
	p.dirty = true
	return nil
}

// ResetLocale restores the default separators (spec.md §6 reset_locale).
func (p *Parser) ResetLocale() {
	p.tbl.ResetLocale()
	p.dirty = true
}

// RemoveVar unbinds name and invalidates any cached RPN (spec.md §6).
func (p *Parser) RemoveVar(name string) error {
	if _, ok := p.tbl.Vars[name]; !ok {
		return perr.New(perr.InvalidName, 0, name, "variable not defined")
	}
	delete(p.tbl.Vars, name)
	p.dirty = true
	return nil
}

// ClearVar removes every registered variable (spec.md §6 clear_var).
func (p *Parser) ClearVar() {
	p.tbl.Vars = make(map[string]*float64)
	p.dirty = true
}

// ClearConst removes every registered constant, including the built-in
// pi/e, unless InstallBuiltinConsts is called again (spec.md §6
// clear_const).
func (p *Parser) ClearConst() {
	p.tbl.Consts = make(map[string]float64)
	p.dirty = true
}

// ClearFun removes every registered function, including the built-in
// intrinsics (spec.md §6 clear_fun).
func (p *Parser) ClearFun() {
	p.tbl.Funcs = make(map[string]*token.Func)
	p.dirty = true
}

// ClearOprt removes every registered user operator — binary, infix, and
// postfix alike (spec.md §6 clear_oprt).
func (p *Parser) ClearOprt() {
	p.tbl.Binary = make(map[string]*symtab.Oprt)
	p.tbl.Infix = make(map[string]*symtab.Oprt)
	p.tbl.Postfix = make(map[string]*symtab.Oprt)
	p.dirty = true
}

// SetExpr stores expr as the current expression. Setting the same string
// the parser is already holding is a no-op with respect to the parse
// cache (SPEC_FULL.md supplemented feature 4) — any other string
// invalidates the cached RPN and any compiled function.
func (p *Parser) SetExpr(expr string) {
	if expr == p.expr && p.rpn != nil {
		return
	}
	p.expr = expr
	p.dirty = true
	if p.compiled != nil {
		_ = p.compiled.Release()
		p.compiled = nil
	}
}

// GetExpr returns the currently stored expression string.
func (p *Parser) GetExpr() string { return p.expr }

// GetVersion returns the module version string.
func (p *Parser) GetVersion() string { return Version }

// ensureParsed (re)runs the shunting-yard engine over the stored
// expression if the cached RPN is stale or absent, per spec.md §6's
// "parses if needed" contract shared by eval and compile.
func (p *Parser) ensureParsed() error {
	if !p.dirty && p.rpn != nil {
		return nil
	}
	if p.expr == "" {
		return perr.New(perr.EmptyExpression, 0, "", "expression is empty")
	}
	p.logger.WithField("expr", p.expr).Debug("exprjit: parsing expression")
	buf, err := parser.Parse(p.expr, p.classes, p.tbl)
	if err != nil {
		p.logger.WithError(err).Debug("exprjit: parse failed")
		return err
	}
	p.rpn = buf
	p.dirty = false
	p.parseCount++
	p.logger.WithField("tokens", buf.Len()).Trace("exprjit: parse complete")
	return nil
}

// Eval parses if needed, runs the portable VM, and returns the result
// (spec.md §6 eval). The evaluation stack is reused across calls so that
// repeated evaluation of an already-parsed expression allocates nothing
// (spec.md §5).
func (p *Parser) Eval() (float64, error) {
	if err := p.ensureParsed(); err != nil {
		return 0, err
	}
	if len(p.evalStack) < p.rpn.StackSize() {
		p.evalStack = make([]float64, p.rpn.StackSize())
	}
	return vm.EvalInto(p.rpn, p.evalStack)
}

// Compile parses if needed, emits native x86-64 code, and returns a
// callable handle (spec.md §6 compile). regCountHint is clamped into
// 0..regstack.R and threaded straight down into the register-stack
// allocator: it sets the highest xmm register index the logical stack may
// occupy (xmm0..xmm[hint], hint+1 registers) before spilling to the CPU
// stack, so lower hints exercise the spill path
// sooner and higher hints exercise it later, letting spec.md §8's
// "for all register-count hints R ∈ 0..=5" invariant actually vary the
// emitted code rather than just being accepted and ignored.
//
// A second Compile call on the same Parser releases the previous compiled
// function's executable page before emitting fresh code (spec.md §8's
// "second compile re-emits code and the old function pointer is
// released").
func (p *Parser) Compile(regCountHint int) (*jit.CompiledFunc, error) {
	if regCountHint < 0 {
		regCountHint = 0
	}
	if regCountHint > regstack.R {
		regCountHint = regstack.R
	}
	if err := p.ensureParsed(); err != nil {
		return nil, err
	}
	if p.compiled != nil {
		if err := p.compiled.Release(); err != nil {
			return nil, err
		}
		p.compiled = nil
	}
	p.logger.WithField("tokens", p.rpn.Len()).WithField("reg_count_hint", regCountHint).Debug("exprjit: compiling expression")
	cf, err := jit.Compile(p.rpn, p.broker, regCountHint)
	if err != nil {
		return nil, err
	}
	p.compiled = cf
	return cf, nil
}

// GetUsedVar walks the current RPN and returns only the variables it
// actually references (SPEC_FULL.md supplemented feature 1), not every
// variable the symbol table happens to know about.
func (p *Parser) GetUsedVar() (map[string]*float64, error) {
	if err := p.ensureParsed(); err != nil {
		return nil, err
	}
	reverse := make(map[*float64]string, len(p.tbl.Vars))
	for name, cell := range p.tbl.Vars {
		reverse[cell] = name
	}
	used := make(map[string]*float64)
	for i := range p.rpn.Tokens {
		t := &p.rpn.Tokens[i]
		if t.Op != token.OpVar {
			continue
		}
		if name, ok := reverse[t.Var]; ok {
			used[name] = t.Var
		}
	}
	return used, nil
}

// GetVar returns a snapshot of the registered variable bindings.
func (p *Parser) GetVar() map[string]*float64 {
	out := make(map[string]*float64, len(p.tbl.Vars))
	for k, v := range p.tbl.Vars {
		out[k] = v
	}
	return out
}

// GetConst returns a snapshot of the registered constants.
func (p *Parser) GetConst() map[string]float64 {
	out := make(map[string]float64, len(p.tbl.Consts))
	for k, v := range p.tbl.Consts {
		out[k] = v
	}
	return out
}

// GetFunDef returns a snapshot of the registered function definitions.
func (p *Parser) GetFunDef() map[string]*token.Func {
	out := make(map[string]*token.Func, len(p.tbl.Funcs))
	for k, v := range p.tbl.Funcs {
		out[k] = v
	}
	return out
}
