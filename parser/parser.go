// Package parser implements the shunting-yard engine spec.md §4.2
// describes: it turns one lexer.Lexer's token stream into a finalized
// token.Buffer, performing precedence/associativity resolution, ternary
// if/then/else offset patching, function-argument counting, and constant
// folding along the way.
//
// Grounded directly on spec.md §4.2's operand/operator/counter-stack
// description; the overall tokenize-then-lower shape (a Lexer consulted
// one token at a time, driving a stack machine that emits directly into
// an RPN buffer rather than building an AST first) follows
// skx-math-compiler/compiler/compiler.go's tokenize/makeinternalform/output
// pipeline, adapted from its three explicit passes into one single pass
// since spec.md's shunting-yard emits RPN tokens as it goes rather than
// building an intermediate tree.
package parser

import (
	"math"

	"github.com/exprjit/exprjit/lexer"
	"github.com/exprjit/exprjit/perr"
	"github.com/exprjit/exprjit/symtab"
	"github.com/exprjit/exprjit/token"
)

// builtinOpcodes maps a built-in binary-operator lexeme to its dedicated
// packed-token opcode (spec.md §3's binary-operator variant). `^` is
// deliberately absent: spec.md §3's opcode enumeration has no power
// variant at all, even though §6 lists `^` in the built-in operator
// table, so power is wired through as a callback (see powFunc) reusing
// the existing n-ary function-call opcode instead of inventing one — see
// DESIGN.md's Open Question decisions.
var builtinOpcodes = map[string]token.Opcode{
	"<": token.OpLT, "<=": token.OpLE, ">": token.OpGT, ">=": token.OpGE,
	"==": token.OpEQ, "!=": token.OpNE,
	"+": token.OpAdd, "-": token.OpSub, "*": token.OpMul, "/": token.OpDiv,
	"&&": token.OpAnd, "||": token.OpOr,
}

// powFunc backs the built-in `^` operator. It is unconditionally
// optimizable (pure, no side effects) like every other built-in.
var powFunc = &token.Func{Name: "^", Arity: 2, Call: func(args []float64) float64 {
	return math.Pow(args[0], args[1])
}, Optimizable: true}

// Parse lexes and parses src against tbl, returning a finalized RPN
// buffer with all IF/ELSE offsets patched and constant folding already
// applied. tbl is consulted read-only during parsing (a VarFactory may
// still populate tbl.Vars on demand through the lexer).
func Parse(src string, classes lexer.CharClasses, tbl *symtab.Table) (*token.Buffer, error) {
	p := newState(src, classes, tbl)
	return p.run()
}

// operand is one entry on the shunting-yard's operand stack: the
// bookkeeping the parser needs about a subexpression whose value is
// already emitted into the RPN buffer (or folded away entirely).
type operand struct {
	stackPos   int
	volatile   bool
	isConst    bool
	constVal   float64
	tokenStart int // index into rpn.Tokens where this operand's own emitted tokens begin
}

type calleeKind int

const (
	calleeNone calleeKind = iota
	calleeFunc
	calleeInfix
)

type callee struct {
	kind calleeKind
	fn   *token.Func
	name string
	pos  int
}

type opKind int

const (
	opLParen opKind = iota
	opBinary
	opTernaryIf
	opTernaryElse
)

// opEntry is one entry on the shunting-yard's operator stack. Its fields
// are a union discriminated by kind, matching the same tagged-variant
// idiom token.Token uses for its own payload (spec.md's design note on
// representing packed unions as Go sum types).
type opEntry struct {
	kind opKind

	// opBinary
	sym    string
	prec   int
	assoc  symtab.Assoc
	fn     *token.Func // non-nil for a user-defined or callback-backed (e.g. `^`) binary operator
	opcode token.Opcode

	// opLParen
	operandBase int
	callee      callee

	// opTernaryIf / opTernaryElse
	condTokenStart int
	condStackPos   int
	condConst      bool
	condVal        float64
	ifTokenIdx     int
	elseTokenIdx   int
	thenConst      bool
	thenVal        float64
}

type state struct {
	lex *lexer.Lexer
	tbl *symtab.Table
	rpn *token.Buffer

	operands []operand
	ops      []opEntry

	pendingCallee *callee
	prevOperand   bool
}

func newState(src string, classes lexer.CharClasses, tbl *symtab.Table) *state {
	return &state{
		lex: lexer.New(src, classes, tbl),
		tbl: tbl,
		rpn: token.NewBuffer(),
	}
}

func (p *state) topOperand() (operand, bool) {
	if len(p.operands) == 0 {
		return operand{}, false
	}
	return p.operands[len(p.operands)-1], true
}

func (p *state) nextPos() int {
	if top, ok := p.topOperand(); ok {
		return top.stackPos + 1
	}
	return 1
}

func (p *state) pushOperand(o operand) {
	p.operands = append(p.operands, o)
}

func (p *state) popOperand() operand {
	n := len(p.operands)
	o := p.operands[n-1]
	p.operands = p.operands[:n-1]
	return o
}

func (p *state) run() (*token.Buffer, error) {
	for {
		tok, err := p.lex.NextToken()
		if err != nil {
			return nil, err
		}
		if tok.Kind == lexer.KindEOF {
			return p.finish()
		}
		if err := p.step(tok); err != nil {
			return nil, err
		}
	}
}

func (p *state) step(tok lexer.Token) error {
	if p.pendingCallee != nil && tok.Kind != lexer.KindLParen {
		return perr.New(perr.UnexpectedFun, p.pendingCallee.pos, p.pendingCallee.name, "expected '(' after function or infix operator name")
	}
	switch tok.Kind {
	case lexer.KindVal:
		return p.pushValue(tok)
	case lexer.KindVar:
		return p.pushVar(tok)
	case lexer.KindFunc:
		p.pendingCallee = &callee{kind: calleeFunc, fn: tok.Func, name: tok.Text, pos: tok.Pos}
		p.prevOperand = false
		return nil
	case lexer.KindInfixOp:
		p.pendingCallee = &callee{kind: calleeInfix, fn: tok.Oprt.Fn, name: tok.Text, pos: tok.Pos}
		p.prevOperand = false
		return nil
	case lexer.KindLParen:
		return p.pushLParen(tok)
	case lexer.KindRParen:
		return p.closeParen(tok)
	case lexer.KindArgSep:
		return p.argSep(tok)
	case lexer.KindBinaryOp:
		return p.binaryOp(tok)
	case lexer.KindPostfixOp:
		return p.postfixOp(tok)
	case lexer.KindQuestion:
		return p.question(tok)
	case lexer.KindColon:
		return p.colon(tok)
	}
	return perr.Internal("parser: unhandled lexer token kind")
}

// pushValue implements spec.md §4.2's "value / variable -> push to
// operands, emit to RPN immediately".
func (p *state) pushValue(tok lexer.Token) error {
	pos := p.nextPos()
	idx := p.rpn.Append(token.Token{Op: token.OpVal, StackPos: pos, Value: tok.Value})
	p.pushOperand(operand{stackPos: pos, volatile: false, isConst: true, constVal: tok.Value, tokenStart: idx})
	p.prevOperand = true
	return nil
}

func (p *state) pushVar(tok lexer.Token) error {
	pos := p.nextPos()
	idx := p.rpn.Append(token.Token{Op: token.OpVar, StackPos: pos, Var: tok.VarCell})
	p.pushOperand(operand{stackPos: pos, volatile: true, isConst: false, tokenStart: idx})
	p.prevOperand = true
	return nil
}

func (p *state) pushLParen(tok lexer.Token) error {
	e := opEntry{kind: opLParen, operandBase: len(p.operands)}
	if p.pendingCallee != nil {
		e.callee = *p.pendingCallee
		p.pendingCallee = nil
	}
	p.ops = append(p.ops, e)
	p.prevOperand = false
	return nil
}

// applyUntilBoundary pops and applies operator-stack entries while the
// top is a real binary operator whose precedence is higher than minPrec,
// or equal and left-associative — spec.md §4.2's "while the top of the
// operator stack is a binary/infix with higher precedence, or equal
// precedence and left-associative, apply it". Anything else (an open
// paren, a pending ternary marker, an empty stack) is a hard boundary.
func (p *state) applyUntilBoundary(minPrec int) error {
	for len(p.ops) > 0 {
		top := p.ops[len(p.ops)-1]
		if top.kind != opBinary {
			return nil
		}
		if !(top.prec > minPrec || (top.prec == minPrec && top.assoc == symtab.Left)) {
			return nil
		}
		p.ops = p.ops[:len(p.ops)-1]
		if err := p.applyBinary(top); err != nil {
			return err
		}
	}
	return nil
}

func boolF(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func evalBuiltinBinary(op token.Opcode, a, b float64) float64 {
	switch op {
	case token.OpLT:
		return boolF(a < b)
	case token.OpLE:
		return boolF(a <= b)
	case token.OpGT:
		return boolF(a > b)
	case token.OpGE:
		return boolF(a >= b)
	case token.OpEQ:
		return boolF(a == b)
	case token.OpNE:
		return boolF(a != b)
	case token.OpAdd:
		return a + b
	case token.OpSub:
		return a - b
	case token.OpMul:
		return a * b
	case token.OpDiv:
		return a / b
	case token.OpMin:
		return math.Min(a, b)
	case token.OpMax:
		return math.Max(a, b)
	case token.OpAnd:
		return boolF(a != 0 && b != 0)
	case token.OpOr:
		return boolF(a != 0 || b != 0)
	}
	return 0
}

// applyBinary emits (or folds away) a two-operand operator application —
// the one shape shared by built-in operators, the `^` callback, and
// user-defined binary operators.
func (p *state) applyBinary(e opEntry) error {
	b := p.popOperand()
	a := p.popOperand()

	if e.fn == nil && e.opcode == token.OpDiv && b.isConst && !b.volatile && b.constVal == 0 {
		return perr.New(perr.DivByZero, b.tokenStart, e.sym, "division by constant zero")
	}

	foldable := e.fn == nil || e.fn.Optimizable
	if foldable && a.isConst && !a.volatile && b.isConst && !b.volatile {
		var v float64
		if e.fn != nil {
			v = e.fn.Call([]float64{a.constVal, b.constVal})
		} else {
			v = evalBuiltinBinary(e.opcode, a.constVal, b.constVal)
		}
		p.rpn.Tokens = p.rpn.Tokens[:a.tokenStart]
		idx := p.rpn.Append(token.Token{Op: token.OpVal, StackPos: a.stackPos, Value: v})
		p.pushOperand(operand{stackPos: a.stackPos, volatile: false, isConst: true, constVal: v, tokenStart: idx})
		return nil
	}

	var tok token.Token
	tok.StackPos = a.stackPos
	if e.fn != nil {
		tok.Op = token.OpUserBinary
		tok.Func = e.fn
	} else {
		tok.Op = e.opcode
	}
	p.rpn.Append(tok)
	p.pushOperand(operand{stackPos: a.stackPos, volatile: true, tokenStart: a.tokenStart})
	return nil
}

func (p *state) binaryOp(tok lexer.Token) error {
	if !p.prevOperand {
		return p.unaryPrefix(tok)
	}

	var e opEntry
	e.kind = opBinary
	e.sym = tok.Text
	if tok.Oprt != nil {
		e.prec = tok.Oprt.Precedence
		e.assoc = tok.Oprt.Associativity
		e.fn = tok.Oprt.Fn
	} else if tok.Text == "^" {
		e.prec = symtab.PrecPow
		e.assoc = symtab.Right
		e.fn = powFunc
	} else {
		prec, _ := symtab.BuiltinPrecedence(tok.Text)
		e.prec = prec
		e.assoc = symtab.BuiltinAssoc(tok.Text)
		e.opcode = builtinOpcodes[tok.Text]
	}

	if err := p.applyUntilBoundary(e.prec); err != nil {
		return err
	}
	p.ops = append(p.ops, e)
	p.prevOperand = false
	return nil
}

// unaryPrefix implements prefix `+`/`-` (spec.md's built-in operator
// table lists only the binary forms; lexer/flags.go's startFlags admits
// AllowBinaryOp specifically so this case can be reached). `+` is a
// no-op; `-` negates the operand it immediately precedes (a value, a
// variable, or a whole parenthesized group or function call), folding away
// entirely when that operand is already constant and otherwise reusing
// the existing OpMul opcode (`x * -1`) rather than inventing a dedicated
// negate opcode spec.md's §3 data model does not enumerate.
func (p *state) unaryPrefix(tok lexer.Token) error {
	if tok.Text != "+" && tok.Text != "-" {
		return perr.New(perr.UnexpectedOperator, tok.Pos, tok.Text, "operator not expected here")
	}
	if tok.Text == "+" {
		return nil
	}

	for base, ops := len(p.operands), len(p.ops); len(p.operands) <= base || len(p.ops) != ops; {
		next, err := p.lex.NextToken()
		if err == nil {
			err = p.step(next)
		}
		if err != nil {
			return err
		}
	}

	o := p.popOperand()
	if o.isConst && !o.volatile {
		p.rpn.Tokens = p.rpn.Tokens[:o.tokenStart]
		idx := p.rpn.Append(token.Token{Op: token.OpVal, StackPos: o.stackPos, Value: -o.constVal})
		p.pushOperand(operand{stackPos: o.stackPos, volatile: false, isConst: true, constVal: -o.constVal, tokenStart: idx})
		p.prevOperand = true
		return nil
	}

	negPos := o.stackPos + 1
	p.rpn.Append(token.Token{Op: token.OpVal, StackPos: negPos, Value: -1})
	p.rpn.Append(token.Token{Op: token.OpMul, StackPos: o.stackPos})
	p.pushOperand(operand{stackPos: o.stackPos, volatile: true, tokenStart: o.tokenStart})
	p.prevOperand = true
	return nil
}

// postfixOp applies immediately: spec.md's lexer only recognizes a
// postfix identifier once an operand already precedes it, so there is
// never an ambiguity to resolve against the operator stack the way a
// binary operator's precedence has to be.
func (p *state) postfixOp(tok lexer.Token) error {
	o := p.popOperand()
	foldable := tok.Oprt.Fn.Optimizable
	if foldable && o.isConst && !o.volatile {
		v := tok.Oprt.Fn.Call([]float64{o.constVal})
		p.rpn.Tokens = p.rpn.Tokens[:o.tokenStart]
		idx := p.rpn.Append(token.Token{Op: token.OpVal, StackPos: o.stackPos, Value: v})
		p.pushOperand(operand{stackPos: o.stackPos, volatile: false, isConst: true, constVal: v, tokenStart: idx})
		p.prevOperand = true
		return nil
	}
	p.rpn.Append(token.Token{Op: token.OpUserUnary, StackPos: o.stackPos, Func: tok.Oprt.Fn})
	p.pushOperand(operand{stackPos: o.stackPos, volatile: true, tokenStart: o.tokenStart})
	p.prevOperand = true
	return nil
}

// argSep implements spec.md §4.2's "apply all operators above the
// matching opening paren" — plus resolving any ternary still open at
// this nesting level, since a comma ends the current argument's
// subexpression the same way a closing paren would. The argument count
// itself is never tracked incrementally here: closeParen derives it from
// how many operands accumulated since the matching '(' was opened.
func (p *state) argSep(tok lexer.Token) error {
	if err := p.applyAndResolve(); err != nil {
		return err
	}
	if len(p.ops) == 0 || p.ops[len(p.ops)-1].kind != opLParen {
		// Top-level comma (spec.md §6: "," also separates sub-expressions at
		// top level; only the last sub-expression result is returned by
		// eval"). Nothing else has any observable effect, so the discarded
		// subexpression's tokens and operand are simply dropped.
		if len(p.operands) != 1 {
			return perr.New(perr.UnexpectedArgSep, tok.Pos, tok.Text, "argument separator not expected here")
		}
		o := p.popOperand()
		p.rpn.Tokens = p.rpn.Tokens[:o.tokenStart]
		p.prevOperand = false
		return nil
	}
	p.prevOperand = false
	return nil
}

// applyAndResolve drains the operator stack down to the nearest
// lparen/ternary boundary, resolving any fully-closed ternary it
// uncovers along the way (spec.md's "resolve any pending IF/ELSE").
func (p *state) applyAndResolve() error {
	for {
		if err := p.applyUntilBoundary(math.MinInt32); err != nil {
			return err
		}
		if len(p.ops) == 0 || p.ops[len(p.ops)-1].kind != opTernaryElse {
			return nil
		}
		if err := p.resolveTernary(); err != nil {
			return err
		}
	}
}

func (p *state) resolveTernary() error {
	e := p.ops[len(p.ops)-1]
	p.ops = p.ops[:len(p.ops)-1]

	elseOperand := p.popOperand()
	idx := p.rpn.Append(token.Token{Op: token.OpEndIf, StackPos: e.condStackPos})
	// ELSE's unconditional jump lands one past ENDIF, past the else-branch
	// body entirely, once the then-branch has already run.
	p.rpn.SetOffset(e.elseTokenIdx, idx+1-e.elseTokenIdx)

	if e.condConst && e.thenConst && elseOperand.isConst && !elseOperand.volatile {
		var v float64
		if e.condVal != 0 {
			v = e.thenVal
		} else {
			v = elseOperand.constVal
		}
		p.rpn.Tokens = p.rpn.Tokens[:e.condTokenStart]
		newIdx := p.rpn.Append(token.Token{Op: token.OpVal, StackPos: e.condStackPos, Value: v})
		p.pushOperand(operand{stackPos: e.condStackPos, volatile: false, isConst: true, constVal: v, tokenStart: newIdx})
		return nil
	}
	p.pushOperand(operand{stackPos: e.condStackPos, volatile: true, tokenStart: e.condTokenStart})
	return nil
}

// closeParen implements spec.md §4.2's "apply all operators above the
// matching opening paren; resolve any pending IF/ELSE; pop the paren; if
// the token below is a function, emit the function call".
func (p *state) closeParen(tok lexer.Token) error {
	if err := p.applyAndResolve(); err != nil {
		return err
	}
	if len(p.ops) == 0 || p.ops[len(p.ops)-1].kind == opTernaryIf {
		return perr.New(perr.MissingElseClause, tok.Pos, tok.Text, "ternary missing ':' clause")
	}
	if p.ops[len(p.ops)-1].kind != opLParen {
		return perr.New(perr.UnexpectedParen, tok.Pos, tok.Text, "unmatched ')'")
	}
	e := p.ops[len(p.ops)-1]
	p.ops = p.ops[:len(p.ops)-1]
	argc := len(p.operands) - e.operandBase

	if e.callee.kind == calleeNone {
		if argc != 1 {
			return perr.New(perr.UnexpectedArgSep, tok.Pos, ",", "argument separator inside a grouping expression")
		}
		p.prevOperand = true
		return nil
	}
	if err := p.emitCall(e, argc); err != nil {
		return err
	}
	p.prevOperand = true
	return nil
}

// emitCall applies a resolved FUNC/INFIX call: it validates arity,
// selects a dedicated intrinsic/arithmetic opcode for the handful of
// built-in names symtab.IntrinsicNames lists, and falls back to the
// generic n-ary OpFunc/OpUserUnary callback opcode for everything else
// (spec.md §4.2's "validate arity", §3's FUNC opcode variant).
func (p *state) emitCall(e opEntry, argc int) error {
	fn := e.callee.fn
	if argc > fn.Arity {
		return perr.New(perr.TooManyParams, e.callee.pos, e.callee.name, "too many arguments")
	}
	if argc < fn.Arity {
		return perr.New(perr.TooFewParams, e.callee.pos, e.callee.name, "too few arguments")
	}

	var basePos, baseTokenStart int
	if argc == 0 {
		basePos = p.nextPos()
		baseTokenStart = p.rpn.Len()
	}

	args := make([]operand, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = p.popOperand()
	}
	if argc > 0 {
		basePos = args[0].stackPos
		baseTokenStart = args[0].tokenStart
	}

	allConst := fn.Optimizable
	vals := make([]float64, argc)
	for i, a := range args {
		if a.volatile || !a.isConst {
			allConst = false
		}
		vals[i] = a.constVal
	}
	if allConst {
		v := fn.Call(vals)
		p.rpn.Tokens = p.rpn.Tokens[:baseTokenStart]
		idx := p.rpn.Append(token.Token{Op: token.OpVal, StackPos: basePos, Value: v})
		p.pushOperand(operand{stackPos: basePos, volatile: false, isConst: true, constVal: v, tokenStart: idx})
		return nil
	}

	op := token.OpFunc
	if e.callee.kind == calleeInfix {
		op = token.OpUserUnary
	} else if argc == 2 && symtab.IntrinsicNames[fn.Name] {
		switch fn.Name {
		case "min":
			op = token.OpMin
		case "max":
			op = token.OpMax
		}
	} else if argc == 1 && symtab.IntrinsicNames[fn.Name] {
		switch fn.Name {
		case "sin":
			op = token.OpSin
		case "cos":
			op = token.OpCos
		case "tan":
			op = token.OpTan
		case "abs":
			op = token.OpAbs
		case "sqrt":
			op = token.OpSqrt
		}
	}

	tok := token.Token{Op: op, StackPos: basePos}
	if op == token.OpFunc || op == token.OpUserUnary {
		tok.Func = fn
	}
	p.rpn.Append(tok)
	p.pushOperand(operand{stackPos: basePos, volatile: true, tokenStart: baseTokenStart})
	return nil
}

// question implements spec.md §4.2's `?` handling: apply pending
// operators, pop the condition, emit an IF marker with a
// reserved-for-later offset, and push a ternaryIf boundary so nothing
// below it gets touched until the matching `:` arrives.
func (p *state) question(tok lexer.Token) error {
	if err := p.applyUntilBoundary(symtab.PrecTernary); err != nil {
		return err
	}
	if len(p.operands) == 0 {
		return perr.New(perr.UnexpectedConditional, tok.Pos, tok.Text, "'?' with no condition")
	}
	cond := p.popOperand()
	idx := p.rpn.Append(token.Token{Op: token.OpIf, StackPos: cond.stackPos})
	p.ops = append(p.ops, opEntry{
		kind: opTernaryIf,
		condTokenStart: cond.tokenStart, condStackPos: cond.stackPos,
		condConst: cond.isConst && !cond.volatile, condVal: cond.constVal,
		ifTokenIdx: idx,
	})
	p.prevOperand = false
	return nil
}

// colon implements spec.md §4.2's `:` handling: finish applying the
// then-branch's pending operators and resolve any ternary nested inside it
// that this `:` closes, match it against the innermost open `?`, emit an
// ELSE marker (offset patched once the matching ENDIF is known), and record
// the then-branch's value for the final fold check.
func (p *state) colon(tok lexer.Token) error {
	if err := p.applyAndResolve(); err != nil {
		return err
	}
	if len(p.ops) == 0 || p.ops[len(p.ops)-1].kind != opTernaryIf {
		return perr.New(perr.MisplacedColon, tok.Pos, tok.Text, "':' with no matching '?'")
	}
	ifE := p.ops[len(p.ops)-1]
	p.ops = p.ops[:len(p.ops)-1]

	then := p.popOperand()
	idx := p.rpn.Append(token.Token{Op: token.OpElse, StackPos: ifE.condStackPos})
	// IF's false-branch jump lands one past ELSE itself — directly on the
	// first token of the else-branch body (vm.EvalInto executes ELSE
	// unconditionally, so landing on ELSE would immediately re-jump).
	p.rpn.SetOffset(ifE.ifTokenIdx, idx+1-ifE.ifTokenIdx)

	p.ops = append(p.ops, opEntry{
		kind: opTernaryElse,
		condTokenStart: ifE.condTokenStart, condStackPos: ifE.condStackPos,
		condConst: ifE.condConst, condVal: ifE.condVal,
		ifTokenIdx: ifE.ifTokenIdx, elseTokenIdx: idx,
		thenConst: then.isConst && !then.volatile, thenVal: then.constVal,
	})
	p.prevOperand = false
	return nil
}

// finish implements spec.md §4.2's END handling: apply every remaining
// pending operator, resolve every remaining pending ternary, and append
// the single terminating END token.
func (p *state) finish() (*token.Buffer, error) {
	if p.pendingCallee != nil {
		return nil, perr.New(perr.UnexpectedFun, p.pendingCallee.pos, p.pendingCallee.name, "expected '(' after function or infix operator name")
	}
	if err := p.applyAndResolve(); err != nil {
		return nil, err
	}
	if len(p.ops) != 0 {
		top := p.ops[len(p.ops)-1]
		if top.kind == opTernaryIf {
			return nil, perr.New(perr.MissingElseClause, 0, "", "ternary missing ':' clause")
		}
		return nil, perr.Internal("parser: operator stack not empty at end of expression")
	}
	if len(p.operands) == 0 {
		return nil, perr.New(perr.EmptyExpression, 0, "", "expression is empty")
	}
	if len(p.operands) != 1 {
		return nil, perr.Internal("parser: operand stack did not reduce to one value")
	}
	p.rpn.Append(token.Token{Op: token.OpEnd})
	return p.rpn, nil
}
