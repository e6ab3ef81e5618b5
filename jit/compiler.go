// Package jit lowers a finalized RPN token stream into native x86-64 scalar
// float machine code (spec.md §4.6), using asm.Assembler as the instruction
// emitter and regstack.Stack as the register allocator. The two back ends
// (this one and package vm) consume the exact same token.Buffer; neither
// mutates it.
//
// Grounded on std/compiler/backend.go's GenerateELF — a single pass over an
// already-complete instruction list, driving a CodeGen that owns the
// register/stack bookkeeping the way Compiler here owns a regstack.Stack.
package jit

import (
	"math"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/exprjit/exprjit/asm"
	"github.com/exprjit/exprjit/memexec"
	"github.com/exprjit/exprjit/regstack"
	"github.com/exprjit/exprjit/token"
)

// floatConstZero and floatConstOne are the two static constants spec.md
// §4.6 describes boolean materialization against ("from two static
// constants referenced by absolute address"). They are ordinary package
// variables, not consts, because the compiler needs their runtime address.
var (
	floatConstZero float32 = 0.0
	floatConstOne  float32 = 1.0
)

func constAddr(f *float32) uint64 {
	return uint64(uintptr(unsafe.Pointer(f)))
}

// CompiledFunc is a published, callable native expression. Call is cheap:
// one indirect CALL into the page, no allocation (spec.md §4.7's "evaluate
// costs one indirect call plus whatever the expression itself does").
type CompiledFunc struct {
	page   *memexec.Page
	broker *memexec.Broker
}

// Call invokes the compiled expression and returns its result widened to
// float64 to match the VM back end's result type; the JIT itself computes
// in single precision (spec.md's stated JIT non-goal).
func (f *CompiledFunc) Call() float64 {
	return float64(invokeCompiled(f.page.Entry()))
}

// Release returns the compiled function's executable page to its broker.
// The caller must guarantee no call into it is still in flight.
func (f *CompiledFunc) Release() error {
	return f.broker.Free(f.page)
}

// ifFrame is one entry in the compiler's own LIFO tracking a single
// if/else/endif: the JIT has no use for the RPN's Offset fields (those
// exist for the VM's instruction pointer), so the compiler rebuilds control
// flow from labels instead.
type ifFrame struct {
	elseLabel      *asm.Label
	endLabel       *asm.Label
	depthAfterCond int
}

// Compiler walks one token.Buffer and emits native code into its own
// asm.Assembler and regstack.Stack.
type Compiler struct {
	a  *asm.Assembler
	rs *regstack.Stack

	ifStack []ifFrame
}

// Compile lowers buf into native code, publishes it onto a fresh page taken
// from broker, and returns a callable CompiledFunc (spec.md §4.6 + §4.7).
// regCount is spec.md §6's reg_count_hint: the highest xmm register index
// the allocator may use for the logical stack (xmm0..xmm[regCount], so
// regCount+1 registers, not counting the two reserved scratch registers)
// before spilling to the CPU stack, clamped into 0..=regstack.R by
// regstack.New.
func Compile(buf *token.Buffer, broker *memexec.Broker, regCount int) (*CompiledFunc, error) {
	c := &Compiler{a: asm.New(), rs: nil}
	c.rs = regstack.New(c.a, regCount)

	c.prologue()
	for i := range buf.Tokens {
		t := &buf.Tokens[i]
		if err := c.compileOne(t); err != nil {
			return nil, err
		}
	}

	c.a.Finish()
	size := c.a.CodeSize()
	if size == 0 {
		return nil, errors.New("jit: compiled expression produced no code")
	}

	page, err := broker.Allocate(size)
	if err != nil {
		return nil, errors.Wrap(err, "jit: allocate executable page")
	}
	code := append([]byte(nil), c.a.Bytes()...)
	c.a.Relocate(code, uint64(page.Entry()))
	if err := broker.Publish(page, code); err != nil {
		return nil, errors.Wrap(err, "jit: publish executable page")
	}
	return &CompiledFunc{page: page, broker: broker}, nil
}

func (c *Compiler) prologue() {
	c.a.PushReg(asm.RBP)
	c.a.MovRR(asm.RBP, asm.RSP)
}

func (c *Compiler) epilogue() {
	c.a.MovRR(asm.RSP, asm.RBP)
	c.a.PopReg(asm.RBP)
	c.a.Ret()
}

func (c *Compiler) compileOne(t *token.Token) error {
	switch {
	case t.Op == token.OpVal:
		c.compileVal(t.Value)
		return nil
	case t.Op == token.OpVar:
		c.compileVar(t.Var)
		return nil
	case t.Op.IsComparison():
		return c.compileComparison(t.Op)
	case t.Op.IsBinaryArith():
		return c.compileBinaryArith(t.Op)
	case t.Op.IsLogical():
		return c.compileLogical(t.Op)
	case t.Op == token.OpSin || t.Op == token.OpCos || t.Op == token.OpTan:
		c.compileTranscendental(t.Op)
		return nil
	case t.Op == token.OpAbs:
		c.compileAbs()
		return nil
	case t.Op == token.OpSqrt:
		c.compileSqrt()
		return nil
	case t.Op == token.OpFunc || t.Op == token.OpUserBinary || t.Op == token.OpUserUnary:
		return c.compileCall(t.Func)
	case t.Op == token.OpIf:
		c.compileIf()
		return nil
	case t.Op == token.OpElse:
		c.compileElse()
		return nil
	case t.Op == token.OpEndIf:
		return c.compileEndIf()
	case t.Op == token.OpEnd:
		c.epilogue()
		return nil
	}
	return errors.Errorf("jit: unsupported opcode %s", t.Op)
}

// compileVal materializes a float32 immediate by bit-punning the constant
// into a GPR and moving it across to xmm with movd, avoiding a memory
// round-trip for a value known entirely at compile time.
func (c *Compiler) compileVal(v float64) {
	bits := math.Float32bits(float32(v))
	c.a.MovRegImm32(asm.RAX, int32(bits))
	c.a.MovdFromGPR(regstack.Scratch1, asm.RAX)
	c.rs.Push(regstack.Scratch1)
}

// compileVar loads *varPtr (a float64 host cell), narrows it to float32,
// and pushes it. The cell's address is embedded via LoadAbsReloc rather
// than a bare movabs immediate so the assembler's relocation table is
// genuinely exercised, per the two-pass model spec.md §4.4 describes.
func (c *Compiler) compileVar(varPtr *float64) {
	c.a.LoadAbsReloc(asm.RAX, uint64(uintptr(unsafe.Pointer(varPtr))))
	mem := asm.MemOperand{Base: asm.RAX, Index: asm.NoReg}
	c.a.MovsdLoad(regstack.Scratch1, mem)
	c.a.Cvtsd2ss(regstack.Scratch1, regstack.Scratch1)
	c.rs.Push(regstack.Scratch1)
}

// zeroMem/oneMem are memory operands addressing the two static boolean
// constants via an absolute pointer loaded through a scratch GPR — the
// compiler never needs a register permanently reserved for "zero".
func (c *Compiler) loadConstPtr(reg asm.Reg, addr uint64) asm.MemOperand {
	c.a.LoadAbsReloc(reg, addr)
	return asm.MemOperand{Base: reg, Index: asm.NoReg}
}

// materializeBool writes 1.0 into dst if cc holds, 0.0 otherwise, using a
// short conditional branch over the two static constants rather than a
// setcc+cvtsi2ss sequence, matching the absolute-constant technique spec.md
// §4.6 names.
func (c *Compiler) materializeBool(dst asm.XMM, cc asm.Cond) {
	trueLabel := c.a.NewLabel()
	doneLabel := c.a.NewLabel()
	c.a.Jcc(cc, trueLabel)
	mem := c.loadConstPtr(asm.RAX, constAddr(&floatConstZero))
	c.a.MovssLoad(dst, mem)
	c.a.JMP(doneLabel)
	c.a.Bind(trueLabel)
	mem = c.loadConstPtr(asm.RAX, constAddr(&floatConstOne))
	c.a.MovssLoad(dst, mem)
	c.a.Bind(doneLabel)
}

// compileComparison implements the six comparison opcodes via ucomiss plus
// materializeBool, following the unsigned-compare flags ucomiss leaves
// behind (CondB/CondBE/CondE/CondNE); > and >= swap operand order rather
// than introduce separate "reversed" condition codes.
func (c *Compiler) compileComparison(op token.Opcode) error {
	a, b, _ := c.rs.LoadTwo()
	switch op {
	case token.OpLT:
		c.a.UcomissRR(a, b)
		c.materializeBool(a, asm.CondB)
	case token.OpLE:
		c.a.UcomissRR(a, b)
		c.materializeBool(a, asm.CondBE)
	case token.OpGT:
		c.a.UcomissRR(b, a)
		c.materializeBool(a, asm.CondB)
	case token.OpGE:
		c.a.UcomissRR(b, a)
		c.materializeBool(a, asm.CondBE)
	case token.OpEQ:
		c.a.UcomissRR(a, b)
		c.materializeBool(a, asm.CondE)
	case token.OpNE:
		c.a.UcomissRR(a, b)
		c.materializeBool(a, asm.CondNE)
	default:
		return errors.Errorf("jit: %s is not a comparison opcode", op)
	}
	c.rs.Pop(1)
	c.rs.CommitResult(a, c.rs.Depth() > c.rs.Limit())
	return nil
}

func (c *Compiler) compileBinaryArith(op token.Opcode) error {
	a, b, _ := c.rs.LoadTwo()
	switch op {
	case token.OpAdd:
		c.a.AddssRR(a, b)
	case token.OpSub:
		c.a.SubssRR(a, b)
	case token.OpMul:
		c.a.MulssRR(a, b)
	case token.OpDiv:
		c.a.DivssRR(a, b)
	case token.OpMin:
		c.a.MinssRR(a, b)
	case token.OpMax:
		c.a.MaxssRR(a, b)
	default:
		return errors.Errorf("jit: %s is not a binary arithmetic opcode", op)
	}
	c.rs.Pop(1)
	c.rs.CommitResult(a, c.rs.Depth() > c.rs.Limit())
	return nil
}

// truthify overwrites reg with 1.0 if it holds a nonzero value, 0.0
// otherwise, comparing directly against the floatConstZero memory operand
// so no second register is needed to hold a live zero.
func (c *Compiler) truthify(reg asm.XMM) {
	mem := c.loadConstPtr(asm.RCX, constAddr(&floatConstZero))
	c.a.UcomissRM(reg, mem)
	c.materializeBool(reg, asm.CondNE)
}

// compileLogical implements && and || as a bitwise AND/OR over two
// already-truthified 0.0/1.0 operands (spec.md §4.6: IEEE 1.0f AND 1.0f ==
// 1.0f bit-for-bit, so this needs no operand-level short-circuit branch —
// both operands are always fully evaluated first, as the VM already does).
func (c *Compiler) compileLogical(op token.Opcode) error {
	a, b, _ := c.rs.LoadTwo()
	c.truthify(a)
	c.truthify(b)
	switch op {
	case token.OpAnd:
		c.a.AndpsRR(a, b)
	case token.OpOr:
		c.a.OrpsRR(a, b)
	default:
		return errors.Errorf("jit: %s is not a logical opcode", op)
	}
	c.rs.Pop(1)
	c.rs.CommitResult(a, c.rs.Depth() > c.rs.Limit())
	return nil
}

// compileTranscendental lowers sin/cos/tan through the x87 unit, the only
// place it is used (spec.md §4.6: SSE has no transcendental instructions).
// The scalar float operand is round-tripped through a temporary stack slot
// since fld/fstp only address memory, never xmm registers directly.
func (c *Compiler) compileTranscendental(op token.Opcode) {
	reg, spilled := c.rs.LoadOne()
	tmp := asm.MemOperand{Base: asm.RSP, Index: asm.NoReg}
	c.a.SubRSPImm8(4)
	c.a.MovssStore(tmp, reg)
	c.a.FldM32(tmp)
	switch op {
	case token.OpSin:
		c.a.Fsin()
	case token.OpCos:
		c.a.Fcos()
	case token.OpTan:
		c.a.Fptan()
		c.a.FstpST(0) // discard the 1.0 fptan also pushes
	}
	c.a.FstpM32(tmp)
	c.a.MovssLoad(reg, tmp)
	c.a.AddRSPImm8(4)
	c.rs.CommitResult(reg, spilled)
}

// compileAbs clears the sign bit with a bitwise mask, the usual
// branch-free fabsf idiom.
func (c *Compiler) compileAbs() {
	reg, spilled := c.rs.LoadOne()
	c.a.MovRegImm32(asm.RAX, int32(uint32(0x7fffffff)))
	c.a.MovdFromGPR(regstack.Scratch2, asm.RAX)
	c.a.AndpsRR(reg, regstack.Scratch2)
	c.rs.CommitResult(reg, spilled)
}

func (c *Compiler) compileSqrt() {
	reg, spilled := c.rs.LoadOne()
	c.a.SqrtssRR(reg, reg)
	c.rs.CommitResult(reg, spilled)
}

// compileCall marshals arity float32 stack operands into a contiguous
// float64 buffer on the CPU stack, calls through the dispatch trampoline
// (spec.md §4.6 function-call marshaling), and narrows the float64 result
// back onto the register stack. Every xmm register the allocator still
// considers live below the callee's arguments is caller-saved before the
// call, since a Go callback may clobber any of them.
func (c *Compiler) compileCall(fn *token.Func) error {
	arity := fn.Arity
	base := c.rs.Depth() - arity + 1
	if base < 0 {
		return errors.Errorf("jit: %s: not enough operands on the stack", fn.Name)
	}

	savedCount := base
	if savedCount > c.rs.Limit()+1 {
		savedCount = c.rs.Limit() + 1
	}
	for d := 0; d < savedCount; d++ {
		c.a.SubRSPImm8(4)
		c.a.MovssStore(asm.MemOperand{Base: asm.RSP, Index: asm.NoReg}, asm.XMM(d))
	}

	if arity > 0 {
		c.a.SubRSPImm8(byte(arity * 8))
	}
	for k := 0; k < arity; k++ {
		reg, _ := c.rs.LoadArg(base+k, regstack.Scratch1)
		c.a.Cvtss2sd(regstack.Scratch2, reg)
		c.a.MovsdStore(asm.MemOperand{Base: asm.RSP, Index: asm.NoReg, Disp: int32(k * 8)}, regstack.Scratch2)
	}

	c.a.LeaMem(asm.R11, asm.MemOperand{Base: asm.RSP, Index: asm.NoReg})
	id := registerCallback(fn)
	c.a.MovRegImm32(asm.R10, id)
	c.a.LoadAbsReloc(asm.RAX, uint64(dispatchTrampolineAddr()))
	c.a.CallAbsReg(asm.RAX)
	c.a.Cvtsd2ss(regstack.Scratch1, asm.XMM0)

	if arity > 0 {
		c.a.AddRSPImm8(byte(arity * 8))
	}
	for d := savedCount - 1; d >= 0; d-- {
		c.a.MovssLoad(asm.XMM(d), asm.MemOperand{Base: asm.RSP, Index: asm.NoReg})
		c.a.AddRSPImm8(4)
	}

	c.rs.Pop(arity)
	c.rs.Push(regstack.Scratch1)
	return nil
}

// compileIf consumes the condition (popping it without pushing anything
// in its place) and emits a branch to the else arm, remembering the depth
// both arms start from.
func (c *Compiler) compileIf() {
	reg, _ := c.rs.LoadOne()
	c.rs.Pop(1)

	mem := c.loadConstPtr(asm.RAX, constAddr(&floatConstZero))
	c.a.UcomissRM(reg, mem)

	frame := ifFrame{
		elseLabel:      c.a.NewLabel(),
		endLabel:       c.a.NewLabel(),
		depthAfterCond: c.rs.Depth(),
	}
	c.a.Jcc(asm.CondE, frame.elseLabel)
	c.ifStack = append(c.ifStack, frame)
}

// compileElse closes out the then-arm and resets the allocator's depth so
// the else-arm starts from the same baseline the then-arm did.
func (c *Compiler) compileElse() {
	frame := c.ifStack[len(c.ifStack)-1]
	c.a.JMP(frame.endLabel)
	c.a.Bind(frame.elseLabel)
	c.rs.Reset(frame.depthAfterCond)
}

func (c *Compiler) compileEndIf() error {
	if len(c.ifStack) == 0 {
		return errors.New("jit: ENDIF with no matching IF")
	}
	frame := c.ifStack[len(c.ifStack)-1]
	c.ifStack = c.ifStack[:len(c.ifStack)-1]
	c.a.Bind(frame.endLabel)
	return nil
}
