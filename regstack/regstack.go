// Package regstack implements the deterministic register-stack allocator
// spec.md §4.5 describes: a logical evaluation-stack depth maps to an xmm
// register while depth is within the Stack's configured register-file
// limit (spec.md §6's reg_count_hint, capped at R), and spills to the CPU
// stack beyond that, using two reserved scratch registers (xmm6, xmm7) to
// shuttle spilled values through.
//
// Grounded on std/compiler/backend.go's opPush/opPop/opLoad/opDrop operand
// stack helpers, retargeted here from the teacher's R15-based integer
// operand stack onto an xmm-register-array-plus-CPU-stack-spill model,
// since float values live in xmm registers, not a GPR-addressed stack slot.
// Every Push emits its register move or spill store immediately; no push is
// deferred or elided.
package regstack

import "github.com/exprjit/exprjit/asm"

// R is the highest xmm register index the allocator may ever use for the
// logical stack (xmm0..xmm5) — the ceiling spec.md §6's compile()
// reg_count_hint is clamped against. xmm6 and xmm7 are permanently
// reserved scratch registers for shuttling spilled values regardless of
// the configured limit, per spec.md §3's register-stack invariant.
const R = 5

// Scratch1 and Scratch2 are the two xmm registers load_two may use to
// reload spilled operands. Fixed at xmm6/xmm7 regardless of limit, since
// even a Stack configured with limit 0 still needs two registers above
// the highest possible stack register to shuttle spilled values through.
const (
	Scratch1 = asm.XMM(R + 1)
	Scratch2 = asm.XMM(R + 2)
)

// Stack is the allocator's live state: the current logical top-of-stack
// depth, counted from -1 (empty), plus the configured register-file
// limit (spec.md §6's compile() reg_count_hint, threaded down from
// jit.Compile) below which a depth lives in an xmm register rather than
// spilling to the CPU stack.
type Stack struct {
	a     *asm.Assembler
	depth int
	limit int
}

// New returns an empty register stack driving code into a, using at most
// regCount+1 xmm registers (xmm0..xmm[regCount]) for the logical stack
// before spilling to the CPU stack. regCount is clamped into 0..=R — this
// is exactly the reg_count_hint compile() exposes at spec.md §6's public
// boundary; hint 0 keeps only depth 0 (xmm0) in a register and spills
// every push beyond it, hint R (the default)
// reproduces the full six-register window spec.md §4.5 describes.
func New(a *asm.Assembler, regCount int) *Stack {
	if regCount < 0 {
		regCount = 0
	}
	if regCount > R {
		regCount = R
	}
	return &Stack{a: a, depth: -1, limit: regCount}
}

// Depth reports the current logical top-of-stack index.
func (s *Stack) Depth() int { return s.depth }

// Limit reports the configured register-file ceiling (spec.md §6's
// reg_count_hint, as clamped by New) — the allocator's caller uses this to
// size anything that itself depends on how many registers may be live at
// once (e.g. a function call's caller-saved-register snapshot).
func (s *Stack) Limit() int { return s.limit }

// regFor returns the xmm register that backs logical depth d, valid only
// when d <= s.limit.
func regFor(d int) asm.XMM { return asm.XMM(d) }

// spillMem is the CPU-stack memory operand for the spilled slot
// corresponding to logical depth d (d > s.limit). The spill region is
// addressed LIFO relative to the *current* top-of-stack depth, not to d
// alone: every push below the current top pushed rsp down another 4 bytes,
// so a slot's offset from the live rsp is how many pushes have happened
// since it was written, i.e. (s.depth - d) * 4. The most-recently-spilled
// value (d == s.depth) always lives at [rsp], one spilled below it at
// [rsp+4], and so on, regardless of how deep d is relative to the limit.
func (s *Stack) spillMem(d int) asm.MemOperand {
	offset := int32(s.depth-d) * 4
	return asm.MemOperand{Base: asm.RSP, Index: asm.NoReg, Disp: offset}
}

// Push materializes the scalar-float value already sitting in srcReg onto
// the logical stack: while depth <= s.limit it is a register-to-register
// move into xmm[depth]; once the configured register file is exhausted it
// is spilled onto the CPU stack (spec.md §4.5 "push(value_source)").
func (s *Stack) Push(srcReg asm.XMM) {
	s.depth++
	if s.depth <= s.limit {
		dst := regFor(s.depth)
		if dst != srcReg {
			s.a.MovssRR(dst, srcReg)
		}
		return
	}
	s.a.SubRSPImm8(4)
	s.a.MovssStore(asm.MemOperand{Base: asm.RSP, Index: asm.NoReg, Disp: 0}, srcReg)
}

// PushMem loads a scalar float directly from memory onto the logical
// stack, skipping an intermediate register move when depth <= s.limit.
func (s *Stack) PushMem(mem asm.MemOperand) {
	s.depth++
	if s.depth <= s.limit {
		s.a.MovssLoad(regFor(s.depth), mem)
		return
	}
	s.a.MovssLoad(Scratch1, mem)
	s.a.SubRSPImm8(4)
	s.a.MovssStore(asm.MemOperand{Base: asm.RSP, Index: asm.NoReg, Disp: 0}, Scratch1)
}

// LoadOne returns the register holding the top-of-stack value without
// popping it, reloading from the CPU stack into Scratch1 if it was spilled
// (spec.md §4.5 "load_one(&out_reg) -> spilled_bool").
func (s *Stack) LoadOne() (reg asm.XMM, spilled bool) {
	if s.depth <= s.limit {
		return regFor(s.depth), false
	}
	s.a.MovssLoad(Scratch1, asm.MemOperand{Base: asm.RSP, Index: asm.NoReg, Disp: 0})
	return Scratch1, true
}

// LoadTwo returns the registers holding the top two stack values, in
// (second-from-top, top) order — i.e. (a, b) for an operation computing
// `a op b`. Reloads whichever of the two were spilled; spilled reports
// whether either was (spec.md §4.5 "load_two", "If only the top element is
// spilled, emit exactly one reload").
func (s *Stack) LoadTwo() (a, b asm.XMM, spilled bool) {
	topDepth := s.depth
	secondDepth := s.depth - 1

	switch {
	case secondDepth > s.limit:
		// Both spilled: second is one slot below top on the CPU stack.
		s.a.MovssLoad(Scratch1, s.spillMem(secondDepth))
		s.a.MovssLoad(Scratch2, asm.MemOperand{Base: asm.RSP, Index: asm.NoReg, Disp: 0})
		return Scratch1, Scratch2, true
	case topDepth > s.limit:
		// Only the top is spilled; second-from-top is still in a register.
		s.a.MovssLoad(Scratch2, asm.MemOperand{Base: asm.RSP, Index: asm.NoReg, Disp: 0})
		return regFor(secondDepth), Scratch2, true
	default:
		return regFor(secondDepth), regFor(topDepth), false
	}
}

// Pop retires the top n logical stack entries, freeing whatever fraction
// of them lived on the CPU stack (spec.md §4.5 "pop(n)").
func (s *Stack) Pop(n int) {
	spilledCount := 0
	for i := 0; i < n; i++ {
		if s.depth-i > s.limit {
			spilledCount++
		}
	}
	s.depth -= n
	if spilledCount > 0 {
		s.a.AddRSPImm8(byte(spilledCount * 4))
	}
}

// CommitResult writes an operation's result, already sitting in reg, back
// to its logical home: a register move if the destination depth (the
// top-of-stack once the caller has popped every operand above the result's
// own slot, e.g. one for a binary operation) is still within the
// register file, or a store back to [rsp] if the destination was spilled
// (spec.md §4.5 "commit_result(reg, spilled_bool)").
func (s *Stack) CommitResult(reg asm.XMM, spilled bool) {
	if !spilled {
		dst := regFor(s.depth)
		if dst != reg {
			s.a.MovssRR(dst, reg)
		}
		return
	}
	s.a.MovssStore(asm.MemOperand{Base: asm.RSP, Index: asm.NoReg, Disp: 0}, reg)
}

// LoadArg returns the register holding the value at absolute logical depth
// d (not relative to the current top), reloading into scratch if that depth
// was spilled. Used for n-ary FUNC call marshaling (spec.md §4.6), where an
// argument buffer is built left-to-right across up to 10 arguments rather
// than just the top one or two values LoadOne/LoadTwo handle.
func (s *Stack) LoadArg(d int, scratch asm.XMM) (asm.XMM, bool) {
	if d <= s.limit {
		return regFor(d), false
	}
	s.a.MovssLoad(scratch, s.spillMem(d))
	return scratch, true
}

// Reset sets the allocator's logical depth to depth without emitting any
// code — used when the compiler needs to recompute a depth snapshot (e.g.
// restoring the if/then/else branch depth; spec.md §4.6).
func (s *Stack) Reset(depth int) { s.depth = depth }
