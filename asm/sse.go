package asm

// Scalar SSE (*ss) and legacy x87 instruction emitters used by the
// expression compiler's register-stack allocator (spec.md §4.5) and
// opcode lowering (spec.md §4.6). Each *ss instruction operates on the
// low 32 bits of an xmm register — the "scalar single" forms spec.md's
// Non-goals restrict the JIT to (no AVX, no double-precision JIT).

func xmmREX(r, rm int) (rex byte, need bool) {
	rex = 0x40
	if r >= 8 {
		rex |= 0x04
	}
	if rm >= 8 {
		rex |= 0x01
	}
	return rex, rex != 0x40
}

// MovssRR emits `movss dst, src` (xmm-to-xmm).
func (a *Assembler) MovssRR(dst, src XMM) {
	a.EmitBytes(0xf3)
	if rex, need := xmmREX(int(dst), int(src)); need {
		a.EmitByte(rex)
	}
	a.EmitBytes(0x0f, 0x10, EmitModRM(3, byte(dst), byte(src)))
}

// MovssLoad emits `movss dst, [mem]`.
func (a *Assembler) MovssLoad(dst XMM, mem MemOperand) {
	a.EmitBytes(0xf3)
	if rex, need := xmmREX(int(dst), int(mem.Base)); need {
		a.EmitByte(rex)
	}
	a.EmitBytes(0x0f, 0x10)
	a.EmitModRMMem(int(dst), mem)
}

// MovssStore emits `movss [mem], src`.
func (a *Assembler) MovssStore(mem MemOperand, src XMM) {
	a.EmitBytes(0xf3)
	if rex, need := xmmREX(int(src), int(mem.Base)); need {
		a.EmitByte(rex)
	}
	a.EmitBytes(0x0f, 0x11)
	a.EmitModRMMem(int(src), mem)
}

// binarySSE emits a two-register scalar-single instruction with the given
// two-byte opcode (0F xx), used by Addss/Subss/.../Maxss below.
func (a *Assembler) binarySSE(prefix byte, opcode byte, dst, src XMM) {
	a.EmitBytes(prefix)
	if rex, need := xmmREX(int(dst), int(src)); need {
		a.EmitByte(rex)
	}
	a.EmitBytes(0x0f, opcode, EmitModRM(3, byte(dst), byte(src)))
}

func (a *Assembler) AddssRR(dst, src XMM) { a.binarySSE(0xf3, 0x58, dst, src) }
func (a *Assembler) SubssRR(dst, src XMM) { a.binarySSE(0xf3, 0x5c, dst, src) }
func (a *Assembler) MulssRR(dst, src XMM) { a.binarySSE(0xf3, 0x59, dst, src) }
func (a *Assembler) DivssRR(dst, src XMM) { a.binarySSE(0xf3, 0x5e, dst, src) }
func (a *Assembler) MinssRR(dst, src XMM) { a.binarySSE(0xf3, 0x5d, dst, src) }
func (a *Assembler) MaxssRR(dst, src XMM) { a.binarySSE(0xf3, 0x5f, dst, src) }
func (a *Assembler) SqrtssRR(dst, src XMM) { a.binarySSE(0xf3, 0x51, dst, src) }

// XorpsRR emits `xorps dst, src` (no mandatory prefix; used to zero a
// register: `xorps x, x`).
func (a *Assembler) XorpsRR(dst, src XMM) {
	if rex, need := xmmREX(int(dst), int(src)); need {
		a.EmitByte(rex)
	}
	a.EmitBytes(0x0f, 0x57, EmitModRM(3, byte(dst), byte(src)))
}

// ComissRR emits `comiss a, b` (ordered compare, signals on NaN).
func (a *Assembler) ComissRR(a_, b XMM) {
	if rex, need := xmmREX(int(a_), int(b)); need {
		a.EmitByte(rex)
	}
	a.EmitBytes(0x0f, 0x2f, EmitModRM(3, byte(a_), byte(b)))
}

// UcomissRR emits `ucomiss a, b` (unordered compare, quiet on NaN).
func (a *Assembler) UcomissRR(a_, b XMM) {
	if rex, need := xmmREX(int(a_), int(b)); need {
		a.EmitByte(rex)
	}
	a.EmitBytes(0x0f, 0x2e, EmitModRM(3, byte(a_), byte(b)))
}

// Cvtss2sd emits `cvtss2sd dst, src` (float32 -> float64, widening a
// register-stack value before it crosses the float64 user-callback ABI
// boundary — spec.md §4.6 function-call marshaling).
func (a *Assembler) Cvtss2sd(dst, src XMM) { a.binarySSE(0xf3, 0x5a, dst, src) }

// Cvtsd2ss emits `cvtsd2ss dst, src` (float64 -> float32, narrowing a
// callback's return value back onto the register stack).
func (a *Assembler) Cvtsd2ss(dst, src XMM) { a.binarySSE(0xf2, 0x5a, dst, src) }

// Cvtsi2ss emits `cvtsi2ss dst, src` (32-bit GPR -> scalar float). The JIT
// compiler does not call it: abs() clears the sign bit with a mask instead.
func (a *Assembler) Cvtsi2ss(dst XMM, src Reg) {
	a.EmitBytes(0xf3)
	rex := byte(0x40)
	if dst >= 8 {
		rex |= 0x04
	}
	if src >= 8 {
		rex |= 0x01
	}
	if rex != 0x40 {
		a.EmitByte(rex)
	}
	a.EmitBytes(0x0f, 0x2a, EmitModRM(3, byte(dst), byte(src)))
}

// --- general-purpose helpers used around the float ops ---

// MovRegImm32 emits `mov dst, imm32` (zero-extended into the full 64-bit
// register), used to materialize 32-bit immediates (e.g. a float constant's
// bit pattern, or the 0x7fffffff sign mask for abs()).
func (a *Assembler) MovRegImm32(dst Reg, v int32) {
	if dst >= 8 {
		a.EmitByte(0x41)
	}
	a.EmitByte(0xb8 + byte(dst&7))
	a.EmitDword(uint32(v))
}

// SubRSPImm8 emits `sub rsp, imm8`.
func (a *Assembler) SubRSPImm8(n byte) {
	a.EmitBytes(0x48, 0x83, 0xec, n)
}

// AddRSPImm8 emits `add rsp, imm8`.
func (a *Assembler) AddRSPImm8(n byte) {
	a.EmitBytes(0x48, 0x83, 0xc4, n)
}

// PushReg/PopReg emit `push`/`pop` for a 64-bit GPR.
func (a *Assembler) PushReg(r Reg) {
	if r >= 8 {
		a.EmitByte(0x41)
	}
	a.EmitByte(0x50 + byte(r&7))
}

func (a *Assembler) PopReg(r Reg) {
	if r >= 8 {
		a.EmitByte(0x41)
	}
	a.EmitByte(0x58 + byte(r&7))
}

// --- x87, used only for sin/cos/tan per spec.md §4.6: "x87 is used
// because SSE lacks these intrinsics." ---

// FldM32 emits `fld dword [mem]`.
func (a *Assembler) FldM32(mem MemOperand) {
	a.EmitByte(0xd9)
	a.EmitModRMMem(0, mem)
}

// FstpM32 emits `fstp dword [mem]`.
func (a *Assembler) FstpM32(mem MemOperand) {
	a.EmitByte(0xd9)
	a.EmitModRMMem(3, mem)
}

// Fsin/Fcos/Fptan emit the corresponding x87 transcendental instruction.
// Fptan additionally pushes 1.0 onto the x87 stack that the caller must
// pop (spec.md §4.6, "for tan, pop the pushed 1.0").
func (a *Assembler) Fsin()  { a.EmitBytes(0xd9, 0xfe) }
func (a *Assembler) Fcos()  { a.EmitBytes(0xd9, 0xff) }
func (a *Assembler) Fptan() { a.EmitBytes(0xd9, 0xf2) }

// FstpST emits `fstp st(i)`: it copies ST(0) into ST(i) and pops. With i == 0
// it simply discards ST(0); used that way after Fptan to drop the pushed 1.0.
func (a *Assembler) FstpST(i byte) {
	a.EmitBytes(0xdd, 0xd8+i)
}

// MovsdLoad emits `movsd dst, [mem]` (scalar double load), used to widen a
// register-stack float32 argument through a float64 stack cell on its way
// to a user callback.
func (a *Assembler) MovsdLoad(dst XMM, mem MemOperand) {
	a.EmitBytes(0xf2)
	if rex, need := xmmREX(int(dst), int(mem.Base)); need {
		a.EmitByte(rex)
	}
	a.EmitBytes(0x0f, 0x10)
	a.EmitModRMMem(int(dst), mem)
}

// MovsdStore emits `movsd [mem], src` (scalar double store).
func (a *Assembler) MovsdStore(mem MemOperand, src XMM) {
	a.EmitBytes(0xf2)
	if rex, need := xmmREX(int(src), int(mem.Base)); need {
		a.EmitByte(rex)
	}
	a.EmitBytes(0x0f, 0x11)
	a.EmitModRMMem(int(src), mem)
}

// MovdFromGPR emits `movd dst, src` (32-bit GPR -> xmm, bit-for-bit), used
// to materialize a float32 constant's bit pattern without a memory
// round-trip.
func (a *Assembler) MovdFromGPR(dst XMM, src Reg) {
	a.EmitByte(0x66)
	rex := byte(0x40)
	if dst >= 8 {
		rex |= 0x04
	}
	if src >= 8 {
		rex |= 0x01
	}
	if rex != 0x40 {
		a.EmitByte(rex)
	}
	a.EmitBytes(0x0f, 0x6e, EmitModRM(3, byte(dst), byte(src)))
}

// AndpsRR emits `andps dst, src`, used to combine two materialized 0.0/1.0
// booleans for && (spec.md §4.6: bitwise AND of two IEEE 1.0f/0.0f values is
// exact, so no operand-level short-circuit branch is needed on the JIT
// result path).
func (a *Assembler) AndpsRR(dst, src XMM) {
	if rex, need := xmmREX(int(dst), int(src)); need {
		a.EmitByte(rex)
	}
	a.EmitBytes(0x0f, 0x54, EmitModRM(3, byte(dst), byte(src)))
}

// OrpsRR emits `orps dst, src`, the || counterpart of AndpsRR.
func (a *Assembler) OrpsRR(dst, src XMM) {
	if rex, need := xmmREX(int(dst), int(src)); need {
		a.EmitByte(rex)
	}
	a.EmitBytes(0x0f, 0x56, EmitModRM(3, byte(dst), byte(src)))
}

// UcomissRM emits `ucomiss reg, [mem]`, comparing an xmm register directly
// against a memory operand. Used to test a value against the static
// floatConstZero constant without needing a spare xmm register to hold zero.
func (a *Assembler) UcomissRM(reg XMM, mem MemOperand) {
	if rex, need := xmmREX(int(reg), int(mem.Base)); need {
		a.EmitByte(rex)
	}
	a.EmitBytes(0x0f, 0x2e)
	a.EmitModRMMem(int(reg), mem)
}
