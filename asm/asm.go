// Package asm is a streaming x86-64 instruction emitter: ModR/M, SIB, and
// REX prefix packing, label binding with pending back-patch lists, and a
// two-pass relocation table for addresses that are only known once the
// code buffer is copied into its final executable page (spec.md §4.4).
//
// Grounded on std/compiler/x64.go's mnemonic-level emit helpers
// (rexRR/modrmRR, the register-immediate64 move, the jmpRel32/jccRel32 +
// patchRel32 fixup pair) and std/compiler/backend.go's raw byte emission
// (emitByte/emitBytes/emitU32/emitU64). The teacher patches calls against a
// function table that is already complete by the time patching starts; we
// generalize that into the label-with-pending-list model spec.md §9 asks
// for, since a JIT label may be referenced before it is bound.
package asm

import "fmt"

// Reg is an x86-64 general-purpose register index (0..15), in the same
// encoding order std/compiler/x64.go's REG_* constants use.
type Reg int

const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

// XMM is an SSE scalar register index (0..15).
type XMM int

const (
	XMM0 XMM = iota
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
)

// RelocKind classifies a deferred address fixup (spec.md §3 "Assembler
// state ... relocation table").
type RelocKind int

const (
	// RelocAbsToAbs writes an absolute 64-bit address: the page base plus a
	// recorded displacement.
	RelocAbsToAbs RelocKind = iota
	// RelocRelToAbs is a rel32 computed against an absolute target that is
	// only known at relocate() time (e.g. a Go closure's captured cell).
	RelocRelToAbs
)

// Reloc is one pending site in the relocation table.
type Reloc struct {
	Offset int // byte offset of the field to patch
	Size   int // 4 or 8
	Kind   RelocKind
	Target uint64 // absolute target address (meaning depends on Kind)
}

// pendingPatch is one not-yet-resolved back-patch site queued against an
// unbound label.
type pendingPatch struct {
	offset int // offset of the rel8/rel32 field
	size   int // 1 or 4
}

// Label is either unbound (Offset == -1, holding pending back-patch sites)
// or bound (Offset is the absolute position in the code buffer). Labels are
// owned by the Assembler that created them.
type Label struct {
	Offset  int
	pending []pendingPatch
}

// NewLabel returns a fresh, unbound label.
func (a *Assembler) NewLabel() *Label {
	return &Label{Offset: -1}
}

// Assembler is a growable code buffer plus its auxiliary label and
// relocation tables (spec.md §3 "Assembler state").
type Assembler struct {
	code  []byte
	relocs []Reloc

	// trampolines holds not-yet-emitted far-call trampolines; CodeSize()
	// already counts them and Finish() appends them to the code buffer once,
	// so the caller can preallocate the executable page in one shot (spec.md §4.4,
	// "Update trampoline_size so callers preallocate the right total").
	trampolines []trampoline
}

type trampoline struct {
	siteOffset int    // rel32 jmp site that targets this trampoline
	target     uint64 // absolute address the trampoline jumps to
}

const trampolineSize = 13 // movabs r11, imm64 (10 bytes) + jmp r11 (3 bytes: REX.B + ff + modrm)

// New returns an empty Assembler.
func New() *Assembler {
	return &Assembler{}
}

// Pos returns the current code buffer length — the offset a not-yet-bound
// label or jump target will resolve to if bound right now.
func (a *Assembler) Pos() int { return len(a.code) }

// Bytes returns the emitted code, not including not-yet-materialized
// trampolines (see Finish).
func (a *Assembler) Bytes() []byte { return a.code }

// CodeSize returns the number of bytes the final executable page must hold:
// the emitted code plus every reserved trampoline slot (spec.md §4.4's
// "Update trampoline_size so callers preallocate the right total").
func (a *Assembler) CodeSize() int {
	return len(a.code) + len(a.trampolines)*trampolineSize
}

// --- raw byte emission ---

func (a *Assembler) EmitByte(b byte) { a.code = append(a.code, b) }

func (a *Assembler) EmitBytes(bs ...byte) { a.code = append(a.code, bs...) }

func (a *Assembler) EmitWord(v uint16) {
	a.code = append(a.code, byte(v), byte(v>>8))
}

func (a *Assembler) EmitDword(v uint32) {
	a.code = append(a.code, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (a *Assembler) EmitQword(v uint64) {
	a.code = append(a.code,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

// EmitModRM packs a ModR/M byte: mod (0-3), reg (0-7), rm (0-7).
func EmitModRM(mod, reg, rm byte) byte {
	return (mod << 6) | ((reg & 7) << 3) | (rm & 7)
}

// EmitSIB packs a SIB byte: scale (0-3, meaning 1/2/4/8), index (0-7), base
// (0-7).
func EmitSIB(scale, index, base byte) byte {
	return (scale << 6) | ((index & 7) << 3) | (base & 7)
}

// EmitREX emits the REX prefix only if w/r/x/b or an extended register
// forces one (spec.md §4.4). The emitter always targets 64-bit mode — the
// JIT back end targets x86-64 exclusively (spec.md §1 scope) — so there is
// no 32-bit-mode variant.
func (a *Assembler) EmitREX(w, r, x, b bool) {
	rex := byte(0x40)
	if w {
		rex |= 0x08
	}
	if r {
		rex |= 0x04
	}
	if x {
		rex |= 0x02
	}
	if b {
		rex |= 0x01
	}
	if rex != 0x40 {
		a.EmitByte(rex)
	}
}

// rex64 is the common case: REX.W plus extension bits for a register-direct
// or register-to-register-memory instruction.
func rex64(w bool, reg, rm int) byte {
	r := byte(0x40)
	if w {
		r |= 0x08
	}
	if reg >= 8 {
		r |= 0x04
	}
	if rm >= 8 {
		r |= 0x01
	}
	return r
}

// MemOperand describes a memory operand for EmitModRMMem: [base + index*scale + disp],
// with Base == NoReg meaning base-less (absolute disp32 through a SIB byte) and
// Index == NoReg meaning no SIB index. NoReg is -1.
const NoReg Reg = -1

type MemOperand struct {
	Base  Reg
	Index Reg
	Scale byte // 1, 2, 4, or 8 — ignored when Index == NoReg
	Disp  int32
}

// EmitModRMMem emits the ModR/M (and SIB, if required) byte(s) plus any
// displacement for op_reg addressing mem, handling the encoding quirks
// spec.md §4.4 calls out: RBP/R13 as a base always needs an explicit disp8
// (mod=01,disp=0) because mod=00,rm=101 means RIP-relative instead; RSP/R12
// as a base always needs a SIB byte even with no index, because rm=100
// means "SIB follows" rather than "use RSP directly"; and index==RSP is
// illegal (RSP cannot be scaled).
func (a *Assembler) EmitModRMMem(opReg int, mem MemOperand) {
	reg := byte(opReg & 7)

	if mem.Index == Reg(4) {
		panic("asm: RSP cannot be used as a SIB index register")
	}

	if mem.Base == NoReg {
		// No base: disp32, optionally with an index. mod=00, rm=100 (SIB)
		// with base field 101 meaning "no base, disp32".
		a.EmitByte(EmitModRM(0, reg, 4))
		if mem.Index != NoReg {
			a.EmitByte(EmitSIB(scaleBits(mem.Scale), byte(mem.Index), 5))
		} else {
			a.EmitByte(EmitSIB(0, 4, 5))
		}
		a.EmitDword(uint32(mem.Disp))
		return
	}

	base := byte(mem.Base & 7)
	needsSIB := mem.Index != NoReg || base == 4 // RSP/R12 always need a SIB.
	isBP := base == 5                           // RBP/R13 always need disp8/32.

	mod := byte(0)
	switch {
	case isBP && mem.Disp == 0:
		mod = 1 // force disp8=0 instead of the RIP-relative encoding.
	case mem.Disp == 0:
		mod = 0
	case mem.Disp >= -128 && mem.Disp <= 127:
		mod = 1
	default:
		mod = 2
	}

	rm := base
	if needsSIB {
		rm = 4
	}
	a.EmitByte(EmitModRM(mod, reg, rm))
	if needsSIB {
		if mem.Index != NoReg {
			a.EmitByte(EmitSIB(scaleBits(mem.Scale), byte(mem.Index), base))
		} else {
			a.EmitByte(EmitSIB(0, 4, base))
		}
	}
	switch mod {
	case 1:
		a.EmitByte(byte(mem.Disp))
	case 2:
		a.EmitDword(uint32(mem.Disp))
	}
}

func scaleBits(scale byte) byte {
	switch scale {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	}
	panic(fmt.Sprintf("asm: invalid SIB scale %d", scale))
}

// Align pads with single-byte NOPs until the code buffer length is a
// multiple of n.
func (a *Assembler) Align(n int) {
	for len(a.code)%n != 0 {
		a.EmitByte(0x90)
	}
}

// --- labels and jumps ---

// Bind sets label's offset to the current code position and patches every
// pending back-patch site recorded against it. A pending 8-bit site whose
// displacement does not fit raises the "short jump out of range" failure
// mode spec.md §4.4 names.
func (a *Assembler) Bind(l *Label) error {
	l.Offset = len(a.code)
	for _, p := range l.pending {
		disp := l.Offset - (p.offset + p.size)
		if p.size == 1 {
			if disp < -128 || disp > 127 {
				return fmt.Errorf("asm: short jump out of range (disp=%d)", disp)
			}
			a.code[p.offset] = byte(int8(disp))
		} else {
			a.patchDword(p.offset, int32(disp))
		}
	}
	l.pending = nil
	return nil
}

func (a *Assembler) patchDword(offset int, v int32) {
	a.code[offset] = byte(v)
	a.code[offset+1] = byte(v >> 8)
	a.code[offset+2] = byte(v >> 16)
	a.code[offset+3] = byte(v >> 24)
}

// referenceRel32 emits a placeholder rel32 targeting l: if l is already
// bound, the real displacement is written immediately; otherwise the site
// is queued on l's pending list for Bind to patch later.
func (a *Assembler) referenceRel32(l *Label) {
	site := len(a.code)
	a.EmitDword(0)
	if l.Offset >= 0 {
		disp := l.Offset - (site + 4)
		a.patchDword(site, int32(disp))
		return
	}
	l.pending = append(l.pending, pendingPatch{offset: site, size: 4})
}

// JMP emits `jmp rel32` to label l.
func (a *Assembler) JMP(l *Label) {
	a.EmitByte(0xe9)
	a.referenceRel32(l)
}

// Cond is an x86 condition code used by Jcc (the low nibble of the two-byte
// 0F 8x / 0F 9x opcode, and of 70+cc / 90+cc).
type Cond byte

const (
	CondE  Cond = 0x4
	CondNE Cond = 0x5
	CondL  Cond = 0xC
	CondGE Cond = 0xD
	CondLE Cond = 0xE
	CondG  Cond = 0xF
	CondB  Cond = 0x2 // below (unsigned) / carry — used after (u)comiss
	CondAE Cond = 0x3
	CondA  Cond = 0x7
	CondP  Cond = 0xA // parity (unordered result from (u)comiss)
	CondBE Cond = 0x6
)

// Jcc emits a conditional jump (rel32, two-byte opcode) to label l.
func (a *Assembler) Jcc(cc Cond, l *Label) {
	a.EmitBytes(0x0f, 0x80|byte(cc))
	a.referenceRel32(l)
}

// Setcc emits `setCC dst_lo8`, zero-extending is the caller's job.
func (a *Assembler) Setcc(cc Cond, dst Reg) {
	rex := byte(0)
	if dst >= 8 {
		rex = 0x41
	}
	if rex != 0 {
		a.EmitBytes(rex, 0x0f, 0x90|byte(cc), EmitModRM(3, 0, byte(dst)))
	} else {
		a.EmitBytes(0x0f, 0x90|byte(cc), EmitModRM(3, 0, byte(dst)))
	}
}

// Ret emits `ret`.
func (a *Assembler) Ret() { a.EmitByte(0xc3) }

// MovRegImm64 emits `movabs dst, imm64`.
func (a *Assembler) MovRegImm64(dst Reg, v uint64) {
	rex := byte(0x48)
	if dst >= 8 {
		rex = 0x49
	}
	a.EmitBytes(rex, 0xb8+byte(dst&7))
	a.EmitQword(v)
}

// LoadAbsReloc emits `movabs dst, 0` with the immediate left as a
// placeholder and queues a relocation so it is patched to target once
// Relocate is called against the final executable page — the two-pass
// model spec.md §4.4 describes ("addresses cannot be fixed until
// relocate(dst) is called"), used for every absolute address (a variable
// cell, a callback dispatch entry point) a compiled expression embeds.
func (a *Assembler) LoadAbsReloc(dst Reg, target uint64) {
	rex := byte(0x48)
	if dst >= 8 {
		rex = 0x49
	}
	a.EmitBytes(rex, 0xb8+byte(dst&7))
	site := len(a.code)
	a.EmitQword(0)
	a.AddReloc(Reloc{Offset: site, Size: 8, Kind: RelocAbsToAbs, Target: target})
}

// MovRR emits `mov dst, src` for 64-bit general-purpose registers.
func (a *Assembler) MovRR(dst, src Reg) {
	a.EmitBytes(rex64(true, int(src), int(dst)), 0x89, EmitModRM(3, byte(src), byte(dst)))
}

// LeaMem emits `lea dst, [mem]`.
func (a *Assembler) LeaMem(dst Reg, mem MemOperand) {
	a.EmitByte(rex64(true, int(dst), int(mem.Base)))
	a.EmitByte(0x8d)
	a.EmitModRMMem(int(dst), mem)
}

// MovzxB emits `movzx dst, dst_lo8`, zero-extending the low byte of dst
// (as setcc leaves it) across the full register.
func (a *Assembler) MovzxB(dst Reg) {
	a.EmitBytes(rex64(false, int(dst), int(dst)), 0x0f, 0xb6, EmitModRM(3, byte(dst), byte(dst)))
}

// CallAbsReg emits `call dst` (indirect call through a GPR already loaded
// with the target address).
func (a *Assembler) CallAbsReg(dst Reg) {
	if dst >= 8 {
		a.EmitByte(0x41)
	}
	a.EmitBytes(0xff, EmitModRM(3, 2, byte(dst)))
}

// JmpAbsReg emits `jmp dst` (indirect jump through a GPR).
func (a *Assembler) JmpAbsReg(dst Reg) {
	if dst >= 8 {
		a.EmitByte(0x41)
	}
	a.EmitBytes(0xff, EmitModRM(3, 4, byte(dst)))
}

// EmitRelCallOrJump computes the displacement from the instruction-after to
// target: if it fits in a signed 32-bit rel32, it emits a direct relative
// call (or jump, selected by isJump); otherwise (spec.md §4.4) it reserves a
// 13-byte trampoline at the end of the code buffer — `movabs r11, imm64;
// jmp r11` — and emits a relative call/jump to the trampoline instead. R11
// is used as the trampoline scratch register because it is caller-saved and
// carries no argument-passing meaning in either the SysV or Windows x64
// ABI.
func (a *Assembler) EmitRelCallOrJump(target uint64, isJump bool) {
	opcodeLen := 5 // e8/e9 + rel32
	siteAfter := uint64(len(a.code) + opcodeLen)
	disp := int64(target) - int64(siteAfter)
	if disp >= -(1 << 31) && disp < (1<<31) {
		if isJump {
			a.EmitByte(0xe9)
		} else {
			a.EmitByte(0xe8)
		}
		a.EmitDword(uint32(int32(disp)))
		return
	}

	// Far target: reserve a trampoline slot, to be materialized at Finish.
	if isJump {
		a.EmitByte(0xe9)
	} else {
		a.EmitByte(0xe8)
	}
	site := len(a.code)
	a.EmitDword(0) // patched in Finish once trampoline offsets are known.
	a.trampolines = append(a.trampolines, trampoline{siteOffset: site, target: target})
}

// Finish appends every reserved trampoline to the end of the code buffer
// and patches the rel32 sites that target them. Call once, after all other
// emission, before Bytes()/CodeSize() are used to size the executable page.
func (a *Assembler) Finish() {
	for _, t := range a.trampolines {
		trampolineOffset := len(a.code)
		disp := int32(trampolineOffset - (t.siteOffset + 4))
		a.patchDword(t.siteOffset, disp)

		// movabs r11, imm64
		a.EmitBytes(0x49, 0xbb)
		a.EmitQword(t.target)
		// jmp r11
		a.EmitBytes(0x41, 0xff, 0xe3)
	}
	a.trampolines = nil
}

// AddReloc queues a relocation to be applied once the final executable
// page base is known (spec.md §4.4 "relocate(dst)").
func (a *Assembler) AddReloc(r Reloc) {
	a.relocs = append(a.relocs, r)
}

// Relocate rewrites every queued relocation site against base, the final
// absolute address of byte 0 of the copied code.
func (a *Assembler) Relocate(code []byte, base uint64) {
	for _, r := range a.relocs {
		switch r.Kind {
		case RelocAbsToAbs:
			putU64(code[r.Offset:], r.Target)
		case RelocRelToAbs:
			site := base + uint64(r.Offset) + uint64(r.Size)
			disp := int32(int64(r.Target) - int64(site))
			putU32(code[r.Offset:], uint32(disp))
		}
	}
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
