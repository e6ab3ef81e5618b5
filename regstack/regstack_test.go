package regstack

import (
	"testing"

	"github.com/exprjit/exprjit/asm"
)

func TestPushStaysInRegisterFileBelowR(t *testing.T) {
	a := asm.New()
	s := New(a, R)
	for i := 0; i <= R; i++ {
		s.Push(asm.XMM0)
	}
	if s.Depth() != R {
		t.Fatalf("Depth() = %d, want %d", s.Depth(), R)
	}
}

func TestPushSpillsPastR(t *testing.T) {
	a := asm.New()
	s := New(a, R)
	for i := 0; i <= R+2; i++ {
		s.Push(asm.XMM0)
	}
	if s.Depth() != R+2 {
		t.Fatalf("Depth() = %d, want %d", s.Depth(), R+2)
	}
	// Two pushes spilled (depths R+1 and R+2), so 8 bytes reserved on rsp.
	code := a.Bytes()
	subCount := 0
	for i := 0; i+3 < len(code); i++ {
		if code[i] == 0x48 && code[i+1] == 0x83 && code[i+2] == 0xec {
			subCount++
		}
	}
	if subCount != 2 {
		t.Fatalf("saw %d `sub rsp` emissions, want 2", subCount)
	}
}

func TestLoadOneNoSpill(t *testing.T) {
	a := asm.New()
	s := New(a, R)
	s.Push(asm.XMM0)
	reg, spilled := s.LoadOne()
	if spilled {
		t.Fatalf("LoadOne() reported spilled at depth 0")
	}
	if reg != asm.XMM0 {
		t.Fatalf("LoadOne() = %v, want XMM0", reg)
	}
}

func TestLoadTwoBothSpilled(t *testing.T) {
	asmbl := asm.New()
	s := New(asmbl, R)
	for i := 0; i <= R+2; i++ {
		s.Push(asm.XMM0)
	}
	lo, hi, spilled := s.LoadTwo()
	_ = lo
	_ = hi
	if !spilled {
		t.Fatalf("LoadTwo() at depth %d should report spilled", s.Depth())
	}
}

func TestPopUnwindsSpillAndRegisterDepth(t *testing.T) {
	a := asm.New()
	s := New(a, R)
	for i := 0; i <= R+2; i++ {
		s.Push(asm.XMM0)
	}
	s.Pop(3)
	if s.Depth() != R-1 {
		t.Fatalf("Depth() after Pop(3) = %d, want %d", s.Depth(), R-1)
	}
}

func TestLoadArgAbsoluteDepth(t *testing.T) {
	a := asm.New()
	s := New(a, R)
	for i := 0; i <= R+1; i++ {
		s.Push(asm.XMM0)
	}
	if reg, spilled := s.LoadArg(0, Scratch1); spilled || reg != asm.XMM0 {
		t.Fatalf("LoadArg(0) = (%v,%v), want (XMM0,false)", reg, spilled)
	}
	if reg, spilled := s.LoadArg(R+1, Scratch1); !spilled || reg != Scratch1 {
		t.Fatalf("LoadArg(%d) = (%v,%v), want (Scratch1,true)", R+1, reg, spilled)
	}
}

func TestNewClampsRegCount(t *testing.T) {
	a := asm.New()
	if s := New(a, -1); s.Limit() != 0 {
		t.Fatalf("New(a, -1).Limit() = %d, want 0", s.Limit())
	}
	if s := New(a, R+10); s.Limit() != R {
		t.Fatalf("New(a, R+10).Limit() = %d, want %d", s.Limit(), R)
	}
	if s := New(a, 2); s.Limit() != 2 {
		t.Fatalf("New(a, 2).Limit() = %d, want 2", s.Limit())
	}
}

// TestPushSpillsAtConfiguredLimit confirms a reduced regCount moves the
// register/spill boundary, not just Limit()'s return value: with limit 2,
// pushing past logical depth 2 must spill even though depth is still well
// below the package's absolute ceiling R.
func TestPushSpillsAtConfiguredLimit(t *testing.T) {
	a := asm.New()
	s := New(a, 2)
	for i := 0; i <= 4; i++ {
		s.Push(asm.XMM0)
	}
	if s.Depth() != 4 {
		t.Fatalf("Depth() = %d, want 4", s.Depth())
	}
	// Depths 3 and 4 spilled (past limit 2): two `sub rsp` emissions.
	code := a.Bytes()
	subCount := 0
	for i := 0; i+3 < len(code); i++ {
		if code[i] == 0x48 && code[i+1] == 0x83 && code[i+2] == 0xec {
			subCount++
		}
	}
	if subCount != 2 {
		t.Fatalf("saw %d `sub rsp` emissions, want 2", subCount)
	}
}

// TestSpillMemAddressingIsRelativeToCurrentDepth regression-tests the
// review-flagged spillMem bug directly: with every push beyond the first
// spilling (limit 0), the offset a deeper LoadArg computes for a shallower
// logical depth must grow as more values pile on above it, since the CPU
// stack addresses spilled slots LIFO relative to the live top of stack, not
// by each slot's absolute logical depth.
func TestSpillMemAddressingIsRelativeToCurrentDepth(t *testing.T) {
	a := asm.New()
	s := New(a, 0)
	s.Push(asm.XMM0) // depth 0: stays in a register (limit 0 keeps depth 0 live)
	s.Push(asm.XMM0) // depth 1: spills
	s.Push(asm.XMM0) // depth 2: spills
	s.Push(asm.XMM0) // depth 3: spills

	// Depth 1 is now two slots below the live top (depth 3): offset 2*4.
	mem1 := s.spillMem(1)
	if mem1.Disp != 8 {
		t.Fatalf("spillMem(1) at depth 3 = disp %d, want 8", mem1.Disp)
	}
	// Depth 3, the current top, always sits at [rsp].
	mem3 := s.spillMem(3)
	if mem3.Disp != 0 {
		t.Fatalf("spillMem(3) at depth 3 = disp %d, want 0", mem3.Disp)
	}

	s.Push(asm.XMM0) // depth 4: spills; depth 1 is now three slots down.
	mem1After := s.spillMem(1)
	if mem1After.Disp != 12 {
		t.Fatalf("spillMem(1) at depth 4 = disp %d, want 12 (offset must track the live top, not a fixed per-depth slot)", mem1After.Disp)
	}
}

func TestResetRestoresDepthWithoutEmittingCode(t *testing.T) {
	a := asm.New()
	s := New(a, R)
	s.Push(asm.XMM0)
	s.Push(asm.XMM0)
	before := len(a.Bytes())
	s.Reset(-1)
	if s.Depth() != -1 {
		t.Fatalf("Depth() after Reset(-1) = %d, want -1", s.Depth())
	}
	if len(a.Bytes()) != before {
		t.Fatalf("Reset emitted code: before=%d after=%d", before, len(a.Bytes()))
	}
}
