package token

import "testing"

func TestOpcodeArity(t *testing.T) {
	cases := []struct {
		op   Opcode
		want int
	}{
		{OpVal, 0},
		{OpVar, 0},
		{OpAdd, 2},
		{OpSub, 2},
		{OpLT, 2},
		{OpAnd, 2},
		{OpSin, 1},
		{OpSqrt, 1},
		{OpFunc, -1},
		{OpUserBinary, -1},
		{OpUserUnary, -1},
	}
	for _, c := range cases {
		t.Run(c.op.String(), func(t *testing.T) {
			if got := c.op.Arity(); got != c.want {
				t.Fatalf("Arity(%s) = %d, want %d", c.op, got, c.want)
			}
		})
	}
}

func TestOpcodeClassPredicates(t *testing.T) {
	if !OpLT.IsComparison() || OpAdd.IsComparison() {
		t.Fatalf("IsComparison misclassified")
	}
	if !OpAdd.IsBinaryArith() || OpLT.IsBinaryArith() {
		t.Fatalf("IsBinaryArith misclassified")
	}
	if !OpAnd.IsLogical() || !OpOr.IsLogical() || OpAdd.IsLogical() {
		t.Fatalf("IsLogical misclassified")
	}
	if !OpSin.IsUnaryIntrinsic() || !OpSqrt.IsUnaryIntrinsic() || OpAdd.IsUnaryIntrinsic() {
		t.Fatalf("IsUnaryIntrinsic misclassified")
	}
}

func TestOpcodeStringUnknown(t *testing.T) {
	var bogus Opcode = 9999
	if bogus.String() != "Opcode(?)" {
		t.Fatalf("String() on unknown opcode = %q", bogus.String())
	}
}

func TestBufferAppendTracksMaxStack(t *testing.T) {
	b := NewBuffer()
	b.Append(Token{Op: OpVal, Value: 1, StackPos: 1})
	b.Append(Token{Op: OpVal, Value: 2, StackPos: 2})
	b.Append(Token{Op: OpAdd, StackPos: 1})

	if b.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", b.Len())
	}
	if b.MaxStackPos() != 2 {
		t.Fatalf("MaxStackPos() = %d, want 2", b.MaxStackPos())
	}
	if b.StackSize() != 3 {
		t.Fatalf("StackSize() = %d, want 3", b.StackSize())
	}
}

func TestBufferSetOffsetPatchesInPlace(t *testing.T) {
	b := NewBuffer()
	ifIdx := b.Append(Token{Op: OpIf, StackPos: 1})
	b.Append(Token{Op: OpVal, Value: 1, StackPos: 2})
	b.SetOffset(ifIdx, 3)

	if got := b.At(ifIdx).Offset; got != 3 {
		t.Fatalf("Offset after patch = %d, want 3", got)
	}
}

func TestBufferResetClearsStateButKeepsCapacity(t *testing.T) {
	b := NewBuffer()
	b.Append(Token{Op: OpVal, Value: 1, StackPos: 1})
	b.Append(Token{Op: OpVal, Value: 2, StackPos: 2})
	cap0 := cap(b.Tokens)

	b.Reset()
	if b.Len() != 0 {
		t.Fatalf("Len() after Reset = %d, want 0", b.Len())
	}
	if b.MaxStackPos() != 0 {
		t.Fatalf("MaxStackPos() after Reset = %d, want 0", b.MaxStackPos())
	}
	if cap(b.Tokens) < cap0 {
		t.Fatalf("Reset shrank backing array capacity")
	}
}

func TestBufferCloneIsIndependent(t *testing.T) {
	b := NewBuffer()
	b.Append(Token{Op: OpVal, Value: 1, StackPos: 1})

	c := b.Clone()
	c.Append(Token{Op: OpVal, Value: 2, StackPos: 2})

	if b.Len() != 1 {
		t.Fatalf("mutating clone affected original: Len() = %d, want 1", b.Len())
	}
	if c.Len() != 2 {
		t.Fatalf("Clone().Len() = %d, want 2", c.Len())
	}
}
