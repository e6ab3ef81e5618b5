package token

// Buffer is an append-only, ordered sequence of packed Tokens: the RPN
// stream produced by one parser instance. It is owned exclusively by that
// instance and is moved (not copied) into the VM and/or JIT compiler when
// an evaluation or compilation is requested.
//
// Grounded on std/compiler/ir.go's IRFunc.Code ([]Inst) — a flat
// instruction slice plus a running high-water-mark of operand-stack depth.
type Buffer struct {
	Tokens   []Token
	maxStack int
}

// NewBuffer returns an empty RPN buffer ready to accept tokens.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append adds a token to the end of the stream and updates the recorded
// maximum stack position.
func (b *Buffer) Append(t Token) int {
	idx := len(b.Tokens)
	b.Tokens = append(b.Tokens, t)
	if t.StackPos > b.maxStack {
		b.maxStack = t.StackPos
	}
	return idx
}

// Len returns the number of tokens currently in the stream.
func (b *Buffer) Len() int {
	return len(b.Tokens)
}

// MaxStackPos returns the highest stack_pos observed over the whole stream.
func (b *Buffer) MaxStackPos() int {
	return b.maxStack
}

// StackSize returns the number of float64 slots the VM must allocate to
// evaluate this stream: MaxStackPos()+1, since slot 0 is an unused
// sentinel.
func (b *Buffer) StackSize() int {
	return b.maxStack + 1
}

// SetOffset patches the relative jump offset of an IF/ELSE token already in
// the stream. It is used at finalization time once the matching
// ELSE/ENDIF position is known.
func (b *Buffer) SetOffset(idx, offset int) {
	b.Tokens[idx].Offset = offset
}

// At returns the token at idx.
func (b *Buffer) At(idx int) Token {
	return b.Tokens[idx]
}

// Reset empties the buffer for reuse without reallocating its backing
// array, keeping re-parse of a previously-parsed-then-cleared expression
// allocation-light.
func (b *Buffer) Reset() {
	b.Tokens = b.Tokens[:0]
	b.maxStack = 0
}

// Clone returns a deep-enough copy of b suitable for independent mutation:
// the token slice is copied, while pointer payloads (Var, Func) are shared.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{
		Tokens:   make([]Token, len(b.Tokens)),
		maxStack: b.maxStack,
	}
	copy(out.Tokens, b.Tokens)
	return out
}
