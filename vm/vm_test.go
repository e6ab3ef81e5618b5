package vm

import (
	"math"
	"testing"

	"github.com/exprjit/exprjit/token"
)

func evalTokens(t *testing.T, toks []token.Token) float64 {
	t.Helper()
	buf := token.NewBuffer()
	for _, tok := range toks {
		buf.Append(tok)
	}
	got, err := Eval(buf)
	if err != nil {
		t.Fatalf("Eval() error: %v", err)
	}
	return got
}

func TestEvalArithmetic(t *testing.T) {
	// (2 + 3) * 4 => RPN: 2 3 + 4 *
	toks := []token.Token{
		{Op: token.OpVal, Value: 2, StackPos: 1},
		{Op: token.OpVal, Value: 3, StackPos: 2},
		{Op: token.OpAdd, StackPos: 1},
		{Op: token.OpVal, Value: 4, StackPos: 2},
		{Op: token.OpMul, StackPos: 1},
		{Op: token.OpEnd},
	}
	if got := evalTokens(t, toks); got != 20 {
		t.Fatalf("got %v, want 20", got)
	}
}

func TestEvalComparisonAndLogical(t *testing.T) {
	// (1 < 2) && (3 >= 3)
	toks := []token.Token{
		{Op: token.OpVal, Value: 1, StackPos: 1},
		{Op: token.OpVal, Value: 2, StackPos: 2},
		{Op: token.OpLT, StackPos: 1},
		{Op: token.OpVal, Value: 3, StackPos: 2},
		{Op: token.OpVal, Value: 3, StackPos: 3},
		{Op: token.OpGE, StackPos: 2},
		{Op: token.OpAnd, StackPos: 1},
		{Op: token.OpEnd},
	}
	if got := evalTokens(t, toks); got != 1 {
		t.Fatalf("got %v, want 1", got)
	}
}

func TestEvalUnaryIntrinsics(t *testing.T) {
	toks := []token.Token{
		{Op: token.OpVal, Value: -4, StackPos: 1},
		{Op: token.OpAbs, StackPos: 1},
		{Op: token.OpSqrt, StackPos: 1},
		{Op: token.OpEnd},
	}
	if got := evalTokens(t, toks); got != 2 {
		t.Fatalf("got %v, want 2", got)
	}
}

func TestEvalVariable(t *testing.T) {
	x := 7.0
	toks := []token.Token{
		{Op: token.OpVar, Var: &x, StackPos: 1},
		{Op: token.OpVal, Value: 1, StackPos: 2},
		{Op: token.OpAdd, StackPos: 1},
		{Op: token.OpEnd},
	}
	if got := evalTokens(t, toks); got != 8 {
		t.Fatalf("got %v, want 8", got)
	}
	x = 100
	if got := evalTokens(t, toks); got != 101 {
		t.Fatalf("re-eval after mutating cell: got %v, want 101", got)
	}
}

func TestEvalIfElse(t *testing.T) {
	// cond ? 10 : 20, for both branches of cond.
	build := func(cond float64) *token.Buffer {
		buf := token.NewBuffer()
		buf.Append(token.Token{Op: token.OpVal, Value: cond, StackPos: 1})
		ifIdx := buf.Append(token.Token{Op: token.OpIf, StackPos: 1})
		buf.Append(token.Token{Op: token.OpVal, Value: 10, StackPos: 1})
		elseIdx := buf.Append(token.Token{Op: token.OpElse, StackPos: 1})
		buf.Append(token.Token{Op: token.OpVal, Value: 20, StackPos: 1})
		endifIdx := buf.Append(token.Token{Op: token.OpEndIf, StackPos: 1})
		buf.Append(token.Token{Op: token.OpEnd})

		// IF jumps to just past ELSE (the start of the else-branch) when false.
		buf.SetOffset(ifIdx, elseIdx+1-ifIdx)
		// ELSE jumps past ENDIF (to the end token) once the then-branch runs.
		buf.SetOffset(elseIdx, endifIdx+1-elseIdx)
		return buf
	}

	if got, err := Eval(build(1)); err != nil || got != 10 {
		t.Fatalf("true branch: got (%v,%v), want 10", got, err)
	}
	if got, err := Eval(build(0)); err != nil || got != 20 {
		t.Fatalf("false branch: got (%v,%v), want 20", got, err)
	}
}

func TestEvalFuncCall(t *testing.T) {
	fn := &token.Func{
		Name:  "hypot2",
		Arity: 2,
		Call: func(args []float64) float64 {
			return math.Hypot(args[0], args[1])
		},
	}
	toks := []token.Token{
		{Op: token.OpVal, Value: 3, StackPos: 1},
		{Op: token.OpVal, Value: 4, StackPos: 2},
		{Op: token.OpFunc, Func: fn, StackPos: 1},
		{Op: token.OpEnd},
	}
	if got := evalTokens(t, toks); got != 5 {
		t.Fatalf("got %v, want 5", got)
	}
}

func TestEvalMissingEndReturnsInternalError(t *testing.T) {
	buf := token.NewBuffer()
	buf.Append(token.Token{Op: token.OpVal, Value: 1, StackPos: 1})
	if _, err := Eval(buf); err == nil {
		t.Fatalf("expected an error for a stream with no END token")
	}
}
