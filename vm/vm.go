// Package vm implements the portable bytecode dispatch loop spec.md §4.3
// describes: a switch over the packed token stream, driving a single
// contiguous float64 value stack sized to the RPN's recorded high-water
// mark.
//
// Grounded on std/compiler/backend_vm.go's execFunc — a `switch inst.Op`
// dispatch loop over a flat instruction slice with an explicit operand
// stack — retargeted from the teacher's uint64 integer stack machine to a
// float64 value stack indexed by Token.StackPos instead of push/pop
// (spec.md's stack-position accounting replaces the teacher's implicit SP).
package vm

import (
	"math"

	"github.com/exprjit/exprjit/perr"
	"github.com/exprjit/exprjit/token"
)

// Eval runs buf once over a freshly allocated value stack and returns the
// final result: stack[1] at the OpEnd token (spec.md §4.3). No allocation
// occurs beyond this one stack slice — the contract spec.md §5 requires
// ("No allocation occurs on the hot path after the first evaluation")
// holds per call when the caller reuses a stack slice via EvalInto.
func Eval(buf *token.Buffer) (float64, error) {
	stack := make([]float64, buf.StackSize())
	return EvalInto(buf, stack)
}

// EvalInto runs buf using a caller-supplied stack slice, which must be at
// least buf.StackSize() long. Reusing the slice across repeated Eval calls
// on the same expression (spec.md's "re-evaluating the same RPN any number
// of times") avoids a per-call allocation.
func EvalInto(buf *token.Buffer, stack []float64) (float64, error) {
	tokens := buf.Tokens
	ip := 0
	for ip < len(tokens) {
		t := &tokens[ip]
		idx := t.StackPos

		switch t.Op {
		case token.OpVal:
			stack[idx] = t.Value
		case token.OpVar:
			stack[idx] = *t.Var

		case token.OpLT:
			stack[idx] = boolF(stack[idx] < stack[idx+1])
		case token.OpLE:
			stack[idx] = boolF(stack[idx] <= stack[idx+1])
		case token.OpGT:
			stack[idx] = boolF(stack[idx] > stack[idx+1])
		case token.OpGE:
			stack[idx] = boolF(stack[idx] >= stack[idx+1])
		case token.OpEQ:
			stack[idx] = boolF(stack[idx] == stack[idx+1])
		case token.OpNE:
			stack[idx] = boolF(stack[idx] != stack[idx+1])

		case token.OpAdd:
			stack[idx] = stack[idx] + stack[idx+1]
		case token.OpSub:
			stack[idx] = stack[idx] - stack[idx+1]
		case token.OpMul:
			stack[idx] = stack[idx] * stack[idx+1]
		case token.OpDiv:
			stack[idx] = stack[idx] / stack[idx+1]
		case token.OpMin:
			stack[idx] = math.Min(stack[idx], stack[idx+1])
		case token.OpMax:
			stack[idx] = math.Max(stack[idx], stack[idx+1])

		case token.OpAnd:
			stack[idx] = boolF(stack[idx] != 0 && stack[idx+1] != 0)
		case token.OpOr:
			stack[idx] = boolF(stack[idx] != 0 || stack[idx+1] != 0)

		case token.OpSin:
			stack[idx] = math.Sin(stack[idx])
		case token.OpCos:
			stack[idx] = math.Cos(stack[idx])
		case token.OpTan:
			stack[idx] = math.Tan(stack[idx])
		case token.OpAbs:
			stack[idx] = math.Abs(stack[idx])
		case token.OpSqrt:
			stack[idx] = math.Sqrt(stack[idx])

		case token.OpFunc, token.OpUserBinary, token.OpUserUnary:
			fn := t.Func
			stack[idx] = fn.Call(stack[idx : idx+fn.Arity])

		case token.OpIf:
			if stack[idx] == 0 {
				ip += t.Offset
				continue
			}
		case token.OpElse:
			ip += t.Offset
			continue
		case token.OpEndIf:
			// no-op marker

		case token.OpEnd:
			return stack[1], nil

		default:
			return 0, perr.Internal("vm: unreachable opcode in finalized RPN")
		}
		ip++
	}
	return 0, perr.Internal("vm: RPN stream missing terminating END token")
}

func boolF(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
