package symtab

import (
	"math"

	"github.com/exprjit/exprjit/token"
)

// built-in constants pre-populated into a fresh Table by exprjit.New —
// the lexer still reaches them through the same Consts map and LookupConst
// path a user's define_const call would use, so there is no separate "builtin constant"
// code path to keep in sync.
var builtinConsts = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

// InstallBuiltinConsts populates t's constant table with the standard
// pi/e constants. Called once by exprjit.New; harmless to call again
// since it only ever overwrites with the same values.
func (t *Table) InstallBuiltinConsts() {
	for name, v := range builtinConsts {
		t.Consts[name] = v
	}
}

// IntrinsicNames is the fixed set of function-call-syntax names spec.md §3
// assigns their own opcode variant rather than the generic n-ary OpFunc
// (the five unary math intrinsics, plus min/max which spec.md's VM opcode
// table lists alongside +/-/*// as binary arithmetic even though they are
// spelled as two-argument function calls). package parser checks a
// resolved call's Func.Name against this set when deciding whether to emit
// a dedicated opcode instead of OpFunc.
var IntrinsicNames = map[string]bool{
	"sin": true, "cos": true, "tan": true, "abs": true, "sqrt": true,
	"min": true, "max": true,
}

// builtinFuncs are installed into a fresh Table's Funcs map so the lexer's
// ordinary LookupFunc path recognizes "sin(", "min(", etc. as KindFunc
// tokens with the right arity, exactly like a user-registered function;
// parser.emitCall later special-cases these by name to produce the
// intrinsic/arithmetic opcode instead of a generic callback dispatch.
var builtinFuncs = map[string]*token.Func{
	"sin":  {Name: "sin", Arity: 1, Call: unary(math.Sin), Optimizable: true},
	"cos":  {Name: "cos", Arity: 1, Call: unary(math.Cos), Optimizable: true},
	"tan":  {Name: "tan", Arity: 1, Call: unary(math.Tan), Optimizable: true},
	"abs":  {Name: "abs", Arity: 1, Call: unary(math.Abs), Optimizable: true},
	"sqrt": {Name: "sqrt", Arity: 1, Call: unary(math.Sqrt), Optimizable: true},
	"min":  {Name: "min", Arity: 2, Call: binary(math.Min), Optimizable: true},
	"max":  {Name: "max", Arity: 2, Call: binary(math.Max), Optimizable: true},
}

func unary(f func(float64) float64) func([]float64) float64 {
	return func(args []float64) float64 { return f(args[0]) }
}

func binary(f func(float64, float64) float64) func([]float64) float64 {
	return func(args []float64) float64 { return f(args[0], args[1]) }
}

// InstallBuiltinFuncs populates t's function table with the intrinsic
// unary math functions and min/max. Called once by exprjit.New.
func (t *Table) InstallBuiltinFuncs() {
	for name, fn := range builtinFuncs {
		t.Funcs[name] = fn
	}
}
