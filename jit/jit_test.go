package jit

import (
	"testing"

	"github.com/exprjit/exprjit/lexer"
	"github.com/exprjit/exprjit/memexec"
	"github.com/exprjit/exprjit/parser"
	"github.com/exprjit/exprjit/regstack"
	"github.com/exprjit/exprjit/symtab"
	"github.com/exprjit/exprjit/vm"
)

// evalBoth parses src against a fresh table (vars bound as given, built-in
// consts/intrinsics installed the same way exprjit.New does), then runs the
// resulting RPN through both back ends and returns both results, so callers
// can assert spec.md §8's "vm_eval(expr, env) == jit_compile(expr)(env)"
// invariant directly instead of exercising only one side of it. regCount is
// passed straight through to Compile as the reg_count_hint, letting callers
// probe the "for all register-count hints R ∈ 0..=5" form of the invariant.
func evalBoth(t *testing.T, src string, vars map[string]*float64, regCount int) (vmGot, jitGot float64) {
	t.Helper()
	tbl := symtab.New()
	tbl.InstallBuiltinConsts()
	tbl.InstallBuiltinFuncs()
	for name, cell := range vars {
		tbl.Vars[name] = cell
	}

	buf, err := parser.Parse(src, lexer.DefaultCharClasses(), tbl)
	if err != nil {
		t.Fatalf("parser.Parse(%q): %v", src, err)
	}

	vmGot, err = vm.Eval(buf)
	if err != nil {
		t.Fatalf("vm.Eval(%q): %v", src, err)
	}

	broker := memexec.New()
	cf, err := Compile(buf, broker, regCount)
	if err != nil {
		t.Fatalf("Compile(%q, regCount=%d): %v", src, regCount, err)
	}
	defer cf.Release()
	jitGot = cf.Call()
	return vmGot, jitGot
}

// TestCompileMatchesVMScenarios runs every spec.md §8 concrete end-to-end
// scenario through both back ends and checks they agree, closing the gap
// the review found: previously nothing in the tree ever called jit.Compile,
// so the register-stack spill bug in regstack.spillMem went undetected by
// the one test ("register spill depth") whose name implied it covered this
// exact path but only ever called Eval (the VM).
func TestCompileMatchesVMScenarios(t *testing.T) {
	a, b := 1.0, 2.0

	cases := []struct {
		name string
		expr string
		vars map[string]*float64
		want float64
	}{
		{"simple arithmetic", "(1+ 2*a)", map[string]*float64{"a": &a}, 3},
		{"nested ternary", "1 ? 0 ? 128 : 255 : 1 ? 32 : 64", nil, 255},
		{"right associative power", "2^2^3", nil, 256},
		{"logical and comparison", "(a<b) && (b<a)", map[string]*float64{"a": &a, "b": &b}, 0},
		{"max function call", "max(3*a+1, 1)*2", map[string]*float64{"a": &a}, 8},
		// Register-stack spill path (spec.md §8): pushes 9 values (the
		// constants 1..7 plus a and b) before any of them is consumed,
		// forcing depths beyond regstack.R (5) onto the CPU-stack spill
		// region.
		{"register spill depth", "(1*(2*(3*(4*(5*(6*(7*(a+b))))))))", map[string]*float64{"a": &a, "b": &b}, 15120},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			vmGot, jitGot := evalBoth(t, tc.expr, tc.vars, regstack.R)
			if vmGot != tc.want {
				t.Fatalf("vm.Eval(%q) = %v, want %v", tc.expr, vmGot, tc.want)
			}
			if jitGot != tc.want {
				t.Fatalf("Compile(%q).Call() = %v, want %v", tc.expr, jitGot, tc.want)
			}
		})
	}
}

// TestCompileMatchesVMAcrossRegCountHints drives spec.md §8's invariant in
// its full "for all register-count hints R ∈ 0..=5" form: the register
// spill scenario is compiled once per hint, forcing the spill path at a
// different logical depth each time, and must still agree with the VM
// every time. This is also the most direct regression test for a broken
// spill-slot address formula, since low hints spill almost every push.
func TestCompileMatchesVMAcrossRegCountHints(t *testing.T) {
	a, b := 1.0, 2.0
	const expr = "(1*(2*(3*(4*(5*(6*(7*(a+b))))))))"
	const want = 15120.0

	for regCount := 0; regCount <= regstack.R; regCount++ {
		t.Run("", func(t *testing.T) {
			vmGot, jitGot := evalBoth(t, expr, map[string]*float64{"a": &a, "b": &b}, regCount)
			if vmGot != want {
				t.Fatalf("vm.Eval(%q) = %v, want %v", expr, vmGot, want)
			}
			if jitGot != want {
				t.Fatalf("Compile(%q, regCount=%d).Call() = %v, want %v", expr, regCount, jitGot, want)
			}
		})
	}
}

// TestCompileErrorScenarios covers the two error-producing §8 scenarios: the
// parser must reject both before either back end ever runs.
func TestCompileErrorScenarios(t *testing.T) {
	exprs := []string{
		"1 + 2 * 3 + ",
		"sin(3,4)",
	}
	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			tbl := symtab.New()
			tbl.InstallBuiltinConsts()
			tbl.InstallBuiltinFuncs()
			if _, err := parser.Parse(expr, lexer.DefaultCharClasses(), tbl); err == nil {
				t.Fatalf("parser.Parse(%q): expected an error", expr)
			}
		})
	}
}
