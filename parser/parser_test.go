package parser

import (
	"testing"

	"github.com/exprjit/exprjit/lexer"
	"github.com/exprjit/exprjit/symtab"
	"github.com/exprjit/exprjit/token"
	"github.com/exprjit/exprjit/vm"
)

func newTestTable(t *testing.T) *symtab.Table {
	t.Helper()
	tbl := symtab.New()
	tbl.InstallBuiltinConsts()
	tbl.InstallBuiltinFuncs()
	return tbl
}

func mustParse(t *testing.T, src string, tbl *symtab.Table) *token.Buffer {
	t.Helper()
	buf, err := Parse(src, lexer.DefaultCharClasses(), tbl)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", src, err)
	}
	return buf
}

func evalBuf(t *testing.T, buf *token.Buffer) float64 {
	t.Helper()
	v, err := vm.Eval(buf)
	if err != nil {
		t.Fatalf("vm.Eval error: %v", err)
	}
	return v
}

func TestPrecedenceAndAssociativity(t *testing.T) {
	cases := []struct {
		src  string
		want float64
	}{
		{"1+2*3", 7},
		{"(1+2)*3", 9},
		{"2^2^3", 256},
		{"2-3-1", -2},
	}
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			tbl := newTestTable(t)
			buf := mustParse(t, c.src, tbl)
			if got := evalBuf(t, buf); got != c.want {
				t.Fatalf("eval(%q) = %v, want %v", c.src, got, c.want)
			}
		})
	}
}

func TestConstantFoldingProducesSingleVal(t *testing.T) {
	tbl := newTestTable(t)
	buf := mustParse(t, "1+2*3-4/2", tbl)
	// one VAL token for the folded constant plus the terminating END.
	if buf.Len() != 2 {
		t.Fatalf("got %d tokens, want 2 (VAL, END); tokens: %+v", buf.Len(), buf.Tokens)
	}
	if buf.Tokens[0].Op != token.OpVal {
		t.Fatalf("first token = %v, want OpVal", buf.Tokens[0].Op)
	}
}

func TestVariablePreventsFolding(t *testing.T) {
	tbl := newTestTable(t)
	a := 1.0
	tbl.Vars["a"] = &a
	buf := mustParse(t, "1+2*a", tbl)
	if got := evalBuf(t, buf); got != 3 {
		t.Fatalf("eval = %v, want 3", got)
	}
	a = 5
	if got := evalBuf(t, buf); got != 11 {
		t.Fatalf("eval after mutation = %v, want 11", got)
	}
}

func TestTernaryNesting(t *testing.T) {
	tbl := newTestTable(t)
	buf := mustParse(t, "1 ? 0 ? 128 : 255 : 1 ? 32 : 64", tbl)
	if got := evalBuf(t, buf); got != 255 {
		t.Fatalf("eval = %v, want 255", got)
	}
}

func TestTernaryFoldsWhenFullyConstant(t *testing.T) {
	tbl := newTestTable(t)
	buf := mustParse(t, "1 ? 2 : 3", tbl)
	if buf.Len() != 2 || buf.Tokens[0].Op != token.OpVal || buf.Tokens[0].Value != 2 {
		t.Fatalf("expected fully-folded VAL(2), got %+v", buf.Tokens)
	}
}

func TestLogicalAndComparison(t *testing.T) {
	tbl := newTestTable(t)
	a, b := 1.0, 2.0
	tbl.Vars["a"] = &a
	tbl.Vars["b"] = &b
	buf := mustParse(t, "(a<b) && (b<a)", tbl)
	if got := evalBuf(t, buf); got != 0 {
		t.Fatalf("eval = %v, want 0", got)
	}
}

func TestMinMaxFunctionCall(t *testing.T) {
	tbl := newTestTable(t)
	a := 1.0
	tbl.Vars["a"] = &a
	buf := mustParse(t, "max(3*a+1, 1)*2", tbl)
	if got := evalBuf(t, buf); got != 8 {
		t.Fatalf("eval = %v, want 8", got)
	}
}

func TestZeroArgFunctionCall(t *testing.T) {
	tbl := newTestTable(t)
	tbl.Funcs["seven"] = &token.Func{Name: "seven", Arity: 0, Call: func(args []float64) float64 {
		return 7
	}}
	buf := mustParse(t, "seven()+1", tbl)
	if got := evalBuf(t, buf); got != 8 {
		t.Fatalf("eval = %v, want 8", got)
	}
}

func TestUnaryMinus(t *testing.T) {
	cases := []struct {
		src  string
		want float64
	}{
		{"-1+2", 1},
		{"-(1+2)", -3},
	}
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			tbl := newTestTable(t)
			buf := mustParse(t, c.src, tbl)
			if got := evalBuf(t, buf); got != c.want {
				t.Fatalf("eval(%q) = %v, want %v", c.src, got, c.want)
			}
		})
	}
}

func TestUnaryMinusThenBinary(t *testing.T) {
	tbl := newTestTable(t)
	a := 3.0
	tbl.Vars["a"] = &a
	buf := mustParse(t, "-a + 1", tbl)
	if got := evalBuf(t, buf); got != -2 {
		t.Fatalf("eval = %v, want -2", got)
	}
}

func TestDivByConstantZeroErrors(t *testing.T) {
	tbl := newTestTable(t)
	if _, err := Parse("1/0", lexer.DefaultCharClasses(), tbl); err == nil {
		t.Fatalf("expected div-by-zero error")
	}
}

func TestTrailingOperatorIsUnexpectedEOF(t *testing.T) {
	tbl := newTestTable(t)
	if _, err := Parse("1 + 2 * 3 + ", lexer.DefaultCharClasses(), tbl); err == nil {
		t.Fatalf("expected unexpected-eof error")
	}
}

func TestTooManyParams(t *testing.T) {
	tbl := newTestTable(t)
	if _, err := Parse("sin(3,4)", lexer.DefaultCharClasses(), tbl); err == nil {
		t.Fatalf("expected too-many-params error")
	}
}

func TestFunctionNameWithoutParenIsError(t *testing.T) {
	tbl := newTestTable(t)
	if _, err := Parse("sin + 1", lexer.DefaultCharClasses(), tbl); err == nil {
		t.Fatalf("expected unexpected-fun error for a function name not followed by '('")
	}
}

func TestRegisterSpillDepthExpression(t *testing.T) {
	tbl := newTestTable(t)
	a, b := 1.0, 2.0
	tbl.Vars["a"] = &a
	tbl.Vars["b"] = &b
	buf := mustParse(t, "(1*(2*(3*(4*(5*(6*(7*(a+b))))))))", tbl)
	if got := evalBuf(t, buf); got != 15120 {
		t.Fatalf("eval = %v, want 15120", got)
	}
}

func TestPowRoutedThroughCallback(t *testing.T) {
	tbl := newTestTable(t)
	buf := mustParse(t, "2^3", tbl)
	if buf.Len() != 2 || buf.Tokens[0].Op != token.OpVal || buf.Tokens[0].Value != 8 {
		t.Fatalf("expected folded VAL(8), got %+v", buf.Tokens)
	}
}

func TestTopLevelCommaKeepsLastValue(t *testing.T) {
	tbl := newTestTable(t)
	buf := mustParse(t, "1+1, 2+2", tbl)
	if got := evalBuf(t, buf); got != 4 {
		t.Fatalf("eval = %v, want 4", got)
	}
}
