package lexer

import (
	"testing"

	"github.com/exprjit/exprjit/symtab"
	"github.com/exprjit/exprjit/token"
)

func newTestLexer(t *testing.T, src string) (*Lexer, *symtab.Table) {
	t.Helper()
	tbl := symtab.New()
	tbl.InstallBuiltinConsts()
	return New(src, DefaultCharClasses(), tbl), tbl
}

func collectKinds(t *testing.T, l *Lexer) []Kind {
	t.Helper()
	var kinds []Kind
	for {
		tok, err := l.NextToken()
		if err != nil {
			t.Fatalf("NextToken() error: %v", err)
		}
		kinds = append(kinds, tok.Kind)
		if tok.Kind == KindEOF {
			return kinds
		}
	}
}

func TestSimpleArithmeticSequence(t *testing.T) {
	l, _ := newTestLexer(t, "1+2*3")
	kinds := collectKinds(t, l)
	want := []Kind{KindVal, KindBinaryOp, KindVal, KindBinaryOp, KindVal, KindEOF}
	if len(kinds) != len(want) {
		t.Fatalf("got %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("token %d: got %v, want %v (full: %v)", i, kinds[i], want[i], kinds)
		}
	}
}

func TestParenAndArgSep(t *testing.T) {
	tbl := symtab.New()
	tbl.Funcs["max"] = &token.Func{Name: "max", Arity: 2, Call: func(args []float64) float64 {
		if args[0] > args[1] {
			return args[0]
		}
		return args[1]
	}}
	l := New("max(1,2)", DefaultCharClasses(), tbl)
	kinds := collectKinds(t, l)
	want := []Kind{KindFunc, KindLParen, KindVal, KindArgSep, KindVal, KindRParen, KindEOF}
	if len(kinds) != len(want) {
		t.Fatalf("got %v, want %v", kinds, want)
	}
}

func TestMissingParenAtEOF(t *testing.T) {
	l, _ := newTestLexer(t, "(1+2")
	var lastErr error
	for {
		_, err := l.NextToken()
		if err != nil {
			lastErr = err
			break
		}
	}
	if lastErr == nil {
		t.Fatalf("expected missing-paren error, got none")
	}
}

func TestUnexpectedValAfterValue(t *testing.T) {
	l, _ := newTestLexer(t, "1 2")
	if _, err := l.NextToken(); err != nil {
		t.Fatalf("first token errored: %v", err)
	}
	if _, err := l.NextToken(); err == nil {
		t.Fatalf("expected an error for two adjacent values, got none")
	}
}

func TestVariableLookup(t *testing.T) {
	tbl := symtab.New()
	cell := 5.0
	tbl.Vars["a"] = &cell
	l := New("a+1", DefaultCharClasses(), tbl)
	tok, err := l.NextToken()
	if err != nil {
		t.Fatalf("NextToken() error: %v", err)
	}
	if tok.Kind != KindVar || tok.VarCell != &cell {
		t.Fatalf("got %+v, want a KindVar bound to &cell", tok)
	}
}

func TestUndefinedIdentifierIsInvalidName(t *testing.T) {
	l, _ := newTestLexer(t, "bogus")
	if _, err := l.NextToken(); err == nil {
		t.Fatalf("expected invalid-name error for undefined identifier")
	}
}

func TestVarFactoryBindsOnDemand(t *testing.T) {
	tbl := symtab.New()
	l := New("q", DefaultCharClasses(), tbl)
	cell := 0.0
	l.VarFactory = func(name string) (*float64, bool) {
		if name == "q" {
			return &cell, true
		}
		return nil, false
	}
	tok, err := l.NextToken()
	if err != nil {
		t.Fatalf("NextToken() error: %v", err)
	}
	if tok.Kind != KindVar || tok.VarCell != &cell {
		t.Fatalf("got %+v, want a KindVar bound via VarFactory", tok)
	}
}

func TestHexAndDecimalLiterals(t *testing.T) {
	l, _ := newTestLexer(t, "0x10+2.5")
	tok1, err := l.NextToken()
	if err != nil || tok1.Value != 16 {
		t.Fatalf("hex literal: got %+v, err %v", tok1, err)
	}
	l.NextToken() // '+'
	tok2, err := l.NextToken()
	if err != nil || tok2.Value != 2.5 {
		t.Fatalf("decimal literal: got %+v, err %v", tok2, err)
	}
}
