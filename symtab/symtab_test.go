package symtab

import "testing"

func TestBuiltinPrecedenceTable(t *testing.T) {
	cases := []struct {
		sym  string
		prec int
	}{
		{"||", PrecOr},
		{"&&", PrecAnd},
		{"<=", PrecCompare}, {">=", PrecCompare}, {"!=", PrecCompare},
		{"==", PrecCompare}, {"<", PrecCompare}, {">", PrecCompare},
		{"+", PrecAddSub}, {"-", PrecAddSub},
		{"*", PrecMulDiv}, {"/", PrecMulDiv},
		{"^", PrecPow},
	}
	for _, c := range cases {
		got, ok := BuiltinPrecedence(c.sym)
		if !ok {
			t.Fatalf("BuiltinPrecedence(%q) not found", c.sym)
		}
		if got != c.prec {
			t.Fatalf("BuiltinPrecedence(%q) = %d, want %d", c.sym, got, c.prec)
		}
	}
}

func TestPowIsRightAssociativeOnly(t *testing.T) {
	if BuiltinAssoc("^") != Right {
		t.Fatalf("^ should be right-associative")
	}
	if BuiltinAssoc("+") != Left {
		t.Fatalf("+ should be left-associative")
	}
	if BuiltinAssoc("*") != Left {
		t.Fatalf("* should be left-associative")
	}
}

func TestIsBuiltinSymbol(t *testing.T) {
	for _, sym := range []string{"+", "-", "*", "/", "^", "&&", "||", "<", ">", "<=", ">=", "==", "!=", "(", ")", "?", ":", ","} {
		if !IsBuiltinSymbol(sym) {
			t.Fatalf("IsBuiltinSymbol(%q) = false, want true", sym)
		}
	}
	if IsBuiltinSymbol("myfun") {
		t.Fatalf("IsBuiltinSymbol(\"myfun\") = true, want false")
	}
}

func TestNewTableDefaults(t *testing.T) {
	tbl := New()
	sep, dec, thou := tbl.Separators()
	if sep != ',' || dec != '.' || thou != 0 {
		t.Fatalf("default separators = (%q, %q, %q), want (',', '.', 0)", sep, dec, thou)
	}
	if len(tbl.ValueRecognizers()) != 2 {
		t.Fatalf("expected 2 default value recognizers, got %d", len(tbl.ValueRecognizers()))
	}
}

func TestResetLocaleRestoresDefaults(t *testing.T) {
	tbl := New()
	tbl.ArgSep = ';'
	tbl.DecSep = ','
	tbl.ThousandsSep = '.'
	tbl.ResetLocale()
	sep, dec, thou := tbl.Separators()
	if sep != ',' || dec != '.' || thou != 0 {
		t.Fatalf("ResetLocale did not restore defaults: got (%q, %q, %q)", sep, dec, thou)
	}
}

func TestDefineVarLookup(t *testing.T) {
	tbl := New()
	cell := 3.5
	tbl.Vars["x"] = &cell
	got, ok := tbl.LookupVar("x")
	if !ok || got != &cell {
		t.Fatalf("LookupVar(\"x\") = (%v, %v), want (&cell, true)", got, ok)
	}
	if _, ok := tbl.LookupVar("y"); ok {
		t.Fatalf("LookupVar(\"y\") found an undefined variable")
	}
}

func TestInstallBuiltinConsts(t *testing.T) {
	tbl := New()
	tbl.InstallBuiltinConsts()
	if v, ok := tbl.LookupConst("pi"); !ok || v < 3.14 || v > 3.15 {
		t.Fatalf("LookupConst(\"pi\") = (%v, %v)", v, ok)
	}
}
