package perr

import (
	"strings"
	"testing"

	stderrors "errors"
)

func TestErrorFormatWithoutToken(t *testing.T) {
	e := New(UnexpectedEOF, 12, "", "expression ended unexpectedly")
	got := e.Error()
	if !strings.HasPrefix(got, "unexpected-eof:") {
		t.Fatalf("Error() = %q, want prefix %q", got, "unexpected-eof:")
	}
	if !strings.Contains(got, "position 12") {
		t.Fatalf("Error() = %q, want it to mention position 12", got)
	}
}

func TestErrorFormatWithOffendingToken(t *testing.T) {
	e := New(TooManyParams, 7, "sin", "function takes 1 argument")
	got := e.Error()
	if !strings.Contains(got, `near "sin"`) {
		t.Fatalf("Error() = %q, want it to quote the offending token", got)
	}
}

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	e := Wrap(cause, InternalError, -1, "", "unreachable")
	if stderrors.Unwrap(e) == nil {
		stderrorsUnwrap := e.Unwrap()
		if stderrorsUnwrap == nil {
			t.Fatalf("Unwrap() = nil, want non-nil cause chain")
		}
	}
}

func TestCodeStringKnownAndUnknown(t *testing.T) {
	if DivByZero.String() != "div-by-zero" {
		t.Fatalf("DivByZero.String() = %q", DivByZero.String())
	}
	var bogus Code = 999
	if bogus.String() != "unknown-error" {
		t.Fatalf("unknown Code.String() = %q", bogus.String())
	}
}

func TestInternalBuildsInternalErrorCode(t *testing.T) {
	e := Internal("should never happen")
	if e.Code != InternalError {
		t.Fatalf("Internal().Code = %v, want InternalError", e.Code)
	}
}
