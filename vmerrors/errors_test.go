package vmerrors

import (
	"strings"
	"testing"
)

func TestErrorMessageIncludesKindAndLocation(t *testing.T) {
	e := Name("mod.un", 12, "foo")
	msg := e.Error()
	if !strings.Contains(msg, "NameError") {
		t.Errorf("Error() = %q, missing Kind", msg)
	}
	if !strings.Contains(msg, `"foo"`) {
		t.Errorf("Error() = %q, missing offending name", msg)
	}
	if !strings.Contains(msg, "mod.un") || !strings.Contains(msg, "12") {
		t.Errorf("Error() = %q, missing module path/line", msg)
	}
}

func TestTypeErrorCarriesOffendingValue(t *testing.T) {
	e := Type("m", 1, "nil", "cannot negate %s", "nil")
	if e.Offending != "nil" {
		t.Errorf("Offending = %q, want \"nil\"", e.Offending)
	}
	if !strings.Contains(e.Error(), "value: nil") {
		t.Errorf("Error() = %q, should render the offending value", e.Error())
	}
}

func TestArityErrorMessage(t *testing.T) {
	e := Arity("m", 1, "fib", 1, 2)
	if !strings.Contains(e.Message, "expects 1 argument") || !strings.Contains(e.Message, "got 2") {
		t.Errorf("Message = %q, want an arity mismatch description", e.Message)
	}
}

func TestWithFrameAccumulatesTrace(t *testing.T) {
	e := Name("m", 1, "x")
	e.WithFrame(Frame{Function: "inner", ModulePath: "m", Line: 1}).
		WithFrame(Frame{Function: "outer", ModulePath: "m", Line: 2})

	if len(e.Trace) != 2 {
		t.Fatalf("Trace has %d frames, want 2", len(e.Trace))
	}
	detailed := e.Detailed()
	if !strings.Contains(detailed, "inner") || !strings.Contains(detailed, "outer") {
		t.Errorf("Detailed() = %q, missing frame names", detailed)
	}
}

func TestEachConstructorSetsItsKind(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		want Kind
	}{
		{"Resolve", Resolve(1, "x"), KindResolve},
		{"Type", Type("m", 1, "", "x"), KindType},
		{"Arity", Arity("m", 1, "f", 1, 2), KindArity},
		{"Name", Name("m", 1, "x"), KindName},
		{"Range", Range("m", 1, "x"), KindRange},
		{"Import", Import("m", 1, "p", Resolve(1, "cause")), KindImport},
		{"OOM", OOM("m", 1), KindOOM},
		{"StackOverflow", StackOverflow("m", 1), KindStackOverflow},
	}
	for _, c := range cases {
		if c.err.Kind != c.want {
			t.Errorf("%s Kind = %v, want %v", c.name, c.err.Kind, c.want)
		}
	}
}
