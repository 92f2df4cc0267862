package diag

import (
	"errors"
	"testing"
)

func TestReportSurvivesErrorsAs(t *testing.T) {
	r := New(SpecializationFailure, "specialize", "no form matched").WithData("form", 2)
	err := Wrap(r)

	var wrapped error = err
	got, ok := AsReport(wrapped)
	if !ok {
		t.Fatal("expected AsReport to find the wrapped report")
	}
	if got.Kind != SpecializationFailure {
		t.Fatalf("expected SpecializationFailure, got %v", got.Kind)
	}
	if got.Data["form"] != 2 {
		t.Fatalf("expected form data to survive, got %v", got.Data["form"])
	}
}

func TestAsReportFalseForPlainError(t *testing.T) {
	_, ok := AsReport(errors.New("plain"))
	if ok {
		t.Fatal("expected AsReport to fail on a plain error")
	}
}

func TestEvaluateSwallowsOnlySpecializationFailure(t *testing.T) {
	if !SpecializationFailure.IsSwallowedByEvaluate() {
		t.Fatal("SpecializationFailure must be swallowed to try the next form")
	}
	for _, k := range []Kind{PropagateFailure, FatalFailure, UserException, MonitoredError} {
		if k.IsSwallowedByEvaluate() {
			t.Fatalf("%v must not be swallowed", k)
		}
	}
}

func TestNilSinkIsZeroCost(t *testing.T) {
	// Emit with a nil sink must not panic and must not touch r.
	Emit(nil, New(FatalFailure, "lower", "unreachable"))
}
