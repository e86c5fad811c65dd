package diag

import "testing"

func TestDiagnosticError(t *testing.T) {
	d := Diagnostic{Code: CodeTypeError, Message: "cannot add String and Integer"}
	want := "FP0055: cannot add String and Integer"
	if d.Error() != want {
		t.Errorf("got %q, want %q", d.Error(), want)
	}
}

func TestSeverityValues(t *testing.T) {
	if SeverityError == SeverityWarning {
		t.Error("expected SeverityError and SeverityWarning to be distinct")
	}
}

func TestSpanHalfOpen(t *testing.T) {
	s := Span{Start: 2, End: 5}
	if s.End-s.Start != 3 {
		t.Errorf("expected span length 3, got %d", s.End-s.Start)
	}
}

func TestCodesAreUnique(t *testing.T) {
	codes := []string{
		CodeUnexpectedChar, CodeUnterminatedString, CodeUnterminatedLiteral,
		CodeInvalidNumber, CodeUnexpectedToken, CodeExpectedToken,
		CodeExpectedExpression, CodeInvalidTypeSpecifier, CodeSingletonExpected,
		CodeFunctionNotFound, CodeInvalidOperation, CodeMathError,
		CodeDivisionByZero, CodeTypeError, CodeArityMismatch, CodeInvalidPath,
		CodeUndefinedVariable, CodeTimeout, CodeCollectionTooLarge,
		CodeAmbiguousCompare, CodeInvalidExpression, CodeUnresolvedMember,
		CodeUnresolvedFunction, CodeStaticTypeMismatch,
	}
	seen := map[string]bool{}
	for _, c := range codes {
		if seen[c] {
			t.Errorf("duplicate diagnostic code %s", c)
		}
		seen[c] = true
	}
}
