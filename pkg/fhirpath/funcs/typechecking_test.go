package funcs

import "testing"

func TestIsFunctionRegistered(t *testing.T) {
	fn, ok := Get("is")
	if !ok {
		t.Fatal("is function not registered")
	}
	if fn.MinArgs != 1 || fn.MaxArgs != 1 {
		t.Errorf("expected is() to take exactly 1 argument, got min=%d max=%d", fn.MinArgs, fn.MaxArgs)
	}
	// is()'s actual semantics run through the evaluator's lambda
	// dispatch (see eval/functioncall_test.go), since its argument is a
	// type specifier rather than an evaluated expression.
}
