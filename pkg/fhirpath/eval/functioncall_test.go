package eval

import (
	"testing"

	"github.com/gofhirpath/fhirpath/pkg/fhirpath/funcs"
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/parser"
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/types"
)

// evalExpr parses and evaluates source against json, failing the test on
// either a parse or an evaluation error.
func evalExpr(t *testing.T, json, source string) types.Collection {
	t.Helper()
	tree, err := parser.Parse(source)
	if err != nil {
		t.Fatalf("parse %q: %v", source, err)
	}
	ctx := NewContext([]byte(json))
	result, err := NewEvaluator(ctx, funcs.GetRegistry()).Evaluate(tree)
	if err != nil {
		t.Fatalf("eval %q: %v", source, err)
	}
	return result
}

func TestLambdaWhere(t *testing.T) {
	json := `{"item": [{"value": 1}, {"value": 2}, {"value": 3}]}`

	result := evalExpr(t, json, "item.where(value > 1).value")
	if result.Count() != 2 {
		t.Fatalf("expected 2 results, got %d", result.Count())
	}
	if result[0].(types.Integer).Value() != 2 || result[1].(types.Integer).Value() != 3 {
		t.Errorf("unexpected where() result: %v", result)
	}
}

func TestLambdaWhereEmptyCriteria(t *testing.T) {
	json := `{"item": [{"value": 1}, {"value": 2}]}`

	result := evalExpr(t, json, "item.where(value > 5).value")
	if !result.Empty() {
		t.Errorf("expected empty result, got %v", result)
	}
}

func TestLambdaSelect(t *testing.T) {
	json := `{"item": [{"value": 1}, {"value": 2}, {"value": 3}]}`

	result := evalExpr(t, json, "item.select(value * 2)")
	if result.Count() != 3 {
		t.Fatalf("expected 3 results, got %d", result.Count())
	}
	if result[0].(types.Integer).Value() != 2 || result[2].(types.Integer).Value() != 6 {
		t.Errorf("unexpected select() result: %v", result)
	}
}

func TestLambdaSelectFlattens(t *testing.T) {
	json := `{"item": [{"tag": [1, 2]}, {"tag": [3]}]}`

	result := evalExpr(t, json, "item.select(tag)")
	if result.Count() != 3 {
		t.Fatalf("expected select() to flatten into 3 elements, got %d", result.Count())
	}
}

func TestLambdaExistsWithCriteria(t *testing.T) {
	json := `{"item": [{"value": 1}, {"value": 2}]}`

	result := evalExpr(t, json, "item.exists(value = 2)")
	if result.Count() != 1 || !result[0].(types.Boolean).Bool() {
		t.Errorf("expected exists(value = 2) to be true, got %v", result)
	}

	result = evalExpr(t, json, "item.exists(value = 9)")
	if result.Count() != 1 || result[0].(types.Boolean).Bool() {
		t.Errorf("expected exists(value = 9) to be false, got %v", result)
	}
}

func TestLambdaExistsNoArgsIsStillReachable(t *testing.T) {
	json := `{"item": [{"value": 1}]}`

	result := evalExpr(t, json, "item.exists()")
	if result.Count() != 1 || !result[0].(types.Boolean).Bool() {
		t.Errorf("expected exists() with no args to be true for non-empty input, got %v", result)
	}

	result = evalExpr(t, `{}`, "missing.exists()")
	if result.Count() != 1 || result[0].(types.Boolean).Bool() {
		t.Errorf("expected exists() on empty input to be false, got %v", result)
	}
}

func TestLambdaAll(t *testing.T) {
	json := `{"item": [{"value": 2}, {"value": 4}]}`

	result := evalExpr(t, json, "item.all(value > 0)")
	if result.Count() != 1 || !result[0].(types.Boolean).Bool() {
		t.Errorf("expected all(value > 0) to be true, got %v", result)
	}

	result = evalExpr(t, json, "item.all(value > 2)")
	if result.Count() != 1 || result[0].(types.Boolean).Bool() {
		t.Errorf("expected all(value > 2) to be false, got %v", result)
	}
}

func TestLambdaAllVacuousOnEmpty(t *testing.T) {
	result := evalExpr(t, `{}`, "missing.all(value > 0)")
	if result.Count() != 1 || !result[0].(types.Boolean).Bool() {
		t.Errorf("expected all() over empty input to be vacuously true, got %v", result)
	}
}

func TestLambdaRepeat(t *testing.T) {
	json := `{"id": "a", "child": {"id": "b", "child": {"id": "c", "child": {"id": "d"}}}}`

	// child selects b, then repeat(child) walks b -> c -> d, not including
	// b itself (repeat's seed input is excluded from its result).
	result := evalExpr(t, json, "child.repeat(child)")
	if result.Count() != 2 {
		t.Fatalf("expected 2 generations (c and d), got %d: %v", result.Count(), result)
	}
}

func TestLambdaRepeatDedups(t *testing.T) {
	json := `{"a": {"next": {"id": 1}}, "b": {"next": {"id": 1}}}`

	result := evalExpr(t, json, "(a | b).repeat(next)")
	if result.Count() != 1 {
		t.Errorf("expected repeat() to dedup identical generations, got %d: %v", result.Count(), result)
	}
}

func TestLambdaAggregate(t *testing.T) {
	json := `{"item": [1, 2, 3, 4]}`

	result := evalExpr(t, json, "item.aggregate($this + $total, 0)")
	if result.Count() != 1 {
		t.Fatalf("expected single accumulated result, got %d", result.Count())
	}
	if result[0].(types.Integer).Value() != 10 {
		t.Errorf("expected aggregate sum 10, got %v", result[0])
	}
}

func TestLambdaAggregateNoInit(t *testing.T) {
	json := `{"item": [5]}`

	// With no init, $total starts empty, so on the first element the
	// aggregator expression $total evaluates to empty, and so does the result.
	result := evalExpr(t, json, "item.aggregate($total)")
	if !result.Empty() {
		t.Errorf("expected empty accumulator with no init, got %v", result)
	}
}

func TestLambdaIif(t *testing.T) {
	result := evalExpr(t, `{}`, "iif(true, 'yes', 'no')")
	if result.Count() != 1 || result[0].(types.String).Value() != "yes" {
		t.Errorf("expected 'yes', got %v", result)
	}

	result = evalExpr(t, `{}`, "iif(false, 'yes', 'no')")
	if result.Count() != 1 || result[0].(types.String).Value() != "no" {
		t.Errorf("expected 'no', got %v", result)
	}
}

func TestLambdaIifNoElse(t *testing.T) {
	result := evalExpr(t, `{}`, "iif(false, 'yes')")
	if !result.Empty() {
		t.Errorf("expected empty when criterion false and no else branch, got %v", result)
	}
}

func TestLambdaIifDoesNotEvaluateUntakenBranch(t *testing.T) {
	// The untaken branch references a path that would error if singleton-
	// checked; iif must not evaluate it.
	result := evalExpr(t, `{"item": [1, 2]}`, "iif(true, 'ok', item)")
	if result.Count() != 1 || result[0].(types.String).Value() != "ok" {
		t.Errorf("expected 'ok', got %v", result)
	}
}

func TestLambdaIs(t *testing.T) {
	result := evalExpr(t, `{"value": 5}`, "value.is(Integer)")
	if result.Count() != 1 || !result[0].(types.Boolean).Bool() {
		t.Errorf("expected value.is(Integer) to be true, got %v", result)
	}

	result = evalExpr(t, `{"value": 5}`, "value.is(String)")
	if result.Count() != 1 || result[0].(types.Boolean).Bool() {
		t.Errorf("expected value.is(String) to be false, got %v", result)
	}
}

func TestLambdaIsEmptyInput(t *testing.T) {
	result := evalExpr(t, `{}`, "missing.is(String)")
	if !result.Empty() {
		t.Errorf("expected empty for is() over empty input, got %v", result)
	}
}

func TestLambdaAs(t *testing.T) {
	result := evalExpr(t, `{"value": "hello"}`, "value.as(String)")
	if result.Count() != 1 || result[0].(types.String).Value() != "hello" {
		t.Errorf("expected value.as(String) to pass through, got %v", result)
	}

	result = evalExpr(t, `{"value": "hello"}`, "value.as(Integer)")
	if !result.Empty() {
		t.Errorf("expected value.as(Integer) to be empty, got %v", result)
	}
}

func TestLambdaOfType(t *testing.T) {
	json := `{"item": [1, "a", 2, "b"]}`

	result := evalExpr(t, json, "item.ofType(Integer)")
	if result.Count() != 2 {
		t.Fatalf("expected 2 integers, got %d: %v", result.Count(), result)
	}
	for _, v := range result {
		if _, ok := v.(types.Integer); !ok {
			t.Errorf("expected only Integer values, got %T", v)
		}
	}
}

func TestLambdaOfTypeEmptyInput(t *testing.T) {
	result := evalExpr(t, `{}`, "missing.ofType(Integer)")
	if !result.Empty() {
		t.Errorf("expected empty for ofType() over empty input, got %v", result)
	}
}
