package funcs

import (
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/eval"
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/types"
)

func init() {
	// Register filtering functions. Their Fn bodies are never called:
	// eval/functioncall.go intercepts these names by arity before
	// dispatching through the registry, since their argument expression
	// must be re-evaluated per input element with $this/$index rebound.
	// The registrations exist so Has()/MinArgs/MaxArgs still describe
	// these functions to the arity check and the static analyzer.
	Register(FuncDef{
		Name:    "where",
		MinArgs: 1,
		MaxArgs: 1,
		Fn:      fnLambdaOnly("where"),
	})

	Register(FuncDef{
		Name:    "select",
		MinArgs: 1,
		MaxArgs: 1,
		Fn:      fnLambdaOnly("select"),
	})

	Register(FuncDef{
		Name:    "repeat",
		MinArgs: 1,
		MaxArgs: 1,
		Fn:      fnLambdaOnly("repeat"),
	})

	Register(FuncDef{
		Name:    "ofType",
		MinArgs: 1,
		MaxArgs: 1,
		Fn:      fnLambdaOnly("ofType"),
	})
}

// fnLambdaOnly builds a FuncImpl that errors if it is ever actually
// invoked, for functions the evaluator always intercepts before
// reaching the registry.
func fnLambdaOnly(name string) eval.FuncImpl {
	return func(_ *eval.Context, _ types.Collection, _ []interface{}) (types.Collection, error) {
		return nil, eval.NewEvalError(eval.ErrInvalidOperation, "%s() must be evaluated via its lambda form", name)
	}
}
