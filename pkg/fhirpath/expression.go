package fhirpath

import (
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/ast"
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/diag"
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/eval"
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/funcs"
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/model"
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/types"
)

// Expression represents a compiled FHIRPath expression.
type Expression struct {
	source string
	tree   ast.Expr
}

// Evaluate executes the expression against a JSON resource.
func (e *Expression) Evaluate(resource []byte) (types.Collection, error) {
	ctx := eval.NewContext(resource)
	return e.EvaluateWithContext(ctx)
}

// EvaluateWithContext executes the expression with a custom context.
func (e *Expression) EvaluateWithContext(ctx *eval.Context) (types.Collection, error) {
	evaluator := eval.NewEvaluator(ctx, funcs.GetRegistry())
	return evaluator.Evaluate(e.tree)
}

// evaluateWithContextAndProvider is like EvaluateWithContext but swaps in a
// non-default model.ModelProvider for polymorphic path resolution and
// is()/as()/ofType() checks.
func (e *Expression) evaluateWithContextAndProvider(ctx *eval.Context, provider model.ModelProvider) (types.Collection, error) {
	evaluator := eval.NewEvaluator(ctx, funcs.GetRegistry())
	if provider != nil {
		evaluator = evaluator.WithModelProvider(provider)
	}
	return evaluator.Evaluate(e.tree)
}

// Tree returns the expression's parsed AST, for callers that want to run
// their own static analysis or tooling over it.
func (e *Expression) Tree() ast.Expr {
	return e.tree
}

// Analyze runs static analysis over the expression against rootType
// (the FHIR resource type $this starts bound to) and returns any
// diagnostics found. Pass a nil provider to use model.NewStaticProvider.
func (e *Expression) Analyze(provider model.ModelProvider, rootType string) []diag.Diagnostic {
	return analyzeExpr(provider, e.source, e.tree, rootType)
}

// String returns the original expression string.
func (e *Expression) String() string {
	return e.source
}
