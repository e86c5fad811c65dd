package fhirpath

import (
	"context"

	"github.com/gofhirpath/fhirpath/pkg/fhirpath/analyzer"
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/ast"
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/diag"
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/funcs"
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/model"
)

func analyzeExpr(provider model.ModelProvider, source string, tree ast.Expr, rootType string) []diag.Diagnostic {
	if provider == nil {
		provider = model.NewStaticProvider()
	}
	a := analyzer.New(provider, funcs.GetRegistry(), analyzer.WithRootType(rootType), analyzer.WithCacheSize(500))
	return a.Analyze(context.Background(), source, tree)
}
