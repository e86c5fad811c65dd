// Package analyzer provides opt-in static analysis of a parsed FHIRPath
// expression: it walks the AST against a model.ModelProvider and a
// known-function set, flagging member and function names that can never
// resolve against any FHIR resource shape the provider knows about. It
// is a narrower, FHIRPath-native cousin of octofhir-fhirpath-rs's
// analyzer crate — that implementation tracks full static types and
// cardinalities through a dedicated type-inference pass; this one only
// answers "could this name possibly resolve", which is the piece that
// catches typos ahead of evaluation without committing to a type
// system the evaluator doesn't otherwise need.
package analyzer

import (
	"context"
	"sync"

	"github.com/gofhirpath/fhirpath/pkg/fhirpath/ast"
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/diag"
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/model"
)

// FunctionSet reports whether name is a known FHIRPath function. The
// evaluator's function registry satisfies this with a one-method shim.
type FunctionSet interface {
	Has(name string) bool
}

// Analyzer performs static checks on a parsed expression tree.
type Analyzer struct {
	provider  model.ModelProvider
	functions FunctionSet
	rootType  string

	mu    sync.Mutex
	cache map[string][]diag.Diagnostic
	limit int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithRootType tells the analyzer what FHIR resource type the
// expression's $this starts bound to (e.g. "Patient"), enabling member
// checks on the outermost path segment. Without it, only function-name
// and deeply-nested structural checks run.
func WithRootType(typeName string) Option {
	return func(a *Analyzer) { a.rootType = typeName }
}

// WithCacheSize bounds how many distinct expression strings' results the
// Analyzer remembers (0 means unbounded).
func WithCacheSize(limit int) Option {
	return func(a *Analyzer) { a.limit = limit }
}

// New builds an Analyzer backed by provider (FHIR type knowledge) and
// functions (known function names).
func New(provider model.ModelProvider, functions FunctionSet, opts ...Option) *Analyzer {
	a := &Analyzer{
		provider:  provider,
		functions: functions,
		cache:     make(map[string][]diag.Diagnostic),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze walks expr and returns the diagnostics found. cacheKey, if
// non-empty, memoizes the result under the original expression text so
// repeated analysis of the same expression string is free.
func (a *Analyzer) Analyze(ctx context.Context, cacheKey string, expr ast.Expr) []diag.Diagnostic {
	if cacheKey != "" {
		if cached, ok := a.lookup(cacheKey); ok {
			return cached
		}
	}

	w := &walker{ctx: ctx, provider: a.provider, functions: a.functions}
	w.walk(expr, a.rootType)

	if cacheKey != "" {
		a.store(cacheKey, w.diagnostics)
	}
	return w.diagnostics
}

func (a *Analyzer) lookup(key string) ([]diag.Diagnostic, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	diags, ok := a.cache[key]
	return diags, ok
}

func (a *Analyzer) store(key string, diags []diag.Diagnostic) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.cache[key]; !exists && a.limit > 0 && len(a.cache) >= a.limit {
		// simple unordered eviction: drop an arbitrary entry. Analysis
		// results are cheap to recompute, so exact LRU precision isn't
		// worth a second bookkeeping structure here.
		for k := range a.cache {
			delete(a.cache, k)
			break
		}
	}
	a.cache[key] = diags
}

// walker carries per-analysis state while descending the AST. The static
// type of $this at each point travels as walk's currentType argument; "" means
// unknown (and suppresses member-resolution checks, since we cannot say
// a name is invalid against a type we can't name).
type walker struct {
	ctx         context.Context
	provider    model.ModelProvider
	functions   FunctionSet
	diagnostics []diag.Diagnostic
}

func (w *walker) report(code, message string, span diag.Span) {
	w.diagnostics = append(w.diagnostics, diag.Diagnostic{
		Code: code, Message: message, Span: span, Severity: diag.SeverityWarning,
	})
}

// walk analyzes node assuming $this has static type currentType ("" if
// unknown) and returns the static type of node's result, when it can be
// determined.
func (w *walker) walk(node ast.Expr, currentType string) string {
	switch n := node.(type) {
	case *ast.Literal:
		return literalStaticType(n)

	case *ast.Identifier:
		if currentType == "" {
			return ""
		}
		if w.provider.IsSubtypeOf(w.ctx, currentType, n.Name) {
			return currentType
		}
		if w.provider.IsChoiceProperty(w.ctx, n.Name) {
			return ""
		}
		if el, ok := w.provider.Element(w.ctx, currentType, n.Name); ok {
			return el.Type
		}
		// A bare identifier that isn't a known structural name for
		// currentType is likely a typo. Only report it when the provider
		// actually has field knowledge for currentType - otherwise
		// "unknown" just means our schema tables don't cover this type,
		// not that the field doesn't exist.
		if names := w.provider.ElementNames(w.ctx, currentType); len(names) > 0 {
			msg := "unknown field '" + n.Name + "' on " + currentType
			if suggestion, ok := closestMatch(n.Name, names); ok {
				msg += "; did you mean '" + suggestion + "'?"
			}
			w.report(diag.CodeUnresolvedMember, msg, n.Span())
		}
		return ""

	case *ast.Path:
		leftType := w.walk(n.Left, currentType)
		return w.walk(n.Right, leftType)

	case *ast.FunctionCall:
		if w.functions != nil && !w.functions.Has(n.Name) {
			w.report(diag.CodeUnresolvedFunction, "unknown function '"+n.Name+"'", n.Span())
		}
		for _, arg := range n.Args {
			w.walk(arg, currentType)
		}
		return ""

	case *ast.Indexer:
		baseType := w.walk(n.Base, currentType)
		w.walk(n.Index, currentType)
		return baseType

	case *ast.Unary:
		return w.walk(n.Operand, currentType)

	case *ast.Binary:
		w.walk(n.Left, currentType)
		w.walk(n.Right, currentType)
		return binaryStaticType(n.Op)

	case *ast.TypeExpr:
		w.walk(n.Left, currentType)
		if n.Op == "as" {
			return n.TypeName
		}
		return "Boolean"

	case *ast.ExternalConstant, *ast.ThisInvocation, *ast.IndexInvocation, *ast.TotalInvocation:
		return currentType

	default:
		return ""
	}
}

func literalStaticType(lit *ast.Literal) string {
	switch lit.Kind {
	case ast.LiteralBoolean:
		return "Boolean"
	case ast.LiteralString:
		return "String"
	case ast.LiteralNumber:
		return "Decimal"
	case ast.LiteralDate:
		return "Date"
	case ast.LiteralDateTime:
		return "DateTime"
	case ast.LiteralTime:
		return "Time"
	case ast.LiteralQuantity:
		return "Quantity"
	default:
		return ""
	}
}

func binaryStaticType(op string) string {
	switch op {
	case "=", "!=", "~", "!~", "<", "<=", ">", ">=", "and", "or", "xor", "implies", "in", "contains":
		return "Boolean"
	default:
		return ""
	}
}

// suggestThreshold bounds how different a candidate name may be from the
// typo'd one before it's no longer worth suggesting.
const suggestThreshold = 3

// closestMatch returns the candidate closest to name by Levenshtein edit
// distance, when that distance is within suggestThreshold.
func closestMatch(name string, candidates []string) (string, bool) {
	best := ""
	bestDist := suggestThreshold + 1
	for _, c := range candidates {
		d := levenshtein(name, c)
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	if bestDist > suggestThreshold {
		return "", false
	}
	return best, true
}

// levenshtein computes the classic single-character insert/delete/
// substitute edit distance between a and b.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			curr[j] = m
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
