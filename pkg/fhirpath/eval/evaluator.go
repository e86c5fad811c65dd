package eval

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofhirpath/fhirpath/pkg/fhirpath/ast"
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/model"
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/polypath"
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/types"
)

// FuncImpl is the signature for function implementations. args are the
// already-evaluated argument collections; lambda-taking functions
// (where, select, all, exists, repeat, aggregate, iif, is, as, ofType)
// are intercepted before reaching the registry since they need
// their argument expression re-evaluated once per element instead of
// once up front.
type FuncImpl func(ctx *Context, input types.Collection, args []interface{}) (types.Collection, error)

// FuncDef defines a FHIRPath function.
type FuncDef struct {
	Name    string
	MinArgs int
	MaxArgs int
	Fn      FuncImpl
}

// FuncRegistry is an interface for function lookup.
type FuncRegistry interface {
	Get(name string) (FuncDef, bool)
}

// Resolver handles FHIR reference resolution.
type Resolver interface {
	Resolve(ctx context.Context, reference string) ([]byte, error)
}

// Evaluator walks a parsed ast.Expr tree and produces FHIRPath collections.
type Evaluator struct {
	ctx      *Context
	funcs    FuncRegistry
	provider model.ModelProvider
	paths    *polypath.Resolver
}

// Context holds the evaluation state.
type Context struct {
	root      types.Collection
	this      types.Collection
	index     int
	total     types.Collection
	variables map[string]types.Collection
	limits    map[string]int
	goCtx     context.Context
	resolver  Resolver
}

// NewContext creates a new evaluation context.
// Automatically sets %resource and %context to the root resource for FHIR constraint evaluation.
// Per FHIRPath spec:
//   - %resource: the root resource being evaluated
//   - %context: the original node passed to the evaluation engine (same as %resource for top-level evaluation)
func NewContext(resource []byte) *Context {
	//nolint:errcheck // Empty collection is acceptable for invalid JSON in context creation
	root, _ := types.JSONToCollection(resource)

	variables := make(map[string]types.Collection)
	variables["resource"] = root
	variables["context"] = root

	return &Context{
		root:      root,
		this:      root,
		variables: variables,
		limits:    make(map[string]int),
		goCtx:     context.Background(),
	}
}

// SetLimit sets a limit value (e.g., maxDepth, maxCollectionSize).
func (c *Context) SetLimit(name string, value int) {
	if c.limits == nil {
		c.limits = make(map[string]int)
	}
	c.limits[name] = value
}

// GetLimit gets a limit value.
func (c *Context) GetLimit(name string) int {
	if c.limits == nil {
		return 0
	}
	return c.limits[name]
}

// SetContext sets the Go context for cancellation.
func (c *Context) SetContext(ctx context.Context) {
	c.goCtx = ctx
}

// Context returns the Go context.
func (c *Context) Context() context.Context {
	if c.goCtx == nil {
		return context.Background()
	}
	return c.goCtx
}

// SetResolver sets the reference resolver.
func (c *Context) SetResolver(r Resolver) {
	c.resolver = r
}

// GetResolver returns the reference resolver.
func (c *Context) GetResolver() Resolver {
	return c.resolver
}

// CheckCancellation checks if the context has been canceled.
func (c *Context) CheckCancellation() error {
	if c.goCtx == nil {
		return nil
	}
	select {
	case <-c.goCtx.Done():
		return c.goCtx.Err()
	default:
		return nil
	}
}

// CheckCollectionSize validates that a collection doesn't exceed the maximum size.
func (c *Context) CheckCollectionSize(col types.Collection) error {
	maxSize := c.GetLimit("maxCollectionSize")
	if maxSize > 0 && len(col) > maxSize {
		return NewEvalError(ErrInvalidExpression,
			"collection size %d exceeds maximum allowed %d", len(col), maxSize)
	}
	return nil
}

// EnforceCollectionLimit truncates a collection if it exceeds the maximum size.
func (c *Context) EnforceCollectionLimit(col types.Collection) (types.Collection, bool) {
	maxSize := c.GetLimit("maxCollectionSize")
	if maxSize > 0 && len(col) > maxSize {
		return col[:maxSize], true
	}
	return col, false
}

// Root returns the root collection.
func (c *Context) Root() types.Collection { return c.root }

// This returns the current $this value.
func (c *Context) This() types.Collection { return c.this }

// WithThis returns a new context with the given $this value.
func (c *Context) WithThis(this types.Collection) *Context {
	newCtx := *c
	newCtx.this = this
	return &newCtx
}

// WithIndex returns a new context with the given $index value.
func (c *Context) WithIndex(index int) *Context {
	newCtx := *c
	newCtx.index = index
	return &newCtx
}

// SetVariable sets an external variable.
func (c *Context) SetVariable(name string, value types.Collection) {
	c.variables[name] = value
}

// GetVariable gets an external variable.
func (c *Context) GetVariable(name string) (types.Collection, bool) {
	v, ok := c.variables[name]
	return v, ok
}

// NewEvaluator creates a new evaluator with the given context and function
// registry. It always starts with model.NewStaticProvider() as the FHIR
// type-system provider and an unbounded polypath.Resolver over it; use
// WithModelProvider to swap in another provider.
func NewEvaluator(ctx *Context, funcs FuncRegistry) *Evaluator {
	provider := model.NewStaticProvider()
	return &Evaluator{
		ctx:      ctx,
		funcs:    funcs,
		provider: provider,
		paths:    polypath.NewResolver(provider, 0),
	}
}

// WithModelProvider swaps in a custom FHIR type-system provider,
// rebuilding the member-path resolver cache to match.
func (e *Evaluator) WithModelProvider(provider model.ModelProvider) *Evaluator {
	e.provider = provider
	e.paths = polypath.NewResolver(provider, 0)
	return e
}

// Evaluate evaluates a parsed expression tree and returns the result.
func (e *Evaluator) Evaluate(tree ast.Expr) (types.Collection, error) {
	return e.Eval(tree)
}

// Eval dispatches on the concrete ast.Expr node type and evaluates it
// against the evaluator's current Context.
func (e *Evaluator) Eval(node ast.Expr) (types.Collection, error) {
	if node == nil {
		return types.Collection{}, nil
	}
	switch n := node.(type) {
	case *ast.Literal:
		return e.evalLiteral(n)
	case *ast.Identifier:
		return e.navigateMember(e.ctx.This(), n.Name), nil
	case *ast.Path:
		return e.evalPath(n)
	case *ast.FunctionCall:
		return e.evalFunctionCall(n)
	case *ast.Indexer:
		return e.evalIndexer(n)
	case *ast.Unary:
		return e.evalUnary(n)
	case *ast.Binary:
		return e.evalBinary(n)
	case *ast.TypeExpr:
		return e.evalTypeExpr(n)
	case *ast.ExternalConstant:
		if v, ok := e.ctx.GetVariable(n.Name); ok {
			return v, nil
		}
		return nil, NewEvalError(ErrInvalidPath, "undefined variable: %"+n.Name)
	case *ast.ThisInvocation:
		return e.ctx.This(), nil
	case *ast.IndexInvocation:
		return types.Collection{types.NewInteger(int64(e.ctx.index))}, nil
	case *ast.TotalInvocation:
		return e.ctx.total, nil
	default:
		return types.Collection{}, nil
	}
}

func (e *Evaluator) evalLiteral(lit *ast.Literal) (types.Collection, error) {
	switch lit.Kind {
	case ast.LiteralNull:
		return types.Collection{}, nil
	case ast.LiteralBoolean:
		return types.Collection{types.NewBoolean(lit.Text == "true")}, nil
	case ast.LiteralString:
		return types.Collection{types.NewString(lit.Text)}, nil
	case ast.LiteralNumber:
		if !strings.Contains(lit.Text, ".") {
			if i, err := strconv.ParseInt(lit.Text, 10, 64); err == nil {
				return types.Collection{types.NewInteger(i)}, nil
			}
		}
		d, err := types.NewDecimal(lit.Text)
		if err != nil {
			return nil, ParseError("invalid number: " + lit.Text)
		}
		return types.Collection{d}, nil
	case ast.LiteralDate:
		d, err := types.NewDate(lit.Text)
		if err != nil {
			return nil, ParseError("invalid date: " + lit.Text)
		}
		return types.Collection{d}, nil
	case ast.LiteralDateTime:
		// A bare @YYYY(-MM(-DD)?)? token with no time component is a Date
		// literal; only a 'T' marks it as a full DateTime.
		if !strings.Contains(lit.Text, "T") {
			d, err := types.NewDate(lit.Text)
			if err != nil {
				return nil, ParseError("invalid date: " + lit.Text)
			}
			return types.Collection{d}, nil
		}
		dt, err := types.NewDateTime(lit.Text)
		if err != nil {
			return nil, ParseError("invalid datetime: " + lit.Text)
		}
		return types.Collection{dt}, nil
	case ast.LiteralTime:
		t, err := types.NewTime(lit.Text)
		if err != nil {
			return nil, ParseError("invalid time: " + lit.Text)
		}
		return types.Collection{t}, nil
	case ast.LiteralQuantity:
		q, err := types.NewQuantity(lit.Text + " '" + lit.Unit + "'")
		if err != nil {
			return nil, ParseError("invalid quantity: " + lit.Text + " " + lit.Unit)
		}
		return types.Collection{q}, nil
	default:
		return types.Collection{}, nil
	}
}

func (e *Evaluator) evalPath(n *ast.Path) (types.Collection, error) {
	leftCol, err := e.Eval(n.Left)
	if err != nil {
		return nil, err
	}
	oldThis := e.ctx.this
	e.ctx.this = leftCol
	defer func() { e.ctx.this = oldThis }()
	return e.Eval(n.Right)
}

func (e *Evaluator) evalIndexer(n *ast.Indexer) (types.Collection, error) {
	baseCol, err := e.Eval(n.Base)
	if err != nil {
		return nil, err
	}
	indexCol, err := e.Eval(n.Index)
	if err != nil {
		return nil, err
	}
	if indexCol.Empty() {
		return types.Collection{}, nil
	}
	idx, ok := indexCol[0].(types.Integer)
	if !ok {
		return nil, TypeError("Integer", indexCol[0].Type(), "indexer")
	}
	i := int(idx.Value())
	if i < 0 || i >= len(baseCol) {
		return types.Collection{}, nil
	}
	return types.Collection{baseCol[i]}, nil
}

func (e *Evaluator) evalUnary(n *ast.Unary) (types.Collection, error) {
	col, err := e.Eval(n.Operand)
	if err != nil {
		return nil, err
	}
	if col.Empty() {
		return col, nil
	}
	if len(col) != 1 {
		return nil, SingletonError(len(col))
	}
	if n.Op == "-" {
		negated, err := Negate(col[0])
		if err != nil {
			return nil, err
		}
		return types.Collection{negated}, nil
	}
	return col, nil
}

func (e *Evaluator) evalBinary(n *ast.Binary) (types.Collection, error) {
	switch n.Op {
	case "and":
		left, right, err := e.evalBoth(n)
		if err != nil {
			return nil, err
		}
		return And(left, right), nil
	case "or":
		left, right, err := e.evalBoth(n)
		if err != nil {
			return nil, err
		}
		return Or(left, right), nil
	case "xor":
		left, right, err := e.evalBoth(n)
		if err != nil {
			return nil, err
		}
		return Xor(left, right), nil
	case "implies":
		left, right, err := e.evalBoth(n)
		if err != nil {
			return nil, err
		}
		return Implies(left, right), nil
	case "in":
		left, right, err := e.evalBoth(n)
		if err != nil {
			return nil, err
		}
		return In(left, right), nil
	case "contains":
		left, right, err := e.evalBoth(n)
		if err != nil {
			return nil, err
		}
		return Contains(left, right), nil
	case "=":
		left, right, err := e.evalBoth(n)
		if err != nil {
			return nil, err
		}
		return Equal(left, right), nil
	case "!=":
		left, right, err := e.evalBoth(n)
		if err != nil {
			return nil, err
		}
		return NotEqual(left, right), nil
	case "~":
		left, right, err := e.evalBoth(n)
		if err != nil {
			return nil, err
		}
		return Equivalent(left, right), nil
	case "!~":
		left, right, err := e.evalBoth(n)
		if err != nil {
			return nil, err
		}
		return NotEquivalent(left, right), nil
	case "|":
		left, right, err := e.evalBoth(n)
		if err != nil {
			return nil, err
		}
		return Union(left, right), nil
	case "&":
		left, right, err := e.evalBoth(n)
		if err != nil {
			return nil, err
		}
		return Concatenate(left, right), nil
	case "<", "<=", ">", ">=":
		return e.evalInequality(n)
	case "+", "-", "*", "/", "div", "mod":
		return e.evalArithmetic(n)
	default:
		return types.Collection{}, nil
	}
}

func (e *Evaluator) evalBoth(n *ast.Binary) (types.Collection, types.Collection, error) {
	left, err := e.Eval(n.Left)
	if err != nil {
		return nil, nil, err
	}
	right, err := e.Eval(n.Right)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func (e *Evaluator) evalInequality(n *ast.Binary) (types.Collection, error) {
	left, right, err := e.evalBoth(n)
	if err != nil {
		return nil, err
	}
	if left.Empty() || right.Empty() {
		return types.Collection{}, nil
	}
	if len(left) != 1 || len(right) != 1 {
		return nil, SingletonError(len(left) + len(right))
	}
	switch n.Op {
	case "<":
		return LessThan(left[0], right[0])
	case "<=":
		return LessOrEqual(left[0], right[0])
	case ">":
		return GreaterThan(left[0], right[0])
	case ">=":
		return GreaterOrEqual(left[0], right[0])
	default:
		return types.Collection{}, nil
	}
}

func (e *Evaluator) evalArithmetic(n *ast.Binary) (types.Collection, error) {
	left, right, err := e.evalBoth(n)
	if err != nil {
		return nil, err
	}
	if n.Op == "&" {
		return Concatenate(left, right), nil
	}
	if left.Empty() || right.Empty() {
		return types.Collection{}, nil
	}
	if len(left) != 1 || len(right) != 1 {
		return nil, SingletonError(len(left) + len(right))
	}

	var result types.Value
	switch n.Op {
	case "+":
		result, err = Add(left[0], right[0])
	case "-":
		result, err = Subtract(left[0], right[0])
	case "*":
		result, err = Multiply(left[0], right[0])
	case "/":
		result, err = Divide(left[0], right[0])
	case "div":
		result, err = IntegerDivide(left[0], right[0])
	case "mod":
		result, err = Modulo(left[0], right[0])
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		return types.Collection{}, nil
	}
	return types.Collection{result}, nil
}

func (e *Evaluator) evalTypeExpr(n *ast.TypeExpr) (types.Collection, error) {
	leftCol, err := e.Eval(n.Left)
	if err != nil {
		return nil, err
	}
	if leftCol.Empty() {
		return types.Collection{}, nil
	}
	if len(leftCol) != 1 {
		return nil, SingletonError(len(leftCol))
	}
	actualType := leftCol[0].Type()
	matches := e.provider.TypeMatches(e.ctx.Context(), actualType, n.TypeName)
	switch n.Op {
	case "is":
		return types.Collection{types.NewBoolean(matches)}, nil
	case "as":
		if matches {
			return leftCol, nil
		}
		return types.Collection{}, nil
	default:
		return types.Collection{}, nil
	}
}

// navigateMember navigates to a member of the objects in input, using
// the polymorphic-path resolver to handle FHIR's value[x] pattern and
// resourceType/base-type self-matches (e.g. `.Patient` on a Patient
// resource, or `.Resource`/`.DomainResource`).
func (e *Evaluator) navigateMember(input types.Collection, name string) types.Collection {
	result := types.Collection{}
	goCtx := e.ctx.Context()

	for _, item := range input {
		obj, ok := item.(*types.ObjectValue)
		if !ok {
			continue
		}

		res, found := e.paths.Resolve(goCtx, obj, name)
		if !found {
			continue
		}
		switch {
		case res.SelfMatch:
			result = append(result, obj)
		case res.DirectField:
			result = append(result, obj.GetCollection(name)...)
		case res.ChoiceField != "":
			result = append(result, obj.GetCollection(res.ChoiceField)...)
		}
	}

	return result
}
