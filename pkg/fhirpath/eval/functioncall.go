package eval

import (
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/ast"
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/types"
)

// lambdaFuncs is the set of functions whose argument expressions must be
// re-evaluated once per input element (with $this/$index/$total rebound)
// rather than evaluated eagerly once. These are intercepted in
// evalFunctionCall before the ordinary registry dispatch.
var lambdaFuncs = map[string]bool{
	"where": true, "select": true, "exists": true, "all": true,
	"repeat": true, "aggregate": true, "iif": true,
	"is": true, "as": true, "ofType": true,
}

func (e *Evaluator) evalFunctionCall(n *ast.FunctionCall) (types.Collection, error) {
	fn, ok := e.funcs.Get(n.Name)
	if !ok {
		return nil, FunctionNotFoundError(n.Name)
	}

	argCount := len(n.Args)
	if argCount < fn.MinArgs {
		return nil, InvalidArgumentsError(n.Name, fn.MinArgs, argCount)
	}
	if fn.MaxArgs >= 0 && argCount > fn.MaxArgs {
		return nil, InvalidArgumentsError(n.Name, fn.MaxArgs, argCount)
	}

	input := e.ctx.This()

	if lambdaFuncs[n.Name] && argCount > 0 {
		switch n.Name {
		case "where":
			return e.lambdaWhere(input, n.Args[0])
		case "select":
			return e.lambdaSelect(input, n.Args[0])
		case "exists":
			return e.lambdaExists(input, n.Args[0])
		case "all":
			return e.lambdaAll(input, n.Args[0])
		case "repeat":
			return e.lambdaRepeat(input, n.Args[0])
		case "aggregate":
			return e.lambdaAggregate(input, n.Args)
		case "iif":
			return e.lambdaIif(n.Args)
		case "is":
			return e.lambdaIs(input, n.Args[0])
		case "as":
			return e.lambdaAs(input, n.Args[0])
		case "ofType":
			return e.lambdaOfType(input, n.Args[0])
		}
	}

	args := make([]interface{}, argCount)
	for i, argExpr := range n.Args {
		result, err := e.Eval(argExpr)
		if err != nil {
			return nil, err
		}
		args[i] = result
	}

	return fn.Fn(e.ctx, input, args)
}

// withElement temporarily rebinds $this/$index for the duration of fn,
// restoring the previous binding afterward — mirrors how the teacher
// evaluator swaps e.ctx.this/e.ctx.index around per-element visits.
func (e *Evaluator) withElement(item types.Value, index int, fn func() (types.Collection, error)) (types.Collection, error) {
	oldThis, oldIndex := e.ctx.this, e.ctx.index
	e.ctx.this = types.Collection{item}
	e.ctx.index = index
	result, err := fn()
	e.ctx.this, e.ctx.index = oldThis, oldIndex
	return result, err
}

func (e *Evaluator) lambdaWhere(input types.Collection, criteria ast.Expr) (types.Collection, error) {
	if err := e.ctx.CheckCollectionSize(input); err != nil {
		return nil, err
	}
	result := types.Collection{}
	for i, item := range input {
		if i%100 == 0 {
			if err := e.ctx.CheckCancellation(); err != nil {
				return nil, err
			}
		}
		col, err := e.withElement(item, i, func() (types.Collection, error) { return e.Eval(criteria) })
		if err != nil {
			return nil, err
		}
		if !col.Empty() {
			if b, ok := col[0].(types.Boolean); ok && b.Bool() {
				result = append(result, item)
			}
		}
	}
	return result, nil
}

func (e *Evaluator) lambdaSelect(input types.Collection, projection ast.Expr) (types.Collection, error) {
	if err := e.ctx.CheckCollectionSize(input); err != nil {
		return nil, err
	}
	result := types.Collection{}
	for i, item := range input {
		if i%100 == 0 {
			if err := e.ctx.CheckCancellation(); err != nil {
				return nil, err
			}
		}
		col, err := e.withElement(item, i, func() (types.Collection, error) { return e.Eval(projection) })
		if err != nil {
			return nil, err
		}
		result = append(result, col...)
		if err := e.ctx.CheckCollectionSize(result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (e *Evaluator) lambdaExists(input types.Collection, criteria ast.Expr) (types.Collection, error) {
	for i, item := range input {
		if i%100 == 0 {
			if err := e.ctx.CheckCancellation(); err != nil {
				return nil, err
			}
		}
		col, err := e.withElement(item, i, func() (types.Collection, error) { return e.Eval(criteria) })
		if err != nil {
			return nil, err
		}
		if !col.Empty() {
			if b, ok := col[0].(types.Boolean); ok && b.Bool() {
				return types.Collection{types.NewBoolean(true)}, nil
			}
		}
	}
	return types.Collection{types.NewBoolean(false)}, nil
}

func (e *Evaluator) lambdaAll(input types.Collection, criteria ast.Expr) (types.Collection, error) {
	if input.Empty() {
		return types.Collection{types.NewBoolean(true)}, nil
	}
	for i, item := range input {
		if i%100 == 0 {
			if err := e.ctx.CheckCancellation(); err != nil {
				return nil, err
			}
		}
		col, err := e.withElement(item, i, func() (types.Collection, error) { return e.Eval(criteria) })
		if err != nil {
			return nil, err
		}
		if col.Empty() {
			return types.Collection{types.NewBoolean(false)}, nil
		}
		if b, ok := col[0].(types.Boolean); ok && !b.Bool() {
			return types.Collection{types.NewBoolean(false)}, nil
		}
	}
	return types.Collection{types.NewBoolean(true)}, nil
}

// lambdaRepeat repeatedly applies projection to each new generation of
// results until a generation adds nothing new, returning the union of
// every generation produced (the seed input is not itself included,
// matching the FHIRPath definition of repeat()).
func (e *Evaluator) lambdaRepeat(input types.Collection, projection ast.Expr) (types.Collection, error) {
	result := types.Collection{}
	seen := map[string]bool{}
	frontier := input

	for len(frontier) > 0 {
		if err := e.ctx.CheckCancellation(); err != nil {
			return nil, err
		}
		next := types.Collection{}
		for i, item := range frontier {
			col, err := e.withElement(item, i, func() (types.Collection, error) { return e.Eval(projection) })
			if err != nil {
				return nil, err
			}
			for _, v := range col {
				key := v.Type() + ":" + v.String()
				if seen[key] {
					continue
				}
				seen[key] = true
				result = append(result, v)
				next = append(next, v)
			}
		}
		if err := e.ctx.CheckCollectionSize(result); err != nil {
			return nil, err
		}
		frontier = next
	}
	return result, nil
}

// lambdaAggregate implements aggregate(aggregator [, init]): iterates
// the input binding $this to each element, $index to its position, and
// $total to the running accumulator (starting at init, or empty), and
// returns the final $total.
func (e *Evaluator) lambdaAggregate(input types.Collection, args []ast.Expr) (types.Collection, error) {
	total := types.Collection{}
	if len(args) > 1 {
		initVal, err := e.Eval(args[1])
		if err != nil {
			return nil, err
		}
		total = initVal
	}

	aggregator := args[0]
	oldTotal := e.ctx.total
	defer func() { e.ctx.total = oldTotal }()

	for i, item := range input {
		if i%100 == 0 {
			if err := e.ctx.CheckCancellation(); err != nil {
				return nil, err
			}
		}
		e.ctx.total = total
		col, err := e.withElement(item, i, func() (types.Collection, error) { return e.Eval(aggregator) })
		if err != nil {
			return nil, err
		}
		total = col
	}
	return total, nil
}

func (e *Evaluator) lambdaIif(args []ast.Expr) (types.Collection, error) {
	criterionCol, err := e.Eval(args[0])
	if err != nil {
		return nil, err
	}
	criterion := false
	if !criterionCol.Empty() {
		if b, ok := criterionCol[0].(types.Boolean); ok {
			criterion = b.Bool()
		}
	}
	if criterion {
		return e.Eval(args[1])
	}
	if len(args) > 2 {
		return e.Eval(args[2])
	}
	return types.Collection{}, nil
}

func (e *Evaluator) lambdaIs(input types.Collection, typeExpr ast.Expr) (types.Collection, error) {
	if input.Empty() {
		return types.Collection{}, nil
	}
	if len(input) != 1 {
		return nil, SingletonError(len(input))
	}
	typeName := exprToTypeName(typeExpr)
	if typeName == "" {
		return nil, InvalidArgumentsError("is", 1, 0)
	}
	matches := e.provider.TypeMatches(e.ctx.Context(), input[0].Type(), typeName)
	return types.Collection{types.NewBoolean(matches)}, nil
}

func (e *Evaluator) lambdaAs(input types.Collection, typeExpr ast.Expr) (types.Collection, error) {
	if input.Empty() {
		return types.Collection{}, nil
	}
	if len(input) != 1 {
		return nil, SingletonError(len(input))
	}
	typeName := exprToTypeName(typeExpr)
	if typeName == "" {
		return nil, InvalidArgumentsError("as", 1, 0)
	}
	if e.provider.TypeMatches(e.ctx.Context(), input[0].Type(), typeName) {
		return input, nil
	}
	return types.Collection{}, nil
}

func (e *Evaluator) lambdaOfType(input types.Collection, typeExpr ast.Expr) (types.Collection, error) {
	if input.Empty() {
		return types.Collection{}, nil
	}
	typeName := exprToTypeName(typeExpr)
	if typeName == "" {
		return nil, InvalidArgumentsError("ofType", 1, 0)
	}
	result := types.Collection{}
	goCtx := e.ctx.Context()
	for _, item := range input {
		if e.provider.TypeMatches(goCtx, item.Type(), typeName) {
			result = append(result, item)
		}
	}
	return result, nil
}

// exprToTypeName renders the identifier-path form of a type specifier
// argument (Patient, FHIR.Patient, System.String) back to its dotted
// string form. is()/as()/ofType() receive their type name this way
// rather than as a string literal.
func exprToTypeName(expr ast.Expr) string {
	switch n := expr.(type) {
	case *ast.Identifier:
		return n.Name
	case *ast.Path:
		left := exprToTypeName(n.Left)
		right := exprToTypeName(n.Right)
		if left == "" {
			return right
		}
		if right == "" {
			return left
		}
		return left + "." + right
	case *ast.Literal:
		if n.Kind == ast.LiteralString {
			return n.Text
		}
	}
	return ""
}
