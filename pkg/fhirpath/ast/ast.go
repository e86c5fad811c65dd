// Package ast defines the FHIRPath abstract syntax tree produced by
// pkg/fhirpath/parser. Every node carries a Span (byte-offset range into
// the original source) so diagnostics can point back at source text.
package ast

import "github.com/gofhirpath/fhirpath/pkg/fhirpath/diag"

// Expr is implemented by every AST node.
type Expr interface {
	Span() diag.Span
	exprNode()
}

type base struct {
	span diag.Span
}

func (b base) Span() diag.Span { return b.span }
func (base) exprNode()         {}

// NewSpan builds a diag.Span from start/end byte offsets.
func NewSpan(start, end int) diag.Span { return diag.Span{Start: start, End: end} }

// LiteralKind identifies the literal's target FHIRPath type.
type LiteralKind int

const (
	LiteralNull LiteralKind = iota
	LiteralBoolean
	LiteralString
	LiteralNumber // Integer or Decimal, decided by Text's shape
	LiteralDate
	LiteralDateTime
	LiteralTime
	LiteralQuantity
)

// Literal is a constant value term: {}, true/false, 'str', 1, 1.5,
// @2024-01-01, @2024-01-01T10:00:00Z, @T10:00, 5 'mg', 4 days.
type Literal struct {
	base
	Kind LiteralKind
	Text string // unescaped/unquoted text for the value proper
	Unit string // only set when Kind == LiteralQuantity
}

// NewLiteral constructs a Literal node.
func NewLiteral(span diag.Span, kind LiteralKind, text, unit string) *Literal {
	return &Literal{base: base{span}, Kind: kind, Text: text, Unit: unit}
}

// Identifier is a bare name term (resolved against $this at evaluation
// time): Patient, name, `PID-1`.
type Identifier struct {
	base
	Name string
}

func NewIdentifier(span diag.Span, name string) *Identifier {
	return &Identifier{base: base{span}, Name: name}
}

// Path represents `Left.Right`: Right is evaluated with $this set to the
// result of evaluating Left.
type Path struct {
	base
	Left  Expr
	Right Expr
}

func NewPath(span diag.Span, left, right Expr) *Path {
	return &Path{base: base{span}, Left: left, Right: right}
}

// FunctionCall is a named function invocation with unevaluated argument
// expressions — lambda-taking functions (where, select, ...) receive
// these raw so they can re-evaluate per element.
type FunctionCall struct {
	base
	Name string
	Args []Expr
}

func NewFunctionCall(span diag.Span, name string, args []Expr) *FunctionCall {
	return &FunctionCall{base: base{span}, Name: name, Args: args}
}

// Indexer is `Base[Index]`.
type Indexer struct {
	base
	Base  Expr
	Index Expr
}

func NewIndexer(span diag.Span, baseExpr, index Expr) *Indexer {
	return &Indexer{base: base{span}, Base: baseExpr, Index: index}
}

// Unary is `+Operand` or `-Operand`.
type Unary struct {
	base
	Op      string
	Operand Expr
}

func NewUnary(span diag.Span, op string, operand Expr) *Unary {
	return &Unary{base: base{span}, Op: op, Operand: operand}
}

// Binary is any two-operand infix operator: arithmetic, comparison,
// equality, membership, boolean, union.
type Binary struct {
	base
	Op    string
	Left  Expr
	Right Expr
}

func NewBinary(span diag.Span, op string, left, right Expr) *Binary {
	return &Binary{base: base{span}, Op: op, Left: left, Right: right}
}

// TypeExpr is `Left is TypeName` or `Left as TypeName`.
type TypeExpr struct {
	base
	Left     Expr
	Op       string // "is" or "as"
	TypeName string
}

func NewTypeExpr(span diag.Span, left Expr, op, typeName string) *TypeExpr {
	return &TypeExpr{base: base{span}, Left: left, Op: op, TypeName: typeName}
}

// ExternalConstant is `%name`.
type ExternalConstant struct {
	base
	Name string
}

func NewExternalConstant(span diag.Span, name string) *ExternalConstant {
	return &ExternalConstant{base: base{span}, Name: name}
}

// ThisInvocation is `$this`.
type ThisInvocation struct{ base }

func NewThisInvocation(span diag.Span) *ThisInvocation { return &ThisInvocation{base{span}} }

// IndexInvocation is `$index`.
type IndexInvocation struct{ base }

func NewIndexInvocation(span diag.Span) *IndexInvocation { return &IndexInvocation{base{span}} }

// TotalInvocation is `$total`.
type TotalInvocation struct{ base }

func NewTotalInvocation(span diag.Span) *TotalInvocation { return &TotalInvocation{base{span}} }

// StaticType holds a static type name and whether it is a collection. No
// AST node carries one and the analyzer does not fill it in; the analyzer
// tracks static types as plain type-name strings while it walks.
type StaticType struct {
	Name       string
	Collection bool
}
