package ast

import "testing"

func TestNewSpan(t *testing.T) {
	s := NewSpan(3, 7)
	if s.Start != 3 || s.End != 7 {
		t.Errorf("unexpected span: %+v", s)
	}
}

func TestNodeSpans(t *testing.T) {
	span := NewSpan(0, 5)

	nodes := []Expr{
		NewLiteral(span, LiteralNumber, "1", ""),
		NewIdentifier(span, "Patient"),
		NewPath(span, NewIdentifier(span, "a"), NewIdentifier(span, "b")),
		NewFunctionCall(span, "where", nil),
		NewIndexer(span, NewIdentifier(span, "a"), NewLiteral(span, LiteralNumber, "0", "")),
		NewUnary(span, "-", NewLiteral(span, LiteralNumber, "1", "")),
		NewBinary(span, "+", NewLiteral(span, LiteralNumber, "1", ""), NewLiteral(span, LiteralNumber, "2", "")),
		NewTypeExpr(span, NewIdentifier(span, "a"), "is", "Patient"),
		NewExternalConstant(span, "resource"),
		NewThisInvocation(span),
		NewIndexInvocation(span),
		NewTotalInvocation(span),
	}

	for _, n := range nodes {
		if n.Span() != span {
			t.Errorf("%T: expected span %+v, got %+v", n, span, n.Span())
		}
	}
}

func TestFunctionCallFields(t *testing.T) {
	span := NewSpan(0, 10)
	arg := NewLiteral(span, LiteralBoolean, "true", "")
	fc := NewFunctionCall(span, "where", []Expr{arg})

	if fc.Name != "where" {
		t.Errorf("expected name 'where', got %q", fc.Name)
	}
	if len(fc.Args) != 1 || fc.Args[0] != arg {
		t.Errorf("unexpected args: %v", fc.Args)
	}
}

func TestLiteralQuantityUnit(t *testing.T) {
	span := NewSpan(0, 4)
	lit := NewLiteral(span, LiteralQuantity, "5", "mg")

	if lit.Kind != LiteralQuantity || lit.Text != "5" || lit.Unit != "mg" {
		t.Errorf("unexpected literal: %+v", lit)
	}
}

func TestTypeExprFields(t *testing.T) {
	span := NewSpan(0, 10)
	left := NewIdentifier(span, "value")
	te := NewTypeExpr(span, left, "as", "Integer")

	if te.Left != left || te.Op != "as" || te.TypeName != "Integer" {
		t.Errorf("unexpected type expr: %+v", te)
	}
}
