// Package parser implements a hand-written Pratt (precedence-climbing)
// parser that turns a FHIRPath token stream into the pkg/fhirpath/ast
// tree. It replaces the teacher's ANTLR-generated parser: FHIRPath's
// grammar is small and fixed, so a direct recursive-descent parser gives
// full control over the AST shape and span tracking spec.md requires.
package parser

import (
	"fmt"
	"strings"

	"github.com/gofhirpath/fhirpath/pkg/fhirpath/ast"
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/diag"
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/token"
)

// ParseError is a syntax error encountered while parsing, carrying a
// stable diagnostic code and the source span where parsing failed.
type ParseError struct {
	Code    string
	Message string
	Span    diag.Span
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Diagnostic converts the error into a diag.Diagnostic.
func (e *ParseError) Diagnostic() diag.Diagnostic {
	return diag.Diagnostic{Code: e.Code, Message: e.Message, Span: e.Span, Severity: diag.SeverityError}
}

// Parse tokenizes and parses a complete FHIRPath expression.
func Parse(source string) (ast.Expr, error) {
	toks, err := token.Tokenize(source)
	if err != nil {
		if lexErr, ok := err.(*token.LexError); ok {
			return nil, &ParseError{Code: lexErr.Code, Message: lexErr.Message, Span: diag.Span{Start: lexErr.Pos, End: lexErr.Pos + 1}}
		}
		return nil, &ParseError{Code: diag.CodeUnexpectedChar, Message: err.Error()}
	}
	p := &parser{tokens: toks}
	expr, err := p.parseExpression(precLowest)
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != token.EOF {
		return nil, p.errorf(diag.CodeUnexpectedToken, "unexpected trailing input %q", p.cur().Text)
	}
	return expr, nil
}

type parser struct {
	tokens []token.Token
	pos    int
}

func (p *parser) cur() token.Token  { return p.tokens[p.pos] }
func (p *parser) peekAt(n int) token.Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}
func (p *parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *parser) errorf(code, format string, args ...interface{}) *ParseError {
	t := p.cur()
	return &ParseError{Code: code, Message: fmt.Sprintf(format, args...), Span: diag.Span{Start: t.Start, End: t.End}}
}

func (p *parser) expect(k token.Kind) (token.Token, error) {
	if p.cur().Kind != k {
		return token.Token{}, p.errorf(diag.CodeExpectedToken, "expected %v, got %v", k, p.cur().Kind)
	}
	return p.advance(), nil
}

// precedence levels, lowest to highest.
const (
	precLowest = iota
	precImplies
	precOr     // or, xor
	precAnd
	precMembership // in, contains
	precEquality   // = != ~ !~
	precTypeOp     // is, as (infix form)
	precInequality // < <= > >=
	precUnion      // |
	precAdditive   // + - &
	precMultiplicative // * / div mod
	precUnary
	precPostfix // . []
)

func (p *parser) parseExpression(minPrec int) (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, prec, rightAssoc := infixInfo(p.cur().Kind)
		if prec == 0 || prec < minPrec {
			return left, nil
		}

		if op == "is" || op == "as" {
			p.advance()
			typeName, err := p.parseTypeSpecifier()
			if err != nil {
				return nil, err
			}
			left = ast.NewTypeExpr(ast.NewSpan(left.Span().Start, p.prevEnd()), left, op, typeName)
			continue
		}

		p.advance()
		nextMin := prec + 1
		if rightAssoc {
			nextMin = prec
		}
		right, err := p.parseExpression(nextMin)
		if err != nil {
			return nil, err
		}
		left = ast.NewBinary(ast.NewSpan(left.Span().Start, right.Span().End), op, left, right)
	}
}

func (p *parser) prevEnd() int {
	if p.pos == 0 {
		return 0
	}
	return p.tokens[p.pos-1].End
}

// infixInfo returns the operator text and precedence for a binary/type
// operator token kind, or ("", 0, false) if k does not start an infix
// operator.
func infixInfo(k token.Kind) (op string, prec int, rightAssoc bool) {
	switch k {
	case token.IMPLIES:
		return "implies", precImplies, true
	case token.OR:
		return "or", precOr, false
	case token.XOR:
		return "xor", precOr, false
	case token.AND:
		return "and", precAnd, false
	case token.IN:
		return "in", precMembership, false
	case token.CONTAINS:
		return "contains", precMembership, false
	case token.EQ:
		return "=", precEquality, false
	case token.NEQ:
		return "!=", precEquality, false
	case token.EQUIV:
		return "~", precEquality, false
	case token.NEQUIV:
		return "!~", precEquality, false
	case token.IS:
		return "is", precTypeOp, false
	case token.AS:
		return "as", precTypeOp, false
	case token.LT:
		return "<", precInequality, false
	case token.LTE:
		return "<=", precInequality, false
	case token.GT:
		return ">", precInequality, false
	case token.GTE:
		return ">=", precInequality, false
	case token.PIPE:
		return "|", precUnion, false
	case token.PLUS:
		return "+", precAdditive, false
	case token.MINUS:
		return "-", precAdditive, false
	case token.AMP:
		return "&", precAdditive, false
	case token.STAR:
		return "*", precMultiplicative, false
	case token.SLASH:
		return "/", precMultiplicative, false
	case token.DIV:
		return "div", precMultiplicative, false
	case token.MOD:
		return "mod", precMultiplicative, false
	default:
		return "", 0, false
	}
}

// parseTypeSpecifier parses a (possibly namespaced) type name: Patient,
// FHIR.Patient, System.String.
func (p *parser) parseTypeSpecifier() (string, error) {
	tok, err := p.identifierToken()
	if err != nil {
		return "", err
	}
	name := unquoteIdentifier(tok.Text)
	for p.cur().Kind == token.DOT {
		next := p.peekAt(1)
		if next.Kind != token.IDENTIFIER && next.Kind != token.DELIMITEDIDENTIFIER {
			break
		}
		p.advance() // consume '.'
		part, err := p.identifierToken()
		if err != nil {
			return "", err
		}
		name += "." + unquoteIdentifier(part.Text)
	}
	return name, nil
}

func (p *parser) identifierToken() (token.Token, error) {
	switch p.cur().Kind {
	case token.IDENTIFIER, token.DELIMITEDIDENTIFIER:
		return p.advance(), nil
	default:
		return token.Token{}, p.errorf(diag.CodeInvalidTypeSpecifier, "expected identifier, got %v", p.cur().Kind)
	}
}

func (p *parser) parseUnary() (ast.Expr, error) {
	if p.cur().Kind == token.PLUS || p.cur().Kind == token.MINUS {
		opTok := p.advance()
		op := opTok.Text
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.NewUnary(ast.NewSpan(opTok.Start, operand.Span().End), op, operand), nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (ast.Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Kind {
		case token.DOT:
			p.advance()
			right, err := p.parseInvocation()
			if err != nil {
				return nil, err
			}
			left = ast.NewPath(ast.NewSpan(left.Span().Start, right.Span().End), left, right)
		case token.LBRACKET:
			p.advance()
			idx, err := p.parseExpression(precLowest)
			if err != nil {
				return nil, err
			}
			closeTok, err := p.expect(token.RBRACKET)
			if err != nil {
				return nil, err
			}
			left = ast.NewIndexer(ast.NewSpan(left.Span().Start, closeTok.End), left, idx)
		default:
			return left, nil
		}
	}
}

// parseInvocation parses the right-hand side of a `.`: a member name,
// function call, or one of $this/$index/$total.
func (p *parser) parseInvocation() (ast.Expr, error) {
	switch p.cur().Kind {
	case token.DOLLAR_THIS:
		t := p.advance()
		return ast.NewThisInvocation(ast.NewSpan(t.Start, t.End)), nil
	case token.DOLLAR_INDEX:
		t := p.advance()
		return ast.NewIndexInvocation(ast.NewSpan(t.Start, t.End)), nil
	case token.DOLLAR_TOTAL:
		t := p.advance()
		return ast.NewTotalInvocation(ast.NewSpan(t.Start, t.End)), nil
	case token.IDENTIFIER, token.DELIMITEDIDENTIFIER:
		return p.parseIdentifierOrFunction()
	default:
		return nil, p.errorf(diag.CodeExpectedExpression, "expected member or function name, got %v", p.cur().Kind)
	}
}

func (p *parser) parseIdentifierOrFunction() (ast.Expr, error) {
	nameTok := p.advance()
	name := unquoteIdentifier(nameTok.Text)
	if p.cur().Kind == token.LPAREN {
		p.advance()
		var args []ast.Expr
		if p.cur().Kind != token.RPAREN {
			for {
				arg, err := p.parseExpression(precLowest)
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.cur().Kind == token.COMMA {
					p.advance()
					continue
				}
				break
			}
		}
		closeTok, err := p.expect(token.RPAREN)
		if err != nil {
			return nil, err
		}
		return ast.NewFunctionCall(ast.NewSpan(nameTok.Start, closeTok.End), name, args), nil
	}
	return ast.NewIdentifier(ast.NewSpan(nameTok.Start, nameTok.End), name), nil
}

func (p *parser) parseTerm() (ast.Expr, error) {
	switch p.cur().Kind {
	case token.LPAREN:
		p.advance()
		inner, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return inner, nil
	case token.LBRACE:
		start := p.advance()
		closeTok, err := p.expect(token.RBRACE)
		if err != nil {
			return nil, err
		}
		return ast.NewLiteral(ast.NewSpan(start.Start, closeTok.End), ast.LiteralNull, "", ""), nil
	case token.TRUE:
		t := p.advance()
		return ast.NewLiteral(ast.NewSpan(t.Start, t.End), ast.LiteralBoolean, "true", ""), nil
	case token.FALSE:
		t := p.advance()
		return ast.NewLiteral(ast.NewSpan(t.Start, t.End), ast.LiteralBoolean, "false", ""), nil
	case token.STRING:
		t := p.advance()
		return ast.NewLiteral(ast.NewSpan(t.Start, t.End), ast.LiteralString, unquoteString(t.Text), ""), nil
	case token.NUMBER:
		return p.parseNumberOrQuantity()
	case token.DATETIME:
		t := p.advance()
		return ast.NewLiteral(ast.NewSpan(t.Start, t.End), ast.LiteralDateTime, strings.TrimPrefix(t.Text, "@"), ""), nil
	case token.TIME:
		t := p.advance()
		return ast.NewLiteral(ast.NewSpan(t.Start, t.End), ast.LiteralTime, strings.TrimPrefix(strings.TrimPrefix(t.Text, "@"), "T"), ""), nil
	case token.EXTERNALCONSTANT:
		t := p.advance()
		return ast.NewExternalConstant(ast.NewSpan(t.Start, t.End), unquoteExternalConstant(t.Text)), nil
	case token.DOLLAR_THIS:
		t := p.advance()
		return ast.NewThisInvocation(ast.NewSpan(t.Start, t.End)), nil
	case token.DOLLAR_INDEX:
		t := p.advance()
		return ast.NewIndexInvocation(ast.NewSpan(t.Start, t.End)), nil
	case token.DOLLAR_TOTAL:
		t := p.advance()
		return ast.NewTotalInvocation(ast.NewSpan(t.Start, t.End)), nil
	case token.IDENTIFIER, token.DELIMITEDIDENTIFIER:
		return p.parseIdentifierOrFunction()
	default:
		return nil, p.errorf(diag.CodeExpectedExpression, "unexpected token %v", p.cur().Kind)
	}
}

// parseNumberOrQuantity parses a NUMBER, optionally followed by a unit
// (a quoted UCUM string or a bare calendar-duration keyword like days),
// forming a Quantity literal per the FHIRPath grammar.
func (p *parser) parseNumberOrQuantity() (ast.Expr, error) {
	numTok := p.advance()
	if p.cur().Kind == token.STRING {
		unitTok := p.advance()
		unit := unquoteString(unitTok.Text)
		return ast.NewLiteral(ast.NewSpan(numTok.Start, unitTok.End), ast.LiteralQuantity, numTok.Text, unit), nil
	}
	if p.cur().Kind == token.IDENTIFIER && isCalendarUnit(p.cur().Text) {
		unitTok := p.advance()
		return ast.NewLiteral(ast.NewSpan(numTok.Start, unitTok.End), ast.LiteralQuantity, numTok.Text, unitTok.Text), nil
	}
	return ast.NewLiteral(ast.NewSpan(numTok.Start, numTok.End), ast.LiteralNumber, numTok.Text, ""), nil
}

var calendarUnits = map[string]bool{
	"year": true, "years": true, "month": true, "months": true,
	"week": true, "weeks": true, "day": true, "days": true,
	"hour": true, "hours": true, "minute": true, "minutes": true,
	"second": true, "seconds": true, "millisecond": true, "milliseconds": true,
}

func isCalendarUnit(word string) bool { return calendarUnits[word] }

func unquoteIdentifier(s string) string {
	if len(s) >= 2 && s[0] == '`' && s[len(s)-1] == '`' {
		return unescape(s[1 : len(s)-1])
	}
	return s
}

func unquoteString(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return unescape(s[1 : len(s)-1])
	}
	return s
}

func unquoteExternalConstant(s string) string {
	s = strings.TrimPrefix(s, "%")
	if len(s) >= 2 && s[0] == '`' && s[len(s)-1] == '`' {
		return unescape(s[1 : len(s)-1])
	}
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return unescape(s[1 : len(s)-1])
	}
	return s
}

func unescape(s string) string {
	r := strings.NewReplacer(`\'`, `'`, "\\`", "`", `\\`, `\`, `\n`, "\n", `\r`, "\r", `\t`, "\t")
	return r.Replace(s)
}
