// Package funcs provides FHIRPath function implementations.
// This file registers the is() function.
//
// According to FHIRPath specification:
// - is(type): Returns true if the input is of the specified type
//
// is() is equivalent to the 'is' operator but in function form.
// Example: Patient.name.first().is(HumanName) is equivalent to Patient.name.first() is HumanName
package funcs

func init() {
	// is() always has exactly one argument (the type specifier), which
	// must stay an unevaluated AST node so "Patient" etc. isn't
	// interpreted as a path expression. eval/functioncall.go always
	// intercepts it as a lambda before reaching the registry; this
	// registration only supplies the arity bounds.
	Register(FuncDef{
		Name:    "is",
		MinArgs: 1,
		MaxArgs: 1,
		Fn:      fnLambdaOnly("is"),
	})
}
