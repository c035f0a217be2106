// Package expression substitutes template tokens embedded in schema strings.
//
// The grammar is intentionally tiny: a token is
//
//	{{ $externalContext.user.name }}
//	{{ $formValues.personalInfo.firstName }}
//
// and resolves to the stringified value found at the dotted path. Paths that
// are missing at any segment, or that hold nil, substitute the empty string.
// Tokens naming any other root are left in place untouched. There are no
// operators, function calls or arithmetic.
package expression
