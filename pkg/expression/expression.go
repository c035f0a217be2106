package expression

import (
	"regexp"
	"strings"
)

// Roots addressable from a token.
const (
	RootExternalContext = "externalContext"
	RootFormValues      = "formValues"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*\$([A-Za-z_][A-Za-z0-9_]*)((?:\.[A-Za-z0-9_\-]+)*)\s*\}\}`)

// Scope holds the two read-only data sources tokens resolve against.
type Scope struct {
	ExternalContext map[string]any
	FormValues      map[string]any
}

// Miss records a token whose path did not resolve to a value.
type Miss struct {
	Token string
	Root  string
	Path  string
}

// Reporter receives misses while resolving. A nil Reporter discards them.
type Reporter func(Miss)

// HasExpression reports whether s contains at least one recognised token.
func HasExpression(s string) bool {
	if !strings.Contains(s, "{{") {
		return false
	}
	for _, match := range tokenPattern.FindAllStringSubmatch(s, -1) {
		if knownRoot(match[1]) {
			return true
		}
	}
	return false
}

// Resolve is the scalar contract: strings have their tokens substituted,
// any other value is returned unchanged.
func Resolve(value any, scope Scope) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	return ResolveString(s, scope)
}

// ResolveString substitutes every token in input.
func ResolveString(input string, scope Scope) string {
	out, _ := Expand(input, scope)
	return out
}

// Expand substitutes every token in input and returns the tokens that did not
// resolve. Unresolved tokens become the empty string.
func Expand(input string, scope Scope) (string, []Miss) {
	var misses []Miss
	out := expand(input, scope, func(m Miss) { misses = append(misses, m) })
	return out, misses
}

func expand(input string, scope Scope, report Reporter) string {
	if !strings.Contains(input, "{{") {
		return input
	}
	return tokenPattern.ReplaceAllStringFunc(input, func(token string) string {
		match := tokenPattern.FindStringSubmatch(token)
		root, path := match[1], strings.TrimPrefix(match[2], ".")

		var source map[string]any
		switch root {
		case RootExternalContext:
			source = scope.ExternalContext
		case RootFormValues:
			source = scope.FormValues
		default:
			return token
		}

		value, ok := Lookup(source, path)
		if !ok || value == nil {
			if report != nil {
				report(Miss{Token: token, Root: root, Path: path})
			}
			return ""
		}
		return Stringify(value)
	})
}

// ResolveDeep walks maps and slices and substitutes tokens in every string it
// finds. Containers are copied; the input is never modified.
func ResolveDeep(value any, scope Scope, report Reporter) any {
	switch typed := value.(type) {
	case string:
		return expand(typed, scope, report)
	case map[string]any:
		if typed == nil {
			return typed
		}
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = ResolveDeep(item, scope, report)
		}
		return out
	case []any:
		if typed == nil {
			return typed
		}
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = ResolveDeep(item, scope, report)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(typed))
		for key, item := range typed {
			out[key] = expand(item, scope, report)
		}
		return out
	case []string:
		out := make([]string, len(typed))
		for i, item := range typed {
			out[i] = expand(item, scope, report)
		}
		return out
	default:
		return value
	}
}

func knownRoot(root string) bool {
	return root == RootExternalContext || root == RootFormValues
}
