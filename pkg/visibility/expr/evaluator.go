// Package expr is the default visibility evaluator: a small boolean rule
// language over form values and external context.
//
// Supported forms:
//   - truthiness: `newsletter`, `!optOut`
//   - comparisons: `method == "email"`, `age >= 18`, `plan != null`
//   - composition: `a && (b || !c)`
//
// Identifiers are dotted paths into the form values. The prefixes
// `$formValues.` and `$externalContext.` (or `extras.`) select the source
// explicitly. Missing paths read as null.
package expr

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cast"

	"github.com/goliatone/go-formschema/pkg/expression"
	"github.com/goliatone/go-formschema/pkg/visibility"
)

// Evaluator parses rules once and caches the compiled form. It is safe for
// concurrent use.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]node
}

var _ visibility.Evaluator = (*Evaluator)(nil)

func New() *Evaluator {
	return &Evaluator{cache: make(map[string]node)}
}

// Eval implements visibility.Evaluator. Syntax errors wrap
// visibility.ErrInvalidRule.
func (e *Evaluator) Eval(fieldPath, rule string, ctx visibility.Context) (bool, error) {
	compiled, err := e.compile(rule)
	if err != nil {
		return false, fmt.Errorf("%w: %q at %q: %v", visibility.ErrInvalidRule, rule, fieldPath, err)
	}
	if compiled == nil {
		return true, nil
	}
	return compiled.eval(ctx), nil
}

// Validate reports whether rule parses.
func (e *Evaluator) Validate(rule string) error {
	_, err := e.compile(rule)
	return err
}

func (e *Evaluator) compile(rule string) (node, error) {
	trimmed := strings.TrimSpace(rule)
	if trimmed == "" {
		return nil, nil
	}

	e.mu.RLock()
	cached, ok := e.cache[trimmed]
	e.mu.RUnlock()
	if ok {
		return cached, nil
	}

	tokens, err := tokenize(trimmed)
	if err != nil {
		return nil, err
	}
	parsed, err := parse(tokens)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.cache == nil {
		e.cache = make(map[string]node)
	}
	e.cache[trimmed] = parsed
	e.mu.Unlock()
	return parsed, nil
}

type node interface {
	eval(ctx visibility.Context) bool
}

type orNode struct{ left, right node }

func (n orNode) eval(ctx visibility.Context) bool {
	return n.left.eval(ctx) || n.right.eval(ctx)
}

type andNode struct{ left, right node }

func (n andNode) eval(ctx visibility.Context) bool {
	return n.left.eval(ctx) && n.right.eval(ctx)
}

type notNode struct{ inner node }

func (n notNode) eval(ctx visibility.Context) bool {
	return !n.inner.eval(ctx)
}

type truthyNode struct{ path string }

func (n truthyNode) eval(ctx visibility.Context) bool {
	return visibility.Truthy(lookup(ctx, n.path))
}

type compareNode struct {
	path    string
	op      tokenKind
	literal any
}

func (n compareNode) eval(ctx visibility.Context) bool {
	value := lookup(ctx, n.path)
	switch n.op {
	case tokenEq:
		return visibility.Equal(value, n.literal)
	case tokenNeq:
		return !visibility.Equal(value, n.literal)
	}

	got, err := cast.ToFloat64E(value)
	if err != nil || value == nil {
		return false
	}
	want, err := cast.ToFloat64E(n.literal)
	if err != nil {
		return false
	}
	switch n.op {
	case tokenLt:
		return got < want
	case tokenLte:
		return got <= want
	case tokenGt:
		return got > want
	case tokenGte:
		return got >= want
	}
	return false
}

func lookup(ctx visibility.Context, path string) any {
	source := ctx.Values
	lower := strings.ToLower(path)
	switch {
	case strings.HasPrefix(lower, "$externalcontext."):
		source, path = ctx.Extras, path[len("$externalContext."):]
	case strings.HasPrefix(lower, "extras."):
		source, path = ctx.Extras, path[len("extras."):]
	case strings.HasPrefix(lower, "$formvalues."):
		path = path[len("$formValues."):]
	}
	// Flattened keys such as "cta.headline" win over traversal.
	if value, ok := source[path]; ok {
		return value
	}
	value, _ := expression.Lookup(source, path)
	return value
}
