package visibility

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cast"

	"github.com/goliatone/go-formschema/pkg/expression"
	"github.com/goliatone/go-formschema/pkg/schema"
)

// ErrInvalidRule marks a visibility rule that cannot be parsed or compiled.
// It is a schema error, not a runtime condition.
var ErrInvalidRule = errors.New("visibility: invalid rule")

// Evaluator decides whether an expression rule holds for the node at
// fieldPath.
type Evaluator interface {
	Eval(fieldPath, rule string, ctx Context) (bool, error)
}

// Context provides inputs to an Evaluator. Values is the form-values
// snapshot; Extras carries the external context.
type Context struct {
	Values map[string]any
	Extras map[string]any
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(fieldPath, rule string, ctx Context) (bool, error)

// Eval delegates to the underlying function.
func (fn EvaluatorFunc) Eval(fieldPath, rule string, ctx Context) (bool, error) {
	return fn(fieldPath, rule, ctx)
}

// IsVisible reports whether node participates in the tree. Nodes without a
// visibleWhen rule are always visible. Expression rules go through ev;
// structured predicates are compared against ctx.Values directly.
func IsVisible(node *schema.Node, fieldPath string, ev Evaluator, ctx Context) (bool, error) {
	return Check(node.VisibleWhen(), fieldPath, ev, ctx)
}

// Check evaluates a single condition. A nil condition holds.
func Check(cond *schema.Condition, fieldPath string, ev Evaluator, ctx Context) (bool, error) {
	if cond == nil {
		return true, nil
	}
	if cond.IsExpression() {
		if ev == nil {
			return false, fmt.Errorf("visibility: no evaluator configured for rule %q at %q", cond.Expr, fieldPath)
		}
		return ev.Eval(fieldPath, cond.Expr, ctx)
	}

	field := strings.TrimSpace(cond.Field)
	if field == "" {
		return false, fmt.Errorf("%w: condition at %q has no field", ErrInvalidRule, fieldPath)
	}
	value, _ := expression.Lookup(ctx.Values, field)

	switch cond.Op {
	case schema.OpEquals:
		return Equal(value, cond.Value), nil
	case schema.OpNotEquals:
		return !Equal(value, cond.Value), nil
	case schema.OpIn:
		options, ok := cond.Value.([]any)
		if !ok {
			return false, fmt.Errorf("%w: %q expects a list at %q", ErrInvalidRule, schema.OpIn, fieldPath)
		}
		for _, option := range options {
			if Equal(value, option) {
				return true, nil
			}
		}
		return false, nil
	case schema.OpTruthy, "":
		return Truthy(value), nil
	case schema.OpFalsy:
		return !Truthy(value), nil
	default:
		return false, fmt.Errorf("%w: unknown operator %q at %q", ErrInvalidRule, cond.Op, fieldPath)
	}
}

// Equal compares a form value with a rule literal. Numbers compare by value
// regardless of their Go type, booleans accept their string spellings, and
// everything else falls back to string comparison.
func Equal(value, want any) bool {
	if value == nil || want == nil {
		return value == nil && want == nil
	}
	switch w := want.(type) {
	case bool:
		got, err := cast.ToBoolE(value)
		return err == nil && got == w
	case float64, float32, int, int64, int32, uint, uint64:
		wf, _ := cast.ToFloat64E(w)
		got, err := cast.ToFloat64E(value)
		return err == nil && got == wf
	case string:
		got, err := cast.ToStringE(value)
		return err == nil && got == w
	}
	return reflect.DeepEqual(value, want)
}

// Truthy applies the loose truthiness used by visibility rules: nil, false,
// zero numbers, blank strings and empty collections are false.
func Truthy(value any) bool {
	if value == nil {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return strings.TrimSpace(v) != ""
	}
	if f, err := cast.ToFloat64E(value); err == nil {
		return f != 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}
