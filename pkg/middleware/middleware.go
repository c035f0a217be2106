// Package middleware transforms the merged props of every renderable node
// before its component is instantiated.
//
// A Chain runs in declaration order: Chain{Prefix("A-"), Prefix("B-")} turns
// the label "X" into "B-A-X". There is no priority or deduplication. A
// middleware that returns an error or panics aborts the node it was applied
// to; the resolver drops that branch and records the failure.
package middleware

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-formschema/pkg/component"
	"github.com/goliatone/go-formschema/pkg/schema"
)

// ErrPanic marks a middleware that panicked.
var ErrPanic = errors.New("middleware: panic")

// Info describes the node a middleware is applied to. Node is the
// expression-resolved copy; middleware must treat it as read-only.
type Info struct {
	Path            string
	Key             string
	Component       string
	Node            *schema.Node
	ExternalContext map[string]any
}

// Middleware transforms props. Implementations must not write form state.
type Middleware interface {
	Apply(props component.Props, info Info) (component.Props, error)
}

// Func adapts a function into a Middleware.
type Func func(props component.Props, info Info) (component.Props, error)

// Apply calls the wrapped function. A nil Func passes props through.
func (fn Func) Apply(props component.Props, info Info) (component.Props, error) {
	if fn == nil {
		return props, nil
	}
	return fn(props, info)
}

// Map lifts an infallible props rewrite into a Middleware.
func Map(fn func(props component.Props, info Info) component.Props) Middleware {
	return Func(func(props component.Props, info Info) (component.Props, error) {
		return fn(props, info), nil
	})
}

// Error reports which middleware failed on which node.
type Error struct {
	Index int
	Path  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("middleware: #%d failed at %q: %v", e.Index, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Chain is an ordered list of middleware.
type Chain []Middleware

// Observer is told about every middleware invocation. It is how debug
// instrumentation sees the chain without changing its outcome.
type Observer func(index int, info Info, err error)

// Apply runs the chain in order. Each middleware receives the previous one's
// output. The first failure stops the chain.
func (c Chain) Apply(props component.Props, info Info) (component.Props, error) {
	return c.ApplyObserved(props, info, nil)
}

// ApplyObserved is Apply with an invocation observer.
func (c Chain) ApplyObserved(props component.Props, info Info, observe Observer) (component.Props, error) {
	current := props
	for index, mw := range c {
		if mw == nil {
			continue
		}
		next, err := safeApply(mw, current, info)
		if err == nil && next == nil {
			err = errors.New("returned nil props")
		}
		if observe != nil {
			observe(index, info, err)
		}
		if err != nil {
			return nil, &Error{Index: index, Path: info.Path, Err: err}
		}
		current = next
	}
	return current, nil
}

// Append returns a new chain with more middleware after the existing ones.
func (c Chain) Append(more ...Middleware) Chain {
	out := make(Chain, 0, len(c)+len(more))
	out = append(out, c...)
	return append(out, more...)
}

func safeApply(mw Middleware, props component.Props, info Info) (out component.Props, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return mw.Apply(props, info)
}
