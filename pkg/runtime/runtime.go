// Package runtime turns resolved trees into concrete elements through a
// component.Adapter, and carries the active form and external context
// through context.Context for framework adapters.
package runtime

import (
	"context"
	"fmt"

	"github.com/goliatone/go-formschema/pkg/component"
	"github.com/goliatone/go-formschema/pkg/debug"
	"github.com/goliatone/go-formschema/pkg/resolver"
)

// Option configures Materialize.
type Option func(*materializer)

// WithTracer reports every created element as a KindComponentCreated event.
func WithTracer(t debug.Tracer) Option {
	return func(m *materializer) {
		if t != nil {
			m.tracer = t
		}
	}
}

// WithPassID stamps traced events with the pass that produced the tree.
func WithPassID(id string) Option {
	return func(m *materializer) {
		m.passID = id
	}
}

type materializer struct {
	ctx     context.Context
	adapter component.Adapter
	tracer  debug.Tracer
	passID  string
}

// Materialize builds the element for tree. Children are materialized first
// and passed to Create in the children prop; structural nodes become
// fragments. Create is called exactly once per renderable node. A nil tree
// yields a nil element.
func Materialize(ctx context.Context, tree *resolver.ResolvedNode, adapter component.Adapter, opts ...Option) (component.Element, error) {
	if adapter == nil {
		return nil, fmt.Errorf("runtime: adapter is required")
	}
	if tree == nil {
		return nil, nil
	}
	m := &materializer{ctx: ctx, adapter: adapter, tracer: debug.Nop}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m.node(tree)
}

func (m *materializer) node(n *resolver.ResolvedNode) (component.Element, error) {
	if err := m.ctx.Err(); err != nil {
		return nil, err
	}

	children := make([]component.Element, 0, len(n.Children))
	for _, child := range n.Children {
		el, err := m.node(child)
		if err != nil {
			return nil, err
		}
		if el != nil {
			children = append(children, el)
		}
	}

	if n.IsStructural() {
		el, err := m.adapter.Fragment(children)
		if err != nil {
			return nil, fmt.Errorf("runtime: fragment at %q: %w", n.Path, err)
		}
		return el, nil
	}

	props := n.Props.Clone()
	if props == nil {
		props = component.Props{}
	}
	if len(children) > 0 {
		props[component.PropChildren] = children
	}
	el, err := m.adapter.Create(n.Spec, props)
	if err != nil {
		return nil, fmt.Errorf("runtime: create %q at %q: %w", n.Component, n.Path, err)
	}
	m.tracer.Trace(m.ctx, debug.Event{PassID: m.passID, Kind: debug.KindComponentCreated, Path: n.Path, Component: n.Component})
	return el, nil
}
