// Package resolver is the schema interpreter. ResolveTree walks a schema and
// produces a framework-neutral tree of resolved nodes, one pass at a time.
//
// For every node, in order: expressions are substituted on a copy of the
// node, visibility is checked (hidden nodes and their subtrees are pruned),
// the component is looked up (call scope first, then provider scope), props
// are merged (schema props < form bindings < per-instance overrides), the
// middleware chain runs, and children are resolved in declaration order.
//
// A pass is a pure function of the schema and the Env: it never writes the
// schema, the form values or the external context. Only malformed schemas
// and strict-mode failures abort a pass; everything else is reported as a
// diagnostic on the Result.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-formschema/pkg/component"
	"github.com/goliatone/go-formschema/pkg/debug"
	"github.com/goliatone/go-formschema/pkg/expression"
	"github.com/goliatone/go-formschema/pkg/middleware"
	"github.com/goliatone/go-formschema/pkg/registry"
	"github.com/goliatone/go-formschema/pkg/schema"
	"github.com/goliatone/go-formschema/pkg/visibility"
)

var (
	// ErrMissingComponent aborts a pass under MissingFail.
	ErrMissingComponent = errors.New("resolver: missing component")
	// ErrUnresolvedExpression aborts a pass in strict mode.
	ErrUnresolvedExpression = errors.New("resolver: unresolved expression")
)

// PlaceholderID is the component id of nodes emitted by MissingPlaceholder.
const PlaceholderID = "__missing__"

// ResolvedNode is the output for one visible schema node. Structural nodes
// have no component and no props; they exist to keep their children grouped.
type ResolvedNode struct {
	Key         string          `json:"key"`
	Path        string          `json:"path"`
	Component   string          `json:"component,omitempty"`
	Spec        component.Spec  `json:"-"`
	Props       component.Props `json:"props,omitempty"`
	Children    []*ResolvedNode `json:"children,omitempty"`
	Placeholder bool            `json:"placeholder,omitempty"`
}

// IsStructural reports whether the node only groups children.
func (n *ResolvedNode) IsStructural() bool {
	return n != nil && n.Component == ""
}

// Find returns the descendant (or n itself) at path.
func (n *ResolvedNode) Find(path string) *ResolvedNode {
	if n == nil {
		return nil
	}
	if n.Path == path {
		return n
	}
	for _, child := range n.Children {
		if found := child.Find(path); found != nil {
			return found
		}
	}
	return nil
}

// Walk visits n and its descendants depth first until fn returns false.
func (n *ResolvedNode) Walk(fn func(*ResolvedNode) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, child := range n.Children {
		if !child.Walk(fn) {
			return false
		}
	}
	return true
}

// Stats counts what happened during a pass. Rendered counts the resolved
// nodes with a component, one per Create during materialization. Structural
// groups are not counted and placeholders count as Missing.
type Stats struct {
	Rendered int `json:"rendered"`
	Hidden   int `json:"hidden"`
	Missing  int `json:"missing"`
	Failed   int `json:"failed"`
}

// Result is the outcome of one pass. Tree is nil when the root is hidden.
type Result struct {
	PassID      string             `json:"passId"`
	Tree        *ResolvedNode      `json:"tree"`
	Diagnostics []debug.Diagnostic `json:"diagnostics,omitempty"`
	// Errors holds the branch failures (middleware errors) that pruned parts
	// of the tree. They are also listed in Diagnostics.
	Errors []error `json:"-"`
	Stats  Stats   `json:"stats"`
}

// Err joins the branch failures, or returns nil.
func (r Result) Err() error {
	return errors.Join(r.Errors...)
}

// ResolveTree runs one resolution pass over root.
func ResolveTree(ctx context.Context, root *schema.Node, env Env) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if root == nil {
		return Result{}, schema.NewStructuralError("", "root node is nil", nil)
	}
	env.applyDefaults()

	passID := uuid.NewString()
	ctx, span := env.tracerProvider.Tracer(debug.TracerName).Start(ctx, "formschema.resolve",
		trace.WithAttributes(attribute.String("formschema.pass_id", passID)))
	defer span.End()

	values := schema.CloneMap(env.formValues)
	if values == nil {
		values = map[string]any{}
	}
	p := &pass{
		ctx:    ctx,
		env:    env,
		id:     passID,
		lookup: env.Registry(),
		scope:  expression.Scope{ExternalContext: env.externalContext, FormValues: values},
		vis:    visibility.Context{Values: values, Extras: env.externalContext},
		onPath: make(map[*schema.Node]struct{}),
	}
	p.trace(debug.Event{Kind: debug.KindPassStarted})

	tree, err := p.resolve(root, "", "")
	result := Result{
		PassID:      passID,
		Tree:        tree,
		Diagnostics: p.diagnostics,
		Errors:      p.errs,
		Stats:       p.stats,
	}
	span.SetAttributes(
		attribute.Int("formschema.rendered", p.stats.Rendered),
		attribute.Int("formschema.hidden", p.stats.Hidden),
		attribute.Int("formschema.missing", p.stats.Missing),
		attribute.Int("formschema.failed", p.stats.Failed),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	p.trace(debug.Event{Kind: debug.KindPassFinished})
	return result, nil
}

type pass struct {
	ctx    context.Context
	env    Env
	id     string
	lookup registry.Lookup
	scope  expression.Scope
	vis    visibility.Context
	onPath map[*schema.Node]struct{}

	diagnostics []debug.Diagnostic
	errs        []error
	stats       Stats
}

func (p *pass) trace(event debug.Event) {
	event.PassID = p.id
	p.env.tracer.Trace(p.ctx, event)
}

// report records an event as a diagnostic and traces it.
func (p *pass) report(event debug.Event) {
	p.diagnostics = append(p.diagnostics, event.Diagnostic())
	p.trace(event)
}

func (p *pass) resolve(node *schema.Node, key, path string) (*ResolvedNode, error) {
	if _, seen := p.onPath[node]; seen {
		return nil, schema.NewStructuralError(path, "node references one of its ancestors", schema.ErrCircular)
	}
	p.onPath[node] = struct{}{}
	defer delete(p.onPath, node)

	// 1. expressions
	var unresolved []expression.Miss
	resolved := expression.ResolveNode(node, p.scope, func(m expression.Miss) {
		unresolved = append(unresolved, m)
	})
	for _, miss := range unresolved {
		if p.env.strict {
			return nil, fmt.Errorf("%w: %s at %q", ErrUnresolvedExpression, miss.Token, path)
		}
		if p.env.debug {
			p.report(debug.Event{Kind: debug.KindExpressionMiss, Path: path, Component: node.ComponentID(), Detail: miss.Token})
		}
	}

	// 2. visibility
	visible, err := visibility.IsVisible(resolved, path, p.env.evaluator, p.vis)
	if err != nil {
		return nil, schema.NewStructuralError(path, err.Error(), err)
	}
	if !visible {
		p.stats.Hidden++
		if p.env.debug {
			p.trace(debug.Event{Kind: debug.KindNodeHidden, Path: path, Component: node.ComponentID()})
		}
		return nil, nil
	}

	out := &ResolvedNode{Key: key, Path: path}

	if resolved.IsRenderable() {
		id := resolved.ComponentID()

		// 3. registry
		spec, ok := p.lookup.Lookup(id)
		if !ok {
			return p.missing(id, key, path)
		}
		if spec.ID == "" {
			spec.ID = id
		}

		// 4. props
		props := p.merge(resolved, key, path)

		// 5. middleware
		info := middleware.Info{Path: path, Key: key, Component: id, Node: resolved, ExternalContext: p.env.externalContext}
		props, err = p.env.middlewares.ApplyObserved(props, info, func(index int, info middleware.Info, mwErr error) {
			if mwErr == nil && p.env.debug {
				p.trace(debug.Event{Kind: debug.KindMiddleware, Path: info.Path, Component: info.Component, Index: index})
			}
		})
		if err != nil {
			p.stats.Failed++
			p.errs = append(p.errs, err)
			var mwErr *middleware.Error
			index := -1
			if errors.As(err, &mwErr) {
				index = mwErr.Index
			}
			p.report(debug.Event{Kind: debug.KindMiddlewareError, Path: path, Component: id, Index: index, Err: err})
			return nil, nil
		}

		out.Component = id
		out.Spec = spec
		out.Props = props
	}

	// 6. children
	var childErr error
	node.Properties.Each(func(childKey string, child *schema.Node) bool {
		childPath := schema.JoinPath(path, childKey)
		if child == nil {
			childErr = schema.NewStructuralError(childPath, "property is nil", nil)
			return false
		}
		resolvedChild, err := p.resolve(child, childKey, childPath)
		if err != nil {
			childErr = err
			return false
		}
		if resolvedChild != nil {
			out.Children = append(out.Children, resolvedChild)
		}
		return true
	})
	if childErr != nil {
		return nil, childErr
	}

	// 7. emit
	if out.Component != "" {
		p.stats.Rendered++
	}
	return out, nil
}

func (p *pass) missing(id, key, path string) (*ResolvedNode, error) {
	p.stats.Missing++
	if p.env.missing == MissingFail {
		return nil, fmt.Errorf("%w: %q at %q", ErrMissingComponent, id, path)
	}
	if p.env.debug {
		p.report(debug.Event{Kind: debug.KindRegistryMiss, Path: path, Component: id})
		if p.env.missing == MissingPlaceholder {
			return &ResolvedNode{
				Key:         key,
				Path:        path,
				Component:   PlaceholderID,
				Spec:        component.Spec{ID: PlaceholderID, Type: component.KindDisplay},
				Props:       component.Props{"component": id, "path": path},
				Placeholder: true,
			}, nil
		}
	}
	return nil, nil
}
