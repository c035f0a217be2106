// Package fields collects the input-bearing nodes of a schema.
//
// Extraction is a read-only walk: expressions are not evaluated and form
// values are not needed. When a values snapshot is supplied, visibility is
// decided by the same evaluator the resolver uses, so the field list matches
// the rendered tree of the same pass.
package fields

import (
	"fmt"

	"github.com/goliatone/go-formschema/pkg/component"
	"github.com/goliatone/go-formschema/pkg/schema"
	"github.com/goliatone/go-formschema/pkg/visibility"
	"github.com/goliatone/go-formschema/pkg/visibility/expr"
)

// Descriptor is one extracted field.
type Descriptor struct {
	Name      string          `json:"name"`
	Key       string          `json:"key"`
	Component string          `json:"component"`
	Kind      component.Kind  `json:"kind"`
	Label     string          `json:"label"`
	Props     component.Props `json:"props,omitempty"`
	Rules     *schema.Rules   `json:"rules,omitempty"`
	Visible   bool            `json:"visible"`
	Custom    bool            `json:"custom"`
}

// Option configures Extract.
type Option func(*options)

type options struct {
	catalog       *Catalog
	evaluator     visibility.Evaluator
	values        map[string]any
	external      map[string]any
	snapshot      bool
	includeHidden bool
}

// WithCatalog replaces the default input catalog.
func WithCatalog(c *Catalog) Option {
	return func(o *options) {
		if c != nil {
			o.catalog = c
		}
	}
}

// WithEvaluator sets the evaluator used for expression visibility rules.
func WithEvaluator(ev visibility.Evaluator) Option {
	return func(o *options) {
		if ev != nil {
			o.evaluator = ev
		}
	}
}

// WithValues switches to snapshot mode: visibility rules are evaluated
// against values and hidden fields are left out.
func WithValues(values map[string]any) Option {
	return func(o *options) {
		o.values = values
		o.snapshot = true
	}
}

// WithExternalContext exposes external context to expression rules in
// snapshot mode.
func WithExternalContext(ctx map[string]any) Option {
	return func(o *options) {
		o.external = ctx
	}
}

// IncludeHidden keeps hidden fields in snapshot mode, flagged Visible=false.
func IncludeHidden() Option {
	return func(o *options) {
		o.includeHidden = true
	}
}

// Extract returns the fields of root in declaration order.
//
// Without WithValues every field is returned and Visible reports whether the
// field and all its ancestors are unconditional. With WithValues, Visible is
// the evaluated result and hidden fields (including everything under a hidden
// group) are omitted unless IncludeHidden is set.
func Extract(root *schema.Node, opts ...Option) ([]Descriptor, error) {
	if root == nil {
		return nil, schema.NewStructuralError("", "root node is nil", nil)
	}
	cfg := options{catalog: NewCatalog()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.evaluator == nil {
		cfg.evaluator = expr.New()
	}

	w := &walker{
		options: cfg,
		ctx:     visibility.Context{Values: cfg.values, Extras: cfg.external},
		onPath:  make(map[*schema.Node]struct{}),
	}
	if err := w.walk(root, "", "", true); err != nil {
		return nil, err
	}
	return w.out, nil
}

// Names returns the descriptor names in order.
func Names(descriptors []Descriptor) []string {
	names := make([]string, len(descriptors))
	for i, d := range descriptors {
		names[i] = d.Name
	}
	return names
}

type walker struct {
	options
	ctx    visibility.Context
	onPath map[*schema.Node]struct{}
	out    []Descriptor
}

func (w *walker) walk(node *schema.Node, key, path string, parentVisible bool) error {
	if _, seen := w.onPath[node]; seen {
		return schema.NewStructuralError(path, "node references one of its ancestors", schema.ErrCircular)
	}
	w.onPath[node] = struct{}{}
	defer delete(w.onPath, node)

	visible := parentVisible
	if cond := node.VisibleWhen(); cond != nil {
		if w.snapshot {
			ok, err := visibility.Check(cond, path, w.evaluator, w.ctx)
			if err != nil {
				return fmt.Errorf("fields: %w", err)
			}
			visible = visible && ok
		} else {
			visible = false
		}
	}
	if w.snapshot && !visible && !w.includeHidden {
		return nil
	}

	if isField, custom := w.catalog.Classify(node); isField && path != "" {
		props := component.Props(schema.CloneMap(node.ComponentProps))
		w.out = append(w.out, Descriptor{
			Name:      path,
			Key:       key,
			Component: node.ComponentID(),
			Kind:      w.catalog.Kind(node.ComponentID()),
			Label:     node.Label(key),
			Props:     props,
			Rules:     node.Rules.Clone(),
			Visible:   visible,
			Custom:    custom,
		})
	}

	var err error
	node.Properties.Each(func(childKey string, child *schema.Node) bool {
		childPath := schema.JoinPath(path, childKey)
		if child == nil {
			err = schema.NewStructuralError(childPath, "property is nil", nil)
			return false
		}
		err = w.walk(child, childKey, childPath, visible)
		return err == nil
	})
	return err
}
