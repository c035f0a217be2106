package resolver

import (
	"github.com/goliatone/go-formschema/pkg/component"
	"github.com/goliatone/go-formschema/pkg/expression"
	"github.com/goliatone/go-formschema/pkg/schema"
)

// merge builds the props of a renderable node in ascending precedence:
// schema-declared props, then form bindings, then per-instance overrides.
func (p *pass) merge(node *schema.Node, key, path string) component.Props {
	props := component.Props{}

	// Schema-declared props. node is already a resolved copy, so its maps
	// can be shared without copying again.
	for k, v := range node.ComponentProps {
		props[k] = v
	}
	if _, ok := props[component.PropLabel]; !ok && node.Title != "" {
		props[component.PropLabel] = node.Title
	}
	if node.Content != "" {
		props[component.PropContent] = node.Content
	}
	if node.UI != nil {
		props[component.PropUI] = node.UI
	}

	// Bindings.
	if p.env.externalContext != nil {
		props[component.PropExternalContext] = p.env.externalContext
	}
	if isField, custom := p.env.catalog.Classify(node); isField && path != "" {
		props[component.PropName] = path
		if !custom {
			p.bindValue(props, node, path)
		}
	}

	// Overrides.
	for k, v := range p.env.overrides[path] {
		props[k] = schema.CloneValue(v)
	}
	return props
}

// bindValue sets value and onChange for standard inputs. A value present in
// the snapshot wins; otherwise a schema-declared value or defaultValue is
// kept, and the kind's empty value is used as the last resort.
func (p *pass) bindValue(props component.Props, node *schema.Node, path string) {
	if value, ok := expression.Lookup(p.scope.FormValues, path); ok {
		props[component.PropValue] = schema.CloneValue(value)
	} else if _, declared := props[component.PropValue]; !declared {
		if def, ok := props[component.PropDefaultValue]; ok {
			props[component.PropValue] = def
		} else {
			props[component.PropValue] = p.env.catalog.Kind(node.ComponentID()).EmptyValue()
		}
	}

	if setter := p.env.form; setter != nil {
		props[component.PropOnChange] = component.ChangeFunc(func(value any) {
			// Errors surface through the adapter's own error state.
			_ = setter.SetValue(path, value)
		})
	}
}
