package runtime

import (
	"github.com/goliatone/go-formschema/pkg/component"
	"github.com/goliatone/go-formschema/pkg/fields"
	"github.com/goliatone/go-formschema/pkg/registry"
)

// Layout and display component ids registered by DefaultRegistry.
const (
	FormSection = "FormSection"
	Fieldset    = "Fieldset"
	Heading     = "Heading"
	Text        = "Text"
	Divider     = "Divider"
)

var layout = map[string]component.Kind{
	FormSection: component.KindContainer,
	Fieldset:    component.KindContainer,
	Heading:     component.KindDisplay,
	Text:        component.KindDisplay,
	Divider:     component.KindDisplay,
}

// BuiltinSpecs returns specs for the built-in inputs and the layout
// components. Every factory produces an *Element.
func BuiltinSpecs() []component.Spec {
	catalog := fields.NewCatalog()
	specs := make([]component.Spec, 0, len(fields.Builtins())+len(layout))
	for _, id := range fields.Builtins() {
		specs = append(specs, elementSpec(id, catalog.Kind(id)))
	}
	for _, id := range []string{FormSection, Fieldset, Heading, Text, Divider} {
		specs = append(specs, elementSpec(id, layout[id]))
	}
	return specs
}

// DefaultRegistry returns a new registry holding BuiltinSpecs.
func DefaultRegistry() *registry.Registry {
	return registry.New(BuiltinSpecs()...)
}

func elementSpec(id string, kind component.Kind) component.Spec {
	spec := component.Spec{ID: id, Type: kind}
	spec.Factory = ElementFactory(spec)
	return spec
}
