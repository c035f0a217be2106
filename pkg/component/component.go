// Package component defines the framework-neutral contracts shared by the
// resolver and the runtime adapters: component specs, their factories and
// the props they receive.
package component

import (
	"errors"
	"fmt"
	"strings"
)

// Kind describes the value-binding contract of a component. It decides the
// empty value a field starts with and which validation rules apply.
type Kind string

const (
	KindText      Kind = "text"
	KindNumber    Kind = "number"
	KindBoolean   Kind = "boolean"
	KindSelect    Kind = "select"
	KindMulti     Kind = "multi"
	KindDate      Kind = "date"
	KindContainer Kind = "container"
	KindDisplay   Kind = "display"
	KindCustom    Kind = "custom"
)

// EmptyValue returns the value a field of this kind holds before the user
// touches it.
func (k Kind) EmptyValue() any {
	switch k {
	case KindText, KindSelect, KindDate:
		return ""
	case KindBoolean:
		return false
	case KindMulti:
		return []any{}
	default:
		return nil
	}
}

// Element is whatever a runtime adapter produces for one node.
type Element = any

// Factory builds the concrete element for a node from its final props.
type Factory func(props Props, adapter Adapter) (Element, error)

// Spec is one registry entry. Specs are built once at setup and treated as
// immutable afterwards.
type Spec struct {
	ID      string
	Type    Kind
	Factory Factory
}

// ErrNoFactory is returned by Build when the spec has no factory.
var ErrNoFactory = errors.New("component: spec has no factory")

// Build invokes the factory.
func (s Spec) Build(props Props, adapter Adapter) (Element, error) {
	if s.Factory == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoFactory, s.ID)
	}
	return s.Factory(props, adapter)
}

// Validate checks the spec is usable as a registry entry.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("component: spec id is required")
	}
	if s.Factory == nil {
		return fmt.Errorf("%w: %q", ErrNoFactory, s.ID)
	}
	return nil
}

// Adapter turns resolved nodes into concrete UI elements. The resolver never
// calls it; runtime.Materialize does, exactly once per renderable node.
type Adapter interface {
	Create(spec Spec, props Props) (Element, error)
	Fragment(children []Element) (Element, error)
	IsValidElement(value any) bool
	Children(element Element) []Element
	// SetProps is best effort; adapters with immutable elements may no-op.
	SetProps(element Element, props Props)
}
