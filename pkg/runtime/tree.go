package runtime

import (
	"github.com/goliatone/go-formschema/pkg/component"
)

// Element is the value produced by TreeAdapter: a plain description of a
// component instance that can be inspected or serialized.
type Element struct {
	Component string          `json:"component,omitempty"`
	Kind      component.Kind  `json:"kind,omitempty"`
	Props     component.Props `json:"props,omitempty"`
	Children  []*Element      `json:"children,omitempty"`
	Fragment  bool            `json:"fragment,omitempty"`
}

// Find returns the first element (depth first) whose name prop equals name.
func (e *Element) Find(name string) *Element {
	if e == nil {
		return nil
	}
	if e.Props.String(component.PropName) == name && name != "" {
		return e
	}
	for _, child := range e.Children {
		if found := child.Find(name); found != nil {
			return found
		}
	}
	return nil
}

// Count returns the number of non-fragment elements in the subtree.
func (e *Element) Count() int {
	if e == nil {
		return 0
	}
	n := 0
	if !e.Fragment {
		n = 1
	}
	for _, child := range e.Children {
		n += child.Count()
	}
	return n
}

// TreeAdapter is a data-only component.Adapter. Specs with a factory are
// built through it; specs without one become an *Element. It keeps a count of
// Create calls so callers can check materialization.
type TreeAdapter struct {
	Created int
}

var _ component.Adapter = (*TreeAdapter)(nil)

// NewTreeAdapter returns an empty adapter.
func NewTreeAdapter() *TreeAdapter {
	return &TreeAdapter{}
}

func (a *TreeAdapter) Create(spec component.Spec, props component.Props) (component.Element, error) {
	a.Created++
	if spec.Factory != nil {
		return spec.Build(props, a)
	}
	return NewElement(spec, props), nil
}

func (a *TreeAdapter) Fragment(children []component.Element) (component.Element, error) {
	return &Element{Fragment: true, Children: elements(children)}, nil
}

func (a *TreeAdapter) IsValidElement(value any) bool {
	el, ok := value.(*Element)
	return ok && el != nil
}

func (a *TreeAdapter) Children(element component.Element) []component.Element {
	el, ok := element.(*Element)
	if !ok || el == nil {
		return nil
	}
	out := make([]component.Element, len(el.Children))
	for i, child := range el.Children {
		out[i] = child
	}
	return out
}

func (a *TreeAdapter) SetProps(element component.Element, props component.Props) {
	if el, ok := element.(*Element); ok && el != nil {
		el.Props = props
	}
}

// NewElement describes spec with props. The children prop is lifted into
// Children and removed from Props.
func NewElement(spec component.Spec, props component.Props) *Element {
	el := &Element{Component: spec.ID, Kind: spec.Type, Props: props}
	if children, ok := props[component.PropChildren].([]component.Element); ok {
		el.Children = elements(children)
		el.Props = props.Clone()
		delete(el.Props, component.PropChildren)
	}
	return el
}

// ElementFactory is a component.Factory producing *Element values.
func ElementFactory(spec component.Spec) component.Factory {
	return func(props component.Props, _ component.Adapter) (component.Element, error) {
		return NewElement(spec, props), nil
	}
}

func elements(children []component.Element) []*Element {
	out := make([]*Element, 0, len(children))
	for _, child := range children {
		if el, ok := child.(*Element); ok && el != nil {
			out = append(out, el)
		}
	}
	return out
}
