package schema

import "strings"

// Node is one object of the declarative form description. A node with a
// Component is renderable; a node without one is a pure grouping node whose
// children are still traversed.
type Node struct {
	Type           string         `json:"type,omitempty" yaml:"type,omitempty"`
	Title          string         `json:"title,omitempty" yaml:"title,omitempty"`
	Description    string         `json:"description,omitempty" yaml:"description,omitempty"`
	Properties     *Properties    `json:"properties,omitempty" yaml:"properties,omitempty"`
	Component      string         `json:"x-component,omitempty" yaml:"x-component,omitempty"`
	ComponentProps map[string]any `json:"x-component-props,omitempty" yaml:"x-component-props,omitempty"`
	Content        string         `json:"x-content,omitempty" yaml:"x-content,omitempty"`
	UI             map[string]any `json:"x-ui,omitempty" yaml:"x-ui,omitempty"`
	Rules          *Rules         `json:"x-rules,omitempty" yaml:"x-rules,omitempty"`
}

// Structural kinds accepted by the `type` attribute.
const (
	TypeObject  = "object"
	TypeArray   = "array"
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
)

// IsRenderable reports whether the node names a component.
func (n *Node) IsRenderable() bool {
	return n != nil && strings.TrimSpace(n.Component) != ""
}

// ComponentID returns the trimmed component identifier.
func (n *Node) ComponentID() string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.Component)
}

// HasChildren reports whether the node declares at least one property.
func (n *Node) HasChildren() bool {
	return n != nil && n.Properties.Len() > 0
}

// VisibleWhen returns the node's visibility rule, or nil when the node is
// unconditionally visible.
func (n *Node) VisibleWhen() *Condition {
	if n == nil || n.Rules == nil {
		return nil
	}
	return n.Rules.VisibleWhen
}

// Label returns the human label for the node: x-component-props.label first,
// then title, then the supplied fallback (usually the property key).
func (n *Node) Label(fallback string) string {
	if n == nil {
		return fallback
	}
	if label, ok := n.ComponentProps["label"].(string); ok && strings.TrimSpace(label) != "" {
		return label
	}
	if strings.TrimSpace(n.Title) != "" {
		return n.Title
	}
	return fallback
}

// Clone returns a deep copy of the node, its rules and its subtree. Map values
// are copied recursively for map[string]any and []any containers.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.ComponentProps = CloneMap(n.ComponentProps)
	out.UI = CloneMap(n.UI)
	out.Rules = n.Rules.Clone()
	if n.Properties != nil {
		props := NewProperties()
		n.Properties.Each(func(key string, child *Node) bool {
			props.Set(key, child.Clone())
			return true
		})
		out.Properties = props
	}
	return &out
}

// CloneMap deep-copies generic JSON-like maps.
func CloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for key, value := range src {
		out[key] = CloneValue(value)
	}
	return out
}

// CloneValue deep-copies map[string]any and []any containers and returns any
// other value unchanged.
func CloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return CloneMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = CloneValue(item)
		}
		return out
	default:
		return value
	}
}

// JoinPath joins two dotted path fragments, skipping empty parts.
func JoinPath(parent, child string) string {
	parent = strings.TrimSpace(parent)
	child = strings.TrimSpace(child)
	if parent == "" {
		return child
	}
	if child == "" {
		return parent
	}
	return parent + "." + child
}
