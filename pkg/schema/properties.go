package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Properties is an insertion-ordered mapping of child key to child node.
// Insertion order is render order.
type Properties struct {
	keys   []string
	values map[string]*Node
}

// NewProperties builds an empty ordered property set.
func NewProperties() *Properties {
	return &Properties{values: make(map[string]*Node)}
}

// PropertiesOf builds an ordered set from alternating key/node pairs, which
// keeps hand-written schemas in tests readable:
//
//	schema.PropertiesOf("firstName", first, "lastName", last)
func PropertiesOf(pairs ...any) *Properties {
	props := NewProperties()
	for i := 0; i+1 < len(pairs); i += 2 {
		key, _ := pairs[i].(string)
		node, _ := pairs[i+1].(*Node)
		props.Set(key, node)
	}
	return props
}

// Len returns the number of properties.
func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Keys returns the property keys in declaration order.
func (p *Properties) Keys() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.keys...)
}

// Get returns the child stored under key.
func (p *Properties) Get(key string) (*Node, bool) {
	if p == nil {
		return nil, false
	}
	node, ok := p.values[key]
	return node, ok
}

// Set stores node under key. New keys are appended; existing keys keep their
// position.
func (p *Properties) Set(key string, node *Node) {
	if p.values == nil {
		p.values = make(map[string]*Node)
	}
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = node
}

// Each visits properties in order until fn returns false.
func (p *Properties) Each(fn func(key string, node *Node) bool) {
	if p == nil || fn == nil {
		return
	}
	for _, key := range p.keys {
		if !fn(key, p.values[key]) {
			return
		}
	}
}

// MarshalJSON writes the properties as an object in declaration order.
func (p *Properties) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')
		encodedNode, err := json.Marshal(p.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(encodedNode)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object while keeping key order. Any other JSON
// shape is reported as a structural error.
func (p *Properties) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return &StructuralError{Reason: fmt.Sprintf("properties must be an object, got %s", describeJSON(data))}
	}

	*p = Properties{values: make(map[string]*Node)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return &StructuralError{Reason: "properties key must be a string"}
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		node, err := decodeChild(key, raw)
		if err != nil {
			return err
		}
		p.Set(key, node)
	}
	_, err = dec.Token()
	return err
}

func decodeChild(key string, raw json.RawMessage) (*Node, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &StructuralError{Path: key, Reason: fmt.Sprintf("property must be an object, got %s", describeJSON(trimmed))}
	}
	var node Node
	if err := json.Unmarshal(trimmed, &node); err != nil {
		return nil, prefixStructural(key, err)
	}
	return &node, nil
}

// MarshalYAML emits an ordered mapping node.
func (p *Properties) MarshalYAML() (any, error) {
	if p == nil {
		return nil, nil
	}
	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, key := range p.keys {
		var value yaml.Node
		if err := value.Encode(p.values[key]); err != nil {
			return nil, err
		}
		mapping.Content = append(mapping.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			&value,
		)
	}
	return mapping, nil
}

// UnmarshalYAML decodes a YAML mapping while keeping key order.
func (p *Properties) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return &StructuralError{Reason: fmt.Sprintf("properties must be a mapping (line %d)", value.Line)}
	}
	*p = Properties{values: make(map[string]*Node)}
	for i := 0; i+1 < len(value.Content); i += 2 {
		keyNode, valueNode := value.Content[i], value.Content[i+1]
		key := keyNode.Value
		if valueNode.Kind != yaml.MappingNode {
			return &StructuralError{Path: key, Reason: fmt.Sprintf("property must be a mapping (line %d)", valueNode.Line)}
		}
		var node Node
		if err := valueNode.Decode(&node); err != nil {
			return prefixStructural(key, err)
		}
		p.Set(key, &node)
	}
	return nil
}

func prefixStructural(key string, err error) error {
	var structural *StructuralError
	if errors.As(err, &structural) {
		return &StructuralError{Path: JoinPath(key, structural.Path), Reason: structural.Reason}
	}
	return err
}

func describeJSON(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return "empty value"
	}
	switch trimmed[0] {
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
