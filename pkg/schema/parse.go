package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Parse decodes a schema document. JSON is tried first and YAML second, the
// same order the UI schema loader uses.
func Parse(data []byte) (*Node, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("schema: document is empty")
	}
	if trimmed[0] == '{' {
		return ParseJSON(trimmed)
	}
	return ParseYAML(trimmed)
}

// ParseJSON decodes a JSON schema document.
func ParseJSON(data []byte) (*Node, error) {
	var node Node
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, wrapDecodeErr(err)
	}
	return &node, nil
}

// ParseYAML decodes a YAML schema document, preserving property order.
func ParseYAML(data []byte) (*Node, error) {
	var node Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, wrapDecodeErr(err)
	}
	return &node, nil
}

// FromMap converts a generic map (as produced by decoding untyped JSON) into a
// Node. Go maps carry no order; encoding/json writes map keys sorted, so
// properties come back sorted by key.
func FromMap(raw map[string]any) (*Node, error) {
	if raw == nil {
		return nil, errors.New("schema: map is nil")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("schema: encode map: %w", err)
	}
	return ParseJSON(data)
}

func wrapDecodeErr(err error) error {
	var structural *StructuralError
	if errors.As(err, &structural) {
		return structural
	}
	return fmt.Errorf("schema: decode document: %w", err)
}
