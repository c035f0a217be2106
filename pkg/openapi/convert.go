package openapi

import (
	"encoding/json"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/goliatone/go-formschema/pkg/schema"
)

// Extensions honoured on OpenAPI schemas.
const (
	extComponent      = "x-component"
	extComponentProps = "x-component-props"
	extContent        = "x-content"
	extUI             = "x-ui"
	extRules          = "x-rules"
	extOrder          = "x-order"
)

type converter struct {
	options
	seen map[*openapi3.Schema]struct{}
}

// object converts an object schema into a grouping node.
func (c *converter) object(s *openapi3.Schema, path string) *schema.Node {
	node := &schema.Node{
		Type:        schema.TypeObject,
		Title:       s.Title,
		Description: s.Description,
		Properties:  schema.NewProperties(),
	}
	if id, ok := s.Extensions[extComponent].(string); ok {
		node.Component = id
		node.ComponentProps, _ = s.Extensions[extComponentProps].(map[string]any)
	}
	node.UI, _ = s.Extensions[extUI].(map[string]any)

	if _, cyclic := c.seen[s]; cyclic {
		c.logger.Debug("openapi: recursive schema not expanded", zap.String("path", path))
		return node
	}
	c.seen[s] = struct{}{}
	defer delete(c.seen, s)

	required := make(map[string]bool, len(s.Required))
	for _, name := range s.Required {
		required[name] = true
	}
	for _, key := range orderedKeys(s) {
		ref := s.Properties[key]
		childPath := schema.JoinPath(path, key)
		if ref == nil || ref.Value == nil {
			c.skip(childPath, "unresolved reference")
			continue
		}
		child := flatten(ref.Value)
		if isObject(child) {
			group := c.object(child, childPath)
			if group.Title == "" {
				group.Title = Humanize(key)
			}
			node.Properties.Set(key, group)
			continue
		}
		leaf, reason := c.field(key, child, required[key])
		if leaf == nil {
			c.skip(childPath, reason)
			continue
		}
		node.Properties.Set(key, leaf)
	}
	return node
}

func (c *converter) skip(path, reason string) {
	c.logger.Debug("openapi: property skipped", zap.String("path", path), zap.String("reason", reason))
}

// field converts a scalar (or enum array) schema into an input node.
func (c *converter) field(key string, s *openapi3.Schema, required bool) (*schema.Node, string) {
	if s.ReadOnly {
		return nil, "read-only"
	}

	props := map[string]any{}
	rules := map[string]any{}
	component := ""

	switch typ := primaryType(s); {
	case len(s.Enum) > 0 && typ != "boolean":
		component = "Select"
		props["options"] = enumOptions(s.Enum)
	case typ == "string":
		component = stringComponent(s.Format)
		if s.MinLength > 0 {
			rules[schema.RuleMinLength] = s.MinLength
		}
		if s.MaxLength != nil {
			rules[schema.RuleMaxLength] = *s.MaxLength
		}
		if s.Pattern != "" {
			rules[schema.RulePattern] = s.Pattern
		}
	case typ == "number" || typ == "integer":
		component = "InputNumber"
		if typ == "integer" {
			props["step"] = 1
		}
		if s.Min != nil {
			rules[schema.RuleMin] = *s.Min
		}
		if s.Max != nil {
			rules[schema.RuleMax] = *s.Max
		}
	case typ == "boolean":
		component = "Checkbox"
	case typ == "array":
		items := s.Items
		if items == nil || items.Value == nil || len(items.Value.Enum) == 0 {
			if _, ok := s.Extensions[extComponent]; !ok {
				return nil, "arrays are only supported with enum items"
			}
			break
		}
		component = "MultiSelect"
		props["options"] = enumOptions(items.Value.Enum)
		if s.MinItems > 0 {
			rules[schema.RuleMinLength] = s.MinItems
		}
		if s.MaxItems != nil {
			rules[schema.RuleMaxLength] = *s.MaxItems
		}
	default:
		if _, ok := s.Extensions[extComponent]; !ok {
			return nil, "unsupported type " + typ
		}
	}

	if required {
		rules[schema.RuleRequired] = true
	}
	if s.Default != nil {
		props["defaultValue"] = s.Default
	}
	if example, ok := s.Example.(string); ok && example != "" {
		props["placeholder"] = example
	}

	title := s.Title
	if title == "" {
		title = Humanize(key)
	}
	raw := map[string]any{"title": title, "x-component": component}
	if s.Description != "" {
		raw["description"] = s.Description
	}

	// Extensions override whatever was derived from the schema.
	if id, ok := s.Extensions[extComponent].(string); ok && id != "" {
		raw["x-component"] = id
	}
	if extra, ok := s.Extensions[extComponentProps].(map[string]any); ok {
		for k, v := range extra {
			props[k] = v
		}
	}
	if extra, ok := s.Extensions[extRules].(map[string]any); ok {
		for k, v := range extra {
			rules[k] = v
		}
	}
	if ui, ok := s.Extensions[extUI].(map[string]any); ok {
		raw["x-ui"] = ui
	}
	if content, ok := s.Extensions[extContent].(string); ok {
		raw["x-content"] = content
	}
	if len(props) > 0 {
		raw["x-component-props"] = props
	}
	if len(rules) > 0 {
		raw["x-rules"] = rules
	}

	node, err := schema.FromMap(raw)
	if err != nil {
		return nil, err.Error()
	}
	return node, ""
}

func stringComponent(format string) string {
	switch format {
	case "email":
		return "InputEmail"
	case "password":
		return "InputPassword"
	case "date", "date-time":
		return "DatePicker"
	case "textarea":
		return "Textarea"
	}
	return "InputText"
}

func enumOptions(enum []any) []any {
	out := make([]any, 0, len(enum))
	for _, value := range enum {
		out = append(out, map[string]any{"label": cast.ToString(value), "value": value})
	}
	return out
}

// primaryType returns the first non-null type.
func primaryType(s *openapi3.Schema) string {
	for _, typ := range s.Type.Slice() {
		if typ != "null" {
			return typ
		}
	}
	return ""
}

func isObject(s *openapi3.Schema) bool {
	if primaryType(s) == "object" {
		return true
	}
	return primaryType(s) == "" && len(s.Properties) > 0
}

// orderedKeys sorts properties by their x-order extension, then by name.
func orderedKeys(s *openapi3.Schema) []string {
	keys := make([]string, 0, len(s.Properties))
	for key := range s.Properties {
		keys = append(keys, key)
	}
	order := func(key string) float64 {
		ref := s.Properties[key]
		if ref == nil || ref.Value == nil {
			return 1 << 30
		}
		raw, ok := ref.Value.Extensions[extOrder]
		if !ok {
			return 1 << 30
		}
		v, err := cast.ToFloat64E(raw)
		if err != nil {
			return 1 << 30
		}
		return v
	}
	sort.SliceStable(keys, func(i, j int) bool {
		oi, oj := order(keys[i]), order(keys[j])
		if oi != oj {
			return oi < oj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// flatten merges allOf members into a copy of s: properties, required
// names, extensions and the missing scalar attributes.
func flatten(s *openapi3.Schema) *openapi3.Schema {
	if len(s.AllOf) == 0 {
		return s
	}
	out := *s
	out.AllOf = nil
	out.Properties = make(openapi3.Schemas, len(s.Properties))
	for k, v := range s.Properties {
		out.Properties[k] = v
	}
	out.Required = append([]string(nil), s.Required...)
	out.Extensions = make(map[string]any, len(s.Extensions))
	for k, v := range s.Extensions {
		out.Extensions[k] = v
	}

	for _, ref := range s.AllOf {
		if ref == nil || ref.Value == nil {
			continue
		}
		member := flatten(ref.Value)
		if out.Type == nil {
			out.Type = member.Type
		}
		if out.Title == "" {
			out.Title = member.Title
		}
		if out.Description == "" {
			out.Description = member.Description
		}
		for k, v := range member.Properties {
			if _, exists := out.Properties[k]; !exists {
				out.Properties[k] = v
			}
		}
		out.Required = append(out.Required, member.Required...)
		for k, v := range member.Extensions {
			if _, exists := out.Extensions[k]; !exists {
				out.Extensions[k] = v
			}
		}
	}
	return &out
}

// MarshalNode renders an imported schema as indented JSON in declaration
// order.
func MarshalNode(node *schema.Node) ([]byte, error) {
	return json.MarshalIndent(node, "", "  ")
}
