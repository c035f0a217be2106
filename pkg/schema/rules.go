package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule names recognised inside x-rules.
const (
	RuleRequired    = "required"
	RuleMinLength   = "minLength"
	RuleMaxLength   = "maxLength"
	RulePattern     = "pattern"
	RuleMin         = "min"
	RuleMax         = "max"
	RuleVisibleWhen = "visibleWhen"
	RuleMessages    = "messages"
)

// Rules holds the declarative validation and visibility rules of a node.
// Entries that are unknown, or whose parameter has the wrong shape, are kept
// verbatim in Extra so downstream generators can report them.
type Rules struct {
	Required    bool
	MinLength   *int
	MaxLength   *int
	Pattern     string
	Min         *float64
	Max         *float64
	VisibleWhen *Condition
	Messages    map[string]string
	Extra       map[string]any
}

// Clone returns a deep copy of the rules.
func (r *Rules) Clone() *Rules {
	if r == nil {
		return nil
	}
	out := *r
	if r.MinLength != nil {
		v := *r.MinLength
		out.MinLength = &v
	}
	if r.MaxLength != nil {
		v := *r.MaxLength
		out.MaxLength = &v
	}
	if r.Min != nil {
		v := *r.Min
		out.Min = &v
	}
	if r.Max != nil {
		v := *r.Max
		out.Max = &v
	}
	out.VisibleWhen = r.VisibleWhen.Clone()
	if r.Messages != nil {
		out.Messages = make(map[string]string, len(r.Messages))
		for k, v := range r.Messages {
			out.Messages[k] = v
		}
	}
	out.Extra = CloneMap(r.Extra)
	return &out
}

// HasConstraints reports whether any validation constraint (as opposed to a
// visibility rule) is declared.
func (r *Rules) HasConstraints() bool {
	if r == nil {
		return false
	}
	return r.Required || r.MinLength != nil || r.MaxLength != nil || r.Pattern != "" ||
		r.Min != nil || r.Max != nil || len(r.Extra) > 0
}

// UnmarshalJSON decodes the known rule names and keeps everything else in
// Extra.
func (r *Rules) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return &StructuralError{Reason: "x-rules must be an object"}
	}
	*r = Rules{}
	keep := func(key string, value json.RawMessage) {
		var decoded any
		_ = json.Unmarshal(value, &decoded)
		if r.Extra == nil {
			r.Extra = make(map[string]any)
		}
		r.Extra[key] = decoded
	}

	for key, value := range raw {
		switch key {
		case RuleRequired:
			if err := json.Unmarshal(value, &r.Required); err != nil {
				keep(key, value)
			}
		case RuleMinLength:
			if n, ok := decodeInt(value); ok {
				r.MinLength = &n
			} else {
				keep(key, value)
			}
		case RuleMaxLength:
			if n, ok := decodeInt(value); ok {
				r.MaxLength = &n
			} else {
				keep(key, value)
			}
		case RulePattern:
			if err := json.Unmarshal(value, &r.Pattern); err != nil {
				keep(key, value)
			}
		case RuleMin:
			var f float64
			if err := json.Unmarshal(value, &f); err != nil {
				keep(key, value)
			} else {
				r.Min = &f
			}
		case RuleMax:
			var f float64
			if err := json.Unmarshal(value, &f); err != nil {
				keep(key, value)
			} else {
				r.Max = &f
			}
		case RuleVisibleWhen, "visible-when":
			var cond Condition
			if err := json.Unmarshal(value, &cond); err != nil {
				return err
			}
			r.VisibleWhen = &cond
		case RuleMessages:
			if err := json.Unmarshal(value, &r.Messages); err != nil {
				keep(key, value)
			}
		default:
			keep(key, value)
		}
	}
	return nil
}

// MarshalJSON writes known rules first, then Extra entries sorted by name.
func (r *Rules) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	type entry struct {
		key   string
		value any
	}
	var entries []entry
	if r.Required {
		entries = append(entries, entry{RuleRequired, true})
	}
	if r.MinLength != nil {
		entries = append(entries, entry{RuleMinLength, *r.MinLength})
	}
	if r.MaxLength != nil {
		entries = append(entries, entry{RuleMaxLength, *r.MaxLength})
	}
	if r.Pattern != "" {
		entries = append(entries, entry{RulePattern, r.Pattern})
	}
	if r.Min != nil {
		entries = append(entries, entry{RuleMin, *r.Min})
	}
	if r.Max != nil {
		entries = append(entries, entry{RuleMax, *r.Max})
	}
	if r.VisibleWhen != nil {
		entries = append(entries, entry{RuleVisibleWhen, r.VisibleWhen})
	}
	if len(r.Messages) > 0 {
		entries = append(entries, entry{RuleMessages, r.Messages})
	}
	extraKeys := make([]string, 0, len(r.Extra))
	for key := range r.Extra {
		extraKeys = append(extraKeys, key)
	}
	sort.Strings(extraKeys)
	for _, key := range extraKeys {
		entries = append(entries, entry{key, r.Extra[key]})
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(e.key)
		value, err := json.Marshal(e.value)
		if err != nil {
			return nil, fmt.Errorf("schema: marshal rule %q: %w", e.key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalYAML routes YAML rules through the JSON decoder so both formats
// share the same leniency.
func (r *Rules) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return &StructuralError{Reason: fmt.Sprintf("x-rules must be a mapping (line %d)", value.Line)}
	}
	var generic map[string]any
	if err := value.Decode(&generic); err != nil {
		return err
	}
	data, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("schema: x-rules: %w", err)
	}
	return r.UnmarshalJSON(data)
}

func decodeInt(raw json.RawMessage) (int, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// Condition operators for structured visibility predicates.
const (
	OpEquals    = "equals"
	OpNotEquals = "notEquals"
	OpIn        = "in"
	OpTruthy    = "truthy"
	OpFalsy     = "falsy"
)

// Condition is a visibility predicate. It is either an expression string
// (Expr) handed to a visibility evaluator, or a structured comparison of the
// form value at Field using Op and Value.
type Condition struct {
	Expr  string
	Field string
	Op    string
	Value any
}

// Clone returns a copy of the condition.
func (c *Condition) Clone() *Condition {
	if c == nil {
		return nil
	}
	out := *c
	out.Value = CloneValue(c.Value)
	return &out
}

// IsExpression reports whether the condition is an expression rule.
func (c *Condition) IsExpression() bool {
	return c != nil && strings.TrimSpace(c.Expr) != ""
}

// UnmarshalJSON accepts a string expression or a structured predicate:
//
//	"visibleWhen": "contact.method == 'email'"
//	"visibleWhen": {"field": "contact.method", "equals": "email"}
func (c *Condition) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		*c = Condition{}
		return json.Unmarshal(trimmed, &c.Expr)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return &StructuralError{Reason: "visibleWhen must be a string or an object"}
	}
	*c = Condition{}
	if field, ok := raw["field"]; ok {
		if err := json.Unmarshal(field, &c.Field); err != nil {
			return &StructuralError{Reason: "visibleWhen.field must be a string"}
		}
	}
	if strings.TrimSpace(c.Field) == "" {
		return &StructuralError{Reason: "visibleWhen.field is required"}
	}
	for _, op := range []string{OpEquals, OpNotEquals, OpIn, OpTruthy, OpFalsy} {
		value, ok := raw[op]
		if !ok {
			continue
		}
		if c.Op != "" {
			return &StructuralError{Reason: fmt.Sprintf("visibleWhen declares both %q and %q", c.Op, op)}
		}
		c.Op = op
		if err := json.Unmarshal(value, &c.Value); err != nil {
			return &StructuralError{Reason: fmt.Sprintf("visibleWhen.%s: %v", op, err)}
		}
	}
	if c.Op == "" {
		c.Op = OpTruthy
		c.Value = true
	}
	if c.Op == OpIn {
		if _, ok := c.Value.([]any); !ok {
			return &StructuralError{Reason: "visibleWhen.in must be an array"}
		}
	}
	return nil
}

// MarshalJSON mirrors UnmarshalJSON.
func (c *Condition) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	if c.IsExpression() {
		return json.Marshal(c.Expr)
	}
	op := c.Op
	if op == "" {
		op = OpTruthy
	}
	return json.Marshal(map[string]any{"field": c.Field, op: c.Value})
}

// UnmarshalYAML accepts the same two shapes as UnmarshalJSON.
func (c *Condition) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*c = Condition{Expr: value.Value}
		return nil
	}
	var generic any
	if err := value.Decode(&generic); err != nil {
		return err
	}
	data, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("schema: visibleWhen: %w", err)
	}
	return c.UnmarshalJSON(data)
}
