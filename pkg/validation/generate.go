// Package validation derives a validation-ready schema and initial values
// from the fields of a form schema. It does not run validation itself; the
// output is shaped for JSON-Schema based validators.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/goliatone/go-formschema/pkg/component"
	"github.com/goliatone/go-formschema/pkg/debug"
	"github.com/goliatone/go-formschema/pkg/expression"
	"github.com/goliatone/go-formschema/pkg/fields"
	"github.com/goliatone/go-formschema/pkg/schema"
	"github.com/goliatone/go-formschema/pkg/visibility"
)

var defaultCatalog = NewCatalog()

// DefaultCatalog returns the shared catalog holding the built-in messages.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// Options configures Generate.
type Options struct {
	// Locale selects the message locale. Defaults to DefaultLocale.
	Locale string
	// Messages override rule templates for every field, keyed by rule name.
	// Per-field x-rules.messages take precedence over these.
	Messages map[string]string
	// Catalog renders templates. Defaults to DefaultCatalog().
	Catalog *Catalog
	// Translator resolves rule messages. Defaults to Catalog.
	Translator Translator
	// Values switches field extraction to snapshot mode so hidden fields are
	// not validated.
	Values map[string]any
	// ExternalContext is used to expand labels and to evaluate visibility.
	ExternalContext map[string]any
	// Evaluator evaluates expression visibility rules in snapshot mode.
	Evaluator visibility.Evaluator
	// FieldCatalog decides which nodes are fields.
	FieldCatalog *fields.Catalog
}

// Constraint is one derived rule for one field.
type Constraint struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

// Issue is a rule that could not be turned into a constraint.
type Issue struct {
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

// Diagnostic converts the issue for debug sinks.
func (i Issue) Diagnostic() debug.Diagnostic {
	return debug.Event{Kind: debug.KindValidationIssue, Path: i.Field, Detail: i.Message}.Diagnostic()
}

// Result is the generator output.
type Result struct {
	Schema        map[string]any `json:"validationSchema"`
	Constraints   []Constraint   `json:"constraints"`
	InitialValues map[string]any `json:"initialValues"`
	Issues        []Issue        `json:"issues,omitempty"`
}

// Generate derives the validation schema of root. Only malformed schemas
// return an error; unusable rules are reported as Issues and skipped.
//
// Without Options.Values every field is generated. Conditional fields keep
// their required constraint and message but are left out of the schema's
// required lists, since the condition cannot be expressed there.
func Generate(root *schema.Node, opts Options) (Result, error) {
	extractOpts := []fields.Option{
		fields.WithCatalog(opts.FieldCatalog),
		fields.WithEvaluator(opts.Evaluator),
		fields.WithExternalContext(opts.ExternalContext),
	}
	if opts.Values != nil {
		extractOpts = append(extractOpts, fields.WithValues(opts.Values))
	}
	descriptors, err := fields.Extract(root, extractOpts...)
	if err != nil {
		return Result{}, err
	}
	return FromFields(descriptors, opts), nil
}

// FromFields derives the validation schema from already extracted fields.
func FromFields(descriptors []fields.Descriptor, opts Options) Result {
	g := newGenerator(opts)
	for _, d := range descriptors {
		g.field(d)
	}
	return g.result
}

type generator struct {
	opts    Options
	catalog *Catalog
	tr      Translator
	locale  string
	scope   expression.Scope
	result  Result
}

func newGenerator(opts Options) *generator {
	catalog := opts.Catalog
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	tr := opts.Translator
	if tr == nil {
		tr = catalog
	}
	locale := strings.TrimSpace(opts.Locale)
	if locale == "" {
		locale = DefaultLocale
	}
	return &generator{
		opts:    opts,
		catalog: catalog,
		tr:      tr,
		locale:  locale,
		scope:   expression.Scope{ExternalContext: opts.ExternalContext, FormValues: opts.Values},
		result: Result{
			Schema:        objectSchema(),
			Constraints:   []Constraint{},
			InitialValues: map[string]any{},
		},
	}
}

func (g *generator) field(d fields.Descriptor) {
	if d.Custom && !d.Rules.HasConstraints() {
		return
	}

	setNested(g.result.InitialValues, d.Name, initialValue(d))

	prop := g.property(d.Name)
	if typ := jsonType(d); typ != "" {
		prop["type"] = typ
	}

	rules := d.Rules
	if rules == nil {
		return
	}
	label := expression.ResolveString(d.Label, g.scope)
	params := map[string]any{"label": label, "field": d.Name}
	messages := map[string]any{}

	add := func(rule, keyword string, value any) {
		params[rule] = value
		message := g.message(d, rule, params)
		g.result.Constraints = append(g.result.Constraints, Constraint{Field: d.Name, Rule: rule, Value: value, Message: message})
		messages[keyword] = message
		if keyword != "required" {
			prop[keyword] = value
		}
	}

	if rules.Required {
		if d.Visible {
			g.markRequired(d.Name)
		}
		add(schema.RuleRequired, "required", true)
	}
	if rules.MinLength != nil {
		if keyword, ok := lengthKeyword(d.Kind, "min"); ok {
			add(schema.RuleMinLength, keyword, *rules.MinLength)
		} else {
			g.issue(d.Name, schema.RuleMinLength, fmt.Sprintf("minLength does not apply to %s fields", d.Kind))
		}
	}
	if rules.MaxLength != nil {
		if keyword, ok := lengthKeyword(d.Kind, "max"); ok {
			add(schema.RuleMaxLength, keyword, *rules.MaxLength)
		} else {
			g.issue(d.Name, schema.RuleMaxLength, fmt.Sprintf("maxLength does not apply to %s fields", d.Kind))
		}
	}
	if rules.Pattern != "" {
		if _, err := regexp.Compile(rules.Pattern); err != nil {
			g.issue(d.Name, schema.RulePattern, fmt.Sprintf("invalid pattern %q: %v", rules.Pattern, err))
		} else {
			add(schema.RulePattern, "pattern", rules.Pattern)
		}
	}
	if rules.Min != nil {
		if numeric(d.Kind) {
			add(schema.RuleMin, "minimum", *rules.Min)
		} else {
			g.issue(d.Name, schema.RuleMin, fmt.Sprintf("min does not apply to %s fields", d.Kind))
		}
	}
	if rules.Max != nil {
		if numeric(d.Kind) {
			add(schema.RuleMax, "maximum", *rules.Max)
		} else {
			g.issue(d.Name, schema.RuleMax, fmt.Sprintf("max does not apply to %s fields", d.Kind))
		}
	}

	extra := make([]string, 0, len(rules.Extra))
	for name := range rules.Extra {
		extra = append(extra, name)
	}
	sort.Strings(extra)
	for _, name := range extra {
		if isKnownRule(name) {
			g.issue(d.Name, name, fmt.Sprintf("invalid parameter %v for rule %q", rules.Extra[name], name))
			continue
		}
		g.issue(d.Name, name, fmt.Sprintf("unknown rule %q", name))
	}

	if len(messages) > 0 {
		prop["errorMessage"] = messages
	}
}

// message picks the template in precedence order: the field's
// x-rules.messages, Options.Messages, then the translator.
func (g *generator) message(d fields.Descriptor, rule string, params map[string]any) string {
	display := make(map[string]any, len(params))
	for k, v := range params {
		display[k] = cast.ToString(v)
	}

	source, ok := d.Rules.Messages[rule]
	if !ok {
		source, ok = g.opts.Messages[rule]
	}
	var (
		out string
		err error
	)
	if ok {
		out, err = g.catalog.Render(expression.ResolveString(source, g.scope), display)
	} else {
		out, err = g.tr.Translate(g.locale, rule, display)
	}
	if err == nil {
		return out
	}
	if !errors.Is(err, ErrMissingTranslation) {
		g.issue(d.Name, rule, err.Error())
	} else {
		g.issue(d.Name, rule, fmt.Sprintf("no %q message for locale %q", rule, g.locale))
	}
	return fmt.Sprintf("%s: %s", display["label"], rule)
}

func (g *generator) issue(field, rule, message string) {
	g.result.Issues = append(g.result.Issues, Issue{Field: field, Rule: rule, Message: message})
}

// property returns the schema node for a dotted field name, creating the
// object nodes along the way.
func (g *generator) property(name string) map[string]any {
	node := g.result.Schema
	segments := strings.Split(name, ".")
	for i, segment := range segments {
		props := node["properties"].(map[string]any)
		next, ok := props[segment].(map[string]any)
		if !ok {
			if i < len(segments)-1 {
				next = objectSchema()
			} else {
				next = map[string]any{}
			}
			props[segment] = next
		}
		if i < len(segments)-1 {
			if _, ok := next["properties"]; !ok {
				next["type"] = "object"
				next["properties"] = map[string]any{}
			}
		}
		node = next
	}
	return node
}

// markRequired lists the leaf in its parent's required array.
func (g *generator) markRequired(name string) {
	parent := g.result.Schema
	leaf := name
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		parent = g.property(name[:idx])
		leaf = name[idx+1:]
	}
	required, _ := parent["required"].([]string)
	parent["required"] = append(required, leaf)
}

func objectSchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func jsonType(d fields.Descriptor) string {
	switch d.Kind {
	case component.KindText, component.KindSelect, component.KindDate:
		return "string"
	case component.KindNumber:
		return "number"
	case component.KindBoolean:
		return "boolean"
	case component.KindMulti:
		return "array"
	}
	return ""
}

// lengthKeyword maps minLength/maxLength onto the JSON-Schema keyword of the
// field kind. Custom fields are assumed to hold strings.
func lengthKeyword(kind component.Kind, bound string) (string, bool) {
	switch kind {
	case component.KindText, component.KindSelect, component.KindDate, component.KindCustom:
		return bound + "Length", true
	case component.KindMulti:
		return bound + "Items", true
	}
	return "", false
}

func numeric(kind component.Kind) bool {
	return kind == component.KindNumber || kind == component.KindCustom
}

func isKnownRule(name string) bool {
	switch name {
	case schema.RuleRequired, schema.RuleMinLength, schema.RuleMaxLength, schema.RulePattern,
		schema.RuleMin, schema.RuleMax, schema.RuleVisibleWhen, schema.RuleMessages:
		return true
	}
	return false
}

func initialValue(d fields.Descriptor) any {
	if value, ok := d.Props[component.PropValue]; ok {
		return schema.CloneValue(value)
	}
	if value, ok := d.Props[component.PropDefaultValue]; ok {
		return schema.CloneValue(value)
	}
	return d.Kind.EmptyValue()
}

func setNested(values map[string]any, name string, value any) {
	segments := strings.Split(name, ".")
	current := values
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[segment] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}
