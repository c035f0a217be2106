// Package formschema turns declarative JSON/YAML form schemas into resolved,
// framework-neutral component trees. The root package is a thin facade over
// pkg/engine for callers that want the defaults; the sub-packages expose every
// stage on its own.
package formschema

import (
	"context"

	"github.com/goliatone/go-formschema/pkg/engine"
	"github.com/goliatone/go-formschema/pkg/fields"
	"github.com/goliatone/go-formschema/pkg/resolver"
	"github.com/goliatone/go-formschema/pkg/schema"
	"github.com/goliatone/go-formschema/pkg/validation"
)

// Engine aliases engine.Engine so the common entry points are reachable from
// the module root.
type Engine = engine.Engine

// Option aliases engine.Option.
type Option = engine.Option

// Result aliases the outcome of one resolution pass.
type Result = resolver.Result

// Field aliases fields.Descriptor.
type Field = fields.Descriptor

// ValidationResult aliases validation.Result.
type ValidationResult = validation.Result

// New constructs an engine with the built-in component registry, the
// expression visibility evaluator and the default message catalog.
func New(options ...Option) *Engine {
	return engine.New(options...)
}

// Parse decodes a JSON or YAML schema document.
func Parse(data []byte) (*schema.Node, error) {
	return schema.Parse(data)
}

// Resolve runs one resolution pass over root with a default engine. values
// are the current form values.
func Resolve(ctx context.Context, root *schema.Node, values map[string]any, options ...Option) (Result, error) {
	return engine.New(options...).Resolve(ctx, root, resolver.WithFormValues(values))
}

// ExtractFields lists the input fields of root. When values is nil the static
// structure is returned; otherwise visibility is evaluated against values.
func ExtractFields(root *schema.Node, values map[string]any, options ...Option) ([]Field, error) {
	return engine.New(options...).Fields(root, values)
}

// GenerateValidation derives the validation schema, constraints and initial
// values for root.
func GenerateValidation(root *schema.Node, values map[string]any, options ...Option) (ValidationResult, error) {
	return engine.New(options...).Validation(root, values)
}
