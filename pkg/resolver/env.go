package resolver

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-formschema/pkg/component"
	"github.com/goliatone/go-formschema/pkg/debug"
	"github.com/goliatone/go-formschema/pkg/fields"
	"github.com/goliatone/go-formschema/pkg/middleware"
	"github.com/goliatone/go-formschema/pkg/registry"
	"github.com/goliatone/go-formschema/pkg/visibility"
	"github.com/goliatone/go-formschema/pkg/visibility/expr"
)

// MissingPolicy decides what happens when an x-component id is not
// registered.
type MissingPolicy int

const (
	// MissingDrop leaves the branch out of the tree.
	MissingDrop MissingPolicy = iota
	// MissingPlaceholder emits a placeholder node when debug is enabled and
	// drops the branch otherwise.
	MissingPlaceholder
	// MissingFail aborts the pass with ErrMissingComponent.
	MissingFail
)

func (p MissingPolicy) String() string {
	switch p {
	case MissingPlaceholder:
		return "placeholder"
	case MissingFail:
		return "fail"
	default:
		return "drop"
	}
}

// ParseMissingPolicy accepts drop, placeholder or fail.
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop":
		return MissingDrop, nil
	case "placeholder":
		return MissingPlaceholder, nil
	case "fail":
		return MissingFail, nil
	}
	return MissingDrop, fmt.Errorf("resolver: unknown missing policy %q", s)
}

// ValueSetter is the write side of the form adapter used by onChange
// bindings. form.Adapter satisfies it.
type ValueSetter interface {
	SetValue(name string, value any) error
}

// Env carries everything a pass depends on besides the schema. It is a value:
// options and With return modified copies and never touch the receiver, so a
// provider can build one Env and derive per-pass variants from it.
type Env struct {
	externalContext map[string]any
	formValues      map[string]any
	provider        registry.Lookup
	callScope       registry.Map
	middlewares     middleware.Chain
	evaluator       visibility.Evaluator
	catalog         *fields.Catalog
	form            ValueSetter
	overrides       map[string]component.Props
	debug           bool
	strict          bool
	missing         MissingPolicy
	tracer          debug.Tracer
	tracerProvider  trace.TracerProvider
}

// Option configures an Env.
type Option func(*Env)

// NewEnv builds an Env with defaults: an empty registry, the built-in
// visibility evaluator and input catalog, MissingDrop and no debug output.
func NewEnv(opts ...Option) Env {
	env := Env{}
	return env.With(opts...)
}

// With returns a copy of env with opts applied.
func (env Env) With(opts ...Option) Env {
	out := env
	out.middlewares = append(middleware.Chain(nil), env.middlewares...)
	if env.callScope != nil {
		out.callScope = make(registry.Map, len(env.callScope))
		for id, spec := range env.callScope {
			out.callScope[id] = spec
		}
	}
	if env.overrides != nil {
		out.overrides = make(map[string]component.Props, len(env.overrides))
		for path, props := range env.overrides {
			out.overrides[path] = props
		}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&out)
		}
	}
	out.applyDefaults()
	return out
}

func (env *Env) applyDefaults() {
	if env.provider == nil {
		env.provider = registry.New()
	}
	if env.evaluator == nil {
		env.evaluator = expr.New()
	}
	if env.catalog == nil {
		env.catalog = fields.NewCatalog()
	}
	if env.tracer == nil {
		env.tracer = debug.Nop
	}
	if env.tracerProvider == nil {
		env.tracerProvider = otel.GetTracerProvider()
	}
}

// WithExternalContext sets the caller context visible to expressions and
// handed to every renderable node as the externalContext prop.
func WithExternalContext(ctx map[string]any) Option {
	return func(env *Env) {
		env.externalContext = ctx
	}
}

// WithFormValues sets the values snapshot. ResolveTree copies it at the start
// of the pass.
func WithFormValues(values map[string]any) Option {
	return func(env *Env) {
		env.formValues = values
	}
}

// WithRegistry sets the provider-scoped registry.
func WithRegistry(lookup registry.Lookup) Option {
	return func(env *Env) {
		if lookup != nil {
			env.provider = lookup
		}
	}
}

// WithComponents adds call-scoped specs that shadow the provider registry.
func WithComponents(specs ...component.Spec) Option {
	return func(env *Env) {
		if env.callScope == nil {
			env.callScope = make(registry.Map, len(specs))
		}
		for _, spec := range specs {
			env.callScope[strings.TrimSpace(spec.ID)] = spec
		}
	}
}

// WithMiddlewares appends middleware to the chain.
func WithMiddlewares(mws ...middleware.Middleware) Option {
	return func(env *Env) {
		env.middlewares = append(env.middlewares, mws...)
	}
}

// WithEvaluator sets the evaluator for expression visibility rules.
func WithEvaluator(ev visibility.Evaluator) Option {
	return func(env *Env) {
		if ev != nil {
			env.evaluator = ev
		}
	}
}

// WithCatalog sets the input catalog deciding which nodes get value
// bindings.
func WithCatalog(c *fields.Catalog) Option {
	return func(env *Env) {
		if c != nil {
			env.catalog = c
		}
	}
}

// WithForm wires onChange bindings to setter.
func WithForm(setter ValueSetter) Option {
	return func(env *Env) {
		env.form = setter
	}
}

// WithOverride sets per-instance props for the node at path. They have the
// highest precedence in the merge.
func WithOverride(path string, props component.Props) Option {
	return func(env *Env) {
		if env.overrides == nil {
			env.overrides = make(map[string]component.Props)
		}
		env.overrides[path] = props
	}
}

// WithOverrides sets per-instance props for several paths.
func WithOverrides(overrides map[string]component.Props) Option {
	return func(env *Env) {
		for path, props := range overrides {
			WithOverride(path, props)(env)
		}
	}
}

// WithDebug enables debug instrumentation: registry misses, unresolved
// expressions and hidden nodes are traced and reported as diagnostics.
func WithDebug(enabled bool) Option {
	return func(env *Env) {
		env.debug = enabled
	}
}

// WithStrict makes unresolved expressions fail the pass.
func WithStrict(enabled bool) Option {
	return func(env *Env) {
		env.strict = enabled
	}
}

// WithMissingPolicy sets the missing-component policy.
func WithMissingPolicy(policy MissingPolicy) Option {
	return func(env *Env) {
		env.missing = policy
	}
}

// WithTracer sets the debug tracer. Events are only emitted when debug is
// enabled, except middleware failures which are always traced.
func WithTracer(t debug.Tracer) Option {
	return func(env *Env) {
		if t != nil {
			env.tracer = t
		}
	}
}

// WithTracerProvider sets the OpenTelemetry provider for pass spans. The
// global provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(env *Env) {
		if tp != nil {
			env.tracerProvider = tp
		}
	}
}

// ExternalContext returns the external context.
func (env Env) ExternalContext() map[string]any { return env.externalContext }

// FormValues returns the values snapshot as configured.
func (env Env) FormValues() map[string]any { return env.formValues }

// Evaluator returns the visibility evaluator.
func (env Env) Evaluator() visibility.Evaluator { return env.evaluator }

// Catalog returns the input catalog.
func (env Env) Catalog() *fields.Catalog { return env.catalog }

// Debug reports whether debug instrumentation is on.
func (env Env) Debug() bool { return env.debug }

// Registry returns the effective lookup: call scope over provider scope.
func (env Env) Registry() registry.Lookup {
	return registry.Layer(env.callScope, env.provider)
}
