// Package engine is the provider scope: it owns the component registry,
// middleware, evaluator and debug configuration shared by every form, and
// hands out sessions that keep one form's tree in sync with its state.
package engine

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/goliatone/go-formschema/pkg/component"
	"github.com/goliatone/go-formschema/pkg/debug"
	"github.com/goliatone/go-formschema/pkg/fields"
	"github.com/goliatone/go-formschema/pkg/middleware"
	"github.com/goliatone/go-formschema/pkg/registry"
	"github.com/goliatone/go-formschema/pkg/resolver"
	"github.com/goliatone/go-formschema/pkg/runtime"
	"github.com/goliatone/go-formschema/pkg/schema"
	"github.com/goliatone/go-formschema/pkg/validation"
	"github.com/goliatone/go-formschema/pkg/visibility"
)

// Option customises the engine configuration.
type Option func(*Engine)

// WithRegistry replaces the default registry (the runtime built-ins).
func WithRegistry(reg *registry.Registry) Option {
	return func(e *Engine) {
		if reg != nil {
			e.registry = reg
		}
	}
}

// WithComponents registers specs into the engine registry, replacing
// existing ids.
func WithComponents(specs ...component.Spec) Option {
	return func(e *Engine) {
		e.components = append(e.components, specs...)
	}
}

// WithMiddlewares appends provider-scoped middleware.
func WithMiddlewares(mws ...middleware.Middleware) Option {
	return func(e *Engine) {
		e.middlewares = append(e.middlewares, mws...)
	}
}

// WithEvaluator sets the visibility evaluator.
func WithEvaluator(ev visibility.Evaluator) Option {
	return func(e *Engine) {
		e.evaluator = ev
	}
}

// WithFieldCatalog sets the input catalog.
func WithFieldCatalog(c *fields.Catalog) Option {
	return func(e *Engine) {
		e.catalog = c
	}
}

// WithExternalContext sets the default external context of new sessions.
func WithExternalContext(ctx map[string]any) Option {
	return func(e *Engine) {
		e.external = ctx
	}
}

// WithDebug enables debug instrumentation.
func WithDebug(enabled bool) Option {
	return func(e *Engine) {
		e.debug = enabled
	}
}

// WithStrict makes unresolved expressions fail passes.
func WithStrict(enabled bool) Option {
	return func(e *Engine) {
		e.strict = enabled
	}
}

// WithMissingPolicy sets the missing-component policy.
func WithMissingPolicy(policy resolver.MissingPolicy) Option {
	return func(e *Engine) {
		e.missing = policy
	}
}

// WithTracer adds a debug tracer. Several tracers are fanned out.
func WithTracer(t debug.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracers = append(e.tracers, t)
		}
	}
}

// WithTracerProvider sets the OpenTelemetry provider for pass spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.tracerProvider = tp
	}
}

// WithLogger sets the logger. Passes are logged at debug level and debug
// events are mirrored into it when debug is enabled.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLocale sets the validation message locale.
func WithLocale(locale string) Option {
	return func(e *Engine) {
		e.locale = locale
	}
}

// WithMessages sets the validation message catalog.
func WithMessages(c *validation.Catalog) Option {
	return func(e *Engine) {
		e.messages = c
	}
}

// Engine is safe for concurrent use once constructed. Options are applied
// only by New.
type Engine struct {
	registry       *registry.Registry
	components     []component.Spec
	middlewares    []middleware.Middleware
	evaluator      visibility.Evaluator
	catalog        *fields.Catalog
	external       map[string]any
	debug          bool
	strict         bool
	missing        resolver.MissingPolicy
	tracers        []debug.Tracer
	tracerProvider trace.TracerProvider
	logger         *zap.Logger
	locale         string
	messages       *validation.Catalog
	initialiseErr  error
	env            resolver.Env
}

// New constructs an Engine. Missing dependencies get the built-in
// implementations.
func New(options ...Option) *Engine {
	e := &Engine{logger: zap.NewNop()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(e)
	}
	e.applyDefaults()
	return e
}

func (e *Engine) applyDefaults() {
	if e.registry == nil {
		e.registry = runtime.DefaultRegistry()
	}
	for _, spec := range e.components {
		if err := e.registry.Set(spec); err != nil {
			e.initialiseErr = errors.Join(e.initialiseErr, err)
		}
	}
	if e.catalog == nil {
		e.catalog = fields.NewCatalog()
	}
	if e.messages == nil {
		e.messages = validation.DefaultCatalog()
	}

	tracer := debug.Multi(e.tracers...)
	if e.debug {
		tracer = debug.Multi(tracer, debug.NewZapTracer(e.logger))
	}
	e.env = resolver.NewEnv(
		resolver.WithRegistry(e.registry),
		resolver.WithMiddlewares(e.middlewares...),
		resolver.WithEvaluator(e.evaluator),
		resolver.WithCatalog(e.catalog),
		resolver.WithDebug(e.debug),
		resolver.WithStrict(e.strict),
		resolver.WithMissingPolicy(e.missing),
		resolver.WithTracer(tracer),
		resolver.WithTracerProvider(e.tracerProvider),
		resolver.WithExternalContext(e.external),
	)
}

// Err reports configuration problems found by New, such as invalid
// component specs.
func (e *Engine) Err() error {
	return e.initialiseErr
}

// Registry returns the provider-scoped registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Logger returns the configured logger.
func (e *Engine) Logger() *zap.Logger {
	return e.logger
}

// Env returns the provider environment with per-call options applied.
func (e *Engine) Env(opts ...resolver.Option) resolver.Env {
	return e.env.With(opts...)
}

// Resolve runs a single pass over root.
func (e *Engine) Resolve(ctx context.Context, root *schema.Node, opts ...resolver.Option) (resolver.Result, error) {
	if err := e.initialiseErr; err != nil {
		return resolver.Result{}, err
	}
	result, err := resolver.ResolveTree(ctx, root, e.Env(opts...))
	e.logPass(result, err)
	return result, err
}

// Fields extracts the fields of root. A nil values map returns every field;
// otherwise only the fields visible for values are returned.
func (e *Engine) Fields(root *schema.Node, values map[string]any) ([]fields.Descriptor, error) {
	return e.fields(root, values, e.external)
}

func (e *Engine) fields(root *schema.Node, values, external map[string]any) ([]fields.Descriptor, error) {
	opts := []fields.Option{
		fields.WithCatalog(e.catalog),
		fields.WithEvaluator(e.env.Evaluator()),
		fields.WithExternalContext(external),
	}
	if values != nil {
		opts = append(opts, fields.WithValues(values))
	}
	return fields.Extract(root, opts...)
}

// Validation generates the validation schema of root. A nil values map
// validates every field.
func (e *Engine) Validation(root *schema.Node, values map[string]any) (validation.Result, error) {
	return validation.Generate(root, e.validationOptions(values, e.external))
}

func (e *Engine) validationOptions(values, external map[string]any) validation.Options {
	return validation.Options{
		Locale:          e.locale,
		Catalog:         e.messages,
		Values:          values,
		ExternalContext: external,
		Evaluator:       e.env.Evaluator(),
		FieldCatalog:    e.catalog,
	}
}

func (e *Engine) logPass(result resolver.Result, err error) {
	if err != nil {
		e.logger.Warn("resolution failed", zap.String("pass_id", result.PassID), zap.Error(err))
		return
	}
	if ce := e.logger.Check(zap.DebugLevel, "resolution pass"); ce != nil {
		ce.Write(
			zap.String("pass_id", result.PassID),
			zap.Int("rendered", result.Stats.Rendered),
			zap.Int("hidden", result.Stats.Hidden),
			zap.Int("missing", result.Stats.Missing),
			zap.Int("failed", result.Stats.Failed),
			zap.Int("diagnostics", len(result.Diagnostics)),
		)
	}
	if branchErr := result.Err(); branchErr != nil {
		e.logger.Error("branches dropped", zap.String("pass_id", result.PassID), zap.Error(branchErr))
	}
}
