package runtime

import (
	"context"

	"github.com/goliatone/go-formschema/pkg/form"
)

// ContextAdapter makes the active form and external context reachable from
// anywhere below the point where they were provided.
type ContextAdapter interface {
	Provide(ctx context.Context, f form.Adapter, external map[string]any) context.Context
	Form(ctx context.Context) (form.Adapter, bool)
	ExternalContext(ctx context.Context) map[string]any
}

// Context is the ContextAdapter backed by context.Context values.
var Context ContextAdapter = valueContext{}

type formKey struct{}

type externalKey struct{}

type valueContext struct{}

func (valueContext) Provide(ctx context.Context, f form.Adapter, external map[string]any) context.Context {
	if f != nil {
		ctx = WithForm(ctx, f)
	}
	if external != nil {
		ctx = WithExternalContext(ctx, external)
	}
	return ctx
}

func (valueContext) Form(ctx context.Context) (form.Adapter, bool) {
	return FormFrom(ctx)
}

func (valueContext) ExternalContext(ctx context.Context) map[string]any {
	return ExternalContextFrom(ctx)
}

// WithForm returns a context carrying f.
func WithForm(ctx context.Context, f form.Adapter) context.Context {
	return context.WithValue(ctx, formKey{}, f)
}

// FormFrom returns the innermost form provided to ctx.
func FormFrom(ctx context.Context) (form.Adapter, bool) {
	f, ok := ctx.Value(formKey{}).(form.Adapter)
	return f, ok && f != nil
}

// WithExternalContext returns a context carrying external.
func WithExternalContext(ctx context.Context, external map[string]any) context.Context {
	return context.WithValue(ctx, externalKey{}, external)
}

// ExternalContextFrom returns the innermost external context, or nil.
func ExternalContextFrom(ctx context.Context) map[string]any {
	external, _ := ctx.Value(externalKey{}).(map[string]any)
	return external
}
