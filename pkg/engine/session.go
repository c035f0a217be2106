package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-formschema/pkg/component"
	"github.com/goliatone/go-formschema/pkg/fields"
	"github.com/goliatone/go-formschema/pkg/form"
	"github.com/goliatone/go-formschema/pkg/resolver"
	"github.com/goliatone/go-formschema/pkg/runtime"
	"github.com/goliatone/go-formschema/pkg/schema"
	"github.com/goliatone/go-formschema/pkg/validation"
)

// Render is the outcome of one session pass.
type Render struct {
	Result  resolver.Result
	Element component.Element
	// Version is the form version the pass read. Zero when the form adapter
	// does not count writes.
	Version uint64
	// Stale is set when the form changed while the pass was running. A newer
	// pass is on its way when the session is running.
	Stale bool
}

// SessionOption configures a session.
type SessionOption func(*Session)

// WithAdapter sets the runtime adapter elements are materialized with.
// Defaults to a runtime.TreeAdapter.
func WithAdapter(adapter component.Adapter) SessionOption {
	return func(s *Session) {
		if adapter != nil {
			s.adapter = adapter
		}
	}
}

// WithSessionOptions adds resolver options to every pass of the session,
// such as call-scoped components or per-instance overrides.
func WithSessionOptions(opts ...resolver.Option) SessionOption {
	return func(s *Session) {
		s.resolverOpts = append(s.resolverOpts, opts...)
	}
}

// WithSessionExternalContext overrides the engine external context.
func WithSessionExternalContext(ctx map[string]any) SessionOption {
	return func(s *Session) {
		s.external = ctx
	}
}

// WithFieldRegistration keeps the form's registered fields in step with the
// visible fields after every pass, including their validation rules.
func WithFieldRegistration(enabled bool) SessionOption {
	return func(s *Session) {
		s.registerFields = enabled
	}
}

// Session binds a schema to a form and re-resolves it on demand. Concurrent
// Render calls share one in-flight pass; materialization is serialized.
type Session struct {
	engine       *Engine
	form         form.Adapter
	adapter      component.Adapter
	resolverOpts []resolver.Option

	mu       sync.RWMutex
	root     *schema.Node
	external map[string]any

	group   singleflight.Group
	matMu   sync.Mutex
	wake    chan struct{}
	lastMu  sync.Mutex
	last    *Render

	registerFields bool
	regMu          sync.Mutex
	registered     map[string]struct{}
}

// NewSession validates root and binds it to f. A nil f gets an empty
// form.Memory.
func (e *Engine) NewSession(root *schema.Node, f form.Adapter, opts ...SessionOption) (*Session, error) {
	if err := e.initialiseErr; err != nil {
		return nil, err
	}
	if err := schema.Validate(root); err != nil {
		return nil, err
	}
	if f == nil {
		f = form.NewMemory(nil)
	}
	s := &Session{
		engine:     e,
		form:       f,
		adapter:    runtime.NewTreeAdapter(),
		root:       root,
		external:   e.external,
		wake:       make(chan struct{}, 1),
		registered: make(map[string]struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Form returns the session form.
func (s *Session) Form() form.Adapter {
	return s.form
}

// Last returns the most recent successful render, or nil.
func (s *Session) Last() *Render {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.last
}

// SetSchema swaps the schema and wakes Run.
func (s *Session) SetSchema(root *schema.Node) error {
	if err := schema.Validate(root); err != nil {
		return err
	}
	s.mu.Lock()
	s.root = root
	s.mu.Unlock()
	s.signal()
	return nil
}

// SetExternalContext swaps the external context and wakes Run.
func (s *Session) SetExternalContext(ctx map[string]any) {
	s.mu.Lock()
	s.external = ctx
	s.mu.Unlock()
	s.signal()
}

func (s *Session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Render resolves and materializes the current schema against a snapshot of
// the form. Callers arriving while a pass is running receive its result.
func (s *Session) Render(ctx context.Context) (*Render, error) {
	v, err, _ := s.group.Do("render", func() (any, error) {
		return s.render(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Render), nil
}

func (s *Session) render(ctx context.Context) (*Render, error) {
	started := time.Now()

	root, external := s.snapshot()
	before := s.version()
	values := s.form.Values()

	result, err := s.pass(ctx, root, values, external)
	if err != nil {
		return nil, err
	}

	s.matMu.Lock()
	element, err := runtime.Materialize(ctx, result.Tree, s.adapter, runtime.WithPassID(result.PassID))
	s.matMu.Unlock()
	if err != nil {
		return nil, err
	}

	if s.registerFields {
		if err := s.syncFields(root, result.Tree, values, external); err != nil {
			return nil, err
		}
	}

	out := &Render{Result: result, Element: element, Version: before, Stale: s.version() != before}
	s.lastMu.Lock()
	s.last = out
	s.lastMu.Unlock()

	s.engine.logger.Debug("session render",
		zap.String("pass_id", result.PassID),
		zap.Uint64("version", before),
		zap.Bool("stale", out.Stale),
		zap.Duration("elapsed", time.Since(started)),
	)
	return out, nil
}

func (s *Session) snapshot() (*schema.Node, map[string]any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root, s.external
}

// pass resolves root against values with the session's external context and
// resolver options.
func (s *Session) pass(ctx context.Context, root *schema.Node, values, external map[string]any) (resolver.Result, error) {
	opts := append([]resolver.Option{
		resolver.WithFormValues(values),
		resolver.WithExternalContext(external),
		resolver.WithForm(s.form),
	}, s.resolverOpts...)

	result, err := resolver.ResolveTree(ctx, root, s.engine.Env(opts...))
	s.engine.logPass(result, err)
	return result, err
}

// visibleFields extracts the fields of root and keeps the ones tree
// rendered. Fields under a dropped or failed branch are left out.
func (s *Session) visibleFields(root *schema.Node, tree *resolver.ResolvedNode, values, external map[string]any) ([]fields.Descriptor, error) {
	if values == nil {
		values = map[string]any{}
	}
	descriptors, err := s.engine.fields(root, values, external)
	if err != nil {
		return nil, err
	}
	rendered := make(map[string]struct{})
	tree.Walk(func(n *resolver.ResolvedNode) bool {
		if n.Component != "" && !n.Placeholder {
			rendered[n.Path] = struct{}{}
		}
		return true
	})
	out := descriptors[:0]
	for _, d := range descriptors {
		if _, ok := rendered[d.Name]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Session) version() uint64 {
	if v, ok := s.form.(form.Versioned); ok {
		return v.Version()
	}
	return 0
}

// Run renders once and then again after every form change or
// SetSchema/SetExternalContext call, until ctx ends. Bursts of changes are
// coalesced into one pass. onRender receives every outcome; pass errors do
// not stop the loop.
func (s *Session) Run(ctx context.Context, onRender func(*Render, error)) error {
	if onRender == nil {
		return errors.New("engine: onRender is required")
	}
	changes, cancel := s.form.Watch("")
	defer cancel()

	onRender(s.Render(ctx))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			drain(changes)
		case <-s.wake:
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		onRender(s.Render(ctx))
	}
}

func drain(ch <-chan form.Change) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// Fields returns the fields rendered for the current form values and
// external context.
func (s *Session) Fields() ([]fields.Descriptor, error) {
	root, external := s.snapshot()
	values := s.form.Values()
	result, err := s.pass(context.Background(), root, values, external)
	if err != nil {
		return nil, err
	}
	return s.visibleFields(root, result.Tree, values, external)
}

// Validation generates the validation schema for the fields rendered with
// the current form values.
func (s *Session) Validation() (validation.Result, error) {
	root, external := s.snapshot()
	values := s.form.Values()
	result, err := s.pass(context.Background(), root, values, external)
	if err != nil {
		return validation.Result{}, err
	}
	descriptors, err := s.visibleFields(root, result.Tree, values, external)
	if err != nil {
		return validation.Result{}, err
	}
	return validation.FromFields(descriptors, s.engine.validationOptions(values, external)), nil
}

// Submit validates the form and calls onSubmit with its values when valid.
// Field registration must be enabled for the declared rules to apply.
func (s *Session) Submit(onSubmit form.SubmitFunc) error {
	if s.registerFields {
		root, external := s.snapshot()
		values := s.form.Values()
		result, err := s.pass(context.Background(), root, values, external)
		if err != nil {
			return err
		}
		if err := s.syncFields(root, result.Tree, values, external); err != nil {
			return err
		}
	}
	if err := s.form.HandleSubmit(onSubmit)(); err != nil {
		if errors.Is(err, form.ErrInvalid) {
			return err
		}
		return fmt.Errorf("engine: submit: %w", err)
	}
	return nil
}
