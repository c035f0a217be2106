package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-formschema/pkg/component"
	"github.com/goliatone/go-formschema/pkg/form"
	"github.com/goliatone/go-formschema/pkg/middleware"
	"github.com/goliatone/go-formschema/pkg/runtime"
	"github.com/goliatone/go-formschema/pkg/schema"
	"github.com/goliatone/go-formschema/pkg/validation"
)

const signup = `{
  "properties": {
    "name": {
      "x-component": "InputText",
      "x-component-props": {"label": "Name"},
      "x-rules": {"required": true, "minLength": 2}
    },
    "newsletter": {"x-component": "Checkbox", "x-component-props": {"label": "Newsletter"}},
    "email": {
      "x-component": "InputEmail",
      "x-component-props": {"label": "Email"},
      "x-rules": {"required": true, "visibleWhen": "newsletter"}
    },
    "greeting": {"x-component": "Text", "x-content": "Hello {{ $externalContext.user }}"}
  }
}`

func parse(t *testing.T, doc string) *schema.Node {
	t.Helper()
	root, err := schema.Parse([]byte(doc))
	require.NoError(t, err)
	return root
}

func tree(t *testing.T, r *Render) *runtime.Element {
	t.Helper()
	require.NotNil(t, r)
	el, ok := r.Element.(*runtime.Element)
	require.True(t, ok, "expected *runtime.Element, got %T", r.Element)
	return el
}

func TestEngine_ResolveWithDefaults(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := New(
		WithLogger(zap.New(core)),
		WithDebug(true),
		WithMiddlewares(middleware.Suffix(":")),
		WithExternalContext(map[string]any{"user": "Ada"}),
	)
	require.NoError(t, e.Err())

	root := parse(t, `{"properties": {
		"name": {"x-component": "InputText", "title": "Name"},
		"mystery": {"x-component": "Mystery"},
		"greeting": {"x-component": "Text", "x-content": "Hi {{ $externalContext.user }}"}
	}}`)
	result, err := e.Resolve(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, "Name:", result.Tree.Find("name").Props.String(component.PropLabel))
	assert.Equal(t, "Hi Ada", result.Tree.Find("greeting").Props.String(component.PropContent))
	assert.Nil(t, result.Tree.Find("mystery"))
	require.Len(t, result.Diagnostics, 1)

	assert.Equal(t, 1, logs.FilterMessage("resolution pass").Len())
	misses := logs.FilterMessage(`component "Mystery" is not registered`).All()
	require.Len(t, misses, 1)
	assert.Equal(t, zapcore.WarnLevel, misses[0].Level)
}

func TestEngine_InvalidComponent(t *testing.T) {
	e := New(WithComponents(component.Spec{ID: "Broken"}))
	require.ErrorIs(t, e.Err(), component.ErrNoFactory)

	_, err := e.Resolve(context.Background(), parse(t, `{}`))
	assert.ErrorIs(t, err, component.ErrNoFactory)
	_, err = e.NewSession(parse(t, `{}`), nil)
	assert.ErrorIs(t, err, component.ErrNoFactory)
}

func TestEngine_ComponentsShadowBuiltins(t *testing.T) {
	custom := component.Spec{
		ID:   "InputText",
		Type: component.KindText,
		Factory: func(props component.Props, _ component.Adapter) (component.Element, error) {
			return "custom:" + props.String(component.PropName), nil
		},
	}
	e := New(WithComponents(custom))
	s, err := e.NewSession(parse(t, `{"properties": {"a": {"x-component": "InputText"}}}`), nil)
	require.NoError(t, err)

	r, err := s.Render(context.Background())
	require.NoError(t, err)
	root := tree(t, r)
	require.Len(t, root.Children, 0, "factory output is not an *Element")
	assert.Equal(t, 1, s.adapter.(*runtime.TreeAdapter).Created)
}

func TestEngine_FieldsAndValidation(t *testing.T) {
	e := New(WithLocale("es"))
	root := parse(t, signup)

	all, err := e.Fields(root, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	visible, err := e.Fields(root, map[string]any{"newsletter": false})
	require.NoError(t, err)
	assert.Len(t, visible, 2)

	result, err := e.Validation(root, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "email"}, result.Schema["required"])
	assert.Equal(t, "Name es obligatorio", result.Constraints[0].Message)
}

func TestSession_Render(t *testing.T) {
	e := New(WithExternalContext(map[string]any{"user": "Ada"}))
	f := form.NewMemory(map[string]any{"name": "Grace"})
	s, err := e.NewSession(parse(t, signup), f)
	require.NoError(t, err)

	r, err := s.Render(context.Background())
	require.NoError(t, err)
	assert.False(t, r.Stale)
	assert.Equal(t, uint64(0), r.Version)
	assert.Same(t, r, s.Last())

	root := tree(t, r)
	assert.Equal(t, "Grace", root.Find("name").Props[component.PropValue])
	assert.Nil(t, root.Find("email"), "email is hidden until newsletter is checked")

	root.Find("newsletter").Props.OnChange()(true)
	r, err = s.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.Version)
	assert.NotNil(t, tree(t, r).Find("email"))

	s.SetExternalContext(map[string]any{"user": "Linus"})
	r, err = s.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hello Linus", r.Result.Tree.Find("greeting").Props.String(component.PropContent))
}

func TestSession_SetSchemaValidates(t *testing.T) {
	s, err := New().NewSession(parse(t, signup), nil)
	require.NoError(t, err)

	bad := &schema.Node{Properties: schema.PropertiesOf("x", (*schema.Node)(nil))}
	assert.ErrorIs(t, s.SetSchema(bad), schema.ErrMalformed)

	require.NoError(t, s.SetSchema(parse(t, `{"properties": {"only": {"x-component": "InputText"}}}`)))
	r, err := s.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, tree(t, r).Count())
}

func TestSession_ConcurrentRender(t *testing.T) {
	s, err := New().NewSession(parse(t, signup), nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Render(context.Background()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("render: %v", err)
	}
}

func TestSession_Run(t *testing.T) {
	f := form.NewMemory(nil)
	s, err := New().NewSession(parse(t, signup), f)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	renders := make(chan *Render, 16)
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(r *Render, err error) {
			if err == nil {
				renders <- r
			}
		})
	}()

	next := func() *Render {
		t.Helper()
		select {
		case r := <-renders:
			return r
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for a render")
			return nil
		}
	}

	first := next()
	assert.Nil(t, first.Result.Tree.Find("email"))

	require.NoError(t, f.SetValue("newsletter", true))
	var r *Render
	for r = next(); r.Result.Tree.Find("email") == nil; r = next() {
	}
	assert.NotNil(t, r.Result.Tree.Find("email"))

	s.SetExternalContext(map[string]any{"user": "Ada"})
	for r = next(); r.Result.Tree.Find("greeting").Props.String(component.PropContent) != "Hello Ada"; r = next() {
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestSession_RunRequiresCallback(t *testing.T) {
	s, err := New().NewSession(parse(t, signup), nil)
	require.NoError(t, err)
	assert.Error(t, s.Run(context.Background(), nil))
}

func TestSession_FieldRegistration(t *testing.T) {
	f := form.NewMemory(map[string]any{"newsletter": true})
	s, err := New().NewSession(parse(t, signup), f, WithFieldRegistration(true))
	require.NoError(t, err)

	_, err = s.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "name", "newsletter"}, f.Registered())

	err = s.Submit(func(map[string]any) error { return nil })
	require.ErrorIs(t, err, form.ErrInvalid)
	assert.Equal(t, map[string][]string{
		"name":  {"Name is required"},
		"email": {"Email is required"},
	}, f.Errors())

	require.NoError(t, f.SetValue("name", "A"))
	require.NoError(t, f.SetValue("newsletter", false))
	err = s.Submit(nil)
	require.ErrorIs(t, err, form.ErrInvalid)
	assert.Equal(t, []string{"name", "newsletter"}, f.Registered(), "hidden email is unregistered")
	assert.Equal(t, map[string][]string{"name": {"Name must be at least 2 characters"}}, f.Errors())

	require.NoError(t, f.SetValue("name", "Ada"))
	var submitted map[string]any
	require.NoError(t, s.Submit(func(values map[string]any) error {
		submitted = values
		return nil
	}))
	assert.Equal(t, "Ada", submitted["name"])

	boom := errors.New("backend down")
	err = s.Submit(func(map[string]any) error { return boom })
	assert.ErrorIs(t, err, boom)
}

const gated = `{
  "properties": {
    "name": {"x-component": "InputText", "x-component-props": {"label": "Name"}, "x-rules": {"required": true}},
    "newsletter": {"x-component": "Checkbox"},
    "email": {"x-component": "InputEmail", "x-rules": {"required": true, "visibleWhen": "newsletter"}},
    "secret": {
      "x-component": "InputText",
      "x-component-props": {"label": "Secret"},
      "x-rules": {"required": true, "visibleWhen": "$externalContext.role == 'admin'"}
    }
  }
}`

func fieldNames(t *testing.T, s *Session) []string {
	t.Helper()
	descriptors, err := s.Fields()
	require.NoError(t, err)
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.Name)
	}
	return names
}

func TestSession_FieldsFollowTheRenderedTree(t *testing.T) {
	f := form.NewMemory(nil)
	s, err := New().NewSession(parse(t, gated), f,
		WithFieldRegistration(true),
		WithSessionExternalContext(map[string]any{"role": "admin"}),
	)
	require.NoError(t, err)

	check := func(label string, want []string) {
		t.Helper()
		r, err := s.Render(context.Background())
		require.NoError(t, err)
		for _, path := range []string{"email", "secret"} {
			rendered := r.Result.Tree.Find(path) != nil
			assert.Equal(t, contains(want, path), rendered, "%s: %s rendered", label, path)
		}
		assert.ElementsMatch(t, want, fieldNames(t, s), "%s: session fields", label)
		assert.Equal(t, want, f.Registered(), "%s: registered fields", label)
	}

	check("initial", []string{"name", "newsletter", "secret"})

	require.NoError(t, f.SetValue("newsletter", true))
	check("newsletter on", []string{"email", "name", "newsletter", "secret"})

	s.SetExternalContext(map[string]any{"role": "guest"})
	check("guest", []string{"email", "name", "newsletter"})

	require.NoError(t, f.SetValue("newsletter", false))
	check("newsletter off", []string{"name", "newsletter"})
}

func TestSession_SubmitUsesSessionExternalContext(t *testing.T) {
	f := form.NewMemory(map[string]any{"name": "Ada"})
	s, err := New().NewSession(parse(t, gated), f,
		WithFieldRegistration(true),
		WithSessionExternalContext(map[string]any{"role": "admin"}),
	)
	require.NoError(t, err)

	err = s.Submit(nil)
	require.ErrorIs(t, err, form.ErrInvalid)
	assert.Equal(t, map[string][]string{"secret": {"Secret is required"}}, f.Errors())

	v, err := s.Validation()
	require.NoError(t, err)
	assert.Contains(t, v.Schema["required"], "secret")
}

func TestSession_DroppedBranchFieldsAreNotRegistered(t *testing.T) {
	doc := `{"properties": {
		"name": {"x-component": "InputText", "x-rules": {"required": true}},
		"fancy": {
			"x-component": "FancyWidget",
			"properties": {"inside": {"x-component": "InputText", "x-rules": {"required": true}}}
		}
	}}`
	f := form.NewMemory(map[string]any{"name": "Ada"})
	s, err := New().NewSession(parse(t, doc), f, WithFieldRegistration(true))
	require.NoError(t, err)

	r, err := s.Render(context.Background())
	require.NoError(t, err)
	assert.Nil(t, r.Result.Tree.Find("fancy.inside"))
	assert.Equal(t, []string{"name"}, f.Registered())
	assert.Equal(t, []string{"name"}, fieldNames(t, s))
	require.NoError(t, s.Submit(nil))
}

func TestSession_FailedMiddlewareBranchFieldsAreNotRegistered(t *testing.T) {
	failing := middleware.ForComponent(middleware.Func(func(component.Props, middleware.Info) (component.Props, error) {
		return nil, errors.New("boom")
	}), "FormSection")
	doc := `{"properties": {
		"name": {"x-component": "InputText", "x-rules": {"required": true}},
		"section": {
			"x-component": "FormSection",
			"properties": {"inside": {"x-component": "InputText", "x-rules": {"required": true}}}
		}
	}}`
	f := form.NewMemory(map[string]any{"name": "Ada"})
	s, err := New(WithMiddlewares(failing)).NewSession(parse(t, doc), f, WithFieldRegistration(true))
	require.NoError(t, err)

	r, err := s.Render(context.Background())
	require.NoError(t, err)
	assert.Len(t, r.Result.Errors, 1)
	assert.Equal(t, []string{"name"}, f.Registered())
	require.NoError(t, s.Submit(nil))
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func TestChecker(t *testing.T) {
	text, err := checker([]validation.Constraint{
		{Rule: schema.RulePattern, Value: "^[a-z]+$", Message: "lowercase only"},
		{Rule: schema.RuleMaxLength, Value: 4, Message: "too long"},
	})
	require.NoError(t, err)
	assert.NoError(t, text(""))
	assert.NoError(t, text("abc"))
	assert.EqualError(t, text("ABC"), "lowercase only")
	assert.EqualError(t, text("abcde"), "too long")

	number, err := checker([]validation.Constraint{
		{Rule: schema.RuleMin, Value: 18.0, Message: "too young"},
		{Rule: schema.RuleMax, Value: 120.0, Message: "too old"},
	})
	require.NoError(t, err)
	assert.NoError(t, number(nil))
	assert.NoError(t, number(30))
	assert.NoError(t, number("42"))
	assert.EqualError(t, number(17.5), "too young")
	assert.EqualError(t, number(200), "too old")
	assert.EqualError(t, number("many"), "too young")

	_, err = checker([]validation.Constraint{{Rule: schema.RulePattern, Value: "(", Message: "x"}})
	assert.Error(t, err)
}
