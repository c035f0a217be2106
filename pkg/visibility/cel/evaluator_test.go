package cel

import (
	"errors"
	"testing"

	"github.com/goliatone/go-formschema/pkg/visibility"
)

func TestEvaluator(t *testing.T) {
	ev := MustNew()
	ctx := visibility.Context{
		Values: map[string]any{
			"contact": map[string]any{"method": "email"},
			"age":     int64(30),
		},
		Extras: map[string]any{"user": map[string]any{"role": "admin"}},
	}

	cases := []struct {
		rule string
		want bool
	}{
		{`formValues.contact.method == "email"`, true},
		{`formValues.age >= 18 && externalContext.user.role == "admin"`, true},
		{`has(formValues.newsletter) && formValues.newsletter`, false},
		{`formValues.missing == "x"`, false},
		{``, true},
	}
	for _, tc := range cases {
		got, err := ev.Eval("field", tc.rule, ctx)
		if err != nil {
			t.Fatalf("Eval(%q) returned error: %v", tc.rule, err)
		}
		if got != tc.want {
			t.Fatalf("Eval(%q) = %v, want %v", tc.rule, got, tc.want)
		}
	}
}

func TestEvaluatorCompileError(t *testing.T) {
	ev := MustNew()
	_, err := ev.Eval("field", "formValues.a ==", visibility.Context{})
	if !errors.Is(err, visibility.ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
	if err := ev.Validate("undeclared.value"); err == nil {
		t.Fatal("expected undeclared variable to fail compilation")
	}
}

func TestEvaluatorNonBoolResult(t *testing.T) {
	ev := MustNew()
	_, err := ev.Eval("field", `"text"`, visibility.Context{})
	if !errors.Is(err, visibility.ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
}
