package expr

import (
	"errors"
	"testing"

	"github.com/goliatone/go-formschema/pkg/visibility"
)

func TestEvaluator(t *testing.T) {
	t.Parallel()

	ctx := visibility.Context{
		Values: map[string]any{
			"enabled":      true,
			"flag":         "true",
			"contact":      map[string]any{"method": "email"},
			"age":          21,
			"score":        "7.5",
			"optOut":       false,
			"cta.headline": "Hello",
			"tags":         []any{},
		},
		Extras: map[string]any{
			"user": map[string]any{"role": "admin"},
		},
	}

	cases := []struct {
		rule string
		want bool
	}{
		{"enabled", true},
		{"!enabled", false},
		{"enabled == true", true},
		{"flag == true", true},
		{`contact.method == "email"`, true},
		{"contact.method == 'email'", true},
		{"contact.method != email", false},
		{"$formValues.contact.method == 'email'", true},
		{"extras.user.role == 'admin'", true},
		{"$externalContext.user.role == 'guest'", false},
		{"age >= 18", true},
		{"age < 18", false},
		{"score > 7", true},
		{"missing > 1", false},
		{"missing == null", true},
		{"missing", false},
		{"tags", false},
		{`cta.headline != ""`, true},
		{"enabled && !optOut", true},
		{"optOut || (age == 21 && enabled)", true},
		{"!(enabled || optOut)", false},
		{"   ", true},
	}

	eval := New()
	for _, tc := range cases {
		got, err := eval.Eval("field", tc.rule, ctx)
		if err != nil {
			t.Fatalf("Eval(%q) returned error: %v", tc.rule, err)
		}
		if got != tc.want {
			t.Fatalf("Eval(%q) = %v, want %v", tc.rule, got, tc.want)
		}
	}
}

func TestEvaluatorSyntaxErrors(t *testing.T) {
	t.Parallel()

	eval := New()
	for _, rule := range []string{
		"a = 1",
		"a & b",
		"a | b",
		"(a",
		"a ==",
		`a == "open`,
		"a > 'x'",
		"== a",
		"a b",
	} {
		_, err := eval.Eval("field", rule, visibility.Context{})
		if err == nil {
			t.Fatalf("expected error for %q", rule)
		}
		if !errors.Is(err, visibility.ErrInvalidRule) {
			t.Fatalf("expected ErrInvalidRule for %q, got %v", rule, err)
		}
	}
}

func TestEvaluatorCachesCompiledRules(t *testing.T) {
	t.Parallel()

	eval := New()
	if err := eval.Validate("a == 1"); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, ok := eval.cache["a == 1"]; !ok {
		t.Fatal("expected compiled rule to be cached")
	}

	got, err := eval.Eval("field", "  a == 1 ", visibility.Context{Values: map[string]any{"a": 1}})
	if err != nil || !got {
		t.Fatalf("Eval = (%v, %v)", got, err)
	}
	if len(eval.cache) != 1 {
		t.Fatalf("expected trimmed rule to reuse cache entry, got %d entries", len(eval.cache))
	}
}
