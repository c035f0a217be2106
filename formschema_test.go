package formschema

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formschema/pkg/engine"
)

func TestLoadSchemaFileAndResolve(t *testing.T) {
	root, err := LoadSchemaFile(context.Background(), "testdata/profile.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	result, err := Resolve(context.Background(), root, map[string]any{"newsletter": false})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Tree.Find("frequency") != nil {
		t.Fatalf("expected frequency to be hidden")
	}

	result, err = Resolve(context.Background(), root, map[string]any{"newsletter": true})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Tree.Find("frequency") == nil {
		t.Fatalf("expected frequency to be visible")
	}
}

func TestExtractFieldsAndValidation(t *testing.T) {
	root, err := LoadSchemaFile(context.Background(), "testdata/profile.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	all, err := ExtractFields(root, nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	var names []string
	for _, f := range all {
		names = append(names, f.Name)
	}
	want := []string{"personalInfo.firstName", "personalInfo.lastName", "newsletter", "frequency"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}

	result, err := GenerateValidation(root, nil)
	if err != nil {
		t.Fatalf("validation: %v", err)
	}
	if len(result.Constraints) == 0 || result.Constraints[0].Field != "personalInfo.firstName" {
		t.Fatalf("unexpected constraints: %+v", result.Constraints)
	}
}

func TestNew(t *testing.T) {
	e := New(engine.WithLocale("es"))
	if e.Err() != nil {
		t.Fatalf("unexpected error: %v", e.Err())
	}
	if _, err := Parse(nil); err == nil {
		t.Fatalf("expected empty document to be rejected")
	}

	root, err := Parse([]byte(`{"properties": {"name": {"x-component": "InputText", "x-rules": {"required": true}}}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	result, err := e.Validation(root, nil)
	if err != nil {
		t.Fatalf("validation: %v", err)
	}
	if got := result.Constraints[0].Message; got != "name es obligatorio" {
		t.Fatalf("unexpected message %q", got)
	}
}
