package schema

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func loadFixture(t *testing.T, name string) *Node {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	node, err := Parse(data)
	if err != nil {
		t.Fatalf("parse %s: %v", name, err)
	}
	return node
}

func TestParse_PreservesDeclarationOrder(t *testing.T) {
	for _, name := range []string{"profile.json", "profile.yaml"} {
		t.Run(name, func(t *testing.T) {
			root := loadFixture(t, name)

			want := []string{"personalInfo", "newsletter", "frequency"}
			if diff := cmp.Diff(want, root.Properties.Keys()); diff != "" {
				t.Fatalf("root keys mismatch (-want +got):\n%s", diff)
			}

			info, ok := root.Properties.Get("personalInfo")
			if !ok {
				t.Fatal("personalInfo missing")
			}
			if diff := cmp.Diff([]string{"firstName", "lastName"}, info.Properties.Keys()); diff != "" {
				t.Fatalf("nested keys mismatch (-want +got):\n%s", diff)
			}

			first, _ := info.Properties.Get("firstName")
			if !first.IsRenderable() || first.ComponentID() != "InputText" {
				t.Fatalf("unexpected component %q", first.Component)
			}
			if !first.Rules.Required || first.Rules.MinLength == nil || *first.Rules.MinLength != 2 {
				t.Fatalf("unexpected rules %+v", first.Rules)
			}
			if got := first.Label("firstName"); got != "First Name" {
				t.Fatalf("label = %q", got)
			}

			freq, _ := root.Properties.Get("frequency")
			cond := freq.VisibleWhen()
			if cond == nil || cond.Field != "newsletter" || cond.Op != OpEquals || cond.Value != true {
				t.Fatalf("unexpected visibleWhen %+v", cond)
			}
		})
	}
}

func TestParse_JSONAndYAMLAgree(t *testing.T) {
	fromJSON, err := json.Marshal(loadFixture(t, "profile.json"))
	if err != nil {
		t.Fatalf("marshal json fixture: %v", err)
	}
	fromYAML, err := json.Marshal(loadFixture(t, "profile.yaml"))
	if err != nil {
		t.Fatalf("marshal yaml fixture: %v", err)
	}
	if diff := cmp.Diff(string(fromJSON), string(fromYAML)); diff != "" {
		t.Fatalf("documents differ (-json +yaml):\n%s", diff)
	}
}

func TestParse_StructuralErrors(t *testing.T) {
	cases := map[string]struct {
		input string
		path  string
	}{
		"properties array":  {input: `{"properties": []}`},
		"child scalar":      {input: `{"properties": {"name": "text"}}`, path: "name"},
		"nested child":      {input: `{"properties": {"a": {"properties": {"b": 3}}}}`, path: "a.b"},
		"visibleWhen shape": {input: `{"x-rules": {"visibleWhen": 3}}`},
		"in without array":  {input: `{"x-rules": {"visibleWhen": {"field": "a", "in": "x"}}}`},
		"two operators":     {input: `{"x-rules": {"visibleWhen": {"field": "a", "equals": 1, "notEquals": 2}}}`},
		"yaml child scalar": {input: "properties:\n  name: text\n", path: "name"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
			var structural *StructuralError
			if !errors.As(err, &structural) {
				t.Fatalf("expected StructuralError, got %T", err)
			}
			if structural.Path != tc.path {
				t.Fatalf("path = %q, want %q", structural.Path, tc.path)
			}
		})
	}
}

func TestParse_Empty(t *testing.T) {
	if _, err := Parse([]byte("  \n")); err == nil {
		t.Fatal("expected error for empty document")
	}
}

func TestRules_LenientDecoding(t *testing.T) {
	node, err := ParseJSON([]byte(`{"x-rules": {"required": "yes", "minLength": 1.5, "email": true, "messages": {"required": "Needed"}}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rules := node.Rules
	if rules.Required {
		t.Fatal("string required must not count as true")
	}
	if rules.MinLength != nil {
		t.Fatal("fractional minLength must not decode")
	}
	want := map[string]any{"required": "yes", "minLength": 1.5, "email": true}
	if diff := cmp.Diff(want, rules.Extra); diff != "" {
		t.Fatalf("extra mismatch (-want +got):\n%s", diff)
	}
	if rules.Messages["required"] != "Needed" {
		t.Fatalf("messages = %v", rules.Messages)
	}
	if !rules.HasConstraints() {
		t.Fatal("unknown rules count as constraints")
	}
}

func TestCondition_ExpressionForm(t *testing.T) {
	node, err := Parse([]byte("x-rules:\n  visibleWhen: \"contact.method == 'email'\"\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cond := node.VisibleWhen()
	if !cond.IsExpression() || cond.Expr != "contact.method == 'email'" {
		t.Fatalf("unexpected condition %+v", cond)
	}
	data, err := json.Marshal(cond)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"contact.method == 'email'"` {
		t.Fatalf("marshal = %s", data)
	}
}

func TestCondition_DefaultsToTruthy(t *testing.T) {
	node, err := ParseJSON([]byte(`{"x-rules": {"visible-when": {"field": "agree"}}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cond := node.VisibleWhen()
	if cond.Op != OpTruthy || cond.Field != "agree" {
		t.Fatalf("unexpected condition %+v", cond)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(loadFixture(t, "profile.json")); err != nil {
		t.Fatalf("fixture should validate: %v", err)
	}

	negative := -1
	bad := &Node{
		Type: TypeObject,
		Properties: PropertiesOf(
			"blank", &Node{Component: "   "},
			"nil", (*Node)(nil),
			"short", &Node{Rules: &Rules{MinLength: &negative}},
		),
	}
	err := Validate(bad)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, fragment := range []string{`x-component is blank at "blank"`, `property is nil at "nil"`, `minLength is negative at "short"`} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %v", fragment, err)
		}
	}
	if !errors.Is(err, ErrMalformed) {
		t.Fatal("expected ErrMalformed")
	}
}

func TestValidate_Cycle(t *testing.T) {
	root := &Node{Type: TypeObject, Properties: NewProperties()}
	child := &Node{Type: TypeObject, Properties: NewProperties()}
	root.Properties.Set("child", child)
	child.Properties.Set("back", root)

	err := Validate(root)
	if !errors.Is(err, ErrCircular) {
		t.Fatalf("expected ErrCircular, got %v", err)
	}
}

func TestValidate_SharedSubtreeIsNotACycle(t *testing.T) {
	shared := &Node{Component: "InputText"}
	root := &Node{Properties: PropertiesOf("a", shared, "b", shared)}
	if err := Validate(root); err != nil {
		t.Fatalf("shared subtree should validate: %v", err)
	}
}

func TestNode_CloneIsDeep(t *testing.T) {
	root := loadFixture(t, "profile.json")
	clone := root.Clone()

	info, _ := clone.Properties.Get("personalInfo")
	first, _ := info.Properties.Get("firstName")
	first.ComponentProps["label"] = "Changed"
	*first.Rules.MinLength = 10

	origInfo, _ := root.Properties.Get("personalInfo")
	origFirst, _ := origInfo.Properties.Get("firstName")
	if origFirst.ComponentProps["label"] != "First Name" {
		t.Fatal("clone shares component props")
	}
	if *origFirst.Rules.MinLength != 2 {
		t.Fatal("clone shares rules")
	}
}

func TestFromMap_SortsKeys(t *testing.T) {
	node, err := FromMap(map[string]any{
		"properties": map[string]any{
			"zeta":  map[string]any{"x-component": "InputText"},
			"alpha": map[string]any{"x-component": "InputText"},
		},
	})
	if err != nil {
		t.Fatalf("from map: %v", err)
	}
	if diff := cmp.Diff([]string{"alpha", "zeta"}, node.Properties.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestJoinPath(t *testing.T) {
	cases := []struct{ parent, child, want string }{
		{"", "a", "a"},
		{"a", "", "a"},
		{"a", "b", "a.b"},
		{" a ", "b", "a.b"},
	}
	for _, tc := range cases {
		if got := JoinPath(tc.parent, tc.child); got != tc.want {
			t.Fatalf("JoinPath(%q, %q) = %q, want %q", tc.parent, tc.child, got, tc.want)
		}
	}
}

func TestDocument_Node(t *testing.T) {
	doc := MustNewDocument(SourceFromFS("form.json"), []byte(`{"properties": []}`))
	_, err := doc.Node()
	if err == nil || !strings.HasPrefix(err.Error(), "form.json: ") {
		t.Fatalf("expected location prefix, got %v", err)
	}
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}
