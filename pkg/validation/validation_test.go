package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formschema/pkg/schema"
)

func mustParse(t *testing.T, doc string) *schema.Node {
	t.Helper()
	node, err := schema.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return node
}

func mustGenerate(t *testing.T, doc string, opts Options) Result {
	t.Helper()
	result, err := Generate(mustParse(t, doc), opts)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return result
}

func messageFor(result Result, field, rule string) string {
	for _, c := range result.Constraints {
		if c.Field == field && c.Rule == rule {
			return c.Message
		}
	}
	return ""
}

const signupSchema = `{
  "properties": {
    "personalInfo": {
      "x-component": "FormSection",
      "properties": {
        "firstName": {
          "x-component": "InputText",
          "x-component-props": {"label": "First Name"},
          "x-rules": {"required": true, "minLength": 2, "maxLength": 40}
        },
        "age": {"x-component": "InputNumber", "title": "Age", "x-rules": {"min": 18, "max": 120}}
      }
    },
    "email": {
      "x-component": "InputEmail",
      "x-component-props": {"label": "Email", "defaultValue": "me@example.com"},
      "x-rules": {"required": true, "pattern": "^[^@]+@[^@]+$"}
    },
    "terms": {"x-component": "Checkbox", "x-component-props": {"label": "Terms"}}
  }
}`

func TestGenerate_RequiredMessage(t *testing.T) {
	result := mustGenerate(t, signupSchema, Options{Locale: "en"})
	if got := messageFor(result, "personalInfo.firstName", "required"); got != "First Name is required" {
		t.Fatalf("required message = %q", got)
	}
	if len(result.Issues) != 0 {
		t.Fatalf("unexpected issues: %v", result.Issues)
	}
}

func TestGenerate_Locales(t *testing.T) {
	tests := []struct {
		locale string
		want   string
	}{
		{"", "First Name is required"},
		{"es", "First Name es obligatorio"},
		{"es-MX", "First Name es obligatorio"},
		{"es_mx", "First Name es obligatorio"},
		{"fr", "First Name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			result := mustGenerate(t, signupSchema, Options{Locale: tt.locale})
			if got := messageFor(result, "personalInfo.firstName", "required"); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerate_SchemaShape(t *testing.T) {
	result := mustGenerate(t, signupSchema, Options{})

	want := map[string]any{
		"type":     "object",
		"required": []string{"email"},
		"properties": map[string]any{
			"personalInfo": map[string]any{
				"type":     "object",
				"required": []string{"firstName"},
				"properties": map[string]any{
					"firstName": map[string]any{
						"type":      "string",
						"minLength": 2,
						"maxLength": 40,
						"errorMessage": map[string]any{
							"required":  "First Name is required",
							"minLength": "First Name must be at least 2 characters",
							"maxLength": "First Name must be at most 40 characters",
						},
					},
					"age": map[string]any{
						"type":    "number",
						"minimum": 18.0,
						"maximum": 120.0,
						"errorMessage": map[string]any{
							"minimum": "Age must be at least 18",
							"maximum": "Age must be at most 120",
						},
					},
				},
			},
			"email": map[string]any{
				"type":    "string",
				"pattern": "^[^@]+@[^@]+$",
				"errorMessage": map[string]any{
					"required": "Email is required",
					"pattern":  "Email has an invalid format",
				},
			},
			"terms": map[string]any{"type": "boolean"},
		},
	}
	if diff := cmp.Diff(want, result.Schema); diff != "" {
		t.Fatalf("schema mismatch (-want +got):\n%s", diff)
	}

	wantValues := map[string]any{
		"personalInfo": map[string]any{"firstName": "", "age": nil},
		"email":        "me@example.com",
		"terms":        false,
	}
	if diff := cmp.Diff(wantValues, result.InitialValues); diff != "" {
		t.Fatalf("initial values mismatch (-want +got):\n%s", diff)
	}

	var rules []string
	for _, c := range result.Constraints {
		rules = append(rules, c.Field+":"+c.Rule)
	}
	wantRules := []string{
		"personalInfo.firstName:required",
		"personalInfo.firstName:minLength",
		"personalInfo.firstName:maxLength",
		"personalInfo.age:min",
		"personalInfo.age:max",
		"email:required",
		"email:pattern",
	}
	if diff := cmp.Diff(wantRules, rules); diff != "" {
		t.Fatalf("constraints mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_CustomFields(t *testing.T) {
	result := mustGenerate(t, `{"properties": {
		"rating": {"x-component": "InputStars"},
		"signature": {"x-component": "SignaturePad", "x-component-props": {"label": "Signature"}, "x-rules": {"required": true}}
	}}`, Options{})

	if _, ok := result.InitialValues["rating"]; ok {
		t.Fatal("custom field without rules must be skipped")
	}
	if got := messageFor(result, "signature", "required"); got != "Signature is required" {
		t.Fatalf("message = %q", got)
	}
	prop := result.Schema["properties"].(map[string]any)["signature"].(map[string]any)
	if _, ok := prop["type"]; ok {
		t.Fatalf("custom fields carry no type: %v", prop)
	}
}

func TestGenerate_Issues(t *testing.T) {
	result := mustGenerate(t, `{"properties": {
		"code": {
			"x-component": "InputText",
			"title": "Code",
			"x-rules": {"required": true, "pattern": "([a-z", "creditCard": true, "minLength": "two"}
		},
		"agree": {"x-component": "Checkbox", "x-rules": {"min": 1}}
	}}`, Options{})

	if got := messageFor(result, "code", "required"); got != "Code is required" {
		t.Fatalf("valid rules must still be generated, got %q", got)
	}
	if messageFor(result, "code", "pattern") != "" {
		t.Fatal("bad pattern must be skipped")
	}

	var got []string
	for _, issue := range result.Issues {
		got = append(got, issue.Field+":"+issue.Rule)
	}
	want := []string{"code:pattern", "code:creditCard", "code:minLength", "agree:min"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
	if d := result.Issues[1].Diagnostic(); d.Path != "code" || !strings.Contains(d.Message, "creditCard") {
		t.Fatalf("unexpected diagnostic %+v", d)
	}
}

func TestGenerate_MessageOverrides(t *testing.T) {
	doc := `{"properties": {
		"nick": {
			"x-component": "InputText",
			"title": "Nickname",
			"x-rules": {"required": true, "minLength": 3, "messages": {"required": "Pick a {{label|lower}}, {{ $externalContext.user }}"}}
		}
	}}`
	result := mustGenerate(t, doc, Options{
		Messages:        map[string]string{"minLength": "{{minLength}}+ chars please", "required": "ignored"},
		ExternalContext: map[string]any{"user": "Ada"},
	})
	if got := messageFor(result, "nick", "required"); got != "Pick a nickname, Ada" {
		t.Fatalf("field override = %q", got)
	}
	if got := messageFor(result, "nick", "minLength"); got != "3+ chars please" {
		t.Fatalf("call override = %q", got)
	}
}

func TestGenerate_TranslatorAndMissingMessages(t *testing.T) {
	doc := `{"properties": {"nick": {"x-component": "InputText", "title": "Nick", "x-rules": {"required": true}}}}`

	tr := TranslatorFunc(func(locale, key string, args ...any) (string, error) {
		params := args[0].(map[string]any)
		return locale + "/" + key + "/" + params["label"].(string), nil
	})
	result := mustGenerate(t, doc, Options{Locale: "de", Translator: tr})
	if got := messageFor(result, "nick", "required"); got != "de/required/Nick" {
		t.Fatalf("translator message = %q", got)
	}

	empty := mustGenerate(t, doc, Options{Catalog: NewEmptyCatalog()})
	if got := messageFor(empty, "nick", "required"); got != "Nick: required" {
		t.Fatalf("fallback message = %q", got)
	}
	if len(empty.Issues) != 1 || empty.Issues[0].Rule != "required" {
		t.Fatalf("expected a missing message issue, got %v", empty.Issues)
	}
}

func TestGenerate_SkipsHiddenFieldsInSnapshot(t *testing.T) {
	doc := `{"properties": {
		"newsletter": {"x-component": "Checkbox"},
		"email": {"x-component": "InputEmail", "x-rules": {"required": true, "visibleWhen": "newsletter"}}
	}}`

	static := mustGenerate(t, doc, Options{})
	if messageFor(static, "email", "required") == "" {
		t.Fatal("static generation keeps conditional fields")
	}
	if required, ok := static.Schema["required"]; ok {
		t.Fatalf("conditional field listed as required in static mode: %v", required)
	}

	hidden := mustGenerate(t, doc, Options{Values: map[string]any{"newsletter": false}})
	if messageFor(hidden, "email", "required") != "" {
		t.Fatal("hidden field must not be validated")
	}
	visible := mustGenerate(t, doc, Options{Values: map[string]any{"newsletter": true}})
	if messageFor(visible, "email", "required") == "" {
		t.Fatal("visible field must be validated")
	}
	if diff := cmp.Diff([]string{"email"}, visible.Schema["required"]); diff != "" {
		t.Fatalf("required mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_MultiSelectUsesItemBounds(t *testing.T) {
	result := mustGenerate(t, `{"properties": {"tags": {"x-component": "MultiSelect", "title": "Tags", "x-rules": {"minLength": 1}}}}`, Options{})
	prop := result.Schema["properties"].(map[string]any)["tags"].(map[string]any)
	if prop["type"] != "array" || prop["minItems"] != 1 {
		t.Fatalf("unexpected prop %v", prop)
	}
	if diff := cmp.Diff([]any{}, result.InitialValues["tags"]); diff != "" {
		t.Fatalf("initial value mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_MalformedSchema(t *testing.T) {
	if _, err := Generate(nil, Options{}); !errors.Is(err, schema.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestCatalog(t *testing.T) {
	c := NewCatalog()
	if diff := cmp.Diff([]string{"en", "es"}, c.Locales()); diff != "" {
		t.Fatalf("locales mismatch (-want +got):\n%s", diff)
	}

	out, err := c.Render("{{label}} & <b>more</b>", map[string]any{"label": "A<B"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "A<B & <b>more</b>" {
		t.Fatalf("messages must not be escaped, got %q", out)
	}

	if _, err := c.Render("{% include \"x.tpl\" %}", nil); err == nil {
		t.Fatal("expected include to be rejected")
	}
	if _, err := c.Render("{{ label ", nil); err == nil {
		t.Fatal("expected a compile error")
	}

	if _, err := c.Translate("en", "luhn"); !errors.Is(err, ErrMissingTranslation) {
		t.Fatalf("expected ErrMissingTranslation, got %v", err)
	}
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog([]byte("es-MX:\n  required: \"{{label}} es requerido\"\nfr:\n  required: \"{{label}} est obligatoire\"\n"))
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	params := map[string]any{"label": "Nombre", "minLength": "3"}

	tests := []struct {
		locale, rule, want string
	}{
		{"es-MX", "required", "Nombre es requerido"},
		{"es-MX", "minLength", "Nombre debe tener al menos 3 caracteres"},
		{"es", "required", "Nombre es obligatorio"},
		{"fr-CA", "required", "Nombre est obligatoire"},
		{"fr", "minLength", "Nombre must be at least 3 characters"},
	}
	for _, tt := range tests {
		got, err := c.Translate(tt.locale, tt.rule, params)
		if err != nil {
			t.Fatalf("Translate(%s, %s): %v", tt.locale, tt.rule, err)
		}
		if got != tt.want {
			t.Fatalf("Translate(%s, %s) = %q, want %q", tt.locale, tt.rule, got, tt.want)
		}
	}

	if _, err := LoadCatalog([]byte("- not\n- a map\n")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestFallbackChain(t *testing.T) {
	tests := map[string][]string{
		"":           {"en"},
		"en":         {"en"},
		"es-MX":      {"es-mx", "es", "en"},
		"zh_Hant_TW": {"zh-hant-tw", "zh-hant", "zh", "en"},
	}
	for locale, want := range tests {
		if diff := cmp.Diff(want, FallbackChain(locale)); diff != "" {
			t.Fatalf("FallbackChain(%q) mismatch (-want +got):\n%s", locale, diff)
		}
	}
}
