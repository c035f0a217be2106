package timezones

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formschema/pkg/component"
	"github.com/goliatone/go-formschema/pkg/engine"
	"github.com/goliatone/go-formschema/pkg/form"
	"github.com/goliatone/go-formschema/pkg/schema"
)

func TestParseZones(t *testing.T) {
	zones, err := ParseZones(strings.NewReader(`
# Comment
Europe/Paris
America/New_York	-0500
Europe/Paris

UTC
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if diff := cmp.Diff(Zones{"America/New_York", "Europe/Paris", "UTC"}, zones); diff != "" {
		t.Fatalf("zones mismatch (-want +got):\n%s", diff)
	}
	if !zones.Contains("UTC") || zones.Contains("Mars/Olympus") {
		t.Fatalf("unexpected Contains results for %v", zones)
	}
}

func TestEmbedded(t *testing.T) {
	zones, err := Embedded()
	if err != nil {
		t.Fatalf("embedded: %v", err)
	}
	if len(zones) < 200 {
		t.Fatalf("expected a full list, got %d zones", len(zones))
	}
	for _, name := range []string{"America/New_York", "Europe/Paris", "UTC"} {
		if !zones.Contains(name) {
			t.Fatalf("missing %q", name)
		}
	}

	zones[0] = "changed"
	again, _ := Embedded()
	if again[0] == "changed" {
		t.Fatal("Embedded must return a copy")
	}
}

func TestZones_Match(t *testing.T) {
	zones := NewZones("America/New_York", "America/Newport", "Europe/Paris", "Pacific/Port_Moresby", "Australia/Perth", "UTC")

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"exact beats prefix", "utc", []string{"UTC"}},
		{"prefix before city", "america/new", []string{"America/New_York", "America/Newport"}},
		{"city prefix with spaces", "new york", []string{"America/New_York"}},
		{"prefix, then city, then substring", "p", []string{"Pacific/Port_Moresby", "Australia/Perth", "Europe/Paris", "America/Newport"}},
		{"blank", "  ", nil},
		{"no match", "lisbon", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, zones.Match(tt.query)); diff != "" {
				t.Fatalf("Match(%q) mismatch (-want +got):\n%s", tt.query, diff)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	for in, want := range map[string]string{
		"America/New_York":               "New York (America)",
		"America/Argentina/Buenos_Aires": "Buenos Aires (America/Argentina)",
		"UTC":                            "UTC",
	} {
		if got := Label(in); got != want {
			t.Fatalf("Label(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestComponent_Options(t *testing.T) {
	c, err := New(WithZones("a/x", "b/x", "c/x", "d/x"), WithLimits(2, 3))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	values := func(options []any) []string {
		var out []string
		for _, o := range options {
			out = append(out, o.(map[string]any)["value"].(string))
		}
		return out
	}

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{"empty search uses default limit", Query{}, []string{"a/x", "b/x"}},
		{"limit is capped", Query{Limit: 10}, []string{"a/x", "b/x", "c/x"}},
		{"negative limit", Query{Limit: -1}, nil},
		{"search", Query{Search: "c/"}, []string{"c/x"}},
		{"selected value stays reachable", Query{Search: "a/", Selected: "d/x"}, []string{"d/x", "a/x"}},
		{"unknown selected value is ignored", Query{Search: "a/", Selected: "zz"}, []string{"a/x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, values(c.Options(tt.query))); diff != "" {
				t.Fatalf("options mismatch (-want +got):\n%s", diff)
			}
		})
	}

	none, err := New(WithZones("a/x"), WithEmptySearch(EmptySearchNone))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := none.Options(Query{}); len(got) != 0 {
		t.Fatalf("expected no options for an empty search, got %#v", got)
	}
}

func TestQueryFromProps(t *testing.T) {
	got := QueryFromProps(component.Props{PropSearch: " europe ", PropLimit: "5", component.PropValue: "Europe/Paris"})
	if diff := cmp.Diff(Query{Search: "europe", Limit: 5, Selected: "Europe/Paris"}, got); diff != "" {
		t.Fatalf("query mismatch (-want +got):\n%s", diff)
	}
}

func TestComponent_WiresIntoEngine(t *testing.T) {
	c, err := New(WithZones("Europe/Paris", "Europe/Prague", "America/New_York"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	root, err := schema.Parse([]byte(`{
		"properties": {
			"tz":    {"x-component": "TimezoneSelect", "x-component-props": {"search": "europe/p", "limit": 1}},
			"fixed": {"x-component": "TimezoneSelect", "x-component-props": {"options": ["UTC"]}}
		}
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	e := engine.New(c.EngineOptions(nil)...)
	s, err := e.NewSession(root, form.NewMemory(map[string]any{"tz": "America/New_York"}))
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	r, err := s.Render(context.Background())
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	tz := r.Result.Tree.Find("tz")
	if tz == nil {
		t.Fatalf("expected tz to resolve")
	}
	want := []any{
		map[string]any{"label": "New York (America)", "value": "America/New_York"},
		map[string]any{"label": "Paris (Europe)", "value": "Europe/Paris"},
	}
	if diff := cmp.Diff(want, tz.Props["options"]); diff != "" {
		t.Fatalf("unexpected options (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"UTC"}, r.Result.Tree.Find("fixed").Props["options"]); diff != "" {
		t.Fatalf("declared options were replaced (-want +got):\n%s", diff)
	}

	descriptors, err := e.Fields(root, nil)
	if err != nil {
		t.Fatalf("fields: %v", err)
	}
	if len(descriptors) != 2 || descriptors[0].Kind != component.KindSelect || descriptors[0].Custom {
		t.Fatalf("expected standard select fields, got %+v", descriptors)
	}
}
