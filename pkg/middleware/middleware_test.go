package middleware

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formschema/pkg/component"
	"github.com/goliatone/go-formschema/pkg/schema"
)

func TestChainAppliesInDeclarationOrder(t *testing.T) {
	chain := Chain{Prefix("A-"), Prefix("B-")}

	out, err := chain.Apply(component.Props{component.PropLabel: "X"}, Info{Path: "x"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := out.String(component.PropLabel); got != "B-A-X" {
		t.Fatalf("label = %q, want %q", got, "B-A-X")
	}
}

func TestChainDoesNotMutateInput(t *testing.T) {
	in := component.Props{component.PropLabel: "X"}
	if _, err := (Chain{Prefix("A-"), Suffix("!")}).Apply(in, Info{}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if in[component.PropLabel] != "X" {
		t.Fatalf("input mutated: %v", in)
	}
}

func TestChainStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	var ran []int
	record := func(i int) Middleware {
		return Map(func(props component.Props, _ Info) component.Props {
			ran = append(ran, i)
			return props
		})
	}
	chain := Chain{
		record(0),
		Func(func(component.Props, Info) (component.Props, error) { return nil, boom }),
		record(2),
	}

	var observed []int
	_, err := chain.ApplyObserved(component.Props{}, Info{Path: "a.b"}, func(index int, _ Info, err error) {
		observed = append(observed, index)
	})

	var mwErr *Error
	if !errors.As(err, &mwErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if mwErr.Index != 1 || mwErr.Path != "a.b" || !errors.Is(err, boom) {
		t.Fatalf("unexpected error %+v", mwErr)
	}
	if diff := cmp.Diff([]int{0}, ran); diff != "" {
		t.Fatalf("ran mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 1}, observed); diff != "" {
		t.Fatalf("observed mismatch (-want +got):\n%s", diff)
	}
}

func TestChainRecoversPanics(t *testing.T) {
	chain := Chain{Map(func(component.Props, Info) component.Props { panic("bad middleware") })}
	_, err := chain.Apply(component.Props{}, Info{})
	if !errors.Is(err, ErrPanic) {
		t.Fatalf("expected ErrPanic, got %v", err)
	}
}

func TestChainRejectsNilProps(t *testing.T) {
	chain := Chain{Map(func(component.Props, Info) component.Props { return nil })}
	if _, err := chain.Apply(component.Props{}, Info{}); err == nil {
		t.Fatal("expected error for nil props")
	}
}

func TestRequiredMarker(t *testing.T) {
	required := &schema.Node{Rules: &schema.Rules{Required: true}}
	mw := RequiredMarker(" *")

	out, err := mw.Apply(component.Props{component.PropLabel: "Email"}, Info{Node: required})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := component.Props{component.PropLabel: "Email *", component.PropRequired: true}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("props mismatch (-want +got):\n%s", diff)
	}

	again, _ := mw.Apply(out, Info{Node: required})
	if again.String(component.PropLabel) != "Email *" {
		t.Fatalf("marker applied twice: %q", again.String(component.PropLabel))
	}

	plain, _ := mw.Apply(component.Props{component.PropLabel: "Name"}, Info{Node: &schema.Node{}})
	if plain.String(component.PropLabel) != "Name" {
		t.Fatal("optional fields keep their label")
	}
}

func TestSanitize(t *testing.T) {
	out, err := Sanitize().Apply(component.Props{
		component.PropLabel:   `<b>Name</b><script>alert(1)</script>`,
		component.PropContent: "plain",
		"other":               "<i>kept</i>",
	}, Info{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := out.String(component.PropLabel); got != "Name" {
		t.Fatalf("label = %q", got)
	}
	if out.String("other") != "<i>kept</i>" {
		t.Fatal("keys outside the list must be untouched")
	}
}

func TestForComponentAndDefault(t *testing.T) {
	mw := ForComponent(Default("placeholder", "Type here"), "InputText")

	out, _ := mw.Apply(component.Props{}, Info{Component: "InputText"})
	if out.String("placeholder") != "Type here" {
		t.Fatalf("expected default, got %v", out)
	}
	out, _ = mw.Apply(component.Props{}, Info{Component: "Checkbox"})
	if _, ok := out["placeholder"]; ok {
		t.Fatal("other components must be skipped")
	}
	out, _ = mw.Apply(component.Props{"placeholder": "mine"}, Info{Component: "InputText"})
	if out.String("placeholder") != "mine" {
		t.Fatal("existing props win over defaults")
	}
}
