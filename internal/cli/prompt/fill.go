package prompt

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/goliatone/go-formschema/pkg/component"
	"github.com/goliatone/go-formschema/pkg/engine"
	"github.com/goliatone/go-formschema/pkg/fields"
	"github.com/goliatone/go-formschema/pkg/form"
)

// validator is implemented by form adapters that can run their field
// validators on demand, such as form.Memory.
type validator interface {
	Validate() bool
}

// Fill prompts for every visible field of the session and returns the
// submitted values. The session is re-rendered after each answer, so fields
// that become visible are asked for as well. The session should have field
// registration enabled for the declared rules to be enforced while typing.
func Fill(ctx context.Context, session *engine.Session, driver Driver) (map[string]any, error) {
	if session == nil {
		return nil, errors.New("prompt: session is nil")
	}
	if driver == nil {
		return nil, errors.New("prompt: driver is nil")
	}

	asked := make(map[string]struct{})
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := session.Render(ctx); err != nil {
			return nil, err
		}
		descriptors, err := session.Fields()
		if err != nil {
			return nil, err
		}
		next, ok := nextField(descriptors, asked)
		if !ok {
			break
		}
		asked[next.Name] = struct{}{}
		if err := ask(ctx, session.Form(), driver, next); err != nil {
			return nil, err
		}
	}

	var submitted map[string]any
	err := session.Submit(func(values map[string]any) error {
		submitted = values
		return nil
	})
	if errors.Is(err, form.ErrInvalid) {
		return nil, fmt.Errorf("prompt: %w: %s", err, describeErrors(session.Form().Errors()))
	}
	return submitted, err
}

func nextField(descriptors []fields.Descriptor, asked map[string]struct{}) (fields.Descriptor, bool) {
	for _, d := range descriptors {
		if !d.Visible {
			continue
		}
		if _, done := asked[d.Name]; !done {
			return d, true
		}
	}
	return fields.Descriptor{}, false
}

// ask prompts until the answer passes the field validators.
func ask(ctx context.Context, f form.Adapter, driver Driver, d fields.Descriptor) error {
	for {
		value, err := answer(ctx, f, driver, d)
		if errors.Is(err, errRetry) {
			continue
		}
		if err != nil {
			return err
		}
		if err := f.SetValue(d.Name, value); err != nil {
			return err
		}
		messages := check(f, d.Name)
		if len(messages) == 0 {
			return nil
		}
		if err := driver.Info(ctx, strings.Join(messages, "; ")); err != nil {
			return err
		}
	}
}

var errRetry = errors.New("prompt: retry")

func answer(ctx context.Context, f form.Adapter, driver Driver, d fields.Descriptor) (any, error) {
	current, _ := f.Value(d.Name)
	if current == nil {
		current = d.Props["defaultValue"]
	}
	help := cast.ToString(d.Props["description"])

	switch d.Kind {
	case component.KindBoolean:
		return driver.Confirm(ctx, ConfirmConfig{Message: d.Label, Default: cast.ToBool(current), Help: help})

	case component.KindNumber:
		raw, err := driver.Input(ctx, InputConfig{Message: d.Label, Default: stringDefault(current), Help: help})
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(raw) == "" {
			return nil, nil
		}
		n, err := cast.ToFloat64E(strings.TrimSpace(raw))
		if err != nil {
			if infoErr := driver.Info(ctx, fmt.Sprintf("%s: %q is not a number", d.Label, raw)); infoErr != nil {
				return nil, infoErr
			}
			return nil, errRetry
		}
		return n, nil

	case component.KindSelect:
		options := optionsOf(d.Props)
		idx, err := driver.Select(ctx, SelectConfig{
			Message:      d.Label,
			Options:      labelsOf(options),
			DefaultIndex: indexOfValue(options, current),
			Help:         help,
		})
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(options) {
			return nil, errRetry
		}
		return options[idx].value, nil

	case component.KindMulti:
		options := optionsOf(d.Props)
		var defaults []int
		for _, v := range cast.ToSlice(current) {
			if idx := indexOfValue(options, v); idx >= 0 {
				defaults = append(defaults, idx)
			}
		}
		picked, err := driver.MultiSelect(ctx, SelectConfig{
			Message:  d.Label,
			Options:  labelsOf(options),
			Defaults: defaults,
			Help:     help,
		})
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(picked))
		for _, idx := range picked {
			if idx >= 0 && idx < len(options) {
				out = append(out, options[idx].value)
			}
		}
		return out, nil
	}

	cfg := InputConfig{Message: d.Label, Default: stringDefault(current), Help: help}
	switch {
	case d.Component == fields.InputPassword || d.Props["type"] == "password":
		return driver.Password(ctx, cfg)
	case d.Component == fields.Textarea:
		return driver.TextArea(ctx, cfg)
	}
	return driver.Input(ctx, cfg)
}

// check validates the form and returns the messages of one field. Other
// fields' errors are cleared again so unanswered fields do not linger.
func check(f form.Adapter, name string) []string {
	v, ok := f.(validator)
	if !ok {
		return nil
	}
	v.Validate()
	messages := f.Errors()[name]
	f.ClearErrors()
	return messages
}

type option struct {
	label string
	value any
}

// optionsOf reads the options prop: a list of {label, value} maps or of bare
// values.
func optionsOf(props component.Props) []option {
	var out []option
	for _, raw := range cast.ToSlice(props["options"]) {
		entry, ok := raw.(map[string]any)
		if !ok {
			out = append(out, option{label: cast.ToString(raw), value: raw})
			continue
		}
		value := entry["value"]
		label := cast.ToString(entry["label"])
		if label == "" {
			label = cast.ToString(value)
		}
		out = append(out, option{label: label, value: value})
	}
	return out
}

func labelsOf(options []option) []string {
	out := make([]string, len(options))
	for i, o := range options {
		out[i] = o.label
	}
	return out
}

func indexOfValue(options []option, value any) int {
	if value == nil {
		return -1
	}
	want := cast.ToString(value)
	for i, o := range options {
		if cast.ToString(o.value) == want {
			return i
		}
	}
	return -1
}

func stringDefault(value any) string {
	if value == nil {
		return ""
	}
	return cast.ToString(value)
}

func describeErrors(errs map[string][]string) string {
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+strings.Join(errs[name], ", "))
	}
	return strings.Join(parts, "; ")
}
