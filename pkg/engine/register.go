package engine

import (
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/spf13/cast"

	"github.com/goliatone/go-formschema/pkg/form"
	"github.com/goliatone/go-formschema/pkg/resolver"
	"github.com/goliatone/go-formschema/pkg/schema"
	"github.com/goliatone/go-formschema/pkg/validation"
)

// syncFields registers the fields tree rendered with the form and
// unregisters the ones that disappeared since the previous sync.
func (s *Session) syncFields(root *schema.Node, tree *resolver.ResolvedNode, values, external map[string]any) error {
	descriptors, err := s.visibleFields(root, tree, values, external)
	if err != nil {
		return err
	}
	generated := validation.FromFields(descriptors, s.engine.validationOptions(values, external))
	byField := make(map[string][]validation.Constraint)
	for _, c := range generated.Constraints {
		byField[c.Field] = append(byField[c.Field], c)
	}

	s.regMu.Lock()
	defer s.regMu.Unlock()

	seen := make(map[string]struct{}, len(descriptors))
	for _, d := range descriptors {
		seen[d.Name] = struct{}{}
		options := form.RegisterOptions{Label: d.Label}
		var checks []validation.Constraint
		for _, c := range byField[d.Name] {
			if c.Rule == schema.RuleRequired {
				options.Required = true
				options.RequiredMessage = c.Message
				continue
			}
			checks = append(checks, c)
		}
		if len(checks) > 0 {
			validate, err := checker(checks)
			if err != nil {
				return fmt.Errorf("engine: field %q: %w", d.Name, err)
			}
			options.Validate = validate
		}
		if err := s.form.Register(d.Name, options); err != nil {
			return fmt.Errorf("engine: register %q: %w", d.Name, err)
		}
	}
	for name := range s.registered {
		if _, ok := seen[name]; !ok {
			s.form.Unregister(name)
		}
	}
	s.registered = seen
	return nil
}

// checker compiles constraints into a form validator. Empty values pass;
// required is checked by the form itself.
func checker(constraints []validation.Constraint) (func(any) error, error) {
	patterns := make(map[int]*regexp.Regexp)
	for i, c := range constraints {
		if c.Rule != schema.RulePattern {
			continue
		}
		re, err := regexp.Compile(cast.ToString(c.Value))
		if err != nil {
			return nil, err
		}
		patterns[i] = re
	}

	return func(value any) error {
		if empty(value) {
			return nil
		}
		for i, c := range constraints {
			if !satisfies(c, value, patterns[i]) {
				return errors.New(c.Message)
			}
		}
		return nil
	}, nil
}

func satisfies(c validation.Constraint, value any, re *regexp.Regexp) bool {
	switch c.Rule {
	case schema.RuleMinLength:
		return length(value) >= cast.ToInt(c.Value)
	case schema.RuleMaxLength:
		return length(value) <= cast.ToInt(c.Value)
	case schema.RulePattern:
		return re != nil && re.MatchString(cast.ToString(value))
	case schema.RuleMin:
		n, err := cast.ToFloat64E(value)
		return err == nil && n >= cast.ToFloat64(c.Value)
	case schema.RuleMax:
		n, err := cast.ToFloat64E(value)
		return err == nil && n <= cast.ToFloat64(c.Value)
	}
	return true
}

func length(value any) int {
	switch typed := value.(type) {
	case string:
		return utf8.RuneCountInString(typed)
	case []any:
		return len(typed)
	case []string:
		return len(typed)
	}
	return utf8.RuneCountInString(cast.ToString(value))
}

func empty(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	case []any:
		return len(typed) == 0
	}
	return false
}
