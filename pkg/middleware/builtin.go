package middleware

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formschema/pkg/component"
)

// Prefix prepends p to the label prop when one is set.
func Prefix(p string) Middleware {
	return Map(func(props component.Props, _ Info) component.Props {
		if label, ok := props[component.PropLabel].(string); ok {
			out := props.Clone()
			out[component.PropLabel] = p + label
			return out
		}
		return props
	})
}

// Suffix appends s to the label prop when one is set.
func Suffix(s string) Middleware {
	return Map(func(props component.Props, _ Info) component.Props {
		if label, ok := props[component.PropLabel].(string); ok {
			out := props.Clone()
			out[component.PropLabel] = label + s
			return out
		}
		return props
	})
}

// RequiredMarker appends marker to the label of nodes whose rules declare
// required, and sets the required prop.
func RequiredMarker(marker string) Middleware {
	return Map(func(props component.Props, info Info) component.Props {
		if info.Node == nil || info.Node.Rules == nil || !info.Node.Rules.Required {
			return props
		}
		out := props.Clone()
		out[component.PropRequired] = true
		if label, ok := out[component.PropLabel].(string); ok && !strings.HasSuffix(label, marker) {
			out[component.PropLabel] = label + marker
		}
		return out
	})
}

// Default sets key to value when the prop is absent.
func Default(key string, value any) Middleware {
	return Map(func(props component.Props, _ Info) component.Props {
		if _, ok := props[key]; ok {
			return props
		}
		out := props.Clone()
		if out == nil {
			out = component.Props{}
		}
		out[key] = value
		return out
	})
}

// When applies mw only to nodes accepted by match.
func When(match func(Info) bool, mw Middleware) Middleware {
	return Func(func(props component.Props, info Info) (component.Props, error) {
		if match == nil || !match(info) {
			return props, nil
		}
		return mw.Apply(props, info)
	})
}

// ForComponent restricts mw to the given component ids.
func ForComponent(mw Middleware, ids ...string) Middleware {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return When(func(info Info) bool {
		_, ok := set[info.Component]
		return ok
	}, mw)
}

// DefaultSanitizeKeys are the props Sanitize cleans when called without keys.
var DefaultSanitizeKeys = []string{component.PropLabel, component.PropContent, "placeholder", "description", "helpText"}

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// Sanitize strips markup from the named string props. Expressions can pull
// caller data into labels and content, so this keeps injected HTML out of
// the rendered output.
func Sanitize(keys ...string) Middleware {
	if len(keys) == 0 {
		keys = DefaultSanitizeKeys
	}
	return Map(func(props component.Props, _ Info) component.Props {
		var out component.Props
		for _, key := range keys {
			raw, ok := props[key].(string)
			if !ok || raw == "" {
				continue
			}
			cleaned := sanitizer().Sanitize(raw)
			if cleaned == raw {
				continue
			}
			if out == nil {
				out = props.Clone()
			}
			out[key] = cleaned
		}
		if out == nil {
			return props
		}
		return out
	})
}

func sanitizer() *bluemonday.Policy {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return textPolicy
}
