package form

import (
	"strconv"
	"strings"
)

// ErrorMapping splits a server error payload into field-level messages keyed
// by field name and form-level messages.
type ErrorMapping struct {
	Fields map[string][]string
	Form   []string
}

var formLevelKeys = map[string]struct{}{
	"": {}, ".": {}, "/": {}, "#": {}, "$": {},
	"form": {}, "base": {}, "__all__": {}, "non_field_errors": {}, "non-field-errors": {},
}

var wrapperSegments = map[string]struct{}{
	"body": {}, "request": {}, "payload": {}, "data": {}, "attributes": {},
}

// MapErrorPayload assigns every payload entry to the deepest known field name
// its path reaches. Paths may be dotted (`personalInfo.firstName`), JSON
// pointers (`/body/personalInfo/firstName`) or bracketed
// (`items[0].name`). Anything that matches no field is kept as a form-level
// message so it is never lost. names is usually the output of the field
// extractor.
func MapErrorPayload(names []string, payload map[string][]string) ErrorMapping {
	var mapping ErrorMapping
	if len(payload) == 0 {
		return mapping
	}

	known := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			known[name] = struct{}{}
		}
	}

	for rawPath, messages := range payload {
		messages = dedupe(messages)
		if len(messages) == 0 {
			continue
		}
		name := matchField(rawPath, known)
		if name == "" {
			mapping.Form = append(mapping.Form, messages...)
			continue
		}
		if mapping.Fields == nil {
			mapping.Fields = make(map[string][]string)
		}
		mapping.Fields[name] = dedupe(append(mapping.Fields[name], messages...))
	}
	mapping.Form = dedupe(mapping.Form)
	return mapping
}

func matchField(raw string, known map[string]struct{}) string {
	if _, formLevel := formLevelKeys[strings.ToLower(strings.TrimSpace(raw))]; formLevel {
		return ""
	}
	segments := splitPath(raw)
	if len(segments) == 0 {
		return ""
	}

	unwrapped := segments
	for len(unwrapped) > 0 {
		if _, ok := wrapperSegments[strings.ToLower(unwrapped[0])]; !ok {
			break
		}
		unwrapped = unwrapped[1:]
	}

	best := ""
	for _, candidate := range [][]string{segments, unwrapped, withoutIndexes(segments), withoutIndexes(unwrapped)} {
		for end := len(candidate); end > 0; end-- {
			path := strings.Join(candidate[:end], ".")
			if _, ok := known[path]; ok {
				if strings.Count(path, ".") > strings.Count(best, ".") || best == "" {
					best = path
				}
				break
			}
		}
	}
	return best
}

func splitPath(raw string) []string {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimLeft(clean, "#$/.")
	clean = strings.NewReplacer("[", ".", "]", "").Replace(clean)

	parts := strings.FieldsFunc(clean, func(r rune) bool { return r == '.' || r == '/' })
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		// JSON pointer escapes.
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		out = append(out, part)
	}
	return out
}

func withoutIndexes(segments []string) []string {
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		if _, err := strconv.Atoi(segment); err == nil {
			continue
		}
		out = append(out, segment)
	}
	return out
}

func dedupe(messages []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		message = strings.TrimSpace(message)
		if message == "" {
			continue
		}
		if _, ok := seen[message]; ok {
			continue
		}
		seen[message] = struct{}{}
		out = append(out, message)
	}
	return out
}
