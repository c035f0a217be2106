package component

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"

	"github.com/goliatone/go-formschema/pkg/schema"
)

// Well-known prop keys.
const (
	PropName            = "name"
	PropLabel           = "label"
	PropValue           = "value"
	PropDefaultValue    = "defaultValue"
	PropOnChange        = "onChange"
	PropExternalContext = "externalContext"
	PropContent         = "content"
	PropUI              = "ui"
	PropChildren        = "children"
	PropRequired        = "required"
	PropOptions         = "options"
)

// ChangeFunc is the onChange binding handed to value-bearing components.
type ChangeFunc func(value any)

// Props is the merged property bag passed to middleware and factories.
type Props map[string]any

// Clone deep-copies JSON-like containers. Functions and other values are
// shared.
func (p Props) Clone() Props {
	if p == nil {
		return nil
	}
	return Props(schema.CloneMap(p))
}

// Merge copies every entry of src over p and returns p. A nil p allocates.
func (p Props) Merge(src map[string]any) Props {
	if p == nil {
		p = make(Props, len(src))
	}
	for key, value := range src {
		p[key] = value
	}
	return p
}

// String returns the string stored at key, or "".
func (p Props) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Bool returns the bool stored at key.
func (p Props) Bool(key string) bool {
	b, _ := p[key].(bool)
	return b
}

// OnChange returns the onChange binding, if any.
func (p Props) OnChange() ChangeFunc {
	switch fn := p[PropOnChange].(type) {
	case ChangeFunc:
		return fn
	case func(any):
		return fn
	}
	return nil
}

// MarshalJSON writes props with sorted keys and leaves out function values,
// which have no data representation. Two prop bags built from the same inputs
// therefore marshal to identical bytes.
func (p Props) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	keys := make([]string, 0, len(p))
	for key, value := range p {
		if value != nil && reflect.TypeOf(value).Kind() == reflect.Func {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		v, err := json.Marshal(p[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
