// Package form defines the form-state contract the engine depends on and an
// in-memory implementation of it.
//
// The resolver only reads a snapshot of the values; writes happen through the
// onChange bindings it hands to components, which call SetValue on the
// adapter outside the resolution pass.
package form

import "errors"

// ErrInvalid is returned by a submit handler when validation fails.
var ErrInvalid = errors.New("form: invalid")

// Change is a value-change notification. Name is the dotted path that was
// written; it is empty after Reset.
type Change struct {
	Name    string
	Value   any
	Version uint64
}

// RegisterOptions configures a registered field.
type RegisterOptions struct {
	Label    string
	Required bool
	// RequiredMessage replaces the default "<label> is required" error.
	RequiredMessage string
	// Validate runs on submit after the required check. A non-nil error
	// becomes the field's error message.
	Validate func(value any) error
}

// SubmitFunc receives the values snapshot of a valid form.
type SubmitFunc func(values map[string]any) error

// Adapter is the form-state contract.
type Adapter interface {
	Values() map[string]any
	Value(name string) (any, bool)
	SetValue(name string, value any) error
	// Watch subscribes to changes of name, or of every field when name is
	// empty. The returned function cancels the subscription.
	Watch(name string) (<-chan Change, func())
	Register(name string, options RegisterOptions) error
	Unregister(name string)
	Errors() map[string][]string
	SetError(name, message string)
	ClearErrors(names ...string)
	IsValid() bool
	HandleSubmit(onSubmit SubmitFunc) func() error
	Reset(values map[string]any)
}

// Versioned is implemented by adapters that count writes. The engine uses it
// to tell whether a finished pass is already stale.
type Versioned interface {
	Version() uint64
}
