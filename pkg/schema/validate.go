package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformed marks structural problems in a schema document.
	ErrMalformed = errors.New("schema: malformed schema")
	// ErrCircular marks a node that is reachable from itself.
	ErrCircular = errors.New("schema: circular structural reference")
)

// StructuralError describes a malformed node. Path is the dotted property
// path of the offending node (empty for the root).
type StructuralError struct {
	Path   string
	Reason string
	cause  error
}

// NewStructuralError builds a StructuralError with an optional cause.
func NewStructuralError(path, reason string, cause error) *StructuralError {
	return &StructuralError{Path: path, Reason: reason, cause: cause}
}

func (e *StructuralError) Error() string {
	if e.Path == "" {
		return "schema: " + e.Reason
	}
	return fmt.Sprintf("schema: %s at %q", e.Reason, e.Path)
}

// Is matches ErrMalformed, and ErrCircular when the cause is a cycle.
func (e *StructuralError) Is(target error) bool {
	if target == ErrMalformed {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// Unwrap exposes the cause.
func (e *StructuralError) Unwrap() error {
	return e.cause
}

// Validate walks the tree and reports every structural problem it finds:
// nil or cyclic children, empty property keys, blank component ids and
// negative length rules. The returned error joins all problems; each one
// satisfies errors.Is(err, ErrMalformed).
func Validate(root *Node) error {
	if root == nil {
		return NewStructuralError("", "root node is nil", nil)
	}
	v := &validator{onPath: make(map[*Node]struct{})}
	v.walk(root, "")
	return errors.Join(v.errs...)
}

type validator struct {
	onPath map[*Node]struct{}
	errs   []error
}

func (v *validator) add(path, reason string, cause error) {
	v.errs = append(v.errs, NewStructuralError(path, reason, cause))
}

func (v *validator) walk(node *Node, path string) {
	if _, seen := v.onPath[node]; seen {
		v.add(path, "node references one of its ancestors", ErrCircular)
		return
	}
	v.onPath[node] = struct{}{}
	defer delete(v.onPath, node)

	if node.Component != "" && strings.TrimSpace(node.Component) == "" {
		v.add(path, "x-component is blank", nil)
	}
	if rules := node.Rules; rules != nil {
		if rules.MinLength != nil && *rules.MinLength < 0 {
			v.add(path, "x-rules.minLength is negative", nil)
		}
		if rules.MaxLength != nil && *rules.MaxLength < 0 {
			v.add(path, "x-rules.maxLength is negative", nil)
		}
		if rules.MinLength != nil && rules.MaxLength != nil && *rules.MinLength > *rules.MaxLength {
			v.add(path, "x-rules.minLength exceeds maxLength", nil)
		}
	}

	node.Properties.Each(func(key string, child *Node) bool {
		childPath := JoinPath(path, key)
		if strings.TrimSpace(key) == "" {
			v.add(path, "property key is empty", nil)
			return true
		}
		if child == nil {
			v.add(childPath, "property is nil", nil)
			return true
		}
		v.walk(child, childPath)
		return true
	})
}
