package form

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formschema/pkg/expression"
	"github.com/goliatone/go-formschema/pkg/schema"
)

// watchBuffer is the per-subscriber channel capacity. When a subscriber
// falls behind, further notifications are dropped; the next one it reads
// still carries the latest version.
const watchBuffer = 8

type watcher struct {
	name string
	ch   chan Change
}

// Memory is an in-memory Adapter. Values are stored as nested maps addressed
// by dotted paths. It is safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	values     map[string]any
	defaults   map[string]any
	registered map[string]RegisterOptions
	errors     map[string][]string
	version    uint64

	watchMu  sync.Mutex
	watchers map[int]watcher
	nextID   int
}

var (
	_ Adapter   = (*Memory)(nil)
	_ Versioned = (*Memory)(nil)
)

// NewMemory returns an adapter seeded with a deep copy of initial.
func NewMemory(initial map[string]any) *Memory {
	return &Memory{
		values:     cloneValues(initial),
		defaults:   cloneValues(initial),
		registered: make(map[string]RegisterOptions),
		errors:     make(map[string][]string),
		watchers:   make(map[int]watcher),
	}
}

// Values returns a deep copy of the current values.
func (m *Memory) Values() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneValues(m.values)
}

// Value returns the value at a dotted path.
func (m *Memory) Value(name string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := expression.Lookup(m.values, name)
	if !ok {
		return nil, false
	}
	return schema.CloneValue(value), true
}

// SetValue writes value at a dotted path, creating intermediate objects.
func (m *Memory) SetValue(name string, value any) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("form: field name is required")
	}

	m.mu.Lock()
	if err := setPath(m.values, name, schema.CloneValue(value)); err != nil {
		m.mu.Unlock()
		return err
	}
	m.version++
	version := m.version
	m.mu.Unlock()

	m.notify(Change{Name: name, Value: schema.CloneValue(value), Version: version})
	return nil
}

// Version counts writes since construction.
func (m *Memory) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// Watch implements Adapter. A watcher on "a" also sees writes to "a.b" and
// writes to its parent "" (reset).
func (m *Memory) Watch(name string) (<-chan Change, func()) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	id := m.nextID
	m.nextID++
	ch := make(chan Change, watchBuffer)
	m.watchers[id] = watcher{name: strings.TrimSpace(name), ch: ch}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.watchMu.Lock()
			delete(m.watchers, id)
			m.watchMu.Unlock()
			close(ch)
		})
	}
}

func (m *Memory) notify(change Change) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	for _, w := range m.watchers {
		if !watches(w.name, change.Name) {
			continue
		}
		select {
		case w.ch <- change:
		default:
		}
	}
}

func watches(watched, changed string) bool {
	if watched == "" || changed == "" || watched == changed {
		return true
	}
	return strings.HasPrefix(changed, watched+".") || strings.HasPrefix(watched, changed+".")
}

// Register records a field and its validation options.
func (m *Memory) Register(name string, options RegisterOptions) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("form: field name is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered[name] = options
	return nil
}

// Unregister forgets a field and its errors. Its value is kept.
func (m *Memory) Unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.registered, name)
	delete(m.errors, name)
}

// Registered returns the registered field names sorted.
func (m *Memory) Registered() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.registered))
	for name := range m.registered {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Errors returns a copy of the field errors.
func (m *Memory) Errors() map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]string, len(m.errors))
	for name, messages := range m.errors {
		out[name] = append([]string(nil), messages...)
	}
	return out
}

// SetError appends message to name's errors.
func (m *Memory) SetError(name, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[name] = append(m.errors[name], message)
}

// ClearErrors clears the named fields, or every field when called without
// names.
func (m *Memory) ClearErrors(names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(names) == 0 {
		m.errors = make(map[string][]string)
		return
	}
	for _, name := range names {
		delete(m.errors, name)
	}
}

// ApplyErrors merges a mapped server payload into the field errors.
func (m *Memory) ApplyErrors(mapping ErrorMapping) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, messages := range mapping.Fields {
		m.errors[name] = append(m.errors[name], messages...)
	}
}

// IsValid reports whether no field has errors.
func (m *Memory) IsValid() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.errors) == 0
}

// Validate runs the registered validators and replaces the field errors with
// the result. Validators run without the form lock held, so they may read
// the form.
func (m *Memory) Validate() bool {
	m.mu.RLock()
	values := cloneValues(m.values)
	registered := make(map[string]RegisterOptions, len(m.registered))
	for name, options := range m.registered {
		registered[name] = options
	}
	m.mu.RUnlock()

	errs := make(map[string][]string)
	for name, options := range registered {
		value, _ := expression.Lookup(values, name)
		if options.Required && isEmpty(value) {
			label := options.Label
			if label == "" {
				label = name
			}
			message := options.RequiredMessage
			if message == "" {
				message = fmt.Sprintf("%s is required", label)
			}
			errs[name] = append(errs[name], message)
			continue
		}
		if options.Validate != nil {
			if err := options.Validate(value); err != nil {
				errs[name] = append(errs[name], err.Error())
			}
		}
	}

	m.mu.Lock()
	m.errors = errs
	m.mu.Unlock()
	return len(errs) == 0
}

// HandleSubmit returns a callable that validates the form and, when valid,
// passes a values snapshot to onSubmit. An invalid form returns ErrInvalid.
func (m *Memory) HandleSubmit(onSubmit SubmitFunc) func() error {
	return func() error {
		if !m.Validate() {
			return ErrInvalid
		}
		if onSubmit == nil {
			return nil
		}
		return onSubmit(m.Values())
	}
}

// Reset replaces the values with values, or with the initial values when
// values is nil, and clears every error.
func (m *Memory) Reset(values map[string]any) {
	m.mu.Lock()
	if values == nil {
		m.values = cloneValues(m.defaults)
	} else {
		m.values = cloneValues(values)
	}
	m.errors = make(map[string][]string)
	m.version++
	version := m.version
	m.mu.Unlock()

	m.notify(Change{Version: version})
}

func setPath(values map[string]any, path string, value any) error {
	segments := strings.Split(path, ".")
	current := values
	for i, segment := range segments[:len(segments)-1] {
		next, ok := current[segment]
		if !ok || next == nil {
			child := make(map[string]any)
			current[segment] = child
			current = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("form: %q is not an object", strings.Join(segments[:i+1], "."))
		}
		current = child
	}
	current[segments[len(segments)-1]] = value
	return nil
}

func cloneValues(values map[string]any) map[string]any {
	if values == nil {
		return make(map[string]any)
	}
	return schema.CloneMap(values)
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case bool:
		return !v
	}
	return false
}
