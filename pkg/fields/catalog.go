package fields

import (
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formschema/pkg/component"
	"github.com/goliatone/go-formschema/pkg/schema"
)

// Built-in input component identifiers.
const (
	InputText     = "InputText"
	InputNumber   = "InputNumber"
	InputEmail    = "InputEmail"
	InputPassword = "InputPassword"
	Textarea      = "Textarea"
	Checkbox      = "Checkbox"
	Switch        = "Switch"
	Select        = "Select"
	MultiSelect   = "MultiSelect"
	RadioGroup    = "RadioGroup"
	DatePicker    = "DatePicker"
)

// InputPrefix is the naming convention for input components. An id that
// carries it is a field even when the catalog does not know it.
const InputPrefix = "Input"

var builtins = map[string]component.Kind{
	InputText:     component.KindText,
	InputNumber:   component.KindNumber,
	InputEmail:    component.KindText,
	InputPassword: component.KindText,
	Textarea:      component.KindText,
	Checkbox:      component.KindBoolean,
	Switch:        component.KindBoolean,
	Select:        component.KindSelect,
	MultiSelect:   component.KindMulti,
	RadioGroup:    component.KindSelect,
	DatePicker:    component.KindDate,
}

// Matcher marks additional nodes as fields. Matched components are custom
// unless they are also registered with a kind.
type Matcher func(id string, node *schema.Node) bool

type rule struct {
	name     string
	priority int
	order    int
	match    Matcher
}

// Catalog knows which component ids are inputs and what value kind each one
// binds. The zero value is not usable; use NewCatalog.
type Catalog struct {
	mu    sync.RWMutex
	kinds map[string]component.Kind
	rules []rule
}

// NewCatalog returns a catalog holding the built-in inputs.
func NewCatalog() *Catalog {
	c := &Catalog{kinds: make(map[string]component.Kind, len(builtins))}
	for id, kind := range builtins {
		c.kinds[id] = kind
	}
	return c
}

// Builtins returns the built-in input ids sorted.
func Builtins() []string {
	ids := make([]string, 0, len(builtins))
	for id := range builtins {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// IsBuiltin reports whether id is one of the built-in inputs.
func IsBuiltin(id string) bool {
	_, ok := builtins[strings.TrimSpace(id)]
	return ok
}

// Register declares id as a standard input of kind. Registered ids follow the
// value/onChange contract, so they are not reported as custom.
func (c *Catalog) Register(id string, kind component.Kind) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds[id] = kind
}

// RegisterMatcher adds a matcher. Higher priority runs first; ties keep
// registration order.
func (c *Catalog) RegisterMatcher(name string, priority int, match Matcher) {
	if match == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append(c.rules, rule{name: name, priority: priority, order: len(c.rules), match: match})
	sort.SliceStable(c.rules, func(i, j int) bool {
		if c.rules[i].priority == c.rules[j].priority {
			return c.rules[i].order < c.rules[j].order
		}
		return c.rules[i].priority > c.rules[j].priority
	})
}

// Kind returns the value kind for id. Unknown ids report KindCustom.
func (c *Catalog) Kind(id string) component.Kind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if kind, ok := c.kinds[strings.TrimSpace(id)]; ok {
		return kind
	}
	return component.KindCustom
}

// Standard reports whether id follows the standard value binding contract.
func (c *Catalog) Standard(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.kinds[strings.TrimSpace(id)]
	return ok
}

// Classify decides whether node is a field and whether it is custom. A node
// is a field when its component is a known input, carries the Input prefix,
// matches a registered matcher, or declares validation rules.
func (c *Catalog) Classify(node *schema.Node) (field, custom bool) {
	id := node.ComponentID()
	if id == "" {
		return false, false
	}
	if c.Standard(id) {
		return true, false
	}
	if strings.HasPrefix(id, InputPrefix) {
		return true, true
	}

	c.mu.RLock()
	rules := append([]rule(nil), c.rules...)
	c.mu.RUnlock()
	for _, r := range rules {
		if r.match(id, node) {
			return true, true
		}
	}
	return node.Rules.HasConstraints(), true
}
