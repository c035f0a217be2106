package timezones

import (
	"slices"
	"strings"

	"github.com/spf13/cast"

	"github.com/goliatone/go-formschema/pkg/component"
	"github.com/goliatone/go-formschema/pkg/engine"
	"github.com/goliatone/go-formschema/pkg/fields"
	"github.com/goliatone/go-formschema/pkg/middleware"
	"github.com/goliatone/go-formschema/pkg/runtime"
)

// ComponentID is the x-component value handled by this package.
const ComponentID = "TimezoneSelect"

// Props read by the options middleware.
const (
	PropSearch = "search"
	PropLimit  = "limit"
)

// EmptySearchMode decides which options a node without a search gets.
type EmptySearchMode string

const (
	EmptySearchNone EmptySearchMode = "none"
	EmptySearchTop  EmptySearchMode = "top"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Option configures a Component.
type Option func(*Component)

// WithZones replaces the embedded zone list.
func WithZones(names ...string) Option {
	return func(c *Component) {
		c.zones = NewZones(names...)
	}
}

// WithLimits sets the option count used when a node has no limit prop and
// the cap applied to the ones that do.
func WithLimits(def, max int) Option {
	return func(c *Component) {
		c.defaultLimit = def
		c.maxLimit = max
	}
}

// WithEmptySearch sets what a node without a search prop is offered.
func WithEmptySearch(mode EmptySearchMode) Option {
	return func(c *Component) {
		c.empty = mode
	}
}

// Component bundles the spec, the options middleware and the field kind of
// TimezoneSelect.
type Component struct {
	zones        Zones
	defaultLimit int
	maxLimit     int
	empty        EmptySearchMode
}

// New builds the component. The embedded zone list is used unless WithZones
// is given.
func New(options ...Option) (*Component, error) {
	c := &Component{}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	if err := c.applyDefaults(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Component) applyDefaults() error {
	if c.zones == nil {
		zones, err := Embedded()
		if err != nil {
			return err
		}
		c.zones = zones
	}
	if c.defaultLimit <= 0 {
		c.defaultLimit = defaultLimit
	}
	if c.maxLimit <= 0 {
		c.maxLimit = maxLimit
	}
	if c.empty == "" {
		c.empty = EmptySearchTop
	}
	return nil
}

// Zones returns the zone list the component offers.
func (c *Component) Zones() Zones {
	return slices.Clone(c.zones)
}

// Query is what a TimezoneSelect node asks for through its props.
type Query struct {
	Search string
	Limit  int
	// Selected is the field's current value. It stays among the options so
	// the select can still show it.
	Selected string
}

// QueryFromProps reads the search, limit and value props.
func QueryFromProps(props component.Props) Query {
	return Query{
		Search:   strings.TrimSpace(cast.ToString(props[PropSearch])),
		Limit:    cast.ToInt(props[PropLimit]),
		Selected: cast.ToString(props[component.PropValue]),
	}
}

// Options returns the select options for q as {label, value} maps.
func (c *Component) Options(q Query) []any {
	limit := q.Limit
	switch {
	case limit < 0:
		limit = 0
	case limit == 0:
		limit = c.defaultLimit
	case limit > c.maxLimit:
		limit = c.maxLimit
	}

	var names []string
	switch {
	case q.Search != "":
		names = c.zones.Match(q.Search)
	case c.empty == EmptySearchTop:
		names = c.zones
	}
	if len(names) > limit {
		names = names[:limit]
	}
	if q.Selected != "" && c.zones.Contains(q.Selected) && !slices.Contains(names, q.Selected) {
		names = append([]string{q.Selected}, names...)
	}

	out := make([]any, 0, len(names))
	for _, name := range names {
		out = append(out, map[string]any{"label": Label(name), "value": name})
	}
	return out
}

// Spec is the registry entry. Elements are plain runtime elements of kind
// select.
func (c *Component) Spec() component.Spec {
	spec := component.Spec{ID: ComponentID, Type: component.KindSelect}
	spec.Factory = runtime.ElementFactory(spec)
	return spec
}

// Middleware fills the options prop of TimezoneSelect nodes that do not
// declare their own.
func (c *Component) Middleware() middleware.Middleware {
	return middleware.ForComponent(middleware.Map(func(props component.Props, _ middleware.Info) component.Props {
		if _, ok := props["options"]; ok {
			return props
		}
		out := props.Clone()
		if out == nil {
			out = component.Props{}
		}
		out["options"] = c.Options(QueryFromProps(props))
		return out
	}), ComponentID)
}

// RegisterKind declares TimezoneSelect as a select field in catalog.
func (c *Component) RegisterKind(catalog *fields.Catalog) {
	catalog.Register(ComponentID, component.KindSelect)
}

// EngineOptions wires the component into an engine. catalog is the field
// catalog the engine should use; nil starts from fields.NewCatalog.
func (c *Component) EngineOptions(catalog *fields.Catalog) []engine.Option {
	if catalog == nil {
		catalog = fields.NewCatalog()
	}
	c.RegisterKind(catalog)
	return []engine.Option{
		engine.WithComponents(c.Spec()),
		engine.WithMiddlewares(c.Middleware()),
		engine.WithFieldCatalog(catalog),
	}
}
