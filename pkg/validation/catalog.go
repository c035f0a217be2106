package validation

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	"gopkg.in/yaml.v3"
)

// DefaultLocale terminates every fallback chain.
const DefaultLocale = "en"

// ErrMissingTranslation is returned when no locale in the fallback chain has
// a message for the requested rule.
var ErrMissingTranslation = errors.New("validation: missing translation")

// Translator resolves a rule message for a locale. args[0], when present, is
// the map of template parameters (label, minLength, ...).
type Translator interface {
	Translate(locale, key string, args ...any) (string, error)
}

// TranslatorFunc adapts a function into a Translator.
type TranslatorFunc func(locale, key string, args ...any) (string, error)

// Translate calls fn.
func (fn TranslatorFunc) Translate(locale, key string, args ...any) (string, error) {
	return fn(locale, key, args...)
}

var builtinMessages = map[string]map[string]string{
	"en": {
		"required":  "{{label}} is required",
		"minLength": "{{label}} must be at least {{minLength}} characters",
		"maxLength": "{{label}} must be at most {{maxLength}} characters",
		"pattern":   "{{label}} has an invalid format",
		"min":       "{{label}} must be at least {{min}}",
		"max":       "{{label}} must be at most {{max}}",
	},
	"es": {
		"required":  "{{label}} es obligatorio",
		"minLength": "{{label}} debe tener al menos {{minLength}} caracteres",
		"maxLength": "{{label}} debe tener como máximo {{maxLength}} caracteres",
		"pattern":   "{{label}} tiene un formato no válido",
		"min":       "{{label}} debe ser mayor o igual a {{min}}",
		"max":       "{{label}} debe ser menor o igual a {{max}}",
	},
}

// bannedTags keep message templates self-contained.
var bannedTags = []string{"include", "extends", "import", "ssi", "block", "macro"}

// Catalog holds message templates per locale and renders them with pongo2.
// Compiled templates are cached by source. It is safe for concurrent use.
type Catalog struct {
	mu        sync.RWMutex
	messages  map[string]map[string]string
	templates map[string]*pongo2.Template
	set       *pongo2.TemplateSet
}

var _ Translator = (*Catalog)(nil)

// NewCatalog returns a catalog seeded with the built-in en and es messages.
func NewCatalog() *Catalog {
	c := NewEmptyCatalog()
	for locale, messages := range builtinMessages {
		c.Add(locale, messages)
	}
	return c
}

// NewEmptyCatalog returns a catalog with no messages.
func NewEmptyCatalog() *Catalog {
	set := pongo2.NewSet("formschema-validation", noLoader{})
	for _, tag := range bannedTags {
		// BanTag only fails for unknown tags or after the set was used.
		_ = set.BanTag(tag)
	}
	return &Catalog{
		messages:  make(map[string]map[string]string),
		templates: make(map[string]*pongo2.Template),
		set:       set,
	}
}

// Add merges messages into locale, replacing existing rule templates.
func (c *Catalog) Add(locale string, messages map[string]string) {
	key := normalizeLocale(locale)
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.messages[key] == nil {
		c.messages[key] = make(map[string]string, len(messages))
	}
	for rule, tpl := range messages {
		c.messages[key][strings.TrimSpace(rule)] = tpl
	}
}

// Locales returns the known locales sorted.
func (c *Catalog) Locales() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.messages))
	for locale := range c.messages {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the template for rule, walking the locale fallback chain.
func (c *Catalog) Lookup(locale, rule string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, candidate := range FallbackChain(locale) {
		if tpl, ok := c.messages[candidate][rule]; ok {
			return tpl, true
		}
	}
	return "", false
}

// Translate implements Translator.
func (c *Catalog) Translate(locale, key string, args ...any) (string, error) {
	tpl, ok := c.Lookup(locale, key)
	if !ok {
		return "", fmt.Errorf("%w: %q for locale %q", ErrMissingTranslation, key, locale)
	}
	var params map[string]any
	if len(args) > 0 {
		params, _ = args[0].(map[string]any)
	}
	return c.Render(tpl, params)
}

// Render executes a message template with params.
func (c *Catalog) Render(source string, params map[string]any) (string, error) {
	if !strings.Contains(source, "{{") && !strings.Contains(source, "{%") {
		return source, nil
	}
	tpl, err := c.compile(source)
	if err != nil {
		return "", err
	}
	out, err := tpl.Execute(pongo2.Context(params))
	if err != nil {
		return "", fmt.Errorf("validation: render message %q: %w", source, err)
	}
	return out, nil
}

func (c *Catalog) compile(source string) (*pongo2.Template, error) {
	c.mu.RLock()
	tpl, ok := c.templates[source]
	c.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	// Messages are plain text; escaping belongs to whoever renders them.
	tpl, err := c.set.FromString("{% autoescape off %}" + source + "{% endautoescape %}")
	if err != nil {
		return nil, fmt.Errorf("validation: compile message %q: %w", source, err)
	}

	c.mu.Lock()
	c.templates[source] = tpl
	c.mu.Unlock()
	return tpl, nil
}

// LoadCatalog decodes a YAML or JSON document of the form
// {locale: {rule: template}} and merges it over the built-in messages.
func LoadCatalog(data []byte) (*Catalog, error) {
	var raw map[string]map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("validation: decode catalog: %w", err)
	}
	c := NewCatalog()
	for locale, messages := range raw {
		c.Add(locale, messages)
	}
	return c, nil
}

// FallbackChain lists the locales tried for locale, most specific first:
// es-MX yields es-mx, es, en.
func FallbackChain(locale string) []string {
	key := normalizeLocale(locale)
	var chain []string
	for key != "" {
		chain = append(chain, key)
		idx := strings.LastIndex(key, "-")
		if idx < 0 {
			break
		}
		key = key[:idx]
	}
	if len(chain) == 0 || chain[len(chain)-1] != DefaultLocale {
		chain = append(chain, DefaultLocale)
	}
	return chain
}

func normalizeLocale(locale string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
}

type noLoader struct{}

func (noLoader) Abs(_, name string) string { return name }

func (noLoader) Get(path string) (io.Reader, error) {
	return nil, fmt.Errorf("validation: message templates cannot load %q", path)
}
