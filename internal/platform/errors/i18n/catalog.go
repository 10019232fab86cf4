// Package i18n renders localized error messages from the shared catalogs.
package i18n

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	i18ncatalog "github.com/louisbranch/oilandrope/internal/platform/i18n/catalog"
)

// Namespace is the catalog namespace holding error templates.
const Namespace = "errors"

// Code is a machine-readable error code (kept as a string to avoid an import cycle).
type Code = string

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[Code]string

	mu     sync.Mutex
	parsed map[Code]*template.Template
}

var catalogs sync.Map // locale -> *Catalog

// GetCatalog returns the catalog for the given locale, falling back to the
// base locale when it is unknown.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = i18ncatalog.BaseLocale
	}
	if c, ok := catalogs.Load(requested); ok {
		return c.(*Catalog)
	}

	resolved, messages := i18ncatalog.Default().NamespaceMessagesWithFallback(requested, Namespace)
	if c, ok := catalogs.Load(resolved); ok {
		return c.(*Catalog)
	}
	actual, _ := catalogs.LoadOrStore(resolved, NewCatalog(resolved, messages))
	return actual.(*Catalog)
}

// RegisterCatalog replaces the catalog for locale. Intended for tests.
func RegisterCatalog(locale string, cat *Catalog) {
	catalogs.Store(locale, cat)
}

// NewCatalog creates a catalog with a copy of messages.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	cloned := make(map[Code]string, len(messages))
	for key, value := range messages {
		cloned[key] = value
	}
	return &Catalog{locale: locale, messages: cloned, parsed: map[Code]*template.Template{}}
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the template for code with metadata. Unknown codes render
// as the code itself and broken templates render as their raw text.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	raw, ok := c.messages[code]
	if !ok {
		return code
	}
	tmpl, err := c.template(code, raw)
	if err != nil {
		return raw
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, metadata); err != nil {
		return raw
	}
	return buf.String()
}

func (c *Catalog) template(code Code, raw string) (*template.Template, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tmpl, ok := c.parsed[code]; ok {
		return tmpl, nil
	}
	tmpl, err := template.New(code).Parse(raw)
	if err != nil {
		return nil, err
	}
	c.parsed[code] = tmpl
	return tmpl, nil
}
