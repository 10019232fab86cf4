// Package catalog loads the embedded translation catalogs and registers them
// with golang.org/x/text/message.
package catalog

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

const (
	// BaseLocale is the canonical source locale for catalogs.
	BaseLocale = "en-US"
)

// catalogFile is the on-disk shape of one locales/<locale>/<namespace>.yaml file.
type catalogFile struct {
	Locale    string            `yaml:"locale"`
	Namespace string            `yaml:"namespace"`
	Messages  map[string]string `yaml:"messages"`
}

type localeCatalog struct {
	namespaces map[string]map[string]string
	messages   map[string]string
}

// Bundle contains all locale catalogs loaded from a filesystem.
type Bundle struct {
	locales map[string]*localeCatalog
	matcher language.Matcher
	tags    []language.Tag
}

//go:embed locales/*/*.yaml
var embeddedCatalogFS embed.FS

var defaultBundle = mustLoadAndRegisterEmbedded()

// Default returns the process-wide embedded catalog bundle.
func Default() *Bundle {
	return defaultBundle
}

// LoadEmbedded loads catalog files embedded in this package.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedCatalogFS)
}

// LoadFromFS loads catalog files matching locales/*/*.yaml from catalogFS.
func LoadFromFS(catalogFS fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(catalogFS, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	bundle := &Bundle{locales: map[string]*localeCatalog{}}
	for _, p := range paths {
		data, err := fs.ReadFile(catalogFS, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		var file catalogFile
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if err := bundle.addFile(p, file); err != nil {
			return nil, err
		}
	}
	if !bundle.HasLocale(BaseLocale) {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}

	// The base locale leads so the matcher falls back to it.
	bundle.tags = []language.Tag{language.MustParse(BaseLocale)}
	for _, locale := range bundle.Locales() {
		if locale == BaseLocale {
			continue
		}
		tag, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		bundle.tags = append(bundle.tags, tag)
	}
	bundle.matcher = language.NewMatcher(bundle.tags)
	return bundle, nil
}

func (b *Bundle) addFile(p string, file catalogFile) error {
	localeFromPath := path.Base(path.Dir(p))
	namespaceFromPath := strings.TrimSuffix(path.Base(p), path.Ext(p))

	locale := strings.TrimSpace(file.Locale)
	switch {
	case locale == "":
		return fmt.Errorf("catalog %s: locale is required", p)
	case locale != localeFromPath:
		return fmt.Errorf("catalog %s: locale %q must match path locale %q", p, locale, localeFromPath)
	}
	namespace := strings.TrimSpace(file.Namespace)
	switch {
	case namespace == "":
		return fmt.Errorf("catalog %s: namespace is required", p)
	case namespace != namespaceFromPath:
		return fmt.Errorf("catalog %s: namespace %q must match filename namespace %q", p, namespace, namespaceFromPath)
	}
	if len(file.Messages) == 0 {
		return fmt.Errorf("catalog %s: messages are required", p)
	}

	lc, ok := b.locales[locale]
	if !ok {
		lc = &localeCatalog{namespaces: map[string]map[string]string{}, messages: map[string]string{}}
		b.locales[locale] = lc
	}
	if _, exists := lc.namespaces[namespace]; exists {
		return fmt.Errorf("catalog %s: namespace %q already defined for locale %q", p, namespace, locale)
	}

	entries := make(map[string]string, len(file.Messages))
	for key, value := range file.Messages {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			return fmt.Errorf("catalog %s: message key cannot be blank", p)
		}
		if strings.HasPrefix(trimmed, "core.") && namespace != "core" {
			return fmt.Errorf("catalog %s: key %q must be defined in core namespace", p, trimmed)
		}
		if _, exists := lc.messages[trimmed]; exists {
			return fmt.Errorf("catalog %s: duplicate key %q in locale %q", p, trimmed, locale)
		}
		lc.messages[trimmed] = value
		entries[trimmed] = value
	}
	lc.namespaces[namespace] = entries
	return nil
}

// Register registers every message with the x/text/message default catalog,
// under both the full tag and its base language.
func (b *Bundle) Register() error {
	if b == nil {
		return nil
	}
	for _, locale := range b.Locales() {
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		tags := []language.Tag{tag}
		if base, conf := tag.Base(); conf != language.No {
			if baseTag, err := language.Parse(base.String()); err == nil && baseTag != tag {
				tags = append(tags, baseTag)
			}
		}
		for key, value := range b.locales[locale].messages {
			for _, registerTag := range tags {
				if err := message.SetString(registerTag, key, value); err != nil {
					return fmt.Errorf("register %s/%s: %w", locale, key, err)
				}
			}
		}
	}
	return nil
}

// HasLocale reports whether the locale exists in this bundle.
func (b *Bundle) HasLocale(locale string) bool {
	if b == nil {
		return false
	}
	_, ok := b.locales[strings.TrimSpace(locale)]
	return ok
}

// Locales returns all available locale identifiers, sorted.
func (b *Bundle) Locales() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.locales))
	for locale := range b.locales {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// SupportedTags returns the supported language tags, base locale first.
func (b *Bundle) SupportedTags() []language.Tag {
	if b == nil {
		return nil
	}
	return append([]language.Tag(nil), b.tags...)
}

// Match returns the supported locale closest to the preferred tags.
func (b *Bundle) Match(preferred ...language.Tag) string {
	if b == nil || b.matcher == nil || len(preferred) == 0 {
		return BaseLocale
	}
	_, index, conf := b.matcher.Match(preferred...)
	if conf == language.No {
		return BaseLocale
	}
	return b.tags[index].String()
}

// MatchString parses value as a language tag (en, es_ES, es-419...) and
// returns the matching supported locale.
func (b *Bundle) MatchString(value string) (string, bool) {
	value = strings.ReplaceAll(strings.TrimSpace(value), "_", "-")
	if value == "" {
		return BaseLocale, false
	}
	tag, err := language.Parse(value)
	if err != nil {
		return BaseLocale, false
	}
	_, index, conf := b.matcher.Match(tag)
	if conf == language.No {
		return BaseLocale, false
	}
	return b.tags[index].String(), true
}

// Message returns one message value with base-locale fallback.
func (b *Bundle) Message(locale string, key string) (string, bool) {
	if b == nil {
		return "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false
	}
	locale = strings.TrimSpace(locale)
	if lc, ok := b.locales[locale]; ok {
		if value, exists := lc.messages[key]; exists {
			return value, true
		}
	}
	if locale != BaseLocale {
		if lc, ok := b.locales[BaseLocale]; ok {
			value, exists := lc.messages[key]
			return value, exists
		}
	}
	return "", false
}

// NamespaceMessages returns a copy of the namespace messages for a locale.
func (b *Bundle) NamespaceMessages(locale string, namespace string) map[string]string {
	out := map[string]string{}
	if b == nil {
		return out
	}
	lc, ok := b.locales[strings.TrimSpace(locale)]
	if !ok {
		return out
	}
	for key, value := range lc.namespaces[strings.TrimSpace(namespace)] {
		out[key] = value
	}
	return out
}

// NamespaceMessagesWithFallback returns namespace messages and the locale that satisfied the lookup.
func (b *Bundle) NamespaceMessagesWithFallback(locale string, namespace string) (string, map[string]string) {
	locale = strings.TrimSpace(locale)
	if messages := b.NamespaceMessages(locale, namespace); len(messages) > 0 {
		return locale, messages
	}
	return BaseLocale, b.NamespaceMessages(BaseLocale, namespace)
}

// Printer returns an x/text printer for locale. Keys registered by Register
// are translated with fmt-style verbs.
func Printer(locale string) *message.Printer {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		tag = language.MustParse(BaseLocale)
	}
	return message.NewPrinter(tag)
}

// Sprintf translates key for locale and formats it with args.
func Sprintf(locale string, key string, args ...any) string {
	return Printer(locale).Sprintf(key, args...)
}

func mustLoadAndRegisterEmbedded() *Bundle {
	bundle, err := LoadEmbedded()
	if err != nil {
		panic(err)
	}
	if err := bundle.Register(); err != nil {
		panic(err)
	}
	return bundle
}
