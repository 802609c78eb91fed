// Package catalog loads the embedded message catalogs and registers them with
// golang.org/x/text/message.
//
// Catalog files live at locales/<locale>/<namespace>.yaml and use a small
// YAML subset:
//
//	locale: "en-US"
//	namespace: "status"
//	messages:
//	  "status.your_move": "Your move!"
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// BaseLocale is the canonical source locale; every other locale falls back
// to it.
const BaseLocale = "en-US"

type catalogFile struct {
	Locale    string
	Namespace string
	Messages  map[string]string
}

type localeCatalog struct {
	namespaces map[string]struct{}
	messages   map[string]string
}

// Bundle holds every loaded locale.
type Bundle struct {
	locales map[string]*localeCatalog
}

//go:embed locales/*/*.yaml
var embeddedCatalogFS embed.FS

var defaultBundle = mustLoadAndRegisterEmbedded()

// Default returns the process-wide embedded bundle. Its messages are already
// registered with x/text.
func Default() *Bundle {
	return defaultBundle
}

// LoadEmbedded loads the catalog files compiled into this package.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedCatalogFS)
}

// LoadFromFS loads every locales/*/*.yaml file in catalogFS.
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
		parsed, err := parseCatalogFile(data)
		if err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if err := bundle.add(p, parsed); err != nil {
			return nil, err
		}
	}
	if !bundle.HasLocale(BaseLocale) {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	return bundle, nil
}

func (b *Bundle) add(p string, file catalogFile) error {
	wantLocale := path.Base(path.Dir(p))
	wantNamespace := strings.TrimSuffix(path.Base(p), path.Ext(p))

	if file.Locale != wantLocale {
		return fmt.Errorf("catalog %s: locale %q must match path locale %q", p, file.Locale, wantLocale)
	}
	if file.Namespace != wantNamespace {
		return fmt.Errorf("catalog %s: namespace %q must match file name %q", p, file.Namespace, wantNamespace)
	}
	if _, err := language.Parse(file.Locale); err != nil {
		return fmt.Errorf("catalog %s: parse locale: %w", p, err)
	}

	lc, ok := b.locales[file.Locale]
	if !ok {
		lc = &localeCatalog{namespaces: map[string]struct{}{}, messages: map[string]string{}}
		b.locales[file.Locale] = lc
	}
	if _, dup := lc.namespaces[file.Namespace]; dup {
		return fmt.Errorf("catalog %s: namespace %q already defined for %s", p, file.Namespace, file.Locale)
	}
	lc.namespaces[file.Namespace] = struct{}{}

	for key, value := range file.Messages {
		if !strings.HasPrefix(key, file.Namespace+".") {
			return fmt.Errorf("catalog %s: key %q must start with %q", p, key, file.Namespace+".")
		}
		if _, dup := lc.messages[key]; dup {
			return fmt.Errorf("catalog %s: duplicate key %q in %s", p, key, file.Locale)
		}
		lc.messages[key] = value
	}
	return nil
}

// Register installs every message with x/text/message, under both the full
// locale tag and its base language. Keys missing from a locale are filled
// from BaseLocale.
func (b *Bundle) Register() error {
	if b == nil {
		return nil
	}
	base := b.locales[BaseLocale]
	for _, locale := range b.Locales() {
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		tags := []language.Tag{tag}
		if lang, conf := tag.Base(); conf != language.No {
			if baseTag, err := language.Parse(lang.String()); err == nil && baseTag.String() != tag.String() {
				tags = append(tags, baseTag)
			}
		}
		for key, fallback := range base.messages {
			value, ok := b.locales[locale].messages[key]
			if !ok {
				value = fallback
			}
			for _, t := range tags {
				if err := message.SetString(t, key, value); err != nil {
					return fmt.Errorf("register %s %q: %w", t, key, err)
				}
			}
		}
	}
	return nil
}

// HasLocale reports whether locale was loaded.
func (b *Bundle) HasLocale(locale string) bool {
	if b == nil {
		return false
	}
	_, ok := b.locales[strings.TrimSpace(locale)]
	return ok
}

// Locales returns the loaded locale identifiers, sorted.
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

// Message returns one value, falling back to BaseLocale.
func (b *Bundle) Message(locale, key string) (string, bool) {
	if b == nil {
		return "", false
	}
	key = strings.TrimSpace(key)
	if lc, ok := b.locales[strings.TrimSpace(locale)]; ok {
		if value, ok := lc.messages[key]; ok {
			return value, true
		}
	}
	value, ok := b.locales[BaseLocale].messages[key]
	return value, ok
}

// Missing lists BaseLocale keys that locale does not translate.
func (b *Bundle) Missing(locale string) []string {
	if b == nil {
		return nil
	}
	lc, ok := b.locales[strings.TrimSpace(locale)]
	if !ok {
		return nil
	}
	var out []string
	for key := range b.locales[BaseLocale].messages {
		if _, ok := lc.messages[key]; !ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
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

func parseCatalogFile(data []byte) (catalogFile, error) {
	out := catalogFile{Messages: map[string]string{}}
	inMessages := false

	for _, rawLine := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "locale:"):
			value, err := strconv.Unquote(strings.TrimSpace(strings.TrimPrefix(line, "locale:")))
			if err != nil {
				return catalogFile{}, fmt.Errorf("parse locale: %w", err)
			}
			out.Locale = value
		case strings.HasPrefix(line, "namespace:"):
			value, err := strconv.Unquote(strings.TrimSpace(strings.TrimPrefix(line, "namespace:")))
			if err != nil {
				return catalogFile{}, fmt.Errorf("parse namespace: %w", err)
			}
			out.Namespace = value
		case line == "messages:":
			inMessages = true
		default:
			if !inMessages {
				return catalogFile{}, fmt.Errorf("unexpected line %q", line)
			}
			key, value, err := parseMessageEntry(line)
			if err != nil {
				return catalogFile{}, fmt.Errorf("parse message entry %q: %w", line, err)
			}
			if _, dup := out.Messages[key]; dup {
				return catalogFile{}, fmt.Errorf("duplicate key %q", key)
			}
			out.Messages[key] = value
		}
	}

	switch {
	case out.Locale == "":
		return catalogFile{}, fmt.Errorf("missing locale")
	case out.Namespace == "":
		return catalogFile{}, fmt.Errorf("missing namespace")
	case len(out.Messages) == 0:
		return catalogFile{}, fmt.Errorf("missing messages")
	}
	return out, nil
}

func parseMessageEntry(line string) (string, string, error) {
	keyToken, rest, err := splitQuotedToken(line)
	if err != nil {
		return "", "", err
	}
	key, err := strconv.Unquote(keyToken)
	if err != nil {
		return "", "", fmt.Errorf("unquote key: %w", err)
	}
	if strings.TrimSpace(key) == "" {
		return "", "", fmt.Errorf("message key cannot be blank")
	}

	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, ":") {
		return "", "", fmt.Errorf("missing ':' separator")
	}
	value, err := strconv.Unquote(strings.TrimSpace(strings.TrimPrefix(rest, ":")))
	if err != nil {
		return "", "", fmt.Errorf("unquote value: %w", err)
	}
	return key, value, nil
}

func splitQuotedToken(line string) (string, string, error) {
	if !strings.HasPrefix(line, "\"") {
		return "", "", fmt.Errorf("expected quoted token")
	}
	escaped := false
	for i := 1; i < len(line); i++ {
		ch := line[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\':
			escaped = true
		case ch == '"':
			return line[:i+1], line[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("unterminated quoted token")
}
