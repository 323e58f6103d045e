// Package i18n resolves localized labels.
//
// Labels are addressed by key and looked up for a BCP 47 language tag. Text
// may embed label tokens of the form ###LLL:key### which Resolve replaces
// with the label for the requested language.
package i18n

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

//go:embed labels.toml
var builtinLabels []byte

// DefaultLanguage is the catalog key holding fallback labels.
const DefaultLanguage = "default"

var tokenPattern = regexp.MustCompile(`###LLL:([A-Za-z0-9_.\-]+)###`)

// Catalog holds labels per language. It is safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	labels  map[string]map[string]string
	keys    []string
	matcher language.Matcher
}

// New returns a catalog loaded with the built-in labels.
func New() (*Catalog, error) {
	c := &Catalog{labels: make(map[string]map[string]string)}
	if err := c.Load(builtinLabels); err != nil {
		return nil, fmt.Errorf("loading built-in labels: %w", err)
	}
	return c, nil
}

// Load merges a TOML label document into the catalog. Top level tables are
// language keys; their string values are labels.
func (c *Catalog) Load(data []byte) error {
	var doc map[string]map[string]string
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing labels: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for lang, labels := range doc {
		if c.labels[lang] == nil {
			c.labels[lang] = make(map[string]string, len(labels))
		}
		for key, value := range labels {
			c.labels[lang][key] = value
		}
	}
	c.rebuild()
	return nil
}

// LoadFile merges the TOML label file at path.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading label file: %w", err)
	}
	return c.Load(data)
}

// Overlay sets individual labels per language. Languages the catalog does
// not know are ignored. An empty value unsets the label so lookups fall back
// to the default language.
func (c *Catalog) Overlay(local map[string]map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for lang, labels := range local {
		existing, ok := c.labels[lang]
		if !ok {
			continue
		}
		for key, value := range labels {
			if value == "" {
				delete(existing, key)
				continue
			}
			existing[key] = value
		}
	}
}

// Languages returns the language keys known to the catalog.
func (c *Catalog) Languages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Label returns the label for key in lang. It falls back to the default
// language and finally to the key itself.
func (c *Catalog) Label(lang, key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if labels, ok := c.labels[c.match(lang)]; ok {
		if value, ok := labels[key]; ok {
			return value
		}
	}
	if value, ok := c.labels[DefaultLanguage][key]; ok {
		return value
	}
	return key
}

// Resolve replaces every ###LLL:key### token in text.
func (c *Catalog) Resolve(lang, text string) string {
	return tokenPattern.ReplaceAllStringFunc(text, func(token string) string {
		key := tokenPattern.FindStringSubmatch(token)[1]
		return c.Label(lang, key)
	})
}

// match returns the catalog key best matching lang. Callers hold c.mu.
func (c *Catalog) match(lang string) string {
	if lang == "" || lang == DefaultLanguage || c.matcher == nil {
		return DefaultLanguage
	}
	if _, ok := c.labels[lang]; ok {
		return lang
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return DefaultLanguage
	}
	_, index, confidence := c.matcher.Match(tag)
	if confidence == language.No {
		return DefaultLanguage
	}
	return c.keys[index]
}

// rebuild recomputes the matcher. The default language is always first so
// it wins when nothing matches. Callers hold c.mu.
func (c *Catalog) rebuild() {
	keys := make([]string, 0, len(c.labels))
	for lang := range c.labels {
		if lang != DefaultLanguage {
			keys = append(keys, lang)
		}
	}
	sort.Strings(keys)
	keys = append([]string{DefaultLanguage}, keys...)

	tags := make([]language.Tag, 0, len(keys))
	valid := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == DefaultLanguage {
			tags = append(tags, language.English)
			valid = append(valid, key)
			continue
		}
		tag, err := language.Parse(key)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		valid = append(valid, key)
	}
	c.keys = valid
	c.matcher = language.NewMatcher(tags)
}
