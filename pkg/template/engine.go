// Package template renders plugin output from html/template files.
//
// A template file holds one {{define}} block per subpart. Every engine also
// carries the shared subparts solr_search_unavailable and solr_search_error,
// so a plugin file only needs to define its own subpart; it may override the
// shared ones. Label tokens (###LLL:key###) left in the output are resolved
// after execution.
package template

import (
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/rubiojr/solrpi/pkg/errors"
)

// Shared subparts.
const (
	SubpartUnavailable = "solr_search_unavailable"
	SubpartError       = "solr_search_error"
)

//go:embed templates/*.html
var embedded embed.FS

// LabelResolver resolves label keys and label tokens for a language.
type LabelResolver interface {
	Label(lang, key string) string
	Resolve(lang, text string) string
}

// HelperProvider contributes view helpers to a template engine. Helpers are
// template functions keyed by the name templates call them with.
type HelperProvider interface {
	ViewHelpers() map[string]any
}

// Engine renders one subpart of a template file. It is not safe for
// concurrent use; each request builds its own.
type Engine struct {
	name    string
	sources []string
	subpart string
	funcs   template.FuncMap
	vars    map[string]any
	labels  LabelResolver
	lang    string
}

// Default returns an engine over the embedded template for key. Keys without
// an embedded template only have the shared subparts.
func Default(key, subpart string) *Engine {
	sources := []string{mustEmbedded("common")}
	if data, err := embedded.ReadFile("templates/" + key + ".html"); err == nil {
		sources = append(sources, string(data))
	}
	return newEngine("embedded:"+key, sources, subpart)
}

// Load returns an engine over the template file at path. An empty path
// falls back to the embedded template for key.
func Load(key, path, subpart string) (*Engine, error) {
	if path == "" {
		return Default(key, subpart), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Template(errors.CodeTemplateLoad, fmt.Sprintf("loading template %s", path), err)
	}
	return newEngine(filepath.Base(path), []string{mustEmbedded("common"), string(data)}, subpart), nil
}

func newEngine(name string, sources []string, subpart string) *Engine {
	return &Engine{
		name:    name,
		sources: sources,
		subpart: subpart,
		funcs:   make(template.FuncMap),
		vars:    make(map[string]any),
	}
}

func mustEmbedded(name string) string {
	data, err := embedded.ReadFile("templates/" + name + ".html")
	if err != nil {
		panic(fmt.Sprintf("embedded template %s missing: %v", name, err))
	}
	return string(data)
}

// Name identifies the template source.
func (e *Engine) Name() string {
	return e.name
}

// WorkOnSubpart selects the subpart Render executes.
func (e *Engine) WorkOnSubpart(name string) {
	e.subpart = name
}

// Subpart returns the selected subpart.
func (e *Engine) Subpart() string {
	return e.subpart
}

// AddVariable makes value available to the template as .name.
func (e *Engine) AddVariable(name string, value any) {
	e.vars[name] = value
}

// Variable returns a previously added variable.
func (e *Engine) Variable(name string) (any, bool) {
	v, ok := e.vars[name]
	return v, ok
}

// AddViewHelper registers a template function. fn must be a function.
func (e *Engine) AddViewHelper(name string, fn any) error {
	if fn == nil || reflect.TypeOf(fn).Kind() != reflect.Func {
		return errors.Contract(errors.CodeViewHelperProvider, fmt.Sprintf("view helper %q must be a function, got %T", name, fn))
	}
	e.funcs[name] = fn
	return nil
}

// AddHelpers registers the helpers of every provider, in order. A value not
// implementing HelperProvider is a contract violation.
func (e *Engine) AddHelpers(providers []any) error {
	for _, p := range providers {
		provider, ok := p.(HelperProvider)
		if !ok {
			return errors.Contract(errors.CodeViewHelperProvider, fmt.Sprintf("%T must implement template.HelperProvider", p))
		}
		helpers := provider.ViewHelpers()
		names := make([]string, 0, len(helpers))
		for name := range helpers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := e.AddViewHelper(name, helpers[name]); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetLabels sets the resolver used for label tokens and the LLL helper.
func (e *Engine) SetLabels(labels LabelResolver, lang string) {
	e.labels = labels
	e.lang = lang
	e.funcs["LLL"] = func(key string) string {
		return labels.Label(lang, key)
	}
}

// Render executes the selected subpart.
func (e *Engine) Render() (string, error) {
	if e.subpart == "" {
		return "", errors.Template(errors.CodeTemplateRender, "no subpart selected", nil)
	}

	t := template.New(e.name).Funcs(Funcs()).Funcs(e.funcs)
	for _, src := range e.sources {
		if _, err := t.Parse(src); err != nil {
			return "", errors.Template(errors.CodeTemplateLoad, fmt.Sprintf("parsing template %s", e.name), err)
		}
	}
	if t.Lookup(e.subpart) == nil {
		return "", errors.Template(errors.CodeTemplateRender, fmt.Sprintf("subpart %q not found in %s", e.subpart, e.name), nil)
	}

	var buf strings.Builder
	if err := t.ExecuteTemplate(&buf, e.subpart, e.vars); err != nil {
		return "", errors.Template(errors.CodeTemplateRender, fmt.Sprintf("rendering subpart %q", e.subpart), err)
	}

	out := strings.TrimSpace(buf.String())
	if e.labels != nil {
		out = e.labels.Resolve(e.lang, out)
	}
	return out, nil
}
