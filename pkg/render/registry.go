package render

import (
	"html/template"
	"sync"

	"github.com/rubiojr/solrpi/pkg/backend"
)

// DocumentRenderer renders a single search hit. Implementations decide if
// they can render a document (usually by its type) and produce trusted
// HTML.
type DocumentRenderer interface {
	Render(doc backend.Document) template.HTML
	CanRender(doc backend.Document) bool
	DocumentType() string
}

// Registry manages an ordered collection of document renderers plus a
// fallback used when none of them claims a document. It is safe for
// concurrent use.
type Registry struct {
	mu              sync.RWMutex
	renderers       []DocumentRenderer
	defaultRenderer DocumentRenderer
}

// NewRegistry creates an empty registry with the default renderer as
// fallback.
func NewRegistry() *Registry {
	return &Registry{
		renderers:       make([]DocumentRenderer, 0),
		defaultRenderer: NewDefaultRenderer(),
	}
}

// Register adds a renderer. Renderers are tried in registration order.
func (r *Registry) Register(renderer DocumentRenderer) {
	if renderer == nil {
		return
	}
	r.mu.Lock()
	r.renderers = append(r.renderers, renderer)
	r.mu.Unlock()
}

// Render selects the first renderer whose CanRender returns true and falls
// back to the default renderer.
func (r *Registry) Render(doc backend.Document) template.HTML {
	if doc == nil {
		return template.HTML("<!-- nil document -->")
	}

	r.mu.RLock()
	renderers := r.renderers
	def := r.defaultRenderer
	r.mu.RUnlock()

	for _, renderer := range renderers {
		if renderer.CanRender(doc) {
			return renderer.Render(doc)
		}
	}

	if def != nil {
		return def.Render(doc)
	}
	return template.HTML("<!-- no renderer available -->")
}

// RenderAll renders docs in order.
func (r *Registry) RenderAll(docs []backend.Document) []template.HTML {
	out := make([]template.HTML, 0, len(docs))
	for _, doc := range docs {
		out = append(out, r.Render(doc))
	}
	return out
}

// Types returns the document types handled by registered renderers.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.renderers))
	seen := make(map[string]struct{})
	for _, ren := range r.renderers {
		t := ren.DocumentType()
		if t == "" {
			continue
		}
		if _, exists := seen[t]; !exists {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// SetDefaultRenderer overrides the fallback renderer.
func (r *Registry) SetDefaultRenderer(dr DocumentRenderer) {
	r.mu.Lock()
	r.defaultRenderer = dr
	r.mu.Unlock()
}
