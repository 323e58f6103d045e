package render

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/rubiojr/solrpi/pkg/backend"
	tmpl "github.com/rubiojr/solrpi/pkg/template"
)

// defaultTemplate is used for documents no type renderer claims.
var defaultTemplate = `<article class="solr-document{{with .Type}} solr-type-{{.}}{{end}}">
  <h3 class="solr-title">{{if .URL}}<a href="{{.URL}}">{{.Title}}</a>{{else}}{{.Title}}{{end}}</h3>
  {{- with .Teaser}}
  <p class="solr-teaser">{{truncate . 300}}</p>
  {{- end}}
  {{- with .Created}}
  <time>{{.}}</time>
  {{- end}}
</article>`

// DocumentData is the data document templates execute with.
type DocumentData struct {
	Document backend.Document
	ID       string
	Type     string
	Title    string
	URL      string
	Teaser   string
	Created  string
}

// NewDocumentData extracts the commonly displayed fields of doc.
func NewDocumentData(doc backend.Document) DocumentData {
	title := doc.String("title")
	if title == "" {
		title = doc.ID()
	}
	teaser := doc.String("teaser")
	if teaser == "" {
		teaser = doc.String("content")
	}
	return DocumentData{
		Document: doc,
		ID:       doc.ID(),
		Type:     doc.Type(),
		Title:    title,
		URL:      doc.String("url"),
		Teaser:   teaser,
		Created:  doc.String("created"),
	}
}

// TemplateRenderer renders documents of one type with a template. An empty
// type renders every document.
type TemplateRenderer struct {
	docType string
	tmpl    *template.Template
}

// NewTemplateRenderer parses src for documents of docType. The template
// executes with DocumentData.
func NewTemplateRenderer(docType, src string) (*TemplateRenderer, error) {
	name := docType
	if name == "" {
		name = "default"
	}
	t, err := template.New(name).Funcs(tmpl.Funcs()).Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parsing document template for %q: %w", name, err)
	}
	return &TemplateRenderer{docType: docType, tmpl: t}, nil
}

// NewDefaultRenderer returns the fallback document renderer.
func NewDefaultRenderer() *TemplateRenderer {
	r, err := NewTemplateRenderer("", defaultTemplate)
	if err != nil {
		panic(err)
	}
	return r
}

// Render renders doc.
func (r *TemplateRenderer) Render(doc backend.Document) template.HTML {
	if doc == nil {
		return template.HTML("<!-- nil document -->")
	}
	var buf strings.Builder
	if err := r.tmpl.Execute(&buf, NewDocumentData(doc)); err != nil {
		return template.HTML("<!-- document renderer error -->")
	}
	return template.HTML(buf.String())
}

// CanRender matches on the document type.
func (r *TemplateRenderer) CanRender(doc backend.Document) bool {
	return r.docType == "" || doc.Type() == r.docType
}

// DocumentType returns the handled type, "" for any.
func (r *TemplateRenderer) DocumentType() string { return r.docType }
