// Package searchform implements the search box plugin.
package searchform

import (
	"context"
	"html/template"

	"github.com/rubiojr/solrpi/pkg/plugin"
)

const (
	Key     = "search"
	Subpart = "solr_search_form"
)

// Plugin renders the search form. The submitted query is kept as the
// field value.
type Plugin struct{}

var _ plugin.Plugin = (*Plugin)(nil)

func New() *Plugin {
	return &Plugin{}
}

func (p *Plugin) Key() string             { return Key }
func (p *Plugin) TemplateFileKey() string { return Key }
func (p *Plugin) Subpart() string         { return Subpart }

func (p *Plugin) PerformAction(ctx context.Context, pc *plugin.Context) (any, error) {
	return nil, nil
}

func (p *Plugin) Render(ctx context.Context, pc *plugin.Context, result any) (string, error) {
	pc.Template.AddVariable("query", template.HTML(pc.Query.Sanitized()))
	pc.Template.AddVariable("form_action", pc.ActionURL())
	return pc.Template.Render()
}
