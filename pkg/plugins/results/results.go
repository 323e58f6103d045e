// Package results implements the search results plugin: it validates the
// query, runs the search with paging and renders the hits through a
// document renderer registry.
package results

import (
	"context"
	"fmt"
	"html/template"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rubiojr/solrpi/pkg/detector"
	"github.com/rubiojr/solrpi/pkg/errors"
	"github.com/rubiojr/solrpi/pkg/log"
	"github.com/rubiojr/solrpi/pkg/plugin"
	"github.com/rubiojr/solrpi/pkg/render"
	"github.com/rubiojr/solrpi/pkg/search"
	"github.com/rubiojr/solrpi/pkg/storage"
)

const (
	Key     = "results"
	Subpart = "solr_search"
)

// Conf is the search.results settings section.
type Conf struct {
	ResultsPerPage int `mapstructure:"results_per_page"`
	// Renderers maps document types to template files.
	Renderers map[string]string `mapstructure:"renderers"`
	// DefaultRenderer replaces the built-in fallback document template.
	DefaultRenderer string `mapstructure:"default_renderer"`
	DateField       string `mapstructure:"date_field"`
	// Javascript is added to the page when results are shown.
	Javascript string `mapstructure:"javascript"`
}

// Result is what PerformAction hands to Render.
type Result struct {
	Errors []detector.Entry
	// EmptyQuery is set when a blank query was submitted.
	EmptyQuery bool
	Searched   bool
	Results    *search.Results
	Documents  []template.HTML
	Pagination search.Pagination
}

// Plugin is the results plugin.
type Plugin struct {
	service *search.Service
	logger  *log.Logger
}

var _ plugin.Plugin = (*Plugin)(nil)

func New() *Plugin {
	return &Plugin{
		service: search.NewService(),
		logger:  log.ForService(Key),
	}
}

func (p *Plugin) Key() string             { return Key }
func (p *Plugin) TemplateFileKey() string { return Key }
func (p *Plugin) Subpart() string         { return Subpart }

func (p *Plugin) conf(pc *plugin.Context) (Conf, error) {
	var conf Conf
	if err := pc.Settings.Decode("search.results", &conf); err != nil {
		return conf, errors.Config("decoding search.results", err)
	}
	if conf.ResultsPerPage <= 0 {
		conf.ResultsPerPage = 10
	}
	return conf, nil
}

// PreRender adds the configured results script.
func (p *Plugin) PreRender(ctx context.Context, pc *plugin.Context) error {
	conf, err := p.conf(pc)
	if err != nil {
		return err
	}
	if conf.Javascript != "" {
		pc.Assets.AddScript(plugin.Script{Name: "solr-results", Src: conf.Javascript})
	}
	return nil
}

// PerformAction collects query errors and searches when the query is
// valid and the backend is available.
func (p *Plugin) PerformAction(ctx context.Context, pc *plugin.Context) (any, error) {
	conf, err := p.conf(pc)
	if err != nil {
		return nil, err
	}

	allowEmpty := pc.Conf.Search.Query.AllowEmptyQuery
	entries, err := detector.Collect(ctx, pc.Query, detector.Options{AllowEmptyQuery: allowEmpty}, pc.Environment().Extensions.Detectors, p)
	if err != nil {
		return nil, err
	}
	result := &Result{Errors: entries, EmptyQuery: pc.Query.IsEmptyString()}

	if !pc.Available() || len(entries) > 0 || pc.Query.IsNull() {
		return result, nil
	}
	if !pc.Query.HasContent() && !allowEmpty {
		return result, nil
	}

	params, err := search.ParseParams(pc.Params, conf.ResultsPerPage)
	if err != nil {
		// The error text carries the raw parameter, keep it out of the markup.
		p.logger.Debugf("Rejecting request parameters: %v", err)
		result.Errors = append(result.Errors, detector.Entry{
			Message: "###LLL:error_invalidDate###",
			Code:    errors.CodeInvalidDate,
		})
		return result, nil
	}
	raw, _ := pc.Query.Raw()
	params.Query = strings.Join(strings.Fields(raw), " ")
	params.DateField = conf.DateField
	p.logger.Debugf("Searching %q, page %d", params.Query, params.Page)

	start := time.Now()
	results, err := p.service.Search(ctx, pc.Search(), params)
	if err != nil {
		return nil, err
	}
	p.recordStatistics(ctx, pc, results, time.Since(start))

	registry, err := p.registry(conf)
	if err != nil {
		return nil, err
	}

	result.Searched = true
	result.Results = results
	result.Documents = registry.RenderAll(results.Documents)
	result.Pagination = results.Pagination(pc.Params)
	return result, nil
}

// Render renders the results subpart.
func (p *Plugin) Render(ctx context.Context, pc *plugin.Context, result any) (string, error) {
	r, ok := result.(*Result)
	if !ok {
		return "", fmt.Errorf("unexpected result type %T", result)
	}

	pc.Template.AddVariable("query", template.HTML(pc.Query.Sanitized()))
	pc.Template.AddVariable("form_action", pc.ActionURL())
	pc.Template.AddVariable("errors", r.Errors)
	pc.Template.AddVariable("searched", r.Searched)
	pc.Template.AddVariable("empty_query", r.EmptyQuery)
	pc.Template.AddVariable("documents", r.Documents)
	pc.Template.AddVariable("pagination", r.Pagination)
	numFound := 0
	if r.Results != nil {
		numFound = r.Results.NumFound
	}
	pc.Template.AddVariable("num_found", numFound)
	return pc.Template.Render()
}

// registry builds the document renderer registry from the configured
// per type templates.
func (p *Plugin) registry(conf Conf) (*render.Registry, error) {
	registry := render.NewRegistry()

	types := make([]string, 0, len(conf.Renderers))
	for docType := range conf.Renderers {
		types = append(types, docType)
	}
	sort.Strings(types)

	for _, docType := range types {
		path := conf.Renderers[docType]
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Template(errors.CodeTemplateLoad, fmt.Sprintf("loading renderer for %s", docType), err)
		}
		renderer, err := render.NewTemplateRenderer(docType, string(data))
		if err != nil {
			return nil, errors.Template(errors.CodeTemplateLoad, fmt.Sprintf("parsing renderer for %s", docType), err)
		}
		registry.Register(renderer)
	}

	if conf.DefaultRenderer != "" {
		data, err := os.ReadFile(conf.DefaultRenderer)
		if err != nil {
			return nil, errors.Template(errors.CodeTemplateLoad, "loading default renderer", err)
		}
		renderer, err := render.NewTemplateRenderer("", string(data))
		if err != nil {
			return nil, errors.Template(errors.CodeTemplateLoad, "parsing default renderer", err)
		}
		registry.SetDefaultRenderer(renderer)
	}
	p.logger.Debugf("Document renderers for types %v", registry.Types())
	return registry, nil
}

func (p *Plugin) recordStatistics(ctx context.Context, pc *plugin.Context, results *search.Results, took time.Duration) {
	if !pc.Conf.Search.Statistics {
		return
	}
	env := pc.Environment()
	if !env.Storage.Enabled() {
		return
	}
	store, err := env.Storage.Statistics()
	if err != nil {
		pc.Logger.Warnf("Opening statistics: %v", err)
		return
	}
	err = store.Record(ctx, storage.QueryRecord{
		Query:    results.Query,
		NumFound: results.NumFound,
		Page:     results.Page,
		PageID:   pc.Request.PageID,
		Language: pc.Language,
		Duration: took,
	})
	if err != nil {
		pc.Logger.Warnf("Recording statistics: %v", err)
	}
}
