package plugin

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/rubiojr/solrpi/pkg/backend"
	"github.com/rubiojr/solrpi/pkg/config"
	"github.com/rubiojr/solrpi/pkg/log"
	"github.com/rubiojr/solrpi/pkg/query"
	"github.com/rubiojr/solrpi/pkg/render"
	tmpl "github.com/rubiojr/solrpi/pkg/template"
	"github.com/rubiojr/solrpi/pkg/wrap"
)

// Conf is the typed view of the settings the lifecycle itself reads.
// Plugins decode their own sections from Context.Settings.
type Conf struct {
	Search struct {
		TargetPage int  `mapstructure:"target_page"`
		Statistics bool `mapstructure:"statistics"`
		Query      struct {
			AllowEmptyQuery bool `mapstructure:"allow_empty_query"`
		} `mapstructure:"query"`
		Results struct {
			ResultsPerPage int `mapstructure:"results_per_page"`
		} `mapstructure:"results"`
	} `mapstructure:"search"`
	Logging struct {
		Exceptions bool `mapstructure:"exceptions"`
	} `mapstructure:"logging"`
	TemplateFiles map[string]string `mapstructure:"template_files"`
	DefaultParams map[string]string `mapstructure:"default_params"`
}

// Script is a JavaScript asset added by a plugin.
type Script struct {
	Name   string
	Src    string
	Inline string
}

// Assets collects the scripts a request needs. Adding a script with a name
// already present is a no-op.
type Assets struct {
	mu      sync.Mutex
	scripts []Script
}

// AddScript adds a script.
func (a *Assets) AddScript(s Script) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, existing := range a.scripts {
		if existing.Name == s.Name {
			return
		}
	}
	a.scripts = append(a.scripts, s)
}

// Scripts returns the scripts in the order they were added.
func (a *Assets) Scripts() []Script {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Script(nil), a.scripts...)
}

// Context is the per request state shared between the lifecycle and the
// plugin. It is never shared between requests.
type Context struct {
	Request   Request
	Settings  config.Settings
	Conf      Conf
	Query     query.Query
	Params    url.Values
	Template  *tmpl.Engine
	Assets    *Assets
	Language  string
	RequestID string
	Logger    *log.Logger

	env       *Environment
	available bool
	search    *backend.Search
	release   func()
	outcome   render.Kind
	stdWrap   *wrap.Spec
	baseWrap  *wrap.Spec
}

// Available reports whether the backend answered the ping during
// initialization.
func (c *Context) Available() bool {
	return c.available
}

// Search returns the search bound to the request's backend connection.
func (c *Context) Search() *backend.Search {
	return c.search
}

// SetSearch replaces the search, for plugins that modify how results are
// fetched.
func (c *Context) SetSearch(s *backend.Search) {
	c.search = s
}

// Environment returns the shared collaborators.
func (c *Context) Environment() *Environment {
	return c.env
}

// Outcome returns how the request was rendered.
func (c *Context) Outcome() render.Kind {
	return c.outcome
}

// LinkTargetPageID returns the page links and forms should point to:
// search.target_page when set, the current page otherwise.
func (c *Context) LinkTargetPageID() int {
	if c.Conf.Search.TargetPage > 0 {
		return c.Conf.Search.TargetPage
	}
	return c.Request.PageID
}

// ActionURL returns the URL forms submit to.
func (c *Context) ActionURL() string {
	if c.Request.ActionURL != "" {
		return c.Request.ActionURL
	}
	return fmt.Sprintf("?id=%d", c.LinkTargetPageID())
}
