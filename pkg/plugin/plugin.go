// Package plugin runs the search request lifecycle shared by every search
// plugin: initialize settings, connect to the backend, act, render the
// normal or unavailable view and wrap the output. Any failure from
// initialization onward ends in the exception view, so Main always returns
// markup.
package plugin

import (
	"context"
	"net/url"

	"github.com/rubiojr/solrpi/pkg/backend"
	"github.com/rubiojr/solrpi/pkg/config"
	"github.com/rubiojr/solrpi/pkg/i18n"
	"github.com/rubiojr/solrpi/pkg/storage"
	tmpl "github.com/rubiojr/solrpi/pkg/template"
)

// Plugin is a concrete search plugin variant.
type Plugin interface {
	// Key identifies the plugin. It selects the [plugins.<key>] settings
	// overrides and the view helper providers.
	Key() string
	// TemplateFileKey selects template_files.<key> and the embedded
	// template set.
	TemplateFileKey() string
	// Subpart is the template subpart rendered for normal results.
	Subpart() string
	// PerformAction runs the plugin's action. It is called whether or not
	// the backend is available.
	PerformAction(ctx context.Context, pc *Context) (any, error)
	// Render renders the action result. The context's template engine is
	// already set to Subpart.
	Render(ctx context.Context, pc *Context, result any) (string, error)
}

// PostInitializer is implemented by plugins that need to run after the
// lifecycle initialized settings, backend and template engine.
type PostInitializer interface {
	PostInitialize(ctx context.Context, pc *Context) error
}

// PreRenderer is implemented by plugins that prepare the page before acting,
// typically by adding assets.
type PreRenderer interface {
	PreRender(ctx context.Context, pc *Context) error
}

// PostRenderer is implemented by plugins that transform their output before
// std_wrap is applied.
type PostRenderer interface {
	PostRender(ctx context.Context, pc *Context, content string) (string, error)
}

// TemplateInitializer is implemented by plugins that adjust the template
// engine after it was built. The returned engine replaces the original.
type TemplateInitializer interface {
	PostInitializeTemplate(ctx context.Context, pc *Context, engine *tmpl.Engine) (*tmpl.Engine, error)
}

// SettingsOverrider is implemented by plugins that adjust their merged
// settings for a request.
type SettingsOverrider interface {
	OverrideSettings(settings config.Settings, req Request) (config.Settings, error)
}

// Request carries everything the lifecycle needs to know about the incoming
// request. Query is nil when no query parameter was sent at all.
type Request struct {
	Query      *string
	Params     url.Values
	PageID     int
	LanguageID int
	MountPoint string
	// TemplateFile overrides template_files.<key> for this request.
	TemplateFile string
	// ActionURL is where forms and links point to. Defaults to
	// "?id=<link target page>".
	ActionURL string
}

// ConnectionKey returns the backend connection key for the request.
func (r Request) ConnectionKey() backend.ConnectionKey {
	return backend.ConnectionKey{
		PageID:     r.PageID,
		LanguageID: r.LanguageID,
		MountPoint: r.MountPoint,
	}
}

// Extensions holds the extension points assembled at startup.
type Extensions struct {
	// Detectors are error detectors consulted by plugins that validate
	// the query. Each value must implement detector.Detector.
	Detectors []any
	// ViewHelpers lists view helper providers per plugin key. Each value
	// must implement template.HelperProvider.
	ViewHelpers map[string][]any
}

// Environment bundles the shared collaborators of all requests.
type Environment struct {
	Config     *config.Config
	Backends   *backend.Manager
	Labels     *i18n.Catalog
	Storage    *storage.Manager
	Extensions Extensions
}
