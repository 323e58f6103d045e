package plugin

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rubiojr/solrpi/pkg/backend"
	"github.com/rubiojr/solrpi/pkg/errors"
	"github.com/rubiojr/solrpi/pkg/log"
	"github.com/rubiojr/solrpi/pkg/metrics"
	"github.com/rubiojr/solrpi/pkg/query"
	"github.com/rubiojr/solrpi/pkg/render"
	tmpl "github.com/rubiojr/solrpi/pkg/template"
	"github.com/rubiojr/solrpi/pkg/wrap"
)

// fallbackContent is returned when not even the embedded error subpart can
// be rendered.
const fallbackContent = `<div class="solr-exception"></div>`

// Result is the outcome of one lifecycle run.
type Result struct {
	Content   string
	Outcome   render.Kind
	Scripts   []Script
	RequestID string
	Language  string
	Err       error
}

// Lifecycle drives a plugin through one request at a time. It is safe for
// concurrent use; every call builds its own Context.
type Lifecycle struct {
	plugin Plugin
	env    atomic.Pointer[Environment]
	logger *log.Logger
}

// New returns a lifecycle for p over env.
func New(p Plugin, env *Environment) *Lifecycle {
	l := &Lifecycle{
		plugin: p,
		logger: log.ForService("lifecycle"),
	}
	l.env.Store(env)
	return l
}

// Plugin returns the driven plugin.
func (l *Lifecycle) Plugin() Plugin {
	return l.plugin
}

// SetEnvironment replaces the environment used by subsequent requests.
func (l *Lifecycle) SetEnvironment(env *Environment) {
	l.env.Store(env)
}

// Main runs the plugin for req and returns the wrapped markup. It never
// fails: errors and panics end in the exception view.
func (l *Lifecycle) Main(ctx context.Context, req Request) string {
	return l.Execute(ctx, req).Content
}

// Execute runs the plugin for req like Main and also reports how the
// request ended.
func (l *Lifecycle) Execute(ctx context.Context, req Request) Result {
	start := time.Now()
	env := l.env.Load()
	pc := &Context{
		Request:   req,
		Assets:    &Assets{},
		RequestID: uuid.NewString(),
		env:       env,
	}
	pc.Logger = log.ForService(l.plugin.Key()).With("request_id", pc.RequestID)
	defer func() {
		if pc.release != nil {
			pc.release()
		}
	}()

	content, err := l.run(ctx, pc)
	if err != nil {
		pc.outcome = render.Exceptional
		content = l.renderException(ctx, pc, err)
	}

	wrapped, werr := render.BaseWrap(content, pc.baseWrap, render.DefaultBaseClass)
	if werr != nil {
		l.logger.Warnf("Applying base wrap for %s: %v", l.plugin.Key(), werr)
		wrapped, _ = render.BaseWrap(content, nil, render.DefaultBaseClass)
	}

	metrics.RecordRequest(l.plugin.Key(), pc.outcome.String(), time.Since(start))
	return Result{
		Content:   wrapped,
		Outcome:   pc.outcome,
		Scripts:   pc.Assets.Scripts(),
		RequestID: pc.RequestID,
		Language:  pc.Language,
		Err:       err,
	}
}

// run executes the lifecycle up to post rendering. Panics are converted to
// errors.
func (l *Lifecycle) run(ctx context.Context, pc *Context) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in plugin %s: %v", l.plugin.Key(), r)
		}
	}()

	if err := l.initialize(ctx, pc); err != nil {
		return "", err
	}

	if p, ok := l.plugin.(PreRenderer); ok {
		if err := p.PreRender(ctx, pc); err != nil {
			return "", fmt.Errorf("pre rendering: %w", err)
		}
	}

	result, err := l.plugin.PerformAction(ctx, pc)
	if err != nil {
		return "", fmt.Errorf("performing action: %w", err)
	}

	outcome := render.NormalOutcome(result)
	if !pc.available {
		outcome = render.UnavailableOutcome()
	}
	pc.outcome = outcome.Kind

	renderer := render.NewResultRenderer(pc.Template, func(result any) (string, error) {
		pc.Template.WorkOnSubpart(l.plugin.Subpart())
		return l.plugin.Render(ctx, pc, result)
	})
	content, err = renderer.Render(outcome)
	if err != nil {
		return "", fmt.Errorf("rendering: %w", err)
	}

	return l.postRender(ctx, pc, content)
}

func (l *Lifecycle) initialize(ctx context.Context, pc *Context) error {
	env := pc.env
	if env == nil || env.Config == nil {
		return errors.Config("no environment configured", nil)
	}

	settings, err := env.Config.PluginSettings(l.plugin.Key())
	if err != nil {
		return err
	}
	if o, ok := l.plugin.(SettingsOverrider); ok {
		settings, err = o.OverrideSettings(settings, pc.Request)
		if err != nil {
			return fmt.Errorf("overriding settings: %w", err)
		}
	}
	pc.Settings = settings
	if err := settings.Decode("", &pc.Conf); err != nil {
		return errors.Config(fmt.Sprintf("decoding settings of plugin %s", l.plugin.Key()), err)
	}
	if pc.stdWrap, err = wrap.FromSettings(settings, "std_wrap"); err != nil {
		return err
	}
	if pc.baseWrap, err = wrap.FromSettings(settings, "general.base_wrap"); err != nil {
		return err
	}

	pc.Language = env.Config.LanguageTag(pc.Request.LanguageID)
	pc.Params = l.params(pc)
	pc.Query = query.Capture(pc.Request.Query)

	l.initializeSearch(ctx, pc)

	engine, err := l.initializeTemplateEngine(ctx, pc)
	if err != nil {
		return err
	}
	pc.Template = engine

	if p, ok := l.plugin.(PostInitializer); ok {
		if err := p.PostInitialize(ctx, pc); err != nil {
			return fmt.Errorf("post initialization: %w", err)
		}
	}
	return nil
}

// params returns the request parameters with default_params filling the
// ones the request did not send.
func (l *Lifecycle) params(pc *Context) url.Values {
	params := make(url.Values, len(pc.Request.Params)+len(pc.Conf.DefaultParams))
	for k, v := range pc.Request.Params {
		params[k] = append([]string(nil), v...)
	}
	for k, v := range pc.Conf.DefaultParams {
		if _, ok := params[k]; !ok {
			params.Set(k, v)
		}
	}
	return params
}

// initializeSearch connects to the request's backend and pings it. A
// connection that cannot be opened leaves the backend unavailable.
func (l *Lifecycle) initializeSearch(ctx context.Context, pc *Context) {
	conn, release, err := pc.env.Backends.Connect(ctx, pc.Request.ConnectionKey())
	if err != nil {
		l.logger.Warnf("No backend for %s: %v", pc.Request.ConnectionKey(), err)
		pc.search = backend.NewSearch(nil)
		pc.available = false
		return
	}
	pc.release = release
	pc.search = backend.NewSearch(conn)
	pc.available = pc.search.Ping(ctx)
	if !pc.available {
		l.logger.Warnf("Backend %s is not available", conn.Endpoint())
	}
}

func (l *Lifecycle) initializeTemplateEngine(ctx context.Context, pc *Context) (*tmpl.Engine, error) {
	key := l.plugin.TemplateFileKey()
	file := pc.Conf.TemplateFiles[key]
	if pc.Request.TemplateFile != "" {
		file = pc.Request.TemplateFile
	}

	engine, err := tmpl.Load(key, file, l.plugin.Subpart())
	if err != nil {
		return nil, err
	}
	if pc.env.Labels != nil {
		engine.SetLabels(pc.env.Labels, pc.Language)
	}
	if err := engine.AddHelpers(pc.env.Extensions.ViewHelpers[l.plugin.Key()]); err != nil {
		return nil, err
	}

	if p, ok := l.plugin.(TemplateInitializer); ok {
		engine, err = p.PostInitializeTemplate(ctx, pc, engine)
		if err != nil {
			return nil, fmt.Errorf("post initializing template: %w", err)
		}
	}
	return engine, nil
}

func (l *Lifecycle) postRender(ctx context.Context, pc *Context, content string) (string, error) {
	if p, ok := l.plugin.(PostRenderer); ok {
		var err error
		content, err = p.PostRender(ctx, pc, content)
		if err != nil {
			return "", fmt.Errorf("post rendering: %w", err)
		}
	}
	return render.PostProcess(content, pc.stdWrap)
}

// renderException logs err when logging.exceptions is set and renders the
// error subpart with a freshly built template engine. It falls back to the
// embedded templates when the configured ones cannot be used.
func (l *Lifecycle) renderException(ctx context.Context, pc *Context, err error) (content string) {
	code := errors.CodeOf(err)
	metrics.RecordException(l.plugin.Key(), code)
	if pc.Conf.Logging.Exceptions || pc.Settings.Bool("logging.exceptions") {
		l.logger.With("code", code, "request_id", pc.RequestID).Errorf("Exception in plugin %s: %v", l.plugin.Key(), err)
	} else {
		l.logger.Debugf("Exception in plugin %s: %v", l.plugin.Key(), err)
	}

	defer func() {
		if r := recover(); r != nil {
			l.logger.Errorf("Rendering exception view for %s panicked: %v", l.plugin.Key(), r)
			content = fallbackContent
		}
	}()

	engine, terr := l.exceptionEngine(ctx, pc)
	if terr == nil {
		out, rerr := render.NewResultRenderer(engine, nil).RenderException()
		if rerr == nil {
			return out
		}
		terr = rerr
	}
	l.logger.Warnf("Using embedded templates for %s exception view: %v", l.plugin.Key(), terr)

	engine = tmpl.Default(l.plugin.TemplateFileKey(), tmpl.SubpartError)
	if pc.env != nil && pc.env.Labels != nil {
		engine.SetLabels(pc.env.Labels, pc.Language)
	}
	out, rerr := render.NewResultRenderer(engine, nil).RenderException()
	if rerr != nil {
		l.logger.Errorf("Rendering embedded exception view for %s: %v", l.plugin.Key(), rerr)
		return fallbackContent
	}
	return out
}

func (l *Lifecycle) exceptionEngine(ctx context.Context, pc *Context) (*tmpl.Engine, error) {
	if pc.env == nil || pc.env.Config == nil {
		return nil, errors.Config("no environment configured", nil)
	}
	return l.initializeTemplateEngine(ctx, pc)
}
