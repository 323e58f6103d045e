package plugin

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rubiojr/solrpi/pkg/backend"
	"github.com/rubiojr/solrpi/pkg/config"
	"github.com/rubiojr/solrpi/pkg/errors"
	"github.com/rubiojr/solrpi/pkg/log"
	"github.com/rubiojr/solrpi/pkg/render"
	tmpl "github.com/rubiojr/solrpi/pkg/template"
)

type stubConn struct {
	endpoint string
	alive    bool
	closed   atomic.Bool
}

func (c *stubConn) Ping(ctx context.Context) error {
	if !c.alive {
		return fmt.Errorf("connection refused")
	}
	return nil
}

func (c *stubConn) Select(ctx context.Context, req backend.Request) (*backend.Response, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("connection is closed")
	}
	return &backend.Response{NumFound: 1, Documents: []backend.Document{{"id": "1"}}}, nil
}

func (c *stubConn) Endpoint() string { return c.endpoint }
func (c *stubConn) Close() error     { c.closed.Store(true); return nil }

func init() {
	backend.RegisterDriver("lifecycle-stub", func(info config.ConnectionInfo) (backend.Connection, error) {
		return &stubConn{endpoint: info.URL, alive: info.URL == "up"}, nil
	})
	backend.RegisterDriver("lifecycle-broken", func(info config.ConnectionInfo) (backend.Connection, error) {
		return nil, fmt.Errorf("cannot build client")
	})
}

type stubPlugin struct {
	action    func(ctx context.Context, pc *Context) (any, error)
	performed bool
	seen      *Context
}

func (p *stubPlugin) Key() string             { return "stub" }
func (p *stubPlugin) TemplateFileKey() string { return "stub" }
func (p *stubPlugin) Subpart() string         { return "stub_results" }

func (p *stubPlugin) PerformAction(ctx context.Context, pc *Context) (any, error) {
	p.performed = true
	p.seen = pc
	if p.action != nil {
		return p.action(ctx, pc)
	}
	return "ok", nil
}

func (p *stubPlugin) Render(ctx context.Context, pc *Context, result any) (string, error) {
	pc.Template.AddVariable("result", result)
	return pc.Template.Render()
}

const stubTemplate = `{{define "stub_results"}}<p class="stub">{{.result}}</p>{{end}}`

// newTestEnvironment writes the stub template and builds an environment
// from the given extra TOML.
func newTestEnvironment(t *testing.T, extra string, ext Extensions) *Environment {
	t.Helper()

	dir := t.TempDir()
	templatePath := filepath.Join(dir, "stub.html")
	if err := os.WriteFile(templatePath, []byte(stubTemplate), 0644); err != nil {
		t.Fatalf("writing template: %v", err)
	}

	doc := fmt.Sprintf(`
[languages]
"0" = "en"
"1" = "de"

[[connections]]
page_id = 1
type = "lifecycle-stub"
url = "up"

[[connections]]
page_id = 2
type = "lifecycle-stub"
url = "down"

[[connections]]
page_id = 3
type = "lifecycle-broken"

[plugin.logging]
exceptions = true

[plugin.template_files]
stub = %q
%s
`, templatePath, extra)

	cfg, err := config.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parsing config: %v", err)
	}
	env, err := NewEnvironment(cfg, ext)
	if err != nil {
		t.Fatalf("creating environment: %v", err)
	}
	t.Cleanup(func() { env.Close() })
	return env
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func TestMainRendersNormalOutcome(t *testing.T) {
	p := &stubPlugin{}
	l := New(p, newTestEnvironment(t, "", Extensions{}))

	res := l.Execute(context.Background(), Request{PageID: 1})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Outcome != render.Normal {
		t.Fatalf("expected normal outcome, got %s", res.Outcome)
	}
	want := `<div class="tx-solr"><p class="stub">ok</p></div>`
	if res.Content != want {
		t.Fatalf("got %q, want %q", res.Content, want)
	}
	if res.RequestID == "" {
		t.Error("expected a request id")
	}
	if !p.seen.Available() {
		t.Error("expected backend to be available")
	}
}

func TestMainRendersUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		pageID int
	}{
		{"ping fails", 2},
		{"connection cannot be built", 3},
		{"no connection configured", 99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &stubPlugin{}
			l := New(p, newTestEnvironment(t, "", Extensions{}))

			res := l.Execute(context.Background(), Request{PageID: tt.pageID})
			if res.Outcome != render.Unavailable {
				t.Fatalf("expected unavailable outcome, got %s", res.Outcome)
			}
			if !p.performed {
				t.Error("expected the action to run even when unavailable")
			}
			if !strings.Contains(res.Content, `class="solr-unavailable"`) {
				t.Errorf("expected unavailable subpart, got %q", res.Content)
			}
			if !strings.Contains(res.Content, "Search is currently not available.") {
				t.Errorf("expected resolved label, got %q", res.Content)
			}
			if strings.Contains(res.Content, `class="stub"`) {
				t.Error("normal subpart must not be rendered")
			}
		})
	}
}

func TestMainRendersExceptionAndLogs(t *testing.T) {
	logs := captureLogs(t)

	p := &stubPlugin{action: func(ctx context.Context, pc *Context) (any, error) {
		return nil, errors.Backend(errors.CodeBackendRequest, "select failed", nil)
	}}
	l := New(p, newTestEnvironment(t, "", Extensions{}))

	res := l.Execute(context.Background(), Request{PageID: 1})
	if res.Outcome != render.Exceptional {
		t.Fatalf("expected exceptional outcome, got %s", res.Outcome)
	}
	if errors.CodeOf(res.Err) != errors.CodeBackendRequest {
		t.Fatalf("expected backend request code, got %d", errors.CodeOf(res.Err))
	}
	if !strings.HasPrefix(res.Content, `<div class="tx-solr">`) {
		t.Errorf("expected base wrap on exception view, got %q", res.Content)
	}
	if !strings.Contains(res.Content, `class="solr-exception"`) {
		t.Errorf("expected error subpart, got %q", res.Content)
	}

	out := logs.String()
	if !strings.Contains(out, strconv.Itoa(errors.CodeBackendRequest)) {
		t.Errorf("expected code in log, got %q", out)
	}
	if !strings.Contains(out, res.RequestID) {
		t.Errorf("expected request id in log, got %q", out)
	}
	if !strings.Contains(out, "select failed") {
		t.Errorf("expected message in log, got %q", out)
	}
}

func TestMainDoesNotLogExceptionsWhenDisabled(t *testing.T) {
	logs := captureLogs(t)

	p := &stubPlugin{action: func(ctx context.Context, pc *Context) (any, error) {
		return nil, errors.Backend(errors.CodeBackendRequest, "select failed", nil)
	}}
	env := newTestEnvironment(t, `
[plugins.stub.logging]
exceptions = false
`, Extensions{})
	l := New(p, env)

	res := l.Execute(context.Background(), Request{PageID: 1})
	if res.Outcome != render.Exceptional {
		t.Fatalf("expected exceptional outcome, got %s", res.Outcome)
	}
	if strings.Contains(logs.String(), "select failed") {
		t.Errorf("exception must not be logged, got %q", logs.String())
	}
}

func TestMainRecoversPanic(t *testing.T) {
	p := &stubPlugin{action: func(ctx context.Context, pc *Context) (any, error) {
		panic("boom")
	}}
	l := New(p, newTestEnvironment(t, "", Extensions{}))

	res := l.Execute(context.Background(), Request{PageID: 1})
	if res.Outcome != render.Exceptional {
		t.Fatalf("expected exceptional outcome, got %s", res.Outcome)
	}
	if !strings.Contains(res.Content, `class="solr-exception"`) {
		t.Errorf("expected error subpart, got %q", res.Content)
	}
}

func TestMainFallsBackToEmbeddedTemplates(t *testing.T) {
	p := &stubPlugin{}
	l := New(p, newTestEnvironment(t, "", Extensions{}))

	res := l.Execute(context.Background(), Request{
		PageID:       1,
		TemplateFile: filepath.Join(t.TempDir(), "missing.html"),
	})
	if res.Outcome != render.Exceptional {
		t.Fatalf("expected exceptional outcome, got %s", res.Outcome)
	}
	if errors.CodeOf(res.Err) != errors.CodeTemplateLoad {
		t.Fatalf("expected template load code, got %d", errors.CodeOf(res.Err))
	}
	if !strings.Contains(res.Content, "Search is currently not available. We are sorry") {
		t.Errorf("expected embedded error subpart, got %q", res.Content)
	}
}

func TestMainWithoutEnvironment(t *testing.T) {
	l := New(&stubPlugin{}, nil)

	out := l.Main(context.Background(), Request{})
	if !strings.Contains(out, `class="solr-exception"`) {
		t.Fatalf("expected error subpart, got %q", out)
	}
}

func TestMainAppliesWraps(t *testing.T) {
	env := newTestEnvironment(t, `
[plugins.stub.std_wrap]
wrap = "<section>|</section>"

[plugins.stub.general.base_wrap]
wrap = "<div class=\"search\">|</div>"
`, Extensions{})
	l := New(&stubPlugin{}, env)

	got := l.Main(context.Background(), Request{PageID: 1})
	want := `<div class="search"><section><p class="stub">ok</p></section></div>`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestMainDefaultParams(t *testing.T) {
	env := newTestEnvironment(t, `
[plugins.stub.default_params]
sort = "title asc"
page = "1"
`, Extensions{})
	p := &stubPlugin{}
	l := New(p, env)

	l.Main(context.Background(), Request{PageID: 1, Params: map[string][]string{"page": {"3"}}})

	if got := p.seen.Params.Get("sort"); got != "title asc" {
		t.Errorf("expected default sort, got %q", got)
	}
	if got := p.seen.Params.Get("page"); got != "3" {
		t.Errorf("request params must win over defaults, got %q", got)
	}
}

func TestMainViewHelperContractViolation(t *testing.T) {
	env := newTestEnvironment(t, "", Extensions{
		ViewHelpers: map[string][]any{"stub": {"not a provider"}},
	})
	p := &stubPlugin{}
	l := New(p, env)

	res := l.Execute(context.Background(), Request{PageID: 1})
	if errors.CodeOf(res.Err) != errors.CodeViewHelperProvider {
		t.Fatalf("expected view helper code, got %d (%v)", errors.CodeOf(res.Err), res.Err)
	}
	if p.performed {
		t.Error("action must not run when initialization fails")
	}
	if !strings.Contains(res.Content, `class="solr-exception"`) {
		t.Errorf("expected error subpart, got %q", res.Content)
	}
}

type shoutHelpers struct{}

func (shoutHelpers) ViewHelpers() map[string]any {
	return map[string]any{"shout": strings.ToUpper}
}

type hookedPlugin struct {
	stubPlugin
	calls []string
}

func (p *hookedPlugin) OverrideSettings(s config.Settings, req Request) (config.Settings, error) {
	p.calls = append(p.calls, "settings")
	return s.Overrule(map[string]any{"search": map[string]any{"target_page": 7}})
}

func (p *hookedPlugin) PostInitializeTemplate(ctx context.Context, pc *Context, engine *tmpl.Engine) (*tmpl.Engine, error) {
	p.calls = append(p.calls, "template")
	engine.AddVariable("greeting", "hello")
	return engine, nil
}

func (p *hookedPlugin) PostInitialize(ctx context.Context, pc *Context) error {
	p.calls = append(p.calls, "init")
	return nil
}

func (p *hookedPlugin) PreRender(ctx context.Context, pc *Context) error {
	p.calls = append(p.calls, "prerender")
	pc.Assets.AddScript(Script{Name: "suggest", Src: "/static/suggest.js"})
	pc.Assets.AddScript(Script{Name: "suggest", Src: "/static/other.js"})
	return nil
}

func (p *hookedPlugin) Render(ctx context.Context, pc *Context, result any) (string, error) {
	p.calls = append(p.calls, "render")
	if _, ok := pc.Template.Variable("greeting"); !ok {
		return "", fmt.Errorf("template hook did not run")
	}
	return "<p>" + strings.ToUpper(fmt.Sprint(result)) + "</p>", nil
}

func (p *hookedPlugin) PostRender(ctx context.Context, pc *Context, content string) (string, error) {
	p.calls = append(p.calls, "postrender")
	return content + "<!-- done -->", nil
}

func TestMainRunsHooksInOrder(t *testing.T) {
	env := newTestEnvironment(t, "", Extensions{
		ViewHelpers: map[string][]any{"stub": {shoutHelpers{}}},
	})
	p := &hookedPlugin{}
	l := New(p, env)

	res := l.Execute(context.Background(), Request{PageID: 1})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}

	want := []string{"settings", "template", "init", "prerender", "render", "postrender"}
	if strings.Join(p.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("got hook order %v, want %v", p.calls, want)
	}
	if res.Content != `<div class="tx-solr"><p>OK</p><!-- done --></div>` {
		t.Errorf("unexpected content %q", res.Content)
	}
	if len(res.Scripts) != 1 || res.Scripts[0].Src != "/static/suggest.js" {
		t.Errorf("expected one deduplicated script, got %+v", res.Scripts)
	}
	if got := p.seen.LinkTargetPageID(); got != 7 {
		t.Errorf("expected overridden target page 7, got %d", got)
	}
	if got := p.seen.ActionURL(); got != "?id=7" {
		t.Errorf("unexpected action url %q", got)
	}
}

func TestContextLanguageAndQuery(t *testing.T) {
	p := &stubPlugin{}
	l := New(p, newTestEnvironment(t, "", Extensions{}))

	q := "  solr   search "
	l.Main(context.Background(), Request{PageID: 1, LanguageID: 1, Query: &q})

	if p.seen.Language != "de" {
		t.Errorf("expected language de, got %q", p.seen.Language)
	}
	if got := p.seen.Query.Sanitized(); got != "solr search" {
		t.Errorf("unexpected sanitized query %q", got)
	}
	if got := p.seen.LinkTargetPageID(); got != 1 {
		t.Errorf("expected current page as link target, got %d", got)
	}
}

func TestSetEnvironment(t *testing.T) {
	p := &stubPlugin{}
	l := New(p, nil)
	l.SetEnvironment(newTestEnvironment(t, "", Extensions{}))

	if res := l.Execute(context.Background(), Request{PageID: 1}); res.Outcome != render.Normal {
		t.Fatalf("expected normal outcome after setting environment, got %s (%v)", res.Outcome, res.Err)
	}
}

func TestReloadDuringRequestKeepsConnection(t *testing.T) {
	env := newTestEnvironment(t, "", Extensions{})

	var conn *stubConn
	p := &stubPlugin{action: func(ctx context.Context, pc *Context) (any, error) {
		conn = pc.Search().Connection().(*stubConn)
		if _, err := pc.Environment().Reload(pc.Environment().Config); err != nil {
			return nil, err
		}
		resp, err := pc.Search().Execute(ctx, backend.Request{Query: "x"})
		if err != nil {
			return nil, err
		}
		return resp.NumFound, nil
	}}

	res := New(p, env).Execute(context.Background(), Request{PageID: 1})
	if res.Outcome != render.Normal {
		t.Fatalf("expected normal outcome, got %v: %v", res.Outcome, res.Err)
	}
	if !strings.Contains(res.Content, `<p class="stub">1</p>`) {
		t.Errorf("unexpected content %q", res.Content)
	}
	if !conn.closed.Load() {
		t.Error("expected the dropped connection to be closed once the request finished")
	}
}
