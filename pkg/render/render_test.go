package render

import (
	"fmt"
	"html/template"
	"strings"
	"testing"

	"github.com/rubiojr/solrpi/pkg/backend"
	tmpl "github.com/rubiojr/solrpi/pkg/template"
	"github.com/rubiojr/solrpi/pkg/wrap"
)

type fakeEngine struct {
	subparts []string
}

func (e *fakeEngine) WorkOnSubpart(name string) {
	e.subparts = append(e.subparts, name)
}

func (e *fakeEngine) Render() (string, error) {
	return "rendered:" + e.subparts[len(e.subparts)-1], nil
}

func TestRenderSelectsExactlyOneSubpart(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    string
	}{
		{NormalOutcome("data"), "normal:data"},
		{UnavailableOutcome(), "rendered:" + tmpl.SubpartUnavailable},
		{ExceptionalOutcome(), "rendered:" + tmpl.SubpartError},
	}

	for _, tt := range tests {
		t.Run(tt.outcome.Kind.String(), func(t *testing.T) {
			engine := &fakeEngine{}
			normalCalls := 0
			r := NewResultRenderer(engine, func(result any) (string, error) {
				normalCalls++
				return fmt.Sprintf("normal:%v", result), nil
			})

			got, err := r.Render(tt.outcome)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}

			rendered := normalCalls + len(engine.subparts)
			if rendered != 1 {
				t.Errorf("expected exactly one subpart to be rendered, got %d", rendered)
			}
		})
	}
}

func TestRenderWithEngine(t *testing.T) {
	r := NewResultRenderer(tmpl.Default("results", "solr_search"), nil)
	out, err := r.RenderUnavailable()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "solr-unavailable") {
		t.Fatalf("unexpected unavailable output %q", out)
	}
	out, err = r.RenderException()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "solr-exception") {
		t.Fatalf("unexpected exception output %q", out)
	}
}

func TestPostProcess(t *testing.T) {
	got, err := PostProcess(" x ", nil)
	if err != nil || got != " x " {
		t.Fatalf("expected passthrough, got %q, %v", got, err)
	}
	got, err = PostProcess(" x ", &wrap.Spec{Trim: true, Wrap: "<p>|</p>"})
	if err != nil || got != "<p>x</p>" {
		t.Fatalf("expected std_wrap to apply, got %q, %v", got, err)
	}
}

func TestBaseWrap(t *testing.T) {
	got, err := BaseWrap("content", nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if got != `<div class="tx-solr">content</div>` {
		t.Fatalf("unexpected default wrap %q", got)
	}

	got, err = BaseWrap("content", &wrap.Spec{Wrap: "<section>|</section>"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if got != "<section>content</section>" {
		t.Fatalf("expected configured wrap, got %q", got)
	}
}

func TestBaseWrapIdempotent(t *testing.T) {
	for _, content := range []string{"", "results"} {
		once, err := BaseWrap(content, nil, "")
		if err != nil {
			t.Fatal(err)
		}
		twice, err := BaseWrap(once, nil, "")
		if err != nil {
			t.Fatal(err)
		}
		if once != twice {
			t.Errorf("base wrap not idempotent for %q: %q != %q", content, once, twice)
		}
	}
}

func TestRegistry(t *testing.T) {
	news, err := NewTemplateRenderer("news", `<div class="news">{{.Title}}</div>`)
	if err != nil {
		t.Fatal(err)
	}
	reg := NewRegistry()
	reg.Register(news)
	reg.Register(nil)

	newsDoc := backend.Document{"id": "1", "type": "news", "title": "Release <1.0>"}
	pageDoc := backend.Document{"id": "2", "type": "pages", "title": "About", "url": "/about", "content": "text"}

	if got := reg.Render(newsDoc); got != template.HTML(`<div class="news">Release &lt;1.0&gt;</div>`) {
		t.Errorf("unexpected news rendering %q", got)
	}
	page := string(reg.Render(pageDoc))
	for _, want := range []string{`solr-type-pages`, `<a href="/about">About</a>`, `<p class="solr-teaser">text</p>`} {
		if !strings.Contains(page, want) {
			t.Errorf("expected %q in default rendering:\n%s", want, page)
		}
	}

	if types := reg.Types(); len(types) != 1 || types[0] != "news" {
		t.Errorf("unexpected types %v", types)
	}
	if all := reg.RenderAll([]backend.Document{newsDoc, pageDoc}); len(all) != 2 {
		t.Errorf("expected 2 rendered documents, got %d", len(all))
	}

	fallback, err := NewTemplateRenderer("", `<li>{{.Title}}</li>`)
	if err != nil {
		t.Fatal(err)
	}
	reg.SetDefaultRenderer(fallback)
	if got := reg.Render(pageDoc); got != template.HTML(`<li>About</li>`) {
		t.Errorf("expected overridden fallback, got %q", got)
	}
	if got := reg.Render(newsDoc); got != template.HTML(`<div class="news">Release &lt;1.0&gt;</div>`) {
		t.Errorf("type renderer should win over fallback, got %q", got)
	}
}

func TestDocumentDataFallbacks(t *testing.T) {
	data := NewDocumentData(backend.Document{"id": "42", "teaser": "short"})
	if data.Title != "42" {
		t.Errorf("expected id as title fallback, got %q", data.Title)
	}
	if data.Teaser != "short" {
		t.Errorf("expected teaser, got %q", data.Teaser)
	}
}
