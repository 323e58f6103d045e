package template

import (
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rubiojr/solrpi/pkg/errors"
)

type fakeLabels map[string]string

func (f fakeLabels) Label(lang, key string) string {
	if v, ok := f[lang+":"+key]; ok {
		return v
	}
	return key
}

func (f fakeLabels) Resolve(lang, text string) string {
	for k, v := range f {
		prefix := lang + ":"
		if strings.HasPrefix(k, prefix) {
			text = strings.ReplaceAll(text, LabelToken(strings.TrimPrefix(k, prefix)), v)
		}
	}
	return text
}

type helperProvider map[string]any

func (h helperProvider) ViewHelpers() map[string]any { return h }

func TestDefaultSharedSubparts(t *testing.T) {
	for _, subpart := range []string{SubpartUnavailable, SubpartError} {
		e := Default("results", subpart)
		out, err := e.Render()
		if err != nil {
			t.Fatalf("rendering %s: %v", subpart, err)
		}
		if out == "" {
			t.Fatalf("expected output for %s", subpart)
		}
	}

	// Keys without their own template still carry the shared subparts.
	e := Default("unknown", SubpartError)
	if _, err := e.Render(); err != nil {
		t.Fatalf("rendering shared subpart for unknown key: %v", err)
	}
}

func TestRenderResolvesLabels(t *testing.T) {
	e := Default("results", SubpartUnavailable)
	e.SetLabels(fakeLabels{"de:searchUnavailable": "Nicht verfügbar"}, "de")

	out, err := e.Render()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Nicht verfügbar") {
		t.Fatalf("expected resolved label, got %q", out)
	}
	if strings.Contains(out, "###") {
		t.Fatalf("unresolved token left in output: %q", out)
	}
}

func TestRenderWithoutLabelsKeepsTokens(t *testing.T) {
	out, err := Default("results", SubpartError).Render()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, LabelToken("searchFailed")) {
		t.Fatalf("expected label token, got %q", out)
	}
}

func TestResultsSubpart(t *testing.T) {
	e := Default("results", "solr_search")
	e.AddVariable("query", template.HTML("solr &amp; lucene"))
	e.AddVariable("searched", true)
	e.AddVariable("num_found", 2)
	e.AddVariable("documents", []template.HTML{"<b>one</b>", "<b>two</b>"})

	out, err := e.Render()
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	for _, want := range []string{`value="solr &amp; lucene"`, "<li><b>one</b></li>", `<span class="solr-count">2</span>`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestLoadFileOverridesSharedSubpart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.html")
	src := `{{define "custom"}}<p>{{upper .name}}</p>{{end}}{{define "solr_search_error"}}<p>oops</p>{{end}}`
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	e, err := Load("results", path, "custom")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	e.AddVariable("name", "solr")
	out, err := e.Render()
	if err != nil {
		t.Fatal(err)
	}
	if out != "<p>SOLR</p>" {
		t.Fatalf("unexpected output %q", out)
	}

	e.WorkOnSubpart(SubpartError)
	out, err = e.Render()
	if err != nil {
		t.Fatal(err)
	}
	if out != "<p>oops</p>" {
		t.Fatalf("expected overridden error subpart, got %q", out)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("results", filepath.Join(t.TempDir(), "missing.html"), "solr_search")
	if errors.CodeOf(err) != errors.CodeTemplateLoad {
		t.Fatalf("expected template load error, got %v", err)
	}
}

func TestUnknownSubpart(t *testing.T) {
	_, err := Default("results", "nope").Render()
	if errors.CodeOf(err) != errors.CodeTemplateRender {
		t.Fatalf("expected template render error, got %v", err)
	}
}

func TestAddHelpers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "helpers.html")
	if err := os.WriteFile(path, []byte(`{{define "h"}}{{shout "hi"}}{{end}}`), 0644); err != nil {
		t.Fatal(err)
	}
	e, err := Load("results", path, "h")
	if err != nil {
		t.Fatal(err)
	}

	err = e.AddHelpers([]any{helperProvider{"shout": func(s string) string { return s + "!" }}})
	if err != nil {
		t.Fatalf("AddHelpers failed: %v", err)
	}
	out, err := e.Render()
	if err != nil {
		t.Fatal(err)
	}
	if out != "hi!" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestAddHelpersContractViolation(t *testing.T) {
	e := Default("results", "solr_search")

	err := e.AddHelpers([]any{struct{}{}})
	if errors.CodeOf(err) != errors.CodeViewHelperProvider {
		t.Fatalf("expected view helper provider error, got %v", err)
	}

	err = e.AddHelpers([]any{helperProvider{"bad": "not a func"}})
	if errors.CodeOf(err) != errors.CodeViewHelperProvider {
		t.Fatalf("expected error for non function helper, got %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("héllo world", 8); got != "héllo..." {
		t.Errorf("unexpected truncation %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("expected unchanged string, got %q", got)
	}
}
