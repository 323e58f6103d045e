package i18n

import (
	"os"
	"path/filepath"
	"testing"
)

func newCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestLabelFallbacks(t *testing.T) {
	c := newCatalog(t)

	if got := c.Label("de", "submit"); got != "Suchen" {
		t.Errorf("expected German label, got %q", got)
	}
	if got := c.Label("de-AT", "submit"); got != "Suchen" {
		t.Errorf("expected regional tag to match de, got %q", got)
	}
	if got := c.Label("default", "submit"); got != "Search" {
		t.Errorf("expected default label, got %q", got)
	}
	if got := c.Label("ja", "submit"); got != "Search" {
		t.Errorf("expected unknown language to fall back to default, got %q", got)
	}
	if got := c.Label("de", "unknown_label"); got != "unknown_label" {
		t.Errorf("expected key for missing label, got %q", got)
	}
}

func TestResolveTokens(t *testing.T) {
	c := newCatalog(t)

	got := c.Resolve("en", "<p>###LLL:error_emptyQuery###</p>")
	want := "<p>Please enter your search term in the box above.</p>"
	if got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}

	escaped := "&#35;&#35;&#35;LLL:error_emptyQuery&#35;&#35;&#35;"
	if got := c.Resolve("en", escaped); got != escaped {
		t.Errorf("escaped markers must not resolve, got %q", got)
	}
}

func TestOverlay(t *testing.T) {
	c := newCatalog(t)
	c.Overlay(map[string]map[string]string{
		"de": {"submit": "Los", "next": ""},
		"xx": {"submit": "ignored"},
	})

	if got := c.Label("de", "submit"); got != "Los" {
		t.Errorf("expected overlay label, got %q", got)
	}
	if got := c.Label("de", "next"); got != "Next" {
		t.Errorf("expected unset label to fall back to default, got %q", got)
	}
	for _, lang := range c.Languages() {
		if lang == "xx" {
			t.Error("overlay must not add languages")
		}
	}
}

func TestLoadFile(t *testing.T) {
	c := newCatalog(t)
	path := filepath.Join(t.TempDir(), "labels.toml")
	data := "[es]\nsubmit = \"Buscar\"\n\n[default]\nsubmit = \"Find\"\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	if err := c.LoadFile(path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if got := c.Label("es-MX", "submit"); got != "Buscar" {
		t.Errorf("expected Spanish label, got %q", got)
	}
	if got := c.Label("en", "submit"); got != "Find" {
		t.Errorf("expected replaced default label, got %q", got)
	}
	if got := c.Label("es", "previous"); got != "Previous" {
		t.Errorf("expected fallback for missing Spanish label, got %q", got)
	}
}
