package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testConfig = `
storage_dir = "/tmp/solrpi-test"

[languages]
"0" = "en"
"1" = "de"

[[connections]]
page_id = 0
language_id = 0
url = "http://localhost:8983/solr/core_en"
timeout = "2s"

[[connections]]
page_id = 42
language_id = 1
mount_point = "3-12"
type = "memory"

[plugin]
default_params = { results_per_page = "20" }

[plugin.search]
target_page = 7

[plugin.search.query]
allow_empty_query = false

[plugin.logging]
exceptions = true

[plugin.template_files]
results = "results.html"

[plugins.results.search.query]
allow_empty_query = true

[plugins.results.std_wrap]
trim = true
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(testConfig))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.StorageDir != "/tmp/solrpi-test" {
		t.Errorf("unexpected storage dir %q", cfg.StorageDir)
	}
	if cfg.Listen != DefaultListen {
		t.Errorf("expected default listen address, got %q", cfg.Listen)
	}
	if cfg.CacheSize != DefaultCacheSize {
		t.Errorf("expected default cache size, got %d", cfg.CacheSize)
	}
	if len(cfg.Connections) != 2 {
		t.Fatalf("expected 2 connections, got %d", len(cfg.Connections))
	}
	if cfg.Connections[0].Type != "solr" {
		t.Errorf("expected missing type to default to solr, got %q", cfg.Connections[0].Type)
	}
	if got := cfg.Connections[0].RequestTimeout(); got != 2*time.Second {
		t.Errorf("expected 2s timeout, got %v", got)
	}
	if got := cfg.Connections[1].RequestTimeout(); got != DefaultTimeout {
		t.Errorf("expected default timeout, got %v", got)
	}
	if cfg.Connections[1].MountPoint != "3-12" {
		t.Errorf("unexpected mount point %q", cfg.Connections[1].MountPoint)
	}
}

func TestParseRequiresSolrURL(t *testing.T) {
	_, err := Parse([]byte("[[connections]]\npage_id = 1\n"))
	if err == nil {
		t.Fatal("expected an error for a solr connection without url")
	}
}

func TestLanguageTag(t *testing.T) {
	cfg, err := Parse([]byte(testConfig))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := cfg.LanguageTag(1); got != "de" {
		t.Errorf("expected de, got %q", got)
	}
	if got := cfg.LanguageTag(9); got != "default" {
		t.Errorf("expected default for unknown language, got %q", got)
	}
}

func TestPluginSettingsOverrule(t *testing.T) {
	cfg, err := Parse([]byte(testConfig))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	results, err := cfg.PluginSettings("results")
	if err != nil {
		t.Fatalf("PluginSettings failed: %v", err)
	}
	if !results.Bool("search.query.allow_empty_query") {
		t.Error("expected per plugin override to enable empty queries")
	}
	if got := results.Int("search.target_page", 0); got != 7 {
		t.Errorf("expected sibling key to survive the merge, got %d", got)
	}
	if !results.Bool("logging.exceptions") {
		t.Error("expected shared logging settings to be kept")
	}
	if !results.Has("std_wrap") {
		t.Error("expected std_wrap from the override")
	}

	// The shared tree must not be modified by the merge.
	search, err := cfg.PluginSettings("search")
	if err != nil {
		t.Fatalf("PluginSettings failed: %v", err)
	}
	if search.Bool("search.query.allow_empty_query") {
		t.Error("override leaked into the shared plugin settings")
	}
	if search.Has("std_wrap") {
		t.Error("std_wrap leaked into the shared plugin settings")
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.StorageDir == "" {
		t.Error("expected a default storage dir")
	}
	if cfg.LanguageTag(0) != "en" {
		t.Errorf("expected default language en, got %q", cfg.LanguageTag(0))
	}
}

func TestSaveTemplateConfigParses(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := GetDefaultConfig()
	if err != nil {
		t.Fatalf("GetDefaultConfig failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "solrpi", "config.toml")
	if err := cfg.SaveTemplateConfig(path); err != nil {
		t.Fatalf("SaveTemplateConfig failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading template: %v", err)
	}
	parsed, err := Parse(data)
	if err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if parsed.StorageDir != cfg.StorageDir {
		t.Errorf("expected storage dir %q, got %q", cfg.StorageDir, parsed.StorageDir)
	}
	if len(parsed.Connections) == 0 {
		t.Error("expected sample connections")
	}
}

func TestMaintenanceDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[maintenance]
probe_interval = "30s"
statistics_retention = "720h"
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := cfg.Maintenance.ProbeInterval.Duration; got != 30*time.Second {
		t.Errorf("expected probe interval 30s, got %v", got)
	}
	if got := cfg.Maintenance.OptimizeInterval.Duration; got != DefaultOptimizeInterval {
		t.Errorf("expected default optimize interval, got %v", got)
	}
	if got := cfg.Maintenance.StatisticsRetention.Duration; got != 720*time.Hour {
		t.Errorf("expected retention 720h, got %v", got)
	}
}
