package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

const (
	DefaultListen    = "localhost:8080"
	DefaultCacheSize = 64
	DefaultTimeout   = 5 * time.Second

	DefaultProbeInterval    = time.Minute
	DefaultOptimizeInterval = time.Hour
)

type Config struct {
	StorageDir  string            `toml:"storage_dir"`
	Listen      string            `toml:"listen"`
	CacheSize   int               `toml:"connection_cache_size"`
	Languages   map[string]string `toml:"languages"`
	Connections []ConnectionInfo  `toml:"connections"`

	// Plugin is the settings tree shared by every plugin.
	Plugin map[string]any `toml:"plugin"`
	// Plugins holds per plugin overrides keyed by plugin key. They overrule
	// Plugin recursively.
	Plugins map[string]map[string]any `toml:"plugins"`

	// LanguageFile points to an optional TOML label catalog merged on top of
	// the built-in labels.
	LanguageFile string `toml:"language_file,omitempty"`
	// LocalLang overrides individual labels per language tag.
	LocalLang map[string]map[string]string `toml:"local_lang"`

	Maintenance Maintenance `toml:"maintenance"`
}

// Maintenance configures the background jobs of the serve command.
type Maintenance struct {
	// ProbeInterval is how often every connection is pinged. Zero uses the
	// default, a negative value disables probing.
	ProbeInterval Duration `toml:"probe_interval"`
	// OptimizeInterval is how often the statistics database is pruned and
	// checkpointed.
	OptimizeInterval Duration `toml:"optimize_interval"`
	// StatisticsRetention drops statistics older than this. Zero keeps
	// everything.
	StatisticsRetention Duration `toml:"statistics_retention"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// ConnectionInfo describes one search backend endpoint and the page, language
// and mount point it serves. A PageID of 0 matches any page.
type ConnectionInfo struct {
	PageID     int    `toml:"page_id"`
	LanguageID int    `toml:"language_id"`
	MountPoint string `toml:"mount_point,omitempty"`
	Type       string `toml:"type"`
	URL        string `toml:"url,omitempty"`
	// Timeout bounds every request to the endpoint. Defaults to 5 seconds.
	Timeout *Duration `toml:"timeout,omitempty"`
	// Documents is a JSON file used to seed the in-memory backend.
	Documents string `toml:"documents,omitempty"`
}

// RequestTimeout returns the configured timeout or the default.
func (c ConnectionInfo) RequestTimeout() time.Duration {
	if c.Timeout == nil || c.Timeout.Duration <= 0 {
		return DefaultTimeout
	}
	return c.Timeout.Duration
}

func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	cfg := &Config{StorageDir: storageDir}
	cfg.applyDefaults()
	return cfg, nil
}

func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes a TOML document and fills in defaults. The storage directory
// is left empty when not configured; statistics are disabled in that case.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	config.applyDefaults()

	for i, conn := range config.Connections {
		if conn.Type == "" {
			config.Connections[i].Type = "solr"
		}
		if config.Connections[i].Type == "solr" && conn.URL == "" {
			return nil, fmt.Errorf("connection %d: url is required for solr connections", i)
		}
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.Languages == nil {
		c.Languages = map[string]string{"0": "en"}
	}
	if c.Plugin == nil {
		c.Plugin = make(map[string]any)
	}
	if c.Plugins == nil {
		c.Plugins = make(map[string]map[string]any)
	}
	if c.LocalLang == nil {
		c.LocalLang = make(map[string]map[string]string)
	}
	if c.Maintenance.ProbeInterval.Duration == 0 {
		c.Maintenance.ProbeInterval.Duration = DefaultProbeInterval
	}
	if c.Maintenance.OptimizeInterval.Duration == 0 {
		c.Maintenance.OptimizeInterval.Duration = DefaultOptimizeInterval
	}
}

// LanguageTag returns the BCP 47 tag configured for a language id, or
// "default" when none is configured.
func (c *Config) LanguageTag(languageID int) string {
	if tag, ok := c.Languages[strconv.Itoa(languageID)]; ok && tag != "" {
		return tag
	}
	return "default"
}

// PluginSettings returns the plugin settings tree for key: the shared
// [plugin] table overruled by [plugins.<key>].
func (c *Config) PluginSettings(key string) (Settings, error) {
	base := Settings(c.Plugin)
	override, ok := c.Plugins[key]
	if !ok {
		return base.Clone(), nil
	}
	return base.Overrule(override)
}

func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	template, err := c.generateConfigTemplate()
	if err != nil {
		return fmt.Errorf("generating config template: %w", err)
	}
	return os.WriteFile(configPath, []byte(template), 0644)
}

func (c *Config) generateConfigTemplate() (string, error) {
	storageDir := c.StorageDir
	if storageDir == "" {
		var err error
		storageDir, err = GetDefaultStorageDir()
		if err != nil {
			return "", fmt.Errorf("getting default storage directory: %w", err)
		}
	}

	// Replace the placeholder storage_dir with the actual path
	template := strings.Replace(configTemplate, "/home/user/.local/share/solrpi", storageDir, 1)
	return template, nil
}

// GetDefaultStorageDir returns the default storage directory for statistics
func GetDefaultStorageDir() (string, error) {
	// Use XDG_DATA_HOME if set, otherwise use ~/.local/share
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "solrpi")

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", dir, err)
	}

	return dir, nil
}

// GetConfigDir returns the configuration directory for solrpi
func GetConfigDir() (string, error) {
	// Use XDG_CONFIG_HOME if set, otherwise use ~/.config
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "solrpi")

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	return dir, nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
