package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rubiojr/solrpi/pkg/config"
	"github.com/rubiojr/solrpi/pkg/plugin"
	"github.com/rubiojr/solrpi/pkg/plugins/frequent"
	"github.com/rubiojr/solrpi/pkg/plugins/results"
	"github.com/rubiojr/solrpi/pkg/plugins/searchform"
)

// pluginFactories maps the names accepted by --plugin to constructors.
var pluginFactories = map[string]func() plugin.Plugin{
	results.Key:    func() plugin.Plugin { return results.New() },
	searchform.Key: func() plugin.Plugin { return searchform.New() },
	frequent.Key:   func() plugin.Plugin { return frequent.New() },
}

func pluginNames() []string {
	names := make([]string, 0, len(pluginFactories))
	for name := range pluginFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newPlugin(name string) (plugin.Plugin, error) {
	factory, ok := pluginFactories[name]
	if !ok {
		return nil, fmt.Errorf("unknown plugin %q (available: %s)", name, strings.Join(pluginNames(), ", "))
	}
	return factory(), nil
}

// loadEnvironment reads the configuration and builds the plugin environment
// from it. The caller owns the environment and must close it.
func loadEnvironment(configPath string) (*config.Config, *plugin.Environment, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	env, err := plugin.NewEnvironment(cfg, plugin.Extensions{})
	if err != nil {
		return nil, nil, fmt.Errorf("creating environment: %w", err)
	}
	return cfg, env, nil
}
