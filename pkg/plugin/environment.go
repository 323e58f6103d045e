package plugin

import (
	"fmt"

	"github.com/rubiojr/solrpi/pkg/backend"
	"github.com/rubiojr/solrpi/pkg/config"
	"github.com/rubiojr/solrpi/pkg/i18n"
	"github.com/rubiojr/solrpi/pkg/storage"
)

// NewEnvironment builds the shared collaborators from cfg: the backend
// connection manager, the label catalog with the configured label file and
// local_lang overlays, and the storage manager.
func NewEnvironment(cfg *config.Config, ext Extensions) (*Environment, error) {
	labels, err := loadLabels(cfg)
	if err != nil {
		return nil, err
	}

	backends, err := backend.NewManager(cfg.Connections, cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating backend manager: %w", err)
	}

	return &Environment{
		Config:     cfg,
		Backends:   backends,
		Labels:     labels,
		Storage:    storage.NewManager(cfg.StorageDir),
		Extensions: ext,
	}, nil
}

// Reload swaps the configuration of a running environment. Cached backend
// connections are dropped and the label catalog is rebuilt. Connections held
// by running requests stay open until those requests finish.
func (e *Environment) Reload(cfg *config.Config) (*Environment, error) {
	labels, err := loadLabels(cfg)
	if err != nil {
		return nil, err
	}

	e.Backends.Update(cfg.Connections)

	next := &Environment{
		Config:     cfg,
		Backends:   e.Backends,
		Labels:     labels,
		Storage:    e.Storage,
		Extensions: e.Extensions,
	}
	return next, nil
}

// Close releases backend connections and open stores.
func (e *Environment) Close() error {
	e.Backends.Close()
	return e.Storage.Close()
}

func loadLabels(cfg *config.Config) (*i18n.Catalog, error) {
	labels, err := i18n.New()
	if err != nil {
		return nil, err
	}
	if cfg.LanguageFile != "" {
		if err := labels.LoadFile(cfg.LanguageFile); err != nil {
			return nil, fmt.Errorf("loading language file: %w", err)
		}
	}
	labels.Overlay(cfg.LocalLang)
	return labels, nil
}
