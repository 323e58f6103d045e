package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// StatisticsFile is the database file name inside the storage directory.
const StatisticsFile = "statistics.db"

// Manager lazily opens the stores living in a storage directory and keeps
// them open until Close.
type Manager struct {
	storageDir string
	statistics *StatisticsStore
	mu         sync.RWMutex
}

func NewManager(storageDir string) *Manager {
	return &Manager{storageDir: storageDir}
}

// Enabled reports whether a storage directory is configured.
func (m *Manager) Enabled() bool {
	return m != nil && m.storageDir != ""
}

// Statistics returns the statistics store, opening it on first use.
func (m *Manager) Statistics() (*StatisticsStore, error) {
	if !m.Enabled() {
		return nil, fmt.Errorf("no storage directory configured")
	}

	m.mu.RLock()
	store := m.statistics
	m.mu.RUnlock()

	if store != nil {
		return store, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.statistics != nil {
		return m.statistics, nil
	}

	if err := os.MkdirAll(m.storageDir, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	store, err := NewStatisticsStore(filepath.Join(m.storageDir, StatisticsFile))
	if err != nil {
		return nil, fmt.Errorf("opening statistics: %w", err)
	}
	m.statistics = store
	return store, nil
}

func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.statistics == nil {
		return nil
	}
	if err := m.statistics.WALCheckpoint(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: WAL checkpoint failed: %v\n", err)
	}
	err := m.statistics.Close()
	m.statistics = nil
	return err
}
