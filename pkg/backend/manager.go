package backend

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rubiojr/solrpi/pkg/config"
	"github.com/rubiojr/solrpi/pkg/errors"
	"github.com/rubiojr/solrpi/pkg/log"
	"github.com/rubiojr/solrpi/pkg/metrics"
)

// Manager resolves connection keys to configured endpoints and caches open
// connections. A connection handed out by Connect stays open until its
// release func is called, even when it is evicted from the cache or the
// configuration is updated in the meantime.
type Manager struct {
	mu          sync.RWMutex
	connections []config.ConnectionInfo
	cache       *lru.Cache[ConnectionKey, *pooled]
	logger      *log.Logger

	// refMu guards the reference counts of every pooled connection.
	refMu sync.Mutex
}

// pooled is a cached connection with the number of outstanding leases.
type pooled struct {
	conn    Connection
	refs    int
	evicted bool
}

// NewManager returns a manager over the configured connections caching at
// most cacheSize open connections.
func NewManager(connections []config.ConnectionInfo, cacheSize int) (*Manager, error) {
	if cacheSize <= 0 {
		cacheSize = config.DefaultCacheSize
	}

	m := &Manager{
		connections: append([]config.ConnectionInfo(nil), connections...),
		logger:      log.ForService("backend"),
	}

	cache, err := lru.NewWithEvict[ConnectionKey, *pooled](cacheSize, m.evict)
	if err != nil {
		return nil, fmt.Errorf("creating connection cache: %w", err)
	}
	m.cache = cache
	return m, nil
}

// evict runs when p leaves the cache. It is closed now when unused,
// otherwise by the last release.
func (m *Manager) evict(key ConnectionKey, p *pooled) {
	m.refMu.Lock()
	p.evicted = true
	idle := p.refs == 0
	m.refMu.Unlock()

	if idle {
		m.close(p)
	}
}

func (m *Manager) close(p *pooled) {
	if err := p.conn.Close(); err != nil {
		m.logger.Warnf("Closing connection %s: %v", p.conn.Endpoint(), err)
	}
}

// lease takes a reference on p and returns the func giving it back.
// Callers hold m.refMu.
func (m *Manager) lease(p *pooled) func() {
	p.refs++
	var once sync.Once
	return func() {
		once.Do(func() {
			m.refMu.Lock()
			p.refs--
			closeNow := p.evicted && p.refs == 0
			m.refMu.Unlock()

			if closeNow {
				m.close(p)
			}
		})
	}
}

// cached returns a lease on the cached connection for key.
func (m *Manager) cached(key ConnectionKey) (Connection, func(), bool) {
	m.refMu.Lock()
	defer m.refMu.Unlock()

	p, ok := m.cache.Get(key)
	if !ok || p.evicted {
		return nil, nil, false
	}
	return p.conn, m.lease(p), true
}

// Connect returns the connection for key, opening it when not cached. The
// caller must call release once it no longer uses the connection; release
// may be called more than once.
func (m *Manager) Connect(ctx context.Context, key ConnectionKey) (conn Connection, release func(), err error) {
	if conn, release, ok := m.cached(key); ok {
		return conn, release, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if conn, release, ok := m.cached(key); ok {
		return conn, release, nil
	}

	info, ok := m.resolve(key)
	if !ok {
		return nil, nil, errors.Connection(errors.CodeNoConnection,
			fmt.Sprintf("no connection configured for page %d, language %d, mount point %q", key.PageID, key.LanguageID, key.MountPoint), nil)
	}

	driver, ok := lookupDriver(info.Type)
	if !ok {
		return nil, nil, errors.Connection(errors.CodeConnectionConstruction,
			fmt.Sprintf("unknown connection type %q", info.Type), nil)
	}

	conn, err = driver(info)
	if err != nil {
		return nil, nil, errors.Connection(errors.CodeConnectionConstruction,
			fmt.Sprintf("opening %s connection for %s", info.Type, key), err)
	}

	p := &pooled{conn: conn}
	m.refMu.Lock()
	release = m.lease(p)
	m.refMu.Unlock()

	// Add may evict another entry; evict takes refMu itself.
	m.cache.Add(key, p)
	metrics.CachedConnections.Set(float64(m.cache.Len()))
	m.logger.Debugf("Opened %s connection %s for %s", info.Type, conn.Endpoint(), key)
	return conn, release, nil
}

// Resolve returns the connection settings serving key.
func (m *Manager) Resolve(key ConnectionKey) (config.ConnectionInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resolve(key)
}

// resolve picks the most specific match: exact page, language and mount
// point first, then any page (page_id 0) with the same language and mount
// point, then any page with the same language. Callers hold m.mu.
func (m *Manager) resolve(key ConnectionKey) (config.ConnectionInfo, bool) {
	matchers := []func(config.ConnectionInfo) bool{
		func(c config.ConnectionInfo) bool {
			return c.PageID == key.PageID && c.LanguageID == key.LanguageID && c.MountPoint == key.MountPoint
		},
		func(c config.ConnectionInfo) bool {
			return c.PageID == 0 && c.LanguageID == key.LanguageID && c.MountPoint == key.MountPoint
		},
		func(c config.ConnectionInfo) bool {
			return c.PageID == 0 && c.LanguageID == key.LanguageID
		},
	}
	for _, match := range matchers {
		for _, c := range m.connections {
			if match(c) {
				return c, true
			}
		}
	}
	return config.ConnectionInfo{}, false
}

// Connections returns the configured connections.
func (m *Manager) Connections() []config.ConnectionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]config.ConnectionInfo(nil), m.connections...)
}

// Update replaces the configured connections and drops every cached
// connection. Leased connections are closed on their last release.
func (m *Manager) Update(connections []config.ConnectionInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections = append([]config.ConnectionInfo(nil), connections...)
	m.cache.Purge()
	metrics.CachedConnections.Set(0)
}

// Len returns the number of cached connections.
func (m *Manager) Len() int {
	return m.cache.Len()
}

// Close drops every cached connection. Leased connections are closed on
// their last release.
func (m *Manager) Close() {
	m.cache.Purge()
	metrics.CachedConnections.Set(0)
}
