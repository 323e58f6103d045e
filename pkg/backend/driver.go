package backend

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rubiojr/solrpi/pkg/config"
)

// Driver opens connections of one type.
type Driver func(info config.ConnectionInfo) (Connection, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// RegisterDriver makes a driver available by connection type. Drivers
// register themselves during init().
func RegisterDriver(typ string, driver Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if driver == nil {
		panic("backend: RegisterDriver driver is nil")
	}
	if _, dup := drivers[typ]; dup {
		panic(fmt.Sprintf("backend: RegisterDriver called twice for %s", typ))
	}
	drivers[typ] = driver
}

// Drivers returns the registered connection types.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	out := make([]string, 0, len(drivers))
	for typ := range drivers {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

func lookupDriver(typ string) (Driver, bool) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[typ]
	return d, ok
}
