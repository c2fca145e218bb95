package plugin

import "sync"

// Constructor builds a fresh, uninitialized Plugin instance. Constructors
// are registered at package-init time by each concrete plugin file, giving
// this Go port a build-time equivalent of the original directory-walk
// plugin discovery.
type Constructor func() Plugin

var (
	registryMu sync.Mutex
	registry   = make(map[string]Constructor)
)

// RegisterPluginConstructor records a constructor under name, to be called
// by a concrete plugin's init(). A later registration under the same name
// wins, matching the "conflicting names: last wins" discovery rule.
func RegisterPluginConstructor(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = ctor
}

// Registered returns a snapshot of all currently registered constructors,
// keyed by plugin name.
func Registered() map[string]Constructor {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make(map[string]Constructor, len(registry))
	for k, v := range registry {
		out[k] = v
	}
	return out
}
