// Package pluginmgr implements the plugin manager (C7): discovery against
// the build-time constructor registry, lazy instantiation, execution
// dispatch, and reload.
package pluginmgr

import (
	"context"
	"sync"

	"github.com/taipm/evalrouter/internal/apierrors"
	"github.com/taipm/evalrouter/internal/plugin"
)

// Manager owns two registries: the available plugin constructors
// (discovered once, at construction and again on Reload) and the loaded
// plugin instances (populated lazily by Load/Execute).
type Manager struct {
	mu        sync.RWMutex
	available map[string]plugin.Constructor
	loaded    map[string]plugin.Plugin
	nameLocks map[string]*sync.Mutex
}

// NewManager discovers the compiled-in plugin constructors and returns a
// manager with an empty loaded-instance cache.
func NewManager() *Manager {
	m := &Manager{}
	m.discover()
	return m
}

func (m *Manager) discover() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = plugin.Registered()
	m.loaded = make(map[string]plugin.Plugin)
	m.nameLocks = make(map[string]*sync.Mutex)
}

// lockFor returns the per-plugin mutex that serializes initialize and
// shutdown for a single named plugin, so a plugin is never concurrently
// being loaded and reloaded.
func (m *Manager) lockFor(name string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.nameLocks[name]
	if !ok {
		lock = &sync.Mutex{}
		m.nameLocks[name] = lock
	}
	return lock
}

// LoadPlugin returns the cached instance for name if already loaded;
// otherwise it instantiates, initializes, and caches it. A failed
// initialize is not cached, so a later call retries from scratch.
func (m *Manager) LoadPlugin(ctx context.Context, name string, config map[string]interface{}) (plugin.Plugin, error) {
	lock := m.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	m.mu.RLock()
	inst, ok := m.loaded[name]
	if ok {
		m.mu.RUnlock()
		return inst, nil
	}
	ctor, ok := m.available[name]
	m.mu.RUnlock()
	if !ok {
		return nil, apierrors.PluginNotFound(name)
	}

	inst = ctor()
	if err := inst.Initialize(ctx, config); err != nil {
		return nil, apierrors.PluginInitialization(name, "initialize failed", err)
	}

	m.mu.Lock()
	m.loaded[name] = inst
	m.mu.Unlock()

	return inst, nil
}

// ExecutePlugin ensures name is loaded, validates the request, then
// executes it. Validation failure and execution failure are reported as
// distinct error categories.
func (m *Manager) ExecutePlugin(ctx context.Context, name string, req *plugin.Request) (*plugin.Response, error) {
	inst, err := m.LoadPlugin(ctx, name, nil)
	if err != nil {
		return nil, err
	}

	if err := inst.ValidateRequest(req); err != nil {
		return nil, apierrors.PluginValidation(name, map[string]interface{}{"action": req.Action, "reason": err.Error()})
	}

	resp, err := inst.Execute(ctx, req)
	if err != nil {
		return nil, apierrors.PluginExecution(name, req.Action, err.Error(), err)
	}
	return resp, nil
}

// ReloadPlugins shuts down every loaded instance, clears both registries,
// and re-runs discovery against the same compiled-in constructor table.
func (m *Manager) ReloadPlugins(ctx context.Context) error {
	m.mu.RLock()
	snapshot := make(map[string]plugin.Plugin, len(m.loaded))
	for name, inst := range m.loaded {
		snapshot[name] = inst
	}
	m.mu.RUnlock()

	for name, inst := range snapshot {
		lock := m.lockFor(name)
		lock.Lock()
		_ = inst.Shutdown(ctx)
		lock.Unlock()
	}

	m.discover()
	return nil
}

// UnloadPlugin shuts down and evicts name from the loaded cache if present,
// leaving it in the available registry so a later call reinstantiates it.
// Unloading a name that was never loaded is a no-op.
func (m *Manager) UnloadPlugin(ctx context.Context, name string) error {
	lock := m.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	m.mu.RLock()
	inst, ok := m.loaded[name]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	err := inst.Shutdown(ctx)

	m.mu.Lock()
	delete(m.loaded, name)
	m.mu.Unlock()

	return err
}

// ShutdownAll shuts down every loaded instance and empties the loaded cache
// without re-running discovery, for a clean process exit. The available
// registry is kept, so a later LoadPlugin creates a fresh instance.
func (m *Manager) ShutdownAll(ctx context.Context) error {
	m.mu.RLock()
	snapshot := make(map[string]plugin.Plugin, len(m.loaded))
	for name, inst := range m.loaded {
		snapshot[name] = inst
	}
	m.mu.RUnlock()

	var firstErr error
	for name, inst := range snapshot {
		lock := m.lockFor(name)
		lock.Lock()
		if err := inst.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		lock.Unlock()
	}

	m.mu.Lock()
	m.loaded = make(map[string]plugin.Plugin)
	m.mu.Unlock()

	return firstErr
}

// AvailablePlugins lists every discovered plugin name, loaded or not.
func (m *Manager) AvailablePlugins() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.available))
	for name := range m.available {
		names = append(names, name)
	}
	return names
}

// LoadedPlugins lists the names currently holding a live instance.
func (m *Manager) LoadedPlugins() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.loaded))
	for name := range m.loaded {
		names = append(names, name)
	}
	return names
}

// Metadata returns the metadata for name without instantiating it, when
// possible; plugin metadata is static so a throwaway instance is cheap and
// discarded immediately.
func (m *Manager) Metadata(name string) (plugin.Metadata, bool) {
	m.mu.RLock()
	inst, loaded := m.loaded[name]
	ctor, available := m.available[name]
	m.mu.RUnlock()

	if loaded {
		return inst.Metadata(), true
	}
	if available {
		return ctor().Metadata(), true
	}
	return plugin.Metadata{}, false
}
