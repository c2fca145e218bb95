package llm

import (
	"fmt"
	"sync"
	"time"
)

// Constructor builds a fresh Adapter given an API key, base URL override,
// and per-request timeout. baseURL may be empty to use the vendor default.
type Constructor func(name, apiKey, baseURL string, timeout time.Duration) Adapter

// Factory is a name-keyed registry of adapter constructors. Registering a
// name lets third-party adapters be added at startup without this package
// knowing about them.
type Factory struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewFactory returns a Factory pre-registered with the two built-in vendor
// families.
func NewFactory() *Factory {
	f := &Factory{constructors: make(map[string]Constructor)}
	f.Register("openai", func(name, apiKey, baseURL string, timeout time.Duration) Adapter {
		return NewOpenAIAdapter(name, apiKey, baseURL)
	})
	f.Register("anthropic", func(name, apiKey, baseURL string, timeout time.Duration) Adapter {
		return NewAnthropicAdapter(name, apiKey, baseURL, timeout)
	})
	return f
}

// Register associates a vendor family name with a constructor, overwriting
// any existing registration.
func (f *Factory) Register(name string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[name] = ctor
}

// Get builds a fresh adapter for the named vendor family. apiKey/baseURL are
// passed through unchanged; timeout is injected from configuration.
func (f *Factory) Get(name, apiKey, baseURL string, timeout time.Duration) (Adapter, error) {
	f.mu.RLock()
	ctor, ok := f.constructors[name]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("llm: no adapter registered for provider %q", name)
	}
	return ctor(name, apiKey, baseURL, timeout), nil
}
