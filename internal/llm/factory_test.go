package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryBuildsRegisteredAdapters(t *testing.T) {
	f := NewFactory()

	openaiAdapter, err := f.Get("openai", "key", "", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "openai", openaiAdapter.Name())

	anthropicAdapter, err := f.Get("anthropic", "key", "", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", anthropicAdapter.Name())
}

func TestFactoryUnknownProvider(t *testing.T) {
	f := NewFactory()
	_, err := f.Get("unknown-vendor", "key", "", 0)
	require.Error(t, err)
}

func TestFactoryRegisterThirdPartyAdapter(t *testing.T) {
	f := NewFactory()
	f.Register("fake", func(name, apiKey, baseURL string, timeout time.Duration) Adapter {
		return &OpenAIAdapter{name: name}
	})

	adapter, err := f.Get("fake", "key", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "fake", adapter.Name())
}
