package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewOpenAIAdapter(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		baseURL string
	}{
		{name: "default endpoint", apiKey: "sk-test-key", baseURL: ""},
		{name: "custom baseURL", apiKey: "test-key", baseURL: "http://localhost:11434/v1"},
		{name: "empty key still constructs", apiKey: "", baseURL: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := NewOpenAIAdapter("openai", tt.apiKey, tt.baseURL)
			assert.NotNil(t, adapter)
			assert.NotNil(t, adapter.client)
			assert.Equal(t, "openai", adapter.Name())
			assert.True(t, adapter.SupportsStreaming())
			assert.True(t, adapter.SupportsFunctionCalling())
		})
	}
}

func TestOpenAIAdapterBuildParamsOmitsZeroValues(t *testing.T) {
	adapter := NewOpenAIAdapter("openai", "test-key", "")

	req := &CompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []Message{User("hi")},
	}
	params := adapter.buildParams(req)

	assert.False(t, params.Temperature.Valid())
	assert.False(t, params.MaxTokens.Valid())
	assert.False(t, params.TopP.Valid())
}

func TestOpenAIAdapterBuildParamsSetsProvidedValues(t *testing.T) {
	adapter := NewOpenAIAdapter("openai", "test-key", "")

	req := &CompletionRequest{
		Model:       "gpt-4o-mini",
		Messages:    []Message{System("be terse"), User("hi")},
		Temperature: 0.5,
		MaxTokens:   256,
		TopP:        0.9,
	}
	params := adapter.buildParams(req)

	assert.True(t, params.Temperature.Valid())
	assert.InDelta(t, 0.5, params.Temperature.Value, 0.0001)
	assert.True(t, params.MaxTokens.Valid())
	assert.Equal(t, int64(256), params.MaxTokens.Value)
	assert.Len(t, params.Messages, 2)
}
