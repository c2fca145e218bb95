package plugins

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taipm/evalrouter/internal/plugin"
)

func TestEchoPluginBasic(t *testing.T) {
	p := NewEchoPlugin()
	require.NoError(t, p.Initialize(context.Background(), nil))

	req := &plugin.Request{RequestID: "r1", Parameters: map[string]interface{}{"message": "hi"}}
	require.NoError(t, p.ValidateRequest(req))

	resp, err := p.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, plugin.StatusSuccess, resp.Status)
	assert.Equal(t, map[string]interface{}{
		"original": "hi",
		"echoed":   "hi",
		"transformations_applied": map[string]interface{}{
			"uppercase": false,
			"repeat":    1,
			"prefix":    false,
			"suffix":    false,
		},
	}, resp.Data)
}

func TestEchoPluginTransformsAndRepeats(t *testing.T) {
	p := NewEchoPlugin()
	req := &plugin.Request{
		RequestID: "r2",
		Parameters: map[string]interface{}{
			"message":   "hi",
			"uppercase": true,
			"prefix":    ">>",
			"suffix":    "!!",
			"repeat":    3,
		},
	}

	resp, err := p.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"original": "hi",
		"echoed":   ">>HI!! >>HI!! >>HI!!",
		"transformations_applied": map[string]interface{}{
			"uppercase": true,
			"repeat":    3,
			"prefix":    true,
			"suffix":    true,
		},
	}, resp.Data)
}

func TestEchoPluginSpecEnvelope(t *testing.T) {
	p := NewEchoPlugin()
	req := &plugin.Request{
		Action: "echo",
		Parameters: map[string]interface{}{
			"message":   "hi",
			"uppercase": true,
			"repeat":    3,
		},
	}

	resp, err := p.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"original": "hi",
		"echoed":   "HI HI HI",
		"transformations_applied": map[string]interface{}{
			"uppercase": true,
			"repeat":    3,
			"prefix":    false,
			"suffix":    false,
		},
	}, resp.Data)
}

func TestEchoPluginValidateRequestMissingMessage(t *testing.T) {
	p := NewEchoPlugin()
	req := &plugin.Request{RequestID: "r3", Parameters: map[string]interface{}{}}
	assert.Error(t, p.ValidateRequest(req))
}
