// Package plugins holds the concrete plugin implementations (C6): echo,
// calculator, profile-fetch, and resume-parse.
package plugins

import (
	"context"
	"strconv"
	"strings"

	"github.com/taipm/evalrouter/internal/plugin"
)

func init() {
	plugin.RegisterPluginConstructor("echo", func() plugin.Plugin { return NewEchoPlugin() })
}

// EchoPlugin transforms its "message" input by optional uppercase, prefix,
// suffix, and repeat count, joined with spaces. It has no external
// dependencies and exists as a router smoke test.
type EchoPlugin struct {
	initialized bool
}

func NewEchoPlugin() *EchoPlugin { return &EchoPlugin{} }

func (p *EchoPlugin) Initialize(ctx context.Context, config map[string]interface{}) error {
	p.initialized = true
	return nil
}

func (p *EchoPlugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:         "echo",
		Version:      "1.0.0",
		Description:  "Echoes a message back, with optional transformations",
		Author:       "core",
		Capabilities: []string{"echo", "smoke-test"},
		RequiredParameters: map[string]string{
			"message": "text to echo back",
		},
		OptionalParameters: map[string]string{
			"uppercase": "if true, uppercase the message before repeating",
			"prefix":    "text prepended to each repetition",
			"suffix":    "text appended to each repetition",
			"repeat":    "number of times to repeat the message (default 1)",
		},
		Examples: []string{`{"message": "hello"}`, `{"message": "hi", "repeat": 3, "uppercase": true}`},
	}
}

func (p *EchoPlugin) ValidateRequest(req *plugin.Request) error {
	return plugin.ValidateRequired(req, p.Metadata().RequiredParameters)
}

func (p *EchoPlugin) Execute(ctx context.Context, req *plugin.Request) (*plugin.Response, error) {
	original, _ := req.Parameters["message"].(string)
	result := original

	uppercase, _ := req.Parameters["uppercase"].(bool)
	if uppercase {
		result = strings.ToUpper(result)
	}

	prefix, _ := req.Parameters["prefix"].(string)
	if prefix != "" {
		result = prefix + result
	}

	suffix, _ := req.Parameters["suffix"].(string)
	if suffix != "" {
		result = result + suffix
	}

	repeat := 1
	switch v := req.Parameters["repeat"].(type) {
	case int:
		repeat = v
	case float64:
		repeat = int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			repeat = n
		}
	}
	if repeat > 1 {
		parts := make([]string, repeat)
		for i := range parts {
			parts[i] = result
		}
		result = strings.Join(parts, " ")
	}

	return &plugin.Response{
		RequestID: req.RequestID,
		Timestamp: req.Timestamp,
		Status:    plugin.StatusSuccess,
		Data: map[string]interface{}{
			"original": original,
			"echoed":   result,
			"transformations_applied": map[string]interface{}{
				"uppercase": uppercase,
				"repeat":    repeat,
				"prefix":    prefix != "",
				"suffix":    suffix != "",
			},
		},
	}, nil
}

func (p *EchoPlugin) Shutdown(ctx context.Context) error { return nil }
