package plugin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPlugin struct{}

func (stubPlugin) Initialize(ctx context.Context, config map[string]interface{}) error { return nil }
func (stubPlugin) Metadata() Metadata                                                  { return Metadata{Name: "stub"} }
func (stubPlugin) ValidateRequest(req *Request) error                                  { return nil }
func (stubPlugin) Execute(ctx context.Context, req *Request) (*Response, error) {
	return &Response{Status: StatusSuccess}, nil
}
func (stubPlugin) Shutdown(ctx context.Context) error { return nil }

func TestRegisterAndSnapshot(t *testing.T) {
	RegisterPluginConstructor("stub-registry-test", func() Plugin { return stubPlugin{} })

	snapshot := Registered()
	ctor, ok := snapshot["stub-registry-test"]
	require.True(t, ok)
	assert.Equal(t, "stub", ctor().Metadata().Name)
}

type namedStub struct {
	stubPlugin
	name string
}

func (n namedStub) Metadata() Metadata { return Metadata{Name: n.name} }

func TestLastRegistrationWins(t *testing.T) {
	RegisterPluginConstructor("dup-test", func() Plugin { return namedStub{name: "first"} })
	RegisterPluginConstructor("dup-test", func() Plugin { return namedStub{name: "second"} })

	snapshot := Registered()
	assert.Len(t, snapshot, len(snapshot))
	ctor, ok := snapshot["dup-test"]
	require.True(t, ok)
	assert.Equal(t, "second", ctor().Metadata().Name)
}
