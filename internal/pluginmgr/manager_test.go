package pluginmgr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taipm/evalrouter/internal/apierrors"
	"github.com/taipm/evalrouter/internal/plugin"
)

type fakePlugin struct {
	initCalls     int
	shutdownCalls int
	failInit      bool
	failValidate  bool
	failExecute   bool
}

func (p *fakePlugin) Initialize(ctx context.Context, config map[string]interface{}) error {
	p.initCalls++
	if p.failInit {
		return errors.New("boom")
	}
	return nil
}

func (p *fakePlugin) Metadata() plugin.Metadata { return plugin.Metadata{Name: "fake"} }

func (p *fakePlugin) ValidateRequest(req *plugin.Request) error {
	if p.failValidate {
		return errors.New("invalid")
	}
	return nil
}

func (p *fakePlugin) Execute(ctx context.Context, req *plugin.Request) (*plugin.Response, error) {
	if p.failExecute {
		return nil, errors.New("execution blew up")
	}
	return &plugin.Response{RequestID: req.RequestID, Status: plugin.StatusSuccess, Data: "ok"}, nil
}

func (p *fakePlugin) Shutdown(ctx context.Context) error {
	p.shutdownCalls++
	return nil
}

func registerFake(name string, fp *fakePlugin) {
	plugin.RegisterPluginConstructor(name, func() plugin.Plugin { return fp })
}

func TestLoadPluginCachesInstance(t *testing.T) {
	fp := &fakePlugin{}
	registerFake("fake-load-test", fp)

	m := NewManager()
	inst1, err := m.LoadPlugin(context.Background(), "fake-load-test", nil)
	require.NoError(t, err)
	inst2, err := m.LoadPlugin(context.Background(), "fake-load-test", nil)
	require.NoError(t, err)

	assert.Same(t, inst1, inst2)
	assert.Equal(t, 1, fp.initCalls)
}

func TestLoadPluginUnknownName(t *testing.T) {
	m := NewManager()
	_, err := m.LoadPlugin(context.Background(), "does-not-exist", nil)
	require.Error(t, err)

	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CategoryPluginNotFound, apiErr.Category)
}

func TestLoadPluginInitFailureNotCached(t *testing.T) {
	fp := &fakePlugin{failInit: true}
	registerFake("fake-init-fail", fp)

	m := NewManager()
	_, err := m.LoadPlugin(context.Background(), "fake-init-fail", nil)
	require.Error(t, err)

	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CategoryPluginInit, apiErr.Category)
	assert.Empty(t, m.LoadedPlugins())
}

func TestExecutePluginValidationFailure(t *testing.T) {
	fp := &fakePlugin{failValidate: true}
	registerFake("fake-validate-fail", fp)

	m := NewManager()
	_, err := m.ExecutePlugin(context.Background(), "fake-validate-fail", &plugin.Request{Action: "go"})
	require.Error(t, err)

	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CategoryPluginValidation, apiErr.Category)
}

func TestExecutePluginExecutionFailure(t *testing.T) {
	fp := &fakePlugin{failExecute: true}
	registerFake("fake-execute-fail", fp)

	m := NewManager()
	_, err := m.ExecutePlugin(context.Background(), "fake-execute-fail", &plugin.Request{Action: "go"})
	require.Error(t, err)

	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CategoryPluginExecution, apiErr.Category)
}

func TestExecutePluginSuccess(t *testing.T) {
	fp := &fakePlugin{}
	registerFake("fake-execute-ok", fp)

	m := NewManager()
	resp, err := m.ExecutePlugin(context.Background(), "fake-execute-ok", &plugin.Request{RequestID: "r1", Action: "go"})
	require.NoError(t, err)
	assert.Equal(t, plugin.StatusSuccess, resp.Status)
	assert.Equal(t, "ok", resp.Data)
}

func TestReloadPluginsShutsDownAndClearsCache(t *testing.T) {
	fp := &fakePlugin{}
	registerFake("fake-reload-test", fp)

	m := NewManager()
	_, err := m.LoadPlugin(context.Background(), "fake-reload-test", nil)
	require.NoError(t, err)
	assert.Contains(t, m.LoadedPlugins(), "fake-reload-test")

	require.NoError(t, m.ReloadPlugins(context.Background()))
	assert.Equal(t, 1, fp.shutdownCalls)
	assert.Empty(t, m.LoadedPlugins())
	assert.Contains(t, m.AvailablePlugins(), "fake-reload-test")

	inst, err := m.LoadPlugin(context.Background(), "fake-reload-test", nil)
	require.NoError(t, err)
	assert.Same(t, fp, inst)
	assert.Equal(t, 2, fp.initCalls)
}

func TestUnloadPluginShutsDownAndEvictsOnlyOne(t *testing.T) {
	fpA := &fakePlugin{}
	fpB := &fakePlugin{}
	registerFake("fake-unload-a", fpA)
	registerFake("fake-unload-b", fpB)

	m := NewManager()
	_, err := m.LoadPlugin(context.Background(), "fake-unload-a", nil)
	require.NoError(t, err)
	_, err = m.LoadPlugin(context.Background(), "fake-unload-b", nil)
	require.NoError(t, err)

	require.NoError(t, m.UnloadPlugin(context.Background(), "fake-unload-a"))
	assert.Equal(t, 1, fpA.shutdownCalls)
	assert.NotContains(t, m.LoadedPlugins(), "fake-unload-a")
	assert.Contains(t, m.LoadedPlugins(), "fake-unload-b")
	assert.Contains(t, m.AvailablePlugins(), "fake-unload-a")

	inst, err := m.LoadPlugin(context.Background(), "fake-unload-a", nil)
	require.NoError(t, err)
	assert.Same(t, fpA, inst)
	assert.Equal(t, 2, fpA.initCalls)
}

func TestUnloadPluginNeverLoadedIsNoop(t *testing.T) {
	m := NewManager()
	assert.NoError(t, m.UnloadPlugin(context.Background(), "never-loaded-plugin"))
}

func TestShutdownAllShutsDownEveryLoadedInstance(t *testing.T) {
	fpA := &fakePlugin{}
	fpB := &fakePlugin{}
	registerFake("fake-shutdown-all-a", fpA)
	registerFake("fake-shutdown-all-b", fpB)

	m := NewManager()
	_, err := m.LoadPlugin(context.Background(), "fake-shutdown-all-a", nil)
	require.NoError(t, err)
	_, err = m.LoadPlugin(context.Background(), "fake-shutdown-all-b", nil)
	require.NoError(t, err)

	require.NoError(t, m.ShutdownAll(context.Background()))
	assert.Equal(t, 1, fpA.shutdownCalls)
	assert.Equal(t, 1, fpB.shutdownCalls)
	assert.Empty(t, m.LoadedPlugins())
}
