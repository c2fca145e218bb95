package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taipm/evalrouter/internal/config"
	"github.com/taipm/evalrouter/internal/evaluator"
	"github.com/taipm/evalrouter/internal/llm"
	"github.com/taipm/evalrouter/internal/plugin"
	"github.com/taipm/evalrouter/internal/pluginmgr"
	"github.com/taipm/evalrouter/internal/prompt"
	"github.com/taipm/evalrouter/internal/router"
)

type scriptedAdapter struct {
	content string
}

func (a *scriptedAdapter) Name() string                  { return "scripted" }
func (a *scriptedAdapter) SupportsStreaming() bool       { return false }
func (a *scriptedAdapter) SupportsFunctionCalling() bool { return false }
func (a *scriptedAdapter) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Content: a.content, Model: req.Model}, nil
}
func (a *scriptedAdapter) StreamComplete(ctx context.Context, req *llm.CompletionRequest, onChunk func(string)) (*llm.CompletionResponse, error) {
	return a.Complete(ctx, req)
}

type fakeEchoPlugin struct{}

func (fakeEchoPlugin) Initialize(ctx context.Context, cfg map[string]interface{}) error { return nil }
func (fakeEchoPlugin) Metadata() plugin.Metadata {
	return plugin.Metadata{Name: "http_test_echo", Description: "echoes for http tests", Capabilities: []string{"echo"}}
}
func (fakeEchoPlugin) ValidateRequest(req *plugin.Request) error { return nil }
func (fakeEchoPlugin) Execute(ctx context.Context, req *plugin.Request) (*plugin.Response, error) {
	return &plugin.Response{RequestID: req.RequestID, Status: plugin.StatusSuccess, Data: req.Parameters["message"]}, nil
}
func (fakeEchoPlugin) Shutdown(ctx context.Context) error { return nil }

func init() {
	plugin.RegisterPluginConstructor("http_test_echo", func() plugin.Plugin { return fakeEchoPlugin{} })
}

func newTestServer(t *testing.T, routingResponse string) (*Server, config.Config) {
	t.Helper()

	settings := config.Config{
		LLM:  config.LLM{Timeout: 5 * time.Second, MaxTokens: 4096},
		Auth: config.Auth{SecretKey: "test-secret", AccessTokenExpires: time.Hour, Algorithm: "HS256"},
	}

	reg, err := prompt.NewRegistry("../prompt/templates")
	require.NoError(t, err)

	llmf := llm.NewFactory()
	llmf.Register("mock", func(name, apiKey, baseURL string, timeout time.Duration) llm.Adapter {
		return &scriptedAdapter{content: "GENERAL_PROMISE_RATING = 5"}
	})

	plugins := pluginmgr.NewManager()
	eval := evaluator.New(plugins, reg, llmf, settings)
	rt := router.New(plugins, &scriptedAdapter{content: routingResponse}, "mock-model")

	return New(plugins, llmf, eval, rt, settings), settings
}

func issueToken(t *testing.T, s *Server, scope string) string {
	t.Helper()
	return s.signToken("tester", scope, time.Now().Add(time.Hour))
}

func doRequest(h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	s, _ := newTestServer(t, "{}")
	rec := doRequest(s.Handler(), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRouteRejectsMissingToken(t *testing.T) {
	s, _ := newTestServer(t, "{}")
	rec := doRequest(s.Handler(), http.MethodPost, "/api/v1/query", "", map[string]string{"query": "hi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthTokenIssuesBearerToken(t *testing.T) {
	s, _ := newTestServer(t, "{}")
	rec := doRequest(s.Handler(), http.MethodPost, "/api/v1/auth/token", "", map[string]string{"username": "tester", "password": "pw"})
	require.Equal(t, http.StatusOK, rec.Code)

	var body tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.AccessToken)
	assert.Equal(t, "bearer", body.TokenType)
}

func TestAuthTokenRejectsEmptyCredentials(t *testing.T) {
	s, _ := newTestServer(t, "{}")
	rec := doRequest(s.Handler(), http.MethodPost, "/api/v1/auth/token", "", map[string]string{"username": "", "password": ""})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEvaluateRouteEndToEnd(t *testing.T) {
	s, _ := newTestServer(t, "{}")
	token := issueToken(t, s, "user")

	rec := doRequest(s.Handler(), http.MethodPost, "/api/v1/llm/evaluate", token, map[string]interface{}{
		"provider":       "mock",
		"model":          "mock-model",
		"applicant_text": "a strong candidate",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body evaluateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Score)
	assert.Equal(t, 5, *body.Score)
}

func TestEvaluateRouteRejectsEmptyApplicantText(t *testing.T) {
	s, _ := newTestServer(t, "{}")
	token := issueToken(t, s, "user")

	rec := doRequest(s.Handler(), http.MethodPost, "/api/v1/llm/evaluate", token, map[string]interface{}{"provider": "mock"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryAnalyzeRouteReturnsRoutingDecision(t *testing.T) {
	routing := `{"plugin": "http_test_echo", "confidence": 0.8, "reasoning": "matches echo", "parameters": {"message": "hi"}}`
	s, _ := newTestServer(t, routing)
	token := issueToken(t, s, "user")

	rec := doRequest(s.Handler(), http.MethodPost, "/api/v1/query/analyze", token, map[string]string{"query": "echo hi"})
	require.Equal(t, http.StatusOK, rec.Code)

	var decision router.RoutingDecision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.Equal(t, "http_test_echo", decision.PluginName)
}

func TestListPluginsIncludesRegisteredPlugin(t *testing.T) {
	s, _ := newTestServer(t, "{}")
	token := issueToken(t, s, "user")

	rec := doRequest(s.Handler(), http.MethodGet, "/api/v1/plugins", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summaries []pluginSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	found := false
	for _, p := range summaries {
		if p.Name == "http_test_echo" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestPluginDetailUnknownNameIs404(t *testing.T) {
	s, _ := newTestServer(t, "{}")
	token := issueToken(t, s, "user")

	rec := doRequest(s.Handler(), http.MethodGet, "/api/v1/plugins/does-not-exist", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPluginExecuteRunsThroughManager(t *testing.T) {
	s, _ := newTestServer(t, "{}")
	token := issueToken(t, s, "user")

	rec := doRequest(s.Handler(), http.MethodPost, "/api/v1/plugins/http_test_echo/execute", token, map[string]interface{}{
		"action":     "echo",
		"parameters": map[string]interface{}{"message": "hello"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp plugin.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, plugin.StatusSuccess, resp.Status)
	assert.Equal(t, "hello", resp.Data)
}

func TestAdminRouteRejectsNonAdminScope(t *testing.T) {
	s, _ := newTestServer(t, "{}")
	token := issueToken(t, s, "user")

	rec := doRequest(s.Handler(), http.MethodPost, "/api/v1/admin/plugins/reload", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminRouteAcceptsAdminScope(t *testing.T) {
	s, _ := newTestServer(t, "{}")
	token := issueToken(t, s, adminScope)

	rec := doRequest(s.Handler(), http.MethodPost, "/api/v1/admin/plugins/reload", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminUnloadPluginRoute(t *testing.T) {
	s, _ := newTestServer(t, "{}")
	token := issueToken(t, s, adminScope)

	rec := doRequest(s.Handler(), http.MethodDelete, "/api/v1/admin/plugins/http_test_echo", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTokenRejectsTamperedSignature(t *testing.T) {
	s, _ := newTestServer(t, "{}")
	token := issueToken(t, s, "user") + "tampered"

	rec := doRequest(s.Handler(), http.MethodPost, "/api/v1/query", token, map[string]string{"query": "hi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
