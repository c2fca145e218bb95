package evaluator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taipm/evalrouter/internal/config"
	"github.com/taipm/evalrouter/internal/llm"
	"github.com/taipm/evalrouter/internal/pluginmgr"
	"github.com/taipm/evalrouter/internal/prompt"
)

// mockAdapter returns a fixed completion regardless of the request, the
// shape the mock-provider end-to-end scenario needs.
type mockAdapter struct {
	content string
}

func (m *mockAdapter) Name() string                  { return "mock" }
func (m *mockAdapter) SupportsStreaming() bool       { return false }
func (m *mockAdapter) SupportsFunctionCalling() bool { return false }
func (m *mockAdapter) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Content: m.content, Model: req.Model}, nil
}
func (m *mockAdapter) StreamComplete(ctx context.Context, req *llm.CompletionRequest, onChunk func(string)) (*llm.CompletionResponse, error) {
	return m.Complete(ctx, req)
}

func newTestEvaluator(t *testing.T, content string) *Evaluator {
	t.Helper()

	reg, err := prompt.NewRegistry("../prompt/templates")
	require.NoError(t, err)

	llmf := llm.NewFactory()
	llmf.Register("mock", func(name, apiKey, baseURL string, timeout time.Duration) llm.Adapter {
		return &mockAdapter{content: content}
	})

	return New(pluginmgr.NewManager(), reg, llmf, config.Config{LLM: config.LLM{Timeout: 5 * time.Second, MaxTokens: 4096}})
}

func TestEvaluateEndToEndMultiAxis(t *testing.T) {
	e := newTestEvaluator(t, "Analysis...\nGENERAL_PROMISE_RATING = 5\nML_SKILLS_RATING = 3")

	resp, err := e.Evaluate(context.Background(), Request{
		Provider:      "mock",
		Model:         "mock-model",
		ApplicantText: "An applicant with a strong background.",
		UseMultiAxis:  true,
	})
	require.NoError(t, err)

	require.NotNil(t, resp.Score)
	assert.Equal(t, 5, *resp.Score)
	require.Len(t, resp.Scores, 7)
	assert.Equal(t, "General Promise", resp.Scores[0].AxisName)
	require.NotNil(t, resp.Scores[0].Value)
	assert.Equal(t, 5, *resp.Scores[0].Value)
	assert.Equal(t, "Machine Learning Skills", resp.Scores[1].AxisName)
	require.NotNil(t, resp.Scores[1].Value)
	assert.Equal(t, 3, *resp.Scores[1].Value)
	assert.Contains(t, resp.Result, "[MULTI_AXIS_SCORES]")
}

func TestEvaluateSingleAxisFallback(t *testing.T) {
	e := newTestEvaluator(t, "GENERAL_PROMISE_RATING = 4")

	resp, err := e.Evaluate(context.Background(), Request{
		Provider:      "mock",
		Model:         "mock-model",
		ApplicantText: "applicant text",
		UseMultiAxis:  false,
	})
	require.NoError(t, err)
	require.Len(t, resp.Scores, 1)
	assert.Equal(t, "General Promise", resp.Scores[0].AxisName)
	require.NotNil(t, resp.Score)
	assert.Equal(t, 4, *resp.Score)
}

func TestEnrichmentFailureDoesNotFailEvaluation(t *testing.T) {
	e := newTestEvaluator(t, "GENERAL_PROMISE_RATING = 2")

	resp, err := e.Evaluate(context.Background(), Request{
		Provider:            "mock",
		Model:               "mock-model",
		ApplicantText:       "applicant text",
		UseMultiAxis:        false,
		UsePluginEnrichment: true,
		SourceURL:           "://not-a-valid-url",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Result, "resume parse failed")
}

func TestIsProfileSourceURL(t *testing.T) {
	assert.True(t, isProfileSourceURL("https://www.linkedin.com/in/someone"))
	assert.False(t, isProfileSourceURL("https://example.com/resume.pdf"))
}

func TestSelectProviderAnthropicNormalizeDefaultsTrue(t *testing.T) {
	e := &Evaluator{llmf: llm.NewFactory(), settings: config.Config{LLM: config.LLM{Timeout: 5 * time.Second}}}
	_, _, _, normalize, err := e.selectProvider(Request{Provider: "anthropic", APIKey: "test-key"})
	require.NoError(t, err)
	require.NotNil(t, normalize)
	assert.True(t, *normalize)
}

func TestSelectProviderOpenAINormalizeDefaultsFalse(t *testing.T) {
	e := &Evaluator{llmf: llm.NewFactory(), settings: config.Config{LLM: config.LLM{Timeout: 5 * time.Second}}}
	_, _, _, normalize, err := e.selectProvider(Request{Provider: "openai", APIKey: "test-key"})
	require.NoError(t, err)
	require.NotNil(t, normalize)
	assert.False(t, *normalize)
}
