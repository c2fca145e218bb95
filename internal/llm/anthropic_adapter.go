package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
)

// AnthropicAdapter hand-rolls the wire shape for vendor B: system-role
// content is pulled out of Messages into a top-level "system" field, and
// auth travels as an x-api-key header plus an anthropic-version header
// rather than a bearer token.
type AnthropicAdapter struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewAnthropicAdapter constructs an adapter against apiKey. baseURL
// overrides the default Anthropic endpoint when non-empty.
func NewAnthropicAdapter(name, apiKey, baseURL string, timeout time.Duration) *AnthropicAdapter {
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &AnthropicAdapter{
		name:    name,
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (a *AnthropicAdapter) Name() string                  { return a.name }
func (a *AnthropicAdapter) SupportsStreaming() bool       { return false }
func (a *AnthropicAdapter) SupportsFunctionCalling() bool { return false }

func (a *AnthropicAdapter) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	system, messages := a.splitSystem(req)

	body := map[string]interface{}{
		"model":    req.Model,
		"messages": messages,
	}
	if system != "" {
		body["system"] = system
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	} else {
		body["max_tokens"] = 4096
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}
	for k, v := range req.Extra {
		body[k] = v
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("anthropic adapter: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("anthropic adapter: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, mapTransportError(a.name, fmt.Errorf("anthropic adapter: request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("anthropic adapter: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, mapHTTPError(a.name, resp.StatusCode, string(respBody))
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		Model string `json:"model"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("anthropic adapter: parse response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("anthropic adapter: API error: %s", result.Error.Message)
	}
	if len(result.Content) == 0 {
		return nil, fmt.Errorf("anthropic adapter: empty response")
	}

	return &CompletionResponse{
		Content: result.Content[0].Text,
		Model:   result.Model,
		Usage: Usage{
			PromptTokens:     result.Usage.InputTokens,
			CompletionTokens: result.Usage.OutputTokens,
			TotalTokens:      result.Usage.InputTokens + result.Usage.OutputTokens,
		},
	}, nil
}

// StreamComplete is not supported by this adapter; it falls back to a
// single non-streaming call and delivers the whole content as one chunk.
func (a *AnthropicAdapter) StreamComplete(ctx context.Context, req *CompletionRequest, onChunk func(string)) (*CompletionResponse, error) {
	resp, err := a.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if onChunk != nil && resp.Content != "" {
		onChunk(resp.Content)
	}
	return resp, nil
}

// splitSystem extracts system-role messages into a top-level system string,
// per vendor B's wire shape, unless req.NormalizeSystemTopLevel is
// explicitly set to false.
func (a *AnthropicAdapter) splitSystem(req *CompletionRequest) (string, []map[string]string) {
	normalize := true
	if req.NormalizeSystemTopLevel != nil {
		normalize = *req.NormalizeSystemTopLevel
	}

	var system string
	messages := make([]map[string]string, 0, len(req.Messages)+1)

	for _, msg := range req.Messages {
		if msg.Role == RoleSystem && normalize {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		role := string(msg.Role)
		if msg.Role == RoleSystem {
			role = string(RoleUser)
		}
		messages = append(messages, map[string]string{"role": role, "content": msg.Content})
	}

	if req.AssistantPrefill != "" {
		messages = append(messages, map[string]string{"role": string(RoleAssistant), "content": req.AssistantPrefill})
	}

	return system, messages
}
