package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIAdapter wraps the OpenAI Go SDK. System messages pass through inline
// as ordinary chat messages; this is "vendor A" in spec terms.
//
// It also covers OpenAI-compatible endpoints (Ollama, local gateways, Azure
// via a custom baseURL).
type OpenAIAdapter struct {
	client *openai.Client
	name   string
}

// NewOpenAIAdapter constructs an adapter against apiKey. baseURL overrides
// the default OpenAI endpoint when non-empty.
func NewOpenAIAdapter(name, apiKey, baseURL string) *OpenAIAdapter {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIAdapter{client: &client, name: name}
}

func (a *OpenAIAdapter) Name() string                  { return a.name }
func (a *OpenAIAdapter) SupportsStreaming() bool       { return true }
func (a *OpenAIAdapter) SupportsFunctionCalling() bool { return true }

func (a *OpenAIAdapter) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	params := a.buildParams(req)

	completion, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, a.mapError(err)
	}
	return a.convertResponse(completion), nil
}

// mapError translates the SDK's *openai.Error (carrying an HTTP status
// code) into the shared provider-error taxonomy.
func (a *OpenAIAdapter) mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return mapHTTPError(a.name, apiErr.StatusCode, apiErr.Error())
	}
	return mapTransportError(a.name, fmt.Errorf("openai adapter: %w", err))
}

func (a *OpenAIAdapter) StreamComplete(ctx context.Context, req *CompletionRequest, onChunk func(string)) (*CompletionResponse, error) {
	params := a.buildParams(req)

	stream := a.client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}
	var fullContent string

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if content, ok := acc.JustFinishedContent(); ok {
			fullContent = content
		}
		if refusal, ok := acc.JustFinishedRefusal(); ok {
			fullContent += refusal
		}
		if onChunk != nil && len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			delta := chunk.Choices[0].Delta.Content
			onChunk(delta)
			if fullContent == "" {
				fullContent += delta
			}
		}
	}

	if err := stream.Err(); err != nil {
		return nil, a.mapError(err)
	}

	return &CompletionResponse{Content: fullContent, Model: req.Model}, nil
}

func (a *OpenAIAdapter) buildParams(req *CompletionRequest) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: a.convertMessages(req),
	}

	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.TopP > 0 {
		params.TopP = openai.Float(req.TopP)
	}

	return params
}

// convertMessages passes system messages through inline; vendor A does not
// split system content to a top-level field, so NormalizeSystemTopLevel is
// not consulted here.
func (a *OpenAIAdapter) convertMessages(req *CompletionRequest) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	return messages
}

func (a *OpenAIAdapter) convertResponse(completion *openai.ChatCompletion) *CompletionResponse {
	resp := &CompletionResponse{
		Model: completion.Model,
		Usage: Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
		Metadata: map[string]interface{}{"id": completion.ID, "created": completion.Created},
	}

	if len(completion.Choices) == 0 {
		return resp
	}

	message := completion.Choices[0].Message
	resp.Content = message.Content

	// Reasoning-model gateways (e.g. DeepSeek-R1 via Ollama) sometimes return
	// a "reasoning" extra field instead of content.
	if resp.Content == "" && message.JSON.ExtraFields != nil {
		if reasoning, ok := message.JSON.ExtraFields["reasoning"]; ok {
			resp.Content = reasoning.Raw()
		}
	}

	resp.Metadata["finish_reason"] = string(completion.Choices[0].FinishReason)
	if message.Refusal != "" {
		resp.Metadata["refusal"] = message.Refusal
	}

	return resp
}
