package apihttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/taipm/evalrouter/internal/apierrors"
	"github.com/taipm/evalrouter/internal/evaluator"
	"github.com/taipm/evalrouter/internal/llm"
	"github.com/taipm/evalrouter/internal/plugin"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMetrics is a minimal non-Prometheus-library stub: scraping
// integration is out of scope (spec §1 Non-goals name observability
// integrations explicitly), but the route itself still needs to exist and
// answer with the exposition format's content type.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	loaded := len(s.plugins.LoadedPlugins())
	available := len(s.plugins.AvailablePlugins())
	w.Write([]byte(
		"# HELP evalrouter_plugins_loaded Number of plugins currently loaded.\n" +
			"# TYPE evalrouter_plugins_loaded gauge\n" +
			"evalrouter_plugins_loaded " + strconv.Itoa(loaded) + "\n" +
			"# HELP evalrouter_plugins_available Number of plugins discovered.\n" +
			"# TYPE evalrouter_plugins_available gauge\n" +
			"evalrouter_plugins_available " + strconv.Itoa(available) + "\n",
	))
}

type llmProxyRequest struct {
	Model                   string       `json:"model"`
	Messages                []llmMessage `json:"messages"`
	Temperature             float64      `json:"temperature"`
	MaxTokens               int          `json:"max_tokens"`
	APIKey                  string       `json:"api_key,omitempty"`
	NormalizeSystemTopLevel *bool        `json:"normalize_system_top_level,omitempty"`
}

type llmMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type llmProxyResponse struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// handleLLMProxy returns a handler that forwards the decoded request body
// straight through to the named provider's adapter. A missing api key, model
// or max_tokens is filled from that provider's settings; the timeout is the
// provider's own, or the general LLM timeout when that is unset.
func (s *Server) handleLLMProxy(provider string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req llmProxyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apierrors.Validation("body", nil, "invalid JSON"))
			return
		}

		vendor := s.settings.OpenAI
		if provider == "anthropic" {
			vendor = s.settings.Anthropic
		}
		apiKey := req.APIKey
		if apiKey == "" {
			apiKey = vendor.APIKey
		}
		model := req.Model
		if model == "" {
			model = vendor.Model
		}
		maxTokens := req.MaxTokens
		if maxTokens == 0 {
			maxTokens = vendor.MaxTokens
		}
		timeout := vendor.Timeout
		if timeout == 0 {
			timeout = s.settings.LLM.Timeout
		}

		adapter, err := s.llmf.Get(provider, apiKey, "", timeout)
		if err != nil {
			writeError(w, err)
			return
		}

		messages := make([]llm.Message, 0, len(req.Messages))
		for _, m := range req.Messages {
			messages = append(messages, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		completion, err := adapter.Complete(ctx, &llm.CompletionRequest{
			Model:                   model,
			Messages:                messages,
			Temperature:             req.Temperature,
			MaxTokens:               maxTokens,
			NormalizeSystemTopLevel: req.NormalizeSystemTopLevel,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		resp := llmProxyResponse{Content: completion.Content, Model: completion.Model}
		resp.Usage.PromptTokens = completion.Usage.PromptTokens
		resp.Usage.CompletionTokens = completion.Usage.CompletionTokens
		resp.Usage.TotalTokens = completion.Usage.TotalTokens
		writeJSON(w, http.StatusOK, resp)
	}
}

type evaluateRequest struct {
	Provider                string `json:"provider"`
	Model                   string `json:"model"`
	APIKey                  string `json:"api_key,omitempty"`
	ApplicantText           string `json:"applicant_text"`
	Criteria                string `json:"criteria,omitempty"`
	TemplateID              string `json:"template_id,omitempty"`
	RankingKeywordOverride  string `json:"ranking_keyword_override,omitempty"`
	AdditionalInstructions  string `json:"additional_instructions,omitempty"`
	UseMultiAxis            bool   `json:"use_multi_axis"`
	UsePluginEnrichment     bool   `json:"use_plugin_enrichment"`
	SourceURL               string `json:"source_url,omitempty"`
	PDFURL                  string `json:"pdf_url,omitempty"`
	NormalizeSystemTopLevel *bool  `json:"normalize_system_top_level,omitempty"`
}

type evaluateResponse struct {
	Result   string          `json:"result"`
	Score    *int            `json:"score"`
	Scores   []scoreResponse `json:"scores"`
	Provider string          `json:"provider"`
	Model    string          `json:"model"`
}

type scoreResponse struct {
	AxisName string `json:"axis_name"`
	Value    *int   `json:"value"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierrors.Validation("body", nil, "invalid JSON"))
		return
	}
	if req.ApplicantText == "" {
		writeError(w, apierrors.Validation("applicant_text", req.ApplicantText, "must not be empty"))
		return
	}

	resp, err := s.evaluator.Evaluate(r.Context(), evaluator.Request{
		Provider:                req.Provider,
		Model:                   req.Model,
		APIKey:                  req.APIKey,
		ApplicantText:           req.ApplicantText,
		Criteria:                req.Criteria,
		TemplateID:              req.TemplateID,
		RankingKeywordOverride:  req.RankingKeywordOverride,
		AdditionalInstructions:  req.AdditionalInstructions,
		UseMultiAxis:            req.UseMultiAxis,
		UsePluginEnrichment:     req.UsePluginEnrichment,
		SourceURL:               req.SourceURL,
		PDFURL:                  req.PDFURL,
		NormalizeSystemTopLevel: req.NormalizeSystemTopLevel,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	out := evaluateResponse{Result: resp.Result, Score: resp.Score, Provider: resp.Provider, Model: resp.Model}
	for _, sc := range resp.Scores {
		out.Scores = append(out.Scores, scoreResponse{AxisName: sc.AxisName, Value: sc.Value})
	}
	writeJSON(w, http.StatusOK, out)
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierrors.Validation("body", nil, "invalid JSON"))
		return
	}
	if req.Query == "" {
		writeError(w, apierrors.Validation("query", req.Query, "must not be empty"))
		return
	}

	result, err := s.router.ProcessQuery(r.Context(), req.Query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleQueryAnalyze(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierrors.Validation("body", nil, "invalid JSON"))
		return
	}
	if req.Query == "" {
		writeError(w, apierrors.Validation("query", req.Query, "must not be empty"))
		return
	}

	decision, err := s.router.Route(r.Context(), req.Query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

type pluginSummary struct {
	Name         string   `json:"name"`
	Version      string   `json:"version,omitempty"`
	Description  string   `json:"description,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Loaded       bool     `json:"loaded"`
}

func (s *Server) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	loaded := make(map[string]bool)
	for _, name := range s.plugins.LoadedPlugins() {
		loaded[name] = true
	}

	summaries := make([]pluginSummary, 0, len(s.plugins.AvailablePlugins()))
	for _, name := range s.plugins.AvailablePlugins() {
		meta, _ := s.plugins.Metadata(name)
		summaries = append(summaries, pluginSummary{
			Name:         meta.Name,
			Version:      meta.Version,
			Description:  meta.Description,
			Capabilities: meta.Capabilities,
			Loaded:       loaded[name],
		})
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handlePluginDetail(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	meta, ok := s.plugins.Metadata(name)
	if !ok {
		writeError(w, apierrors.PluginNotFound(name))
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

type pluginExecuteRequest struct {
	Action     string                 `json:"action"`
	Parameters map[string]interface{} `json:"parameters"`
}

func (s *Server) handlePluginExecute(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req pluginExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierrors.Validation("body", nil, "invalid JSON"))
		return
	}

	resp, err := s.plugins.ExecutePlugin(r.Context(), name, &plugin.Request{
		RequestID:  requestID(r),
		Timestamp:  time.Now().Unix(),
		Action:     req.Action,
		Parameters: req.Parameters,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReloadPlugins(w http.ResponseWriter, r *http.Request) {
	if err := s.plugins.ReloadPlugins(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func (s *Server) handleUnloadPlugin(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.plugins.UnloadPlugin(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unloaded", "name": name})
}

var execCounter int64

// requestID uses the caller-supplied X-Request-Id when present, so a client
// can correlate its own logs with a plugin response, and falls back to a
// locally generated one otherwise.
func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-Id"); id != "" {
		return id
	}
	execCounter++
	return fmt.Sprintf("http-%d-%d", time.Now().UnixNano(), execCounter)
}
