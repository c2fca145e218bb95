// Package router implements the semantic router and reflection loop (C11):
// picking a plugin from a natural-language query by consulting an LLM,
// planning multi-step executions, and an optional self-critique retry loop.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/taipm/evalrouter/internal/apierrors"
	"github.com/taipm/evalrouter/internal/llm"
	"github.com/taipm/evalrouter/internal/plugin"
	"github.com/taipm/evalrouter/internal/pluginmgr"
)

// RoutingDecision is the router's answer to "which plugin handles this
// query", the shape spec.md §4.11 names.
type RoutingDecision struct {
	PluginName string                 `json:"plugin_name"`
	Confidence float64                `json:"confidence"`
	Reasoning  string                 `json:"reasoning"`
	Parameters map[string]interface{} `json:"parameters"`
}

// PlanStep is one step of a multi-step plan.
type PlanStep struct {
	PluginName string                 `json:"plugin_name"`
	Parameters map[string]interface{} `json:"parameters"`
	DependsOn  []int                  `json:"depends_on,omitempty"`
}

// Plan is a multi-step execution plan.
type Plan struct {
	Steps     []PlanStep `json:"steps"`
	Reasoning string     `json:"reasoning"`
}

// Goal is the extracted objective and success criteria of a query, mined
// once at the start of a reflection loop.
type Goal struct {
	Description     string   `json:"description"`
	SuccessCriteria []string `json:"success_criteria,omitempty"`
	Constraints     []string `json:"constraints,omitempty"`
}

// ReflectionAnalysis is the post-execution self-critique the reflection
// loop uses to decide whether to retry.
type ReflectionAnalysis struct {
	GoalAchieved          bool     `json:"goal_achieved"`
	MissingAspects        []string `json:"missing_aspects,omitempty"`
	QualityAssessment     string   `json:"quality_assessment"`
	SuggestedImprovements []string `json:"suggested_improvements,omitempty"`
	NeedsRetry            bool     `json:"needs_retry"`
	RetryStrategy         string   `json:"retry_strategy,omitempty"`
}

// ReflectionAttempt records one pass of the reflection loop: the query that
// was tried, the analysis it produced, and whether a retry followed.
type ReflectionAttempt struct {
	Attempt  int                `json:"attempt"`
	Query    string             `json:"query"`
	Analysis ReflectionAnalysis `json:"analysis"`
	Retried  bool               `json:"retried"`
}

// ExecutionResult summarizes the outcome of running a routing decision or a
// multi-step plan, the input to reflection.
type ExecutionResult struct {
	Status         string             `json:"status"`
	Responses      []*plugin.Response `json:"responses,omitempty"`
	StepsCompleted int                `json:"steps_completed"`
	TotalSteps     int                `json:"total_steps"`
	Errors         []string           `json:"errors,omitempty"`
}

// ProcessResult is the end-to-end output of ProcessQuery: either a
// single-step routing decision or a multi-step plan, their execution
// results, and the reflection trail if reflection ran.
type ProcessResult struct {
	Type            string              `json:"type"` // "single_step" or "multi_step"
	Routing         *RoutingDecision    `json:"routing,omitempty"`
	Plan            *Plan               `json:"plan,omitempty"`
	Result          ExecutionResult     `json:"result"`
	ComplexityNote  string              `json:"complexity_note,omitempty"`
	ReflectionTrail []ReflectionAttempt `json:"reflection_trail,omitempty"`
}

const defaultMaxRetries = 3

// Router ties the plugin manager to an LLM adapter to make routing,
// planning, and reflection decisions.
type Router struct {
	plugins    *pluginmgr.Manager
	adapter    llm.Adapter
	model      string
	maxRetries int
}

// New builds a Router. adapter is the LLM used for every routing/planning/
// reflection prompt; a shared adapter is deliberate, matching the original's
// "shared LLM provider for cost efficiency and consistent behavior" choice.
func New(plugins *pluginmgr.Manager, adapter llm.Adapter, model string) *Router {
	return &Router{plugins: plugins, adapter: adapter, model: model, maxRetries: defaultMaxRetries}
}

// WithMaxRetries overrides the reflection loop's retry budget (default 3).
func (r *Router) WithMaxRetries(n int) *Router {
	r.maxRetries = n
	return r
}

func (r *Router) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := r.adapter.Complete(ctx, &llm.CompletionRequest{
		Model:       r.model,
		Messages:    []llm.Message{llm.System(system), llm.User(user)},
		Temperature: 0,
		MaxTokens:   2048,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Route asks the LLM to pick a plugin for query, validates the answer
// against the loaded plugin set, and applies the profile-fetch
// post-processing spec.md §4.11 describes.
func (r *Router) Route(ctx context.Context, query string) (*RoutingDecision, error) {
	metas := r.availableMetadata()
	if len(metas) == 0 {
		return nil, apierrors.NoPluginsAvailable()
	}

	raw, err := r.complete(ctx, routingSystemPrompt, query+"\n\nAvailable plugins:\n"+formatPluginsInfo(metas))
	if err != nil {
		return nil, apierrors.RoutingDecision(query, "LLM call failed", err)
	}

	var payload struct {
		Plugin     string                 `json:"plugin"`
		Confidence float64                `json:"confidence"`
		Reasoning  string                 `json:"reasoning"`
		Parameters map[string]interface{} `json:"parameters"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &payload); err != nil {
		return nil, apierrors.RoutingDecision(query, "failed to parse routing JSON: "+err.Error(), err)
	}

	if _, ok := metas[payload.Plugin]; !ok {
		return nil, apierrors.RoutingDecision(query, fmt.Sprintf("unknown plugin %q", payload.Plugin), nil)
	}

	decision := &RoutingDecision{
		PluginName: payload.Plugin,
		Confidence: payload.Confidence,
		Reasoning:  payload.Reasoning,
		Parameters: payload.Parameters,
	}
	if decision.Parameters == nil {
		decision.Parameters = map[string]interface{}{}
	}

	if decision.PluginName == "linkedin_external" {
		inferProfileAction(query, decision)
	}

	return decision, nil
}

// quotedNamePattern pulls a quoted company name out of a routing query, the
// same heuristic the original single-step router uses.
var quotedNamePattern = regexp.MustCompile(`"([^"]*)"`)

var companyKeywords = []string{"company", "companies", "organization", "firm"}

// inferProfileAction decides between get_company and get_profile for the
// profile-fetch plugin based on keywords in the query, and normalizes the
// username/profile parameter aliases to linkedin_username.
func inferProfileAction(query string, decision *RoutingDecision) {
	lower := strings.ToLower(query)

	isCompany := false
	for _, kw := range companyKeywords {
		if strings.Contains(lower, kw) {
			isCompany = true
			break
		}
	}

	if isCompany {
		if _, ok := decision.Parameters["company_name"]; !ok {
			if m := quotedNamePattern.FindStringSubmatch(query); m != nil {
				decision.Parameters["company_name"] = m[1]
			}
		}
		decision.Parameters["action"] = "get_company"
		return
	}

	if _, ok := decision.Parameters["linkedin_username"]; !ok {
		if username, ok := decision.Parameters["username"].(string); ok {
			decision.Parameters["linkedin_username"] = username
		} else if profile, ok := decision.Parameters["profile"].(string); ok {
			decision.Parameters["linkedin_username"] = profile
		}
	}
	decision.Parameters["action"] = "get_profile"
}

// availableMetadata returns a name-keyed snapshot of every loaded plugin's
// metadata, the set the router chooses among.
func (r *Router) availableMetadata() map[string]plugin.Metadata {
	out := make(map[string]plugin.Metadata)
	for _, name := range r.plugins.AvailablePlugins() {
		if meta, ok := r.plugins.Metadata(name); ok {
			out[name] = meta
		}
	}
	return out
}

func formatPluginsInfo(metas map[string]plugin.Metadata) string {
	var b strings.Builder
	for name, meta := range metas {
		fmt.Fprintf(&b, "Plugin: %s\n  Description: %s\n  Capabilities: %s\n", name, meta.Description, strings.Join(meta.Capabilities, ", "))
		if len(meta.RequiredParameters) > 0 {
			fmt.Fprintf(&b, "  Required params: %v\n", meta.RequiredParameters)
		}
		if len(meta.OptionalParameters) > 0 {
			fmt.Fprintf(&b, "  Optional params: %v\n", meta.OptionalParameters)
		}
	}
	return b.String()
}

// stripCodeFences removes a leading/trailing markdown code fence (with or
// without a "json" language tag), the minimal cleanup spec.md §4.11 asks
// the router to apply before parsing.
func stripCodeFences(raw string) string {
	content := strings.TrimSpace(raw)
	if !strings.Contains(content, "```") {
		return content
	}
	if idx := strings.Index(content, "```json"); idx >= 0 {
		rest := content[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	if idx := strings.Index(content, "```"); idx >= 0 {
		rest := content[idx+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	return content
}

const routingSystemPrompt = `You are a semantic router that analyzes user queries and routes them to appropriate plugins.

Your task is to:
1. Understand the user's intent from their query
2. Select the most appropriate plugin from available options
3. Extract relevant parameters from the query
4. Provide a confidence score (0-1) for your routing decision

You MUST respond with ONLY a JSON object (no additional text, no markdown formatting).

Example response format:
{
    "plugin": "linkedin_external",
    "confidence": 0.95,
    "reasoning": "User is asking for LinkedIn profile information",
    "parameters": {
        "username": "johndoe"
    }
}

Important:
- Response must be valid JSON only
- Use "plugin" not "plugin_name"
- Use "parameters" not "extracted_params"
- Do not wrap in markdown code blocks
- Do not include any text before or after the JSON`
