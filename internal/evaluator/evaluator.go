// Package evaluator implements the evaluation orchestrator (C10): it
// sequences enrichment, prompt assembly, the provider call, and score
// extraction into the single headline evaluation path.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/taipm/evalrouter/internal/config"
	"github.com/taipm/evalrouter/internal/extract"
	"github.com/taipm/evalrouter/internal/llm"
	"github.com/taipm/evalrouter/internal/plugin"
	"github.com/taipm/evalrouter/internal/pluginmgr"
	"github.com/taipm/evalrouter/internal/prompt"
)

// profileProviderMarkers lists substrings of a source URL that identify a
// professional-network profile, as opposed to a generic resume URL.
var profileProviderMarkers = []string{"linkedin.com"}

// Request is one evaluation call's input, spec's EvaluationRequest.
type Request struct {
	Provider                string
	Model                   string
	APIKey                  string
	ApplicantText           string
	Criteria                string
	TemplateID              string
	RankingKeywordOverride  string
	AdditionalInstructions  string
	UseMultiAxis            bool
	UsePluginEnrichment     bool
	SourceURL               string
	PDFURL                  string
	NormalizeSystemTopLevel *bool
}

// Response is the orchestrator's output, spec's EvaluationResponse.
type Response struct {
	Result   string
	Score    *int
	Scores   []extract.Score
	Provider string
	Model    string
}

// Evaluator wires the plugin manager, prompt registry, and LLM factory
// together to run the evaluation pipeline end to end.
type Evaluator struct {
	plugins  *pluginmgr.Manager
	prompts  *prompt.Registry
	llmf     *llm.Factory
	settings config.Config
}

func New(plugins *pluginmgr.Manager, prompts *prompt.Registry, llmf *llm.Factory, settings config.Config) *Evaluator {
	return &Evaluator{plugins: plugins, prompts: prompts, llmf: llmf, settings: settings}
}

// Evaluate runs the full seven-step pipeline described for C10.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (*Response, error) {
	enrichment, enrichmentLog := e.enrich(ctx, req)

	applicantText := req.ApplicantText
	if enrichment != nil {
		applicantText = applicantText + "\n\n### CANDIDATE ENRICHMENT DATA:\n" + formatEnrichment(enrichment)
	}

	messages, rankingKeywords := e.assemblePrompt(req, applicantText)

	adapter, timeout, maxTokens, normalize, err := e.selectProvider(req)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	completion, err := adapter.Complete(callCtx, &llm.CompletionRequest{
		Model:                   req.Model,
		Messages:                messages,
		Temperature:             0.2,
		MaxTokens:               maxTokens,
		NormalizeSystemTopLevel: normalize,
	})
	if err != nil {
		return nil, err
	}

	scores := extract.ExtractAll(completion.Content, rankingKeywords)

	result := completion.Content + "\n\n" + extract.FormatScoresBlock(scores)
	result += formatEnrichmentLog(enrichmentLog)
	if enrichment != nil {
		if raw, err := json.Marshal(enrichment); err == nil {
			result += "\n\n### RAW ENRICHMENT DATA:\n" + string(raw)
		}
	}

	var legacyScore *int
	if len(scores) > 0 {
		legacyScore = scores[0].Value
	}

	return &Response{
		Result:   result,
		Score:    legacyScore,
		Scores:   scores,
		Provider: req.Provider,
		Model:    req.Model,
	}, nil
}

// enrichedData is the shape combined enrichment takes, per spec.md §4.10
// step 1: {type: "combined", data: {linkedin, pdf}}, or the bare payload
// of whichever single source succeeded.
type enrichedData struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type combinedData struct {
	LinkedIn interface{} `json:"linkedin,omitempty"`
	PDF      interface{} `json:"pdf,omitempty"`
}

// enrich runs the profile-fetch and resume-parse plugins per spec.md
// §4.10 step 1. Failures are logged, never returned as an error, and the
// two calls run sequentially per spec §5 (not in parallel).
func (e *Evaluator) enrich(ctx context.Context, req Request) (interface{}, []string) {
	if !req.UsePluginEnrichment {
		return nil, nil
	}

	var log []string
	var linkedin, pdf interface{}

	isProfileURL := req.SourceURL != "" && isProfileSourceURL(req.SourceURL)

	if isProfileURL {
		username := extractProfileUsername(req.SourceURL)
		resp, err := e.plugins.ExecutePlugin(ctx, "linkedin_external", &plugin.Request{
			RequestID: requestID(),
			Timestamp: time.Now().Unix(),
			Action:    "get_profile",
			Parameters: map[string]interface{}{
				"linkedin_username": username,
			},
		})
		if err != nil {
			log = append(log, fmt.Sprintf("profile fetch failed: %s", err.Error()))
		} else if resp.Status != plugin.StatusSuccess {
			log = append(log, fmt.Sprintf("profile fetch failed: %s", resp.Error))
		} else {
			linkedin = resp.Data
		}
	}

	if req.PDFURL != "" || !isProfileURL {
		pdfURL := req.PDFURL
		if pdfURL == "" {
			pdfURL = req.SourceURL
		}
		if pdfURL != "" {
			resp, err := e.plugins.ExecutePlugin(ctx, "pdf_resume_parser", &plugin.Request{
				RequestID: requestID(),
				Timestamp: time.Now().Unix(),
				Action:    "parse",
				Parameters: map[string]interface{}{
					"pdf_url":      pdfURL,
					"llm_provider": req.Provider,
					"llm_model":    req.Model,
				},
			})
			if err != nil {
				log = append(log, fmt.Sprintf("resume parse failed: %s", err.Error()))
			} else if resp.Status != plugin.StatusSuccess {
				log = append(log, fmt.Sprintf("resume parse failed: %s", resp.Error))
			} else {
				pdf = resp.Data
			}
		}
	}

	switch {
	case linkedin != nil && pdf != nil:
		return enrichedData{Type: "combined", Data: combinedData{LinkedIn: linkedin, PDF: pdf}}, log
	case linkedin != nil:
		return linkedin, log
	case pdf != nil:
		return pdf, log
	default:
		return nil, log
	}
}

func isProfileSourceURL(sourceURL string) bool {
	lower := strings.ToLower(sourceURL)
	for _, marker := range profileProviderMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func extractProfileUsername(sourceURL string) string {
	trimmed := strings.TrimRight(sourceURL, "/")
	parts := strings.Split(trimmed, "/")
	return parts[len(parts)-1]
}

var requestCounter int64

// requestID generates a unique token for a synthetic plugin request the
// orchestrator issues on the caller's behalf; monotonic within a process.
func requestID() string {
	requestCounter++
	return fmt.Sprintf("eval-%d-%d", time.Now().UnixNano(), requestCounter)
}

// assemblePrompt builds the message sequence via C8, forcing the SPAR
// template when multi-axis is requested and projecting its first axis
// otherwise, per the template-selection rule.
func (e *Evaluator) assemblePrompt(req Request, applicantText string) ([]llm.Message, []extract.AxisKeyword) {
	criteria := prompt.ResolveCriteria(req.Criteria)

	if req.UseMultiAxis {
		tmpl := e.prompts.SPAR()
		messages := prompt.BuildMultiAxis(tmpl, applicantText, criteria, req.AdditionalInstructions)
		return messages, toAxisKeywords(tmpl.RankingKeywords())
	}

	single := e.prompts.SPAR().FirstAxisSingleAxis()
	rankingKeyword := single.DefaultRankingWord
	if req.RankingKeywordOverride != "" {
		rankingKeyword = req.RankingKeywordOverride
	}
	messages := prompt.BuildSingleAxis(single, applicantText, criteria, rankingKeyword, req.AdditionalInstructions)
	return messages, []extract.AxisKeyword{{AxisName: single.Name, RankingKeyword: rankingKeyword}}
}

func toAxisKeywords(keywords []prompt.AxisKeyword) []extract.AxisKeyword {
	out := make([]extract.AxisKeyword, len(keywords))
	for i, k := range keywords {
		out[i] = extract.AxisKeyword{AxisName: k.AxisName, RankingKeyword: k.RankingKeyword}
	}
	return out
}

// selectProvider resolves an adapter, timeout, max_tokens, and the
// normalize-system-top-level default per spec.md §4.10 step 4-5.
func (e *Evaluator) selectProvider(req Request) (llm.Adapter, time.Duration, int, *bool, error) {
	timeout := e.settings.LLM.Timeout
	maxTokens := e.settings.LLM.MaxTokens
	apiKey := req.APIKey
	normalizeDefault := false

	switch req.Provider {
	case "anthropic":
		if e.settings.Anthropic.Timeout > 0 {
			timeout = e.settings.Anthropic.Timeout
		}
		if e.settings.Anthropic.MaxTokens > 0 {
			maxTokens = e.settings.Anthropic.MaxTokens
		}
		if apiKey == "" {
			apiKey = e.settings.Anthropic.APIKey
		}
		normalizeDefault = true
	case "openai":
		if e.settings.OpenAI.Timeout > 0 {
			timeout = e.settings.OpenAI.Timeout
		}
		if e.settings.OpenAI.MaxTokens > 0 {
			maxTokens = e.settings.OpenAI.MaxTokens
		}
		if apiKey == "" {
			apiKey = e.settings.OpenAI.APIKey
		}
	}

	normalize := req.NormalizeSystemTopLevel
	if normalize == nil {
		normalize = &normalizeDefault
	}

	adapter, err := e.llmf.Get(req.Provider, apiKey, "", timeout)
	if err != nil {
		return nil, 0, 0, nil, err
	}
	return adapter, timeout, maxTokens, normalize, nil
}
