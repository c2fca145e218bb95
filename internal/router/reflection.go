package router

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/taipm/evalrouter/internal/plugin"
)

const goalExtractionPrompt = `Extract the goal and success criteria from the user query.

Identify:
1. The main goal/objective
2. Specific success criteria (what would make this successful)
3. Any constraints or limitations mentioned

Respond with ONLY a JSON object:
{"description": "...", "success_criteria": ["..."], "constraints": ["..."]}`

const reflectionPrompt = `Analyze the execution result against the original goal.

Consider:
1. Was the goal achieved?
2. What aspects are missing or incomplete?
3. How good is the quality of the result?
4. What improvements could be made?
5. Should we retry with a different approach?

Respond with ONLY a JSON object:
{"goal_achieved": true/false, "missing_aspects": ["..."], "quality_assessment": "...",
 "suggested_improvements": ["..."], "needs_retry": true/false, "retry_strategy": "..."}`

const improvementSystemPrompt = "You are an AI that improves queries based on reflection feedback."

// ExtractGoal mines the objective and success criteria out of a query,
// run once at the start of a reflection loop.
func (r *Router) ExtractGoal(ctx context.Context, query string) (*Goal, error) {
	raw, err := r.complete(ctx, goalExtractionPrompt, query)
	if err != nil {
		return &Goal{Description: query, SuccessCriteria: []string{"Complete the requested task"}}, nil
	}

	var payload struct {
		Description     string   `json:"description"`
		SuccessCriteria []string `json:"success_criteria"`
		Constraints     []string `json:"constraints"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &payload); err != nil {
		return &Goal{Description: query}, nil
	}
	if payload.Description == "" {
		payload.Description = query
	}
	return &Goal{Description: payload.Description, SuccessCriteria: payload.SuccessCriteria, Constraints: payload.Constraints}, nil
}

// Reflect analyses result against goal and decides whether a retry is
// warranted.
func (r *Router) Reflect(ctx context.Context, goal *Goal, result ExecutionResult) (*ReflectionAnalysis, error) {
	summary, _ := json.Marshal(struct {
		Status    string   `json:"status"`
		Errors    []string `json:"errors"`
		Completed int      `json:"steps_completed"`
		Total     int      `json:"total_steps"`
	}{result.Status, result.Errors, result.StepsCompleted, result.TotalSteps})

	user := "Goal: " + goal.Description + "\nSuccess Criteria: " + strings.Join(goal.SuccessCriteria, "\n") + "\nResult: " + string(summary)

	raw, err := r.complete(ctx, reflectionPrompt, user)
	if err != nil {
		return &ReflectionAnalysis{GoalAchieved: result.Status == "success", QualityAssessment: "Unable to analyze"}, nil
	}

	var payload struct {
		GoalAchieved          bool     `json:"goal_achieved"`
		MissingAspects        []string `json:"missing_aspects"`
		QualityAssessment     string   `json:"quality_assessment"`
		SuggestedImprovements []string `json:"suggested_improvements"`
		NeedsRetry            bool     `json:"needs_retry"`
		RetryStrategy         string   `json:"retry_strategy"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &payload); err != nil {
		return &ReflectionAnalysis{GoalAchieved: result.Status == "success", QualityAssessment: "Unable to parse detailed reflection"}, nil
	}

	return &ReflectionAnalysis{
		GoalAchieved:          payload.GoalAchieved,
		MissingAspects:        payload.MissingAspects,
		QualityAssessment:     payload.QualityAssessment,
		SuggestedImprovements: payload.SuggestedImprovements,
		NeedsRetry:            payload.NeedsRetry,
		RetryStrategy:         payload.RetryStrategy,
	}, nil
}

// improveQuery generates a retry query from reflection feedback.
func (r *Router) improveQuery(ctx context.Context, original, strategy string, improvements []string) (string, error) {
	user := "Original query: " + original + "\nStrategy: " + strategy + "\nImprovements: " + strings.Join(improvements, ", ") + "\n\nGenerate an improved query."
	improved, err := r.complete(ctx, improvementSystemPrompt, user)
	if err != nil {
		return original, nil
	}
	return strings.TrimSpace(improved), nil
}

// runOnce plans and executes query once, via a multi-step plan or a single
// routing decision depending on AnalyzeComplexity's verdict.
func (r *Router) runOnce(ctx context.Context, query string) (ProcessResult, error) {
	isComplex, reasoning, err := r.AnalyzeComplexity(ctx, query)
	if err != nil {
		return ProcessResult{}, err
	}

	if isComplex {
		plan, err := r.PlanMultiStep(ctx, query)
		if err != nil {
			return ProcessResult{}, err
		}
		responses, err := r.ExecuteMultiStep(ctx, plan)
		if err != nil {
			return ProcessResult{}, err
		}
		return ProcessResult{
			Type:           "multi_step",
			Plan:           plan,
			Result:         summarizeResponses(responses, len(plan.Steps)),
			ComplexityNote: reasoning,
		}, nil
	}

	decision, err := r.Route(ctx, query)
	if err != nil {
		return ProcessResult{}, err
	}
	resp, err := r.ExecuteSingle(ctx, decision)
	if err != nil {
		resp = &plugin.Response{RequestID: "", Status: plugin.StatusError, Error: err.Error()}
	}
	return ProcessResult{
		Type:           "single_step",
		Routing:        decision,
		Result:         summarizeResponses([]*plugin.Response{resp}, 1),
		ComplexityNote: reasoning,
	}, nil
}

func summarizeResponses(responses []*plugin.Response, total int) ExecutionResult {
	status := "success"
	var errs []string
	completed := 0
	for _, resp := range responses {
		if resp == nil {
			continue
		}
		completed++
		if resp.Status != plugin.StatusSuccess {
			status = "partial"
			if resp.Error != "" {
				errs = append(errs, resp.Error)
			}
		}
	}
	if completed == 0 {
		status = "failed"
	} else if len(errs) == completed {
		status = "failed"
	}
	return ExecutionResult{Status: status, Responses: responses, StepsCompleted: completed, TotalSteps: total, Errors: errs}
}

// ProcessQuery runs the full reflection loop: extract the goal once, then
// plan/execute/reflect until the goal is achieved, retry isn't indicated,
// or the retry budget (default 3) is exhausted.
func (r *Router) ProcessQuery(ctx context.Context, query string) (*ProcessResult, error) {
	goal, err := r.ExtractGoal(ctx, query)
	if err != nil {
		return nil, err
	}

	currentQuery := query
	var trail []ReflectionAttempt
	var last ProcessResult

	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		result, err := r.runOnce(ctx, currentQuery)
		if err != nil {
			return nil, err
		}
		last = result

		analysis, err := r.Reflect(ctx, goal, result.Result)
		if err != nil {
			return nil, err
		}

		retry := !analysis.GoalAchieved && analysis.NeedsRetry && attempt < r.maxRetries
		trail = append(trail, ReflectionAttempt{Attempt: attempt, Query: currentQuery, Analysis: *analysis, Retried: retry})

		if !retry {
			break
		}

		currentQuery, err = r.improveQuery(ctx, query, analysis.RetryStrategy, analysis.SuggestedImprovements)
		if err != nil {
			break
		}
	}

	last.ReflectionTrail = trail
	return &last, nil
}
