package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taipm/evalrouter/internal/apierrors"
	"github.com/taipm/evalrouter/internal/plugin"
)

const planningSystemPrompt = `You are a task planner that creates multi-step execution plans for complex queries.

Your task is to:
1. Analyze if the query requires multiple steps
2. Break down complex tasks into individual plugin calls
3. Identify dependencies between steps
4. Create an efficient execution plan

Respond with ONLY a JSON object of shape:
{
    "steps": [{"plugin_name": "...", "parameters": {...}, "depends_on": [0]}],
    "reasoning": "..."
}

Consider:
- Some steps may depend on outputs from previous steps
- Steps should be as atomic as possible
- depends_on entries must reference earlier step indices only`

const complexityPrompt = `Analyze if this query requires multiple steps or can be handled by a single plugin.

Consider it multi-step if it:
- Requires data from one plugin to feed into another
- Asks for multiple distinct operations
- Needs sequential processing
- Combines results from different sources

Respond with ONLY a JSON object: {"is_complex": true/false, "reasoning": "brief explanation"}`

// AnalyzeComplexity asks whether query needs a multi-step plan or a single
// routing decision.
func (r *Router) AnalyzeComplexity(ctx context.Context, query string) (bool, string, error) {
	raw, err := r.complete(ctx, complexityPrompt, query)
	if err != nil {
		return false, "Defaulting to simple execution due to analysis error", nil
	}

	var payload struct {
		IsComplex bool   `json:"is_complex"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &payload); err != nil {
		return false, "Defaulting to simple execution due to analysis error", nil
	}
	return payload.IsComplex, payload.Reasoning, nil
}

// PlanMultiStep asks the LLM for a multi-step plan and validates every
// step's dependencies reference a strictly earlier step index, per the
// dependency-ordering invariant spec.md §8 names.
func (r *Router) PlanMultiStep(ctx context.Context, query string) (*Plan, error) {
	metas := r.availableMetadata()
	raw, err := r.complete(ctx, planningSystemPrompt, query+"\n\nAvailable plugins:\n"+formatPluginsInfo(metas))
	if err != nil {
		return nil, apierrors.MultiStepExecution(0, 0, "LLM call failed: "+err.Error())
	}

	var payload struct {
		Steps []struct {
			PluginName string                 `json:"plugin_name"`
			Parameters map[string]interface{} `json:"parameters"`
			DependsOn  []int                  `json:"depends_on"`
		} `json:"steps"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &payload); err != nil {
		return nil, apierrors.MultiStepExecution(0, 0, "failed to parse plan JSON: "+err.Error())
	}

	plan := &Plan{Reasoning: payload.Reasoning}
	for _, s := range payload.Steps {
		plan.Steps = append(plan.Steps, PlanStep{PluginName: s.PluginName, Parameters: s.Parameters, DependsOn: s.DependsOn})
	}

	if err := validateDependencies(plan.Steps); err != nil {
		return nil, err
	}

	return plan, nil
}

// validateDependencies rejects a plan before any step executes if step i
// declares a dependency on step j >= i.
func validateDependencies(steps []PlanStep) error {
	for i, step := range steps {
		for _, dep := range step.DependsOn {
			if dep >= i {
				return apierrors.MultiStepExecution(i, len(steps), fmt.Sprintf("step %d depends on unexecuted step %d", i, dep))
			}
		}
	}
	return nil
}

// ExecuteSingle runs a single routing decision through the plugin manager.
func (r *Router) ExecuteSingle(ctx context.Context, decision *RoutingDecision) (*plugin.Response, error) {
	action, _ := decision.Parameters["action"].(string)
	if action == "" {
		action = decision.PluginName
	}

	params := make(map[string]interface{}, len(decision.Parameters))
	for k, v := range decision.Parameters {
		if k == "action" {
			continue
		}
		params[k] = v
	}

	req := &plugin.Request{
		RequestID:  requestID(),
		Timestamp:  time.Now().Unix(),
		Action:     action,
		Parameters: params,
	}

	return r.plugins.ExecutePlugin(ctx, decision.PluginName, req)
}

// ExecuteMultiStep runs each step sequentially, passing accumulated
// responses through each request's Context, per spec.md §5's strict
// sequential-with-dependency-ordering guarantee.
func (r *Router) ExecuteMultiStep(ctx context.Context, plan *Plan) ([]*plugin.Response, error) {
	if err := validateDependencies(plan.Steps); err != nil {
		return nil, err
	}

	responses := make([]*plugin.Response, 0, len(plan.Steps))
	for i, step := range plan.Steps {
		params := make(map[string]interface{}, len(step.Parameters))
		for k, v := range step.Parameters {
			params[k] = v
		}

		req := &plugin.Request{
			RequestID:  fmt.Sprintf("%s-step-%d", requestID(), i),
			Timestamp:  time.Now().Unix(),
			Action:     step.PluginName,
			Parameters: params,
			Context: map[string]interface{}{
				"previous_results": responses,
				"step_index":       i,
				"total_steps":      len(plan.Steps),
			},
		}

		resp, err := r.plugins.ExecutePlugin(ctx, step.PluginName, req)
		if err != nil {
			resp = &plugin.Response{RequestID: req.RequestID, Status: plugin.StatusError, Error: err.Error()}
		}
		responses = append(responses, resp)
	}

	return responses, nil
}

var requestCounter int64

func requestID() string {
	requestCounter++
	return fmt.Sprintf("route-%d-%d", time.Now().UnixNano(), requestCounter)
}
