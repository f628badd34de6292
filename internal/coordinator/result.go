package coordinator

import (
	"strings"
	"time"

	"github.com/eduflow-ai/eduflow/internal/core"
)

// Result summarizes a finished workflow execution.
type Result struct {
	WorkflowID     core.WorkflowID                   `json:"workflow_id"`
	Name           string                            `json:"name"`
	Success        bool                              `json:"success"`
	StepsCompleted int                               `json:"steps_completed"`
	TotalSteps     int                               `json:"total_steps"`
	StepResults    map[string]map[string]interface{} `json:"step_results"`
	FinalOutput    interface{}                       `json:"final_output"`
}

// assembleResult builds the summary payload for a workflow. The final
// output prefers the result of an integration step, the sink that
// assembled everything, falling back to the full per-step map when no
// such step exists. Caller holds the coordinator mutex.
func assembleResult(wf *core.Workflow) *Result {
	result := &Result{
		WorkflowID:  wf.ID,
		Name:        wf.Name,
		Success:     wf.Status == core.WorkflowStatusCompleted,
		TotalSteps:  len(wf.Steps),
		StepResults: make(map[string]map[string]interface{}),
	}

	var integration *core.Step
	for _, step := range wf.OrderedSteps() {
		if step.Status == core.StepStatusCompleted {
			result.StepsCompleted++
			result.StepResults[step.Name] = step.Result
			if isIntegrationStep(step.Name) {
				integration = step
			}
		}
	}

	if integration != nil {
		result.FinalOutput = integration.Result
	} else {
		result.FinalOutput = result.StepResults
	}
	return result
}

// isIntegrationStep reports whether a step name marks the step that
// assembles the workflow's final content.
func isIntegrationStep(name string) bool {
	for _, marker := range []string{"integration", "integrate", "final"} {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

// StatusSnapshot is a point-in-time copy of a workflow's observable state.
type StatusSnapshot struct {
	ID           core.WorkflowID     `json:"workflow_id"`
	Name         string              `json:"name"`
	TemplateName string              `json:"template"`
	Status       core.WorkflowStatus `json:"status"`
	Priority     int                 `json:"priority"`
	Progress     float64             `json:"progress"`
	Error        string              `json:"error,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	StartedAt    *time.Time          `json:"started_at,omitempty"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
	Steps        []StepSnapshot      `json:"steps"`
}

// StepSnapshot is the per-step entry of a status snapshot. Duration is
// zero until both start and end timestamps are recorded.
type StepSnapshot struct {
	ID       core.StepID     `json:"step_id"`
	Name     string          `json:"name"`
	Executor string          `json:"executor"`
	Status   core.StepStatus `json:"status"`
	Attempts int             `json:"attempts"`
	Error    string          `json:"error,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// snapshotWorkflow copies the observable state of a workflow. Caller holds
// the coordinator mutex.
func snapshotWorkflow(wf *core.Workflow) *StatusSnapshot {
	snap := &StatusSnapshot{
		ID:           wf.ID,
		Name:         wf.Name,
		TemplateName: wf.TemplateName,
		Status:       wf.Status,
		Priority:     wf.Priority,
		Progress:     wf.Progress(),
		Error:        wf.Error,
		CreatedAt:    wf.CreatedAt,
		StartedAt:    wf.StartedAt,
		CompletedAt:  wf.CompletedAt,
		Steps:        make([]StepSnapshot, 0, len(wf.Steps)),
	}
	for _, step := range wf.OrderedSteps() {
		entry := StepSnapshot{
			ID:       step.ID,
			Name:     step.Name,
			Executor: step.Executor,
			Status:   step.Status,
			Attempts: step.Attempts,
			Error:    step.Error,
		}
		if step.StartedAt != nil && step.CompletedAt != nil {
			entry.Duration = step.CompletedAt.Sub(*step.StartedAt)
		}
		snap.Steps = append(snap.Steps, entry)
	}
	return snap
}
