package core

import (
	"fmt"
	"time"
)

// WorkflowID uniquely identifies a workflow run.
type WorkflowID string

// WorkflowStatus represents the current state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusPending   WorkflowStatus = "pending"
	WorkflowStatusRunning   WorkflowStatus = "running"
	WorkflowStatusPaused    WorkflowStatus = "paused"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusFailed    WorkflowStatus = "failed"
	WorkflowStatusCancelled WorkflowStatus = "cancelled"
)

// DefaultPriority is assigned to workflows created without an explicit priority.
const DefaultPriority = 0

// Workflow represents one runtime instance of a template: an owned set of
// steps with a dependency graph, a status, and aggregate run state.
type Workflow struct {
	ID           WorkflowID
	Name         string
	Description  string
	TemplateName string
	Steps        map[StepID]*Step
	StepOrder    []StepID
	Parameters   map[string]interface{}
	Priority     int
	Status       WorkflowStatus
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	Error        string
}

// NewWorkflow creates a new workflow instance in pending state.
func NewWorkflow(id WorkflowID, name, templateName string, params map[string]interface{}) *Workflow {
	if params == nil {
		params = make(map[string]interface{})
	}
	return &Workflow{
		ID:           id,
		Name:         name,
		TemplateName: templateName,
		Steps:        make(map[StepID]*Step),
		StepOrder:    make([]StepID, 0),
		Parameters:   params,
		Priority:     DefaultPriority,
		Status:       WorkflowStatusPending,
		CreatedAt:    time.Now(),
	}
}

// AddStep adds a step to the workflow.
func (w *Workflow) AddStep(step *Step) error {
	if step == nil {
		return fmt.Errorf("step cannot be nil")
	}
	if _, exists := w.Steps[step.ID]; exists {
		return ErrValidation(CodeDuplicateStep, fmt.Sprintf("step %s already exists", step.ID))
	}
	w.Steps[step.ID] = step
	w.StepOrder = append(w.StepOrder, step.ID)
	return nil
}

// GetStep retrieves a step by ID.
func (w *Workflow) GetStep(id StepID) (*Step, bool) {
	step, ok := w.Steps[id]
	return step, ok
}

// OrderedSteps returns the steps in declaration order.
func (w *Workflow) OrderedSteps() []*Step {
	steps := make([]*Step, 0, len(w.StepOrder))
	for _, id := range w.StepOrder {
		steps = append(steps, w.Steps[id])
	}
	return steps
}

// CompletedSteps returns a map of completed step IDs.
func (w *Workflow) CompletedSteps() map[StepID]bool {
	completed := make(map[StepID]bool)
	for id, step := range w.Steps {
		if step.Status == StepStatusCompleted {
			completed[id] = true
		}
	}
	return completed
}

// ReadySteps returns pending steps whose dependencies are all completed.
func (w *Workflow) ReadySteps() []*Step {
	completed := w.CompletedSteps()
	var ready []*Step
	for _, id := range w.StepOrder {
		if step := w.Steps[id]; step.IsReady(completed) {
			ready = append(ready, step)
		}
	}
	return ready
}

// Progress returns the completion percentage. It is always derived from
// step statuses, never stored.
func (w *Workflow) Progress() float64 {
	if len(w.Steps) == 0 {
		return 0
	}
	completed := 0
	for _, step := range w.Steps {
		if step.Status == StepStatusCompleted {
			completed++
		}
	}
	return float64(completed) / float64(len(w.Steps)) * 100
}

// Start transitions the workflow to running state.
func (w *Workflow) Start() error {
	if w.Status != WorkflowStatusPending && w.Status != WorkflowStatusPaused {
		return ErrState(CodeInvalidState,
			fmt.Sprintf("cannot start workflow in %s state", w.Status))
	}
	w.Status = WorkflowStatusRunning
	if w.StartedAt == nil {
		now := time.Now()
		w.StartedAt = &now
	}
	return nil
}

// Pause transitions the workflow to paused state.
func (w *Workflow) Pause() error {
	if w.Status != WorkflowStatusRunning {
		return ErrState(CodeInvalidState,
			fmt.Sprintf("cannot pause workflow in %s state", w.Status))
	}
	w.Status = WorkflowStatusPaused
	return nil
}

// Resume transitions the workflow from paused to running.
func (w *Workflow) Resume() error {
	if w.Status != WorkflowStatusPaused {
		return ErrState(CodeInvalidState,
			fmt.Sprintf("cannot resume workflow in %s state", w.Status))
	}
	w.Status = WorkflowStatusRunning
	return nil
}

// Complete transitions the workflow to completed state.
func (w *Workflow) Complete() error {
	if w.Status != WorkflowStatusRunning {
		return ErrState(CodeInvalidState,
			fmt.Sprintf("cannot complete workflow in %s state", w.Status))
	}
	w.Status = WorkflowStatusCompleted
	now := time.Now()
	w.CompletedAt = &now
	return nil
}

// Fail transitions the workflow to failed state recording the cause.
func (w *Workflow) Fail(err error) {
	w.Status = WorkflowStatusFailed
	if err != nil {
		w.Error = err.Error()
	}
	now := time.Now()
	w.CompletedAt = &now
}

// Cancel transitions the workflow to cancelled state. Pending and running
// steps are forced to skipped.
func (w *Workflow) Cancel(reason string) error {
	if w.Status != WorkflowStatusRunning && w.Status != WorkflowStatusPaused {
		return ErrState(CodeInvalidState,
			fmt.Sprintf("cannot cancel workflow in %s state", w.Status))
	}
	w.Status = WorkflowStatusCancelled
	w.Error = reason
	now := time.Now()
	w.CompletedAt = &now
	for _, step := range w.Steps {
		if step.Status == StepStatusPending || step.Status == StepStatusRunning {
			_ = step.MarkSkipped(reason)
		}
	}
	return nil
}

// Duration returns the workflow execution duration.
func (w *Workflow) Duration() time.Duration {
	if w.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if w.CompletedAt != nil {
		end = *w.CompletedAt
	}
	return end.Sub(*w.StartedAt)
}

// IsTerminal returns true if the workflow is in a terminal state.
func (w *Workflow) IsTerminal() bool {
	return w.Status == WorkflowStatusCompleted ||
		w.Status == WorkflowStatusFailed ||
		w.Status == WorkflowStatusCancelled
}

// Validate checks workflow invariants: required fields plus a dependency
// graph whose edges reference known steps and contain no cycles.
func (w *Workflow) Validate() error {
	if w.ID == "" {
		return ErrValidation("WORKFLOW_ID_REQUIRED", "workflow ID cannot be empty")
	}
	if w.Name == "" {
		return ErrValidation("WORKFLOW_NAME_REQUIRED", "workflow name cannot be empty")
	}
	for _, step := range w.Steps {
		if err := step.Validate(); err != nil {
			return err
		}
		for _, dep := range step.Dependencies {
			if _, ok := w.Steps[dep]; !ok {
				return ErrValidation(CodeUnknownStepRef,
					fmt.Sprintf("step %s depends on unknown step %s", step.ID, dep))
			}
		}
	}
	return w.validateAcyclic()
}

// validateAcyclic runs a DFS over the dependency edges looking for cycles.
func (w *Workflow) validateAcyclic() error {
	visited := make(map[StepID]bool)
	recStack := make(map[StepID]bool)

	var dfs func(id StepID) bool
	dfs = func(id StepID) bool {
		visited[id] = true
		recStack[id] = true
		for _, dep := range w.Steps[id].Dependencies {
			if !visited[dep] {
				if dfs(dep) {
					return true
				}
			} else if recStack[dep] {
				return true
			}
		}
		recStack[id] = false
		return false
	}

	for id := range w.Steps {
		if !visited[id] {
			if dfs(id) {
				return ErrDependencyCycle("step dependency graph contains a cycle")
			}
		}
	}
	return nil
}
