package core

import (
	"fmt"
	"time"
)

// StepID uniquely identifies a step within a workflow.
type StepID string

// StepStatus represents the current state of a step.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// Step represents a unit of work within a workflow, bound to a named executor.
type Step struct {
	ID           StepID
	Name         string
	Description  string
	Executor     string // Registry key of the executor that performs the work
	Parameters   map[string]interface{}
	Dependencies []StepID
	Timeout      time.Duration
	MaxAttempts  int
	Status       StepStatus
	Attempts     int
	Result       map[string]interface{}
	StartedAt    *time.Time
	CompletedAt  *time.Time
	Error        string
}

// NewStep creates a new step with required fields.
func NewStep(id StepID, name, executor string) *Step {
	return &Step{
		ID:          id,
		Name:        name,
		Executor:    executor,
		Status:      StepStatusPending,
		Timeout:     5 * time.Minute,
		MaxAttempts: 3,
		Parameters:  make(map[string]interface{}),
	}
}

// WithDescription sets the step description.
func (s *Step) WithDescription(desc string) *Step {
	s.Description = desc
	return s
}

// WithParameters replaces the step parameters.
func (s *Step) WithParameters(params map[string]interface{}) *Step {
	s.Parameters = params
	return s
}

// WithDependencies sets the step dependencies.
func (s *Step) WithDependencies(deps ...StepID) *Step {
	s.Dependencies = deps
	return s
}

// WithTimeout sets the per-attempt timeout.
func (s *Step) WithTimeout(d time.Duration) *Step {
	s.Timeout = d
	return s
}

// WithMaxAttempts sets the maximum number of executor invocations.
func (s *Step) WithMaxAttempts(n int) *Step {
	s.MaxAttempts = n
	return s
}

// IsReady returns true if the step is pending and all dependencies are completed.
func (s *Step) IsReady(completed map[StepID]bool) bool {
	if s.Status != StepStatusPending {
		return false
	}
	for _, dep := range s.Dependencies {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// MarkRunning transitions the step to running state.
func (s *Step) MarkRunning() error {
	if s.Status != StepStatusPending {
		return fmt.Errorf("cannot start step in %s state", s.Status)
	}
	s.Status = StepStatusRunning
	now := time.Now()
	s.StartedAt = &now
	return nil
}

// MarkCompleted transitions the step to completed state.
func (s *Step) MarkCompleted(result map[string]interface{}) error {
	if s.Status != StepStatusRunning {
		return fmt.Errorf("cannot complete step in %s state", s.Status)
	}
	s.Status = StepStatusCompleted
	s.Result = result
	now := time.Now()
	s.CompletedAt = &now
	return nil
}

// MarkFailed transitions the step to failed state.
func (s *Step) MarkFailed(err error) error {
	if s.Status != StepStatusRunning {
		return fmt.Errorf("cannot fail step in %s state", s.Status)
	}
	s.Status = StepStatusFailed
	s.Error = err.Error()
	now := time.Now()
	s.CompletedAt = &now
	return nil
}

// MarkSkipped forces the step into skipped state. Used on workflow
// cancellation for steps that are pending or still running.
func (s *Step) MarkSkipped(reason string) error {
	if s.Status != StepStatusPending && s.Status != StepStatusRunning {
		return fmt.Errorf("cannot skip step in %s state", s.Status)
	}
	s.Status = StepStatusSkipped
	s.Error = reason
	now := time.Now()
	s.CompletedAt = &now
	return nil
}

// Duration returns the step execution duration, or 0 if never started.
func (s *Step) Duration() time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if s.CompletedAt != nil {
		end = *s.CompletedAt
	}
	return end.Sub(*s.StartedAt)
}

// IsTerminal returns true if the step is in a terminal state.
func (s *Step) IsTerminal() bool {
	return s.Status == StepStatusCompleted ||
		s.Status == StepStatusFailed ||
		s.Status == StepStatusSkipped
}

// IsSuccess returns true if the step completed successfully.
func (s *Step) IsSuccess() bool {
	return s.Status == StepStatusCompleted
}

// Validate checks step invariants.
func (s *Step) Validate() error {
	if s.ID == "" {
		return ErrValidation("STEP_ID_REQUIRED", "step ID cannot be empty")
	}
	if s.Name == "" {
		return ErrValidation("STEP_NAME_REQUIRED", "step name cannot be empty")
	}
	if s.Executor == "" {
		return ErrValidation("STEP_EXECUTOR_REQUIRED", "step executor cannot be empty")
	}
	if s.Timeout <= 0 {
		return ErrValidation(CodeInvalidTimeout, "step timeout must be positive")
	}
	if s.MaxAttempts < 1 {
		return ErrValidation("INVALID_MAX_ATTEMPTS", "step must allow at least one attempt")
	}
	for _, dep := range s.Dependencies {
		if dep == s.ID {
			return ErrValidation(CodeSelfDependency,
				fmt.Sprintf("step %s cannot depend on itself", s.ID))
		}
	}
	return nil
}
