package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StepBlueprint describes one step of a template. Dependencies reference
// other blueprints in the same template by name.
type StepBlueprint struct {
	Name        string
	Description string
	Executor    string
	Parameters  map[string]interface{}
	Timeout     time.Duration
	MaxAttempts int
	DependsOn   []string
}

// WorkflowTemplate is an immutable, reusable blueprint for a workflow's
// step graph. Templates are registered once and shared across all
// instantiations; Instantiate never mutates the template.
type WorkflowTemplate struct {
	Name        string
	Description string
	Steps       []StepBlueprint
}

// Validate checks template invariants: non-empty identity, unique step
// names, known dependency references, and an acyclic dependency graph.
// Templates are validated at registration so a bad graph fails fast
// instead of stalling a workflow at execution time.
func (t *WorkflowTemplate) Validate() error {
	if t.Name == "" {
		return ErrValidation("TEMPLATE_NAME_REQUIRED", "template name cannot be empty")
	}
	if len(t.Steps) == 0 {
		return ErrValidation(CodeMissingSteps,
			fmt.Sprintf("template %s has no steps", t.Name))
	}

	byName := make(map[string]int, len(t.Steps))
	for i, bp := range t.Steps {
		if bp.Name == "" {
			return ErrValidation("STEP_NAME_REQUIRED",
				fmt.Sprintf("template %s: step %d has no name", t.Name, i))
		}
		if bp.Executor == "" {
			return ErrValidation("STEP_EXECUTOR_REQUIRED",
				fmt.Sprintf("template %s: step %s has no executor", t.Name, bp.Name))
		}
		if _, dup := byName[bp.Name]; dup {
			return ErrValidation(CodeDuplicateStep,
				fmt.Sprintf("template %s: duplicate step name %s", t.Name, bp.Name))
		}
		byName[bp.Name] = i
	}

	for _, bp := range t.Steps {
		for _, dep := range bp.DependsOn {
			if dep == bp.Name {
				return ErrValidation(CodeSelfDependency,
					fmt.Sprintf("template %s: step %s depends on itself", t.Name, bp.Name))
			}
			if _, ok := byName[dep]; !ok {
				return ErrValidation(CodeUnknownStepRef,
					fmt.Sprintf("template %s: step %s depends on unknown step %s", t.Name, bp.Name, dep))
			}
		}
	}

	return t.validateAcyclic(byName)
}

func (t *WorkflowTemplate) validateAcyclic(byName map[string]int) error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var dfs func(name string) bool
	dfs = func(name string) bool {
		visited[name] = true
		recStack[name] = true
		for _, dep := range t.Steps[byName[name]].DependsOn {
			if !visited[dep] {
				if dfs(dep) {
					return true
				}
			} else if recStack[dep] {
				return true
			}
		}
		recStack[name] = false
		return false
	}

	for name := range byName {
		if !visited[name] {
			if dfs(name) {
				return ErrDependencyCycle(
					fmt.Sprintf("template %s: step dependency graph contains a cycle", t.Name))
			}
		}
	}
	return nil
}

// Instantiate produces a fresh Workflow from the template. Each step gets
// a newly generated ID, blueprint dependencies are resolved to those IDs,
// and workflow parameters are merged into every step's parameters with
// blueprint values taking precedence on key conflicts.
func (t *WorkflowTemplate) Instantiate(id WorkflowID, params map[string]interface{}) (*Workflow, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	wf := NewWorkflow(id, t.Name, t.Name, params)
	wf.Description = t.Description

	idByName := make(map[string]StepID, len(t.Steps))
	for _, bp := range t.Steps {
		idByName[bp.Name] = StepID(uuid.NewString())
	}

	for _, bp := range t.Steps {
		step := NewStep(idByName[bp.Name], bp.Name, bp.Executor).
			WithDescription(bp.Description).
			WithParameters(MergeParameters(params, bp.Parameters))
		if bp.Timeout > 0 {
			step.Timeout = bp.Timeout
		}
		if bp.MaxAttempts > 0 {
			step.MaxAttempts = bp.MaxAttempts
		}
		deps := make([]StepID, 0, len(bp.DependsOn))
		for _, dep := range bp.DependsOn {
			deps = append(deps, idByName[dep])
		}
		step.Dependencies = deps
		if err := wf.AddStep(step); err != nil {
			return nil, err
		}
	}

	return wf, nil
}

// MergeParameters combines workflow-level and step-level parameters.
// Step-level values win on key conflicts.
func MergeParameters(workflow, step map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(workflow)+len(step))
	for k, v := range workflow {
		merged[k] = v
	}
	for k, v := range step {
		merged[k] = v
	}
	return merged
}
