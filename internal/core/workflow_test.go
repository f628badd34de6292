package core

import (
	"errors"
	"testing"
)

func TestWorkflow_AddStep(t *testing.T) {
	wf := NewWorkflow("w1", "content_generation", "content_generation", nil)
	if err := wf.AddStep(nil); err == nil {
		t.Fatalf("expected error adding nil step")
	}

	step := NewStep("s1", "outline", "agent_system")
	if err := wf.AddStep(step); err != nil {
		t.Fatalf("unexpected error adding step: %v", err)
	}
	if err := wf.AddStep(step); err == nil {
		t.Fatalf("expected error adding duplicate step")
	}
}

func TestWorkflow_Progress(t *testing.T) {
	wf := NewWorkflow("w1", "content_generation", "content_generation", nil)
	if wf.Progress() != 0 {
		t.Fatalf("expected 0 progress with no steps")
	}

	s1 := NewStep("s1", "outline", "agent_system")
	s2 := NewStep("s2", "draft", "swarm_controller")
	_ = wf.AddStep(s1)
	_ = wf.AddStep(s2)

	if wf.Progress() != 0 {
		t.Fatalf("expected 0 progress with no completed steps")
	}
	s1.Status = StepStatusCompleted
	if wf.Progress() != 50 {
		t.Fatalf("expected 50 progress, got %.1f", wf.Progress())
	}
	s2.Status = StepStatusSkipped
	if wf.Progress() != 50 {
		t.Fatalf("skipped steps must not count toward progress, got %.1f", wf.Progress())
	}
	s2.Status = StepStatusCompleted
	if wf.Progress() != 100 {
		t.Fatalf("expected 100 progress, got %.1f", wf.Progress())
	}
}

func TestWorkflow_ReadySteps(t *testing.T) {
	wf := NewWorkflow("w1", "content_generation", "content_generation", nil)
	s1 := NewStep("s1", "outline", "agent_system")
	s2 := NewStep("s2", "draft", "swarm_controller").WithDependencies("s1")
	s3 := NewStep("s3", "quiz", "agent_system").WithDependencies("s1")
	_ = wf.AddStep(s1)
	_ = wf.AddStep(s2)
	_ = wf.AddStep(s3)

	ready := wf.ReadySteps()
	if len(ready) != 1 || ready[0].ID != "s1" {
		t.Fatalf("expected only s1 ready, got %d steps", len(ready))
	}

	s1.Status = StepStatusCompleted
	ready = wf.ReadySteps()
	if len(ready) != 2 {
		t.Fatalf("expected s2 and s3 ready, got %d steps", len(ready))
	}
}

func TestWorkflow_StateTransitions(t *testing.T) {
	wf := NewWorkflow("w1", "content_generation", "content_generation", nil)

	if err := wf.Pause(); err == nil {
		t.Fatalf("expected error pausing pending workflow")
	}

	if err := wf.Start(); err != nil {
		t.Fatalf("unexpected error starting workflow: %v", err)
	}
	if wf.Status != WorkflowStatusRunning || wf.StartedAt == nil {
		t.Fatalf("expected running workflow with start time")
	}

	if err := wf.Pause(); err != nil {
		t.Fatalf("unexpected error pausing workflow: %v", err)
	}
	if err := wf.Resume(); err != nil {
		t.Fatalf("unexpected error resuming workflow: %v", err)
	}

	if err := wf.Complete(); err != nil {
		t.Fatalf("unexpected error completing workflow: %v", err)
	}
	if !wf.IsTerminal() || wf.CompletedAt == nil {
		t.Fatalf("expected terminal workflow with end time")
	}

	if err := wf.Start(); err == nil {
		t.Fatalf("expected error restarting completed workflow")
	}
}

func TestWorkflow_Fail(t *testing.T) {
	wf := NewWorkflow("w1", "content_generation", "content_generation", nil)
	_ = wf.Start()
	wf.Fail(errors.New("executor exploded"))
	if wf.Status != WorkflowStatusFailed {
		t.Fatalf("expected failed status, got %s", wf.Status)
	}
	if wf.Error != "executor exploded" {
		t.Fatalf("expected error recorded, got %q", wf.Error)
	}
}

func TestWorkflow_Cancel(t *testing.T) {
	wf := NewWorkflow("w1", "content_generation", "content_generation", nil)
	s1 := NewStep("s1", "outline", "agent_system")
	s2 := NewStep("s2", "draft", "swarm_controller")
	s3 := NewStep("s3", "quiz", "agent_system")
	_ = wf.AddStep(s1)
	_ = wf.AddStep(s2)
	_ = wf.AddStep(s3)

	if err := wf.Cancel("user request"); err == nil {
		t.Fatalf("expected error cancelling pending workflow")
	}

	_ = wf.Start()
	_ = s1.MarkRunning()

	if err := wf.Cancel("user request"); err != nil {
		t.Fatalf("unexpected error cancelling workflow: %v", err)
	}
	if wf.Status != WorkflowStatusCancelled {
		t.Fatalf("expected cancelled status, got %s", wf.Status)
	}
	for _, s := range []*Step{s1, s2, s3} {
		if s.Status != StepStatusSkipped {
			t.Fatalf("expected step %s skipped, got %s", s.ID, s.Status)
		}
		if s.CompletedAt == nil {
			t.Fatalf("expected step %s end time set", s.ID)
		}
	}
}

func TestWorkflow_Validate(t *testing.T) {
	wf := NewWorkflow("w1", "content_generation", "content_generation", nil)
	s1 := NewStep("s1", "outline", "agent_system")
	_ = wf.AddStep(s1)
	if err := wf.Validate(); err != nil {
		t.Fatalf("unexpected error validating workflow: %v", err)
	}

	unknownDep := NewWorkflow("w2", "content_generation", "content_generation", nil)
	_ = unknownDep.AddStep(NewStep("s1", "outline", "agent_system").WithDependencies("ghost"))
	err := unknownDep.Validate()
	if !errors.Is(err, ErrValidation(CodeUnknownStepRef, "")) {
		t.Fatalf("expected unknown step reference error, got %v", err)
	}
}

func TestWorkflow_ValidateCycle(t *testing.T) {
	wf := NewWorkflow("w1", "content_generation", "content_generation", nil)
	_ = wf.AddStep(NewStep("s1", "outline", "agent_system").WithDependencies("s2"))
	_ = wf.AddStep(NewStep("s2", "draft", "swarm_controller").WithDependencies("s1"))

	err := wf.Validate()
	if err == nil {
		t.Fatalf("expected cycle detection error")
	}
	var domErr *DomainError
	if !errors.As(err, &domErr) || domErr.Code != CodeDependencyCycle {
		t.Fatalf("expected DEPENDENCY_CYCLE error, got %v", err)
	}
}
