package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/eduflow-ai/eduflow/internal/core"
	"github.com/eduflow-ai/eduflow/internal/templates"
)

// fakeExecutor is a scriptable executor for engine tests.
type fakeExecutor struct {
	name    string
	pingErr error
	fn      func(ctx context.Context, step *core.Step) (map[string]interface{}, error)

	mu    sync.Mutex
	calls int
}

func (f *fakeExecutor) Name() string { return f.name }

func (f *fakeExecutor) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeExecutor) Execute(ctx context.Context, step *core.Step) (map[string]interface{}, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, step)
	}
	return map[string]interface{}{"step": step.Name}, nil
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func succeedingExecutor(name string) *fakeExecutor {
	return &fakeExecutor{name: name}
}

// newTestCoordinator builds a coordinator with fast timing and the given
// executors registered.
func newTestCoordinator(t *testing.T, reg *templates.Registry, execs ...core.StepExecutor) *Coordinator {
	t.Helper()
	executors := core.NewExecutorRegistry()
	for _, e := range execs {
		executors.Register(e)
	}
	cfg := DefaultConfig()
	cfg.SchedulerInterval = 10 * time.Millisecond
	cfg.PausePollInterval = 10 * time.Millisecond
	c, err := New(cfg, Dependencies{
		Templates: reg,
		Executors: executors,
		Retry:     FixedRetryPolicy(time.Millisecond),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

// twoStepRegistry registers a template with step "first" and step "second"
// depending on it, both bound to executor "worker".
func twoStepRegistry(t *testing.T) *templates.Registry {
	t.Helper()
	reg := templates.NewRegistry()
	err := reg.Register(&core.WorkflowTemplate{
		Name: "two_step",
		Steps: []core.StepBlueprint{
			{Name: "first", Executor: "worker", Timeout: time.Second},
			{Name: "second", Executor: "worker", Timeout: time.Second, DependsOn: []string{"first"}},
		},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return reg
}

func TestCreateWorkflowUnknownTemplate(t *testing.T) {
	c := newTestCoordinator(t, twoStepRegistry(t), succeedingExecutor("worker"))

	_, err := c.CreateWorkflow("no_such_template", nil, 0)
	if err == nil {
		t.Fatal("expected error for unknown template")
	}
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr.Code != core.CodeUnknownTemplate {
		t.Errorf("expected %s, got %v", core.CodeUnknownTemplate, err)
	}
	if c.store.Len() != 0 {
		t.Error("no partial state should be created on unknown template")
	}
}

func TestExecuteWorkflowEndToEnd(t *testing.T) {
	c := newTestCoordinator(t, twoStepRegistry(t), succeedingExecutor("worker"))

	wf, err := c.CreateWorkflow("two_step", map[string]interface{}{"topic": "fractions"}, 0)
	if err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}

	result, err := c.ExecuteWorkflow(context.Background(), wf.ID)
	if err != nil {
		t.Fatalf("ExecuteWorkflow() error = %v", err)
	}

	if !result.Success {
		t.Error("result.Success = false, want true")
	}
	if result.StepsCompleted != 2 || result.TotalSteps != 2 {
		t.Errorf("steps = %d/%d, want 2/2", result.StepsCompleted, result.TotalSteps)
	}
	for _, name := range []string{"first", "second"} {
		if _, ok := result.StepResults[name]; !ok {
			t.Errorf("result missing step %s", name)
		}
	}

	snap, err := c.GetWorkflowStatus(wf.ID)
	if err != nil {
		t.Fatalf("GetWorkflowStatus() error = %v", err)
	}
	if snap.Status != core.WorkflowStatusCompleted {
		t.Errorf("status = %s, want completed", snap.Status)
	}
	if snap.Progress != 100 {
		t.Errorf("progress = %v, want 100", snap.Progress)
	}
}

func TestExecuteWorkflowNotFound(t *testing.T) {
	c := newTestCoordinator(t, twoStepRegistry(t), succeedingExecutor("worker"))

	_, err := c.ExecuteWorkflow(context.Background(), "missing")
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr.Code != core.CodeWorkflowNotFound {
		t.Errorf("expected %s, got %v", core.CodeWorkflowNotFound, err)
	}
}

func TestExecuteWorkflowRefusesReentry(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	worker := &fakeExecutor{
		name: "worker",
		fn: func(ctx context.Context, step *core.Step) (map[string]interface{}, error) {
			once.Do(func() { close(started) })
			<-release
			return map[string]interface{}{}, nil
		},
	}
	c := newTestCoordinator(t, twoStepRegistry(t), worker)

	wf, err := c.CreateWorkflow("two_step", nil, 0)
	if err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.ExecuteWorkflow(context.Background(), wf.ID)
	}()
	<-started

	_, err = c.ExecuteWorkflow(context.Background(), wf.ID)
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr.Code != core.CodeAlreadyActive {
		t.Errorf("expected %s, got %v", core.CodeAlreadyActive, err)
	}

	close(release)
	<-done
}

func TestDependencyOrdering(t *testing.T) {
	reg := templates.NewRegistry()
	err := reg.Register(&core.WorkflowTemplate{
		Name: "diamond",
		Steps: []core.StepBlueprint{
			{Name: "a", Executor: "worker", Timeout: time.Second},
			{Name: "b", Executor: "worker", Timeout: time.Second, DependsOn: []string{"a"}},
			{Name: "c", Executor: "worker", Timeout: time.Second, DependsOn: []string{"a"}},
			{Name: "d", Executor: "worker", Timeout: time.Second, DependsOn: []string{"b", "c"}},
		},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	c := newTestCoordinator(t, reg, succeedingExecutor("worker"))

	wf, err := c.CreateWorkflow("diamond", nil, 0)
	if err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}
	if _, err := c.ExecuteWorkflow(context.Background(), wf.ID); err != nil {
		t.Fatalf("ExecuteWorkflow() error = %v", err)
	}

	// For every dependency edge, the dependency finished before the
	// dependent started.
	for _, step := range wf.OrderedSteps() {
		for _, depID := range step.Dependencies {
			dep, _ := wf.GetStep(depID)
			if dep.CompletedAt == nil || step.StartedAt == nil {
				t.Fatalf("missing timestamps on %s -> %s", dep.Name, step.Name)
			}
			if dep.CompletedAt.After(*step.StartedAt) {
				t.Errorf("step %s started at %v before dependency %s finished at %v",
					step.Name, step.StartedAt, dep.Name, dep.CompletedAt)
			}
		}
	}
}

func TestRetryExhaustionInvokesExactlyN(t *testing.T) {
	reg := templates.NewRegistry()
	err := reg.Register(&core.WorkflowTemplate{
		Name: "flaky",
		Steps: []core.StepBlueprint{
			{Name: "only", Executor: "worker", Timeout: time.Second, MaxAttempts: 3},
		},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	worker := &fakeExecutor{
		name: "worker",
		fn: func(ctx context.Context, step *core.Step) (map[string]interface{}, error) {
			return nil, fmt.Errorf("executor blew up")
		},
	}
	c := newTestCoordinator(t, reg, worker)

	wf, err := c.CreateWorkflow("flaky", nil, 0)
	if err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}
	_, err = c.ExecuteWorkflow(context.Background(), wf.ID)
	if err == nil {
		t.Fatal("expected execution error")
	}
	if !IsRetryExhausted(err) {
		t.Errorf("expected retry-exhausted error, got %v", err)
	}

	if got := worker.callCount(); got != 3 {
		t.Errorf("executor invoked %d times, want exactly 3", got)
	}
	if wf.Status != core.WorkflowStatusFailed {
		t.Errorf("workflow status = %s, want failed", wf.Status)
	}
	step, _ := wf.GetStep(wf.StepOrder[0])
	if step.Status != core.StepStatusFailed {
		t.Errorf("step status = %s, want failed", step.Status)
	}
	if step.Attempts != 3 {
		t.Errorf("step attempts = %d, want 3", step.Attempts)
	}
	if wf.Error == "" {
		t.Error("workflow error should record the step failure")
	}
}

func TestStepFailureLeavesUnstartedStepsPending(t *testing.T) {
	c := newTestCoordinator(t, twoStepRegistry(t), &fakeExecutor{
		name: "worker",
		fn: func(ctx context.Context, step *core.Step) (map[string]interface{}, error) {
			if step.Name == "first" {
				return nil, fmt.Errorf("first step fails")
			}
			return map[string]interface{}{}, nil
		},
	})

	wf, err := c.CreateWorkflow("two_step", nil, 0)
	if err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}
	if _, err := c.ExecuteWorkflow(context.Background(), wf.ID); err == nil {
		t.Fatal("expected execution error")
	}

	var first, second *core.Step
	for _, step := range wf.OrderedSteps() {
		switch step.Name {
		case "first":
			first = step
		case "second":
			second = step
		}
	}
	if first.Status != core.StepStatusFailed {
		t.Errorf("first step status = %s, want failed", first.Status)
	}
	// Only explicit cancellation forces skipped; failure leaves the rest pending.
	if second.Status != core.StepStatusPending {
		t.Errorf("second step status = %s, want pending", second.Status)
	}
}

func TestTimeoutEnforcedPerAttempt(t *testing.T) {
	reg := templates.NewRegistry()
	err := reg.Register(&core.WorkflowTemplate{
		Name: "slow",
		Steps: []core.StepBlueprint{
			{Name: "only", Executor: "worker", Timeout: 100 * time.Millisecond, MaxAttempts: 1},
		},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	// The executor ignores its context and sleeps well past the timeout.
	worker := &fakeExecutor{
		name: "worker",
		fn: func(ctx context.Context, step *core.Step) (map[string]interface{}, error) {
			time.Sleep(400 * time.Millisecond)
			return map[string]interface{}{}, nil
		},
	}
	c := newTestCoordinator(t, reg, worker)

	wf, err := c.CreateWorkflow("slow", nil, 0)
	if err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}

	start := time.Now()
	_, err = c.ExecuteWorkflow(context.Background(), wf.ID)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected timeout failure")
	}
	if !core.IsCategory(err, core.ErrCatTimeout) {
		t.Errorf("expected timeout category, got %v", err)
	}
	// Failure lands at roughly the timeout, not the executor's sleep.
	if elapsed > 300*time.Millisecond {
		t.Errorf("workflow failed after %v, want ~100ms", elapsed)
	}
	if wf.Status != core.WorkflowStatusFailed {
		t.Errorf("workflow status = %s, want failed", wf.Status)
	}
}

func TestUnknownExecutorFailsWorkflow(t *testing.T) {
	c := newTestCoordinator(t, twoStepRegistry(t)) // no executors registered

	wf, err := c.CreateWorkflow("two_step", nil, 0)
	if err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}
	_, err = c.ExecuteWorkflow(context.Background(), wf.ID)
	if err == nil {
		t.Fatal("expected execution error")
	}
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr.Code != core.CodeUnknownExecutor {
		t.Errorf("expected %s, got %v", core.CodeUnknownExecutor, err)
	}
	if wf.Status != core.WorkflowStatusFailed {
		t.Errorf("workflow status = %s, want failed", wf.Status)
	}
}

func TestCancelWorkflow(t *testing.T) {
	reg := templates.NewRegistry()
	err := reg.Register(&core.WorkflowTemplate{
		Name: "chain",
		Steps: []core.StepBlueprint{
			{Name: "a", Executor: "worker", Timeout: 5 * time.Second},
			{Name: "b", Executor: "worker", Timeout: 5 * time.Second, DependsOn: []string{"a"}},
			{Name: "c", Executor: "worker", Timeout: 5 * time.Second, DependsOn: []string{"b"}},
		},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	worker := &fakeExecutor{
		name: "worker",
		fn: func(ctx context.Context, step *core.Step) (map[string]interface{}, error) {
			once.Do(func() { close(started) })
			<-release
			return map[string]interface{}{"step": step.Name}, nil
		},
	}
	c := newTestCoordinator(t, reg, worker)

	wf, err := c.CreateWorkflow("chain", nil, 0)
	if err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.ExecuteWorkflow(context.Background(), wf.ID)
	}()
	<-started

	if !c.CancelWorkflow(wf.ID, "test cancellation") {
		t.Fatal("CancelWorkflow() = false, want true")
	}
	close(release)
	<-done

	if wf.Status != core.WorkflowStatusCancelled {
		t.Errorf("workflow status = %s, want cancelled", wf.Status)
	}
	for _, step := range wf.OrderedSteps() {
		if step.Status != core.StepStatusSkipped {
			t.Errorf("step %s status = %s, want skipped", step.Name, step.Status)
		}
	}
	// The in-flight step's late result must not overwrite skipped.
	a, _ := wf.GetStep(wf.StepOrder[0])
	if a.Result != nil {
		t.Error("cancelled step kept its discarded result")
	}

	c.mu.Lock()
	_, active := c.active[wf.ID]
	c.mu.Unlock()
	if active {
		t.Error("cancelled workflow still in the active set")
	}
}

func TestCancelWorkflowNoOps(t *testing.T) {
	c := newTestCoordinator(t, twoStepRegistry(t), succeedingExecutor("worker"))

	if c.CancelWorkflow("missing", "x") {
		t.Error("cancelling an unknown workflow should return false")
	}

	wf, err := c.CreateWorkflow("two_step", nil, 0)
	if err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}
	// Still pending: not cancellable.
	if c.CancelWorkflow(wf.ID, "x") {
		t.Error("cancelling a pending workflow should return false")
	}

	if _, err := c.ExecuteWorkflow(context.Background(), wf.ID); err != nil {
		t.Fatalf("ExecuteWorkflow() error = %v", err)
	}
	if c.CancelWorkflow(wf.ID, "x") {
		t.Error("cancelling a completed workflow should return false")
	}
}

func TestPauseHoldsBackNextBatch(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	worker := &fakeExecutor{
		name: "worker",
		fn: func(ctx context.Context, step *core.Step) (map[string]interface{}, error) {
			if step.Name == "first" {
				once.Do(func() { close(started) })
				<-release
			}
			return map[string]interface{}{}, nil
		},
	}
	c := newTestCoordinator(t, twoStepRegistry(t), worker)

	wf, err := c.CreateWorkflow("two_step", nil, 0)
	if err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.ExecuteWorkflow(context.Background(), wf.ID)
	}()
	<-started

	if !c.PauseWorkflow(wf.ID) {
		t.Fatal("PauseWorkflow() = false, want true")
	}
	// Let the in-flight step finish; the second batch must not start.
	close(release)
	time.Sleep(100 * time.Millisecond)

	c.mu.Lock()
	var second *core.Step
	for _, step := range wf.OrderedSteps() {
		if step.Name == "second" {
			second = step
		}
	}
	secondStatus := second.Status
	c.mu.Unlock()
	if secondStatus != core.StepStatusPending {
		t.Errorf("second step status while paused = %s, want pending", secondStatus)
	}

	if !c.ResumeWorkflow(wf.ID) {
		t.Fatal("ResumeWorkflow() = false, want true")
	}
	<-done

	if wf.Status != core.WorkflowStatusCompleted {
		t.Errorf("workflow status = %s, want completed", wf.Status)
	}
}

func TestPauseResumeNoOps(t *testing.T) {
	c := newTestCoordinator(t, twoStepRegistry(t), succeedingExecutor("worker"))
	wf, err := c.CreateWorkflow("two_step", nil, 0)
	if err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}

	if c.PauseWorkflow("missing") {
		t.Error("pausing an unknown workflow should return false")
	}
	if c.PauseWorkflow(wf.ID) {
		t.Error("pausing a pending workflow should return false")
	}
	if c.ResumeWorkflow(wf.ID) {
		t.Error("resuming a non-paused workflow should return false")
	}
}

func TestStatusSnapshotIdempotent(t *testing.T) {
	c := newTestCoordinator(t, twoStepRegistry(t), succeedingExecutor("worker"))
	wf, err := c.CreateWorkflow("two_step", nil, 0)
	if err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}
	if _, err := c.ExecuteWorkflow(context.Background(), wf.ID); err != nil {
		t.Fatalf("ExecuteWorkflow() error = %v", err)
	}

	first, err := c.GetWorkflowStatus(wf.ID)
	if err != nil {
		t.Fatalf("GetWorkflowStatus() error = %v", err)
	}
	second, err := c.GetWorkflowStatus(wf.ID)
	if err != nil {
		t.Fatalf("GetWorkflowStatus() error = %v", err)
	}

	if first.Status != second.Status || first.Progress != second.Progress {
		t.Error("consecutive snapshots differ with no state change")
	}
	if len(first.Steps) != len(second.Steps) {
		t.Fatal("snapshot step counts differ")
	}
	for i := range first.Steps {
		if first.Steps[i] != second.Steps[i] {
			t.Errorf("step snapshot %d differs between reads", i)
		}
	}
}

func TestSchedulerRespectsPriorityAndLimit(t *testing.T) {
	reg := templates.NewRegistry()
	err := reg.Register(&core.WorkflowTemplate{
		Name: "single",
		Steps: []core.StepBlueprint{
			{Name: "only", Executor: "worker", Timeout: time.Second},
		},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	var mu sync.Mutex
	var order []core.WorkflowID
	gate := make(chan struct{})
	worker := &fakeExecutor{
		name: "worker",
		fn: func(ctx context.Context, step *core.Step) (map[string]interface{}, error) {
			<-gate
			return map[string]interface{}{}, nil
		},
	}

	executors := core.NewExecutorRegistry()
	executors.Register(worker)
	cfg := DefaultConfig()
	cfg.MaxConcurrentWorkflows = 1
	cfg.SchedulerInterval = 5 * time.Millisecond
	c, err := New(cfg, Dependencies{
		Templates: reg,
		Executors: executors,
		Retry:     FixedRetryPolicy(time.Millisecond),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var created []core.WorkflowID
	for _, priority := range []int{1, 5, 3} {
		wf, err := c.CreateWorkflow("single", nil, priority)
		if err != nil {
			t.Fatalf("CreateWorkflow() error = %v", err)
		}
		created = append(created, wf.ID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	// With the gate closed, workflows start one at a time; record the
	// order in which they become active, releasing each in turn.
	for i := 0; i < 3; i++ {
		deadline := time.After(2 * time.Second)
		for {
			c.mu.Lock()
			var current core.WorkflowID
			for id := range c.active {
				current = id
			}
			c.mu.Unlock()
			if current != "" {
				mu.Lock()
				order = append(order, current)
				mu.Unlock()
				gate <- struct{}{}
				// Wait for it to leave the active set.
				for {
					c.mu.Lock()
					_, still := c.active[current]
					c.mu.Unlock()
					if !still {
						break
					}
					time.Sleep(time.Millisecond)
				}
				break
			}
			select {
			case <-deadline:
				t.Fatal("timed out waiting for a workflow to start")
			case <-time.After(time.Millisecond):
			}
		}
	}
	cancel()
	c.Wait()

	// Created with priorities [1, 5, 3]; executed as [5, 3, 1].
	want := []core.WorkflowID{created[1], created[2], created[0]}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("execution order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestDispatchNeverExceedsConcurrencyLimit(t *testing.T) {
	reg := templates.NewRegistry()
	err := reg.Register(&core.WorkflowTemplate{
		Name: "single",
		Steps: []core.StepBlueprint{
			{Name: "only", Executor: "worker", Timeout: time.Second},
		},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	release := make(chan struct{})
	worker := &fakeExecutor{
		name: "worker",
		fn: func(ctx context.Context, step *core.Step) (map[string]interface{}, error) {
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()
			<-release
			mu.Lock()
			inFlight--
			mu.Unlock()
			return map[string]interface{}{}, nil
		},
	}

	executors := core.NewExecutorRegistry()
	executors.Register(worker)
	cfg := DefaultConfig()
	cfg.MaxConcurrentWorkflows = 1
	cfg.SchedulerInterval = 5 * time.Millisecond
	c, err := New(cfg, Dependencies{
		Templates: reg,
		Executors: executors,
		Retry:     FixedRetryPolicy(time.Millisecond),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	const total = 5
	for i := 0; i < total; i++ {
		if _, err := c.CreateWorkflow("single", nil, 0); err != nil {
			t.Fatalf("CreateWorkflow() error = %v", err)
		}
	}

	// One dispatch pass must stop at the limit even though the goroutine it
	// spawned has not reached the executor yet: the slot is taken when the
	// workflow is popped, not when it starts running.
	ctx := context.Background()
	c.dispatchQueued(ctx)

	c.mu.Lock()
	activeLen, queuedLen := len(c.active), c.queue.Len()
	c.mu.Unlock()
	if activeLen != 1 {
		t.Fatalf("active after one dispatch pass = %d, want 1", activeLen)
	}
	if queuedLen != total-1 {
		t.Fatalf("queued after one dispatch pass = %d, want %d", queuedLen, total-1)
	}

	// A second pass with the slot still held must not dispatch more.
	c.dispatchQueued(ctx)
	c.mu.Lock()
	activeLen = len(c.active)
	c.mu.Unlock()
	if activeLen != 1 {
		t.Fatalf("active after repeated dispatch = %d, want 1", activeLen)
	}

	// Drain the rest one at a time.
	for completed := 0; completed < total; completed++ {
		select {
		case release <- struct{}{}:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out releasing workflow %d", completed)
		}
		deadline := time.After(2 * time.Second)
		for {
			c.mu.Lock()
			empty := len(c.active) == 0
			c.mu.Unlock()
			if empty {
				break
			}
			select {
			case <-deadline:
				t.Fatalf("timed out waiting for workflow %d to finish", completed)
			case <-time.After(time.Millisecond):
			}
		}
		c.dispatchQueued(ctx)
	}
	c.Wait()

	mu.Lock()
	peak := maxInFlight
	mu.Unlock()
	if peak != 1 {
		t.Errorf("max concurrent executor calls = %d, want 1", peak)
	}
	for _, snap := range c.ListWorkflows() {
		if snap.Status != core.WorkflowStatusCompleted {
			t.Errorf("workflow %s status = %s, want completed", snap.ID, snap.Status)
		}
	}
}

func TestStepFailureWhilePausedFailsWorkflow(t *testing.T) {
	reg := templates.NewRegistry()
	err := reg.Register(&core.WorkflowTemplate{
		Name: "doomed",
		Steps: []core.StepBlueprint{
			{Name: "only", Executor: "worker", Timeout: time.Second, MaxAttempts: 1},
		},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	worker := &fakeExecutor{
		name: "worker",
		fn: func(ctx context.Context, step *core.Step) (map[string]interface{}, error) {
			once.Do(func() { close(started) })
			<-release
			return nil, fmt.Errorf("executor blew up")
		},
	}
	c := newTestCoordinator(t, reg, worker)

	wf, err := c.CreateWorkflow("doomed", nil, 0)
	if err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, execErr := c.ExecuteWorkflow(context.Background(), wf.ID)
		done <- execErr
	}()
	<-started

	// Pause lands while the step is in flight, then the step fails for good.
	if !c.PauseWorkflow(wf.ID) {
		t.Fatal("PauseWorkflow() = false, want true")
	}
	close(release)

	execErr := <-done
	if execErr == nil {
		t.Fatal("expected execution error")
	}

	// The failure must win over the pause: a paused workflow with a dead
	// step has nothing left to resume into.
	c.mu.Lock()
	status := wf.Status
	_, active := c.active[wf.ID]
	c.mu.Unlock()
	if status != core.WorkflowStatusFailed {
		t.Errorf("workflow status = %s, want failed", status)
	}
	if active {
		t.Error("failed workflow still in the active set")
	}
	if wf.Error == "" {
		t.Error("workflow error should record the step failure")
	}
}

func TestProgressNeverDecreasesDuringExecution(t *testing.T) {
	reg := templates.NewRegistry()
	err := reg.Register(&core.WorkflowTemplate{
		Name: "chain",
		Steps: []core.StepBlueprint{
			{Name: "a", Executor: "worker", Timeout: time.Second},
			{Name: "b", Executor: "worker", Timeout: time.Second, DependsOn: []string{"a"}},
			{Name: "c", Executor: "worker", Timeout: time.Second, DependsOn: []string{"b"}},
		},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	gate := make(chan struct{})
	worker := &fakeExecutor{
		name: "worker",
		fn: func(ctx context.Context, step *core.Step) (map[string]interface{}, error) {
			<-gate
			return map[string]interface{}{}, nil
		},
	}
	c := newTestCoordinator(t, reg, worker)

	wf, err := c.CreateWorkflow("chain", nil, 0)
	if err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.ExecuteWorkflow(context.Background(), wf.ID)
	}()

	prev := -1.0
	sample := func() float64 {
		t.Helper()
		snap, err := c.GetWorkflowStatus(wf.ID)
		if err != nil {
			t.Fatalf("GetWorkflowStatus() error = %v", err)
		}
		if snap.Progress < prev {
			t.Fatalf("progress decreased: %v after %v", snap.Progress, prev)
		}
		if snap.Progress < 0 || snap.Progress > 100 {
			t.Fatalf("progress out of range: %v", snap.Progress)
		}
		prev = snap.Progress
		return snap.Progress
	}

	// Steps complete one at a time; between releases, sampled progress must
	// sit at completed/total and never move backwards.
	for i := 0; i < 3; i++ {
		want := float64(i) / 3 * 100
		deadline := time.After(2 * time.Second)
		for sample() < want {
			select {
			case <-deadline:
				t.Fatalf("timed out waiting for progress %v, at %v", want, prev)
			case <-time.After(time.Millisecond):
			}
		}
		if math.Abs(prev-want) > 0.01 {
			t.Errorf("progress before releasing step %d = %v, want %v", i+1, prev, want)
		}
		select {
		case gate <- struct{}{}:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out releasing step %d", i+1)
		}
	}
	<-done

	if got := sample(); got != 100 {
		t.Errorf("final progress = %v, want 100", got)
	}
}

func TestGetMetricsAggregate(t *testing.T) {
	c := newTestCoordinator(t, twoStepRegistry(t), &fakeExecutor{
		name: "worker",
		fn: func(ctx context.Context, step *core.Step) (map[string]interface{}, error) {
			if step.Name == "first" && step.Parameters["fail"] == true {
				return nil, fmt.Errorf("scripted failure")
			}
			return map[string]interface{}{}, nil
		},
	})

	ok, err := c.CreateWorkflow("two_step", nil, 0)
	if err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}
	if _, err := c.ExecuteWorkflow(context.Background(), ok.ID); err != nil {
		t.Fatalf("ExecuteWorkflow() error = %v", err)
	}

	bad, err := c.CreateWorkflow("two_step", map[string]interface{}{"fail": true}, 0)
	if err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}
	if _, err := c.ExecuteWorkflow(context.Background(), bad.ID); err == nil {
		t.Fatal("expected scripted failure")
	}

	if _, err := c.CreateWorkflow("two_step", nil, 0); err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}

	agg := c.GetMetrics()
	if agg.TotalWorkflows != 3 {
		t.Errorf("TotalWorkflows = %d, want 3", agg.TotalWorkflows)
	}
	if agg.Completed != 1 || agg.Failed != 1 {
		t.Errorf("completed/failed = %d/%d, want 1/1", agg.Completed, agg.Failed)
	}
	if agg.Queued != 1 {
		t.Errorf("Queued = %d, want 1", agg.Queued)
	}
	if agg.SuccessRate != 0.5 {
		t.Errorf("SuccessRate = %v, want 0.5", agg.SuccessRate)
	}
	if agg.AvgExecutionTime < 0 {
		t.Errorf("AvgExecutionTime = %v, want >= 0", agg.AvgExecutionTime)
	}
}

func TestGetMetricsEmptyStore(t *testing.T) {
	c := newTestCoordinator(t, twoStepRegistry(t), succeedingExecutor("worker"))
	agg := c.GetMetrics()
	if agg.SuccessRate != 0 {
		t.Errorf("SuccessRate with no workflows = %v, want 0", agg.SuccessRate)
	}
	if agg.AvgExecutionTime != 0 {
		t.Errorf("AvgExecutionTime with no workflows = %v, want 0", agg.AvgExecutionTime)
	}
}
