// Package coordinator implements the workflow engine: template
// instantiation, priority scheduling under a concurrency limit, dependency-
// ordered step execution with per-attempt timeout and retry, cooperative
// pause/cancel, and the periodic optimization and cleanup pass.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/eduflow-ai/eduflow/internal/core"
	"github.com/eduflow-ai/eduflow/internal/logging"
	"github.com/eduflow-ai/eduflow/internal/metrics"
	"github.com/eduflow-ai/eduflow/internal/store"
	"github.com/eduflow-ai/eduflow/internal/templates"
)

// Config holds the coordinator's tunables.
type Config struct {
	MaxConcurrentWorkflows int
	SchedulerInterval      time.Duration
	OptimizationInterval   time.Duration
	Retention              time.Duration
	MinTemplateSamples     int
	StatsReportPath        string
	PausePollInterval      time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentWorkflows: 5,
		SchedulerInterval:      500 * time.Millisecond,
		OptimizationInterval:   300 * time.Second,
		Retention:              7 * 24 * time.Hour,
		MinTemplateSamples:     5,
		PausePollInterval:      200 * time.Millisecond,
	}
}

// Dependencies are the collaborators the coordinator is wired with.
// Templates and Executors are required; the rest default to in-memory or
// no-op implementations.
type Dependencies struct {
	Templates *templates.Registry
	Executors *core.ExecutorRegistry
	Store     core.WorkflowStore
	Archive   core.WorkflowArchive
	Retry     *RetryPolicy
	Metrics   *metrics.Metrics
	Logger    *logging.Logger
}

// Coordinator owns all workflow state and the background loops that drive
// it. All mutation of workflows, the queue, and the active set happens
// under its mutex; step executor calls run outside it.
type Coordinator struct {
	cfg       Config
	templates *templates.Registry
	executors *core.ExecutorRegistry
	store     core.WorkflowStore
	archive   core.WorkflowArchive
	retry     *RetryPolicy
	metrics   *metrics.Metrics
	logger    *logging.Logger

	mu     sync.Mutex
	queue  *workflowQueue
	active map[core.WorkflowID]struct{}

	wg sync.WaitGroup
}

// New creates a coordinator. Templates and Executors must be provided.
func New(cfg Config, deps Dependencies) (*Coordinator, error) {
	if deps.Templates == nil {
		return nil, fmt.Errorf("coordinator requires a template registry")
	}
	if deps.Executors == nil {
		return nil, fmt.Errorf("coordinator requires an executor registry")
	}
	if cfg.MaxConcurrentWorkflows < 1 {
		cfg.MaxConcurrentWorkflows = DefaultConfig().MaxConcurrentWorkflows
	}
	if cfg.SchedulerInterval <= 0 {
		cfg.SchedulerInterval = DefaultConfig().SchedulerInterval
	}
	if cfg.OptimizationInterval <= 0 {
		cfg.OptimizationInterval = DefaultConfig().OptimizationInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultConfig().Retention
	}
	if cfg.MinTemplateSamples < 1 {
		cfg.MinTemplateSamples = DefaultConfig().MinTemplateSamples
	}
	if cfg.PausePollInterval <= 0 {
		cfg.PausePollInterval = DefaultConfig().PausePollInterval
	}

	if deps.Store == nil {
		deps.Store = store.NewMemoryStore()
	}
	if deps.Retry == nil {
		deps.Retry = DefaultRetryPolicy()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNop()
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}

	return &Coordinator{
		cfg:       cfg,
		templates: deps.Templates,
		executors: deps.Executors,
		store:     deps.Store,
		archive:   deps.Archive,
		retry:     deps.Retry,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		queue:     newWorkflowQueue(),
		active:    make(map[core.WorkflowID]struct{}),
	}, nil
}

// CreateWorkflow instantiates a workflow from a registered template, stores
// it, and enqueues it by priority. It returns immediately; execution is
// picked up by the scheduler loop.
func (c *Coordinator) CreateWorkflow(templateName string, params map[string]interface{}, priority int) (*core.Workflow, error) {
	tmpl, err := c.templates.Get(templateName)
	if err != nil {
		return nil, err
	}

	wf, err := tmpl.Instantiate(core.WorkflowID(uuid.NewString()), params)
	if err != nil {
		return nil, err
	}
	wf.Priority = priority

	c.mu.Lock()
	c.store.Put(wf)
	c.queue.Push(wf.ID, wf.Priority)
	c.metrics.QueuedWorkflows.Set(float64(c.queue.Len()))
	c.mu.Unlock()

	c.metrics.WorkflowsCreated.WithLabelValues(templateName).Inc()
	c.logger.Info("workflow created",
		"workflow_id", string(wf.ID),
		"template", templateName,
		"priority", priority,
		"steps", len(wf.Steps))
	return wf, nil
}

// ExecuteWorkflow runs a stored workflow to a terminal state. It refuses
// re-entry while an execution pass for the same ID is in flight. The
// returned error reflects the failing step when execution fails; a
// cancelled workflow returns (nil, nil) with the cancellation recorded in
// its status.
func (c *Coordinator) ExecuteWorkflow(ctx context.Context, id core.WorkflowID) (*Result, error) {
	c.mu.Lock()
	wf, ok := c.store.Get(id)
	if !ok {
		c.mu.Unlock()
		return nil, errWorkflowNotFound(id)
	}
	if _, running := c.active[id]; running {
		c.mu.Unlock()
		return nil, core.ErrState(core.CodeAlreadyActive,
			fmt.Sprintf("workflow %s is already executing", id))
	}
	if err := wf.Start(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.active[id] = struct{}{}
	c.queue.Remove(id)
	c.metrics.QueuedWorkflows.Set(float64(c.queue.Len()))
	c.mu.Unlock()

	return c.runReserved(ctx, wf)
}

// runReserved drives an execution pass for a workflow whose active-set
// slot is already held. The slot is released when the pass ends.
func (c *Coordinator) runReserved(ctx context.Context, wf *core.Workflow) (*Result, error) {
	c.metrics.ActiveWorkflows.Inc()
	defer func() {
		c.mu.Lock()
		delete(c.active, wf.ID)
		c.mu.Unlock()
		c.metrics.ActiveWorkflows.Dec()
	}()

	logger := c.logger.WithWorkflow(string(wf.ID))
	logger.Info("workflow execution started", "template", wf.TemplateName)

	result, err := c.runSteps(ctx, wf, logger)
	c.recordTerminal(wf)
	return result, err
}

// runSteps is the readiness loop: dispatch every eligible step, wait for
// the batch, recompute. Dependency edges alone produce topological order.
func (c *Coordinator) runSteps(ctx context.Context, wf *core.Workflow, logger *logging.Logger) (*Result, error) {
	for {
		if err := c.waitWhilePaused(ctx, wf); err != nil {
			return nil, err
		}

		c.mu.Lock()
		switch wf.Status {
		case core.WorkflowStatusCancelled:
			c.mu.Unlock()
			logger.Info("workflow cancelled", "reason", wf.Error)
			return nil, nil
		case core.WorkflowStatusRunning:
		default:
			status := wf.Status
			c.mu.Unlock()
			return nil, core.ErrState(core.CodeInvalidState,
				fmt.Sprintf("workflow left running state unexpectedly: %s", status))
		}

		ready := wf.ReadySteps()
		if len(ready) == 0 {
			if allCompleted(wf) {
				_ = wf.Complete()
				result := assembleResult(wf)
				c.mu.Unlock()
				logger.Info("workflow completed",
					"duration", wf.Duration().String(),
					"steps", len(wf.Steps))
				return result, nil
			}
			// Remaining pending steps depend on steps that can never
			// complete. Creation-time DAG validation makes this rare, but
			// failing beats polling forever.
			err := core.ErrState(core.CodeExecutionStuck,
				"no eligible steps remain but the workflow is incomplete")
			wf.Fail(err)
			c.mu.Unlock()
			logger.Error("workflow stuck", "error", err)
			return nil, err
		}
		c.mu.Unlock()

		// All eligible steps run concurrently. A plain group (no shared
		// context cancellation) lets sibling steps finish even when one
		// fails, matching batch semantics.
		var g errgroup.Group
		for _, step := range ready {
			step := step
			g.Go(func() error {
				return c.executeStep(ctx, step, logger)
			})
		}
		if err := g.Wait(); err != nil {
			c.mu.Lock()
			// A workflow paused mid-batch must still reach FAILED, or
			// nothing would ever drive it again. Only an already terminal
			// state (cancellation) wins over the step failure.
			if !wf.IsTerminal() {
				wf.Fail(err)
			}
			c.mu.Unlock()
			logger.Error("workflow failed", "error", err)
			return nil, err
		}
	}
}

// executeStep dispatches one step to its executor with per-attempt timeout
// and the configured retry policy. Results arriving after the step was
// skipped by cancellation are discarded.
func (c *Coordinator) executeStep(ctx context.Context, step *core.Step, logger *logging.Logger) error {
	stepLogger := logger.WithStep(string(step.ID)).WithExecutor(step.Executor)

	exec, err := c.executors.Get(step.Executor)
	if err != nil {
		c.mu.Lock()
		if step.Status == core.StepStatusPending {
			_ = step.MarkRunning()
		}
		if step.Status == core.StepStatusRunning {
			_ = step.MarkFailed(err)
		}
		c.mu.Unlock()
		stepLogger.Error("step bound to unknown executor", "error", err)
		return err
	}

	c.mu.Lock()
	if err := step.MarkRunning(); err != nil {
		// Skipped by cancellation before dispatch.
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	stepLogger.Info("step started", "step", step.Name, "timeout", step.Timeout.String())

	var result map[string]interface{}
	attempt := func(ctx context.Context) error {
		c.mu.Lock()
		step.Attempts++
		c.mu.Unlock()

		out, err := c.invokeExecutor(ctx, exec, step)
		if err != nil {
			kind := "error"
			if core.IsCategory(err, core.ErrCatTimeout) {
				kind = "timeout"
			}
			c.metrics.ExecutorFailures.WithLabelValues(step.Executor, kind).Inc()
			return err
		}
		result = out
		return nil
	}
	notify := func(attempt int, err error, delay time.Duration) {
		c.metrics.StepRetries.WithLabelValues(step.Executor).Inc()
		stepLogger.Warn("step attempt failed, retrying",
			"step", step.Name,
			"attempt", attempt,
			"delay", delay.String(),
			"error", err)
	}

	execErr := c.retry.Execute(ctx, step.MaxAttempts, attempt, notify)

	c.mu.Lock()
	defer c.mu.Unlock()
	if execErr != nil {
		if step.Status == core.StepStatusRunning {
			_ = step.MarkFailed(execErr)
		}
		stepLogger.Error("step failed",
			"step", step.Name,
			"attempts", step.Attempts,
			"error", execErr)
		return execErr
	}
	if step.Status != core.StepStatusRunning {
		// Cancelled while the executor call was in flight; drop the result.
		stepLogger.Info("step result discarded after cancellation", "step", step.Name)
		return nil
	}
	_ = step.MarkCompleted(result)
	c.metrics.StepDuration.WithLabelValues(step.Executor).Observe(step.Duration().Seconds())
	stepLogger.Info("step completed",
		"step", step.Name,
		"duration", step.Duration().String(),
		"attempts", step.Attempts)
	return nil
}

// invokeExecutor runs one attempt under the step's timeout. The timeout is
// enforced here rather than trusted to the executor: a call that overruns
// keeps running in the background and its eventual result is discarded.
func (c *Coordinator) invokeExecutor(ctx context.Context, exec core.StepExecutor, step *core.Step) (map[string]interface{}, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, step.Timeout)
	defer cancel()

	type outcome struct {
		result map[string]interface{}
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := exec.Execute(attemptCtx, step)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if errors.Is(out.err, context.DeadlineExceeded) {
				return nil, core.ErrTimeout(
					fmt.Sprintf("step %s timed out after %s", step.Name, step.Timeout)).
					WithCause(out.err)
			}
			return nil, out.err
		}
		return out.result, nil
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, core.ErrTimeout(
			fmt.Sprintf("step %s timed out after %s", step.Name, step.Timeout))
	}
}

// waitWhilePaused blocks until the workflow leaves paused state. Pause is
// cooperative: in-flight steps were already dispatched, only new batches
// are held back.
func (c *Coordinator) waitWhilePaused(ctx context.Context, wf *core.Workflow) error {
	for {
		c.mu.Lock()
		paused := wf.Status == core.WorkflowStatusPaused
		c.mu.Unlock()
		if !paused {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.PausePollInterval):
		}
	}
}

// CancelWorkflow cancels a running or paused workflow. Pending and in-
// flight steps are forced to skipped; an executor call already dispatched
// runs to completion in the background and its result is discarded.
// Returns false if the workflow is unknown or not cancellable.
func (c *Coordinator) CancelWorkflow(id core.WorkflowID, reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	wf, ok := c.store.Get(id)
	if !ok {
		return false
	}
	if err := wf.Cancel(reason); err != nil {
		return false
	}
	c.queue.Remove(id)
	c.metrics.QueuedWorkflows.Set(float64(c.queue.Len()))
	c.logger.Info("workflow cancel requested", "workflow_id", string(id), "reason", reason)
	return true
}

// PauseWorkflow pauses a running workflow. Returns false if the workflow
// is unknown or not running.
func (c *Coordinator) PauseWorkflow(id core.WorkflowID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	wf, ok := c.store.Get(id)
	if !ok {
		return false
	}
	if err := wf.Pause(); err != nil {
		return false
	}
	c.logger.Info("workflow paused", "workflow_id", string(id))
	return true
}

// ResumeWorkflow resumes a paused workflow. Returns false if the workflow
// is unknown or not paused.
func (c *Coordinator) ResumeWorkflow(id core.WorkflowID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	wf, ok := c.store.Get(id)
	if !ok {
		return false
	}
	if err := wf.Resume(); err != nil {
		return false
	}
	c.logger.Info("workflow resumed", "workflow_id", string(id))
	return true
}

// Run is the scheduler loop: while under the concurrency limit, pop the
// highest-priority queued workflow and execute it in the background. It
// returns when the context is cancelled; call Wait to drain in-flight
// workflows.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.SchedulerInterval)
	defer ticker.Stop()

	c.logger.Info("scheduler started",
		"max_concurrent", c.cfg.MaxConcurrentWorkflows,
		"interval", c.cfg.SchedulerInterval.String())

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			c.dispatchQueued(ctx)
		}
	}
}

// dispatchQueued starts queued workflows until the active set is full.
// The active-set slot is reserved in the same critical section as the
// queue pop, so concurrent dispatch passes see each other's reservations
// and the limit holds even before the execution goroutine runs.
func (c *Coordinator) dispatchQueued(ctx context.Context) {
	for {
		c.mu.Lock()
		if len(c.active) >= c.cfg.MaxConcurrentWorkflows {
			c.mu.Unlock()
			return
		}
		id, ok := c.queue.Pop()
		if !ok {
			c.mu.Unlock()
			return
		}
		c.metrics.QueuedWorkflows.Set(float64(c.queue.Len()))
		wf, ok := c.store.Get(id)
		if !ok {
			c.mu.Unlock()
			c.logger.Error("queued workflow missing from store", "workflow_id", string(id))
			continue
		}
		if err := wf.Start(); err != nil {
			c.mu.Unlock()
			c.logger.Error("queued workflow not startable",
				"workflow_id", string(id),
				"error", err)
			continue
		}
		c.active[id] = struct{}{}
		c.mu.Unlock()

		c.wg.Add(1)
		go func(wf *core.Workflow) {
			defer c.wg.Done()
			if _, err := c.runReserved(ctx, wf); err != nil {
				// Failures are recorded on the workflow; the loop must not crash.
				c.logger.Error("workflow execution failed",
					"workflow_id", string(wf.ID),
					"error", err)
			}
		}(wf)
	}
}

// Wait blocks until all scheduler-launched executions finish.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// GetWorkflowStatus returns a point-in-time snapshot of a workflow.
func (c *Coordinator) GetWorkflowStatus(id core.WorkflowID) (*StatusSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	wf, ok := c.store.Get(id)
	if !ok {
		return nil, errWorkflowNotFound(id)
	}
	return snapshotWorkflow(wf), nil
}

// ListWorkflows returns snapshots of every stored workflow.
func (c *Coordinator) ListWorkflows() []*StatusSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	workflows := c.store.List()
	out := make([]*StatusSnapshot, 0, len(workflows))
	for _, wf := range workflows {
		out = append(out, snapshotWorkflow(wf))
	}
	return out
}

// AggregateMetrics is the workflow-level counters summary.
type AggregateMetrics struct {
	TotalWorkflows   int           `json:"total_workflows"`
	Completed        int           `json:"completed"`
	Failed           int           `json:"failed"`
	Cancelled        int           `json:"cancelled"`
	Active           int           `json:"active"`
	Queued           int           `json:"queued"`
	SuccessRate      float64       `json:"success_rate"`
	AvgExecutionTime time.Duration `json:"avg_execution_time"`
}

// GetMetrics aggregates workflow counts, the overall success rate, and the
// average execution time across completed workflows.
func (c *Coordinator) GetMetrics() AggregateMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	agg := AggregateMetrics{
		Active: len(c.active),
		Queued: c.queue.Len(),
	}
	var totalDuration time.Duration
	for _, wf := range c.store.List() {
		agg.TotalWorkflows++
		switch wf.Status {
		case core.WorkflowStatusCompleted:
			agg.Completed++
			totalDuration += wf.Duration()
		case core.WorkflowStatusFailed:
			agg.Failed++
		case core.WorkflowStatusCancelled:
			agg.Cancelled++
		}
	}
	if agg.Completed+agg.Failed > 0 {
		agg.SuccessRate = float64(agg.Completed) / float64(agg.Completed+agg.Failed)
	}
	if agg.Completed > 0 {
		agg.AvgExecutionTime = totalDuration / time.Duration(agg.Completed)
	}
	return agg
}

// Templates exposes the template registry for the API layer.
func (c *Coordinator) Templates() *templates.Registry {
	return c.templates
}

// recordTerminal updates finish metrics once a workflow reaches a terminal
// state.
func (c *Coordinator) recordTerminal(wf *core.Workflow) {
	c.mu.Lock()
	status := wf.Status
	template := wf.TemplateName
	duration := wf.Duration()
	terminal := wf.IsTerminal()
	c.mu.Unlock()

	if !terminal {
		return
	}
	c.metrics.WorkflowsFinished.WithLabelValues(template, string(status)).Inc()
	if status == core.WorkflowStatusCompleted {
		c.metrics.WorkflowDuration.WithLabelValues(template).Observe(duration.Seconds())
	}
}

func allCompleted(wf *core.Workflow) bool {
	for _, step := range wf.Steps {
		if step.Status != core.StepStatusCompleted {
			return false
		}
	}
	return true
}

func errWorkflowNotFound(id core.WorkflowID) *core.DomainError {
	return &core.DomainError{
		Category: core.ErrCatNotFound,
		Code:     core.CodeWorkflowNotFound,
		Message:  fmt.Sprintf("workflow not found: %s", id),
	}
}
