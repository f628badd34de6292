package core

import (
	"context"
	"sort"
	"sync"
)

// StepExecutor defines the contract for a named external capability that
// performs a step's actual work. The coordinator never inspects result
// payloads; it only passes them through.
type StepExecutor interface {
	// Name returns the registry key (e.g., "agent_system").
	Name() string

	// Ping checks if the executor's backing service is reachable.
	Ping(ctx context.Context) error

	// Execute performs the step's work and returns an opaque result payload.
	Execute(ctx context.Context, step *Step) (map[string]interface{}, error)
}

// ExecutorRegistry holds the named executors available to workflow steps.
// It is populated at startup and read-only afterwards.
type ExecutorRegistry struct {
	mu        sync.RWMutex
	executors map[string]StepExecutor
}

// NewExecutorRegistry creates an empty registry.
func NewExecutorRegistry() *ExecutorRegistry {
	return &ExecutorRegistry{
		executors: make(map[string]StepExecutor),
	}
}

// Register adds an executor under its name. Registering the same name
// twice replaces the previous entry.
func (r *ExecutorRegistry) Register(e StepExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[e.Name()] = e
}

// Get returns the executor for a name.
func (r *ExecutorRegistry) Get(name string) (StepExecutor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[name]
	if !ok {
		return nil, ErrUnknownExecutor(name)
	}
	return e, nil
}

// List returns the registered executor names in sorted order.
func (r *ExecutorRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered executors.
func (r *ExecutorRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.executors)
}

// WorkflowStore abstracts storage of live workflow state. The coordinator
// owns one store; implementations must be safe for concurrent use.
type WorkflowStore interface {
	// Put inserts or replaces a workflow.
	Put(wf *Workflow)

	// Get returns a workflow by ID.
	Get(id WorkflowID) (*Workflow, bool)

	// Delete removes a workflow by ID.
	Delete(id WorkflowID)

	// List returns all stored workflows.
	List() []*Workflow

	// Len returns the number of stored workflows.
	Len() int
}

// WorkflowArchive receives terminal workflows evicted by the retention
// cleanup pass.
type WorkflowArchive interface {
	// Archive persists a terminal workflow.
	Archive(ctx context.Context, wf *Workflow) error

	// Close releases archive resources.
	Close() error
}
