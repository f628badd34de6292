// Package store provides workflow state storage: an in-memory store for
// live workflows and a SQLite archive for workflows evicted by retention
// cleanup.
package store

import (
	"sync"

	"github.com/eduflow-ai/eduflow/internal/core"
)

// MemoryStore is the in-memory workflow store. All live workflow state
// lives here; process restart loses it.
type MemoryStore struct {
	mu        sync.RWMutex
	workflows map[core.WorkflowID]*core.Workflow
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows: make(map[core.WorkflowID]*core.Workflow),
	}
}

// Put inserts or replaces a workflow.
func (s *MemoryStore) Put(wf *core.Workflow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[wf.ID] = wf
}

// Get returns a workflow by ID.
func (s *MemoryStore) Get(id core.WorkflowID) (*core.Workflow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[id]
	return wf, ok
}

// Delete removes a workflow by ID.
func (s *MemoryStore) Delete(id core.WorkflowID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workflows, id)
}

// List returns all stored workflows.
func (s *MemoryStore) List() []*core.Workflow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Workflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		out = append(out, wf)
	}
	return out
}

// Len returns the number of stored workflows.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workflows)
}
