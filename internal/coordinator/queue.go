package coordinator

import (
	"sort"

	"github.com/eduflow-ai/eduflow/internal/core"
)

// workflowQueue orders pending workflows by priority, highest first.
// Ties are broken by insertion order so equal-priority workflows run FIFO.
// Not safe for concurrent use; the coordinator guards it with its mutex.
type workflowQueue struct {
	entries []queueEntry
	nextSeq uint64
}

type queueEntry struct {
	id       core.WorkflowID
	priority int
	seq      uint64
}

func newWorkflowQueue() *workflowQueue {
	return &workflowQueue{}
}

// Push enqueues a workflow ID with the given priority.
func (q *workflowQueue) Push(id core.WorkflowID, priority int) {
	q.entries = append(q.entries, queueEntry{
		id:       id,
		priority: priority,
		seq:      q.nextSeq,
	})
	q.nextSeq++
	sort.SliceStable(q.entries, func(i, j int) bool {
		if q.entries[i].priority != q.entries[j].priority {
			return q.entries[i].priority > q.entries[j].priority
		}
		return q.entries[i].seq < q.entries[j].seq
	})
}

// Pop removes and returns the highest-priority workflow ID.
func (q *workflowQueue) Pop() (core.WorkflowID, bool) {
	if len(q.entries) == 0 {
		return "", false
	}
	head := q.entries[0]
	q.entries = q.entries[1:]
	return head.id, true
}

// Remove deletes a queued workflow ID if present.
func (q *workflowQueue) Remove(id core.WorkflowID) bool {
	for i, e := range q.entries {
		if e.id == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of queued workflows.
func (q *workflowQueue) Len() int {
	return len(q.entries)
}

// IDs returns the queued workflow IDs in dequeue order.
func (q *workflowQueue) IDs() []core.WorkflowID {
	ids := make([]core.WorkflowID, len(q.entries))
	for i, e := range q.entries {
		ids[i] = e.id
	}
	return ids
}
