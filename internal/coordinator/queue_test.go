package coordinator

import (
	"testing"

	"github.com/eduflow-ai/eduflow/internal/core"
)

func TestQueuePriorityOrdering(t *testing.T) {
	q := newWorkflowQueue()
	q.Push("low", 1)
	q.Push("high", 5)
	q.Push("mid", 3)

	want := []core.WorkflowID{"high", "mid", "low"}
	for i, expected := range want {
		id, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop() %d returned empty", i)
		}
		if id != expected {
			t.Errorf("Pop() %d = %s, want %s", i, id, expected)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop() on empty queue returned an entry")
	}
}

func TestQueueFIFOAmongEqualPriorities(t *testing.T) {
	q := newWorkflowQueue()
	q.Push("first", 2)
	q.Push("second", 2)
	q.Push("third", 2)

	for _, expected := range []core.WorkflowID{"first", "second", "third"} {
		id, _ := q.Pop()
		if id != expected {
			t.Errorf("Pop() = %s, want %s", id, expected)
		}
	}
}

func TestQueueRemove(t *testing.T) {
	q := newWorkflowQueue()
	q.Push("a", 1)
	q.Push("b", 2)

	if !q.Remove("a") {
		t.Error("Remove(a) = false, want true")
	}
	if q.Remove("a") {
		t.Error("Remove(a) twice = true, want false")
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}

	ids := q.IDs()
	if len(ids) != 1 || ids[0] != "b" {
		t.Errorf("IDs() = %v, want [b]", ids)
	}
}
