package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eduflow-ai/eduflow/internal/core"
)

const archiveSchema = `
CREATE TABLE IF NOT EXISTS archived_workflows (
	workflow_id   TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	template_name TEXT NOT NULL,
	status        TEXT NOT NULL,
	priority      INTEGER NOT NULL,
	error         TEXT,
	created_at    TEXT NOT NULL,
	started_at    TEXT,
	completed_at  TEXT,
	steps         TEXT NOT NULL,
	archived_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_archived_template ON archived_workflows(template_name);
CREATE INDEX IF NOT EXISTS idx_archived_status ON archived_workflows(status);
`

// SQLiteArchive persists terminal workflows evicted by retention cleanup,
// so completed runs remain queryable after they leave the live store.
type SQLiteArchive struct {
	db *sql.DB
}

// archivedStep is the JSON shape stored per step in the steps column.
type archivedStep struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Executor    string                 `json:"executor"`
	Status      string                 `json:"status"`
	Attempts    int                    `json:"attempts"`
	Error       string                 `json:"error,omitempty"`
	Result      map[string]interface{} `json:"result,omitempty"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}

// NewSQLiteArchive opens (creating if needed) the archive database at path.
func NewSQLiteArchive(path string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening archive database: %w", err)
	}
	// modernc sqlite is not safe for concurrent writers on one connection pool
	// beyond a single writer; serialize through one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(archiveSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing archive schema: %w", err)
	}
	return &SQLiteArchive{db: db}, nil
}

// Archive inserts a terminal workflow. Archiving the same workflow twice
// replaces the previous row.
func (a *SQLiteArchive) Archive(ctx context.Context, wf *core.Workflow) error {
	steps := make([]archivedStep, 0, len(wf.Steps))
	for _, step := range wf.OrderedSteps() {
		steps = append(steps, archivedStep{
			ID:          string(step.ID),
			Name:        step.Name,
			Executor:    step.Executor,
			Status:      string(step.Status),
			Attempts:    step.Attempts,
			Error:       step.Error,
			Result:      step.Result,
			StartedAt:   step.StartedAt,
			CompletedAt: step.CompletedAt,
		})
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("encoding steps for workflow %s: %w", wf.ID, err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO archived_workflows
		(workflow_id, name, template_name, status, priority, error,
		 created_at, started_at, completed_at, steps, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(wf.ID),
		wf.Name,
		wf.TemplateName,
		string(wf.Status),
		wf.Priority,
		wf.Error,
		wf.CreatedAt.Format(time.RFC3339Nano),
		formatTimePtr(wf.StartedAt),
		formatTimePtr(wf.CompletedAt),
		string(stepsJSON),
		time.Now().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("archiving workflow %s: %w", wf.ID, err)
	}
	return nil
}

// Count returns the number of archived workflows.
func (a *SQLiteArchive) Count(ctx context.Context) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM archived_workflows").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting archived workflows: %w", err)
	}
	return n, nil
}

// Close releases the underlying database handle.
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}
