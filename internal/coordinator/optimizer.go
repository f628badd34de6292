package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/renameio/v2"

	"github.com/eduflow-ai/eduflow/internal/core"
)

// ExecutorStats summarizes recorded step durations for one executor.
type ExecutorStats struct {
	Executor    string        `json:"executor"`
	Samples     int           `json:"samples"`
	Failures    int           `json:"failures"`
	AvgDuration time.Duration `json:"avg_duration"`
	MinDuration time.Duration `json:"min_duration"`
	MaxDuration time.Duration `json:"max_duration"`
}

// TemplateStats summarizes outcomes for one template. Stats are only
// emitted once the template has accumulated the minimum sample size.
type TemplateStats struct {
	Template    string        `json:"template"`
	Samples     int           `json:"samples"`
	SuccessRate float64       `json:"success_rate"`
	AvgDuration time.Duration `json:"avg_duration"`
}

// OptimizationReport is the output of one optimizer pass.
type OptimizationReport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Executors   []ExecutorStats `json:"executors"`
	Templates   []TemplateStats `json:"templates"`
	Removed     int             `json:"removed_workflows"`
}

// RunOptimizer runs the periodic optimization pass until the context is
// cancelled: executor duration statistics, per-template success rates,
// and retention cleanup of old terminal workflows.
func (c *Coordinator) RunOptimizer(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.OptimizationInterval)
	defer ticker.Stop()

	c.logger.Info("optimizer started",
		"interval", c.cfg.OptimizationInterval.String(),
		"retention", c.cfg.Retention.String())

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("optimizer stopping")
			return ctx.Err()
		case <-ticker.C:
			report := c.Optimize(ctx)
			c.logger.Info("optimization pass finished",
				"executors", len(report.Executors),
				"templates", len(report.Templates),
				"removed", report.Removed)
		}
	}
}

// Optimize performs one optimization pass and returns its report. When a
// stats report path is configured the report is also written atomically
// to disk.
func (c *Coordinator) Optimize(ctx context.Context) *OptimizationReport {
	c.mu.Lock()
	workflows := c.store.List()
	c.mu.Unlock()

	report := &OptimizationReport{
		GeneratedAt: time.Now(),
		Executors:   executorStats(workflows),
		Templates:   c.templateStats(workflows),
	}
	report.Removed = c.cleanup(ctx, workflows)

	if c.cfg.StatsReportPath != "" {
		if err := writeReport(c.cfg.StatsReportPath, report); err != nil {
			c.logger.Warn("writing optimization report", "path", c.cfg.StatsReportPath, "error", err)
		}
	}
	return report
}

// executorStats aggregates per-step durations by executor across all
// recorded steps that ran to a terminal state.
func executorStats(workflows []*core.Workflow) []ExecutorStats {
	type acc struct {
		samples  int
		failures int
		total    time.Duration
		min      time.Duration
		max      time.Duration
	}
	byExecutor := make(map[string]*acc)

	for _, wf := range workflows {
		for _, step := range wf.OrderedSteps() {
			if step.StartedAt == nil || step.CompletedAt == nil {
				continue
			}
			d := step.CompletedAt.Sub(*step.StartedAt)
			a, ok := byExecutor[step.Executor]
			if !ok {
				a = &acc{min: d, max: d}
				byExecutor[step.Executor] = a
			}
			a.samples++
			a.total += d
			if d < a.min {
				a.min = d
			}
			if d > a.max {
				a.max = d
			}
			if step.Status == core.StepStatusFailed {
				a.failures++
			}
		}
	}

	stats := make([]ExecutorStats, 0, len(byExecutor))
	for name, a := range byExecutor {
		stats = append(stats, ExecutorStats{
			Executor:    name,
			Samples:     a.samples,
			Failures:    a.failures,
			AvgDuration: a.total / time.Duration(a.samples),
			MinDuration: a.min,
			MaxDuration: a.max,
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Executor < stats[j].Executor })
	return stats
}

// templateStats computes success rate and average duration per template
// from terminal workflows, once the minimum sample size is reached.
func (c *Coordinator) templateStats(workflows []*core.Workflow) []TemplateStats {
	type acc struct {
		samples   int
		completed int
		total     time.Duration
	}
	byTemplate := make(map[string]*acc)

	for _, wf := range workflows {
		if !wf.IsTerminal() {
			continue
		}
		a, ok := byTemplate[wf.TemplateName]
		if !ok {
			a = &acc{}
			byTemplate[wf.TemplateName] = a
		}
		a.samples++
		if wf.Status == core.WorkflowStatusCompleted {
			a.completed++
			a.total += wf.Duration()
		}
	}

	stats := make([]TemplateStats, 0, len(byTemplate))
	for name, a := range byTemplate {
		if a.samples < c.cfg.MinTemplateSamples {
			continue
		}
		entry := TemplateStats{
			Template:    name,
			Samples:     a.samples,
			SuccessRate: float64(a.completed) / float64(a.samples),
		}
		if a.completed > 0 {
			entry.AvgDuration = a.total / time.Duration(a.completed)
		}
		stats = append(stats, entry)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Template < stats[j].Template })
	return stats
}

// cleanup evicts terminal workflows older than the retention window,
// archiving each one first when an archive is configured.
func (c *Coordinator) cleanup(ctx context.Context, workflows []*core.Workflow) int {
	cutoff := time.Now().Add(-c.cfg.Retention)
	removed := 0

	for _, wf := range workflows {
		c.mu.Lock()
		expired := wf.IsTerminal() && wf.CompletedAt != nil && wf.CompletedAt.Before(cutoff)
		c.mu.Unlock()
		if !expired {
			continue
		}

		if c.archive != nil {
			if err := c.archive.Archive(ctx, wf); err != nil {
				// Keep the workflow in memory; retry on the next pass.
				c.logger.Warn("archiving expired workflow",
					"workflow_id", string(wf.ID), "error", err)
				continue
			}
		}

		c.mu.Lock()
		c.store.Delete(wf.ID)
		c.mu.Unlock()
		removed++
		c.logger.Info("expired workflow removed",
			"workflow_id", string(wf.ID),
			"status", string(wf.Status))
	}
	return removed
}

// writeReport writes the report atomically so a crash mid-write never
// leaves a truncated file.
func writeReport(path string, report *OptimizationReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
