package coordinator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eduflow-ai/eduflow/internal/diagnostics"
)

// HealthState classifies overall coordinator health.
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"   // every executor responds
	HealthDegraded  HealthState = "degraded"  // a minority of executors fail
	HealthUnhealthy HealthState = "unhealthy" // a majority of executors fail
)

// ExecutorHealth is one executor's probe outcome.
type ExecutorHealth struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// HealthReport is the full health-probe response.
type HealthReport struct {
	Status          HealthState                `json:"status"`
	Executors       []ExecutorHealth           `json:"executors"`
	QueueLength     int                        `json:"queue_length"`
	ActiveWorkflows int                        `json:"active_workflows"`
	System          diagnostics.SystemSnapshot `json:"system"`
	CheckedAt       time.Time                  `json:"checked_at"`
}

const healthProbeTimeout = 5 * time.Second

// Health pings every registered executor concurrently and classifies the
// outcome: healthy when all respond, degraded when a minority fail,
// unhealthy when a majority fail.
func (c *Coordinator) Health(ctx context.Context) *HealthReport {
	names := c.executors.List()
	report := &HealthReport{
		Executors: make([]ExecutorHealth, len(names)),
		System:    diagnostics.Collect(ctx),
		CheckedAt: time.Now(),
	}

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			report.Executors[i] = c.probeExecutor(ctx, name)
		}(i, name)
	}
	wg.Wait()

	sort.Slice(report.Executors, func(i, j int) bool {
		return report.Executors[i].Name < report.Executors[j].Name
	})

	failures := 0
	for _, e := range report.Executors {
		if !e.Healthy {
			failures++
		}
	}
	switch {
	case failures == 0:
		report.Status = HealthHealthy
	case failures*2 > len(report.Executors):
		report.Status = HealthUnhealthy
	default:
		report.Status = HealthDegraded
	}

	c.mu.Lock()
	report.QueueLength = c.queue.Len()
	report.ActiveWorkflows = len(c.active)
	c.mu.Unlock()

	return report
}

func (c *Coordinator) probeExecutor(ctx context.Context, name string) ExecutorHealth {
	health := ExecutorHealth{Name: name}

	exec, err := c.executors.Get(name)
	if err != nil {
		health.Error = err.Error()
		return health
	}

	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	start := time.Now()
	err = exec.Ping(probeCtx)
	health.Latency = time.Since(start)
	if err != nil {
		health.Error = err.Error()
		return health
	}
	health.Healthy = true
	return health
}
