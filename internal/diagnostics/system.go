// Package diagnostics collects host-level readings included in health
// responses.
package diagnostics

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemSnapshot is a point-in-time view of host resource usage.
type SystemSnapshot struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	MemoryUsedMB  uint64    `json:"memory_used_mb"`
	Load1         float64   `json:"load_1"`
	Goroutines    int       `json:"goroutines"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collect gathers a best-effort snapshot. Readings that fail are left at
// zero rather than failing the whole health check.
func Collect(ctx context.Context) SystemSnapshot {
	snap := SystemSnapshot{
		Goroutines:  runtime.NumGoroutine(),
		CollectedAt: time.Now(),
	}

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		snap.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.MemoryPercent = vm.UsedPercent
		snap.MemoryUsedMB = vm.Used / (1024 * 1024)
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		snap.Load1 = avg.Load1
	}
	return snap
}
