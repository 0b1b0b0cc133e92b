package metrics_collectors

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/process"
)

// ProcessStatus describes the agent's own process.
type ProcessStatus struct {
	PID       int32     `json:"pid"`
	RSS       uint64    `json:"rss"`
	CPUUsage  float64   `json:"cpuUsage"`
	StartedAt time.Time `json:"startedAt"`
}

// ProcessMetricCollector collects CPU and memory metrics of the running agent.
type ProcessMetricCollector struct {
	Logger zerolog.Logger
	PID    int32
}

// NewProcessMetricCollector creates a collector for the current process.
func NewProcessMetricCollector(logger zerolog.Logger) *ProcessMetricCollector {
	return &ProcessMetricCollector{Logger: logger, PID: int32(os.Getpid())}
}

func (p *ProcessMetricCollector) Name() string {
	return "process"
}

func (p *ProcessMetricCollector) Collect(ctx context.Context) (any, error) {
	proc, err := process.NewProcessWithContext(ctx, p.PID)
	if err != nil {
		p.Logger.Error().Err(err).Int32("pid", p.PID).Msg("Failed to open process")
		return nil, err
	}

	status := ProcessStatus{PID: p.PID}

	if memInfo, err := proc.MemoryInfoWithContext(ctx); err == nil {
		status.RSS = memInfo.RSS
	} else {
		p.Logger.Warn().Err(err).Int32("pid", p.PID).Msg("Failed to get memory information")
	}

	if cpuPercent, err := proc.CPUPercentWithContext(ctx); err == nil {
		status.CPUUsage = cpuPercent
	} else {
		p.Logger.Warn().Err(err).Int32("pid", p.PID).Msg("Failed to get CPU usage")
	}

	if created, err := proc.CreateTimeWithContext(ctx); err == nil {
		status.StartedAt = time.UnixMilli(created)
	} else {
		p.Logger.Warn().Err(err).Int32("pid", p.PID).Msg("Failed to get process start time")
	}

	return status, nil
}

func (p *ProcessMetricCollector) Unit() string {
	return "bytes"
}
