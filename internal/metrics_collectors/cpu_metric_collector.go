package metrics_collectors

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/cpu"
)

// CPUStatus is the host CPU summary included in exception stats.
type CPUStatus struct {
	UsagePercent float64 `json:"usagePercent"`
	LogicalCores int     `json:"logicalCores"`
}

// CPUMetricCollector samples overall CPU usage since the previous call.
type CPUMetricCollector struct {
	Logger zerolog.Logger
	// Percent and Counts override the gopsutil lookups in tests.
	Percent func(ctx context.Context) ([]float64, error)
	Counts  func(ctx context.Context) (int, error)
}

func (c *CPUMetricCollector) Name() string {
	return "cpu"
}

func (c *CPUMetricCollector) Collect(ctx context.Context) (any, error) {
	percent := c.Percent
	if percent == nil {
		percent = func(ctx context.Context) ([]float64, error) {
			return cpu.PercentWithContext(ctx, 0, false)
		}
	}
	counts := c.Counts
	if counts == nil {
		counts = func(ctx context.Context) (int, error) {
			return cpu.CountsWithContext(ctx, true)
		}
	}

	usage, err := percent(ctx)
	if err != nil {
		c.Logger.Error().Err(err).Msg("Failed to get CPU usage")
		return nil, err
	}
	if len(usage) == 0 {
		return nil, errors.New("cpu usage data is empty")
	}

	cores, err := counts(ctx)
	if err != nil {
		c.Logger.Warn().Err(err).Msg("Failed to count CPU cores")
		cores = 0
	}

	c.Logger.Debug().Float64("cpu_usage", usage[0]).Int("cores", cores).Msg("CPU usage collected")
	return CPUStatus{UsagePercent: usage[0], LogicalCores: cores}, nil
}

func (c *CPUMetricCollector) Unit() string {
	return "percentage"
}
