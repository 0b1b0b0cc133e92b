package metrics_collectors

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/mem"
)

// MemoryStatus is the virtual memory summary reported by getMemoryStatus.
type MemoryStatus struct {
	Total       uint64  `json:"total"`
	Available   uint64  `json:"available"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"usedPercent"`
}

// MemoryMetricCollector collects virtual memory usage.
type MemoryMetricCollector struct {
	Logger zerolog.Logger
	// VirtualMemory overrides the gopsutil lookup in tests.
	VirtualMemory func() (*mem.VirtualMemoryStat, error)
}

// Name returns the identifier for the memory metric collector.
func (m *MemoryMetricCollector) Name() string {
	return "memory"
}

// Collect retrieves the virtual memory summary.
func (m *MemoryMetricCollector) Collect(ctx context.Context) (any, error) {
	m.Logger.Debug().Msg("Collecting memory usage metrics")

	lookup := m.VirtualMemory
	if lookup == nil {
		lookup = mem.VirtualMemory
	}
	memStats, err := lookup()
	if err != nil {
		m.Logger.Error().Err(err).Msg("Failed to retrieve memory statistics")
		return nil, err
	}

	m.Logger.Debug().
		Float64("memory_usage_percent", memStats.UsedPercent).
		Msg("Memory usage collected successfully")

	return MemoryStatus{
		Total:       memStats.Total,
		Available:   memStats.Available,
		Used:        memStats.Used,
		UsedPercent: memStats.UsedPercent,
	}, nil
}

// Unit specifies the unit for memory usage metrics.
func (m *MemoryMetricCollector) Unit() string {
	return "bytes"
}
