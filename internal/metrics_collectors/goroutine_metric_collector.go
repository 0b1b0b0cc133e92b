package metrics_collectors

import (
	"context"
	"runtime"
)

// GoroutineMetricCollector reports the number of live goroutines of the agent.
type GoroutineMetricCollector struct{}

func (g *GoroutineMetricCollector) Name() string {
	return "goroutines"
}

func (g *GoroutineMetricCollector) Collect(ctx context.Context) (any, error) {
	return runtime.NumGoroutine(), nil
}

func (g *GoroutineMetricCollector) Unit() string {
	return "count"
}
