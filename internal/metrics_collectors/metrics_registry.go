package metrics_collectors

import (
	"context"
	"sort"
	"sync"

	"github.com/benmeehan/keepalive-agent/internal/utils"
	"github.com/rs/zerolog"
)

const collectWorkers = 4

// MetricsRegistry manages the collectors used for native diagnostics.
type MetricsRegistry struct {
	mu         sync.RWMutex
	collectors map[string]MetricCollector
	workerPool *utils.WorkerPool
	logger     zerolog.Logger
}

// NewMetricsRegistry creates a new MetricsRegistry instance.
func NewMetricsRegistry(logger zerolog.Logger) *MetricsRegistry {
	return &MetricsRegistry{
		collectors: make(map[string]MetricCollector),
		workerPool: utils.NewWorkerPool(collectWorkers),
		logger:     logger,
	}
}

// NewDefaultRegistry registers every host collector.
func NewDefaultRegistry(logger zerolog.Logger) *MetricsRegistry {
	r := NewMetricsRegistry(logger)
	r.Register(&MemoryMetricCollector{Logger: logger})
	r.Register(&CPUMetricCollector{Logger: logger})
	r.Register(&GoroutineMetricCollector{})
	r.Register(NewProcessMetricCollector(logger))
	return r
}

// Register adds a new metric collector to the registry.
func (r *MetricsRegistry) Register(collector MetricCollector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collectors[collector.Name()] = collector
}

// Get returns the collector registered under name.
func (r *MetricsRegistry) Get(name string) (MetricCollector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collectors[name]
	return c, ok
}

// Names returns the registered collector names in sorted order.
func (r *MetricsRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.collectors))
	for name := range r.collectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CollectAll runs every collector concurrently. Failing collectors are
// logged and left out. After Close collectors run inline.
func (r *MetricsRegistry) CollectAll(ctx context.Context) map[string]any {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]any)
	)

	for _, name := range r.Names() {
		c, _ := r.Get(name)
		task := func() {
			defer wg.Done()
			value, err := c.Collect(ctx)
			if err != nil {
				r.logger.Warn().Err(err).Str("metric", c.Name()).Msg("Failed to collect metric")
				return
			}
			mu.Lock()
			out[c.Name()] = value
			mu.Unlock()
		}

		wg.Add(1)
		if !r.workerPool.Submit(task) {
			task()
		}
	}

	wg.Wait()
	return out
}

// Close stops the collection workers.
func (r *MetricsRegistry) Close() {
	r.workerPool.Shutdown()
}
