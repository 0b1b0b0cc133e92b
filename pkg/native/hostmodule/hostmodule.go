// Package hostmodule is a keep-alive module for Linux hosts. It answers every
// native operation in-process and fires heartbeat events on its own ticker.
package hostmodule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/keepalive-agent/internal/constants"
	"github.com/benmeehan/keepalive-agent/internal/metrics_collectors"
	"github.com/benmeehan/keepalive-agent/pkg/native"
	"github.com/rs/zerolog"
)

// Platform is the platform name this module is registered for.
const Platform = "linux"

const (
	defaultMaxLogs        = 100
	metricsCollectTimeout = 2 * time.Second
)

// Options configures a Module.
type Options struct {
	// Metrics feeds getMemoryStatus and heartbeat event payloads. Optional.
	Metrics *metrics_collectors.MetricsRegistry
	// Uploader flushes cached heartbeats for uploadCachedHeartbeats. Optional.
	Uploader func() (int, error)
	MaxLogs  int
	Now      func() time.Time
}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Module is the Linux keep-alive module.
type Module struct {
	*native.Dispatcher
	logger   zerolog.Logger
	metrics  *metrics_collectors.MetricsRegistry
	uploader func() (int, error)
	maxLogs  int
	now      func() time.Time

	mu             sync.Mutex
	config         native.Params
	interval       time.Duration
	running        bool
	stopCh         chan struct{}
	loopDone       chan struct{}
	heartbeatCount int
	errorCount     int
	lastHeartbeat  time.Time
	lastError      string
	lastErrorAt    time.Time
	startCount     int
	lastStartAt    time.Time
	createdAt      time.Time
	logs           []map[string]any
}

// New creates a Module with every native operation registered.
func New(opts Options, logger zerolog.Logger) *Module {
	if opts.MaxLogs <= 0 {
		opts.MaxLogs = defaultMaxLogs
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := &Module{
		Dispatcher: native.NewDispatcher(),
		logger:     logger,
		metrics:    opts.Metrics,
		uploader:   opts.Uploader,
		maxLogs:    opts.MaxLogs,
		now:        opts.Now,
		config:     native.Params{},
		interval:   constants.DefaultHeartbeatInterval,
		createdAt:  opts.Now(),
	}

	m.HandleWithParams(constants.MethodInit, m.init)
	m.Handle(constants.MethodStart, m.start)
	m.Handle(constants.MethodStop, m.stop)
	m.Handle(constants.MethodGetStatus, m.getStatus)
	m.HandleWithParams(constants.MethodUpdateConfig, m.updateConfig)
	m.Handle(constants.MethodCheckPermissions, m.permissions)
	m.Handle(constants.MethodRequestPermissions, m.permissions)
	m.Register(native.Operation{
		Name:           constants.MethodGetHeartbeatLogs,
		Convention:     native.Either,
		Call:           func(cb native.Callback) { m.getHeartbeatLogs(nil, cb) },
		CallWithParams: m.getHeartbeatLogs,
	})
	m.Handle(constants.MethodGetHeartbeatStats, m.getHeartbeatStats)
	m.Handle(constants.MethodClearHeartbeatLogs, m.clearHeartbeatLogs)
	m.Handle(constants.MethodGetExceptionStats, m.getExceptionStats)
	m.Handle(constants.MethodUploadCachedHeartbeats, m.uploadCachedHeartbeats)
	m.Handle(constants.MethodGetMemoryStatus, m.getMemoryStatus)
	m.Handle(constants.MethodGetRestartStats, m.getRestartStats)

	return m
}

// Running reports whether the heartbeat ticker is active.
func (m *Module) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Close stops the ticker without emitting events.
func (m *Module) Close() {
	m.mu.Lock()
	done := m.stopLoopLocked()
	m.mu.Unlock()
	<-done
}

// ReportError records a module error and emits it on the error channel.
func (m *Module) ReportError(message string) {
	m.mu.Lock()
	m.errorCount++
	m.lastError = message
	m.lastErrorAt = m.now()
	at := m.lastErrorAt
	m.mu.Unlock()

	m.logger.Warn().Str("error", message).Msg("Keep-alive module error")
	m.Emit(constants.EventError, map[string]any{
		"message":   message,
		"timestamp": at.UnixMilli(),
	})
}

func (m *Module) init(params native.Params, cb native.Callback) {
	m.mu.Lock()
	m.config = copyParams(params)
	if interval, ok := millis(params["heartbeatInterval"]); ok {
		m.interval = interval
	}
	interval := m.interval
	m.mu.Unlock()

	m.logger.Info().Dur("interval", interval).Msg("Keep-alive module initialized")
	cb(native.Result{"success": true, "message": "initialized"})
}

func (m *Module) start(cb native.Callback) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		cb(native.Result{"success": true, "message": "already running"})
		return
	}
	if enabled, ok := m.config["enabled"].(bool); ok && !enabled {
		m.mu.Unlock()
		cb(native.Result{"success": false, "message": "keep-alive is disabled"})
		return
	}
	m.startCount++
	m.lastStartAt = m.now()
	m.startLoopLocked()
	m.mu.Unlock()

	m.logger.Info().Msg("Keep-alive module started")
	m.Emit(constants.EventStatusChanged, map[string]any{"isRunning": true})
	cb(native.Result{"success": true, "message": "started"})
}

func (m *Module) stop(cb native.Callback) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		cb(native.Result{"success": true, "message": "not running"})
		return
	}
	done := m.stopLoopLocked()
	m.mu.Unlock()
	<-done

	m.logger.Info().Msg("Keep-alive module stopped")
	m.Emit(constants.EventStatusChanged, map[string]any{"isRunning": false})
	cb(native.Result{"success": true, "message": "stopped"})
}

func (m *Module) getStatus(cb native.Callback) {
	m.mu.Lock()
	result := native.Result{
		"success":        true,
		"isRunning":      m.running,
		"heartbeatCount": m.heartbeatCount,
		"errorCount":     m.errorCount,
	}
	if !m.lastHeartbeat.IsZero() {
		result["lastHeartbeat"] = m.lastHeartbeat.UnixMilli()
	}
	m.mu.Unlock()
	cb(result)
}

func (m *Module) updateConfig(params native.Params, cb native.Callback) {
	m.mu.Lock()
	for k, v := range params {
		m.config[k] = v
	}
	var previous <-chan struct{} = closedChan
	if interval, ok := millis(params["heartbeatInterval"]); ok && interval != m.interval {
		m.interval = interval
		if m.running {
			previous = m.stopLoopLocked()
			m.startLoopLocked()
		}
	}
	m.mu.Unlock()
	<-previous

	cb(native.Result{"success": true, "message": "config updated"})
}

func (m *Module) permissions(cb native.Callback) {
	cb(native.Result{
		"success": true,
		"granted": true,
		"permissions": map[string]any{
			"batteryOptimization": true,
			"autoStart":           true,
			"notification":        true,
		},
	})
}

func (m *Module) getHeartbeatLogs(params native.Params, cb native.Callback) {
	m.mu.Lock()
	n := len(m.logs)
	if count, ok := number(params["count"]); ok && count >= 0 && int(count) < n {
		n = int(count)
	}
	logs := make([]map[string]any, n)
	copy(logs, m.logs[:n])
	m.mu.Unlock()

	cb(native.Result{"success": true, "logs": logs, "count": n})
}

func (m *Module) getHeartbeatStats(cb native.Callback) {
	m.mu.Lock()
	result := native.Result{
		"success":        true,
		"isRunning":      m.running,
		"heartbeatCount": m.heartbeatCount,
		"errorCount":     m.errorCount,
		"interval":       m.interval.Milliseconds(),
		"storedLogs":     len(m.logs),
	}
	if !m.lastHeartbeat.IsZero() {
		result["lastHeartbeat"] = m.lastHeartbeat.UnixMilli()
	}
	m.mu.Unlock()
	cb(result)
}

func (m *Module) clearHeartbeatLogs(cb native.Callback) {
	m.mu.Lock()
	m.logs = nil
	m.mu.Unlock()
	cb(native.Result{"success": true, "message": "logs cleared"})
}

func (m *Module) getExceptionStats(cb native.Callback) {
	m.mu.Lock()
	result := native.Result{
		"success":    true,
		"errorCount": m.errorCount,
		"lastError":  m.lastError,
	}
	if !m.lastErrorAt.IsZero() {
		result["lastErrorAt"] = m.lastErrorAt.UnixMilli()
	}
	m.mu.Unlock()
	cb(result)
}

func (m *Module) uploadCachedHeartbeats(cb native.Callback) {
	if m.uploader == nil {
		cb(native.Result{"success": true, "count": 0})
		return
	}
	count, err := m.uploader()
	if err != nil {
		cb(native.Result{"success": false, "message": err.Error()})
		return
	}
	cb(native.Result{"success": true, "count": count})
}

func (m *Module) getMemoryStatus(cb native.Callback) {
	if m.metrics == nil {
		cb(native.Result{"success": false, "message": "memory metrics unavailable"})
		return
	}
	collector, ok := m.metrics.Get("memory")
	if !ok {
		cb(native.Result{"success": false, "message": "memory metrics unavailable"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), metricsCollectTimeout)
	defer cancel()

	value, err := collector.Collect(ctx)
	if err != nil {
		cb(native.Result{"success": false, "message": fmt.Sprintf("failed to read memory status: %v", err)})
		return
	}

	result := native.Result{"success": true, "memory": value}
	if proc, ok := m.metrics.Get("process"); ok {
		if status, err := proc.Collect(ctx); err == nil {
			result["process"] = status
		}
	}
	cb(result)
}

func (m *Module) getRestartStats(cb native.Callback) {
	m.mu.Lock()
	restarts := m.startCount - 1
	if restarts < 0 {
		restarts = 0
	}
	result := native.Result{
		"success":      true,
		"startCount":   m.startCount,
		"restartCount": restarts,
		"createdAt":    m.createdAt.UnixMilli(),
		"uptime":       m.now().Sub(m.createdAt).Milliseconds(),
	}
	if !m.lastStartAt.IsZero() {
		result["lastStartAt"] = m.lastStartAt.UnixMilli()
	}
	m.mu.Unlock()
	cb(result)
}

func (m *Module) startLoopLocked() {
	m.stopCh = make(chan struct{})
	m.loopDone = make(chan struct{})
	m.running = true
	go m.loop(m.stopCh, m.loopDone, m.interval)
}

// stopLoopLocked signals the running loop to exit and returns a channel that
// is closed once it has. It returns a closed channel when nothing runs.
func (m *Module) stopLoopLocked() <-chan struct{} {
	if !m.running {
		return closedChan
	}
	close(m.stopCh)
	m.running = false
	return m.loopDone
}

func (m *Module) loop(stop <-chan struct{}, done chan<- struct{}, interval time.Duration) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.fire()
		}
	}
}

func (m *Module) fire() {
	var metrics map[string]any
	if m.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), metricsCollectTimeout)
		metrics = m.metrics.CollectAll(ctx)
		cancel()
	}

	m.mu.Lock()
	at := m.now()
	m.heartbeatCount++
	m.lastHeartbeat = at
	entry := map[string]any{
		"timestamp": at.UnixMilli(),
		"status":    constants.StatusSuccess,
		"count":     m.heartbeatCount,
	}
	m.logs = append([]map[string]any{entry}, m.logs...)
	if len(m.logs) > m.maxLogs {
		m.logs = m.logs[:m.maxLogs]
	}
	count := m.heartbeatCount
	m.mu.Unlock()

	data := map[string]any{"timestamp": at.UnixMilli(), "count": count}
	if metrics != nil {
		data["metrics"] = metrics
		if _, ok := metrics["memory"]; !ok {
			m.ReportError("memory status unavailable")
		}
	}

	m.logger.Debug().Int("count", count).Msg("Keep-alive heartbeat fired")
	m.Emit(constants.EventHeartbeatFired, data)
}

func copyParams(params native.Params) native.Params {
	out := make(native.Params, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func millis(v any) (time.Duration, bool) {
	n, ok := number(v)
	if !ok || n <= 0 {
		return 0, false
	}
	return time.Duration(n) * time.Millisecond, true
}
