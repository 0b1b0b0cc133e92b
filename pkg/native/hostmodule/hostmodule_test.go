package hostmodule_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benmeehan/keepalive-agent/internal/constants"
	"github.com/benmeehan/keepalive-agent/internal/metrics_collectors"
	"github.com/benmeehan/keepalive-agent/pkg/native"
	"github.com/benmeehan/keepalive-agent/pkg/native/hostmodule"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func call(t *testing.T, m *hostmodule.Module, name string, params native.Params) native.Result {
	t.Helper()
	op, ok := m.Operation(name)
	require.True(t, ok, "operation %s not registered", name)

	var result native.Result
	require.NoError(t, op.Invoke(params, func(r native.Result) { result = r }))
	require.NotNil(t, result)
	return result
}

func TestModule_RegistersEveryOperation(t *testing.T) {
	m := hostmodule.New(hostmodule.Options{}, zerolog.Nop())
	for _, name := range []string{
		constants.MethodInit, constants.MethodStart, constants.MethodStop, constants.MethodGetStatus,
		constants.MethodUpdateConfig, constants.MethodCheckPermissions, constants.MethodRequestPermissions,
		constants.MethodGetHeartbeatLogs, constants.MethodGetHeartbeatStats, constants.MethodClearHeartbeatLogs,
		constants.MethodGetExceptionStats, constants.MethodUploadCachedHeartbeats, constants.MethodGetMemoryStatus,
		constants.MethodGetRestartStats,
	} {
		_, ok := m.Operation(name)
		assert.True(t, ok, name)
	}
}

func TestModule_StartFiresHeartbeatsAndStop(t *testing.T) {
	m := hostmodule.New(hostmodule.Options{}, zerolog.Nop())
	defer m.Close()

	var fired atomic.Int32
	var statuses []bool
	m.On(constants.EventHeartbeatFired, func(map[string]any) { fired.Add(1) })
	m.On(constants.EventStatusChanged, func(data map[string]any) { statuses = append(statuses, data["isRunning"].(bool)) })

	assert.True(t, call(t, m, constants.MethodInit, native.Params{"heartbeatInterval": float64(10)}).Success())
	assert.True(t, call(t, m, constants.MethodStart, nil).Success())
	assert.True(t, m.Running())

	assert.Eventually(t, func() bool { return fired.Load() >= 2 }, time.Second, 5*time.Millisecond)

	assert.True(t, call(t, m, constants.MethodStop, nil).Success())
	assert.False(t, m.Running())
	assert.Equal(t, []bool{true, false}, statuses)

	status := call(t, m, constants.MethodGetStatus, nil)
	assert.Equal(t, false, status["isRunning"])
	assert.GreaterOrEqual(t, status["heartbeatCount"].(int), 2)
	assert.Contains(t, status, "lastHeartbeat")

	logs := call(t, m, constants.MethodGetHeartbeatLogs, native.Params{"count": 1})
	assert.Equal(t, 1, logs["count"])

	assert.True(t, call(t, m, constants.MethodClearHeartbeatLogs, nil).Success())
	logs = call(t, m, constants.MethodGetHeartbeatLogs, nil)
	assert.Equal(t, 0, logs["count"])
}

func TestModule_StartDisabled(t *testing.T) {
	m := hostmodule.New(hostmodule.Options{}, zerolog.Nop())

	call(t, m, constants.MethodInit, native.Params{"enabled": false})
	result := call(t, m, constants.MethodStart, nil)
	assert.False(t, result.Success())
	assert.False(t, m.Running())
}

func TestModule_RestartStats(t *testing.T) {
	m := hostmodule.New(hostmodule.Options{}, zerolog.Nop())
	defer m.Close()

	call(t, m, constants.MethodInit, native.Params{"heartbeatInterval": float64(time.Hour.Milliseconds())})
	call(t, m, constants.MethodStart, nil)
	call(t, m, constants.MethodStop, nil)
	call(t, m, constants.MethodStart, nil)

	stats := call(t, m, constants.MethodGetRestartStats, nil)
	assert.Equal(t, 2, stats["startCount"])
	assert.Equal(t, 1, stats["restartCount"])
}

func TestModule_UploadCachedHeartbeats(t *testing.T) {
	m := hostmodule.New(hostmodule.Options{Uploader: func() (int, error) { return 7, nil }}, zerolog.Nop())
	result := call(t, m, constants.MethodUploadCachedHeartbeats, nil)
	assert.True(t, result.Success())
	assert.Equal(t, 7, result["count"])

	m = hostmodule.New(hostmodule.Options{Uploader: func() (int, error) { return 0, errors.New("offline") }}, zerolog.Nop())
	result = call(t, m, constants.MethodUploadCachedHeartbeats, nil)
	assert.False(t, result.Success())
	assert.Equal(t, "offline", result.Message())
}

func TestModule_MemoryStatus(t *testing.T) {
	m := hostmodule.New(hostmodule.Options{}, zerolog.Nop())
	assert.False(t, call(t, m, constants.MethodGetMemoryStatus, nil).Success())

	registry := metrics_collectors.NewMetricsRegistry(zerolog.Nop())
	registry.Register(&metrics_collectors.MemoryMetricCollector{
		Logger: zerolog.Nop(),
		VirtualMemory: func() (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{Total: 8, Used: 2, Available: 6, UsedPercent: 25}, nil
		},
	})
	m = hostmodule.New(hostmodule.Options{Metrics: registry}, zerolog.Nop())

	result := call(t, m, constants.MethodGetMemoryStatus, nil)
	assert.True(t, result.Success())
	assert.Equal(t, metrics_collectors.MemoryStatus{Total: 8, Used: 2, Available: 6, UsedPercent: 25}, result["memory"])
}

func TestModule_ReportError(t *testing.T) {
	m := hostmodule.New(hostmodule.Options{}, zerolog.Nop())

	var messages []string
	m.On(constants.EventError, func(data map[string]any) { messages = append(messages, data["message"].(string)) })
	m.ReportError("service killed")

	assert.Equal(t, []string{"service killed"}, messages)
	stats := call(t, m, constants.MethodGetExceptionStats, nil)
	assert.Equal(t, 1, stats["errorCount"])
	assert.Equal(t, "service killed", stats["lastError"])
}

func TestModule_Permissions(t *testing.T) {
	m := hostmodule.New(hostmodule.Options{}, zerolog.Nop())
	assert.Equal(t, true, call(t, m, constants.MethodCheckPermissions, nil)["granted"])
	assert.Equal(t, true, call(t, m, constants.MethodRequestPermissions, nil)["granted"])
}

func TestModule_UpdateConfigRestartsLoop(t *testing.T) {
	m := hostmodule.New(hostmodule.Options{}, zerolog.Nop())
	defer m.Close()

	var fired atomic.Int32
	m.On(constants.EventHeartbeatFired, func(map[string]any) { fired.Add(1) })

	assert.True(t, call(t, m, constants.MethodInit, native.Params{"heartbeatInterval": float64(time.Hour.Milliseconds())}).Success())
	assert.True(t, call(t, m, constants.MethodStart, nil).Success())

	// Concurrent starts and stops must not hold the restart hostage.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			call(t, m, constants.MethodStart, nil)
		}
	}()
	for i := 0; i < 20; i++ {
		interval := float64(10 + i)
		returned := make(chan struct{})
		go func() {
			call(t, m, constants.MethodUpdateConfig, native.Params{"heartbeatInterval": interval})
			close(returned)
		}()
		select {
		case <-returned:
		case <-time.After(time.Second):
			t.Fatal("updateConfig blocked while restarting the heartbeat loop")
		}
	}
	<-done

	assert.True(t, m.Running())
	assert.Eventually(t, func() bool { return fired.Load() >= 2 }, time.Second, 5*time.Millisecond)

	assert.True(t, call(t, m, constants.MethodStop, nil).Success())
	assert.False(t, m.Running())
}
