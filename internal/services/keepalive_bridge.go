package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/keepalive-agent/internal/constants"
	"github.com/benmeehan/keepalive-agent/internal/models"
	"github.com/benmeehan/keepalive-agent/internal/utils"
	"github.com/benmeehan/keepalive-agent/pkg/events"
	"github.com/benmeehan/keepalive-agent/pkg/native"
	"github.com/rs/zerolog"
)

// KeepAliveBridge coordinates the platform keep-alive module. Every operation
// other than Init and Destroy requires a successful Init.
type KeepAliveBridge struct {
	host        native.Host
	pluginID    string
	platforms   map[string]struct{}
	callTimeout time.Duration
	logger      zerolog.Logger
	now         func() time.Time

	mu            sync.RWMutex
	state         models.BridgeState
	module        native.Module
	config        models.KeepAliveConfig
	status        models.BridgeStatus
	unsubscribers []func()

	heartbeats    *events.Channel[models.NativeHeartbeatEvent]
	statusChanges *events.Channel[models.BridgeStatus]
	nativeErrors  *events.Channel[models.NativeErrorEvent]
	configChanges *events.Channel[models.KeepAliveConfig]
}

// NewKeepAliveBridge initializes a new KeepAliveBridge.
func NewKeepAliveBridge(host native.Host, pluginID string, platforms []string, callTimeout time.Duration, logger zerolog.Logger) *KeepAliveBridge {
	if pluginID == "" {
		pluginID = constants.PluginID
	}
	if len(platforms) == 0 {
		platforms = constants.DefaultSupportedPlatforms
	}
	if callTimeout <= 0 {
		callTimeout = constants.DefaultNativeCallTimeout
	}
	return &KeepAliveBridge{
		host:          host,
		pluginID:      pluginID,
		platforms:     utils.SliceToSet(platforms),
		callTimeout:   callTimeout,
		logger:        logger,
		now:           time.Now,
		state:         models.BridgeUninitialized,
		config:        models.DefaultKeepAliveConfig(),
		heartbeats:    events.NewChannel[models.NativeHeartbeatEvent]("keepalive-heartbeat"),
		statusChanges: events.NewChannel[models.BridgeStatus]("keepalive-status"),
		nativeErrors:  events.NewChannel[models.NativeErrorEvent]("keepalive-error"),
		configChanges: events.NewChannel[models.KeepAliveConfig]("keepalive-config"),
	}
}

// Heartbeats re-publishes native heartbeat-fired events.
func (b *KeepAliveBridge) Heartbeats() *events.Channel[models.NativeHeartbeatEvent] {
	return b.heartbeats
}

// StatusChanges publishes the bridge status whenever the running state changes.
func (b *KeepAliveBridge) StatusChanges() *events.Channel[models.BridgeStatus] {
	return b.statusChanges
}

// Errors re-publishes native error events.
func (b *KeepAliveBridge) Errors() *events.Channel[models.NativeErrorEvent] {
	return b.nativeErrors
}

// ConfigChanges publishes the merged config after UpdateConfig succeeds.
func (b *KeepAliveBridge) ConfigChanges() *events.Channel[models.KeepAliveConfig] {
	return b.configChanges
}

// State returns the lifecycle state.
func (b *KeepAliveBridge) State() models.BridgeState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// IsReady reports whether Init has completed successfully.
func (b *KeepAliveBridge) IsReady() bool {
	return b.State() == models.BridgeReady
}

// Config returns the merged configuration in effect.
func (b *KeepAliveBridge) Config() models.KeepAliveConfig {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config
}

// Status returns the cached mirror of the native status.
func (b *KeepAliveBridge) Status() models.BridgeStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// KeepAliveStatus reports active, inactive or unknown for heartbeat snapshots.
func (b *KeepAliveBridge) KeepAliveStatus() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	switch {
	case b.state != models.BridgeReady:
		return constants.KeepAliveUnknown
	case b.status.IsRunning:
		return constants.KeepAliveActive
	default:
		return constants.KeepAliveInactive
	}
}

// Init resolves the native module, merges patch over the defaults and runs
// the native init. Native events are relayed only after init succeeds.
func (b *KeepAliveBridge) Init(ctx context.Context, patch models.KeepAliveConfigPatch) (native.Result, error) {
	b.mu.Lock()
	if b.state == models.BridgeReady || b.state == models.BridgeInitializing {
		b.mu.Unlock()
		return nil, newBridgeError(constants.CodeAlreadyInitialized, "keep-alive bridge is already initialized")
	}

	platform := b.host.Platform()
	if _, ok := b.platforms[platform]; !ok {
		b.mu.Unlock()
		b.logger.Warn().Str("platform", platform).Msg("Keep-alive is not supported on this platform")
		return nil, newBridgeError(constants.CodePlatformNotSupported, fmt.Sprintf("platform %q is not supported", platform))
	}

	module, ok := b.host.Load(b.pluginID)
	if !ok || module == nil {
		b.mu.Unlock()
		b.logger.Error().Str("plugin", b.pluginID).Msg("Keep-alive plugin not found")
		return nil, newBridgeError(constants.CodePluginMissing, fmt.Sprintf("plugin %s is not available", b.pluginID))
	}

	config := models.DefaultKeepAliveConfig().Merge(patch)
	b.state = models.BridgeInitializing
	b.module = module
	b.mu.Unlock()

	result, err := b.invoke(ctx, module, constants.MethodInit, configParams(config))
	if err == nil && !result.Success() {
		err = newBridgeError(constants.CodeNativeFailure, "native init failed: "+result.Message())
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.state = models.BridgeUninitialized
		b.module = nil
		b.logger.Error().Err(err).Msg("Keep-alive bridge init failed")
		return result, err
	}

	b.config = config
	b.state = models.BridgeReady
	b.unsubscribers = []func(){
		module.On(constants.EventHeartbeatFired, b.onHeartbeatFired),
		module.On(constants.EventStatusChanged, b.onStatusChanged),
		module.On(constants.EventError, b.onNativeError),
	}

	b.logger.Info().Str("plugin", b.pluginID).Str("platform", platform).Msg("Keep-alive bridge initialized")
	return result, nil
}

// Start starts the native keep-alive service.
func (b *KeepAliveBridge) Start(ctx context.Context) (native.Result, error) {
	result, err := b.CallNativeMethod(ctx, constants.MethodStart, nil)
	if err == nil && result.Success() {
		b.setRunning(true)
		b.logger.Info().Msg("Keep-alive service started")
	}
	return result, err
}

// Stop stops the native keep-alive service.
func (b *KeepAliveBridge) Stop(ctx context.Context) (native.Result, error) {
	result, err := b.CallNativeMethod(ctx, constants.MethodStop, nil)
	if err == nil && result.Success() {
		b.setRunning(false)
		b.logger.Info().Msg("Keep-alive service stopped")
	}
	return result, err
}

// UpdateConfig merges patch into the current config and pushes it to the
// native module. The local config changes only on success, and the merged
// config is then published on ConfigChanges.
func (b *KeepAliveBridge) UpdateConfig(ctx context.Context, patch models.KeepAliveConfigPatch) (native.Result, error) {
	result, merged, err := b.updateConfig(ctx, patch)
	if err == nil && result.Success() {
		b.configChanges.Publish(merged)
	}
	return result, err
}

// SyncSchedulerConfig pushes the heartbeat scheduler's own config to the
// native module. Unlike UpdateConfig it does not publish on ConfigChanges.
func (b *KeepAliveBridge) SyncSchedulerConfig(ctx context.Context, patch models.KeepAliveConfigPatch) (native.Result, error) {
	result, _, err := b.updateConfig(ctx, patch)
	return result, err
}

func (b *KeepAliveBridge) updateConfig(ctx context.Context, patch models.KeepAliveConfigPatch) (native.Result, models.KeepAliveConfig, error) {
	merged := b.Config().Merge(patch)
	result, err := b.CallNativeMethod(ctx, constants.MethodUpdateConfig, configParams(merged))
	if err == nil && result.Success() {
		b.mu.Lock()
		b.config = merged
		b.mu.Unlock()
		b.logger.Info().Int64("heartbeat_interval_ms", merged.HeartbeatInterval).Msg("Keep-alive config updated")
	}
	return result, merged, err
}

// GetStatus queries the native status and folds it into the cached mirror.
func (b *KeepAliveBridge) GetStatus(ctx context.Context) (native.Result, error) {
	result, err := b.CallNativeMethod(ctx, constants.MethodGetStatus, nil)
	if err != nil || !result.Success() {
		return result, err
	}

	b.mu.Lock()
	b.mergeStatusLocked(result)
	b.mu.Unlock()
	return result, nil
}

// mergeStatusLocked folds the status fields present in data into the mirror.
func (b *KeepAliveBridge) mergeStatusLocked(data map[string]any) {
	if running, ok := data["isRunning"].(bool); ok {
		b.status.IsRunning = running
	}
	if n, ok := toInt(data["heartbeatCount"]); ok {
		b.status.HeartbeatCount = n
	}
	if n, ok := toInt(data["errorCount"]); ok {
		b.status.ErrorCount = n
	}
	if ms, ok := toInt(data["lastHeartbeat"]); ok && ms > 0 {
		b.status.LastHeartbeat = time.UnixMilli(int64(ms))
	}
}

// CheckPermissions asks the native module which keep-alive permissions are granted.
func (b *KeepAliveBridge) CheckPermissions(ctx context.Context) (native.Result, error) {
	return b.CallNativeMethod(ctx, constants.MethodCheckPermissions, nil)
}

// RequestPermissions asks the native module to request missing permissions.
func (b *KeepAliveBridge) RequestPermissions(ctx context.Context) (native.Result, error) {
	return b.CallNativeMethod(ctx, constants.MethodRequestPermissions, nil)
}

// GetHeartbeatLogs returns up to count native heartbeat logs; count <= 0 means all.
func (b *KeepAliveBridge) GetHeartbeatLogs(ctx context.Context, count int) (native.Result, error) {
	var params native.Params
	if count > 0 {
		params = native.Params{"count": count}
	}
	return b.CallNativeMethod(ctx, constants.MethodGetHeartbeatLogs, params)
}

func (b *KeepAliveBridge) GetHeartbeatStats(ctx context.Context) (native.Result, error) {
	return b.CallNativeMethod(ctx, constants.MethodGetHeartbeatStats, nil)
}

func (b *KeepAliveBridge) ClearHeartbeatLogs(ctx context.Context) (native.Result, error) {
	return b.CallNativeMethod(ctx, constants.MethodClearHeartbeatLogs, nil)
}

func (b *KeepAliveBridge) GetExceptionStats(ctx context.Context) (native.Result, error) {
	return b.CallNativeMethod(ctx, constants.MethodGetExceptionStats, nil)
}

func (b *KeepAliveBridge) UploadCachedHeartbeats(ctx context.Context) (native.Result, error) {
	return b.CallNativeMethod(ctx, constants.MethodUploadCachedHeartbeats, nil)
}

func (b *KeepAliveBridge) GetMemoryStatus(ctx context.Context) (native.Result, error) {
	return b.CallNativeMethod(ctx, constants.MethodGetMemoryStatus, nil)
}

func (b *KeepAliveBridge) GetRestartStats(ctx context.Context) (native.Result, error) {
	return b.CallNativeMethod(ctx, constants.MethodGetRestartStats, nil)
}

// CallNativeMethod invokes a native operation through the uniform call
// contract. A call that does not call back within the call timeout yields
// {success: false, message: "timeout"} and a nil error.
func (b *KeepAliveBridge) CallNativeMethod(ctx context.Context, name string, params native.Params) (native.Result, error) {
	b.mu.RLock()
	state, module := b.state, b.module
	b.mu.RUnlock()

	if state != models.BridgeReady {
		return nil, newBridgeError(constants.CodeNotInitialized, fmt.Sprintf("cannot call %s: keep-alive bridge is not initialized", name))
	}
	if module == nil {
		return nil, newBridgeError(constants.CodeModuleNotResolved, "native module is not resolved")
	}
	return b.invoke(ctx, module, name, params)
}

func (b *KeepAliveBridge) invoke(ctx context.Context, module native.Module, name string, params native.Params) (native.Result, error) {
	op, ok := module.Operation(name)
	if !ok {
		return nil, newBridgeError(constants.CodeMethodMissing, fmt.Sprintf("native method %s does not exist", name))
	}
	if err := op.Check(params); err != nil {
		return nil, newBridgeError(constants.CodeMethodMissing, err.Error())
	}

	done := make(chan native.Result, 1)
	var once sync.Once
	callback := func(r native.Result) {
		once.Do(func() {
			if r == nil {
				r = native.Result{}
			}
			done <- r
		})
	}

	timer := time.NewTimer(b.callTimeout)
	defer timer.Stop()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				callback(native.Result{"success": false, "message": fmt.Sprintf("native %s panicked: %v", name, r)})
			}
		}()
		if err := op.Invoke(params, callback); err != nil {
			callback(native.Result{"success": false, "message": err.Error()})
		}
	}()

	select {
	case result := <-done:
		if result.Success() {
			b.logger.Debug().Str("method", name).Msg("Native call succeeded")
			return result, nil
		}
		msg := result.Message()
		if msg == "" {
			msg = fmt.Sprintf("native %s failed", name)
		}
		b.logger.Warn().Str("method", name).Str("message", msg).Msg("Native call failed")
		return result, newBridgeError(constants.CodeNativeFailure, msg)
	case <-timer.C:
		b.logger.Warn().Str("method", name).Dur("timeout", b.callTimeout).Msg("Native call timed out")
		return native.Result{"success": false, "message": constants.NativeTimeoutMessage}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Destroy unsubscribes from native events, stops the service if running and
// resets the bridge. It is safe to call repeatedly.
func (b *KeepAliveBridge) Destroy(ctx context.Context) error {
	b.mu.Lock()
	if b.state != models.BridgeReady {
		b.resetLocked()
		b.mu.Unlock()
		return nil
	}
	for _, unsubscribe := range b.unsubscribers {
		unsubscribe()
	}
	b.unsubscribers = nil
	running := b.status.IsRunning
	b.mu.Unlock()

	if running {
		result, err := b.Stop(ctx)
		switch {
		case err != nil:
			b.logger.Warn().Err(err).Msg("Failed to stop keep-alive service during destroy")
		case !result.Success():
			b.logger.Warn().Str("message", result.Message()).Msg("Keep-alive service did not stop during destroy")
		}
	}

	b.mu.Lock()
	b.resetLocked()
	b.mu.Unlock()

	b.heartbeats.Reset()
	b.statusChanges.Reset()
	b.nativeErrors.Reset()
	b.configChanges.Reset()

	b.logger.Info().Msg("Keep-alive bridge destroyed")
	return nil
}

func (b *KeepAliveBridge) resetLocked() {
	for _, unsubscribe := range b.unsubscribers {
		unsubscribe()
	}
	b.unsubscribers = nil
	b.state = models.BridgeUninitialized
	b.module = nil
	b.config = models.DefaultKeepAliveConfig()
	b.status = models.BridgeStatus{}
}

func (b *KeepAliveBridge) setRunning(running bool) {
	b.mu.Lock()
	changed := b.status.IsRunning != running
	b.status.IsRunning = running
	status := b.status
	b.mu.Unlock()

	if changed {
		b.statusChanges.Publish(status)
	}
}

func (b *KeepAliveBridge) onHeartbeatFired(data map[string]any) {
	now := b.now()
	b.mu.Lock()
	b.status.HeartbeatCount++
	b.status.LastHeartbeat = now
	b.mu.Unlock()

	b.heartbeats.Publish(models.NativeHeartbeatEvent{Data: data, ReceivedAt: now})
}

func (b *KeepAliveBridge) onStatusChanged(data map[string]any) {
	b.mu.Lock()
	b.mergeStatusLocked(data)
	status := b.status
	b.mu.Unlock()

	b.statusChanges.Publish(status)
}

func (b *KeepAliveBridge) onNativeError(data map[string]any) {
	b.mu.Lock()
	b.status.ErrorCount++
	b.mu.Unlock()

	msg, _ := data["message"].(string)
	b.logger.Warn().Str("message", msg).Msg("Keep-alive module reported an error")
	b.nativeErrors.Publish(models.NativeErrorEvent{Message: msg, Data: data, ReceivedAt: b.now()})
}

// configParams converts a config into the generic parameter object the
// native module receives.
func configParams(config models.KeepAliveConfig) native.Params {
	encoded, err := json.Marshal(config)
	if err != nil {
		return native.Params{}
	}
	var params native.Params
	if err := json.Unmarshal(encoded, &params); err != nil {
		return native.Params{}
	}
	return params
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
