package service_registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/keepalive-agent/internal/models"
	"github.com/benmeehan/keepalive-agent/internal/services"
	"github.com/benmeehan/keepalive-agent/internal/utils"
	"github.com/benmeehan/keepalive-agent/pkg/events"
	"github.com/rs/zerolog"
)

// Scheduler is the heartbeat scheduler side of config sync.
type Scheduler interface {
	ConfigUpdates() *events.Channel[models.SchedulerConfig]
	ApplyConfig(patch models.ServerConfig) bool
}

// KeepAliveService runs the keep-alive bridge as a registry service: Start
// initializes and starts the native module, Stop destroys the bridge.
// While running, scheduler config changes are pushed to the native module
// and config changes made through the bridge are applied to the scheduler.
type KeepAliveService struct {
	bridge    *services.KeepAliveBridge
	patch     models.KeepAliveConfigPatch
	scheduler Scheduler
	timeout   time.Duration
	logger    zerolog.Logger

	mu sync.Mutex

	pushMu        sync.Mutex
	subscription  *events.Subscription
	nativeChanges *events.Subscription
	pushes        sync.WaitGroup
}

// NewKeepAliveService creates a KeepAliveService. scheduler may be nil.
func NewKeepAliveService(bridge *services.KeepAliveBridge, patch models.KeepAliveConfigPatch,
	scheduler Scheduler, timeout time.Duration, logger zerolog.Logger) *KeepAliveService {
	return &KeepAliveService{
		bridge:    bridge,
		patch:     patch,
		scheduler: scheduler,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start initializes the bridge and starts the native service. A host without
// a keep-alive module is not an error; the agent runs without it.
func (k *KeepAliveService) Start() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.bridge.IsReady() {
		k.logger.Warn().Msg("KeepAliveService is already running")
		return errors.New("keep-alive service is already running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*k.timeout)
	defer cancel()

	if _, err := k.bridge.Init(ctx, k.patch); err != nil {
		if errors.Is(err, services.ErrPlatformNotSupported) || errors.Is(err, services.ErrPluginMissing) {
			k.logger.Warn().Err(err).Msg("Keep-alive module unavailable, continuing without it")
			return nil
		}
		return fmt.Errorf("failed to initialize keep-alive bridge: %w", err)
	}

	result, err := k.bridge.Start(ctx)
	if err != nil {
		_ = k.bridge.Destroy(ctx)
		return fmt.Errorf("failed to start keep-alive module: %w", err)
	}
	if !result.Success() {
		k.logger.Warn().Str("message", result.Message()).Msg("Keep-alive module did not confirm start")
	}

	if k.scheduler != nil {
		k.pushMu.Lock()
		k.subscription = k.scheduler.ConfigUpdates().Subscribe(k.onConfigUpdate)
		k.nativeChanges = k.bridge.ConfigChanges().Subscribe(k.onNativeConfig)
		k.pushMu.Unlock()
	}

	k.logger.Info().Msg("KeepAliveService started successfully")
	return nil
}

// Stop destroys the bridge. Stopping a service that never started is a no-op.
func (k *KeepAliveService) Stop() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.pushMu.Lock()
	if k.subscription != nil {
		k.subscription.Unsubscribe()
		k.subscription = nil
	}
	if k.nativeChanges != nil {
		k.nativeChanges.Unsubscribe()
		k.nativeChanges = nil
	}
	k.pushMu.Unlock()
	k.pushes.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 2*k.timeout)
	defer cancel()
	if err := k.bridge.Destroy(ctx); err != nil {
		return err
	}

	k.logger.Info().Msg("KeepAliveService stopped successfully")
	return nil
}

// onConfigUpdate runs on the publisher's goroutine, so the native call is
// made asynchronously.
func (k *KeepAliveService) onConfigUpdate(cfg models.SchedulerConfig) {
	k.pushMu.Lock()
	if k.subscription == nil {
		k.pushMu.Unlock()
		return
	}
	k.pushes.Add(1)
	k.pushMu.Unlock()

	go func() {
		defer k.pushes.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 2*k.timeout)
		defer cancel()

		patch := models.KeepAliveConfigPatch{}
		if cfg.HeartbeatInterval > 0 {
			patch.HeartbeatInterval = &cfg.HeartbeatInterval
		}
		if cfg.MaxRetryCount > 0 {
			patch.MaxRetryCount = &cfg.MaxRetryCount
		}

		current := k.bridge.Config()
		if (patch.HeartbeatInterval == nil || *patch.HeartbeatInterval == current.HeartbeatInterval) &&
			(patch.MaxRetryCount == nil || *patch.MaxRetryCount == current.MaxRetryCount) {
			return
		}

		result, err := k.bridge.SyncSchedulerConfig(ctx, patch)
		switch {
		case errors.Is(err, services.ErrNotInitialized):
			k.logger.Debug().Msg("Keep-alive bridge not ready, config update skipped")
		case err != nil:
			k.logger.Warn().Err(err).Msg("Failed to push config to keep-alive module")
		case !result.Success():
			k.logger.Warn().Str("message", result.Message()).Msg("Keep-alive module did not confirm config update")
		default:
			k.logger.Debug().Int64("heartbeat_interval_ms", cfg.HeartbeatInterval).Msg("Config pushed to keep-alive module")
		}
	}()
}

// onNativeConfig applies a bridge side config change to the scheduler. The
// scheduler ignores values it already holds, so its own echo stops there.
func (k *KeepAliveService) onNativeConfig(cfg models.KeepAliveConfig) {
	k.pushMu.Lock()
	active := k.nativeChanges != nil
	k.pushMu.Unlock()
	if !active {
		return
	}

	if k.scheduler.ApplyConfig(models.ServerConfig{
		HeartbeatInterval: cfg.HeartbeatInterval,
		MaxRetryCount:     cfg.MaxRetryCount,
	}) {
		k.logger.Info().Int64("heartbeat_interval_ms", cfg.HeartbeatInterval).Msg("Keep-alive config applied to heartbeat scheduler")
	}
}

// KeepAlivePatch builds the native config from the agent config.
func KeepAlivePatch(config *utils.Config) models.KeepAliveConfigPatch {
	enabled := config.KeepAlive.Enabled
	interval := config.Heartbeat.Interval.Milliseconds()
	retries := config.Heartbeat.MaxRetryCount
	patch := models.KeepAliveConfigPatch{
		Enabled:           &enabled,
		HeartbeatInterval: &interval,
		MaxRetryCount:     &retries,
	}

	n := config.KeepAlive.Notification
	if n.Title != "" || n.Content != "" || n.Icon != "" {
		merged := models.DefaultKeepAliveConfig().NotificationConfig
		if n.Title != "" {
			merged.Title = n.Title
		}
		if n.Content != "" {
			merged.Content = n.Content
		}
		if n.Icon != "" {
			merged.Icon = n.Icon
		}
		merged.ShowProgress = n.ShowProgress
		patch.NotificationConfig = &merged
	}

	a := config.KeepAlive.Adaptation
	adaptation := models.DefaultKeepAliveConfig().AdaptationConfig
	overrideBool(&adaptation.EnableManufacturerOptimization, a.ManufacturerOptimization)
	overrideBool(&adaptation.EnableBatteryWhitelist, a.BatteryWhitelist)
	overrideBool(&adaptation.EnableAutoStart, a.AutoStart)
	patch.AdaptationConfig = &adaptation
	return patch
}

func overrideBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
