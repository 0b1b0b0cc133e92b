package models

import (
	"time"

	"github.com/benmeehan/keepalive-agent/internal/constants"
)

// NotificationConfig controls the foreground notification of the native service.
type NotificationConfig struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	Icon         string `json:"icon"`
	ShowProgress bool   `json:"showProgress"`
}

// AdaptationConfig toggles manufacturer specific keep-alive strategies.
type AdaptationConfig struct {
	EnableManufacturerOptimization bool `json:"enableManufacturerOptimization"`
	EnableBatteryWhitelist         bool `json:"enableBatteryWhitelist"`
	EnableAutoStart                bool `json:"enableAutoStart"`
}

// KeepAliveConfig is the configuration handed to the native keep-alive module.
type KeepAliveConfig struct {
	Enabled            bool               `json:"enabled"`
	HeartbeatInterval  int64              `json:"heartbeatInterval"` // milliseconds
	MaxRetryCount      int                `json:"maxRetryCount"`
	NotificationConfig NotificationConfig `json:"notificationConfig"`
	AdaptationConfig   AdaptationConfig   `json:"adaptationConfig"`
}

// KeepAliveConfigPatch carries caller supplied overrides. Nil fields keep the
// current value.
type KeepAliveConfigPatch struct {
	Enabled            *bool               `json:"enabled,omitempty"`
	HeartbeatInterval  *int64              `json:"heartbeatInterval,omitempty"`
	MaxRetryCount      *int                `json:"maxRetryCount,omitempty"`
	NotificationConfig *NotificationConfig `json:"notificationConfig,omitempty"`
	AdaptationConfig   *AdaptationConfig   `json:"adaptationConfig,omitempty"`
}

// DefaultKeepAliveConfig returns the configuration used when the caller supplies none.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		Enabled:           true,
		HeartbeatInterval: constants.DefaultHeartbeatInterval.Milliseconds(),
		MaxRetryCount:     constants.DefaultMaxRetryCount,
		NotificationConfig: NotificationConfig{
			Title:   "Keep-alive agent is running in the background",
			Content: "Keeping the connection to the server alive",
			Icon:    "ic_notification",
		},
		AdaptationConfig: AdaptationConfig{
			EnableManufacturerOptimization: true,
			EnableBatteryWhitelist:         true,
			EnableAutoStart:                true,
		},
	}
}

// Merge returns c with every non-nil field of patch applied.
func (c KeepAliveConfig) Merge(patch KeepAliveConfigPatch) KeepAliveConfig {
	if patch.Enabled != nil {
		c.Enabled = *patch.Enabled
	}
	if patch.HeartbeatInterval != nil {
		c.HeartbeatInterval = *patch.HeartbeatInterval
	}
	if patch.MaxRetryCount != nil {
		c.MaxRetryCount = *patch.MaxRetryCount
	}
	if patch.NotificationConfig != nil {
		c.NotificationConfig = *patch.NotificationConfig
	}
	if patch.AdaptationConfig != nil {
		c.AdaptationConfig = *patch.AdaptationConfig
	}
	return c
}

// BridgeStatus mirrors the native service status.
type BridgeStatus struct {
	IsRunning      bool      `json:"isRunning"`
	LastHeartbeat  time.Time `json:"lastHeartbeat"`
	HeartbeatCount int       `json:"heartbeatCount"`
	ErrorCount     int       `json:"errorCount"`
}

// BridgeState names the lifecycle states of the bridge coordinator. Destroy
// returns the bridge to BridgeUninitialized.
type BridgeState string

const (
	BridgeUninitialized BridgeState = "uninitialized"
	BridgeInitializing  BridgeState = "initializing"
	BridgeReady         BridgeState = "ready"
)

// NativeHeartbeatEvent is re-published when the native service fires a heartbeat.
type NativeHeartbeatEvent struct {
	Data       map[string]any `json:"data"`
	ReceivedAt time.Time      `json:"receivedAt"`
}

// NativeErrorEvent is re-published when the native service reports an error.
type NativeErrorEvent struct {
	Message    string         `json:"message"`
	Data       map[string]any `json:"data"`
	ReceivedAt time.Time      `json:"receivedAt"`
}
