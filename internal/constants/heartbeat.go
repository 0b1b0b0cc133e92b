package constants

import "time"

// Heartbeat record statuses
const (
	// StatusSending marks a heartbeat that has been collected and is about to be transmitted
	StatusSending = "sending"
	// StatusSuccess marks a heartbeat acknowledged by the server
	StatusSuccess = "success"
	// StatusError marks a heartbeat that failed for any reason
	StatusError = "error"
	// StatusFailure is a legacy failure status still present in older logs
	StatusFailure = "failure"
)

// Server response codes
const (
	CodeOK              = 200
	CodeUnauthenticated = 301
)

// HeartbeatPath is the server endpoint heartbeats are posted to.
const HeartbeatPath = "/api/heartbeat"

// Scheduler defaults.
const (
	DefaultHeartbeatInterval = 30 * time.Second
	MaxHeartbeatInterval     = 5 * time.Minute
	DefaultMaxRetryCount     = 3
	DefaultMaxLocalLogs      = 100
	DefaultOfflineCacheSize  = 50
	DefaultRequestTimeout    = 10 * time.Second
)

// Keep-alive status values carried in the device snapshot.
const (
	KeepAliveActive   = "active"
	KeepAliveInactive = "inactive"
	KeepAliveUnknown  = "unknown"
)

// Degraded snapshot values.
const (
	UnknownValue       = "Unknown"
	UnknownNetworkType = "unknown"
	NetworkTypeNone    = "none"
	NetworkTypeWifi    = "wifi"
	UnknownBattery     = -1
	DefaultAppVersion  = "1.0.0"
)

// Alert levels that additionally raise a user-visible prompt.
const (
	AlertLevelCritical = "critical"
	AlertLevelError    = "error"
	AlertLevelWarning  = "warning"
	AlertLevelInfo     = "info"
)

// PromptDuration is how long an alert prompt stays visible.
const PromptDuration = 3 * time.Second
