package constants

import "time"

// PluginID identifies the platform keep-alive module.
const PluginID = "CB-KeepAlive"

// DefaultNativeCallTimeout bounds every native call.
const DefaultNativeCallTimeout = 5 * time.Second

// NativeTimeoutMessage is the message of the synthetic result produced when a
// native call does not call back in time.
const NativeTimeoutMessage = "timeout"

// Native operation names.
const (
	MethodInit                   = "init"
	MethodStart                  = "start"
	MethodStop                   = "stop"
	MethodGetStatus              = "getStatus"
	MethodUpdateConfig           = "updateConfig"
	MethodCheckPermissions       = "checkPermissions"
	MethodRequestPermissions     = "requestPermissions"
	MethodGetHeartbeatLogs       = "getHeartbeatLogs"
	MethodGetHeartbeatStats      = "getHeartbeatStats"
	MethodClearHeartbeatLogs     = "clearHeartbeatLogs"
	MethodGetExceptionStats      = "getExceptionStats"
	MethodUploadCachedHeartbeats = "uploadCachedHeartbeats"
	MethodGetMemoryStatus        = "getMemoryStatus"
	MethodGetRestartStats        = "getRestartStats"
)

// Native-originated event channels.
const (
	EventHeartbeatFired = "heartbeat-fired"
	EventStatusChanged  = "status-changed"
	EventError          = "error"
)

// Bridge error codes.
const (
	CodePlatformNotSupported = "PLATFORM_NOT_SUPPORTED"
	CodePluginMissing        = "PLUGIN_MISSING"
	CodeNotInitialized       = "NOT_INITIALIZED"
	CodeAlreadyInitialized   = "ALREADY_INITIALIZED"
	CodeModuleNotResolved    = "MODULE_NOT_RESOLVED"
	CodeMethodMissing        = "METHOD_MISSING"
	CodeNativeFailure        = "NATIVE_FAILURE"
)

// DefaultSupportedPlatforms lists platforms the keep-alive module exists for.
var DefaultSupportedPlatforms = []string{"android", "linux"}
