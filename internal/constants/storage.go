package constants

// Keys used in the persisted key-value storage.
const (
	StorageKeyDeviceID         = "deviceId"
	StorageKeyHeartbeatConfig  = "heartbeat_config"
	StorageKeyHeartbeatLogs    = "heartbeat_logs"
	StorageKeyCachedHeartbeats = "cached_heartbeats"
)
