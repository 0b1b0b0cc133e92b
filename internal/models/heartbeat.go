package models

import "time"

// DeviceSnapshot is the device and environment state carried by one heartbeat.
type DeviceSnapshot struct {
	DeviceID        string    `json:"deviceId"`
	AppVersion      string    `json:"appVersion"`
	SystemVersion   string    `json:"systemVersion"`
	DeviceModel     string    `json:"deviceModel"`
	KeepAliveStatus string    `json:"keepAliveStatus"`
	Timestamp       time.Time `json:"timestamp"`
	BatteryLevel    int       `json:"batteryLevel"` // -1 when unknown, otherwise 0-100
	NetworkType     string    `json:"networkType"`
	ScreenWidth     int       `json:"screenWidth,omitempty"`
	ScreenHeight    int       `json:"screenHeight,omitempty"`
}

// HeartbeatRecord is one entry of the local heartbeat log.
type HeartbeatRecord struct {
	Timestamp  time.Time       `json:"timestamp"`
	Status     string          `json:"status"` // sending, success or error
	Payload    *DeviceSnapshot `json:"payload,omitempty"`
	Response   map[string]any  `json:"response,omitempty"`
	RetryCount int             `json:"retryCount"`
}

// NetworkType returns the network type recorded with the heartbeat, or "" if none.
func (r HeartbeatRecord) NetworkType() string {
	if r.Payload == nil {
		return ""
	}
	return r.Payload.NetworkType
}

// BatteryLevel returns the recorded battery level and whether it is valid.
func (r HeartbeatRecord) BatteryLevel() (int, bool) {
	if r.Payload == nil || r.Payload.BatteryLevel < 0 {
		return 0, false
	}
	return r.Payload.BatteryLevel, true
}

// OfflineCacheEntry is a heartbeat that could not be sent.
type OfflineCacheEntry struct {
	Data     DeviceSnapshot `json:"data"`
	CachedAt time.Time      `json:"cachedAt"`
}

// NetworkStatus is the result of a connectivity check.
type NetworkStatus struct {
	IsConnected bool   `json:"isConnected"`
	NetworkType string `json:"networkType"`
}

// ServerConfig is configuration pushed by the server inside a 200 response.
// Each field is optional and applied independently.
type ServerConfig struct {
	HeartbeatInterval int64 `json:"heartbeatInterval,omitempty"` // milliseconds
	MaxRetryCount     int   `json:"maxRetryCount,omitempty"`
	MaxLocalLogs      int   `json:"maxLocalLogs,omitempty"`
}

// Alert is a server-pushed notification.
type Alert struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// HeartbeatResponseData is the data block of a successful heartbeat response.
type HeartbeatResponseData struct {
	Config *ServerConfig `json:"config,omitempty"`
	Alerts []Alert       `json:"alerts,omitempty"`
}

// AlertEvent is published once per received alert.
type AlertEvent struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// PromptEvent asks the host application to show a transient notification.
type PromptEvent struct {
	Title    string        `json:"title"`
	Duration time.Duration `json:"duration"`
}

// HeartbeatStats is the cheap summary derived from the local log.
type HeartbeatStats struct {
	IsRunning         bool             `json:"isRunning"`
	HeartbeatInterval time.Duration    `json:"heartbeatInterval"`
	TotalLogs         int              `json:"totalLogs"`
	RecentSuccess     int              `json:"recentSuccess"`
	RecentErrors      int              `json:"recentErrors"`
	SuccessRate       float64          `json:"successRate"`
	TodayTotal        int              `json:"todayTotal"`
	LastHeartbeat     *HeartbeatRecord `json:"lastHeartbeat"`
}

// ManualResult summarizes a manually triggered heartbeat.
type ManualResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
