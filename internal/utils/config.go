package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/benmeehan/keepalive-agent/internal/constants"
	"github.com/benmeehan/keepalive-agent/pkg/file"
)

// Transport names accepted in heartbeat.transport.
const (
	TransportHTTP = "http"
	TransportMQTT = "mqtt"
)

// Config represents the structure of the configuration file.
type Config struct {
	Logging struct {
		Level string `yaml:"level"` // zerolog level name, defaults to info
	} `yaml:"logging"`

	Device struct {
		AppVersion   string `yaml:"app_version"`   // Semantic version reported in every heartbeat
		ScreenWidth  int    `yaml:"screen_width"`  // Reported screen width, 0 when headless
		ScreenHeight int    `yaml:"screen_height"` // Reported screen height, 0 when headless
		BatteryPath  string `yaml:"battery_path"`  // sysfs capacity file, empty when there is no battery
	} `yaml:"device"`

	Storage struct {
		Dir string `yaml:"dir"` // Directory holding the persisted key-value state
	} `yaml:"storage"`

	Heartbeat struct {
		Transport        string        `yaml:"transport"`          // http or mqtt
		ServerURL        string        `yaml:"server_url"`         // Base URL for the http transport
		Interval         time.Duration `yaml:"interval"`           // Initial interval between heartbeats
		MaxInterval      time.Duration `yaml:"max_interval"`       // Backoff cap
		MaxRetryCount    int           `yaml:"max_retry_count"`    // Consecutive failures before the interval doubles
		MaxLocalLogs     int           `yaml:"max_local_logs"`     // Heartbeat log capacity
		OfflineCacheSize int           `yaml:"offline_cache_size"` // Offline cache capacity
		RequestTimeout   time.Duration `yaml:"request_timeout"`    // Bound on one heartbeat cycle

		TLS struct {
			CACertificate string `yaml:"ca_certificate"` // Path to the server CA certificate
			ClientCert    string `yaml:"client_cert"`    // Path to the client certificate
			ClientKey     string `yaml:"client_key"`     // Path to the client private key
		} `yaml:"tls"`

		MQTT struct {
			Topic           string        `yaml:"topic"`            // MQTT topic heartbeats are published to
			QOS             int           `yaml:"qos"`              // MQTT QoS level for heartbeat messages
			ResponseTimeout time.Duration `yaml:"response_timeout"` // Wait for the server reply
		} `yaml:"mqtt"`
	} `yaml:"heartbeat"`

	MQTT struct {
		Broker         string        `yaml:"broker"`          // MQTT broker address
		ClientID       string        `yaml:"client_id"`       // MQTT client ID
		CACertificate  string        `yaml:"ca_certificate"`  // Path to the CA certificate
		ConnectTimeout time.Duration `yaml:"connect_timeout"` // Timeout for the initial broker connection
	} `yaml:"mqtt"`

	KeepAlive struct {
		Enabled            bool          `yaml:"enabled"`             // Initialize and start the native keep-alive module
		PluginID           string        `yaml:"plugin_id"`           // Identifier the native module is resolved by
		SupportedPlatforms []string      `yaml:"supported_platforms"` // Platforms the module exists for
		NativeCallTimeout  time.Duration `yaml:"native_call_timeout"` // Bound on every native call

		Notification struct {
			Title        string `yaml:"title"`
			Content      string `yaml:"content"`
			Icon         string `yaml:"icon"`
			ShowProgress bool   `yaml:"show_progress"`
		} `yaml:"notification"`

		Adaptation struct {
			ManufacturerOptimization *bool `yaml:"manufacturer_optimization"` // Unset keeps the module default
			BatteryWhitelist         *bool `yaml:"battery_whitelist"`
			AutoStart                *bool `yaml:"auto_start"`
		} `yaml:"adaptation"`
	} `yaml:"keepalive"`

	Analyzer struct {
		ExpectedInterval time.Duration `yaml:"expected_interval"` // Interval the reliability score is measured against
		CacheTTL         time.Duration `yaml:"cache_ttl"`         // Lifetime of a cached analysis
		ReportInterval   time.Duration `yaml:"report_interval"`   // Interval between logged reports, 0 disables them
	} `yaml:"analyzer"`
}

// LoadConfig loads the YAML configuration from the specified file.
// It returns a pointer to the Config struct and an error if loading fails.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	err := fileClient.ReadYamlFile(filename, &config)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filename, err)
	}
	return &config, nil
}

// Validate fills unset values with defaults and rejects inconsistent settings.
func (c *Config) Validate() error {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Device.AppVersion == "" {
		c.Device.AppVersion = constants.DefaultAppVersion
	}
	if _, err := semver.NewVersion(c.Device.AppVersion); err != nil {
		return fmt.Errorf("device.app_version %q: %w", c.Device.AppVersion, err)
	}

	if c.Storage.Dir == "" {
		c.Storage.Dir = "data"
	}

	hb := &c.Heartbeat
	hb.Transport = strings.ToLower(hb.Transport)
	if hb.Transport == "" {
		hb.Transport = TransportHTTP
	}
	setDefault(&hb.Interval, constants.DefaultHeartbeatInterval)
	setDefault(&hb.MaxInterval, constants.MaxHeartbeatInterval)
	setDefault(&hb.RequestTimeout, constants.DefaultRequestTimeout)
	setDefault(&hb.MaxRetryCount, constants.DefaultMaxRetryCount)
	setDefault(&hb.MaxLocalLogs, constants.DefaultMaxLocalLogs)
	setDefault(&hb.OfflineCacheSize, constants.DefaultOfflineCacheSize)
	if hb.MaxInterval < hb.Interval {
		return fmt.Errorf("heartbeat.max_interval %s is below heartbeat.interval %s", hb.MaxInterval, hb.Interval)
	}

	switch hb.Transport {
	case TransportHTTP:
		if hb.ServerURL == "" {
			return fmt.Errorf("heartbeat.server_url is required for the http transport")
		}
	case TransportMQTT:
		if c.MQTT.Broker == "" || hb.MQTT.Topic == "" {
			return fmt.Errorf("mqtt.broker and heartbeat.mqtt.topic are required for the mqtt transport")
		}
		if hb.MQTT.QOS < 0 || hb.MQTT.QOS > 2 {
			return fmt.Errorf("heartbeat.mqtt.qos must be 0, 1 or 2, got %d", hb.MQTT.QOS)
		}
		setDefault(&hb.MQTT.ResponseTimeout, hb.RequestTimeout)
		setDefault(&c.MQTT.ConnectTimeout, constants.DefaultRequestTimeout)
	default:
		return fmt.Errorf("unknown heartbeat.transport %q", hb.Transport)
	}

	tls := hb.TLS
	if (tls.ClientCert == "") != (tls.ClientKey == "") {
		return fmt.Errorf("heartbeat.tls.client_cert and heartbeat.tls.client_key must be set together")
	}

	if c.KeepAlive.PluginID == "" {
		c.KeepAlive.PluginID = constants.PluginID
	}
	if len(c.KeepAlive.SupportedPlatforms) == 0 {
		c.KeepAlive.SupportedPlatforms = constants.DefaultSupportedPlatforms
	}
	setDefault(&c.KeepAlive.NativeCallTimeout, constants.DefaultNativeCallTimeout)

	setDefault(&c.Analyzer.ExpectedInterval, hb.Interval)
	setDefault(&c.Analyzer.CacheTTL, time.Minute)
	if c.Analyzer.ReportInterval < 0 {
		return fmt.Errorf("analyzer.report_interval must not be negative")
	}
	return nil
}

func setDefault[T time.Duration | int](v *T, def T) {
	if *v <= 0 {
		*v = def
	}
}
