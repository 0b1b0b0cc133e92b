package main

import (
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/benmeehan/keepalive-agent/internal/analyzer"
	"github.com/benmeehan/keepalive-agent/internal/metrics_collectors"
	"github.com/benmeehan/keepalive-agent/internal/models"
	"github.com/benmeehan/keepalive-agent/internal/service_registry"
	"github.com/benmeehan/keepalive-agent/internal/services"
	"github.com/benmeehan/keepalive-agent/internal/state_managers"
	"github.com/benmeehan/keepalive-agent/internal/utils"
	"github.com/benmeehan/keepalive-agent/pkg/file"
	"github.com/benmeehan/keepalive-agent/pkg/identity"
	"github.com/benmeehan/keepalive-agent/pkg/mqtt"
	"github.com/benmeehan/keepalive-agent/pkg/native"
	"github.com/benmeehan/keepalive-agent/pkg/native/hostmodule"
	"github.com/benmeehan/keepalive-agent/pkg/storage"
	"github.com/benmeehan/keepalive-agent/pkg/sysinfo"
	"github.com/benmeehan/keepalive-agent/pkg/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the agent configuration file")
	flag.Parse()

	// Set up structured logging with JSON output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Initialize file operations handler
	fileClient := file.NewFileService()

	// Load configuration from file
	config, err := utils.LoadConfig(*configPath, fileClient)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(config.Logging.Level)
	if err != nil {
		logger.Warn().Str("level", config.Logging.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	if err := fileClient.EnsureDir(config.Storage.Dir); err != nil {
		logger.Fatal().Err(err).Str("dir", config.Storage.Dir).Msg("Failed to create storage directory")
	}
	store := storage.NewFileStorage(config.Storage.Dir, fileClient)

	// Initialize DeviceInfo
	deviceInfo := identity.NewDeviceInfo(store, config.Device.AppVersion)
	if err := deviceInfo.LoadDeviceInfo(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to load device information")
	}
	logger.Info().Str("device_id", deviceInfo.GetDeviceID()).Str("app_version", deviceInfo.GetAppVersion()).Msg("Device identity loaded")

	collector := sysinfo.NewHostCollector(deviceInfo, fileClient, config.Device.BatteryPath,
		config.Device.ScreenWidth, config.Device.ScreenHeight, logger)

	heartbeatTransport, mqttClient := buildTransport(config, fileClient, logger)
	if mqttClient != nil {
		defer mqttClient.Disconnect(250)
	}

	logs := state_managers.NewHeartbeatLogStore(store, config.Heartbeat.MaxLocalLogs, logger)
	cache := state_managers.NewOfflineCache(store, config.Heartbeat.OfflineCacheSize, logger)

	defaults := models.DefaultSchedulerState()
	defaults.HeartbeatInterval = config.Heartbeat.Interval
	defaults.MaxInterval = config.Heartbeat.MaxInterval
	defaults.MaxRetryCount = config.Heartbeat.MaxRetryCount
	defaults.MaxLocalLogs = config.Heartbeat.MaxLocalLogs

	sender := services.NewHeartbeatService(defaults, config.Heartbeat.RequestTimeout, deviceInfo, collector,
		sysinfo.NewInterfaceConnectivity(), heartbeatTransport, store, logs, cache, logger)

	sender.Alerts().Subscribe(func(alert models.AlertEvent) {
		logger.Warn().Str("level", alert.Level).Time("at", alert.Timestamp).Msg(alert.Message)
	})
	sender.Prompts().Subscribe(func(prompt models.PromptEvent) {
		logger.Warn().Dur("duration", prompt.Duration).Msg("Prompt: " + prompt.Title)
	})

	// The host keep-alive module answers native calls on this machine
	metrics := metrics_collectors.NewDefaultRegistry(logger)
	defer metrics.Close()

	nativeHost := native.NewRegistry(runtime.GOOS)
	keepAliveModule := hostmodule.New(hostmodule.Options{
		Metrics:  metrics,
		Uploader: sender.UploadCachedHeartbeats,
		MaxLogs:  config.Heartbeat.MaxLocalLogs,
	}, logger)
	defer keepAliveModule.Close()
	nativeHost.Register(config.KeepAlive.PluginID, keepAliveModule)

	bridge := services.NewKeepAliveBridge(nativeHost, config.KeepAlive.PluginID,
		config.KeepAlive.SupportedPlatforms, config.KeepAlive.NativeCallTimeout, logger)
	collector.SetKeepAliveStatusProvider(bridge)

	bridge.Errors().Subscribe(func(e models.NativeErrorEvent) {
		logger.Warn().Str("message", e.Message).Msg("Keep-alive module error")
	})

	heartbeatAnalyzer := analyzer.New(analyzer.Options{
		ExpectedInterval: config.Analyzer.ExpectedInterval,
		CacheTTL:         config.Analyzer.CacheTTL,
	})
	reports := services.NewReportService(config.Analyzer.ReportInterval, sender, heartbeatAnalyzer, logger)

	// Create a new service registry to manage services
	serviceRegistry := service_registry.NewServiceRegistry(logger)

	// Register all services based on the configuration
	if err := serviceRegistry.RegisterServices(config, service_registry.Components{
		Heartbeat: sender,
		Bridge:    bridge,
		Reports:   reports,
	}); err != nil {
		logger.Fatal().Err(err).Msg("Failed to register services")
	}

	// Start all registered services in the registry
	if err := serviceRegistry.StartServices(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start services")
	}
	logger.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	logger.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		logger.Error().Err(err).Msg("Some services failed to stop cleanly")
	}
}

// buildTransport returns the configured heartbeat transport and, for MQTT, the
// connected client the caller must disconnect.
func buildTransport(config *utils.Config, fileClient file.FileOperations, logger zerolog.Logger) (transport.Transport, *mqtt.MqttService) {
	hb := config.Heartbeat

	if hb.Transport == utils.TransportMQTT {
		// Generate a unique MQTT Client ID by appending a UUID
		clientID := config.MQTT.ClientID + "-" + uuid.New().String()
		logger.Info().Str("client_id", clientID).Msg("Using MQTT Client ID")

		mqttClient := mqtt.NewMqttService(fileClient, logger)
		if err := mqttClient.Initialize(mqtt.Options{
			Broker:         config.MQTT.Broker,
			ClientID:       clientID,
			CACertificate:  config.MQTT.CACertificate,
			ConnectTimeout: config.MQTT.ConnectTimeout,
		}); err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
		}
		return transport.NewMQTTTransport(hb.MQTT.Topic, hb.MQTT.QOS, hb.MQTT.ResponseTimeout, mqttClient, logger), mqttClient
	}

	client, err := transport.BuildHTTPClient(transport.TLSFiles{
		CACertificate: hb.TLS.CACertificate,
		ClientCert:    hb.TLS.ClientCert,
		ClientKey:     hb.TLS.ClientKey,
	}, hb.RequestTimeout, fileClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build heartbeat HTTP client")
	}

	httpTransport := transport.NewHTTPTransport(hb.ServerURL, client)
	logger.Info().Str("endpoint", httpTransport.Endpoint()).Msg("Using HTTP heartbeat transport")
	return httpTransport, nil
}
