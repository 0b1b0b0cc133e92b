package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benmeehan/keepalive-agent/internal/constants"
	"github.com/benmeehan/keepalive-agent/internal/models"
	"github.com/benmeehan/keepalive-agent/internal/state_managers"
	"github.com/benmeehan/keepalive-agent/pkg/events"
	"github.com/benmeehan/keepalive-agent/pkg/identity"
	"github.com/benmeehan/keepalive-agent/pkg/storage"
	"github.com/benmeehan/keepalive-agent/pkg/sysinfo"
	"github.com/benmeehan/keepalive-agent/pkg/transport"
	"github.com/rs/zerolog"
)

// HeartbeatService periodically proves liveness to the server. Failures are
// absorbed into the heartbeat log and the backoff state; the loop only ends on
// Stop or when the server reports the user as unauthenticated.
type HeartbeatService struct {
	requestTimeout time.Duration
	deviceInfo     identity.DeviceInfoInterface
	collector      sysinfo.SnapshotCollector
	connectivity   sysinfo.ConnectivityChecker
	transport      transport.Transport
	store          storage.Storage
	logs           *state_managers.HeartbeatLogStore
	cache          *state_managers.OfflineCache
	logger         zerolog.Logger
	now            func() time.Time

	mu         sync.Mutex
	state      models.SchedulerState
	timer      *time.Timer
	generation uint64

	// cycleMu keeps heartbeat cycles from overlapping.
	cycleMu sync.Mutex

	configUpdates *events.Channel[models.SchedulerConfig]
	alerts        *events.Channel[models.AlertEvent]
	prompts       *events.Channel[models.PromptEvent]
}

// NewHeartbeatService initializes a new HeartbeatService. Persisted scheduler
// config overrides defaults.
func NewHeartbeatService(
	defaults models.SchedulerState,
	requestTimeout time.Duration,
	deviceInfo identity.DeviceInfoInterface,
	collector sysinfo.SnapshotCollector,
	connectivity sysinfo.ConnectivityChecker,
	tr transport.Transport,
	store storage.Storage,
	logs *state_managers.HeartbeatLogStore,
	cache *state_managers.OfflineCache,
	logger zerolog.Logger,
) *HeartbeatService {
	if requestTimeout <= 0 {
		requestTimeout = constants.DefaultRequestTimeout
	}

	h := &HeartbeatService{
		requestTimeout: requestTimeout,
		deviceInfo:     deviceInfo,
		collector:      collector,
		connectivity:   connectivity,
		transport:      tr,
		store:          store,
		logs:           logs,
		cache:          cache,
		logger:         logger,
		now:            time.Now,
		state:          defaults,
		configUpdates:  events.NewChannel[models.SchedulerConfig]("heartbeat-config-updated"),
		alerts:         events.NewChannel[models.AlertEvent]("heartbeat-alert"),
		prompts:        events.NewChannel[models.PromptEvent]("heartbeat-prompt"),
	}

	var persisted models.SchedulerConfig
	found, err := store.Get(constants.StorageKeyHeartbeatConfig, &persisted)
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("Failed to load heartbeat config, using defaults")
	case found:
		h.state = h.state.WithPersisted(persisted)
	}
	h.state.IsRunning = false
	h.state.RetryCount = 0

	if err := logs.SetMaxLogs(h.state.MaxLocalLogs); err != nil {
		logger.Warn().Err(err).Msg("Failed to apply heartbeat log cap")
	}
	return h
}

// ConfigUpdates fires with the new scheduler config whenever it changes.
func (h *HeartbeatService) ConfigUpdates() *events.Channel[models.SchedulerConfig] {
	return h.configUpdates
}

// Alerts fires once per server-pushed alert.
func (h *HeartbeatService) Alerts() *events.Channel[models.AlertEvent] {
	return h.alerts
}

// Prompts fires for alerts that should be shown to the user.
func (h *HeartbeatService) Prompts() *events.Channel[models.PromptEvent] {
	return h.prompts
}

// Start loads the persisted heartbeat log and arms the first send after the
// current interval. Starting a running service is a no-op.
func (h *HeartbeatService) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state.IsRunning {
		h.logger.Info().Msg("HeartbeatService is already running")
		return nil
	}

	if err := h.logs.Load(); err != nil {
		h.logger.Warn().Err(err).Msg("Starting with an empty heartbeat log")
	}

	h.state.IsRunning = true
	h.scheduleLocked()

	h.logger.Info().Dur("interval", h.state.HeartbeatInterval).Msg("HeartbeatService started successfully")
	return nil
}

// Stop cancels the pending send. Stopping a stopped service is a no-op.
func (h *HeartbeatService) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.state.IsRunning {
		h.logger.Debug().Msg("HeartbeatService is not running")
		return nil
	}
	h.stopLocked()

	h.logger.Info().Msg("HeartbeatService stopped successfully")
	return nil
}

// IsRunning reports whether the scheduling loop is active.
func (h *HeartbeatService) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.IsRunning
}

// State returns a copy of the scheduler state.
func (h *HeartbeatService) State() models.SchedulerState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// ManualHeartbeat runs one cycle immediately without touching the schedule.
func (h *HeartbeatService) ManualHeartbeat() models.ManualResult {
	err := h.sendHeartbeat()
	if err != nil {
		return models.ManualResult{Success: false, Message: err.Error()}
	}
	return models.ManualResult{Success: true, Message: "heartbeat sent"}
}

// GetHeartbeatStats summarizes the last hour and the last day of the log.
func (h *HeartbeatService) GetHeartbeatStats() models.HeartbeatStats {
	records := h.logs.Records()
	now := h.now()
	hourAgo := now.Add(-time.Hour)
	dayAgo := now.Add(-24 * time.Hour)

	h.mu.Lock()
	stats := models.HeartbeatStats{
		IsRunning:         h.state.IsRunning,
		HeartbeatInterval: h.state.HeartbeatInterval,
		TotalLogs:         len(records),
	}
	h.mu.Unlock()

	recent := 0
	for _, r := range records {
		if r.Timestamp.After(dayAgo) {
			stats.TodayTotal++
		}
		if !r.Timestamp.After(hourAgo) {
			continue
		}
		recent++
		switch r.Status {
		case constants.StatusSuccess:
			stats.RecentSuccess++
		case constants.StatusError:
			stats.RecentErrors++
		}
	}

	if recent > 0 {
		stats.SuccessRate = math.Round(float64(stats.RecentSuccess)/float64(recent)*1000) / 10
	}
	if len(records) > 0 {
		last := records[0]
		stats.LastHeartbeat = &last
	}
	return stats
}

// Logs returns the heartbeat log, newest first.
func (h *HeartbeatService) Logs() []models.HeartbeatRecord {
	return h.logs.Records()
}

// ClearLocalLogs empties the heartbeat log.
func (h *HeartbeatService) ClearLocalLogs() error {
	return h.logs.Clear()
}

// CachedHeartbeatCount returns the number of heartbeats waiting in the offline cache.
func (h *HeartbeatService) CachedHeartbeatCount() int {
	return h.cache.Len()
}

// UploadCachedHeartbeats reports the cached heartbeat count. There is no batch
// endpoint: cached entries are dropped once a regular heartbeat succeeds.
func (h *HeartbeatService) UploadCachedHeartbeats() (int, error) {
	count := h.cache.Len()
	if count > 0 {
		h.logger.Info().Int("cached", count).Msg("Cached heartbeats will be covered by the next successful heartbeat")
	}
	return count, nil
}

// ApplyConfig applies a config patch from outside the heartbeat response path.
func (h *HeartbeatService) ApplyConfig(patch models.ServerConfig) bool {
	return h.applyConfig(patch, "local")
}

func (h *HeartbeatService) applyConfig(patch models.ServerConfig, source string) bool {
	h.mu.Lock()
	next, changed := h.state.ApplyServerConfig(patch)
	if !changed {
		h.mu.Unlock()
		return false
	}
	prev := h.state
	h.state = next
	cfg := next.Config()
	h.persistLocked()
	h.mu.Unlock()

	if next.MaxLocalLogs != prev.MaxLocalLogs {
		if err := h.logs.SetMaxLogs(next.MaxLocalLogs); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to apply heartbeat log cap")
		}
	}

	h.logger.Info().
		Str("source", source).
		Dur("interval", next.HeartbeatInterval).
		Int("max_retry_count", next.MaxRetryCount).
		Int("max_local_logs", next.MaxLocalLogs).
		Msg("Heartbeat config updated")

	h.configUpdates.Publish(cfg)
	return true
}

func (h *HeartbeatService) scheduleLocked() {
	if h.timer != nil {
		h.timer.Stop()
	}
	gen := h.generation
	h.timer = time.AfterFunc(h.state.HeartbeatInterval, func() { h.onTimer(gen) })
}

func (h *HeartbeatService) stopLocked() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	h.generation++
	h.state.IsRunning = false
}

func (h *HeartbeatService) onTimer(gen uint64) {
	h.mu.Lock()
	stale := gen != h.generation || !h.state.IsRunning
	h.mu.Unlock()
	if stale {
		return
	}

	_ = h.sendHeartbeat()

	h.mu.Lock()
	defer h.mu.Unlock()
	if gen == h.generation && h.state.IsRunning {
		h.scheduleLocked()
	}
}

// sendHeartbeat runs one heartbeat cycle and returns the failure it recorded.
func (h *HeartbeatService) sendHeartbeat() (err error) {
	h.cycleMu.Lock()
	defer h.cycleMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("heartbeat cycle panicked: %v", r)
			h.logger.Error().Err(err).Msg("Recovered heartbeat cycle")
			h.handleFailure(err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), h.requestTimeout)
	defer cancel()

	snapshot := h.collectSnapshot(ctx)
	h.record(constants.StatusSending, &snapshot, nil)

	status, checkErr := h.connectivity.Check(ctx)
	if checkErr != nil || !status.IsConnected {
		h.logger.Warn().Str("network_type", status.NetworkType).Msg("Network not connected, caching heartbeat")
		h.cacheSnapshot(snapshot)
		h.handleFailure(ErrConnectivity)
		return ErrConnectivity
	}

	raw, sendErr := h.transport.Send(ctx, snapshot)
	if sendErr != nil {
		err = fmt.Errorf("%w: %v", ErrTransport, sendErr)
		h.handleFailure(err)
		h.cacheSnapshot(snapshot)
		return err
	}

	resp := transport.NormalizeResponse(raw)
	code, ok := transport.ResponseCode(resp)
	if !ok {
		h.handleFailure(ErrMalformedResponse)
		return ErrMalformedResponse
	}

	switch code {
	case constants.CodeOK:
		h.handleSuccess(resp)
		return nil
	case constants.CodeUnauthenticated:
		h.handleUnauthenticated(resp)
		return ErrAuthenticationRequired
	default:
		msg, _ := resp["message"].(string)
		if msg == "" {
			msg = fmt.Sprintf("code=%d", code)
		}
		err = fmt.Errorf("%w: %s", ErrServerRejected, msg)
		h.handleFailure(err)
		return err
	}
}

func (h *HeartbeatService) collectSnapshot(ctx context.Context) models.DeviceSnapshot {
	snapshot, err := h.collector.Collect(ctx)
	if err == nil {
		return snapshot
	}

	h.logger.Warn().Err(err).Msg("Failed to collect device snapshot, using degraded snapshot")
	return models.DeviceSnapshot{
		DeviceID:        h.deviceInfo.GetDeviceID(),
		AppVersion:      h.deviceInfo.GetAppVersion(),
		SystemVersion:   constants.UnknownValue,
		DeviceModel:     constants.UnknownValue,
		KeepAliveStatus: constants.KeepAliveUnknown,
		Timestamp:       h.now(),
		BatteryLevel:    constants.UnknownBattery,
		NetworkType:     constants.UnknownNetworkType,
	}
}

func (h *HeartbeatService) handleSuccess(resp map[string]any) {
	h.mu.Lock()
	h.state = h.state.RecordSuccess()
	h.mu.Unlock()

	h.record(constants.StatusSuccess, nil, resp)

	if msg, _ := resp["message"].(string); msg != "" {
		h.logger.Debug().Str("message", msg).Msg("Heartbeat sent successfully")
	} else {
		h.logger.Debug().Msg("Heartbeat sent successfully")
	}

	if err := h.cache.Clear(); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to clear offline heartbeat cache")
	}

	data, err := decodeResponseData(resp)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Ignoring unreadable part of heartbeat response data")
	}
	if data.Config != nil {
		h.applyConfig(*data.Config, "server")
	}
	h.handleAlerts(data.Alerts)
}

func (h *HeartbeatService) handleAlerts(alerts []models.Alert) {
	for _, alert := range alerts {
		h.logger.Warn().Str("level", alert.Level).Str("message", alert.Message).Msg("Server alert")

		h.alerts.Publish(models.AlertEvent{
			Level:     alert.Level,
			Message:   alert.Message,
			Timestamp: h.now(),
		})

		if alert.Level == constants.AlertLevelCritical || alert.Level == constants.AlertLevelError {
			h.prompts.Publish(models.PromptEvent{
				Title:    alert.Message,
				Duration: constants.PromptDuration,
			})
		}
	}
}

func (h *HeartbeatService) handleUnauthenticated(resp map[string]any) {
	h.logger.Warn().Msg("User not authenticated, stopping heartbeat service")

	h.mu.Lock()
	h.stopLocked()
	h.mu.Unlock()

	h.record(constants.StatusError, nil, map[string]any{"error": ErrAuthenticationRequired.Error(), "code": constants.CodeUnauthenticated})
}

func (h *HeartbeatService) handleFailure(cause error) {
	h.logger.Error().Err(cause).Msg("Heartbeat failed")

	// The record carries the retry count the failure was observed at.
	h.record(constants.StatusError, nil, map[string]any{"error": cause.Error()})

	h.mu.Lock()
	prev := h.state.HeartbeatInterval
	next, backedOff := h.state.RecordFailure()
	h.state = next
	if backedOff {
		h.persistLocked()
	}
	h.mu.Unlock()

	if backedOff && next.HeartbeatInterval != prev {
		h.logger.Warn().Dur("interval", next.HeartbeatInterval).Msg("Too many heartbeat failures, interval increased")
		h.configUpdates.Publish(next.Config())
	}
}

func (h *HeartbeatService) record(status string, payload *models.DeviceSnapshot, resp map[string]any) {
	h.mu.Lock()
	retryCount := h.state.RetryCount
	h.mu.Unlock()

	if payload == nil {
		payload = h.lastPayload()
	}

	entry := models.HeartbeatRecord{
		Timestamp:  h.now(),
		Status:     status,
		Payload:    payload,
		Response:   resp,
		RetryCount: retryCount,
	}
	if err := h.logs.Append(entry); err != nil {
		h.logger.Warn().Err(err).Str("status", status).Msg("Failed to persist heartbeat record")
	}
}

// lastPayload returns the snapshot of the cycle's sending record so outcome
// records carry the same network and battery state.
func (h *HeartbeatService) lastPayload() *models.DeviceSnapshot {
	records := h.logs.Records()
	if len(records) == 0 || records[0].Status != constants.StatusSending || records[0].Payload == nil {
		return nil
	}
	p := *records[0].Payload
	return &p
}

func (h *HeartbeatService) cacheSnapshot(snapshot models.DeviceSnapshot) {
	if err := h.cache.Add(snapshot); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to cache heartbeat")
		return
	}
	h.logger.Info().Int("cached", h.cache.Len()).Msg("Heartbeat cached")
}

func (h *HeartbeatService) persistLocked() {
	if err := h.store.Set(constants.StorageKeyHeartbeatConfig, h.state.Config()); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to persist heartbeat config")
	}
}

// decodeResponseData reads the config and the alerts of a success response
// independently, so a malformed part does not hide the other.
func decodeResponseData(resp map[string]any) (models.HeartbeatResponseData, error) {
	var data models.HeartbeatResponseData
	raw, ok := resp["data"].(map[string]any)
	if !ok {
		if resp["data"] != nil {
			return data, fmt.Errorf("%w: data is %T", ErrMalformedResponse, resp["data"])
		}
		return data, nil
	}

	var errs []error
	if v, ok := raw["config"]; ok && v != nil {
		var cfg models.ServerConfig
		if err := decodeField(v, &cfg); err != nil {
			errs = append(errs, fmt.Errorf("config: %w", err))
		} else {
			data.Config = &cfg
		}
	}
	if v, ok := raw["alerts"]; ok && v != nil {
		if err := decodeField(v, &data.Alerts); err != nil {
			data.Alerts = nil
			errs = append(errs, fmt.Errorf("alerts: %w", err))
		}
	}
	if len(errs) > 0 {
		return data, errors.Join(append([]error{ErrMalformedResponse}, errs...)...)
	}
	return data, nil
}

func decodeField(v any, out any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, out)
}
