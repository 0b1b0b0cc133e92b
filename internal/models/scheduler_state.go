package models

import (
	"time"

	"github.com/benmeehan/keepalive-agent/internal/constants"
)

// SchedulerState is the mutable state of the heartbeat scheduler.
// Values are replaced through the transition functions below, never mutated in place
// by callers.
type SchedulerState struct {
	HeartbeatInterval time.Duration
	MaxInterval       time.Duration
	RetryCount        int
	MaxRetryCount     int
	MaxLocalLogs      int
	IsRunning         bool
}

// SchedulerConfig is the persisted subset of SchedulerState.
type SchedulerConfig struct {
	HeartbeatInterval int64 `json:"heartbeatInterval"` // milliseconds
	MaxRetryCount     int   `json:"maxRetryCount"`
	MaxLocalLogs      int   `json:"maxLocalLogs"`
}

// DefaultSchedulerState returns the state used before anything is loaded.
func DefaultSchedulerState() SchedulerState {
	return SchedulerState{
		HeartbeatInterval: constants.DefaultHeartbeatInterval,
		MaxInterval:       constants.MaxHeartbeatInterval,
		MaxRetryCount:     constants.DefaultMaxRetryCount,
		MaxLocalLogs:      constants.DefaultMaxLocalLogs,
	}
}

// Config extracts the persisted subset.
func (s SchedulerState) Config() SchedulerConfig {
	return SchedulerConfig{
		HeartbeatInterval: s.HeartbeatInterval.Milliseconds(),
		MaxRetryCount:     s.MaxRetryCount,
		MaxLocalLogs:      s.MaxLocalLogs,
	}
}

// WithPersisted overlays persisted values; zero values keep the current ones.
func (s SchedulerState) WithPersisted(cfg SchedulerConfig) SchedulerState {
	if cfg.HeartbeatInterval > 0 {
		s.HeartbeatInterval = time.Duration(cfg.HeartbeatInterval) * time.Millisecond
	}
	if cfg.MaxRetryCount > 0 {
		s.MaxRetryCount = cfg.MaxRetryCount
	}
	if cfg.MaxLocalLogs > 0 {
		s.MaxLocalLogs = cfg.MaxLocalLogs
	}
	return s
}

// ApplyServerConfig applies each present field that differs from the current
// value and reports whether anything changed.
func (s SchedulerState) ApplyServerConfig(patch ServerConfig) (SchedulerState, bool) {
	changed := false
	if patch.HeartbeatInterval > 0 {
		interval := time.Duration(patch.HeartbeatInterval) * time.Millisecond
		if interval != s.HeartbeatInterval {
			s.HeartbeatInterval = interval
			changed = true
		}
	}
	if patch.MaxRetryCount > 0 && patch.MaxRetryCount != s.MaxRetryCount {
		s.MaxRetryCount = patch.MaxRetryCount
		changed = true
	}
	if patch.MaxLocalLogs > 0 && patch.MaxLocalLogs != s.MaxLocalLogs {
		s.MaxLocalLogs = patch.MaxLocalLogs
		changed = true
	}
	return s, changed
}

// RecordSuccess resets the retry counter. The interval is left untouched.
func (s SchedulerState) RecordSuccess() SchedulerState {
	s.RetryCount = 0
	return s
}

// RecordFailure increments the retry counter. Once it reaches MaxRetryCount the
// interval doubles (capped at MaxInterval) and the counter resets.
func (s SchedulerState) RecordFailure() (SchedulerState, bool) {
	s.RetryCount++
	if s.RetryCount < s.MaxRetryCount {
		return s, false
	}
	maxInterval := s.MaxInterval
	if maxInterval <= 0 {
		maxInterval = constants.MaxHeartbeatInterval
	}
	s.HeartbeatInterval *= 2
	if s.HeartbeatInterval > maxInterval {
		s.HeartbeatInterval = maxInterval
	}
	s.RetryCount = 0
	return s, true
}
