package state_managers

import (
	"sync"

	"github.com/benmeehan/keepalive-agent/internal/constants"
	"github.com/benmeehan/keepalive-agent/internal/models"
	"github.com/benmeehan/keepalive-agent/pkg/storage"
	"github.com/rs/zerolog"
)

// HeartbeatLogStore is the bounded, persisted heartbeat log. Records are kept
// newest-first and the oldest are dropped once the cap is exceeded.
type HeartbeatLogStore struct {
	store   storage.Storage
	logger  zerolog.Logger
	mu      sync.Mutex
	records []models.HeartbeatRecord
	maxLogs int
}

// NewHeartbeatLogStore initializes a new HeartbeatLogStore.
func NewHeartbeatLogStore(store storage.Storage, maxLogs int, logger zerolog.Logger) *HeartbeatLogStore {
	if maxLogs <= 0 {
		maxLogs = constants.DefaultMaxLocalLogs
	}
	return &HeartbeatLogStore{
		store:   store,
		logger:  logger,
		maxLogs: maxLogs,
	}
}

// Load replaces the in-memory log with the persisted snapshot.
func (s *HeartbeatLogStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []models.HeartbeatRecord
	found, err := s.store.Get(constants.StorageKeyHeartbeatLogs, &records)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load heartbeat logs")
		return err
	}
	if !found {
		records = nil
	}
	s.records = truncate(records, s.maxLogs)
	return nil
}

// Append adds a record at the head of the log and persists the result.
func (s *HeartbeatLogStore) Append(record models.HeartbeatRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]models.HeartbeatRecord, 0, len(s.records)+1)
	records = append(records, record)
	records = append(records, s.records...)
	s.records = truncate(records, s.maxLogs)

	return s.saveLocked()
}

// SetMaxLogs changes the cap, truncating and persisting if needed.
func (s *HeartbeatLogStore) SetMaxLogs(maxLogs int) error {
	if maxLogs <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.maxLogs = maxLogs
	if len(s.records) <= maxLogs {
		return nil
	}
	s.records = truncate(s.records, maxLogs)
	return s.saveLocked()
}

// Records returns a copy of the log, newest first.
func (s *HeartbeatLogStore) Records() []models.HeartbeatRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.HeartbeatRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of stored records.
func (s *HeartbeatLogStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Clear empties the log and persists the empty state.
func (s *HeartbeatLogStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	return s.saveLocked()
}

func (s *HeartbeatLogStore) saveLocked() error {
	records := s.records
	if records == nil {
		records = []models.HeartbeatRecord{}
	}
	if err := s.store.Set(constants.StorageKeyHeartbeatLogs, records); err != nil {
		s.logger.Error().Err(err).Msg("Failed to save heartbeat logs")
		return err
	}
	return nil
}

func truncate[T any](items []T, max int) []T {
	if len(items) > max {
		return items[:max]
	}
	return items
}
