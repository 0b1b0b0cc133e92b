package state_managers

import (
	"sync"
	"time"

	"github.com/benmeehan/keepalive-agent/internal/constants"
	"github.com/benmeehan/keepalive-agent/internal/models"
	"github.com/benmeehan/keepalive-agent/pkg/storage"
	"github.com/rs/zerolog"
)

// OfflineCache holds heartbeats that could not be sent. It is FIFO with a
// fixed capacity: the oldest entries are evicted first.
type OfflineCache struct {
	store    storage.Storage
	logger   zerolog.Logger
	mu       sync.Mutex
	entries  []models.OfflineCacheEntry
	capacity int
	now      func() time.Time
}

// NewOfflineCache initializes a new OfflineCache and loads any persisted entries.
func NewOfflineCache(store storage.Storage, capacity int, logger zerolog.Logger) *OfflineCache {
	if capacity <= 0 {
		capacity = constants.DefaultOfflineCacheSize
	}
	c := &OfflineCache{
		store:    store,
		logger:   logger,
		capacity: capacity,
		now:      time.Now,
	}

	var entries []models.OfflineCacheEntry
	if found, err := store.Get(constants.StorageKeyCachedHeartbeats, &entries); err != nil {
		logger.Warn().Err(err).Msg("Failed to load cached heartbeats")
	} else if found {
		c.entries = keepNewest(entries, capacity)
	}
	return c
}

// Add caches a snapshot, evicting the oldest entry when full.
func (c *OfflineCache) Add(snapshot models.DeviceSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = keepNewest(append(c.entries, models.OfflineCacheEntry{
		Data:     snapshot,
		CachedAt: c.now(),
	}), c.capacity)

	return c.saveLocked()
}

// Entries returns a copy of the cache, oldest first.
func (c *OfflineCache) Entries() []models.OfflineCacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.OfflineCacheEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of cached entries.
func (c *OfflineCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every cached entry. It is a no-op on an empty cache.
func (c *OfflineCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) == 0 {
		return nil
	}
	c.entries = nil
	if err := c.store.Remove(constants.StorageKeyCachedHeartbeats); err != nil {
		c.logger.Error().Err(err).Msg("Failed to clear cached heartbeats")
		return err
	}
	return nil
}

func (c *OfflineCache) saveLocked() error {
	if err := c.store.Set(constants.StorageKeyCachedHeartbeats, c.entries); err != nil {
		c.logger.Error().Err(err).Msg("Failed to save cached heartbeats")
		return err
	}
	return nil
}

func keepNewest(entries []models.OfflineCacheEntry, capacity int) []models.OfflineCacheEntry {
	if len(entries) > capacity {
		return append([]models.OfflineCacheEntry(nil), entries[len(entries)-capacity:]...)
	}
	return entries
}
