package state_managers_test

import (
	"errors"
	"testing"
	"time"

	"github.com/benmeehan/keepalive-agent/internal/constants"
	"github.com/benmeehan/keepalive-agent/internal/mocks"
	"github.com/benmeehan/keepalive-agent/internal/models"
	"github.com/benmeehan/keepalive-agent/internal/state_managers"
	"github.com/benmeehan/keepalive-agent/pkg/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func record(status string, at time.Time) models.HeartbeatRecord {
	return models.HeartbeatRecord{Timestamp: at, Status: status}
}

func TestHeartbeatLogStore_AppendNewestFirstAndTruncate(t *testing.T) {
	store := storage.NewMemoryStorage()
	logs := state_managers.NewHeartbeatLogStore(store, 3, zerolog.Nop())

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, logs.Append(record(constants.StatusSuccess, base.Add(time.Duration(i)*time.Second))))
	}

	records := logs.Records()
	require.Len(t, records, 3)
	assert.Equal(t, base.Add(4*time.Second), records[0].Timestamp)
	assert.Equal(t, base.Add(2*time.Second), records[2].Timestamp)

	var persisted []models.HeartbeatRecord
	found, err := store.Get(constants.StorageKeyHeartbeatLogs, &persisted)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, persisted, 3)
}

func TestHeartbeatLogStore_LoadAndClear(t *testing.T) {
	store := storage.NewMemoryStorage()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Set(constants.StorageKeyHeartbeatLogs, []models.HeartbeatRecord{
		record(constants.StatusSuccess, base.Add(time.Minute)),
		record(constants.StatusError, base),
	}))

	logs := state_managers.NewHeartbeatLogStore(store, 10, zerolog.Nop())
	assert.Equal(t, 0, logs.Len())
	require.NoError(t, logs.Load())
	assert.Equal(t, 2, logs.Len())
	assert.Equal(t, constants.StatusSuccess, logs.Records()[0].Status)

	require.NoError(t, logs.Clear())
	assert.Equal(t, 0, logs.Len())

	var persisted []models.HeartbeatRecord
	found, err := store.Get(constants.StorageKeyHeartbeatLogs, &persisted)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, persisted)
}

func TestHeartbeatLogStore_SetMaxLogs(t *testing.T) {
	logs := state_managers.NewHeartbeatLogStore(storage.NewMemoryStorage(), 10, zerolog.Nop())
	now := time.Now()
	for i := 0; i < 6; i++ {
		require.NoError(t, logs.Append(record(constants.StatusSuccess, now)))
	}

	require.NoError(t, logs.SetMaxLogs(4))
	assert.Equal(t, 4, logs.Len())

	require.NoError(t, logs.SetMaxLogs(0))
	assert.Equal(t, 4, logs.Len())
}

func TestHeartbeatLogStore_RecordsIsCopy(t *testing.T) {
	logs := state_managers.NewHeartbeatLogStore(storage.NewMemoryStorage(), 10, zerolog.Nop())
	require.NoError(t, logs.Append(record(constants.StatusSuccess, time.Now())))

	records := logs.Records()
	records[0].Status = constants.StatusError
	assert.Equal(t, constants.StatusSuccess, logs.Records()[0].Status)
}

func TestHeartbeatLogStore_SaveFailure(t *testing.T) {
	mockStore := new(mocks.MockStorage)
	mockStore.On("Set", constants.StorageKeyHeartbeatLogs, mock.Anything).Return(errors.New("disk full"))

	logs := state_managers.NewHeartbeatLogStore(mockStore, 10, zerolog.Nop())
	err := logs.Append(record(constants.StatusSuccess, time.Now()))
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, 1, logs.Len())
}

func TestOfflineCache_FIFOEviction(t *testing.T) {
	store := storage.NewMemoryStorage()
	cache := state_managers.NewOfflineCache(store, 50, zerolog.Nop())

	for i := 0; i < 55; i++ {
		require.NoError(t, cache.Add(models.DeviceSnapshot{BatteryLevel: i}))
	}

	entries := cache.Entries()
	require.Len(t, entries, 50)
	assert.Equal(t, 5, entries[0].Data.BatteryLevel)
	assert.Equal(t, 54, entries[49].Data.BatteryLevel)

	reloaded := state_managers.NewOfflineCache(store, 50, zerolog.Nop())
	assert.Equal(t, 50, reloaded.Len())
}

func TestOfflineCache_Clear(t *testing.T) {
	store := storage.NewMemoryStorage()
	cache := state_managers.NewOfflineCache(store, 0, zerolog.Nop())

	require.NoError(t, cache.Clear())
	require.NoError(t, cache.Add(models.DeviceSnapshot{DeviceID: "device_1"}))
	assert.Equal(t, 1, cache.Len())

	require.NoError(t, cache.Clear())
	assert.Equal(t, 0, cache.Len())

	var entries []models.OfflineCacheEntry
	found, err := store.Get(constants.StorageKeyCachedHeartbeats, &entries)
	require.NoError(t, err)
	assert.False(t, found)
}
