package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/benmeehan/keepalive-agent/pkg/file"
	"github.com/benmeehan/keepalive-agent/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestFileStorage_SetGetRemove(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	s := storage.NewFileStorage(dir, file.NewFileService())

	var out sample
	found, err := s.Get("missing", &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set("heartbeat_config", sample{Name: "a", Count: 2}))

	found, err = s.Get("heartbeat_config", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, sample{Name: "a", Count: 2}, out)

	require.NoError(t, s.Remove("heartbeat_config"))
	require.NoError(t, s.Remove("heartbeat_config"))

	found, err = s.Get("heartbeat_config", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileStorage_RejectsPathKeys(t *testing.T) {
	s := storage.NewFileStorage(t.TempDir(), file.NewFileService())

	err := s.Set("../escape", sample{})
	assert.ErrorIs(t, err, storage.ErrInvalidKey)
}

func TestMemoryStorage_CopiesValues(t *testing.T) {
	s := storage.NewMemoryStorage()

	in := []sample{{Name: "x"}}
	require.NoError(t, s.Set("logs", in))
	in[0].Name = "mutated"

	var out []sample
	found, err := s.Get("logs", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "x", out[0].Name)
}
