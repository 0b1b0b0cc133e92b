package identity_test

import (
	"strings"
	"testing"

	"github.com/benmeehan/keepalive-agent/internal/constants"
	"github.com/benmeehan/keepalive-agent/pkg/identity"
	"github.com/benmeehan/keepalive-agent/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceInfo_GeneratesStableID(t *testing.T) {
	store := storage.NewMemoryStorage()

	first := identity.NewDeviceInfo(store, "2.1.0")
	require.NoError(t, first.LoadDeviceInfo())
	id := first.GetDeviceID()
	assert.True(t, strings.HasPrefix(id, "device_"))

	second := identity.NewDeviceInfo(store, "2.1.0")
	require.NoError(t, second.LoadDeviceInfo())
	assert.Equal(t, id, second.GetDeviceID())
}

func TestDeviceInfo_UsesPersistedID(t *testing.T) {
	store := storage.NewMemoryStorage()
	require.NoError(t, store.Set(constants.StorageKeyDeviceID, "device_existing"))

	d := identity.NewDeviceInfo(store, "")
	assert.Equal(t, "device_existing", d.GetDeviceID())
	assert.Equal(t, constants.DefaultAppVersion, d.GetAppVersion())
}
