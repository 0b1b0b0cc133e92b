package identity

import (
	"fmt"
	"sync"

	"github.com/benmeehan/keepalive-agent/internal/constants"
	"github.com/benmeehan/keepalive-agent/pkg/storage"
	"github.com/google/uuid"
)

// DeviceInfoInterface defines methods for managing device identity.
type DeviceInfoInterface interface {
	LoadDeviceInfo() error
	GetDeviceID() string
	GetAppVersion() string
}

// DeviceInfo owns the stable device id. The id is generated once and persisted.
type DeviceInfo struct {
	appVersion string
	store      storage.Storage

	mu       sync.Mutex
	deviceID string
}

// NewDeviceInfo initializes a new DeviceInfo instance.
func NewDeviceInfo(store storage.Storage, appVersion string) *DeviceInfo {
	if appVersion == "" {
		appVersion = constants.DefaultAppVersion
	}
	return &DeviceInfo{
		appVersion: appVersion,
		store:      store,
	}
}

// LoadDeviceInfo reads the device id from storage, generating and saving a new
// one when none exists yet.
func (d *DeviceInfo) LoadDeviceInfo() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadLocked()
}

func (d *DeviceInfo) loadLocked() error {
	var id string
	found, err := d.store.Get(constants.StorageKeyDeviceID, &id)
	if err != nil {
		return fmt.Errorf("failed to load device id: %w", err)
	}
	if found && id != "" {
		d.deviceID = id
		return nil
	}

	id = "device_" + uuid.New().String()
	if err := d.store.Set(constants.StorageKeyDeviceID, id); err != nil {
		return fmt.Errorf("failed to save device id: %w", err)
	}
	d.deviceID = id
	return nil
}

// GetDeviceID returns the device id, loading it on first use.
func (d *DeviceInfo) GetDeviceID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deviceID == "" {
		if err := d.loadLocked(); err != nil {
			return ""
		}
	}
	return d.deviceID
}

// GetAppVersion returns the application version reported in heartbeats.
func (d *DeviceInfo) GetAppVersion() string {
	return d.appVersion
}
