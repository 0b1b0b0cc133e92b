// Package sysinfo collects the device snapshot attached to heartbeats and
// checks network connectivity.
package sysinfo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/benmeehan/keepalive-agent/internal/constants"
	"github.com/benmeehan/keepalive-agent/internal/models"
	"github.com/benmeehan/keepalive-agent/pkg/file"
	"github.com/benmeehan/keepalive-agent/pkg/identity"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/net"
)

// SnapshotCollector produces the device snapshot for one heartbeat.
type SnapshotCollector interface {
	Collect(ctx context.Context) (models.DeviceSnapshot, error)
}

// ConnectivityChecker reports whether the device currently has a network.
type ConnectivityChecker interface {
	Check(ctx context.Context) (models.NetworkStatus, error)
}

// KeepAliveStatusProvider reports whether the native keep-alive service runs.
type KeepAliveStatusProvider interface {
	KeepAliveStatus() string
}

// InterfaceLister returns the host network interfaces.
type InterfaceLister func() ([]net.InterfaceStat, error)

// HostInfoFunc returns host platform information.
type HostInfoFunc func() (*host.InfoStat, error)

// HostCollector builds snapshots from the local host.
type HostCollector struct {
	deviceInfo   identity.DeviceInfoInterface
	keepAlive    KeepAliveStatusProvider
	fileClient   file.FileOperations
	batteryPath  string
	screenWidth  int
	screenHeight int
	logger       zerolog.Logger

	hostInfo   HostInfoFunc
	interfaces InterfaceLister
	now        func() time.Time
}

// NewHostCollector creates a HostCollector. batteryPath points at a sysfs
// capacity file and may be empty.
func NewHostCollector(deviceInfo identity.DeviceInfoInterface, fileClient file.FileOperations,
	batteryPath string, screenWidth, screenHeight int, logger zerolog.Logger) *HostCollector {
	return &HostCollector{
		deviceInfo:   deviceInfo,
		fileClient:   fileClient,
		batteryPath:  batteryPath,
		screenWidth:  screenWidth,
		screenHeight: screenHeight,
		logger:       logger,
		hostInfo:     host.Info,
		interfaces:   net.Interfaces,
		now:          time.Now,
	}
}

// SetKeepAliveStatusProvider attaches the source of the keep-alive status.
func (c *HostCollector) SetKeepAliveStatusProvider(p KeepAliveStatusProvider) {
	c.keepAlive = p
}

// Collect implements SnapshotCollector.
func (c *HostCollector) Collect(ctx context.Context) (models.DeviceSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.DeviceSnapshot{}, err
	}

	info, err := c.hostInfo()
	if err != nil {
		return models.DeviceSnapshot{}, fmt.Errorf("failed to read host info: %w", err)
	}

	snapshot := models.DeviceSnapshot{
		DeviceID:        c.deviceInfo.GetDeviceID(),
		AppVersion:      c.deviceInfo.GetAppVersion(),
		SystemVersion:   strings.TrimSpace(info.Platform + " " + info.PlatformVersion),
		DeviceModel:     deviceModel(info),
		KeepAliveStatus: constants.KeepAliveUnknown,
		Timestamp:       c.now(),
		BatteryLevel:    c.batteryLevel(),
		NetworkType:     constants.UnknownNetworkType,
		ScreenWidth:     c.screenWidth,
		ScreenHeight:    c.screenHeight,
	}
	if snapshot.SystemVersion == "" {
		snapshot.SystemVersion = constants.UnknownValue
	}
	if c.keepAlive != nil {
		snapshot.KeepAliveStatus = c.keepAlive.KeepAliveStatus()
	}

	if ifaces, err := c.interfaces(); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to list network interfaces")
	} else {
		snapshot.NetworkType = ClassifyNetwork(ifaces)
	}

	return snapshot, nil
}

// batteryLevel reads a sysfs capacity file, returning -1 when unavailable.
func (c *HostCollector) batteryLevel() int {
	if c.batteryPath == "" || c.fileClient == nil {
		return constants.UnknownBattery
	}
	raw, err := c.fileClient.ReadFile(c.batteryPath)
	if err != nil {
		return constants.UnknownBattery
	}
	level, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || level < 0 || level > 100 {
		return constants.UnknownBattery
	}
	return level
}

func deviceModel(info *host.InfoStat) string {
	parts := make([]string, 0, 2)
	if info.PlatformFamily != "" {
		parts = append(parts, info.PlatformFamily)
	}
	if info.KernelArch != "" {
		parts = append(parts, info.KernelArch)
	}
	if len(parts) == 0 {
		return constants.UnknownValue
	}
	return strings.Join(parts, " ")
}

// ClassifyNetwork derives a network type from the interfaces that are up.
// Wireless wins over cellular, cellular over wired.
func ClassifyNetwork(ifaces []net.InterfaceStat) string {
	var wifi, cellular, wired, other bool
	for _, iface := range ifaces {
		if !hasFlag(iface.Flags, "up") || hasFlag(iface.Flags, "loopback") || len(iface.Addrs) == 0 {
			continue
		}
		name := strings.ToLower(iface.Name)
		switch {
		case strings.HasPrefix(name, "wl"):
			wifi = true
		case strings.HasPrefix(name, "ww"), strings.HasPrefix(name, "rmnet"), strings.HasPrefix(name, "usb"):
			cellular = true
		case strings.HasPrefix(name, "en"), strings.HasPrefix(name, "eth"):
			wired = true
		default:
			other = true
		}
	}

	switch {
	case wifi:
		return constants.NetworkTypeWifi
	case cellular:
		return "4g"
	case wired:
		return "ethernet"
	case other:
		return constants.UnknownNetworkType
	default:
		return constants.NetworkTypeNone
	}
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

// InterfaceConnectivity checks connectivity from the host interface table.
type InterfaceConnectivity struct {
	interfaces InterfaceLister
}

// NewInterfaceConnectivity creates a checker using gopsutil's interface list.
func NewInterfaceConnectivity() *InterfaceConnectivity {
	return &InterfaceConnectivity{interfaces: net.Interfaces}
}

// Check implements ConnectivityChecker. A failed lookup reports disconnected.
func (c *InterfaceConnectivity) Check(ctx context.Context) (models.NetworkStatus, error) {
	if err := ctx.Err(); err != nil {
		return models.NetworkStatus{NetworkType: constants.UnknownNetworkType}, err
	}
	ifaces, err := c.interfaces()
	if err != nil {
		return models.NetworkStatus{NetworkType: constants.UnknownNetworkType}, nil
	}
	networkType := ClassifyNetwork(ifaces)
	return models.NetworkStatus{
		IsConnected: networkType != constants.NetworkTypeNone,
		NetworkType: networkType,
	}, nil
}
