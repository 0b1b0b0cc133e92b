package mocks

import (
	"context"

	"github.com/benmeehan/keepalive-agent/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockSnapshotCollector is a mock implementation of sysinfo.SnapshotCollector
type MockSnapshotCollector struct {
	mock.Mock
}

func (m *MockSnapshotCollector) Collect(ctx context.Context) (models.DeviceSnapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.DeviceSnapshot), args.Error(1)
}

// MockConnectivityChecker is a mock implementation of sysinfo.ConnectivityChecker
type MockConnectivityChecker struct {
	mock.Mock
}

func (m *MockConnectivityChecker) Check(ctx context.Context) (models.NetworkStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.NetworkStatus), args.Error(1)
}
