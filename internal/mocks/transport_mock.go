package mocks

import (
	"context"

	"github.com/benmeehan/keepalive-agent/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockTransport is a mock implementation of the transport.Transport interface
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(ctx context.Context, snapshot models.DeviceSnapshot) (any, error) {
	args := m.Called(ctx, snapshot)
	return args.Get(0), args.Error(1)
}
