package transport_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benmeehan/keepalive-agent/internal/mocks"
	"github.com/benmeehan/keepalive-agent/internal/models"
	"github.com/benmeehan/keepalive-agent/pkg/transport"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMQTTTransport_Send(t *testing.T) {
	mockClient := new(mocks.MockMQTTClient)
	token := mocks.NewCompletedToken(nil)

	var handler MQTT.MessageHandler
	mockClient.On("Subscribe", "heartbeat/response/device_1", byte(1), mock.Anything).
		Run(func(args mock.Arguments) {
			handler = args.Get(2).(MQTT.MessageHandler)
		}).Return(token)
	mockClient.On("Publish", "heartbeat", byte(1), false, mock.Anything).
		Run(func(args mock.Arguments) {
			handler(nil, mocks.NewMockMessage("heartbeat/response/device_1", []byte(`{"code":200}`)))
		}).Return(token)
	mockClient.On("Unsubscribe", []string{"heartbeat/response/device_1"}).Return(token)

	tr := transport.NewMQTTTransport("heartbeat", 1, time.Second, mockClient, zerolog.Nop())
	raw, err := tr.Send(context.Background(), models.DeviceSnapshot{DeviceID: "device_1"})
	require.NoError(t, err)

	code, ok := transport.ResponseCode(transport.NormalizeResponse(raw))
	assert.True(t, ok)
	assert.Equal(t, 200, code)
	mockClient.AssertExpectations(t)
}

func TestMQTTTransport_ResponseTimeout(t *testing.T) {
	mockClient := new(mocks.MockMQTTClient)
	token := mocks.NewCompletedToken(nil)

	mockClient.On("Subscribe", mock.Anything, mock.Anything, mock.Anything).Return(token)
	mockClient.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(token)
	mockClient.On("Unsubscribe", mock.Anything).Return(token)

	tr := transport.NewMQTTTransport("heartbeat", 0, 20*time.Millisecond, mockClient, zerolog.Nop())
	_, err := tr.Send(context.Background(), models.DeviceSnapshot{DeviceID: "device_1"})
	assert.ErrorIs(t, err, transport.ErrResponseTimeout)
	mockClient.AssertCalled(t, "Unsubscribe", []string{"heartbeat/response/device_1"})
}

func TestMQTTTransport_SubscribeTimeout(t *testing.T) {
	mockClient := new(mocks.MockMQTTClient)
	token := mocks.NewStalledToken()

	mockClient.On("Subscribe", mock.Anything, mock.Anything, mock.Anything).Return(token)

	tr := transport.NewMQTTTransport("heartbeat", 0, 10*time.Millisecond, mockClient, zerolog.Nop())
	_, err := tr.Send(context.Background(), models.DeviceSnapshot{DeviceID: "device_1"})
	assert.Error(t, err)
	mockClient.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMQTTTransport_PublishError(t *testing.T) {
	mockClient := new(mocks.MockMQTTClient)
	ok := mocks.NewCompletedToken(nil)

	mockClient.On("Subscribe", mock.Anything, mock.Anything, mock.Anything).Return(ok)
	mockClient.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(mocks.NewCompletedToken(errors.New("not connected")))
	mockClient.On("Unsubscribe", mock.Anything).Return(ok)

	tr := transport.NewMQTTTransport("heartbeat", 1, time.Second, mockClient, zerolog.Nop())
	_, err := tr.Send(context.Background(), models.DeviceSnapshot{DeviceID: "device_1"})
	assert.ErrorContains(t, err, "not connected")
	mockClient.AssertCalled(t, "Unsubscribe", []string{"heartbeat/response/device_1"})
}
