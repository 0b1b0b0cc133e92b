package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benmeehan/keepalive-agent/internal/models"
	"github.com/benmeehan/keepalive-agent/pkg/mqtt"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// ErrResponseTimeout is returned when no MQTT response arrives in time.
var ErrResponseTimeout = errors.New("heartbeat response timeout")

// MQTTTransport publishes heartbeats and waits for the reply on
// {topic}/response/{deviceId}.
type MQTTTransport struct {
	topic           string
	qos             int
	responseTimeout time.Duration
	mqttClient      mqtt.MQTTClient
	logger          zerolog.Logger
}

// NewMQTTTransport creates an MQTTTransport.
func NewMQTTTransport(topic string, qos int, responseTimeout time.Duration, mqttClient mqtt.MQTTClient, logger zerolog.Logger) *MQTTTransport {
	return &MQTTTransport{
		topic:           topic,
		qos:             qos,
		responseTimeout: responseTimeout,
		mqttClient:      mqttClient,
		logger:          logger,
	}
}

// ResponseTopic returns the topic replies for deviceID arrive on.
func (t *MQTTTransport) ResponseTopic(deviceID string) string {
	return fmt.Sprintf("%s/response/%s", t.topic, deviceID)
}

// Send implements Transport.
func (t *MQTTTransport) Send(ctx context.Context, snapshot models.DeviceSnapshot) (any, error) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize heartbeat: %w", err)
	}

	respTopic := t.ResponseTopic(snapshot.DeviceID)
	responses := make(chan []byte, 1)

	token := t.mqttClient.Subscribe(respTopic, byte(t.qos), func(_ MQTT.Client, msg MQTT.Message) {
		select {
		case responses <- msg.Payload():
		default:
			t.logger.Debug().Str("topic", respTopic).Msg("Dropping duplicate heartbeat response")
		}
	})
	if err := waitToken(token, t.responseTimeout); err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", respTopic, err)
	}
	defer func() {
		if err := waitToken(t.mqttClient.Unsubscribe(respTopic), t.responseTimeout); err != nil {
			t.logger.Warn().Err(err).Str("topic", respTopic).Msg("Failed to unsubscribe from response topic")
		}
	}()

	if err := waitToken(t.mqttClient.Publish(t.topic, byte(t.qos), false, payload), t.responseTimeout); err != nil {
		return nil, fmt.Errorf("failed to publish heartbeat: %w", err)
	}

	timer := time.NewTimer(t.responseTimeout)
	defer timer.Stop()

	select {
	case data := <-responses:
		return data, nil
	case <-timer.C:
		return nil, ErrResponseTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func waitToken(token MQTT.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return errors.New("mqtt operation timed out")
	}
	return token.Error()
}
