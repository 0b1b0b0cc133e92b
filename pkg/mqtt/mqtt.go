package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/benmeehan/keepalive-agent/pkg/file"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// MQTTClient is the subset of the paho client the heartbeat transport uses.
type MQTTClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
}

// Options configures the broker connection.
type Options struct {
	Broker         string
	ClientID       string
	CACertificate  string // PEM file; TLS is enabled when set
	ConnectTimeout time.Duration
}

// MqttService owns one paho client connection.
type MqttService struct {
	client     MQTTClient
	fileClient file.FileOperations
	logger     zerolog.Logger
}

// NewMqttService creates an unconnected MqttService.
func NewMqttService(fileClient file.FileOperations, logger zerolog.Logger) *MqttService {
	return &MqttService{
		fileClient: fileClient,
		logger:     logger,
	}
}

// Initialize builds the client and blocks until it is connected or the
// connect timeout passes.
func (s *MqttService) Initialize(opts Options) error {
	clientOpts, err := s.clientOptions(opts)
	if err != nil {
		return err
	}

	s.client = mqtt.NewClient(clientOpts)

	token := s.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		return fmt.Errorf("timed out connecting to %s", opts.Broker)
	}
	return token.Error()
}

func (s *MqttService) clientOptions(opts Options) (*mqtt.ClientOptions, error) {
	if opts.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(opts.ConnectTimeout).
		SetOnConnectHandler(func(mqtt.Client) {
			s.logger.Info().Str("broker", opts.Broker).Msg("Connected to MQTT broker")
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			s.logger.Warn().Err(err).Str("broker", opts.Broker).Msg("MQTT connection lost, reconnecting")
		})

	if opts.CACertificate == "" {
		return clientOpts, nil
	}

	caCert, err := s.fileClient.ReadFileRaw(opts.CACertificate)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("no PEM certificates in %s", opts.CACertificate)
	}
	clientOpts.SetTLSConfig(&tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	})
	return clientOpts, nil
}

// Connect starts a connection attempt.
func (s *MqttService) Connect() mqtt.Token {
	return s.client.Connect()
}

// Publish sends payload to topic.
func (s *MqttService) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return s.client.Publish(topic, qos, retained, payload)
}

// Subscribe registers callback for topic.
func (s *MqttService) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return s.client.Subscribe(topic, qos, callback)
}

// Unsubscribe removes the subscriptions for topics.
func (s *MqttService) Unsubscribe(topics ...string) mqtt.Token {
	return s.client.Unsubscribe(topics...)
}

// Disconnect closes the connection after waiting quiesce milliseconds for
// in-flight work. It is a no-op before Initialize.
func (s *MqttService) Disconnect(quiesce uint) {
	if s.client != nil {
		s.client.Disconnect(quiesce)
		s.logger.Info().Msg("Disconnected from MQTT broker")
	}
}
