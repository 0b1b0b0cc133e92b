package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/benmeehan/keepalive-agent/internal/constants"
	"github.com/benmeehan/keepalive-agent/internal/models"
	"github.com/benmeehan/keepalive-agent/pkg/file"
	"golang.org/x/net/http2"
)

const maxResponseBytes = 1 << 20

// TLSFiles names the certificate material for mutual TLS.
type TLSFiles struct {
	CACertificate string
	ClientCert    string
	ClientKey     string
}

// Enabled reports whether mutual TLS is configured.
func (t TLSFiles) Enabled() bool {
	return t.ClientCert != "" && t.ClientKey != ""
}

// BuildHTTPClient returns a plain client, or an HTTP/2 client with mutual TLS
// when certificate files are configured.
func BuildHTTPClient(files TLSFiles, timeout time.Duration, fileClient file.FileOperations) (*http.Client, error) {
	if !files.Enabled() {
		return &http.Client{Timeout: timeout}, nil
	}

	clientCert, err := tls.LoadX509KeyPair(files.ClientCert, files.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{clientCert},
		MinVersion:   tls.VersionTLS12,
	}

	if files.CACertificate != "" {
		caCert, err := fileClient.ReadFileRaw(files.CACertificate)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = pool
	}

	return &http.Client{
		Transport: &http2.Transport{TLSClientConfig: tlsConfig},
		Timeout:   timeout,
	}, nil
}

// HTTPTransport posts heartbeats to {baseURL}/api/heartbeat.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
}

// NewHTTPTransport creates an HTTPTransport.
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: constants.DefaultRequestTimeout}
	}
	return &HTTPTransport{
		endpoint: strings.TrimRight(baseURL, "/") + constants.HeartbeatPath,
		client:   client,
	}
}

// Endpoint returns the full heartbeat URL.
func (t *HTTPTransport) Endpoint() string {
	return t.endpoint
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, snapshot models.DeviceSnapshot) (any, error) {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize heartbeat: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build heartbeat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("heartbeat request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read heartbeat response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError && len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	return data, nil
}
