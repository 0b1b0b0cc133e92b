package transport_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benmeehan/keepalive-agent/internal/models"
	"github.com/benmeehan/keepalive-agent/pkg/file"
	"github.com/benmeehan/keepalive-agent/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport_Send(t *testing.T) {
	var received models.DeviceSnapshot
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/heartbeat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))

		_, _ = w.Write([]byte(`{"code":200,"data":{}}`))
	}))
	defer server.Close()

	tr := transport.NewHTTPTransport(server.URL+"/", server.Client())
	assert.Equal(t, server.URL+"/api/heartbeat", tr.Endpoint())

	raw, err := tr.Send(context.Background(), models.DeviceSnapshot{DeviceID: "device_1", NetworkType: "wifi"})
	require.NoError(t, err)
	assert.Equal(t, "device_1", received.DeviceID)

	code, ok := transport.ResponseCode(transport.NormalizeResponse(raw))
	assert.True(t, ok)
	assert.Equal(t, 200, code)
}

func TestHTTPTransport_ServerErrorWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	tr := transport.NewHTTPTransport(server.URL, server.Client())
	_, err := tr.Send(context.Background(), models.DeviceSnapshot{})
	assert.Error(t, err)
}

func TestHTTPTransport_Unreachable(t *testing.T) {
	tr := transport.NewHTTPTransport("http://127.0.0.1:1", &http.Client{Timeout: time.Second})
	_, err := tr.Send(context.Background(), models.DeviceSnapshot{})
	assert.Error(t, err)
}

func TestBuildHTTPClient_Plain(t *testing.T) {
	client, err := transport.BuildHTTPClient(transport.TLSFiles{}, 3*time.Second, file.NewFileService())
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, client.Timeout)
	assert.Nil(t, client.Transport)
}

func TestBuildHTTPClient_MissingCertificate(t *testing.T) {
	_, err := transport.BuildHTTPClient(transport.TLSFiles{
		ClientCert: "/nonexistent/cert.pem",
		ClientKey:  "/nonexistent/key.pem",
	}, time.Second, file.NewFileService())
	assert.Error(t, err)
}
