// Package transport delivers heartbeat snapshots to the server and returns the
// raw, unparsed server response.
package transport

import (
	"context"

	"github.com/benmeehan/keepalive-agent/internal/models"
)

// Transport sends one heartbeat. The returned value is the raw response body
// (usually []byte); interpreting it is left to the caller.
type Transport interface {
	Send(ctx context.Context, snapshot models.DeviceSnapshot) (any, error)
}
