package transport_test

import (
	"encoding/json"
	"testing"

	"github.com/benmeehan/keepalive-agent/pkg/transport"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		wantNil bool
		code    int
	}{
		{name: "bytes", raw: []byte(`{"code":200}`), code: 200},
		{name: "string", raw: `{"code":301,"message":"login"}`, code: 301},
		{name: "raw message", raw: json.RawMessage(`{"code":500}`), code: 500},
		{name: "map", raw: map[string]any{"code": 200}, code: 200},
		{name: "garbage", raw: "not json", wantNil: true},
		{name: "array", raw: []byte(`[1,2]`), wantNil: true},
		{name: "empty", raw: []byte("  "), wantNil: true},
		{name: "nil", raw: nil, wantNil: true},
		{name: "number", raw: 42, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := transport.NormalizeResponse(tt.raw)
			if tt.wantNil {
				assert.Nil(t, resp)
				return
			}
			code, ok := transport.ResponseCode(resp)
			assert.True(t, ok)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestResponseCode(t *testing.T) {
	tests := []struct {
		name string
		code any
		want int
		ok   bool
	}{
		{name: "numeric string", code: "200", want: 200, ok: true},
		{name: "json number", code: json.Number("301"), want: 301, ok: true},
		{name: "fractional", code: 200.5, ok: false},
		{name: "word", code: "ok", ok: false},
		{name: "missing", code: nil, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := transport.ResponseCode(map[string]any{"code": tt.code})
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}

	_, ok := transport.ResponseCode(nil)
	assert.False(t, ok)
}
