package native_test

import (
	"testing"

	"github.com/benmeehan/keepalive-agent/pkg/native"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_Success(t *testing.T) {
	assert.True(t, native.Result{}.Success())
	assert.True(t, native.Result{"success": true}.Success())
	assert.True(t, native.Result{"success": "yes"}.Success())
	assert.False(t, native.Result{"success": false}.Success())

	assert.Equal(t, "boom", native.Result{"message": "boom"}.Message())
	assert.Equal(t, "", native.Result{"message": 3}.Message())
}

func TestOperation_CallConventions(t *testing.T) {
	var calledWith []string
	callbackOnly := func(cb native.Callback) {
		calledWith = append(calledWith, "callback")
		cb(native.Result{})
	}
	withParams := func(p native.Params, cb native.Callback) {
		calledWith = append(calledWith, "params")
		cb(native.Result{"count": len(p)})
	}

	tests := []struct {
		name   string
		op     native.Operation
		params native.Params
		want   string
	}{
		{
			name:   "callback only ignores params",
			op:     native.Operation{Name: "start", Convention: native.CallbackOnly, Call: callbackOnly},
			params: native.Params{"x": 1},
			want:   "callback",
		},
		{
			name: "params and callback without params",
			op:   native.Operation{Name: "init", Convention: native.ParamsAndCallback, CallWithParams: withParams},
			want: "params",
		},
		{
			name:   "either with params",
			op:     native.Operation{Name: "logs", Convention: native.Either, Call: callbackOnly, CallWithParams: withParams},
			params: native.Params{"count": 5},
			want:   "params",
		},
		{
			name: "either with empty params",
			op:   native.Operation{Name: "logs", Convention: native.Either, Call: callbackOnly, CallWithParams: withParams},
			want: "callback",
		},
		{
			name: "either with only params form",
			op:   native.Operation{Name: "logs", Convention: native.Either, CallWithParams: withParams},
			want: "params",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calledWith = nil
			var got native.Result
			require.NoError(t, tt.op.Invoke(tt.params, func(r native.Result) { got = r }))
			assert.Equal(t, []string{tt.want}, calledWith)
			assert.NotNil(t, got)
		})
	}
}

func TestOperation_MissingImplementation(t *testing.T) {
	op := native.Operation{Name: "start", Convention: native.ParamsAndCallback,
		Call: func(cb native.Callback) { cb(native.Result{}) }}

	assert.ErrorIs(t, op.Check(nil), native.ErrNoImplementation)
	assert.ErrorIs(t, op.Invoke(nil, func(native.Result) {}), native.ErrNoImplementation)
}

func TestDispatcher(t *testing.T) {
	d := native.NewDispatcher()
	d.Handle("start", func(cb native.Callback) { cb(native.Result{"success": true}) })
	d.HandleWithParams("init", func(p native.Params, cb native.Callback) { cb(native.Result(p)) })

	op, ok := d.Operation("start")
	require.True(t, ok)
	assert.Equal(t, native.CallbackOnly, op.Convention)

	op, ok = d.Operation("init")
	require.True(t, ok)
	assert.Equal(t, native.ParamsAndCallback, op.Convention)

	_, ok = d.Operation("missing")
	assert.False(t, ok)

	var received []map[string]any
	unsubscribe := d.On("heartbeat-fired", func(data map[string]any) { received = append(received, data) })
	assert.Equal(t, 1, d.Listeners("heartbeat-fired"))
	assert.Equal(t, 1, d.Emit("heartbeat-fired", map[string]any{"n": 1}))

	unsubscribe()
	assert.Equal(t, 0, d.Emit("heartbeat-fired", map[string]any{"n": 2}))
	assert.Len(t, received, 1)
}

func TestRegistry(t *testing.T) {
	r := native.NewRegistry("linux")
	assert.Equal(t, "linux", r.Platform())

	_, ok := r.Load("CB-KeepAlive")
	assert.False(t, ok)

	r.Register("CB-KeepAlive", native.NewDispatcher())
	m, ok := r.Load("CB-KeepAlive")
	assert.True(t, ok)
	assert.NotNil(t, m)
}
