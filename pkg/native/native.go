// Package native describes the contract of a platform keep-alive module: a set
// of named asynchronous operations answered through a callback, plus a small
// set of module-originated event channels.
package native

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNoImplementation is returned when an operation has no function for the
// calling convention it declares.
var ErrNoImplementation = errors.New("operation has no implementation")

// Params are the arguments of a native call.
type Params map[string]any

// Result is the value a native operation hands to its callback.
type Result map[string]any

// Success reports whether the result is a success. Only an explicit
// "success": false marks a failure.
func (r Result) Success() bool {
	v, ok := r["success"]
	if !ok {
		return true
	}
	b, isBool := v.(bool)
	return !isBool || b
}

// Message returns the "message" field as a string, or "".
func (r Result) Message() string {
	if s, ok := r["message"].(string); ok {
		return s
	}
	return ""
}

// Callback receives the result of a native operation.
type Callback func(Result)

// CallConvention is the signature a native operation expects.
type CallConvention int

const (
	// CallbackOnly operations take no parameters.
	CallbackOnly CallConvention = iota
	// ParamsAndCallback operations always receive a parameter object.
	ParamsAndCallback
	// Either operations accept both forms; parameters are passed only when non-empty.
	Either
)

func (c CallConvention) String() string {
	switch c {
	case CallbackOnly:
		return "callback-only"
	case ParamsAndCallback:
		return "params-and-callback"
	case Either:
		return "either"
	default:
		return fmt.Sprintf("convention(%d)", int(c))
	}
}

// Operation describes one native operation. The convention is fixed when the
// operation is registered.
type Operation struct {
	Name           string
	Convention     CallConvention
	Call           func(cb Callback)
	CallWithParams func(params Params, cb Callback)
}

// Check verifies that the operation can be invoked with params without
// running it.
func (op Operation) Check(params Params) error {
	_, err := op.resolve(params)
	return err
}

// Invoke runs the operation using the form its convention requires.
func (op Operation) Invoke(params Params, cb Callback) error {
	run, err := op.resolve(params)
	if err != nil {
		return err
	}
	run(cb)
	return nil
}

func (op Operation) resolve(params Params) (func(Callback), error) {
	withParams := func(cb Callback) {
		p := params
		if p == nil {
			p = Params{}
		}
		op.CallWithParams(p, cb)
	}

	switch op.Convention {
	case CallbackOnly:
		if op.Call != nil {
			return op.Call, nil
		}
	case ParamsAndCallback:
		if op.CallWithParams != nil {
			return withParams, nil
		}
	case Either:
		if len(params) > 0 && op.CallWithParams != nil {
			return withParams, nil
		}
		if op.Call != nil {
			return op.Call, nil
		}
		if op.CallWithParams != nil {
			return withParams, nil
		}
	}
	return nil, fmt.Errorf("%w: %s (%s)", ErrNoImplementation, op.Name, op.Convention)
}

// Module is a resolved native keep-alive module.
type Module interface {
	// Operation looks up an operation by name.
	Operation(name string) (Operation, bool)
	// On subscribes to a module event and returns the unsubscribe function.
	On(event string, handler func(data map[string]any)) (unsubscribe func())
}

// Host resolves native modules for the running platform.
type Host interface {
	Platform() string
	Load(id string) (Module, bool)
}

// Registry is an in-process Host.
type Registry struct {
	platform string
	mu       sync.RWMutex
	modules  map[string]Module
}

// NewRegistry creates an empty registry for platform.
func NewRegistry(platform string) *Registry {
	return &Registry{
		platform: platform,
		modules:  make(map[string]Module),
	}
}

// Register makes module resolvable under id, replacing any previous module.
func (r *Registry) Register(id string, module Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[id] = module
}

// Platform implements Host.
func (r *Registry) Platform() string {
	return r.platform
}

// Load implements Host.
func (r *Registry) Load(id string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[id]
	return m, ok
}
