package native

import (
	"sync"

	"github.com/benmeehan/keepalive-agent/pkg/events"
)

// Dispatcher is a ready-made Module implementation: an operation table plus
// one event channel per event name. Module implementations embed it.
type Dispatcher struct {
	mu       sync.RWMutex
	ops      map[string]Operation
	channels map[string]*events.Channel[map[string]any]
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		ops:      make(map[string]Operation),
		channels: make(map[string]*events.Channel[map[string]any]),
	}
}

// Handle registers a callback-only operation.
func (d *Dispatcher) Handle(name string, fn func(cb Callback)) {
	d.Register(Operation{Name: name, Convention: CallbackOnly, Call: fn})
}

// HandleWithParams registers a params-and-callback operation.
func (d *Dispatcher) HandleWithParams(name string, fn func(params Params, cb Callback)) {
	d.Register(Operation{Name: name, Convention: ParamsAndCallback, CallWithParams: fn})
}

// Register adds or replaces an operation.
func (d *Dispatcher) Register(op Operation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ops[op.Name] = op
}

// Operation implements Module.
func (d *Dispatcher) Operation(name string) (Operation, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	op, ok := d.ops[name]
	return op, ok
}

// On implements Module.
func (d *Dispatcher) On(event string, handler func(data map[string]any)) func() {
	return d.channel(event).Subscribe(handler).Unsubscribe
}

// Emit publishes data to the subscribers of event and returns how many were reached.
func (d *Dispatcher) Emit(event string, data map[string]any) int {
	return d.channel(event).Publish(data)
}

// Listeners returns the number of subscribers of event.
func (d *Dispatcher) Listeners(event string) int {
	return d.channel(event).Subscribers()
}

func (d *Dispatcher) channel(event string) *events.Channel[map[string]any] {
	d.mu.RLock()
	ch, ok := d.channels[event]
	d.mu.RUnlock()
	if ok {
		return ch
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.channels[event]; ok {
		return ch
	}
	ch = events.NewChannel[map[string]any](event)
	d.channels[event] = ch
	return ch
}
