// Package events provides typed publish/subscribe channels with explicit
// subscription handles.
package events

import (
	"sync/atomic"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id      string
	release func(id string)
}

// Unsubscribe removes the handler. Calling it more than once is harmless.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.release == nil {
		return
	}
	s.release(s.id)
	s.release = nil
}

// Channel delivers published values of type T to every current subscriber.
// Handlers run synchronously on the publisher's goroutine.
type Channel[T any] struct {
	name     string
	handlers cmap.ConcurrentMap[string, func(T)]
	closed   atomic.Bool
}

// NewChannel creates an empty channel.
func NewChannel[T any](name string) *Channel[T] {
	return &Channel[T]{
		name:     name,
		handlers: cmap.New[func(T)](),
	}
}

// Name returns the channel name.
func (c *Channel[T]) Name() string {
	return c.name
}

// Subscribe registers handler. Subscribing to a closed channel returns an
// inert handle.
func (c *Channel[T]) Subscribe(handler func(T)) *Subscription {
	if c.closed.Load() || handler == nil {
		return &Subscription{}
	}
	id := uuid.New().String()
	c.handlers.Set(id, handler)
	return &Subscription{id: id, release: c.handlers.Remove}
}

// Publish delivers v to all subscribers and returns how many received it.
func (c *Channel[T]) Publish(v T) int {
	if c.closed.Load() {
		return 0
	}
	delivered := 0
	for item := range c.handlers.IterBuffered() {
		item.Val(v)
		delivered++
	}
	return delivered
}

// Subscribers returns the number of registered handlers.
func (c *Channel[T]) Subscribers() int {
	return c.handlers.Count()
}

// Close removes every subscriber and rejects further publishes.
func (c *Channel[T]) Close() {
	c.closed.Store(true)
	c.handlers.Clear()
}

// Reset removes every subscriber but keeps the channel usable.
func (c *Channel[T]) Reset() {
	c.handlers.Clear()
}
