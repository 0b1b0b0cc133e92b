package events_test

import (
	"sync"
	"testing"

	"github.com/benmeehan/keepalive-agent/pkg/events"
	"github.com/stretchr/testify/assert"
)

func TestChannel_PublishSubscribe(t *testing.T) {
	ch := events.NewChannel[string]("test")

	var mu sync.Mutex
	var got []string
	sub := ch.Subscribe(func(s string) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})

	assert.Equal(t, 1, ch.Publish("a"))
	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, ch.Publish("b"))

	assert.Equal(t, []string{"a"}, got)
	assert.Equal(t, 0, ch.Subscribers())
}

func TestChannel_Close(t *testing.T) {
	ch := events.NewChannel[int]("test")
	calls := 0
	ch.Subscribe(func(int) { calls++ })

	ch.Close()

	assert.Equal(t, 0, ch.Publish(1))
	assert.Equal(t, 0, calls)

	sub := ch.Subscribe(func(int) { calls++ })
	sub.Unsubscribe()
	assert.Equal(t, 0, ch.Subscribers())
}

func TestChannel_Reset(t *testing.T) {
	ch := events.NewChannel[int]("test")
	ch.Subscribe(func(int) {})
	ch.Subscribe(func(int) {})
	assert.Equal(t, 2, ch.Subscribers())

	ch.Reset()
	assert.Equal(t, 0, ch.Subscribers())

	calls := 0
	ch.Subscribe(func(int) { calls++ })
	assert.Equal(t, 1, ch.Publish(7))
	assert.Equal(t, 1, calls)
}
