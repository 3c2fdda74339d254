package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/nodeos/service/messaging"
	"github.com/viant/nodeos/service/messaging/fs"
	"github.com/viant/nodeos/service/messaging/memory"
	"go.uber.org/goleak"
)

type stateChange struct {
	From string
	To   string
}

type collector[T any] struct {
	mu     sync.Mutex
	events []*Event[T]
}

func (c *collector[T]) handle(event *Event[T]) {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
}

func (c *collector[T]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestService_TypedListener(t *testing.T) {
	var testCases = []struct {
		description string
		vendor      messaging.Vendor
		options     []Option
	}{
		{description: "memory", vendor: messaging.VendorMemory},
		{description: "fs", vendor: messaging.VendorFS, options: []Option{
			WithFsQueueConfig(func(name string) fs.Config {
				config := fs.DefaultConfig()
				config.BaseURL = "mem://localhost/events/" + name
				config.PollInterval = 2 * time.Millisecond
				return config
			}),
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			defer goleak.VerifyNone(t)
			service, err := New(tc.vendor, tc.options...)
			require.NoError(t, err)
			defer service.Close()

			typed := &collector[stateChange]{}
			untyped := &collector[any]{}
			require.NoError(t, SetListenerOf[stateChange](service, typed.handle))
			service.SetListener(untyped.handle)

			publisher, err := PublisherOf[stateChange](service)
			require.NoError(t, err)
			same, err := PublisherOf[stateChange](service)
			require.NoError(t, err)
			assert.Same(t, publisher, same)

			ctx := context.Background()
			require.NoError(t, publisher.Publish(ctx, NewEvent(&Context{ProcessID: "p1", EventType: "transition"}, stateChange{From: "NEW", To: "READY"})))
			require.NoError(t, publisher.Publish(ctx, NewEvent(&Context{ProcessID: "p1", EventType: "transition"}, stateChange{From: "READY", To: "RUNNING"})))

			assert.Eventually(t, func() bool { return typed.len() == 2 && untyped.len() == 2 }, time.Second, 5*time.Millisecond)
			typed.mu.Lock()
			assert.Equal(t, "RUNNING", typed.events[1].Data.To)
			assert.Equal(t, "p1", typed.events[1].Context.ProcessID)
			typed.mu.Unlock()
		})
	}
}

func TestService_NonBlockingMemory(t *testing.T) {
	service, err := New(messaging.VendorMemory, WithMemoryQueueConfig(func(string) memory.Config {
		return memory.Config{QueueBuffer: 1}
	}))
	require.NoError(t, err)
	defer service.Close()

	publisher, err := PublisherOf[stateChange](service)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, publisher.Publish(ctx, NewEvent(&Context{EventType: "transition"}, stateChange{To: "READY"})))
	err = publisher.Publish(ctx, NewEvent(&Context{EventType: "transition"}, stateChange{To: "RUNNING"}))
	assert.True(t, errors.Is(err, messaging.ErrQueueFull))

	event, err := publisher.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "READY", event.Data.To)
}

func TestService_ReplaceListener(t *testing.T) {
	defer goleak.VerifyNone(t)
	service, err := New(messaging.VendorMemory)
	require.NoError(t, err)
	first := &collector[stateChange]{}
	second := &collector[stateChange]{}
	require.NoError(t, SetListenerOf[stateChange](service, first.handle))
	require.NoError(t, SetListenerOf[stateChange](service, second.handle))

	publisher, err := PublisherOf[stateChange](service)
	require.NoError(t, err)
	require.NoError(t, publisher.Publish(context.Background(), NewEvent(&Context{EventType: "transition"}, stateChange{To: "READY"})))
	assert.Eventually(t, func() bool { return second.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, first.len())
	service.Close()
}

func TestNew_UnsupportedVendor(t *testing.T) {
	_, err := New("kafka")
	assert.Error(t, err)
}
