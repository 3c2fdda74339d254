package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/nodeos/service/messaging"
	"go.uber.org/goleak"
)

type slice struct {
	ProcessID string
	Core      int
}

func TestQueue(t *testing.T) {
	queue := NewQueue[slice](DefaultConfig())
	ctx := context.Background()

	require.NoError(t, queue.Publish(ctx, &slice{ProcessID: "p1", Core: 2}))
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, "p1", message.T().ProcessID)
	assert.Equal(t, 2, message.T().Core)

	require.NoError(t, message.Ack())
	assert.Error(t, message.Ack())
	assert.Error(t, message.Nack(nil))
}

func TestQueue_Retries(t *testing.T) {
	var testCases = []struct {
		description string
		maxRetries  int
		deadLetter  bool
		expectDLQ   int
	}{
		{description: "dead letter after retries", maxRetries: 2, deadLetter: true, expectDLQ: 1},
		{description: "dropped without dead letter", maxRetries: 1},
		{description: "no retries", maxRetries: 0, deadLetter: true, expectDLQ: 1},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			config := DefaultConfig()
			config.MaxRetries = tc.maxRetries
			config.DeadLetter = tc.deadLetter
			queue := NewQueue[slice](config)
			ctx := context.Background()
			require.NoError(t, queue.Publish(ctx, &slice{ProcessID: "p1"}))

			deliveries := 0
			for queue.Size() > 0 {
				message, err := queue.Consume(ctx)
				require.NoError(t, err)
				deliveries++
				require.NoError(t, message.Nack(errors.New("worker busy")))
			}
			assert.Equal(t, tc.maxRetries+1, deliveries)
			assert.Equal(t, tc.expectDLQ, queue.DLQSize())
			if tc.expectDLQ > 0 {
				assert.Equal(t, "p1", queue.DeadLetters()[0].ProcessID)
			}
		})
	}
}

func TestQueue_NonBlocking(t *testing.T) {
	config := DefaultConfig()
	config.QueueBuffer = 2
	config.Blocking = false
	queue := NewQueue[slice](config)
	ctx := context.Background()

	require.NoError(t, queue.Publish(ctx, &slice{ProcessID: "p1"}))
	require.NoError(t, queue.Publish(ctx, &slice{ProcessID: "p2"}))
	err := queue.Publish(ctx, &slice{ProcessID: "p3"})
	assert.True(t, errors.Is(err, messaging.ErrQueueFull))

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	require.NoError(t, queue.Publish(ctx, &slice{ProcessID: "p3"}))
	// the queue is full again, so the redelivery is dead-lettered
	require.NoError(t, message.Nack(nil))
	assert.Equal(t, 1, queue.DLQSize())
}

func TestQueue_Close(t *testing.T) {
	defer goleak.VerifyNone(t)
	config := DefaultConfig()
	config.QueueBuffer = 1
	queue := NewQueue[slice](config)
	ctx := context.Background()
	require.NoError(t, queue.Publish(ctx, &slice{ProcessID: "p1"}))

	blocked := make(chan error, 1)
	go func() { blocked <- queue.Publish(ctx, &slice{ProcessID: "p2"}) }()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		queue.Close()
	}()
	wg.Wait()
	queue.Close()

	assert.True(t, errors.Is(<-blocked, messaging.ErrClosed))
	assert.True(t, errors.Is(queue.Publish(ctx, &slice{ProcessID: "p3"}), messaging.ErrClosed))

	message, err := queue.Consume(ctx)
	require.NoError(t, err, "buffered messages survive Close")
	assert.Equal(t, "p1", message.T().ProcessID)
	_, err = queue.Consume(ctx)
	assert.True(t, errors.Is(err, messaging.ErrClosed))
}

func TestQueue_Concurrency(t *testing.T) {
	defer goleak.VerifyNone(t)
	queue := NewQueue[slice](DefaultConfig())
	ctx := context.Background()
	producers, perProducer := 8, 25

	var consumed sync.Map
	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(2)
		go func(producer int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				assert.NoError(t, queue.Publish(ctx, &slice{ProcessID: fmt.Sprintf("p%d-%d", producer, j)}))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				message, err := queue.Consume(ctx)
				if !assert.NoError(t, err) {
					return
				}
				consumed.Store(message.T().ProcessID, true)
				assert.NoError(t, message.Ack())
			}
		}()
	}
	wg.Wait()

	count := 0
	consumed.Range(func(_, _ any) bool { count++; return true })
	assert.Equal(t, producers*perProducer, count)
	assert.Equal(t, 0, queue.Size())
}

func TestQueue_ContextCancellation(t *testing.T) {
	queue := NewQueue[slice](DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, queue.Publish(ctx, &slice{ProcessID: "p1"}))

	timeoutCtx, cancelTimeout := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelTimeout()
	_, err := queue.Consume(timeoutCtx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
