package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeAccessor struct {
	mu      sync.Mutex
	touched map[string][]uint64
	err     error
}

func (f *fakeAccessor) Access(ctx context.Context, pid string, addr uint64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.touched == nil {
		f.touched = make(map[string][]uint64)
	}
	f.touched[pid] = append(f.touched[pid], addr)
	return []byte{0}, nil
}

func startService(t *testing.T, config Config, accessor Accessor) *Service {
	srv, err := New(WithConfig(config), WithAccessor(accessor))
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(srv.Shutdown)
	return srv
}

func nextCompletion(t *testing.T, srv *Service) *Completion {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := srv.Completions().Consume(ctx)
	require.NoError(t, err)
	require.NoError(t, msg.Ack())
	return msg.T()
}

func TestService_Outcomes(t *testing.T) {
	defer goleak.VerifyNone(t)
	testCases := []struct {
		name     string
		slice    Slice
		accessor *fakeAccessor
		expect   Outcome
		runtime  time.Duration
	}{
		{
			name:     "last slice completes",
			slice:    Slice{ProcessID: "p1", Core: 0, Budget: 50 * time.Millisecond, Remaining: 50 * time.Millisecond, Address: 0x1000},
			accessor: &fakeAccessor{},
			expect:   OutcomeCompleted,
			runtime:  50 * time.Millisecond,
		},
		{
			name:     "quantum expires",
			slice:    Slice{ProcessID: "p1", Core: 1, Budget: 10 * time.Millisecond, Remaining: 30 * time.Millisecond, Address: 0x1000},
			accessor: &fakeAccessor{},
			expect:   OutcomeExpired,
			runtime:  10 * time.Millisecond,
		},
		{
			name:     "memory fault",
			slice:    Slice{ProcessID: "p1", Core: 0, Budget: 10 * time.Millisecond, Remaining: 30 * time.Millisecond, Address: 0x1000},
			accessor: &fakeAccessor{err: errors.New("out of memory")},
			expect:   OutcomeFault,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := startService(t, Config{Cores: 2, TimeScale: 0}, tc.accessor)
			require.NoError(t, srv.Dispatch(context.Background(), &tc.slice))
			completion := nextCompletion(t, srv)
			assert.Equal(t, tc.expect, completion.Outcome)
			assert.Equal(t, tc.slice.Core, completion.Core)
			assert.Equal(t, tc.runtime, completion.Runtime)
			if tc.expect == OutcomeFault {
				assert.Error(t, completion.Err)
			} else {
				assert.Equal(t, []uint64{0x1000}, tc.accessor.touched["p1"])
			}
			assert.False(t, srv.Dispatched("p1"))
		})
	}
}

func TestService_SignalRunning(t *testing.T) {
	defer goleak.VerifyNone(t)
	testCases := []struct {
		cause  error
		expect Outcome
	}{
		{cause: ErrPreempted, expect: OutcomePreempted},
		{cause: ErrSuspended, expect: OutcomeSuspended},
		{cause: ErrBlocked, expect: OutcomeBlocked},
		{cause: ErrTerminated, expect: OutcomeCancelled},
	}
	for _, tc := range testCases {
		t.Run(string(tc.expect), func(t *testing.T) {
			srv := startService(t, Config{Cores: 1, TimeScale: 1}, nil)
			slice := &Slice{ProcessID: "p1", Core: 0, Budget: time.Minute, Remaining: time.Minute}
			require.NoError(t, srv.Dispatch(context.Background(), slice))
			require.Eventually(t, func() bool {
				srv.mu.Lock()
				defer srv.mu.Unlock()
				_, ok := srv.running["p1"]
				return ok
			}, time.Second, time.Millisecond)
			assert.True(t, srv.Signal("p1", tc.cause))
			completion := nextCompletion(t, srv)
			assert.Equal(t, tc.expect, completion.Outcome)
			assert.Less(t, completion.Runtime, time.Minute)
		})
	}
}

func TestService_SignalPending(t *testing.T) {
	defer goleak.VerifyNone(t)
	srv, err := New(WithCores(1), WithConfig(Config{Cores: 1, TimeScale: 0}))
	require.NoError(t, err)
	// queued before the workers start so the cause is recorded as pending
	require.NoError(t, srv.Dispatch(context.Background(), &Slice{ProcessID: "p1", Budget: time.Second, Remaining: time.Second}))
	assert.True(t, srv.Signal("p1", ErrSuspended))
	assert.False(t, srv.Signal("p2", ErrSuspended))
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Shutdown()
	completion := nextCompletion(t, srv)
	assert.Equal(t, OutcomeSuspended, completion.Outcome)
	assert.Zero(t, completion.Runtime)
}

func TestService_Dispatch(t *testing.T) {
	defer goleak.VerifyNone(t)
	srv, err := New(WithConfig(Config{Cores: 2}))
	require.NoError(t, err)
	defer srv.Shutdown()
	assert.Error(t, srv.Dispatch(context.Background(), &Slice{ProcessID: "p1", Core: 2}))
	require.NoError(t, srv.Dispatch(context.Background(), &Slice{ProcessID: "p1", Core: 1}))
	assert.Error(t, srv.Dispatch(context.Background(), &Slice{ProcessID: "p1", Core: 0}))
	assert.True(t, srv.Dispatched("p1"))
	assert.Equal(t, 2, srv.Cores())
}

func TestConfig_Validate(t *testing.T) {
	config := DefaultConfig()
	assert.NoError(t, config.Validate())
	config.Cores = 0
	assert.Error(t, config.Validate())
	config = DefaultConfig()
	config.TimeScale = -1
	assert.Error(t, config.Validate())
}
