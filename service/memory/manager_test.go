package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/nodeos/service/dao/swap/fs"
)

const pageSize = 4096

func testConfig(pools ...PoolConfig) Config {
	return Config{
		TotalSize: 64 * pageSize,
		PageSize:  pageSize,
		Pools:     pools,
		TierLatency: map[int]time.Duration{
			1: time.Microsecond,
			2: 2 * time.Microsecond,
			3: 3 * time.Microsecond,
		},
		SwapLatency: time.Millisecond,
	}
}

func newManager(t *testing.T, pools ...PoolConfig) *Manager {
	manager, err := New(testConfig(pools...))
	require.NoError(t, err)
	return manager
}

func TestManager_AllocatePageRounding(t *testing.T) {
	manager := newManager(t, PoolConfig{Name: "user", Categories: []string{"USER"}, Frames: 32, Tier: 1})
	ctx := context.Background()
	for i, size := range []int64{1, pageSize - 1, pageSize, pageSize + 1, 3*pageSize - 7, 5 * pageSize} {
		pid := fmt.Sprintf("p%d", i)
		_, err := manager.Allocate(ctx, pid, size, "USER", false)
		require.NoError(t, err)
		allocated := int64(manager.Pages(pid) * pageSize)
		assert.GreaterOrEqual(t, allocated, size, "size %d", size)
		assert.Less(t, allocated, size+pageSize, "size %d", size)
	}
	require.NoError(t, manager.Verify())

	_, err := manager.Allocate(ctx, "bad", 0, "USER", false)
	assert.True(t, errors.Is(err, ErrInvalidSize))
	_, err = manager.Allocate(ctx, "bad", 1, "QUANTUM", false)
	assert.True(t, errors.Is(err, ErrUnknownCategory))
}

func TestManager_QuotaScenario(t *testing.T) {
	var testCases = []struct {
		description string
		pinned      bool
		expectErr   error
		expectSwaps int
	}{
		{description: "pinned pool cannot swap", pinned: true, expectErr: ErrOutOfMemory},
		{description: "swappable pool frees a frame", pinned: false, expectSwaps: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			ctx := context.Background()
			manager := newManager(t,
				PoolConfig{Name: "compute", Categories: []string{"COMPUTE"}, Frames: 2, Tier: 1, Pinned: tc.pinned},
				PoolConfig{Name: "user", Categories: []string{"USER"}, Frames: 8, Tier: 3},
			)
			first, err := manager.Allocate(ctx, "p1", pageSize, "COMPUTE", false)
			require.NoError(t, err)
			second, err := manager.Allocate(ctx, "p2", pageSize, "COMPUTE", false)
			require.NoError(t, err)
			assert.NotEqual(t, first, second)

			_, err = manager.Allocate(ctx, "p3", pageSize, "COMPUTE", false)
			if tc.expectErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.expectErr))
				assert.Equal(t, 0, manager.Pages("p3"))
			} else {
				require.NoError(t, err)
				location, err := manager.Translate("p1", first)
				require.NoError(t, err)
				assert.Equal(t, FrameSwapped, location.State, "least recent page is evicted")
			}
			stats := manager.Stats()
			assert.Equal(t, tc.expectSwaps, stats.SwapOuts)
			assert.Equal(t, 0, stats.Pools[1].Used, "quota is per pool")
			require.NoError(t, manager.Verify())
		})
	}
}

func TestManager_AllocateIsAtomic(t *testing.T) {
	ctx := context.Background()
	manager := newManager(t, PoolConfig{Name: "system", Categories: []string{"SYSTEM"}, Frames: 4, Tier: 1, Pinned: true})
	_, err := manager.Allocate(ctx, "p1", 2*pageSize, "SYSTEM", false)
	require.NoError(t, err)

	_, err = manager.Allocate(ctx, "p2", 3*pageSize, "SYSTEM", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutOfMemory))

	stats := manager.Stats()
	assert.Equal(t, 2, stats.UsedFrames)
	assert.Equal(t, 2, stats.PinnedFrames)
	assert.Equal(t, 1, stats.FailedAllocations)
	assert.Equal(t, 0, manager.Pages("p2"))
	require.NoError(t, manager.Verify())

	_, err = manager.Allocate(ctx, "p2", 2*pageSize, "SYSTEM", false)
	require.NoError(t, err)
}

func TestManager_SwapOutOneLRU(t *testing.T) {
	ctx := context.Background()
	manager := newManager(t,
		PoolConfig{Name: "a", Categories: []string{"COMPUTE"}, Frames: 4, Tier: 1},
		PoolConfig{Name: "b", Categories: []string{"USER"}, Frames: 4, Tier: 2},
	)
	addresses := map[string]uint64{}
	for i, category := range []string{"COMPUTE", "USER", "COMPUTE", "USER"} {
		pid := fmt.Sprintf("p%d", i)
		addr, err := manager.Allocate(ctx, pid, pageSize, category, false)
		require.NoError(t, err)
		addresses[pid] = addr
	}
	for _, pid := range []string{"p2", "p0", "p3", "p1"} {
		_, err := manager.Access(ctx, pid, addresses[pid])
		require.NoError(t, err)
	}

	for _, expect := range []string{"p2", "p0", "p3", "p1"} {
		require.NoError(t, manager.SwapOutOne(ctx))
		location, err := manager.Translate(expect, addresses[expect])
		require.NoError(t, err)
		assert.Equal(t, FrameSwapped, location.State, expect)
	}
	assert.True(t, errors.Is(manager.SwapOutOne(ctx), ErrNoEvictableFrame))
	assert.Equal(t, 4, manager.Stats().SwappedPages)
}

func TestManager_PinnedNeverEvicted(t *testing.T) {
	ctx := context.Background()
	manager := newManager(t,
		PoolConfig{Name: "pinned", Categories: []string{"SYSTEM"}, Frames: 4, Tier: 1, Pinned: true},
		PoolConfig{Name: "user", Categories: []string{"USER"}, Frames: 4, Tier: 1},
	)
	pinnedAddr, err := manager.Allocate(ctx, "sys", 2*pageSize, "SYSTEM", false)
	require.NoError(t, err)
	explicitAddr, err := manager.Allocate(ctx, "explicit", pageSize, "USER", true)
	require.NoError(t, err)
	userAddr, err := manager.Allocate(ctx, "user", pageSize, "USER", false)
	require.NoError(t, err)

	// pinned pages are the least recently used ones
	_, err = manager.Access(ctx, "user", userAddr)
	require.NoError(t, err)

	require.NoError(t, manager.SwapOutOne(ctx))
	location, err := manager.Translate("user", userAddr)
	require.NoError(t, err)
	assert.Equal(t, FrameSwapped, location.State)

	assert.True(t, errors.Is(manager.SwapOutOne(ctx), ErrNoEvictableFrame))
	for pid, addr := range map[string]uint64{"sys": pinnedAddr, "explicit": explicitAddr} {
		location, err := manager.Translate(pid, addr)
		require.NoError(t, err)
		assert.Equal(t, FramePinned, location.State, pid)
	}
}

func TestManager_AccessSwapIn(t *testing.T) {
	var testCases = []struct {
		description string
		options     func(t *testing.T) []Option
	}{
		{description: "memory swap store", options: func(t *testing.T) []Option { return nil }},
		{description: "afs swap store", options: func(t *testing.T) []Option {
			store, err := fs.New(context.Background(), "mem://localhost/nodeos/"+t.Name())
			require.NoError(t, err)
			return []Option{WithSwapStore(store)}
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			ctx := context.Background()
			manager, err := New(testConfig(PoolConfig{Name: "compute", Categories: []string{"COMPUTE"}, Frames: 1, Tier: 1}), tc.options(t)...)
			require.NoError(t, err)

			first, err := manager.Allocate(ctx, "p1", pageSize, "COMPUTE", false)
			require.NoError(t, err)
			require.NoError(t, manager.Write(ctx, "p1", first+10, []byte("hello")))
			location, err := manager.Translate("p1", first+10)
			require.NoError(t, err)
			assert.Equal(t, FrameDirty, location.State)
			assert.Equal(t, 10, location.Offset)

			second, err := manager.Allocate(ctx, "p2", pageSize, "COMPUTE", false)
			require.NoError(t, err)

			data, err := manager.Access(ctx, "p1", first+10)
			require.NoError(t, err)
			assert.Equal(t, "hello", string(data[:5]))
			assert.Len(t, data, pageSize-10)

			location, err = manager.Translate("p2", second)
			require.NoError(t, err)
			assert.Equal(t, FrameSwapped, location.State)

			stats := manager.Stats()
			assert.Equal(t, 1, stats.PageFaults)
			assert.Equal(t, 1, stats.SwapIns)
			assert.Equal(t, 2, stats.SwapOuts)
			assert.Equal(t, 2, stats.Accesses)
			assert.InDelta(t, 0.5, stats.FaultRate, 1e-9)
			assert.Greater(t, stats.SimulatedLatency, 2*time.Millisecond)

			location, err = manager.Translate("p1", first)
			require.NoError(t, err)
			assert.Equal(t, FrameDirty, location.State, "dirty flag restored on swap-in")
			_, err = manager.Access(ctx, "p2", second)
			require.NoError(t, err)
			location, err = manager.Translate("p2", second)
			require.NoError(t, err)
			assert.Equal(t, FrameAllocated, location.State)
			require.NoError(t, manager.Verify())
		})
	}
}

func TestManager_AccessErrors(t *testing.T) {
	ctx := context.Background()
	manager := newManager(t,
		PoolConfig{Name: "pinned", Categories: []string{"SYSTEM"}, Frames: 1, Tier: 1, Pinned: true},
		PoolConfig{Name: "compute", Categories: []string{"COMPUTE"}, Frames: 1, Tier: 1},
	)
	addr, err := manager.Allocate(ctx, "p1", pageSize, "COMPUTE", false)
	require.NoError(t, err)

	_, err = manager.Access(ctx, "ghost", addr)
	assert.True(t, errors.Is(err, ErrUnknownProcess))
	_, err = manager.Access(ctx, "p1", addr+pageSize)
	assert.True(t, errors.Is(err, ErrSegmentationFault))
	assert.True(t, errors.Is(manager.Write(ctx, "p1", addr+pageSize-2, []byte("abc")), ErrSegmentationFault))

	require.NoError(t, manager.SwapOutOne(ctx))
	_, err = manager.Allocate(ctx, "p2", pageSize, "COMPUTE", true)
	require.NoError(t, err)
	_, err = manager.Access(ctx, "p1", addr)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoEvictableFrame))
}

func TestManager_Deallocate(t *testing.T) {
	ctx := context.Background()
	manager := newManager(t, PoolConfig{Name: "compute", Categories: []string{"COMPUTE"}, Frames: 4, Tier: 1})
	_, err := manager.Allocate(ctx, "p1", 3*pageSize, "COMPUTE", false)
	require.NoError(t, err)
	require.NoError(t, manager.SwapOutOne(ctx))
	assert.Equal(t, int64(3*pageSize), manager.Stats().Usage["COMPUTE"])

	require.NoError(t, manager.Deallocate(ctx, "p1"))
	stats := manager.Stats()
	assert.Equal(t, 0, stats.UsedFrames)
	assert.Equal(t, 0, stats.SwappedPages)
	assert.Equal(t, 0, stats.Processes)
	assert.Empty(t, stats.Usage)
	assert.True(t, errors.Is(manager.Deallocate(ctx, "p1"), ErrUnknownProcess))
	require.NoError(t, manager.Verify())

	_, err = manager.Allocate(ctx, "p2", 4*pageSize, "COMPUTE", false)
	require.NoError(t, err)
}

func TestManager_Defragment(t *testing.T) {
	ctx := context.Background()
	manager := newManager(t, PoolConfig{Name: "compute", Categories: []string{"COMPUTE"}, Frames: 8, Tier: 1})
	_, err := manager.Allocate(ctx, "a", 2*pageSize, "COMPUTE", false)
	require.NoError(t, err)
	_, err = manager.Allocate(ctx, "b", 2*pageSize, "COMPUTE", false)
	require.NoError(t, err)
	cAddr, err := manager.Allocate(ctx, "c", 2*pageSize, "COMPUTE", false)
	require.NoError(t, err)
	require.NoError(t, manager.Write(ctx, "c", cAddr+pageSize, []byte("kept")))
	require.NoError(t, manager.Deallocate(ctx, "a"))

	report := manager.Defragment(ctx)
	assert.InDelta(t, 25.0, report.Before, 1e-9)
	assert.InDelta(t, 0.0, report.After, 1e-9)
	assert.Equal(t, 4, report.Moved)
	require.NoError(t, manager.Verify())

	again := manager.Defragment(ctx)
	assert.Equal(t, report.After, again.Before)
	assert.Equal(t, again.Before, again.After)
	assert.Equal(t, 0, again.Moved)

	location, err := manager.Translate("c", cAddr+pageSize)
	require.NoError(t, err)
	assert.Equal(t, 3, location.Frame)
	data, err := manager.Access(ctx, "c", cAddr+pageSize)
	require.NoError(t, err)
	assert.Equal(t, "kept", string(data[:4]))
	assert.Equal(t, 2, manager.Stats().Defragmentations)
}

func TestManager_DefragmentKeepsPinned(t *testing.T) {
	ctx := context.Background()
	manager := newManager(t, PoolConfig{Name: "user", Categories: []string{"USER"}, Frames: 6, Tier: 1})
	_, err := manager.Allocate(ctx, "a", pageSize, "USER", false)
	require.NoError(t, err)
	bAddr, err := manager.Allocate(ctx, "b", pageSize, "USER", true)
	require.NoError(t, err)
	_, err = manager.Allocate(ctx, "c", pageSize, "USER", false)
	require.NoError(t, err)
	dAddr, err := manager.Allocate(ctx, "d", pageSize, "USER", false)
	require.NoError(t, err)
	require.NoError(t, manager.Deallocate(ctx, "a"))
	require.NoError(t, manager.Deallocate(ctx, "c"))

	report := manager.Defragment(ctx)
	assert.Equal(t, 1, report.Moved)
	location, err := manager.Translate("b", bAddr)
	require.NoError(t, err)
	assert.Equal(t, 1, location.Frame)
	location, err = manager.Translate("d", dAddr)
	require.NoError(t, err)
	assert.Equal(t, 0, location.Frame)

	again := manager.Defragment(ctx)
	assert.Equal(t, report.After, again.After)
	assert.Equal(t, 0, again.Moved)
	require.NoError(t, manager.Verify())
}

func TestConfig_Validate(t *testing.T) {
	var testCases = []struct {
		description string
		mutate      func(c *Config)
		expectErr   bool
	}{
		{description: "default", mutate: func(c *Config) {}},
		{description: "zero page", mutate: func(c *Config) { c.PageSize = 0 }, expectErr: true},
		{description: "no pools", mutate: func(c *Config) { c.Pools = nil }, expectErr: true},
		{description: "over reserved", mutate: func(c *Config) { c.Pools[0].Quota = 0.9 }, expectErr: true},
		{description: "duplicate category", mutate: func(c *Config) { c.Pools[1].Categories = []string{"SYSTEM"} }, expectErr: true},
		{description: "unknown tier", mutate: func(c *Config) { c.Pools[0].Tier = 9 }, expectErr: true},
		{description: "swap faster than tier", mutate: func(c *Config) { c.SwapLatency = time.Nanosecond }, expectErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(&config)
			err := config.Validate()
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestManager_PageAddress(t *testing.T) {
	manager := newManager(t, PoolConfig{Name: "user", Categories: []string{"USER"}, Frames: 8, Tier: 1})
	ctx := context.Background()
	first, err := manager.Allocate(ctx, "a", pageSize, "USER", false)
	require.NoError(t, err)
	_, err = manager.Allocate(ctx, "b", pageSize, "USER", false)
	require.NoError(t, err)
	grown, err := manager.Allocate(ctx, "a", 2*pageSize, "USER", false)
	require.NoError(t, err)

	for page, expect := range []uint64{first, grown, grown + pageSize} {
		addr, err := manager.PageAddress("a", page)
		require.NoError(t, err)
		assert.Equal(t, expect, addr, "page %d", page)
		location, err := manager.Translate("a", addr)
		require.NoError(t, err)
		assert.Equal(t, page, location.Page)
	}
	_, err = manager.PageAddress("a", 3)
	assert.ErrorIs(t, err, ErrSegmentationFault)
	_, err = manager.PageAddress("missing", 0)
	assert.ErrorIs(t, err, ErrUnknownProcess)
}
