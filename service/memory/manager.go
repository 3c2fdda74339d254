package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/viant/nodeos/internal/clock"
	"github.com/viant/nodeos/service/dao"
	"github.com/viant/nodeos/service/dao/swap"
	smemory "github.com/viant/nodeos/service/dao/swap/memory"
	"github.com/viant/nodeos/tracing"
)

// virtualBase is the first virtual address handed out
const virtualBase uint64 = 0x1000

// Location describes where a virtual address currently lives
type Location struct {
	Pool   string     `json:"pool"`
	Frame  int        `json:"frame"`
	Page   int        `json:"page"`
	Offset int        `json:"offset"`
	State  FrameState `json:"state"`
}

// Manager owns every frame of the node.  All methods are safe for concurrent
// use; a single mutex guards frame tables, page tables and the LRU order.
type Manager struct {
	mu          sync.Mutex
	pageSize    int
	pools       []*pool
	byCategory  map[string]*pool
	spaces      map[string]*space
	lru         *lru
	swap        dao.Service[string, swap.Page]
	swapLatency time.Duration
	nextVirtual uint64
	usage       map[string]int64
	counters    counters
}

type counters struct {
	allocations       int
	failedAllocations int
	deallocations     int
	accesses          int
	pageFaults        int
	swapIns           int
	swapOuts          int
	defragmentations  int
	latency           time.Duration
}

// Option customises a Manager
type Option func(m *Manager)

// WithSwapStore sets the swap area; the in-memory store is used otherwise.
func WithSwapStore(store dao.Service[string, swap.Page]) Option {
	return func(m *Manager) {
		m.swap = store
	}
}

// New creates a memory manager
func New(config Config, options ...Option) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	ret := &Manager{
		pageSize:    config.PageSize,
		byCategory:  make(map[string]*pool),
		spaces:      make(map[string]*space),
		lru:         newLRU(),
		swapLatency: config.SwapLatency,
		nextVirtual: virtualBase,
		usage:       make(map[string]int64),
	}
	for i := range config.Pools {
		poolConfig := &config.Pools[i]
		aPool := newPool(poolConfig, config.poolFrames(poolConfig), config.TierLatency[poolConfig.Tier])
		ret.pools = append(ret.pools, aPool)
		for _, category := range poolConfig.Categories {
			ret.byCategory[category] = aPool
		}
	}
	for _, option := range options {
		option(ret)
	}
	if ret.swap == nil {
		ret.swap = smemory.New()
	}
	return ret, nil
}

// PageSize returns the frame size
func (m *Manager) PageSize() int { return m.pageSize }

// PagesFor returns the number of pages needed for size bytes
func (m *Manager) PagesFor(size int64) int {
	return int((size + int64(m.pageSize) - 1) / int64(m.pageSize))
}

// Allocate reserves ceil(size/PageSize) frames for pid in the pool serving
// category and returns the virtual base address.  When the pool is
// exhausted one eviction is attempted before retrying; on failure every
// frame claimed by this call is released and ErrOutOfMemory is returned.
func (m *Manager) Allocate(ctx context.Context, pid string, size int64, category string, pinned bool) (uint64, error) {
	if size <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	aPool, ok := m.byCategory[category]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	pinned = pinned || aPool.pinned
	state := FrameAllocated
	if pinned {
		state = FramePinned
	}
	pages := m.PagesFor(size)
	claimed := make([]int, 0, pages)
	for len(claimed) < pages {
		index := aPool.firstFree()
		if index < 0 {
			if err := m.evict(ctx, func(e *pageEntry) bool { return e.pool == aPool }); err == nil {
				index = aPool.firstFree()
			}
		}
		if index < 0 {
			for _, claimedIndex := range claimed {
				aPool.release(claimedIndex)
			}
			m.counters.failedAllocations++
			return 0, fmt.Errorf("%w: process %s needs %d page(s) in pool %s (%d/%d used)",
				ErrOutOfMemory, pid, pages, aPool.name, aPool.used, len(aPool.frames))
		}
		aPool.claim(index, pid, -1, state)
		claimed = append(claimed, index)
	}

	aSpace, ok := m.spaces[pid]
	if !ok {
		aSpace = &space{pid: pid}
		m.spaces[pid] = aSpace
	}
	base := m.nextVirtual
	m.nextVirtual += uint64(pages * m.pageSize)
	first := len(aSpace.pages)
	for i, index := range claimed {
		page := first + i
		aPool.frames[index].page = page
		aSpace.pages = append(aSpace.pages, &pageEntry{pool: aPool, frame: index, state: state, pinned: pinned})
		m.lru.touch(pageKey{pid: pid, page: page})
	}
	aSpace.regions = append(aSpace.regions, region{base: base, first: first, count: pages, size: size, category: category})
	m.usage[category] += size
	m.counters.allocations++
	return base, nil
}

// SwapOutOne evicts the least recently accessed non-pinned resident page
// across all pools into the swap area.
func (m *Manager) SwapOutOne(ctx context.Context) (err error) {
	ctx, span := tracing.StartSpan(ctx, "memory.SwapOutOne", "INTERNAL")
	defer func() { tracing.EndSpan(span, err) }()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evict(ctx, func(*pageEntry) bool { return true })
}

// evict swaps out the oldest evictable page accepted by filter.
func (m *Manager) evict(ctx context.Context, filter func(e *pageEntry) bool) error {
	key, ok := m.lru.oldest(func(k pageKey) bool {
		entry := m.entry(k)
		return entry != nil && entry.evictable() && filter(entry)
	})
	if !ok {
		return ErrNoEvictableFrame
	}
	return m.swapOut(ctx, key)
}

func (m *Manager) swapOut(ctx context.Context, key pageKey) error {
	entry := m.entry(key)
	aFrame := &entry.pool.frames[entry.frame]
	page := &swap.Page{
		ID:        swap.Key(key.pid, key.page),
		ProcessID: key.pid,
		Index:     key.page,
		Data:      aFrame.data,
		Dirty:     aFrame.state == FrameDirty,
		SwappedAt: clock.Now(),
	}
	if err := m.swap.Save(ctx, page); err != nil {
		return fmt.Errorf("failed to swap out %s: %w", page.ID, err)
	}
	entry.pool.release(entry.frame)
	entry.frame = -1
	entry.state = FrameSwapped
	m.counters.swapOuts++
	m.counters.latency += m.swapLatency
	return nil
}

// swapIn brings a swapped page back, evicting from the same pool if needed.
func (m *Manager) swapIn(ctx context.Context, key pageKey, entry *pageEntry) error {
	m.counters.pageFaults++
	aPool := entry.pool
	index := aPool.firstFree()
	if index < 0 {
		if err := m.evict(ctx, func(e *pageEntry) bool { return e.pool == aPool }); err != nil {
			return fmt.Errorf("failed to swap in page %d of %s: %w", key.page, key.pid, err)
		}
		index = aPool.firstFree()
	}
	id := swap.Key(key.pid, key.page)
	page, err := m.swap.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load swapped page %s: %w", id, err)
	}
	state := FrameAllocated
	if page.Dirty {
		state = FrameDirty
	}
	aPool.claim(index, key.pid, key.page, state)
	aPool.frames[index].data = page.Data
	entry.frame = index
	entry.state = state
	if err = m.swap.Delete(ctx, id); err != nil && !errors.Is(err, dao.ErrNotFound) {
		return fmt.Errorf("failed to drop swapped page %s: %w", id, err)
	}
	m.counters.swapIns++
	m.counters.latency += m.swapLatency
	return nil
}

// Access reads the page content of addr starting at its offset.  Swapped
// pages are brought back first; recency is updated on every access.
func (m *Manager) Access(ctx context.Context, pid string, addr uint64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, offset, err := m.prepare(ctx, pid, addr)
	if err != nil {
		return nil, err
	}
	ret := make([]byte, m.pageSize-offset)
	if data := entry.pool.frames[entry.frame].data; data != nil {
		copy(ret, data[offset:])
	}
	return ret, nil
}

// Write stores data at addr and marks a non-pinned frame dirty.
func (m *Manager) Write(ctx context.Context, pid string, addr uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, offset, err := m.prepare(ctx, pid, addr)
	if err != nil {
		return err
	}
	if offset+len(data) > m.pageSize {
		return fmt.Errorf("%w: write of %d bytes at offset %d crosses page boundary", ErrSegmentationFault, len(data), offset)
	}
	aFrame := &entry.pool.frames[entry.frame]
	if aFrame.data == nil {
		aFrame.data = make([]byte, m.pageSize)
	}
	copy(aFrame.data[offset:], data)
	if aFrame.state == FrameAllocated {
		aFrame.state = FrameDirty
		entry.state = FrameDirty
	}
	return nil
}

// prepare resolves addr, touches the LRU order and makes the page resident.
func (m *Manager) prepare(ctx context.Context, pid string, addr uint64) (*pageEntry, int, error) {
	m.counters.accesses++
	aSpace, ok := m.spaces[pid]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownProcess, pid)
	}
	page, offset, ok := aSpace.translate(addr, m.pageSize)
	if !ok {
		return nil, 0, fmt.Errorf("%w: process %s address %#x", ErrSegmentationFault, pid, addr)
	}
	key := pageKey{pid: pid, page: page}
	entry := aSpace.pages[page]
	m.lru.touch(key)
	if !entry.resident() {
		if err := m.swapIn(ctx, key, entry); err != nil {
			return nil, 0, err
		}
	}
	m.counters.latency += entry.pool.latency
	return entry, offset, nil
}

// Deallocate releases every frame and swap entry owned by pid.
func (m *Manager) Deallocate(ctx context.Context, pid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	aSpace, ok := m.spaces[pid]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProcess, pid)
	}
	var errs []error
	for i, entry := range aSpace.pages {
		m.lru.remove(pageKey{pid: pid, page: i})
		if entry.resident() {
			entry.pool.release(entry.frame)
			continue
		}
		if err := m.swap.Delete(ctx, swap.Key(pid, i)); err != nil && !errors.Is(err, dao.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	for _, r := range aSpace.regions {
		m.usage[r.category] -= r.size
	}
	delete(m.spaces, pid)
	m.counters.deallocations++
	return errors.Join(errs...)
}

// Translate returns where addr of pid currently lives without touching it.
func (m *Manager) Translate(pid string, addr uint64) (*Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	aSpace, ok := m.spaces[pid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProcess, pid)
	}
	page, offset, ok := aSpace.translate(addr, m.pageSize)
	if !ok {
		return nil, fmt.Errorf("%w: process %s address %#x", ErrSegmentationFault, pid, addr)
	}
	entry := aSpace.pages[page]
	return &Location{Pool: entry.pool.name, Frame: entry.frame, Page: page, Offset: offset, State: entry.state}, nil
}

// PageAddress returns the virtual address of the page-th page of pid.
// Regions added by later allocations need not follow the first one.
func (m *Manager) PageAddress(pid string, page int) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	aSpace, ok := m.spaces[pid]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownProcess, pid)
	}
	addr, ok := aSpace.address(page, m.pageSize)
	if !ok {
		return 0, fmt.Errorf("%w: process %s page %d", ErrSegmentationFault, pid, page)
	}
	return addr, nil
}

// Pages returns the number of pages mapped for pid
func (m *Manager) Pages(pid string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if aSpace, ok := m.spaces[pid]; ok {
		return len(aSpace.pages)
	}
	return 0
}

// Verify checks frame and page table consistency.
func (m *Manager) Verify() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	occupied, total := 0, 0
	for _, aPool := range m.pools {
		total += len(aPool.frames)
		for i := range aPool.frames {
			aFrame := &aPool.frames[i]
			if aFrame.free() {
				continue
			}
			occupied++
			aSpace, ok := m.spaces[aFrame.owner]
			if !ok || aFrame.page < 0 || aFrame.page >= len(aSpace.pages) {
				return fmt.Errorf("pool %s frame %d owned by unknown page %s/%d", aPool.name, i, aFrame.owner, aFrame.page)
			}
			entry := aSpace.pages[aFrame.page]
			if entry.pool != aPool || entry.frame != i || entry.state != aFrame.state {
				return fmt.Errorf("pool %s frame %d not mapped back by %s/%d", aPool.name, i, aFrame.owner, aFrame.page)
			}
		}
	}
	if occupied > total {
		return fmt.Errorf("%d frames occupied, only %d exist", occupied, total)
	}
	for pid, aSpace := range m.spaces {
		for page, entry := range aSpace.pages {
			if !entry.resident() {
				continue
			}
			aFrame := &entry.pool.frames[entry.frame]
			if aFrame.owner != pid || aFrame.page != page {
				return fmt.Errorf("page %s/%d maps frame %d of %s owned by %s/%d", pid, page, entry.frame, entry.pool.name, aFrame.owner, aFrame.page)
			}
		}
	}
	return nil
}

func (m *Manager) entry(key pageKey) *pageEntry {
	aSpace, ok := m.spaces[key.pid]
	if !ok || key.page >= len(aSpace.pages) {
		return nil
	}
	return aSpace.pages[key.page]
}
