package memory

import "time"

// PoolStats describes the occupancy of one pool
type PoolStats struct {
	Name          string   `json:"name"`
	Tier          int      `json:"tier"`
	Pinned        bool     `json:"pinned"`
	Categories    []string `json:"categories"`
	Frames        int      `json:"frames"`
	Used          int      `json:"used"`
	PinnedFrames  int      `json:"pinnedFrames"`
	DirtyFrames   int      `json:"dirtyFrames"`
	Free          int      `json:"free"`
	Holes         int      `json:"holes"`
	Fragmentation float64  `json:"fragmentation"`
}

// Stats is a point in time view of the memory manager
type Stats struct {
	PageSize          int              `json:"pageSize"`
	TotalFrames       int              `json:"totalFrames"`
	UsedFrames        int              `json:"usedFrames"`
	PinnedFrames      int              `json:"pinnedFrames"`
	FreeFrames        int              `json:"freeFrames"`
	Processes         int              `json:"processes"`
	Allocations       int              `json:"allocations"`
	FailedAllocations int              `json:"failedAllocations"`
	Deallocations     int              `json:"deallocations"`
	Accesses          int              `json:"accesses"`
	PageFaults        int              `json:"pageFaults"`
	FaultRate         float64          `json:"faultRate"`
	SwapIns           int              `json:"swapIns"`
	SwapOuts          int              `json:"swapOuts"`
	SwappedPages      int              `json:"swappedPages"`
	Defragmentations  int              `json:"defragmentations"`
	Fragmentation     float64          `json:"fragmentation"`
	SimulatedLatency  time.Duration    `json:"simulatedLatency"`
	Usage             map[string]int64 `json:"usage"`
	Pools             []PoolStats      `json:"pools"`
}

// Stats returns current statistics
func (m *Manager) Stats() *Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	ret := &Stats{
		PageSize:          m.pageSize,
		Processes:         len(m.spaces),
		Allocations:       m.counters.allocations,
		FailedAllocations: m.counters.failedAllocations,
		Deallocations:     m.counters.deallocations,
		Accesses:          m.counters.accesses,
		PageFaults:        m.counters.pageFaults,
		SwapIns:           m.counters.swapIns,
		SwapOuts:          m.counters.swapOuts,
		Defragmentations:  m.counters.defragmentations,
		SimulatedLatency:  m.counters.latency,
		Usage:             make(map[string]int64, len(m.usage)),
	}
	if ret.Accesses > 0 {
		ret.FaultRate = float64(ret.PageFaults) / float64(ret.Accesses)
	}
	for category, size := range m.usage {
		if size > 0 {
			ret.Usage[category] = size
		}
	}
	holes := 0
	for _, aPool := range m.pools {
		poolStats := PoolStats{
			Name:          aPool.name,
			Tier:          aPool.tier,
			Pinned:        aPool.pinned,
			Categories:    append([]string(nil), aPool.categories...),
			Frames:        len(aPool.frames),
			Used:          aPool.used,
			PinnedFrames:  aPool.count(FramePinned),
			DirtyFrames:   aPool.count(FrameDirty),
			Free:          len(aPool.frames) - aPool.used,
			Holes:         aPool.holes(),
			Fragmentation: aPool.fragmentation(),
		}
		holes += poolStats.Holes
		ret.TotalFrames += poolStats.Frames
		ret.UsedFrames += poolStats.Used
		ret.PinnedFrames += poolStats.PinnedFrames
		ret.Pools = append(ret.Pools, poolStats)
	}
	ret.FreeFrames = ret.TotalFrames - ret.UsedFrames
	if ret.TotalFrames > 0 {
		ret.Fragmentation = float64(holes) * 100 / float64(ret.TotalFrames)
	}
	for _, aSpace := range m.spaces {
		for _, entry := range aSpace.pages {
			if !entry.resident() {
				ret.SwappedPages++
			}
		}
	}
	return ret
}
