package memory

import (
	"context"
	"strconv"

	"github.com/viant/nodeos/tracing"
)

// PoolDefrag reports compaction of one pool
type PoolDefrag struct {
	Name   string  `json:"name"`
	Before float64 `json:"before"`
	After  float64 `json:"after"`
	Moved  int     `json:"moved"`
}

// DefragReport reports fragmentation percentages around a Defragment call
type DefragReport struct {
	Before float64      `json:"before"`
	After  float64      `json:"after"`
	Moved  int          `json:"moved"`
	Pools  []PoolDefrag `json:"pools"`
}

// Defragment compacts every pool by moving non-pinned resident pages to the
// lowest free frame indices.  Pinned frames never move, so holes below a
// pinned frame may survive; a second call moves nothing.
func (m *Manager) Defragment(ctx context.Context) *DefragReport {
	_, span := tracing.StartSpan(ctx, "memory.Defragment", "INTERNAL")
	m.mu.Lock()
	ret := &DefragReport{}
	holesBefore, holesAfter, total := 0, 0, 0
	for _, aPool := range m.pools {
		before := aPool.holes()
		poolReport := PoolDefrag{Name: aPool.name, Before: aPool.fragmentation()}
		poolReport.Moved = m.compact(aPool)
		poolReport.After = aPool.fragmentation()
		holesBefore += before
		holesAfter += aPool.holes()
		total += len(aPool.frames)
		ret.Moved += poolReport.Moved
		ret.Pools = append(ret.Pools, poolReport)
	}
	if total > 0 {
		ret.Before = float64(holesBefore) * 100 / float64(total)
		ret.After = float64(holesAfter) * 100 / float64(total)
	}
	m.counters.defragmentations++
	m.mu.Unlock()
	span.WithAttributes(map[string]string{
		"memory.moved":  strconv.Itoa(ret.Moved),
		"memory.before": strconv.FormatFloat(ret.Before, 'f', 2, 64),
		"memory.after":  strconv.FormatFloat(ret.After, 'f', 2, 64),
	})
	tracing.EndSpan(span, nil)
	return ret
}

// compact relocates movable frames into the lowest free slots below them.
func (m *Manager) compact(aPool *pool) int {
	var free []int
	moved := 0
	for i := range aPool.frames {
		aFrame := &aPool.frames[i]
		switch {
		case aFrame.free():
			free = append(free, i)
		case aFrame.movable() && len(free) > 0:
			target := free[0]
			free = append(free[1:], i)
			aPool.frames[target] = *aFrame
			aFrame.reset()
			entry := m.spaces[aPool.frames[target].owner].pages[aPool.frames[target].page]
			entry.frame = target
			moved++
		}
	}
	return moved
}
