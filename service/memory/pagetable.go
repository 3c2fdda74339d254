package memory

// pageEntry maps a virtual page onto a frame of a pool
type pageEntry struct {
	pool   *pool
	frame  int
	state  FrameState
	pinned bool
}

func (e *pageEntry) resident() bool { return e.state != FrameSwapped }

func (e *pageEntry) evictable() bool { return e.resident() && !e.pinned }

// region is one contiguous virtual allocation
type region struct {
	base     uint64
	first    int
	count    int
	size     int64
	category string
}

// space is the address space of a process
type space struct {
	pid     string
	pages   []*pageEntry
	regions []region
}

// translate resolves addr to a page index and an offset within it
func (s *space) translate(addr uint64, pageSize int) (int, int, bool) {
	for _, r := range s.regions {
		limit := r.base + uint64(r.count*pageSize)
		if addr < r.base || addr >= limit {
			continue
		}
		delta := addr - r.base
		return r.first + int(delta/uint64(pageSize)), int(delta % uint64(pageSize)), true
	}
	return 0, 0, false
}

// address returns the virtual address of page, whichever region maps it
func (s *space) address(page int, pageSize int) (uint64, bool) {
	for _, r := range s.regions {
		if page >= r.first && page < r.first+r.count {
			return r.base + uint64((page-r.first)*pageSize), true
		}
	}
	return 0, false
}
