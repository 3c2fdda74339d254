package memory

import "time"

// pool is a partition of physical frames serving a set of categories
type pool struct {
	name       string
	tier       int
	pinned     bool
	categories []string
	latency    time.Duration
	frames     []frame
	used       int
}

func newPool(config *PoolConfig, frames int, latency time.Duration) *pool {
	ret := &pool{
		name:       config.Name,
		tier:       config.Tier,
		pinned:     config.Pinned,
		categories: append([]string(nil), config.Categories...),
		latency:    latency,
		frames:     make([]frame, frames),
	}
	for i := range ret.frames {
		ret.frames[i].state = FrameFree
	}
	return ret
}

// firstFree returns the lowest free frame index or -1
func (p *pool) firstFree() int {
	if p.used == len(p.frames) {
		return -1
	}
	for i := range p.frames {
		if p.frames[i].free() {
			return i
		}
	}
	return -1
}

func (p *pool) claim(index int, owner string, page int, state FrameState) {
	f := &p.frames[index]
	f.state = state
	f.owner = owner
	f.page = page
	f.data = nil
	p.used++
}

func (p *pool) release(index int) {
	if p.frames[index].free() {
		return
	}
	p.frames[index].reset()
	p.used--
}

// holes counts free frames below the highest occupied frame
func (p *pool) holes() int {
	highest := -1
	for i := len(p.frames) - 1; i >= 0; i-- {
		if !p.frames[i].free() {
			highest = i
			break
		}
	}
	ret := 0
	for i := 0; i < highest; i++ {
		if p.frames[i].free() {
			ret++
		}
	}
	return ret
}

// fragmentation returns holes as a percentage of the pool frames
func (p *pool) fragmentation() float64 {
	if len(p.frames) == 0 {
		return 0
	}
	return float64(p.holes()) * 100 / float64(len(p.frames))
}

func (p *pool) count(state FrameState) int {
	ret := 0
	for i := range p.frames {
		if p.frames[i].state == state {
			ret++
		}
	}
	return ret
}
