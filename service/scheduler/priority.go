package scheduler

import (
	"container/heap"
	"sort"

	"github.com/viant/nodeos/model/process"
)

// priorityHeap orders records by effective priority, then arrival
type priorityHeap struct {
	items []*process.Record
	index map[string]int
}

func higher(a, b *process.Record) bool {
	if pa, pb := a.EffectivePriority(), b.EffectivePriority(); pa != pb {
		return pa > pb
	}
	return a.Seq < b.Seq
}

func (h *priorityHeap) Len() int { return len(h.items) }

func (h *priorityHeap) Less(i, j int) bool { return higher(h.items[i], h.items[j]) }

func (h *priorityHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.index[h.items[i].ID] = i
	h.index[h.items[j].ID] = j
}

func (h *priorityHeap) Push(x any) {
	r := x.(*process.Record)
	h.index[r.ID] = len(h.items)
	h.items = append(h.items, r)
}

func (h *priorityHeap) Pop() any {
	n := len(h.items)
	r := h.items[n-1]
	h.items[n-1] = nil
	h.items = h.items[:n-1]
	delete(h.index, r.ID)
	return r
}

// Priority always runs the highest effective priority record.  With
// preemption enabled a queued record displaces a running one of strictly
// lower priority at the next tick.
type Priority struct {
	base
	preemptive bool
	ready      *priorityHeap
}

// NewPriority creates a priority strategy
func NewPriority(preemptive bool) *Priority {
	return &Priority{
		base:       newBase(KindPriority),
		preemptive: preemptive,
		ready:      &priorityHeap{index: make(map[string]int)},
	}
}

func (s *Priority) Add(r *process.Record) { heap.Push(s.ready, r) }

func (s *Priority) Remove(id string) bool {
	i, ok := s.ready.index[id]
	if !ok {
		return false
	}
	heap.Remove(s.ready, i)
	return true
}

func (s *Priority) Requeue(r *process.Record, _ bool) { heap.Push(s.ready, r) }

// Reprioritize restores the heap order after r's effective priority changed.
func (s *Priority) Reprioritize(r *process.Record) {
	if i, ok := s.ready.index[r.ID]; ok {
		heap.Fix(s.ready, i)
	}
}

func (s *Priority) Select(cores []Core) []Assignment {
	var ret []Assignment
	for i := range cores {
		if !cores[i].Idle() || s.ready.Len() == 0 {
			continue
		}
		r := heap.Pop(s.ready).(*process.Record)
		ret = append(ret, s.dispatch(cores[i].ID, r, 0))
	}
	if !s.preemptive || s.ready.Len() == 0 {
		return ret
	}
	return append(ret, s.preemptions(cores)...)
}

// preemptions pairs the best waiting records with the lowest priority
// running ones.  Draining cores are about to free up, so the best waiting
// records are already served by them.
func (s *Priority) preemptions(cores []Core) []Assignment {
	var victims []*Core
	draining := 0
	for i := range cores {
		switch {
		case cores[i].Draining:
			draining++
		case cores[i].Running != nil:
			victims = append(victims, &cores[i])
		}
	}
	if len(victims) == 0 || draining >= s.ready.Len() {
		return nil
	}
	sort.SliceStable(victims, func(i, j int) bool { return higher(victims[j].Running, victims[i].Running) })
	waiting := append([]*process.Record(nil), s.ready.items...)
	sort.Slice(waiting, func(i, j int) bool { return higher(waiting[i], waiting[j]) })
	waiting = waiting[draining:]

	var ret []Assignment
	for i, candidate := range waiting {
		if i >= len(victims) {
			break
		}
		victim := victims[i]
		if candidate.EffectivePriority() <= victim.Running.EffectivePriority() {
			break
		}
		s.recorder.Preempted()
		ret = append(ret, Assignment{Core: victim.ID, Preempt: victim.Running.ID})
	}
	return ret
}

func (s *Priority) Len() int { return s.ready.Len() }

func (s *Priority) Drain() []*process.Record {
	ret := s.ready.items
	s.ready.items = nil
	s.ready.index = make(map[string]int)
	bySeq(ret)
	return ret
}
