package scheduler

import "github.com/viant/nodeos/model/process"

// FIFO runs records in arrival order to completion
type FIFO struct {
	base
	ready queue
}

// NewFIFO creates a first-come first-served strategy
func NewFIFO() *FIFO {
	return &FIFO{base: newBase(KindFIFO)}
}

func (s *FIFO) Add(r *process.Record) { s.ready.insert(r) }

func (s *FIFO) Remove(id string) bool { return s.ready.remove(id) }

// Requeue keeps the arrival order; a FIFO record only leaves a core early
// when it is suspended or blocked.
func (s *FIFO) Requeue(r *process.Record, _ bool) { s.ready.insert(r) }

func (s *FIFO) Select(cores []Core) []Assignment {
	var ret []Assignment
	for i := range cores {
		if !cores[i].Idle() || s.ready.len() == 0 {
			continue
		}
		ret = append(ret, s.dispatch(cores[i].ID, s.ready.pop(), 0))
	}
	return ret
}

func (s *FIFO) Len() int { return s.ready.len() }

func (s *FIFO) Drain() []*process.Record { return s.ready.drain() }
