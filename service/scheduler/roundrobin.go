package scheduler

import (
	"time"

	"github.com/viant/nodeos/model/process"
)

// RoundRobin cycles through the ready set with a fixed quantum
type RoundRobin struct {
	base
	quantum time.Duration
	ready   queue
}

// NewRoundRobin creates a round robin strategy
func NewRoundRobin(quantum time.Duration) *RoundRobin {
	return &RoundRobin{base: newBase(KindRoundRobin), quantum: quantum}
}

// Quantum returns the time slice
func (s *RoundRobin) Quantum() time.Duration { return s.quantum }

func (s *RoundRobin) Add(r *process.Record) { s.ready.push(r) }

func (s *RoundRobin) Remove(id string) bool { return s.ready.remove(id) }

// Requeue appends r at the tail whether or not its quantum expired.
func (s *RoundRobin) Requeue(r *process.Record, _ bool) { s.ready.push(r) }

func (s *RoundRobin) Select(cores []Core) []Assignment {
	var ret []Assignment
	for i := range cores {
		if !cores[i].Idle() || s.ready.len() == 0 {
			continue
		}
		ret = append(ret, s.dispatch(cores[i].ID, s.ready.pop(), s.quantum))
	}
	return ret
}

func (s *RoundRobin) Len() int { return s.ready.len() }

func (s *RoundRobin) Drain() []*process.Record {
	ret := s.ready.drain()
	bySeq(ret)
	return ret
}
