package scheduler

import (
	"time"

	"github.com/viant/nodeos/internal/clock"
	"github.com/viant/nodeos/model/process"
)

// MLFQ keeps one round robin queue per level.  New records start at level
// 0; using a full quantum demotes one level and waiting longer than the
// aging threshold promotes one level, once per threshold period.
type MLFQ struct {
	base
	quanta    []time.Duration
	threshold time.Duration
	levels    []queue
}

// NewMLFQ creates a feedback queue with one level per quantum
func NewMLFQ(quanta []time.Duration, threshold time.Duration) *MLFQ {
	return &MLFQ{
		base:      newBase(KindMLFQ),
		quanta:    append([]time.Duration(nil), quanta...),
		threshold: threshold,
		levels:    make([]queue, len(quanta)),
	}
}

// Quantum returns the slice of level
func (s *MLFQ) Quantum(level int) time.Duration { return s.quanta[s.clamp(level)] }

func (s *MLFQ) clamp(level int) int {
	return min(max(level, 0), len(s.levels)-1)
}

func (s *MLFQ) Add(r *process.Record) {
	if r.State == process.StateNew || r.CPUTime == 0 {
		r.Level = 0
	}
	r.Level = s.clamp(r.Level)
	r.QuantumRemaining = s.quanta[r.Level]
	s.levels[r.Level].push(r)
}

func (s *MLFQ) Remove(id string) bool {
	for i := range s.levels {
		if s.levels[i].remove(id) {
			return true
		}
	}
	return false
}

// Requeue demotes r one level when it exhausted its quantum.
func (s *MLFQ) Requeue(r *process.Record, exhausted bool) {
	if exhausted {
		r.Level = s.clamp(r.Level + 1)
	}
	r.Level = s.clamp(r.Level)
	r.QuantumRemaining = s.quanta[r.Level]
	s.levels[r.Level].push(r)
}

// Age promotes records that waited past the threshold; it returns the
// number of promotions.
func (s *MLFQ) Age() int {
	now := clock.Now()
	promoted := 0
	for level := 1; level < len(s.levels); level++ {
		var stay []*process.Record
		for _, r := range s.levels[level].drain() {
			if now.Sub(r.LastAged) < s.threshold {
				stay = append(stay, r)
				continue
			}
			r.Level = level - 1
			r.LastAged = now
			r.QuantumRemaining = s.quanta[r.Level]
			s.levels[level-1].push(r)
			promoted++
		}
		s.levels[level].items = stay
	}
	return promoted
}

func (s *MLFQ) Select(cores []Core) []Assignment {
	s.Age()
	var ret []Assignment
	for i := range cores {
		if !cores[i].Idle() {
			continue
		}
		r := s.next()
		if r == nil {
			break
		}
		ret = append(ret, s.dispatch(cores[i].ID, r, s.quanta[r.Level]))
	}
	return ret
}

func (s *MLFQ) next() *process.Record {
	for i := range s.levels {
		if r := s.levels[i].pop(); r != nil {
			return r
		}
	}
	return nil
}

func (s *MLFQ) Len() int {
	ret := 0
	for i := range s.levels {
		ret += s.levels[i].len()
	}
	return ret
}

// LevelLen returns the number of records queued at level
func (s *MLFQ) LevelLen(level int) int { return s.levels[s.clamp(level)].len() }

func (s *MLFQ) Drain() []*process.Record {
	var ret []*process.Record
	for i := range s.levels {
		ret = append(ret, s.levels[i].drain()...)
	}
	bySeq(ret)
	return ret
}
