package scheduler

import (
	"sort"

	"github.com/viant/nodeos/model/process"
)

// queue is an ordered ready list
type queue struct {
	items []*process.Record
}

func (q *queue) push(r *process.Record) {
	q.items = append(q.items, r)
}

// insert places r by arrival order
func (q *queue) insert(r *process.Record) {
	i := len(q.items)
	for i > 0 && q.items[i-1].Seq > r.Seq {
		i--
	}
	q.items = append(q.items, nil)
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = r
}

func (q *queue) pop() *process.Record {
	if len(q.items) == 0 {
		return nil
	}
	ret := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return ret
}

func (q *queue) remove(id string) bool {
	for i, candidate := range q.items {
		if candidate.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

func (q *queue) len() int { return len(q.items) }

func (q *queue) drain() []*process.Record {
	ret := q.items
	q.items = nil
	return ret
}

// bySeq sorts records by arrival
func bySeq(records []*process.Record) {
	sort.SliceStable(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })
}
