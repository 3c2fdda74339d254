package scheduler

import (
	"sync"
	"time"

	"github.com/viant/nodeos/internal/clock"
	"github.com/viant/nodeos/model/process"
)

// Stats is the uniform statistics view of every policy
type Stats struct {
	Kind              Kind          `json:"kind"`
	Queued            int           `json:"queued"`
	Dispatches        int           `json:"dispatches"`
	ContextSwitches   int           `json:"contextSwitches"`
	Preemptions       int           `json:"preemptions"`
	Completed         int           `json:"completed"`
	AverageWait       time.Duration `json:"averageWait"`
	AverageTurnaround time.Duration `json:"averageTurnaround"`
	// Throughput is completed records per second since the recorder started
	Throughput float64 `json:"throughput"`
}

// Recorder accumulates scheduling statistics; it is safe for concurrent use.
type Recorder struct {
	mu          sync.Mutex
	started     time.Time
	last        map[int]string
	dispatches  int
	switches    int
	preemptions int
	completed   int
	wait        time.Duration
	turnaround  time.Duration
}

// NewRecorder creates a recorder started now
func NewRecorder() *Recorder {
	return &Recorder{started: clock.Now(), last: make(map[int]string)}
}

// Dispatched counts a dispatch and a context switch when the core ran a
// different record before.
func (r *Recorder) Dispatched(core int, pid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatches++
	if r.last[core] != pid {
		r.switches++
	}
	r.last[core] = pid
}

// Preempted counts a preemption decision
func (r *Recorder) Preempted() {
	r.mu.Lock()
	r.preemptions++
	r.mu.Unlock()
}

// Completed folds the wait and turnaround time of a terminated record
func (r *Recorder) Completed(record *process.Record) {
	wait, turnaround := record.WaitTime(), record.Turnaround()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
	r.wait += wait
	r.turnaround += turnaround
}

// Stats returns the current statistics; Kind and Queued are left to the strategy owner.
func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := Stats{
		Dispatches:      r.dispatches,
		ContextSwitches: r.switches,
		Preemptions:     r.preemptions,
		Completed:       r.completed,
	}
	if r.completed > 0 {
		ret.AverageWait = r.wait / time.Duration(r.completed)
		ret.AverageTurnaround = r.turnaround / time.Duration(r.completed)
	}
	if elapsed := clock.Since(r.started); elapsed > 0 {
		ret.Throughput = float64(r.completed) / elapsed.Seconds()
	}
	return ret
}

// StatsOf returns the strategy statistics including its kind and queue length
func StatsOf(strategy Strategy) Stats {
	ret := strategy.Recorder().Stats()
	ret.Kind = strategy.Kind()
	ret.Queued = strategy.Len()
	return ret
}
