package process

import (
	"fmt"
	"time"

	"github.com/viant/nodeos/internal/clock"
)

// Outcome describes how a terminated record finished
type Outcome string

const (
	OutcomeCompleted  Outcome = "completed"
	OutcomeFailed     Outcome = "failed"
	OutcomeTerminated Outcome = "terminated"
)

// Transition is a single recorded lifecycle move
type Transition struct {
	From   State     `json:"from"`
	To     State     `json:"to"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason,omitempty"`
}

// Record is the process control block.  A record is not safe for concurrent
// use; the orchestrator guards every mutation with its scheduling lock.
type Record struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	State    State    `json:"state"`
	Seq      uint64   `json:"seq"`

	Priority         int           `json:"priority"`
	Inherited        int           `json:"inherited,omitempty"`
	Level            int           `json:"level"`
	QuantumRemaining time.Duration `json:"quantumRemaining"`
	CPUTime          time.Duration `json:"cpuTime"`
	Burst            time.Duration `json:"burst"`
	Estimate         time.Duration `json:"estimate"`
	Predicted        time.Duration `json:"predicted,omitempty"`
	Core             int           `json:"core"`

	Memory      int64    `json:"memory"`
	Pages       int      `json:"pages"`
	BaseAddress uint64   `json:"baseAddress"`
	Pinned      bool     `json:"pinned"`
	Parent      string   `json:"parent,omitempty"`
	Children    []string `json:"children,omitempty"`

	Outcome      Outcome                 `json:"outcome,omitempty"`
	Faults       int                     `json:"faults,omitempty"`
	BlockedOn    string                  `json:"blockedOn,omitempty"`
	CreatedAt    time.Time               `json:"createdAt"`
	TerminatedAt *time.Time              `json:"terminatedAt,omitempty"`
	StateSince   time.Time               `json:"stateSince"`
	LastRun      time.Time               `json:"lastRun"`
	LastAged     time.Time               `json:"lastAged"`
	Durations    map[State]time.Duration `json:"durations"`
	History      []Transition            `json:"history,omitempty"`
}

// New creates a record in the NEW state
func New(id, name string, category Category, priority int) *Record {
	now := clock.Now()
	return &Record{
		ID:         id,
		Name:       name,
		Category:   category,
		State:      StateNew,
		Priority:   priority,
		Core:       -1,
		CreatedAt:  now,
		StateSince: now,
		LastRun:    now,
		LastAged:   now,
		Durations:  make(map[State]time.Duration),
	}
}

// TransitionTo moves the record to the target state, accumulating the time
// spent in the previous one.  Illegal moves return ErrInvalidTransition.
func (r *Record) TransitionTo(to State, reason string) error {
	if !CanTransition(r.State, to) {
		return fmt.Errorf("%w: %s -> %s (process %s)", ErrInvalidTransition, r.State, to, r.ID)
	}
	now := clock.Now()
	if elapsed := now.Sub(r.StateSince); elapsed > 0 {
		r.Durations[r.State] += elapsed
	}
	if r.State == StateRunning {
		r.LastRun = now
	}
	if to == StateReady {
		r.LastAged = now
	}
	r.History = append(r.History, Transition{From: r.State, To: to, At: now, Reason: reason})
	r.State = to
	r.StateSince = now
	if to == StateTerminated {
		r.TerminatedAt = &now
	}
	return nil
}

// EffectivePriority returns the larger of the base and inherited priority
func (r *Record) EffectivePriority() int {
	if r.Inherited > r.Priority {
		return r.Inherited
	}
	return r.Priority
}

// WaitTime returns the accumulated time spent READY, including the current
// stay when the record is still queued.
func (r *Record) WaitTime() time.Duration {
	ret := r.Durations[StateReady]
	if r.State == StateReady {
		ret += clock.Since(r.StateSince)
	}
	return ret
}

// Turnaround returns TERMINATED - NEW, or the elapsed lifetime so far.
func (r *Record) Turnaround() time.Duration {
	if r.TerminatedAt != nil {
		return r.TerminatedAt.Sub(r.CreatedAt)
	}
	return clock.Since(r.CreatedAt)
}

// Remaining returns the simulated CPU work still to be done
func (r *Record) Remaining() time.Duration {
	if r.CPUTime >= r.Burst {
		return 0
	}
	return r.Burst - r.CPUTime
}

// AddChild links a child id
func (r *Record) AddChild(id string) {
	for _, candidate := range r.Children {
		if candidate == id {
			return
		}
	}
	r.Children = append(r.Children, id)
}

// RemoveChild unlinks a child id
func (r *Record) RemoveChild(id string) {
	for i, candidate := range r.Children {
		if candidate == id {
			r.Children = append(r.Children[:i], r.Children[i+1:]...)
			return
		}
	}
}

// Clone returns a deep copy suitable for read-only inspection
func (r *Record) Clone() *Record {
	ret := *r
	ret.Children = append([]string(nil), r.Children...)
	ret.History = append([]Transition(nil), r.History...)
	ret.Durations = make(map[State]time.Duration, len(r.Durations))
	for k, v := range r.Durations {
		ret.Durations[k] = v
	}
	if r.TerminatedAt != nil {
		at := *r.TerminatedAt
		ret.TerminatedAt = &at
	}
	return &ret
}
