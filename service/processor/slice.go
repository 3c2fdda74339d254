package processor

import (
	"errors"
	"time"
)

// Slice is one dispatch of a process to a core
type Slice struct {
	ProcessID string `json:"processId"`
	Core      int    `json:"core"`
	// Budget is the CPU time granted, min(quantum, remaining)
	Budget time.Duration `json:"budget"`
	// Remaining is the CPU work left before the slice
	Remaining time.Duration `json:"remaining"`
	// Address is touched once per slice; zero skips the memory access
	Address uint64 `json:"address,omitempty"`
}

// Outcome tells the orchestrator how a slice ended
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeExpired   Outcome = "expired"
	OutcomePreempted Outcome = "preempted"
	OutcomeFault     Outcome = "fault"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeSuspended Outcome = "suspended"
	OutcomeBlocked   Outcome = "blocked"
)

// Completion is published once per slice
type Completion struct {
	ProcessID string        `json:"processId"`
	Core      int           `json:"core"`
	Outcome   Outcome       `json:"outcome"`
	Runtime   time.Duration `json:"runtime"`
	Err       error         `json:"-"`
}

// Cancel causes understood by Signal.
var (
	ErrPreempted  = errors.New("preempted")
	ErrTerminated = errors.New("terminated")
	ErrSuspended  = errors.New("suspended")
	ErrBlocked    = errors.New("blocked")
)

// outcomeOf maps a cancel cause onto an outcome
func outcomeOf(cause error) Outcome {
	switch {
	case errors.Is(cause, ErrPreempted):
		return OutcomePreempted
	case errors.Is(cause, ErrSuspended):
		return OutcomeSuspended
	case errors.Is(cause, ErrBlocked):
		return OutcomeBlocked
	}
	return OutcomeCancelled
}
