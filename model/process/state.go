package process

// State represents the lifecycle state of a process record
type State string

const (
	StateNew        State = "new"
	StateReady      State = "ready"
	StateRunning    State = "running"
	StateWaiting    State = "waiting"
	StateSuspended  State = "suspended"
	StateTerminated State = "terminated"
)

// transitions lists legal target states per source state.
var transitions = map[State][]State{
	StateNew:       {StateReady, StateTerminated},
	StateReady:     {StateRunning, StateSuspended, StateTerminated},
	StateRunning:   {StateReady, StateWaiting, StateSuspended, StateTerminated},
	StateWaiting:   {StateReady, StateSuspended, StateTerminated},
	StateSuspended: {StateReady, StateTerminated},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true for TERMINATED.
func (s State) IsTerminal() bool {
	return s == StateTerminated
}

// IsValid returns true for known states.
func (s State) IsValid() bool {
	switch s {
	case StateNew, StateReady, StateRunning, StateWaiting, StateSuspended, StateTerminated:
		return true
	}
	return false
}

// ValidPath checks that history starts at NEW and only follows legal
// transitions with non-decreasing timestamps.
func ValidPath(history []Transition) bool {
	if len(history) == 0 {
		return true
	}
	if history[0].From != StateNew {
		return false
	}
	for i, item := range history {
		if !CanTransition(item.From, item.To) {
			return false
		}
		if i == 0 {
			continue
		}
		prev := history[i-1]
		if prev.To != item.From || item.At.Before(prev.At) {
			return false
		}
	}
	return true
}
