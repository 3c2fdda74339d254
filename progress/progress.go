package progress

import (
	"context"
	"sync"
	"time"

	"github.com/viant/nodeos/internal/clock"
)

// Delta represents an incremental counter change.  The fields are signed.
type Delta struct {
	Submitted  int
	Admitted   int
	Rejected   int
	Dispatched int
	Slices     int
	Completed  int
	Failed     int
	Terminated int
	Faults     int
	Running    int
	Waiting    int
}

// Counters is the plain value view of a tracker
type Counters struct {
	StartedAt  time.Time `json:"startedAt"`
	Submitted  int       `json:"submitted"`
	Admitted   int       `json:"admitted"`
	Rejected   int       `json:"rejected"`
	Dispatched int       `json:"dispatched"`
	Slices     int       `json:"slices"`
	Completed  int       `json:"completed"`
	Failed     int       `json:"failed"`
	Terminated int       `json:"terminated"`
	Faults     int       `json:"faults"`
	Running    int       `json:"running"`
	Waiting    int       `json:"waiting"`
}

// Tracker is safe for concurrent use
type Tracker struct {
	mu       sync.Mutex
	counters Counters
	onChange func(Counters)
}

// NewTracker creates a tracker started now
func NewTracker(onChange func(Counters)) *Tracker {
	return &Tracker{counters: Counters{StartedAt: clock.Now()}, onChange: onChange}
}

// Update applies d.  The onChange callback, if any, receives a copy outside
// the critical section.
func (t *Tracker) Update(d Delta) {
	if t == nil {
		return
	}
	t.mu.Lock()
	c := &t.counters
	c.Submitted += d.Submitted
	c.Admitted += d.Admitted
	c.Rejected += d.Rejected
	c.Dispatched += d.Dispatched
	c.Slices += d.Slices
	c.Completed += d.Completed
	c.Failed += d.Failed
	c.Terminated += d.Terminated
	c.Faults += d.Faults
	c.Running += d.Running
	c.Waiting += d.Waiting
	snapshot := *c
	cb := t.onChange
	t.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a copy of the counters
func (t *Tracker) Snapshot() Counters {
	if t == nil {
		return Counters{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counters
}

// OnChange replaces the change callback; nil disables it.
func (t *Tracker) OnChange(cb func(Counters)) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.onChange = cb
	t.mu.Unlock()
}

type trackerKeyT struct{}

var trackerKey trackerKeyT

// WithTracker embeds tracker in ctx
func WithTracker(ctx context.Context, tracker *Tracker) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, trackerKey, tracker)
}

// WithNewTracker creates a tracker, embeds it in a derived context and returns both.
func WithNewTracker(ctx context.Context, onChange func(Counters)) (context.Context, *Tracker) {
	tracker := NewTracker(onChange)
	return WithTracker(ctx, tracker), tracker
}

// FromContext extracts the tracker from ctx.
func FromContext(ctx context.Context) (*Tracker, bool) {
	if ctx == nil {
		return nil, false
	}
	tr, ok := ctx.Value(trackerKey).(*Tracker)
	return tr, ok
}

// UpdateCtx applies d to the tracker carried by ctx, if any.
func UpdateCtx(ctx context.Context, d Delta) {
	if tr, ok := FromContext(ctx); ok {
		tr.Update(d)
	}
}
