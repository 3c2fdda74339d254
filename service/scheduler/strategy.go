package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/viant/nodeos/model/process"
	"github.com/viant/nodeos/service/predictor"
)

// Kind names a scheduling policy
type Kind string

const (
	KindFIFO       Kind = "fifo"
	KindRoundRobin Kind = "round-robin"
	KindPriority   Kind = "priority"
	KindMLFQ       Kind = "mlfq"
	KindPredictive Kind = "predictive"
)

// ParseKind resolves a policy name; empty means round robin.
func ParseKind(name string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(name))) {
	case "", KindRoundRobin, "rr":
		return KindRoundRobin, nil
	case KindFIFO:
		return KindFIFO, nil
	case KindPriority:
		return KindPriority, nil
	case KindMLFQ:
		return KindMLFQ, nil
	case KindPredictive:
		return KindPredictive, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// LoadStep is the load added to a core per assignment and removed on completion
const LoadStep = 0.3

// Core is the per-core view handed to Select
type Core struct {
	ID int `json:"id"`
	// Running is the record dispatched to the core, nil when idle
	Running *process.Record `json:"-"`
	// Draining cores wait for their worker to acknowledge a signal
	Draining bool    `json:"draining"`
	Load     float64 `json:"load"`
}

// Idle reports whether the core can take an assignment
func (c *Core) Idle() bool { return c.Running == nil && !c.Draining }

// Assign bumps the core load, saturating at 1
func (c *Core) Assign() {
	c.Load = min(1, c.Load+LoadStep)
}

// Release lowers the core load, saturating at 0
func (c *Core) Release() {
	c.Load = max(0, c.Load-LoadStep)
}

// SystemLoad returns the average core load
func SystemLoad(cores []Core) float64 {
	if len(cores) == 0 {
		return 0
	}
	total := 0.0
	for i := range cores {
		total += cores[i].Load
	}
	return total / float64(len(cores))
}

// Assignment is a single scheduling decision.  Either Process is dispatched
// to an idle Core, or the record named by Preempt must leave Core.
type Assignment struct {
	Core    int             `json:"core"`
	Process *process.Record `json:"-"`
	// Quantum bounds the slice; zero runs to completion
	Quantum          time.Duration `json:"quantum,omitempty"`
	Preempt          string        `json:"preempt,omitempty"`
	PredictedRuntime time.Duration `json:"predictedRuntime,omitempty"`
	Power            PowerState    `json:"power,omitempty"`
	Score            float64       `json:"score,omitempty"`
}

// Strategy orders the ready set
type Strategy interface {
	Kind() Kind
	// Add enqueues a record entering READY
	Add(r *process.Record)
	// Remove drops a queued record, returning false when it is not queued
	Remove(id string) bool
	// Requeue returns a record that left a core; exhausted is true when it
	// used its whole quantum
	Requeue(r *process.Record, exhausted bool)
	// Select pairs queued records with idle cores
	Select(cores []Core) []Assignment
	Len() int
	// Drain removes and returns every queued record in arrival order
	Drain() []*process.Record
	Recorder() *Recorder
	// UseRecorder replaces the statistics recorder, keeping counts across a strategy change
	UseRecorder(recorder *Recorder)
}

// Reprioritizer is implemented by strategies ordered on effective priority;
// it is called after a record's inherited priority changed.
type Reprioritizer interface {
	Reprioritize(r *process.Record)
}

// Predictor supplies learned category statistics
type Predictor interface {
	Mode() predictor.Mode
	PredictRuntime(category process.Category, base time.Duration) time.Duration
	SuccessRate(category process.Category) (float64, bool)
}

type base struct {
	kind     Kind
	recorder *Recorder
}

func newBase(kind Kind) base {
	return base{kind: kind, recorder: NewRecorder()}
}

func (b *base) Kind() Kind { return b.kind }

func (b *base) Recorder() *Recorder { return b.recorder }

func (b *base) UseRecorder(recorder *Recorder) {
	if recorder != nil {
		b.recorder = recorder
	}
}

// dispatch records the decision and builds the assignment
func (b *base) dispatch(core int, r *process.Record, quantum time.Duration) Assignment {
	b.recorder.Dispatched(core, r.ID)
	return Assignment{Core: core, Process: r, Quantum: quantum}
}

// New creates the strategy selected by config.Kind
func New(config Config, predictor Predictor) (Strategy, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	kind, _ := ParseKind(string(config.Kind))
	switch kind {
	case KindFIFO:
		return NewFIFO(), nil
	case KindRoundRobin:
		return NewRoundRobin(config.Quantum), nil
	case KindPriority:
		return NewPriority(config.Preemptive), nil
	case KindMLFQ:
		return NewMLFQ(config.Levels, config.AgingThreshold), nil
	case KindPredictive:
		if predictor == nil {
			return nil, fmt.Errorf("predictive scheduling requires a predictor")
		}
		return NewPredictive(predictor, config.Predictive), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, config.Kind)
}
