package orchestrator

import (
	"context"

	"github.com/viant/nodeos/model/process"
	"github.com/viant/nodeos/progress"
	"github.com/viant/nodeos/service/event"
)

// Transition is published for every lifecycle move
type Transition struct {
	ProcessID string           `json:"processId"`
	Name      string           `json:"name"`
	Category  process.Category `json:"category"`
	From      process.State    `json:"from,omitempty"`
	To        process.State    `json:"to"`
	Reason    string           `json:"reason,omitempty"`
}

// StorageHint announces the size of persistent storage a process will need
type StorageHint struct {
	ProcessID string           `json:"processId"`
	Category  process.Category `json:"category"`
	Size      int64            `json:"size"`
}

// transition moves r and queues the matching event.  Callers hold s.mu.
func (s *Service) transition(r *process.Record, to process.State, reason string) error {
	from := r.State
	if err := r.TransitionTo(to, reason); err != nil {
		return err
	}
	s.tracker.Update(gauges(from, to))
	s.enqueue(&event.Context{ProcessID: r.ID, EventType: "transition", Source: s.nodeID},
		Transition{ProcessID: r.ID, Name: r.Name, Category: r.Category, From: from, To: to, Reason: reason})
	return nil
}

// gauges returns the running and waiting gauge moves of from -> to
func gauges(from, to process.State) progress.Delta {
	ret := progress.Delta{}
	for state, sign := range map[process.State]int{from: -1, to: 1} {
		switch state {
		case process.StateRunning:
			ret.Running += sign
		case process.StateWaiting:
			ret.Waiting += sign
		}
	}
	return ret
}

// enqueue buffers an event until the scheduling lock is released
func (s *Service) enqueue(aContext *event.Context, data interface{}) {
	if s.events == nil {
		return
	}
	switch actual := data.(type) {
	case Transition:
		s.outbox = append(s.outbox, func(ctx context.Context) error {
			publisher, err := event.PublisherOf[Transition](s.events)
			if err != nil {
				return err
			}
			return publisher.Publish(ctx, event.NewEvent(aContext, actual))
		})
	case StorageHint:
		s.outbox = append(s.outbox, func(ctx context.Context) error {
			publisher, err := event.PublisherOf[StorageHint](s.events)
			if err != nil {
				return err
			}
			return publisher.Publish(ctx, event.NewEvent(aContext, actual))
		})
	}
}

// flush publishes buffered events; it must run after s.mu is released.
func (s *Service) flush(ctx context.Context) {
	s.mu.Lock()
	pending := s.outbox
	s.outbox = nil
	s.mu.Unlock()
	for _, publish := range pending {
		if err := publish(ctx); err != nil {
			s.logger.Debug("event dropped", "error", err)
		}
	}
}
