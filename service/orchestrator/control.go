package orchestrator

import (
	"context"

	"github.com/viant/nodeos/model/process"
	"github.com/viant/nodeos/progress"
	"github.com/viant/nodeos/service/processor"
	"github.com/viant/nodeos/service/scheduler"
	"github.com/viant/nodeos/tracing"
)

// Terminate ends a live process, returning false when it could not be terminated
func (s *Service) Terminate(ctx context.Context, id string) bool {
	return s.TerminateErr(ctx, id) == nil
}

// TerminateErr ends a live process.  A running slice is signalled and the
// record is TERMINATED with its memory reclaimed before TerminateErr returns;
// the core stays draining until the worker acknowledges.
func (s *Service) TerminateErr(ctx context.Context, id string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "orchestrator.Terminate", "INTERNAL")
	span.WithAttributes(map[string]string{"process.id": id})
	defer func() { tracing.EndSpan(span, err) }()
	defer s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.live(ctx, id)
	if err != nil {
		return err
	}
	return s.terminate(ctx, record, process.OutcomeTerminated, "terminated by request")
}

// Suspend parks a READY, WAITING or RUNNING process
func (s *Service) Suspend(ctx context.Context, id string) bool {
	return s.SuspendErr(ctx, id) == nil
}

// SuspendErr parks a READY, WAITING or RUNNING process
func (s *Service) SuspendErr(ctx context.Context, id string) error {
	defer s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.live(ctx, id)
	if err != nil {
		return err
	}
	from := record.State
	if err = s.transition(record, process.StateSuspended, "suspended by request"); err != nil {
		return err
	}
	s.leave(record, from, processor.ErrSuspended)
	if record.BlockedOn != "" {
		holder := record.BlockedOn
		record.BlockedOn = ""
		s.inherit(ctx, holder)
	}
	return nil
}

// Resume returns a suspended process to the ready set
func (s *Service) Resume(ctx context.Context, id string) bool {
	return s.ResumeErr(ctx, id) == nil
}

// ResumeErr returns a suspended process to the ready set
func (s *Service) ResumeErr(ctx context.Context, id string) error {
	defer s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.live(ctx, id)
	if err != nil {
		return err
	}
	if err = s.transition(record, process.StateReady, "resumed by request"); err != nil {
		return err
	}
	s.strategy.Add(record)
	return nil
}

// Block parks a READY or RUNNING process until holder releases a resource.
// The holder inherits the effective priority of its highest waiter.
func (s *Service) Block(ctx context.Context, id, holder string) error {
	defer s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.live(ctx, id)
	if err != nil {
		return err
	}
	if id == holder {
		return ErrInvalidRequest
	}
	if _, err = s.live(ctx, holder); err != nil {
		return err
	}
	from := record.State
	if err = s.transition(record, process.StateWaiting, "blocked on "+holder); err != nil {
		return err
	}
	s.leave(record, from, processor.ErrBlocked)
	record.BlockedOn = holder
	s.inherit(ctx, holder)
	return nil
}

// Wake releases a process blocked by Block
func (s *Service) Wake(ctx context.Context, id string) error {
	defer s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.live(ctx, id)
	if err != nil {
		return err
	}
	if record.State != process.StateWaiting || record.BlockedOn == "" {
		return ErrInvalidRequest
	}
	holder := record.BlockedOn
	if err = s.transition(record, process.StateReady, "woken"); err != nil {
		return err
	}
	record.BlockedOn = ""
	s.strategy.Add(record)
	s.inherit(ctx, holder)
	return nil
}

// leave detaches a record that just left from: a queued record is removed
// from the strategy, a running one is signalled and its core drains.
func (s *Service) leave(record *process.Record, from process.State, cause error) {
	switch from {
	case process.StateReady:
		s.strategy.Remove(record.ID)
	case process.StateRunning:
		if core := s.coreOf(record); core != nil {
			s.processor.Signal(record.ID, cause)
			core.Draining = true
		}
	}
}

// coreOf returns the core holding record, nil when none does
func (s *Service) coreOf(record *process.Record) *scheduler.Core {
	for i := range s.cores {
		if s.cores[i].Running == record {
			return &s.cores[i]
		}
	}
	return nil
}

// inherit recomputes the priority holder inherits from its waiters
func (s *Service) inherit(ctx context.Context, holder string) {
	record, err := s.registry.Load(ctx, holder)
	if err != nil {
		return
	}
	inherited := 0
	waiters, _ := s.registry.List(ctx)
	for _, waiter := range waiters {
		if waiter.BlockedOn == holder && waiter.State == process.StateWaiting {
			inherited = max(inherited, waiter.EffectivePriority())
		}
	}
	if inherited <= record.Priority {
		inherited = 0
	}
	if record.Inherited == inherited {
		return
	}
	record.Inherited = inherited
	if reprioritizer, ok := s.strategy.(scheduler.Reprioritizer); ok && record.State == process.StateReady {
		reprioritizer.Reprioritize(record)
	}
}

// terminate moves record to TERMINATED, reclaims its memory and folds the
// observation into the predictor.  Callers hold s.mu.
func (s *Service) terminate(ctx context.Context, record *process.Record, outcome process.Outcome, reason string) error {
	from := record.State
	if err := s.transition(record, process.StateTerminated, reason); err != nil {
		return err
	}
	record.Outcome = outcome
	s.leave(record, from, processor.ErrTerminated)
	if err := s.memory.Deallocate(ctx, record.ID); err != nil {
		s.logger.Warn("memory reclaim failed", "id", record.ID, "error", err)
	}
	s.released = true
	delete(s.policies, record.ID)
	delete(s.slices, record.ID)

	if record.BlockedOn != "" {
		holder := record.BlockedOn
		record.BlockedOn = ""
		s.inherit(ctx, holder)
	}
	// waiters of a terminated holder get the resource
	waiters, _ := s.registry.List(ctx)
	for _, waiter := range waiters {
		if waiter.BlockedOn != record.ID || waiter.State != process.StateWaiting {
			continue
		}
		waiter.BlockedOn = ""
		if err := s.transition(waiter, process.StateReady, "holder terminated"); err == nil {
			s.strategy.Add(waiter)
		}
	}
	if record.Parent != "" {
		if parent, err := s.registry.Load(ctx, record.Parent); err == nil {
			parent.RemoveChild(record.ID)
		}
	}

	switch outcome {
	case process.OutcomeCompleted:
		s.predictor.Update(record.Category, record.CPUTime, true)
		if record.Predicted > 0 {
			s.predictor.RecordPrediction(record.Predicted, record.CPUTime)
		}
		s.tracker.Update(progress.Delta{Completed: 1})
		s.strategy.Recorder().Completed(record)
	case process.OutcomeFailed:
		s.predictor.Update(record.Category, record.CPUTime, false)
		s.tracker.Update(progress.Delta{Failed: 1})
		s.strategy.Recorder().Completed(record)
	default:
		s.tracker.Update(progress.Delta{Terminated: 1})
	}
	s.logger.Debug("process terminated", "id", record.ID, "outcome", outcome, "cpu", record.CPUTime)
	return nil
}
