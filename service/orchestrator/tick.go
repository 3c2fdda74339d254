package orchestrator

import (
	"context"
	"strconv"
	"time"

	"github.com/viant/nodeos/internal/clock"
	"github.com/viant/nodeos/model/process"
	"github.com/viant/nodeos/progress"
	"github.com/viant/nodeos/service/processor"
	"github.com/viant/nodeos/service/scheduler"
	"github.com/viant/nodeos/tracing"
)

// loop runs the scheduling tick at a fixed interval
func (s *Service) loop(ctx context.Context) error {
	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick wakes memory waiters, asks the strategy for assignments and applies
// them.  Failures are logged per process and never abort the tick.
func (s *Service) tick(ctx context.Context) int {
	defer s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wake(ctx)
	assignments := s.strategy.Select(s.cores)
	if len(assignments) == 0 {
		return 0
	}
	ctx, span := tracing.StartSpan(ctx, "orchestrator.tick", "INTERNAL")
	span.WithAttributes(map[string]string{"assignments": strconv.Itoa(len(assignments)), "strategy": string(s.strategy.Kind())})
	defer tracing.EndSpan(span, nil)
	applied := 0
	for i := range assignments {
		if s.apply(ctx, &assignments[i]) {
			applied++
		}
	}
	return applied
}

// wake returns fault waiters to the ready set once memory was released or
// their retry delay elapsed.  Callers hold s.mu.
func (s *Service) wake(ctx context.Context) {
	released := s.released
	s.released = false
	waiting, err := s.registry.List(ctx, s.stateParameter(process.StateWaiting))
	if err != nil {
		s.logger.Warn("failed to list waiting processes", "error", err)
		return
	}
	now := clock.Now()
	for _, record := range waiting {
		if record.BlockedOn != "" {
			continue
		}
		if !released && !s.policies[record.ID].Due(record.StateSince, now) {
			continue
		}
		if err := s.transition(record, process.StateReady, "retry after fault"); err != nil {
			s.logger.Warn("failed to wake process", "id", record.ID, "error", err)
			continue
		}
		s.strategy.Add(record)
	}
}

// apply executes one assignment.  Callers hold s.mu.
func (s *Service) apply(ctx context.Context, assignment *scheduler.Assignment) bool {
	core := &s.cores[assignment.Core]
	if assignment.Process == nil {
		if assignment.Preempt == "" || core.Running == nil || core.Running.ID != assignment.Preempt {
			return false
		}
		core.Draining = true
		s.processor.Signal(assignment.Preempt, processor.ErrPreempted)
		s.logger.Debug("preempting", "id", assignment.Preempt, "core", core.ID)
		return true
	}
	record := assignment.Process
	if !core.Idle() || s.coreOf(record) != nil {
		// the previous slice of record has not been acknowledged yet
		s.strategy.Requeue(record, false)
		return false
	}
	if err := s.transition(record, process.StateRunning, "dispatched to core "+strconv.Itoa(core.ID)); err != nil {
		s.logger.Warn("failed to dispatch", "id", record.ID, "error", err)
		return false
	}
	remaining := record.Remaining()
	budget := assignment.Quantum
	if budget == 0 || budget > remaining {
		budget = remaining
	}
	record.Core = core.ID
	record.QuantumRemaining = assignment.Quantum
	core.Running = record
	core.Assign()
	power := assignment.Power
	if power == "" {
		power = scheduler.Advise(record.Category, scheduler.SystemLoad(s.cores))
	}
	s.power[core.ID] = power

	slice := &processor.Slice{
		ProcessID: record.ID,
		Core:      core.ID,
		Budget:    budget,
		Remaining: remaining,
		Address:   s.address(record),
	}
	s.slices[record.ID]++
	if err := s.processor.Dispatch(ctx, slice); err != nil {
		s.logger.Warn("slice not dispatched", "id", record.ID, "core", core.ID, "error", err)
		core.Running = nil
		core.Release()
		if err := s.transition(record, process.StateReady, "dispatch failed"); err == nil {
			s.strategy.Requeue(record, false)
		}
		return false
	}
	s.tracker.Update(progress.Delta{Dispatched: 1})
	return true
}

// address walks the pages of record, one page per slice
func (s *Service) address(record *process.Record) uint64 {
	if record.Pages == 0 {
		return 0
	}
	page := s.slices[record.ID] % record.Pages
	addr, err := s.memory.PageAddress(record.ID, page)
	if err != nil {
		s.logger.Warn("page address not resolved", "id", record.ID, "page", page, "error", err)
		return record.BaseAddress
	}
	return addr
}
