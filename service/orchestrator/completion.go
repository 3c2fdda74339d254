package orchestrator

import (
	"context"
	"errors"

	"github.com/viant/nodeos/model/process"
	"github.com/viant/nodeos/progress"
	"github.com/viant/nodeos/service/dao"
	"github.com/viant/nodeos/service/messaging"
	"github.com/viant/nodeos/service/processor"
	"github.com/viant/nodeos/service/scheduler"
)

// drain applies worker completions until ctx is done
func (s *Service) drain(ctx context.Context) error {
	completions := s.processor.Completions()
	for {
		msg, err := completions.Consume(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, messaging.ErrClosed) {
				return nil
			}
			s.logger.Warn("failed to consume completion", "error", err)
			continue
		}
		completion := msg.T()
		_ = msg.Ack()
		s.complete(ctx, completion)
	}
}

// complete frees the core of a finished slice and moves the record on
func (s *Service) complete(ctx context.Context, completion *processor.Completion) {
	defer s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if completion.Core < 0 || completion.Core >= len(s.cores) {
		return
	}
	core := &s.cores[completion.Core]
	if core.Running == nil || core.Running.ID != completion.ProcessID {
		s.logger.Warn("stale completion", "id", completion.ProcessID, "core", completion.Core)
		return
	}
	record := core.Running
	core.Running = nil
	core.Draining = false
	core.Release()
	s.energy += scheduler.EnergyCost(s.power[core.ID], completion.Runtime)
	record.CPUTime += completion.Runtime

	if record.State != process.StateRunning {
		// terminated, suspended or blocked while running
		return
	}
	var err error
	switch completion.Outcome {
	case processor.OutcomeCompleted:
		err = s.terminate(ctx, record, process.OutcomeCompleted, "completed")
	case processor.OutcomeExpired:
		if err = s.transition(record, process.StateReady, "quantum expired"); err == nil {
			s.strategy.Requeue(record, true)
		}
	case processor.OutcomeFault:
		err = s.fault(ctx, record, completion.Err)
	default:
		if err = s.transition(record, process.StateReady, string(completion.Outcome)); err == nil {
			s.strategy.Requeue(record, false)
		}
	}
	if err != nil {
		s.logger.Warn("failed to apply completion", "id", record.ID, "outcome", completion.Outcome, "error", err)
	}
}

// fault applies the fault policy of record
func (s *Service) fault(ctx context.Context, record *process.Record, cause error) error {
	record.Faults++
	s.tracker.Update(progress.Delta{Faults: 1})
	s.logger.Debug("memory fault", "id", record.ID, "faults", record.Faults, "error", cause)
	if s.policies[record.ID].ShouldWait(record.Faults) {
		return s.transition(record, process.StateWaiting, "fault: "+errorText(cause))
	}
	return s.terminate(ctx, record, process.OutcomeFailed, "fault: "+errorText(cause))
}

func errorText(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}

func (s *Service) stateParameter(states ...process.State) *dao.Parameter {
	values := make([]string, len(states))
	for i, state := range states {
		values[i] = string(state)
	}
	return dao.NewParameter("State", values...)
}
