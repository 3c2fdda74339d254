package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/viant/nodeos/internal/logging"
	"github.com/viant/nodeos/progress"
	"github.com/viant/nodeos/service/messaging"
	"github.com/viant/nodeos/service/messaging/memory"
	"github.com/viant/nodeos/tracing"
)

// Accessor is the memory touched by running slices
type Accessor interface {
	Access(ctx context.Context, pid string, addr uint64) ([]byte, error)
}

// Config represents core worker configuration
type Config struct {
	// Cores is the number of simulated cores, one worker each
	Cores int `json:"cores" yaml:"cores"`
	// TimeScale is the wall time spent per unit of simulated CPU time; 0
	// completes slices instantly.
	TimeScale float64 `json:"timeScale" yaml:"timeScale"`
	// QueueBuffer sizes the dispatch and completion queues
	QueueBuffer int `json:"queueBuffer" yaml:"queueBuffer"`
}

// DefaultConfig returns the default worker configuration
func DefaultConfig() Config {
	return Config{
		Cores:       4,
		TimeScale:   1,
		QueueBuffer: 64,
	}
}

// Validate returns an error describing the first invalid setting.
func (c *Config) Validate() error {
	if c.Cores <= 0 {
		return fmt.Errorf("processor.cores must be > 0")
	}
	if c.TimeScale < 0 {
		return fmt.Errorf("processor.timeScale must be >= 0")
	}
	return nil
}

// Service runs the core workers
type Service struct {
	config      Config
	accessor    Accessor
	logger      *slog.Logger
	completions *memory.Queue[Completion]

	mu         sync.Mutex
	dispatched map[string]int
	pending    map[string]error
	running    map[string]context.CancelCauseFunc

	workers  []*worker
	workerWg sync.WaitGroup
}

type worker struct {
	id       int
	service  *Service
	queue    *memory.Queue[Slice]
	ctx      context.Context
	cancelFn context.CancelFunc
}

// New creates the core workers; Start launches them.
func New(options ...Option) (*Service, error) {
	s := &Service{
		config:     DefaultConfig(),
		dispatched: make(map[string]int),
		pending:    make(map[string]error),
		running:    make(map[string]context.CancelCauseFunc),
	}
	for _, opt := range options {
		opt(s)
	}
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.config.QueueBuffer <= 0 {
		s.config.QueueBuffer = DefaultConfig().QueueBuffer
	}
	queueConfig := memory.DefaultConfig()
	queueConfig.QueueBuffer = s.config.QueueBuffer
	queueConfig.MaxRetries = 0
	s.completions = memory.NewQueue[Completion](queueConfig)
	for i := 0; i < s.config.Cores; i++ {
		s.workers = append(s.workers, &worker{id: i, service: s, queue: memory.NewQueue[Slice](queueConfig)})
	}
	return s, nil
}

// Cores returns the number of core workers
func (s *Service) Cores() int { return len(s.workers) }

// Completions returns the queue every slice outcome is published to
func (s *Service) Completions() messaging.Queue[Completion] { return s.completions }

// Start launches one goroutine per core.  ctx may carry a progress tracker.
func (s *Service) Start(ctx context.Context) error {
	for _, w := range s.workers {
		w.ctx, w.cancelFn = context.WithCancel(ctx)
		s.workerWg.Add(1)
		go w.run()
	}
	return nil
}

// Shutdown stops the workers, waits for them and closes the queues.
func (s *Service) Shutdown() {
	for _, w := range s.workers {
		if w.cancelFn != nil {
			w.cancelFn()
		}
	}
	s.workerWg.Wait()
	for _, w := range s.workers {
		w.queue.Close()
	}
	s.completions.Close()
}

// Dispatch queues slice on its core
func (s *Service) Dispatch(ctx context.Context, slice *Slice) error {
	if slice.Core < 0 || slice.Core >= len(s.workers) {
		return fmt.Errorf("core %d out of range [0,%d)", slice.Core, len(s.workers))
	}
	s.mu.Lock()
	if _, ok := s.dispatched[slice.ProcessID]; ok {
		s.mu.Unlock()
		return fmt.Errorf("process %s already dispatched", slice.ProcessID)
	}
	s.dispatched[slice.ProcessID] = slice.Core
	s.mu.Unlock()
	if err := s.workers[slice.Core].queue.Publish(ctx, slice); err != nil {
		s.mu.Lock()
		delete(s.dispatched, slice.ProcessID)
		s.mu.Unlock()
		return fmt.Errorf("failed to dispatch %s to core %d: %w", slice.ProcessID, slice.Core, err)
	}
	return nil
}

// Signal interrupts the slice of pid with cause.  A slice that has not
// started yet ends without running.  It returns false when pid holds no slice.
func (s *Service) Signal(pid string, cause error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dispatched[pid]; !ok {
		return false
	}
	if cancel, ok := s.running[pid]; ok {
		cancel(cause)
		return true
	}
	s.pending[pid] = cause
	return true
}

// Dispatched reports whether pid holds a slice
func (s *Service) Dispatched(pid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.dispatched[pid]
	return ok
}

func (w *worker) run() {
	defer w.service.workerWg.Done()
	for {
		msg, err := w.queue.Consume(w.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, messaging.ErrClosed) {
				return
			}
			w.service.logger.Warn("core worker failed to consume", "core", w.id, "error", err)
			continue
		}
		slice := msg.T()
		completion := w.execute(slice)
		_ = msg.Ack()
		w.service.complete(w.ctx, completion)
	}
}

// execute runs one slice and returns its outcome
func (w *worker) execute(slice *Slice) *Completion {
	s := w.service
	ret := &Completion{ProcessID: slice.ProcessID, Core: w.id}
	sliceCtx, cancel := context.WithCancelCause(w.ctx)
	defer cancel(nil)

	s.mu.Lock()
	if cause, ok := s.pending[slice.ProcessID]; ok {
		delete(s.pending, slice.ProcessID)
		s.mu.Unlock()
		ret.Outcome = outcomeOf(cause)
		return ret
	}
	s.running[slice.ProcessID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, slice.ProcessID)
		s.mu.Unlock()
	}()

	ctx, span := tracing.StartSpan(sliceCtx, "processor.slice", "INTERNAL")
	span.WithAttributes(map[string]string{"process.id": slice.ProcessID, "core": fmt.Sprint(w.id)})
	defer func() { tracing.EndSpan(span, ret.Err) }()

	if s.accessor != nil && slice.Address != 0 {
		if _, err := s.accessor.Access(ctx, slice.ProcessID, slice.Address); err != nil {
			ret.Outcome = OutcomeFault
			ret.Err = err
			return ret
		}
	}

	started := time.Now()
	if wall := time.Duration(float64(slice.Budget) * s.config.TimeScale); wall > 0 {
		timer := time.NewTimer(wall)
		select {
		case <-timer.C:
		case <-sliceCtx.Done():
			timer.Stop()
			ret.Outcome = outcomeOf(context.Cause(sliceCtx))
			ret.Runtime = min(slice.Budget, time.Duration(float64(time.Since(started))/s.config.TimeScale))
			return ret
		}
	}
	ret.Runtime = slice.Budget
	ret.Outcome = OutcomeExpired
	if slice.Budget >= slice.Remaining {
		ret.Outcome = OutcomeCompleted
	}
	progress.UpdateCtx(w.ctx, progress.Delta{Slices: 1})
	return ret
}

// complete releases the dispatch slot and publishes the completion
func (s *Service) complete(ctx context.Context, completion *Completion) {
	s.mu.Lock()
	delete(s.dispatched, completion.ProcessID)
	delete(s.pending, completion.ProcessID)
	s.mu.Unlock()
	if err := s.completions.Publish(ctx, completion); err != nil {
		s.logger.Warn("completion dropped", "process", completion.ProcessID, "core", completion.Core, "error", err)
	}
}
