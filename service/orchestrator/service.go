package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/viant/nodeos/internal/idgen"
	"github.com/viant/nodeos/internal/logging"
	"github.com/viant/nodeos/model/process"
	"github.com/viant/nodeos/policy"
	"github.com/viant/nodeos/progress"
	"github.com/viant/nodeos/service/dao"
	pmemory "github.com/viant/nodeos/service/dao/process/memory"
	"github.com/viant/nodeos/service/event"
	"github.com/viant/nodeos/service/memory"
	"github.com/viant/nodeos/service/messaging"
	"github.com/viant/nodeos/service/predictor"
	"github.com/viant/nodeos/service/processor"
	"github.com/viant/nodeos/service/scheduler"
	"github.com/viant/nodeos/tracing"
	"golang.org/x/sync/errgroup"
)

// Processor executes slices on the cores
type Processor interface {
	Start(ctx context.Context) error
	Shutdown()
	Cores() int
	Dispatch(ctx context.Context, slice *processor.Slice) error
	Signal(pid string, cause error) bool
	Completions() messaging.Queue[processor.Completion]
}

// Service is the process orchestrator of one node
type Service struct {
	config          Config
	schedulerConfig scheduler.Config
	nodeID          string
	logger          *slog.Logger
	memory          *memory.Manager
	predictor       *predictor.Service
	processor       Processor
	events          *event.Service
	registry        dao.Service[string, process.Record]
	tracker         *progress.Tracker
	policy          *policy.Policy

	mu       sync.Mutex
	strategy scheduler.Strategy
	cores    []scheduler.Core
	power    []scheduler.PowerState
	energy   float64
	seq      uint64
	slices   map[string]int
	policies map[string]*policy.Policy
	released bool
	outbox   []func(ctx context.Context) error

	group  *errgroup.Group
	cancel context.CancelFunc
}

// New creates an orchestrator over the supplied memory manager, predictor and core workers
func New(memoryManager *memory.Manager, aPredictor *predictor.Service, aProcessor Processor, options ...Option) (*Service, error) {
	if memoryManager == nil || aPredictor == nil || aProcessor == nil {
		return nil, fmt.Errorf("orchestrator requires a memory manager, a predictor and a processor")
	}
	s := &Service{
		config:          DefaultConfig(),
		schedulerConfig: scheduler.DefaultConfig(),
		memory:          memoryManager,
		predictor:       aPredictor,
		processor:       aProcessor,
		slices:          make(map[string]int),
		policies:        make(map[string]*policy.Policy),
	}
	for _, opt := range options {
		opt(s)
	}
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	strategy, err := scheduler.New(s.schedulerConfig, aPredictor)
	if err != nil {
		return nil, err
	}
	s.strategy = strategy
	s.policy = policy.FromConfig(&s.config.Policy)
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.registry == nil {
		s.registry = pmemory.New()
	}
	if s.tracker == nil {
		s.tracker = progress.NewTracker(nil)
	}
	if s.nodeID == "" {
		s.nodeID = idgen.New()
	}
	s.cores = make([]scheduler.Core, aProcessor.Cores())
	s.power = make([]scheduler.PowerState, aProcessor.Cores())
	for i := range s.cores {
		s.cores[i].ID = i
		s.power[i] = scheduler.PowerBalanced
	}
	return s, nil
}

// NodeID returns the node identifier
func (s *Service) NodeID() string { return s.nodeID }

// Tracker returns the progress tracker
func (s *Service) Tracker() *progress.Tracker { return s.tracker }

// Start launches the core workers, the tick loop and the completion drainer.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrStarted
	}
	ctx = progress.WithTracker(ctx, s.tracker)
	ctx, s.cancel = context.WithCancel(ctx)
	if err := s.processor.Start(ctx); err != nil {
		s.cancel()
		s.cancel = nil
		return err
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return s.loop(groupCtx) })
	group.Go(func() error { return s.drain(groupCtx) })
	s.group = group
	s.logger.Info("orchestrator started", "node", s.nodeID, "strategy", s.strategy.Kind(), "cores", len(s.cores))
	return nil
}

// Shutdown stops the loops and the core workers
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel, group := s.cancel, s.group
	s.mu.Unlock()
	if cancel == nil {
		s.processor.Shutdown()
		return nil
	}
	cancel()
	err := group.Wait()
	s.processor.Shutdown()
	s.logger.Info("orchestrator stopped", "node", s.nodeID)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Submit allocates memory for the request and admits a new process to the
// ready set.  A failed allocation rejects the request before a record exists.
func (s *Service) Submit(ctx context.Context, request *Request) (id string, err error) {
	ctx, span := tracing.StartSpan(ctx, "orchestrator.Submit", "INTERNAL")
	defer func() { tracing.EndSpan(span, err) }()
	s.tracker.Update(progress.Delta{Submitted: 1})
	if err = request.Init(); err != nil {
		s.tracker.Update(progress.Delta{Rejected: 1})
		return "", err
	}
	if err = request.Validate(); err != nil {
		s.tracker.Update(progress.Delta{Rejected: 1})
		return "", err
	}
	span.WithAttributes(map[string]string{"process.category": string(request.Category), "process.name": request.Name})

	defer s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	var parent *process.Record
	if request.Parent != "" {
		if parent, err = s.live(ctx, request.Parent); err != nil {
			s.tracker.Update(progress.Delta{Rejected: 1})
			return "", err
		}
	}
	id = idgen.New()
	base, err := s.memory.Allocate(ctx, id, request.Memory, string(request.Category), request.Pinned)
	if err != nil {
		s.tracker.Update(progress.Delta{Rejected: 1})
		s.logger.Warn("process rejected", "name", request.Name, "category", request.Category, "memory", request.Memory, "error", err)
		return "", fmt.Errorf("failed to admit %s: %w", request.Name, err)
	}

	s.seq++
	record := process.New(id, request.Name, request.Category, request.Priority)
	record.Seq = s.seq
	record.Memory = request.Memory
	record.Pages = s.memory.PagesFor(request.Memory)
	record.BaseAddress = base
	record.Pinned = request.Pinned
	record.Estimate = request.Estimate
	record.Burst = request.Burst
	if record.Burst == 0 {
		record.Burst = request.Estimate
	}
	if record.Burst == 0 {
		record.Burst = s.config.DefaultBurst
	}
	if parent != nil {
		record.Parent = parent.ID
		parent.AddChild(id)
	}
	if err = s.registry.Save(ctx, record); err != nil {
		_ = s.memory.Deallocate(ctx, id)
		return "", err
	}
	if aPolicy := policy.FromContext(ctx); aPolicy != nil {
		s.policies[id] = aPolicy
	} else {
		s.policies[id] = s.policy
	}
	s.enqueue(&event.Context{ProcessID: id, EventType: "transition", Source: s.nodeID},
		Transition{ProcessID: id, Name: record.Name, Category: record.Category, To: process.StateNew, Reason: "submitted"})
	if err = s.transition(record, process.StateReady, "admitted"); err != nil {
		return "", err
	}
	s.strategy.Add(record)
	if s.config.storage(string(record.Category)) {
		s.enqueue(&event.Context{ProcessID: id, EventType: "storageHint", Source: s.nodeID},
			StorageHint{ProcessID: id, Category: record.Category, Size: request.Memory})
	}
	s.tracker.Update(progress.Delta{Admitted: 1})
	s.logger.Debug("process admitted", "id", id, "name", record.Name, "category", record.Category, "base", fmt.Sprintf("%#x", base))
	return id, nil
}

// live loads a non terminated record.  Callers hold s.mu.
func (s *Service) live(ctx context.Context, id string) (*process.Record, error) {
	record, err := s.registry.Load(ctx, id)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProcess, id)
		}
		return nil, err
	}
	if record.State.IsTerminal() {
		return nil, fmt.Errorf("%w: %s already terminated", ErrUnknownProcess, id)
	}
	return record, nil
}

// Process returns a copy of the record
func (s *Service) Process(ctx context.Context, id string) (*process.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.registry.Load(ctx, id)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProcess, id)
		}
		return nil, err
	}
	return record.Clone(), nil
}

// Processes returns copies of the records in any of states, all when empty
func (s *Service) Processes(ctx context.Context, states ...process.State) ([]*process.Record, error) {
	var parameters []*dao.Parameter
	if len(states) > 0 {
		parameters = append(parameters, s.stateParameter(states...))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.registry.List(ctx, parameters...)
	if err != nil {
		return nil, err
	}
	ret := make([]*process.Record, len(records))
	for i, record := range records {
		ret[i] = record.Clone()
	}
	return ret, nil
}

// Access touches addr in the address space of a live process
func (s *Service) Access(ctx context.Context, id string, addr uint64) ([]byte, error) {
	s.mu.Lock()
	_, err := s.live(ctx, id)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.memory.Access(ctx, id, addr)
}

// Grow allocates size more bytes to a live process and returns the new region base
func (s *Service) Grow(ctx context.Context, id string, size int64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.live(ctx, id)
	if err != nil {
		return 0, err
	}
	base, err := s.memory.Allocate(ctx, id, size, string(record.Category), record.Pinned)
	if err != nil {
		return 0, err
	}
	record.Memory += size
	record.Pages = s.memory.Pages(id)
	return base, nil
}

// Defragment compacts the memory pools
func (s *Service) Defragment(ctx context.Context) *memory.DefragReport {
	report := s.memory.Defragment(ctx)
	s.logger.Info("memory defragmented", "before", report.Before, "after", report.After, "moved", report.Moved)
	return report
}

// ChangeStrategy swaps the scheduling strategy, migrating the ready set in
// arrival order.  Running records join the new strategy when their slice ends.
func (s *Service) ChangeStrategy(kind scheduler.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	config := s.schedulerConfig
	config.Kind = kind
	strategy, err := scheduler.New(config, s.predictor)
	if err != nil {
		return err
	}
	strategy.UseRecorder(s.strategy.Recorder())
	migrated := s.strategy.Drain()
	for _, record := range migrated {
		strategy.Add(record)
	}
	s.logger.Info("strategy changed", "from", s.strategy.Kind(), "to", strategy.Kind(), "migrated", len(migrated))
	s.strategy = strategy
	s.schedulerConfig = config
	return nil
}
