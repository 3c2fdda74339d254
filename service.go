package nodeos

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/viant/afs/storage"
	"github.com/viant/nodeos/internal/logging"
	"github.com/viant/nodeos/model/process"
	"github.com/viant/nodeos/progress"
	"github.com/viant/nodeos/service/dao"
	"github.com/viant/nodeos/service/dao/swap"
	sfs "github.com/viant/nodeos/service/dao/swap/fs"
	"github.com/viant/nodeos/service/event"
	"github.com/viant/nodeos/service/memory"
	"github.com/viant/nodeos/service/orchestrator"
	"github.com/viant/nodeos/service/predictor"
	"github.com/viant/nodeos/service/processor"
	"github.com/viant/nodeos/service/scheduler"
)

// Service wires the node components together
type Service struct {
	config        *Config
	configURL     string
	metaFsOptions []storage.Option
	logger        *slog.Logger
	strategy      scheduler.Kind
	swapStore     dao.Service[string, swap.Page]
	registry      dao.Service[string, process.Record]
	events        *event.Service
	ownsEvents    bool
	onProgress    func(progress.Counters)
	tracingInit   func() error
	runtime       *Runtime
}

// New creates a node; every component is constructed here and released by Runtime.Shutdown.
func New(options ...Option) (*Service, error) {
	ret := &Service{}
	for _, option := range options {
		option(ret)
	}
	if err := ret.init(context.Background()); err != nil {
		return nil, err
	}
	return ret, nil
}

// Runtime returns the node runtime
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Config returns the effective configuration
func (s *Service) Config() *Config {
	return s.config
}

func (s *Service) init(ctx context.Context) error {
	if s.config == nil && s.configURL != "" {
		config, err := LoadConfig(ctx, s.configURL, s.metaFsOptions...)
		if err != nil {
			return err
		}
		s.config = config
	}
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if s.strategy != "" {
		s.config.Scheduler.Kind = s.strategy
	}
	if err := s.config.Validate(); err != nil {
		return err
	}
	if s.logger == nil {
		s.logger = logging.New(s.config.LogLevel, os.Stderr)
	}
	if s.tracingInit != nil {
		if err := s.tracingInit(); err != nil {
			return fmt.Errorf("failed to initialise tracing: %w", err)
		}
	}
	if err := s.ensureBaseSetup(ctx); err != nil {
		return err
	}

	var memoryOptions []memory.Option
	if s.swapStore != nil {
		memoryOptions = append(memoryOptions, memory.WithSwapStore(s.swapStore))
	}
	memoryManager, err := memory.New(s.config.Memory, memoryOptions...)
	if err != nil {
		return err
	}
	aPredictor := predictor.New(s.config.Predictor.Mode)
	workers, err := processor.New(
		processor.WithConfig(s.config.Processor),
		processor.WithAccessor(memoryManager),
		processor.WithLogger(s.logger))
	if err != nil {
		return err
	}
	orchestratorOptions := []orchestrator.Option{
		orchestrator.WithConfig(s.config.Orchestrator),
		orchestrator.WithScheduler(s.config.Scheduler),
		orchestrator.WithTracker(progress.NewTracker(s.onProgress)),
		orchestrator.WithLogger(s.logger),
		orchestrator.WithNodeID(s.config.NodeID),
	}
	if s.registry != nil {
		orchestratorOptions = append(orchestratorOptions, orchestrator.WithRegistry(s.registry))
	}
	if s.events != nil {
		orchestratorOptions = append(orchestratorOptions, orchestrator.WithEventService(s.events))
	}
	anOrchestrator, err := orchestrator.New(memoryManager, aPredictor, workers, orchestratorOptions...)
	if err != nil {
		return err
	}
	s.runtime = &Runtime{
		orchestrator: anOrchestrator,
		memory:       memoryManager,
		predictor:    aPredictor,
		events:       s.events,
		ownsEvents:   s.ownsEvents,
		logger:       s.logger,
	}
	return nil
}

func (s *Service) ensureBaseSetup(ctx context.Context) error {
	if s.swapStore == nil && s.config.Swap.URL != "" {
		store, err := sfs.New(ctx, s.config.Swap.URL)
		if err != nil {
			return err
		}
		s.swapStore = store
	}
	if s.events == nil && s.config.Events.Vendor != "" {
		events, err := event.New(s.config.Events.Vendor, event.WithLogger(s.logger))
		if err != nil {
			return err
		}
		s.events = events
		s.ownsEvents = true
	}
	return nil
}
