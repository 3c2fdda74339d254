package orchestrator

import (
	"log/slog"

	"github.com/viant/nodeos/model/process"
	"github.com/viant/nodeos/progress"
	"github.com/viant/nodeos/service/dao"
	"github.com/viant/nodeos/service/event"
	"github.com/viant/nodeos/service/scheduler"
)

type Option func(*Service)

// WithConfig sets the orchestrator configuration
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithScheduler sets the initial scheduling strategy configuration
func WithScheduler(config scheduler.Config) Option {
	return func(s *Service) {
		s.schedulerConfig = config
	}
}

// WithRegistry sets the process registry
func WithRegistry(registry dao.Service[string, process.Record]) Option {
	return func(s *Service) {
		s.registry = registry
	}
}

// WithEventService publishes lifecycle events
func WithEventService(events *event.Service) Option {
	return func(s *Service) {
		s.events = events
	}
}

// WithTracker sets the progress tracker
func WithTracker(tracker *progress.Tracker) Option {
	return func(s *Service) {
		s.tracker = tracker
	}
}

// WithNodeID sets the node identifier reported in snapshots and events
func WithNodeID(id string) Option {
	return func(s *Service) {
		s.nodeID = id
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}
