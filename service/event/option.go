package event

import (
	"log/slog"

	"github.com/viant/nodeos/service/messaging/fs"
	"github.com/viant/nodeos/service/messaging/memory"
)

type Option func(s *Service)

// WithFsQueueConfig sets the file system queue configuration per event type
func WithFsQueueConfig(newConfig func(name string) fs.Config) Option {
	return func(s *Service) {
		s.fsNewQueueConfig = newConfig
	}
}

// WithMemoryQueueConfig sets the memory queue configuration per event type
func WithMemoryQueueConfig(newConfig func(name string) memory.Config) Option {
	return func(s *Service) {
		s.memNewQueueConfig = newConfig
	}
}

// WithLogger sets the logger used by listeners
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}
