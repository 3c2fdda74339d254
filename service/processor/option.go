package processor

import (
	"log/slog"
)

type Option func(*Service)

// WithAccessor sets the memory touched by every slice
func WithAccessor(accessor Accessor) Option {
	return func(s *Service) {
		s.accessor = accessor
	}
}

// WithCores sets the number of core workers
func WithCores(count int) Option {
	return func(s *Service) {
		s.config.Cores = count
	}
}

// WithConfig sets the configuration for the service
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}
