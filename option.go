package nodeos

import (
	"log/slog"

	"github.com/viant/afs/storage"
	"github.com/viant/nodeos/model/process"
	"github.com/viant/nodeos/progress"
	"github.com/viant/nodeos/service/dao"
	"github.com/viant/nodeos/service/dao/swap"
	"github.com/viant/nodeos/service/event"
	"github.com/viant/nodeos/service/scheduler"
	"github.com/viant/nodeos/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises the node service
type Option func(s *Service)

// WithConfig sets the node configuration
func WithConfig(config *Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithConfigURL loads the node configuration from an afs location
func WithConfigURL(URL string, options ...storage.Option) Option {
	return func(s *Service) {
		s.configURL = URL
		s.metaFsOptions = options
	}
}

// WithLogger sets the logger; otherwise a tint handler at the configured level writes to stderr.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithStrategy overrides the configured scheduling strategy kind
func WithStrategy(kind scheduler.Kind) Option {
	return func(s *Service) {
		s.strategy = kind
	}
}

// WithSwapStore sets the swap area, overriding the configured swap URL
func WithSwapStore(store dao.Service[string, swap.Page]) Option {
	return func(s *Service) {
		s.swapStore = store
	}
}

// WithProcessRegistry sets the process registry
func WithProcessRegistry(registry dao.Service[string, process.Record]) Option {
	return func(s *Service) {
		s.registry = registry
	}
}

// WithEventService sets the lifecycle event service, overriding the configured vendor
func WithEventService(service *event.Service) Option {
	return func(s *Service) {
		s.events = service
	}
}

// WithProgress registers a callback invoked on every counter change
func WithProgress(onChange func(progress.Counters)) Option {
	return func(s *Service) {
		s.onProgress = onChange
	}
}

// WithTracing configures OpenTelemetry tracing for the node. If outputFile
// is empty the stdout exporter is used; otherwise traces are written to the
// supplied file path.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		s.tracingInit = func() error {
			return tracing.Init(serviceName, serviceVersion, outputFile)
		}
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		s.tracingInit = func() error {
			return tracing.InitWithExporter(serviceName, serviceVersion, exporter)
		}
	}
}
