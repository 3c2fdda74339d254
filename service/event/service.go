package event

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"github.com/viant/nodeos/internal/logging"
	"github.com/viant/nodeos/service/messaging"
	"github.com/viant/nodeos/service/messaging/fs"
	"github.com/viant/nodeos/service/messaging/memory"
)

// Service hands out one typed publisher per event payload type, all backed
// by queues of the configured vendor.
type Service struct {
	publisher         *Publisher[any]
	listener          *Listener[any]
	typedPublishers   map[reflect.Type]any
	typedListener     map[reflect.Type]stopper
	closers           []func()
	mux               *sync.RWMutex
	queueVendor       messaging.Vendor
	fsNewQueueConfig  func(name string) fs.Config
	memNewQueueConfig func(name string) memory.Config
	logger            *slog.Logger
}

type stopper interface{ Stop() }

// SetListener registers a handler receiving every event as Event[any].
func (s *Service) SetListener(handler func(*Event[any])) {
	listener := NewListener[any](s.publisher, handler, s.logger)
	s.mux.Lock()
	previous := s.listener
	s.listener = listener
	s.mux.Unlock()
	if previous != nil {
		previous.Stop()
	}
	listener.Start()
}

func (s *Service) mirror(ctx context.Context, event *Event[any]) {
	s.mux.RLock()
	active := s.listener != nil
	s.mux.RUnlock()
	if !active {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Debug("event not mirrored", "type", event.Context.EventType, "error", err)
	}
}

func New(queueVendor messaging.Vendor, opts ...Option) (*Service, error) {
	ret := &Service{
		queueVendor:     queueVendor,
		typedPublishers: make(map[reflect.Type]any),
		typedListener:   make(map[reflect.Type]stopper),
		mux:             &sync.RWMutex{},
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.logger == nil {
		ret.logger = logging.Discard()
	}
	switch queueVendor {
	case messaging.VendorFS:
		if ret.fsNewQueueConfig == nil {
			baseURL := fs.DefaultConfig().BaseURL
			ret.fsNewQueueConfig = func(name string) fs.Config {
				config := fs.DefaultConfig()
				config.BaseURL = url.Join(baseURL, name)
				return config
			}
		}
	case messaging.VendorMemory:
		if ret.memNewQueueConfig == nil {
			ret.memNewQueueConfig = func(string) memory.Config {
				config := memory.DefaultConfig()
				config.Blocking = false
				return config
			}
		}
	default:
		return nil, fmt.Errorf("unsupported queue vendor: %s", queueVendor)
	}

	queue, err := QueueOf[Event[any]](ret, "any")
	if err != nil {
		return nil, err
	}
	ret.publisher = NewPublisher[any](queue)
	return ret, nil
}

// QueueOf creates a queue of the service vendor
func QueueOf[T any](s *Service, name string) (messaging.Queue[T], error) {
	switch s.queueVendor {
	case messaging.VendorFS:
		return fs.NewQueue[T](afs.New(), s.fsNewQueueConfig(name))
	case messaging.VendorMemory:
		queue := memory.NewQueue[T](s.memNewQueueConfig(name))
		s.closers = append(s.closers, queue.Close)
		return queue, nil
	}
	return nil, fmt.Errorf("unsupported queue vendor: %s", s.queueVendor)
}

func keyOf[T any]() reflect.Type {
	var t T
	rType := reflect.TypeOf(t)
	if rType.Kind() == reflect.Ptr {
		rType = rType.Elem()
	}
	return rType
}

// queueName turns a Go type name into a storage friendly name
func queueName(rType reflect.Type) string {
	return strings.ToLower(strings.ReplaceAll(rType.String(), ".", "-"))
}

// SetListenerOf registers the handler of events with payload T, replacing
// any previous one.
func SetListenerOf[T any](s *Service, handler func(*Event[T])) error {
	key := keyOf[T]()
	publisher, err := PublisherOf[T](s)
	if err != nil {
		return err
	}
	listener := NewListener[T](publisher, handler, s.logger)
	s.mux.Lock()
	previous, ok := s.typedListener[key]
	s.typedListener[key] = listener
	s.mux.Unlock()
	if ok {
		previous.Stop()
	}
	listener.Start()
	return nil
}

// PublisherOf returns a publisher for the provided type
func PublisherOf[T any](s *Service) (*Publisher[T], error) {
	key := keyOf[T]()
	s.mux.RLock()
	ret, ok := s.typedPublishers[key]
	s.mux.RUnlock()
	if ok {
		return ret.(*Publisher[T]), nil
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if ret, ok = s.typedPublishers[key]; ok {
		return ret.(*Publisher[T]), nil
	}
	queue, err := QueueOf[Event[T]](s, queueName(key))
	if err != nil {
		return nil, err
	}
	publisher := NewPublisher[T](queue)
	publisher.mirror = s.mirror
	s.typedPublishers[key] = publisher
	return publisher, nil
}

// Close stops every listener and closes the memory queues.
func (s *Service) Close() {
	s.mux.Lock()
	var listeners []stopper
	if s.listener != nil {
		listeners = append(listeners, s.listener)
		s.listener = nil
	}
	for key, listener := range s.typedListener {
		listeners = append(listeners, listener)
		delete(s.typedListener, key)
	}
	closers := s.closers
	s.closers = nil
	s.mux.Unlock()

	for _, listener := range listeners {
		listener.Stop()
	}
	for _, closeFn := range closers {
		closeFn()
	}
}
