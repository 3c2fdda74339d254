package orchestrator

import (
	"fmt"
	"time"

	"github.com/viant/nodeos/model/process"
	"github.com/viant/structology/conv"
)

// Request is an inbound process submission
type Request struct {
	Name     string           `json:"name,omitempty" yaml:"name,omitempty"`
	Category process.Category `json:"category" yaml:"category"`
	Priority int              `json:"priority" yaml:"priority"`
	// Memory is the requested size in bytes
	Memory int64 `json:"memory" yaml:"memory"`
	Pinned bool  `json:"pinned,omitempty" yaml:"pinned,omitempty"`
	// Burst is the simulated CPU work; zero falls back to Estimate, then the configured default
	Burst    time.Duration `json:"burst,omitempty" yaml:"burst,omitempty"`
	Estimate time.Duration `json:"estimate,omitempty" yaml:"estimate,omitempty"`
	Parent   string        `json:"parent,omitempty" yaml:"parent,omitempty"`
}

var converter = newConverter()

func newConverter() *conv.Converter {
	options := conv.DefaultOptions()
	options.IgnoreUnmapped = true
	return conv.NewConverter(options)
}

// DecodeRequest converts a generic payload, e.g. decoded JSON, into a Request
func DecodeRequest(input interface{}) (*Request, error) {
	ret := &Request{}
	if err := converter.Convert(input, ret); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return ret, nil
}

// Init normalises the category and fills the name
func (r *Request) Init() error {
	category, err := process.ParseCategory(string(r.Category))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	r.Category = category
	if r.Name == "" {
		r.Name = string(category)
	}
	return nil
}

// Validate checks the request
func (r *Request) Validate() error {
	if r.Memory <= 0 {
		return fmt.Errorf("%w: memory must be > 0", ErrInvalidRequest)
	}
	if r.Priority < 0 {
		return fmt.Errorf("%w: priority must be >= 0", ErrInvalidRequest)
	}
	if r.Burst < 0 || r.Estimate < 0 {
		return fmt.Errorf("%w: burst and estimate must not be negative", ErrInvalidRequest)
	}
	return nil
}
