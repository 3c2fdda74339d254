package nodeos

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/nodeos/service/memory"
	"github.com/viant/nodeos/service/messaging"
	"github.com/viant/nodeos/service/meta"
	"github.com/viant/nodeos/service/orchestrator"
	"github.com/viant/nodeos/service/predictor"
	"github.com/viant/nodeos/service/processor"
	"github.com/viant/nodeos/service/scheduler"
)

// Config is a serialisable representation of the node configuration.  It
// can be populated from YAML or JSON; LoadConfig starts from DefaultConfig so
// omitted sections keep their package defaults.
type Config struct {
	NodeID       string              `json:"nodeId,omitempty" yaml:"nodeId,omitempty"`
	LogLevel     string              `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	Processor    processor.Config    `json:"processor" yaml:"processor"`
	Scheduler    scheduler.Config    `json:"scheduler" yaml:"scheduler"`
	Memory       memory.Config       `json:"memory" yaml:"memory"`
	Orchestrator orchestrator.Config `json:"orchestrator" yaml:"orchestrator"`
	Predictor    PredictorConfig     `json:"predictor" yaml:"predictor"`
	Swap         SwapConfig          `json:"swap" yaml:"swap"`
	Events       EventsConfig        `json:"events" yaml:"events"`
}

type PredictorConfig struct {
	Mode predictor.Mode `json:"mode" yaml:"mode"`
}

// SwapConfig selects the swap area; an empty URL keeps pages in memory
type SwapConfig struct {
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// EventsConfig enables lifecycle events; an empty vendor disables them
type EventsConfig struct {
	Vendor messaging.Vendor `json:"vendor,omitempty" yaml:"vendor,omitempty"`
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:     "info",
		Processor:    processor.DefaultConfig(),
		Scheduler:    scheduler.DefaultConfig(),
		Memory:       memory.DefaultConfig(),
		Orchestrator: orchestrator.DefaultConfig(),
		Predictor:    PredictorConfig{Mode: predictor.ModeBalanced},
	}
}

// Validate returns an error describing the first invalid setting or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if err := c.Processor.Validate(); err != nil {
		return err
	}
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}
	if err := c.Memory.Validate(); err != nil {
		return err
	}
	if err := c.Orchestrator.Validate(); err != nil {
		return err
	}
	if _, err := predictor.ParseMode(string(c.Predictor.Mode)); err != nil {
		return err
	}
	switch c.Events.Vendor {
	case "", messaging.VendorMemory, messaging.VendorFS:
	default:
		return fmt.Errorf("events.vendor %q is not supported", c.Events.Vendor)
	}
	return nil
}

// LoadConfig reads a YAML or JSON node configuration from any afs location,
// expanding ${env.KEY} expressions.
func LoadConfig(ctx context.Context, URL string, options ...storage.Option) (*Config, error) {
	ret := DefaultConfig()
	if err := meta.New(afs.New(), "", options...).Load(ctx, URL, ret); err != nil {
		return nil, err
	}
	if err := ret.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", URL, err)
	}
	return ret, nil
}
