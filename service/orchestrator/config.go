package orchestrator

import (
	"fmt"
	"time"

	"github.com/viant/nodeos/policy"
)

// Config represents orchestrator configuration
type Config struct {
	// TickInterval is the scheduling period
	TickInterval time.Duration `json:"tickInterval" yaml:"tickInterval"`
	// DefaultBurst is the CPU work of a submission carrying no burst or estimate
	DefaultBurst time.Duration `json:"defaultBurst" yaml:"defaultBurst"`
	// Policy is the fault policy unless the submission context carries one
	Policy policy.Config `json:"policy" yaml:"policy"`
	// StorageCategories emit a storage hint on admission
	StorageCategories []string `json:"storageCategories" yaml:"storageCategories"`
}

// DefaultConfig returns the default orchestrator configuration
func DefaultConfig() Config {
	return Config{
		TickInterval:      10 * time.Millisecond,
		DefaultBurst:      100 * time.Millisecond,
		Policy:            policy.DefaultConfig(),
		StorageCategories: []string{"COMPUTE", "CONSENSUS"},
	}
}

// Validate returns an error describing the first invalid setting.
func (c *Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("orchestrator.tickInterval must be > 0")
	}
	if c.DefaultBurst <= 0 {
		return fmt.Errorf("orchestrator.defaultBurst must be > 0")
	}
	return c.Policy.Validate()
}

func (c *Config) storage(category string) bool {
	for _, candidate := range c.StorageCategories {
		if candidate == category {
			return true
		}
	}
	return false
}
