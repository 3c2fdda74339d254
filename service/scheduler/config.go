package scheduler

import (
	"fmt"
	"time"

	"github.com/viant/nodeos/model/process"
)

// PredictiveConfig tunes the predictive score
type PredictiveConfig struct {
	// LoadPenalty is subtracted per unit of core load
	LoadPenalty float64 `json:"loadPenalty" yaml:"loadPenalty"`
	// FocusBonus is added for the category favoured by the predictor mode
	FocusBonus float64 `json:"focusBonus" yaml:"focusBonus"`
	// BaseRuntime is the runtime estimate used when a record carries none
	BaseRuntime time.Duration `json:"baseRuntime" yaml:"baseRuntime"`
	// BasePriority overrides the per-category base priority
	BasePriority map[process.Category]int `json:"basePriority,omitempty" yaml:"basePriority,omitempty"`
}

// Config represents scheduler configuration
type Config struct {
	Kind Kind `json:"kind" yaml:"kind"`
	// Quantum is the round robin time slice
	Quantum time.Duration `json:"quantum" yaml:"quantum"`
	// Preemptive lets the priority policy evict a lower priority record
	Preemptive bool `json:"preemptive" yaml:"preemptive"`
	// Levels holds the MLFQ quantum of each level, highest priority first
	Levels         []time.Duration  `json:"levels" yaml:"levels"`
	AgingThreshold time.Duration    `json:"agingThreshold" yaml:"agingThreshold"`
	Predictive     PredictiveConfig `json:"predictive" yaml:"predictive"`
}

// DefaultConfig returns the default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Kind:           KindRoundRobin,
		Quantum:        100 * time.Millisecond,
		Levels:         []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond},
		AgingThreshold: time.Second,
		Predictive: PredictiveConfig{
			LoadPenalty: 50,
			FocusBonus:  20,
			BaseRuntime: time.Second,
		},
	}
}

// Validate returns an error describing the first invalid setting.
func (c *Config) Validate() error {
	kind, err := ParseKind(string(c.Kind))
	if err != nil {
		return err
	}
	switch kind {
	case KindRoundRobin:
		if c.Quantum <= 0 {
			return fmt.Errorf("scheduler.quantum must be > 0")
		}
	case KindMLFQ:
		if len(c.Levels) == 0 {
			return fmt.Errorf("scheduler.levels must not be empty")
		}
		for i, quantum := range c.Levels {
			if quantum <= 0 {
				return fmt.Errorf("scheduler.levels[%d] must be > 0", i)
			}
		}
		if c.AgingThreshold <= 0 {
			return fmt.Errorf("scheduler.agingThreshold must be > 0")
		}
	case KindPredictive:
		if c.Predictive.LoadPenalty < 0 {
			return fmt.Errorf("scheduler.predictive.loadPenalty must be >= 0")
		}
		for category, priority := range c.Predictive.BasePriority {
			if priority < 1 || priority > 100 {
				return fmt.Errorf("scheduler.predictive.basePriority[%s] must be in [1,100]", category)
			}
		}
	}
	return nil
}
