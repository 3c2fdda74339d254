package predictor

import (
	"fmt"
	"strings"

	"github.com/viant/nodeos/model/process"
)

// Mode is the optimisation goal driving the learning rate
type Mode string

const (
	ModeBalanced         Mode = "balanced"
	ModePerformance      Mode = "performance"
	ModePowerSaving      Mode = "power-saving"
	ModeComputeFocused   Mode = "compute-focused"
	ModeConsensusFocused Mode = "consensus-focused"
)

const (
	minLearningRate = 0.05
	maxLearningRate = 0.3
)

// LearningRate returns the initial EMA learning rate of the mode
func (m Mode) LearningRate() float64 {
	switch m {
	case ModePerformance:
		return 0.2
	case ModeComputeFocused, ModeConsensusFocused:
		return 0.15
	default:
		return 0.1
	}
}

// Focus returns the category favoured by a focused mode, if any.
func (m Mode) Focus() (process.Category, bool) {
	switch m {
	case ModeComputeFocused:
		return process.CategoryCompute, true
	case ModeConsensusFocused:
		return process.CategoryConsensus, true
	}
	return "", false
}

// ParseMode resolves a mode name; empty means balanced.
func ParseMode(name string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(name))) {
	case "", ModeBalanced:
		return ModeBalanced, nil
	case ModePerformance:
		return ModePerformance, nil
	case ModePowerSaving:
		return ModePowerSaving, nil
	case ModeComputeFocused:
		return ModeComputeFocused, nil
	case ModeConsensusFocused:
		return ModeConsensusFocused, nil
	}
	return "", fmt.Errorf("predictor: unknown mode %q", name)
}

// multiplier scales a caller supplied estimate before any history exists.
func multiplier(category process.Category) float64 {
	switch category {
	case process.CategoryCompute:
		return 1.5
	case process.CategoryConsensus:
		return 2.0
	case process.CategoryInteractive:
		return 0.8
	case process.CategoryNetwork:
		return 0.6
	case process.CategorySystem:
		return 0.4
	default:
		return 1.0
	}
}
