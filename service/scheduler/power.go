package scheduler

import (
	"time"

	"github.com/viant/nodeos/model/process"
)

// PowerState is a core operating point
type PowerState string

const (
	PowerHighPerformance PowerState = "high-performance"
	PowerBalanced        PowerState = "balanced"
	PowerSaver           PowerState = "power-saver"
	PowerEco             PowerState = "eco"
)

const (
	highLoad = 0.9
	lowLoad  = 0.2
)

// Multiplier returns the relative speed of the state
func (p PowerState) Multiplier() float64 {
	switch p {
	case PowerHighPerformance:
		return 1.0
	case PowerSaver:
		return 0.6
	case PowerEco:
		return 0.4
	default:
		return 0.8
	}
}

// Watts returns the base power draw of the state
func (p PowerState) Watts() float64 {
	switch p {
	case PowerHighPerformance:
		return 100
	case PowerSaver:
		return 60
	case PowerEco:
		return 40
	default:
		return 80
	}
}

// Advise picks the operating point for a category under the given load.
func Advise(category process.Category, load float64) PowerState {
	switch {
	case category.LatencySensitive():
		if load > highLoad {
			return PowerBalanced
		}
		return PowerHighPerformance
	case category.ComputeBound():
		if load > highLoad {
			return PowerSaver
		}
		return PowerBalanced
	}
	switch {
	case load > highLoad:
		return PowerSaver
	case load < lowLoad:
		return PowerEco
	}
	return PowerBalanced
}

// EnergyCost returns the watt-hours spent running for runtime in state
func EnergyCost(state PowerState, runtime time.Duration) float64 {
	return state.Watts() * state.Multiplier() * runtime.Hours()
}
