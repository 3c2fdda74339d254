// Package predictor learns per-category runtime and success statistics with
// exponential moving averages and turns them into runtime predictions.
package predictor

import (
	"math"
	"sync"
	"time"

	"github.com/viant/nodeos/internal/clock"
	"github.com/viant/nodeos/model/process"
)

const (
	// accurateWithin is the relative error below which a prediction counts as accurate.
	accurateWithin = 0.3
	// AdaptWindow is the number of predictions between learning-rate adaptations.
	AdaptWindow = 10
)

// Pattern holds the learned statistics of one category
type Pattern struct {
	Runtime     time.Duration `json:"runtime"`
	SuccessRate float64       `json:"successRate"`
	Samples     int           `json:"samples"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Stats is a read-only view of the predictor state
type Stats struct {
	Mode         Mode                          `json:"mode"`
	LearningRate float64                       `json:"learningRate"`
	Predictions  int                           `json:"predictions"`
	Accurate     int                           `json:"accurate"`
	Accuracy     float64                       `json:"accuracy"`
	Adaptations  int                           `json:"adaptations"`
	Patterns     map[process.Category]Pattern `json:"patterns"`
}

// Service is safe for concurrent use
type Service struct {
	mu           sync.RWMutex
	mode         Mode
	learningRate float64
	patterns     map[process.Category]*Pattern
	predictions  int
	accurate     int
	window       int
	windowHits   int
	adaptations  int
}

// New creates a predictor for the supplied mode
func New(mode Mode) *Service {
	if mode == "" {
		mode = ModeBalanced
	}
	return &Service{
		mode:         mode,
		learningRate: mode.LearningRate(),
		patterns:     make(map[process.Category]*Pattern),
	}
}

// Mode returns the current optimisation mode
func (s *Service) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMode switches the mode and resets the learning rate to the mode default.
func (s *Service) SetMode(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	s.learningRate = mode.LearningRate()
}

// LearningRate returns the current EMA learning rate
func (s *Service) LearningRate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.learningRate
}

// PredictRuntime estimates the CPU runtime of the next process of category.
func (s *Service) PredictRuntime(category process.Category, base time.Duration) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pattern, ok := s.patterns[category]
	if !ok || pattern.Samples == 0 {
		return time.Duration(float64(base) * multiplier(category))
	}
	factor := 1 + (1-pattern.SuccessRate)*0.5
	return time.Duration(float64(pattern.Runtime) * factor)
}

// SuccessRate returns the learned success ratio and whether history exists.
func (s *Service) SuccessRate(category process.Category) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pattern, ok := s.patterns[category]
	if !ok || pattern.Samples == 0 {
		return 0, false
	}
	return pattern.SuccessRate, true
}

// Update folds an observation into the category pattern.  The first sample
// seeds both averages directly.
func (s *Service) Update(category process.Category, observed time.Duration, succeeded bool) {
	signal := 0.0
	if succeeded {
		signal = 1.0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pattern, ok := s.patterns[category]
	if !ok {
		pattern = &Pattern{}
		s.patterns[category] = pattern
	}
	if pattern.Samples == 0 {
		pattern.Runtime = observed
		pattern.SuccessRate = signal
	} else {
		lr := s.learningRate
		pattern.Runtime = time.Duration(lr*float64(observed) + (1-lr)*float64(pattern.Runtime))
		pattern.SuccessRate = lr*signal + (1-lr)*pattern.SuccessRate
	}
	pattern.Samples++
	pattern.UpdatedAt = clock.Now()
}

// RecordPrediction scores a past prediction against the observed runtime and
// adapts the learning rate once per AdaptWindow predictions.  It returns
// whether the prediction was accurate.
func (s *Service) RecordPrediction(predicted, actual time.Duration) bool {
	denominator := math.Max(float64(actual), float64(100*time.Millisecond))
	accurate := math.Abs(float64(predicted-actual))/denominator < accurateWithin

	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictions++
	s.window++
	if accurate {
		s.accurate++
		s.windowHits++
	}
	if s.window >= AdaptWindow {
		s.adapt(float64(s.windowHits) / float64(s.window))
		s.window, s.windowHits = 0, 0
	}
	return accurate
}

// adapt speeds learning up when predictions are poor and slows it down when
// they are consistently good.
func (s *Service) adapt(accuracy float64) {
	switch {
	case accuracy < 0.7:
		s.learningRate = math.Min(maxLearningRate, s.learningRate*1.2)
	case accuracy > 0.9:
		s.learningRate = math.Max(minLearningRate, s.learningRate*0.9)
	default:
		return
	}
	s.adaptations++
}

// Stats returns a copy of the predictor state
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := Stats{
		Mode:         s.mode,
		LearningRate: s.learningRate,
		Predictions:  s.predictions,
		Accurate:     s.accurate,
		Adaptations:  s.adaptations,
		Patterns:     make(map[process.Category]Pattern, len(s.patterns)),
	}
	if s.predictions > 0 {
		ret.Accuracy = float64(s.accurate) / float64(s.predictions)
	}
	for category, pattern := range s.patterns {
		ret.Patterns[category] = *pattern
	}
	return ret
}
