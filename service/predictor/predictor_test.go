package predictor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/nodeos/model/process"
)

func TestService_PredictRuntime(t *testing.T) {
	var testCases = []struct {
		description string
		category    process.Category
		history     []time.Duration
		failures    int
		base        time.Duration
		expect      time.Duration
	}{
		{description: "compute without history", category: process.CategoryCompute, base: 100 * time.Millisecond, expect: 150 * time.Millisecond},
		{description: "consensus without history", category: process.CategoryConsensus, base: 100 * time.Millisecond, expect: 200 * time.Millisecond},
		{description: "interactive without history", category: process.CategoryInteractive, base: 100 * time.Millisecond, expect: 80 * time.Millisecond},
		{description: "network without history", category: process.CategoryNetwork, base: 100 * time.Millisecond, expect: 60 * time.Millisecond},
		{description: "system without history", category: process.CategorySystem, base: 100 * time.Millisecond, expect: 40 * time.Millisecond},
		{description: "user without history", category: process.CategoryUser, base: 100 * time.Millisecond, expect: 100 * time.Millisecond},
		{description: "perfect history", category: process.CategoryCompute, history: []time.Duration{200 * time.Millisecond}, base: time.Second, expect: 200 * time.Millisecond},
		{description: "failed history inflates", category: process.CategoryCompute, history: []time.Duration{200 * time.Millisecond}, failures: 1, base: time.Second, expect: 300 * time.Millisecond},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			srv := New(ModeBalanced)
			for i, observed := range tc.history {
				srv.Update(tc.category, observed, i >= tc.failures)
			}
			assert.Equal(t, tc.expect, srv.PredictRuntime(tc.category, tc.base))
		})
	}
}

func TestService_Update(t *testing.T) {
	srv := New(ModePerformance)
	require.InDelta(t, 0.2, srv.LearningRate(), 1e-9)

	_, ok := srv.SuccessRate(process.CategoryNetwork)
	assert.False(t, ok)

	srv.Update(process.CategoryNetwork, 100*time.Millisecond, true)
	srv.Update(process.CategoryNetwork, 200*time.Millisecond, false)

	rate, ok := srv.SuccessRate(process.CategoryNetwork)
	require.True(t, ok)
	assert.InDelta(t, 0.8, rate, 1e-9)

	stats := srv.Stats()
	pattern := stats.Patterns[process.CategoryNetwork]
	assert.Equal(t, 2, pattern.Samples)
	assert.Equal(t, 120*time.Millisecond, pattern.Runtime)
}

func TestService_RecordPrediction(t *testing.T) {
	t.Run("poor accuracy speeds learning up", func(t *testing.T) {
		srv := New(ModeBalanced)
		for i := 0; i < AdaptWindow; i++ {
			assert.False(t, srv.RecordPrediction(time.Second, 200*time.Millisecond))
		}
		assert.InDelta(t, 0.12, srv.LearningRate(), 1e-9)
		for i := 0; i < 10*AdaptWindow; i++ {
			srv.RecordPrediction(time.Second, 200*time.Millisecond)
		}
		assert.InDelta(t, maxLearningRate, srv.LearningRate(), 1e-9)
	})

	t.Run("good accuracy slows learning down", func(t *testing.T) {
		srv := New(ModeBalanced)
		for i := 0; i < 30*AdaptWindow; i++ {
			assert.True(t, srv.RecordPrediction(105*time.Millisecond, 100*time.Millisecond))
		}
		assert.InDelta(t, minLearningRate, srv.LearningRate(), 1e-9)
		stats := srv.Stats()
		assert.Equal(t, 1.0, stats.Accuracy)
		assert.Greater(t, stats.Adaptations, 0)
	})
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("Compute-Focused")
	require.NoError(t, err)
	assert.Equal(t, ModeComputeFocused, mode)
	focus, ok := mode.Focus()
	assert.True(t, ok)
	assert.Equal(t, process.CategoryCompute, focus)

	mode, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeBalanced, mode)

	_, err = ParseMode("turbo")
	assert.Error(t, err)
}
