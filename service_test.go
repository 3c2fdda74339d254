package nodeos_test

import (
	"context"
	"embed"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	_ "github.com/viant/afs/embed"
	"github.com/viant/nodeos"
	"github.com/viant/nodeos/internal/logging"
	"github.com/viant/nodeos/model/process"
	"github.com/viant/nodeos/progress"
	"github.com/viant/nodeos/service/memory"
	"github.com/viant/nodeos/service/messaging"
	"github.com/viant/nodeos/service/orchestrator"
	"github.com/viant/nodeos/service/predictor"
	"github.com/viant/nodeos/service/scheduler"
	"go.uber.org/goleak"
	"gopkg.in/yaml.v3"
)

//go:embed testdata/*
var embedFS embed.FS

func TestLoadConfig(t *testing.T) {
	t.Setenv("NODEOS_LOG_LEVEL", "debug")
	config, err := nodeos.LoadConfig(context.Background(), "embed:///testdata/node.yaml", &embedFS)
	require.NoError(t, err)
	assert.Equal(t, "edge-1", config.NodeID)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, 2, config.Processor.Cores)
	assert.Equal(t, scheduler.KindMLFQ, config.Scheduler.Kind)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}, config.Scheduler.Levels)
	assert.Equal(t, 100*time.Millisecond, config.Scheduler.Quantum, "omitted settings keep defaults")
	require.Len(t, config.Memory.Pools, 2)
	assert.True(t, config.Memory.Pools[0].Pinned)
	assert.Equal(t, time.Millisecond, config.Orchestrator.TickInterval)
	assert.Equal(t, "terminate", config.Orchestrator.Policy.Mode)
	assert.Equal(t, predictor.ModeComputeFocused, config.Predictor.Mode)

	_, err = nodeos.LoadConfig(context.Background(), "embed:///testdata/missing.yaml", &embedFS)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(c *nodeos.Config)
		valid  bool
	}{
		{name: "defaults", mutate: func(c *nodeos.Config) {}, valid: true},
		{name: "no cores", mutate: func(c *nodeos.Config) { c.Processor.Cores = 0 }},
		{name: "unknown strategy", mutate: func(c *nodeos.Config) { c.Scheduler.Kind = "lottery" }},
		{name: "no pools", mutate: func(c *nodeos.Config) { c.Memory.Pools = nil }},
		{name: "unknown mode", mutate: func(c *nodeos.Config) { c.Predictor.Mode = "turbo" }},
		{name: "unknown vendor", mutate: func(c *nodeos.Config) { c.Events.Vendor = "kafka" }},
		{name: "memory events", mutate: func(c *nodeos.Config) { c.Events.Vendor = messaging.VendorMemory }, valid: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := nodeos.DefaultConfig()
			tc.mutate(config)
			if tc.valid {
				assert.NoError(t, config.Validate())
				return
			}
			assert.Error(t, config.Validate())
		})
	}
}

func testConfig() *nodeos.Config {
	config := nodeos.DefaultConfig()
	config.Processor.Cores = 2
	config.Processor.TimeScale = 0
	config.Orchestrator.TickInterval = time.Millisecond
	return config
}

func TestRuntime_EndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t)
	var progressed atomic.Int64
	config := testConfig()
	config.Swap.URL = "mem://localhost/nodeos/" + t.Name() + "/swap"
	config.Events.Vendor = messaging.VendorMemory
	srv, err := nodeos.New(
		nodeos.WithConfig(config),
		nodeos.WithLogger(logging.Discard()),
		nodeos.WithStrategy(scheduler.KindPredictive),
		nodeos.WithProgress(func(counters progress.Counters) { progressed.Add(1) }),
	)
	require.NoError(t, err)
	runtime := srv.Runtime()
	require.NotNil(t, runtime.Events())
	ctx := context.Background()
	require.NoError(t, runtime.Start(ctx))

	id, err := runtime.SubmitRequest(ctx, map[string]interface{}{
		"Name":     "validator",
		"Category": "CONSENSUS",
		"Priority": 60,
		"Memory":   3 * 4096,
	})
	require.NoError(t, err)
	other, err := runtime.Submit(ctx, &orchestrator.Request{Category: process.CategoryInteractive, Memory: 4096, Burst: 5 * time.Millisecond})
	require.NoError(t, err)
	_, err = runtime.Submit(ctx, &orchestrator.Request{Category: process.CategoryUser, Memory: 1 << 30})
	assert.ErrorIs(t, err, memory.ErrOutOfMemory)

	assert.Eventually(t, func() bool {
		records, err := runtime.Processes(ctx, process.StateTerminated)
		return err == nil && len(records) == 2
	}, 5*time.Second, 5*time.Millisecond)
	assert.False(t, runtime.Terminate(ctx, id))
	assert.False(t, runtime.Suspend(ctx, other))
	assert.False(t, runtime.Resume(ctx, other))

	record, err := runtime.Process(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, process.OutcomeCompleted, record.Outcome)
	assert.Equal(t, 3, record.Pages)
	assert.Greater(t, record.Predicted, time.Duration(0))

	snapshot := runtime.Snapshot(ctx)
	assert.Equal(t, scheduler.KindPredictive, snapshot.Strategy)
	assert.Equal(t, 3, snapshot.Progress.Submitted)
	assert.Equal(t, 1, snapshot.Progress.Rejected)
	assert.Equal(t, 2, snapshot.Progress.Completed)
	assert.Equal(t, 2, snapshot.Predictor.Predictions)
	assert.Zero(t, snapshot.Memory.UsedFrames)
	assert.Greater(t, progressed.Load(), int64(0))

	require.NoError(t, runtime.ChangeStrategy(scheduler.KindFIFO))
	require.NoError(t, runtime.SetMode(predictor.ModePowerSaving))
	assert.Error(t, runtime.SetMode("turbo"))
	assert.Equal(t, predictor.ModePowerSaving, runtime.Predictor().Mode())
	report := runtime.Defragment(ctx)
	assert.Zero(t, report.After)

	fs := afs.New()
	jsonURL := "mem://localhost/nodeos/" + t.Name() + "/snapshot.json"
	require.NoError(t, runtime.Export(ctx, jsonURL))
	data, err := fs.DownloadWithURL(ctx, jsonURL)
	require.NoError(t, err)
	exported := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(data, &exported))
	assert.Equal(t, srv.Runtime().Orchestrator().NodeID(), exported["nodeId"])
	assert.Len(t, exported["processes"], 2)

	yamlURL := "mem://localhost/nodeos/" + t.Name() + "/snapshot.yaml"
	require.NoError(t, runtime.Export(ctx, yamlURL))
	data, err = fs.DownloadWithURL(ctx, yamlURL)
	require.NoError(t, err)
	exported = map[string]interface{}{}
	require.NoError(t, yaml.Unmarshal(data, &exported))
	assert.Contains(t, exported, "memory")

	require.NoError(t, runtime.Shutdown(ctx))
}

func TestNew_InvalidConfig(t *testing.T) {
	config := testConfig()
	config.Scheduler.Kind = "lottery"
	_, err := nodeos.New(nodeos.WithConfig(config), nodeos.WithLogger(logging.Discard()))
	assert.Error(t, err)

	_, err = nodeos.New(nodeos.WithConfigURL("embed:///testdata/missing.yaml", &embedFS))
	assert.Error(t, err)
}
