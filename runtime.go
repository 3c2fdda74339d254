package nodeos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/nodeos/model/process"
	"github.com/viant/nodeos/service/event"
	"github.com/viant/nodeos/service/memory"
	"github.com/viant/nodeos/service/orchestrator"
	"github.com/viant/nodeos/service/predictor"
	"github.com/viant/nodeos/service/scheduler"
	"github.com/viant/nodeos/tracing"
	"gopkg.in/yaml.v3"
)

// Runtime is the public control surface of a running node
type Runtime struct {
	orchestrator *orchestrator.Service
	memory       *memory.Manager
	predictor    *predictor.Service
	events       *event.Service
	ownsEvents   bool
	logger       *slog.Logger
}

// Start launches the core workers and the scheduling loop
func (r *Runtime) Start(ctx context.Context) error {
	return r.orchestrator.Start(ctx)
}

// Shutdown stops the node, closes an owned event service and flushes tracing
func (r *Runtime) Shutdown(ctx context.Context) error {
	err := r.orchestrator.Shutdown(ctx)
	if r.ownsEvents && r.events != nil {
		r.events.Close()
	}
	if tErr := tracing.Shutdown(ctx); tErr != nil && err == nil {
		err = tErr
	}
	return err
}

// Orchestrator returns the process orchestrator
func (r *Runtime) Orchestrator() *orchestrator.Service { return r.orchestrator }

// Memory returns the memory manager
func (r *Runtime) Memory() *memory.Manager { return r.memory }

// Predictor returns the performance predictor
func (r *Runtime) Predictor() *predictor.Service { return r.predictor }

// Events returns the lifecycle event service, nil when events are disabled
func (r *Runtime) Events() *event.Service { return r.events }

// Submit admits a process, returning its id
func (r *Runtime) Submit(ctx context.Context, request *orchestrator.Request) (string, error) {
	return r.orchestrator.Submit(ctx, request)
}

// SubmitRequest decodes a generic payload, e.g. JSON decoded into a map, and submits it
func (r *Runtime) SubmitRequest(ctx context.Context, payload interface{}) (string, error) {
	request, err := orchestrator.DecodeRequest(payload)
	if err != nil {
		return "", err
	}
	return r.orchestrator.Submit(ctx, request)
}

// Terminate ends a live process
func (r *Runtime) Terminate(ctx context.Context, id string) bool {
	return r.orchestrator.Terminate(ctx, id)
}

// Suspend parks a process
func (r *Runtime) Suspend(ctx context.Context, id string) bool {
	return r.orchestrator.Suspend(ctx, id)
}

// Resume returns a suspended process to the ready set
func (r *Runtime) Resume(ctx context.Context, id string) bool {
	return r.orchestrator.Resume(ctx, id)
}

// Process returns a copy of a record
func (r *Runtime) Process(ctx context.Context, id string) (*process.Record, error) {
	return r.orchestrator.Process(ctx, id)
}

// Processes lists copies of the records in any of states
func (r *Runtime) Processes(ctx context.Context, states ...process.State) ([]*process.Record, error) {
	return r.orchestrator.Processes(ctx, states...)
}

// ChangeStrategy swaps the scheduling strategy
func (r *Runtime) ChangeStrategy(kind scheduler.Kind) error {
	return r.orchestrator.ChangeStrategy(kind)
}

// SetMode switches the predictor optimisation mode
func (r *Runtime) SetMode(mode predictor.Mode) error {
	mode, err := predictor.ParseMode(string(mode))
	if err != nil {
		return err
	}
	r.predictor.SetMode(mode)
	return nil
}

// Defragment compacts the memory pools
func (r *Runtime) Defragment(ctx context.Context) *memory.DefragReport {
	return r.orchestrator.Defragment(ctx)
}

// Snapshot returns a read-only view of the node
func (r *Runtime) Snapshot(ctx context.Context) *orchestrator.Snapshot {
	return r.orchestrator.Snapshot(ctx)
}

// Export writes a snapshot to URL, as YAML for .yaml/.yml locations and JSON otherwise.
func (r *Runtime) Export(ctx context.Context, URL string) error {
	snapshot := r.Snapshot(ctx)
	var data []byte
	var err error
	switch {
	case strings.HasSuffix(URL, ".yaml"), strings.HasSuffix(URL, ".yml"):
		data, err = yaml.Marshal(snapshot)
	default:
		data, err = json.MarshalIndent(snapshot, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	fs := afs.New()
	if err = fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to export snapshot to %s: %w", URL, err)
	}
	r.logger.Info("snapshot exported", "url", URL, "processes", len(snapshot.Processes))
	return nil
}
