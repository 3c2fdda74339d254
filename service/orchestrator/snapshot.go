package orchestrator

import (
	"context"
	"time"

	"github.com/viant/nodeos/internal/clock"
	"github.com/viant/nodeos/model/process"
	"github.com/viant/nodeos/progress"
	"github.com/viant/nodeos/service/memory"
	"github.com/viant/nodeos/service/predictor"
	"github.com/viant/nodeos/service/scheduler"
)

// CoreStats describes one core
type CoreStats struct {
	ID       int                  `json:"id"`
	Process  string               `json:"process,omitempty"`
	Draining bool                 `json:"draining,omitempty"`
	Load     float64              `json:"load"`
	Power    scheduler.PowerState `json:"power"`
}

// Snapshot is a read-only view of the node
type Snapshot struct {
	NodeID     string                `json:"nodeId"`
	Time       time.Time             `json:"time"`
	Strategy   scheduler.Kind        `json:"strategy"`
	Scheduler  scheduler.Stats       `json:"scheduler"`
	Cores      []CoreStats           `json:"cores"`
	SystemLoad float64               `json:"systemLoad"`
	Energy     float64               `json:"energy"`
	States     map[process.State]int `json:"states"`
	Processes  []*process.Record     `json:"processes"`
	Memory     *memory.Stats         `json:"memory"`
	Predictor  predictor.Stats       `json:"predictor"`
	Progress   progress.Counters     `json:"progress"`
}

// Snapshot copies the node state; the scheduling lock is held only while
// records and cores are copied.
func (s *Service) Snapshot(ctx context.Context) *Snapshot {
	ret := &Snapshot{NodeID: s.nodeID, Time: clock.Now(), States: make(map[process.State]int)}
	s.mu.Lock()
	ret.Strategy = s.strategy.Kind()
	ret.Scheduler = scheduler.StatsOf(s.strategy)
	ret.SystemLoad = scheduler.SystemLoad(s.cores)
	ret.Energy = s.energy
	for i := range s.cores {
		core := &s.cores[i]
		coreStats := CoreStats{ID: core.ID, Draining: core.Draining, Load: core.Load, Power: s.power[i]}
		if core.Running != nil {
			coreStats.Process = core.Running.ID
		}
		ret.Cores = append(ret.Cores, coreStats)
	}
	records, err := s.registry.List(ctx)
	if err != nil {
		s.logger.Warn("failed to list processes", "error", err)
	}
	for _, record := range records {
		ret.States[record.State]++
		ret.Processes = append(ret.Processes, record.Clone())
	}
	s.mu.Unlock()

	ret.Memory = s.memory.Stats()
	ret.Predictor = s.predictor.Stats()
	ret.Progress = s.tracker.Snapshot()
	return ret
}
