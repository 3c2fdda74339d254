package scheduler

import (
	"time"

	"github.com/viant/nodeos/model/process"
)

// DefaultBasePriority returns the category base priorities of the predictive policy
func DefaultBasePriority() map[process.Category]int {
	return map[process.Category]int{
		process.CategorySystem:      90,
		process.CategoryInteractive: 80,
		process.CategoryCompute:     70,
		process.CategoryNetwork:     65,
		process.CategoryConsensus:   60,
		process.CategoryUser:        50,
	}
}

// Predictive scores every (ready record, idle core) pair from learned
// category statistics and core load, then pairs greedily by best score.
type Predictive struct {
	base
	predictor Predictor
	config    PredictiveConfig
	priority  map[process.Category]int
	ready     queue
}

// NewPredictive creates a predictive strategy
func NewPredictive(predictor Predictor, config PredictiveConfig) *Predictive {
	priority := DefaultBasePriority()
	for category, value := range config.BasePriority {
		priority[category] = value
	}
	if config.BaseRuntime <= 0 {
		config.BaseRuntime = time.Second
	}
	return &Predictive{base: newBase(KindPredictive), predictor: predictor, config: config, priority: priority}
}

// Priority returns the learned priority of category under load, in [1,100].
func (s *Predictive) Priority(category process.Category, load float64) float64 {
	basePriority, ok := s.priority[category]
	if !ok {
		basePriority = s.priority[process.CategoryUser]
	}
	ret := float64(basePriority)
	if successRate, ok := s.predictor.SuccessRate(category); ok {
		ret += (successRate-0.5)*20 + (1-load)*10
	}
	return min(max(ret, 1), 100)
}

// Score rates running r on core
func (s *Predictive) Score(r *process.Record, core *Core, load float64) float64 {
	ret := s.Priority(r.Category, load) - core.Load*s.config.LoadPenalty
	if focus, ok := s.predictor.Mode().Focus(); ok && focus == r.Category {
		ret += s.config.FocusBonus
	}
	return ret
}

func (s *Predictive) Add(r *process.Record) { s.ready.insert(r) }

func (s *Predictive) Remove(id string) bool { return s.ready.remove(id) }

func (s *Predictive) Requeue(r *process.Record, _ bool) { s.ready.insert(r) }

// Select repeatedly takes the best scoring pair; ties go to the earliest
// arrival, then to the lowest core id.
func (s *Predictive) Select(cores []Core) []Assignment {
	load := SystemLoad(cores)
	var idle []*Core
	for i := range cores {
		if cores[i].Idle() {
			idle = append(idle, &cores[i])
		}
	}
	var ret []Assignment
	for len(idle) > 0 && s.ready.len() > 0 {
		bestRecord, bestCore := -1, -1
		var bestScore float64
		for ri, r := range s.ready.items {
			for ci, core := range idle {
				score := s.Score(r, core, load)
				if bestRecord == -1 || score > bestScore || (score == bestScore && before(r, core, s.ready.items[bestRecord], idle[bestCore])) {
					bestRecord, bestCore, bestScore = ri, ci, score
				}
			}
		}
		r := s.ready.items[bestRecord]
		core := idle[bestCore]
		s.ready.items = append(s.ready.items[:bestRecord], s.ready.items[bestRecord+1:]...)
		idle = append(idle[:bestCore], idle[bestCore+1:]...)

		estimate := r.Estimate
		if estimate <= 0 {
			estimate = s.config.BaseRuntime
		}
		r.Predicted = s.predictor.PredictRuntime(r.Category, estimate)
		assignment := s.dispatch(core.ID, r, 0)
		assignment.PredictedRuntime = r.Predicted
		assignment.Score = bestScore
		assignment.Power = Advise(r.Category, load)
		ret = append(ret, assignment)
	}
	return ret
}

// before breaks score ties by arrival then core id
func before(r *process.Record, core *Core, best *process.Record, bestCore *Core) bool {
	if r.Seq != best.Seq {
		return r.Seq < best.Seq
	}
	return core.ID < bestCore.ID
}

func (s *Predictive) Len() int { return s.ready.len() }

func (s *Predictive) Drain() []*process.Record { return s.ready.drain() }
