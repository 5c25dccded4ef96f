package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/config"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/simulation"
	"github.com/picogrid/swarm-defense/pkg/models"
)

// job is one scenario owned by the manager. The engine is built when the job
// is accepted but only exposed once it has been initialized.
type job struct {
	id        uuid.UUID
	kind      string
	cfg       *config.ScenarioConfig
	algorithm string
	created   time.Time
	built     *simulation.Engine

	mu       sync.RWMutex
	status   string
	progress float64
	stats    *simulation.Statistics
	errMsg   string
	engine   *simulation.Engine
	cancel   context.CancelFunc
	changed  chan struct{}
	done     chan struct{}
}

func newJob(id uuid.UUID, kind string, engine *simulation.Engine) *job {
	return &job{
		id:        id,
		kind:      kind,
		cfg:       engine.Config(),
		algorithm: engine.Algorithm(),
		created:   time.Now(),
		built:     engine,
		status:    models.StatusInitializing,
		changed:   make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// notifyLocked wakes everyone waiting on the current change channel
func (j *job) notifyLocked() {
	close(j.changed)
	j.changed = make(chan struct{})
}

// watch returns a channel closed on the next change
func (j *job) watch() <-chan struct{} {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.changed
}

func (j *job) setRunning(engine *simulation.Engine) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.engine = engine
	j.status = models.StatusRunning
	j.notifyLocked()
}

func (j *job) setProgress(progress float64, notify bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress = progress
	if notify {
		j.notifyLocked()
	}
}

func (j *job) finish(status string, stats *simulation.Statistics, errMsg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
	j.stats = stats
	j.errMsg = errMsg
	if status == models.StatusCompleted {
		j.progress = 100
	}
	j.notifyLocked()
}

func (j *job) Engine() *simulation.Engine {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.engine
}

func (j *job) Progress() float64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.progress
}

func (j *job) Statistics() *simulation.Statistics {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.stats
}

func (j *job) Status() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

func (j *job) snapshot() models.SimulationStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return models.SimulationStatus{
		ID:         j.id,
		Status:     j.status,
		Progress:   j.progress,
		Statistics: toModelStatistics(j.stats),
		Error:      j.errMsg,
	}
}

func (j *job) summary() models.SimulationSummary {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return models.SimulationSummary{
		SimulationID: j.id,
		Kind:         j.kind,
		Status:       j.status,
		Progress:     j.progress,
		HasEngine:    j.engine != nil,
		Statistics:   toModelStatistics(j.stats),
	}
}
