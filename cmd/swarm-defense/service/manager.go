// Package service runs scenarios as background jobs and serves their status,
// frames and analytics over HTTP.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/config"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/controllers"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/simulation"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/storage"
	"github.com/picogrid/swarm-defense/pkg/logger"
	"github.com/picogrid/swarm-defense/pkg/models"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Scenario kinds
const (
	KindStatic  = "static"
	KindDynamic = "dynamic"
)

const (
	defaultMaxConcurrent = 8
	progressQueueStride  = 20
	persistTimeout       = 30 * time.Second
)

var (
	ErrScenarioNotFound   = errors.New("scenario not found")
	ErrScenarioNotStarted = errors.New("scenario not started")
	ErrInvalidScenario    = errors.New("invalid scenario")
	ErrShuttingDown       = errors.New("service is shutting down")
)

// Options configures a Manager
type Options struct {
	MaxConcurrent   int
	Store           storage.Store
	Influx          *storage.InfluxSink
	Factory         *controllers.Factory
	PersistInterval time.Duration
}

// Manager owns every scenario job. Each job runs on its own goroutine; a
// semaphore bounds how many step at once.
type Manager struct {
	store   storage.Store
	influx  *storage.InfluxSink
	factory *controllers.Factory
	buffer  *core.FrameBuffer
	metrics *metrics
	sem     chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu     sync.RWMutex
	jobs   map[uuid.UUID]*job
	closed bool
}

// NewManager creates a manager and starts its progress flusher
func NewManager(opts Options) (*Manager, error) {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}
	if opts.Store == nil {
		opts.Store = storage.NewMemoryStore()
	}
	if opts.Factory == nil {
		opts.Factory = controllers.NewFactory(controllers.DefaultPresets())
	}
	if opts.PersistInterval <= 0 {
		opts.PersistInterval = time.Duration(config.DefaultPersistInterval * float64(time.Second))
	}

	m, err := newMetrics()
	if err != nil {
		return nil, err
	}

	var sink core.ProgressSink = opts.Store
	if opts.Influx != nil {
		sink = storage.MultiSink{opts.Store, opts.Influx}
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)

	mgr := &Manager{
		store:   opts.Store,
		influx:  opts.Influx,
		factory: opts.Factory,
		buffer:  core.NewFrameBuffer(sink, 64, opts.PersistInterval),
		metrics: m,
		sem:     make(chan struct{}, opts.MaxConcurrent),
		ctx:     gctx,
		cancel:  cancel,
		group:   group,
		jobs:    make(map[uuid.UUID]*job),
	}
	mgr.buffer.Start(gctx)
	return mgr, nil
}

// Factory is the controller factory scenarios are built with
func (m *Manager) Factory() *controllers.Factory {
	return m.factory
}

// Start accepts a scenario and schedules it. The configuration is validated
// before the id is returned.
func (m *Manager) Start(ctx context.Context, kind string, cfg *config.ScenarioConfig) (uuid.UUID, error) {
	if kind != KindStatic && kind != KindDynamic {
		return uuid.Nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidScenario, kind)
	}
	if cfg == nil {
		cfg = config.DefaultScenarioConfig()
	}

	id := uuid.New()
	engine, err := simulation.NewEngine(cfg, simulation.WithScenarioID(id), simulation.WithFactory(m.factory))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	j := newJob(id, kind, engine)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return uuid.Nil, ErrShuttingDown
	}
	m.jobs[id] = j
	jobCtx, cancel := context.WithCancel(m.ctx)
	j.cancel = cancel
	m.mu.Unlock()

	record := &storage.Scenario{
		ID:        id.String(),
		Kind:      kind,
		Algorithm: j.algorithm,
		Status:    models.StatusInitializing,
		Seed:      engine.Seed(),
	}
	if data, err := storage.JSON(j.cfg); err == nil {
		record.Config = data
	}
	if err := m.store.CreateScenario(ctx, record); err != nil {
		logger.Warnf("Scenario %s: failed to persist initial record: %v", id, err)
	}

	m.metrics.scenarioStarted(context.Background(), kind, j.algorithm)
	logger.WithFields(map[string]interface{}{
		"scenario":  id,
		"kind":      kind,
		"algorithm": j.algorithm,
	}).Infof("Scenario accepted: %d vs %d", j.cfg.FriendlyCount, j.cfg.EnemyCount)

	m.group.Go(func() error {
		defer cancel()
		m.run(jobCtx, j)
		return nil
	})
	return id, nil
}

func (m *Manager) run(ctx context.Context, j *job) {
	defer close(j.done)

	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		m.finish(j, ctx.Err())
		return
	}
	defer func() { <-m.sem }()

	engine := j.built
	if _, err := engine.Initialize(); err != nil {
		m.finish(j, err)
		return
	}
	j.setRunning(engine)

	opt := algorithmAttrs(j.kind, j.algorithm)
	m.metrics.running.Add(context.Background(), 1, opt)
	defer m.metrics.running.Add(context.Background(), -1, opt)

	maxSteps := engine.MaxSteps()
	recorded := engine.FrameCount()
	last := time.Now()
	progress := func(step int) {
		now := time.Now()
		m.metrics.step(ctx, opt, now.Sub(last))
		last = now

		count := engine.FrameCount()
		j.setProgress(float64(step)/float64(maxSteps)*100, count != recorded)
		recorded = count

		if step%progressQueueStride == 0 {
			m.queueProgress(j, engine, models.StatusRunning)
		}
	}

	var err error
	if j.kind == KindDynamic {
		err = simulation.NewDynamicRunner(engine).Run(ctx, progress)
	} else {
		err = engine.Run(ctx, j.cfg.HistoryStride, progress)
	}
	m.finish(j, err)
}

func (m *Manager) queueProgress(j *job, engine *simulation.Engine, status string) {
	activeF, _, activeE, _ := engine.Counts()
	m.buffer.Queue(core.ProgressUpdate{
		ScenarioID:     j.id,
		Status:         status,
		Progress:       j.Progress(),
		SimTime:        engine.Time(),
		FramesRecorded: engine.FrameCount(),
		ActiveFriendly: activeF,
		ActiveEnemy:    activeE,
	})
}

// finish records the terminal status and writes the final record and the
// derived rows. Persistence failures are logged only.
func (m *Manager) finish(j *job, runErr error) {
	status, msg := models.StatusCompleted, ""
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		status = models.StatusCancelled
	default:
		status, msg = models.StatusError, runErr.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	completion := storage.Completion{Status: status, Error: msg}
	engine := j.Engine()
	var (
		stats     *simulation.Statistics
		frames    []simulation.Frame
		telemetry controllers.Telemetry
	)
	if engine != nil {
		s := engine.Statistics()
		stats = &s
		frames = engine.FrameHistory()
		telemetry = engine.AlgorithmTelemetry()
		completion.Statistics = s
		completion.Frames = frames
		completion.Telemetry = telemetry
		completion.Degraded = engine.Degraded()
	}

	j.finish(status, stats, msg)

	if engine != nil {
		m.queueProgress(j, engine, status)
		if err := m.buffer.Flush(ctx); err != nil {
			logger.Warnf("Scenario %s: final progress flush failed: %v", j.id, err)
		}
	}
	if err := m.store.CompleteScenario(ctx, j.id, completion); err != nil {
		logger.Warnf("Scenario %s: failed to persist final record: %v", j.id, err)
	}

	if status == models.StatusCompleted && stats != nil {
		perf := PerformanceRow(j.id.String(), j.algorithm, BuildAnalytics(frames, stats), frames, stats, telemetry)
		if err := m.store.SaveAlgorithmPerformance(ctx, perf); err != nil {
			logger.Warnf("Scenario %s: failed to persist algorithm performance: %v", j.id, err)
		}
		row, err := AnalyticsRow(j.id.String(), j.algorithm, *stats, telemetry)
		if err == nil {
			err = m.store.SaveSwarmAnalytics(ctx, row)
			if m.influx != nil {
				m.influx.WriteOutcome(row)
			}
		}
		if err != nil {
			logger.Warnf("Scenario %s: failed to persist swarm analytics: %v", j.id, err)
		}
	}

	m.metrics.scenarioFinished(context.Background(), j.kind, j.algorithm, status)
	switch status {
	case models.StatusCompleted:
		logger.Successf("Scenario %s completed: %d enemy losses, %d friendly losses, kill ratio %.2f",
			j.id, stats.EnemyLosses, stats.FriendlyLosses, stats.KillRatio)
	case models.StatusCancelled:
		logger.Infof("Scenario %s cancelled", j.id)
	default:
		logger.Errorf("Scenario %s failed: %s", j.id, msg)
	}
}

func (m *Manager) job(id uuid.UUID) (*job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrScenarioNotFound
	}
	return j, nil
}

func (m *Manager) startedJob(id uuid.UUID) (*job, *simulation.Engine, error) {
	j, err := m.job(id)
	if err != nil {
		return nil, nil, err
	}
	engine := j.Engine()
	if engine == nil {
		return nil, nil, ErrScenarioNotStarted
	}
	return j, engine, nil
}

// Kind reports whether a scenario is static or dynamic
func (m *Manager) Kind(id uuid.UUID) (string, error) {
	j, err := m.job(id)
	if err != nil {
		return "", err
	}
	return j.kind, nil
}

// Status returns the current state of a scenario
func (m *Manager) Status(id uuid.UUID) (models.SimulationStatus, error) {
	j, err := m.job(id)
	if err != nil {
		return models.SimulationStatus{}, err
	}
	return j.snapshot(), nil
}

// Data returns recorded frames [start, end); a negative end means all
func (m *Manager) Data(id uuid.UUID, start, end int) (models.SimulationData, error) {
	j, engine, err := m.startedJob(id)
	if err != nil {
		return models.SimulationData{}, err
	}
	history := engine.FrameHistory()
	frames, err := json.Marshal(simulation.SliceFrames(history, start, end))
	if err != nil {
		return models.SimulationData{}, fmt.Errorf("failed to encode frames: %w", err)
	}
	cfg, err := json.Marshal(j.cfg)
	if err != nil {
		return models.SimulationData{}, fmt.Errorf("failed to encode config: %w", err)
	}
	return models.SimulationData{
		Frames:      frames,
		TotalFrames: len(history),
		Config:      cfg,
		Statistics:  toModelStatistics(j.Statistics()),
	}, nil
}

// Analytics samples the frame history and writes an algorithm performance
// row best-effort
func (m *Manager) Analytics(ctx context.Context, id uuid.UUID) (models.Analytics, error) {
	j, engine, err := m.startedJob(id)
	if err != nil {
		return models.Analytics{}, err
	}
	frames := engine.FrameHistory()
	stats := j.Statistics()
	analytics := BuildAnalytics(frames, stats)

	perf := PerformanceRow(id.String(), j.algorithm, analytics, frames, stats, engine.AlgorithmTelemetry())
	if err := m.store.SaveAlgorithmPerformance(ctx, perf); err != nil {
		logger.Warnf("Scenario %s: failed to persist algorithm performance: %v", id, err)
	}
	return analytics, nil
}

// Frame returns recorded frame index, clamped to the recorded range. A
// negative index means the latest frame; with nothing recorded yet the
// current state is returned.
func (m *Manager) Frame(id uuid.UUID, index int) (simulation.Frame, error) {
	_, engine, err := m.startedJob(id)
	if err != nil {
		return simulation.Frame{}, err
	}
	history := engine.FrameHistory()
	if len(history) == 0 {
		return engine.Snapshot(), nil
	}
	if index < 0 || index >= len(history) {
		index = len(history) - 1
	}
	return history[index], nil
}

// Cancel stops a scenario. Finished scenarios are left untouched.
func (m *Manager) Cancel(id uuid.UUID) error {
	j, err := m.job(id)
	if err != nil {
		return err
	}
	j.cancel()
	return nil
}

// Wait blocks until the scenario reaches a terminal status and its final
// record has been written
func (m *Manager) Wait(ctx context.Context, id uuid.UUID) (models.SimulationStatus, error) {
	j, err := m.job(id)
	if err != nil {
		return models.SimulationStatus{}, err
	}
	select {
	case <-j.done:
		return j.snapshot(), nil
	case <-ctx.Done():
		return j.snapshot(), ctx.Err()
	}
}

// Count is the number of scenarios held in memory
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}

// Summaries lists every in-memory scenario, oldest first
func (m *Manager) Summaries() []models.SimulationSummary {
	m.mu.RLock()
	jobs := make([]*job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	m.mu.RUnlock()

	sort.Slice(jobs, func(a, b int) bool { return jobs[a].created.Before(jobs[b].created) })
	out := make([]models.SimulationSummary, len(jobs))
	for i, j := range jobs {
		out[i] = j.summary()
	}
	return out
}

// Records lists persisted scenarios, newest first
func (m *Manager) Records(ctx context.Context, offset, limit int) ([]models.ScenarioRecord, error) {
	rows, err := m.store.ListScenarios(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.ScenarioRecord, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			logger.Debugf("Skipping stored scenario with malformed id %q", r.ID)
			continue
		}
		rec := models.ScenarioRecord{
			ID:          id,
			Kind:        r.Kind,
			Algorithm:   r.Algorithm,
			Status:      r.Status,
			Progress:    r.Progress,
			Seed:        r.Seed,
			Degraded:    r.Degraded,
			Error:       r.Error,
			CreatedAt:   r.CreatedAt,
			CompletedAt: r.CompletedAt,
		}
		if len(r.Statistics) > 0 {
			var stats models.Statistics
			if err := json.Unmarshal(r.Statistics, &stats); err == nil {
				rec.Statistics = &stats
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// Shutdown cancels every job and waits for their final records, then flushes
// pending progress
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()

	done := make(chan error, 1)
	go func() { done <- m.group.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	m.buffer.Stop(ctx)
	return err
}
