package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

// MemoryStore is a Store that lives only as long as the process
type MemoryStore struct {
	mu          sync.RWMutex
	scenarios   map[string]*Scenario
	performance []AlgorithmPerformance
	analytics   []SwarmAnalytics
	nextID      uint
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scenarios: make(map[string]*Scenario)}
}

func (m *MemoryStore) CreateScenario(_ context.Context, s *Scenario) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	cp := *s
	m.scenarios[s.ID] = &cp
	return nil
}

// SaveProgress implements core.ProgressSink
func (m *MemoryStore) SaveProgress(_ context.Context, u core.ProgressUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scenarios[u.ScenarioID.String()]
	if !ok {
		return ErrNotFound
	}
	if s.CompletedAt != nil {
		return nil
	}
	s.Status = u.Status
	s.Progress = u.Progress
	s.SimTime = u.SimTime
	s.FramesRecorded = u.FramesRecorded
	s.ActiveFriendly = u.ActiveFriendly
	s.ActiveEnemy = u.ActiveEnemy
	s.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) CompleteScenario(_ context.Context, id uuid.UUID, c Completion) error {
	stats, err := JSON(c.Statistics)
	if err != nil {
		return err
	}
	frames, err := JSON(c.Frames)
	if err != nil {
		return err
	}
	telemetry, err := JSON(c.Telemetry)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scenarios[id.String()]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	s.Status = c.Status
	s.Error = c.Error
	s.Degraded = c.Degraded
	if stats != nil {
		s.Statistics = stats
	}
	if frames != nil {
		s.Frames = frames
	}
	if telemetry != nil {
		s.Telemetry = telemetry
	}
	if c.Status == StatusCompleted {
		s.Progress = 100
	}
	s.CompletedAt = &now
	s.UpdatedAt = now
	return nil
}

func (m *MemoryStore) GetScenario(_ context.Context, id uuid.UUID) (*Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scenarios[id.String()]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) ListScenarios(_ context.Context, offset, limit int) ([]Scenario, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	m.mu.RLock()
	out := make([]Scenario, 0, len(m.scenarios))
	for _, s := range m.scenarios {
		cp := *s
		cp.Frames = nil
		out = append(out, cp)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []Scenario{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) SaveAlgorithmPerformance(_ context.Context, p *AlgorithmPerformance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	m.performance = append(m.performance, *p)
	return nil
}

func (m *MemoryStore) SaveSwarmAnalytics(_ context.Context, a *SwarmAnalytics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	a.CreatedAt = time.Now()
	m.analytics = append(m.analytics, *a)
	return nil
}

// Performance returns the algorithm performance rows written for a scenario
func (m *MemoryStore) Performance(scenarioID uuid.UUID) []AlgorithmPerformance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []AlgorithmPerformance
	for _, p := range m.performance {
		if p.ScenarioID == scenarioID.String() {
			out = append(out, p)
		}
	}
	return out
}

// Analytics returns the swarm analytics rows written for a scenario
func (m *MemoryStore) Analytics(scenarioID uuid.UUID) []SwarmAnalytics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []SwarmAnalytics
	for _, a := range m.analytics {
		if a.ScenarioID == scenarioID.String() {
			out = append(out, a)
		}
	}
	return out
}

func (m *MemoryStore) Close() error {
	return nil
}
