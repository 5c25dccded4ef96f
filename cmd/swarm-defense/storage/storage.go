// Package storage persists scenario runs. Persistence is best-effort: callers
// log failures and keep simulating.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

// ErrNotFound is returned when a scenario has no stored record
var ErrNotFound = errors.New("storage: scenario not found")

// Store is implemented by every backend
type Store interface {
	core.ProgressSink

	CreateScenario(ctx context.Context, s *Scenario) error
	CompleteScenario(ctx context.Context, id uuid.UUID, c Completion) error
	GetScenario(ctx context.Context, id uuid.UUID) (*Scenario, error)
	ListScenarios(ctx context.Context, offset, limit int) ([]Scenario, error)

	SaveAlgorithmPerformance(ctx context.Context, p *AlgorithmPerformance) error
	SaveSwarmAnalytics(ctx context.Context, a *SwarmAnalytics) error

	Close() error
}

// Config selects and configures a backend
type Config struct {
	Driver       string // memory, sqlite or postgres
	DSN          string // sqlite file path ("" for in-memory) or postgres DSN
	DumpPath     string // sqlite only: periodic VACUUM INTO target
	DumpInterval time.Duration
}

// Open creates the configured backend
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return OpenSQLite(cfg.DSN, cfg.DumpPath, cfg.DumpInterval)
	case "postgres":
		return OpenPostgres(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}

// MultiSink fans a progress update out to several sinks and joins their errors
type MultiSink []core.ProgressSink

// SaveProgress implements core.ProgressSink
func (m MultiSink) SaveProgress(ctx context.Context, update core.ProgressUpdate) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.SaveProgress(ctx, update); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
