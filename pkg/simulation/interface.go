package simulation

import (
	"context"
)

// Progress describes how far a running simulation has come
type Progress struct {
	Step       int
	TotalSteps int
	SimTime    float64
	Message    string
}

// Percent returns completion in [0, 100]
func (p Progress) Percent() float64 {
	if p.TotalSteps <= 0 {
		return 0
	}
	pct := float64(p.Step) / float64(p.TotalSteps) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// ProgressFunc receives progress updates while a simulation runs
type ProgressFunc func(Progress)

// Simulation defines the interface that all simulations must implement
type Simulation interface {
	// Name returns the name of the simulation
	Name() string

	// Description returns a brief description of what the simulation does
	Description() string

	// Configure sets up the simulation with the provided parameters
	Configure(params map[string]interface{}) error

	// Run executes the simulation, reporting progress when progress is non-nil
	Run(ctx context.Context, progress ProgressFunc) error

	// Stop gracefully shuts down the simulation
	Stop() error
}

// Reporter is implemented by simulations that expose a result summary after Run
type Reporter interface {
	Report() map[string]interface{}
}
