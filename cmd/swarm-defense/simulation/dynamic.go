package simulation

import (
	"context"
	"sort"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/config"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

// AssetPath is a time-ordered list of waypoints for a moving asset
type AssetPath []config.Waypoint

// NewAssetPath orders waypoints by time. Waypoints sharing a timestamp keep
// their input order.
func NewAssetPath(waypoints config.Waypoints) AssetPath {
	path := make(AssetPath, len(waypoints))
	copy(path, waypoints)
	sort.SliceStable(path, func(i, j int) bool { return path[i].Time < path[j].Time })
	return path
}

// Interpolate returns the position at time t. Before the first waypoint the
// first position holds, after the last the last one does. ok is false for
// an empty path.
func (p AssetPath) Interpolate(t float64) (pos core.Vector3D, ok bool) {
	if len(p) == 0 {
		return core.Vector3D{}, false
	}
	if t <= p[0].Time {
		return p[0].Position, true
	}
	for i := 0; i < len(p)-1; i++ {
		a, b := p[i], p[i+1]
		if t < a.Time || t > b.Time {
			continue
		}
		span := b.Time - a.Time
		if span <= 0 {
			return a.Position, true
		}
		ratio := (t - a.Time) / span
		return a.Position.Add(b.Position.Subtract(a.Position).Scale(ratio)), true
	}
	return p[len(p)-1].Position, true
}

// DynamicRunner drives a scenario whose first asset follows a path. Every
// step is recorded.
type DynamicRunner struct {
	engine *Engine
	path   AssetPath
}

// NewDynamicRunner wraps an engine. The path comes from the scenario's asset_path.
func NewDynamicRunner(engine *Engine) *DynamicRunner {
	return &DynamicRunner{
		engine: engine,
		path:   NewAssetPath(engine.cfg.AssetPath),
	}
}

func (r *DynamicRunner) Engine() *Engine {
	return r.engine
}

func (r *DynamicRunner) Path() AssetPath {
	return r.path
}

// Step moves the asset to its path position for the current time, then
// steps and records.
func (r *DynamicRunner) Step() {
	if pos, ok := r.path.Interpolate(r.engine.Time()); ok {
		r.engine.MoveAsset(0, pos)
	}
	r.engine.Step(true)
}

// Run steps until the scenario completes, the budget is spent or ctx is done
func (r *DynamicRunner) Run(ctx context.Context, progress func(step int)) error {
	r.engine.mu.RLock()
	ready := r.engine.initialized
	r.engine.mu.RUnlock()
	if !ready {
		return ErrNotInitialized
	}

	maxSteps := r.engine.MaxSteps()
	for step := 1; step <= maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.Step()
		if progress != nil {
			progress(step)
		}
		if r.engine.IsComplete() {
			break
		}
	}
	r.engine.reportTeams()
	return nil
}
