package controllers

import (
	"sync"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

// Flocking tuning
const (
	flockSeparationDist   = 50.0
	flockAlignmentDist    = 100.0
	flockCohesionDist     = 100.0
	flockSeparationWeight = 1.5
	flockAlignmentWeight  = 1.0
	flockCohesionWeight   = 1.0
	flockThreatWeight     = 2.0
	flockAssetWeight      = 1.2
	flockAssetRadius      = 600.0
	flockMaxForce         = 5.0
)

// Flocking is the communication-free Reynolds baseline. Drones see only their
// neighbours, chase the nearest visible enemy and share no targets, so it does
// not guarantee coverage.
type Flocking struct {
	*base
	steering *core.SteeringEngine
	pursuit  *core.PursuitBehavior

	mu       sync.Mutex
	memory   map[int]core.Vector3D
	steers   int
	pursuits int
	speedSum float64
}

func newFlocking(key string, p Params, opts buildOptions) *Flocking {
	pursuit := &core.PursuitBehavior{W: flockThreatWeight, DetectionRange: p.DetectionRange}
	return &Flocking{
		base: newBase(key, p, opts),
		steering: core.NewSteeringEngine(flockMaxForce,
			&core.SeparationBehavior{W: flockSeparationWeight, MinDistance: flockSeparationDist},
			&core.AlignmentBehavior{W: flockAlignmentWeight, Radius: flockAlignmentDist},
			&core.CohesionBehavior{W: flockCohesionWeight, Radius: flockCohesionDist},
			pursuit,
			&core.AssetProtectionBehavior{W: flockAssetWeight, Radius: flockAssetRadius},
		),
		pursuit: pursuit,
		memory:  make(map[int]core.Vector3D),
	}
}

// SelectTarget picks the nearest enemy inside detection range, or the nearest
// living enemy at all when none is visible.
func (c *Flocking) SelectTarget(drone *core.Drone, enemies []*core.Drone, assets []*core.GroundAsset, friendlies []*core.Drone) *int {
	target := c.pursuit.Nearest(drone.Position, enemies)
	if target == nil {
		target, _ = core.NearestActive(drone.Position, enemies)
	}
	if target == nil {
		return nil
	}
	id := target.ID
	return &id
}

func (c *Flocking) ComputeDesiredVelocity(drone *core.Drone, enemies []*core.Drone, assets []*core.GroundAsset, friendlies []*core.Drone) core.Vector3D {
	c.mu.Lock()
	velocity, ok := c.memory[drone.ID]
	c.mu.Unlock()
	if !ok {
		velocity = drone.Velocity
	}

	agent := core.Agent{ID: drone.ID, Position: drone.Position, Velocity: velocity, MaxSpeed: c.params.MaxSpeed}
	env := &core.Environment{Friendlies: friendlies, Enemies: enemies, Assets: assets}
	next := velocity.Add(c.steering.Steer(agent, env)).ClampMagnitude(c.params.MaxSpeed)

	c.mu.Lock()
	c.memory[drone.ID] = next
	c.steers++
	if c.pursuit.Nearest(drone.Position, enemies) != nil {
		c.pursuits++
	}
	c.speedSum += next.Magnitude()
	c.mu.Unlock()
	return next
}

// Telemetry reports steering updates, the mean commanded speed and pursuit updates
func (c *Flocking) Telemetry() Telemetry {
	c.mu.Lock()
	defer c.mu.Unlock()
	avg := 0.0
	if c.steers > 0 {
		avg = c.speedSum / float64(c.steers)
	}
	return Telemetry{IterationCount: c.steers, FieldStrength: avg, ScoutCount: c.pursuits}
}
