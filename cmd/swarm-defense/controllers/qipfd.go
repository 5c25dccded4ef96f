package controllers

import (
	"math"
	"sync"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

// Quantum-field constants
const (
	qipfdKRepel           = 50.0
	qipfdSigma            = 0.5
	qipfdMaxAccel         = 5.0
	qipfdCriticalTimeS    = 10.0
	qipfdTunnelingScale   = 50.0
	qipfdObservationRange = 200.0
	qipfdRepelRange       = 30.0
	qipfdProtectRange     = 500.0
)

// QIPFD steers each drone toward an attractor point: the weighted mean of the
// threats it is responsible for plus intercept points of urgent ground
// threats, with short-range repulsion from neighbours and gaussian
// exploration noise. The preset's threat response time is the control horizon.
type QIPFD struct {
	*base

	mu             sync.Mutex
	weightCalls    int
	attractorCalls int
}

func newQIPFD(key string, p Params, opts buildOptions) *QIPFD {
	return &QIPFD{base: newBase(key, p, opts)}
}

func (c *QIPFD) SelectTarget(drone *core.Drone, enemies []*core.Drone, assets []*core.GroundAsset, friendlies []*core.Drone) *int {
	return selectByCoverage(c.params, drone, enemies, assets, friendlies)
}

// QuantumWeights scores every living enemy from the drone's position. Ground
// enemies score by urgency toward the assets, air enemies by proximity, and
// every score is amplified by a tunneling factor 1+exp(-d/50).
func (c *QIPFD) QuantumWeights(drone *core.Drone, enemies []*core.Drone, assets []*core.GroundAsset) map[int]float64 {
	c.mu.Lock()
	c.weightCalls++
	c.mu.Unlock()

	weights := make(map[int]float64, len(enemies))
	for _, e := range enemies {
		if !e.IsActive() {
			continue
		}
		d := drone.Position.DistanceTo(e.Position)
		var score float64
		if e.IsGround() {
			if speed := e.Velocity.Magnitude(); speed > 0 {
				minDist := nearestAssetDistance(e.Position, assets)
				if tti := minDist / speed; tti < qipfdCriticalTimeS {
					score = 1000 / math.Max(tti, 0.1)
				} else {
					score = 100 / math.Max(minDist, 1)
				}
			}
		} else {
			score = 50 / math.Max(d, 1)
		}
		weights[e.ID] = score * (1 + math.Exp(-d/qipfdTunnelingScale))
	}
	return weights
}

// Attractor computes the point the drone is drawn to
func (c *QIPFD) Attractor(drone *core.Drone, enemies []*core.Drone, assets []*core.GroundAsset, friendlies []*core.Drone, weights map[int]float64) core.Vector3D {
	c.mu.Lock()
	c.attractorCalls++
	c.mu.Unlock()

	view := newCoverageView(drone, enemies, friendlies)
	var sum core.Vector3D
	total := 0.0
	add := func(point core.Vector3D, w float64) {
		sum = sum.Add(point.Scale(w))
		total += w
	}

	for i, e := range view.enemies {
		if view.isPrimary(i, view.droneIndex) {
			w := weights[e.ID]
			if e.IsGround() {
				w *= 15
			}
			add(e.Position, w*20)
			continue
		}

		myScore := AssignmentHash(drone.ID, e.ID) + 1000/math.Max(drone.Position.DistanceTo(e.Position), 1)
		top := true
		for fi, f := range view.friendlies {
			if f.ID == drone.ID || view.isPrimary(i, fi) {
				continue
			}
			if AssignmentHash(f.ID, e.ID)+1000/math.Max(f.Position.DistanceTo(e.Position), 1) > myScore {
				top = false
				break
			}
		}
		if top {
			w := weights[e.ID]
			if e.IsGround() {
				w *= 5
			}
			add(e.Position, w*5)
		}
	}

	var repulsion core.Vector3D
	for _, f := range view.friendlies {
		if f.ID == drone.ID {
			continue
		}
		away := drone.Position.Subtract(f.Position)
		d := away.Magnitude()
		if d > qipfdObservationRange {
			continue
		}
		if d > 0.1 && d < qipfdRepelRange {
			repulsion = repulsion.Add(away.Scale(qipfdKRepel / (d*d + 0.1) / d))
		}
	}

	for _, a := range assets {
		for _, e := range view.enemies {
			if !e.IsGround() {
				continue
			}
			tta := e.Position.DistanceTo(a.Position) / math.Max(e.Velocity.Magnitude(), 1)
			if tta >= qipfdCriticalTimeS || drone.Position.DistanceTo(e.Position) >= qipfdProtectRange {
				continue
			}
			intercept := e.Position.Add(e.Velocity.Scale(math.Min(tta*0.5, 1)))
			add(intercept, 500/math.Max(tta, 0.1))
		}
	}

	if total > 0 {
		return sum.Scale(1 / total).Add(repulsion)
	}
	if len(assets) > 0 {
		return assets[0].Position
	}
	return drone.Position
}

func (c *QIPFD) ComputeDesiredVelocity(drone *core.Drone, enemies []*core.Drone, assets []*core.GroundAsset, friendlies []*core.Drone) core.Vector3D {
	horizon := c.params.ThreatResponseTime
	if horizon <= 0 {
		horizon = c.opts.timeStep
	}

	weights := c.QuantumWeights(drone, enemies, assets)
	attractor := c.Attractor(drone, enemies, assets, friendlies, weights)

	noise := core.Vec(c.normFloat64(), c.normFloat64(), c.normFloat64()).Scale(qipfdSigma)
	v := attractor.Subtract(drone.Position).Scale(1 / horizon).Add(noise)
	v = v.ClampMagnitude(c.params.MaxSpeed)

	accel := v.Subtract(drone.Velocity).Scale(1 / horizon)
	if accel.Magnitude() > qipfdMaxAccel {
		v = drone.Velocity.Add(accel.Normalize().Scale(qipfdMaxAccel * horizon))
	}
	return v.ClampMagnitude(c.params.MaxSpeed)
}

// Telemetry reports weight evaluations, the exploration sigma and attractor updates
func (c *QIPFD) Telemetry() Telemetry {
	c.mu.Lock()
	defer c.mu.Unlock()
	calls, attractors := c.weightCalls, c.attractorCalls
	if calls == 0 {
		calls = 1
	}
	if attractors == 0 {
		attractors = 1
	}
	return Telemetry{IterationCount: calls, FieldStrength: qipfdSigma, ScoutCount: attractors}
}
