package controllers

import (
	"math"
	"sync"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

// AdaptiveShield is the default strategy: round-robin coverage for targets and
// a blend of threat, asset, cohesion and pursuit fields for motion.
type AdaptiveShield struct {
	*base

	mu           sync.Mutex
	selections   int
	fieldSum     float64
	fieldSamples int
	criticalSeen int
}

func newAdaptiveShield(key string, p Params, opts buildOptions) *AdaptiveShield {
	return &AdaptiveShield{base: newBase(key, p, opts)}
}

func (c *AdaptiveShield) SelectTarget(drone *core.Drone, enemies []*core.Drone, assets []*core.GroundAsset, friendlies []*core.Drone) *int {
	c.mu.Lock()
	c.selections++
	c.mu.Unlock()
	return selectByCoverage(c.params, drone, enemies, assets, friendlies)
}

// ThreatField sums exponentially decaying pulls toward every detected enemy.
// Ground enemies threatening an asset weigh CriticalMultiplier times more.
func (c *AdaptiveShield) ThreatField(drone *core.Drone, enemies []*core.Drone, assets []*core.GroundAsset) core.Vector3D {
	p := c.params
	var field core.Vector3D
	critical := 0
	for _, e := range enemies {
		if !e.IsActive() {
			continue
		}
		offset := e.Position.Subtract(drone.Position)
		d := offset.Magnitude()
		if d <= core.Epsilon || d > p.DetectionRange {
			continue
		}
		weight := p.ThreatAirWeight
		if e.IsGround() {
			weight = p.ThreatGroundWeight
			if threatensAsset(e, assets, p.ThreatResponseTime, p.MaxSpeed) {
				weight *= p.CriticalMultiplier
				critical++
			}
		}
		field = field.Add(offset.Scale(weight * math.Exp(-d/p.ThreatDecay) / d))
	}

	c.mu.Lock()
	c.fieldSum += field.Magnitude()
	c.fieldSamples++
	c.criticalSeen += critical
	c.mu.Unlock()
	return field
}

// AssetField pulls toward every asset further than 450 m
func (c *AdaptiveShield) AssetField(drone *core.Drone, assets []*core.GroundAsset) core.Vector3D {
	var field core.Vector3D
	for _, a := range assets {
		offset := a.Position.Subtract(drone.Position)
		d := offset.Magnitude()
		if d < core.Epsilon {
			continue
		}
		if d > 450 {
			field = field.Add(offset.Scale(c.params.AssetPullGain / d))
		}
	}
	return field
}

// CohesionField points at the centroid of the other living friendlies
func (c *AdaptiveShield) CohesionField(drone *core.Drone, friendlies []*core.Drone) core.Vector3D {
	var centroid core.Vector3D
	n := 0
	for _, f := range friendlies {
		if !f.IsActive() || f.ID == drone.ID {
			continue
		}
		centroid = centroid.Add(f.Position)
		n++
	}
	if n == 0 {
		return core.Vector3D{}
	}
	offset := centroid.Scale(1 / float64(n)).Subtract(drone.Position)
	if offset.Magnitude() < core.Epsilon {
		return core.Vector3D{}
	}
	return offset.Normalize().Scale(c.params.CohesionGain)
}

func (c *AdaptiveShield) ComputeDesiredVelocity(drone *core.Drone, enemies []*core.Drone, assets []*core.GroundAsset, friendlies []*core.Drone) core.Vector3D {
	p := c.params
	threat := c.ThreatField(drone, enemies, assets)
	asset := c.AssetField(drone, assets)
	cohesion := c.CohesionField(drone, friendlies)

	var pursuit core.Vector3D
	if target := core.FindDrone(enemies, drone.TargetID); target != nil {
		offset := target.Position.Subtract(drone.Position)
		if offset.Magnitude() > core.Epsilon {
			pursuit = offset.Normalize().Scale(p.TargetGain)
		}
	}

	combined := threat.Scale(p.ThreatGain).
		Add(asset.Scale(p.AssetGain)).
		Add(pursuit).
		Add(cohesion)
	if combined.Magnitude() <= core.Epsilon {
		return core.Vector3D{}
	}
	return combined.Normalize().Scale(p.MaxSpeed)
}

// Telemetry reports target selections, the mean threat-field strength and the
// number of critical ground threats seen.
func (c *AdaptiveShield) Telemetry() Telemetry {
	c.mu.Lock()
	defer c.mu.Unlock()
	strength := 0.0
	if c.fieldSamples > 0 {
		strength = c.fieldSum / float64(c.fieldSamples)
	}
	return Telemetry{
		IterationCount: c.selections,
		FieldStrength:  strength,
		ScoutCount:     c.criticalSeen,
	}
}
