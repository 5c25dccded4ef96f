package controllers

import (
	"math/rand"
	"sync"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

// base carries what every strategy shares: merged params, the formation, the
// role distributions and the random source.
type base struct {
	key        string
	params     Params
	formation  Formation
	groundBias RoleWeights
	airBias    RoleWeights
	opts       buildOptions

	rngMu sync.Mutex
	rng   *rand.Rand
}

func newBase(key string, p Params, opts buildOptions) *base {
	rng := opts.rng
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &base{
		key:        key,
		params:     p,
		formation:  NewFormation(p.Formation, p.FormationParams),
		groundBias: p.RoleBiasGround.Normalize(fallbackGroundBias),
		airBias:    p.RoleBiasAir.Normalize(fallbackAirBias),
		opts:       opts,
		rng:        rng,
	}
}

func (b *base) Key() string {
	return b.key
}

func (b *base) Params() Params {
	return b.params.clone()
}

func (b *base) SpawnFriendly(index, total int, anchor core.Vector3D) (core.Vector3D, core.Vector3D) {
	offset, velocity := b.formation.Slot(index, total)
	return anchor.Add(offset), velocity
}

// UpdateRole draws a role from the ground distribution while any ground enemy
// is alive, otherwise from the air distribution.
func (b *base) UpdateRole(drone *core.Drone, enemies []*core.Drone, assets []*core.GroundAsset) core.DroneRole {
	weights := b.airBias
	for _, e := range enemies {
		if e.IsActive() && e.IsGround() {
			weights = b.groundBias
			break
		}
	}
	return drawRole(weights, b.float64())
}

func drawRole(w RoleWeights, roll float64) core.DroneRole {
	cumulative := 0.0
	for _, role := range core.Roles {
		cumulative += w.Of(role)
		if roll <= cumulative {
			return role
		}
	}
	return core.RoleInterceptor
}

func (b *base) float64() float64 {
	b.rngMu.Lock()
	defer b.rngMu.Unlock()
	return b.rng.Float64()
}

func (b *base) normFloat64() float64 {
	b.rngMu.Lock()
	defer b.rngMu.Unlock()
	return b.rng.NormFloat64()
}
