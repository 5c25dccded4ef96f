package controllers

import (
	"math"
	"sort"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

// Score boosts shared by the coverage-based target selectors
const (
	PrimaryBoost      = 100000.0
	GroundThreatBoost = 50000.0
)

// coverageView is the per-call picture a drone uses for communication-free
// coverage: active enemies in list order and active friendlies sorted by id.
type coverageView struct {
	enemies    []*core.Drone
	friendlies []*core.Drone
	droneIndex int
}

func newCoverageView(drone *core.Drone, enemies, friendlies []*core.Drone) coverageView {
	v := coverageView{
		enemies:    core.ActiveDrones(enemies),
		friendlies: core.ActiveDrones(friendlies),
	}
	sort.SliceStable(v.friendlies, func(i, j int) bool { return v.friendlies[i].ID < v.friendlies[j].ID })
	v.droneIndex = v.indexOf(drone.ID)
	return v
}

// indexOf returns the id-sorted position of a friendly, 0 when absent
func (v coverageView) indexOf(id int) int {
	for i, f := range v.friendlies {
		if f.ID == id {
			return i
		}
	}
	return 0
}

func (v coverageView) numFriendlies() int {
	if len(v.friendlies) == 0 {
		return 1
	}
	return len(v.friendlies)
}

// isPrimary reports whether friendly index fi owns enemy index ei
func (v coverageView) isPrimary(ei, fi int) bool {
	return ei%v.numFriendlies() == fi
}

// primaries is the set of enemy ids friendly index fi owns
func (v coverageView) primaries(fi int) map[int]bool {
	owned := make(map[int]bool)
	for i, e := range v.enemies {
		if v.isPrimary(i, fi) {
			owned[e.ID] = true
		}
	}
	return owned
}

// AssignmentHash is the deterministic tie-breaker in [0, 1000)
func AssignmentHash(droneID, enemyID int) float64 {
	h := (droneID*7919 + enemyID*6547) % 1000
	if h < 0 {
		h += 1000
	}
	return float64(h)
}

// threatensAsset reports whether a ground enemy is within reach of any asset
// inside the response window.
func threatensAsset(enemy *core.Drone, assets []*core.GroundAsset, responseTime, maxSpeed float64) bool {
	if !enemy.IsGround() {
		return false
	}
	for _, a := range assets {
		if enemy.Position.DistanceTo(a.Position) < responseTime*maxSpeed {
			return true
		}
	}
	return false
}

// nearestAssetDistance is the distance from pos to the closest asset, +Inf without assets
func nearestAssetDistance(pos core.Vector3D, assets []*core.GroundAsset) float64 {
	_, d := core.NearestAsset(pos, assets)
	return d
}

// timeToImpact is the time a ground enemy needs to reach its nearest asset
// at its current speed, with speed floored at 1 m/s.
func timeToImpact(enemy *core.Drone, assets []*core.GroundAsset) (float64, float64) {
	dist := nearestAssetDistance(enemy.Position, assets)
	speed := enemy.Velocity.Magnitude()
	return dist / math.Max(speed, 1), dist
}

// selectByCoverage is the round-robin selector shared by the adaptive shield,
// the density-field and the quantum-field strategies. Every active enemy is the
// primary of exactly one active friendly, so the union of choices covers
// every enemy whenever friendlies >= enemies.
func selectByCoverage(p Params, drone *core.Drone, enemies []*core.Drone, assets []*core.GroundAsset, friendlies []*core.Drone) *int {
	view := newCoverageView(drone, enemies, friendlies)
	if len(view.enemies) == 0 {
		return nil
	}

	var best *core.Drone
	bestScore := math.Inf(-1)
	for i, enemy := range view.enemies {
		score := AssignmentHash(drone.ID, enemy.ID)
		score += 1000 / math.Max(drone.Position.DistanceTo(enemy.Position), 1)
		if view.isPrimary(i, view.droneIndex) {
			score += PrimaryBoost
		}
		if threatensAsset(enemy, assets, p.ThreatResponseTime, p.MaxSpeed) {
			score += GroundThreatBoost
		}
		if score > bestScore {
			best, bestScore = enemy, score
		}
	}
	id := best.ID
	return &id
}
