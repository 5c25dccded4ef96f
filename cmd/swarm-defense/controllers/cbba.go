package controllers

import (
	"math"
	"sync"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

// EngagementMode is the local-superiority assessment of a drone against its target
type EngagementMode int

const (
	EngageImmediately EngagementMode = iota + 1
	EngageAggressive
	EngageCautious
	WaitForSupport
	Disengage
)

func (m EngagementMode) String() string {
	switch m {
	case EngageImmediately:
		return "ENGAGE_IMMEDIATELY"
	case EngageAggressive:
		return "ENGAGE_AGGRESSIVE"
	case EngageCautious:
		return "ENGAGE_CAUTIOUS"
	case WaitForSupport:
		return "WAIT_FOR_SUPPORT"
	case Disengage:
		return "DISENGAGE"
	default:
		return "UNKNOWN"
	}
}

// attraction scales the pull toward the target; disengaging drones back off
func (m EngagementMode) attraction() float64 {
	switch m {
	case EngageImmediately, EngageAggressive:
		return 1.0
	case EngageCautious:
		return 0.8
	case WaitForSupport:
		return 0.5
	case Disengage:
		return -0.5
	default:
		return 0
	}
}

// EngagementModeFor classifies a local force ratio. Ground targets are always
// engaged immediately.
func EngagementModeFor(groundTarget bool, friendliesNearby, enemiesNearby int, distance, firingRange float64) EngagementMode {
	if groundTarget {
		return EngageImmediately
	}
	ratio := float64(friendliesNearby) / math.Max(float64(enemiesNearby), 1)
	switch {
	case ratio >= 1.5 || distance < firingRange*0.5:
		return EngageAggressive
	case ratio >= 1.0:
		return EngageCautious
	case ratio >= 0.5 || distance < firingRange:
		return WaitForSupport
	default:
		return Disengage
	}
}

// Consensus bidding constants
const (
	cbbaMaxAmmo       = 100.0
	cbbaMaxFuel       = 1000.0
	cbbaMaxRange      = 500.0
	cbbaBundleSize    = 3
	cbbaKAttract      = 10.0
	cbbaKRepel        = 50.0
	cbbaSafeDistance  = 10.0
	cbbaFuelBurnRate  = 0.1
	cbbaUrgentImpactS = 10.0
)

type cbbaState struct {
	ammo   float64
	fuel   float64
	bundle []int
	bids   map[int]float64
	mode   EngagementMode

	buildCalls      int
	bundleAdditions int
	resolveCalls    int
	greedyCalls     int
}

// CBBA assigns targets by consensus bundles when communication is enabled and
// by round-robin greedy coverage otherwise, then moves with potential fields
// scaled by the local engagement mode.
type CBBA struct {
	*base

	mu    sync.Mutex
	arena map[int]*cbbaState
}

func newCBBA(key string, p Params, opts buildOptions) *CBBA {
	return &CBBA{base: newBase(key, p, opts), arena: make(map[int]*cbbaState)}
}

// state returns the arena entry for a drone. Callers hold c.mu.
func (c *CBBA) state(id int) *cbbaState {
	st, ok := c.arena[id]
	if !ok {
		st = &cbbaState{ammo: cbbaMaxAmmo, fuel: cbbaMaxFuel, bids: map[int]float64{}, mode: WaitForSupport}
		c.arena[id] = st
	}
	return st
}

// TaskValue is the bid a drone with the given resources places on an enemy
func TaskValue(pos core.Vector3D, ammo, fuel float64, enemy *core.Drone, assets []*core.GroundAsset) float64 {
	base := 150.0
	if enemy.IsGround() {
		tti, _ := timeToImpact(enemy, assets)
		if tti < cbbaUrgentImpactS {
			base = 1500
		} else {
			base = 800
		}
	}
	distanceFactor := 1 / (1 + pos.DistanceTo(enemy.Position)/cbbaMaxRange)
	resources := math.Min(ammo/cbbaMaxAmmo, fuel/cbbaMaxFuel)
	return base * distanceFactor * resources
}

func (c *CBBA) buildBundle(st *cbbaState, drone *core.Drone, enemies []*core.Drone, assets []*core.GroundAsset) {
	st.buildCalls++
	st.bundle = st.bundle[:0]
	st.bids = make(map[int]float64, cbbaBundleSize)
	for len(st.bundle) < cbbaBundleSize {
		bestValue := 0.0
		var best *core.Drone
		for _, e := range enemies {
			if _, taken := st.bids[e.ID]; taken {
				continue
			}
			if v := TaskValue(drone.Position, st.ammo, st.fuel, e, assets); v > bestValue {
				best, bestValue = e, v
			}
		}
		if best == nil {
			break
		}
		st.bundle = append(st.bundle, best.ID)
		st.bids[best.ID] = bestValue
		st.bundleAdditions++
	}
}

// resolveConflicts drops every task a neighbour outbids. Equal bids go to the
// lower drone id.
func resolveConflicts(myID int, st *cbbaState, neighbourID int, neighbour *cbbaState) {
	st.resolveCalls++
	kept := st.bundle[:0]
	for _, task := range st.bundle {
		theirs, contested := neighbour.bids[task]
		mine := st.bids[task]
		if contested && (theirs > mine || (theirs == mine && neighbourID < myID)) {
			delete(st.bids, task)
			continue
		}
		kept = append(kept, task)
	}
	st.bundle = kept
}

// greedy is the communication-free assignment: the best scoring primary when
// the drone has one, else the best scoring enemy overall.
func (c *CBBA) greedy(st *cbbaState, drone *core.Drone, view coverageView, assets []*core.GroundAsset) *core.Drone {
	st.greedyCalls++
	var bestPrimary, bestAny *core.Drone
	bestPrimaryScore, bestAnyScore := 0.0, 0.0
	for i, e := range view.enemies {
		hashBoost := 1 + AssignmentHash(drone.ID, e.ID)/1000*0.5
		myDist := drone.Position.DistanceTo(e.Position)

		var priority float64
		if e.IsGround() {
			tti, minDist := timeToImpact(e, assets)
			if tti < cbbaUrgentImpactS {
				priority = 1500 / math.Max(tti, 0.1)
			} else {
				priority = 150 / math.Max(minDist, 1)
			}
		} else {
			priority = 60 / math.Max(myDist, 1)
		}
		score := priority * hashBoost * (100 / math.Max(myDist, 1))

		if view.isPrimary(i, view.droneIndex) {
			score += PrimaryBoost
			if score > bestPrimaryScore {
				bestPrimary, bestPrimaryScore = e, score
			}
		}
		if score > bestAnyScore {
			bestAny, bestAnyScore = e, score
		}
	}
	if bestPrimary != nil {
		return bestPrimary
	}
	if bestAny != nil {
		return bestAny
	}
	nearest, _ := core.NearestActive(drone.Position, view.enemies)
	return nearest
}

func (c *CBBA) SelectTarget(drone *core.Drone, enemies []*core.Drone, assets []*core.GroundAsset, friendlies []*core.Drone) *int {
	view := newCoverageView(drone, enemies, friendlies)
	if len(view.enemies) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state(drone.ID)

	if c.opts.communication {
		c.buildBundle(st, drone, view.enemies, assets)
		for _, f := range view.friendlies {
			if f.ID == drone.ID || drone.Position.DistanceTo(f.Position) > c.opts.commRange {
				continue
			}
			if neighbour, ok := c.arena[f.ID]; ok && len(neighbour.bundle) > 0 {
				resolveConflicts(drone.ID, st, f.ID, neighbour)
			}
		}
		// a drone that owns an enemy round-robin keeps it, whatever the bundle says
		owned := view.primaries(view.droneIndex)
		for _, task := range st.bundle {
			if len(owned) == 0 || owned[task] {
				id := task
				return &id
			}
		}
	}

	target := c.greedy(st, drone, view, assets)
	if target == nil {
		return nil
	}
	id := target.ID
	return &id
}

// AssessEngagement counts living friendlies and enemies within twice the
// firing range of the target and classifies the drone's situation.
func (c *CBBA) AssessEngagement(drone, target *core.Drone, enemies, friendlies []*core.Drone) EngagementMode {
	if target == nil {
		return WaitForSupport
	}
	radius := 2 * c.params.WeaponRange
	near := func(drones []*core.Drone) int {
		n := 0
		for _, d := range drones {
			if d.IsActive() && d.Position.DistanceTo(target.Position) < radius {
				n++
			}
		}
		return n
	}
	return EngagementModeFor(target.IsGround(), near(friendlies), near(enemies),
		drone.Position.DistanceTo(target.Position), c.params.WeaponRange)
}

func (c *CBBA) ComputeDesiredVelocity(drone *core.Drone, enemies []*core.Drone, assets []*core.GroundAsset, friendlies []*core.Drone) core.Vector3D {
	target := core.FindDrone(enemies, drone.TargetID)
	mode := c.AssessEngagement(drone, target, enemies, friendlies)

	c.mu.Lock()
	c.state(drone.ID).mode = mode
	c.mu.Unlock()

	var force core.Vector3D
	if target != nil {
		offset := target.Position.Subtract(drone.Position)
		if d := offset.Magnitude(); d > 0 {
			force = force.Add(offset.Scale(cbbaKAttract * mode.attraction() / d))
		}
	}
	for _, f := range friendlies {
		if f.ID == drone.ID || !f.IsActive() {
			continue
		}
		away := drone.Position.Subtract(f.Position)
		d := away.Magnitude()
		if d > 0 && d < cbbaSafeDistance*3 {
			force = force.Add(away.Scale(cbbaKRepel / (d*d + 0.1) / d))
		}
	}
	return force.ClampMagnitude(c.params.MaxSpeed)
}

// RecordShot spends one round of the drone's ammunition
func (c *CBBA) RecordShot(droneID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state(droneID)
	st.ammo = math.Max(0, st.ammo-1)
}

// RecordMotion burns fuel proportional to the distance flown
func (c *CBBA) RecordMotion(droneID int, velocity core.Vector3D, dt float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state(droneID)
	st.fuel = math.Max(0, st.fuel-velocity.Magnitude()*dt*cbbaFuelBurnRate)
}

// Resources returns a drone's remaining ammunition and fuel
func (c *CBBA) Resources(droneID int) (float64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state(droneID)
	return st.ammo, st.fuel
}

// Mode returns the engagement mode computed for a drone on its last update
func (c *CBBA) Mode(droneID int) EngagementMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state(droneID).mode
}

// Telemetry reports consensus rounds, the mean standing bid and bundle growth
func (c *CBBA) Telemetry() Telemetry {
	c.mu.Lock()
	defer c.mu.Unlock()
	rounds, additions, bids := 0, 0, 0
	bidSum := 0.0
	for _, st := range c.arena {
		rounds += st.resolveCalls + st.greedyCalls
		additions += st.bundleAdditions
		for _, b := range st.bids {
			bidSum += b
			bids++
		}
	}
	avg := 0.1
	if bids > 0 && bidSum > 0 {
		avg = bidSum / float64(bids)
	}
	if additions == 0 {
		additions = 1
	}
	return Telemetry{IterationCount: rounds, FieldStrength: avg, ScoutCount: additions}
}
