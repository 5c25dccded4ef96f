package controllers

import (
	"math"
	"sort"
	"sync"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

// DensityField parameters for the coverage strategy
type DensityField struct {
	Alpha   float64 // asset importance
	Beta    float64 // threat importance
	Sigma1  float64 // asset radius
	Sigma2  float64 // threat radius
	Epsilon float64 // background density
}

// DefaultDensityField returns the stock density parameters
func DefaultDensityField() DensityField {
	return DensityField{Alpha: 200, Beta: 100, Sigma1: 100, Sigma2: 50, Epsilon: 0.01}
}

// At evaluates φ(q) for the given assets and living threats
func (f DensityField) At(q core.Vector3D, assets []*core.GroundAsset, threats []*core.Drone) float64 {
	density := f.Epsilon
	for _, a := range assets {
		d := q.DistanceTo(a.Position)
		density += f.Alpha * math.Exp(-d*d/(2*f.Sigma1*f.Sigma1))
	}
	for _, t := range threats {
		d := q.DistanceTo(t.Position)
		density += f.Beta * math.Exp(-d*d/(2*f.Sigma2*f.Sigma2))
	}
	return density
}

// Coverage and barrier constants
const (
	cvtObservationRange = 500.0
	cvtKProp            = 2.0
	cvtRMax             = 500.0
	cvtDSafe            = 10.0
	cvtRepulsion        = 5.0
	cvtUrgencyWindowS   = 15.0
	cvtDefenseWindowS   = 10.0
	cvtDefaultSamples   = 50
)

// Bounds is the battlefield extent sampled for Voronoi cells: X and Z are
// horizontal spans centred on the origin, Altitude runs from the ground up.
type Bounds struct {
	X, Altitude, Z float64
}

// SampleGrid returns the deterministic 10x10x5 sample lattice every drone shares
func SampleGrid(b Bounds) []core.Vector3D {
	linspace := func(lo, hi float64, n int) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
		}
		return out
	}
	grid := make([]core.Vector3D, 0, 10*10*5)
	for _, x := range linspace(-b.X/2, b.X/2, 10) {
		for _, z := range linspace(-b.Z/2, b.Z/2, 10) {
			for _, y := range linspace(0, b.Altitude, 5) {
				grid = append(grid, core.Vec(x, y, z))
			}
		}
	}
	return grid
}

type cvtCandidate struct {
	enemy    *core.Drone
	priority float64
	primary  bool
}

// CVTCBF positions drones at the density-weighted centroids of their Voronoi
// cells, pulls them toward intercepts of their own threats, and filters the
// result through barrier constraints.
type CVTCBF struct {
	*base
	density DensityField
	grid    []core.Vector3D

	mu            sync.Mutex
	centroidCalls int
	sampleCount   int
	corrections   int
}

func newCVTCBF(key string, p Params, opts buildOptions) *CVTCBF {
	return &CVTCBF{
		base:    newBase(key, p, opts),
		density: DefaultDensityField(),
		grid:    SampleGrid(Bounds{X: 1000, Altitude: 200, Z: 1000}),
	}
}

func (c *CVTCBF) SelectTarget(drone *core.Drone, enemies []*core.Drone, assets []*core.GroundAsset, friendlies []*core.Drone) *int {
	return selectByCoverage(c.params, drone, enemies, assets, friendlies)
}

func ownershipScore(droneID, enemyID int, dist float64, primary bool) float64 {
	weight := 1.0
	if primary {
		weight = 10
	}
	return weight * (AssignmentHash(droneID, enemyID) + (100/math.Max(dist, 1))*10)
}

// candidates lists the enemies this drone takes: its primaries, non-primaries
// it outscores every other friendly on, and nearby ground threats as support.
func (c *CVTCBF) candidates(drone *core.Drone, view coverageView) []cvtCandidate {
	var out []cvtCandidate
	for i, e := range view.enemies {
		myDist := drone.Position.DistanceTo(e.Position)
		primary := view.isPrimary(i, view.droneIndex)
		myScore := ownershipScore(drone.ID, e.ID, myDist, primary)

		take := primary
		if !primary {
			take = true
			for fi, f := range view.friendlies {
				if f.ID == drone.ID {
					continue
				}
				other := ownershipScore(f.ID, e.ID, f.Position.DistanceTo(e.Position), view.isPrimary(i, fi))
				if other > myScore {
					take = false
					break
				}
			}
		}

		weight := 1.0
		if primary {
			weight = 10
		}
		switch {
		case take:
			priority := weight
			if myDist >= 200 {
				priority = weight * 0.7
			}
			out = append(out, cvtCandidate{enemy: e, priority: priority, primary: primary})
		case e.IsGround() && myDist < 300:
			out = append(out, cvtCandidate{enemy: e, priority: 0.5})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].primary != out[j].primary {
			return out[i].primary
		}
		return out[i].priority > out[j].priority
	})
	return out
}

// VoronoiCell returns the grid points no observable friendly is closer to
func (c *CVTCBF) VoronoiCell(drone *core.Drone, friendlies []*core.Drone) []core.Vector3D {
	var observed []core.Vector3D
	for _, f := range friendlies {
		if f.ID == drone.ID || !f.IsActive() {
			continue
		}
		if f.Position.DistanceTo(drone.Position) <= cvtObservationRange {
			observed = append(observed, f.Position)
		}
	}

	var cell []core.Vector3D
	for _, q := range c.grid {
		mine := drone.Position.DistanceTo(q)
		owned := true
		for _, o := range observed {
			if o.DistanceTo(q) < mine {
				owned = false
				break
			}
		}
		if owned {
			cell = append(cell, q)
		}
	}
	if len(cell) == 0 {
		return []core.Vector3D{drone.Position}
	}
	return cell
}

// Centroid is the density-weighted mean of the cell samples
func (c *CVTCBF) Centroid(cell []core.Vector3D, fallback core.Vector3D, assets []*core.GroundAsset, threats []*core.Drone) core.Vector3D {
	var sum core.Vector3D
	mass := 0.0
	for _, q := range cell {
		phi := c.density.At(q, assets, threats)
		sum = sum.Add(q.Scale(phi))
		mass += phi
	}

	c.mu.Lock()
	c.centroidCalls++
	c.sampleCount += len(cell)
	c.mu.Unlock()

	if mass <= 0 {
		return fallback
	}
	return sum.Scale(1 / mass)
}

func (c *CVTCBF) ComputeDesiredVelocity(drone *core.Drone, enemies []*core.Drone, assets []*core.GroundAsset, friendlies []*core.Drone) core.Vector3D {
	view := newCoverageView(drone, enemies, friendlies)
	mine := c.candidates(drone, view)

	centroid := c.Centroid(c.VoronoiCell(drone, friendlies), drone.Position, assets, view.enemies)
	strategic := centroid.Subtract(drone.Position).Scale(cvtKProp)

	var tactical core.Vector3D
	urgency := 0.0
	if len(mine) > 0 {
		top := mine[0]
		e := top.enemy
		speed := e.Velocity.Magnitude()

		interceptTime := 0.5
		if e.IsGround() && len(assets) > 0 && speed > 0 {
			interceptTime = math.Min(e.Position.DistanceTo(assets[0].Position)/speed*0.3, 1)
		}
		intercept := e.Position.Add(e.Velocity.Scale(interceptTime))
		tactical = intercept.Subtract(drone.Position).Scale(4 * top.priority)
		urgency = threatUrgency(top, assets)
	}
	nominal := strategic.Scale(1 - urgency).Add(tactical.Scale(urgency))

	return c.SafetyFilter(drone, nominal, assets, view.friendlies, view.enemies)
}

// threatUrgency is the tactical share of the command for a drone's top
// candidate: it rises linearly as a ground threat closes on an asset and is
// at least 0.8 for a primary.
func threatUrgency(top cvtCandidate, assets []*core.GroundAsset) float64 {
	urgency := 0.0
	e := top.enemy
	if speed := e.Velocity.Magnitude(); e.IsGround() && speed > 0 {
		for _, a := range assets {
			if t := e.Position.DistanceTo(a.Position) / speed; t < cvtUrgencyWindowS {
				urgency = math.Max(urgency, 1-t/cvtUrgencyWindowS)
			}
		}
	}
	if top.primary {
		urgency = math.Max(urgency, 0.8)
	}
	return math.Max(0, math.Min(1, urgency))
}

// SafetyFilter applies the barrier constraints to a nominal command: stay
// within range of the nearest asset, keep clear of neighbours, and send the
// closest defender at urgent ground threats. The result never exceeds MaxSpeed.
func (c *CVTCBF) SafetyFilter(drone *core.Drone, u core.Vector3D, assets []*core.GroundAsset, friendlies, threats []*core.Drone) core.Vector3D {
	maxSpeed := c.params.MaxSpeed

	if asset, d := core.NearestAsset(drone.Position, assets); asset != nil && d > cvtRMax {
		return asset.Position.Subtract(drone.Position).Normalize().Scale(maxSpeed)
	}

	corrections := 0
	for _, f := range friendlies {
		if f.ID == drone.ID {
			continue
		}
		away := drone.Position.Subtract(f.Position)
		d := away.Magnitude()
		if d < cvtDSafe*2 {
			u = u.Add(away.Scale(cvtRepulsion / math.Max(d, 0.1)))
			corrections++
		}
	}
	if corrections > 0 {
		c.mu.Lock()
		c.corrections += corrections
		c.mu.Unlock()
	}

	for _, t := range threats {
		speed := t.Velocity.Magnitude()
		if !t.IsGround() || speed <= 0 {
			continue
		}
		asset, dist := core.NearestAsset(t.Position, assets)
		if asset == nil || dist/speed >= cvtDefenseWindowS {
			continue
		}
		myDist := drone.Position.DistanceTo(t.Position)
		closest := true
		for _, f := range friendlies {
			if f.ID != drone.ID && f.Position.DistanceTo(t.Position) < myDist {
				closest = false
				break
			}
		}
		if !closest {
			continue
		}
		intercept := t.Position.Add(t.Velocity.Scale(dist / speed * 0.5))
		if dir := intercept.Subtract(drone.Position); dir.Magnitude() > 0 {
			u = dir.Normalize().Scale(maxSpeed * 1.5)
		}
	}

	return u.ClampMagnitude(maxSpeed)
}

// Telemetry reports centroid computations, threat density weight, sampled
// cell points and how many neighbour corrections the barrier applied
func (c *CVTCBF) Telemetry() Telemetry {
	c.mu.Lock()
	defer c.mu.Unlock()
	calls, samples := c.centroidCalls, c.sampleCount
	if calls == 0 {
		calls = 1
	}
	if samples == 0 {
		samples = cvtDefaultSamples
	}
	return Telemetry{
		IterationCount:    calls,
		FieldStrength:     c.density.Beta,
		ScoutCount:        samples,
		SafetyCorrections: c.corrections,
	}
}
