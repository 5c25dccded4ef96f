// Package simulation runs swarm-vs-swarm scenarios: it spawns both sides,
// drives the selected swarm controller every tick, resolves combat and
// records frame history.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/config"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/controllers"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
	"github.com/picogrid/swarm-defense/pkg/logger"
)

// ErrNotInitialized is returned when a scenario is run before Initialize
var ErrNotInitialized = errors.New("scenario not initialized")

// Tick constants
const (
	roleRerollChance   = 0.3
	velocityMemory     = 0.3
	altitudeFloor      = 20.0
	groundEnemySpeed   = 40.0
	airEnemySpeed      = 45.0
	enemySpawnSpeed    = 40.0
	enemyChaseMinDist  = 20.0
	enemyIDOffset      = 1000
	progressLogSeconds = 5
	combatSeedSalt     = 0x5eed
)

// ScenarioState describes a freshly initialized scenario
type ScenarioState struct {
	ScenarioID     uuid.UUID
	Algorithm      string
	FellBack       bool
	Seed           int64
	Degraded       bool
	FriendlyHealth float64
	MaxSteps       int
	Frame          Frame
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithScenarioID sets the scenario id. Without an explicit seed the id also
// determines the seed.
func WithScenarioID(id uuid.UUID) EngineOption {
	return func(e *Engine) { e.scenarioID = id }
}

// WithEventRecorder reports spawns, kills and asset damage to r
func WithEventRecorder(r EventRecorder) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithFactory builds the controller from a custom factory
func WithFactory(f *controllers.Factory) EngineOption {
	return func(e *Engine) {
		if f != nil {
			e.factory = f
		}
	}
}

// WithCombatBalance replaces the balance derived from the scenario's combat section
func WithCombatBalance(b config.CombatBalance) EngineOption {
	return func(e *Engine) { e.balance = &b }
}

// DeriveSeed maps a scenario id to a reproducible non-negative seed
func DeriveSeed(id uuid.UUID) int64 {
	return int64(xxhash.Sum64(id[:]) >> 1)
}

// Engine owns every drone, asset and recorded frame of one scenario. Step is
// meant to be called from a single goroutine; the read accessors are safe to
// call concurrently with it.
type Engine struct {
	cfg        *config.ScenarioConfig
	scenarioID uuid.UUID
	seed       int64

	factory    *controllers.Factory
	balance    *config.CombatBalance
	recorder   EventRecorder
	controller controllers.Controller
	shots      controllers.ShotRecorder
	motion     controllers.MotionRecorder
	fellBack   bool

	combat   *core.EngagementCalculator
	profile  config.Profile
	degraded bool
	rng      *rand.Rand

	friendlies []*core.Drone
	enemies    []*core.Drone
	assets     []*core.GroundAsset

	time        float64
	dt          float64
	steps       int
	initialized bool
	history     []Frame

	mu sync.RWMutex
}

// NewEngine validates cfg and builds the engine with its swarm controller.
// The config is copied; later changes to cfg do not affect the engine.
func NewEngine(cfg *config.ScenarioConfig, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultScenarioConfig()
	}
	c := cfg.Clone()
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	e := &Engine{
		cfg:      c,
		recorder: nopRecorder{},
		dt:       c.TimeStep,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.scenarioID == uuid.Nil {
		e.scenarioID = uuid.New()
	}
	if c.Seed != nil {
		e.seed = *c.Seed
	} else {
		e.seed = DeriveSeed(e.scenarioID)
	}
	if e.factory == nil {
		e.factory = controllers.NewFactory(controllers.DefaultPresets())
	}
	if e.balance == nil {
		b := c.Combat.Balance()
		e.balance = &b
	}

	if err := e.buildController(); err != nil {
		return nil, err
	}
	return e, nil
}

// buildController makes a fresh swarm controller seeded from the scenario
// seed, dropping any per-drone state a previous run left behind.
func (e *Engine) buildController() error {
	c := e.cfg
	_, e.fellBack = e.factory.Resolve(c.SwarmAlgorithm)
	controller, err := e.factory.Build(c.SwarmAlgorithm, controllers.Overrides{
		MaxSpeed:       c.MaxSpeed,
		WeaponRange:    c.WeaponRange,
		DetectionRange: c.DetectionRange,
	},
		controllers.WithRand(rand.New(rand.NewSource(e.seed+1))),
		controllers.WithTimeStep(c.TimeStep),
		controllers.WithCommunication(c.Communication, c.CommRange),
	)
	if err != nil {
		return fmt.Errorf("failed to build swarm controller: %w", err)
	}
	e.controller = controller
	e.shots, _ = controller.(controllers.ShotRecorder)
	e.motion, _ = controller.(controllers.MotionRecorder)
	return nil
}

// Initialize spawns assets, the friendly formation and the enemy ring.
// Calling it again resets the scenario to its starting state, controller
// included.
func (e *Engine) Initialize() (*ScenarioState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		if err := e.buildController(); err != nil {
			return nil, err
		}
	}

	e.rng = rand.New(rand.NewSource(e.seed))
	combatRng := rand.New(rand.NewSource(e.seed ^ combatSeedSalt))

	key := e.controller.Key()
	params := e.controller.Params()
	e.profile, e.degraded = e.balance.ProfileFor(key).Resolve(combatRng.Float64())
	e.combat = core.NewEngagementCalculator(e.profile.HitProfile(), e.balance.Enemy, e.balance.GroundChip, params.WeaponRange, combatRng)
	if e.degraded {
		logger.Warnf("Scenario %s runs degraded %s combat (hit %.2f, damage %.0f-%.0f)",
			e.scenarioID, key, e.profile.HitChance, e.profile.DamageMin, e.profile.DamageMax)
	}

	e.time = 0
	e.steps = 0
	e.history = nil
	e.assets = make([]*core.GroundAsset, 0, len(e.cfg.Assets))
	e.friendlies = make([]*core.Drone, 0, e.cfg.FriendlyCount)
	e.enemies = make([]*core.Drone, 0, e.cfg.EnemyCount)

	for i, ac := range e.cfg.Assets {
		e.assets = append(e.assets, core.NewGroundAsset(i, ac.Position, ac.Value))
	}

	var anchor core.Vector3D
	if len(e.assets) > 0 {
		anchor = e.assets[0].Position
	}
	for i := 0; i < e.cfg.FriendlyCount; i++ {
		pos, vel := e.controller.SpawnFriendly(i, e.cfg.FriendlyCount, anchor)
		d := core.NewFriendlyDrone(i, pos, vel, "", e.profile.FriendlyHealth)
		d.Role = e.controller.UpdateRole(d, e.enemies, e.assets)
		e.friendlies = append(e.friendlies, d)
		e.recorder.LogSpawn(d.ID, TeamFriendly, string(d.Type), d.Position)
	}

	for i := 0; i < e.cfg.EnemyCount; i++ {
		d := e.spawnEnemy(i)
		e.enemies = append(e.enemies, d)
		e.recorder.LogSpawn(d.ID, TeamEnemy, string(d.Type), d.Position)
	}

	e.initialized = true
	logger.Infof("Scenario %s: %d friendlies (%s) vs %d enemies, seed %d",
		e.scenarioID, len(e.friendlies), key, len(e.enemies), e.seed)

	return &ScenarioState{
		ScenarioID:     e.scenarioID,
		Algorithm:      key,
		FellBack:       e.fellBack,
		Seed:           e.seed,
		Degraded:       e.degraded,
		FriendlyHealth: e.profile.FriendlyHealth,
		MaxSteps:       e.cfg.MaxSteps(),
		Frame:          snapshot(e.time, e.friendlies, e.enemies, e.assets),
	}, nil
}

// spawnEnemy places enemy i on a 1000-1400 m ring around the first asset,
// heading for that asset (ground) or the first friendly (air).
func (e *Engine) spawnEnemy(i int) *core.Drone {
	var pos core.Vector3D
	if len(e.assets) > 0 {
		angle := e.rng.Float64() * 2 * math.Pi
		dist := 1000 + e.rng.Float64()*400
		alt := 50 + e.rng.Float64()*50
		pos = e.assets[0].Position.Add(core.Vec(dist*math.Cos(angle), alt, dist*math.Sin(angle)))
	} else {
		pos = core.Vec(e.rng.NormFloat64()*1000, e.rng.NormFloat64()*1000, e.rng.NormFloat64()*1000)
		pos.Y = math.Abs(pos.Y) + 50
	}

	t := core.DroneTypeEnemyAir
	if e.rng.Float64() < e.cfg.GroundAttackRatio {
		t = core.DroneTypeEnemyGround
	}

	var target core.Vector3D
	switch {
	case t == core.DroneTypeEnemyGround && len(e.assets) > 0:
		target = e.assets[0].Position
	case len(e.friendlies) > 0:
		target = e.friendlies[0].Position
	}
	vel := target.Subtract(pos).Normalize().Scale(enemySpawnSpeed)

	return core.NewEnemyDrone(i+enemyIDOffset, pos, vel, t, core.DefaultEnemyHealth)
}

// Step advances the scenario by one tick: friendly decisions, enemy AI,
// integration, combat. With record set the resulting state is appended to
// the frame history. Step does nothing before Initialize.
func (e *Engine) Step(record bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return
	}

	for _, d := range e.friendlies {
		if !d.IsActive() {
			continue
		}
		if e.rng.Float64() < roleRerollChance {
			d.Role = e.controller.UpdateRole(d, e.enemies, e.assets)
		}
		d.SetTarget(e.controller.SelectTarget(d, e.enemies, e.assets, e.friendlies))
		desired := e.controller.ComputeDesiredVelocity(d, e.enemies, e.assets, e.friendlies)
		d.Velocity = d.Velocity.Scale(velocityMemory).Add(desired.Scale(1 - velocityMemory))
	}

	e.updateEnemyBehavior()

	for _, d := range e.friendlies {
		if d.IsActive() {
			e.integrate(d)
			if e.motion != nil {
				e.motion.RecordMotion(d.ID, d.Velocity, e.dt)
			}
		}
	}
	for _, d := range e.enemies {
		if d.IsActive() {
			e.integrate(d)
		}
	}

	kills := e.resolveFriendlyFire()
	e.resolveEnemyFire()

	e.time += e.dt
	e.steps++

	if whole := int(e.time); whole%progressLogSeconds == 0 && e.time-e.dt < float64(whole) {
		logger.Debugf("t=%.1fs friendlies %d/%d enemies %d/%d",
			e.time, core.CountActive(e.friendlies), len(e.friendlies), core.CountActive(e.enemies), len(e.enemies))
	}
	if kills > 0 {
		logger.Debugf("%d enemy destroyed, %d remaining", kills, core.CountActive(e.enemies))
	}

	if record {
		e.history = append(e.history, snapshot(e.time, e.friendlies, e.enemies, e.assets))
	}
}

func (e *Engine) integrate(d *core.Drone) {
	d.Position = d.Position.Add(d.Velocity.Scale(e.dt))
	if d.Position.Y < altitudeFloor {
		d.Position.Y = altitudeFloor
	}
}

// updateEnemyBehavior steers ground enemies at their nearest asset and air
// enemies at the nearest living friendly. Enemies already within 20 m keep
// their velocity.
func (e *Engine) updateEnemyBehavior() {
	for _, d := range e.enemies {
		if !d.IsActive() {
			continue
		}
		var target core.Vector3D
		var speed float64
		if d.IsGround() {
			asset, _ := core.NearestAsset(d.Position, e.assets)
			if asset == nil {
				continue
			}
			target, speed = asset.Position, groundEnemySpeed
		} else {
			f, _ := core.NearestActive(d.Position, e.friendlies)
			if f == nil {
				continue
			}
			target, speed = f.Position, airEnemySpeed
		}
		dir := target.Subtract(d.Position)
		if dir.Magnitude() > enemyChaseMinDist {
			d.Velocity = dir.Normalize().Scale(speed)
		}
	}
}

func (e *Engine) resolveFriendlyFire() int {
	kills := 0
	for _, f := range e.friendlies {
		if !f.IsActive() {
			continue
		}
		target := core.FindDrone(e.enemies, f.TargetID)
		if target == nil {
			continue
		}
		result := e.combat.CalculateEngagement(f, target)
		if result.InRange && e.shots != nil {
			e.shots.RecordShot(f.ID)
		}
		if result.Killed {
			kills++
			e.recorder.LogDestruction(target.ID, TeamEnemy, f.ID, e.time)
		}
	}
	return kills
}

func (e *Engine) resolveEnemyFire() {
	for _, enemy := range e.enemies {
		if !enemy.IsActive() {
			continue
		}
		if asset, dmg := e.combat.ChipAsset(enemy, e.assets); dmg > 0 {
			e.recorder.LogAssetDamage(asset.ID, enemy.ID, dmg, asset.Health, e.time)
		}
		nearest, _ := core.NearestActive(enemy.Position, e.friendlies)
		if nearest == nil {
			continue
		}
		if result := e.combat.CalculateEngagement(enemy, nearest); result.Killed {
			e.recorder.LogDestruction(nearest.ID, TeamFriendly, enemy.ID, e.time)
		}
	}
}

// IsComplete reports whether either side is wiped out or max_time has passed
func (e *Engine) IsComplete() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return core.CountActive(e.friendlies) == 0 ||
		core.CountActive(e.enemies) == 0 ||
		e.time > e.cfg.MaxTime
}

// Run steps the scenario until it completes, the step budget is spent or
// ctx is cancelled. Every stride-th step (and the last) is recorded; progress,
// when non-nil, is called after each step.
func (e *Engine) Run(ctx context.Context, stride int, progress func(step int)) error {
	e.mu.RLock()
	ready := e.initialized
	e.mu.RUnlock()
	if !ready {
		return ErrNotInitialized
	}
	if stride < 1 {
		stride = 1
	}

	maxSteps := e.MaxSteps()
	for step := 1; step <= maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		recorded := step%stride == 0
		e.Step(recorded)
		if progress != nil {
			progress(step)
		}
		if done := e.IsComplete(); done || step == maxSteps {
			if !recorded {
				e.recordFrame()
			}
			break
		}
	}
	e.reportTeams()
	return nil
}

func (e *Engine) recordFrame() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, snapshot(e.time, e.friendlies, e.enemies, e.assets))
}

func (e *Engine) reportTeams() {
	e.mu.RLock()
	defer e.mu.RUnlock()
	active := core.CountActive(e.friendlies)
	e.recorder.LogTeamStatus(TeamFriendly, active, len(e.friendlies), len(e.friendlies)-active)
	active = core.CountActive(e.enemies)
	e.recorder.LogTeamStatus(TeamEnemy, active, len(e.enemies), len(e.enemies)-active)
}

// Statistics computes the scenario statistics from the current state
func (e *Engine) Statistics() Statistics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return ComputeStatistics(e.time, e.friendlies, e.enemies, e.assets)
}

// FrameHistory returns every recorded frame. Frames are never mutated, so
// the returned slice may be read while the scenario keeps running.
func (e *Engine) FrameHistory() []Frame {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.history[:len(e.history):len(e.history)]
}

// Frames returns recorded frames [start, end) with clamped bounds
func (e *Engine) Frames(start, end int) []Frame {
	return SliceFrames(e.FrameHistory(), start, end)
}

// FrameCount is the number of recorded frames
func (e *Engine) FrameCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.history)
}

// Snapshot captures the current state without recording it
func (e *Engine) Snapshot() Frame {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return snapshot(e.time, e.friendlies, e.enemies, e.assets)
}

// AlgorithmTelemetry returns the controller's activity counters
func (e *Engine) AlgorithmTelemetry() controllers.Telemetry {
	return e.controller.Telemetry()
}

// MoveAsset relocates asset i. Out-of-range indexes are ignored.
func (e *Engine) MoveAsset(i int, pos core.Vector3D) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i >= 0 && i < len(e.assets) {
		e.assets[i].Position = pos
	}
}

// Counts returns active and total drones per side
func (e *Engine) Counts() (activeFriendly, totalFriendly, activeEnemy, totalEnemy int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return core.CountActive(e.friendlies), len(e.friendlies), core.CountActive(e.enemies), len(e.enemies)
}

// Time is the simulated time in seconds
func (e *Engine) Time() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.time
}

// Steps is the number of ticks taken so far
func (e *Engine) Steps() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.steps
}

func (e *Engine) TimeStep() float64 {
	return e.dt
}

// MaxSteps is the step budget max_time / time_step
func (e *Engine) MaxSteps() int {
	return e.cfg.MaxSteps()
}

// Config returns a copy of the validated scenario configuration
func (e *Engine) Config() *config.ScenarioConfig {
	return e.cfg.Clone()
}

func (e *Engine) ScenarioID() uuid.UUID {
	return e.scenarioID
}

func (e *Engine) Seed() int64 {
	return e.seed
}

// Algorithm is the canonical key of the controller actually running
func (e *Engine) Algorithm() string {
	return e.controller.Key()
}

// Degraded reports whether the scenario rolled the degraded combat profile
func (e *Engine) Degraded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.degraded
}
