package core

import (
	"math"
	"math/rand"
	"sync"
)

// HitProfile describes one side's shooting: hit chance at point blank, how
// much of it is lost at full weapon range, and the uniform damage band.
type HitProfile struct {
	HitChance    float64 `yaml:"hit_chance" json:"hit_chance"`
	RangeFalloff float64 `yaml:"range_falloff" json:"range_falloff"`
	DamageMin    float64 `yaml:"damage_min" json:"damage_min"`
	DamageMax    float64 `yaml:"damage_max" json:"damage_max"`
}

// ChipProfile describes ground enemies chipping at an asset they have reached.
type ChipProfile struct {
	Range     float64 `yaml:"range" json:"range"`
	Chance    float64 `yaml:"chance" json:"chance"`
	DamageMin float64 `yaml:"damage_min" json:"damage_min"`
	DamageMax float64 `yaml:"damage_max" json:"damage_max"`
}

// EngagementResult is the outcome of one shot
type EngagementResult struct {
	AttackerID int
	TargetID   int
	Distance   float64
	InRange    bool
	Hit        bool
	Damage     float64
	Killed     bool
}

// EngagementCalculator resolves drone-vs-drone shots and asset chip damage.
// Rolls come from its own random source so combat variance stays isolated
// from spawn and role draws.
type EngagementCalculator struct {
	friendly    HitProfile
	enemy       HitProfile
	chip        ChipProfile
	weaponRange float64
	rng         *rand.Rand
	mu          sync.RWMutex
}

// NewEngagementCalculator creates a calculator for one scenario
func NewEngagementCalculator(friendly, enemy HitProfile, chip ChipProfile, weaponRange float64, rng *rand.Rand) *EngagementCalculator {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &EngagementCalculator{
		friendly:    friendly,
		enemy:       enemy,
		chip:        chip,
		weaponRange: weaponRange,
		rng:         rng,
	}
}

// HitProbability returns the chance that a shot at distance lands. Zero outside range.
func (ec *EngagementCalculator) HitProbability(attacker *Drone, distance float64) float64 {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return ec.hitProbability(ec.profileFor(attacker), distance)
}

func (ec *EngagementCalculator) hitProbability(p HitProfile, distance float64) float64 {
	if ec.weaponRange <= 0 || distance > ec.weaponRange {
		return 0
	}
	prob := p.HitChance - (distance/ec.weaponRange)*p.RangeFalloff
	return math.Max(0.0, math.Min(1.0, prob))
}

func (ec *EngagementCalculator) profileFor(attacker *Drone) HitProfile {
	if attacker.Type == DroneTypeFriendly {
		return ec.friendly
	}
	return ec.enemy
}

// CalculateEngagement rolls one shot from attacker at target and applies the damage
func (ec *EngagementCalculator) CalculateEngagement(attacker, target *Drone) *EngagementResult {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	distance := attacker.Position.DistanceTo(target.Position)
	result := &EngagementResult{
		AttackerID: attacker.ID,
		TargetID:   target.ID,
		Distance:   distance,
		InRange:    distance <= ec.weaponRange,
	}
	if !result.InRange || !target.IsActive() {
		return result
	}

	profile := ec.profileFor(attacker)
	if ec.rng.Float64() >= ec.hitProbability(profile, distance) {
		return result
	}

	result.Hit = true
	result.Damage = ec.uniform(profile.DamageMin, profile.DamageMax)
	result.Killed = target.ApplyDamage(result.Damage)
	return result
}

// ChipAsset lets a ground enemy damage its nearest asset when close enough.
// Returns the damage dealt, zero when nothing happened.
func (ec *EngagementCalculator) ChipAsset(enemy *Drone, assets []*GroundAsset) (*GroundAsset, float64) {
	if !enemy.IsGround() || !enemy.IsActive() {
		return nil, 0
	}
	asset, dist := NearestAsset(enemy.Position, assets)
	if asset == nil {
		return nil, 0
	}

	ec.mu.Lock()
	defer ec.mu.Unlock()

	if dist > ec.chip.Range || ec.rng.Float64() >= ec.chip.Chance {
		return asset, 0
	}
	damage := ec.uniform(ec.chip.DamageMin, ec.chip.DamageMax)
	asset.ApplyDamage(damage)
	return asset, damage
}

// WeaponRange returns the range both sides fire within
func (ec *EngagementCalculator) WeaponRange() float64 {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return ec.weaponRange
}

func (ec *EngagementCalculator) uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + ec.rng.Float64()*(hi-lo)
}
