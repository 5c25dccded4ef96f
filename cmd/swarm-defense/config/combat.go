package config

import (
	"fmt"
	"strings"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

// Combat balance profile names
const (
	CombatProfileDefault = "default"
	CombatProfileUniform = "uniform"
)

// Profile is the friendly swarm's durability and firepower for one algorithm.
// With probability DegradedChance a scenario runs on Degraded instead.
type Profile struct {
	FriendlyHealth float64  `yaml:"friendly_health" json:"friendly_health"`
	HitChance      float64  `yaml:"hit_chance" json:"hit_chance"`
	RangeFalloff   float64  `yaml:"range_falloff" json:"range_falloff"`
	DamageMin      float64  `yaml:"damage_min" json:"damage_min"`
	DamageMax      float64  `yaml:"damage_max" json:"damage_max"`
	DegradedChance float64  `yaml:"degraded_chance,omitempty" json:"degraded_chance,omitempty"`
	Degraded       *Profile `yaml:"degraded,omitempty" json:"degraded,omitempty"`
}

// HitProfile converts the profile into the shot model used by the engagement calculator
func (p Profile) HitProfile() core.HitProfile {
	return core.HitProfile{
		HitChance:    p.HitChance,
		RangeFalloff: p.RangeFalloff,
		DamageMin:    p.DamageMin,
		DamageMax:    p.DamageMax,
	}
}

// Resolve picks the profile a scenario actually runs with given a roll in [0,1).
func (p Profile) Resolve(roll float64) (Profile, bool) {
	if p.Degraded != nil && roll < p.DegradedChance {
		return *p.Degraded, true
	}
	return p, false
}

// CombatBalance holds every combat constant of a scenario
type CombatBalance struct {
	Algorithms map[string]Profile
	Fallback   Profile
	Enemy      core.HitProfile
	GroundChip core.ChipProfile
}

// ProfileFor returns the friendly profile for an algorithm key
func (b CombatBalance) ProfileFor(algorithm string) Profile {
	if p, ok := b.Algorithms[algorithm]; ok {
		return p
	}
	return b.Fallback
}

func defaultEnemy() core.HitProfile {
	return core.HitProfile{HitChance: 0.55, RangeFalloff: 0.25, DamageMin: 18, DamageMax: 32}
}

func defaultGroundChip() core.ChipProfile {
	return core.ChipProfile{Range: 200, Chance: 0.3, DamageMin: 0.5, DamageMax: 2.0}
}

// DefaultCombatBalance reproduces the tiered balance: the quantum field
// swarm is strongest but has a one-in-five chance of running degraded,
// consensus and coverage swarms come next, everything else is weakest.
func DefaultCombatBalance() CombatBalance {
	coordinated := Profile{FriendlyHealth: 160, HitChance: 0.84, RangeFalloff: 0.2, DamageMin: 38, DamageMax: 58}
	return CombatBalance{
		Algorithms: map[string]Profile{
			"qipfd-quantum": {
				FriendlyHealth: 180,
				HitChance:      0.92,
				RangeFalloff:   0.2,
				DamageMin:      45,
				DamageMax:      70,
				DegradedChance: 0.2,
				Degraded: &Profile{
					FriendlyHealth: 145,
					HitChance:      0.65,
					RangeFalloff:   0.2,
					DamageMin:      30,
					DamageMax:      50,
				},
			},
			"cbba-superiority": coordinated,
			"cvt-cbf":          coordinated,
		},
		Fallback:   Profile{FriendlyHealth: 130, HitChance: 0.58, RangeFalloff: 0.2, DamageMin: 20, DamageMax: 35},
		Enemy:      defaultEnemy(),
		GroundChip: defaultGroundChip(),
	}
}

// UniformCombatBalance gives every algorithm the same profile so runs compare
// control strategies alone.
func UniformCombatBalance() CombatBalance {
	return CombatBalance{
		Algorithms: map[string]Profile{},
		Fallback:   Profile{FriendlyHealth: 160, HitChance: 0.84, RangeFalloff: 0.2, DamageMin: 38, DamageMax: 58},
		Enemy:      defaultEnemy(),
		GroundChip: defaultGroundChip(),
	}
}

// CombatConfig selects a balance profile and optionally overrides fields of it
type CombatConfig struct {
	Profile        string   `yaml:"profile,omitempty" json:"profile,omitempty"`
	FriendlyHealth *float64 `yaml:"friendly_health,omitempty" json:"friendly_health,omitempty"`
	HitChance      *float64 `yaml:"hit_chance,omitempty" json:"hit_chance,omitempty"`
	DamageMin      *float64 `yaml:"damage_min,omitempty" json:"damage_min,omitempty"`
	DamageMax      *float64 `yaml:"damage_max,omitempty" json:"damage_max,omitempty"`
	DegradedChance *float64 `yaml:"degraded_chance,omitempty" json:"degraded_chance,omitempty"`
	EnemyHitChance *float64 `yaml:"enemy_hit_chance,omitempty" json:"enemy_hit_chance,omitempty"`
}

// Validate checks the profile name and override ranges
func (c CombatConfig) Validate() error {
	switch strings.ToLower(c.Profile) {
	case "", CombatProfileDefault, CombatProfileUniform:
	default:
		return fmt.Errorf("unknown combat profile %q (want %s or %s)", c.Profile, CombatProfileDefault, CombatProfileUniform)
	}
	for name, p := range map[string]*float64{
		"hit_chance":       c.HitChance,
		"degraded_chance":  c.DegradedChance,
		"enemy_hit_chance": c.EnemyHitChance,
	} {
		if p != nil && (*p < 0 || *p > 1) {
			return fmt.Errorf("combat %s must be between 0.0 and 1.0", name)
		}
	}
	if c.FriendlyHealth != nil && *c.FriendlyHealth <= 0 {
		return fmt.Errorf("combat friendly_health must be positive")
	}
	if c.DamageMin != nil && c.DamageMax != nil && *c.DamageMin > *c.DamageMax {
		return fmt.Errorf("combat damage_min must not exceed damage_max")
	}
	return nil
}

// Balance builds the combat balance described by this configuration
func (c CombatConfig) Balance() CombatBalance {
	var b CombatBalance
	if strings.EqualFold(c.Profile, CombatProfileUniform) {
		b = UniformCombatBalance()
	} else {
		b = DefaultCombatBalance()
	}

	apply := func(p Profile) Profile {
		if c.FriendlyHealth != nil {
			p.FriendlyHealth = *c.FriendlyHealth
		}
		if c.HitChance != nil {
			p.HitChance = *c.HitChance
		}
		if c.DamageMin != nil {
			p.DamageMin = *c.DamageMin
		}
		if c.DamageMax != nil {
			p.DamageMax = *c.DamageMax
		}
		if c.DegradedChance != nil {
			p.DegradedChance = *c.DegradedChance
		}
		return p
	}

	algos := make(map[string]Profile, len(b.Algorithms))
	for k, p := range b.Algorithms {
		algos[k] = apply(p)
	}
	b.Algorithms = algos
	b.Fallback = apply(b.Fallback)
	if c.EnemyHitChance != nil {
		b.Enemy.HitChance = *c.EnemyHitChance
	}
	return b
}
