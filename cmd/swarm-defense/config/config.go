package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
	"gopkg.in/yaml.v3"
)

// Scenario defaults
const (
	DefaultAlgorithm         = "adaptive-shield"
	DefaultFriendlyCount     = 15
	DefaultEnemyCount        = 8
	DefaultGroundAttackRatio = 0.4
	DefaultMaxTime           = 120.0
	DefaultTimeStep          = 0.05
	DefaultPersistInterval   = 2.0
	DefaultHistoryStride     = 1
	DefaultCommRange         = 1000.0
)

// ScenarioConfig describes one swarm-vs-swarm engagement
type ScenarioConfig struct {
	SwarmAlgorithm    string  `yaml:"swarm_algorithm" json:"swarm_algorithm"`
	FriendlyCount     int     `yaml:"friendly_count" json:"friendly_count"`
	EnemyCount        int     `yaml:"enemy_count" json:"enemy_count"`
	GroundAttackRatio float64 `yaml:"ground_attack_ratio" json:"ground_attack_ratio"`
	MaxTime           float64 `yaml:"max_time" json:"max_time"`
	TimeStep          float64 `yaml:"time_step" json:"time_step"`

	// Optional per-run overrides of the algorithm preset
	MaxSpeed       *float64 `yaml:"max_speed,omitempty" json:"max_speed,omitempty"`
	WeaponRange    *float64 `yaml:"weapon_range,omitempty" json:"weapon_range,omitempty"`
	DetectionRange *float64 `yaml:"detection_range,omitempty" json:"detection_range,omitempty"`

	Assets []AssetConfig `yaml:"assets" json:"assets"`

	// Seed drives spawn and role draws. Nil means derive one from the scenario id.
	Seed *int64 `yaml:"seed,omitempty" json:"seed,omitempty"`

	// Communication enables bundle exchange for the consensus strategy
	Communication bool    `yaml:"communication" json:"communication"`
	CommRange     float64 `yaml:"comm_range,omitempty" json:"comm_range,omitempty"`

	// AssetPath moves the first asset along waypoints (dynamic scenarios)
	AssetPath Waypoints `yaml:"asset_path,omitempty" json:"asset_path,omitempty"`

	Combat CombatConfig `yaml:"combat,omitempty" json:"combat,omitempty"`

	PersistIntervalS float64 `yaml:"persist_interval_s,omitempty" json:"persist_interval_s,omitempty"`
	HistoryStride    int     `yaml:"history_stride,omitempty" json:"history_stride,omitempty"`

	// Preset names a scenario preset the service expands before starting
	Preset string `yaml:"preset,omitempty" json:"preset,omitempty"`
}

// AssetConfig places one ground asset
type AssetConfig struct {
	Position core.Vector3D `yaml:"position" json:"position"`
	Value    float64       `yaml:"value" json:"value"`
}

// Waypoint is a timed asset position
type Waypoint struct {
	Time     float64       `yaml:"time" json:"time"`
	Position core.Vector3D `yaml:"pos" json:"pos"`
}

// Waypoints decodes leniently: time may be given as "time" or "t", and the
// position as "pos", "position" or separate x/y/z keys. Waypoints without a
// usable position are dropped.
type Waypoints []Waypoint

func (w *Waypoints) UnmarshalJSON(data []byte) error {
	var raw []map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("asset_path must be a list of waypoints: %w", err)
	}
	*w = normalizeWaypoints(raw)
	return nil
}

func (w *Waypoints) UnmarshalYAML(node *yaml.Node) error {
	var raw []map[string]interface{}
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("asset_path must be a list of waypoints: %w", err)
	}
	*w = normalizeWaypoints(raw)
	return nil
}

func normalizeWaypoints(raw []map[string]interface{}) Waypoints {
	out := make(Waypoints, 0, len(raw))
	for _, wp := range raw {
		t, ok := toFloat(wp["time"])
		if !ok {
			if t, ok = toFloat(wp["t"]); !ok {
				t = 0
			}
		}

		var pos []interface{}
		if p, ok := wp["pos"].([]interface{}); ok {
			pos = p
		} else if p, ok := wp["position"].([]interface{}); ok {
			pos = p
		} else if _, hasX := wp["x"]; hasX {
			pos = []interface{}{wp["x"], wp["y"], wp["z"]}
		}
		if len(pos) < 3 {
			continue
		}

		var c [3]float64
		valid := true
		for i := 0; i < 3; i++ {
			if c[i], ok = toFloat(pos[i]); !ok {
				valid = false
				break
			}
		}
		if !valid {
			continue
		}
		out = append(out, Waypoint{Time: t, Position: core.Vec(c[0], c[1], c[2])})
	}
	return out
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// DefaultScenarioConfig returns the stock 15 vs 8 scenario around one asset
func DefaultScenarioConfig() *ScenarioConfig {
	cfg := &ScenarioConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every missing field. Absent configuration never fails.
func (c *ScenarioConfig) ApplyDefaults() {
	if c.SwarmAlgorithm == "" {
		c.SwarmAlgorithm = DefaultAlgorithm
	}
	if c.FriendlyCount == 0 {
		c.FriendlyCount = DefaultFriendlyCount
	}
	if c.EnemyCount == 0 {
		c.EnemyCount = DefaultEnemyCount
	}
	if c.GroundAttackRatio == 0 {
		c.GroundAttackRatio = DefaultGroundAttackRatio
	}
	if c.MaxTime == 0 {
		c.MaxTime = DefaultMaxTime
	}
	if c.TimeStep == 0 {
		c.TimeStep = DefaultTimeStep
	}
	if c.CommRange == 0 {
		c.CommRange = DefaultCommRange
	}
	if c.PersistIntervalS == 0 {
		c.PersistIntervalS = DefaultPersistInterval
	}
	if c.HistoryStride == 0 {
		c.HistoryStride = DefaultHistoryStride
	}
	if len(c.Assets) == 0 {
		c.Assets = []AssetConfig{{Position: core.Vector3D{}, Value: 1.0}}
	}
	for i := range c.Assets {
		if c.Assets[i].Value == 0 {
			c.Assets[i].Value = 1.0
		}
	}
}

// Validate checks if the configuration is valid
func (c *ScenarioConfig) Validate() error {
	if strings.TrimSpace(c.SwarmAlgorithm) == "" {
		return fmt.Errorf("swarm algorithm is required")
	}

	if c.FriendlyCount <= 0 {
		return fmt.Errorf("friendly count must be positive")
	}

	if c.EnemyCount <= 0 {
		return fmt.Errorf("enemy count must be positive")
	}

	if c.GroundAttackRatio < 0 || c.GroundAttackRatio > 1 {
		return fmt.Errorf("ground attack ratio must be between 0.0 and 1.0")
	}

	if c.MaxTime <= 0 {
		return fmt.Errorf("max time must be positive")
	}

	if c.TimeStep <= 0 || c.TimeStep > 1 {
		return fmt.Errorf("time step must be in (0, 1] seconds")
	}

	for name, v := range map[string]*float64{
		"max speed":       c.MaxSpeed,
		"weapon range":    c.WeaponRange,
		"detection range": c.DetectionRange,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s override must be positive", name)
		}
	}

	if c.HistoryStride < 0 {
		return fmt.Errorf("history stride must not be negative")
	}

	if c.PersistIntervalS < 0 {
		return fmt.Errorf("persist interval must not be negative")
	}

	for i, wp := range c.AssetPath {
		if wp.Time < 0 {
			return fmt.Errorf("asset path waypoint %d has negative time", i)
		}
	}

	if err := c.Combat.Validate(); err != nil {
		return err
	}

	return nil
}

// MaxSteps is the external step budget: max_time / time_step
func (c *ScenarioConfig) MaxSteps() int {
	if c.TimeStep <= 0 {
		return 0
	}
	return int(c.MaxTime / c.TimeStep)
}

// Clone returns a deep copy safe to mutate
func (c *ScenarioConfig) Clone() *ScenarioConfig {
	out := *c
	out.Assets = append([]AssetConfig(nil), c.Assets...)
	out.AssetPath = append(Waypoints(nil), c.AssetPath...)
	out.MaxSpeed = cloneFloat(c.MaxSpeed)
	out.WeaponRange = cloneFloat(c.WeaponRange)
	out.DetectionRange = cloneFloat(c.DetectionRange)
	if c.Seed != nil {
		s := *c.Seed
		out.Seed = &s
	}
	out.Combat.FriendlyHealth = cloneFloat(c.Combat.FriendlyHealth)
	out.Combat.HitChance = cloneFloat(c.Combat.HitChance)
	out.Combat.DamageMin = cloneFloat(c.Combat.DamageMin)
	out.Combat.DamageMax = cloneFloat(c.Combat.DamageMax)
	out.Combat.DegradedChance = cloneFloat(c.Combat.DegradedChance)
	out.Combat.EnemyHitChance = cloneFloat(c.Combat.EnemyHitChance)
	return &out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}

// String returns a human-readable representation of the configuration
func (c *ScenarioConfig) String() string {
	optional := func(v *float64) string {
		if v == nil {
			return "preset"
		}
		return fmt.Sprintf("%.1f", *v)
	}
	seed := "derived"
	if c.Seed != nil {
		seed = fmt.Sprintf("%d", *c.Seed)
	}
	combat := c.Combat.Profile
	if combat == "" {
		combat = CombatProfileDefault
	}

	return fmt.Sprintf(`Scenario Configuration:
  Algorithm: %s
  Friendlies: %d
  Enemies: %d (ground ratio %.2f)
  Max Time: %.1fs
  Time Step: %.3fs
  Seed: %s

Overrides:
  Max Speed: %s
  Weapon Range: %s
  Detection Range: %s

Assets: %d
Asset Path Waypoints: %d
Communication: %t
Combat Profile: %s`,
		c.SwarmAlgorithm,
		c.FriendlyCount,
		c.EnemyCount,
		c.GroundAttackRatio,
		c.MaxTime,
		c.TimeStep,
		seed,
		optional(c.MaxSpeed),
		optional(c.WeaponRange),
		optional(c.DetectionRange),
		len(c.Assets),
		len(c.AssetPath),
		c.Communication,
		combat,
	)
}
