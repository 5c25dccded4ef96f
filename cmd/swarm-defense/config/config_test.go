package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig("../scenario.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.SwarmAlgorithm != "cbba-superiority" {
		t.Errorf("Expected algorithm 'cbba-superiority', got '%s'", config.SwarmAlgorithm)
	}

	if config.FriendlyCount != 15 {
		t.Errorf("Expected 15 friendlies, got %d", config.FriendlyCount)
	}

	if config.EnemyCount != 8 {
		t.Errorf("Expected 8 enemies, got %d", config.EnemyCount)
	}

	if config.GroundAttackRatio != 0.4 {
		t.Errorf("Expected ground attack ratio 0.4, got %f", config.GroundAttackRatio)
	}

	if config.Seed == nil || *config.Seed != 42 {
		t.Errorf("Expected seed 42, got %v", config.Seed)
	}

	if len(config.Assets) != 1 || config.Assets[0].Position != (core.Vector3D{}) {
		t.Errorf("Expected one asset at the origin, got %+v", config.Assets)
	}

	if config.Combat.Profile != CombatProfileDefault {
		t.Errorf("Expected combat profile 'default', got '%s'", config.Combat.Profile)
	}

	if config.MaxSteps() != 2400 {
		t.Errorf("Expected 2400 steps, got %d", config.MaxSteps())
	}
}

func TestLoadConvoyPath(t *testing.T) {
	config, err := LoadConfig("../convoy.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if len(config.AssetPath) != 3 {
		t.Fatalf("Expected 3 waypoints, got %d", len(config.AssetPath))
	}

	want := []Waypoint{
		{Time: 0, Position: core.Vec(0, 0, 0)},
		{Time: 30, Position: core.Vec(600, 0, 0)},
		{Time: 60, Position: core.Vec(600, 0, 600)},
	}
	for i, wp := range want {
		if config.AssetPath[i] != wp {
			t.Errorf("Waypoint %d: expected %+v, got %+v", i, wp, config.AssetPath[i])
		}
	}

	// omitted fields default
	if config.TimeStep != DefaultTimeStep {
		t.Errorf("Expected default time step, got %f", config.TimeStep)
	}
}

func TestParseJSONWaypoints(t *testing.T) {
	body := `{
		"swarm_algorithm": "cvt-cbf",
		"asset_path": [
			{"time": 0, "pos": [0, 0, 0]},
			{"time": 5, "label": "no position"},
			{"t": 10, "position": [100, 0, 0]},
			{"time": 20, "x": 100, "y": 0, "z": 50}
		]
	}`
	config, err := ParseConfig([]byte(body), ".json")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(config.AssetPath) != 3 {
		t.Fatalf("Expected waypoint without position dropped, got %d", len(config.AssetPath))
	}
	if config.AssetPath[1].Time != 10 || config.AssetPath[2].Position != core.Vec(100, 0, 50) {
		t.Errorf("Unexpected waypoints: %+v", config.AssetPath)
	}
	if config.FriendlyCount != DefaultFriendlyCount {
		t.Errorf("Expected default friendly count, got %d", config.FriendlyCount)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultScenarioConfig()

	if err := config.Validate(); err != nil {
		t.Fatalf("Default config validation failed: %v", err)
	}

	if config.SwarmAlgorithm != DefaultAlgorithm {
		t.Errorf("Expected default algorithm '%s', got '%s'", DefaultAlgorithm, config.SwarmAlgorithm)
	}

	if config.FriendlyCount != 15 || config.EnemyCount != 8 {
		t.Errorf("Expected 15 vs 8, got %d vs %d", config.FriendlyCount, config.EnemyCount)
	}

	if config.MaxTime != 120 || config.TimeStep != 0.05 {
		t.Errorf("Unexpected timing defaults: %f / %f", config.MaxTime, config.TimeStep)
	}

	if len(config.Assets) != 1 || config.Assets[0].Value != 1.0 {
		t.Errorf("Expected one default asset, got %+v", config.Assets)
	}
}

func TestConfigValidation(t *testing.T) {
	negative := -5.0
	badChance := 1.5

	tests := []struct {
		name   string
		mutate func(c *ScenarioConfig)
		hasErr bool
	}{
		{"valid config", func(c *ScenarioConfig) {}, false},
		{"empty algorithm", func(c *ScenarioConfig) { c.SwarmAlgorithm = " " }, true},
		{"zero friendlies", func(c *ScenarioConfig) { c.FriendlyCount = 0 }, true},
		{"negative enemies", func(c *ScenarioConfig) { c.EnemyCount = -1 }, true},
		{"ratio above one", func(c *ScenarioConfig) { c.GroundAttackRatio = 1.2 }, true},
		{"zero max time", func(c *ScenarioConfig) { c.MaxTime = 0 }, true},
		{"huge time step", func(c *ScenarioConfig) { c.TimeStep = 2 }, true},
		{"negative speed override", func(c *ScenarioConfig) { c.MaxSpeed = &negative }, true},
		{"negative waypoint time", func(c *ScenarioConfig) {
			c.AssetPath = Waypoints{{Time: -1}}
		}, true},
		{"unknown combat profile", func(c *ScenarioConfig) { c.Combat.Profile = "arcade" }, true},
		{"combat hit chance out of range", func(c *ScenarioConfig) { c.Combat.HitChance = &badChance }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultScenarioConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.hasErr && err == nil {
				t.Errorf("Expected validation error for %s", tt.name)
			}
			if !tt.hasErr && err != nil {
				t.Errorf("Unexpected validation error for %s: %v", tt.name, err)
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	config := DefaultScenarioConfig()

	t.Setenv("SWARM_ALGORITHM", "QIPFD-Quantum")
	t.Setenv("SWARM_FRIENDLY_COUNT", "20")
	t.Setenv("SWARM_ENEMY_COUNT", "12")
	t.Setenv("SWARM_GROUND_ATTACK_RATIO", "0.8")
	t.Setenv("SWARM_MAX_SPEED", "90")
	t.Setenv("SWARM_SEED", "1234")
	t.Setenv("SWARM_COMMUNICATION", "true")
	t.Setenv("SWARM_COMBAT_PROFILE", "Uniform")
	t.Setenv("SWARM_TIME_STEP", "5") // out of range, ignored

	MergeWithEnvironment(config)

	if config.SwarmAlgorithm != "qipfd-quantum" {
		t.Errorf("Expected algorithm 'qipfd-quantum', got '%s'", config.SwarmAlgorithm)
	}
	if config.FriendlyCount != 20 || config.EnemyCount != 12 {
		t.Errorf("Expected 20 vs 12, got %d vs %d", config.FriendlyCount, config.EnemyCount)
	}
	if config.GroundAttackRatio != 0.8 {
		t.Errorf("Expected ground ratio 0.8, got %f", config.GroundAttackRatio)
	}
	if config.MaxSpeed == nil || *config.MaxSpeed != 90 {
		t.Errorf("Expected max speed override 90, got %v", config.MaxSpeed)
	}
	if config.Seed == nil || *config.Seed != 1234 {
		t.Errorf("Expected seed 1234, got %v", config.Seed)
	}
	if !config.Communication {
		t.Error("Expected communication enabled")
	}
	if config.Combat.Profile != CombatProfileUniform {
		t.Errorf("Expected uniform combat profile, got '%s'", config.Combat.Profile)
	}
	if config.TimeStep != DefaultTimeStep {
		t.Errorf("Expected invalid time step ignored, got %f", config.TimeStep)
	}
}

func TestCLIOverrides(t *testing.T) {
	config := DefaultScenarioConfig()

	overrides := map[string]interface{}{
		"swarm_algorithm":     "cvt-cbf",
		"friendly_count":      25,
		"enemy_count":         30,
		"ground_attack_ratio": 0.5,
		"weapon_range":        200.0,
		"seed":                int64(99),
		"combat_profile":      "uniform",
		"communication":       true,
		"friendly_cont":       3, // typo, ignored
	}

	MergeWithCLIOverrides(config, overrides)

	if config.SwarmAlgorithm != "cvt-cbf" {
		t.Errorf("Expected algorithm 'cvt-cbf', got '%s'", config.SwarmAlgorithm)
	}
	if config.FriendlyCount != 25 || config.EnemyCount != 30 {
		t.Errorf("Expected 25 vs 30, got %d vs %d", config.FriendlyCount, config.EnemyCount)
	}
	if config.WeaponRange == nil || *config.WeaponRange != 200 {
		t.Errorf("Expected weapon range 200, got %v", config.WeaponRange)
	}
	if config.Seed == nil || *config.Seed != 99 {
		t.Errorf("Expected seed 99, got %v", config.Seed)
	}
	if config.Combat.Profile != CombatProfileUniform || !config.Communication {
		t.Errorf("Unexpected combat/communication: %+v %t", config.Combat, config.Communication)
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	seed := int64(5)
	speed := 65.0

	config := DefaultScenarioConfig()
	config.SwarmAlgorithm = "flocking-boids"
	config.Seed = &seed
	config.MaxSpeed = &speed
	config.AssetPath = Waypoints{{Time: 0, Position: core.Vec(1, 2, 3)}, {Time: 10, Position: core.Vec(4, 5, 6)}}

	for _, name := range []string{"scenario.yaml", "scenario.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "nested", name)
			if err := SaveConfig(config, path); err != nil {
				t.Fatalf("save: %v", err)
			}
			if _, err := os.Stat(path); err != nil {
				t.Fatalf("expected file written: %v", err)
			}

			loaded, err := LoadConfig(path)
			if err != nil {
				t.Fatalf("reload: %v", err)
			}
			if loaded.SwarmAlgorithm != "flocking-boids" || *loaded.Seed != 5 || *loaded.MaxSpeed != 65 {
				t.Errorf("Unexpected reloaded config: %s", loaded)
			}
			if len(loaded.AssetPath) != 2 || loaded.AssetPath[1].Position != core.Vec(4, 5, 6) {
				t.Errorf("Unexpected reloaded path: %+v", loaded.AssetPath)
			}
		})
	}
}

func TestLoadConfigOrDefaultFallsBack(t *testing.T) {
	t.Setenv("SWARM_ENEMY_COUNT", "4")
	config, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if config.EnemyCount != 4 {
		t.Errorf("Expected env override on fallback config, got %d", config.EnemyCount)
	}
}

func TestCloneIsDeep(t *testing.T) {
	speed := 80.0
	config := DefaultScenarioConfig()
	config.MaxSpeed = &speed

	clone := config.Clone()
	*clone.MaxSpeed = 10
	clone.Assets[0].Value = 9

	if *config.MaxSpeed != 80 || config.Assets[0].Value != 1 {
		t.Errorf("Clone shares state with original: %+v", config)
	}
}

func TestCombatBalanceTiers(t *testing.T) {
	b := DefaultCombatBalance()

	tests := []struct {
		algo   string
		health float64
		hit    float64
	}{
		{"qipfd-quantum", 180, 0.92},
		{"cbba-superiority", 160, 0.84},
		{"cvt-cbf", 160, 0.84},
		{"flocking-boids", 130, 0.58},
		{"adaptive-shield", 130, 0.58},
	}
	for _, tt := range tests {
		t.Run(tt.algo, func(t *testing.T) {
			p := b.ProfileFor(tt.algo)
			if p.FriendlyHealth != tt.health || p.HitChance != tt.hit {
				t.Errorf("Expected %f/%f, got %f/%f", tt.health, tt.hit, p.FriendlyHealth, p.HitChance)
			}
		})
	}

	q := b.ProfileFor("qipfd-quantum")
	if p, degraded := q.Resolve(0.1); !degraded || p.FriendlyHealth != 145 || p.HitChance != 0.65 {
		t.Errorf("Expected degraded profile on low roll, got %+v (%t)", p, degraded)
	}
	if p, degraded := q.Resolve(0.5); degraded || p.FriendlyHealth != 180 {
		t.Errorf("Expected normal profile on high roll, got %+v (%t)", p, degraded)
	}

	if b.Enemy.HitChance != 0.55 || b.GroundChip.Range != 200 {
		t.Errorf("Unexpected enemy/chip constants: %+v %+v", b.Enemy, b.GroundChip)
	}
}

func TestCombatConfigOverrides(t *testing.T) {
	health := 200.0
	cc := CombatConfig{Profile: "uniform", FriendlyHealth: &health}
	b := cc.Balance()

	for _, algo := range []string{"qipfd-quantum", "flocking-boids"} {
		p := b.ProfileFor(algo)
		if p.FriendlyHealth != 200 || p.HitChance != 0.84 {
			t.Errorf("%s: expected uniform profile with override, got %+v", algo, p)
		}
		if _, degraded := p.Resolve(0); degraded {
			t.Errorf("%s: uniform profile must never degrade", algo)
		}
	}

	// the default balance is rebuilt on every call
	d := DefaultCombatBalance()
	d.Algorithms["cvt-cbf"] = Profile{}
	if DefaultCombatBalance().ProfileFor("cvt-cbf").HitChance != 0.84 {
		t.Error("Default combat balance shares state between calls")
	}

	if hp := d.ProfileFor("qipfd-quantum").HitProfile(); math.Abs(hp.DamageMax-70) > 1e-9 {
		t.Errorf("Unexpected hit profile: %+v", hp)
	}
}
