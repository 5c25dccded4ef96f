package config

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

// ScenarioPreset is a named starting point for a scenario
type ScenarioPreset struct {
	Name              string        `json:"name"`
	Label             string        `json:"label"`
	FriendlyCount     int           `json:"friendly_count"`
	EnemyCount        int           `json:"enemy_count"`
	GroundAttackRatio float64       `json:"ground_attack_ratio"`
	MaxTime           float64       `json:"max_time"`
	MaxSpeed          float64       `json:"max_speed"`
	WeaponRange       float64       `json:"weapon_range"`
	DetectionRange    float64       `json:"detection_range"`
	Assets            []AssetConfig `json:"assets"`
}

func preset(name, label string, friendly, enemy int, groundRatio float64) ScenarioPreset {
	return ScenarioPreset{
		Name:              name,
		Label:             label,
		FriendlyCount:     friendly,
		EnemyCount:        enemy,
		GroundAttackRatio: groundRatio,
		MaxTime:           300,
		MaxSpeed:          70,
		WeaponRange:       150,
		DetectionRange:    1500,
		Assets:            []AssetConfig{{Position: core.Vector3D{}, Value: 1.0}},
	}
}

var scenarioPresets = map[string]ScenarioPreset{
	"guaranteed_win": preset("guaranteed_win", "Guaranteed Win (start here)", 25, 10, 0.3),
	"easy":           preset("easy", "Easy", 20, 12, 0.35),
	"balanced":       preset("balanced", "Balanced", 18, 15, 0.4),
	"challenging":    preset("challenging", "Challenging", 16, 18, 0.45),
}

// ScenarioPresets returns a copy of every preset keyed by name
func ScenarioPresets() map[string]ScenarioPreset {
	out := make(map[string]ScenarioPreset, len(scenarioPresets))
	for k, p := range scenarioPresets {
		p.Assets = append([]AssetConfig(nil), p.Assets...)
		out[k] = p
	}
	return out
}

// PresetNames lists preset names from easiest to hardest
func PresetNames() []string {
	names := make([]string, 0, len(scenarioPresets))
	for k := range scenarioPresets {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := scenarioPresets[names[i]], scenarioPresets[names[j]]
		return float64(a.EnemyCount)/float64(a.FriendlyCount) < float64(b.EnemyCount)/float64(b.FriendlyCount)
	})
	return names
}

// Config expands the preset into a full scenario configuration
func (p ScenarioPreset) Config(algorithm string) *ScenarioConfig {
	maxSpeed, weaponRange, detectionRange := p.MaxSpeed, p.WeaponRange, p.DetectionRange
	cfg := &ScenarioConfig{
		SwarmAlgorithm:    algorithm,
		FriendlyCount:     p.FriendlyCount,
		EnemyCount:        p.EnemyCount,
		GroundAttackRatio: p.GroundAttackRatio,
		MaxTime:           p.MaxTime,
		MaxSpeed:          &maxSpeed,
		WeaponRange:       &weaponRange,
		DetectionRange:    &detectionRange,
		Assets:            append([]AssetConfig(nil), p.Assets...),
		Preset:            p.Name,
	}
	cfg.ApplyDefaults()
	return cfg
}

// PresetConfig builds the scenario for a named preset
func PresetConfig(name, algorithm string) (*ScenarioConfig, error) {
	p, ok := scenarioPresets[name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario preset: %s", name)
	}
	return p.Config(algorithm), nil
}

// DecodeRequest reads a JSON scenario. When it names a preset, the preset is
// the base and the fields present in data override it.
func DecodeRequest(data []byte) (*ScenarioConfig, error) {
	var head struct {
		Preset         string `json:"preset"`
		SwarmAlgorithm string `json:"swarm_algorithm"`
	}
	if len(data) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	cfg := &ScenarioConfig{}
	if head.Preset != "" {
		base, err := PresetConfig(head.Preset, head.SwarmAlgorithm)
		if err != nil {
			return nil, err
		}
		cfg = base
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
