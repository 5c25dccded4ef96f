package config

import "testing"

func TestPresetNames(t *testing.T) {
	names := PresetNames()
	expected := []string{"guaranteed_win", "easy", "balanced", "challenging"}
	if len(names) != len(expected) {
		t.Fatalf("Expected %d presets, got %v", len(expected), names)
	}
	for i, name := range expected {
		if names[i] != name {
			t.Errorf("Preset %d: expected %s, got %s", i, name, names[i])
		}
	}
}

func TestPresetConfig(t *testing.T) {
	tests := []struct {
		name     string
		friendly int
		enemy    int
		ratio    float64
	}{
		{"guaranteed_win", 25, 10, 0.3},
		{"easy", 20, 12, 0.35},
		{"balanced", 18, 15, 0.4},
		{"challenging", 16, 18, 0.45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := PresetConfig(tt.name, "qipfd-quantum")
			if err != nil {
				t.Fatalf("PresetConfig failed: %v", err)
			}
			if cfg.FriendlyCount != tt.friendly || cfg.EnemyCount != tt.enemy {
				t.Errorf("Expected %d vs %d, got %d vs %d", tt.friendly, tt.enemy, cfg.FriendlyCount, cfg.EnemyCount)
			}
			if cfg.GroundAttackRatio != tt.ratio {
				t.Errorf("Expected ratio %f, got %f", tt.ratio, cfg.GroundAttackRatio)
			}
			if cfg.MaxTime != 300 || *cfg.WeaponRange != 150 || *cfg.MaxSpeed != 70 || *cfg.DetectionRange != 1500 {
				t.Errorf("Unexpected preset limits: %s", cfg)
			}
			if cfg.SwarmAlgorithm != "qipfd-quantum" {
				t.Errorf("Expected algorithm to be kept, got %s", cfg.SwarmAlgorithm)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("Preset does not validate: %v", err)
			}
		})
	}

	if _, err := PresetConfig("impossible", ""); err == nil {
		t.Error("Expected error for unknown preset")
	}
}

func TestScenarioPresetsAreCopies(t *testing.T) {
	presets := ScenarioPresets()
	p := presets["easy"]
	p.Assets[0].Value = 99
	if ScenarioPresets()["easy"].Assets[0].Value != 1.0 {
		t.Error("Mutating a returned preset changed the table")
	}
}

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantErr   bool
		algorithm string
		friendly  int
		enemy     int
	}{
		{name: "empty body uses defaults", body: "", algorithm: DefaultAlgorithm, friendly: DefaultFriendlyCount, enemy: DefaultEnemyCount},
		{name: "plain config", body: `{"swarm_algorithm":"cvt-cbf","friendly_count":6,"enemy_count":3}`, algorithm: "cvt-cbf", friendly: 6, enemy: 3},
		{name: "preset base", body: `{"preset":"balanced","swarm_algorithm":"cbba-superiority"}`, algorithm: "cbba-superiority", friendly: 18, enemy: 15},
		{name: "preset with override", body: `{"preset":"easy","enemy_count":4}`, algorithm: DefaultAlgorithm, friendly: 20, enemy: 4},
		{name: "unknown preset", body: `{"preset":"nightmare"}`, wantErr: true},
		{name: "invalid ratio", body: `{"ground_attack_ratio":2}`, wantErr: true},
		{name: "malformed", body: `{"friendly_count":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := DecodeRequest([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeRequest failed: %v", err)
			}
			if cfg.SwarmAlgorithm != tt.algorithm {
				t.Errorf("Expected algorithm %s, got %s", tt.algorithm, cfg.SwarmAlgorithm)
			}
			if cfg.FriendlyCount != tt.friendly || cfg.EnemyCount != tt.enemy {
				t.Errorf("Expected %d vs %d, got %d vs %d", tt.friendly, tt.enemy, cfg.FriendlyCount, cfg.EnemyCount)
			}
		})
	}
}
