package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/picogrid/swarm-defense/pkg/logger"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every scenario environment override
const EnvPrefix = "SWARM_"

// LoadConfig loads a scenario from a YAML or JSON file (chosen by extension)
func LoadConfig(path string) (*ScenarioConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config, err := ParseConfig(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// ParseConfig decodes scenario bytes. ext selects JSON for ".json", YAML otherwise.
// Missing fields are defaulted.
func ParseConfig(data []byte, ext string) (*ScenarioConfig, error) {
	var config ScenarioConfig
	if strings.EqualFold(ext, ".json") {
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	config.ApplyDefaults()
	return &config, nil
}

// LoadConfigOrDefault loads config from file or returns default, with environment overrides
func LoadConfigOrDefault(path string) (*ScenarioConfig, error) {
	var config *ScenarioConfig
	var err error

	if path != "" {
		config, err = LoadConfig(path)
		if err != nil {
			logger.Warnf("Could not load scenario from %s: %v", path, err)
			config = nil
		}
	}

	if config == nil {
		defaultPaths := []string{
			"scenario.yaml",
			"swarm-defense.yaml",
			filepath.Join("cmd", "swarm-defense", "scenario.yaml"),
		}

		for _, p := range defaultPaths {
			if _, statErr := os.Stat(p); statErr == nil {
				config, err = LoadConfig(p)
				if err == nil {
					logger.Debugf("Loaded scenario from: %s", p)
					break
				}
			}
		}
	}

	if config == nil {
		logger.Debug("Using default scenario")
		config = DefaultScenarioConfig()
	}

	MergeWithEnvironment(config)

	return config, nil
}

// SaveConfig writes the scenario as YAML, or JSON for a .json path
func SaveConfig(config *ScenarioConfig, path string) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(config, "", "  ")
	} else {
		data, err = yaml.Marshal(config)
	}
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// MergeWithCLIOverrides applies CLI parameter overrides to the configuration.
// Values of the wrong type or out of range are ignored.
func MergeWithCLIOverrides(config *ScenarioConfig, overrides map[string]interface{}) {
	for key, value := range overrides {
		switch key {
		case "swarm_algorithm":
			if algo, ok := value.(string); ok && algo != "" {
				config.SwarmAlgorithm = algo
			}
		case "friendly_count":
			if count, ok := asInt(value); ok && count > 0 {
				config.FriendlyCount = count
			}
		case "enemy_count":
			if count, ok := asInt(value); ok && count > 0 {
				config.EnemyCount = count
			}
		case "ground_attack_ratio":
			if ratio, ok := asFloat(value); ok && ratio >= 0 && ratio <= 1 {
				config.GroundAttackRatio = ratio
			}
		case "max_time":
			if t, ok := asFloat(value); ok && t > 0 {
				config.MaxTime = t
			}
		case "time_step":
			if dt, ok := asFloat(value); ok && dt > 0 && dt <= 1 {
				config.TimeStep = dt
			}
		case "max_speed":
			if v, ok := asFloat(value); ok && v > 0 {
				config.MaxSpeed = &v
			}
		case "weapon_range":
			if v, ok := asFloat(value); ok && v > 0 {
				config.WeaponRange = &v
			}
		case "detection_range":
			if v, ok := asFloat(value); ok && v > 0 {
				config.DetectionRange = &v
			}
		case "seed":
			switch s := value.(type) {
			case int64:
				config.Seed = &s
			case int:
				seed := int64(s)
				config.Seed = &seed
			}
		case "communication":
			if enabled, ok := value.(bool); ok {
				config.Communication = enabled
			}
		case "combat_profile":
			if profile, ok := value.(string); ok {
				for _, valid := range []string{CombatProfileDefault, CombatProfileUniform} {
					if strings.ToLower(profile) == valid {
						config.Combat.Profile = valid
						break
					}
				}
			}
		case "history_stride":
			if stride, ok := asInt(value); ok && stride > 0 {
				config.HistoryStride = stride
			}
		}
	}
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// LoadConfigWithOverrides loads config and applies both environment and CLI overrides
func LoadConfigWithOverrides(path string, cliOverrides map[string]interface{}) (*ScenarioConfig, error) {
	config, err := LoadConfigOrDefault(path)
	if err != nil {
		return nil, err
	}

	if cliOverrides != nil {
		MergeWithCLIOverrides(config, cliOverrides)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed after overrides: %w", err)
	}

	return config, nil
}

// MergeWithEnvironment merges config with SWARM_* environment variables
func MergeWithEnvironment(config *ScenarioConfig) {
	env := func(name string) string {
		return os.Getenv(EnvPrefix + name)
	}

	if algo := env("ALGORITHM"); algo != "" {
		config.SwarmAlgorithm = strings.ToLower(algo)
	}

	if v := env("FRIENDLY_COUNT"); v != "" {
		if count, err := strconv.Atoi(v); err == nil && count > 0 {
			config.FriendlyCount = count
		}
	}

	if v := env("ENEMY_COUNT"); v != "" {
		if count, err := strconv.Atoi(v); err == nil && count > 0 {
			config.EnemyCount = count
		}
	}

	if v := env("GROUND_ATTACK_RATIO"); v != "" {
		if ratio, err := strconv.ParseFloat(v, 64); err == nil && ratio >= 0 && ratio <= 1 {
			config.GroundAttackRatio = ratio
		}
	}

	if v := env("MAX_TIME"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil && t > 0 {
			config.MaxTime = t
		}
	}

	if v := env("TIME_STEP"); v != "" {
		if dt, err := strconv.ParseFloat(v, 64); err == nil && dt > 0 && dt <= 1 {
			config.TimeStep = dt
		}
	}

	for name, dst := range map[string]**float64{
		"MAX_SPEED":       &config.MaxSpeed,
		"WEAPON_RANGE":    &config.WeaponRange,
		"DETECTION_RANGE": &config.DetectionRange,
	} {
		if v := env(name); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
				*dst = &f
			}
		}
	}

	if v := env("SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Seed = &seed
		}
	}

	if v := env("COMMUNICATION"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			config.Communication = enabled
		}
	}

	if v := env("COMBAT_PROFILE"); v != "" {
		for _, valid := range []string{CombatProfileDefault, CombatProfileUniform} {
			if strings.ToLower(v) == valid {
				config.Combat.Profile = valid
				break
			}
		}
	}

	if v := env("HISTORY_STRIDE"); v != "" {
		if stride, err := strconv.Atoi(v); err == nil && stride > 0 {
			config.HistoryStride = stride
		}
	}

	if v := env("PERSIST_INTERVAL"); v != "" {
		if interval, err := strconv.ParseFloat(v, 64); err == nil && interval >= 0 {
			config.PersistIntervalS = interval
		}
	}
}
