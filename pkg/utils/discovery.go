package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/picogrid/swarm-defense/pkg/logger"
	"github.com/picogrid/swarm-defense/pkg/simulation"
)

// SimulationInfo contains information about a discovered simulation
type SimulationInfo struct {
	Path   string
	Descriptor simulation.Descriptor
}

// ScenarioFile is a scenario definition found on disk
type ScenarioFile struct {
	Path      string
	Algorithm string
	Friendly  int
	Enemy     int
	Dynamic   bool
}

// isDescriptor matches simulation.yaml and <name>.simulation.yaml
func isDescriptor(name string) bool {
	return name == "simulation.yaml" || strings.HasSuffix(name, ".simulation.yaml")
}

// DiscoverSimulations finds every simulation descriptor under cmd/
func DiscoverSimulations() ([]SimulationInfo, error) {
	rootDir, err := FindProjectRoot()
	if err != nil {
		return nil, err
	}
	return DiscoverSimulationsIn(filepath.Join(rootDir, "cmd"))
}

// DiscoverSimulationsIn finds every simulation descriptor below dir, sorted by name
func DiscoverSimulationsIn(dir string) ([]SimulationInfo, error) {
	var simulations []SimulationInfo

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isDescriptor(d.Name()) {
			return nil
		}
		info, err := loadDescriptor(path)
		if err != nil {
			logger.Warnf("Skipping %s: %v", path, err)
			return nil
		}
		simulations = append(simulations, *info)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan for simulations: %w", err)
	}

	sort.Slice(simulations, func(i, j int) bool {
		return simulations[i].Descriptor.Name < simulations[j].Descriptor.Name
	})
	return simulations, nil
}

// DiscoverScenarioFiles lists YAML files below dir that define a scenario
// (they carry a swarm_algorithm key). Simulation descriptors are skipped.
func DiscoverScenarioFiles(dir string) ([]ScenarioFile, error) {
	var files []ScenarioFile

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), "_") || (d.Name() == ".git") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(d.Name())
		if (ext != ".yaml" && ext != ".yml") || isDescriptor(d.Name()) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var head struct {
			Algorithm string        `yaml:"swarm_algorithm"`
			Friendly  int           `yaml:"friendly_count"`
			Enemy     int           `yaml:"enemy_count"`
			AssetPath []interface{} `yaml:"asset_path"`
		}
		if yaml.Unmarshal(data, &head) != nil || head.Algorithm == "" {
			return nil
		}
		files = append(files, ScenarioFile{
			Path:      path,
			Algorithm: head.Algorithm,
			Friendly:  head.Friendly,
			Enemy:     head.Enemy,
			Dynamic:   len(head.AssetPath) > 0,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan for scenarios: %w", err)
	}
	return files, nil
}

func loadDescriptor(path string) (*SimulationInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read simulation descriptor: %w", err)
	}

	var d simulation.Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse simulation descriptor: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	return &SimulationInfo{Path: filepath.Dir(path), Descriptor: d}, nil
}

// FindDescriptor returns the discovered descriptor with the given name
func FindDescriptor(infos []SimulationInfo, name string) (simulation.Descriptor, bool) {
	for _, info := range infos {
		if strings.EqualFold(info.Descriptor.Name, name) {
			return info.Descriptor, true
		}
	}
	return simulation.Descriptor{}, false
}

// FindProjectRoot walks up from the working directory to the first go.mod
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root (no go.mod found)")
		}
		dir = parent
	}
}
