// Package config keeps the named job service environments the CLI can
// submit scenarios to.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DirName is the per-user configuration directory below $HOME
const DirName = ".swarm-sim"

// Environment is one reachable job service
type Environment struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key,omitempty"` // name of the variable holding the key
}

// Config holds the environment configurations
type Config struct {
	Environments []Environment `yaml:"environments"`
	Selected     string        `yaml:"selected,omitempty"`
}

// DefaultPath is ~/.swarm-sim/environments.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName, "environments.yaml"), nil
}

// LoadEnvironments loads environment configurations from the default location
func LoadEnvironments() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadEnvironmentsFromFile(path)
}

// LoadEnvironmentsFromFile loads environment configurations from a specific
// file. A missing file yields the default environments.
func LoadEnvironmentsFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return getDefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveEnvironments writes the configuration to the default location
func SaveEnvironments(config *Config) error {
	path, err := DefaultPath()
	if err != nil {
		return err
	}
	return SaveEnvironmentsToFile(config, path)
}

// SaveEnvironmentsToFile writes the configuration to path, creating its directory
func SaveEnvironmentsToFile(config *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Find returns the environment called name
func (c *Config) Find(name string) (*Environment, bool) {
	for i := range c.Environments {
		if c.Environments[i].Name == name {
			return &c.Environments[i], true
		}
	}
	return nil, false
}

// Add appends env, rejecting duplicate names and empty fields
func (c *Config) Add(env Environment) error {
	if env.Name == "" || env.URL == "" {
		return fmt.Errorf("environment name and url are required")
	}
	if _, exists := c.Find(env.Name); exists {
		return fmt.Errorf("environment %s already exists", env.Name)
	}
	c.Environments = append(c.Environments, env)
	return nil
}

// Remove deletes the environment called name and clears it as the selection
func (c *Config) Remove(name string) error {
	for i, env := range c.Environments {
		if env.Name == name {
			c.Environments = append(c.Environments[:i], c.Environments[i+1:]...)
			if c.Selected == name {
				c.Selected = ""
			}
			return nil
		}
	}
	return fmt.Errorf("environment %s not found", name)
}

// getDefaultConfig returns a default configuration
func getDefaultConfig() *Config {
	return &Config{
		Environments: []Environment{
			{
				Name: "Local",
				URL:  "http://localhost:5000",
			},
		},
	}
}
