// Package controllers implements the swarm-control strategies that decide,
// every tick, which enemy each friendly drone engages and how it moves.
package controllers

import (
	"math/rand"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

// Controller is the contract every swarm strategy fulfils. One instance serves
// the whole friendly swarm of a scenario; per-drone state lives in an arena
// keyed by drone id inside the implementation.
type Controller interface {
	// Key is the canonical algorithm key, e.g. "cbba-superiority"
	Key() string
	// Params returns a copy of the merged preset and overrides
	Params() Params
	// SpawnFriendly places drone index of total around anchor. Pure function.
	SpawnFriendly(index, total int, anchor core.Vector3D) (core.Vector3D, core.Vector3D)
	UpdateRole(drone *core.Drone, enemies []*core.Drone, assets []*core.GroundAsset) core.DroneRole
	// SelectTarget returns nil only when no active enemy exists
	SelectTarget(drone *core.Drone, enemies []*core.Drone, assets []*core.GroundAsset, friendlies []*core.Drone) *int
	// ComputeDesiredVelocity never exceeds Params().MaxSpeed in magnitude
	ComputeDesiredVelocity(drone *core.Drone, enemies []*core.Drone, assets []*core.GroundAsset, friendlies []*core.Drone) core.Vector3D
	Telemetry() Telemetry
}

// ShotRecorder is implemented by strategies that account for ammunition
type ShotRecorder interface {
	RecordShot(droneID int)
}

// MotionRecorder is implemented by strategies that account for fuel
type MotionRecorder interface {
	RecordMotion(droneID int, velocity core.Vector3D, dt float64)
}

// Telemetry is the three-channel activity summary reported for analytics.
// All channels are non-negative.
type Telemetry struct {
	IterationCount int     `json:"pso_iterations"`
	FieldStrength  float64 `json:"aco_pheromone_strength"`
	ScoutCount     int     `json:"abc_scout_count"`
	// barrier corrections applied, only reported by cvt-cbf
	SafetyCorrections int `json:"safety_corrections,omitempty"`
}

// Overrides replace preset values when non-nil
type Overrides struct {
	MaxSpeed       *float64
	WeaponRange    *float64
	DetectionRange *float64
}

// AlgorithmInfo describes one selectable algorithm
type AlgorithmInfo struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

type buildOptions struct {
	rng           *rand.Rand
	timeStep      float64
	communication bool
	commRange     float64
}

// Option tunes a controller at construction
type Option func(*buildOptions)

// WithRand sets the random source used for role draws and exploration noise
func WithRand(rng *rand.Rand) Option {
	return func(o *buildOptions) { o.rng = rng }
}

// WithTimeStep tells the controller the engine tick length
func WithTimeStep(dt float64) Option {
	return func(o *buildOptions) {
		if dt > 0 {
			o.timeStep = dt
		}
	}
}

// WithCommunication enables bundle exchange between neighbours within commRange
func WithCommunication(enabled bool, commRange float64) Option {
	return func(o *buildOptions) {
		o.communication = enabled
		if commRange > 0 {
			o.commRange = commRange
		}
	}
}

func defaultBuildOptions() buildOptions {
	return buildOptions{
		timeStep:  0.05,
		commRange: 1000,
	}
}
