package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Scenario lifecycle states
const (
	StatusInitializing = "initializing"
	StatusRunning      = "running"
	StatusCompleted    = "completed"
	StatusError        = "error"
	StatusCancelled    = "cancelled"
)

// IsTerminal reports whether a scenario in this status will never change again
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusError, StatusCancelled:
		return true
	}
	return false
}

// Statistics summarises the outcome of a scenario.
// @Description Engagement statistics; survival_rate is a fraction in [0,1].
// @name Statistics
type Statistics struct {
	Duration        float64 `json:"duration" example:"42.5"`
	FriendlyLosses  int     `json:"friendly_losses" example:"3"`
	EnemyLosses     int     `json:"enemy_losses" example:"8"`
	SurvivalRate    float64 `json:"survival_rate" example:"0.8"`
	KillRatio       float64 `json:"kill_ratio" example:"2.67"`
	AssetsProtected int     `json:"assets_protected" example:"1"`
	MissionSuccess  bool    `json:"mission_success" example:"true"`
}

// StartSimulationResponse is returned when a scenario is accepted.
// @name StartSimulationResponse
type StartSimulationResponse struct {
	SimulationID uuid.UUID `json:"simulation_id" swaggertype:"string,uuid" example:"a1b2c3d4-e5f6-7890-1234-567890abcdef"`
}

// SimulationStatus is the current state of one scenario.
// @Description Progress is steps taken over the step budget, in percent.
// @name SimulationStatus
type SimulationStatus struct {
	ID         uuid.UUID   `json:"id" swaggertype:"string,uuid"`
	Status     string      `json:"status" enums:"initializing,running,completed,error,cancelled"`
	Progress   float64     `json:"progress" example:"57.5"`
	Statistics *Statistics `json:"statistics"`
	Error      string      `json:"error,omitempty"`
}

// SimulationData is a window of recorded frames.
// @Description Frames are passed through verbatim; config echoes the scenario that produced them.
// @name SimulationData
type SimulationData struct {
	Frames      json.RawMessage `json:"frames" swaggertype:"array,object"`
	TotalFrames int             `json:"total_frames" example:"2400"`
	Config      json.RawMessage `json:"config" swaggertype:"object"`
	Statistics  *Statistics     `json:"statistics,omitempty"`
}

// RoleDistribution holds per-sample counts of living friendlies in each role
type RoleDistribution struct {
	Hunter      []int `json:"hunter"`
	Defender    []int `json:"defender"`
	Interceptor []int `json:"interceptor"`
}

// Analytics is a down-sampled time series of a scenario.
// @Description One sample every 10th recorded frame.
// @name Analytics
type Analytics struct {
	Timestamps       []float64        `json:"timestamps"`
	FriendlyCount    []int            `json:"friendly_count"`
	EnemyCount       []int            `json:"enemy_count"`
	RoleDistribution RoleDistribution `json:"role_distribution"`
	Statistics       *Statistics      `json:"statistics"`
}

// Algorithm describes a selectable swarm algorithm
type Algorithm struct {
	Value       string `json:"value" example:"qipfd-quantum"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// PresetAsset is a ground asset inside a preset
type PresetAsset struct {
	Position [3]float64 `json:"position"`
	Value    float64    `json:"value"`
}

// Preset is a named scenario starting point.
// @name Preset
type Preset struct {
	Name              string        `json:"name" example:"balanced"`
	Label             string        `json:"label"`
	FriendlyCount     int           `json:"friendly_count"`
	EnemyCount        int           `json:"enemy_count"`
	GroundAttackRatio float64       `json:"ground_attack_ratio"`
	MaxTime           float64       `json:"max_time"`
	MaxSpeed          float64       `json:"max_speed"`
	WeaponRange       float64       `json:"weapon_range"`
	DetectionRange    float64       `json:"detection_range"`
	Assets            []PresetAsset `json:"assets"`
}

// Health is the service liveness report
type Health struct {
	Status            string `json:"status" example:"healthy"`
	ActiveSimulations int    `json:"active_simulations"`
	Version           string `json:"version"`
}

// SimulationSummary is the debug view of an in-memory scenario
type SimulationSummary struct {
	SimulationID uuid.UUID   `json:"simulation_id" swaggertype:"string,uuid"`
	Kind         string      `json:"kind"`
	Status       string      `json:"status"`
	Progress     float64     `json:"progress"`
	HasEngine    bool        `json:"has_engine"`
	Statistics   *Statistics `json:"statistics"`
}

// ScenarioRecord is a persisted scenario without its frames.
// @name ScenarioRecord
type ScenarioRecord struct {
	ID          uuid.UUID   `json:"id" swaggertype:"string,uuid"`
	Kind        string      `json:"kind" enums:"static,dynamic"`
	Algorithm   string      `json:"algorithm"`
	Status      string      `json:"status"`
	Progress    float64     `json:"progress"`
	Seed        int64       `json:"seed"`
	Degraded    bool        `json:"degraded"`
	Statistics  *Statistics `json:"statistics,omitempty"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// StreamMessage is one websocket message of a live frame stream. Type is
// "frame" for a recorded frame and "status" for the closing status.
type StreamMessage struct {
	Type   string            `json:"type"`
	Index  int               `json:"index"`
	Frame  json.RawMessage   `json:"frame,omitempty"`
	Status *SimulationStatus `json:"status,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error string `json:"error"`
}
