package storage

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Scenario lifecycle states
const (
	StatusInitializing = "initializing"
	StatusRunning      = "running"
	StatusCompleted    = "completed"
	StatusError        = "error"
	StatusCancelled    = "cancelled"
)

// Scenario is one persisted scenario run. Config, statistics, frames and
// telemetry are stored as JSON documents.
type Scenario struct {
	ID             string `gorm:"primaryKey;size:36"`
	Kind           string `gorm:"size:16;index"` // "static" or "dynamic"
	Algorithm      string `gorm:"size:64;index"`
	Status         string `gorm:"size:16;index"`
	Progress       float64
	SimTime        float64
	FramesRecorded int
	ActiveFriendly int
	ActiveEnemy    int
	Seed           int64
	Degraded       bool
	Config         datatypes.JSON
	Statistics     datatypes.JSON
	Frames         datatypes.JSON
	Telemetry      datatypes.JSON
	Error          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

// AlgorithmPerformance is derived from a finished scenario. It is written on
// completion and again whenever analytics are requested.
type AlgorithmPerformance struct {
	ID                   uint   `gorm:"primaryKey"`
	ScenarioID           string `gorm:"size:36;index"`
	AlgorithmName        string `gorm:"size:64;index"`
	AvgResponseTime      *float64
	TargetAccuracy       *float64
	FormationEfficiency  *float64
	PSOIterations        int
	ACOPheromoneStrength float64
	ABCScoutCount        int
	CreatedAt            time.Time
}

// SwarmAnalytics is a flattened outcome row for reporting
type SwarmAnalytics struct {
	ID              uint   `gorm:"primaryKey"`
	ScenarioID      string `gorm:"size:36;index"`
	AlgorithmName   string `gorm:"size:64;index"`
	Duration        float64
	FriendlyLosses  int
	EnemyLosses     int
	SurvivalRate    float64
	KillRatio       float64
	AssetsProtected int
	MissionSuccess  bool
	Telemetry       datatypes.JSON
	Statistics      datatypes.JSON
	CreatedAt       time.Time
}

// Completion carries everything written when a scenario finishes
type Completion struct {
	Status     string
	Statistics interface{}
	Frames     interface{}
	Telemetry  interface{}
	Degraded   bool
	Error      string
}

// JSON encodes v for a JSON column. Nil stays NULL.
func JSON(v interface{}) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func allModels() []interface{} {
	return []interface{}{&Scenario{}, &AlgorithmPerformance{}, &SwarmAnalytics{}}
}
