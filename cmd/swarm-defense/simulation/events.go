package simulation

import "github.com/picogrid/swarm-defense/cmd/swarm-defense/core"

// Team names used in event reports
const (
	TeamFriendly = "Defenders"
	TeamEnemy    = "Attackers"
)

// EventRecorder receives notable engine events. reporting.SimulationLogger
// implements it; the engine works without one.
type EventRecorder interface {
	LogSpawn(droneID int, teamName string, droneType string, position core.Vector3D)
	LogDestruction(droneID int, teamName string, killerID int, simTime float64)
	LogAssetDamage(assetID, enemyID int, damage, remaining, simTime float64)
	LogTeamStatus(teamName string, activeDrones, totalDrones, losses int)
}

type nopRecorder struct{}

func (nopRecorder) LogSpawn(int, string, string, core.Vector3D) {}

func (nopRecorder) LogDestruction(int, string, int, float64) {}

func (nopRecorder) LogAssetDamage(int, int, float64, float64, float64) {}

func (nopRecorder) LogTeamStatus(string, int, int, int) {}
