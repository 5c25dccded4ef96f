package simulation

import (
	"math"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

// Ground enemies this close to an asset leave it unprotected
const unattendedRange = 200.0

// Statistics summarise a finished (or running) scenario
type Statistics struct {
	Duration        float64 `json:"duration"`
	FriendlyLosses  int     `json:"friendly_losses"`
	EnemyLosses     int     `json:"enemy_losses"`
	SurvivalRate    float64 `json:"survival_rate"`
	KillRatio       float64 `json:"kill_ratio"`
	AssetsProtected int     `json:"assets_protected"`
	MissionSuccess  bool    `json:"mission_success"`
}

// ComputeStatistics derives the scenario statistics from the current state.
// survival_rate is a fraction in [0,1]; an asset counts as unprotected while
// a living ground enemy is within 200 m of it.
func ComputeStatistics(duration float64, friendlies, enemies []*core.Drone, assets []*core.GroundAsset) Statistics {
	totalFriendlies := len(friendlies)
	totalEnemies := len(enemies)
	friendlyLosses := totalFriendlies - core.CountActive(friendlies)
	enemyLosses := totalEnemies - core.CountActive(enemies)

	survival := 0.0
	if totalFriendlies > 0 {
		survival = float64(totalFriendlies-friendlyLosses) / float64(totalFriendlies)
	}

	unattended := 0
	for _, a := range assets {
		for _, e := range enemies {
			if e.IsActive() && e.IsGround() && e.Position.DistanceTo(a.Position) < unattendedRange {
				unattended++
				break
			}
		}
	}

	return Statistics{
		Duration:        duration,
		FriendlyLosses:  friendlyLosses,
		EnemyLosses:     enemyLosses,
		SurvivalRate:    survival,
		KillRatio:       float64(enemyLosses) / math.Max(float64(friendlyLosses), 1),
		AssetsProtected: len(assets) - unattended,
		MissionSuccess:  unattended == 0 && float64(enemyLosses) > float64(totalEnemies)*0.8,
	}
}

// Map renders the statistics as a generic map for reports and analytics
func (s Statistics) Map() map[string]interface{} {
	return map[string]interface{}{
		"duration":         s.Duration,
		"friendly_losses":  s.FriendlyLosses,
		"enemy_losses":     s.EnemyLosses,
		"survival_rate":    s.SurvivalRate,
		"kill_ratio":       s.KillRatio,
		"assets_protected": s.AssetsProtected,
		"mission_success":  s.MissionSuccess,
	}
}
