package service

import (
	"math"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/controllers"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/simulation"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/storage"
	"github.com/picogrid/swarm-defense/pkg/models"
)

// analyticsStride samples every n-th recorded frame
const analyticsStride = 10

func toModelStatistics(s *simulation.Statistics) *models.Statistics {
	if s == nil {
		return nil
	}
	return &models.Statistics{
		Duration:        s.Duration,
		FriendlyLosses:  s.FriendlyLosses,
		EnemyLosses:     s.EnemyLosses,
		SurvivalRate:    s.SurvivalRate,
		KillRatio:       s.KillRatio,
		AssetsProtected: s.AssetsProtected,
		MissionSuccess:  s.MissionSuccess,
	}
}

// BuildAnalytics samples frame history into count and role time series
func BuildAnalytics(frames []simulation.Frame, stats *simulation.Statistics) models.Analytics {
	n := (len(frames) + analyticsStride - 1) / analyticsStride
	out := models.Analytics{
		Timestamps:    make([]float64, 0, n),
		FriendlyCount: make([]int, 0, n),
		EnemyCount:    make([]int, 0, n),
		RoleDistribution: models.RoleDistribution{
			Hunter:      make([]int, 0, n),
			Defender:    make([]int, 0, n),
			Interceptor: make([]int, 0, n),
		},
		Statistics: toModelStatistics(stats),
	}
	for i := 0; i < len(frames); i += analyticsStride {
		f := frames[i]
		out.Timestamps = append(out.Timestamps, f.Time)
		out.FriendlyCount = append(out.FriendlyCount, f.ActiveFriendlies())
		out.EnemyCount = append(out.EnemyCount, f.ActiveEnemies())

		roles := f.RoleCounts()
		out.RoleDistribution.Hunter = append(out.RoleDistribution.Hunter, roles[core.RoleHunter])
		out.RoleDistribution.Defender = append(out.RoleDistribution.Defender, roles[core.RoleDefender])
		out.RoleDistribution.Interceptor = append(out.RoleDistribution.Interceptor, roles[core.RoleInterceptor])
	}
	return out
}

// AvgResponseTime is the mean gap between sampled timestamps. Nil with fewer
// than two samples.
func AvgResponseTime(timestamps []float64) *float64 {
	if len(timestamps) < 2 {
		return nil
	}
	sum := 0.0
	for i := 1; i < len(timestamps); i++ {
		sum += timestamps[i] - timestamps[i-1]
	}
	v := sum / float64(len(timestamps)-1)
	return &v
}

// TargetAccuracy maps a kill ratio onto [0,1) as kr/(kr+1)
func TargetAccuracy(killRatio float64) *float64 {
	if killRatio < 0 || math.IsNaN(killRatio) {
		return nil
	}
	v := math.Min(1, killRatio/(killRatio+1))
	return &v
}

// FormationEfficiency is the fraction of assets left protected. Nil without
// recorded assets.
func FormationEfficiency(frames []simulation.Frame, protected int) *float64 {
	if len(frames) == 0 || len(frames[0].Assets) == 0 {
		return nil
	}
	v := float64(protected) / float64(len(frames[0].Assets))
	return &v
}

// PerformanceRow derives the algorithm performance record of a scenario
func PerformanceRow(scenarioID, algorithm string, analytics models.Analytics, frames []simulation.Frame, stats *simulation.Statistics, telemetry controllers.Telemetry) *storage.AlgorithmPerformance {
	row := &storage.AlgorithmPerformance{
		ScenarioID:           scenarioID,
		AlgorithmName:        algorithm,
		AvgResponseTime:      AvgResponseTime(analytics.Timestamps),
		PSOIterations:        telemetry.IterationCount,
		ACOPheromoneStrength: telemetry.FieldStrength,
		ABCScoutCount:        telemetry.ScoutCount,
	}
	if stats != nil {
		row.TargetAccuracy = TargetAccuracy(stats.KillRatio)
		row.FormationEfficiency = FormationEfficiency(frames, stats.AssetsProtected)
	}
	return row
}

// AnalyticsRow flattens the final statistics of a scenario
func AnalyticsRow(scenarioID, algorithm string, stats simulation.Statistics, telemetry controllers.Telemetry) (*storage.SwarmAnalytics, error) {
	tel, err := storage.JSON(telemetry)
	if err != nil {
		return nil, err
	}
	st, err := storage.JSON(stats)
	if err != nil {
		return nil, err
	}
	return &storage.SwarmAnalytics{
		ScenarioID:      scenarioID,
		AlgorithmName:   algorithm,
		Duration:        stats.Duration,
		FriendlyLosses:  stats.FriendlyLosses,
		EnemyLosses:     stats.EnemyLosses,
		SurvivalRate:    stats.SurvivalRate,
		KillRatio:       stats.KillRatio,
		AssetsProtected: stats.AssetsProtected,
		MissionSuccess:  stats.MissionSuccess,
		Telemetry:       tel,
		Statistics:      st,
	}, nil
}
