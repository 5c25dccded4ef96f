package service

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/controllers"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/simulation"
	"github.com/picogrid/swarm-defense/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// syntheticFrames builds n frames 0.05 s apart. Friendly i dies at frame
// 10*(i+1); roles cycle hunter, defender, interceptor.
func syntheticFrames(n, friendlies int) []simulation.Frame {
	roles := []core.DroneRole{core.RoleHunter, core.RoleDefender, core.RoleInterceptor}
	frames := make([]simulation.Frame, n)
	for i := range frames {
		f := simulation.Frame{Time: float64(i) * 0.05}
		for d := 0; d < friendlies; d++ {
			health := 100.0
			if i >= 10*(d+1) {
				health = 0
			}
			f.Friendlies = append(f.Friendlies, simulation.FriendlySnapshot{ID: d, Health: health, Role: roles[d%3]})
		}
		f.Enemies = []simulation.EnemySnapshot{{ID: 1000, Health: 100}, {ID: 1001, Health: 0}}
		f.Assets = []simulation.AssetSnapshot{{ID: 0, Value: 1, Health: 100}, {ID: 1, Value: 1, Health: 100}}
		frames[i] = f
	}
	return frames
}

func TestBuildAnalytics(t *testing.T) {
	frames := syntheticFrames(35, 3)
	stats := &simulation.Statistics{KillRatio: 3, AssetsProtected: 1}

	a := BuildAnalytics(frames, stats)

	require.Len(t, a.Timestamps, 4, "frames 0, 10, 20, 30")
	assert.InDeltaSlice(t, []float64{0, 0.5, 1.0, 1.5}, a.Timestamps, 1e-9)
	assert.Equal(t, []int{3, 2, 1, 0}, a.FriendlyCount)
	assert.Equal(t, []int{1, 1, 1, 1}, a.EnemyCount)
	assert.Equal(t, []int{1, 0, 0, 0}, a.RoleDistribution.Hunter)
	assert.Equal(t, []int{1, 1, 0, 0}, a.RoleDistribution.Defender)
	assert.Equal(t, []int{1, 1, 1, 0}, a.RoleDistribution.Interceptor)
	require.NotNil(t, a.Statistics)
	assert.Equal(t, 3.0, a.Statistics.KillRatio)
}

func TestBuildAnalyticsEmpty(t *testing.T) {
	a := BuildAnalytics(nil, nil)
	assert.Empty(t, a.Timestamps)
	assert.NotNil(t, a.RoleDistribution.Hunter, "encodes as [] rather than null")
	assert.Nil(t, a.Statistics)
}

func TestAvgResponseTime(t *testing.T) {
	assert.Nil(t, AvgResponseTime(nil))
	assert.Nil(t, AvgResponseTime([]float64{1}))

	v := AvgResponseTime([]float64{0, 0.5, 1.5})
	require.NotNil(t, v)
	assert.InDelta(t, 0.75, *v, 1e-9)
}

func TestTargetAccuracy(t *testing.T) {
	tests := []struct {
		killRatio float64
		want      float64
	}{
		{0, 0},
		{1, 0.5},
		{3, 0.75},
	}
	for _, tt := range tests {
		v := TargetAccuracy(tt.killRatio)
		require.NotNil(t, v)
		assert.InDelta(t, tt.want, *v, 1e-9)
	}
	assert.Nil(t, TargetAccuracy(-1))
}

func TestFormationEfficiency(t *testing.T) {
	assert.Nil(t, FormationEfficiency(nil, 1))

	v := FormationEfficiency(syntheticFrames(1, 1), 1)
	require.NotNil(t, v)
	assert.InDelta(t, 0.5, *v, 1e-9)
}

func TestPerformanceRow(t *testing.T) {
	frames := syntheticFrames(21, 2)
	stats := &simulation.Statistics{KillRatio: 1, AssetsProtected: 2}
	telemetry := controllers.Telemetry{IterationCount: 12, FieldStrength: 0.4, ScoutCount: 3}

	row := PerformanceRow("abc", "qipfd-quantum", BuildAnalytics(frames, stats), frames, stats, telemetry)

	assert.Equal(t, "abc", row.ScenarioID)
	assert.Equal(t, "qipfd-quantum", row.AlgorithmName)
	require.NotNil(t, row.AvgResponseTime)
	assert.InDelta(t, 0.5, *row.AvgResponseTime, 1e-9)
	require.NotNil(t, row.TargetAccuracy)
	assert.InDelta(t, 0.5, *row.TargetAccuracy, 1e-9)
	require.NotNil(t, row.FormationEfficiency)
	assert.InDelta(t, 1.0, *row.FormationEfficiency, 1e-9)
	assert.Equal(t, 12, row.PSOIterations)
	assert.Equal(t, 0.4, row.ACOPheromoneStrength)
	assert.Equal(t, 3, row.ABCScoutCount)

	row = PerformanceRow("abc", "cvt-cbf", BuildAnalytics(frames, nil), frames, nil, telemetry)
	assert.Nil(t, row.TargetAccuracy)
	assert.Nil(t, row.FormationEfficiency)
}

func TestAnalyticsRow(t *testing.T) {
	stats := simulation.Statistics{Duration: 30, FriendlyLosses: 1, EnemyLosses: 5, SurvivalRate: 0.9, KillRatio: 5, AssetsProtected: 1, MissionSuccess: true}
	row, err := AnalyticsRow("abc", "cbba-superiority", stats, controllers.Telemetry{ScoutCount: 2})
	require.NoError(t, err)

	assert.Equal(t, 5.0, row.KillRatio)
	assert.True(t, row.MissionSuccess)
	assert.JSONEq(t, `{"pso_iterations":0,"aco_pheromone_strength":0,"abc_scout_count":2}`, string(row.Telemetry))
	assert.Contains(t, string(row.Statistics), `"enemy_losses":5`)
}
