package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

// Compile-time interface checks
var (
	_ Store             = (*GormStore)(nil)
	_ Store             = (*MemoryStore)(nil)
	_ core.ProgressSink = (*InfluxSink)(nil)
	_ core.ProgressSink = MultiSink(nil)
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sqliteStore, err := OpenSQLite("", "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func newScenario(id uuid.UUID) *Scenario {
	cfg, _ := JSON(map[string]interface{}{"swarm_algorithm": "cvt-cbf", "friendly_count": 12})
	return &Scenario{
		ID:        id.String(),
		Kind:      "static",
		Algorithm: "cvt-cbf",
		Status:    StatusInitializing,
		Seed:      99,
		Config:    cfg,
	}
}

func TestScenarioRoundTrip(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := uuid.New()
			require.NoError(t, store.CreateScenario(ctx, newScenario(id)))

			require.NoError(t, store.SaveProgress(ctx, core.ProgressUpdate{
				ScenarioID:     id,
				Status:         StatusRunning,
				Progress:       42.5,
				SimTime:        12.3,
				FramesRecorded: 246,
				ActiveFriendly: 11,
				ActiveEnemy:    3,
			}))

			got, err := store.GetScenario(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, StatusRunning, got.Status)
			assert.Equal(t, 42.5, got.Progress)
			assert.Equal(t, 246, got.FramesRecorded)
			assert.Equal(t, int64(99), got.Seed)

			var cfg map[string]interface{}
			require.NoError(t, json.Unmarshal(got.Config, &cfg))
			assert.Equal(t, "cvt-cbf", cfg["swarm_algorithm"])

			frames := []map[string]interface{}{{"time": 0.05}, {"time": 0.1}}
			require.NoError(t, store.CompleteScenario(ctx, id, Completion{
				Status:     StatusCompleted,
				Statistics: map[string]interface{}{"kill_ratio": 2.5},
				Frames:     frames,
				Telemetry:  map[string]int{"pso_iterations": 7},
			}))

			got, err = store.GetScenario(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, StatusCompleted, got.Status)
			assert.Equal(t, 100.0, got.Progress)
			require.NotNil(t, got.CompletedAt)

			var stats map[string]float64
			require.NoError(t, json.Unmarshal(got.Statistics, &stats))
			assert.Equal(t, 2.5, stats["kill_ratio"])

			var decoded []map[string]float64
			require.NoError(t, json.Unmarshal(got.Frames, &decoded))
			assert.Len(t, decoded, 2)

			// late progress after completion is ignored
			require.NoError(t, store.SaveProgress(ctx, core.ProgressUpdate{ScenarioID: id, Status: StatusRunning, Progress: 60}))
			got, err = store.GetScenario(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, StatusCompleted, got.Status)
			assert.Equal(t, 100.0, got.Progress)
		})
	}
}

func TestMissingScenario(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := uuid.New()

			_, err := store.GetScenario(ctx, id)
			assert.True(t, errors.Is(err, ErrNotFound))

			err = store.SaveProgress(ctx, core.ProgressUpdate{ScenarioID: id, Status: StatusRunning})
			assert.True(t, errors.Is(err, ErrNotFound))

			err = store.CompleteScenario(ctx, id, Completion{Status: StatusError, Error: "boom"})
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestListScenarios(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now().Add(-time.Hour)
			var ids []string
			for i := 0; i < 3; i++ {
				sc := newScenario(uuid.New())
				sc.CreatedAt = base.Add(time.Duration(i) * time.Minute)
				require.NoError(t, store.CreateScenario(ctx, sc))
				ids = append(ids, sc.ID)
			}

			list, err := store.ListScenarios(ctx, 0, 2)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, ids[2], list[0].ID, "newest first")
			assert.Equal(t, ids[1], list[1].ID)
			assert.Empty(t, list[0].Frames)

			list, err = store.ListScenarios(ctx, 2, 2)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, ids[0], list[0].ID)

			list, err = store.ListScenarios(ctx, 10, 2)
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestDerivedRows(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			accuracy := 0.75
			perf := &AlgorithmPerformance{ScenarioID: uuid.NewString(), AlgorithmName: "qipfd-quantum", TargetAccuracy: &accuracy, PSOIterations: 3}
			require.NoError(t, store.SaveAlgorithmPerformance(ctx, perf))
			assert.NotZero(t, perf.ID)

			row := &SwarmAnalytics{ScenarioID: perf.ScenarioID, AlgorithmName: "qipfd-quantum", KillRatio: 3, MissionSuccess: true}
			require.NoError(t, store.SaveSwarmAnalytics(ctx, row))
			assert.NotZero(t, row.ID)
		})
	}
}

func TestMemoryStoreDerivedRowsByScenario(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, store.SaveAlgorithmPerformance(ctx, &AlgorithmPerformance{ScenarioID: id.String()}))
	require.NoError(t, store.SaveAlgorithmPerformance(ctx, &AlgorithmPerformance{ScenarioID: uuid.NewString()}))
	require.NoError(t, store.SaveSwarmAnalytics(ctx, &SwarmAnalytics{ScenarioID: id.String()}))

	assert.Len(t, store.Performance(id), 1)
	assert.Len(t, store.Analytics(id), 1)
}

func TestSQLiteDumpOnClose(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "scenarios.db")
	store, err := OpenSQLite("", dump, time.Hour)
	require.NoError(t, err)

	id := uuid.New()
	require.NoError(t, store.CreateScenario(context.Background(), newScenario(id)))
	require.NoError(t, store.Close())

	info, err := os.Stat(dump)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())

	reopened, err := OpenSQLite(dump, "", 0)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.GetScenario(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "cvt-cbf", got.Algorithm)
}

func TestOpen(t *testing.T) {
	store, err := Open(Config{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = Open(Config{Driver: "sqlite"})
	require.NoError(t, err)
	assert.IsType(t, &GormStore{}, store)
	require.NoError(t, store.Close())

	_, err = Open(Config{Driver: "postgres"})
	assert.Error(t, err, "postgres without a DSN")

	_, err = Open(Config{Driver: "mongo"})
	assert.Error(t, err)
}

type failingSink struct{ calls int }

func (f *failingSink) SaveProgress(context.Context, core.ProgressUpdate) error {
	f.calls++
	return errors.New("unavailable")
}

func TestMultiSink(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	id := uuid.New()
	require.NoError(t, mem.CreateScenario(ctx, newScenario(id)))

	bad := &failingSink{}
	err := MultiSink{bad, nil, mem}.SaveProgress(ctx, core.ProgressUpdate{ScenarioID: id, Status: StatusRunning, Progress: 10})
	assert.Error(t, err)
	assert.Equal(t, 1, bad.calls)

	got, err := mem.GetScenario(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Progress, "a failing sink does not stop the others")
}

type recordingWriter struct {
	points  []*write.Point
	flushed bool
}

func (r *recordingWriter) WritePoint(p *write.Point) { r.points = append(r.points, p) }

func (r *recordingWriter) Flush() { r.flushed = true }

func TestInfluxSink(t *testing.T) {
	w := &recordingWriter{}
	sink := NewInfluxSinkWithWriter(w)
	id := uuid.New()

	require.NoError(t, sink.SaveProgress(context.Background(), core.ProgressUpdate{
		ScenarioID:     id,
		Status:         StatusRunning,
		Progress:       50,
		ActiveFriendly: 9,
		LastModified:   time.Unix(1700000000, 0),
	}))
	sink.WriteOutcome(&SwarmAnalytics{ScenarioID: id.String(), AlgorithmName: "cbba-superiority", KillRatio: 4})
	require.NoError(t, sink.Close())

	require.Len(t, w.points, 2)
	assert.True(t, w.flushed)

	line := write.PointToLineProtocol(w.points[0], time.Second)
	assert.True(t, strings.HasPrefix(line, MeasurementProgress+","))
	assert.Contains(t, line, "scenario_id="+id.String())
	assert.Contains(t, line, "active_friendly=9i")
	assert.Contains(t, line, "1700000000")

	assert.Equal(t, MeasurementOutcome, w.points[1].Name())
}

func TestNewInfluxSinkRequiresURL(t *testing.T) {
	_, err := NewInfluxSink(context.Background(), InfluxConfig{})
	assert.Error(t, err)
}
