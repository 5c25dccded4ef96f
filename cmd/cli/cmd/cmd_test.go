package cmd

import (
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/config"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/service"
	"github.com/picogrid/swarm-defense/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	rootCmd.SetArgs(args)
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	return rootCmd.Execute()
}

func TestBatteryCommand(t *testing.T) {
	require.NoError(t, execute(t, "battery", "--bullets", "100", "--dt", "30", "--level", "80"))
	assert.Error(t, execute(t, "battery", "--level", "120"))
	assert.Error(t, execute(t, "battery", "--level", "50", "--bullets=-1"))
}

func TestSubmitBody(t *testing.T) {
	t.Cleanup(func() {
		submitOpts.scenarioFile, submitOpts.preset, submitOpts.algorithm = "", "", ""
		_ = submitCmd.Flags().Set("seed", "0")
		submitCmd.Flags().Lookup("seed").Changed = false
	})

	submitOpts.preset = "easy"
	submitOpts.algorithm = "cvt-cbf"
	require.NoError(t, submitCmd.Flags().Set("seed", "42"))

	body, err := submitBody(submitCmd)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"preset": "easy", "swarm_algorithm": "cvt-cbf", "seed": int64(42)}, body)

	path := filepath.Join(t.TempDir(), "scenario.yaml")
	cfg := config.DefaultScenarioConfig()
	cfg.FriendlyCount = 9
	require.NoError(t, config.SaveConfig(cfg, path))
	submitOpts.scenarioFile = path

	body, err = submitBody(submitCmd)
	require.NoError(t, err)
	loaded, ok := body.(*config.ScenarioConfig)
	require.True(t, ok)
	assert.Equal(t, 9, loaded.FriendlyCount)
	assert.Equal(t, "cvt-cbf", loaded.SwarmAlgorithm)
	require.NotNil(t, loaded.Seed)
	assert.Equal(t, int64(42), *loaded.Seed)
}

func TestSubmitCommand(t *testing.T) {
	m, err := service.NewManager(service.Options{PersistInterval: 50 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	srv := httptest.NewServer(service.NewServer(m).Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(func() { envURL = "" })

	path := filepath.Join(t.TempDir(), "scenario.yaml")
	cfg := config.DefaultScenarioConfig()
	cfg.FriendlyCount, cfg.EnemyCount, cfg.MaxTime = 4, 2, 1
	require.NoError(t, config.SaveConfig(cfg, path))
	t.Cleanup(func() { submitOpts.scenarioFile = "" })

	err = execute(t, "submit", "--url", srv.URL, "-c", path, "--interval", "20ms")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Count())
}
