package scenarios

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	pkgsim "github.com/picogrid/swarm-defense/pkg/simulation"
)

func smallScenario() map[string]interface{} {
	return map[string]interface{}{
		"swarm_algorithm": "cbba-superiority",
		"friendly_count":  float64(4),
		"enemy_count":     3,
		"max_time":        2,
		"seed":            7,
		"quiet":           true,
	}
}

func TestRegistered(t *testing.T) {
	for _, name := range []string{SwarmDefenseName, ConvoyDefenseName} {
		sim, err := pkgsim.DefaultRegistry.Get(name)
		if err != nil {
			t.Fatalf("Get(%q) error = %v", name, err)
		}
		if sim.Name() != name {
			t.Errorf("Name() = %q, want %q", sim.Name(), name)
		}
		if _, ok := sim.(pkgsim.Reporter); !ok {
			t.Errorf("%s does not report results", name)
		}
	}
}

func TestConfigure(t *testing.T) {
	sim := NewSwarmDefenseSimulation().(*SwarmDefenseSimulation)
	if err := sim.Configure(smallScenario()); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	cfg := sim.Config()
	if cfg.FriendlyCount != 4 || cfg.EnemyCount != 3 {
		t.Errorf("counts = %d/%d, want 4/3", cfg.FriendlyCount, cfg.EnemyCount)
	}
	if cfg.SwarmAlgorithm != "cbba-superiority" {
		t.Errorf("algorithm = %q", cfg.SwarmAlgorithm)
	}
	if cfg.Seed == nil || *cfg.Seed != 7 {
		t.Errorf("seed = %v, want 7", cfg.Seed)
	}
	if len(cfg.AssetPath) != 0 {
		t.Errorf("static scenario got an asset path")
	}
}

func TestConfigureFromScenarioFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	data := []byte("swarm_algorithm: cvt-cbf\nfriendly_count: 9\nenemy_count: 5\nmax_time: 30\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	sim := NewSwarmDefenseSimulation().(*SwarmDefenseSimulation)
	err := sim.Configure(map[string]interface{}{"scenario_file": path, "enemy_count": 6})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	cfg := sim.Config()
	if cfg.SwarmAlgorithm != "cvt-cbf" || cfg.FriendlyCount != 9 {
		t.Errorf("file values not applied: %s", cfg)
	}
	if cfg.EnemyCount != 6 {
		t.Errorf("enemy_count = %d, params should win over the file", cfg.EnemyCount)
	}

	if err := sim.Configure(map[string]interface{}{"scenario_file": filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Error("Configure() accepted a missing scenario file")
	}
}

func TestConfigureEnvironment(t *testing.T) {
	t.Setenv("SWARM_FRIENDLY_COUNT", "11")

	sim := NewSwarmDefenseSimulation().(*SwarmDefenseSimulation)
	if err := sim.Configure(map[string]interface{}{}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if got := sim.Config().FriendlyCount; got != 11 {
		t.Errorf("FriendlyCount = %d, want 11 from the environment", got)
	}
}

func TestConvoyGetsDefaultRoute(t *testing.T) {
	sim := NewConvoyDefenseSimulation().(*SwarmDefenseSimulation)
	if err := sim.Configure(smallScenario()); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if got := len(sim.Config().AssetPath); got != len(ConvoyRoute) {
		t.Errorf("asset path has %d waypoints, want %d", got, len(ConvoyRoute))
	}
}

func TestRunRequiresConfigure(t *testing.T) {
	sim := NewSwarmDefenseSimulation()
	if err := sim.Run(context.Background(), nil); err == nil {
		t.Error("Run() before Configure() succeeded")
	}
}

func TestRun(t *testing.T) {
	tests := []struct {
		name    string
		factory func() pkgsim.Simulation
	}{
		{"static", NewSwarmDefenseSimulation},
		{"convoy", NewConvoyDefenseSimulation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := tt.factory().(*SwarmDefenseSimulation)
			params := smallScenario()
			params["report_dir"] = t.TempDir()
			params["geojson_dir"] = t.TempDir()
			if err := sim.Configure(params); err != nil {
				t.Fatalf("Configure() error = %v", err)
			}

			var last pkgsim.Progress
			calls := 0
			err := sim.Run(context.Background(), func(p pkgsim.Progress) {
				calls++
				if p.Step <= last.Step {
					t.Errorf("progress went from step %d to %d", last.Step, p.Step)
				}
				last = p
			})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if calls == 0 || last.TotalSteps != sim.Config().MaxSteps() {
				t.Errorf("progress calls=%d total=%d", calls, last.TotalSteps)
			}

			res := sim.Result()
			if res == nil {
				t.Fatal("Result() is nil after Run()")
			}
			if res.Seed != 7 || res.Algorithm != "cbba-superiority" {
				t.Errorf("result = seed %d algorithm %q", res.Seed, res.Algorithm)
			}
			if len(res.Frames) == 0 {
				t.Error("no frames recorded")
			}
			if _, err := os.Stat(res.ReportPath); err != nil {
				t.Errorf("report not written: %v", err)
			}
			if len(res.GeoJSONPaths) != 2 {
				t.Errorf("geojson paths = %v", res.GeoJSONPaths)
			}

			report := sim.Report()
			for _, key := range []string{"scenario_id", "statistics", "telemetry", "frames_recorded"} {
				if _, ok := report[key]; !ok {
					t.Errorf("Report() missing %q", key)
				}
			}
		})
	}
}

func TestRunCancelled(t *testing.T) {
	sim := NewSwarmDefenseSimulation().(*SwarmDefenseSimulation)
	if err := sim.Configure(smallScenario()); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sim.Run(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if sim.Result() != nil {
		t.Error("cancelled run left a result")
	}
}

func TestStopCancelsRun(t *testing.T) {
	sim := NewSwarmDefenseSimulation().(*SwarmDefenseSimulation)
	params := smallScenario()
	params["max_time"] = 600
	if err := sim.Configure(params); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	err := sim.Run(context.Background(), func(p pkgsim.Progress) {
		if p.Step == 10 {
			_ = sim.Stop()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestStopWithoutRun(t *testing.T) {
	if err := NewConvoyDefenseSimulation().Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestConfigureFromPreset(t *testing.T) {
	sim := NewSwarmDefenseSimulation().(*SwarmDefenseSimulation)
	err := sim.Configure(map[string]interface{}{
		"preset":          "challenging",
		"swarm_algorithm": "cvt-cbf",
		"max_time":        30,
	})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	cfg := sim.Config()
	if cfg.FriendlyCount != 16 || cfg.EnemyCount != 18 {
		t.Errorf("counts = %d/%d, want 16/18", cfg.FriendlyCount, cfg.EnemyCount)
	}
	if cfg.GroundAttackRatio != 0.45 {
		t.Errorf("ground_attack_ratio = %v, want 0.45", cfg.GroundAttackRatio)
	}
	if cfg.MaxTime != 30 {
		t.Errorf("max_time = %v, want the override 30", cfg.MaxTime)
	}
	if cfg.SwarmAlgorithm != "cvt-cbf" {
		t.Errorf("algorithm = %q", cfg.SwarmAlgorithm)
	}

	if err := sim.Configure(map[string]interface{}{"preset": "hopeless"}); err == nil {
		t.Error("unknown preset should fail")
	}
}
