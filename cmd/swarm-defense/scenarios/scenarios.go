// Package scenarios exposes the swarm engine through the pkg/simulation
// registry so the CLI can discover, configure and run it like any other
// simulation.
package scenarios

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/config"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/controllers"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/reporting"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/simulation"
	"github.com/picogrid/swarm-defense/pkg/logger"
	pkgsim "github.com/picogrid/swarm-defense/pkg/simulation"
)

// Registered simulation names
const (
	SwarmDefenseName  = "Swarm Defense"
	ConvoyDefenseName = "Convoy Defense"
)

// ConvoyRoute is the asset path used when a convoy scenario has none
var ConvoyRoute = config.Waypoints{
	{Time: 0, Position: core.Vec(0, 0, 0)},
	{Time: 30, Position: core.Vec(600, 0, 0)},
	{Time: 60, Position: core.Vec(600, 0, 600)},
	{Time: 90, Position: core.Vec(0, 0, 600)},
}

// Result is what a finished run leaves behind
type Result struct {
	ScenarioID   uuid.UUID
	Algorithm    string
	FellBack     bool
	Seed         int64
	Degraded     bool
	Statistics   simulation.Statistics
	Telemetry    controllers.Telemetry
	Frames       []simulation.Frame
	WallTime     time.Duration
	ReportPath   string
	GeoJSONPaths []string
}

// SwarmDefenseSimulation runs one scenario in-process with a colored event
// log and an optional after action report.
type SwarmDefenseSimulation struct {
	name        string
	description string
	convoy      bool

	cfg          *config.ScenarioConfig
	reportDir    string
	reportFormat string
	reportDetail string
	geojsonDir   string
	quiet        bool

	mu     sync.Mutex
	cancel context.CancelFunc
	result *Result
}

// NewSwarmDefenseSimulation creates the static-asset scenario
func NewSwarmDefenseSimulation() pkgsim.Simulation {
	return &SwarmDefenseSimulation{
		name:        SwarmDefenseName,
		description: "Friendly swarm defends ground assets against an incoming air and ground drone swarm",
	}
}

// NewConvoyDefenseSimulation creates the moving-asset scenario
func NewConvoyDefenseSimulation() pkgsim.Simulation {
	return &SwarmDefenseSimulation{
		name:        ConvoyDefenseName,
		description: "Friendly swarm escorts a moving asset along a waypoint route",
		convoy:      true,
	}
}

func (s *SwarmDefenseSimulation) Name() string {
	return s.name
}

func (s *SwarmDefenseSimulation) Description() string {
	return s.description
}

// Configure builds the scenario from an optional scenario_file or preset,
// SWARM_* environment variables and finally params. Numeric params may arrive as int
// or float64.
func (s *SwarmDefenseSimulation) Configure(params map[string]interface{}) error {
	if val, ok := params["log_level"].(string); ok && val != "" {
		logger.SetLevel(logger.ParseLevel(val))
	}

	cfg := config.DefaultScenarioConfig()
	if path, ok := params["scenario_file"].(string); ok && path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return fmt.Errorf("failed to load scenario: %w", err)
		}
		cfg = loaded
	} else if name, ok := params["preset"].(string); ok && name != "" {
		algorithm, _ := params["swarm_algorithm"].(string)
		preset, err := config.PresetConfig(name, algorithm)
		if err != nil {
			return err
		}
		cfg = preset
	}
	config.MergeWithEnvironment(cfg)
	config.MergeWithCLIOverrides(cfg, params)

	if s.convoy && len(cfg.AssetPath) == 0 {
		cfg.AssetPath = append(config.Waypoints(nil), ConvoyRoute...)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}

	s.reportFormat = "json"
	s.reportDetail = "detailed"
	s.reportDir, s.geojsonDir, s.quiet = "", "", false
	if val, ok := params["report_dir"].(string); ok {
		s.reportDir = val
	}
	if val, ok := params["report_format"].(string); ok && val != "" {
		s.reportFormat = val
	}
	if val, ok := params["report_detail"].(string); ok && val != "" {
		s.reportDetail = val
	}
	if val, ok := params["geojson_dir"].(string); ok {
		s.geojsonDir = val
	}
	if val, ok := params["quiet"].(bool); ok {
		s.quiet = val
	}

	s.mu.Lock()
	s.cfg = cfg
	s.result = nil
	s.mu.Unlock()

	logger.Debugf("Configured %s: %s", s.name, cfg)
	return nil
}

// Config returns a copy of the configured scenario, nil before Configure
func (s *SwarmDefenseSimulation) Config() *config.ScenarioConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		return nil
	}
	return s.cfg.Clone()
}

// Run executes the scenario to completion or until ctx is cancelled or Stop
// is called. Reports are written after a run that was not cancelled.
func (s *SwarmDefenseSimulation) Run(ctx context.Context, progress pkgsim.ProgressFunc) error {
	s.mu.Lock()
	if s.cfg == nil {
		s.mu.Unlock()
		return fmt.Errorf("%s is not configured", s.name)
	}
	cfg := s.cfg.Clone()
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	id := uuid.New()
	events := reporting.NewSimulationLogger(id.String())
	if s.quiet {
		events.SetOutput(io.Discard)
	}

	engine, err := simulation.NewEngine(cfg,
		simulation.WithScenarioID(id),
		simulation.WithEventRecorder(events),
	)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	state, err := engine.Initialize()
	if err != nil {
		return fmt.Errorf("failed to initialize scenario: %w", err)
	}
	if state.FellBack {
		logger.Warnf("Unknown algorithm %q, running %s", cfg.SwarmAlgorithm, state.Algorithm)
	}
	events.LogStart(state.Algorithm, cfg.FriendlyCount, cfg.EnemyCount)

	started := time.Now()
	tick := func(step int) {
		if progress == nil {
			return
		}
		progress(pkgsim.Progress{
			Step:       step,
			TotalSteps: state.MaxSteps,
			SimTime:    engine.Time(),
		})
	}

	if s.convoy {
		err = simulation.NewDynamicRunner(engine).Run(ctx, tick)
	} else {
		err = engine.Run(ctx, cfg.HistoryStride, tick)
	}
	if err != nil {
		events.LogError("Scenario interrupted", err, nil)
		return err
	}

	stats := engine.Statistics()
	result := &Result{
		ScenarioID: id,
		Algorithm:  state.Algorithm,
		FellBack:   state.FellBack,
		Seed:       state.Seed,
		Degraded:   state.Degraded,
		Statistics: stats,
		Telemetry:  engine.AlgorithmTelemetry(),
		Frames:     engine.FrameHistory(),
		WallTime:   time.Since(started),
	}

	events.UpdateMetric("kill_ratio", stats.KillRatio, "ratio")
	events.UpdateMetric("survival_rate", stats.SurvivalRate*100, "%")
	events.UpdateMetric("assets_protected", float64(stats.AssetsProtected), "assets")
	events.LogObjective(objectiveStatus(stats), stats.Map())
	if !s.quiet {
		events.PrintSummary()
	}

	if s.reportDir != "" {
		path, err := s.writeReport(events, cfg, result)
		if err != nil {
			logger.Warnf("Failed to write after action report: %v", err)
		}
		result.ReportPath = path
	}
	if s.geojsonDir != "" {
		paths, err := reporting.SaveGeoJSON(s.geojsonDir, id.String(), result.Frames, reporting.DefaultOrigin)
		if err != nil {
			logger.Warnf("Failed to export GeoJSON: %v", err)
		}
		result.GeoJSONPaths = paths
	}

	s.mu.Lock()
	s.result = result
	s.mu.Unlock()
	return nil
}

func (s *SwarmDefenseSimulation) writeReport(events *reporting.SimulationLogger, cfg *config.ScenarioConfig, result *Result) (string, error) {
	gen := reporting.NewAARGenerator(events, reporting.AARConfig{
		OutputDir:   s.reportDir,
		Format:      s.reportFormat,
		DetailLevel: s.reportDetail,
	})
	aar, err := gen.GenerateAAR(reporting.Outcome{
		Algorithm:      result.Algorithm,
		Seed:           result.Seed,
		Degraded:       result.Degraded,
		FriendlyCount:  cfg.FriendlyCount,
		EnemyCount:     cfg.EnemyCount,
		AssetCount:     len(cfg.Assets),
		Statistics:     result.Statistics,
		Telemetry:      result.Telemetry,
		FramesRecorded: len(result.Frames),
		WallTime:       result.WallTime,
	})
	if err != nil {
		return "", err
	}
	return gen.SaveAAR(aar)
}

func objectiveStatus(stats simulation.Statistics) string {
	if stats.MissionSuccess {
		return "Mission accomplished"
	}
	return "Mission failed"
}

// Stop cancels a running scenario
func (s *SwarmDefenseSimulation) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// Result returns the outcome of the last completed run, nil before one finished
func (s *SwarmDefenseSimulation) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Report summarises the last run for generic callers
func (s *SwarmDefenseSimulation) Report() map[string]interface{} {
	r := s.Result()
	if r == nil {
		return nil
	}
	return map[string]interface{}{
		"scenario_id":     r.ScenarioID.String(),
		"algorithm":       r.Algorithm,
		"seed":            r.Seed,
		"degraded":        r.Degraded,
		"statistics":      r.Statistics.Map(),
		"telemetry":       r.Telemetry,
		"frames_recorded": len(r.Frames),
		"wall_time":       r.WallTime.String(),
		"report_path":     r.ReportPath,
		"geojson_paths":   r.GeoJSONPaths,
	}
}

func init() {
	for name, factory := range map[string]func() pkgsim.Simulation{
		SwarmDefenseName:  NewSwarmDefenseSimulation,
		ConvoyDefenseName: NewConvoyDefenseSimulation,
	} {
		if err := pkgsim.DefaultRegistry.Register(name, factory); err != nil {
			logger.Errorf("Failed to register %s simulation: %v", name, err)
		}
	}
}
