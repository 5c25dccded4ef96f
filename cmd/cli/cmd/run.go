package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/config"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/controllers"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/scenarios"
	"github.com/picogrid/swarm-defense/pkg/logger"
	"github.com/picogrid/swarm-defense/pkg/simulation"
	"github.com/picogrid/swarm-defense/pkg/utils"
)

const customScenario = "custom"

var runOpts struct {
	algorithm    string
	preset       string
	scenarioFile string
	seed         int64
	reportDir    string
	reportFormat string
	geojsonDir   string
	compare      bool
	convoy       bool
	quiet        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario locally",
	Long: `Run a swarm defense scenario in-process. Without an algorithm, preset or
scenario file and attached to a terminal, the scenario is chosen interactively.`,
	RunE: runScenario,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runOpts.algorithm, "algorithm", "a", "", "swarm algorithm")
	f.StringVarP(&runOpts.preset, "preset", "p", "", "scenario preset (guaranteed_win, easy, balanced, challenging)")
	f.StringVarP(&runOpts.scenarioFile, "scenario", "c", "", "scenario file (YAML or JSON)")
	f.Int64Var(&runOpts.seed, "seed", 0, "random seed (default derived from the scenario id)")
	f.StringVar(&runOpts.reportDir, "report", "", "write an after action report to this directory")
	f.StringVar(&runOpts.reportFormat, "format", "json", "report format (json, markdown, both)")
	f.StringVar(&runOpts.geojsonDir, "geojson", "", "export the final frame and tracks as GeoJSON to this directory")
	f.BoolVar(&runOpts.compare, "compare", false, "run every algorithm on the same scenario and compare them")
	f.BoolVar(&runOpts.convoy, "convoy", false, "escort a moving asset along a waypoint route")
	f.BoolVarP(&runOpts.quiet, "quiet", "q", false, "hide the event log and show a progress bar")
}

func simulationName() string {
	if runOpts.convoy {
		return scenarios.ConvoyDefenseName
	}
	return scenarios.SwarmDefenseName
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func runScenario(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	params, err := scenarioParams(cmd)
	if err != nil {
		return err
	}

	if runOpts.compare {
		return runComparison(ctx, params)
	}

	logger.LogSection(fmt.Sprintf("Starting %s", simulationName()))
	result, err := runOne(ctx, simulationName(), params, runOpts.quiet)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("Scenario interrupted")
		}
		return fmt.Errorf("simulation failed: %w", err)
	}
	printResult(result)
	return nil
}

// scenarioParams collects the parameters for Configure from flags or, on a
// terminal with nothing chosen, from prompts
func scenarioParams(cmd *cobra.Command) (map[string]interface{}, error) {
	params := map[string]interface{}{}

	nothingChosen := runOpts.algorithm == "" && runOpts.preset == "" && runOpts.scenarioFile == ""
	if nothingChosen && !runOpts.compare && isInteractive() {
		prompted, err := promptScenario()
		if err != nil {
			return nil, err
		}
		params = prompted
	}

	if runOpts.algorithm != "" {
		params["swarm_algorithm"] = runOpts.algorithm
	}
	if runOpts.preset != "" {
		params["preset"] = runOpts.preset
	}
	if runOpts.scenarioFile != "" {
		params["scenario_file"] = runOpts.scenarioFile
	}
	if cmd.Flags().Changed("seed") {
		params["seed"] = runOpts.seed
	}
	params["report_dir"] = runOpts.reportDir
	params["report_format"] = runOpts.reportFormat
	params["geojson_dir"] = runOpts.geojsonDir
	params["quiet"] = runOpts.quiet
	return params, nil
}

// promptScenario offers the presets first and falls back to the full
// parameter list from the simulation descriptor
func promptScenario() (map[string]interface{}, error) {
	presets := config.ScenarioPresets()
	options := make([]utils.Option, 0, len(presets)+1)
	for _, name := range config.PresetNames() {
		p := presets[name]
		options = append(options, utils.Option{
			Value:       name,
			Label:       p.Label,
			Description: fmt.Sprintf("%d vs %d", p.FriendlyCount, p.EnemyCount),
		})
	}
	options = append(options, utils.Option{Value: customScenario, Label: "Custom", Description: "set every parameter"})

	choice, err := utils.PromptSelect("Select scenario:", options, "balanced")
	if err != nil {
		return nil, err
	}

	if choice != customScenario {
		algorithm, err := promptAlgorithm()
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"preset": choice, "swarm_algorithm": algorithm}, nil
	}

	infos, err := utils.DiscoverSimulations()
	if err != nil {
		return nil, fmt.Errorf("failed to discover simulations: %w", err)
	}
	d, ok := utils.FindDescriptor(infos, simulationName())
	if !ok {
		return nil, fmt.Errorf("simulation descriptor not found for %s", simulationName())
	}
	return utils.PromptForParameters(d.Parameters)
}

func promptAlgorithm() (string, error) {
	algos := controllers.NewFactory(controllers.DefaultPresets()).Algorithms()
	options := make([]utils.Option, len(algos))
	for i, a := range algos {
		options[i] = utils.Option{Value: a.Value, Label: a.Label, Description: a.Description}
	}
	return utils.PromptSelect("Select swarm algorithm:", options, config.DefaultAlgorithm)
}

// runOne configures and runs a registered simulation to completion
func runOne(ctx context.Context, name string, params map[string]interface{}, showProgress bool) (*scenarios.Result, error) {
	sim, err := simulation.DefaultRegistry.Get(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get simulation: %w", err)
	}
	if err := sim.Configure(params); err != nil {
		return nil, fmt.Errorf("failed to configure simulation: %w", err)
	}

	var progress simulation.ProgressFunc
	var bar *logger.ProgressBar
	if showProgress {
		bar = logger.NewProgressBar(100, "Simulating")
		last := -1
		progress = func(p simulation.Progress) {
			if pct := int(p.Percent()); pct != last {
				last = pct
				bar.Update(pct)
			}
		}
	}

	if err := sim.Run(ctx, progress); err != nil {
		return nil, err
	}
	if bar != nil {
		bar.Finish()
	}

	swarm, ok := sim.(*scenarios.SwarmDefenseSimulation)
	if !ok || swarm.Result() == nil {
		return nil, fmt.Errorf("%s produced no result", name)
	}
	return swarm.Result(), nil
}

func printResult(r *scenarios.Result) {
	logger.LogSection("Results")
	if r.FellBack {
		logger.Warnf("Requested algorithm unknown, ran %s", r.Algorithm)
	}
	logger.LogKeyValue("Scenario", r.ScenarioID.String())
	logger.LogKeyValue("Algorithm", r.Algorithm)
	logger.LogKeyValue("Seed", r.Seed)
	if r.Degraded {
		logger.LogKeyValue("Combat profile", "degraded")
	}

	s := r.Statistics
	logger.LogKeyValue("Duration", fmt.Sprintf("%.1fs", s.Duration))
	logger.LogKeyValue("Friendly losses", s.FriendlyLosses)
	logger.LogKeyValue("Enemy losses", s.EnemyLosses)
	logger.LogKeyValue("Survival rate", fmt.Sprintf("%.0f%%", s.SurvivalRate*100))
	logger.LogKeyValue("Kill ratio", fmt.Sprintf("%.2f", s.KillRatio))
	logger.LogKeyValue("Assets protected", s.AssetsProtected)
	logger.LogKeyValue("Frames recorded", len(r.Frames))
	logger.LogKeyValue("Wall time", r.WallTime.Round(time.Millisecond))

	logger.LogSubSection("Algorithm activity")
	logger.LogKeyValue("Iterations", r.Telemetry.IterationCount)
	logger.LogKeyValue("Field strength", fmt.Sprintf("%.2f", r.Telemetry.FieldStrength))
	logger.LogKeyValue("Scouts", r.Telemetry.ScoutCount)
	if r.Telemetry.SafetyCorrections > 0 {
		logger.LogKeyValue("Barrier corrections", r.Telemetry.SafetyCorrections)
	}

	if r.ReportPath != "" {
		logger.LogKeyValue("Report", r.ReportPath)
	}
	for _, p := range r.GeoJSONPaths {
		logger.LogKeyValue("GeoJSON", p)
	}

	logger.Verdict(s.MissionSuccess, "MISSION SUCCESS", "MISSION FAILED")
}

// runComparison runs every algorithm on the same scenario and seed concurrently
func runComparison(ctx context.Context, params map[string]interface{}) error {
	if _, ok := params["seed"]; !ok {
		params["seed"] = time.Now().UnixNano()
	}
	algos := controllers.NewFactory(controllers.DefaultPresets()).Algorithms()
	logger.LogSection(fmt.Sprintf("Comparing %d algorithms (seed %v)", len(algos), params["seed"]))

	results := make([]*scenarios.Result, len(algos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, algo := range algos {
		i, algo := i, algo
		g.Go(func() error {
			p := make(map[string]interface{}, len(params)+1)
			for k, v := range params {
				p[k] = v
			}
			p["swarm_algorithm"] = algo.Value
			p["quiet"] = true

			logger.Progressf("Running %s", algo.Label)
			result, err := runOne(gctx, simulationName(), p, false)
			if err != nil {
				return fmt.Errorf("%s: %w", algo.Value, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("comparison failed: %w", err)
	}

	table := logger.NewTable("ALGORITHM", "KILL RATIO", "SURVIVAL", "LOSSES", "KILLS", "ASSETS", "SUCCESS", "WALL TIME")
	for _, r := range results {
		s := r.Statistics
		table.AddRow(
			r.Algorithm,
			fmt.Sprintf("%.2f", s.KillRatio),
			fmt.Sprintf("%.0f%%", s.SurvivalRate*100),
			fmt.Sprintf("%d", s.FriendlyLosses),
			fmt.Sprintf("%d", s.EnemyLosses),
			fmt.Sprintf("%d", s.AssetsProtected),
			fmt.Sprintf("%t", s.MissionSuccess),
			r.WallTime.Round(time.Millisecond).String(),
		)
	}
	table.Print()
	return nil
}
