package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/config"
	"github.com/picogrid/swarm-defense/pkg/client"
	"github.com/picogrid/swarm-defense/pkg/logger"
	"github.com/picogrid/swarm-defense/pkg/models"
)

var submitOpts struct {
	algorithm    string
	preset       string
	scenarioFile string
	seed         int64
	dynamic      bool
	detach       bool
	interval     time.Duration
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a scenario to a job service",
	Long: `Submit a scenario to a remote job service and follow its progress until it
finishes. The service comes from --url, SWARM_URL, --env or the selected environment.`,
	RunE: submitScenario,
}

func init() {
	f := submitCmd.Flags()
	f.StringVarP(&submitOpts.algorithm, "algorithm", "a", "", "swarm algorithm")
	f.StringVarP(&submitOpts.preset, "preset", "p", "", "scenario preset")
	f.StringVarP(&submitOpts.scenarioFile, "scenario", "c", "", "scenario file (YAML or JSON)")
	f.Int64Var(&submitOpts.seed, "seed", 0, "random seed")
	f.BoolVar(&submitOpts.dynamic, "dynamic", false, "submit as a moving-asset scenario")
	f.BoolVar(&submitOpts.detach, "detach", false, "return once the scenario is accepted")
	f.DurationVar(&submitOpts.interval, "interval", time.Second, "status poll interval")
}

// submitBody builds the request: a scenario file wins, otherwise preset,
// algorithm and seed are sent for the service to fill in
func submitBody(cmd *cobra.Command) (interface{}, error) {
	if submitOpts.scenarioFile != "" {
		cfg, err := config.LoadConfig(submitOpts.scenarioFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load scenario: %w", err)
		}
		if submitOpts.algorithm != "" {
			cfg.SwarmAlgorithm = submitOpts.algorithm
		}
		if cmd.Flags().Changed("seed") {
			seed := submitOpts.seed
			cfg.Seed = &seed
		}
		return cfg, nil
	}

	body := map[string]interface{}{}
	if submitOpts.preset != "" {
		body["preset"] = submitOpts.preset
	}
	if submitOpts.algorithm != "" {
		body["swarm_algorithm"] = submitOpts.algorithm
	}
	if cmd.Flags().Changed("seed") {
		body["seed"] = submitOpts.seed
	}
	return body, nil
}

func submitScenario(cmd *cobra.Command, _ []string) error {
	env, apiKey, err := selectEnvironment()
	if err != nil {
		return fmt.Errorf("failed to select environment: %w", err)
	}

	c, err := client.New(env.URL, apiKey)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connect := fmt.Sprintf("Connecting to %s (%s)", env.Name, env.URL)
	if err := logger.WithSpinner(connect, func() error { return c.ValidateConnection(ctx) }); err != nil {
		return fmt.Errorf("failed to connect to job service: %w", err)
	}

	body, err := submitBody(cmd)
	if err != nil {
		return err
	}

	kind := client.KindStatic
	if submitOpts.dynamic {
		kind = client.KindDynamic
	}
	id, err := c.Start(ctx, kind, body)
	if err != nil {
		return err
	}
	logger.Networkf("Scenario %s accepted by %s", id, c.BaseURL())
	if submitOpts.detach {
		return nil
	}

	bar := logger.NewProgressBar(100, "Simulating")
	status, err := c.WaitForCompletion(ctx, kind, id, submitOpts.interval, func(s models.SimulationStatus) {
		bar.Update(int(s.Progress))
	})
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("Interrupted, cancelling the scenario")
			cancelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, cerr := c.Cancel(cancelCtx, id); cerr != nil {
				logger.Errorf("Failed to cancel scenario: %v", cerr)
			}
		}
		return err
	}
	bar.Finish()

	printRemoteStatus(status)
	if status.Status != models.StatusCompleted {
		return fmt.Errorf("scenario ended %s", status.Status)
	}
	return nil
}

func printRemoteStatus(status *models.SimulationStatus) {
	logger.LogSection("Results")
	logger.LogKeyValue("Scenario", status.ID.String())
	logger.LogKeyValue("Status", status.Status)
	if status.Error != "" {
		logger.LogKeyValue("Error", status.Error)
	}
	s := status.Statistics
	if s == nil {
		return
	}
	logger.LogKeyValue("Duration", fmt.Sprintf("%.1fs", s.Duration))
	logger.LogKeyValue("Friendly losses", s.FriendlyLosses)
	logger.LogKeyValue("Enemy losses", s.EnemyLosses)
	logger.LogKeyValue("Survival rate", fmt.Sprintf("%.0f%%", s.SurvivalRate*100))
	logger.LogKeyValue("Kill ratio", fmt.Sprintf("%.2f", s.KillRatio))
	logger.LogKeyValue("Assets protected", s.AssetsProtected)
	logger.Verdict(s.MissionSuccess, "MISSION SUCCESS", "MISSION FAILED")
}
