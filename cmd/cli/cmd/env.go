package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/picogrid/swarm-defense/pkg/client"
	"github.com/picogrid/swarm-defense/pkg/config"
	"github.com/picogrid/swarm-defense/pkg/logger"
)

const customURLOption = "Custom URL"

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Manage job service environments",
	Long:  `Manage the job service environments stored in ~/.swarm-sim/environments.yaml`,
}

var envListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured environments",
	RunE:  listEnvironments,
}

var envAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new environment",
	RunE:  addEnvironment,
}

var envRemoveCmd = &cobra.Command{
	Use:   "remove [name]",
	Short: "Remove an environment",
	Args:  cobra.MaximumNArgs(1),
	RunE:  removeEnvironment,
}

var envUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Select the default environment",
	Args:  cobra.ExactArgs(1),
	RunE:  useEnvironment,
}

var envAddOpts struct {
	name   string
	url    string
	apiKey string
}

func init() {
	envAddCmd.Flags().StringVar(&envAddOpts.name, "name", "", "environment name")
	envAddCmd.Flags().StringVar(&envAddOpts.url, "service-url", "", "job service URL")
	envAddCmd.Flags().StringVar(&envAddOpts.apiKey, "api-key-env", "", "variable holding the API key")

	envCmd.AddCommand(envListCmd)
	envCmd.AddCommand(envAddCmd)
	envCmd.AddCommand(envRemoveCmd)
	envCmd.AddCommand(envUseCmd)
}

func listEnvironments(_ *cobra.Command, _ []string) error {
	cfg, err := config.LoadEnvironments()
	if err != nil {
		return fmt.Errorf("failed to load environments: %w", err)
	}

	if len(cfg.Environments) == 0 {
		logger.Info("No environments configured")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tURL\tAPI KEY\tSELECTED")
	_, _ = fmt.Fprintln(w, "----\t---\t-------\t--------")

	for _, env := range cfg.Environments {
		keyInfo := "none"
		if env.APIKey != "" {
			keyInfo = fmt.Sprintf("$%s", env.APIKey)
		}
		selected := ""
		if env.Name == cfg.Selected {
			selected = "*"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", env.Name, env.URL, keyInfo, selected)
	}

	return w.Flush()
}

func addEnvironment(_ *cobra.Command, _ []string) error {
	cfg, err := config.LoadEnvironments()
	if err != nil {
		return fmt.Errorf("failed to load environments: %w", err)
	}

	env := config.Environment{Name: envAddOpts.name, URL: envAddOpts.url, APIKey: envAddOpts.apiKey}

	if env.Name == "" {
		if err := survey.AskOne(&survey.Input{Message: "Environment name:"}, &env.Name, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
	}
	if env.URL == "" {
		urlPrompt := &survey.Input{
			Message: "Job service URL:",
			Default: "http://localhost:5000",
		}
		if err := survey.AskOne(urlPrompt, &env.URL, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
		apiKeyPrompt := &survey.Input{
			Message: "API key environment variable (optional):",
			Help:    "Name of the environment variable that contains the API key",
		}
		if err := survey.AskOne(apiKeyPrompt, &env.APIKey); err != nil {
			return err
		}
	}

	if _, err := client.New(env.URL, ""); err != nil {
		return err
	}
	if err := cfg.Add(env); err != nil {
		return err
	}
	if err := config.SaveEnvironments(cfg); err != nil {
		return fmt.Errorf("failed to save environments: %w", err)
	}

	logger.Successf("Environment %s added", env.Name)
	return nil
}

func removeEnvironment(_ *cobra.Command, args []string) error {
	cfg, err := config.LoadEnvironments()
	if err != nil {
		return fmt.Errorf("failed to load environments: %w", err)
	}

	if len(cfg.Environments) == 0 {
		logger.Info("No environments to remove")
		return nil
	}

	var selected string
	if len(args) == 1 {
		selected = args[0]
	} else {
		names := make([]string, len(cfg.Environments))
		for i, env := range cfg.Environments {
			names[i] = env.Name
		}
		prompt := &survey.Select{
			Message: "Select environment to remove:",
			Options: names,
		}
		if err := survey.AskOne(prompt, &selected); err != nil {
			return err
		}

		var confirm bool
		confirmPrompt := &survey.Confirm{
			Message: fmt.Sprintf("Are you sure you want to remove %s?", selected),
			Default: false,
		}
		if err := survey.AskOne(confirmPrompt, &confirm); err != nil {
			return err
		}
		if !confirm {
			logger.Info("Removal cancelled")
			return nil
		}
	}

	if err := cfg.Remove(selected); err != nil {
		return err
	}
	if err := config.SaveEnvironments(cfg); err != nil {
		return fmt.Errorf("failed to save environments: %w", err)
	}

	logger.Successf("Environment %s removed", selected)
	return nil
}

func useEnvironment(_ *cobra.Command, args []string) error {
	cfg, err := config.LoadEnvironments()
	if err != nil {
		return fmt.Errorf("failed to load environments: %w", err)
	}
	if _, ok := cfg.Find(args[0]); !ok {
		return fmt.Errorf("environment %s not found", args[0])
	}
	cfg.Selected = args[0]
	if err := config.SaveEnvironments(cfg); err != nil {
		return fmt.Errorf("failed to save environments: %w", err)
	}
	logger.Successf("Using environment %s", args[0])
	return nil
}

// selectEnvironment resolves the target service: --url, then SWARM_URL, then
// --env, then the selected environment, then a prompt on a terminal, then the
// first configured environment
func selectEnvironment() (*config.Environment, string, error) {
	if envURL != "" {
		return &config.Environment{Name: "Custom", URL: envURL}, os.Getenv("SWARM_API_KEY"), nil
	}
	if u := os.Getenv("SWARM_URL"); u != "" {
		return &config.Environment{Name: "Environment", URL: u}, os.Getenv("SWARM_API_KEY"), nil
	}

	envConfig, err := config.LoadEnvironments()
	if err != nil {
		return nil, "", err
	}

	name := envName
	if name == "" {
		name = envConfig.Selected
	}
	if name != "" {
		env, ok := envConfig.Find(name)
		if !ok {
			return nil, "", fmt.Errorf("environment %s not found", name)
		}
		return env, client.GetAPIKey(env.APIKey), nil
	}

	if len(envConfig.Environments) == 0 {
		return nil, "", fmt.Errorf("no environments configured, use --url or 'swarm-sim env add'")
	}
	if !isInteractive() {
		env := envConfig.Environments[0]
		return &env, client.GetAPIKey(env.APIKey), nil
	}

	options := make([]string, len(envConfig.Environments)+1)
	for i, env := range envConfig.Environments {
		options[i] = env.Name
	}
	options[len(options)-1] = customURLOption

	var selected string
	if err := survey.AskOne(&survey.Select{Message: "Select environment:", Options: options}, &selected); err != nil {
		return nil, "", err
	}

	if selected == customURLOption {
		var customURL string
		urlPrompt := &survey.Input{
			Message: "Enter job service URL:",
			Default: "http://localhost:5000",
		}
		if err := survey.AskOne(urlPrompt, &customURL); err != nil {
			return nil, "", err
		}
		var apiKey string
		if err := survey.AskOne(&survey.Password{Message: "Enter API key (optional):"}, &apiKey); err != nil {
			return nil, "", err
		}
		return &config.Environment{Name: "Custom", URL: customURL}, apiKey, nil
	}

	env, _ := envConfig.Find(selected)
	return env, client.GetAPIKey(env.APIKey), nil
}
