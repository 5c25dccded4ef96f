package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/picogrid/swarm-defense/pkg/logger"
)

var (
	cfgFile  string
	envName  string
	envURL   string
	logLevel string
	noColor  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "swarm-sim",
	Short: "Swarm defense simulation CLI",
	Long: `Swarm Sim runs drone swarm-vs-swarm defense scenarios locally, serves them
as a job service, and submits them to a remote service.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.swarm-sim/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "environment name to use")
	rootCmd.PersistentFlags().StringVar(&envURL, "url", "", "job service URL (overrides environment)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(batteryCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	logger.SetLevel(logger.ParseLevel(logLevel))
	logger.SetNoColor(noColor)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("$HOME/.swarm-sim")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logger.Debugf("Using config file %s", viper.ConfigFileUsed())
	}
}
