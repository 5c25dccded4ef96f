package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scenario job service",
	Long: `Serve the HTTP and websocket job API. Settings come from the config file
(server, storage, influx and service sections), SWARM_* variables and flags.`,
	RunE: serve,
}

func init() {
	f := serveCmd.Flags()
	f.String("addr", ":5000", "listen address")
	f.String("storage", "memory", "storage driver (memory, sqlite, postgres)")
	f.String("dsn", "", "sqlite file or postgres DSN")
	f.String("dump", "", "sqlite only: periodic snapshot file")
	f.Int("max-concurrent", 8, "scenarios running at once")

	_ = viper.BindPFlag("server.addr", f.Lookup("addr"))
	_ = viper.BindPFlag("storage.driver", f.Lookup("storage"))
	_ = viper.BindPFlag("storage.dsn", f.Lookup("dsn"))
	_ = viper.BindPFlag("storage.dump_path", f.Lookup("dump"))
	_ = viper.BindPFlag("service.max_concurrent", f.Lookup("max-concurrent"))
}

func serve(_ *cobra.Command, _ []string) error {
	v := viper.GetViper()
	service.SetDefaults(v)
	settings, err := service.LoadSettings(v)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := service.Serve(ctx, settings); err != nil {
		return fmt.Errorf("job service stopped: %w", err)
	}
	return nil
}
