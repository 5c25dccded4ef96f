package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/service"
	"github.com/picogrid/swarm-defense/pkg/logger"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()
	service.SetDefaults(v)
	v.SetDefault("log_level", "info")
	v.SetConfigName("swarm-defense")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/swarm-defense")
	if err := v.ReadInConfig(); err == nil {
		logger.Infof("Using config file %s", v.ConfigFileUsed())
	}
	logger.SetLevel(logger.ParseLevel(v.GetString("log_level")))

	settings, err := service.LoadSettings(v)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := service.Serve(ctx, settings); err != nil {
		logger.Errorf("Job service stopped: %v", err)
		os.Exit(1)
	}
}
