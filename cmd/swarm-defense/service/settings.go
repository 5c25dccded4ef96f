package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/storage"
	"github.com/picogrid/swarm-defense/pkg/logger"
)

// EnvPrefix scopes environment overrides, e.g. SWARM_SERVER_ADDR
const EnvPrefix = "SWARM"

// Settings configures a running job service
type Settings struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	Storage struct {
		Driver       string        `mapstructure:"driver"`
		DSN          string        `mapstructure:"dsn"`
		DumpPath     string        `mapstructure:"dump_path"`
		DumpInterval time.Duration `mapstructure:"dump_interval"`
	} `mapstructure:"storage"`
	Influx struct {
		URL    string `mapstructure:"url"`
		Token  string `mapstructure:"token"`
		Org    string `mapstructure:"org"`
		Bucket string `mapstructure:"bucket"`
	} `mapstructure:"influx"`
	Service struct {
		MaxConcurrent   int           `mapstructure:"max_concurrent"`
		PersistInterval time.Duration `mapstructure:"persist_interval"`
	} `mapstructure:"service"`
}

// SetDefaults registers every setting on v and binds SWARM_* variables
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.dump_path", "")
	v.SetDefault("storage.dump_interval", time.Minute)
	v.SetDefault("influx.url", "")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "")
	v.SetDefault("influx.bucket", "swarm")
	v.SetDefault("service.max_concurrent", defaultMaxConcurrent)
	v.SetDefault("service.persist_interval", 2*time.Second)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// LoadSettings reads the service settings from v
func LoadSettings(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("failed to decode service settings: %w", err)
	}
	return s, nil
}

// Serve opens storage, starts the manager and serves HTTP until ctx is done.
// Running scenarios are cancelled and their final records written before it
// returns.
func Serve(ctx context.Context, s Settings) error {
	store, err := storage.Open(storage.Config{
		Driver:       s.Storage.Driver,
		DSN:          s.Storage.DSN,
		DumpPath:     s.Storage.DumpPath,
		DumpInterval: s.Storage.DumpInterval,
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorf("Failed to close storage: %v", err)
		}
	}()
	logger.Infof("Storage backend: %s", s.Storage.Driver)

	var influx *storage.InfluxSink
	if s.Influx.URL != "" {
		influx, err = storage.NewInfluxSink(ctx, storage.InfluxConfig{
			URL:    s.Influx.URL,
			Token:  s.Influx.Token,
			Org:    s.Influx.Org,
			Bucket: s.Influx.Bucket,
		})
		if err != nil {
			logger.Warnf("InfluxDB telemetry disabled: %v", err)
			influx = nil
		} else {
			defer func() { _ = influx.Close() }()
		}
	}

	manager, err := NewManager(Options{
		MaxConcurrent:   s.Service.MaxConcurrent,
		Store:           store,
		Influx:          influx,
		PersistInterval: s.Service.PersistInterval,
	})
	if err != nil {
		return fmt.Errorf("failed to create scenario manager: %w", err)
	}

	serveErr := NewServer(manager).ListenAndServe(ctx, s.Server.Addr)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("Scenario manager shutdown: %v", err)
	}
	return serveErr
}
