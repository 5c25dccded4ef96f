package service

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	s, err := LoadSettings(v)
	require.NoError(t, err)
	assert.Equal(t, ":5000", s.Server.Addr)
	assert.Equal(t, "memory", s.Storage.Driver)
	assert.Equal(t, time.Minute, s.Storage.DumpInterval)
	assert.Equal(t, "swarm", s.Influx.Bucket)
	assert.Equal(t, 8, s.Service.MaxConcurrent)
	assert.Equal(t, 2*time.Second, s.Service.PersistInterval)
}

func TestLoadSettingsEnvironment(t *testing.T) {
	t.Setenv("SWARM_SERVER_ADDR", "127.0.0.1:9000")
	t.Setenv("SWARM_STORAGE_DRIVER", "sqlite")
	t.Setenv("SWARM_SERVICE_MAX_CONCURRENT", "3")

	v := viper.New()
	SetDefaults(v)

	s, err := LoadSettings(v)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", s.Server.Addr)
	assert.Equal(t, "sqlite", s.Storage.Driver)
	assert.Equal(t, 3, s.Service.MaxConcurrent)
}

func TestLoadSettingsFile(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
storage:
  driver: postgres
  dsn: host=db user=swarm
influx:
  url: http://influx:8086
  bucket: telemetry
`)))

	s, err := LoadSettings(v)
	require.NoError(t, err)
	assert.Equal(t, "postgres", s.Storage.Driver)
	assert.Equal(t, "host=db user=swarm", s.Storage.DSN)
	assert.Equal(t, "http://influx:8086", s.Influx.URL)
	assert.Equal(t, "telemetry", s.Influx.Bucket)
	assert.Equal(t, ":5000", s.Server.Addr)
}
