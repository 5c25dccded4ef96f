package storage

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
	"github.com/picogrid/swarm-defense/pkg/logger"
)

// Influx measurements
const (
	MeasurementProgress = "scenario_progress"
	MeasurementOutcome  = "scenario_outcome"
)

// InfluxConfig configures the telemetry sink. An empty URL disables it.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// PointWriter is the non-blocking write side of an influx client
type PointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// InfluxSink mirrors scenario progress and outcomes into InfluxDB as time series
type InfluxSink struct {
	client influxdb2.Client
	writer PointWriter
	done   chan struct{}
}

// NewInfluxSink connects to InfluxDB. Write errors are logged, never returned.
func NewInfluxSink(ctx context.Context, cfg InfluxConfig) (*InfluxSink, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("influx url is required")
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)
	running, err := client.Ping(ctx)
	if err != nil || !running {
		client.Close()
		if err == nil {
			err = fmt.Errorf("server not ready")
		}
		return nil, fmt.Errorf("failed to reach influx at %s: %w", cfg.URL, err)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	sink := &InfluxSink{client: client, writer: writeAPI, done: make(chan struct{})}
	go func() {
		defer close(sink.done)
		for err := range writeAPI.Errors() {
			logger.Warnf("Influx write failed: %v", err)
		}
	}()
	logger.Infof("Writing scenario telemetry to InfluxDB bucket %s", cfg.Bucket)
	return sink, nil
}

// NewInfluxSinkWithWriter builds a sink around an existing writer
func NewInfluxSinkWithWriter(w PointWriter) *InfluxSink {
	return &InfluxSink{writer: w}
}

// SaveProgress implements core.ProgressSink
func (s *InfluxSink) SaveProgress(_ context.Context, u core.ProgressUpdate) error {
	ts := u.LastModified
	if ts.IsZero() {
		ts = time.Now()
	}
	p := influxdb2.NewPointWithMeasurement(MeasurementProgress).
		AddTag("scenario_id", u.ScenarioID.String()).
		AddTag("status", u.Status).
		AddField("progress", u.Progress).
		AddField("sim_time", u.SimTime).
		AddField("frames", u.FramesRecorded).
		AddField("active_friendly", u.ActiveFriendly).
		AddField("active_enemy", u.ActiveEnemy).
		SetTime(ts)
	s.writer.WritePoint(p)
	return nil
}

// WriteOutcome records the final statistics of a scenario
func (s *InfluxSink) WriteOutcome(a *SwarmAnalytics) {
	p := influxdb2.NewPointWithMeasurement(MeasurementOutcome).
		AddTag("scenario_id", a.ScenarioID).
		AddTag("algorithm", a.AlgorithmName).
		AddField("duration", a.Duration).
		AddField("friendly_losses", a.FriendlyLosses).
		AddField("enemy_losses", a.EnemyLosses).
		AddField("survival_rate", a.SurvivalRate).
		AddField("kill_ratio", a.KillRatio).
		AddField("assets_protected", a.AssetsProtected).
		AddField("mission_success", a.MissionSuccess).
		SetTime(time.Now())
	s.writer.WritePoint(p)
}

// Close flushes pending points and closes the client
func (s *InfluxSink) Close() error {
	s.writer.Flush()
	if s.client != nil {
		s.client.Close()
		select {
		case <-s.done:
		case <-time.After(2 * time.Second):
		}
	}
	return nil
}
