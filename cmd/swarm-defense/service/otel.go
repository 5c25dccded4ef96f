package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/picogrid/swarm-defense/cmd/swarm-defense/service"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// metrics are recorded through the global OTel provider (no-op if unset)
type metrics struct {
	started      metric.Int64Counter
	finished     metric.Int64Counter
	ticks        metric.Int64Counter
	running      metric.Int64UpDownCounter
	stepDuration metric.Float64Histogram
}

func newMetrics() (*metrics, error) {
	m := meter()
	out := &metrics{}

	var err error
	out.started, err = m.Int64Counter(
		"scenarios.started",
		metric.WithDescription("Scenarios accepted by the service"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating started counter: %w", err)
	}

	out.finished, err = m.Int64Counter(
		"scenarios.finished",
		metric.WithDescription("Scenarios that reached a terminal status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating finished counter: %w", err)
	}

	out.ticks, err = m.Int64Counter(
		"scenarios.ticks",
		metric.WithDescription("Simulation steps taken"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	out.running, err = m.Int64UpDownCounter(
		"scenarios.running",
		metric.WithDescription("Scenarios currently stepping"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating running gauge: %w", err)
	}

	out.stepDuration, err = m.Float64Histogram(
		"scenarios.step.duration",
		metric.WithDescription("Wall time of one simulation step"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating step duration histogram: %w", err)
	}

	return out, nil
}

func algorithmAttrs(kind, algorithm string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("algorithm", algorithm),
	)
}

func (m *metrics) scenarioStarted(ctx context.Context, kind, algorithm string) {
	m.started.Add(ctx, 1, algorithmAttrs(kind, algorithm))
}

func (m *metrics) scenarioFinished(ctx context.Context, kind, algorithm, status string) {
	m.finished.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("algorithm", algorithm),
		attribute.String("status", status),
	))
}

func (m *metrics) step(ctx context.Context, opt metric.MeasurementOption, took time.Duration) {
	m.ticks.Add(ctx, 1, opt)
	m.stepDuration.Record(ctx, float64(took.Microseconds())/1000, opt)
}
