package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/picogrid/swarm-defense/pkg/models"
)

// Scenario kinds, matching the service route prefixes
const (
	KindStatic  = "simulation"
	KindDynamic = "dynamic"
)

// DataParams selects a frame window; nil bounds mean the whole history
type DataParams struct {
	Start *int
	End   *int
}

// GeoJSONParams picks the frame and the lon/lat anchor of a GeoJSON export
type GeoJSONParams struct {
	Frame *int
	Lon   *float64
	Lat   *float64
}

func intParam(name string, v *int) queryParam {
	if v == nil {
		return queryParam{name: name}
	}
	return queryParam{name: name, value: *v}
}

func floatParam(name string, v *float64) queryParam {
	if v == nil {
		return queryParam{name: name}
	}
	return queryParam{name: name, value: *v}
}

func checkKind(kind string) error {
	if kind != KindStatic && kind != KindDynamic {
		return fmt.Errorf("unknown scenario kind %q", kind)
	}
	return nil
}

// Start submits a scenario. scenario is any JSON-encodable scenario
// configuration; a "preset" key selects a named preset as the base.
func (c *Client) Start(ctx context.Context, kind string, scenario interface{}) (uuid.UUID, error) {
	if err := checkKind(kind); err != nil {
		return uuid.Nil, err
	}
	if scenario == nil {
		scenario = map[string]interface{}{}
	}
	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/api/%s/start", kind), scenario)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to start scenario: %w", err)
	}

	var started models.StartSimulationResponse
	if err := decodeResponse(resp, &started); err != nil {
		return uuid.Nil, fmt.Errorf("failed to decode start response: %w", err)
	}
	return started.SimulationID, nil
}

// Status returns the lifecycle state of a scenario
func (c *Client) Status(ctx context.Context, kind string, id uuid.UUID) (*models.SimulationStatus, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/%s/%s/status", kind, id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get scenario status: %w", err)
	}

	var status models.SimulationStatus
	if err := decodeResponse(resp, &status); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	return &status, nil
}

// Data returns recorded frames in [start, end)
func (c *Client) Data(ctx context.Context, kind string, id uuid.UUID, params *DataParams) (*models.SimulationData, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	if params == nil {
		params = &DataParams{}
	}
	query, err := encodeQuery(intParam("start", params.Start), intParam("end", params.End))
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/%s/%s/data%s", kind, id, query), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get scenario data: %w", err)
	}

	var data models.SimulationData
	if err := decodeResponse(resp, &data); err != nil {
		return nil, fmt.Errorf("failed to decode data response: %w", err)
	}
	return &data, nil
}

// Analytics returns the sampled time series of a scenario
func (c *Client) Analytics(ctx context.Context, id uuid.UUID) (*models.Analytics, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/simulation/%s/analytics", id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get analytics: %w", err)
	}

	var analytics models.Analytics
	if err := decodeResponse(resp, &analytics); err != nil {
		return nil, fmt.Errorf("failed to decode analytics response: %w", err)
	}
	return &analytics, nil
}

// GeoJSON returns one frame as a raw GeoJSON FeatureCollection
func (c *Client) GeoJSON(ctx context.Context, id uuid.UUID, params *GeoJSONParams) ([]byte, error) {
	if params == nil {
		params = &GeoJSONParams{}
	}
	query, err := encodeQuery(
		intParam("frame", params.Frame),
		floatParam("lon", params.Lon),
		floatParam("lat", params.Lat),
	)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/simulation/%s/geojson%s", id, query), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get geojson: %w", err)
	}
	defer closeBody(resp.Body)
	return io.ReadAll(resp.Body)
}

// Cancel stops a queued or running scenario
func (c *Client) Cancel(ctx context.Context, id uuid.UUID) (*models.SimulationStatus, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/api/simulation/%s/cancel", id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel scenario: %w", err)
	}

	var status models.SimulationStatus
	if err := decodeResponse(resp, &status); err != nil {
		return nil, fmt.Errorf("failed to decode cancel response: %w", err)
	}
	return &status, nil
}

// Scenarios lists persisted scenario records, newest first
func (c *Client) Scenarios(ctx context.Context, offset, limit *int) (*models.PaginatedResponse[models.ScenarioRecord], error) {
	query, err := encodeQuery(intParam("offset", offset), intParam("limit", limit))
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodGet, "/api/scenarios"+query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}

	var page models.PaginatedResponse[models.ScenarioRecord]
	if err := decodeResponse(resp, &page); err != nil {
		return nil, fmt.Errorf("failed to decode scenarios response: %w", err)
	}
	return &page, nil
}

// WaitForCompletion polls until the scenario reaches a terminal status.
// onProgress, when set, sees every polled status.
func (c *Client) WaitForCompletion(ctx context.Context, kind string, id uuid.UUID, interval time.Duration, onProgress func(models.SimulationStatus)) (*models.SimulationStatus, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.Status(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		if onProgress != nil {
			onProgress(*status)
		}
		if models.IsTerminal(status.Status) {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
