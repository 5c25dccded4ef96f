package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/picogrid/swarm-defense/pkg/models"
)

// Presets returns the named scenario presets
func (c *Client) Presets(ctx context.Context) (map[string]models.Preset, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/scenarios/presets", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get presets: %w", err)
	}

	var presets map[string]models.Preset
	if err := decodeResponse(resp, &presets); err != nil {
		return nil, fmt.Errorf("failed to decode presets response: %w", err)
	}
	return presets, nil
}

// Algorithms lists the swarm algorithms the service can run
func (c *Client) Algorithms(ctx context.Context) ([]models.Algorithm, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/algorithms", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get algorithms: %w", err)
	}

	var algorithms []models.Algorithm
	if err := decodeResponse(resp, &algorithms); err != nil {
		return nil, fmt.Errorf("failed to decode algorithms response: %w", err)
	}
	return algorithms, nil
}

// Health reports service liveness
func (c *Client) Health(ctx context.Context) (*models.Health, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get health: %w", err)
	}

	var health models.Health
	if err := decodeResponse(resp, &health); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &health, nil
}

// ValidateConnection checks that the service answers and is healthy
func (c *Client) ValidateConnection(ctx context.Context) error {
	health, err := c.Health(ctx)
	if err != nil {
		return err
	}
	if health.Status != "healthy" {
		return fmt.Errorf("service reports status %q", health.Status)
	}
	return nil
}
