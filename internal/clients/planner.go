// Package clients holds HTTP clients for external collaborators.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/siot-decada-robotics/rmf-ros2/internal/nav"
)

// PlannerClient implements nav.Planner against an external route planning
// service. The core never retries a failed plan; an infeasibility answer
// comes back as nav.ErrInfeasible and fails the dependent event.
type PlannerClient struct {
	baseURL string
	http    *http.Client
}

func NewPlannerClient(baseURL string) *PlannerClient {
	return &PlannerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type planRequest struct {
	Starts []nav.PlanStart `json:"starts"`
	Goal   int             `json:"goal"`
}

type planResponse struct {
	Feasible bool       `json:"feasible"`
	Route    *nav.Route `json:"route,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

func (c *PlannerClient) Plan(ctx context.Context, starts []nav.PlanStart, goal int) (*nav.Route, error) {
	var out planResponse
	if err := c.post(ctx, "/v1/plan", planRequest{Starts: starts, Goal: goal}, &out); err != nil {
		return nil, err
	}
	if !out.Feasible || out.Route == nil {
		return nil, fmt.Errorf("%w: %s", nav.ErrInfeasible, out.Reason)
	}
	return out.Route, nil
}

type planStartsRequest struct {
	MapName                  string     `json:"map_name"`
	Position                 [3]float64 `json:"position"`
	StartTime                time.Time  `json:"start_time"`
	MaxMergeWaypointDistance float64    `json:"max_merge_waypoint_distance"`
	MaxMergeLaneDistance     float64    `json:"max_merge_lane_distance"`
	MinLaneLength            float64    `json:"min_lane_length"`
}

type planStartsResponse struct {
	Starts []nav.PlanStart `json:"starts"`
}

func (c *PlannerClient) ComputePlanStarts(ctx context.Context, mapName string, position [3]float64,
	at time.Time, maxMergeWaypointDistance, maxMergeLaneDistance, minLaneLength float64) ([]nav.PlanStart, error) {
	req := planStartsRequest{
		MapName:                  mapName,
		Position:                 position,
		StartTime:                at,
		MaxMergeWaypointDistance: maxMergeWaypointDistance,
		MaxMergeLaneDistance:     maxMergeLaneDistance,
		MinLaneLength:            minLaneLength,
	}
	var out planStartsResponse
	if err := c.post(ctx, "/v1/plan_starts", req, &out); err != nil {
		return nil, err
	}
	return out.Starts, nil
}

func (c *PlannerClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("planner returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
