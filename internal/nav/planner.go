package nav

import (
	"context"
	"errors"
	"time"
)

// ErrInfeasible is returned by a Planner when no route exists from any of
// the start candidates to the goal. Callers must not retry; the dependent
// event fails with a diagnostic instead.
var ErrInfeasible = errors.New("no feasible route")

// RouteWaypoint is one stop along a planned route. GraphIndex is nil for
// interpolated points that do not lie on a graph waypoint. ApproachLanes
// lists the lanes the route uses to arrive at this waypoint.
type RouteWaypoint struct {
	GraphIndex    *int       `json:"graph_index,omitempty"`
	Position      [3]float64 `json:"position"`
	ApproachLanes []int      `json:"approach_lanes,omitempty"`
}

// Route is a feasible path from one of the requested starts to the goal.
type Route struct {
	Waypoints []RouteWaypoint `json:"waypoints"`
}

// Planner is the external path-planning collaborator.
type Planner interface {
	// Plan computes a route from the best of the start candidates to the
	// goal waypoint. Returns ErrInfeasible (possibly wrapped) when no route
	// exists.
	Plan(ctx context.Context, starts []PlanStart, goal int) (*Route, error)

	// ComputePlanStarts searches the graph for start candidates consistent
	// with a measured pose on the named map. An empty result means the
	// robot has diverged from its graph.
	ComputePlanStarts(ctx context.Context, mapName string, position [3]float64,
		at time.Time, maxMergeWaypointDistance, maxMergeLaneDistance, minLaneLength float64) ([]PlanStart, error)
}
