// Package nav holds the navigation-graph and path-planner collaborator
// surface. The graph is read-only once built; the planner is consumed as a
// black box that either returns a feasible route with per-waypoint approach
// annotations or an explicit infeasibility result.
package nav

import (
	"fmt"
	"time"
)

// Waypoint is one node of the navigation graph.
type Waypoint struct {
	Index    int        `json:"index"`
	MapName  string     `json:"map_name"`
	Position [2]float64 `json:"position"`
}

// LaneEvent annotates a lane endpoint with a physical activation signal.
// Dock is the trigger name; an empty Dock means no trigger on this end.
type LaneEvent struct {
	Dock string `json:"dock,omitempty"`
}

// HasDock reports whether this endpoint carries a dock trigger.
func (e *LaneEvent) HasDock() bool {
	return e != nil && e.Dock != ""
}

// LaneEnd is one endpoint of a lane.
type LaneEnd struct {
	Waypoint int        `json:"waypoint"`
	Event    *LaneEvent `json:"event,omitempty"`
}

// Lane is a directed edge between two waypoints.
type Lane struct {
	Index int     `json:"index"`
	Entry LaneEnd `json:"entry"`
	Exit  LaneEnd `json:"exit"`
}

// Graph is a read-only navigation graph of waypoints and directed lanes.
type Graph struct {
	waypoints []Waypoint
	lanes     []Lane
	lanesFrom map[int][]int
}

// NewGraph returns an empty graph ready for construction.
func NewGraph() *Graph {
	return &Graph{lanesFrom: make(map[int][]int)}
}

// AddWaypoint appends a waypoint and returns its index.
func (g *Graph) AddWaypoint(mapName string, position [2]float64) int {
	index := len(g.waypoints)
	g.waypoints = append(g.waypoints, Waypoint{
		Index:    index,
		MapName:  mapName,
		Position: position,
	})
	return index
}

// AddLane appends a directed lane and returns its index.
func (g *Graph) AddLane(entry, exit LaneEnd) int {
	index := len(g.lanes)
	g.lanes = append(g.lanes, Lane{Index: index, Entry: entry, Exit: exit})
	g.lanesFrom[entry.Waypoint] = append(g.lanesFrom[entry.Waypoint], index)
	return index
}

// NumWaypoints returns the waypoint count.
func (g *Graph) NumWaypoints() int { return len(g.waypoints) }

// Waypoint returns the waypoint at the given index.
func (g *Graph) Waypoint(index int) (Waypoint, error) {
	if index < 0 || index >= len(g.waypoints) {
		return Waypoint{}, fmt.Errorf("waypoint index %d out of range", index)
	}
	return g.waypoints[index], nil
}

// Lane returns the lane at the given index.
func (g *Graph) Lane(index int) (Lane, error) {
	if index < 0 || index >= len(g.lanes) {
		return Lane{}, fmt.Errorf("lane index %d out of range", index)
	}
	return g.lanes[index], nil
}

// LanesFrom returns the indices of lanes whose entry is the given waypoint.
func (g *Graph) LanesFrom(waypoint int) []int {
	return g.lanesFrom[waypoint]
}

// PlanStart is one candidate starting condition for a plan: the robot is
// at, or merging onto, the given waypoint. Location carries the measured
// position when the robot is not exactly on the waypoint, and Lane the lane
// it currently occupies when known.
type PlanStart struct {
	Time        time.Time   `json:"time"`
	Waypoint    int         `json:"waypoint"`
	Orientation float64     `json:"orientation"`
	Location    *[2]float64 `json:"location,omitempty"`
	Lane        *int        `json:"lane,omitempty"`
}
