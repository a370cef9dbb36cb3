package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/siot-decada-robotics/rmf-ros2/internal/nav"
	"github.com/siot-decada-robotics/rmf-ros2/internal/robot"
)

// ScanZoneCategory is the registry key for scan-zone task descriptions.
const ScanZoneCategory = "scan_zone"

// ScanZoneDescription declares a scan pass through a zone delimited by a
// start and an end waypoint. The scan hardware is physically armed by the
// dock trigger on a lane approaching the start waypoint.
type ScanZoneDescription struct {
	ZoneName      string `json:"zone_name"`
	StartWaypoint int    `json:"start_waypoint"`
	EndWaypoint   int    `json:"end_waypoint"`
	DockName      string `json:"dock_name,omitempty"`
}

// RegisterScanZone adds the scan-zone category to a deserializer.
func RegisterScanZone(d *Deserializer) {
	d.Add(ScanZoneCategory, validateScanZone, parseScanZone)
}

func validateScanZone(raw json.RawMessage) []string {
	var desc ScanZoneDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return []string{fmt.Sprintf("malformed scan_zone description: %v", err)}
	}
	var errs []string
	if desc.ZoneName == "" {
		errs = append(errs, "scan_zone description is missing zone_name")
	}
	if desc.StartWaypoint < 0 {
		errs = append(errs, fmt.Sprintf("start_waypoint %d is negative", desc.StartWaypoint))
	}
	if desc.EndWaypoint < 0 {
		errs = append(errs, fmt.Sprintf("end_waypoint %d is negative", desc.EndWaypoint))
	}
	if desc.StartWaypoint == desc.EndWaypoint {
		errs = append(errs, "start_waypoint and end_waypoint must differ")
	}
	return errs
}

func parseScanZone(raw json.RawMessage) (Builder, error) {
	var desc ScanZoneDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return nil, fmt.Errorf("malformed scan_zone description: %w", err)
	}
	return func(rc *robot.Context, bookingID string) (*Task, error) {
		return buildScanZoneTask(rc, bookingID, desc)
	}, nil
}

// buildScanZoneTask assembles the phase list for a scan pass. The zone
// traversal itself is a placeholder resolved at activation time, because
// the route, and therefore whether the dock trigger will be crossed,
// depends on where the robot is when the earlier phases finish.
func buildScanZoneTask(rc *robot.Context, bookingID string, desc ScanZoneDescription) (*Task, error) {
	if _, err := rc.Graph().Waypoint(desc.StartWaypoint); err != nil {
		return nil, fmt.Errorf("scan zone %q: %w", desc.ZoneName, err)
	}
	if _, err := rc.Graph().Waypoint(desc.EndWaypoint); err != nil {
		return nil, fmt.Errorf("scan zone %q: %w", desc.ZoneName, err)
	}

	var phases []*Phase
	id := 0

	// A robot whose previous task parks it on the zone's start waypoint
	// would begin the scan without ever crossing the trigger. Pull it out
	// to the end waypoint first.
	endState := rc.TaskEndState()
	if endState.Waypoint != nil && *endState.Waypoint == desc.StartWaypoint {
		phases = append(phases, NewPhase(id, NewGoToPlace(rc, desc.EndWaypoint)))
		id++
	}

	scan := NewPlaceholder(fmt.Sprintf("scan zone %q", desc.ZoneName), func() (Standby, error) {
		return unfoldScanZone(rc, desc)
	})
	phases = append(phases, NewPhase(id, scan))

	deployAt := rc.Now()
	t := New(bookingID, ScanZoneCategory, deployAt, phases)
	return t, nil
}

// unfoldScanZone resolves the scan placeholder against the robot's live
// position. The scan hardware arms only when the robot traverses a lane
// annotated with the zone's dock trigger, so the unfolded legs depend on
// whether the route into the start waypoint crosses such a lane:
//
//   - the route passes the trigger: [go-to-start, go-to-end]
//   - it does not, meaning the robot is already inside the zone: the robot
//     must leave through the end waypoint and come back in, giving
//     [go-to-end, go-to-start, go-to-end]
//
// The exit-then-reenter leg is a workaround for the trigger being a
// physical lane marker instead of an explicit arm command. It misjudges
// layouts where a route to the start exists that skips every annotated
// lane even though the robot is outside the zone.
func unfoldScanZone(rc *robot.Context, desc ScanZoneDescription) (Standby, error) {
	starts := rc.Location()
	route, err := rc.Planner().Plan(context.Background(), starts, desc.StartWaypoint)
	if err != nil {
		return nil, fmt.Errorf("no feasible route into scan zone %q (start waypoint %d): %w",
			desc.ZoneName, desc.StartWaypoint, err)
	}

	name := fmt.Sprintf("scan zone %q", desc.ZoneName)
	if routeCrossesDockTrigger(rc.Graph(), route, desc.StartWaypoint, desc.DockName) {
		return NewSequence(name,
			NewGoToPlace(rc, desc.StartWaypoint),
			NewGoToPlace(rc, desc.EndWaypoint),
		), nil
	}
	return NewSequence(name,
		NewGoToPlace(rc, desc.EndWaypoint),
		NewGoToPlace(rc, desc.StartWaypoint),
		NewGoToPlace(rc, desc.EndWaypoint),
	), nil
}

// routeCrossesDockTrigger reports whether the route reaches the start
// waypoint through a lane carrying the zone's dock annotation. An empty
// dockName accepts any dock annotation.
func routeCrossesDockTrigger(g *nav.Graph, route *nav.Route, startWaypoint int, dockName string) bool {
	for _, rw := range route.Waypoints {
		if rw.GraphIndex == nil || *rw.GraphIndex != startWaypoint {
			continue
		}
		for _, laneIdx := range rw.ApproachLanes {
			lane, err := g.Lane(laneIdx)
			if err != nil {
				continue
			}
			if matchesDock(lane.Entry.Event, dockName) || matchesDock(lane.Exit.Event, dockName) {
				return true
			}
		}
	}
	return false
}

func matchesDock(event *nav.LaneEvent, dockName string) bool {
	if !event.HasDock() {
		return false
	}
	return dockName == "" || event.Dock == dockName
}
