package robot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/siot-decada-robotics/rmf-ros2/internal/nav"
)

var (
	// ErrInvalidArgument is returned when an update carries data that can
	// never describe a valid robot state, such as an empty lane set.
	ErrInvalidArgument = errors.New("robot: invalid argument")
)

// contextRef is the weak-reference boundary between an UpdateHandle held by
// the fleet integrator and the Context owned by the engine. Once the engine
// disconnects the context, further updates through the handle are dropped
// and the loss is reported once.
type contextRef struct {
	mu           sync.Mutex
	ctx          *Context
	name         string
	reportedLoss bool
}

// get returns the live context, or nil after disconnection. The first nil
// observation logs an error; subsequent ones are silent.
func (r *contextRef) get() *Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx == nil {
		if !r.reportedLoss {
			r.reportedLoss = true
			slog.Error("robot context is no longer available", "robot", r.name)
		}
		return nil
	}
	return r.ctx
}

func (r *contextRef) disconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctx = nil
}

// UpdateHandle is the integrator-facing surface for reporting robot state.
// All updates are scheduled on the robot's worker and never block the
// caller. After Disconnect, updates become no-ops.
type UpdateHandle struct {
	ref *contextRef
}

// NewUpdateHandle wraps a context for integrator use.
func NewUpdateHandle(ctx *Context) *UpdateHandle {
	return &UpdateHandle{ref: &contextRef{ctx: ctx, name: ctx.Name()}}
}

// Disconnect severs the handle from its context. Pending queued updates
// still run; later calls through the handle are dropped.
func (h *UpdateHandle) Disconnect() {
	h.ref.disconnect()
}

// UpdatePositionWaypoint reports that the robot is sitting cleanly on a
// known waypoint with the given orientation.
func (h *UpdateHandle) UpdatePositionWaypoint(waypoint int, orientation float64) {
	ctx := h.ref.get()
	if ctx == nil {
		return
	}
	at := ctx.Now()
	ctx.Worker().Schedule(func() {
		ctx.setLocation([]nav.PlanStart{{
			Time:        at,
			Waypoint:    waypoint,
			Orientation: orientation,
		}})
	})
}

// UpdatePositionLanes reports the robot's raw position together with the
// lanes it may currently occupy. An empty lane set is rejected and the
// current plan-start candidates are left untouched.
func (h *UpdateHandle) UpdatePositionLanes(position [3]float64, lanes []int) error {
	if len(lanes) == 0 {
		return fmt.Errorf("%w: at least one lane must be specified", ErrInvalidArgument)
	}
	ctx := h.ref.get()
	if ctx == nil {
		return nil
	}
	at := ctx.Now()
	laneSet := append([]int(nil), lanes...)
	ctx.Worker().Schedule(func() {
		starts := make([]nav.PlanStart, 0, len(laneSet))
		for _, l := range laneSet {
			lane, err := ctx.Graph().Lane(l)
			if err != nil {
				slog.Error("ignoring unknown lane in position update",
					"robot", ctx.Name(), "lane", l, "error", err)
				continue
			}
			laneIdx := l
			loc := [2]float64{position[0], position[1]}
			starts = append(starts, nav.PlanStart{
				Time:        at,
				Waypoint:    lane.Exit.Waypoint,
				Orientation: position[2],
				Location:    &loc,
				Lane:        &laneIdx,
			})
		}
		if len(starts) == 0 {
			return
		}
		ctx.setLocation(starts)
	})
	return nil
}

// UpdatePositionWaypointPose reports a raw position merged onto a target
// waypoint the robot is heading toward.
func (h *UpdateHandle) UpdatePositionWaypointPose(position [3]float64, targetWaypoint int) {
	ctx := h.ref.get()
	if ctx == nil {
		return
	}
	at := ctx.Now()
	ctx.Worker().Schedule(func() {
		loc := [2]float64{position[0], position[1]}
		ctx.setLocation([]nav.PlanStart{{
			Time:        at,
			Waypoint:    targetWaypoint,
			Orientation: position[2],
			Location:    &loc,
		}})
	})
}

// UpdatePositionByMap reports only a map name and raw pose, leaving it to
// the planner to find merge candidates. If the position cannot be matched
// to the navigation graph the update is dropped and an error is logged,
// since acting on a divergent localization would be worse than waiting for
// the next update.
func (h *UpdateHandle) UpdatePositionByMap(mapName string, position [3]float64,
	maxMergeWaypointDistance, maxMergeLaneDistance, minLaneLength float64) {
	ctx := h.ref.get()
	if ctx == nil {
		return
	}
	at := ctx.Now()
	ctx.Worker().Schedule(func() {
		starts, err := ctx.Planner().ComputePlanStarts(
			context.Background(), mapName, position, at,
			maxMergeWaypointDistance, maxMergeLaneDistance, minLaneLength)
		if err != nil || len(starts) == 0 {
			slog.Error("robot position cannot be merged onto the nav graph",
				"robot", ctx.Name(), "map", mapName,
				"x", position[0], "y", position[1], "yaw", position[2],
				"error", err)
			return
		}
		ctx.setLocation(starts)
	})
}

// UpdateBatterySOC reports the battery state of charge. Values outside
// [0, 1] are rejected immediately and no update is scheduled.
func (h *UpdateHandle) UpdateBatterySOC(soc float64) error {
	if soc < 0.0 || soc > 1.0 {
		return fmt.Errorf("%w: battery soc %v out of range [0, 1]", ErrInvalidArgument, soc)
	}
	ctx := h.ref.get()
	if ctx == nil {
		return nil
	}
	ctx.Worker().Schedule(func() {
		ctx.setBatterySOC(soc)
	})
	return nil
}

// SetChargerWaypoint designates the robot's dedicated charging point.
func (h *UpdateHandle) SetChargerWaypoint(waypoint int) error {
	ctx := h.ref.get()
	if ctx == nil {
		return nil
	}
	if _, err := ctx.Graph().Waypoint(waypoint); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	ctx.Worker().Schedule(func() {
		state := ctx.TaskEndState()
		wp := waypoint
		state.ChargerWaypoint = &wp
		ctx.setEndState(state)
	})
	return nil
}

// SetActionExecutor registers the callback that performs custom actions.
func (h *UpdateHandle) SetActionExecutor(executor ActionExecutor) {
	ctx := h.ref.get()
	if ctx == nil {
		return
	}
	ctx.Worker().Schedule(func() {
		ctx.setActionExecutor(executor)
	})
}

// SetMaximumDelay sets how late the robot may run before replanning is
// considered. Pass nil to clear the tolerance.
func (h *UpdateHandle) SetMaximumDelay(d *time.Duration) {
	ctx := h.ref.get()
	if ctx == nil {
		return
	}
	var copied *time.Duration
	if d != nil {
		v := *d
		copied = &v
	}
	ctx.Worker().Schedule(func() {
		ctx.setMaximumDelay(copied)
	})
}

// MaximumDelay reads the current delay tolerance without waiting for
// queued updates, so a just-scheduled SetMaximumDelay may not be visible.
func (h *UpdateHandle) MaximumDelay() *time.Duration {
	ctx := h.ref.get()
	if ctx == nil {
		return nil
	}
	return ctx.MaximumDelay()
}

// Interrupted notifies the engine that the robot was interrupted by an
// external influence, prompting any registered interrupt handlers.
func (h *UpdateHandle) Interrupted() {
	ctx := h.ref.get()
	if ctx == nil {
		return
	}
	ctx.Worker().Schedule(func() {
		for _, fn := range ctx.interruptHandlers() {
			fn()
		}
	})
}
