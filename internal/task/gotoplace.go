package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/siot-decada-robotics/rmf-ros2/internal/robot"
)

// GoToPlace is the leaf motion event: plan a route from the robot's current
// plan-start candidates to a goal waypoint and hand it to the registered
// navigation handler. All of its work runs on the robot's worker, so motion
// commands never interleave with position or battery updates.
type GoToPlace struct {
	rc    *robot.Context
	goal  int
	began bool
}

// NewGoToPlace builds a motion event toward the given graph waypoint.
func NewGoToPlace(rc *robot.Context, goal int) *GoToPlace {
	return &GoToPlace{rc: rc, goal: goal}
}

func (g *GoToPlace) Name() string {
	return fmt.Sprintf("go to waypoint %d", g.goal)
}

func (g *GoToPlace) Begin(finished func(Status)) (Active, error) {
	if g.began {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyActive, g.Name())
	}
	g.began = true

	a := &activeGoToPlace{rc: g.rc, goal: g.goal, finished: finished}
	g.rc.Worker().Schedule(a.run)
	return a, nil
}

type activeGoToPlace struct {
	rc   *robot.Context
	goal int

	mu        sync.Mutex
	cancelled bool
	fired     bool
	finished  func(Status)
}

func (a *activeGoToPlace) run() {
	a.mu.Lock()
	cancelled := a.cancelled
	a.mu.Unlock()
	if cancelled {
		a.finish(StatusCancelled)
		return
	}

	starts := a.rc.Location()
	route, err := a.rc.Planner().Plan(context.Background(), starts, a.goal)
	if err != nil {
		slog.Error("no feasible route to goal",
			"robot", a.rc.Name(), "goal", a.goal, "error", err)
		a.finish(StatusFailed)
		return
	}

	handler := a.rc.NavigationHandler()
	if handler == nil {
		slog.Error("no navigation handler registered", "robot", a.rc.Name())
		a.finish(StatusFailed)
		return
	}
	handler(route, a.goal, func(navErr error) {
		if navErr != nil {
			slog.Error("navigation failed",
				"robot", a.rc.Name(), "goal", a.goal, "error", navErr)
			a.finish(StatusFailed)
			return
		}
		a.finish(StatusCompleted)
	})
}

func (a *activeGoToPlace) finish(status Status) {
	a.mu.Lock()
	if a.fired {
		a.mu.Unlock()
		return
	}
	a.fired = true
	done := a.finished
	a.mu.Unlock()
	done(status)
}

// Cancel is itself a queued job, so it takes effect only between worker
// jobs and never observes a half-applied mutation.
func (a *activeGoToPlace) Cancel() {
	a.mu.Lock()
	a.cancelled = true
	a.mu.Unlock()
	a.rc.Worker().Schedule(func() {
		a.finish(StatusCancelled)
	})
}
