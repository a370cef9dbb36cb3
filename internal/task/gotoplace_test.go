package task

import (
	"sync"
	"testing"
	"time"

	"github.com/siot-decada-robotics/rmf-ros2/internal/nav"
	"github.com/siot-decada-robotics/rmf-ros2/internal/robot"
)

func TestGoToPlaceCompletesOnNavigationSuccess(t *testing.T) {
	planner := &scriptedPlanner{plan: func(goal int) (*nav.Route, error) {
		return routeTo(goal), nil
	}}
	rc, visited := scanContext(t, planner, wpAway)

	done := make(chan Status, 1)
	ev := NewGoToPlace(rc, wpEnd)
	if _, err := ev.Begin(func(s Status) { done <- s }); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	select {
	case s := <-done:
		if s != StatusCompleted {
			t.Fatalf("status = %s, want completed", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never finished")
	}
	if got := visited(); len(got) != 1 || got[0] != wpEnd {
		t.Fatalf("visited %v, want [%d]", got, wpEnd)
	}
}

func TestGoToPlaceFailsWhenPlanInfeasible(t *testing.T) {
	planner := &scriptedPlanner{plan: func(goal int) (*nav.Route, error) {
		return nil, nav.ErrInfeasible
	}}
	rc, _ := scanContext(t, planner, wpAway)

	done := make(chan Status, 1)
	ev := NewGoToPlace(rc, wpEnd)
	if _, err := ev.Begin(func(s Status) { done <- s }); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	select {
	case s := <-done:
		if s != StatusFailed {
			t.Fatalf("status = %s, want failed", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never finished")
	}
}

// Cancellation runs through the worker queue, so it can never observe a
// queued mutation half-applied: after the terminal report, reads see the
// position update either fully applied or not at all.
func TestGoToPlaceCancelNeverObservesPartialMutation(t *testing.T) {
	planner := &scriptedPlanner{plan: func(goal int) (*nav.Route, error) {
		return routeTo(goal), nil
	}}

	rc := robot.NewContext("fleet_a", "scanner_1", scanGraph(t), planner,
		nav.PlanStart{Waypoint: wpAway})
	t.Cleanup(rc.Destroy)

	started := make(chan struct{})
	var navMu sync.Mutex
	var navDone func(error)
	rc.SetNavigationHandler(func(route *nav.Route, goal int, done func(error)) {
		navMu.Lock()
		navDone = done
		navMu.Unlock()
		close(started)
	})

	var mu sync.Mutex
	var terminals []Status
	ev := NewGoToPlace(rc, wpEnd)
	active, err := ev.Begin(func(s Status) {
		mu.Lock()
		terminals = append(terminals, s)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("navigation never started")
	}

	// Queue a position update, then cancel, then let navigation answer.
	h := robot.NewUpdateHandle(rc)
	h.UpdatePositionWaypoint(wpStart, 0.5)
	active.Cancel()
	navMu.Lock()
	navDone(nil)
	navMu.Unlock()

	flushWorker(t, rc)

	mu.Lock()
	got := append([]Status(nil), terminals...)
	mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("terminal reported %d times: %v", len(got), got)
	}
	if got[0] != StatusCancelled && got[0] != StatusCompleted {
		t.Fatalf("unexpected terminal status %s", got[0])
	}

	// The queued update was applied in full: a single clean plan start at
	// the new waypoint, never a partial mix of old and new fields.
	loc := rc.Location()
	if len(loc) != 1 {
		t.Fatalf("got %d plan starts, want 1", len(loc))
	}
	if loc[0].Waypoint != wpStart || loc[0].Orientation != 0.5 {
		t.Fatalf("mutation partially applied: %+v", loc[0])
	}
	if loc[0].Location != nil || loc[0].Lane != nil {
		t.Fatalf("mutation partially applied: %+v", loc[0])
	}
}
