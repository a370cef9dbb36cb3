package task

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Phase wraps one event with bookkeeping for task summaries.
type Phase struct {
	ID    int
	Name  string
	Event Standby

	mu     sync.Mutex
	status Status
}

// NewPhase wraps an event as a task phase.
func NewPhase(id int, event Standby) *Phase {
	return &Phase{ID: id, Name: event.Name(), Event: event, status: StatusStandby}
}

// Status returns the phase's current lifecycle state.
func (p *Phase) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Phase) setStatus(s Status) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ValidateTransition(p.status, s); err != nil {
		return err
	}
	p.status = s
	return nil
}

// Task is an ordered sequence of phases executed for one robot. The phase
// list is fixed once Begin is called; only the internal unfolding of a
// placeholder phase may still vary, and only before that phase activates.
type Task struct {
	bookingID      string
	category       string
	deploymentTime time.Time
	phases         []*Phase

	mu        sync.Mutex
	began     bool
	status    Status
	idx       int
	active    Active
	cancelled bool
	fired     bool
	finished  func(Status)
}

// New creates a task from its booking id, category, and phases.
func New(bookingID, category string, deploymentTime time.Time, phases []*Phase) *Task {
	return &Task{
		bookingID:      bookingID,
		category:       category,
		deploymentTime: deploymentTime,
		phases:         phases,
		status:         StatusStandby,
	}
}

func (t *Task) BookingID() string         { return t.bookingID }
func (t *Task) Category() string          { return t.category }
func (t *Task) DeploymentTime() time.Time { return t.deploymentTime }
func (t *Task) Phases() []*Phase          { return t.phases }

// Status returns the task's current lifecycle state.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// CurrentPhase returns the phase being executed, or nil outside execution.
func (t *Task) CurrentPhase() *Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusActive || t.idx >= len(t.phases) {
		return nil
	}
	return t.phases[t.idx]
}

// Begin starts executing the task's phases in order. The finished callback
// fires exactly once with the task's terminal status.
func (t *Task) Begin(finished func(Status)) error {
	t.mu.Lock()
	if t.began || t.fired {
		t.mu.Unlock()
		return fmt.Errorf("%w: task %q", ErrAlreadyActive, t.bookingID)
	}
	t.began = true
	t.status = StatusActive
	t.finished = finished
	t.mu.Unlock()

	slog.Info("task started", "booking_id", t.bookingID, "category", t.category,
		"phases", len(t.phases))
	t.beginNextPhase()
	return nil
}

func (t *Task) beginNextPhase() {
	t.mu.Lock()
	if t.fired {
		t.mu.Unlock()
		return
	}
	if t.cancelled {
		t.mu.Unlock()
		t.finish(StatusCancelled)
		return
	}
	if t.idx >= len(t.phases) {
		t.mu.Unlock()
		t.finish(StatusCompleted)
		return
	}
	phase := t.phases[t.idx]
	at := t.idx
	t.mu.Unlock()

	if err := phase.setStatus(StatusActive); err != nil {
		slog.Error("phase cannot activate",
			"booking_id", t.bookingID, "phase", phase.Name, "error", err)
		t.finish(StatusFailed)
		return
	}
	slog.Info("phase started",
		"booking_id", t.bookingID, "phase_id", phase.ID, "phase", phase.Name)

	active, err := phase.Event.Begin(func(status Status) {
		t.onPhaseFinished(phase, status)
	})
	if err != nil {
		slog.Error("phase failed to begin",
			"booking_id", t.bookingID, "phase", phase.Name, "error", err)
		_ = phase.setStatus(StatusFailed)
		t.finish(StatusFailed)
		return
	}
	t.mu.Lock()
	// The event may have finished synchronously inside Begin; the cursor
	// then already points past this phase and the handle is terminal.
	// Storing it would aim a later Cancel at the wrong phase.
	if t.idx == at && !t.fired {
		t.active = active
	}
	cancelled := t.cancelled && t.idx == at
	t.mu.Unlock()
	if cancelled && active != nil {
		active.Cancel()
	}
}

func (t *Task) onPhaseFinished(phase *Phase, status Status) {
	if err := phase.setStatus(status); err != nil {
		// Late duplicate report from an already-terminal phase.
		return
	}
	slog.Info("phase finished",
		"booking_id", t.bookingID, "phase_id", phase.ID, "phase", phase.Name,
		"status", string(status))

	t.mu.Lock()
	t.active = nil
	cancelled := t.cancelled
	if status == StatusCompleted && !cancelled {
		t.idx++
	}
	t.mu.Unlock()

	switch {
	case cancelled:
		t.finish(StatusCancelled)
	case status == StatusCompleted:
		t.beginNextPhase()
	default:
		t.finish(status)
	}
}

func (t *Task) finish(status Status) {
	t.mu.Lock()
	if t.fired {
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.status = status
	done := t.finished
	t.mu.Unlock()

	slog.Info("task finished", "booking_id", t.bookingID, "status", string(status))
	if done != nil {
		done(status)
	}
}

// Cancel stops the task. The active phase is cancelled; phases that never
// started remain in standby.
func (t *Task) Cancel() {
	t.mu.Lock()
	if t.fired || t.cancelled {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	began := t.began
	active := t.active
	t.mu.Unlock()

	if !began {
		t.finish(StatusCancelled)
		return
	}
	if active != nil {
		active.Cancel()
		return
	}
	t.finish(StatusCancelled)
}
