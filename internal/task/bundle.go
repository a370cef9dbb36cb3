package task

import (
	"fmt"
	"sync"
)

// Sequence runs its sub-events one at a time, advancing only when the
// current one completes. The first failure or cancellation terminates the
// bundle and leaves unstarted sub-events untouched in standby.
type Sequence struct {
	name   string
	events []Standby
	began  bool
}

// NewSequence builds a sequential bundle over the given sub-events.
func NewSequence(name string, events ...Standby) *Sequence {
	return &Sequence{name: name, events: events}
}

func (s *Sequence) Name() string { return s.name }

func (s *Sequence) Begin(finished func(Status)) (Active, error) {
	if s.began {
		return nil, fmt.Errorf("%w: sequence %q", ErrAlreadyActive, s.name)
	}
	s.began = true

	a := &activeSequence{events: s.events, finished: finished}
	a.beginNext()
	return a, nil
}

type activeSequence struct {
	mu        sync.Mutex
	events    []Standby
	idx       int
	current   Active
	cancelled bool
	fired     bool
	finished  func(Status)
}

// beginNext activates the event at the current index. Sub-events may report
// completion synchronously from within Begin, so this can recurse up to the
// length of the sequence.
func (a *activeSequence) beginNext() {
	a.mu.Lock()
	if a.fired {
		a.mu.Unlock()
		return
	}
	if a.cancelled {
		a.mu.Unlock()
		a.finish(StatusCancelled)
		return
	}
	if a.idx >= len(a.events) {
		a.mu.Unlock()
		a.finish(StatusCompleted)
		return
	}
	ev := a.events[a.idx]
	at := a.idx
	a.mu.Unlock()

	active, err := ev.Begin(a.onChild)
	if err != nil {
		a.finish(StatusFailed)
		return
	}
	a.mu.Lock()
	// The sub-event may have completed synchronously inside Begin, in which
	// case the cursor already moved on and this handle is terminal. Storing
	// it would aim a later Cancel at the wrong sub-event.
	if a.idx == at && !a.fired {
		a.current = active
	}
	cancelled := a.cancelled && a.idx == at
	a.mu.Unlock()
	if cancelled && active != nil {
		active.Cancel()
	}
}

func (a *activeSequence) onChild(status Status) {
	a.mu.Lock()
	a.current = nil
	cancelled := a.cancelled
	if status == StatusCompleted && !cancelled {
		a.idx++
	}
	a.mu.Unlock()

	switch {
	case cancelled:
		a.finish(StatusCancelled)
	case status == StatusCompleted:
		a.beginNext()
	default:
		a.finish(status)
	}
}

func (a *activeSequence) finish(status Status) {
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

// Cancel stops the sequence. The currently running sub-event is cancelled;
// unstarted sub-events are never activated.
func (a *activeSequence) Cancel() {
	a.mu.Lock()
	if a.fired || a.cancelled {
		a.mu.Unlock()
		return
	}
	a.cancelled = true
	current := a.current
	a.mu.Unlock()

	if current != nil {
		current.Cancel()
		return
	}
	a.finish(StatusCancelled)
}

// Parallel activates all of its sub-events together. It completes when
// every sub-event completes. The first failure fails the bundle
// immediately and requests cancellation of the still-running siblings;
// their late terminal reports are absorbed.
type Parallel struct {
	name   string
	events []Standby
	began  bool
}

// NewParallel builds a concurrent bundle over the given sub-events.
func NewParallel(name string, events ...Standby) *Parallel {
	return &Parallel{name: name, events: events}
}

func (p *Parallel) Name() string { return p.name }

func (p *Parallel) Begin(finished func(Status)) (Active, error) {
	if p.began {
		return nil, fmt.Errorf("%w: parallel %q", ErrAlreadyActive, p.name)
	}
	p.began = true

	a := &activeParallel{
		remaining: len(p.events),
		finished:  finished,
	}
	if len(p.events) == 0 {
		a.finish(StatusCompleted)
		return a, nil
	}
	for _, ev := range p.events {
		a.mu.Lock()
		fired := a.fired
		a.mu.Unlock()
		if fired {
			// A sibling already failed synchronously; the bundle is
			// terminal and the rest must stay in standby.
			break
		}
		active, err := ev.Begin(a.onChild)
		if err != nil {
			a.onChild(StatusFailed)
			continue
		}
		a.mu.Lock()
		if active != nil {
			a.actives = append(a.actives, active)
		}
		a.mu.Unlock()
	}
	return a, nil
}

type activeParallel struct {
	mu        sync.Mutex
	actives   []Active
	remaining int
	cancelled bool
	anyCancel bool
	fired     bool
	finished  func(Status)
}

func (a *activeParallel) onChild(status Status) {
	a.mu.Lock()
	a.remaining--
	if status == StatusCancelled {
		a.anyCancel = true
	}
	remaining := a.remaining
	siblings := append([]Active(nil), a.actives...)
	anyCancel := a.anyCancel
	a.mu.Unlock()

	if status == StatusFailed {
		a.finish(StatusFailed)
		for _, s := range siblings {
			s.Cancel()
		}
		return
	}
	if remaining == 0 {
		if anyCancel {
			a.finish(StatusCancelled)
		} else {
			a.finish(StatusCompleted)
		}
	}
}

func (a *activeParallel) finish(status Status) {
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

// Cancel requests cancellation of every running sub-event. The bundle
// reports cancelled once all of them reach a terminal state.
func (a *activeParallel) Cancel() {
	a.mu.Lock()
	if a.fired || a.cancelled {
		a.mu.Unlock()
		return
	}
	a.cancelled = true
	a.anyCancel = true
	siblings := append([]Active(nil), a.actives...)
	a.mu.Unlock()

	for _, s := range siblings {
		s.Cancel()
	}
}
