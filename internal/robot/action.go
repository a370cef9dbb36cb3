package robot

import (
	"sync"
	"time"
)

// actionData is the shared state behind every copy of an ActionExecution.
// The finished callback must fire exactly once, no matter how many copies
// of the token exist or whether completion is explicit or implied by the
// last copy being released.
type actionData struct {
	mu            sync.Mutex
	refs          int
	fired         bool
	okay          bool
	remainingTime *time.Duration
	finished      func()
}

// ActionExecution is the token handed to an ActionExecutor so it can report
// progress and completion of a custom action. Copies made with Retain share
// the same underlying state; releasing the last copy without an explicit
// Finished call still completes the action, so a crashed or forgetful
// executor cannot wedge the task.
type ActionExecution struct {
	data *actionData
}

// NewActionExecution creates a live token whose finished callback fires at
// most once. The initial reference count is one.
func NewActionExecution(finished func()) *ActionExecution {
	return &ActionExecution{data: &actionData{
		refs:     1,
		okay:     true,
		finished: finished,
	}}
}

// Retain creates another handle on the same execution. The action completes
// implicitly only after every handle has been released.
func (e *ActionExecution) Retain() *ActionExecution {
	e.data.mu.Lock()
	defer e.data.mu.Unlock()
	e.data.refs++
	return &ActionExecution{data: e.data}
}

// Release drops this handle. When the last handle is released and Finished
// was never called, the completion callback fires now.
func (e *ActionExecution) Release() {
	e.data.mu.Lock()
	e.data.refs--
	var fire func()
	if e.data.refs <= 0 && !e.data.fired {
		e.data.fired = true
		fire = e.data.finished
	}
	e.data.mu.Unlock()
	if fire != nil {
		fire()
	}
}

// Finished reports successful completion of the action. Only the first call
// across all handles has any effect.
func (e *ActionExecution) Finished() {
	e.data.mu.Lock()
	var fire func()
	if !e.data.fired {
		e.data.fired = true
		fire = e.data.finished
	}
	e.data.mu.Unlock()
	if fire != nil {
		fire()
	}
}

// Cancel requests the executor stop. It only clears the okay flag; the
// action still completes through an explicit Finished or the release of
// the last handle, so a winding-down executor is never marked done early.
func (e *ActionExecution) Cancel() {
	e.data.mu.Lock()
	defer e.data.mu.Unlock()
	e.data.okay = false
}

// Okay reports whether the action is still expected to succeed.
func (e *ActionExecution) Okay() bool {
	e.data.mu.Lock()
	defer e.data.mu.Unlock()
	return e.data.okay
}

// UpdateRemainingTime reports the executor's current completion estimate.
func (e *ActionExecution) UpdateRemainingTime(d time.Duration) {
	e.data.mu.Lock()
	defer e.data.mu.Unlock()
	v := d
	e.data.remainingTime = &v
}

// RemainingTime returns the latest estimate, or nil if none was reported.
func (e *ActionExecution) RemainingTime() *time.Duration {
	e.data.mu.Lock()
	defer e.data.mu.Unlock()
	if e.data.remainingTime == nil {
		return nil
	}
	v := *e.data.remainingTime
	return &v
}
