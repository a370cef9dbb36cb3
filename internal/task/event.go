package task

// Standby is an event that has been constructed but not yet activated.
// Construction must be free of side effects so candidate events can be
// built against a state snapshot and discarded without cost.
type Standby interface {
	// Name identifies the event in logs and task summaries.
	Name() string

	// Begin activates the event. Side effects start here and nowhere
	// earlier. The finished callback is invoked exactly once with the
	// terminal status; it may fire synchronously from within Begin.
	// Beginning an event twice returns ErrAlreadyActive.
	Begin(finished func(Status)) (Active, error)
}

// Active is a running event.
type Active interface {
	// Cancel requests that the event stop. The event still reports its
	// terminal status through the finished callback passed to Begin;
	// cancellation is asynchronous and completes only after any work the
	// event already committed has wound down.
	Cancel()
}
