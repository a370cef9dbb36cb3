package task

import (
	"errors"
	"fmt"
)

// ErrAlreadyActive is returned when Begin is called on an event that was
// already activated. Activating twice is a programming error, not a
// recoverable runtime condition.
var ErrAlreadyActive = errors.New("task: event already activated")

// Status is the lifecycle state of an event, phase, or task.
type Status string

const (
	StatusStandby   Status = "standby"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

var allowedTransitions = map[Status][]Status{
	StatusStandby: {StatusActive, StatusCancelled},
	StatusActive:  {StatusCompleted, StatusFailed, StatusCancelled},
}

// ValidateTransition checks that moving from one status to another is legal.
func ValidateTransition(from, to Status) error {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("task: illegal transition from %s to %s", from, to)
}
