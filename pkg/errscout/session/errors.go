package session

import (
	"errors"
	"fmt"
)

// ErrNilPlanner is returned by Run when no planner is given.
var ErrNilPlanner = errors.New("session: planner is nil")

// PlannerError wraps a planner failure with the round it happened in.
type PlannerError struct {
	Planner string
	Round   int
	Err     error
}

func (e *PlannerError) Error() string {
	return fmt.Sprintf("planner %s failed in round %d: %v", e.Planner, e.Round+1, e.Err)
}

func (e *PlannerError) Unwrap() error {
	return e.Err
}

// CancellationError reports a session stopped by its context. The partial
// result is still returned alongside it.
type CancellationError struct {
	Round int
	Cause error
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("session cancelled before round %d: %v", e.Round+1, e.Cause)
}

func (e *CancellationError) Unwrap() error {
	return e.Cause
}
