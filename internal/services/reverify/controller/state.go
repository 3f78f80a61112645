package controller

import "errors"

// State is the lifecycle of one submission context.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSucceeded
	StateFailed
)

var (
	// ErrInvalidTransition reports a state change the lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid submission state transition")
	// ErrSubmissionInFlight reports a submit while a persist is pending.
	ErrSubmissionInFlight = errors.New("submission already in flight")
	// ErrAlreadySubmitted reports a submit after a successful persist.
	ErrAlreadySubmitted = errors.New("photos already submitted")
	// ErrDisposed reports use of a controller after Dispose.
	ErrDisposed = errors.New("controller disposed")
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSucceeded
}

// CanTransition reports whether s may move to next.
func (s State) CanTransition(next State) bool {
	switch s {
	case StateIdle, StateFailed:
		return next == StateSubmitting
	case StateSubmitting:
		return next == StateSucceeded || next == StateFailed
	default:
		return false
	}
}
