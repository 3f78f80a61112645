package controller

import (
	"context"
	"sync"
)

// Outcome is the resolved result of one persist attempt.
type Outcome struct {
	State  State
	Status int
	Body   string
	// Notice is the report sent to the error reporter on failure.
	Notice ErrorNotice
	Err    error
}

// Succeeded reports whether the attempt persisted the photo.
func (o Outcome) Succeeded() bool {
	return o.State == StateSucceeded
}

// Attempt is a single submission that resolves exactly once.
type Attempt struct {
	Submission Submission

	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

func newAttempt(submission Submission) *Attempt {
	return &Attempt{Submission: submission, done: make(chan struct{})}
}

// Done is closed when the attempt resolves.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Wait blocks until the attempt resolves or ctx ends. A canceled ctx only
// stops the wait; the persist itself keeps running.
func (a *Attempt) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-a.done:
		return a.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Outcome returns the resolved outcome, if any.
func (a *Attempt) Outcome() (Outcome, bool) {
	select {
	case <-a.done:
		return a.outcome, true
	default:
		return Outcome{}, false
	}
}

func (a *Attempt) resolve(outcome Outcome) bool {
	resolved := false
	a.once.Do(func() {
		a.outcome = outcome
		close(a.done)
		resolved = true
	})
	return resolved
}
