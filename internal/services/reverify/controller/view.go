package controller

import "context"

// View renders itself into its containers and releases its bindings on
// Dispose.
type View[T any] interface {
	Render(ctx context.Context) (T, error)
	Dispose()
}

var _ View[*Controller] = (*Controller)(nil)
