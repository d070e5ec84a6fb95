// Package sentinel holds the infrastructure errors shared by stores and
// publishers. Callers match them with errors.Is; services translate them into
// pkg/domain-errors codes before they reach a handler.
package sentinel

import "errors"

var (
	// ErrNotFound means the store answered and holds no record for the key.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable means the store or broker could not answer at all.
	ErrUnavailable = errors.New("unavailable")
	// ErrClosed means the component was shut down and rejects new work.
	ErrClosed = errors.New("closed")
)
