package models

import "errors"

var (
	// ErrNotFound is returned by stores and sources when a lookup matches nothing.
	ErrNotFound = errors.New("not found")
	// ErrCursorConflict is returned when a cursor save loses a race with another writer.
	ErrCursorConflict = errors.New("ingest cursor was modified concurrently")
)
