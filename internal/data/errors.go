package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrVersionConflict is returned when a Save loses an optimistic version race.
	ErrVersionConflict = errors.New("account was modified concurrently")
)
