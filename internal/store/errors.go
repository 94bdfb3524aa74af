package store

import "errors"

var (
	// ErrNotFound is returned for unknown ids or VINs, and for soft-deleting
	// a record that is already gone.
	ErrNotFound = errors.New("store: listing not found")

	// ErrConflict is returned when creating a listing whose VIN already has
	// an active record.
	ErrConflict = errors.New("store: vin already has an active listing")
)
