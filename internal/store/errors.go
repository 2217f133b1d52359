package store

import "errors"

// ErrNotFound is returned when a row does not exist. Services translate it
// into their own sentinel errors at the boundary.
var ErrNotFound = errors.New("not found")
