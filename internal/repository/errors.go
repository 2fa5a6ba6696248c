package repository

import (
	"errors"
)

// ErrNotFound is returned when a record does not exist. Callers translate it
// to their own taxonomy; repositories never wrap it further.
var ErrNotFound = errors.New("record not found")
