package entity

import (
	"errors"
	"fmt"
)

// ErrNoSources reports that the source list was empty after loading, which
// aborts a run before any sources are scheduled.
var ErrNoSources = errors.New("no source definitions found")

// ValidationError reports a bad value in a source definition. Field names
// match the keys in the sources file, so the message points operators at
// the exact config entry to fix.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.Message)
}
