package catalog

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced album or photo does not exist.
var ErrNotFound = errors.New("catalog: not found")

// ValidationError reports a caller-correctable request problem: a bad enum
// value, a slug collision, or a reorder id set that does not match the album.
// It is never retried automatically.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "catalog: " + e.Reason }

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
