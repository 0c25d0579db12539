package capability

import (
	"errors"
	"fmt"
)

// ErrAlreadyApplied is returned by Apply on the second call and by Allow after
// the set has been committed to the kernel.
var ErrAlreadyApplied = errors.New("capability set already applied")

// EntryError reports a path grant that could not be canonicalized.
type EntryError struct {
	Path  string
	Cause error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("capability entry %s: %v", e.Path, e.Cause)
}

func (e *EntryError) Unwrap() error {
	return e.Cause
}
