package fileappend

import (
	"errors"
	"fmt"
)

// ErrOutOfBounds is returned by Read when a FileLocation points past the
// current size of its file -- always a programmer or on-disk-corruption
// error, never an expected outcome of a well-formed locator.
var ErrOutOfBounds = errors.New("fileappend: location out of bounds")

// ErrOpen wraps a failure to open, create, or mmap one of the four blob
// files.
type ErrOpen struct {
	File string
	Err  error
}

func (e *ErrOpen) Error() string {
	return fmt.Sprintf("fileappend: opening %s: %v", e.File, e.Err)
}

func (e *ErrOpen) Unwrap() error { return e.Err }
