package serialization

import "errors"

// ErrMalformed is returned by Read* functions when the source bytes do not
// decode to a valid value of the requested type. It is never a panic:
// malformed on-disk data is always reported, never trusted.
var ErrMalformed = errors.New("serialization: malformed encoding")

// ErrLengthTooLarge is returned when a compact length prefix would exceed
// its 4-byte maximum encoding.
var ErrLengthTooLarge = errors.New("serialization: length exceeds 4-byte compact encoding")
