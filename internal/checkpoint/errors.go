package checkpoint

import "errors"

// Common errors.
var (
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrOutOfBounds        = errors.New("tensor extends beyond data section")
	ErrNoCheckpoint       = errors.New("no checkpoint found")
)
