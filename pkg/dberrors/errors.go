package dberrors

import "errors"

var (
	ErrNotFound        = errors.New("segdb: not found")
	ErrClosed          = errors.New("segdb: closed")
	ErrInvalidArgument = errors.New("segdb: invalid argument")
	ErrInvalidConfig   = errors.New("segdb: invalid config")

	// ErrCorrupted marks a segment whose record lengths run past the end of
	// the file.
	ErrCorrupted = errors.New("segdb: corrupted segment")

	// ErrArenaClosed is returned for any access to mapped memory after the
	// owning arena has been released.
	ErrArenaClosed = errors.New("segdb: mapping arena closed")
)
