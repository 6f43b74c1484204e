package inode

import "errors"

// Error classification codes. Callers classify with errors.Is; wrapped
// forms carry context.
var (
	// ErrCorrupt indicates an inode sector that fails its structural check.
	ErrCorrupt = errors.New("inode: corrupt")
	// ErrTooLarge indicates growth past the maximum addressable file size.
	ErrTooLarge = errors.New("inode: file too large")
	// ErrWriteDenied indicates a write against an inode under a deny-write hold.
	ErrWriteDenied = errors.New("inode: writes denied")
	// ErrInvalidOffset indicates a negative offset or length.
	ErrInvalidOffset = errors.New("inode: invalid offset")
)
