package installer

import "errors"

// Sentinel errors for the two fatal install failures. The missing-argument
// case is handled at the CLI boundary before the installer runs.
var (
	// ErrInvalidTarget means the destination path does not exist or is not a
	// directory.
	ErrInvalidTarget = errors.New("destination is not a directory")

	// ErrPathNotConfigured means the installed executable does not resolve on
	// the search path after the copy.
	ErrPathNotConfigured = errors.New("installed executable not found on search path")
)
