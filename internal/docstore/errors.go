package docstore

import "errors"

// Error variables for document operations.
var (
	ErrNotFound    = errors.New("document not found")
	ErrParse       = errors.New("document is not valid JSON")
	ErrIO          = errors.New("document io failed")
	ErrLockTimeout = errors.New("timed out waiting for document lock")
	ErrInvalidName = errors.New("document name must be a local path")
	ErrDirRequired = errors.New("data directory is required")
)
