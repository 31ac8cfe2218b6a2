package pack

import "errors"

// Error variables for package operations.
var (
	ErrSchemaInvalid   = errors.New("data document schema invalid")
	ErrNotReady        = errors.New("package store is not initialized")
	ErrPackageNotFound = errors.New("package not found")
	ErrAmbiguousRef    = errors.New("package reference is ambiguous")
	ErrInvalidRecord   = errors.New("invalid package record")
	ErrInvalidUUID     = errors.New("invalid package uuid")
	ErrDuplicateUUID   = errors.New("package uuid already exists")
)
