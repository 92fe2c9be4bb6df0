package domain

import "errors"

// Sentinel errors returned by repositories. Services translate these into
// the API error taxonomy at the boundary.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)
