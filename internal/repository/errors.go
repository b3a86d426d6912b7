package repository

import "errors"

// ErrNotFound indicates an entity was not located.
var ErrNotFound = errors.New("repository: not found")

// Unique constraint violations reported by the storage layer.
var (
	ErrDuplicateUsername = errors.New("repository: username already exists")
	ErrDuplicateEmail    = errors.New("repository: email already exists")
)
