package repository

import "errors"

// Duplicate-key errors surfaced by implementations when the store's unique
// constraints reject an insert.
var (
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already exists")
)
