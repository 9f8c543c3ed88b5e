package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness violation.
	ErrAlreadyExists = errors.New("already exists")
	// ErrValidation wraps input that fails domain rules.
	ErrValidation = errors.New("validation failed")
	// ErrOffline is returned by writes that need a connected store.
	ErrOffline = errors.New("store offline")
	// ErrSchemaMismatch means the remote table lacks a requested column.
	ErrSchemaMismatch = errors.New("schema mismatch")
)
