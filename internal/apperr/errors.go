package apperr

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrInvalidPath    = errors.New("invalid path")
	ErrNoActiveTarget = errors.New("no active note")
)
