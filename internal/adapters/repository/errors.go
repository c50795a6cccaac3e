package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidLimit = errors.New("invalid readings limit")
	ErrBusy         = errors.New("store busy")
	ErrInvalidData  = errors.New("invalid data")
)
