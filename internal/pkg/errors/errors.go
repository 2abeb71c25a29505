package errors

import "errors"

var (
	ErrInvalid  = errors.New("invalid")
	ErrNoFiles  = errors.New("no files")
	ErrTooLarge = errors.New("request too large")
	ErrTooMany  = errors.New("too many requests")
)
