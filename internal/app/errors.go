package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNoRepository   = errors.New("service has no repository")
	ErrMissingIdemKey = errors.New("idempotency key is required")
	ErrNotStarted     = errors.New("service not started")
	ErrUnknownRange   = errors.New("unknown dashboard range")
	ErrInvalidFilter  = errors.New("invalid penalty filter")
)
