package domain

import "errors"

var (
	ErrNotFound          = errors.New("resource not found")
	ErrQuotaExceeded     = errors.New("per-user job quota exceeded")
	ErrNotAuthorized     = errors.New("user is not authorized")
	ErrUnknownProfile    = errors.New("unknown target profile")
	ErrFileTooLarge      = errors.New("input file exceeds size limit")
	ErrDurationTooLong   = errors.New("input duration exceeds limit")
	ErrUnsupportedFormat = errors.New("unsupported container format")
)
