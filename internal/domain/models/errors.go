package models

import "errors"

// Domain error taxonomy. Handlers translate these to HTTP codes;
// usecases wrap them with context via fmt.Errorf("...: %w", err).
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("duplicate entry")
	ErrInvalidState      = errors.New("invalid state transition")
	ErrInvalidSource     = errors.New("invalid oracle source")
	ErrInvalidSymbol     = errors.New("unknown trend symbol")
	ErrRebuildInProgress = errors.New("rebuild already in progress")
	ErrValidation        = errors.New("validation failed")
	ErrPermissionDenied  = errors.New("permission denied")
)
