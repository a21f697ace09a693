package service

import "errors"

// Sentinel errors mapped to HTTP responses by the handlers. Validation
// failures are rejected before any job is created or mutated.
var (
	ErrJobNotFound     = errors.New("job not found")
	ErrAlreadyStarted  = errors.New("job already started or completed")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrInvalidModel    = errors.New("invalid model")
	ErrInvalidStem     = errors.New("invalid stem name")
	ErrStemNotFound    = errors.New("stem not found")
)
