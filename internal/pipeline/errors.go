package pipeline

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrDuplicateApplication = errors.New("candidate already applied to this job")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrJobNotAccepting      = errors.New("job is not accepting applications")
	ErrValidation           = errors.New("validation failed")
)
