package domain

import "errors"

var (
	ErrValidation    = errors.New("validation failed")
	ErrInvalidKind   = errors.New("invalid reminder type")
	ErrJobNotFound   = errors.New("job not found")
	ErrJobNotDelayed = errors.New("job is not in delayed state")
	ErrTaskNotFound  = errors.New("task not found")
	ErrQueueNotFound = errors.New("queue not found")
	ErrNoRecipient   = errors.New("user has no messaging id")
)
