package service

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrPostNotFound     = errors.New("post not found")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrDuplicateContent = errors.New("duplicate content")
	ErrAlreadyUpvoted   = errors.New("already upvoted")
)

// ValidationError carries a caller-facing reason for rejected input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is lets errors.Is(err, ErrInvalidInput) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(message string) error {
	return &ValidationError{Message: message}
}
