package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskNotFound indicates an operation targeted an unknown task id.
	ErrTaskNotFound = errors.New("task not found")
	// ErrCommentNotFound indicates an operation targeted an unknown comment id.
	ErrCommentNotFound = errors.New("comment not found")
	// ErrMemberNotFound indicates an operation targeted an unknown member id.
	ErrMemberNotFound = errors.New("member not found")
	// ErrEmptyBacklog indicates a sprint start found no eligible backlog tasks.
	ErrEmptyBacklog = errors.New("no backlog tasks match the current sprint")
)

// ValidationError reports a missing or malformed required field. The board
// state is never changed when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func validationErr(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
