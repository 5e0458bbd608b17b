package services

import (
	"errors"
	"fmt"
)

// ErrOperationFailed matches every *OperationError.
var ErrOperationFailed = errors.New("operation failed")

// ErrInvalidTransition is returned when a status change does not move the
// posting forward in its lifecycle.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrForbidden is returned when the acting user may not touch a record.
var ErrForbidden = errors.New("forbidden")

// OperationError reports a failed call to the data service. Its message is
// safe to show to users; the cause is kept for logs.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("failed to %s", e.Op)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func (e *OperationError) Is(target error) bool {
	return target == ErrOperationFailed
}
