package errors

import (
	"errors"
	"fmt"
)

type ResourceNotFoundError struct {
	resource string
	id       string
}

func (e *ResourceNotFoundError) Error() string {
	if e.id == "" {
		return fmt.Sprintf("%s not found", e.resource)
	}
	return fmt.Sprintf("%s %q not found", e.resource, e.id)
}

func NewResourceNotFoundError(resource, id string) error {
	return &ResourceNotFoundError{resource: resource, id: id}
}

func NewJobNotFoundError(id string) error {
	return NewResourceNotFoundError("job", id)
}

func IsResourceNotFoundError(err error) bool {
	var e *ResourceNotFoundError
	return errors.As(err, &e)
}

// InvalidRequestError is returned when a caller supplied bad input.
type InvalidRequestError struct {
	reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.reason)
}

func NewInvalidRequestError(format string, args ...any) error {
	return &InvalidRequestError{reason: fmt.Sprintf(format, args...)}
}

func IsInvalidRequestError(err error) bool {
	var e *InvalidRequestError
	return errors.As(err, &e)
}

// JobFinishedError is returned when cancelling a job that already reached a
// terminal state.
type JobFinishedError struct {
	id    string
	state string
}

func (e *JobFinishedError) Error() string {
	return fmt.Sprintf("job %q already %s", e.id, e.state)
}

func NewJobFinishedError(id, state string) error {
	return &JobFinishedError{id: id, state: state}
}

func IsJobFinishedError(err error) bool {
	var e *JobFinishedError
	return errors.As(err, &e)
}

type ClosedError struct{}

func (e *ClosedError) Error() string {
	return "service is shutting down"
}

func NewClosedError() error {
	return &ClosedError{}
}

func IsClosedError(err error) bool {
	var e *ClosedError
	return errors.As(err, &e)
}

// UnauthorizedError is returned by the API client when the server rejects its token.
type UnauthorizedError struct{}

func (e *UnauthorizedError) Error() string {
	return "unauthorized"
}

func NewUnauthorizedError() error {
	return &UnauthorizedError{}
}

func IsUnauthorizedError(err error) bool {
	var e *UnauthorizedError
	return errors.As(err, &e)
}
