package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a failed call to the campus API. Status is zero when the request
// never produced a response.
type Error struct {
	Op        string
	Status    int
	Message   string
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure came from the network or the
// server rather than from the request itself. Callers do not retry either way;
// the distinction only shapes what the user is told.
func (e *Error) Transient() bool {
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// IsTransient reports whether err wraps a transient API failure.
func IsTransient(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Transient()
}

// StatusOf returns the HTTP status carried by err, or zero.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
