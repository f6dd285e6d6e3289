package client

import (
	"errors"
	"fmt"
)

// ErrUnexpectedStatus is wrapped by APIError so callers can test for any
// non-success reply without inspecting codes.
var ErrUnexpectedStatus = errors.New("unexpected status")

// APIError is a non-success reply from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s %d", ErrUnexpectedStatus, e.Status)
	}
	return fmt.Sprintf("%s %d: %s: %s", ErrUnexpectedStatus, e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return ErrUnexpectedStatus }

// Code returns the API error code carried by err, or "" when err is not an
// APIError.
func Code(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}
