package api

import (
	"errors"
	"fmt"
	"strings"
)

// GenericMessage is used when a failed response carries no message.
const GenericMessage = "an error occurred"

// ErrSessionExpired is returned for any authenticated request answered with
// 401. The stored token has already been removed when it is returned.
var ErrSessionExpired = errors.New("session expired, please log in again")

// Error is a non-2xx answer from the backend. Message is the server's own
// text when it sent one.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string { return e.Message }

// ValidationError lists the fields that failed client-side checks. No request
// is sent when it is returned.
type ValidationError struct {
	Fields []FieldError
}

type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "please fill in all required fields"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "please fill in all required fields (" + strings.Join(parts, "; ") + ")"
}

// SchemaError means a success payload did not have the expected shape.
type SchemaError struct {
	Endpoint string
	Err      error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unexpected response from %s: %v", e.Endpoint, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// StatusCode extracts the HTTP status of a backend error, 0 otherwise.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
