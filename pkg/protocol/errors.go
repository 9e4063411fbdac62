package protocol

import (
	"errors"
	"fmt"
)

// ValidationError is returned when a required field is missing.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s is required", e.Field)
}

// PayloadTooLargeError is returned when a request body exceeds the configured ceiling.
type PayloadTooLargeError struct {
	Filename string
	Size     int64
	Limit    int64
}

func (e *PayloadTooLargeError) Error() string {
	if e.Size > 0 && e.Limit > 0 {
		return fmt.Sprintf("payload too large for %s: %d bytes exceeds %d", e.Filename, e.Size, e.Limit)
	}
	return fmt.Sprintf("payload too large for %s", e.Filename)
}

// NetworkError is returned when the catalog service cannot be reached.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: catalog service unreachable: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServiceError is returned when the catalog service answers with an error status.
type ServiceError struct {
	Op      string
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: server returned %d", e.Op, e.Status)
}

// AsValidation checks if an error is a ValidationError and returns it.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// AsPayloadTooLarge checks if an error is a PayloadTooLargeError and returns it.
func AsPayloadTooLarge(err error) (*PayloadTooLargeError, bool) {
	var pe *PayloadTooLargeError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsTransient reports whether err is a network or service failure, the kind
// the reconciliation layer shows as a passing status message.
func IsTransient(err error) bool {
	var ne *NetworkError
	var se *ServiceError
	return errors.As(err, &ne) || errors.As(err, &se)
}
