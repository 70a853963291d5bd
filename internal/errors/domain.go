// Package errors holds the domain error codes shared by the services and the
// HTTP layer. Services return these sentinels (usually wrapped with detail) and
// handlers translate the code into a status.
package errors

import "errors"

// DomainError is a classified failure with a stable machine-readable code.
type DomainError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e *DomainError) Error() string {
	return e.Message
}

// New creates a terminal domain error.
func New(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// NewRetryable creates a domain error the caller may retry as a whole.
func NewRetryable(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Retryable: true}
}

// Code returns the code of the first DomainError in err's chain, or "" if none.
func Code(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsRetryable reports whether err is classified as retryable.
func IsRetryable(err error) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Retryable
}
