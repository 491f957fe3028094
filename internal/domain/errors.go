package domain

import (
	"errors"
	"fmt"
)

// DomainError is a coded error whose Message is safe to show to clients.
type DomainError struct {
	Code    string
	Message string
	Cause   error
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches on Code so wrapped copies of the sentinels compare equal.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

const (
	CodeAuthFailed           = "AUTH_FAILED"
	CodeUnauthenticated      = "UNAUTHENTICATED"
	CodeImageNotFound        = "IMAGE_NOT_FOUND"
	CodeStorageNotConfigured = "STORAGE_NOT_CONFIGURED"
	CodeUpstreamFailure      = "UPSTREAM_FAILURE"
	CodeValidationFailed     = "VALIDATION_FAILED"
)

var (
	ErrAuthFailed = &DomainError{
		Code:    CodeAuthFailed,
		Message: "Invalid credentials",
	}
	ErrUnauthenticated = &DomainError{
		Code:    CodeUnauthenticated,
		Message: "Unauthorized",
	}
	ErrImageNotFound = &DomainError{
		Code:    CodeImageNotFound,
		Message: "Image not found",
	}
	ErrStorageNotConfigured = &DomainError{
		Code:    CodeStorageNotConfigured,
		Message: "Storage configuration missing",
	}
	ErrUpstreamFailure = &DomainError{
		Code:    CodeUpstreamFailure,
		Message: "Failed to fetch images from storage",
	}
	ErrValidationFailed = &DomainError{
		Code:    CodeValidationFailed,
		Message: "validation failed",
	}
)

// WrapImageNotFound reports a missing object by name.
func WrapImageNotFound(name string, cause error) error {
	return &DomainError{
		Code:    CodeImageNotFound,
		Message: ErrImageNotFound.Message,
		Cause:   fmt.Errorf("image %q: %w", name, cause),
	}
}

// WrapUpstreamFailure hides a store error behind the generic public message.
func WrapUpstreamFailure(operation string, cause error) error {
	return &DomainError{
		Code:    CodeUpstreamFailure,
		Message: ErrUpstreamFailure.Message,
		Cause:   fmt.Errorf("%s: %w", operation, cause),
	}
}

// WrapValidationError carries the offending field in a client-visible message.
func WrapValidationError(field string, cause error) error {
	msg := fmt.Sprintf("validation failed for %s", field)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &DomainError{
		Code:    CodeValidationFailed,
		Message: msg,
		Cause:   cause,
	}
}

func hasCode(err error, codes ...string) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	for _, code := range codes {
		if domainErr.Code == code {
			return true
		}
	}
	return false
}

func IsNotFoundError(err error) bool {
	return hasCode(err, CodeImageNotFound)
}

func IsValidationError(err error) bool {
	return hasCode(err, CodeValidationFailed)
}

func IsAuthError(err error) bool {
	return hasCode(err, CodeAuthFailed, CodeUnauthenticated)
}

func IsConfigurationError(err error) bool {
	return hasCode(err, CodeStorageNotConfigured)
}

// PublicMessage returns the client-safe message for err.
func PublicMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return "An error occurred"
}
