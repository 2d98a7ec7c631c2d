// Package util provides logging and common error types shared across ifsim.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for lookup and configuration failures
var (
	ErrNotFound      = errors.New("resource not found")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrNotSupported  = errors.New("operation not supported")
)

// ValidationError represents one or more configuration validation failures.
// It unwraps to ErrInvalidConfig so callers can test the category with
// errors.Is without caring about individual messages.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid configuration: " + e.Errors[0]
	}
	return fmt.Sprintf("invalid configuration:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddError adds an error message unconditionally
func (v *ValidationBuilder) AddError(message string) *ValidationBuilder {
	v.errors = append(v.errors, message)
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

// NotFoundError reports an unknown interface index or attribute key with
// enough context for control-plane callers. It unwraps to ErrNotFound.
type NotFoundError struct {
	Kind string // "interface", "attribute", "pattern"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a not-found error
func NewNotFoundError(kind, name string) *NotFoundError {
	return &NotFoundError{Kind: kind, Name: name}
}

// AlreadyExistsError reports a registration collision. It unwraps to
// ErrAlreadyExists.
type AlreadyExistsError struct {
	Kind string
	Name string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Name)
}

func (e *AlreadyExistsError) Unwrap() error {
	return ErrAlreadyExists
}

// NewAlreadyExistsError creates an already-exists error
func NewAlreadyExistsError(kind, name string) *AlreadyExistsError {
	return &AlreadyExistsError{Kind: kind, Name: name}
}
