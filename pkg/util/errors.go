// Package util provides logging helpers and the common error types shared by
// the topology, deploy and provider packages.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Typed errors below unwrap to one of these so callers can
// branch with errors.Is without caring about the details.
var (
	ErrNotFound                   = errors.New("resource not found")
	ErrConflict                   = errors.New("resource conflict")
	ErrLinkAllocationExhausted    = errors.New("link allocation exhausted")
	ErrUnresolvedDeviceKind       = errors.New("unresolved device kind")
	ErrContainerCreationFailed    = errors.New("project creation failed")
	ErrTeardownVerificationFailed = errors.New("teardown verification failed")
	ErrInvalidConfig              = errors.New("invalid configuration")
	ErrValidationFailed           = errors.New("validation failed")
)

// NotFoundError names a backend resource that could not be resolved.
type NotFoundError struct {
	Kind string // "compute", "template", "project", "node", "switch"
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

// LinkAllocationError reports a switch connection that never converged.
type LinkAllocationError struct {
	Switch   string
	Node     string
	Port     int
	Adapter  int
	Attempts int
	Reason   string
}

func (e *LinkAllocationError) Error() string {
	msg := fmt.Sprintf("connect node %s port %d/%d to switch %s: gave up after %d attempts",
		e.Node, e.Adapter, e.Port, e.Switch, e.Attempts)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *LinkAllocationError) Unwrap() error {
	return ErrLinkAllocationExhausted
}

// UnresolvedDeviceKindError is returned when a deployment path matches none
// of the known device kinds.
type UnresolvedDeviceKindError struct {
	Path string
}

func (e *UnresolvedDeviceKindError) Error() string {
	return fmt.Sprintf("failed to locate deployment path %q", e.Path)
}

func (e *UnresolvedDeviceKindError) Unwrap() error {
	return ErrUnresolvedDeviceKind
}

// TeardownError means the project delete call went through but the project
// still resolves by name afterwards.
type TeardownError struct {
	Reservation string
	ProjectID   string
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("failed to remove project %s for reservation %s: still present after delete",
		e.ProjectID, e.Reservation)
}

func (e *TeardownError) Unwrap() error {
	return ErrTeardownVerificationFailed
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
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

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
