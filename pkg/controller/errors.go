package controller

import (
	"errors"
	"fmt"
)

// ErrorClass classifies reconciliation failures. The class decides how the
// store records the outcome: most classes end the resource in a failed
// status, while ErrorClassWait returns it to pending until its dependency
// becomes ready.
type ErrorClass string

const (
	// ErrorClassParse indicates a malformed descriptor. Parse failures
	// inside a fetch are logged and skipped, never surfaced.
	ErrorClassParse ErrorClass = "parse"

	// ErrorClassFetch indicates the external fetch operation failed
	// (git clone, oras pull, index download).
	ErrorClassFetch ErrorClass = "fetch"

	// ErrorClassDependencyBuild indicates a chart dependency build failed.
	ErrorClassDependencyBuild ErrorClass = "dependency-build"

	// ErrorClassTemplate indicates chart templating or kustomize build
	// failed.
	ErrorClassTemplate ErrorClass = "template"

	// ErrorClassWait indicates the resource's dependency is not ready
	// yet. Not a failure: the resource stays pending and is resubmitted
	// when the dependency completes.
	ErrorClassWait ErrorClass = "wait"

	// ErrorClassCancelled indicates the reconcile was cancelled during
	// teardown.
	ErrorClassCancelled ErrorClass = "cancelled"
)

// ReconcileError is a classified reconciliation failure with resource
// context.
type ReconcileError struct {
	Class    ErrorClass
	Message  string
	Resource string
	Err      error
}

// Error implements the error interface.
func (e *ReconcileError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Resource != "" {
		return fmt.Sprintf("[%s] %s (resource=%s)", e.Class, msg, e.Resource)
	}
	return fmt.Sprintf("[%s] %s", e.Class, msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ReconcileError) Unwrap() error {
	return e.Err
}

// Is implements error equality for errors.Is: two reconcile errors match
// when their classes match.
func (e *ReconcileError) Is(target error) bool {
	t, ok := target.(*ReconcileError)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// WithResource adds resource context to the error.
func (e *ReconcileError) WithResource(resource string) *ReconcileError {
	e.Resource = resource
	return e
}

// NewParseError creates a parse-classified error.
func NewParseError(message string, err error) *ReconcileError {
	return &ReconcileError{Class: ErrorClassParse, Message: message, Err: err}
}

// NewFetchError creates a fetch-classified error.
func NewFetchError(message string, err error) *ReconcileError {
	return &ReconcileError{Class: ErrorClassFetch, Message: message, Err: err}
}

// NewDependencyBuildError creates a dependency-build-classified error.
func NewDependencyBuildError(message string, err error) *ReconcileError {
	return &ReconcileError{Class: ErrorClassDependencyBuild, Message: message, Err: err}
}

// NewTemplateError creates a template-classified error.
func NewTemplateError(message string, err error) *ReconcileError {
	return &ReconcileError{Class: ErrorClassTemplate, Message: message, Err: err}
}

// NewWaitError creates a wait-classified error.
func NewWaitError(message string) *ReconcileError {
	return &ReconcileError{Class: ErrorClassWait, Message: message}
}

// NewCancelledError creates a cancelled-classified error.
func NewCancelledError(message string, err error) *ReconcileError {
	return &ReconcileError{Class: ErrorClassCancelled, Message: message, Err: err}
}

func hasClass(err error, class ErrorClass) bool {
	var e *ReconcileError
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}

// IsFetch returns true if the error is fetch-classified.
func IsFetch(err error) bool { return hasClass(err, ErrorClassFetch) }

// IsDependencyBuild returns true if the error is dependency-build-classified.
func IsDependencyBuild(err error) bool { return hasClass(err, ErrorClassDependencyBuild) }

// IsTemplate returns true if the error is template-classified.
func IsTemplate(err error) bool { return hasClass(err, ErrorClassTemplate) }

// IsWait returns true if the error means the resource should stay pending.
func IsWait(err error) bool { return hasClass(err, ErrorClassWait) }

// IsCancelled returns true if the error is cancelled-classified.
func IsCancelled(err error) bool { return hasClass(err, ErrorClassCancelled) }
