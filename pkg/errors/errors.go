// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package errors implements the closed error taxonomy shared by every
// skillhive package: every failure that crosses a package boundary is
// mapped to exactly one Kind before it reaches the CLI's renderer.
package errors

import (
	"errors"
	"fmt"
)

// Kind is one of the six error categories a skillhive operation can fail with.
type Kind string

// The closed set of error kinds. Every user-visible failure maps to exactly one.
const (
	Validation    Kind = "validation"
	Configuration Kind = "configuration"
	Authorization Kind = "authorization"
	Network       Kind = "network"
	FileSystem    Kind = "filesystem"
	Dependency    Kind = "dependency"
)

// ExitCode returns the process exit code associated with a Kind.
func (k Kind) ExitCode() int {
	switch k {
	case Authorization:
		return 3
	case Network, FileSystem:
		return 2
	case Validation, Configuration, Dependency:
		return 1
	default:
		return 1
	}
}

// defaultSolution is the remediation text shown alongside a Kind when none is
// supplied explicitly by the error site.
func (k Kind) defaultSolution() string {
	switch k {
	case Validation:
		return "fix the reported field and try again."
	case Configuration:
		return "check ~/.skillsrc and the SEED_PHRASE/AO_REGISTRY_PROCESS_ID/ARWEAVE_GATEWAY environment variables."
	case Authorization:
		return "connect or unlock your wallet and retry."
	case Network:
		return "check your connection and retry; the gateway may be degraded."
	case FileSystem:
		return "check file permissions and available disk space."
	case Dependency:
		return "inspect the dependency graph reported above."
	default:
		return "retry the operation."
	}
}

// Error is the concrete error type every skillhive package returns once an
// error crosses its own package boundary.
type Error struct {
	Type     Kind
	Message  string
	Cause    error
	Solution string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Render formats the error the way it must be shown to a user on stderr:
// "[Kind] problem. -> Solution: remediation."
func (e *Error) Render() string {
	solution := e.Solution
	if solution == "" {
		solution = e.Type.defaultSolution()
	}
	return fmt.Sprintf("[%s] %s. -> Solution: %s", e.Type, e.Message, solution)
}

// NewError constructs an *Error of the given kind.
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Type: kind, Message: message, Cause: cause}
}

// NewErrorWithSolution constructs an *Error carrying an explicit remediation
// string, overriding the kind's default solution text.
func NewErrorWithSolution(kind Kind, message, solution string, cause error) *Error {
	return &Error{Type: kind, Message: message, Cause: cause, Solution: solution}
}

// Per-kind constructors.

// NewValidationError constructs a Validation error.
func NewValidationError(message string, cause error) *Error {
	return NewError(Validation, message, cause)
}

// NewConfigurationError constructs a Configuration error.
func NewConfigurationError(message string, cause error) *Error {
	return NewError(Configuration, message, cause)
}

// NewAuthorizationError constructs an Authorization error.
func NewAuthorizationError(message string, cause error) *Error {
	return NewError(Authorization, message, cause)
}

// NewNetworkError constructs a Network error.
func NewNetworkError(message string, cause error) *Error {
	return NewError(Network, message, cause)
}

// NewFileSystemError constructs a FileSystem error.
func NewFileSystemError(message string, cause error) *Error {
	return NewError(FileSystem, message, cause)
}

// NewDependencyError constructs a Dependency error.
func NewDependencyError(message string, cause error) *Error {
	return NewError(Dependency, message, cause)
}

func isKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == kind
}

// IsValidation reports whether err is a Validation error.
func IsValidation(err error) bool { return isKind(err, Validation) }

// IsConfiguration reports whether err is a Configuration error.
func IsConfiguration(err error) bool { return isKind(err, Configuration) }

// IsAuthorization reports whether err is an Authorization error.
func IsAuthorization(err error) bool { return isKind(err, Authorization) }

// IsNetwork reports whether err is a Network error.
func IsNetwork(err error) bool { return isKind(err, Network) }

// IsFileSystem reports whether err is a FileSystem error.
func IsFileSystem(err error) bool { return isKind(err, FileSystem) }

// IsDependency reports whether err is a Dependency error.
func IsDependency(err error) bool { return isKind(err, Dependency) }

// KindOf extracts the Kind of err, defaulting to Validation if err is not an
// *Error (a defensive default: unclassified failures are treated as
// something the caller can fix rather than a transient condition).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return Validation
}

// Code maps err's Kind to the HTTP status an API handler should report:
// handlers extract a status from the error and let 5xx causes stay
// internal while 4xx messages are returned to the caller verbatim.
func Code(err error) int {
	switch KindOf(err) {
	case Validation:
		return 400
	case Authorization:
		return 403
	case Dependency:
		return 409
	case FileSystem, Network:
		return 502
	case Configuration:
		return 500
	default:
		return 500
	}
}
