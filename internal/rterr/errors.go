// SPDX-License-Identifier: MPL-2.0

package rterr

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	// ErrInvalidArgument is the kind for unrecognized enumeration values,
	// malformed numeric fields and handles that were not issued by a registry.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrResourceExhausted is the kind for a registry that reached its capacity.
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrPermissionDenied is the kind for privileged OS calls rejected by the kernel.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrOSFailure is the kind for every other failed OS call.
	ErrOSFailure = errors.New("os failure")
)

type (
	// InvalidArgumentError is returned when a caller-supplied value cannot be used.
	// It wraps ErrInvalidArgument for errors.Is() compatibility.
	InvalidArgumentError struct {
		// Name identifies the argument (e.g., "clock", "policy", "nsec").
		Name string
		// Value is the offending value as the caller supplied it.
		Value string
		// Reason optionally explains what was expected.
		Reason string
	}

	// ResourceExhaustedError is returned when a fixed-capacity resource is full.
	// It wraps ErrResourceExhausted for errors.Is() compatibility.
	ResourceExhaustedError struct {
		Resource string
		Capacity int
	}

	// OSError carries the failing operation and the OS error code.
	// It unwraps to its kind (ErrPermissionDenied or ErrOSFailure) and to Errno.
	OSError struct {
		Op    string
		Errno syscall.Errno
		// Denied forces the permission-denied kind for calls where the kernel
		// reports missing privilege with another code (mlockall returns ENOMEM).
		Denied bool
	}
)

// InvalidArgument builds an InvalidArgumentError.
func InvalidArgument(name, value, reason string) error {
	return &InvalidArgumentError{Name: name, Value: value, Reason: reason}
}

// Error implements the error interface for InvalidArgumentError.
func (e *InvalidArgumentError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Name, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q", e.Name, e.Value)
}

// Unwrap returns ErrInvalidArgument for errors.Is() compatibility.
func (e *InvalidArgumentError) Unwrap() error { return ErrInvalidArgument }

// Error implements the error interface for ResourceExhaustedError.
func (e *ResourceExhaustedError) Error() string {
	return fmt.Sprintf("%s exhausted: capacity %d reached", e.Resource, e.Capacity)
}

// Unwrap returns ErrResourceExhausted for errors.Is() compatibility.
func (e *ResourceExhaustedError) Unwrap() error { return ErrResourceExhausted }

// Error implements the error interface for OSError.
func (e *OSError) Error() string {
	return fmt.Sprintf("%s failed: %s (errno %d)", e.Op, e.Errno.Error(), int(e.Errno))
}

// Kind returns the sentinel this error is classified under.
func (e *OSError) Kind() error {
	if e.Denied {
		return ErrPermissionDenied
	}
	switch e.Errno {
	case syscall.EPERM, syscall.EACCES:
		return ErrPermissionDenied
	default:
		return ErrOSFailure
	}
}

// Unwrap exposes both the kind sentinel and the raw Errno.
func (e *OSError) Unwrap() []error { return []error{e.Kind(), e.Errno} }

// FromErrno wraps err from op as an OSError. A nil err yields nil; an error that is
// not a syscall.Errno is wrapped with ErrOSFailure so its kind is still defined.
func FromErrno(op string, err error) error {
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return &OSError{Op: op, Errno: errno}
	}
	return fmt.Errorf("%s failed: %w: %w", op, ErrOSFailure, err)
}

// Denied wraps errno as an OSError that is always classified as permission denied.
func Denied(op string, errno syscall.Errno) error {
	return &OSError{Op: op, Errno: errno, Denied: true}
}

// IsPermissionDenied reports whether err is classified as permission denied.
func IsPermissionDenied(err error) bool { return errors.Is(err, ErrPermissionDenied) }
