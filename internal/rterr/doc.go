// SPDX-License-Identifier: MPL-2.0

// Package rterr defines the error kinds shared by the real-time control services
// and the worker registry.
//
// Every failure surfaced by rtclock, rtsched, memlock and worker wraps exactly one
// of the kind sentinels (ErrInvalidArgument, ErrResourceExhausted,
// ErrPermissionDenied, ErrOSFailure), so callers can branch with errors.Is without
// parsing messages. OS-level failures additionally unwrap to the raw syscall.Errno.
package rterr
