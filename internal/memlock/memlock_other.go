// SPDX-License-Identifier: MPL-2.0

//go:build !linux

package memlock

import (
	"syscall"

	"github.com/rtpx/rtpx/internal/rterr"
)

// Lock is not available outside Linux.
func Lock(scope Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	return rterr.FromErrno("mlockall", syscall.ENOSYS)
}

// Unlock is not available outside Linux.
func Unlock() error {
	return rterr.FromErrno("munlockall", syscall.ENOSYS)
}

// RuntimeFlavor is always Standard outside Linux.
func RuntimeFlavor() Flavor { return Standard }
