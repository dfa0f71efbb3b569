// SPDX-License-Identifier: MPL-2.0

//go:build linux

package memlock

import (
	"errors"
	"os"

	"github.com/rtpx/rtpx/internal/rterr"

	"golang.org/x/sys/unix"
)

const realtimeFlagPath = "/sys/kernel/realtime"

func mclFlags(s Scope) int {
	switch s {
	case Current:
		return unix.MCL_CURRENT
	case Future:
		return unix.MCL_FUTURE
	default:
		return unix.MCL_CURRENT | unix.MCL_FUTURE
	}
}

// Lock pins the process's pages according to scope.
//
// An unprivileged caller whose RLIMIT_MEMLOCK is too small gets ENOMEM from the
// kernel; that case is reported as PermissionDenied alongside EPERM.
func Lock(scope Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	err := unix.Mlockall(mclFlags(scope))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ENOMEM):
		return rterr.Denied("mlockall", unix.ENOMEM)
	default:
		return rterr.FromErrno("mlockall", err)
	}
}

// Unlock releases every lock held by the process.
func Unlock() error {
	return rterr.FromErrno("munlockall", unix.Munlockall())
}

// RuntimeFlavor reports whether the running kernel is PREEMPT_RT.
func RuntimeFlavor() Flavor {
	flag, _ := os.ReadFile(realtimeFlagPath)
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return flavorFrom(flag, "")
	}
	return flavorFrom(flag, unix.ByteSliceToString(uts.Version[:]))
}
