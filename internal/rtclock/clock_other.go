// SPDX-License-Identifier: MPL-2.0

//go:build !linux

package rtclock

import (
	"syscall"

	"github.com/rtpx/rtpx/internal/rterr"
)

// GetTime is not available outside Linux.
func GetTime(c Clock) (Reading, error) {
	if err := c.Validate(); err != nil {
		return Reading{}, err
	}
	return Reading{}, rterr.FromErrno("clock_gettime", syscall.ENOSYS)
}

// GetResolution is not available outside Linux.
func GetResolution(c Clock) (Reading, error) {
	if err := c.Validate(); err != nil {
		return Reading{}, err
	}
	return Reading{}, rterr.FromErrno("clock_getres", syscall.ENOSYS)
}

func nanosleep(Clock, SleepMode, int64, int64) error {
	return rterr.FromErrno("clock_nanosleep", syscall.ENOSYS)
}
