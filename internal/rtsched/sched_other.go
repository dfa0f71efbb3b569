// SPDX-License-Identifier: MPL-2.0

//go:build !linux

package rtsched

import (
	"syscall"

	"github.com/rtpx/rtpx/internal/rterr"
)

// SetSchedule is not available outside Linux.
func SetSchedule(tid int, policy Policy, priority int) error {
	if _, err := normalize(policy, priority); err != nil {
		return err
	}
	return rterr.FromErrno("sched_setattr", syscall.ENOSYS)
}

// GetSchedule is not available outside Linux.
func GetSchedule(int) (Params, error) {
	return Params{}, rterr.FromErrno("sched_getattr", syscall.ENOSYS)
}

// PriorityRange is not available outside Linux.
func PriorityRange(policy Policy) (Range, error) {
	if err := policy.Validate(); err != nil {
		return Range{}, err
	}
	return Range{}, rterr.FromErrno("sched_get_priority_min", syscall.ENOSYS)
}

// CurrentThreadID returns 0 where thread ids are not exposed.
func CurrentThreadID() int { return 0 }
