// SPDX-License-Identifier: MPL-2.0

//go:build linux

package rtsched

import (
	"fmt"

	"github.com/rtpx/rtpx/internal/rterr"

	"golang.org/x/sys/unix"
)

func kernelPolicy(p Policy) uint32 {
	switch p {
	case FIFO:
		return unix.SCHED_FIFO
	case RR:
		return unix.SCHED_RR
	default:
		return unix.SCHED_NORMAL
	}
}

func policyFromKernel(k uint32) Policy {
	switch k {
	case unix.SCHED_NORMAL:
		return Other
	case unix.SCHED_FIFO:
		return FIFO
	case unix.SCHED_RR:
		return RR
	case unix.SCHED_BATCH:
		return "SCHED_BATCH"
	case unix.SCHED_IDLE:
		return "SCHED_IDLE"
	case unix.SCHED_DEADLINE:
		return "SCHED_DEADLINE"
	default:
		return Policy(fmt.Sprintf("SCHED_%d", k))
	}
}

// SetSchedule assigns policy and priority to thread tid (0 = calling thread).
//
// Priority is forced to 0 for Other. A negative priority is an InvalidArgumentError;
// a positive priority outside the policy's range is rejected by the kernel (EINVAL,
// OSFailure). Missing privilege for a real-time class surfaces as PermissionDenied.
// The thread's nice value is preserved.
func SetSchedule(tid int, policy Policy, priority int) error {
	prio, err := normalize(policy, priority)
	if err != nil {
		return err
	}
	if tid < 0 {
		return rterr.InvalidArgument("thread id", fmt.Sprint(tid), "must not be negative")
	}

	attr := &unix.SchedAttr{}
	if cur, err := unix.SchedGetAttr(tid, 0); err == nil {
		attr.Nice = cur.Nice
	}
	attr.Policy = kernelPolicy(policy)
	attr.Priority = uint32(prio)
	if err := unix.SchedSetAttr(tid, attr, 0); err != nil {
		return rterr.FromErrno("sched_setattr", err)
	}
	return nil
}

// GetSchedule reads the policy and priority of thread tid (0 = calling thread).
func GetSchedule(tid int) (Params, error) {
	if tid < 0 {
		return Params{}, rterr.InvalidArgument("thread id", fmt.Sprint(tid), "must not be negative")
	}
	attr, err := unix.SchedGetAttr(tid, 0)
	if err != nil {
		return Params{}, rterr.FromErrno("sched_getattr", err)
	}
	return Params{Policy: policyFromKernel(attr.Policy), Priority: int(attr.Priority)}, nil
}

// PriorityRange returns the inclusive priority range the kernel accepts for policy.
func PriorityRange(policy Policy) (Range, error) {
	if err := policy.Validate(); err != nil {
		return Range{}, err
	}
	k := uintptr(kernelPolicy(policy))
	lo, _, errno := unix.Syscall(unix.SYS_SCHED_GET_PRIORITY_MIN, k, 0, 0)
	if errno != 0 {
		return Range{}, rterr.FromErrno("sched_get_priority_min", errno)
	}
	hi, _, errno := unix.Syscall(unix.SYS_SCHED_GET_PRIORITY_MAX, k, 0, 0)
	if errno != 0 {
		return Range{}, rterr.FromErrno("sched_get_priority_max", errno)
	}
	return Range{Min: int(lo), Max: int(hi)}, nil
}

// CurrentThreadID returns the kernel id of the calling thread.
func CurrentThreadID() int { return unix.Gettid() }
