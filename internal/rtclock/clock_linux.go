// SPDX-License-Identifier: MPL-2.0

//go:build linux

package rtclock

import (
	"errors"

	"github.com/rtpx/rtpx/internal/rterr"

	"golang.org/x/sys/unix"
)

// clockID maps a validated Clock to the kernel clock id.
func clockID(c Clock) int32 {
	switch c {
	case Monotonic:
		return unix.CLOCK_MONOTONIC
	case ProcessCPUTime:
		return unix.CLOCK_PROCESS_CPUTIME_ID
	case ThreadCPUTime:
		return unix.CLOCK_THREAD_CPUTIME_ID
	default:
		return unix.CLOCK_REALTIME
	}
}

// GetTime reads the current value of clock c.
func GetTime(c Clock) (Reading, error) {
	if err := c.Validate(); err != nil {
		return Reading{}, err
	}
	var ts unix.Timespec
	if err := unix.ClockGettime(clockID(c), &ts); err != nil {
		return Reading{}, rterr.FromErrno("clock_gettime", err)
	}
	return fromTimespec(ts), nil
}

// GetResolution reads the resolution of clock c.
func GetResolution(c Clock) (Reading, error) {
	if err := c.Validate(); err != nil {
		return Reading{}, err
	}
	var ts unix.Timespec
	if err := unix.ClockGetres(clockID(c), &ts); err != nil {
		return Reading{}, rterr.FromErrno("clock_getres", err)
	}
	return fromTimespec(ts), nil
}

// nanosleep issues clock_nanosleep with validated arguments.
//
// EINTR is retried: the Go runtime preempts goroutines with signals, so an
// interrupted sleep here is never a caller-visible event. Relative sleeps resume
// with the remaining time reported by the kernel.
func nanosleep(c Clock, mode SleepMode, sec, nsec int64) error {
	req := unix.NsecToTimespec(sec*nsPerSec + nsec)
	flags := 0
	if mode == Absolute {
		flags = unix.TIMER_ABSTIME
	}
	for {
		var rem unix.Timespec
		err := unix.ClockNanosleep(clockID(c), flags, &req, &rem)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EINTR) {
			return rterr.FromErrno("clock_nanosleep", err)
		}
		if mode == Relative {
			req = rem
		}
	}
}

func fromTimespec(ts unix.Timespec) Reading {
	sec, nsec := ts.Unix()
	return Reading{Seconds: sec, Nanoseconds: nsec}
}
