// SPDX-License-Identifier: MPL-2.0

package rtclock

import (
	"context"
	"fmt"
	"time"

	"github.com/rtpx/rtpx/internal/rterr"
)

// sleepSegment bounds each wait in SleepContext so cancellation is observed promptly.
const sleepSegment = 20 * time.Millisecond

// Sleep suspends the calling thread until the requested point on clock c.
// In Relative mode sec/nsec is a duration from now; in Absolute mode it is a
// timestamp on c. There is no cancellation; see SleepContext.
//
// Negative fields and nsec >= 1e9 are rejected with an InvalidArgumentError.
// Failures of the underlying call are returned as *rterr.OSError.
func Sleep(c Clock, mode SleepMode, sec, nsec int64) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := mode.Validate(); err != nil {
		return err
	}
	if err := validateRequest(sec, nsec); err != nil {
		return err
	}
	return nanosleep(c, mode, sec, nsec)
}

// SleepContext behaves like Sleep but checks ctx between bounded segments.
// Segments on PROCESS_CPUTIME are bounded by monotonic time, so cancellation is
// observed even when the process is idle. A context without a Done channel
// degrades to a plain Sleep.
func SleepContext(ctx context.Context, c Clock, mode SleepMode, sec, nsec int64) error {
	if ctx.Done() == nil {
		return Sleep(c, mode, sec, nsec)
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if err := mode.Validate(); err != nil {
		return err
	}
	if err := validateRequest(sec, nsec); err != nil {
		return err
	}

	deadline := Reading{Seconds: sec, Nanoseconds: nsec}
	if mode == Relative {
		now, err := GetTime(c)
		if err != nil {
			return err
		}
		deadline = now.Add(sec, nsec)
	}

	segSec, segNsec := int64(sleepSegment/time.Second), int64(sleepSegment%time.Second)
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("sleep on %s interrupted: %w", c, err)
		}
		now, err := GetTime(c)
		if err != nil {
			return err
		}
		if !now.Before(deadline) {
			return nil
		}
		if c == ProcessCPUTime {
			// CPU time only advances while some thread runs, so the segment is
			// measured on the monotonic clock and the CPU clock re-read after it.
			wait := min(sleepSegment, deadline.Duration()-now.Duration())
			if err := nanosleep(Monotonic, Relative, int64(wait/time.Second), int64(wait%time.Second)); err != nil {
				return err
			}
			continue
		}
		target := now.Add(segSec, segNsec)
		if deadline.Before(target) {
			target = deadline
		}
		if err := nanosleep(c, Absolute, target.Seconds, target.Nanoseconds); err != nil {
			return err
		}
	}
}

// SleepFor is the named fixed-interval wait: a relative sleep on the monotonic clock.
func SleepFor(d time.Duration) error {
	if d < 0 {
		return rterr.InvalidArgument("duration", d.String(), "must not be negative")
	}
	return Sleep(Monotonic, Relative, int64(d/time.Second), int64(d%time.Second))
}

// SleepForContext is SleepFor with cancellation between segments.
func SleepForContext(ctx context.Context, d time.Duration) error {
	if d < 0 {
		return rterr.InvalidArgument("duration", d.String(), "must not be negative")
	}
	return SleepContext(ctx, Monotonic, Relative, int64(d/time.Second), int64(d%time.Second))
}
