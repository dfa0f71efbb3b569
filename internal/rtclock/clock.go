// SPDX-License-Identifier: MPL-2.0

package rtclock

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rtpx/rtpx/internal/rterr"
)

// Clock identifiers. The string values are the canonical names used by the CLI,
// the script builtins and the configuration.
const (
	// Realtime is the settable wall clock.
	Realtime Clock = "REALTIME"
	// Monotonic never jumps; the default clock for relative waits.
	Monotonic Clock = "MONOTONIC"
	// ProcessCPUTime measures CPU time consumed by the whole process.
	ProcessCPUTime Clock = "PROCESS_CPUTIME"
	// ThreadCPUTime measures CPU time consumed by the calling thread.
	ThreadCPUTime Clock = "THREAD_CPUTIME"

	// Relative sleeps for a duration measured from now.
	Relative SleepMode = "rel"
	// Absolute sleeps until the clock reaches a timestamp.
	Absolute SleepMode = "abs"

	nsPerSec = int64(time.Second)

	// maxSeconds keeps sec*1e9+nsec inside int64.
	maxSeconds = math.MaxInt64/nsPerSec - 1
)

type (
	// Clock names one of the four POSIX clocks.
	Clock string

	// SleepMode selects between relative and absolute sleeps.
	SleepMode string

	// Reading is a point in time (or a resolution) on a clock.
	// Nanoseconds is always in [0, 1e9).
	Reading struct {
		Seconds     int64 `json:"sec" yaml:"sec"`
		Nanoseconds int64 `json:"nsec" yaml:"nsec"`
	}
)

// Clocks returns every supported clock in a stable order.
func Clocks() []Clock {
	return []Clock{Realtime, Monotonic, ProcessCPUTime, ThreadCPUTime}
}

// ParseClock maps a clock name to a Clock. Both the short names (MONOTONIC) and the
// POSIX spellings (CLOCK_MONOTONIC, CLOCK_PROCESS_CPUTIME_ID) are accepted.
func ParseClock(name string) (Clock, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "CLOCK_")
	n = strings.TrimSuffix(n, "_ID")
	c := Clock(n)
	if err := c.Validate(); err != nil {
		return "", rterr.InvalidArgument("clock", name, "expected one of REALTIME, MONOTONIC, PROCESS_CPUTIME, THREAD_CPUTIME")
	}
	return c, nil
}

// Validate returns an InvalidArgumentError when c is not a known clock.
func (c Clock) Validate() error {
	switch c {
	case Realtime, Monotonic, ProcessCPUTime, ThreadCPUTime:
		return nil
	default:
		return rterr.InvalidArgument("clock", string(c), "")
	}
}

// String returns the canonical clock name.
func (c Clock) String() string { return string(c) }

// ParseSleepMode accepts rel/relative and abs/absolute.
func ParseSleepMode(s string) (SleepMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rel", "relative":
		return Relative, nil
	case "abs", "absolute":
		return Absolute, nil
	default:
		return "", rterr.InvalidArgument("sleep mode", s, "expected rel or abs")
	}
}

// Validate returns an InvalidArgumentError when m is not rel or abs.
func (m SleepMode) Validate() error {
	if m != Relative && m != Absolute {
		return rterr.InvalidArgument("sleep mode", string(m), "")
	}
	return nil
}

// String returns the mode name.
func (m SleepMode) String() string { return string(m) }

// Duration converts the reading to a time.Duration, saturating on overflow.
func (r Reading) Duration() time.Duration {
	if r.Seconds >= maxSeconds {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(r.Seconds*nsPerSec + r.Nanoseconds)
}

// Add returns r advanced by sec seconds and nsec nanoseconds, normalized.
func (r Reading) Add(sec, nsec int64) Reading {
	total := r.Nanoseconds + nsec
	return Reading{
		Seconds:     r.Seconds + sec + total/nsPerSec,
		Nanoseconds: total % nsPerSec,
	}
}

// Before reports whether r is strictly earlier than o.
func (r Reading) Before(o Reading) bool {
	if r.Seconds != o.Seconds {
		return r.Seconds < o.Seconds
	}
	return r.Nanoseconds < o.Nanoseconds
}

// String formats the reading as seconds.nanoseconds.
func (r Reading) String() string {
	return fmt.Sprintf("%d.%09d", r.Seconds, r.Nanoseconds)
}

// validateRequest checks the numeric part of a sleep request.
func validateRequest(sec, nsec int64) error {
	if sec < 0 {
		return rterr.InvalidArgument("seconds", fmt.Sprint(sec), "must not be negative")
	}
	if sec > maxSeconds {
		return rterr.InvalidArgument("seconds", fmt.Sprint(sec), "out of range")
	}
	if nsec < 0 || nsec >= nsPerSec {
		return rterr.InvalidArgument("nanoseconds", fmt.Sprint(nsec), "must be in [0, 1e9)")
	}
	return nil
}
