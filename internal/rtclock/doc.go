// SPDX-License-Identifier: MPL-2.0

// Package rtclock reads and waits on POSIX clocks with nanosecond resolution.
//
// The package is stateless: every function takes the clock to operate on. Clock
// names are parsed once at the boundary (ParseClock, ParseSleepMode) into closed
// enum values; everything past that point works on validated values only.
package rtclock
