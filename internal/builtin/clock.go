// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rtpx/rtpx/internal/rtclock"
	"github.com/rtpx/rtpx/internal/rterr"
)

type (
	// clockReadCommand implements clock_gettime and clock_getres.
	clockReadCommand struct {
		baseCommand
		read func(rtclock.Clock) (rtclock.Reading, error)
	}

	// clockSleepCommand implements clock_nanosleep.
	clockSleepCommand struct {
		baseCommand
	}
)

func init() {
	RegisterDefault(newClockGettimeCommand())
	RegisterDefault(newClockGetresCommand())
	RegisterDefault(newClockSleepCommand())
}

func newClockGettimeCommand() *clockReadCommand {
	return &clockReadCommand{
		baseCommand: baseCommand{name: "clock_gettime", synopsis: "clock_gettime CLOCK"},
		read:        rtclock.GetTime,
	}
}

func newClockGetresCommand() *clockReadCommand {
	return &clockReadCommand{
		baseCommand: baseCommand{name: "clock_getres", synopsis: "clock_getres CLOCK"},
		read:        rtclock.GetResolution,
	}
}

func newClockSleepCommand() *clockSleepCommand {
	return &clockSleepCommand{
		baseCommand: baseCommand{name: "clock_nanosleep", synopsis: "clock_nanosleep CLOCK rel|abs SEC NSEC"},
	}
}

// Run prints "SEC NSEC" for the named clock.
func (c *clockReadCommand) Run(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return wrapError(c.name, usageError(c.synopsis))
	}
	clock, err := rtclock.ParseClock(args[1])
	if err != nil {
		return wrapError(c.name, err)
	}
	r, err := c.read(clock)
	if err != nil {
		return wrapError(c.name, err)
	}
	hc := GetHandlerContext(ctx)
	_, err = fmt.Fprintf(hc.Stdout, "%d %d\n", r.Seconds, r.Nanoseconds)
	return wrapError(c.name, err)
}

// Run sleeps on the named clock. Cancelling the script cancels the sleep.
func (c *clockSleepCommand) Run(ctx context.Context, args []string) error {
	if len(args) != 5 {
		return wrapError(c.name, usageError(c.synopsis))
	}
	clock, err := rtclock.ParseClock(args[1])
	if err != nil {
		return wrapError(c.name, err)
	}
	mode, err := rtclock.ParseSleepMode(args[2])
	if err != nil {
		return wrapError(c.name, err)
	}
	sec, err := parseInt("seconds", args[3])
	if err != nil {
		return wrapError(c.name, err)
	}
	nsec, err := parseInt("nanoseconds", args[4])
	if err != nil {
		return wrapError(c.name, err)
	}
	return wrapError(c.name, rtclock.SleepContext(ctx, clock, mode, sec, nsec))
}

// parseInt parses a decimal argument, reporting failures as InvalidArgument.
func parseInt(name, s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, rterr.InvalidArgument(name, s, "not an integer")
	}
	return v, nil
}

// usageError reports a wrong argument count.
func usageError(synopsis string) error {
	return rterr.InvalidArgument("arguments", synopsis, "usage")
}
