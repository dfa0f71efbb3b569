// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rtpx/rtpx/internal/rtclock"
	"github.com/rtpx/rtpx/internal/rterr"

	"github.com/spf13/cobra"
)

func newClockCommand(app *App) *cobra.Command {
	clockCmd := &cobra.Command{
		Use:   "clock",
		Short: "Read and sleep on POSIX clocks",
		Long: `Read and sleep on POSIX clocks.

Clocks: REALTIME, MONOTONIC, PROCESS_CPUTIME, THREAD_CPUTIME. The CLOCK_
prefix and _ID suffix are accepted.`,
	}

	read := func(use, short string, fn func(rtclock.Clock) (rtclock.Reading, error)) *cobra.Command {
		var format string
		c := &cobra.Command{
			Use:   use + " [CLOCK]",
			Short: short,
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.fail(cmd, app.clockRead(args, format, fn))
			},
		}
		addFormatFlag(c, &format)
		return c
	}

	var (
		clockName string
		mode      string
	)
	sleepCmd := &cobra.Command{
		Use:   "sleep SEC [NSEC] | sleep DURATION",
		Short: "Sleep on a clock",
		Long: `Sleep on a clock, either for an interval (--mode rel, the default) or
until the clock reaches an absolute time (--mode abs).

A single argument may also be a Go duration such as 250ms.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.fail(cmd, app.clockSleep(cmd, args, clockName, mode))
		},
	}
	sleepCmd.Flags().StringVar(&clockName, "clock", string(rtclock.Monotonic), "clock to sleep on")
	sleepCmd.Flags().StringVar(&mode, "mode", string(rtclock.Relative), "rel or abs")

	clockCmd.AddCommand(
		read("gettime", "Print the current time of a clock", rtclock.GetTime),
		read("getres", "Print the resolution of a clock", rtclock.GetResolution),
		sleepCmd,
	)
	return clockCmd
}

type clockReading struct {
	Clock           rtclock.Clock `json:"clock" yaml:"clock"`
	rtclock.Reading `yaml:",inline"`
}

func (a *App) clockRead(args []string, format string, fn func(rtclock.Clock) (rtclock.Reading, error)) error {
	f, err := parseFormat(format)
	if err != nil {
		return err
	}
	c := rtclock.Monotonic
	if len(args) == 1 {
		if c, err = rtclock.ParseClock(args[0]); err != nil {
			return err
		}
	}
	r, err := fn(c)
	if err != nil {
		return err
	}
	if f != formatText {
		return writeStructured(a.stdout, f, clockReading{Clock: c, Reading: r})
	}
	fmt.Fprintf(a.stdout, "%d %d\n", r.Seconds, r.Nanoseconds)
	return nil
}

func (a *App) clockSleep(cmd *cobra.Command, args []string, clockName, modeName string) error {
	c, err := rtclock.ParseClock(clockName)
	if err != nil {
		return err
	}
	mode, err := rtclock.ParseSleepMode(modeName)
	if err != nil {
		return err
	}

	var sec, nsec int64
	if len(args) == 1 {
		if d, derr := time.ParseDuration(args[0]); derr == nil {
			if d < 0 {
				return rterr.InvalidArgument("duration", args[0], "must not be negative")
			}
			sec, nsec = int64(d/time.Second), int64(d%time.Second)
		} else if sec, err = parseSeconds("sec", args[0]); err != nil {
			return err
		}
	} else {
		if sec, err = parseSeconds("sec", args[0]); err != nil {
			return err
		}
		if nsec, err = parseSeconds("nsec", args[1]); err != nil {
			return err
		}
	}
	return rtclock.SleepContext(cmd.Context(), c, mode, sec, nsec)
}

func parseSeconds(name, s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, rterr.InvalidArgument(name, s, "not an integer")
	}
	return n, nil
}
