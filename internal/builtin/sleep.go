// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rtpx/rtpx/internal/rtclock"
	"github.com/rtpx/rtpx/internal/rterr"
)

// sleepCommand waits on the monotonic clock for a fixed interval.
type sleepCommand struct {
	baseCommand
}

func init() {
	RegisterDefault(newSleepCommand())
}

func newSleepCommand() *sleepCommand {
	return &sleepCommand{baseCommand: baseCommand{name: "sleep", synopsis: "sleep DURATION"}}
}

// Run executes the sleep command.
// Usage: sleep DURATION, where DURATION is seconds with an optional s/m/h suffix
// or a Go duration such as 250ms.
func (c *sleepCommand) Run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return wrapError(c.name, fmt.Errorf("missing operand: %w", rterr.ErrInvalidArgument))
	}

	d, err := parseSleepDuration(args[1])
	if err != nil {
		return wrapError(c.name, err)
	}
	return wrapError(c.name, rtclock.SleepForContext(ctx, d))
}

// parseSleepDuration parses "5", "5s", "1.5m", "2h" or any time.ParseDuration form.
func parseSleepDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, rterr.InvalidArgument("time interval", s, "")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	unit := time.Second
	num := s
	switch strings.ToLower(s[len(s)-1:]) {
	case "s":
		num = s[:len(s)-1]
	case "m":
		unit, num = time.Minute, s[:len(s)-1]
	case "h":
		unit, num = time.Hour, s[:len(s)-1]
	}
	val, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
		return 0, rterr.InvalidArgument("time interval", s, "")
	}
	ns := val * float64(unit)
	if ns >= math.MaxInt64 || ns <= math.MinInt64 {
		return 0, rterr.InvalidArgument("time interval", s, "out of range")
	}
	return time.Duration(ns), nil
}
