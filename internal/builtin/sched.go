// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rtpx/rtpx/internal/rterr"
	"github.com/rtpx/rtpx/internal/rtsched"
)

type (
	// setSchedCommand implements setschedparam.
	setSchedCommand struct {
		baseCommand
	}

	// getSchedCommand implements getschedparam.
	getSchedCommand struct {
		baseCommand
	}
)

func init() {
	RegisterDefault(newSetSchedCommand())
	RegisterDefault(newGetSchedCommand())
}

func newSetSchedCommand() *setSchedCommand {
	return &setSchedCommand{baseCommand: baseCommand{name: "setschedparam", synopsis: "setschedparam TID POLICY [PRIO]"}}
}

func newGetSchedCommand() *getSchedCommand {
	return &getSchedCommand{baseCommand: baseCommand{name: "getschedparam", synopsis: "getschedparam [TID]"}}
}

// Run applies POLICY and PRIO to TID. A TID of 0 is the worker's own thread.
func (c *setSchedCommand) Run(_ context.Context, args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return wrapError(c.name, usageError(c.synopsis))
	}
	tid, err := parseTID(args[1])
	if err != nil {
		return wrapError(c.name, err)
	}
	policy, err := rtsched.ParsePolicy(args[2])
	if err != nil {
		return wrapError(c.name, err)
	}
	prio := 0
	if len(args) == 4 {
		if prio, err = strconv.Atoi(args[3]); err != nil {
			return wrapError(c.name, rterr.InvalidArgument("priority", args[3], "not an integer"))
		}
	}
	return wrapError(c.name, rtsched.SetSchedule(tid, policy, prio))
}

// Run prints "POLICY PRIO" for TID (default 0).
func (c *getSchedCommand) Run(ctx context.Context, args []string) error {
	if len(args) > 2 {
		return wrapError(c.name, usageError(c.synopsis))
	}
	tid := 0
	if len(args) == 2 {
		var err error
		if tid, err = parseTID(args[1]); err != nil {
			return wrapError(c.name, err)
		}
	}
	p, err := rtsched.GetSchedule(tid)
	if err != nil {
		return wrapError(c.name, err)
	}
	_, err = fmt.Fprintln(GetHandlerContext(ctx).Stdout, p.String())
	return wrapError(c.name, err)
}

func parseTID(s string) (int, error) {
	tid, err := strconv.Atoi(s)
	if err != nil || tid < 0 {
		return 0, rterr.InvalidArgument("thread id", s, "expected a non-negative integer")
	}
	return tid, nil
}
