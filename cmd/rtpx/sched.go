// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/rtpx/rtpx/internal/rterr"
	"github.com/rtpx/rtpx/internal/rtsched"

	"github.com/spf13/cobra"
)

func newSchedCommand(app *App) *cobra.Command {
	schedCmd := &cobra.Command{
		Use:   "sched",
		Short: "Inspect and change thread scheduling",
		Long: `Inspect and change the scheduling policy of OS threads.

Policies: SCHED_OTHER (priority forced to 0), SCHED_FIFO and SCHED_RR.
Real-time policies need CAP_SYS_NICE or a sufficient RLIMIT_RTPRIO.
A TID of 0 means the thread running the command.`,
	}

	schedCmd.AddCommand(&cobra.Command{
		Use:   "set TID POLICY [PRIORITY]",
		Short: "Set the policy and priority of a thread",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.fail(cmd, app.schedSet(args))
		},
	})

	var getFormat string
	getCmd := &cobra.Command{
		Use:   "get [TID]",
		Short: "Print the policy and priority of a thread",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.fail(cmd, app.schedGet(args, getFormat))
		},
	}
	addFormatFlag(getCmd, &getFormat)

	var rangeFormat string
	rangeCmd := &cobra.Command{
		Use:   "range [POLICY...]",
		Short: "Print the priority range of policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.fail(cmd, app.schedRange(args, rangeFormat))
		},
	}
	addFormatFlag(rangeCmd, &rangeFormat)

	schedCmd.AddCommand(getCmd, rangeCmd)
	return schedCmd
}

func parseTID(s string) (int, error) {
	tid, err := strconv.Atoi(s)
	if err != nil || tid < 0 {
		return 0, rterr.InvalidArgument("tid", s, "expected a non-negative thread id")
	}
	return tid, nil
}

func (a *App) schedSet(args []string) error {
	tid, err := parseTID(args[0])
	if err != nil {
		return err
	}
	policy, err := rtsched.ParsePolicy(args[1])
	if err != nil {
		return err
	}
	prio := 0
	if len(args) == 3 {
		if prio, err = strconv.Atoi(args[2]); err != nil {
			return rterr.InvalidArgument("priority", args[2], "not an integer")
		}
	}
	return onDiscardedThread(func() error {
		return rtsched.SetSchedule(tid, policy, prio)
	})
}

// onDiscardedThread runs fn on a goroutine locked to its thread that never
// unlocks, so the runtime destroys the thread when fn returns. A schedule set on
// "the calling thread" therefore never reaches other goroutines.
func onDiscardedThread(fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		errCh <- fn()
	}()
	return <-errCh
}

func (a *App) schedGet(args []string, format string) error {
	f, err := parseFormat(format)
	if err != nil {
		return err
	}
	tid := 0
	if len(args) == 1 {
		if tid, err = parseTID(args[0]); err != nil {
			return err
		}
	}
	runtime.LockOSThread()
	p, err := rtsched.GetSchedule(tid)
	runtime.UnlockOSThread()
	if err != nil {
		return err
	}
	if f != formatText {
		return writeStructured(a.stdout, f, p)
	}
	fmt.Fprintln(a.stdout, p)
	return nil
}

type policyRange struct {
	Policy        rtsched.Policy `json:"policy" yaml:"policy"`
	rtsched.Range `yaml:",inline"`
}

func (a *App) schedRange(args []string, format string) error {
	f, err := parseFormat(format)
	if err != nil {
		return err
	}
	policies := rtsched.Policies()
	if len(args) > 0 {
		policies = policies[:0:0]
		for _, arg := range args {
			p, err := rtsched.ParsePolicy(arg)
			if err != nil {
				return err
			}
			policies = append(policies, p)
		}
	}

	out := make([]policyRange, 0, len(policies))
	for _, p := range policies {
		r, err := rtsched.PriorityRange(p)
		if err != nil {
			return err
		}
		out = append(out, policyRange{Policy: p, Range: r})
	}
	if f != formatText {
		return writeStructured(a.stdout, f, out)
	}
	for _, pr := range out {
		fmt.Fprintf(a.stdout, "%s %d %d\n", pr.Policy, pr.Min, pr.Max)
	}
	return nil
}
