// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/rtpx/rtpx/internal/memlock"

	"github.com/spf13/cobra"
)

func newMemCommand(app *App) *cobra.Command {
	memCmd := &cobra.Command{
		Use:   "mem",
		Short: "Lock process memory and inspect lock limits",
		Long: `Lock process memory and inspect lock limits.

Scopes: MCL_CURRENT, MCL_FUTURE, MCL_BOTH. Locking needs CAP_IPC_LOCK or an
RLIMIT_MEMLOCK large enough for the process. A lock only lasts as long as the
process, so 'mem lock' is mostly useful to check privileges; use
'rtpx run --mlock' to lock memory for workers.`,
	}

	memCmd.AddCommand(&cobra.Command{
		Use:   "lock [SCOPE]",
		Short: "Lock process memory (default MCL_BOTH)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope := memlock.Both
			if len(args) == 1 {
				var err error
				if scope, err = memlock.ParseScope(args[0]); err != nil {
					return app.fail(cmd, err)
				}
			}
			if err := memlock.Lock(scope); err != nil {
				return app.fail(cmd, err)
			}
			fmt.Fprintln(app.stdout, SuccessStyle.Render("locked "+string(scope)))
			return nil
		},
	})

	memCmd.AddCommand(&cobra.Command{
		Use:   "unlock",
		Short: "Unlock all process memory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.fail(cmd, memlock.Unlock())
		},
	})

	var format string
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show locked memory and the related resource limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.fail(cmd, app.memStatus(cmd.Context(), format))
		},
	}
	addFormatFlag(statusCmd, &format)
	memCmd.AddCommand(statusCmd)

	return memCmd
}

func (a *App) memStatus(ctx context.Context, format string) error {
	f, err := parseFormat(format)
	if err != nil {
		return err
	}
	st, err := memlock.ReadStatus(ctx)
	if err != nil {
		return err
	}
	if f != formatText {
		return writeStructured(a.stdout, f, st)
	}
	printField(a.stdout, "flavor", st.Flavor)
	printField(a.stdout, "locked", fmt.Sprintf("%d bytes", st.LockedBytes))
	printField(a.stdout, "memlock limit", st.MemlockLimit)
	printField(a.stdout, "rtprio limit", st.RtprioLimit)
	printField(a.stdout, "system memory", fmt.Sprintf("%d bytes", st.SystemTotal))
	return nil
}

func newFlavorCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "flavor",
		Short: "Print whether the kernel is real-time patched",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			fmt.Fprintln(app.stdout, memlock.RuntimeFlavor())
			return nil
		},
	}
}
